package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // postgres driver
	"github.com/pkg/errors"

	blinkpay "github.com/blinkpay/blinkpay/go"
)

const schema = `
CREATE TABLE IF NOT EXISTS merchants (
	authority    TEXT PRIMARY KEY,
	display_name TEXT NOT NULL DEFAULT '',
	merchant_pda TEXT NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS payment_requests (
	request_id     TEXT PRIMARY KEY,
	merchant_owner TEXT NOT NULL,
	amount         BIGINT NOT NULL CHECK (amount > 0),
	mint           TEXT NOT NULL,
	description    TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS payment_requests_owner_idx ON payment_requests (merchant_owner);
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	pubkey     TEXT NOT NULL,
	ua         TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS receipts (
	receipt_id TEXT PRIMARY KEY,
	payer      TEXT NOT NULL,
	merchant   TEXT NOT NULL,
	mint       TEXT NOT NULL,
	amount     BIGINT NOT NULL CHECK (amount > 0),
	signature  TEXT,
	status     TEXT NOT NULL,
	fee_bps    INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS receipts_merchant_idx ON receipts (merchant, created_at DESC);
`

// Postgres is a Store over database/sql with the lib/pq driver.
type Postgres struct {
	db  *sql.DB
	now blinkpay.Clock
}

// NewPostgres wraps an open database. A nil clock uses the wall clock.
func NewPostgres(db *sql.DB, now blinkpay.Clock) *Postgres {
	return &Postgres{db: db, now: now.OrSystem()}
}

// OpenPostgres opens and pings dsn.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open postgres")
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping postgres")
	}
	return db, nil
}

// Migrate creates the tables if they do not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, "failed to migrate schema")
	}
	return nil
}

func (p *Postgres) UpsertMerchant(ctx context.Context, m Merchant) (Merchant, error) {
	if err := validateMerchant(m); err != nil {
		return Merchant{}, err
	}
	m.UpdatedAt = p.now().UTC()
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO merchants (authority, display_name, merchant_pda, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (authority) DO UPDATE
		SET display_name = EXCLUDED.display_name,
		    merchant_pda = EXCLUDED.merchant_pda,
		    updated_at = EXCLUDED.updated_at`,
		m.Authority, m.DisplayName, m.MerchantPDA, m.UpdatedAt)
	if err != nil {
		return Merchant{}, errors.Wrap(err, "failed to upsert merchant")
	}
	return m, nil
}

// CreatePaymentRequest stores r, assigning a UUID when RequestID is empty.
func (p *Postgres) CreatePaymentRequest(ctx context.Context, r PaymentRequest) (PaymentRequest, error) {
	if err := validatePaymentRequest(r); err != nil {
		return PaymentRequest{}, err
	}
	if r.RequestID == "" {
		r.RequestID = uuid.NewString()
	}
	r.CreatedAt = p.now().UTC()
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO payment_requests (request_id, merchant_owner, amount, mint, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (request_id) DO UPDATE
		SET merchant_owner = EXCLUDED.merchant_owner,
		    amount = EXCLUDED.amount,
		    mint = EXCLUDED.mint,
		    description = EXCLUDED.description,
		    created_at = EXCLUDED.created_at`,
		r.RequestID, r.MerchantOwner, int64(r.Amount), r.Mint, r.Description, r.CreatedAt)
	if err != nil {
		return PaymentRequest{}, errors.Wrap(err, "failed to create payment request")
	}
	return r, nil
}

func (p *Postgres) GetPaymentRequest(ctx context.Context, requestID string) (PaymentRequest, error) {
	var (
		r      PaymentRequest
		amount int64
	)
	err := p.db.QueryRowContext(ctx, `
		SELECT request_id, merchant_owner, amount, mint, description, created_at
		FROM payment_requests WHERE request_id = $1`, requestID).
		Scan(&r.RequestID, &r.MerchantOwner, &amount, &r.Mint, &r.Description, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return PaymentRequest{}, blinkpay.ErrNotFound
		}
		return PaymentRequest{}, errors.Wrap(err, "failed to get payment request")
	}
	r.Amount = uint64(amount)
	return r, nil
}

func (p *Postgres) CreateSession(ctx context.Context, s SessionRecord) (SessionRecord, error) {
	s.CreatedAt = p.now().UTC()
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO sessions (id, pubkey, ua, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET pubkey = EXCLUDED.pubkey, ua = EXCLUDED.ua`,
		s.ID, s.PublicKey, s.UserAgent, s.CreatedAt)
	if err != nil {
		return SessionRecord{}, errors.Wrap(err, "failed to create session")
	}
	return s, nil
}

// UpsertReceipt replaces any receipt with the same ID, keeping the
// original creation time.
func (p *Postgres) UpsertReceipt(ctx context.Context, r Receipt) (Receipt, error) {
	if err := validateReceipt(r); err != nil {
		return Receipt{}, err
	}
	normalizeStatus(&r)
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO receipts (receipt_id, payer, merchant, mint, amount, signature, status, fee_bps, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (receipt_id) DO UPDATE
		SET payer = EXCLUDED.payer,
		    merchant = EXCLUDED.merchant,
		    mint = EXCLUDED.mint,
		    amount = EXCLUDED.amount,
		    signature = EXCLUDED.signature,
		    status = EXCLUDED.status,
		    fee_bps = EXCLUDED.fee_bps
		RETURNING created_at`,
		r.ReceiptID, r.Payer, r.Merchant, r.Mint, int64(r.Amount),
		nullString(r.Signature), string(r.Status), int(r.FeeBps), p.now().UTC()).
		Scan(&r.CreatedAt)
	if err != nil {
		return Receipt{}, errors.Wrap(err, "failed to upsert receipt")
	}
	return r, nil
}

// ListReceipts returns the merchant's receipts, newest first. limit <= 0
// returns all of them.
func (p *Postgres) ListReceipts(ctx context.Context, merchant string, limit int) ([]Receipt, error) {
	query := `
		SELECT receipt_id, payer, merchant, mint, amount, signature, status, fee_bps, created_at
		FROM receipts WHERE merchant = $1
		ORDER BY created_at DESC, receipt_id DESC`
	args := []interface{}{merchant}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list receipts")
	}
	defer rows.Close()

	out := make([]Receipt, 0)
	for rows.Next() {
		r, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate receipts")
	}
	return out, nil
}

func (p *Postgres) DashboardStats(ctx context.Context, merchant string) (DashboardStats, error) {
	var (
		stats   DashboardStats
		revenue int64
	)
	err := p.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE status <> 'failed' AND signature IS NOT NULL), 0),
			COUNT(*) FILTER (WHERE status <> 'failed' AND signature IS NULL),
			COUNT(*) FILTER (WHERE status = 'failed'),
			COUNT(*) FILTER (WHERE fee_bps > 0)
		FROM receipts WHERE merchant = $1`, merchant).
		Scan(&revenue, &stats.Pending, &stats.Failed, &stats.Split)
	if err != nil {
		return DashboardStats{}, errors.Wrap(err, "failed to aggregate receipts")
	}
	stats.Revenue = uint64(revenue)

	err = p.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM payment_requests WHERE merchant_owner = $1`, merchant).
		Scan(&stats.Active)
	if err != nil {
		return DashboardStats{}, errors.Wrap(err, "failed to count payment requests")
	}
	return stats, nil
}

func scanReceipt(rows *sql.Rows) (Receipt, error) {
	var (
		r         Receipt
		amount    int64
		signature sql.NullString
		status    string
		feeBps    int
		createdAt time.Time
	)
	if err := rows.Scan(&r.ReceiptID, &r.Payer, &r.Merchant, &r.Mint, &amount,
		&signature, &status, &feeBps, &createdAt); err != nil {
		return Receipt{}, errors.Wrap(err, "failed to scan receipt")
	}
	r.Amount = uint64(amount)
	r.Signature = signature.String
	r.Status = ReceiptStatus(status)
	r.FeeBps = uint16(feeBps)
	r.CreatedAt = createdAt
	return r, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var _ Store = (*Postgres)(nil)
