// Package store persists the records around payments that live off chain:
// merchants, payment requests, login sessions and receipts. Writes are
// last-write-wins; reads feed the merchant dashboard.
package store

import (
	"context"
	"time"

	blinkpay "github.com/blinkpay/blinkpay/go"
)

// ReceiptStatus tracks a receipt through confirmation.
type ReceiptStatus string

const (
	ReceiptPending   ReceiptStatus = "pending"
	ReceiptConfirmed ReceiptStatus = "confirmed"
	ReceiptFailed    ReceiptStatus = "failed"
)

// Merchant is a registered merchant authority and its derived account.
type Merchant struct {
	Authority   string    `json:"authority"`
	DisplayName string    `json:"displayName,omitempty"`
	MerchantPDA string    `json:"merchantPda"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// PaymentRequest is a merchant's request to be paid, shared as a pay URL.
type PaymentRequest struct {
	RequestID     string    `json:"requestId"`
	MerchantOwner string    `json:"merchantOwner"`
	Amount        uint64    `json:"amount"`
	Mint          string    `json:"mint"`
	Description   string    `json:"description,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// SessionRecord notes a login session handed to a client.
type SessionRecord struct {
	ID        string    `json:"id"`
	PublicKey string    `json:"publicKey"`
	UserAgent string    `json:"userAgent,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Receipt is the off-chain copy of a payment receipt.
type Receipt struct {
	ReceiptID string        `json:"receiptId"`
	Payer     string        `json:"payer"`
	Merchant  string        `json:"merchant"`
	Mint      string        `json:"mint"`
	Amount    uint64        `json:"amount"`
	Signature string        `json:"signature,omitempty"`
	Status    ReceiptStatus `json:"status"`
	FeeBps    uint16        `json:"feeBps,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
}

// DashboardStats summarizes a merchant's receipts.
type DashboardStats struct {
	// Revenue sums the amounts of confirmed receipts.
	Revenue uint64 `json:"revenue"`
	// Active counts the merchant's payment requests.
	Active  int `json:"active"`
	Pending int `json:"pending"`
	Failed  int `json:"failed"`
	// Split counts receipts paid with a platform fee.
	Split int `json:"split"`
}

// Store is the persistence boundary used by the HTTP layer.
type Store interface {
	UpsertMerchant(ctx context.Context, m Merchant) (Merchant, error)
	CreatePaymentRequest(ctx context.Context, r PaymentRequest) (PaymentRequest, error)
	GetPaymentRequest(ctx context.Context, requestID string) (PaymentRequest, error)
	CreateSession(ctx context.Context, s SessionRecord) (SessionRecord, error)
	UpsertReceipt(ctx context.Context, r Receipt) (Receipt, error)
	ListReceipts(ctx context.Context, merchant string, limit int) ([]Receipt, error)
	DashboardStats(ctx context.Context, merchant string) (DashboardStats, error)
}

func validateMerchant(m Merchant) error {
	if m.Authority == "" || m.MerchantPDA == "" {
		return blinkpay.NewValidationError(blinkpay.ErrCodeInvalidAddress, "merchant authority and address are required", nil)
	}
	return nil
}

func validatePaymentRequest(r PaymentRequest) error {
	if r.Amount == 0 {
		return blinkpay.NewValidationError(blinkpay.ErrCodeInvalidAmount, "amount must be positive", nil)
	}
	if r.MerchantOwner == "" || r.Mint == "" {
		return blinkpay.NewValidationError(blinkpay.ErrCodeInvalidAddress, "merchant owner and mint are required", nil)
	}
	return nil
}

func validateReceipt(r Receipt) error {
	if r.ReceiptID == "" {
		return blinkpay.NewValidationError(blinkpay.ErrCodeInvalidReceiptID, "receipt id is required", nil)
	}
	if r.Amount == 0 {
		return blinkpay.NewValidationError(blinkpay.ErrCodeInvalidAmount, "amount must be positive", nil)
	}
	if r.Payer == "" || r.Merchant == "" || r.Mint == "" {
		return blinkpay.NewValidationError(blinkpay.ErrCodeInvalidAddress, "payer, merchant and mint are required", nil)
	}
	return nil
}

// normalizeStatus fills an empty status from the signature.
func normalizeStatus(r *Receipt) {
	if r.Status != "" {
		return
	}
	if r.Signature != "" {
		r.Status = ReceiptConfirmed
	} else {
		r.Status = ReceiptPending
	}
}

func accumulate(stats *DashboardStats, r Receipt) {
	switch {
	case r.Status == ReceiptFailed:
		stats.Failed++
	case r.Signature == "":
		stats.Pending++
	default:
		stats.Revenue += r.Amount
	}
	if r.FeeBps > 0 {
		stats.Split++
	}
}
