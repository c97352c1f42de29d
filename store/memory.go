package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	blinkpay "github.com/blinkpay/blinkpay/go"
)

// Memory is an in-process Store. It is the default when no database is
// configured.
type Memory struct {
	mu        sync.RWMutex
	merchants map[string]Merchant
	requests  map[string]PaymentRequest
	sessions  map[string]SessionRecord
	receipts  map[string]Receipt
	now       blinkpay.Clock
}

// NewMemory creates an empty store. A nil clock uses the wall clock.
func NewMemory(now blinkpay.Clock) *Memory {
	return &Memory{
		merchants: make(map[string]Merchant),
		requests:  make(map[string]PaymentRequest),
		sessions:  make(map[string]SessionRecord),
		receipts:  make(map[string]Receipt),
		now:       now.OrSystem(),
	}
}

func (m *Memory) UpsertMerchant(_ context.Context, merchant Merchant) (Merchant, error) {
	if err := validateMerchant(merchant); err != nil {
		return Merchant{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	merchant.UpdatedAt = m.now()
	m.merchants[merchant.Authority] = merchant
	return merchant, nil
}

// CreatePaymentRequest stores r, assigning a UUID when RequestID is empty.
func (m *Memory) CreatePaymentRequest(_ context.Context, r PaymentRequest) (PaymentRequest, error) {
	if err := validatePaymentRequest(r); err != nil {
		return PaymentRequest{}, err
	}
	if r.RequestID == "" {
		r.RequestID = uuid.NewString()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r.CreatedAt = m.now()
	m.requests[r.RequestID] = r
	return r, nil
}

func (m *Memory) GetPaymentRequest(_ context.Context, requestID string) (PaymentRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.requests[requestID]
	if !ok {
		return PaymentRequest{}, blinkpay.ErrNotFound
	}
	return r, nil
}

func (m *Memory) CreateSession(_ context.Context, s SessionRecord) (SessionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.CreatedAt = m.now()
	m.sessions[s.ID] = s
	return s, nil
}

// UpsertReceipt replaces any receipt with the same ID, keeping the
// original creation time.
func (m *Memory) UpsertReceipt(_ context.Context, r Receipt) (Receipt, error) {
	if err := validateReceipt(r); err != nil {
		return Receipt{}, err
	}
	normalizeStatus(&r)
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.receipts[r.ReceiptID]; ok {
		r.CreatedAt = prev.CreatedAt
	} else {
		r.CreatedAt = m.now()
	}
	m.receipts[r.ReceiptID] = r
	return r, nil
}

// ListReceipts returns the merchant's receipts, newest first. limit <= 0
// returns all of them.
func (m *Memory) ListReceipts(_ context.Context, merchant string, limit int) ([]Receipt, error) {
	m.mu.RLock()
	out := make([]Receipt, 0)
	for _, r := range m.receipts {
		if r.Merchant == merchant {
			out = append(out, r)
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ReceiptID > out[j].ReceiptID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) DashboardStats(_ context.Context, merchant string) (DashboardStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var stats DashboardStats
	for _, r := range m.receipts {
		if r.Merchant == merchant {
			accumulate(&stats, r)
		}
	}
	for _, r := range m.requests {
		if r.MerchantOwner == merchant {
			stats.Active++
		}
	}
	return stats, nil
}

var _ Store = (*Memory)(nil)
