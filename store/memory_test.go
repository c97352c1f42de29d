package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	blinkpay "github.com/blinkpay/blinkpay/go"
)

type stepClock struct{ t time.Time }

func (c *stepClock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestMemory() *Memory {
	c := &stepClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	return NewMemory(c.now)
}

func receipt(id, merchant string, amount uint64) Receipt {
	return Receipt{ReceiptID: id, Payer: "payer", Merchant: merchant, Mint: "mint", Amount: amount}
}

func TestMemoryMerchant(t *testing.T) {
	ctx := context.Background()
	s := newTestMemory()

	_, err := s.UpsertMerchant(ctx, Merchant{Authority: "auth"})
	ve, ok := blinkpay.AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, blinkpay.ErrCodeInvalidAddress, ve.Code)

	first, err := s.UpsertMerchant(ctx, Merchant{Authority: "auth", DisplayName: "Shop", MerchantPDA: "pda"})
	require.NoError(t, err)
	second, err := s.UpsertMerchant(ctx, Merchant{Authority: "auth", DisplayName: "Shop 2", MerchantPDA: "pda"})
	require.NoError(t, err)
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))
	assert.Equal(t, "Shop 2", s.merchants["auth"].DisplayName)
}

func TestMemoryPaymentRequest(t *testing.T) {
	ctx := context.Background()
	s := newTestMemory()

	_, err := s.CreatePaymentRequest(ctx, PaymentRequest{MerchantOwner: "m", Mint: "mint"})
	ve, ok := blinkpay.AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, blinkpay.ErrCodeInvalidAmount, ve.Code)

	created, err := s.CreatePaymentRequest(ctx, PaymentRequest{MerchantOwner: "m", Mint: "mint", Amount: 10})
	require.NoError(t, err)
	assert.Len(t, created.RequestID, 36, "generated ids are UUIDs")

	named, err := s.CreatePaymentRequest(ctx, PaymentRequest{RequestID: "req-1", MerchantOwner: "m", Mint: "mint", Amount: 5})
	require.NoError(t, err)
	got, err := s.GetPaymentRequest(ctx, "req-1")
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(named, got))

	_, err = s.GetPaymentRequest(ctx, "req-missing")
	assert.ErrorIs(t, err, blinkpay.ErrNotFound)
}

func TestMemorySession(t *testing.T) {
	s := newTestMemory()
	rec, err := s.CreateSession(context.Background(), SessionRecord{ID: "session_1", PublicKey: "pk", UserAgent: "curl"})
	require.NoError(t, err)
	assert.False(t, rec.CreatedAt.IsZero())
}

func TestMemoryReceiptUpsert(t *testing.T) {
	ctx := context.Background()
	s := newTestMemory()

	_, err := s.UpsertReceipt(ctx, Receipt{Payer: "p", Merchant: "m", Mint: "x", Amount: 1})
	ve, ok := blinkpay.AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, blinkpay.ErrCodeInvalidReceiptID, ve.Code)

	pending, err := s.UpsertReceipt(ctx, receipt("r1", "m", 100))
	require.NoError(t, err)
	assert.Equal(t, ReceiptPending, pending.Status)

	withSig := receipt("r1", "m", 100)
	withSig.Signature = "sig"
	confirmed, err := s.UpsertReceipt(ctx, withSig)
	require.NoError(t, err)
	assert.Equal(t, ReceiptConfirmed, confirmed.Status)
	assert.Equal(t, pending.CreatedAt, confirmed.CreatedAt, "upsert keeps creation time")

	list, err := s.ListReceipts(ctx, "m", 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "sig", list[0].Signature)
}

func TestMemoryListReceipts(t *testing.T) {
	ctx := context.Background()
	s := newTestMemory()
	for _, id := range []string{"a", "b", "c"} {
		_, err := s.UpsertReceipt(ctx, receipt(id, "m", 1))
		require.NoError(t, err)
	}
	_, err := s.UpsertReceipt(ctx, receipt("other", "n", 1))
	require.NoError(t, err)

	list, err := s.ListReceipts(ctx, "m", 2)
	require.NoError(t, err)
	ids := []string{list[0].ReceiptID, list[1].ReceiptID}
	assert.Equal(t, []string{"c", "b"}, ids)

	empty, err := s.ListReceipts(ctx, "nobody", 10)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestMemoryDashboardStats(t *testing.T) {
	ctx := context.Background()
	s := newTestMemory()

	paid := receipt("paid", "m", 1_000)
	paid.Signature = "s1"
	split := receipt("split", "m", 2_000)
	split.Signature = "s2"
	split.FeeBps = 250
	failed := receipt("failed", "m", 500)
	failed.Signature = "s3"
	failed.Status = ReceiptFailed
	open := receipt("open", "m", 700)
	foreign := receipt("foreign", "n", 9_000)
	foreign.Signature = "s4"

	for _, r := range []Receipt{paid, split, failed, open, foreign} {
		_, err := s.UpsertReceipt(ctx, r)
		require.NoError(t, err)
	}
	_, err := s.CreatePaymentRequest(ctx, PaymentRequest{MerchantOwner: "m", Mint: "mint", Amount: 1})
	require.NoError(t, err)

	stats, err := s.DashboardStats(ctx, "m")
	require.NoError(t, err)
	want := DashboardStats{Revenue: 3_000, Active: 1, Pending: 1, Failed: 1, Split: 1}
	assert.Empty(t, cmp.Diff(want, stats))

	zero, err := s.DashboardStats(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, DashboardStats{}, zero)
}
