package quote

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	blinkpay "github.com/blinkpay/blinkpay/go"
)

const usdcMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

var fixedNow = time.Unix(1_700_000_000, 0)

func newTestService(opts ...Option) *Service {
	return NewService(append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)...)
}

func TestCreateQuoteDefaults(t *testing.T) {
	q, err := newTestService().CreateQuote(context.Background(), CreateQuoteOptions{
		FiatAmount: 5.00,
		TokenMint:  usdcMint,
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(5_000_000), q.AmountBaseUnits)
	assert.Equal(t, fixedNow.Unix()+60, q.Expiry)
	assert.Equal(t, "USD", q.FiatCurrency)
	assert.Equal(t, uint8(6), q.TokenDecimals)
	assert.Equal(t, 1.0, q.Rate)
	assert.True(t, strings.HasPrefix(q.QuoteID, "q_"))
}

func TestCreateQuoteExplicitTTL(t *testing.T) {
	q, err := newTestService().CreateQuote(context.Background(), CreateQuoteOptions{
		FiatAmount: 5.00,
		TokenMint:  usdcMint,
		TTL:        90 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, fixedNow.Unix()+90, q.Expiry)
}

func TestCreateQuoteRepeatedLater(t *testing.T) {
	now := fixedNow
	svc := NewService(WithClock(func() time.Time { return now }))
	opts := CreateQuoteOptions{
		FiatAmount:    5.00,
		TokenMint:     usdcMint,
		TokenDecimals: Decimals(6),
		TTL:           60 * time.Second,
	}

	first, err := svc.CreateQuote(context.Background(), opts)
	require.NoError(t, err)

	now = now.Add(30 * time.Second)
	second, err := svc.CreateQuote(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, uint64(5_000_000), first.AmountBaseUnits)
	assert.Equal(t, first.AmountBaseUnits, second.AmountBaseUnits)
	assert.NotEqual(t, first.Expiry, second.Expiry)
	assert.Equal(t, fixedNow.Unix()+60, first.Expiry)
	assert.Equal(t, fixedNow.Unix()+30+60, second.Expiry)
	assert.NotEqual(t, first.QuoteID, second.QuoteID)
}

func TestCreateQuoteTTLClamp(t *testing.T) {
	tests := []struct {
		ttl  time.Duration
		want int64
	}{
		{time.Second, 15},
		{-time.Minute, 15},
		{time.Hour, 600},
		{600 * time.Second, 600},
	}
	for _, tt := range tests {
		q, err := newTestService().CreateQuote(context.Background(), CreateQuoteOptions{FiatAmount: 1, TokenMint: usdcMint, TTL: tt.ttl})
		require.NoError(t, err)
		assert.Equal(t, fixedNow.Unix()+tt.want, q.Expiry, "ttl %s", tt.ttl)
	}
}

func TestCreateQuoteRounding(t *testing.T) {
	tests := []struct {
		name     string
		fiat     float64
		decimals uint8
		want     uint64
	}{
		{"half rounds up", 0.5, 0, 1},
		{"below half rounds down", 1.25, 0, 1},
		{"half rounds up at one decimal", 1.25, 1, 13},
		{"half rounds up above one", 2.5, 0, 3},
		{"zero decimals", 3, 0, 3},
		{"twelve decimals", 2, 12, 2_000_000_000_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := newTestService().CreateQuote(context.Background(), CreateQuoteOptions{
				FiatAmount:    tt.fiat,
				TokenMint:     usdcMint,
				TokenDecimals: Decimals(tt.decimals),
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, q.AmountBaseUnits)
			assert.Equal(t, tt.decimals, q.TokenDecimals)
		})
	}
}

func TestQuoteValidity(t *testing.T) {
	q, err := newTestService().CreateQuote(context.Background(), CreateQuoteOptions{FiatAmount: 1, TokenMint: usdcMint})
	require.NoError(t, err)

	assert.True(t, q.Valid(fixedNow))
	assert.True(t, q.Valid(fixedNow.Add(59*time.Second)))
	assert.False(t, q.Valid(fixedNow.Add(60*time.Second)))
	assert.Equal(t, fixedNow.Add(60*time.Second), q.ExpiresAt())
}

func TestQuoteIDsUnique(t *testing.T) {
	svc := newTestService()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		q, err := svc.CreateQuote(context.Background(), CreateQuoteOptions{FiatAmount: 1, TokenMint: usdcMint})
		require.NoError(t, err)
		require.False(t, seen[q.QuoteID])
		seen[q.QuoteID] = true
	}
}

func TestCreateQuoteValidation(t *testing.T) {
	tests := []struct {
		name string
		opts CreateQuoteOptions
		code string
	}{
		{"zero amount", CreateQuoteOptions{FiatAmount: 0, TokenMint: usdcMint}, blinkpay.ErrCodeInvalidFiatAmount},
		{"negative amount", CreateQuoteOptions{FiatAmount: -1, TokenMint: usdcMint}, blinkpay.ErrCodeInvalidFiatAmount},
		{"nan amount", CreateQuoteOptions{FiatAmount: math.NaN(), TokenMint: usdcMint}, blinkpay.ErrCodeInvalidFiatAmount},
		{"rounds to zero", CreateQuoteOptions{FiatAmount: 0.0000001, TokenMint: usdcMint}, blinkpay.ErrCodeInvalidFiatAmount},
		{"bad mint", CreateQuoteOptions{FiatAmount: 1, TokenMint: "not-a-key"}, blinkpay.ErrCodeInvalidAddress},
		{"decimals too large", CreateQuoteOptions{FiatAmount: 1, TokenMint: usdcMint, TokenDecimals: Decimals(13)}, blinkpay.ErrCodeInvalidDecimals},
		{"unsupported currency", CreateQuoteOptions{FiatCurrency: "EUR", FiatAmount: 1, TokenMint: usdcMint}, blinkpay.ErrCodeInvalidCurrency},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestService().CreateQuote(context.Background(), tt.opts)
			ve, ok := blinkpay.AsValidationError(err)
			require.True(t, ok, "got %v", err)
			assert.Equal(t, tt.code, ve.Code)
		})
	}
}

type failingRates struct{}

func (failingRates) Rate(context.Context, string, string) (float64, error) {
	return 0, errors.New("oracle down")
}

func TestCreateQuoteRateSourceError(t *testing.T) {
	_, err := newTestService(WithRateSource(failingRates{})).CreateQuote(context.Background(), CreateQuoteOptions{FiatAmount: 1, TokenMint: usdcMint})
	require.Error(t, err)
	_, ok := blinkpay.AsValidationError(err)
	assert.False(t, ok)
	assert.Contains(t, err.Error(), "oracle down")
}

func TestCustomRates(t *testing.T) {
	svc := newTestService(WithRateSource(FixedRates{"USD": 1, "EUR": 1.08}))
	q, err := svc.CreateQuote(context.Background(), CreateQuoteOptions{FiatCurrency: "eur", FiatAmount: 10, TokenMint: usdcMint})
	require.NoError(t, err)
	assert.Equal(t, "EUR", q.FiatCurrency)
	assert.Equal(t, uint64(10_800_000), q.AmountBaseUnits)
}
