// Package quote prices a fiat amount in token base units for a short window.
package quote

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	solana "github.com/gagliardetto/solana-go"
	"github.com/google/uuid"

	blinkpay "github.com/blinkpay/blinkpay/go"
)

const (
	DefaultCurrency = "USD"
	DefaultDecimals = uint8(6)
	DefaultTTL      = 60 * time.Second
	MinTTL          = 15 * time.Second
	MaxTTL          = 600 * time.Second
	MaxDecimals     = 12
)

// Quote is an immutable price snapshot, valid while now < Expiry.
type Quote struct {
	QuoteID         string  `json:"quoteId"`
	FiatCurrency    string  `json:"fiatCurrency"`
	FiatAmount      float64 `json:"fiatAmount"`
	TokenMint       string  `json:"tokenMint"`
	TokenDecimals   uint8   `json:"tokenDecimals"`
	Rate            float64 `json:"rate"`
	AmountBaseUnits uint64  `json:"amountBaseUnits"`
	// Expiry is unix seconds.
	Expiry int64 `json:"expiry"`
}

// ExpiresAt returns Expiry as a time.
func (q *Quote) ExpiresAt() time.Time {
	return time.Unix(q.Expiry, 0)
}

// Valid reports whether the quote can still be honoured at now.
func (q *Quote) Valid(now time.Time) bool {
	return now.Unix() < q.Expiry
}

// CreateQuoteOptions are the inputs to CreateQuote.
type CreateQuoteOptions struct {
	// FiatCurrency defaults to USD.
	FiatCurrency string
	// FiatAmount must be positive and finite.
	FiatAmount float64
	// TokenMint is the base58 mint address.
	TokenMint string
	// TokenDecimals defaults to 6 when nil. Allowed range is 0-12.
	TokenDecimals *uint8
	// TTL defaults to 60s and is clamped to [15s, 600s].
	TTL time.Duration
}

// Decimals is a helper for CreateQuoteOptions.TokenDecimals.
func Decimals(d uint8) *uint8 {
	return &d
}

// RateSource returns how many tokens one unit of currency buys.
type RateSource interface {
	Rate(ctx context.Context, currency, mint string) (float64, error)
}

// FixedRates is a static RateSource keyed by upper-case currency code.
type FixedRates map[string]float64

// DefaultRates prices USD 1:1 against any stablecoin mint.
var DefaultRates = FixedRates{"USD": 1.0}

// Rate implements RateSource.
func (f FixedRates) Rate(_ context.Context, currency, _ string) (float64, error) {
	r, ok := f[currency]
	if !ok {
		return 0, blinkpay.ErrUnsupportedCurrency
	}
	return r, nil
}

// Service issues quotes.
type Service struct {
	rates RateSource
	now   blinkpay.Clock
}

// Option configures a Service.
type Option func(*Service)

// WithRateSource replaces DefaultRates.
func WithRateSource(r RateSource) Option {
	return func(s *Service) {
		s.rates = r
	}
}

// WithClock sets the time source used for expiry.
func WithClock(now blinkpay.Clock) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a quote service.
func NewService(opts ...Option) *Service {
	s := &Service{rates: DefaultRates}
	for _, opt := range opts {
		opt(s)
	}
	s.now = s.now.OrSystem()
	return s
}

// CreateQuote validates opts and fixes the base-unit amount, rounding half up.
func (s *Service) CreateQuote(ctx context.Context, opts CreateQuoteOptions) (*Quote, error) {
	currency := strings.ToUpper(strings.TrimSpace(opts.FiatCurrency))
	if currency == "" {
		currency = DefaultCurrency
	}
	if math.IsNaN(opts.FiatAmount) || math.IsInf(opts.FiatAmount, 0) || opts.FiatAmount <= 0 {
		return nil, blinkpay.NewValidationError(blinkpay.ErrCodeInvalidFiatAmount,
			"fiat amount must be a positive number", map[string]interface{}{"fiatAmount": opts.FiatAmount})
	}
	if _, err := solana.PublicKeyFromBase58(opts.TokenMint); err != nil {
		return nil, blinkpay.NewValidationError(blinkpay.ErrCodeInvalidAddress,
			"token mint is not a valid address", map[string]interface{}{"tokenMint": opts.TokenMint})
	}
	decimals := DefaultDecimals
	if opts.TokenDecimals != nil {
		decimals = *opts.TokenDecimals
	}
	if decimals > MaxDecimals {
		return nil, blinkpay.NewValidationError(blinkpay.ErrCodeInvalidDecimals,
			fmt.Sprintf("token decimals must be between 0 and %d", MaxDecimals), map[string]interface{}{"tokenDecimals": decimals})
	}
	ttl := clampTTL(opts.TTL)

	rate, err := s.rates.Rate(ctx, currency, opts.TokenMint)
	if err != nil {
		if errors.Is(err, blinkpay.ErrUnsupportedCurrency) {
			return nil, blinkpay.NewValidationError(blinkpay.ErrCodeInvalidCurrency,
				"unsupported fiat currency", map[string]interface{}{"fiatCurrency": currency})
		}
		return nil, fmt.Errorf("fetch rate: %w", err)
	}

	units := math.Round(opts.FiatAmount * rate * math.Pow10(int(decimals)))
	if units < 1 || units >= math.MaxUint64 {
		return nil, blinkpay.NewValidationError(blinkpay.ErrCodeInvalidFiatAmount,
			"fiat amount is out of range for this token", map[string]interface{}{"fiatAmount": opts.FiatAmount})
	}

	return &Quote{
		QuoteID:         "q_" + uuid.NewString(),
		FiatCurrency:    currency,
		FiatAmount:      opts.FiatAmount,
		TokenMint:       opts.TokenMint,
		TokenDecimals:   decimals,
		Rate:            rate,
		AmountBaseUnits: uint64(units),
		Expiry:          s.now().Unix() + int64(ttl/time.Second),
	}, nil
}

func clampTTL(ttl time.Duration) time.Duration {
	switch {
	case ttl == 0:
		return DefaultTTL
	case ttl < MinTTL:
		return MinTTL
	case ttl > MaxTTL:
		return MaxTTL
	}
	return ttl
}
