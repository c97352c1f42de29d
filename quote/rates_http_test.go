package quote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	blinkpay "github.com/blinkpay/blinkpay/go"
)

func newRateServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		switch r.URL.Path {
		case "/rates/EUR/" + usdcMint:
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"rate":1.08}`))
		case "/rates/BAD/" + usdcMint:
			_, _ = w.Write([]byte(`{"rate":-1}`))
		case "/rates/ERR/" + usdcMint:
			w.WriteHeader(http.StatusBadGateway)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPRates_Rate(t *testing.T) {
	var hits int32
	srv := newRateServer(t, &hits)
	rates := NewHTTPRates(HTTPRatesConfig{BaseURL: srv.URL + "/"})

	rate, err := rates.Rate(context.Background(), "EUR", usdcMint)
	require.NoError(t, err)
	assert.Equal(t, 1.08, rate)

	_, err = rates.Rate(context.Background(), "JPY", usdcMint)
	assert.True(t, errors.Is(err, blinkpay.ErrUnsupportedCurrency))

	_, err = rates.Rate(context.Background(), "BAD", usdcMint)
	assert.ErrorContains(t, err, "invalid rate")

	_, err = rates.Rate(context.Background(), "ERR", usdcMint)
	assert.ErrorContains(t, err, "502")
}

func TestHTTPRates_Cache(t *testing.T) {
	var hits int32
	srv := newRateServer(t, &hits)
	now := time.Unix(1_000, 0)
	rates := NewHTTPRates(HTTPRatesConfig{
		BaseURL:  srv.URL,
		CacheTTL: time.Minute,
		Clock:    func() time.Time { return now },
	})

	for i := 0; i < 3; i++ {
		_, err := rates.Rate(context.Background(), "EUR", usdcMint)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

	now = now.Add(2 * time.Minute)
	_, err := rates.Rate(context.Background(), "EUR", usdcMint)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestService_WithHTTPRates(t *testing.T) {
	var hits int32
	srv := newRateServer(t, &hits)
	svc := NewService(WithRateSource(NewHTTPRates(HTTPRatesConfig{BaseURL: srv.URL})))

	q, err := svc.CreateQuote(context.Background(), CreateQuoteOptions{
		FiatCurrency: "eur",
		FiatAmount:   10,
		TokenMint:    usdcMint,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(10_800_000), q.AmountBaseUnits)

	_, err = svc.CreateQuote(context.Background(), CreateQuoteOptions{
		FiatCurrency: "JPY",
		FiatAmount:   10,
		TokenMint:    usdcMint,
	})
	ve, ok := blinkpay.AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, blinkpay.ErrCodeInvalidCurrency, ve.Code)
}
