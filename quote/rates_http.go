package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	blinkpay "github.com/blinkpay/blinkpay/go"
)

// DefaultRateTimeout bounds one rate lookup.
const DefaultRateTimeout = 5 * time.Second

// HTTPRatesConfig configures HTTPRates.
type HTTPRatesConfig struct {
	// BaseURL is the price service root. Required.
	BaseURL string
	// Timeout defaults to DefaultRateTimeout.
	Timeout time.Duration
	// CacheTTL keeps a fetched rate for this long. Zero disables caching.
	CacheTTL time.Duration
	// Client replaces the default HTTP client.
	Client *http.Client
	Clock  blinkpay.Clock
}

type rateResponse struct {
	Rate float64 `json:"rate"`
}

type cachedRate struct {
	rate    float64
	expires time.Time
}

// HTTPRates is a RateSource backed by a JSON price service answering
// GET {base}/rates/{currency}/{mint} with {"rate": <tokens per unit>}.
// A 404 means the currency is not priced.
type HTTPRates struct {
	baseURL    string
	httpClient *http.Client
	ttl        time.Duration
	now        blinkpay.Clock

	mu    sync.Mutex
	cache map[string]cachedRate
}

// NewHTTPRates creates a rate client.
func NewHTTPRates(cfg HTTPRatesConfig) *HTTPRates {
	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultRateTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPRates{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: client,
		ttl:        cfg.CacheTTL,
		now:        cfg.Clock.OrSystem(),
		cache:      make(map[string]cachedRate),
	}
}

// Rate implements RateSource.
func (h *HTTPRates) Rate(ctx context.Context, currency, mint string) (float64, error) {
	key := currency + "/" + mint
	if h.ttl > 0 {
		h.mu.Lock()
		c, ok := h.cache[key]
		h.mu.Unlock()
		if ok && h.now().Before(c.expires) {
			return c.rate, nil
		}
	}

	rate, err := h.fetch(ctx, currency, mint)
	if err != nil {
		return 0, err
	}

	if h.ttl > 0 {
		h.mu.Lock()
		h.cache[key] = cachedRate{rate: rate, expires: h.now().Add(h.ttl)}
		h.mu.Unlock()
	}
	return rate, nil
}

func (h *HTTPRates) fetch(ctx context.Context, currency, mint string) (float64, error) {
	u := fmt.Sprintf("%s/rates/%s/%s", h.baseURL, url.PathEscape(currency), url.PathEscape(mint))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create rate request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch rate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return 0, blinkpay.ErrUnsupportedCurrency
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("rate service returned status %d", resp.StatusCode)
	}

	var body rateResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("failed to decode rate: %w", err)
	}
	if math.IsNaN(body.Rate) || math.IsInf(body.Rate, 0) || body.Rate <= 0 {
		return 0, fmt.Errorf("rate service returned invalid rate %v", body.Rate)
	}
	return body.Rate, nil
}
