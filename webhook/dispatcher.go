package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	blinkpay "github.com/blinkpay/blinkpay/go"
)

// Header names set on every delivery.
const (
	HeaderSignature      = "X-Blinkpay-Signature"
	HeaderIdempotencyKey = "Idempotency-Key"
)

// Status is the outcome of Send.
type Status string

const (
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
	StatusIgnored Status = "ignored"
)

// Request is one webhook to deliver.
type Request struct {
	URL            string                 `json:"url"`
	Secret         string                 `json:"secret"`
	IdempotencyKey string                 `json:"idempotencyKey"`
	Payload        map[string]interface{} `json:"payload"`
}

// Result reports what Send did. Code is the HTTP status, or zero when no
// response was received.
type Result struct {
	Status Status `json:"status"`
	Code   int    `json:"code,omitempty"`
}

// Observer is notified of every Send outcome.
type Observer interface {
	WebhookDelivered(status string)
}

// Dispatcher sends webhooks at most once per idempotency key.
type Dispatcher struct {
	store    IdempotencyStore
	client   *http.Client
	logger   zerolog.Logger
	observer Observer
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(opts ...Option) *Dispatcher {
	cfg := &config{
		timeout: DefaultTimeout,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.store == nil {
		cfg.store = NewInMemoryStore(0)
	}
	if cfg.timeout <= 0 {
		cfg.timeout = DefaultTimeout
	}
	client := cfg.httpClient
	if client == nil {
		client = &http.Client{Timeout: cfg.timeout}
	} else if client.Timeout == 0 {
		c := *client
		c.Timeout = cfg.timeout
		client = &c
	}
	return &Dispatcher{
		store:    cfg.store,
		client:   client,
		logger:   cfg.logger.With().Str("component", "webhook").Logger(),
		observer: cfg.observer,
	}
}

// Send delivers req unless its key has been seen before. The returned error
// is non-nil only for invalid requests or an unavailable store, in which
// case nothing was sent.
func (d *Dispatcher) Send(ctx context.Context, req Request) (Result, error) {
	if err := validate(req); err != nil {
		return Result{}, err
	}

	state, err := d.store.CheckAndMark(ctx, req.IdempotencyKey)
	if err != nil {
		return Result{}, fmt.Errorf("check idempotency key: %w", err)
	}
	if state != StateAbsent {
		d.logger.Debug().Str("idempotency_key", req.IdempotencyKey).Str("state", state.String()).Msg("webhook ignored")
		return d.observe(Result{Status: StatusIgnored}), nil
	}

	defer func() {
		if err := d.store.MarkUsed(context.WithoutCancel(ctx), req.IdempotencyKey); err != nil {
			d.logger.Error().Err(err).Str("idempotency_key", req.IdempotencyKey).Msg("failed to mark webhook key used")
		}
	}()

	return d.observe(d.deliver(ctx, req)), nil
}

func (d *Dispatcher) deliver(ctx context.Context, req Request) Result {
	// encoding/json sorts map keys, so the signed bytes are canonical.
	body, err := json.Marshal(req.Payload)
	if err != nil {
		d.logger.Warn().Err(err).Str("idempotency_key", req.IdempotencyKey).Msg("webhook payload not serializable")
		return Result{Status: StatusFailed}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, bytes.NewReader(body))
	if err != nil {
		return Result{Status: StatusFailed}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(HeaderSignature, Sign(req.Secret, body))
	httpReq.Header.Set(HeaderIdempotencyKey, req.IdempotencyKey)

	start := time.Now()
	resp, err := d.client.Do(httpReq)
	if err != nil {
		d.logger.Warn().Err(err).Str("idempotency_key", req.IdempotencyKey).Dur("elapsed", time.Since(start)).Msg("webhook delivery failed")
		return Result{Status: StatusFailed}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	status := StatusSent
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		status = StatusFailed
	}
	d.logger.Info().
		Str("idempotency_key", req.IdempotencyKey).
		Int("code", resp.StatusCode).
		Str("status", string(status)).
		Dur("elapsed", time.Since(start)).
		Msg("webhook delivered")
	return Result{Status: status, Code: resp.StatusCode}
}

func (d *Dispatcher) observe(r Result) Result {
	if d.observer != nil {
		d.observer.WebhookDelivered(string(r.Status))
	}
	return r
}

func validate(req Request) error {
	invalid := func(msg string) error {
		return blinkpay.NewValidationError(blinkpay.ErrCodeInvalidWebhook, msg, nil)
	}
	if req.IdempotencyKey == "" {
		return invalid("idempotency key is required")
	}
	if req.Secret == "" {
		return invalid("secret is required")
	}
	if req.Payload == nil {
		return invalid("payload is required")
	}
	u, err := url.Parse(req.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return invalid("url must be an absolute http(s) URL")
	}
	return nil
}
