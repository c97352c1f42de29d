package webhook

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTimeout bounds a single delivery attempt.
const DefaultTimeout = 10 * time.Second

type config struct {
	store      IdempotencyStore
	httpClient *http.Client
	timeout    time.Duration
	logger     zerolog.Logger
	observer   Observer
}

// Option configures a Dispatcher.
type Option func(*config)

// WithStore sets the idempotency store.
//
// Default: an InMemoryStore that never forgets keys.
func WithStore(store IdempotencyStore) Option {
	return func(c *config) {
		c.store = store
	}
}

// WithHTTPClient sets the client used for delivery. Its Timeout is
// overridden when it is zero.
func WithHTTPClient(client *http.Client) Option {
	return func(c *config) {
		c.httpClient = client
	}
}

// WithTimeout bounds each delivery.
//
// Default: 10 seconds
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithLogger sets the dispatcher logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithObserver receives one callback per Send outcome.
func WithObserver(o Observer) Option {
	return func(c *config) {
		c.observer = o
	}
}
