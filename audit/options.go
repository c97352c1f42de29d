package audit

import (
	"github.com/rs/zerolog"

	blinkpay "github.com/blinkpay/blinkpay/go"
)

// DefaultMaxEvents is the retention bound used when none is configured.
const DefaultMaxEvents = 1000

type config struct {
	maxEvents int
	now       blinkpay.Clock
	sinks     []Sink
	logger    zerolog.Logger
}

// Option configures a Log.
type Option func(*config)

// WithMaxEvents bounds the number of retained events.
//
// Default: 1000
func WithMaxEvents(n int) Option {
	return func(c *config) {
		c.maxEvents = n
	}
}

// WithClock sets the time source used to stamp events.
func WithClock(now blinkpay.Clock) Option {
	return func(c *config) {
		c.now = now
	}
}

// WithSink mirrors every recorded event to s. Sinks are called in record
// order while the ledger lock is held, so they must not block; wrap slow
// sinks in an AsyncSink.
func WithSink(s Sink) Option {
	return func(c *config) {
		c.sinks = append(c.sinks, s)
	}
}

// WithLogger sets the logger used to report sink failures.
func WithLogger(l zerolog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}
