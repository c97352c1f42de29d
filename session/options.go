package session

import (
	"io"
	"time"

	"github.com/rs/zerolog"

	blinkpay "github.com/blinkpay/blinkpay/go"
)

const (
	// DefaultDuration is how long a session lives after creation or extension.
	DefaultDuration = 24 * time.Hour
	// DefaultMaxSessions caps concurrently held sessions.
	DefaultMaxSessions = 10
	// DefaultSweepInterval is how often Run purges expired sessions.
	DefaultSweepInterval = time.Hour
)

// Observer receives lifecycle counts, typically for metrics.
type Observer interface {
	SessionCreated()
	SessionRemoved(reason string)
	BackupGenerated()
	BackupRestored(ok bool)
}

type config struct {
	now         blinkpay.Clock
	duration    time.Duration
	maxSessions int
	repo        Repository
	logger      zerolog.Logger
	observer    Observer
	phrases     *PhraseGenerator
	entropy     io.Reader
}

// Option configures a Store.
type Option func(*config)

// WithClock sets the time source.
func WithClock(now blinkpay.Clock) Option {
	return func(c *config) {
		c.now = now
	}
}

// WithDuration sets the session lifetime.
//
// Default: 24 hours
func WithDuration(d time.Duration) Option {
	return func(c *config) {
		c.duration = d
	}
}

// WithMaxSessions caps the number of live sessions; the least recently used
// are evicted beyond it.
//
// Default: 10
func WithMaxSessions(n int) Option {
	return func(c *config) {
		c.maxSessions = n
	}
}

// WithRepository persists sessions through repo.
func WithRepository(repo Repository) Option {
	return func(c *config) {
		c.repo = repo
	}
}

// WithLogger sets the store logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithObserver receives lifecycle callbacks.
func WithObserver(o Observer) Option {
	return func(c *config) {
		c.observer = o
	}
}

// WithPhraseGenerator replaces the default BIP-39, 12 word generator.
func WithPhraseGenerator(g *PhraseGenerator) Option {
	return func(c *config) {
		c.phrases = g
	}
}

// WithEntropy sets the randomness source for key generation.
//
// Default: crypto/rand
func WithEntropy(r io.Reader) Option {
	return func(c *config) {
		c.entropy = r
	}
}

type nopObserver struct{}

func (nopObserver) SessionCreated()       {}
func (nopObserver) SessionRemoved(string) {}
func (nopObserver) BackupGenerated()      {}
func (nopObserver) BackupRestored(bool)   {}
