// Package audit keeps a bounded, in-memory ledger of security-relevant
// session events and mirrors them to optional sinks.
package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	blinkpay "github.com/blinkpay/blinkpay/go"
)

// Log is an append-only ledger holding at most maxEvents entries.
// Retrieval is newest first. Log is safe for concurrent use.
type Log struct {
	mu     sync.RWMutex
	events []Event // oldest first
	nextID uint64
	max    int
	now    blinkpay.Clock
	sinks  []Sink
	logger zerolog.Logger
}

// NewLog creates an empty ledger.
func NewLog(opts ...Option) *Log {
	cfg := &config{
		maxEvents: DefaultMaxEvents,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.maxEvents <= 0 {
		cfg.maxEvents = DefaultMaxEvents
	}
	return &Log{
		events: make([]Event, 0, cfg.maxEvents),
		max:    cfg.maxEvents,
		now:    cfg.now.OrSystem(),
		sinks:  cfg.sinks,
		logger: cfg.logger,
	}
}

// Record appends an event and returns it. Record never fails; sink errors
// are logged and dropped.
func (l *Log) Record(kind Kind, sessionID, publicKey string, severity Severity, detail map[string]interface{}) Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextID++
	ev := Event{
		ID:        l.nextID,
		Timestamp: l.now(),
		Kind:      kind,
		SessionID: sessionID,
		PublicKey: publicKey,
		Severity:  severity,
		Detail:    copyDetail(detail),
	}

	if len(l.events) == l.max {
		copy(l.events, l.events[1:])
		l.events = l.events[:l.max-1]
	}
	l.events = append(l.events, ev)

	for _, s := range l.sinks {
		if err := s.Write(context.Background(), ev); err != nil {
			l.logger.Warn().Err(err).Uint64("event_id", ev.ID).Str("kind", string(ev.Kind)).Msg("audit sink write failed")
		}
	}
	return ev
}

// Events returns all retained events, newest first.
func (l *Log) Events() []Event {
	return l.filter(func(Event) bool { return true })
}

// BySession returns the events for one session, newest first.
func (l *Log) BySession(sessionID string) []Event {
	return l.filter(func(e Event) bool { return e.SessionID == sessionID })
}

// BySeverity returns the events with the given severity, newest first.
func (l *Log) BySeverity(severity Severity) []Event {
	return l.filter(func(e Event) bool { return e.Severity == severity })
}

// InRange returns the events stamped within [start, end], newest first.
func (l *Log) InRange(start, end time.Time) []Event {
	return l.filter(func(e Event) bool {
		return !e.Timestamp.Before(start) && !e.Timestamp.After(end)
	})
}

// Summarize aggregates the retained events.
func (l *Log) Summarize() Summary {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s := Summary{TotalEvents: len(l.events)}
	cutoff := l.now().Add(-24 * time.Hour)
	recent := make(map[string]struct{})
	for _, e := range l.events {
		switch e.Severity {
		case SeverityCritical:
			s.CriticalCount++
		case SeverityHigh:
			s.HighCount++
		}
		if e.SessionID != "" && e.Timestamp.After(cutoff) {
			recent[e.SessionID] = struct{}{}
		}
	}
	s.DistinctSessionsLast24h = len(recent)
	if n := len(l.events); n > 0 {
		last := l.events[n-1].Timestamp
		s.LastActivity = &last
	}
	return s
}

// Export renders the retained events as JSON, newest first.
func (l *Log) Export() ([]byte, error) {
	return json.MarshalIndent(l.Events(), "", "  ")
}

// Clear drops every retained event. IDs keep increasing across a Clear.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = l.events[:0]
}

func (l *Log) filter(keep func(Event) bool) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Event, 0, len(l.events))
	for i := len(l.events) - 1; i >= 0; i-- {
		if keep(l.events[i]) {
			out = append(out, l.events[i])
		}
	}
	return out
}

func copyDetail(detail map[string]interface{}) map[string]interface{} {
	if len(detail) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(detail))
	for k, v := range detail {
		out[k] = v
	}
	return out
}
