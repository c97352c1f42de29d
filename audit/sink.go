package audit

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Sink receives a copy of every recorded event.
type Sink interface {
	Write(ctx context.Context, e Event) error
}

// LoggerSink writes events to a zerolog logger, with the level following severity.
type LoggerSink struct {
	logger zerolog.Logger
}

// NewLoggerSink creates a sink that logs through l.
func NewLoggerSink(l zerolog.Logger) *LoggerSink {
	return &LoggerSink{logger: l.With().Str("component", "audit").Logger()}
}

// Write implements Sink.
func (s *LoggerSink) Write(_ context.Context, e Event) error {
	var ev *zerolog.Event
	switch e.Severity {
	case SeverityCritical:
		ev = s.logger.Error()
	case SeverityHigh:
		ev = s.logger.Warn()
	case SeverityMedium:
		ev = s.logger.Info()
	default:
		ev = s.logger.Debug()
	}
	ev.Uint64("event_id", e.ID).
		Str("kind", string(e.Kind)).
		Str("severity", string(e.Severity)).
		Str("session_id", e.SessionID).
		Str("public_key", e.PublicKey).
		Fields(e.Detail).
		Msg("audit event")
	return nil
}

// AsyncSink forwards events to an inner sink from a single goroutine, so
// delivery order matches record order. When the buffer is full the event is
// dropped and counted.
type AsyncSink struct {
	inner   Sink
	queue   chan Event
	logger  zerolog.Logger
	onDrop  func()
	dropped atomic.Uint64

	closeOnce sync.Once
	done      chan struct{}
}

// AsyncOption configures an AsyncSink.
type AsyncOption func(*AsyncSink)

// WithDropHook is called once per dropped event.
func WithDropHook(fn func()) AsyncOption {
	return func(s *AsyncSink) {
		s.onDrop = fn
	}
}

// WithAsyncLogger sets the logger used to report inner sink failures.
func WithAsyncLogger(l zerolog.Logger) AsyncOption {
	return func(s *AsyncSink) {
		s.logger = l
	}
}

// NewAsyncSink starts the forwarding goroutine. Call Close to stop it.
func NewAsyncSink(inner Sink, buffer int, opts ...AsyncOption) *AsyncSink {
	if buffer <= 0 {
		buffer = 256
	}
	s := &AsyncSink{
		inner:  inner,
		queue:  make(chan Event, buffer),
		logger: zerolog.Nop(),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.run()
	return s
}

// Write enqueues e without blocking.
func (s *AsyncSink) Write(_ context.Context, e Event) error {
	select {
	case s.queue <- e:
	default:
		s.dropped.Add(1)
		if s.onDrop != nil {
			s.onDrop()
		}
	}
	return nil
}

// Dropped reports how many events were discarded because the buffer was full.
func (s *AsyncSink) Dropped() uint64 {
	return s.dropped.Load()
}

// Close drains the queue and stops the goroutine. Writes after Close panic.
func (s *AsyncSink) Close() {
	s.closeOnce.Do(func() {
		close(s.queue)
	})
	<-s.done
}

func (s *AsyncSink) run() {
	defer close(s.done)
	for e := range s.queue {
		if err := s.inner.Write(context.Background(), e); err != nil {
			s.logger.Warn().Err(err).Uint64("event_id", e.ID).Msg("async audit sink write failed")
		}
	}
}
