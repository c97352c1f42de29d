package main

import (
	"context"
	"errors"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	solana "github.com/gagliardetto/solana-go"
	pkgerrors "github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	blinkpay "github.com/blinkpay/blinkpay/go"
	"github.com/blinkpay/blinkpay/go/address"
	"github.com/blinkpay/blinkpay/go/audit"
	"github.com/blinkpay/blinkpay/go/chain"
	"github.com/blinkpay/blinkpay/go/http"
	"github.com/blinkpay/blinkpay/go/intent"
	"github.com/blinkpay/blinkpay/go/metrics"
	"github.com/blinkpay/blinkpay/go/quote"
	"github.com/blinkpay/blinkpay/go/session"
	"github.com/blinkpay/blinkpay/go/store"
	"github.com/blinkpay/blinkpay/go/webhook"
)

// components holds everything serve wires together, so shutdown can release
// it in reverse order.
type components struct {
	server   *http.Server
	sessions *session.Store
	sinks    []*audit.AsyncSink
	redis    *redis.Client
	closers  []func() error
}

func (c *components) close(logger zerolog.Logger) {
	for _, s := range c.sinks {
		s.Close()
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			logger.Warn().Err(err).Msg("close failed")
		}
	}
}

// build wires the components described by cfg. reg receives all metrics.
func build(ctx context.Context, cfg *Config, logger zerolog.Logger, reg *prometheus.Registry) (*components, error) {
	c := &components{}
	m := metrics.New(reg)

	provider, err := cfg.Crypto.KeyProvider()
	if err != nil {
		return nil, err
	}

	if cfg.Redis.Addr != "" {
		c.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		c.closers = append(c.closers, c.redis.Close)
		if err := c.redis.Ping(ctx).Err(); err != nil {
			c.close(logger)
			return nil, pkgerrors.Wrap(err, "connect redis")
		}
	}

	// Audit: the log sink always, Redis when configured, both off the hot path.
	auditOpts := []audit.Option{
		audit.WithMaxEvents(cfg.Audit.MaxEvents),
		audit.WithLogger(logger),
	}
	sinks := []audit.Sink{audit.NewLoggerSink(logger)}
	if c.redis != nil {
		sinks = append(sinks, audit.NewRedisSink(c.redis, "", cfg.Audit.MaxEvents))
	}
	for _, s := range sinks {
		async := audit.NewAsyncSink(s, cfg.Audit.SinkBuffer,
			audit.WithDropHook(m.AuditDropped),
			audit.WithAsyncLogger(logger))
		c.sinks = append(c.sinks, async)
		auditOpts = append(auditOpts, audit.WithSink(async))
	}
	auditLog := audit.NewLog(auditOpts...)

	clock := blinkpay.Clock(blinkpay.SystemClock)
	phrases := session.DefaultPhraseGenerator()
	phrases.Count = cfg.Session.PhraseWords
	sessionOpts := []session.Option{
		session.WithClock(clock),
		session.WithDuration(cfg.Session.Duration),
		session.WithMaxSessions(cfg.Session.MaxSessions),
		session.WithPhraseGenerator(phrases),
		session.WithLogger(logger),
		session.WithObserver(m),
	}
	if c.redis != nil {
		sessionOpts = append(sessionOpts, session.WithRepository(session.NewRedisRepository(c.redis, clock)))
	}
	c.sessions, err = session.NewStore(provider, auditLog, sessionOpts...)
	if err != nil {
		c.close(logger)
		return nil, err
	}
	if err := c.sessions.Load(ctx); err != nil {
		c.close(logger)
		return nil, pkgerrors.Wrap(err, "load sessions")
	}
	m.TrackActiveSessions(c.sessions.Len)

	var programID solana.PublicKey
	if cfg.Solana.ProgramID != "" {
		programID, err = solana.PublicKeyFromBase58(cfg.Solana.ProgramID)
		if err != nil {
			c.close(logger)
			return nil, pkgerrors.Wrap(err, "solana.program_id")
		}
	}
	deriver := address.NewDeriver(programID)

	webhookOpts := []webhook.Option{
		webhook.WithTimeout(cfg.Webhook.Timeout),
		webhook.WithLogger(logger),
		webhook.WithObserver(m),
	}
	if c.redis != nil {
		webhookOpts = append(webhookOpts, webhook.WithStore(webhook.NewRedisStore(c.redis, cfg.Webhook.IdempotencyTTL)))
	} else {
		webhookOpts = append(webhookOpts, webhook.WithStore(webhook.NewInMemoryStore(cfg.Webhook.IdempotencyTTL)))
	}

	var records store.Store
	if cfg.Postgres.DSN != "" {
		db, err := store.OpenPostgres(ctx, cfg.Postgres.DSN)
		if err != nil {
			c.close(logger)
			return nil, err
		}
		c.closers = append(c.closers, db.Close)
		pg := store.NewPostgres(db, clock)
		if err := pg.Migrate(ctx); err != nil {
			c.close(logger)
			return nil, err
		}
		records = pg
	} else {
		records = store.NewMemory(clock)
	}

	httpCfg := http.Config{
		Sessions:    c.sessions,
		Audit:       auditLog,
		Builder:     intent.NewBuilder(deriver),
		Quotes:      newQuoteService(cfg.Quote),
		Webhooks:    webhook.NewDispatcher(webhookOpts...),
		Deriver:     deriver,
		Store:       records,
		Metrics:     m,
		Gatherer:    reg,
		Logger:      logger,
		FrontendURL: cfg.HTTP.FrontendURL,
		RateLimit:   cfg.HTTP.RateLimitRPS,
		RateBurst:   cfg.HTTP.RateLimitBurst,
		Clock:       clock,
	}
	if cfg.Solana.RPCURL != "" {
		client := chain.NewClient(cfg.Solana.RPCURL, chain.WithLogger(logger))
		c.closers = append(c.closers, client.Close)
		httpCfg.Chain = client
	} else {
		logger.Warn().Msg("solana.rpc_url not set; intents will carry a zero blockhash")
	}

	c.server, err = http.NewServer(httpCfg)
	if err != nil {
		c.close(logger)
		return nil, err
	}
	return c, nil
}

// serve runs the API until SIGINT or SIGTERM.
func serve(parent context.Context, cfg *Config, logger zerolog.Logger) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	c, err := build(ctx, cfg, logger, reg)
	if err != nil {
		return err
	}
	defer c.close(logger)

	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		c.sessions.Run(ctx, cfg.Session.SweepInterval)
	}()

	srv := &nethttp.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           c.server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.HTTP.Addr).Str("version", version).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			stop()
			<-sweepDone
			return pkgerrors.Wrap(err, "http server")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)
	stop()
	<-sweepDone
	return err
}

func newQuoteService(cfg QuoteConfig) *quote.Service {
	if cfg.RateURL == "" {
		return quote.NewService()
	}
	return quote.NewService(quote.WithRateSource(quote.NewHTTPRates(quote.HTTPRatesConfig{
		BaseURL:  cfg.RateURL,
		CacheTTL: cfg.RateCacheTTL,
	})))
}
