// Package http exposes the payment core over a JSON API built on gin.
//
// The server owns no state of its own: every collaborator is constructed by
// the caller and passed in through Config, so tests and the daemon wire the
// same handlers to different backends.
package http

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	solana "github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	blinkpay "github.com/blinkpay/blinkpay/go"
	"github.com/blinkpay/blinkpay/go/address"
	"github.com/blinkpay/blinkpay/go/audit"
	"github.com/blinkpay/blinkpay/go/chain"
	"github.com/blinkpay/blinkpay/go/intent"
	"github.com/blinkpay/blinkpay/go/metrics"
	"github.com/blinkpay/blinkpay/go/quote"
	"github.com/blinkpay/blinkpay/go/session"
	"github.com/blinkpay/blinkpay/go/store"
	"github.com/blinkpay/blinkpay/go/webhook"
)

// DefaultFrontendURL is the base of generated pay and login links.
const DefaultFrontendURL = "http://localhost:3000"

// Chain is the cluster collaborator. *chain.Client implements it.
type Chain interface {
	LatestBlockhash(ctx context.Context) (solana.Hash, error)
	Submit(ctx context.Context, serialized []byte) (solana.Signature, error)
	Confirmed(ctx context.Context, sig solana.Signature) (chain.Status, error)
}

// Config carries the server's collaborators.
type Config struct {
	Sessions *session.Store
	Audit    *audit.Log
	Builder  *intent.Builder
	Quotes   *quote.Service
	Webhooks *webhook.Dispatcher

	// Deriver defaults to one for the builder's program.
	Deriver *address.Deriver
	// Store defaults to an in-memory store.
	Store store.Store
	// Chain is optional. Without it intents carry a zero blockhash and the
	// verify and submit routes answer 503.
	Chain Chain
	// Metrics and Gatherer are optional; /metrics is served when Gatherer is set.
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer

	Logger zerolog.Logger
	// FrontendURL defaults to DefaultFrontendURL.
	FrontendURL string
	// RateLimit is requests per second per client IP; zero disables limiting.
	RateLimit float64
	RateBurst int
	Clock     blinkpay.Clock
}

// Server routes API requests to the core components.
type Server struct {
	cfg     Config
	now     blinkpay.Clock
	logger  zerolog.Logger
	limiter *clientLimiter
	router  *gin.Engine
}

// NewServer validates cfg and builds the router.
func NewServer(cfg Config) (*Server, error) {
	switch {
	case cfg.Sessions == nil:
		return nil, errors.New("http: session store is required")
	case cfg.Audit == nil:
		return nil, errors.New("http: audit log is required")
	case cfg.Builder == nil:
		return nil, errors.New("http: intent builder is required")
	case cfg.Quotes == nil:
		return nil, errors.New("http: quote service is required")
	case cfg.Webhooks == nil:
		return nil, errors.New("http: webhook dispatcher is required")
	}
	if cfg.Deriver == nil {
		cfg.Deriver = address.NewDeriver(cfg.Builder.ProgramID())
	}
	if cfg.Store == nil {
		cfg.Store = store.NewMemory(cfg.Clock)
	}
	if cfg.FrontendURL == "" {
		cfg.FrontendURL = DefaultFrontendURL
	}

	s := &Server{
		cfg:     cfg,
		now:     cfg.Clock.OrSystem(),
		logger:  cfg.Logger.With().Str("component", "http").Logger(),
		limiter: newClientLimiter(cfg.RateLimit, cfg.RateBurst, 10*time.Minute),
	}
	s.router = s.routes()
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.observe(), s.rateLimit())

	router.GET("/healthz", s.handleHealth)
	if s.cfg.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	sessions := router.Group("/sessions")
	{
		sessions.POST("", s.handleCreateSession)
		sessions.GET("", s.handleListSessions)
		sessions.POST("/restore", s.handleRestoreSession)
		sessions.GET("/:id", s.handleGetSession)
		sessions.DELETE("/:id", s.handleRevokeSession)
		sessions.POST("/:id/extend", s.handleExtendSession)
		sessions.POST("/:id/backup", s.handleBackupSession)
		sessions.POST("/:id/sign", s.handleSignWithSession)
	}

	router.POST("/quotes", s.handleCreateQuote)
	router.POST("/merchants/register", s.handleRegisterMerchant)

	payments := router.Group("/payments")
	{
		payments.POST("/create-request", s.handleCreatePaymentRequest)
		payments.POST("/build-pay", s.handleBuildPay)
		payments.POST("/build-pay-split", s.handleBuildSplitPay)
		payments.POST("/build-refund-partial", s.handleBuildPartialRefund)
		payments.POST("/submit", s.handleSubmit)
		payments.GET("/verify/:signature", s.handleVerify)
	}

	router.POST("/webhooks/send", s.handleSendWebhook)

	dashboard := router.Group("/dashboard")
	{
		dashboard.GET("/stats", s.handleDashboardStats)
		dashboard.GET("/recent", s.handleRecentReceipts)
		dashboard.POST("/receipts", s.handleSaveReceipt)
	}

	auditGroup := router.Group("/audit")
	{
		auditGroup.GET("", s.handleAuditEvents)
		auditGroup.GET("/summary", s.handleAuditSummary)
		auditGroup.GET("/export", s.handleAuditExport)
	}

	return router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": s.cfg.Sessions.Len()})
}

// observe logs each request and records its latency.
func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.ObserveHTTP(c.Request.Method, route, status, elapsed)
		}

		ev := s.logger.Debug()
		if status >= http.StatusInternalServerError {
			ev = s.logger.Error()
		}
		ev.Str("method", c.Request.Method).
			Str("route", route).
			Int("status", status).
			Dur("latency", elapsed).
			Msg("request")
	}
}

func (s *Server) loginURL(sessionID string, pub solana.PublicKey) string {
	q := url.Values{}
	q.Set("sessionId", sessionID)
	q.Set("pubkey", pub.String())
	return s.cfg.FrontendURL + "/login?" + q.Encode()
}

func (s *Server) payURL(merchantOwner string, amount uint64, mint, requestID string) string {
	q := url.Values{}
	q.Set("merchant", merchantOwner)
	q.Set("amount", strconv.FormatUint(amount, 10))
	q.Set("mint", mint)
	q.Set("requestId", requestID)
	return s.cfg.FrontendURL + "/pay?" + q.Encode()
}

// defaultReceiptID is prefix-<unix ms>.
func (s *Server) defaultReceiptID(prefix string) string {
	return prefix + "-" + strconv.FormatInt(s.now().UnixMilli(), 10)
}
