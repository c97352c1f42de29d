package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/blinkpay/blinkpay/go/quote"
)

type createQuoteRequest struct {
	FiatCurrency  string  `json:"fiatCurrency"`
	FiatAmount    float64 `json:"fiatAmount" binding:"required"`
	TokenMint     string  `json:"tokenMint" binding:"required"`
	TokenDecimals *uint8  `json:"tokenDecimals"`
	TTLSeconds    int64   `json:"ttlSeconds"`
}

func (s *Server) handleCreateQuote(c *gin.Context) {
	var req createQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	q, err := s.cfg.Quotes.CreateQuote(c.Request.Context(), quote.CreateQuoteOptions{
		FiatCurrency:  req.FiatCurrency,
		FiatAmount:    req.FiatAmount,
		TokenMint:     req.TokenMint,
		TokenDecimals: req.TokenDecimals,
		TTL:           time.Duration(req.TTLSeconds) * time.Second,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.QuoteCreated(q.FiatCurrency)
	}
	c.JSON(http.StatusOK, q)
}
