package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/blinkpay/blinkpay/go/store"
)

const defaultRecentLimit = 10

func (s *Server) handleDashboardStats(c *gin.Context) {
	merchant := c.Query("merchant")
	if merchant == "" {
		badRequest(c, "merchant required")
		return
	}
	stats, err := s.cfg.Store.DashboardStats(c.Request.Context(), merchant)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) handleRecentReceipts(c *gin.Context) {
	merchant := c.Query("merchant")
	if merchant == "" {
		badRequest(c, "merchant required")
		return
	}
	limit := defaultRecentLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			badRequest(c, "limit must be a positive integer")
			return
		}
		limit = n
	}
	receipts, err := s.cfg.Store.ListReceipts(c.Request.Context(), merchant, limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, receipts)
}

type saveReceiptRequest struct {
	ReceiptID string              `json:"receiptId" binding:"required"`
	Payer     string              `json:"payer" binding:"required"`
	Merchant  string              `json:"merchant" binding:"required"`
	Mint      string              `json:"mint" binding:"required"`
	Amount    uint64              `json:"amount" binding:"required"`
	Signature string              `json:"signature"`
	Status    store.ReceiptStatus `json:"status" binding:"omitempty,oneof=pending confirmed failed"`
	FeeBps    uint16              `json:"feeBps" binding:"max=10000"`
}

func (s *Server) handleSaveReceipt(c *gin.Context) {
	var req saveReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	saved, err := s.cfg.Store.UpsertReceipt(c.Request.Context(), store.Receipt{
		ReceiptID: req.ReceiptID,
		Payer:     req.Payer,
		Merchant:  req.Merchant,
		Mint:      req.Mint,
		Amount:    req.Amount,
		Signature: req.Signature,
		Status:    req.Status,
		FeeBps:    req.FeeBps,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}
