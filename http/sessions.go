package http

import (
	"encoding/base64"
	"math"
	"net/http"
	"time"

	bin "github.com/gagliardetto/binary"
	solana "github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"

	"github.com/blinkpay/blinkpay/go/session"
	"github.com/blinkpay/blinkpay/go/store"
)

type createSessionResponse struct {
	Session  session.Info `json:"session"`
	LoginURL string       `json:"loginUrl"`
}

func (s *Server) handleCreateSession(c *gin.Context) {
	ctx := c.Request.Context()
	sess, _, err := s.cfg.Sessions.Create(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}
	rec := store.SessionRecord{ID: sess.ID, PublicKey: sess.PublicKey.String(), UserAgent: c.GetHeader("User-Agent")}
	if _, err := s.cfg.Store.CreateSession(ctx, rec); err != nil {
		s.logger.Warn().Err(err).Str("session_id", sess.ID).Msg("failed to record session")
	}
	c.JSON(http.StatusCreated, createSessionResponse{
		Session:  sess.Info(),
		LoginURL: s.loginURL(sess.ID, sess.PublicKey),
	})
}

func (s *Server) handleListSessions(c *gin.Context) {
	active := s.cfg.Sessions.ListActive(c.Request.Context())
	out := make([]session.Info, 0, len(active))
	for _, sess := range active {
		out = append(out, sess.Info())
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetSession(c *gin.Context) {
	sess, ok := s.cfg.Sessions.Get(c.Request.Context(), c.Param("id"))
	if !ok {
		notFound(c, "session")
		return
	}
	c.JSON(http.StatusOK, sess.Info())
}

func (s *Server) handleRevokeSession(c *gin.Context) {
	if !s.cfg.Sessions.Revoke(c.Request.Context(), c.Param("id")) {
		notFound(c, "session")
		return
	}
	c.Status(http.StatusNoContent)
}

// maxExtendSeconds is the largest extension that fits a time.Duration.
const maxExtendSeconds = math.MaxInt64 / int64(time.Second)

type extendRequest struct {
	// Seconds <= 0 extends by the default session duration.
	Seconds int64 `json:"seconds"`
}

func (s *Server) handleExtendSession(c *gin.Context) {
	var req extendRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
	}
	if req.Seconds > maxExtendSeconds {
		badRequest(c, "seconds is too large")
		return
	}
	ctx := c.Request.Context()
	id := c.Param("id")
	if !s.cfg.Sessions.Extend(ctx, id, time.Duration(req.Seconds)*time.Second) {
		notFound(c, "session")
		return
	}
	sess, ok := s.cfg.Sessions.Get(ctx, id)
	if !ok {
		notFound(c, "session")
		return
	}
	c.JSON(http.StatusOK, sess.Info())
}

func (s *Server) handleBackupSession(c *gin.Context) {
	bundle, ok := s.cfg.Sessions.GenerateBackup(c.Request.Context(), c.Param("id"))
	if !ok {
		notFound(c, "session")
		return
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, bundle)
}

type restoreRequest struct {
	Bundle session.BackupBundle `json:"bundle" binding:"required"`
	Phrase string               `json:"phrase" binding:"required"`
}

func (s *Server) handleRestoreSession(c *gin.Context) {
	var req restoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	sess, ok := s.cfg.Sessions.RestoreFromBackup(c.Request.Context(), &req.Bundle, req.Phrase)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "backup could not be restored"})
		return
	}
	c.JSON(http.StatusCreated, sess.Info())
}

type signRequest struct {
	Transaction string `json:"transaction" binding:"required"`
	// Submit sends the signed transaction when a chain client is configured.
	Submit bool `json:"submit"`
}

type signResponse struct {
	Transaction string `json:"transaction"`
	Signature   string `json:"signature,omitempty"`
	Submitted   bool   `json:"submitted"`
}

func (s *Server) handleSignWithSession(c *gin.Context) {
	var req signRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	tx, err := decodeTransaction(req.Transaction)
	if err != nil {
		badRequest(c, "invalid transaction: "+err.Error())
		return
	}
	if req.Submit && s.cfg.Chain == nil {
		unavailable(c, "chain client not configured")
		return
	}

	ctx := c.Request.Context()
	signer, ok := s.cfg.Sessions.Signer(ctx, c.Param("id"))
	if !ok {
		notFound(c, "session")
		return
	}
	if err := signer.SignTransaction(ctx, tx); err != nil {
		badRequest(c, err.Error())
		return
	}
	raw, err := tx.MarshalBinary()
	if err != nil {
		s.fail(c, err)
		return
	}

	resp := signResponse{Transaction: base64.StdEncoding.EncodeToString(raw)}
	if req.Submit {
		sig, err := s.cfg.Chain.Submit(ctx, raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadGateway, errorResponse{Error: err.Error()})
			return
		}
		resp.Signature = sig.String()
		resp.Submitted = true
	}
	c.JSON(http.StatusOK, resp)
}

func decodeTransaction(b64 string) (*solana.Transaction, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	return solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
}
