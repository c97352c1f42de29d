package http

import (
	"encoding/base64"
	"net/http"

	solana "github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"

	blinkpay "github.com/blinkpay/blinkpay/go"
	"github.com/blinkpay/blinkpay/go/intent"
	"github.com/blinkpay/blinkpay/go/store"
)

// intentResponse is an intent with its transaction base64 encoded.
type intentResponse struct {
	*intent.Intent
	TransactionBase64 string `json:"transactionBase64"`
}

func newIntentResponse(in *intent.Intent) intentResponse {
	return intentResponse{Intent: in, TransactionBase64: in.Base64()}
}

func parseKey(field, value string) (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(value)
	if err != nil {
		return solana.PublicKey{}, blinkpay.NewValidationError(blinkpay.ErrCodeInvalidAddress,
			field+" is not a valid base58 public key", map[string]interface{}{"field": field})
	}
	return pk, nil
}

type keyField struct {
	name  string
	value string
	dst   *solana.PublicKey
}

func parseKeys(fields ...keyField) error {
	for _, f := range fields {
		pk, err := parseKey(f.name, f.value)
		if err != nil {
			return err
		}
		*f.dst = pk
	}
	return nil
}

// recentBlockhash asks the chain for a blockhash, or returns zero without one.
func (s *Server) recentBlockhash(c *gin.Context) (solana.Hash, bool) {
	if s.cfg.Chain == nil {
		return solana.Hash{}, true
	}
	hash, err := s.cfg.Chain.LatestBlockhash(c.Request.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to fetch blockhash")
		c.AbortWithStatusJSON(http.StatusBadGateway, errorResponse{Error: "chain unavailable"})
		return solana.Hash{}, false
	}
	return hash, true
}

func (s *Server) intentBuilt(in *intent.Intent) {
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.IntentBuilt(string(in.Kind))
	}
}

type registerMerchantRequest struct {
	MerchantAuthority string `json:"merchantAuthority" binding:"required"`
	DisplayName       string `json:"displayName"`
}

func (s *Server) handleRegisterMerchant(c *gin.Context) {
	var req registerMerchantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	owner, err := parseKey("merchantAuthority", req.MerchantAuthority)
	if err != nil {
		s.fail(c, err)
		return
	}
	pda, err := s.cfg.Builder.MerchantAddress(owner)
	if err != nil {
		s.fail(c, err)
		return
	}
	m, err := s.cfg.Store.UpsertMerchant(c.Request.Context(), store.Merchant{
		Authority:   owner.String(),
		DisplayName: req.DisplayName,
		MerchantPDA: pda.String(),
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"merchantPda": m.MerchantPDA, "merchant": m})
}

type createPaymentRequest struct {
	MerchantOwner string `json:"merchantOwner" binding:"required"`
	Amount        uint64 `json:"amount" binding:"required"`
	Mint          string `json:"mint" binding:"required"`
	RequestID     string `json:"requestId"`
	Description   string `json:"description"`
	// Payer and ReturnTx together attach a ready-to-sign pay intent.
	Payer    string `json:"payer"`
	ReturnTx bool   `json:"returnTx"`
}

type createPaymentResponse struct {
	RequestID string          `json:"requestId"`
	PayURL    string          `json:"payUrl"`
	Intent    *intentResponse `json:"tx,omitempty"`
}

func (s *Server) handleCreatePaymentRequest(c *gin.Context) {
	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	var owner, mint solana.PublicKey
	if err := parseKeys(
		keyField{"merchantOwner", req.MerchantOwner, &owner},
		keyField{"mint", req.Mint, &mint},
	); err != nil {
		s.fail(c, err)
		return
	}

	created, err := s.cfg.Store.CreatePaymentRequest(c.Request.Context(), store.PaymentRequest{
		RequestID:     req.RequestID,
		MerchantOwner: owner.String(),
		Amount:        req.Amount,
		Mint:          mint.String(),
		Description:   req.Description,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	resp := createPaymentResponse{
		RequestID: created.RequestID,
		PayURL:    s.payURL(created.MerchantOwner, created.Amount, created.Mint, created.RequestID),
	}

	if req.ReturnTx && req.Payer != "" {
		payer, err := parseKey("payer", req.Payer)
		if err != nil {
			s.fail(c, err)
			return
		}
		hash, ok := s.recentBlockhash(c)
		if !ok {
			return
		}
		in, err := s.cfg.Builder.BuildPay(intent.PayParams{
			Payer:           payer,
			MerchantOwner:   owner,
			Mint:            mint,
			Amount:          req.Amount,
			ReceiptID:       s.defaultReceiptID("blink"),
			RecentBlockhash: hash,
		})
		if err != nil {
			s.fail(c, err)
			return
		}
		s.intentBuilt(in)
		ir := newIntentResponse(in)
		resp.Intent = &ir
	}
	c.JSON(http.StatusOK, resp)
}

type buildPayRequest struct {
	Payer         string `json:"payer" binding:"required"`
	MerchantOwner string `json:"merchantOwner" binding:"required"`
	Mint          string `json:"mint" binding:"required"`
	Amount        uint64 `json:"amount" binding:"required"`
	ReceiptID     string `json:"receiptId"`
	// RequestID links the payment to an on-chain payment request account.
	RequestID string `json:"requestId"`
}

func (s *Server) payParams(c *gin.Context, req buildPayRequest, prefix string) (intent.PayParams, bool) {
	var p intent.PayParams
	if err := parseKeys(
		keyField{"payer", req.Payer, &p.Payer},
		keyField{"merchantOwner", req.MerchantOwner, &p.MerchantOwner},
		keyField{"mint", req.Mint, &p.Mint},
	); err != nil {
		s.fail(c, err)
		return p, false
	}
	p.Amount = req.Amount
	p.ReceiptID = req.ReceiptID
	if p.ReceiptID == "" {
		p.ReceiptID = s.defaultReceiptID(prefix)
	}
	if req.RequestID != "" {
		merchant, err := s.cfg.Deriver.Merchant(p.MerchantOwner)
		if err != nil {
			s.fail(c, err)
			return p, false
		}
		p.Request, err = s.cfg.Deriver.Request(merchant, req.RequestID)
		if err != nil {
			s.fail(c, err)
			return p, false
		}
	}
	hash, ok := s.recentBlockhash(c)
	if !ok {
		return p, false
	}
	p.RecentBlockhash = hash
	return p, true
}

func (s *Server) handleBuildPay(c *gin.Context) {
	var req buildPayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	p, ok := s.payParams(c, req, "blink")
	if !ok {
		return
	}
	in, err := s.cfg.Builder.BuildPay(p)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.intentBuilt(in)
	c.JSON(http.StatusOK, newIntentResponse(in))
}

type buildSplitPayRequest struct {
	buildPayRequest
	Platform string `json:"platform" binding:"required"`
	FeeBps   uint16 `json:"feeBps"`
}

func (s *Server) handleBuildSplitPay(c *gin.Context) {
	var req buildSplitPayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	platform, err := parseKey("platform", req.Platform)
	if err != nil {
		s.fail(c, err)
		return
	}
	p, ok := s.payParams(c, req.buildPayRequest, "split")
	if !ok {
		return
	}
	in, err := s.cfg.Builder.BuildSplitPay(intent.SplitPayParams{PayParams: p, Platform: platform, FeeBps: req.FeeBps})
	if err != nil {
		s.fail(c, err)
		return
	}
	s.intentBuilt(in)
	c.JSON(http.StatusOK, newIntentResponse(in))
}

type buildRefundRequest struct {
	MerchantAuthority string `json:"merchantAuthority" binding:"required"`
	Payer             string `json:"payer" binding:"required"`
	Mint              string `json:"mint" binding:"required"`
	Amount            uint64 `json:"amount" binding:"required"`
	// Receipt is the receipt account of the payment being refunded.
	Receipt string `json:"receipt" binding:"required"`
}

func (s *Server) handleBuildPartialRefund(c *gin.Context) {
	var req buildRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	var p intent.RefundParams
	if err := parseKeys(
		keyField{"merchantAuthority", req.MerchantAuthority, &p.MerchantAuthority},
		keyField{"payer", req.Payer, &p.Payer},
		keyField{"mint", req.Mint, &p.Mint},
		keyField{"receipt", req.Receipt, &p.Receipt},
	); err != nil {
		s.fail(c, err)
		return
	}
	p.Amount = req.Amount
	hash, ok := s.recentBlockhash(c)
	if !ok {
		return
	}
	p.RecentBlockhash = hash

	in, err := s.cfg.Builder.BuildPartialRefund(p)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.intentBuilt(in)
	c.JSON(http.StatusOK, newIntentResponse(in))
}

type submitRequest struct {
	Transaction string `json:"transaction" binding:"required"`
}

func (s *Server) handleSubmit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if s.cfg.Chain == nil {
		unavailable(c, "chain client not configured")
		return
	}
	raw, err := base64.StdEncoding.DecodeString(req.Transaction)
	if err != nil {
		badRequest(c, "transaction must be base64")
		return
	}
	sig, err := s.cfg.Chain.Submit(c.Request.Context(), raw)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"signature": sig.String()})
}

func (s *Server) handleVerify(c *gin.Context) {
	if s.cfg.Chain == nil {
		unavailable(c, "chain client not configured")
		return
	}
	sig, err := solana.SignatureFromBase58(c.Param("signature"))
	if err != nil {
		badRequest(c, "signature is not valid base58")
		return
	}
	status, err := s.cfg.Chain.Confirmed(c.Request.Context(), sig)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"signature": sig.String(),
		"status":    status,
		"confirmed": status.Landed(),
	})
}
