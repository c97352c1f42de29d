package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	blinkpay "github.com/blinkpay/blinkpay/go"
	"github.com/blinkpay/blinkpay/go/webhook"
)

func (s *Server) handleSendWebhook(c *gin.Context) {
	var req webhook.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	res, err := s.cfg.Webhooks.Send(c.Request.Context(), req)
	if err != nil {
		if _, ok := blinkpay.AsValidationError(err); ok {
			s.fail(c, err)
			return
		}
		s.logger.Error().Err(err).Msg("webhook dispatch unavailable")
		unavailable(c, "webhook dispatch unavailable")
		return
	}
	c.JSON(http.StatusOK, res)
}
