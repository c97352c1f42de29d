package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	blinkpay "github.com/blinkpay/blinkpay/go"
)

type errorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// fail maps err onto a status code. Unexpected errors are logged and
// reported without detail.
func (s *Server) fail(c *gin.Context, err error) {
	if ve, ok := blinkpay.AsValidationError(err); ok {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: ve.Message, Code: ve.Code, Details: ve.Details})
		return
	}
	switch {
	case errors.Is(err, blinkpay.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, blinkpay.ErrUnsupportedCurrency):
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Code: blinkpay.ErrCodeInvalidCurrency})
	default:
		s.logger.Error().Err(err).Str("route", c.FullPath()).Msg("request failed")
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: msg})
}

func notFound(c *gin.Context, what string) {
	c.AbortWithStatusJSON(http.StatusNotFound, errorResponse{Error: what + " not found"})
}

func unavailable(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusServiceUnavailable, errorResponse{Error: msg})
}
