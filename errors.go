package blinkpay

import (
	"errors"
	"fmt"
)

// ValidationError reports a request that was rejected before any work was done.
type ValidationError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Validation error codes
const (
	ErrCodeInvalidAmount     = "invalid_amount"
	ErrCodeInvalidFeeBps     = "invalid_fee_bps"
	ErrCodeInvalidReceiptID  = "invalid_receipt_id"
	ErrCodeInvalidRequestID  = "invalid_request_id"
	ErrCodeInvalidAddress    = "invalid_address"
	ErrCodeInvalidSeed       = "invalid_seed"
	ErrCodeInvalidCurrency   = "invalid_currency"
	ErrCodeInvalidDecimals   = "invalid_decimals"
	ErrCodeInvalidFiatAmount = "invalid_fiat_amount"
	ErrCodeInvalidWebhook    = "invalid_webhook"
)

// NewValidationError creates a new validation error
func NewValidationError(code, message string, details map[string]interface{}) *ValidationError {
	return &ValidationError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// AsValidationError unwraps err into a *ValidationError if it is one.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

var (
	// ErrNotFound is returned by persistence collaborators for missing records.
	ErrNotFound = errors.New("blinkpay: not found")
	// ErrUnsupportedCurrency is returned by rate sources that cannot price a currency.
	ErrUnsupportedCurrency = errors.New("blinkpay: unsupported currency")
)
