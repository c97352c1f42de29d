package intent

import (
	"math/bits"

	blinkpay "github.com/blinkpay/blinkpay/go"
)

// MaxFeeBps is 100%.
const MaxFeeBps = 10_000

// Split is the fee breakdown of a split payment.
type Split struct {
	FeeBps         uint16 `json:"feeBps"`
	Fee            uint64 `json:"fee"`
	MerchantAmount uint64 `json:"merchantAmount"`
}

// SplitAmount computes floor(amount*feeBps/10000) with a 128-bit
// intermediate. The merchant receives the remainder, so fee+merchant == amount.
func SplitAmount(amount uint64, feeBps uint16) (Split, error) {
	if feeBps > MaxFeeBps {
		return Split{}, blinkpay.NewValidationError(blinkpay.ErrCodeInvalidFeeBps,
			"fee bps must be between 0 and 10000", map[string]interface{}{"feeBps": feeBps})
	}
	hi, lo := bits.Mul64(amount, uint64(feeBps))
	fee, _ := bits.Div64(hi, lo, MaxFeeBps)
	return Split{FeeBps: feeBps, Fee: fee, MerchantAmount: amount - fee}, nil
}
