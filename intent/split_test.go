package intent

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	blinkpay "github.com/blinkpay/blinkpay/go"
)

func TestSplitAmount(t *testing.T) {
	tests := []struct {
		name     string
		amount   uint64
		bps      uint16
		fee      uint64
		merchant uint64
	}{
		{"2.5 percent", 2_000_000, 250, 50_000, 1_950_000},
		{"zero fee", 1_000, 0, 0, 1_000},
		{"full fee", 1_000, 10_000, 1_000, 0},
		{"floors fractional fee", 999, 1, 0, 999},
		{"floors at boundary", 10_001, 1, 1, 10_000},
		{"max amount no overflow", math.MaxUint64, 10_000, math.MaxUint64, 0},
		{"max amount half", math.MaxUint64, 5_000, math.MaxUint64 / 2, math.MaxUint64 - math.MaxUint64/2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := SplitAmount(tt.amount, tt.bps)
			require.NoError(t, err)
			assert.Equal(t, tt.fee, s.Fee)
			assert.Equal(t, tt.merchant, s.MerchantAmount)
			assert.Equal(t, tt.amount, s.Fee+s.MerchantAmount)
		})
	}
}

func TestSplitAmountConservation(t *testing.T) {
	for amount := uint64(1); amount < 5_000; amount += 37 {
		for bps := uint16(0); bps <= MaxFeeBps; bps += 173 {
			s, err := SplitAmount(amount, bps)
			require.NoError(t, err)
			require.Equal(t, amount, s.Fee+s.MerchantAmount)
			require.LessOrEqual(t, s.Fee*MaxFeeBps, amount*uint64(bps))
		}
	}
}

func TestSplitAmountRejectsOverflowingBps(t *testing.T) {
	_, err := SplitAmount(100, 10_001)
	ve, ok := blinkpay.AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, blinkpay.ErrCodeInvalidFeeBps, ve.Code)
}
