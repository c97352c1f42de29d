package intent

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	bin "github.com/gagliardetto/binary"
)

// discriminator returns the 8-byte Anchor sighash for a global instruction.
func discriminator(name string) [8]byte {
	var d [8]byte
	sum := sha256.Sum256([]byte("global:" + name))
	copy(d[:], sum[:8])
	return d
}

var (
	payDiscriminator           = discriminator("pay")
	payWithSplitDiscriminator  = discriminator("pay_with_split")
	refundPartialDiscriminator = discriminator("refund_partial")
)

type payArgs struct {
	ReceiptID      string
	ExpectedAmount uint64
}

type payWithSplitArgs struct {
	ReceiptID      string
	ExpectedAmount uint64
	FeeBps         uint16
}

type refundPartialArgs struct {
	Amount uint64
}

// encodeInstruction lays out discriminator || borsh(args).
func encodeInstruction(disc [8]byte, args interface{}) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Write(disc[:])
	if err := bin.NewBorshEncoder(buf).Encode(args); err != nil {
		return nil, fmt.Errorf("borsh encode: %w", err)
	}
	return buf.Bytes(), nil
}
