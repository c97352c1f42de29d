// Package address derives the deterministic on-chain addresses used by the
// payment program: merchant, receipt and payment request accounts, and
// associated token accounts.
package address

import (
	"fmt"

	solana "github.com/gagliardetto/solana-go"

	blinkpay "github.com/blinkpay/blinkpay/go"
)

// DefaultProgramID is the deployed payment program.
var DefaultProgramID = solana.MustPublicKeyFromBase58("BLiNkPay11111111111111111111111111111111111")

// Seed roles. Each role namespaces its own address space.
const (
	RoleMerchant = "merchant"
	RoleReceipt  = "receipt"
	RoleRequest  = "request"
)

const (
	// MaxSeedLength is the longest single seed the runtime accepts.
	MaxSeedLength = 32
	// maxSeeds leaves room for the bump seed appended during the search.
	maxSeeds = 15
)

// Deriver computes program-derived addresses for one program.
type Deriver struct {
	programID solana.PublicKey
}

// NewDeriver creates a deriver for programID, or DefaultProgramID when zero.
func NewDeriver(programID solana.PublicKey) *Deriver {
	if programID.IsZero() {
		programID = DefaultProgramID
	}
	return &Deriver{programID: programID}
}

// ProgramID returns the program addresses are derived for.
func (d *Deriver) ProgramID() solana.PublicKey {
	return d.programID
}

// Derive returns the program-derived address for role and seeds. The result
// is off the ed25519 curve, so no private key exists for it.
func (d *Deriver) Derive(role string, seeds ...[]byte) (solana.PublicKey, error) {
	addr, _, err := d.DeriveWithBump(role, seeds...)
	return addr, err
}

// DeriveWithBump is Derive that also returns the bump seed.
func (d *Deriver) DeriveWithBump(role string, seeds ...[]byte) (solana.PublicKey, uint8, error) {
	if role == "" || len(role) > MaxSeedLength {
		return solana.PublicKey{}, 0, blinkpay.NewValidationError(blinkpay.ErrCodeInvalidSeed,
			"role must be 1-32 bytes", map[string]interface{}{"role": role})
	}
	if len(seeds)+1 > maxSeeds {
		return solana.PublicKey{}, 0, blinkpay.NewValidationError(blinkpay.ErrCodeInvalidSeed,
			fmt.Sprintf("at most %d seeds allowed", maxSeeds-1), nil)
	}

	all := make([][]byte, 0, len(seeds)+1)
	all = append(all, []byte(role))
	for i, s := range seeds {
		if len(s) > MaxSeedLength {
			return solana.PublicKey{}, 0, blinkpay.NewValidationError(blinkpay.ErrCodeInvalidSeed,
				"seed exceeds 32 bytes", map[string]interface{}{"index": i, "length": len(s)})
		}
		all = append(all, s)
	}

	addr, bump, err := solana.FindProgramAddress(all, d.programID)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("find program address: %w", err)
	}
	return addr, bump, nil
}

// Merchant derives the merchant account owned by owner.
func (d *Deriver) Merchant(owner solana.PublicKey) (solana.PublicKey, error) {
	return d.Derive(RoleMerchant, owner.Bytes())
}

// Receipt derives the receipt account for payer and receiptID.
func (d *Deriver) Receipt(payer solana.PublicKey, receiptID string) (solana.PublicKey, error) {
	if receiptID == "" || len(receiptID) > MaxSeedLength {
		return solana.PublicKey{}, blinkpay.NewValidationError(blinkpay.ErrCodeInvalidReceiptID,
			"receipt id must be 1-32 bytes", map[string]interface{}{"receiptId": receiptID})
	}
	return d.Derive(RoleReceipt, payer.Bytes(), []byte(receiptID))
}

// Request derives the payment request account for merchant and requestID.
func (d *Deriver) Request(merchant solana.PublicKey, requestID string) (solana.PublicKey, error) {
	if requestID == "" || len(requestID) > MaxSeedLength {
		return solana.PublicKey{}, blinkpay.NewValidationError(blinkpay.ErrCodeInvalidRequestID,
			"request id must be 1-32 bytes", map[string]interface{}{"requestId": requestID})
	}
	return d.Derive(RoleRequest, merchant.Bytes(), []byte(requestID))
}

// TokenAccount returns the associated token account of owner for mint.
func TokenAccount(owner, mint solana.PublicKey) (solana.PublicKey, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("find associated token address: %w", err)
	}
	return ata, nil
}
