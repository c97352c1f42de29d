package session

import (
	"context"
	"fmt"

	solana "github.com/gagliardetto/solana-go"
)

// Signer signs with a session key. It is handed out by Store.Create and
// Store.Signer and never exposes the raw key.
type Signer struct {
	privateKey solana.PrivateKey
}

func newSigner(privateKey solana.PrivateKey) *Signer {
	return &Signer{privateKey: privateKey}
}

// Address returns the session public key.
func (s *Signer) Address() solana.PublicKey {
	return s.privateKey.PublicKey()
}

// Sign signs an arbitrary message with Ed25519.
func (s *Signer) Sign(message []byte) (solana.Signature, error) {
	return s.privateKey.Sign(message)
}

// SignTransaction adds the session signature to tx at the slot of the
// session public key.
func (s *Signer) SignTransaction(_ context.Context, tx *solana.Transaction) error {
	messageBytes, err := tx.Message.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	signature, err := s.privateKey.Sign(messageBytes)
	if err != nil {
		return fmt.Errorf("failed to sign: %w", err)
	}

	accountIndex, err := tx.GetAccountIndex(s.privateKey.PublicKey())
	if err != nil {
		return fmt.Errorf("failed to get account index: %w", err)
	}
	if int(accountIndex) >= int(tx.Message.Header.NumRequiredSignatures) {
		return fmt.Errorf("session key %s is not a required signer", s.Address())
	}

	if len(tx.Signatures) < int(tx.Message.Header.NumRequiredSignatures) {
		sigs := make([]solana.Signature, tx.Message.Header.NumRequiredSignatures)
		copy(sigs, tx.Signatures)
		tx.Signatures = sigs
	}
	tx.Signatures[accountIndex] = signature

	return nil
}
