// Package chain talks to a Solana JSON-RPC node: blockhashes for new
// intents, submission of signed transactions and signature status lookups.
package chain

import (
	"context"
	"fmt"

	solana "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"
)

// DefaultRPCURL is the public devnet endpoint.
const DefaultRPCURL = "https://api.devnet.solana.com"

// Status is the confirmation level of a signature.
type Status string

const (
	StatusUnknown   Status = "unknown"
	StatusProcessed Status = "processed"
	StatusConfirmed Status = "confirmed"
	StatusFinalized Status = "finalized"
	StatusFailed    Status = "failed"
)

// Landed reports whether the transaction reached the cluster without error.
func (s Status) Landed() bool {
	return s == StatusProcessed || s == StatusConfirmed || s == StatusFinalized
}

// Client wraps the solana-go RPC client.
type Client struct {
	rpc        *rpc.Client
	blockhash  rpc.CommitmentType
	preflight  rpc.CommitmentType
	skipChecks bool
	logger     zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBlockhashCommitment sets the commitment used for LatestBlockhash.
//
// Default: finalized
func WithBlockhashCommitment(c rpc.CommitmentType) Option {
	return func(cl *Client) {
		cl.blockhash = c
	}
}

// WithPreflight sets the preflight commitment for Submit, or skips preflight
// simulation when skip is true.
//
// Default: confirmed, preflight enabled
func WithPreflight(c rpc.CommitmentType, skip bool) Option {
	return func(cl *Client) {
		cl.preflight = c
		cl.skipChecks = skip
	}
}

// WithLogger sets the client logger.
func WithLogger(l zerolog.Logger) Option {
	return func(cl *Client) {
		cl.logger = l
	}
}

// NewClient connects to endpoint, or DefaultRPCURL when empty.
func NewClient(endpoint string, opts ...Option) *Client {
	if endpoint == "" {
		endpoint = DefaultRPCURL
	}
	c := &Client{
		rpc:       rpc.New(endpoint),
		blockhash: rpc.CommitmentFinalized,
		preflight: rpc.CommitmentConfirmed,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LatestBlockhash returns a recent blockhash for new transactions.
func (c *Client) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	out, err := c.rpc.GetLatestBlockhash(ctx, c.blockhash)
	if err != nil {
		return solana.Hash{}, fmt.Errorf("failed to get latest blockhash: %w", err)
	}
	if out == nil || out.Value == nil {
		return solana.Hash{}, fmt.Errorf("failed to get latest blockhash: empty response")
	}
	return out.Value.Blockhash, nil
}

// Submit sends a serialized, fully signed transaction and returns its
// signature.
func (c *Client) Submit(ctx context.Context, serialized []byte) (solana.Signature, error) {
	sig, err := c.rpc.SendRawTransactionWithOpts(ctx, serialized, rpc.TransactionOpts{
		SkipPreflight:       c.skipChecks,
		PreflightCommitment: c.preflight,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to send transaction: %w", err)
	}
	c.logger.Info().Str("signature", sig.String()).Msg("transaction submitted")
	return sig, nil
}

// Confirmed looks up the status of sig, searching transaction history.
// A signature the node has never seen is StatusUnknown, not an error.
func (c *Client) Confirmed(ctx context.Context, sig solana.Signature) (Status, error) {
	out, err := c.rpc.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return StatusUnknown, fmt.Errorf("failed to get signature status: %w", err)
	}
	if out == nil || len(out.Value) == 0 || out.Value[0] == nil {
		return StatusUnknown, nil
	}
	st := out.Value[0]
	if st.Err != nil {
		return StatusFailed, nil
	}
	switch st.ConfirmationStatus {
	case rpc.ConfirmationStatusProcessed:
		return StatusProcessed, nil
	case rpc.ConfirmationStatusConfirmed:
		return StatusConfirmed, nil
	case rpc.ConfirmationStatusFinalized:
		return StatusFinalized, nil
	}
	return StatusUnknown, nil
}

// Close releases the underlying HTTP connections.
func (c *Client) Close() error {
	return c.rpc.Close()
}
