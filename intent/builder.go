// Package intent builds unsigned payment-program transactions.
//
// Builders are pure: every input, including the recent blockhash, is passed
// in, so the same parameters always produce the same bytes. Signing and
// submission belong to the caller.
package intent

import (
	"encoding/base64"
	"fmt"

	solana "github.com/gagliardetto/solana-go"

	blinkpay "github.com/blinkpay/blinkpay/go"
	"github.com/blinkpay/blinkpay/go/address"
)

// Kind names the program instruction an intent invokes.
type Kind string

const (
	KindPay           Kind = "pay"
	KindSplitPay      Kind = "pay_with_split"
	KindPartialRefund Kind = "refund_partial"
)

// PayParams describes a payment from Payer to the merchant owned by MerchantOwner.
type PayParams struct {
	Payer         solana.PublicKey
	MerchantOwner solana.PublicKey
	Mint          solana.PublicKey
	// Amount in token base units, at least 1.
	Amount uint64
	// ReceiptID is 1-32 bytes and must be reused when retrying the same payment.
	ReceiptID string
	// Request is an on-chain payment request account. Zero passes the system
	// program, which the program treats as "no request".
	Request solana.PublicKey
	// RecentBlockhash may be zero when the signer fills it in later.
	RecentBlockhash solana.Hash
	// TokenProgram defaults to the SPL token program.
	TokenProgram solana.PublicKey
}

// SplitPayParams is a payment where FeeBps of Amount goes to Platform.
type SplitPayParams struct {
	PayParams
	// Platform owns the token account that receives the fee.
	Platform solana.PublicKey
	// FeeBps is between 0 and 10000.
	FeeBps uint16
}

// RefundParams returns Amount of a receipt back to the payer's token account.
type RefundParams struct {
	MerchantAuthority solana.PublicKey
	Payer             solana.PublicKey
	Mint              solana.PublicKey
	// Receipt is the receipt account of the original payment.
	Receipt solana.PublicKey
	// ReceiptID derives Receipt from Payer when Receipt is zero.
	ReceiptID       string
	Amount          uint64
	RecentBlockhash solana.Hash
	TokenProgram    solana.PublicKey
}

// Addresses are the derived accounts an intent touches, base58 on the wire.
type Addresses struct {
	Merchant             solana.PublicKey  `json:"merchantPda"`
	Receipt              solana.PublicKey  `json:"receiptPda"`
	PayerTokenAccount    solana.PublicKey  `json:"payerAta"`
	MerchantTokenAccount solana.PublicKey  `json:"merchantAta"`
	PlatformTokenAccount *solana.PublicKey `json:"platformAta,omitempty"`
}

// Intent is an unsigned transaction plus the addresses it was built from.
type Intent struct {
	Kind        Kind                `json:"kind"`
	ReceiptID   string              `json:"receiptId"`
	Amount      uint64              `json:"amount"`
	FeePayer    solana.PublicKey    `json:"feePayer"`
	Addresses   Addresses           `json:"addresses"`
	Split       *Split              `json:"split,omitempty"`
	Serialized  []byte              `json:"-"`
	Transaction *solana.Transaction `json:"-"`
}

// Base64 returns the serialized unsigned transaction.
func (i *Intent) Base64() string {
	return base64.StdEncoding.EncodeToString(i.Serialized)
}

// Builder constructs intents for one program.
type Builder struct {
	deriver *address.Deriver
}

// NewBuilder creates a builder that derives addresses with deriver.
func NewBuilder(deriver *address.Deriver) *Builder {
	if deriver == nil {
		deriver = address.NewDeriver(address.DefaultProgramID)
	}
	return &Builder{deriver: deriver}
}

// ProgramID returns the program the builder targets.
func (b *Builder) ProgramID() solana.PublicKey {
	return b.deriver.ProgramID()
}

// MerchantAddress derives the merchant account for owner.
func (b *Builder) MerchantAddress(owner solana.PublicKey) (solana.PublicKey, error) {
	if owner.IsZero() {
		return solana.PublicKey{}, invalidAddress("merchantOwner")
	}
	return b.deriver.Merchant(owner)
}

// BuildPay builds a pay instruction.
func (b *Builder) BuildPay(p PayParams) (*Intent, error) {
	if err := validatePay(p); err != nil {
		return nil, err
	}
	accts, err := b.payAccounts(p)
	if err != nil {
		return nil, err
	}
	data, err := encodeInstruction(payDiscriminator, payArgs{ReceiptID: p.ReceiptID, ExpectedAmount: p.Amount})
	if err != nil {
		return nil, err
	}

	ix := solana.NewInstruction(b.ProgramID(), accts.metas(nil), data)
	return b.finish(KindPay, p.ReceiptID, p.Amount, p.Payer, p.RecentBlockhash, ix, accts.addresses(nil), nil)
}

// BuildSplitPay builds a pay_with_split instruction.
func (b *Builder) BuildSplitPay(p SplitPayParams) (*Intent, error) {
	if err := validatePay(p.PayParams); err != nil {
		return nil, err
	}
	if p.Platform.IsZero() {
		return nil, invalidAddress("platform")
	}
	split, err := SplitAmount(p.Amount, p.FeeBps)
	if err != nil {
		return nil, err
	}
	accts, err := b.payAccounts(p.PayParams)
	if err != nil {
		return nil, err
	}
	platformATA, err := address.TokenAccount(p.Platform, p.Mint)
	if err != nil {
		return nil, err
	}
	data, err := encodeInstruction(payWithSplitDiscriminator, payWithSplitArgs{
		ReceiptID:      p.ReceiptID,
		ExpectedAmount: p.Amount,
		FeeBps:         p.FeeBps,
	})
	if err != nil {
		return nil, err
	}

	ix := solana.NewInstruction(b.ProgramID(), accts.metas(&platformATA), data)
	return b.finish(KindSplitPay, p.ReceiptID, p.Amount, p.Payer, p.RecentBlockhash, ix, accts.addresses(&platformATA), &split)
}

// BuildPartialRefund builds a refund_partial instruction signed by the merchant authority.
func (b *Builder) BuildPartialRefund(p RefundParams) (*Intent, error) {
	switch {
	case p.MerchantAuthority.IsZero():
		return nil, invalidAddress("merchantAuthority")
	case p.Payer.IsZero():
		return nil, invalidAddress("payer")
	case p.Mint.IsZero():
		return nil, invalidAddress("mint")
	}
	if err := validateAmount(p.Amount); err != nil {
		return nil, err
	}
	receipt, err := b.refundReceipt(p)
	if err != nil {
		return nil, err
	}

	merchant, err := b.deriver.Merchant(p.MerchantAuthority)
	if err != nil {
		return nil, err
	}
	merchantATA, err := address.TokenAccount(p.MerchantAuthority, p.Mint)
	if err != nil {
		return nil, err
	}
	payerATA, err := address.TokenAccount(p.Payer, p.Mint)
	if err != nil {
		return nil, err
	}
	data, err := encodeInstruction(refundPartialDiscriminator, refundPartialArgs{Amount: p.Amount})
	if err != nil {
		return nil, err
	}

	metas := solana.AccountMetaSlice{
		solana.NewAccountMeta(p.MerchantAuthority, true, true),
		solana.NewAccountMeta(merchant, true, false),
		solana.NewAccountMeta(merchantATA, true, false),
		solana.NewAccountMeta(payerATA, true, false),
		solana.NewAccountMeta(receipt, true, false),
		solana.NewAccountMeta(tokenProgramOrDefault(p.TokenProgram), false, false),
	}
	ix := solana.NewInstruction(b.ProgramID(), metas, data)
	addrs := Addresses{
		Merchant:             merchant,
		Receipt:              receipt,
		PayerTokenAccount:    payerATA,
		MerchantTokenAccount: merchantATA,
	}
	return b.finish(KindPartialRefund, p.ReceiptID, p.Amount, p.MerchantAuthority, p.RecentBlockhash, ix, addrs, nil)
}

func (b *Builder) refundReceipt(p RefundParams) (solana.PublicKey, error) {
	if !p.Receipt.IsZero() {
		return p.Receipt, nil
	}
	if p.ReceiptID == "" {
		return solana.PublicKey{}, invalidAddress("receipt")
	}
	if err := validateReceiptID(p.ReceiptID); err != nil {
		return solana.PublicKey{}, err
	}
	return b.deriver.Receipt(p.Payer, p.ReceiptID)
}

type payAccounts struct {
	payer, request, merchant, merchantOwner, receipt solana.PublicKey
	payerATA, merchantATA, mint, tokenProgram        solana.PublicKey
}

func (b *Builder) payAccounts(p PayParams) (*payAccounts, error) {
	merchant, err := b.deriver.Merchant(p.MerchantOwner)
	if err != nil {
		return nil, err
	}
	receipt, err := b.deriver.Receipt(p.Payer, p.ReceiptID)
	if err != nil {
		return nil, err
	}
	payerATA, err := address.TokenAccount(p.Payer, p.Mint)
	if err != nil {
		return nil, err
	}
	merchantATA, err := address.TokenAccount(p.MerchantOwner, p.Mint)
	if err != nil {
		return nil, err
	}
	request := p.Request
	if request.IsZero() {
		request = solana.SystemProgramID
	}
	return &payAccounts{
		payer:         p.Payer,
		request:       request,
		merchant:      merchant,
		merchantOwner: p.MerchantOwner,
		receipt:       receipt,
		payerATA:      payerATA,
		merchantATA:   merchantATA,
		mint:          p.Mint,
		tokenProgram:  tokenProgramOrDefault(p.TokenProgram),
	}, nil
}

// metas orders accounts as the program expects; the platform token account
// follows the merchant token account for split payments.
func (a *payAccounts) metas(platformATA *solana.PublicKey) solana.AccountMetaSlice {
	metas := solana.AccountMetaSlice{
		solana.NewAccountMeta(a.payer, true, true),
		solana.NewAccountMeta(a.request, false, false),
		solana.NewAccountMeta(a.merchant, false, false),
		solana.NewAccountMeta(a.merchantOwner, false, false),
		solana.NewAccountMeta(a.receipt, true, false),
		solana.NewAccountMeta(a.payerATA, true, false),
		solana.NewAccountMeta(a.merchantATA, true, false),
	}
	if platformATA != nil {
		metas = append(metas, solana.NewAccountMeta(*platformATA, true, false))
	}
	return append(metas,
		solana.NewAccountMeta(a.mint, false, false),
		solana.NewAccountMeta(a.tokenProgram, false, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	)
}

func (a *payAccounts) addresses(platformATA *solana.PublicKey) Addresses {
	return Addresses{
		Merchant:             a.merchant,
		Receipt:              a.receipt,
		PayerTokenAccount:    a.payerATA,
		MerchantTokenAccount: a.merchantATA,
		PlatformTokenAccount: platformATA,
	}
}

func (b *Builder) finish(kind Kind, receiptID string, amount uint64, feePayer solana.PublicKey,
	blockhash solana.Hash, ix solana.Instruction, addrs Addresses, split *Split) (*Intent, error) {
	tx, err := solana.NewTransactionBuilder().
		AddInstruction(ix).
		SetRecentBlockHash(blockhash).
		SetFeePayer(feePayer).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	// Unsigned wire form carries zeroed signature slots.
	tx.Signatures = make([]solana.Signature, tx.Message.Header.NumRequiredSignatures)
	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to encode transaction: %w", err)
	}

	return &Intent{
		Kind:        kind,
		ReceiptID:   receiptID,
		Amount:      amount,
		FeePayer:    feePayer,
		Addresses:   addrs,
		Split:       split,
		Serialized:  raw,
		Transaction: tx,
	}, nil
}

func validatePay(p PayParams) error {
	switch {
	case p.Payer.IsZero():
		return invalidAddress("payer")
	case p.MerchantOwner.IsZero():
		return invalidAddress("merchantOwner")
	case p.Mint.IsZero():
		return invalidAddress("mint")
	}
	if err := validateAmount(p.Amount); err != nil {
		return err
	}
	return validateReceiptID(p.ReceiptID)
}

func validateAmount(amount uint64) error {
	if amount < 1 {
		return blinkpay.NewValidationError(blinkpay.ErrCodeInvalidAmount,
			"amount must be at least 1 base unit", map[string]interface{}{"amount": amount})
	}
	return nil
}

func validateReceiptID(id string) error {
	if id == "" || len(id) > address.MaxSeedLength {
		return blinkpay.NewValidationError(blinkpay.ErrCodeInvalidReceiptID,
			"receipt id must be 1-32 bytes", map[string]interface{}{"receiptId": id})
	}
	return nil
}

func invalidAddress(field string) error {
	return blinkpay.NewValidationError(blinkpay.ErrCodeInvalidAddress,
		field+" is required", map[string]interface{}{"field": field})
}

func tokenProgramOrDefault(p solana.PublicKey) solana.PublicKey {
	if p.IsZero() {
		return solana.TokenProgramID
	}
	return p
}
