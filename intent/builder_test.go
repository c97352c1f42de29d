package intent

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"testing"

	bin "github.com/gagliardetto/binary"
	solana "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	blinkpay "github.com/blinkpay/blinkpay/go"
	"github.com/blinkpay/blinkpay/go/address"
)

type fixture struct {
	builder  *Builder
	payer    solana.PublicKey
	owner    solana.PublicKey
	mint     solana.PublicKey
	platform solana.PublicKey
	hash     solana.Hash
}

func newFixture() *fixture {
	return &fixture{
		builder:  NewBuilder(address.NewDeriver(address.DefaultProgramID)),
		payer:    solana.NewWallet().PublicKey(),
		owner:    solana.NewWallet().PublicKey(),
		mint:     solana.NewWallet().PublicKey(),
		platform: solana.NewWallet().PublicKey(),
		hash:     solana.Hash{1, 2, 3},
	}
}

func (f *fixture) pay() PayParams {
	return PayParams{
		Payer:           f.payer,
		MerchantOwner:   f.owner,
		Mint:            f.mint,
		Amount:          2_000_000,
		ReceiptID:       "blink-1700000000000",
		RecentBlockhash: f.hash,
	}
}

func decodeTx(t *testing.T, raw []byte) *solana.Transaction {
	t.Helper()
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	require.NoError(t, err)
	return tx
}

func instructionAccounts(t *testing.T, tx *solana.Transaction) []solana.PublicKey {
	t.Helper()
	require.Len(t, tx.Message.Instructions, 1)
	ix := tx.Message.Instructions[0]
	out := make([]solana.PublicKey, len(ix.Accounts))
	for i, idx := range ix.Accounts {
		out[i] = tx.Message.AccountKeys[idx]
	}
	return out
}

func TestDiscriminators(t *testing.T) {
	assert.Equal(t, [8]byte{119, 18, 216, 65, 192, 117, 122, 220}, payDiscriminator)
	assert.Equal(t, [8]byte{175, 144, 120, 154, 8, 90, 235, 42}, payWithSplitDiscriminator)
	assert.Equal(t, [8]byte{52, 106, 149, 138, 100, 246, 223, 31}, refundPartialDiscriminator)
}

func TestBuildPay(t *testing.T) {
	f := newFixture()
	in, err := f.builder.BuildPay(f.pay())
	require.NoError(t, err)

	assert.Equal(t, KindPay, in.Kind)
	assert.Equal(t, f.payer, in.FeePayer)
	assert.Nil(t, in.Split)
	assert.Nil(t, in.Addresses.PlatformTokenAccount)

	merchant, err := f.builder.MerchantAddress(f.owner)
	require.NoError(t, err)
	assert.Equal(t, merchant, in.Addresses.Merchant)

	decoded, err := base64.StdEncoding.DecodeString(in.Base64())
	require.NoError(t, err)
	tx := decodeTx(t, decoded)

	require.Len(t, tx.Signatures, 1)
	assert.Equal(t, solana.Signature{}, tx.Signatures[0], "unsigned intent must carry an empty signature slot")
	assert.Equal(t, f.payer, tx.Message.AccountKeys[0], "payer is fee payer")
	assert.Equal(t, f.hash, tx.Message.RecentBlockhash)

	accts := instructionAccounts(t, tx)
	want := []solana.PublicKey{
		f.payer,
		solana.SystemProgramID,
		in.Addresses.Merchant,
		f.owner,
		in.Addresses.Receipt,
		in.Addresses.PayerTokenAccount,
		in.Addresses.MerchantTokenAccount,
		f.mint,
		solana.TokenProgramID,
		solana.SystemProgramID,
	}
	assert.Equal(t, want, accts)
	assert.Equal(t, address.DefaultProgramID, tx.Message.AccountKeys[tx.Message.Instructions[0].ProgramIDIndex])

	data := []byte(tx.Message.Instructions[0].Data)
	assert.Equal(t, payDiscriminator[:], data[:8])
	idLen := binary.LittleEndian.Uint32(data[8:12])
	assert.Equal(t, "blink-1700000000000", string(data[12:12+idLen]))
	assert.Equal(t, uint64(2_000_000), binary.LittleEndian.Uint64(data[12+idLen:]))
}

func TestBuildPayDeterministic(t *testing.T) {
	f := newFixture()
	a, err := f.builder.BuildPay(f.pay())
	require.NoError(t, err)
	b, err := f.builder.BuildPay(f.pay())
	require.NoError(t, err)
	assert.True(t, bytes.Equal(a.Serialized, b.Serialized))
}

func TestBuildPayWithRequest(t *testing.T) {
	f := newFixture()
	merchant, err := f.builder.MerchantAddress(f.owner)
	require.NoError(t, err)
	request, err := address.NewDeriver(address.DefaultProgramID).Request(merchant, "req-1")
	require.NoError(t, err)

	p := f.pay()
	p.Request = request
	in, err := f.builder.BuildPay(p)
	require.NoError(t, err)
	assert.Equal(t, request, instructionAccounts(t, in.Transaction)[1])
}

func TestBuildSplitPay(t *testing.T) {
	f := newFixture()
	in, err := f.builder.BuildSplitPay(SplitPayParams{PayParams: f.pay(), Platform: f.platform, FeeBps: 250})
	require.NoError(t, err)

	require.NotNil(t, in.Split)
	assert.Equal(t, uint64(50_000), in.Split.Fee)
	assert.Equal(t, uint64(1_950_000), in.Split.MerchantAmount)

	platformATA, err := address.TokenAccount(f.platform, f.mint)
	require.NoError(t, err)
	require.NotNil(t, in.Addresses.PlatformTokenAccount)
	assert.Equal(t, platformATA, *in.Addresses.PlatformTokenAccount)

	tx := decodeTx(t, in.Serialized)
	accts := instructionAccounts(t, tx)
	require.Len(t, accts, 11)
	assert.Equal(t, in.Addresses.MerchantTokenAccount, accts[6])
	assert.Equal(t, platformATA, accts[7])
	assert.Equal(t, f.mint, accts[8])

	data := []byte(tx.Message.Instructions[0].Data)
	assert.Equal(t, payWithSplitDiscriminator[:], data[:8])
	assert.Equal(t, uint16(250), binary.LittleEndian.Uint16(data[len(data)-2:]))
}

func TestBuildPartialRefund(t *testing.T) {
	f := newFixture()
	paid, err := f.builder.BuildPay(f.pay())
	require.NoError(t, err)
	receipt := paid.Addresses.Receipt

	in, err := f.builder.BuildPartialRefund(RefundParams{
		MerchantAuthority: f.owner,
		Payer:             f.payer,
		Mint:              f.mint,
		Receipt:           receipt,
		Amount:            500,
		RecentBlockhash:   f.hash,
	})
	require.NoError(t, err)

	assert.Equal(t, KindPartialRefund, in.Kind)
	assert.Equal(t, f.owner, in.FeePayer)
	assert.Equal(t, receipt, in.Addresses.Receipt)
	assert.Equal(t, paid.Addresses.Merchant, in.Addresses.Merchant)

	tx := decodeTx(t, in.Serialized)
	assert.Equal(t, f.owner, tx.Message.AccountKeys[0])
	accts := instructionAccounts(t, tx)
	assert.Equal(t, []solana.PublicKey{
		f.owner,
		in.Addresses.Merchant,
		in.Addresses.MerchantTokenAccount,
		in.Addresses.PayerTokenAccount,
		receipt,
		solana.TokenProgramID,
	}, accts)

	data := []byte(tx.Message.Instructions[0].Data)
	require.Len(t, data, 16)
	assert.Equal(t, refundPartialDiscriminator[:], data[:8])
	assert.Equal(t, uint64(500), binary.LittleEndian.Uint64(data[8:]))
}

func TestBuildPartialRefund_ReceiptAddressIsNotRederived(t *testing.T) {
	f := newFixture()
	// Any known receipt account is used as given, even one no receipt id maps to.
	receipt := solana.NewWallet().PublicKey()
	in, err := f.builder.BuildPartialRefund(RefundParams{
		MerchantAuthority: f.owner,
		Payer:             f.payer,
		Mint:              f.mint,
		Receipt:           receipt,
		ReceiptID:         "ignored",
		Amount:            1,
	})
	require.NoError(t, err)
	assert.Equal(t, receipt, in.Addresses.Receipt)
	assert.Equal(t, receipt, instructionAccounts(t, decodeTx(t, in.Serialized))[4])
}

func TestBuildPartialRefund_FromReceiptID(t *testing.T) {
	f := newFixture()
	paid, err := f.builder.BuildPay(f.pay())
	require.NoError(t, err)

	in, err := f.builder.BuildPartialRefund(RefundParams{
		MerchantAuthority: f.owner,
		Payer:             f.payer,
		Mint:              f.mint,
		ReceiptID:         f.pay().ReceiptID,
		Amount:            1,
	})
	require.NoError(t, err)
	assert.Equal(t, paid.Addresses.Receipt, in.Addresses.Receipt)
}

func TestBuildValidation(t *testing.T) {
	f := newFixture()

	tests := []struct {
		name  string
		build func() error
		code  string
	}{
		{"zero amount", func() error {
			p := f.pay()
			p.Amount = 0
			_, err := f.builder.BuildPay(p)
			return err
		}, blinkpay.ErrCodeInvalidAmount},
		{"empty receipt id", func() error {
			p := f.pay()
			p.ReceiptID = ""
			_, err := f.builder.BuildPay(p)
			return err
		}, blinkpay.ErrCodeInvalidReceiptID},
		{"oversized receipt id", func() error {
			p := f.pay()
			p.ReceiptID = string(bytes.Repeat([]byte("x"), 33))
			_, err := f.builder.BuildPay(p)
			return err
		}, blinkpay.ErrCodeInvalidReceiptID},
		{"missing payer", func() error {
			p := f.pay()
			p.Payer = solana.PublicKey{}
			_, err := f.builder.BuildPay(p)
			return err
		}, blinkpay.ErrCodeInvalidAddress},
		{"fee bps over 10000", func() error {
			_, err := f.builder.BuildSplitPay(SplitPayParams{PayParams: f.pay(), Platform: f.platform, FeeBps: 10_001})
			return err
		}, blinkpay.ErrCodeInvalidFeeBps},
		{"missing platform", func() error {
			_, err := f.builder.BuildSplitPay(SplitPayParams{PayParams: f.pay(), FeeBps: 100})
			return err
		}, blinkpay.ErrCodeInvalidAddress},
		{"refund zero amount", func() error {
			_, err := f.builder.BuildPartialRefund(RefundParams{MerchantAuthority: f.owner, Payer: f.payer, Mint: f.mint, Receipt: f.platform})
			return err
		}, blinkpay.ErrCodeInvalidAmount},
		{"refund without receipt", func() error {
			_, err := f.builder.BuildPartialRefund(RefundParams{MerchantAuthority: f.owner, Payer: f.payer, Mint: f.mint, Amount: 1})
			return err
		}, blinkpay.ErrCodeInvalidAddress},
		{"refund receipt id too long", func() error {
			_, err := f.builder.BuildPartialRefund(RefundParams{MerchantAuthority: f.owner, Payer: f.payer, Mint: f.mint, Amount: 1,
				ReceiptID: string(bytes.Repeat([]byte("x"), 33))})
			return err
		}, blinkpay.ErrCodeInvalidReceiptID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ve, ok := blinkpay.AsValidationError(tt.build())
			require.True(t, ok)
			assert.Equal(t, tt.code, ve.Code)
		})
	}
}
