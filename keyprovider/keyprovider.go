// Package keyprovider encrypts session secrets at rest.
//
// Supplying and protecting the master key is the caller's responsibility.
// NewStatic takes raw key material (for example loaded from a KMS or an
// environment secret) and NewPassphrase stretches an operator passphrase with
// Argon2id. Both produce an XChaCha20-Poly1305 sealer whose output is
// nonce || ciphertext || tag.
package keyprovider

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	// MinMasterKeySize is the shortest master key accepted by NewStatic.
	MinMasterKeySize = 32
	// MinSaltSize is the shortest salt accepted by NewPassphrase.
	MinSaltSize = 16

	hkdfInfo = "blinkpay-session-secret-v1"
)

var (
	ErrAuthFailed        = errors.New("keyprovider: authentication failed")
	ErrInvalidCiphertext = errors.New("keyprovider: ciphertext is malformed")
	ErrWeakKey           = errors.New("keyprovider: key material too short")
)

// KeyProvider seals and opens session secrets.
// Implementations must be safe for concurrent use.
type KeyProvider interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

// Argon2Params tunes passphrase stretching.
type Argon2Params struct {
	Time     uint32
	MemoryKB uint32
	Threads  uint8
}

// DefaultArgon2Params is 2 passes over 64 MiB on one thread.
var DefaultArgon2Params = Argon2Params{Time: 2, MemoryKB: 64 * 1024, Threads: 1}

// AEADProvider is a KeyProvider backed by XChaCha20-Poly1305.
type AEADProvider struct {
	aead cipher.AEAD
	rand io.Reader
}

// NewStatic derives the data key from masterKey with HKDF-SHA256.
func NewStatic(masterKey []byte) (*AEADProvider, error) {
	if len(masterKey) < MinMasterKeySize {
		return nil, ErrWeakKey
	}
	key := make([]byte, chacha20poly1305.KeySize)
	defer zeroBytes(key)
	if _, err := io.ReadFull(hkdf.New(sha256.New, masterKey, nil, []byte(hkdfInfo)), key); err != nil {
		return nil, fmt.Errorf("derive data key: %w", err)
	}
	return newAEADProvider(key)
}

// NewPassphrase derives the data key from passphrase and salt with Argon2id.
// The derivation runs once, here.
func NewPassphrase(passphrase string, salt []byte, params Argon2Params) (*AEADProvider, error) {
	if passphrase == "" || len(salt) < MinSaltSize {
		return nil, ErrWeakKey
	}
	if params.Time == 0 || params.MemoryKB == 0 || params.Threads == 0 {
		params = DefaultArgon2Params
	}
	key := argon2.IDKey([]byte(passphrase), salt, params.Time, params.MemoryKB, params.Threads, chacha20poly1305.KeySize)
	defer zeroBytes(key)
	return newAEADProvider(key)
}

func newAEADProvider(key []byte) (*AEADProvider, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return &AEADProvider{aead: aead, rand: rand.Reader}, nil
}

// Encrypt seals plaintext under a fresh random nonce.
func (p *AEADProvider) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, chacha20poly1305.NonceSizeX, chacha20poly1305.NonceSizeX+len(plaintext)+p.aead.Overhead())
	if _, err := io.ReadFull(p.rand, nonce); err != nil {
		return nil, fmt.Errorf("read nonce: %w", err)
	}
	return p.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a value produced by Encrypt.
func (p *AEADProvider) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < chacha20poly1305.NonceSizeX+p.aead.Overhead() {
		return nil, ErrInvalidCiphertext
	}
	nonce, sealed := ciphertext[:chacha20poly1305.NonceSizeX], ciphertext[chacha20poly1305.NonceSizeX:]
	plaintext, err := p.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}

// GenerateMasterKey returns MinMasterKeySize random bytes.
func GenerateMasterKey() ([]byte, error) {
	key := make([]byte, MinMasterKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

var _ KeyProvider = (*AEADProvider)(nil)
