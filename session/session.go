package session

import (
	"crypto/rand"
	"time"

	solana "github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// Session is an ephemeral signing identity. The private key is only held
// encrypted; use Store.Signer to sign with it.
type Session struct {
	ID              string           `json:"id"`
	PublicKey       solana.PublicKey `json:"publicKey"`
	EncryptedSecret []byte           `json:"encryptedSecret"`
	CreatedAt       time.Time        `json:"createdAt"`
	ExpiresAt       time.Time        `json:"expiresAt"`
	LastUsedAt      time.Time        `json:"lastUsedAt"`
	IsBackedUp      bool             `json:"isBackedUp"`

	// seq breaks LastUsedAt ties in insertion order.
	seq uint64
}

// Expired reports whether the session is unusable at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

func (s *Session) clone() *Session {
	c := *s
	c.EncryptedSecret = append([]byte(nil), s.EncryptedSecret...)
	return &c
}

// Info is a Session without key material.
type Info struct {
	ID         string           `json:"id"`
	PublicKey  solana.PublicKey `json:"publicKey"`
	CreatedAt  time.Time        `json:"createdAt"`
	ExpiresAt  time.Time        `json:"expiresAt"`
	LastUsedAt time.Time        `json:"lastUsedAt"`
	IsBackedUp bool             `json:"isBackedUp"`
}

// Info strips the encrypted secret.
func (s *Session) Info() Info {
	return Info{
		ID:         s.ID,
		PublicKey:  s.PublicKey,
		CreatedAt:  s.CreatedAt,
		ExpiresAt:  s.ExpiresAt,
		LastUsedAt: s.LastUsedAt,
		IsBackedUp: s.IsBackedUp,
	}
}

// BackupBundle lets a user recreate a session's key in a new session.
// BackupPhrase is the only credential checked on restore and is never stored.
type BackupBundle struct {
	EncryptedSecret []byte    `json:"encryptedSecret"`
	SessionID       string    `json:"sessionId"`
	CreatedAt       time.Time `json:"createdAt"`
	BackupPhrase    string    `json:"backupPhrase"`
}

const idPrefix = "session_"

func newSessionID() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return idPrefix + base58.Encode(b[:]), nil
}
