// Package session issues, extends, revokes and backs up ephemeral signing
// keys for users without an installed wallet.
//
// A Store holds at most MaxSessions live sessions. Expired sessions are
// treated as deleted on every read and purged after every mutation and by
// the periodic sweep; beyond capacity the least recently used session is
// evicted. Every transition is recorded in the audit ledger.
package session

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/subtle"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	solana "github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	blinkpay "github.com/blinkpay/blinkpay/go"
	"github.com/blinkpay/blinkpay/go/audit"
	"github.com/blinkpay/blinkpay/go/keyprovider"
)

// Removal reasons recorded in the audit detail and reported to the Observer.
const (
	ReasonRevoked = "revoked"
	ReasonExpired = "expired"
	ReasonEvicted = "evicted"
)

// ErrNoKeyProvider is returned by NewStore without a KeyProvider.
var ErrNoKeyProvider = errors.New("session: key provider is required")

// Auditor records security events. *audit.Log implements it.
type Auditor interface {
	Record(kind audit.Kind, sessionID, publicKey string, severity audit.Severity, detail map[string]interface{}) audit.Event
}

// Store is the session key store. All operations, including the sweep,
// are serialized by one mutex.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	seq      uint64

	provider keyprovider.KeyProvider
	auditor  Auditor
	now      blinkpay.Clock
	cfg      config
	observer Observer
	logger   zerolog.Logger
}

// NewStore creates a store that seals keys with provider and records events
// with auditor. A nil auditor gets a private audit.Log.
func NewStore(provider keyprovider.KeyProvider, auditor Auditor, opts ...Option) (*Store, error) {
	if provider == nil {
		return nil, ErrNoKeyProvider
	}
	cfg := config{
		duration:    DefaultDuration,
		maxSessions: DefaultMaxSessions,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.duration <= 0 {
		cfg.duration = DefaultDuration
	}
	if cfg.maxSessions <= 0 {
		cfg.maxSessions = DefaultMaxSessions
	}
	if cfg.phrases == nil {
		cfg.phrases = DefaultPhraseGenerator()
	}
	if auditor == nil {
		auditor = audit.NewLog(audit.WithClock(cfg.now))
	}
	var observer Observer = nopObserver{}
	if cfg.observer != nil {
		observer = cfg.observer
	}

	return &Store{
		sessions: make(map[string]*Session),
		provider: provider,
		auditor:  auditor,
		now:      cfg.now.OrSystem(),
		cfg:      cfg,
		observer: observer,
		logger:   cfg.logger.With().Str("component", "session").Logger(),
	}, nil
}

// Create generates a fresh keypair and stores it as a new session. The
// returned Signer is the only handle on the private key outside the store.
func (s *Store) Create(ctx context.Context) (*Session, *Signer, error) {
	_, priv, err := ed25519.GenerateKey(s.cfg.entropy)
	if err != nil {
		return nil, nil, fmt.Errorf("generate session key: %w", err)
	}
	key := solana.PrivateKey(priv)
	sealed, err := s.provider.Encrypt(key)
	if err != nil {
		return nil, nil, fmt.Errorf("encrypt session key: %w", err)
	}
	id, err := newSessionID()
	if err != nil {
		return nil, nil, fmt.Errorf("generate session id: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sess := &Session{
		ID:              id,
		PublicKey:       key.PublicKey(),
		EncryptedSecret: sealed,
		CreatedAt:       now,
		ExpiresAt:       now.Add(s.cfg.duration),
		LastUsedAt:      now,
	}
	s.insertLocked(ctx, sess)
	s.cleanupLocked(ctx, now)
	s.record(audit.KindSessionCreated, sess, audit.SeverityMedium, map[string]interface{}{"keyType": "walletless"})
	s.observer.SessionCreated()

	s.logger.Info().Str("session_id", sess.ID).Str("public_key", sess.PublicKey.String()).Msg("session created")
	return sess.clone(), newSigner(key), nil
}

// Get returns a live session and marks it used. An expired session is
// removed and reported as absent.
func (s *Store) Get(ctx context.Context, id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sess, ok := s.lookupLocked(ctx, id, now)
	if !ok {
		return nil, false
	}
	s.touchLocked(ctx, sess, now)
	return sess.clone(), true
}

// Signer decrypts the session key for signing, with the same lookup
// semantics as Get.
func (s *Store) Signer(ctx context.Context, id string) (*Signer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sess, ok := s.lookupLocked(ctx, id, now)
	if !ok {
		return nil, false
	}
	secret, err := s.provider.Decrypt(sess.EncryptedSecret)
	if err != nil || !validSecret(secret, sess.PublicKey) {
		s.logger.Error().Err(err).Str("session_id", id).Msg("stored session key could not be opened")
		s.record(audit.KindSecurityWarning, sess, audit.SeverityHigh, map[string]interface{}{"reason": "decrypt_failed"})
		return nil, false
	}
	s.touchLocked(ctx, sess, now)
	s.record(audit.KindKeyAccessed, sess, audit.SeverityLow, nil)
	return newSigner(solana.PrivateKey(secret)), true
}

// Extend pushes expiry to now+d, or now+session duration when d <= 0.
func (s *Store) Extend(ctx context.Context, id string, d time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sess, ok := s.lookupLocked(ctx, id, now)
	if !ok {
		return false
	}
	if d <= 0 {
		d = s.cfg.duration
	}
	sess.ExpiresAt = now.Add(d)
	s.touchLocked(ctx, sess, now)
	s.record(audit.KindSessionExtended, sess, audit.SeverityLow, map[string]interface{}{
		"additionalSeconds": int64(d / time.Second),
		"newExpiration":     sess.ExpiresAt.UTC().Format(time.RFC3339),
	})
	s.cleanupLocked(ctx, now)
	return true
}

// Revoke deletes a live session.
func (s *Store) Revoke(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sess, ok := s.lookupLocked(ctx, id, now)
	if !ok {
		return false
	}
	s.removeLocked(ctx, sess, ReasonRevoked)
	s.cleanupLocked(ctx, now)
	s.logger.Info().Str("session_id", id).Msg("session revoked")
	return true
}

// GenerateBackup issues a bundle with a fresh phrase and marks the session
// backed up. The phrase is returned once and not retained.
func (s *Store) GenerateBackup(ctx context.Context, id string) (*BackupBundle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sess, ok := s.lookupLocked(ctx, id, now)
	if !ok {
		return nil, false
	}
	phrase, err := s.cfg.phrases.Generate()
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", id).Msg("backup phrase generation failed")
		return nil, false
	}

	sess.IsBackedUp = true
	s.touchLocked(ctx, sess, now)
	s.record(audit.KindBackupGenerated, sess, audit.SeverityHigh, map[string]interface{}{
		"backupPhraseLength": s.cfg.phrases.Count,
	})
	s.observer.BackupGenerated()

	return &BackupBundle{
		EncryptedSecret: append([]byte(nil), sess.EncryptedSecret...),
		SessionID:       sess.ID,
		CreatedAt:       sess.CreatedAt,
		BackupPhrase:    phrase,
	}, true
}

// RestoreFromBackup recreates the bundled key as a new session with a new
// ID and a fresh expiry. A wrong phrase and an undecryptable bundle are
// indistinguishable to the caller.
func (s *Store) RestoreFromBackup(ctx context.Context, bundle *BackupBundle, phrase string) (*Session, bool) {
	if bundle == nil || subtle.ConstantTimeCompare([]byte(bundle.BackupPhrase), []byte(phrase)) != 1 {
		return s.restoreFailed(bundle)
	}
	secret, err := s.provider.Decrypt(bundle.EncryptedSecret)
	if err != nil || len(secret) != ed25519.PrivateKeySize {
		return s.restoreFailed(bundle)
	}
	key := solana.PrivateKey(secret)
	if !validSecret(secret, key.PublicKey()) {
		return s.restoreFailed(bundle)
	}
	id, err := newSessionID()
	if err != nil {
		return s.restoreFailed(bundle)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	created := bundle.CreatedAt
	if created.IsZero() || created.After(now) {
		created = now
	}
	sess := &Session{
		ID:              id,
		PublicKey:       key.PublicKey(),
		EncryptedSecret: append([]byte(nil), bundle.EncryptedSecret...),
		CreatedAt:       created,
		ExpiresAt:       now.Add(s.cfg.duration),
		LastUsedAt:      now,
		IsBackedUp:      true,
	}
	s.insertLocked(ctx, sess)
	s.cleanupLocked(ctx, now)
	s.record(audit.KindBackupRestored, sess, audit.SeverityHigh, map[string]interface{}{"restoredFrom": bundle.SessionID})
	s.observer.BackupRestored(true)
	return sess.clone(), true
}

func (s *Store) restoreFailed(bundle *BackupBundle) (*Session, bool) {
	detail := map[string]interface{}{"reason": "restore_failed"}
	if bundle != nil {
		detail["restoredFrom"] = bundle.SessionID
	}
	s.auditor.Record(audit.KindSecurityWarning, "", "", audit.SeverityMedium, detail)
	s.observer.BackupRestored(false)
	return nil, false
}

// ListActive returns unexpired sessions ordered by creation.
func (s *Store) ListActive(_ context.Context) []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		if !sess.Expired(now) {
			out = append(out, sess.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].seq < out[j].seq
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Len returns the number of held sessions, expired ones included until the next cleanup.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep purges expired sessions and enforces capacity. It returns the
// number of sessions removed.
func (s *Store) Sweep(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cleanupLocked(ctx, s.now())
}

// Run sweeps every interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(ctx); n > 0 {
				s.logger.Info().Int("removed", n).Msg("session sweep")
			}
		}
	}
}

// Load hydrates the store from its repository. Expired records are deleted.
func (s *Store) Load(ctx context.Context) error {
	if s.cfg.repo == nil {
		return nil
	}
	loaded, err := s.cfg.repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("load sessions: %w", err)
	}
	sort.Slice(loaded, func(i, j int) bool { return loaded[i].CreatedAt.Before(loaded[j].CreatedAt) })

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for _, sess := range loaded {
		if _, exists := s.sessions[sess.ID]; exists {
			continue
		}
		if sess.Expired(now) {
			s.deleteFromRepo(ctx, sess.ID)
			continue
		}
		s.seq++
		sess.seq = s.seq
		s.sessions[sess.ID] = sess
	}
	s.cleanupLocked(ctx, now)
	s.logger.Info().Int("sessions", len(s.sessions)).Msg("sessions loaded")
	return nil
}

func (s *Store) lookupLocked(ctx context.Context, id string, now time.Time) (*Session, bool) {
	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	if sess.Expired(now) {
		s.removeLocked(ctx, sess, ReasonExpired)
		return nil, false
	}
	return sess, true
}

func (s *Store) insertLocked(ctx context.Context, sess *Session) {
	s.seq++
	sess.seq = s.seq
	s.sessions[sess.ID] = sess
	s.persist(ctx, sess)
}

func (s *Store) touchLocked(ctx context.Context, sess *Session, now time.Time) {
	sess.LastUsedAt = now
	s.persist(ctx, sess)
}

// removeLocked records the revocation before deleting the session. Expiry
// and eviction carry the same severity as an explicit revoke; reason tells
// them apart.
func (s *Store) removeLocked(ctx context.Context, sess *Session, reason string) {
	s.record(audit.KindSessionRevoked, sess, audit.SeverityHigh, map[string]interface{}{
		"reason":      reason,
		"wasBackedUp": sess.IsBackedUp,
	})
	delete(s.sessions, sess.ID)
	s.deleteFromRepo(ctx, sess.ID)
	s.observer.SessionRemoved(reason)
}

// cleanupLocked purges expired sessions, then evicts least recently used
// sessions down to capacity.
func (s *Store) cleanupLocked(ctx context.Context, now time.Time) int {
	removed := 0
	live := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		if sess.Expired(now) {
			s.removeLocked(ctx, sess, ReasonExpired)
			removed++
			continue
		}
		live = append(live, sess)
	}

	excess := len(live) - s.cfg.maxSessions
	if excess <= 0 {
		return removed
	}
	sort.Slice(live, func(i, j int) bool {
		if live[i].LastUsedAt.Equal(live[j].LastUsedAt) {
			return live[i].seq < live[j].seq
		}
		return live[i].LastUsedAt.Before(live[j].LastUsedAt)
	})
	for _, sess := range live[:excess] {
		s.removeLocked(ctx, sess, ReasonEvicted)
		removed++
	}
	return removed
}

func (s *Store) record(kind audit.Kind, sess *Session, severity audit.Severity, detail map[string]interface{}) {
	s.auditor.Record(kind, sess.ID, sess.PublicKey.String(), severity, detail)
}

func (s *Store) persist(ctx context.Context, sess *Session) {
	if s.cfg.repo == nil {
		return
	}
	if err := s.cfg.repo.Save(ctx, sess.clone()); err != nil {
		s.logger.Warn().Err(err).Str("session_id", sess.ID).Msg("failed to persist session")
	}
}

func (s *Store) deleteFromRepo(ctx context.Context, id string) {
	if s.cfg.repo == nil {
		return
	}
	if err := s.cfg.repo.Delete(ctx, id); err != nil {
		s.logger.Warn().Err(err).Str("session_id", id).Msg("failed to delete persisted session")
	}
}

// validSecret checks that secret is a well-formed ed25519 private key for pub.
func validSecret(secret []byte, pub solana.PublicKey) bool {
	if len(secret) != ed25519.PrivateKeySize {
		return false
	}
	derived := ed25519.NewKeyFromSeed(secret[:ed25519.SeedSize])
	return bytes.Equal(derived, secret) && bytes.Equal(secret[ed25519.SeedSize:], pub.Bytes())
}
