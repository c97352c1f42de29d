package session

import (
	"context"
	"os"
	"testing"
	"time"

	solana "github.com/gagliardetto/solana-go"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSession(id string, expires time.Time) *Session {
	return &Session{
		ID:              id,
		PublicKey:       solana.NewWallet().PublicKey(),
		EncryptedSecret: []byte{1, 2, 3},
		CreatedAt:       expires.Add(-time.Hour),
		ExpiresAt:       expires,
		LastUsedAt:      expires.Add(-time.Hour),
	}
}

func TestMemoryRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	s := testSession("session_a", time.Now().Add(time.Hour))

	require.NoError(t, repo.Save(ctx, s))
	s.EncryptedSecret[0] = 9

	loaded, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, byte(1), loaded[0].EncryptedSecret[0], "repository keeps its own copy")

	require.NoError(t, repo.Delete(ctx, s.ID))
	assert.Equal(t, 0, repo.Len())
	require.NoError(t, repo.Delete(ctx, s.ID))
}

func TestRedisRepository_KeyTTLFollowsClock(t *testing.T) {
	// A clock far from the wall clock still yields TTLs relative to itself.
	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := NewRedisRepository(nil, func() time.Time { return now })

	s := testSession("s", now.Add(2*time.Hour))
	assert.Equal(t, 2*time.Hour, repo.keyTTL(s))

	now = now.Add(90 * time.Minute)
	assert.Equal(t, 30*time.Minute, repo.keyTTL(s))

	now = now.Add(time.Hour)
	assert.LessOrEqual(t, repo.keyTTL(s), time.Duration(0))
}

func TestRedisRepository(t *testing.T) {
	addr := os.Getenv("BLINKPAY_REDIS_ADDR")
	if addr == "" {
		t.Skip("BLINKPAY_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	ctx := context.Background()
	repo := NewRedisRepository(client, nil)
	live := testSession("session_test_live", time.Now().Add(time.Hour))
	stale := testSession("session_test_stale", time.Now().Add(-time.Minute))
	defer repo.Delete(ctx, live.ID)

	require.NoError(t, repo.Save(ctx, live))
	require.NoError(t, repo.Save(ctx, stale))

	ttl, err := client.TTL(ctx, redisSessionPrefix+live.ID).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 59*time.Minute)

	loaded, err := repo.Load(ctx)
	require.NoError(t, err)
	var found *Session
	for _, s := range loaded {
		assert.NotEqual(t, stale.ID, s.ID)
		if s.ID == live.ID {
			found = s
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, live.PublicKey, found.PublicKey)
	assert.Equal(t, live.EncryptedSecret, found.EncryptedSecret)

	require.NoError(t, repo.Delete(ctx, live.ID))
	exists, err := client.SIsMember(ctx, redisSessionIndex, live.ID).Result()
	require.NoError(t, err)
	assert.False(t, exists)
}
