package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-esg/meridian/internal/shared"
)

func newTestStore(t *testing.T, ttl time.Duration) (*TokenStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewTokenStore(client, "test-secret-0123456789", ttl), mr
}

func TestIssueAndResolveRoundTrip(t *testing.T) {
	store, _ := newTestStore(t, time.Hour)
	userID := uuid.New()

	issued, err := store.Issue(context.Background(), shared.Principal{UserID: userID, Email: "dana@example.com"})
	require.NoError(t, err)
	require.NotEmpty(t, issued.Token)

	principal, err := store.Resolve(context.Background(), issued.Token)
	require.NoError(t, err)
	assert.Equal(t, userID, principal.UserID)
	assert.Equal(t, "dana@example.com", principal.Email)
	assert.NotEmpty(t, principal.TokenID)
}

func TestResolveUnknownTokenIsUnauthorized(t *testing.T) {
	store, _ := newTestStore(t, time.Hour)

	_, err := store.Resolve(context.Background(), "no-such-token")
	assert.True(t, errors.Is(err, shared.ErrUnauthorized))
}

func TestResolveExpiredTokenIsUnauthorized(t *testing.T) {
	store, mr := newTestStore(t, time.Minute)

	issued, err := store.Issue(context.Background(), shared.Principal{UserID: uuid.New(), Email: "dana@example.com"})
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, err = store.Resolve(context.Background(), issued.Token)
	assert.True(t, errors.Is(err, shared.ErrUnauthorized))
}

func TestRevokeRemovesToken(t *testing.T) {
	store, _ := newTestStore(t, time.Hour)

	issued, err := store.Issue(context.Background(), shared.Principal{UserID: uuid.New(), Email: "dana@example.com"})
	require.NoError(t, err)

	require.NoError(t, store.Revoke(context.Background(), issued.Token))

	_, err = store.Resolve(context.Background(), issued.Token)
	assert.True(t, errors.Is(err, shared.ErrUnauthorized))

	// Second revoke is a no-op.
	require.NoError(t, store.Revoke(context.Background(), issued.Token))
}

func TestRawTokenNeverStoredVerbatim(t *testing.T) {
	store, mr := newTestStore(t, time.Hour)

	issued, err := store.Issue(context.Background(), shared.Principal{UserID: uuid.New(), Email: "dana@example.com"})
	require.NoError(t, err)

	for _, key := range mr.Keys() {
		assert.NotContains(t, key, issued.Token)
	}
}
