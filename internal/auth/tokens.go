package auth

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/meridian-esg/meridian/internal/shared"
)

const tokenKeyPrefix = "meridian:token:"

// TokenStore keeps opaque bearer tokens in redis. Redis holds only an HMAC
// of the token, so a dump of the keyspace cannot be replayed as credentials.
type TokenStore struct {
	client *redis.Client
	secret []byte
	ttl    time.Duration
}

// NewTokenStore builds a TokenStore.
func NewTokenStore(client *redis.Client, secret string, ttl time.Duration) *TokenStore {
	return &TokenStore{client: client, secret: []byte(secret), ttl: ttl}
}

type tokenRecord struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// Issue mints a fresh token for the principal and stores it with the
// configured TTL.
func (s *TokenStore) Issue(ctx context.Context, p shared.Principal) (TokenResponse, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return TokenResponse{}, fmt.Errorf("auth: generate token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(raw)

	record, err := json.Marshal(tokenRecord{UserID: p.UserID.String(), Email: p.Email})
	if err != nil {
		return TokenResponse{}, err
	}
	now := time.Now().UTC()
	if err := s.client.Set(ctx, s.key(token), record, s.ttl).Err(); err != nil {
		return TokenResponse{}, fmt.Errorf("auth: store token: %w", err)
	}
	return TokenResponse{Token: token, ExpiresAt: now.Add(s.ttl)}, nil
}

// Resolve maps a presented token to its principal. Unknown or expired
// tokens yield ErrUnauthorized; transport failures are returned as-is so
// the middleware can fail closed with a distinct log line.
func (s *TokenStore) Resolve(ctx context.Context, token string) (shared.Principal, error) {
	if token == "" {
		return shared.Principal{}, shared.ErrUnauthorized
	}
	data, err := s.client.Get(ctx, s.key(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return shared.Principal{}, shared.ErrUnauthorized
		}
		return shared.Principal{}, fmt.Errorf("auth: resolve token: %w", err)
	}
	var record tokenRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return shared.Principal{}, shared.ErrUnauthorized
	}
	principal, err := principalFromRecord(record, s.fingerprint(token))
	if err != nil {
		return shared.Principal{}, shared.ErrUnauthorized
	}
	return principal, nil
}

// Revoke deletes a token. Revoking an unknown token succeeds.
func (s *TokenStore) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.client.Del(ctx, s.key(token)).Err()
}

func (s *TokenStore) key(token string) string {
	return tokenKeyPrefix + s.fingerprint(token)
}

func (s *TokenStore) fingerprint(token string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

func principalFromRecord(record tokenRecord, tokenID string) (shared.Principal, error) {
	userID, err := uuid.Parse(record.UserID)
	if err != nil {
		return shared.Principal{}, err
	}
	return shared.Principal{UserID: userID, Email: record.Email, TokenID: tokenID}, nil
}
