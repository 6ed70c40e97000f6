// Package redis provides a Redis-backed token cache for deployments that
// run more than one token endpoint instance.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"go.pilab.hu/minigrant/cache"
)

// TokenStore implements cache.TokenStore using Redis.
type TokenStore struct {
	client *redis.Client
	prefix string
}

// NewTokenStore creates a new [TokenStore] instance.
func NewTokenStore(client *redis.Client, prefix string) *TokenStore {
	return &TokenStore{
		client: client,
		prefix: prefix,
	}
}

func (r *TokenStore) redisKey(hashedToken string) string {
	return fmt.Sprintf("%s:token:%s", r.prefix, hashedToken)
}

// Set stores a token entry in Redis, expiring it together with the token.
func (r *TokenStore) Set(ctx context.Context, token *cache.TokenEntry) error {
	ttl := time.Until(token.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("token already expired")
	}

	key := r.redisKey(cache.HashToken(token.TokenValue))
	fields := map[string]any{
		"id":           token.ID,
		"token_type":   token.TokenType,
		"token_value":  token.TokenValue,
		"client_id":    token.ClientID,
		"user_id":      token.UserID,
		"scope":        token.Scope,
		"expires_at":   token.ExpiresAt.Unix(),
		"is_revoked":   strconv.FormatBool(token.IsRevoked),
		"created_at":   token.CreatedAt.Unix(),
		"last_used_at": time.Now().Unix(),
	}

	if err := r.client.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("failed to set token in redis: %w", err)
	}
	if err := r.client.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set token expiry in redis: %w", err)
	}
	return nil
}

// Get retrieves a token entry from Redis.
func (r *TokenStore) Get(ctx context.Context, token string) (*cache.TokenEntry, error) {
	key := r.redisKey(cache.HashToken(token))

	res, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get token from redis: %w", err)
	}
	if len(res) == 0 {
		return nil, fmt.Errorf("token not found")
	}

	expiresAt, err := strconv.ParseInt(res["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt token entry: %w", err)
	}
	createdAt, _ := strconv.ParseInt(res["created_at"], 10, 64)
	lastUsedAt, _ := strconv.ParseInt(res["last_used_at"], 10, 64)
	revoked, _ := strconv.ParseBool(res["is_revoked"])

	entry := &cache.TokenEntry{
		ID:         res["id"],
		TokenType:  res["token_type"],
		TokenValue: res["token_value"],
		ClientID:   res["client_id"],
		UserID:     res["user_id"],
		Scope:      res["scope"],
		ExpiresAt:  time.Unix(expiresAt, 0),
		IsRevoked:  revoked,
		CreatedAt:  time.Unix(createdAt, 0),
		LastUsedAt: time.Unix(lastUsedAt, 0),
	}

	// Best effort; a failed touch must not fail the read.
	_ = r.client.HSet(ctx, key, "last_used_at", time.Now().Unix()).Err()

	return entry, nil
}

// Delete removes a token from Redis.
func (r *TokenStore) Delete(ctx context.Context, token string) error {
	return r.client.Del(ctx, r.redisKey(cache.HashToken(token))).Err()
}

// DeleteExpired is a no-op: Redis expires entries through the key TTL set
// alongside each token.
func (r *TokenStore) DeleteExpired(_ context.Context) error {
	return nil
}

// Clear removes all tokens under this store's prefix.
func (r *TokenStore) Clear(ctx context.Context) error {
	var cursor uint64
	pattern := r.redisKey("*")
	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return fmt.Errorf("failed to scan token keys: %w", err)
		}
		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("failed to delete token keys: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// Count counts tokens under this store's prefix.
func (r *TokenStore) Count(ctx context.Context) int {
	var count int
	var cursor uint64
	pattern := r.redisKey("*")
	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return count
		}
		count += len(keys)
		if next == 0 {
			return count
		}
		cursor = next
	}
}

var _ cache.TokenStore = (*TokenStore)(nil)
