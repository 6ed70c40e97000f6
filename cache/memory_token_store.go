package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryTokenStore implements TokenStore using ttlcache.
type MemoryTokenStore struct {
	cache *ttlcache.Cache[string, *TokenEntry]
}

// NewMemoryTokenStore creates a new in-memory token store with automatic
// cleanup of expired entries.
//
//nolint:ireturn
func NewMemoryTokenStore(cleanupInterval time.Duration) *MemoryTokenStore {
	c := ttlcache.New(
		ttlcache.WithTTL[string, *TokenEntry](cleanupInterval),
		ttlcache.WithDisableTouchOnHit[string, *TokenEntry](),
	)

	go c.Start()

	return &MemoryTokenStore{cache: c}
}

// Set implements TokenStore.Set.
func (s *MemoryTokenStore) Set(_ context.Context, token *TokenEntry) error {
	ttl := time.Until(token.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("token already expired")
	}
	s.cache.Set(HashToken(token.TokenValue), token, ttl)
	return nil
}

// Get implements TokenStore.Get.
func (s *MemoryTokenStore) Get(_ context.Context, token string) (*TokenEntry, error) {
	item := s.cache.Get(HashToken(token))
	if item == nil {
		return nil, fmt.Errorf("token not found")
	}

	// Copy before touching LastUsedAt; the cached entry is shared between
	// concurrent readers.
	entry := *item.Value()
	entry.LastUsedAt = time.Now().UTC()
	return &entry, nil
}

// Delete removes a token from the cache.
func (s *MemoryTokenStore) Delete(_ context.Context, token string) error {
	s.cache.Delete(HashToken(token))
	return nil
}

// DeleteExpired removes all expired tokens from the cache.
func (s *MemoryTokenStore) DeleteExpired(_ context.Context) error {
	s.cache.DeleteExpired()
	return nil
}

// Clear removes all tokens from the cache.
func (s *MemoryTokenStore) Clear(_ context.Context) error {
	s.cache.DeleteAll()
	return nil
}

// Count counts the number of tokens in the cache.
func (s *MemoryTokenStore) Count(_ context.Context) int {
	return s.cache.Len()
}

// Close stops the cleanup goroutine.
func (s *MemoryTokenStore) Close() error {
	s.cache.Stop()
	return nil
}
