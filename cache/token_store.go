package cache

import (
	"context"
	"time"
)

// TokenEntry represents a cached token entry. Entries are keyed by the hash
// of the token value, never by the raw token.
type TokenEntry struct {
	ID         string    `redis:"id"`
	TokenType  string    `redis:"tokenType"` // "access_token" or "refresh_token"
	TokenValue string    `redis:"tokenValue"`
	ClientID   string    `redis:"clientId"`
	UserID     string    `redis:"userId"`
	Scope      string    `redis:"scope"`
	ExpiresAt  time.Time `redis:"expiresAt"`
	IsRevoked  bool      `redis:"isRevoked"`
	CreatedAt  time.Time `redis:"createdAt"`
	LastUsedAt time.Time `redis:"lastUsedAt"`
}

// TokenStore is the read-through cache in front of the token repository.
type TokenStore interface {
	Set(ctx context.Context, token *TokenEntry) error
	Get(ctx context.Context, token string) (*TokenEntry, error)
	Delete(ctx context.Context, token string) error
	DeleteExpired(ctx context.Context) error
	Clear(ctx context.Context) error
	Count(ctx context.Context) int
}
