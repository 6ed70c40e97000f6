package minigrant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"go.pilab.hu/minigrant/cache"
	"go.pilab.hu/minigrant/client"
	"go.pilab.hu/minigrant/domain"
)

// TokenService mints opaque access/refresh token pairs, persists them and
// keeps a read-through cache of access tokens for validation.
type TokenService struct {
	repo       domain.TokenRepository
	cache      cache.TokenStore
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenService creates a TokenService. The TTLs come from the
// authorization server's configuration; the service only applies them.
func NewTokenService(repo domain.TokenRepository, tokenCache cache.TokenStore, accessTTL, refreshTTL time.Duration) *TokenService {
	return &TokenService{
		repo:       repo,
		cache:      tokenCache,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// IssueAccessToken implements TokenIssuer.
func (s *TokenService) IssueAccessToken(ctx context.Context, c *client.Client, userID string, scopes []string) (*domain.Token, error) {
	now := time.Now().UTC()
	token := &domain.Token{
		ID:         uuid.NewString(),
		TokenType:  "access_token",
		TokenValue: uuid.NewString(),
		ClientID:   c.ID,
		UserID:     userID,
		Scope:      strings.Join(scopes, " "),
		ExpiresAt:  now.Add(s.accessTTL),
		CreatedAt:  now,
		LastUsedAt: now,
	}

	if err := s.repo.StoreToken(ctx, token); err != nil {
		return nil, fmt.Errorf("failed to store access token: %w", err)
	}

	if err := s.cache.Set(ctx, &cache.TokenEntry{
		ID:         token.ID,
		TokenType:  token.TokenType,
		TokenValue: token.TokenValue,
		ClientID:   token.ClientID,
		UserID:     token.UserID,
		Scope:      token.Scope,
		ExpiresAt:  token.ExpiresAt,
		CreatedAt:  token.CreatedAt,
		LastUsedAt: token.LastUsedAt,
	}); err != nil {
		log.Warn().Err(err).Msg("failed to cache access token")
	}

	return token, nil
}

// IssueRefreshToken implements TokenIssuer. A duplicate-value collision at
// the store is propagated untouched so the grant can surface a retryable
// failure instead of silently reissuing.
func (s *TokenService) IssueRefreshToken(ctx context.Context, accessToken *domain.Token) (*domain.Token, error) {
	now := time.Now().UTC()
	token := &domain.Token{
		ID:         uuid.NewString(),
		TokenType:  "refresh_token",
		TokenValue: uuid.NewString(),
		ClientID:   accessToken.ClientID,
		UserID:     accessToken.UserID,
		Scope:      accessToken.Scope,
		ExpiresAt:  now.Add(s.refreshTTL),
		CreatedAt:  now,
		LastUsedAt: now,
	}

	if err := s.repo.StoreToken(ctx, token); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}
	return token, nil
}

// AccessTokenTTL reports the configured access token lifetime.
func (s *TokenService) AccessTokenTTL() time.Duration {
	return s.accessTTL
}

var _ TokenIssuer = (*TokenService)(nil)
