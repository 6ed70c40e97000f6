package minigrant

import (
	"context"

	"go.pilab.hu/minigrant/client"
	"go.pilab.hu/minigrant/domain"
)

// ClientValidator authenticates the requesting OAuth2 client for a grant
// type. The production implementation is client.ClientService.
type ClientValidator interface {
	Validate(ctx context.Context, clientID, clientSecret, grantType string) (*client.Client, error)
}

// ScopeValidator validates requested scopes against the client and
// finalizes them once the user is known.
type ScopeValidator interface {
	Validate(ctx context.Context, c *client.Client, requested string) ([]string, error)
	Finalize(ctx context.Context, scopes []string, grantType string, c *client.Client, userID string) ([]string, error)
}

// TokenIssuer mints and persists the access/refresh token pair.
type TokenIssuer interface {
	IssueAccessToken(ctx context.Context, c *client.Client, userID string, scopes []string) (*domain.Token, error)
	IssueRefreshToken(ctx context.Context, accessToken *domain.Token) (*domain.Token, error)
}

// UserHook translates a validated token request into a local user id. The
// application supplies it; a request that yields no user id means the login
// failed. Returning an empty id with a nil error is the "no such user"
// answer, not an error condition.
type UserHook interface {
	FindAndValidate(ctx context.Context, req TokenRequest) (string, error)
}

// UserHookFunc adapts a function to the UserHook interface.
type UserHookFunc func(ctx context.Context, req TokenRequest) (string, error)

func (f UserHookFunc) FindAndValidate(ctx context.Context, req TokenRequest) (string, error) {
	return f(ctx, req)
}
