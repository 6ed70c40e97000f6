package minigrant

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"go.pilab.hu/minigrant/client"
	"go.pilab.hu/minigrant/domain"
	oautherrors "go.pilab.hu/minigrant/errors"
	"go.pilab.hu/minigrant/internal/audit"
	"go.pilab.hu/minigrant/internal/cipher"
)

// Grant is the mini-program token grant. A request advances through client
// validation, scope validation and user resolution before tokens are
// issued; the first failing stage terminates the request with a protocol
// error, and no internal error type crosses this boundary.
type Grant struct {
	clients        ClientValidator
	scopes         ScopeValidator
	tokens         TokenIssuer
	hook           UserHook
	audit          *audit.Logger
	accessTokenTTL time.Duration
}

// NewGrant wires the grant's collaborators. hook may be nil, in which case
// every request fails with a configuration error; wiring the hook is the
// embedding application's responsibility.
func NewGrant(
	clients ClientValidator,
	scopes ScopeValidator,
	tokens TokenIssuer,
	hook UserHook,
	auditLogger *audit.Logger,
	accessTokenTTL time.Duration,
) *Grant {
	return &Grant{
		clients:        clients,
		scopes:         scopes,
		tokens:         tokens,
		hook:           hook,
		audit:          auditLogger,
		accessTokenTTL: accessTokenTTL,
	}
}

// GrantType returns the grant_type identifier this grant serves.
func (g *Grant) GrantType() string {
	return GrantTypeMiniProgram
}

// RespondToTokenRequest runs the full grant sequence for one token request.
// The returned error is always a *errors.OAuth2Error.
func (g *Grant) RespondToTokenRequest(ctx context.Context, req TokenRequest) (*TokenResponse, error) {
	c, err := g.validateClient(ctx, req)
	if err != nil {
		return nil, err
	}

	scopes, err := g.scopes.Validate(ctx, c, req.Scope)
	if err != nil {
		return nil, oautherrors.NewInvalidScope(err.Error())
	}

	userID, err := g.validateUser(ctx, c, req)
	if err != nil {
		return nil, err
	}

	scopes, err = g.scopes.Finalize(ctx, scopes, g.GrantType(), c, userID)
	if err != nil {
		return nil, oautherrors.NewInvalidScope(err.Error())
	}

	return g.issueTokens(ctx, c, userID, scopes)
}

func (g *Grant) validateClient(ctx context.Context, req TokenRequest) (*client.Client, error) {
	c, err := g.clients.Validate(ctx, req.ClientID, req.ClientSecret, g.GrantType())
	if err != nil {
		return nil, oautherrors.NewInvalidClient("Client authentication failed")
	}
	return c, nil
}

// validateUser enforces the request shape and delegates the actual lookup
// to the configured hook. Field checks run before any decryption so a
// malformed request never touches the cipher.
func (g *Grant) validateUser(ctx context.Context, c *client.Client, req TokenRequest) (string, error) {
	if req.Provider == "" {
		return "", oautherrors.NewMissingParameter("provider")
	}
	if req.UserInfo == "" && req.EncryptedData == "" {
		return "", oautherrors.NewMissingParameter("user_info")
	}
	if req.EncryptedData != "" {
		if req.SessionKey == "" {
			return "", oautherrors.NewMissingParameter("session_key")
		}
		if req.IV == "" {
			return "", oautherrors.NewMissingParameter("iv")
		}
	}

	if g.hook == nil {
		// Misconfiguration, not a bad login: the application never wired
		// a user-resolution hook.
		return "", oautherrors.NewServerError("Unable to resolve users: no user hook configured")
	}

	userID, err := g.hook.FindAndValidate(ctx, req)
	if err != nil {
		return "", g.mapHookError(err, req)
	}
	if userID == "" {
		g.audit.AuthenticationFailed(c.ID, req.Provider, "no linkable user for mini-program identity")
		return "", oautherrors.NewInvalidCredentials()
	}
	return userID, nil
}

func (g *Grant) mapHookError(err error, req TokenRequest) error {
	switch {
	case errors.Is(err, cipher.ErrDecryption):
		return oautherrors.NewInvalidRequest("Could not decrypt the user payload")
	case errors.Is(err, cipher.ErrMalformedPayload):
		return oautherrors.NewInvalidRequest("The user payload is malformed")
	case errors.Is(err, domain.ErrUnknownProvider):
		return oautherrors.NewInvalidRequest("Unsupported mini-program provider")
	default:
		log.Error().Err(err).
			Str("provider", req.Provider).
			Msg("mini-program user resolution failed")
		return oautherrors.NewServerError("User resolution failed")
	}
}

func (g *Grant) issueTokens(ctx context.Context, c *client.Client, userID string, scopes []string) (*TokenResponse, error) {
	accessToken, err := g.tokens.IssueAccessToken(ctx, c, userID, scopes)
	if err != nil {
		return nil, g.mapIssueError(err)
	}
	refreshToken, err := g.tokens.IssueRefreshToken(ctx, accessToken)
	if err != nil {
		return nil, g.mapIssueError(err)
	}

	return &TokenResponse{
		AccessToken:  accessToken.TokenValue,
		TokenType:    "Bearer",
		ExpiresIn:    int(g.accessTokenTTL.Seconds()),
		RefreshToken: refreshToken.TokenValue,
		Scope:        accessToken.Scope,
	}, nil
}

func (g *Grant) mapIssueError(err error) error {
	if errors.Is(err, domain.ErrDuplicateToken) {
		// A storage write race; the caller may retry the whole request.
		return oautherrors.NewServerError("Token persistence conflict, retry the request")
	}
	log.Error().Err(err).Msg("token issuance failed")
	return oautherrors.NewServerError("Failed to issue tokens")
}
