package echo

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	minigrant "go.pilab.hu/minigrant"
	"go.pilab.hu/minigrant/errors"
)

// TokenAPI exposes the token endpoint over HTTP.
type TokenAPI struct {
	grant *minigrant.Grant
}

// NewTokenAPI initializes the token endpoint API.
func NewTokenAPI(grant *minigrant.Grant) *TokenAPI {
	return &TokenAPI{grant: grant}
}

// RegisterRoutes registers the OAuth2 routes.
func (a *TokenAPI) RegisterRoutes(e *echo.Echo) {
	e.POST("/oauth2/token", a.TokenHandler)
	e.GET("/healthz", a.HealthHandler)
}

// TokenHandler handles OAuth2 token requests. It:
//   - Binds the form/JSON body into a TokenRequest.
//   - Dispatches on grant_type; only the mini-program grant is served here.
//   - Returns the token response as JSON, or the OAuth2 error body with the
//     status code the error code calls for.
func (a *TokenAPI) TokenHandler(c echo.Context) error {
	var req minigrant.TokenRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errors.NewInvalidRequest("Could not parse the request body"))
	}

	if req.GrantType != a.grant.GrantType() {
		return c.JSON(http.StatusBadRequest, errors.NewUnsupportedGrantType())
	}

	ctx := c.Request().Context()

	tokenResponse, err := a.grant.RespondToTokenRequest(ctx, req)
	if err != nil {
		oauthErr, ok := err.(*errors.OAuth2Error)
		if !ok {
			log.Error().Err(err).Msg("token request failed with a non-protocol error")
			return c.JSON(http.StatusInternalServerError, errors.NewServerError("Failed to generate token"))
		}

		log.Info().
			Str("client_id", req.ClientID).
			Str("provider", req.Provider).
			Str("error_code", oauthErr.Code).
			Msg("Token request rejected")

		return c.JSON(statusForError(oauthErr), oauthErr)
	}

	log.Info().
		Str("client_id", req.ClientID).
		Str("grant_type", req.GrantType).
		Str("provider", req.Provider).
		Int("expires_in", tokenResponse.ExpiresIn).
		Str("token_type", tokenResponse.TokenType).
		Msg("Token generated")

	return c.JSON(http.StatusOK, tokenResponse)
}

// HealthHandler reports liveness.
func (a *TokenAPI) HealthHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

func statusForError(err *errors.OAuth2Error) int {
	switch err.Code {
	case errors.InvalidClient:
		return http.StatusUnauthorized
	case errors.ServerError:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}
