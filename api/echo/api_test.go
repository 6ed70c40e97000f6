package echo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	minigrant "go.pilab.hu/minigrant"
	"go.pilab.hu/minigrant/client"
	"go.pilab.hu/minigrant/domain"
	"go.pilab.hu/minigrant/internal/audit"
)

type stubClientValidator struct {
	err error
}

func (s *stubClientValidator) Validate(context.Context, string, string, string) (*client.Client, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &client.Client{
		ID:                "client-1",
		AllowedScopes:     []string{"profile"},
		AllowedGrantTypes: []string{minigrant.GrantTypeMiniProgram},
		IsActive:          true,
	}, nil
}

type stubTokenIssuer struct{}

func (stubTokenIssuer) IssueAccessToken(_ context.Context, c *client.Client, userID string, scopes []string) (*domain.Token, error) {
	return &domain.Token{TokenValue: "access-value", ClientID: c.ID, UserID: userID, Scope: strings.Join(scopes, " ")}, nil
}

func (stubTokenIssuer) IssueRefreshToken(context.Context, *domain.Token) (*domain.Token, error) {
	return &domain.Token{TokenValue: "refresh-value"}, nil
}

func newTestAPI(t *testing.T, clients minigrant.ClientValidator) *TokenAPI {
	t.Helper()
	hook := minigrant.UserHookFunc(func(context.Context, minigrant.TokenRequest) (string, error) {
		return "user-1", nil
	})
	grant := minigrant.NewGrant(clients, minigrant.NewScopeService(), stubTokenIssuer{}, hook,
		audit.NewLogger("api-test"), time.Hour)
	return NewTokenAPI(grant)
}

func postToken(t *testing.T, api *TokenAPI, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	api.RegisterRoutes(e)

	req := httptest.NewRequest(http.MethodPost, "/oauth2/token", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func validForm() url.Values {
	return url.Values{
		"grant_type":    {minigrant.GrantTypeMiniProgram},
		"client_id":     {"client-1"},
		"client_secret": {"secret"},
		"provider":      {"wechat"},
		"user_info":     {`{"openId":"open-1"}`},
	}
}

func TestTokenHandlerSuccess(t *testing.T) {
	api := newTestAPI(t, &stubClientValidator{})
	rec := postToken(t, api, validForm())

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp minigrant.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "access-value", resp.AccessToken)
	assert.Equal(t, "refresh-value", resp.RefreshToken)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, 3600, resp.ExpiresIn)
}

func TestTokenHandlerUnsupportedGrantType(t *testing.T) {
	api := newTestAPI(t, &stubClientValidator{})

	form := validForm()
	form.Set("grant_type", "authorization_code")
	rec := postToken(t, api, form)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unsupported_grant_type")
}

func TestTokenHandlerInvalidClientIsUnauthorized(t *testing.T) {
	api := newTestAPI(t, &stubClientValidator{err: client.ErrClientNotFound})
	rec := postToken(t, api, validForm())

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_client")
}

func TestTokenHandlerMissingProvider(t *testing.T) {
	api := newTestAPI(t, &stubClientValidator{})

	form := validForm()
	form.Del("provider")
	rec := postToken(t, api, form)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "invalid_request", body["error"])
	assert.Contains(t, body["error_description"], "provider")
}

func TestHealthHandler(t *testing.T) {
	api := newTestAPI(t, &stubClientValidator{})
	e := echo.New()
	api.RegisterRoutes(e)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
