package errors

import "fmt"

// OAuth2Error represents a standardized OAuth 2.0 error
type OAuth2Error struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
	URI         string `json:"error_uri,omitempty"`
}

func (e *OAuth2Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Standard OAuth2 error codes
const (
	InvalidRequest         = "invalid_request"
	UnauthorizedClient     = "unauthorized_client"
	AccessDenied           = "access_denied"
	UnsupportedGrantType   = "unsupported_grant_type"
	InvalidScope           = "invalid_scope"
	InvalidClient          = "invalid_client"
	InvalidGrant           = "invalid_grant"
	InvalidCredentials     = "invalid_credentials"
	ServerError            = "server_error"
	TemporarilyUnavailable = "temporarily_unavailable"
)

// Common error constructors
func NewInvalidRequest(description string) *OAuth2Error {
	return &OAuth2Error{
		Code:        InvalidRequest,
		Description: description,
	}
}

// NewMissingParameter reports a required token request parameter that was
// absent, naming the parameter the way RFC 6749 error descriptions do.
func NewMissingParameter(name string) *OAuth2Error {
	return &OAuth2Error{
		Code:        InvalidRequest,
		Description: fmt.Sprintf("The request is missing a required parameter: %s", name),
	}
}

func NewInvalidClient(description string) *OAuth2Error {
	return &OAuth2Error{
		Code:        InvalidClient,
		Description: description,
	}
}

func NewInvalidGrant(description string) *OAuth2Error {
	return &OAuth2Error{
		Code:        InvalidGrant,
		Description: description,
	}
}

// NewInvalidCredentials is the terminal error for a login attempt the
// resolver could not map onto a user. The description is intentionally
// generic so it does not reveal which part of the payload was wrong.
func NewInvalidCredentials() *OAuth2Error {
	return &OAuth2Error{
		Code:        InvalidCredentials,
		Description: "The user credentials were incorrect",
	}
}

func NewInvalidScope(description string) *OAuth2Error {
	return &OAuth2Error{
		Code:        InvalidScope,
		Description: description,
	}
}

func NewServerError(description string) *OAuth2Error {
	return &OAuth2Error{
		Code:        ServerError,
		Description: description,
	}
}

func NewUnauthorizedClient(description string) *OAuth2Error {
	return &OAuth2Error{
		Code:        UnauthorizedClient,
		Description: description,
	}
}

func NewUnsupportedGrantType() *OAuth2Error {
	return &OAuth2Error{
		Code:        UnsupportedGrantType,
		Description: "The authorization grant type is not supported",
	}
}
