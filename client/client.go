package client

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ErrClientNotFound is returned when no client matches the given id.
var ErrClientNotFound = errors.New("client not found")

// Client represents an OAuth2 client application allowed to use the token
// endpoint. Only the fields a token-issuing flow needs are kept.
//
//nolint:tagliatelle
type Client struct {
	ID                string    `bson:"client_id" json:"client_id"`
	SecretHash        string    `bson:"client_secret_hash,omitempty" json:"-"`
	Name              string    `bson:"client_name" json:"name,omitempty"`
	Description       string    `bson:"description,omitempty" json:"description,omitempty"`
	AllowedScopes     []string  `bson:"allowed_scopes" json:"allowed_scopes,omitempty"`
	AllowedGrantTypes []string  `bson:"allowed_grant_types" json:"allowed_grant_types,omitempty"`
	CreatedAt         time.Time `bson:"created_at" json:"created_at,omitempty"`
	UpdatedAt         time.Time `bson:"updated_at" json:"updated_at,omitempty"`
	LastUsed          time.Time `bson:"last_used,omitempty" json:"last_used,omitempty"`
	IsActive          bool      `bson:"is_active" json:"is_active,omitempty"`
}

// AllowsGrantType reports whether the client may use the given grant type.
func (c *Client) AllowsGrantType(grantType string) bool {
	for _, gt := range c.AllowedGrantTypes {
		if gt == grantType {
			return true
		}
	}
	return false
}

// ClientStore is the persistence interface for OAuth2 clients.
type ClientStore interface {
	CreateClient(ctx context.Context, client *Client) error
	GetClient(ctx context.Context, clientID string) (*Client, error)
	UpdateClient(ctx context.Context, client *Client) error
	DeleteClient(ctx context.Context, clientID string) error
}

// ClientService handles client management and credential validation.
type ClientService struct {
	store ClientStore
}

// NewClientService creates a new ClientService instance.
func NewClientService(store ClientStore) *ClientService {
	return &ClientService{store: store}
}

// generateRandomString creates a cryptographically secure random string of
// the specified length.
func generateRandomString(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, length)
	_, _ = rand.Read(b)

	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}

	return string(b)
}

// CreateClient registers a new client allowed to use the mini-program grant
// and returns the client together with its one-time plaintext secret. Only
// the bcrypt hash of the secret is stored.
func (s *ClientService) CreateClient(ctx context.Context, name string, allowedScopes []string) (*Client, string, error) {
	secret := generateRandomString(32)
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash client secret: %w", err)
	}

	c := &Client{
		ID:                uuid.NewString(),
		SecretHash:        string(hash),
		Name:              name,
		AllowedScopes:     allowedScopes,
		AllowedGrantTypes: []string{"mini-program", "refresh_token"},
		CreatedAt:         time.Now().UTC(),
		UpdatedAt:         time.Now().UTC(),
		IsActive:          true,
	}

	if err := s.store.CreateClient(ctx, c); err != nil {
		return nil, "", err
	}
	return c, secret, nil
}

// Validate authenticates a client for the given grant type. It returns the
// client on success; any failure, including an unknown id, comes back as a
// single opaque error so callers cannot probe which part was wrong.
func (s *ClientService) Validate(ctx context.Context, clientID, clientSecret, grantType string) (*Client, error) {
	if clientID == "" {
		return nil, fmt.Errorf("client id is required")
	}

	c, err := s.store.GetClient(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("client authentication failed: %w", err)
	}
	if !c.IsActive {
		return nil, fmt.Errorf("client %s is disabled", clientID)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(c.SecretHash), []byte(clientSecret)); err != nil {
		return nil, fmt.Errorf("client authentication failed")
	}
	if !c.AllowsGrantType(grantType) {
		return nil, fmt.Errorf("client %s may not use grant type %s", clientID, grantType)
	}

	c.LastUsed = time.Now().UTC()
	if err := s.store.UpdateClient(ctx, c); err != nil {
		// Touch failure is not an authentication failure.
		return c, nil //nolint:nilerr
	}
	return c, nil
}
