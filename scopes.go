package minigrant

import (
	"context"
	"fmt"
	"strings"

	"go.pilab.hu/minigrant/client"
)

// ScopeService validates requested scopes against the client's allow-list.
// An empty request falls back to everything the client is allowed, the way
// token endpoints commonly default.
type ScopeService struct{}

// NewScopeService creates a ScopeService.
func NewScopeService() *ScopeService {
	return &ScopeService{}
}

// Validate implements ScopeValidator.
func (s *ScopeService) Validate(_ context.Context, c *client.Client, requested string) ([]string, error) {
	requested = strings.TrimSpace(requested)
	if requested == "" {
		return append([]string(nil), c.AllowedScopes...), nil
	}

	allowed := make(map[string]bool, len(c.AllowedScopes))
	for _, scope := range c.AllowedScopes {
		allowed[scope] = true
	}

	scopes := strings.Fields(requested)
	for _, scope := range scopes {
		if !allowed[scope] {
			return nil, fmt.Errorf("scope %q is not allowed for client %s", scope, c.ID)
		}
	}
	return scopes, nil
}

// Finalize implements ScopeValidator. The granted set is decided here, after
// the user is known; the default keeps the validated scopes unchanged.
func (s *ScopeService) Finalize(_ context.Context, scopes []string, _ string, _ *client.Client, _ string) ([]string, error) {
	return scopes, nil
}
