package minigrant

import (
	"context"
	"fmt"

	"go.pilab.hu/minigrant/domain"
	"go.pilab.hu/minigrant/internal/audit"
)

// IdentityService is the link-management surface around the identity
// repository. Resolution links identities implicitly through union ids;
// this service carries the explicit operations an account settings page
// needs, with an audit event for every change.
type IdentityService struct {
	identities domain.IdentityRepository
	audit      *audit.Logger
}

// NewIdentityService creates an IdentityService.
func NewIdentityService(identities domain.IdentityRepository, auditLogger *audit.Logger) *IdentityService {
	return &IdentityService{
		identities: identities,
		audit:      auditLogger,
	}
}

// Connect links the identity to a user. Relinking an identity that already
// belongs to a different user is refused; it must be disconnected first.
func (s *IdentityService) Connect(ctx context.Context, provider domain.Provider, openID, userID string) error {
	identity, err := s.identities.FindByOpenID(ctx, provider, openID)
	if err != nil {
		return fmt.Errorf("failed to load %s identity: %w", provider, err)
	}
	if err := s.identities.Connect(ctx, identity.ID, userID); err != nil {
		return err
	}
	s.audit.IdentityConnected(provider.String(), identity.ID, userID)
	return nil
}

// Disconnect removes the identity's user link. This is the only path that
// clears an established link.
func (s *IdentityService) Disconnect(ctx context.Context, provider domain.Provider, openID string) error {
	identity, err := s.identities.FindByOpenID(ctx, provider, openID)
	if err != nil {
		return fmt.Errorf("failed to load %s identity: %w", provider, err)
	}
	if err := s.identities.Disconnect(ctx, identity.ID); err != nil {
		return err
	}
	s.audit.IdentityDisconnected(provider.String(), identity.ID)
	return nil
}

// RemoveUserIdentities deletes every identity linked to the user. The
// backing store has no foreign keys, so user deletion cascades here.
func (s *IdentityService) RemoveUserIdentities(ctx context.Context, userID string) (int64, error) {
	return s.identities.DeleteByUserID(ctx, userID)
}
