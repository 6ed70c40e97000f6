package minigrant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"go.pilab.hu/minigrant/domain"
	"go.pilab.hu/minigrant/internal/cipher"
	"go.pilab.hu/minigrant/internal/miniprogram"
)

// Resolver turns canonical mini-program attributes into a stored identity,
// linking it to a local user through the platform's union id when possible.
type Resolver struct {
	identities domain.IdentityRepository
	registry   domain.SocialIdentityRegistry // optional secondary lookup, may be nil
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithSocialIdentityRegistry wires the optional secondary registry consulted
// when the identity collection has no union match. Lookups against it are
// best effort; its absence or a miss never fails a resolution.
func WithSocialIdentityRegistry(registry domain.SocialIdentityRegistry) ResolverOption {
	return func(r *Resolver) {
		r.registry = registry
	}
}

// NewResolver creates a Resolver over the identity repository.
func NewResolver(identities domain.IdentityRepository, opts ...ResolverOption) *Resolver {
	r := &Resolver{identities: identities}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve upserts the identity keyed by (provider, open_id), first copying
// a user link from any already-linked identity that shares the provider's
// union id. Union matching never crosses providers; correlating identities
// across platforms is the secondary registry's job.
func (r *Resolver) Resolve(ctx context.Context, attrs miniprogram.Attributes) (*domain.MiniProgramIdentity, error) {
	up := attrs.Upsert()

	if attrs.UnionID != "" {
		if userID, err := r.linkedUserByUnionID(ctx, attrs.Provider, attrs.UnionID); err != nil {
			return nil, err
		} else if userID != "" {
			up.UserID = userID
		}
	}

	identity, err := r.identities.Upsert(ctx, up)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert %s identity: %w", attrs.Provider, err)
	}
	return identity, nil
}

func (r *Resolver) linkedUserByUnionID(ctx context.Context, provider domain.Provider, unionID string) (string, error) {
	existing, err := r.identities.FindByUnionID(ctx, provider, unionID)
	switch {
	case err == nil:
		// A sibling app's identity on the same platform. An unlinked
		// sibling contributes nothing; the next login may link it.
		return existing.UserID, nil
	case errors.Is(err, domain.ErrIdentityNotFound):
		// Fall through to the secondary registry.
	default:
		return "", fmt.Errorf("union lookup failed: %w", err)
	}

	if r.registry == nil {
		return "", nil
	}
	userID, err := r.registry.FindUserByUnionID(ctx, provider, unionID)
	if err != nil {
		if !errors.Is(err, domain.ErrIdentityNotFound) {
			log.Warn().Err(err).
				Str("provider", provider.String()).
				Msg("social identity registry lookup failed")
		}
		return "", nil
	}
	return userID, nil
}

// IdentityUserHook is the default UserHook: it decodes the request's user
// payload (decrypting when needed), normalizes it, resolves the identity,
// and reports the linked local user. An identity without a user link is a
// failed authentication, even though the identity record itself is stored.
type IdentityUserHook struct {
	resolver *Resolver
}

// NewIdentityUserHook creates the default resolution hook.
func NewIdentityUserHook(resolver *Resolver) *IdentityUserHook {
	return &IdentityUserHook{resolver: resolver}
}

// FindAndValidate implements UserHook.
func (h *IdentityUserHook) FindAndValidate(ctx context.Context, req TokenRequest) (string, error) {
	provider, err := domain.ParseProvider(req.Provider)
	if err != nil {
		return "", err
	}

	raw, err := h.rawProfile(provider, req)
	if err != nil {
		return "", err
	}

	attrs, err := miniprogram.Normalize(provider, raw)
	if err != nil {
		if errors.Is(err, miniprogram.ErrMissingOpenID) {
			// A payload with no external id cannot identify anyone.
			return "", nil
		}
		return "", err
	}

	identity, err := h.resolver.Resolve(ctx, attrs)
	if err != nil {
		return "", err
	}
	if !identity.Linked() {
		log.Debug().
			Str("provider", provider.String()).
			Str("identity_id", identity.ID).
			Msg("mini-program identity stored but not linked to a user")
		return "", nil
	}
	return identity.UserID, nil
}

func (h *IdentityUserHook) rawProfile(provider domain.Provider, req TokenRequest) (map[string]any, error) {
	if req.UserInfo != "" {
		var raw map[string]any
		if err := json.Unmarshal([]byte(req.UserInfo), &raw); err != nil {
			return nil, fmt.Errorf("%w: user_info is not valid JSON", cipher.ErrMalformedPayload)
		}
		return raw, nil
	}
	return miniprogram.DecryptPayload(provider, req.SessionKey, req.IV, req.EncryptedData)
}
