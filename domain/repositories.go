package domain

import "context"

// IdentityUpsert carries the canonical attribute set written on every
// successful login. The write is keyed by (Provider, OpenID); every other
// field overwrites the stored document.
type IdentityUpsert struct {
	Provider Provider
	OpenID   string
	UnionID  string
	UserID   string
	Name     string
	Nickname string
	Email    string
	Mobile   string
	Avatar   string
	RawData  map[string]any
}

// IdentityRepository is the durable store for mini-program identities.
// All mutation of the identity collection goes through Upsert, Connect,
// Disconnect and DeleteByUserID.
type IdentityRepository interface {
	// FindByOpenID looks up the single identity for (provider, openID).
	FindByOpenID(ctx context.Context, provider Provider, openID string) (*MiniProgramIdentity, error)

	// FindByUnionID returns the first identity on the given provider that
	// carries unionID. Used for union-based auto-linking.
	FindByUnionID(ctx context.Context, provider Provider, unionID string) (*MiniProgramIdentity, error)

	// Upsert inserts or refreshes the identity keyed by (provider, openID)
	// and returns the stored document. Concurrent first logins for the same
	// key must collapse onto a single document.
	Upsert(ctx context.Context, attrs IdentityUpsert) (*MiniProgramIdentity, error)

	// Connect assigns the local user. It fails with ErrIdentityLinked when
	// the identity is already connected to a different user.
	Connect(ctx context.Context, identityID, userID string) error

	// Disconnect clears the local user link. This is the only path that
	// unsets user_id.
	Disconnect(ctx context.Context, identityID string) error

	// DeleteByUserID removes every identity owned by a local user, the
	// application-level cascade for user deletion.
	DeleteByUserID(ctx context.Context, userID string) (int64, error)
}

// SocialIdentityRegistry is an optional secondary lookup consulted when
// union-based auto-linking finds no match in the identity collection.
// Implementations typically front a separate web/social login table.
type SocialIdentityRegistry interface {
	// FindUserByUnionID reports the linked local user for (provider,
	// unionID), or ErrIdentityNotFound when the registry has no match.
	FindUserByUnionID(ctx context.Context, provider Provider, unionID string) (string, error)
}

// TokenRepository persists issued tokens for introspection and revocation.
type TokenRepository interface {
	StoreToken(ctx context.Context, token *Token) error
	GetTokenByValue(ctx context.Context, value string) (*Token, error)
	RevokeToken(ctx context.Context, value string) error
}
