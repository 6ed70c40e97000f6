package domain

import "errors"

var (
	// ErrIdentityNotFound is returned by lookups that matched no identity.
	ErrIdentityNotFound = errors.New("mini-program identity not found")

	// ErrDuplicateIdentity maps the storage layer's unique constraint on
	// (provider, open_id). Callers racing on a first login should retry
	// their write as an update.
	ErrDuplicateIdentity = errors.New("mini-program identity already exists")

	// ErrIdentityLinked is returned by Connect when the identity is already
	// connected to a different user. Relinking requires an explicit
	// Disconnect first.
	ErrIdentityLinked = errors.New("mini-program identity is linked to another user")

	// ErrUnknownProvider is returned for provider names outside the
	// supported platform set.
	ErrUnknownProvider = errors.New("unknown mini-program provider")

	// ErrDuplicateToken maps the unique constraint on stored token values.
	// It is propagated so the caller can retry the outer request.
	ErrDuplicateToken = errors.New("token value already exists")
)
