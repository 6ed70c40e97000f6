package domain

import "time"

// AnonymousDisplayName is the fallback shown for identities whose provider
// supplied neither a name nor a nickname.
const AnonymousDisplayName = "Mini Program User"

// MiniProgramIdentity links an external mini-program account to a local user.
// One document exists per (provider, open_id) pair; union_id correlates the
// same natural person across apps of a single platform.
type MiniProgramIdentity struct {
	ID        string         `bson:"_id,omitempty" json:"id,omitempty"`
	OpenID    string         `bson:"open_id" json:"open_id"`
	Provider  Provider       `bson:"provider" json:"provider"`
	UnionID   string         `bson:"union_id,omitempty" json:"union_id,omitempty"`
	UserID    string         `bson:"user_id,omitempty" json:"user_id,omitempty"` // Foreign key to users._id, empty until linked
	Name      string         `bson:"name,omitempty" json:"name,omitempty"`
	Nickname  string         `bson:"nickname,omitempty" json:"nickname,omitempty"`
	Email     string         `bson:"email,omitempty" json:"email,omitempty"`
	Mobile    string         `bson:"mobile,omitempty" json:"mobile,omitempty"`
	Avatar    string         `bson:"avatar,omitempty" json:"avatar,omitempty"`
	RawData   map[string]any `bson:"raw_data,omitempty" json:"-"` // Full provider payload, kept verbatim for audit
	CreatedAt time.Time      `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time      `bson:"updated_at" json:"updated_at"`
}

// Linked reports whether the identity has been connected to a local user.
func (i *MiniProgramIdentity) Linked() bool {
	return i.UserID != ""
}

// DisplayName returns a human-presentable name for the identity, preferring
// the full name over the nickname and never returning the empty string.
func (i *MiniProgramIdentity) DisplayName() string {
	if i.Name != "" {
		return i.Name
	}
	if i.Nickname != "" {
		return i.Nickname
	}
	return AnonymousDisplayName
}
