package domain

import "time"

// Token represents an issued OAuth token.
type Token struct {
	ID         string    `bson:"_id,omitempty" json:"id"`
	TokenType  string    `bson:"token_type" json:"token_type"` // "access_token" or "refresh_token"
	TokenValue string    `bson:"token_value" json:"token_value"`
	ClientID   string    `bson:"client_id" json:"client_id"`
	UserID     string    `bson:"user_id" json:"user_id"`
	Scope      string    `bson:"scope,omitempty" json:"scope,omitempty"`
	ExpiresAt  time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt  time.Time `bson:"created_at" json:"created_at"`
	LastUsedAt time.Time `bson:"last_used_at" json:"last_used_at"`
	IsRevoked  bool      `bson:"is_revoked,omitempty" json:"is_revoked,omitempty"`
}
