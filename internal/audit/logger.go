// Package audit emits security-relevant events as structured log lines.
// The grant emits an event for every failed authentication attempt;
// configuration and decryption errors are deliberately not audited, they
// are operator problems rather than login attempts.
package audit

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Action names for grant-related events.
const (
	ActionAuthenticationFailed = "user.authentication_failed"
	ActionIdentityConnected    = "identity.connected"
	ActionIdentityDisconnected = "identity.disconnected"
)

// Event represents an audit log event.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Action    string    `json:"action"`
	ClientID  string    `json:"client_id,omitempty"`
	Provider  string    `json:"provider,omitempty"`
	Target    string    `json:"target,omitempty"` // Identity or user id the action touched
	Details   string    `json:"details,omitempty"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
}

// Logger writes audit events through a dedicated zerolog logger so audit
// output can be routed separately from application logs.
type Logger struct {
	logger  zerolog.Logger
	service string
}

// NewLogger creates an audit logger for the named service.
func NewLogger(service string) *Logger {
	return &Logger{
		logger:  log.With().Str("component", "audit").Logger(),
		service: service,
	}
}

// Record writes one audit event.
func (l *Logger) Record(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	event.Service = l.service

	entry := l.logger.Log().
		Time("timestamp", event.Timestamp).
		Str("service", event.Service).
		Str("action", event.Action).
		Bool("success", event.Success)
	if event.ClientID != "" {
		entry = entry.Str("client_id", event.ClientID)
	}
	if event.Provider != "" {
		entry = entry.Str("provider", event.Provider)
	}
	if event.Target != "" {
		entry = entry.Str("target", event.Target)
	}
	if event.Details != "" {
		entry = entry.Str("details", event.Details)
	}
	if event.Error != "" {
		entry = entry.Str("error", event.Error)
	}
	entry.Msg("audit event")
}

// AuthenticationFailed records a failed login attempt for a client and
// provider pair.
func (l *Logger) AuthenticationFailed(clientID, provider, details string) {
	l.Record(Event{
		Action:   ActionAuthenticationFailed,
		ClientID: clientID,
		Provider: provider,
		Details:  details,
		Success:  false,
	})
}

// IdentityConnected records an explicit link between an identity and a user.
func (l *Logger) IdentityConnected(provider, identityID, userID string) {
	l.Record(Event{
		Action:   ActionIdentityConnected,
		Provider: provider,
		Target:   identityID,
		Details:  "linked to user " + userID,
		Success:  true,
	})
}

// IdentityDisconnected records an explicit unlink of an identity.
func (l *Logger) IdentityDisconnected(provider, identityID string) {
	l.Record(Event{
		Action:   ActionIdentityDisconnected,
		Provider: provider,
		Target:   identityID,
		Success:  true,
	})
}
