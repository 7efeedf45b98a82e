package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserRegistered             EventType = "user_registered"
	EventEmailVerificationRequested EventType = "email_verification_requested"
	EventSessionIssued              EventType = "session_issued"
	EventSessionRotated             EventType = "session_rotated"
	EventSessionRevoked             EventType = "session_revoked"
	EventSessionsCleared            EventType = "sessions_cleared"
	EventPasswordResetRequested     EventType = "password_reset_requested"
	EventPasswordReset              EventType = "password_reset"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	UserID    string      `json:"user_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// New stamps an event with an id and the current time.
func New(eventType EventType, userID string, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// VerificationPayload carries what is needed to mail a verification link.
type VerificationPayload struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Token    string `json:"token"`
}

// SessionPayload describes a session lifecycle change. It never carries tokens.
type SessionPayload struct {
	Username string `json:"username"`
	Reason   string `json:"reason,omitempty"`
}

// PasswordResetPayload carries what is needed to mail a reset link.
type PasswordResetPayload struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Token    string `json:"-"`
}
