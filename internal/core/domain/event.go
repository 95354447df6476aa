package domain

import "time"

// AuthEventType names an auditable account or token action.
type AuthEventType string

const (
	EventLoginSucceeded     AuthEventType = "login_succeeded"
	EventLoginFailed        AuthEventType = "login_failed"
	EventRegistered         AuthEventType = "registered"
	EventRegistrationFailed AuthEventType = "registration_failed"
	EventAccountCreated     AuthEventType = "account_created"
	EventAccountDeleted     AuthEventType = "account_deleted"
	EventTokenIssued        AuthEventType = "token_issued"
	EventTokenRevoked       AuthEventType = "token_revoked"
	EventTokenReleased      AuthEventType = "token_released"
)

// AuthEvent is an entry of the audit trail. Reason carries the internal
// failure classification and is never returned to clients.
type AuthEvent struct {
	ID        string        `json:"id"`
	Type      AuthEventType `json:"type"`
	Username  string        `json:"username"`
	Peer      string        `json:"peer,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}
