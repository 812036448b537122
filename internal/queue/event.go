// Package queue defines message payloads exchanged over the message broker.
package queue

// AccountRegisteredEvent is published when a signup creates an account or a
// new activation token is issued for it.  The consumer turns it into an
// activation email, so it carries everything the email needs.
type AccountRegisteredEvent struct {
	AccountID       uint64 `json:"account_id"`
	Email           string `json:"email"`
	FullName        string `json:"full_name"`
	Role            string `json:"role"`
	ActivationToken string `json:"activation_token"`
	ExpiresAt       string `json:"expires_at"`
	Resent          bool   `json:"resent"`
	OccurredAt      string `json:"occurred_at"`
}
