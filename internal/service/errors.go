package service

import (
	"errors"
	"fmt"
)

// Authentication failures.  They are returned as-is (never wrapped) so that
// handlers can match them with errors.Is and map them to status codes.
var (
	// ErrInvalidCredentials covers both an unknown email and a wrong
	// password.  The two cases are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountNotFound    = errors.New("account not found")
	ErrAccountNotActive   = errors.New("account is not active")

	ErrInvalidToken     = errors.New("invalid token")
	ErrTokenExpired     = errors.New("token expired")
	ErrInvalidTokenType = errors.New("invalid token type")
	ErrTokenMismatch    = errors.New("token is no longer current")
	ErrRevoked          = errors.New("token has been revoked")
	ErrMalformedToken   = errors.New("malformed token")

	ErrWeakPassword  = errors.New("password does not meet strength requirements")
	ErrAlreadyActive = errors.New("account is already active")
)

// Signup and profile failures.
var (
	ErrEmailTaken = errors.New("email is already registered")
	ErrPhoneTaken = errors.New("phone number is already registered")
)

// ErrInfrastructure marks failures of a backing store.  They are never
// authentication outcomes and callers should answer with a generic error.
var ErrInfrastructure = errors.New("infrastructure failure")

// infraError keeps the underlying cause while matching ErrInfrastructure.
type infraError struct {
	op  string
	err error
}

func (e *infraError) Error() string { return fmt.Sprintf("%s: %v", e.op, e.err) }
func (e *infraError) Unwrap() []error {
	return []error{ErrInfrastructure, e.err}
}

func infra(op string, err error) error { return &infraError{op: op, err: err} }
