package model

import "time"

// Role is the kind of marketplace participant an account represents.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleVendor   Role = "vendor"
	RoleRider    Role = "rider"
)

// Roles lists every valid role in display order.
var Roles = []Role{RoleCustomer, RoleVendor, RoleRider}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleVendor, RoleRider:
		return true
	}
	return false
}

// AccountState is the authentication state derived from an account row.
type AccountState string

const (
	StateInactive    AccountState = "inactive"
	StateActive      AccountState = "active"
	StateDeactivated AccountState = "deactivated"
)

// Account mirrors a row of the `accounts` table.
//
// Nullable columns are pointers.  RefreshTokenHash holds the SHA-256 of the
// one refresh token currently valid for the account; issuing a new one
// overwrites it.
type Account struct {
	ID                    uint64
	Email                 string
	FullName              string
	PhoneNumber           string
	City                  string
	Role                  Role
	PasswordHash          *string
	IsActive              bool
	ActivationToken       *string
	ActivationTokenExpiry *time.Time
	RefreshTokenHash      *string
	LastLogin             *time.Time
	DeactivatedAt         *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// State derives the lifecycle state.  An inactive account without a pending
// activation token has either been deactivated by its owner or never had a
// token issued; both are closed to password login.
func (a Account) State() AccountState {
	switch {
	case a.IsActive:
		return StateActive
	case a.ActivationToken != nil && a.DeactivatedAt == nil:
		return StateInactive
	default:
		return StateDeactivated
	}
}

// HasPassword reports whether a password hash has been set.
func (a Account) HasPassword() bool { return a.PasswordHash != nil && *a.PasswordHash != "" }
