// Package repository defines error types that are reused across the
// persistence layer. These sentinel values allow higher layers such as
// services and handlers to distinguish between different failure scenarios.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a point lookup matches no row.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a conditional update matched no row because
// the stored state changed underneath the caller (a lost compare-and-swap).
var ErrConflict = errors.New("conflict")

// ErrEmailExists and ErrPhoneExists report unique constraint violations.
var (
	ErrEmailExists = errors.New("email already exists")
	ErrPhoneExists = errors.New("phone number already exists")
)

// uniqueViolation maps driver specific duplicate key errors onto the
// sentinels above.  It returns nil when err is not a duplicate key error.
func uniqueViolation(err error) error {
	msg := strings.ToLower(err.Error())
	var me *mysql.MySQLError
	dup := (errors.As(err, &me) && me.Number == 1062) || strings.Contains(msg, "unique constraint failed")
	if !dup {
		return nil
	}
	if strings.Contains(msg, "phone_number") {
		return ErrPhoneExists
	}
	return ErrEmailExists
}
