package utils

import (
	"errors"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ErrWeakPassword is returned by CheckPasswordStrength.
var ErrWeakPassword = errors.New("password must be at least 8 characters and contain an uppercase letter, a lowercase letter and a digit")

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// HashPassword returns bcrypt hash using the given cost.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword safely compares bcrypt hash and plain password.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// DummyPasswordHash returns a bcrypt hash of a random value.  Comparing a
// password against it costs the same as a real comparison and never matches,
// which keeps unknown accounts indistinguishable by timing.
func DummyPasswordHash(cost int) string {
	h, err := HashPassword(uuid.NewString(), cost)
	if err != nil {
		// Only reachable with an invalid cost; fall back to the default cost.
		h, _ = HashPassword(uuid.NewString(), bcrypt.DefaultCost)
	}
	return h
}

// CheckPasswordStrength enforces: at least 8 characters, one uppercase
// letter, one lowercase letter and one digit.
func CheckPasswordStrength(p string) error {
	if len([]rune(p)) < MinPasswordLength {
		return ErrWeakPassword
	}
	var upper, lower, digit bool
	for _, r := range p {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper || !lower || !digit {
		return ErrWeakPassword
	}
	return nil
}
