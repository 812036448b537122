package utils // package utils provides helpers for token signing, hashing and passwords

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType discriminates access tokens from refresh tokens.  It travels in
// the "type" claim.
type TokenType string

const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

// Verification failures.  Verify never returns anything else for a token it
// could not accept.
var (
	ErrInvalidSignature = errors.New("token signature is invalid")
	ErrExpired          = errors.New("token is expired")
	ErrMalformedToken   = errors.New("token is malformed")
)

// Claims is the claim set carried by both token types: sub, role, type, iat,
// exp and a random jti.
type Claims struct {
	Role string    `json:"role,omitempty"`
	Type TokenType `json:"type"`
	jwt.RegisteredClaims
}

// Issued is a signed token together with the claims it carries.
type Issued struct {
	Token     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenCodec signs and verifies HS256 tokens with a process wide secret.
// Rotating the secret invalidates every outstanding token.
type TokenCodec struct {
	secret []byte
	now    func() time.Time
}

// CodecOption customizes a TokenCodec.
type CodecOption func(*TokenCodec)

// WithCodecClock injects the clock used for iat/exp and for verification.
func WithCodecClock(now func() time.Time) CodecOption {
	return func(c *TokenCodec) {
		if now != nil {
			c.now = now
		}
	}
}

func NewTokenCodec(secret string, opts ...CodecOption) *TokenCodec {
	c := &TokenCodec{secret: []byte(secret), now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Issue signs a token for subject with the given role, type and lifetime.
func (c *TokenCodec) Issue(subject, role string, typ TokenType, ttl time.Duration) (Issued, error) {
	now := c.now().UTC()
	iat := jwt.NewNumericDate(now)
	exp := jwt.NewNumericDate(now.Add(ttl))
	claims := Claims{
		Role: role,
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  iat,
			ExpiresAt: exp,
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return Issued{}, err
	}
	return Issued{Token: signed, IssuedAt: iat.Time, ExpiresAt: exp.Time}, nil
}

// Verify checks structure, signature and expiry, in that order, and returns
// the claims.  Type, role and revocation checks belong to the caller.
func (c *TokenCodec) Verify(token string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	claims := &Claims{}
	tok, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrInvalidSignature
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpired
		default:
			return nil, ErrMalformedToken
		}
	}
	if !tok.Valid || claims.Subject == "" || claims.Type == "" {
		return nil, ErrMalformedToken
	}
	return claims, nil
}

// Inspect checks structure and signature but not expiry.  Logout uses it to
// read the exp claim of a token that may already have expired.
func (c *TokenCodec) Inspect(token string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	claims := &Claims{}
	tok, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, ErrInvalidSignature
		}
		return nil, ErrMalformedToken
	}
	if !tok.Valid || claims.Subject == "" || claims.Type == "" || claims.ExpiresAt == nil {
		return nil, ErrMalformedToken
	}
	return claims, nil
}

// HashToken returns the SHA-256 hex digest of a raw token.  Only the digest of
// a refresh token is stored so a leaked row cannot be replayed.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// NewActivationToken returns 32 random bytes encoded as unpadded base64url.
func NewActivationToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
