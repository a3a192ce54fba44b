package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTClaims is the payload carried by a session token. The registered
// claims hold sub, jti, iat and exp; the rest describe the principal.
type JWTClaims struct {
	jwt.RegisteredClaims
	UserRole       string `json:"role"`
	Email          string `json:"email,omitempty"`
	Name           string `json:"name,omitempty"`
	OrganizationID string `json:"org,omitempty"`
	StudentCode    string `json:"uuid,omitempty"`
	Grade          int    `json:"grade,omitempty"`
}

// Subject returns the subject claim
func (c *JWTClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// TokenID returns the jti claim used to find the session record
func (c *JWTClaims) TokenID() string {
	return c.RegisteredClaims.ID
}

// Role returns the role claim
func (c *JWTClaims) Role() string {
	return c.UserRole
}

// Expires returns the expiration time
func (c *JWTClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

// IsExpired reports whether exp is strictly before now. A token without
// exp never passes this check.
func (c *JWTClaims) IsExpired(now time.Time) bool {
	exp := c.Expires()
	if exp.IsZero() {
		return true
	}
	return now.After(exp)
}

// complete reports whether the claims carry what a principal needs
func (c *JWTClaims) complete() bool {
	return c.Subject() != "" &&
		c.TokenID() != "" &&
		c.UserRole != "" &&
		c.RegisteredClaims.ExpiresAt != nil &&
		c.RegisteredClaims.IssuedAt != nil
}

// Principal builds the principal described by the claims
func (c *JWTClaims) Principal() (Principal, error) {
	role, ok := ParseRole(c.UserRole)
	if !ok {
		return Principal{}, ErrMalformedCredential.Clone().
			WithMetadata(map[string]any{"role": c.UserRole})
	}

	return NewPrincipal(c.Subject(), role,
		WithEmail(c.Email),
		WithName(c.Name),
		WithOrganization(c.OrganizationID),
		WithStudentCode(c.StudentCode),
		WithGrade(c.Grade),
	)
}

func claimsFromPrincipal(p Principal) *JWTClaims {
	return &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: p.ID(),
		},
		UserRole:       p.Role().String(),
		Email:          p.Email(),
		Name:           p.Name(),
		OrganizationID: p.OrganizationID(),
		StudentCode:    p.StudentCode(),
		Grade:          p.Grade(),
	}
}
