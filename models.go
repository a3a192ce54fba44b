package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the identity record shared by all four portals. Students sign in
// with StudentCode and usually have no email or password.
type User struct {
	bun.BaseModel   `bun:"table:users,alias:usr"`
	ID              uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Role            Role       `bun:"user_role,notnull" json:"user_role,omitempty"`
	Name            string     `bun:"name,nullzero" json:"name,omitempty"`
	Email           string     `bun:"email,nullzero,unique" json:"email,omitempty"`
	PasswordHash    string     `bun:"password_hash,nullzero" json:"-"`
	StudentCode     string     `bun:"student_code,nullzero,unique" json:"student_code,omitempty"`
	Grade           int        `bun:"grade,nullzero" json:"grade,omitempty"`
	OrganizationID  string     `bun:"organization_id,nullzero" json:"organization_id,omitempty"`
	EmailVerified   bool       `bun:"is_email_verified,notnull,default:false" json:"is_email_verified"`
	EmailVerifiedAt *time.Time `bun:"email_verified_at,nullzero" json:"email_verified_at,omitempty"`
	CreatedAt       *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt       *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Session is the server side record of an issued token. TokenID matches
// the token jti claim.
type Session struct {
	bun.BaseModel `bun:"table:sessions,alias:ses"`
	ID            uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	TokenID       string    `bun:"token_id,notnull,unique" json:"token_id"`
	UserID        uuid.UUID `bun:"user_id,notnull,type:uuid" json:"user_id"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"created_at"`
	ExpiresAt     time.Time `bun:"expires_at,notnull" json:"expires_at"`
	LastActiveAt  time.Time `bun:"last_active_at,notnull" json:"last_active_at"`
}

// VerificationState is derived from a verification record and the clock
type VerificationState string

const (
	VerificationNone     VerificationState = "none"
	VerificationPending  VerificationState = "pending"
	VerificationVerified VerificationState = "verified"
	VerificationExpired  VerificationState = "expired"
)

// EmailVerification is a single use token proving control of Email.
// Once Verified is set the row is never written again.
type EmailVerification struct {
	bun.BaseModel `bun:"table:email_verifications,alias:evf"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Token         string     `bun:"token,notnull,unique" json:"-"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id"`
	Email         string     `bun:"email,notnull" json:"email"`
	Verified      bool       `bun:"verified,notnull,default:false" json:"verified"`
	VerifiedAt    *time.Time `bun:"verified_at,nullzero" json:"verified_at,omitempty"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at"`
	CreatedAt     time.Time  `bun:"created_at,notnull" json:"created_at"`
}

// State derives the workflow state at now
func (v *EmailVerification) State(now time.Time) VerificationState {
	switch {
	case v == nil:
		return VerificationNone
	case v.Verified:
		return VerificationVerified
	case now.After(v.ExpiresAt):
		return VerificationExpired
	default:
		return VerificationPending
	}
}

// ParentChildLink grants a parent access to a child's data while active
type ParentChildLink struct {
	bun.BaseModel `bun:"table:parent_child_links,alias:pcl"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	ParentID      uuid.UUID  `bun:"parent_id,notnull,type:uuid" json:"parent_id"`
	ChildID       uuid.UUID  `bun:"child_id,notnull,type:uuid" json:"child_id"`
	IsActive      bool       `bun:"is_active,notnull,default:true" json:"is_active"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// SessionStats aggregates session rows at a point in time
type SessionStats struct {
	Active  int `json:"active"`
	Expired int `json:"expired"`
	Total   int `json:"total"`
}
