package auth

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Principal is the resolved identity for a request. It has no setters;
// once built it does not change.
type Principal struct {
	id             string
	role           Role
	email          string
	name           string
	organizationID string
	studentCode    string
	grade          int
}

// PrincipalOption sets an optional attribute while building a Principal
type PrincipalOption func(*Principal)

func WithEmail(email string) PrincipalOption {
	return func(p *Principal) {
		p.email = strings.TrimSpace(email)
	}
}

func WithName(name string) PrincipalOption {
	return func(p *Principal) {
		p.name = name
	}
}

func WithOrganization(orgID string) PrincipalOption {
	return func(p *Principal) {
		p.organizationID = orgID
	}
}

// WithStudentCode sets the one time code students sign in with
func WithStudentCode(code string) PrincipalOption {
	return func(p *Principal) {
		p.studentCode = code
	}
}

// WithGrade only applies to students, other roles ignore it
func WithGrade(grade int) PrincipalOption {
	return func(p *Principal) {
		p.grade = grade
	}
}

// NewPrincipal validates the id and role and applies options
func NewPrincipal(id string, role Role, opts ...PrincipalOption) (Principal, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Principal{}, goerrors.New("principal id is required", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}

	if !role.IsValid() {
		return Principal{}, goerrors.New("principal role is invalid", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest).
			WithMetadata(map[string]any{"role": string(role)})
	}

	p := Principal{id: id, role: role}
	for _, opt := range opts {
		if opt != nil {
			opt(&p)
		}
	}

	if role != RoleStudent {
		p.grade = 0
	}

	return p, nil
}

// PrincipalFromUser maps a stored user onto a Principal
func PrincipalFromUser(u *User) (Principal, error) {
	if u == nil {
		return Principal{}, goerrors.New("user is required", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}

	return NewPrincipal(u.ID.String(), u.Role,
		WithEmail(u.Email),
		WithName(u.Name),
		WithOrganization(u.OrganizationID),
		WithStudentCode(u.StudentCode),
		WithGrade(u.Grade),
	)
}

func (p Principal) ID() string             { return p.id }
func (p Principal) Role() Role             { return p.role }
func (p Principal) Email() string          { return p.email }
func (p Principal) Name() string           { return p.name }
func (p Principal) OrganizationID() string { return p.organizationID }
func (p Principal) StudentCode() string    { return p.studentCode }
func (p Principal) Grade() int             { return p.grade }

// IsZero reports an unset Principal
func (p Principal) IsZero() bool {
	return p.id == ""
}

// HasRole matches exactly, see Role.Is
func (p Principal) HasRole(role Role) bool {
	return p.role.Is(role)
}
