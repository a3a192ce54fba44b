package auth

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// Role is the portal a principal belongs to. The set is closed: every
// switch over Role handles the four values and treats anything else as
// invalid.
type Role string

const (
	RoleStudent Role = "STUDENT"
	RoleTeacher Role = "TEACHER"
	RoleParent  Role = "PARENT"
	RoleAdmin   Role = "ADMIN"
)

// IsValid checks if the role is one of the predefined valid roles
func (r Role) IsValid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleParent, RoleAdmin:
		return true
	default:
		return false
	}
}

// Is matches roles exactly. There is no hierarchy: ADMIN is not a TEACHER.
func (r Role) Is(other Role) bool {
	return r.IsValid() && r == other
}

func (r Role) String() string {
	return string(r)
}

// UsesStudentCode reports whether the role signs in with a one time code
// instead of email and password.
func (r Role) UsesStudentCode() bool {
	switch r {
	case RoleStudent:
		return true
	case RoleTeacher, RoleParent, RoleAdmin:
		return false
	default:
		return false
	}
}

// Value implements driver.Valuer
func (r Role) Value() (driver.Value, error) {
	if !r.IsValid() {
		return nil, fmt.Errorf("invalid role %q", string(r))
	}
	return string(r), nil
}

// Scan implements sql.Scanner
func (r *Role) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	case nil:
		*r = ""
		return nil
	default:
		return fmt.Errorf("unsupported role type %T", src)
	}

	role, ok := ParseRole(raw)
	if !ok {
		return fmt.Errorf("invalid role %q", raw)
	}
	*r = role
	return nil
}

// GetAllRoles returns all predefined roles
func GetAllRoles() []Role {
	return []Role{
		RoleStudent,
		RoleTeacher,
		RoleParent,
		RoleAdmin,
	}
}

// ParseRole safely parses a string into a Role, accepting any letter case
func ParseRole(roleStr string) (Role, bool) {
	role := Role(strings.ToUpper(strings.TrimSpace(roleStr)))
	return role, role.IsValid()
}
