package auth_test

import (
	"testing"

	auth "github.com/goliatone/go-portal-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in     string
		want   auth.Role
		wantOK bool
	}{
		{in: "STUDENT", want: auth.RoleStudent, wantOK: true},
		{in: "teacher", want: auth.RoleTeacher, wantOK: true},
		{in: " Parent ", want: auth.RoleParent, wantOK: true},
		{in: "admin", want: auth.RoleAdmin, wantOK: true},
		{in: "superadmin", wantOK: false},
		{in: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := auth.ParseRole(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestRoleIsExactMatch(t *testing.T) {
	for _, a := range auth.GetAllRoles() {
		for _, b := range auth.GetAllRoles() {
			assert.Equal(t, a == b, a.Is(b), "%s.Is(%s)", a, b)
		}
	}

	assert.False(t, auth.Role("").Is(""))
	assert.False(t, auth.Role("OWNER").Is("OWNER"))
}

func TestRoleUsesStudentCode(t *testing.T) {
	assert.True(t, auth.RoleStudent.UsesStudentCode())
	assert.False(t, auth.RoleTeacher.UsesStudentCode())
	assert.False(t, auth.RoleParent.UsesStudentCode())
	assert.False(t, auth.RoleAdmin.UsesStudentCode())
	assert.False(t, auth.Role("OWNER").UsesStudentCode())
}

func TestRoleValueAndScan(t *testing.T) {
	v, err := auth.RoleParent.Value()
	require.NoError(t, err)
	assert.Equal(t, "PARENT", v)

	_, err = auth.Role("OWNER").Value()
	assert.Error(t, err)

	var r auth.Role
	require.NoError(t, r.Scan([]byte("admin")))
	assert.Equal(t, auth.RoleAdmin, r)

	require.NoError(t, r.Scan(nil))
	assert.Equal(t, auth.Role(""), r)

	assert.Error(t, r.Scan("OWNER"))
	assert.Error(t, r.Scan(42))
}
