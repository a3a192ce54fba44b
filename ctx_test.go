package auth_test

import (
	"context"
	"testing"

	auth "github.com/goliatone/go-portal-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrincipalFromContext(t *testing.T) {
	p := mustPrincipal(t, "p1", auth.RoleParent)

	got, ok := auth.PrincipalFromContext(auth.WithPrincipal(context.Background(), p))
	require.True(t, ok)
	assert.Equal(t, p, got)

	_, ok = auth.PrincipalFromContext(context.Background())
	assert.False(t, ok)

	var nilCtx context.Context
	_, ok = auth.PrincipalFromContext(nilCtx)
	assert.False(t, ok)

	_, ok = auth.PrincipalFromContext(auth.WithPrincipal(context.Background(), auth.Principal{}))
	assert.False(t, ok)
}

func TestHasRole(t *testing.T) {
	ctx := auth.WithPrincipal(context.Background(), mustPrincipal(t, "a1", auth.RoleAdmin))

	assert.True(t, auth.HasRole(ctx, auth.RoleAdmin))
	assert.False(t, auth.HasRole(ctx, auth.RoleTeacher))
	assert.False(t, auth.HasRole(context.Background(), auth.RoleAdmin))
}

func TestGetRouterPrincipal(t *testing.T) {
	p := mustPrincipal(t, "s1", auth.RoleStudent, auth.WithGrade(2))

	t.Run("from locals", func(t *testing.T) {
		ctx := newMockContext("GET", "/")
		ctx.Locals(auth.PrincipalLocalsKey, p)

		got, ok := auth.GetRouterPrincipal(ctx)
		require.True(t, ok)
		assert.Equal(t, 2, got.Grade())
	})

	t.Run("falls back to the request context", func(t *testing.T) {
		ctx := newMockContext("GET", "/")
		ctx.SetContext(auth.WithPrincipal(context.Background(), p))

		got, ok := auth.GetRouterPrincipal(ctx)
		require.True(t, ok)
		assert.Equal(t, "s1", got.ID())
	})

	t.Run("wrong locals type", func(t *testing.T) {
		ctx := newMockContext("GET", "/")
		ctx.Locals(auth.PrincipalLocalsKey, "s1")

		_, ok := auth.GetRouterPrincipal(ctx)
		assert.False(t, ok)
	})
}
