package auth

import (
	"context"

	"github.com/goliatone/go-router"
)

// PrincipalLocalsKey is where the HTTP middleware stores the Principal
const PrincipalLocalsKey = "principal"

var principalCtxKey = &contextKey{"principal"}

type contextKey struct {
	name string
}

// WithPrincipal sets the Principal in the given context
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey, p)
}

// PrincipalFromContext finds the Principal in the standard context
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(principalCtxKey).(Principal)
	return p, ok && !p.IsZero()
}

// GetRouterPrincipal extracts the Principal from the router context
func GetRouterPrincipal(ctx router.Context) (Principal, bool) {
	raw := ctx.Locals(PrincipalLocalsKey)
	if raw == nil {
		return PrincipalFromContext(ctx.Context())
	}
	p, ok := raw.(Principal)
	return p, ok && !p.IsZero()
}

// HasRole checks the Principal stored in the standard context
func HasRole(ctx context.Context, role Role) bool {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return false
	}
	return p.HasRole(role)
}
