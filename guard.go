package auth

import (
	"context"
	"fmt"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// RequestContext is the part of a request the guard reads. go-router's
// router.Context satisfies it.
type RequestContext interface {
	Context() context.Context
	Cookies(key string, defaultValue ...string) string
	Header(key string) string
}

// DenialKind separates "who are you" from "not for you"
type DenialKind string

const (
	DenialUnauthenticated DenialKind = "unauthenticated"
	DenialForbidden       DenialKind = "forbidden"
)

// Denial is the expected outcome of a failed guard check. Handlers turn it
// into a redirect to Redirect.
type Denial struct {
	Kind     DenialKind
	Reason   FailureReason
	Required Role
	Redirect string
}

func (d *Denial) Error() string {
	if d.Kind == DenialForbidden {
		return fmt.Sprintf("access denied: requires role %s", d.Required)
	}
	return fmt.Sprintf("authentication required: %s", d.Reason)
}

// Unwrap exposes the client facing rich error. Every credential failure,
// malformed included, surfaces as ErrUnauthenticated.
func (d *Denial) Unwrap() error {
	if d.Kind == DenialForbidden {
		return ErrForbidden.Clone().
			WithMetadata(map[string]any{"required_role": string(d.Required)})
	}
	return ErrUnauthenticated.Clone().
		WithMetadata(map[string]any{"reason": string(d.Reason)})
}

// AsDenial extracts a Denial from err
func AsDenial(err error) (*Denial, bool) {
	var d *Denial
	if goerrors.As(err, &d) {
		return d, true
	}
	return nil, false
}

// Guard enforces "is authenticated" and "has role" for handlers
type Guard struct {
	resolver   *Resolver
	extractors []TokenExtractor
	signInPath string
	logger     Logger
}

func NewGuard(resolver *Resolver, cfg Config) *Guard {
	signIn := cfg.GetSignInPath()
	if signIn == "" {
		signIn = "/signin"
	}

	return &Guard{
		resolver:   resolver,
		extractors: ExtractorsFromLookup(cfg.GetTokenLookup(), cfg.GetAuthScheme()),
		signInPath: signIn,
		logger:     defLogger{},
	}
}

func (g *Guard) WithLogger(logger Logger) *Guard {
	g.logger = normalizeLogger(logger)
	return g
}

// RequireAuth resolves the request credential or returns a *Denial.
// Datastore failures are returned as is and are not denials.
func (g *Guard) RequireAuth(rc RequestContext) (Principal, error) {
	raw := g.Token(rc)

	principal, err := g.resolver.Resolve(rc.Context(), raw)
	if err == nil {
		return principal, nil
	}

	if reason, ok := FailureReasonOf(err); ok {
		return Principal{}, &Denial{
			Kind:     DenialUnauthenticated,
			Reason:   reason,
			Redirect: g.signInPath,
		}
	}

	return Principal{}, err
}

// RequireRole matches the role exactly
func (g *Guard) RequireRole(rc RequestContext, role Role) (Principal, error) {
	principal, err := g.RequireAuth(rc)
	if err != nil {
		return Principal{}, err
	}

	if !principal.HasRole(role) {
		g.logger.Info("guard rejected role", "required", role, "actual", principal.Role(), "user_id", principal.ID())
		return Principal{}, &Denial{
			Kind:     DenialForbidden,
			Required: role,
			Redirect: g.SignInPathFor(role),
		}
	}

	return principal, nil
}

// GetOptionalAuth returns nil for anonymous requests or any credential
// failure. Only datastore failures produce an error.
func (g *Guard) GetOptionalAuth(rc RequestContext) (*Principal, error) {
	principal, err := g.RequireAuth(rc)
	if err == nil {
		return &principal, nil
	}

	if _, ok := AsDenial(err); ok {
		return nil, nil
	}

	return nil, err
}

// Token returns the first non empty credential found by the extractors
func (g *Guard) Token(rc RequestContext) string {
	for _, extract := range g.extractors {
		if token := extract(rc); token != "" {
			return token
		}
	}
	return ""
}

// SignInPathFor returns the sign in page of the portal that serves role
func (g *Guard) SignInPathFor(role Role) string {
	switch role {
	case RoleStudent:
		return "/student" + g.signInPath
	case RoleTeacher:
		return "/teacher" + g.signInPath
	case RoleParent:
		return "/parent" + g.signInPath
	case RoleAdmin:
		return "/admin" + g.signInPath
	default:
		return g.signInPath
	}
}

// TokenExtractor pulls a raw credential out of a request
type TokenExtractor func(rc RequestContext) string

// ExtractorsFromLookup parses "cookie:<name>,header:<name>" lookups
func ExtractorsFromLookup(tokenLookup, authScheme string) []TokenExtractor {
	if strings.TrimSpace(tokenLookup) == "" {
		tokenLookup = "cookie:portal_session,header:Authorization"
	}

	extractors := make([]TokenExtractor, 0, 2)

	for _, rootPart := range strings.Split(tokenLookup, ",") {
		parts := strings.SplitN(strings.TrimSpace(rootPart), ":", 2)
		if len(parts) != 2 {
			continue
		}

		source, name := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		switch source {
		case "header":
			extractors = append(extractors, tokenFromHeader(name, authScheme))
		case "cookie":
			extractors = append(extractors, tokenFromCookie(name))
		}
	}

	return extractors
}

func tokenFromHeader(header, authScheme string) TokenExtractor {
	authScheme = strings.TrimSpace(authScheme)
	return func(rc RequestContext) string {
		a := strings.TrimSpace(rc.Header(header))
		if authScheme == "" {
			return a
		}
		l := len(authScheme)
		if len(a) > l+1 && strings.EqualFold(a[:l], authScheme) && a[l] == ' ' {
			return strings.TrimSpace(a[l:])
		}
		return ""
	}
}

func tokenFromCookie(name string) TokenExtractor {
	return func(rc RequestContext) string {
		return strings.TrimSpace(rc.Cookies(name))
	}
}
