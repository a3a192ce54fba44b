package auth

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// MaintenanceHeader carries the shared maintenance secret
const MaintenanceHeader = "X-Maintenance-Token"

// RouteAuthenticator adapts the Guard and SessionManager to go-router
type RouteAuthenticator struct {
	guard            *Guard
	sessions         *SessionManager
	cfg              Config
	cookieDuration   time.Duration
	Logger           Logger
	AuthErrorHandler func(c router.Context, err error) error
	ErrorHandler     func(c router.Context, err error) error
}

func NewHTTPAuthenticator(guard *Guard, sessions *SessionManager, cfg Config) *RouteAuthenticator {
	cookieDuration := cfg.GetTokenTTL()
	if cookieDuration <= 0 {
		cookieDuration = sessions.TTL()
	}

	a := &RouteAuthenticator{
		guard:          guard,
		sessions:       sessions,
		cfg:            cfg,
		cookieDuration: cookieDuration,
		Logger:         defLogger{},
	}

	a.ErrorHandler = a.defaultErrHandler
	a.AuthErrorHandler = a.defaultAuthErrHandler

	return a
}

func (a *RouteAuthenticator) WithLogger(logger Logger) *RouteAuthenticator {
	a.Logger = normalizeLogger(logger)
	return a
}

func (a *RouteAuthenticator) Guard() *Guard {
	return a.guard
}

// Protected requires any authenticated principal
func (a *RouteAuthenticator) Protected() router.MiddlewareFunc {
	return a.ProtectedRole("")
}

// ProtectedRole requires a principal with exactly role. An empty role
// only requires authentication.
func (a *RouteAuthenticator) ProtectedRole(role Role) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			var principal Principal
			var err error

			if role == "" {
				principal, err = a.guard.RequireAuth(c)
			} else {
				principal, err = a.guard.RequireRole(c, role)
			}

			if err != nil {
				if denial, ok := AsDenial(err); ok {
					return a.AuthErrorHandler(c, denial)
				}
				return a.ErrorHandler(c, err)
			}

			a.storePrincipal(c, principal)
			return next(c)
		}
	}
}

// OptionalAuth stores the principal when one resolves and lets anonymous
// requests through.
func (a *RouteAuthenticator) OptionalAuth() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			principal, err := a.guard.GetOptionalAuth(c)
			if err != nil {
				return a.ErrorHandler(c, err)
			}
			if principal != nil {
				a.storePrincipal(c, *principal)
			}
			return next(c)
		}
	}
}

// MaintenanceGate compares the maintenance header with the configured
// secret. An empty secret disables the endpoints.
func (a *RouteAuthenticator) MaintenanceGate() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			secret := a.cfg.GetMaintenanceSecret()
			if secret == "" {
				return writeError(c, ErrMaintenanceDisabled.Clone())
			}

			provided := c.Header(MaintenanceHeader)
			if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
				a.Logger.Warn("maintenance request rejected", "path", c.OriginalURL())
				return writeError(c, ErrMaintenanceDenied.Clone())
			}

			return next(c)
		}
	}
}

func (a *RouteAuthenticator) storePrincipal(c router.Context, p Principal) {
	c.Locals(PrincipalLocalsKey, p)
	c.SetContext(WithPrincipal(c.Context(), p))
}

// GetRedirect returns the route remembered before the sign in redirect
func (a *RouteAuthenticator) GetRedirect(c router.Context, def string) string {
	rejectedRoute := a.cfg.GetRejectedRouteKey()
	r := c.Cookies(rejectedRoute)
	if !isLocalPath(r) {
		return def
	}
	a.cookieDel(c, rejectedRoute)
	return r
}

// isLocalPath rejects anything a browser could resolve to another host.
// Browsers read a backslash as a slash, so "/\host" counts as "//host".
func isLocalPath(r string) bool {
	if len(r) == 0 || r[0] != '/' {
		return false
	}
	if len(r) > 1 && (r[1] == '/' || r[1] == '\\') {
		return false
	}
	return true
}

func (a *RouteAuthenticator) SetRedirect(c router.Context) {
	rejectedRoute := a.cfg.GetRejectedRouteKey()

	a.Logger.Debug("Setting redirect cookie", "key", rejectedRoute, "path", c.OriginalURL())

	c.Cookie(&router.Cookie{
		Name:     rejectedRoute,
		Value:    c.OriginalURL(),
		Expires:  time.Now().Add(time.Minute * 5),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) SetSessionCookie(c router.Context, token IssuedToken) {
	c.Cookie(&router.Cookie{
		Name:     a.cfg.GetCookieName(),
		Value:    token.Raw,
		Expires:  token.ExpiresAt,
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) ClearSessionCookie(c router.Context) {
	a.cookieDel(c, a.cfg.GetCookieName())
}

func (a *RouteAuthenticator) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

// defaultAuthErrHandler redirects to the sign in page. Forbidden is not a
// 403 so the response does not reveal which roles exist.
func (a *RouteAuthenticator) defaultAuthErrHandler(c router.Context, err error) error {
	target := a.guard.signInPath

	denial, ok := AsDenial(err)
	if ok {
		target = denial.Redirect
		switch denial.Reason {
		case ReasonExpired, ReasonSessionRevoked, ReasonInvalidSignature, ReasonMalformed:
			a.ClearSessionCookie(c)
		}
	}

	a.Logger.Info(
		"Authentication error, redirecting to sign in",
		"error", err.Error(),
		"path", c.OriginalURL(),
	)

	a.SetRedirect(c)

	statusCode := http.StatusSeeOther
	if c.Method() == string(router.GET) {
		statusCode = http.StatusFound
	}
	return c.Redirect(target, statusCode)
}

func (a *RouteAuthenticator) defaultErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	a.Logger.Error(
		"Middleware error handler",
		"error", richErr.Message,
		"category", richErr.Category,
		"details", print.MaybePrettyJSON(richErr.Metadata),
	)

	switch richErr.Category {
	case errors.CategoryAuth, errors.CategoryAuthz:
		return a.AuthErrorHandler(c, richErr)
	default:
		return writeError(c, richErr)
	}
}

// writeError renders a rich error as JSON. Internal details stay in the
// logs, clients only see the message and text code.
func writeError(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	code := richErr.Code
	if code == 0 {
		code = http.StatusInternalServerError
	}

	message := richErr.Message
	if code >= http.StatusInternalServerError {
		message = "internal server error"
	}

	return c.JSON(code, router.ViewContext{
		"error":     message,
		"text_code": richErr.TextCode,
	})
}
