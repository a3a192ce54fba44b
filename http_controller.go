package auth

import (
	"net/http"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// RegisterAuthRoutes mounts the sign in, verification, guardian and
// maintenance routes.
func RegisterAuthRoutes[T any](app router.Router[T], controller *AuthController) {
	auther := controller.Auther

	app.Post(controller.Routes.SignIn, controller.SignInPost).
		SetName("sign-in.post")

	app.Post(controller.Routes.StudentSignIn, controller.StudentSignInPost).
		SetName("student-sign-in.post")

	app.Post(controller.Routes.Logout, controller.LogOut).
		SetName("sign-out.post")

	app.Get(controller.Routes.Me, controller.Me, auther.OptionalAuth()).
		SetName("me.get")

	app.Post(controller.Routes.RequestVerification, controller.RequestVerificationPost, auther.Protected()).
		SetName("verify-email-request.post")

	app.Get(controller.Routes.VerifyEmail+"/:token", controller.VerifyEmail).
		SetName("verify-email.get")

	app.Get(controller.Routes.ChildProgress+"/:child/progress", controller.ChildProgress, auther.ProtectedRole(RoleParent)).
		SetName("parent-child-progress.get")

	app.Post(controller.Routes.MaintenanceSweep, controller.MaintenanceSweep, auther.MaintenanceGate()).
		SetName("maintenance-sweep.post")

	app.Get(controller.Routes.MaintenanceStats, controller.MaintenanceStats, auther.MaintenanceGate()).
		SetName("maintenance-stats.get")
}

type AuthControllerRoutes struct {
	SignIn              string
	StudentSignIn       string
	Logout              string
	Me                  string
	RequestVerification string
	VerifyEmail         string
	ChildProgress       string
	MaintenanceSweep    string
	MaintenanceStats    string
}

type AuthController struct {
	Logger        Logger
	Routes        *AuthControllerRoutes
	Auther        *RouteAuthenticator
	Sessions      *SessionManager
	Verifications *VerificationWorkflow
	Janitor       *Janitor
	Children      *ChildAccess
	Progress      ProgressProvider
}

type AuthControllerOption func(*AuthController) *AuthController

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Logger = normalizeLogger(logger)
		return c
	}
}

func WithProgressProvider(p ProgressProvider) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Progress = p
		return c
	}
}

func WithControllerRoutes(routes *AuthControllerRoutes) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if routes != nil {
			c.Routes = routes
		}
		return c
	}
}

func NewAuthController(auther *RouteAuthenticator, sessions *SessionManager, verifications *VerificationWorkflow, janitor *Janitor, children *ChildAccess, opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:        defLogger{},
		Auther:        auther,
		Sessions:      sessions,
		Verifications: verifications,
		Janitor:       janitor,
		Children:      children,
		Routes: &AuthControllerRoutes{
			SignIn:              "/signin",
			StudentSignIn:       "/student/signin",
			Logout:              "/logout",
			Me:                  "/me",
			RequestVerification: "/verify-email",
			VerifyEmail:         "/verify-email",
			ChildProgress:       "/parent/children",
			MaintenanceSweep:    "/maintenance/sessions/sweep",
			MaintenanceStats:    "/maintenance/sessions/stats",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Auther == nil {
		panic("Missing RouteAuthenticator in auth controller...")
	}

	if c.Sessions == nil {
		panic("Missing SessionManager in auth controller...")
	}

	return c
}

// SignInRequest payload
type SignInRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r SignInRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.EmailFormat),
		validation.Field(&r.Password, validation.Required),
	)
}

// StudentSignInRequest payload
type StudentSignInRequest struct {
	Code string `form:"code" json:"code"`
}

func (r StudentSignInRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Code, validation.Required, is.UUID),
	)
}

// VerificationRequest payload, Email defaults to the principal email
type VerificationRequest struct {
	Email string `form:"email" json:"email"`
}

func (a *AuthController) SignInPost(ctx router.Context) error {
	payload := new(SignInRequest)
	if err := ctx.Bind(payload); err != nil {
		return writeError(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid sign in payload").
			WithCode(goerrors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return writeError(ctx, goerrors.FromOzzoValidation(err, "invalid sign in payload").
			WithCode(goerrors.CodeBadRequest))
	}

	token, principal, err := a.Sessions.SignInWithPassword(ctx.Context(), payload.Email, payload.Password)
	if err != nil {
		return writeError(ctx, err)
	}

	return a.completeSignIn(ctx, token, principal)
}

func (a *AuthController) StudentSignInPost(ctx router.Context) error {
	payload := new(StudentSignInRequest)
	if err := ctx.Bind(payload); err != nil {
		return writeError(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid sign in payload").
			WithCode(goerrors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return writeError(ctx, goerrors.FromOzzoValidation(err, "invalid sign in payload").
			WithCode(goerrors.CodeBadRequest))
	}

	token, principal, err := a.Sessions.SignInStudent(ctx.Context(), payload.Code)
	if err != nil {
		return writeError(ctx, err)
	}

	return a.completeSignIn(ctx, token, principal)
}

func (a *AuthController) completeSignIn(ctx router.Context, token IssuedToken, principal Principal) error {
	a.Auther.SetSessionCookie(ctx, token)
	redirect := a.Auther.GetRedirect(ctx, PortalHome(principal.Role()))

	return ctx.JSON(http.StatusOK, router.ViewContext{
		"redirect":   redirect,
		"expires_at": token.ExpiresAt,
		"role":       principal.Role(),
	})
}

// LogOut deletes the server side session and always clears the cookie
func (a *AuthController) LogOut(ctx router.Context) error {
	raw := a.Auther.Guard().Token(ctx)

	if _, err := a.Sessions.Logout(ctx.Context(), raw); err != nil {
		a.Logger.Error("logout failed", "error", err)
		a.Auther.ClearSessionCookie(ctx)
		return writeError(ctx, err)
	}

	a.Auther.ClearSessionCookie(ctx)
	return ctx.Redirect(a.Auther.Guard().signInPath, http.StatusFound)
}

func (a *AuthController) Me(ctx router.Context) error {
	principal, ok := GetRouterPrincipal(ctx)
	if !ok {
		return ctx.JSON(http.StatusOK, router.ViewContext{
			"authenticated": false,
		})
	}

	return ctx.JSON(http.StatusOK, router.ViewContext{
		"authenticated": true,
		"id":            principal.ID(),
		"role":          principal.Role(),
		"name":          principal.Name(),
		"email":         principal.Email(),
	})
}

func (a *AuthController) RequestVerificationPost(ctx router.Context) error {
	principal, ok := GetRouterPrincipal(ctx)
	if !ok {
		return a.Auther.AuthErrorHandler(ctx, ErrUnauthenticated.Clone())
	}

	payload := new(VerificationRequest)
	if err := ctx.Bind(payload); err != nil {
		return writeError(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid verification payload").
			WithCode(goerrors.CodeBadRequest))
	}

	email := strings.TrimSpace(payload.Email)
	if email == "" {
		email = principal.Email()
	}

	userID, err := uuid.Parse(principal.ID())
	if err != nil {
		return writeError(ctx, ErrMalformedCredential.Clone())
	}

	if _, err := a.Verifications.RequestVerification(ctx.Context(), userID, email); err != nil {
		return writeError(ctx, err)
	}

	return ctx.JSON(http.StatusAccepted, router.ViewContext{
		"status": "sent",
	})
}

// VerifyEmail reports every outcome as a page state, none of them is an
// error response.
func (a *AuthController) VerifyEmail(ctx router.Context) error {
	result, err := a.Verifications.Consume(ctx.Context(), ctx.Param("token"))
	if err != nil {
		return writeError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, router.ViewContext{
		"state": result.Outcome,
		"email": result.Email,
	})
}

// ChildProgress checks the parent/child link on every request
func (a *AuthController) ChildProgress(ctx router.Context) error {
	principal, ok := GetRouterPrincipal(ctx)
	if !ok {
		return a.Auther.AuthErrorHandler(ctx, ErrUnauthenticated.Clone())
	}

	progress, err := a.Children.LoadProgress(ctx.Context(), principal, ctx.Param("child"), a.Progress)
	if err != nil {
		return writeError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, router.ViewContext{
		"progress": progress,
	})
}

func (a *AuthController) MaintenanceSweep(ctx router.Context) error {
	report, err := a.Janitor.Sweep(ctx.Context())
	if err != nil {
		return writeError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, report)
}

func (a *AuthController) MaintenanceStats(ctx router.Context) error {
	stats, err := a.Janitor.Stats(ctx.Context())
	if err != nil {
		return writeError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, stats)
}

// PortalHome is the landing page of the portal that serves role
func PortalHome(role Role) string {
	switch role {
	case RoleStudent:
		return "/student"
	case RoleTeacher:
		return "/teacher"
	case RoleParent:
		return "/parent"
	case RoleAdmin:
		return "/admin"
	default:
		return "/"
	}
}
