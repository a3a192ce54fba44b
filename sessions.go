package auth

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SessionManager issues tokens together with their session records and
// removes them on logout or revocation.
type SessionManager struct {
	repo         RepositoryManager
	tokens       *TokenService
	ttl          time.Duration
	logger       Logger
	activitySink ActivitySink
}

func NewSessionManager(repo RepositoryManager, tokens *TokenService, ttl time.Duration) *SessionManager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionManager{
		repo:         repo,
		tokens:       tokens,
		ttl:          ttl,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}
}

func (s *SessionManager) WithLogger(logger Logger) *SessionManager {
	s.logger = normalizeLogger(logger)
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *SessionManager) WithActivitySink(sink ActivitySink) *SessionManager {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// TTL is the lifetime of tokens issued by this manager
func (s *SessionManager) TTL() time.Duration {
	return s.ttl
}

// SignIn issues a token for principal and stores its session record
func (s *SessionManager) SignIn(ctx context.Context, principal Principal) (IssuedToken, error) {
	select {
	case <-ctx.Done():
		return IssuedToken{}, goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during sign in")
	default:
	}

	userID, err := uuid.Parse(principal.ID())
	if err != nil {
		return IssuedToken{}, goerrors.Wrap(err, goerrors.CategoryValidation, "principal id must be a uuid").
			WithCode(goerrors.CodeBadRequest)
	}

	issued, err := s.tokens.Issue(principal, s.ttl)
	if err != nil {
		return IssuedToken{}, err
	}

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := s.repo.Sessions().CreateTx(ctx, tx, userID, issued.TokenID, issued.IssuedAt, issued.ExpiresAt)
		return err
	})
	if err != nil {
		s.logger.Error("SignIn failed to persist session", "user_id", principal.ID(), "error", err)
		return IssuedToken{}, datastoreFailure(err, "create session")
	}

	recordActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType: ActivityEventSignInSuccess,
		UserID:    principal.ID(),
		Role:      principal.Role(),
		Metadata:  map[string]any{"token_id": issued.TokenID},
	})

	return issued, nil
}

// SignInWithPassword is for the TEACHER, PARENT and ADMIN portals.
// Every rejection returns ErrInvalidCredentials so callers cannot tell an
// unknown email from a wrong password.
func (s *SessionManager) SignInWithPassword(ctx context.Context, email, password string) (IssuedToken, Principal, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.repo.Users().GetByEmail(ctx, email)
	if err != nil {
		if !repository.IsRecordNotFound(err) {
			return IssuedToken{}, Principal{}, datastoreFailure(err, "find user by email")
		}
		_ = ComparePasswordAndHash(password, string(dummyHash))
		return s.rejectSignIn(ctx, "", "unknown email")
	}

	if user.Role.UsesStudentCode() {
		return s.rejectSignIn(ctx, user.ID.String(), "password sign in not allowed for role")
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		return s.rejectSignIn(ctx, user.ID.String(), "password mismatch")
	}

	return s.signInUser(ctx, user)
}

// SignInStudent signs a student in with the one time code printed on
// their card.
func (s *SessionManager) SignInStudent(ctx context.Context, code string) (IssuedToken, Principal, error) {
	code = strings.TrimSpace(code)
	if !isUUID(code) {
		return s.rejectSignIn(ctx, "", "student code is not a uuid")
	}

	user, err := s.repo.Users().GetByStudentCode(ctx, code)
	if err != nil {
		if !repository.IsRecordNotFound(err) {
			return IssuedToken{}, Principal{}, datastoreFailure(err, "find user by student code")
		}
		return s.rejectSignIn(ctx, "", "unknown student code")
	}

	if !user.Role.UsesStudentCode() {
		return s.rejectSignIn(ctx, user.ID.String(), "student code sign in not allowed for role")
	}

	return s.signInUser(ctx, user)
}

func (s *SessionManager) signInUser(ctx context.Context, user *User) (IssuedToken, Principal, error) {
	principal, err := PrincipalFromUser(user)
	if err != nil {
		return IssuedToken{}, Principal{}, err
	}

	issued, err := s.SignIn(ctx, principal)
	if err != nil {
		return IssuedToken{}, Principal{}, err
	}
	return issued, principal, nil
}

func (s *SessionManager) rejectSignIn(ctx context.Context, userID, reason string) (IssuedToken, Principal, error) {
	s.logger.Info("sign in rejected", "reason", reason)
	recordActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType: ActivityEventSignInFailure,
		UserID:    userID,
		Metadata:  map[string]any{"reason": reason},
	})
	return IssuedToken{}, Principal{}, ErrInvalidCredentials.Clone()
}

// Logout deletes the session of raw. Expired tokens are accepted, the
// signature is still checked so a forged token cannot revoke someone
// else's session. It returns the number of records removed.
func (s *SessionManager) Logout(ctx context.Context, raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}

	claims, err := s.tokens.Verify(raw)
	if err != nil {
		s.logger.Debug("logout ignored unverifiable token", "error", err)
		return 0, nil
	}

	n, err := s.repo.Sessions().DeleteByTokenID(ctx, claims.TokenID())
	if err != nil {
		return 0, datastoreFailure(err, "delete session")
	}

	recordActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType: ActivityEventLogout,
		UserID:    claims.Subject(),
		Role:      Role(claims.Role()),
		Metadata:  map[string]any{"token_id": claims.TokenID(), "deleted": n},
	})

	return n, nil
}

// RevokeUser deletes every session of userID
func (s *SessionManager) RevokeUser(ctx context.Context, userID uuid.UUID) (int, error) {
	n, err := s.repo.Sessions().DeleteByUserID(ctx, userID)
	if err != nil {
		return 0, datastoreFailure(err, "revoke user sessions")
	}

	s.logger.Info("revoked user sessions", "user_id", userID.String(), "deleted", n)
	recordActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType: ActivityEventSessionsRevoked,
		UserID:    userID.String(),
		Metadata:  map[string]any{"deleted": n},
	})

	return n, nil
}
