package auth

import (
	"context"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// FailureReason says why a credential did not resolve. These are expected
// outcomes, datastore failures are reported separately.
type FailureReason string

const (
	ReasonNoToken          FailureReason = "no_token"
	ReasonExpired          FailureReason = "expired"
	ReasonInvalidSignature FailureReason = "invalid_signature"
	ReasonSessionRevoked   FailureReason = "session_revoked"
	ReasonMalformed        FailureReason = "malformed"
)

// Err returns a fresh copy of the rich error for the reason
func (r FailureReason) Err() *goerrors.Error {
	switch r {
	case ReasonNoToken:
		return ErrNoToken.Clone()
	case ReasonExpired:
		return ErrTokenExpired.Clone()
	case ReasonInvalidSignature:
		return ErrInvalidSignature.Clone()
	case ReasonSessionRevoked:
		return ErrSessionRevoked.Clone()
	case ReasonMalformed:
		return ErrMalformedCredential.Clone()
	default:
		return ErrUnauthenticated.Clone()
	}
}

// FailureReasonOf maps an error returned by Resolve back to its reason.
// The second value is false for datastore failures and unknown errors.
func FailureReasonOf(err error) (FailureReason, bool) {
	switch {
	case err == nil:
		return "", false
	case HasTextCode(err, TextCodeNoToken):
		return ReasonNoToken, true
	case HasTextCode(err, TextCodeTokenExpired):
		return ReasonExpired, true
	case HasTextCode(err, TextCodeInvalidSignature):
		return ReasonInvalidSignature, true
	case HasTextCode(err, TextCodeSessionRevoked):
		return ReasonSessionRevoked, true
	case HasTextCode(err, TextCodeMalformedCredential):
		return ReasonMalformed, true
	default:
		return "", false
	}
}

// Resolver turns a raw token into a Principal
type Resolver struct {
	tokens        *TokenService
	sessions      Sessions
	clock         Clock
	trackActivity bool
	logger        Logger
	metrics       *Metrics
}

func NewResolver(tokens *TokenService, sessions Sessions) *Resolver {
	return &Resolver{
		tokens:   tokens,
		sessions: sessions,
		clock:    systemClock,
		logger:   defLogger{},
	}
}

// WithActivityTracking refreshes last_active_at on every successful
// resolution, in the same round trip as the revocation check.
func (r *Resolver) WithActivityTracking() *Resolver {
	r.trackActivity = true
	return r
}

func (r *Resolver) WithClock(clock Clock) *Resolver {
	if clock != nil {
		r.clock = clock
	}
	return r
}

func (r *Resolver) WithLogger(logger Logger) *Resolver {
	r.logger = normalizeLogger(logger)
	return r
}

func (r *Resolver) WithMetrics(m *Metrics) *Resolver {
	r.metrics = m
	return r
}

// Resolve runs, in order: structure and signature, expiry against the
// clock, then the session record lookup. Expected failures carry a
// FailureReason; datastore errors satisfy IsDatastoreUnavailable.
func (r *Resolver) Resolve(ctx context.Context, rawToken string) (Principal, error) {
	p, err := r.resolve(ctx, rawToken)

	switch reason, ok := FailureReasonOf(err); {
	case err == nil:
		r.metrics.observeResolution("success")
	case ok:
		r.metrics.observeResolution(string(reason))
	default:
		r.metrics.observeResolution("error")
	}

	return p, err
}

func (r *Resolver) resolve(ctx context.Context, rawToken string) (Principal, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return Principal{}, ReasonNoToken.Err()
	}

	claims, err := r.tokens.Verify(rawToken)
	if err != nil {
		r.logger.Debug("resolver rejected token", "error", err)
		return Principal{}, err
	}

	now := r.clock()
	if claims.IsExpired(now) {
		return Principal{}, ReasonExpired.Err().
			WithMetadata(map[string]any{"expired_at": claims.Expires()})
	}

	var found bool
	if r.trackActivity {
		found, err = r.sessions.Touch(ctx, claims.TokenID(), now)
	} else {
		found, err = r.sessions.Exists(ctx, claims.TokenID())
	}

	if err != nil {
		r.logger.Error("resolver session lookup failed", "error", err)
		return Principal{}, datastoreFailure(err, "session lookup")
	}

	if !found {
		return Principal{}, ReasonSessionRevoked.Err()
	}

	principal, err := claims.Principal()
	if err != nil {
		return Principal{}, ReasonMalformed.Err().
			WithMetadata(map[string]any{"role": claims.Role()})
	}

	return principal, nil
}
