package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// VerificationOutcome is the result of consuming a verification token.
// None of these are errors.
type VerificationOutcome string

const (
	OutcomeSuccess         VerificationOutcome = "success"
	OutcomeAlreadyVerified VerificationOutcome = "already_verified"
	OutcomeExpired         VerificationOutcome = "expired"
	OutcomeNotFound        VerificationOutcome = "not_found"
)

// VerificationResult carries the verified email on success
type VerificationResult struct {
	Outcome VerificationOutcome `json:"outcome"`
	Email   string              `json:"email,omitempty"`
}

// Err maps non success outcomes to the matching rich error, for callers
// that prefer an error value.
func (r VerificationResult) Err() error {
	switch r.Outcome {
	case OutcomeSuccess:
		return nil
	case OutcomeAlreadyVerified:
		return ErrVerificationAlreadyDone.Clone()
	case OutcomeExpired:
		return ErrVerificationExpired.Clone()
	default:
		return ErrVerificationNotFound.Clone()
	}
}

const DefaultVerificationTTL = 24 * time.Hour

// VerificationWorkflow manages single use email verification tokens
type VerificationWorkflow struct {
	repo         RepositoryManager
	ttl          time.Duration
	clock        Clock
	mailer       Mailer
	newToken     func() (string, error)
	logger       Logger
	activitySink ActivitySink
	metrics      *Metrics
}

func NewVerificationWorkflow(repo RepositoryManager, ttl time.Duration) *VerificationWorkflow {
	if ttl <= 0 {
		ttl = DefaultVerificationTTL
	}
	return &VerificationWorkflow{
		repo:         repo,
		ttl:          ttl,
		clock:        systemClock,
		mailer:       noopMailer{},
		newToken:     randomToken,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}
}

func (w *VerificationWorkflow) WithClock(clock Clock) *VerificationWorkflow {
	if clock != nil {
		w.clock = clock
	}
	return w
}

func (w *VerificationWorkflow) WithMailer(mailer Mailer) *VerificationWorkflow {
	if mailer != nil {
		w.mailer = mailer
	}
	return w
}

// WithTokenGenerator replaces the random token source
func (w *VerificationWorkflow) WithTokenGenerator(gen func() (string, error)) *VerificationWorkflow {
	if gen != nil {
		w.newToken = gen
	}
	return w
}

func (w *VerificationWorkflow) WithLogger(logger Logger) *VerificationWorkflow {
	w.logger = normalizeLogger(logger)
	return w
}

func (w *VerificationWorkflow) WithActivitySink(sink ActivitySink) *VerificationWorkflow {
	w.activitySink = normalizeActivitySink(sink)
	return w
}

func (w *VerificationWorkflow) WithMetrics(m *Metrics) *VerificationWorkflow {
	w.metrics = m
	return w
}

// RequestVerification creates a new pending record for email and hands the
// token to the mailer. email must be the address on the user record.
// Older pending records stay but are superseded. A record whose mail
// could not be sent is removed again.
func (w *VerificationWorkflow) RequestVerification(ctx context.Context, userID uuid.UUID, email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	if err := validation.Validate(email, validation.Required, is.EmailFormat); err != nil {
		return "", goerrors.FromOzzoValidation(err, "invalid verification email").
			WithCode(goerrors.CodeBadRequest)
	}

	if userID == uuid.Nil {
		return "", goerrors.New("verification requires a user id", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}

	user, err := w.repo.Users().GetByIdentifier(ctx, userID.String())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return "", ErrVerificationEmailMismatch.Clone()
		}
		return "", datastoreFailure(err, "load user")
	}

	if !strings.EqualFold(user.Email, email) {
		w.logger.Warn("RequestVerification email does not match user", "user_id", userID.String())
		return "", ErrVerificationEmailMismatch.Clone()
	}

	token, err := w.newToken()
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate verification token")
	}

	now := w.clock().UTC()
	expiresAt := now.Add(w.ttl)
	record := &EmailVerification{
		ID:        uuid.New(),
		Token:     token,
		UserID:    userID,
		Email:     email,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}

	if _, err := w.repo.Verifications().Create(ctx, record); err != nil {
		w.logger.Error("RequestVerification failed to store record", "user_id", userID.String(), "error", err)
		return "", datastoreFailure(err, "create verification")
	}

	if err := w.mailer.SendVerification(ctx, email, token, expiresAt); err != nil {
		w.logger.Error("RequestVerification mailer failed", "user_id", userID.String(), "error", err)
		w.discard(ctx, record)
		return "", goerrors.Wrap(err, goerrors.CategoryExternal, "failed to send verification email")
	}

	recordActivity(ctx, w.activitySink, w.logger, ActivityEvent{
		EventType: ActivityEventVerificationSent,
		UserID:    userID.String(),
		Metadata:  map[string]any{"expires_at": expiresAt},
	})

	return token, nil
}

// discard removes a record whose token never reached the user. It runs
// even when ctx is already cancelled.
func (w *VerificationWorkflow) discard(ctx context.Context, record *EmailVerification) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := w.repo.Verifications().Delete(ctx, record); err != nil {
		w.logger.Error("RequestVerification failed to discard unsent record",
			"user_id", record.UserID.String(), "error", err)
	}
}

// Consume runs the false to true transition. Expired and unknown tokens
// never write. The record and the user row are updated in one transaction.
func (w *VerificationWorkflow) Consume(ctx context.Context, token string) (VerificationResult, error) {
	select {
	case <-ctx.Done():
		return VerificationResult{}, goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during email verification")
	default:
	}

	result, err := w.consume(ctx, strings.TrimSpace(token))
	if err != nil {
		return VerificationResult{}, err
	}

	w.metrics.observeVerification(result.Outcome)
	return result, nil
}

func (w *VerificationWorkflow) consume(ctx context.Context, token string) (VerificationResult, error) {
	result := VerificationResult{Outcome: OutcomeNotFound}
	if token == "" {
		return result, nil
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	now := w.clock().UTC()
	var userID uuid.UUID

	err := w.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := w.repo.Verifications().GetByTokenTx(ctx, tx, token)
		if err != nil {
			// unknown token is part of the expected flow
			if repository.IsRecordNotFound(err) {
				result = VerificationResult{Outcome: OutcomeNotFound}
				return nil
			}
			return err
		}

		switch record.State(now) {
		case VerificationVerified:
			result = VerificationResult{Outcome: OutcomeAlreadyVerified, Email: record.Email}
			return nil
		case VerificationExpired:
			result = VerificationResult{Outcome: OutcomeExpired, Email: record.Email}
			return nil
		}

		owner, err := w.repo.Users().GetByIdentifierTx(ctx, tx, record.UserID.String())
		if err != nil {
			if repository.IsRecordNotFound(err) {
				result = VerificationResult{Outcome: OutcomeNotFound}
				return nil
			}
			return err
		}

		// the address changed after the link was sent
		if !strings.EqualFold(owner.Email, record.Email) {
			result = VerificationResult{Outcome: OutcomeNotFound}
			return nil
		}

		flipped, err := w.repo.Verifications().MarkVerifiedTx(ctx, tx, record.ID, now)
		if err != nil {
			return err
		}

		if !flipped {
			// consumed concurrently by another request
			result = VerificationResult{Outcome: OutcomeAlreadyVerified, Email: record.Email}
			return nil
		}

		if err := w.repo.Users().MarkEmailVerifiedTx(ctx, tx, record.UserID, now); err != nil {
			return err
		}

		userID = record.UserID
		result = VerificationResult{Outcome: OutcomeSuccess, Email: record.Email}
		return nil
	})

	if err != nil {
		w.logger.Error("Consume verification failed", "error", err)
		return VerificationResult{}, datastoreFailure(err, "consume verification")
	}

	if result.Outcome == OutcomeSuccess {
		recordActivity(ctx, w.activitySink, w.logger, ActivityEvent{
			EventType:  ActivityEventEmailVerified,
			UserID:     userID.String(),
			Metadata:   map[string]any{"email": result.Email},
			OccurredAt: now,
		})
	}

	return result, nil
}

// Status derives the state of the latest record for userID
func (w *VerificationWorkflow) Status(ctx context.Context, userID uuid.UUID) (VerificationState, error) {
	record, err := w.repo.Verifications().LatestForUser(ctx, userID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return VerificationNone, nil
		}
		return "", datastoreFailure(err, "latest verification")
	}
	return record.State(w.clock().UTC()), nil
}

// randomToken returns 32 random bytes, base64url encoded
func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
