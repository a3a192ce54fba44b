package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Sessions is the server side session store. Every delete reports the
// number of rows removed; removing nothing is not an error.
type Sessions interface {
	Create(ctx context.Context, userID uuid.UUID, tokenID string, createdAt, expiresAt time.Time) (*Session, error)
	CreateTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, tokenID string, createdAt, expiresAt time.Time) (*Session, error)
	GetByTokenID(ctx context.Context, tokenID string) (*Session, error)
	Exists(ctx context.Context, tokenID string) (bool, error)
	Touch(ctx context.Context, tokenID string, at time.Time) (bool, error)
	DeleteByTokenID(ctx context.Context, tokenID string) (int, error)
	DeleteByUserID(ctx context.Context, userID uuid.UUID) (int, error)
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
	DeleteInactiveSince(ctx context.Context, cutoff time.Time) (int, error)
	Stats(ctx context.Context, now time.Time) (SessionStats, error)
}

type sessions struct {
	repo repository.Repository[*Session]
	db   *bun.DB
}

var _ Sessions = (*sessions)(nil)

func NewSessionsRepository(db *bun.DB) Sessions {
	handlers := repository.ModelHandlers[*Session]{
		NewRecord: func() *Session {
			return &Session{}
		},
		GetID: func(record *Session) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *Session, id uuid.UUID) {
			record.ID = id
		},
		GetIdentifier: func() string {
			return "token_id"
		},
	}

	return &sessions{
		repo: repository.NewRepository(db, handlers),
		db:   db,
	}
}

func (s *sessions) Create(ctx context.Context, userID uuid.UUID, tokenID string, createdAt, expiresAt time.Time) (*Session, error) {
	return s.CreateTx(ctx, s.db, userID, tokenID, createdAt, expiresAt)
}

func (s *sessions) CreateTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, tokenID string, createdAt, expiresAt time.Time) (*Session, error) {
	if tokenID == "" || userID == uuid.Nil {
		return nil, goerrors.New("session requires a token id and a user id", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}

	if expiresAt.Before(createdAt) {
		return nil, goerrors.New("session expires before it is created", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest).
			WithMetadata(map[string]any{
				"created_at": createdAt,
				"expires_at": expiresAt,
			})
	}

	record := &Session{
		ID:           uuid.New(),
		TokenID:      tokenID,
		UserID:       userID,
		CreatedAt:    createdAt.UTC(),
		ExpiresAt:    expiresAt.UTC(),
		LastActiveAt: createdAt.UTC(),
	}

	return s.repo.CreateTx(ctx, tx, record)
}

func (s *sessions) GetByTokenID(ctx context.Context, tokenID string) (*Session, error) {
	return s.repo.GetByIdentifier(ctx, tokenID)
}

func (s *sessions) Exists(ctx context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, nil
	}
	return s.db.NewSelect().
		Model((*Session)(nil)).
		Where("?TableAlias.token_id = ?", tokenID).
		Exists(ctx)
}

// Touch refreshes last_active_at and reports whether the session exists,
// so one round trip serves as both the revocation check and the idle
// timer update.
func (s *sessions) Touch(ctx context.Context, tokenID string, at time.Time) (bool, error) {
	if tokenID == "" {
		return false, nil
	}

	res, err := s.db.NewUpdate().
		Model((*Session)(nil)).
		Set("last_active_at = ?", at.UTC()).
		Where("token_id = ?", tokenID).
		Exec(ctx)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *sessions) DeleteByTokenID(ctx context.Context, tokenID string) (int, error) {
	if tokenID == "" {
		return 0, nil
	}
	return s.delete(ctx, "token_id = ?", tokenID)
}

func (s *sessions) DeleteByUserID(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.delete(ctx, "user_id = ?", userID)
}

// DeleteExpired compares each row's own expires_at against now
func (s *sessions) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	return s.delete(ctx, "expires_at < ?", now.UTC())
}

func (s *sessions) DeleteInactiveSince(ctx context.Context, cutoff time.Time) (int, error) {
	return s.delete(ctx, "last_active_at < ?", cutoff.UTC())
}

func (s *sessions) Stats(ctx context.Context, now time.Time) (SessionStats, error) {
	stats := SessionStats{}

	total, err := s.db.NewSelect().
		Model((*Session)(nil)).
		Count(ctx)
	if err != nil {
		return stats, err
	}

	expired, err := s.db.NewSelect().
		Model((*Session)(nil)).
		Where("?TableAlias.expires_at < ?", now.UTC()).
		Count(ctx)
	if err != nil {
		return stats, err
	}

	stats.Total = total
	stats.Expired = expired
	stats.Active = total - expired
	if stats.Active < 0 {
		// rows deleted between the two counts
		stats.Active = 0
	}

	return stats, nil
}

func (s *sessions) delete(ctx context.Context, where string, args ...any) (int, error) {
	res, err := s.db.NewDelete().
		Model((*Session)(nil)).
		Where(where, args...).
		Exec(ctx)
	if err != nil {
		return 0, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
