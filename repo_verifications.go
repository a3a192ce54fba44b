package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Verifications interface {
	repository.Repository[*EmailVerification]

	GetByTokenTx(ctx context.Context, tx bun.IDB, token string) (*EmailVerification, error)
	LatestForUser(ctx context.Context, userID uuid.UUID) (*EmailVerification, error)
	MarkVerifiedTx(ctx context.Context, tx bun.IDB, id uuid.UUID, at time.Time) (bool, error)
}

type verifications struct {
	repository.Repository[*EmailVerification]
	db *bun.DB
}

var _ Verifications = (*verifications)(nil)

func NewVerificationsRepository(db *bun.DB) Verifications {
	handlers := repository.ModelHandlers[*EmailVerification]{
		NewRecord: func() *EmailVerification {
			return &EmailVerification{}
		},
		GetID: func(record *EmailVerification) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *EmailVerification, id uuid.UUID) {
			record.ID = id
		},
		GetIdentifier: func() string {
			return "token"
		},
	}

	return &verifications{
		Repository: repository.NewRepository(db, handlers),
		db:         db,
	}
}

func (v *verifications) GetByTokenTx(ctx context.Context, tx bun.IDB, token string) (*EmailVerification, error) {
	if token == "" {
		return nil, repository.NewRecordNotFound()
	}
	return v.Repository.GetByIdentifierTx(ctx, tx, token)
}

// LatestForUser returns the most recent record, older ones are superseded
func (v *verifications) LatestForUser(ctx context.Context, userID uuid.UUID) (*EmailVerification, error) {
	record := &EmailVerification{}
	err := v.db.NewSelect().
		Model(record).
		Where("?TableAlias.user_id = ?", userID).
		OrderExpr("?TableAlias.created_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"user_id": userID.String()})
		}
		return nil, err
	}
	return record, nil
}

// MarkVerifiedTx flips the row only while it is still unverified. The
// returned bool is false when another request already consumed it.
func (v *verifications) MarkVerifiedTx(ctx context.Context, tx bun.IDB, id uuid.UUID, at time.Time) (bool, error) {
	res, err := tx.NewUpdate().
		Model((*EmailVerification)(nil)).
		Set("verified = ?", true).
		Set("verified_at = ?", at.UTC()).
		Where("id = ?", id).
		Where("verified = ?", false).
		Exec(ctx)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
