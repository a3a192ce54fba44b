package auth

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type ParentLinks interface {
	repository.Repository[*ParentChildLink]

	HasActiveLink(ctx context.Context, parentID, childID uuid.UUID) (bool, error)
	ChildrenOf(ctx context.Context, parentID uuid.UUID) ([]uuid.UUID, error)
}

type parentLinks struct {
	repository.Repository[*ParentChildLink]
	db *bun.DB
}

var _ ParentLinks = (*parentLinks)(nil)

func NewParentLinksRepository(db *bun.DB) ParentLinks {
	handlers := repository.ModelHandlers[*ParentChildLink]{
		NewRecord: func() *ParentChildLink {
			return &ParentChildLink{}
		},
		GetID: func(record *ParentChildLink) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *ParentChildLink, id uuid.UUID) {
			record.ID = id
		},
		GetIdentifier: func() string {
			return "id"
		},
	}

	return &parentLinks{
		Repository: repository.NewRepository(db, handlers),
		db:         db,
	}
}

func (p *parentLinks) HasActiveLink(ctx context.Context, parentID, childID uuid.UUID) (bool, error) {
	return p.db.NewSelect().
		Model((*ParentChildLink)(nil)).
		Where("?TableAlias.parent_id = ?", parentID).
		Where("?TableAlias.child_id = ?", childID).
		Where("?TableAlias.is_active = ?", true).
		Exists(ctx)
}

func (p *parentLinks) ChildrenOf(ctx context.Context, parentID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := p.db.NewSelect().
		Model((*ParentChildLink)(nil)).
		Column("child_id").
		Where("?TableAlias.parent_id = ?", parentID).
		Where("?TableAlias.is_active = ?", true).
		Scan(ctx, &ids)
	if err != nil {
		return nil, err
	}
	return ids, nil
}
