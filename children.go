package auth

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// ProgressProvider loads a student's progress. It is implemented by
// feature code and only called after ChildAccess.Authorize succeeds.
type ProgressProvider interface {
	ChildProgress(ctx context.Context, childID uuid.UUID) (any, error)
}

// ChildAccess is the boundary between parent principals and student
// data. The link is read on every call, nothing is cached.
type ChildAccess struct {
	links        ParentLinks
	logger       Logger
	activitySink ActivitySink
}

func NewChildAccess(links ParentLinks) *ChildAccess {
	return &ChildAccess{
		links:        links,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}
}

func (c *ChildAccess) WithLogger(logger Logger) *ChildAccess {
	c.logger = normalizeLogger(logger)
	return c
}

func (c *ChildAccess) WithActivitySink(sink ActivitySink) *ChildAccess {
	c.activitySink = normalizeActivitySink(sink)
	return c
}

// Authorize succeeds only for a PARENT with an active link to childID.
// A missing link is reported as ErrChildNotFound, never as forbidden, so
// the response does not reveal that the child exists.
func (c *ChildAccess) Authorize(ctx context.Context, parent Principal, childID string) (uuid.UUID, error) {
	if !parent.HasRole(RoleParent) {
		return uuid.Nil, ErrForbidden.Clone().
			WithMetadata(map[string]any{"required_role": string(RoleParent)})
	}

	parentID, err := uuid.Parse(parent.ID())
	if err != nil {
		return uuid.Nil, ErrChildNotFound.Clone()
	}

	child, err := uuid.Parse(childID)
	if err != nil {
		return uuid.Nil, ErrChildNotFound.Clone()
	}

	ok, err := c.links.HasActiveLink(ctx, parentID, child)
	if err != nil {
		return uuid.Nil, datastoreFailure(err, "parent child link")
	}

	if !ok {
		c.logger.Warn("parent requested unlinked child", "parent_id", parent.ID(), "child_id", childID)
		recordActivity(ctx, c.activitySink, c.logger, ActivityEvent{
			EventType: ActivityEventChildAccessDenied,
			UserID:    parent.ID(),
			Role:      parent.Role(),
			Metadata:  map[string]any{"child_id": childID},
		})
		return uuid.Nil, ErrChildNotFound.Clone()
	}

	return child, nil
}

// LoadProgress authorizes and then delegates to provider
func (c *ChildAccess) LoadProgress(ctx context.Context, parent Principal, childID string, provider ProgressProvider) (any, error) {
	child, err := c.Authorize(ctx, parent, childID)
	if err != nil {
		return nil, err
	}

	if provider == nil {
		return nil, goerrors.New("progress provider not configured", goerrors.CategoryInternal)
	}

	return provider.ChildProgress(ctx, child)
}
