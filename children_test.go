package auth_test

import (
	"context"
	"testing"

	auth "github.com/goliatone/go-portal-auth"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockProgressProvider struct {
	mock.Mock
}

func (m *MockProgressProvider) ChildProgress(ctx context.Context, childID uuid.UUID) (any, error) {
	args := m.Called(ctx, childID)
	return args.Get(0), args.Error(1)
}

type guardianFixture struct {
	env    *testEnv
	parent *auth.User
	linked *auth.User
	other  *auth.User
}

func newGuardianFixture(t *testing.T) *guardianFixture {
	t.Helper()

	env := newTestEnv(t)
	f := &guardianFixture{
		env:    env,
		parent: env.seedWithPassword(t, auth.RoleParent, "p1@home.test", "secret-password"),
		linked: env.seedStudent(t),
		other:  env.seedStudent(t),
	}

	_, err := env.repo.ParentLinks().Create(context.Background(), &auth.ParentChildLink{
		ID:       uuid.New(),
		ParentID: f.parent.ID,
		ChildID:  f.linked.ID,
		IsActive: true,
	})
	require.NoError(t, err)

	return f
}

func TestChildAccess_UnlinkedChildIsNotFound(t *testing.T) {
	f := newGuardianFixture(t)
	ctx := context.Background()
	sink := &capturingSink{}

	parent, err := auth.PrincipalFromUser(f.parent)
	require.NoError(t, err)

	provider := new(MockProgressProvider)
	access := auth.NewChildAccess(f.env.repo.ParentLinks()).WithActivitySink(sink)

	for name, childID := range map[string]string{
		"other child":   f.other.ID.String(),
		"unknown child": uuid.NewString(),
		"not a uuid":    "c7",
	} {
		t.Run(name, func(t *testing.T) {
			progress, err := access.LoadProgress(ctx, parent, childID, provider)
			require.Error(t, err)
			assert.Nil(t, progress)
			assert.True(t, auth.HasTextCode(err, auth.TextCodeChildNotFound))
		})
	}

	provider.AssertNotCalled(t, "ChildProgress", mock.Anything, mock.Anything)
	assert.Len(t, sink.Types(), 2)
}

func TestChildAccess_LinkedChildLoadsProgress(t *testing.T) {
	f := newGuardianFixture(t)
	ctx := context.Background()

	parent, err := auth.PrincipalFromUser(f.parent)
	require.NoError(t, err)

	provider := new(MockProgressProvider)
	provider.On("ChildProgress", mock.Anything, f.linked.ID).Return(map[string]int{"lessons": 12}, nil)

	progress, err := auth.NewChildAccess(f.env.repo.ParentLinks()).
		LoadProgress(ctx, parent, f.linked.ID.String(), provider)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"lessons": 12}, progress)
	provider.AssertExpectations(t)

	children, err := f.env.repo.ParentLinks().ChildrenOf(ctx, f.parent.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{f.linked.ID}, children)
}

func TestChildAccess_InactiveLinkIsNotFound(t *testing.T) {
	f := newGuardianFixture(t)
	ctx := context.Background()

	_, err := f.env.db.NewUpdate().
		Model((*auth.ParentChildLink)(nil)).
		Set("is_active = ?", false).
		Where("parent_id = ?", f.parent.ID).
		Exec(ctx)
	require.NoError(t, err)

	parent, err := auth.PrincipalFromUser(f.parent)
	require.NoError(t, err)

	_, err = auth.NewChildAccess(f.env.repo.ParentLinks()).Authorize(ctx, parent, f.linked.ID.String())
	assert.True(t, auth.HasTextCode(err, auth.TextCodeChildNotFound))
}

func TestChildAccess_NonParentIsForbidden(t *testing.T) {
	f := newGuardianFixture(t)

	for _, role := range []auth.Role{auth.RoleTeacher, auth.RoleAdmin, auth.RoleStudent} {
		p := mustPrincipal(t, f.parent.ID.String(), role)

		_, err := auth.NewChildAccess(f.env.repo.ParentLinks()).
			Authorize(context.Background(), p, f.linked.ID.String())
		require.Error(t, err, role)
		assert.True(t, auth.HasTextCode(err, auth.TextCodeForbidden), role)
	}
}

func TestChildAccess_MissingProvider(t *testing.T) {
	f := newGuardianFixture(t)
	parent, err := auth.PrincipalFromUser(f.parent)
	require.NoError(t, err)

	_, err = auth.NewChildAccess(f.env.repo.ParentLinks()).
		LoadProgress(context.Background(), parent, f.linked.ID.String(), nil)
	assert.Error(t, err)
}
