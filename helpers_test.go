package auth_test

import (
	"context"
	"database/sql"
	"io/fs"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-persistence-bun"
	auth "github.com/goliatone/go-portal-auth"
	"github.com/goliatone/go-portal-auth/config"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"golang.org/x/crypto/bcrypt"
)

const (
	testSigningKey = "test-signing-key-0123456789abcdef"
	testIssuer     = "portal-auth-test"
)

// testDSN enforces foreign keys like the production DSN. A single
// connection keeps every query on the same memory database.
const testDSN = ":memory:?_pragma=foreign_keys(1)"

// newTestDB returns a migrated in memory database opened through the
// persistence client, the same path cmd takes.
func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	cfg := config.Persistence{
		Driver:      "sqlite",
		DSN:         testDSN,
		Database:    "portal-auth-test",
		PingTimeout: time.Second,
	}

	sqldb, err := sql.Open(sqliteshim.ShimName, cfg.GetDSN())
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqldb.Close() })

	persistence.RegisterModel(
		(*auth.User)(nil),
		(*auth.Session)(nil),
		(*auth.EmailVerification)(nil),
		(*auth.ParentChildLink)(nil),
	)

	client, err := persistence.New(cfg, sqldb, sqlitedialect.New())
	require.NoError(t, err)

	migrations, err := fs.Sub(auth.GetMigrationsFS(), "data/sql/migrations/sqlite")
	require.NoError(t, err)
	client.RegisterSQLMigrations(migrations)
	require.NoError(t, client.Migrate(context.Background()))

	db, ok := client.DB().(*bun.DB)
	require.True(t, ok)
	return db
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	db     *bun.DB
	repo   auth.RepositoryManager
	clock  *fakeClock
	tokens *auth.TokenService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := newTestDB(t)
	clock := newFakeClock()

	return &testEnv{
		db:     db,
		repo:   auth.NewRepositoryManager(db),
		clock:  clock,
		tokens: auth.NewTokenService([]byte(testSigningKey), testIssuer).WithClock(clock.Now),
	}
}

func (e *testEnv) seedUser(t *testing.T, user *auth.User) *auth.User {
	t.Helper()
	created, err := e.repo.Users().Register(context.Background(), user)
	require.NoError(t, err)
	return created
}

func (e *testEnv) seedTeacher(t *testing.T, email, password string) *auth.User {
	t.Helper()
	return e.seedWithPassword(t, auth.RoleTeacher, email, password)
}

// seedWithPassword hashes at the minimum cost to keep tests fast
func (e *testEnv) seedWithPassword(t *testing.T, role auth.Role, email, password string) *auth.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return e.seedUser(t, &auth.User{
		Role:         role,
		Name:         string(role),
		Email:        email,
		PasswordHash: string(hash),
	})
}

func (e *testEnv) seedStudent(t *testing.T) *auth.User {
	t.Helper()
	return e.seedUser(t, &auth.User{
		Role:  auth.RoleStudent,
		Name:  "Student",
		Grade: 4,
	})
}

// signIn issues a token for user and stores its session
func (e *testEnv) signIn(t *testing.T, user *auth.User, ttl time.Duration) auth.IssuedToken {
	t.Helper()
	p, err := auth.PrincipalFromUser(user)
	require.NoError(t, err)

	issued, err := auth.NewSessionManager(e.repo, e.tokens, ttl).SignIn(context.Background(), p)
	require.NoError(t, err)
	return issued
}

func mustPrincipal(t *testing.T, id string, role auth.Role, opts ...auth.PrincipalOption) auth.Principal {
	t.Helper()
	p, err := auth.NewPrincipal(id, role, opts...)
	require.NoError(t, err)
	return p
}

func newID() string {
	return uuid.NewString()
}

type capturingSink struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (c *capturingSink) Record(_ context.Context, evt auth.ActivityEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
	return nil
}

func (c *capturingSink) Types() []auth.ActivityEventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]auth.ActivityEventType, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.EventType)
	}
	return out
}
