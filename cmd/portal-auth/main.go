package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-persistence-bun"
	auth "github.com/goliatone/go-portal-auth"
	"github.com/goliatone/go-portal-auth/activitymap"
	"github.com/goliatone/go-portal-auth/config"
	"github.com/goliatone/go-portal-auth/tokenhint"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type App struct {
	config  *config.Config
	logger  *glog.BaseLogger
	sqldb   *sql.DB
	db      *bun.DB
	repo    auth.RepositoryManager
	srv     router.Server[*fiber.App]
	metrics *auth.Metrics
	janitor *auth.Janitor
}

func (a *App) GetLogger(name string) glog.Logger {
	return a.logger.GetLogger(name)
}

func main() {
	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Trace),
		glog.WithName("portal-auth"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(goerrors.ToSlogAttributes),
	)

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app := &App{
		config:  cfg,
		logger:  lgr,
		metrics: auth.NewMetrics(prometheus.DefaultRegisterer),
	}

	if err := WithPersistence(ctx, app); err != nil {
		panic(err)
	}
	defer app.sqldb.Close()

	if err := WithHTTPServer(ctx, app); err != nil {
		panic(err)
	}

	metricsSrv := WithMetricsServer(app)

	app.srv.Serve(cfg.HTTPAddr)

	sig := WaitExitSignal()
	app.GetLogger("app").Info("shutting down", "signal", sig.String())

	cancel()
	app.janitor.Stop()

	if metricsSrv != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
}

// WithPersistence opens the datastore through the persistence client and
// applies the embedded migrations. The sql handle is owned here and closed
// on exit.
func WithPersistence(ctx context.Context, app *App) error {
	cfg := app.config.GetPersistence()

	sqldb, err := sql.Open(sqliteshim.ShimName, cfg.GetDSN())
	if err != nil {
		return err
	}

	persistence.RegisterModel(
		(*auth.User)(nil),
		(*auth.Session)(nil),
		(*auth.EmailVerification)(nil),
		(*auth.ParentChildLink)(nil),
	)

	client, err := persistence.New(cfg, sqldb, sqlitedialect.New())
	if err != nil {
		_ = sqldb.Close()
		return err
	}

	lgr := app.GetLogger("persistence")
	client.SetLogger(func(format string, args ...any) {
		lgr.Debug(fmt.Sprintf(format, args...))
	})

	migrationsFS, err := fs.Sub(auth.GetMigrationsFS(), "data/sql/migrations/sqlite")
	if err != nil {
		return err
	}
	client.RegisterSQLMigrations(migrationsFS)

	if err := client.Migrate(ctx); err != nil {
		return err
	}

	if report := client.Report(); report != nil && !report.IsZero() {
		lgr.Info("migrations applied", "report", report.String())
	}

	db, ok := client.DB().(*bun.DB)
	if !ok {
		return errors.New("persistence client did not return a *bun.DB")
	}

	app.sqldb = sqldb
	app.db = db
	app.repo = auth.NewRepositoryManager(db)
	return nil
}

func WithHTTPServer(ctx context.Context, app *App) error {
	cfg := app.config
	activity := auditSink(app.GetLogger("auth:audit"))

	tokens := auth.NewTokenService([]byte(cfg.GetSigningKey()), cfg.GetIssuer()).
		WithLogger(app.GetLogger("auth:tokens"))

	resolver := auth.NewResolver(tokens, app.repo.Sessions()).
		WithActivityTracking().
		WithMetrics(app.metrics).
		WithLogger(app.GetLogger("auth:resolver"))

	guard := auth.NewGuard(resolver, cfg).
		WithLogger(app.GetLogger("auth:guard"))

	sessions := auth.NewSessionManager(app.repo, tokens, cfg.GetTokenTTL()).
		WithLogger(app.GetLogger("auth:sessions")).
		WithActivitySink(activity)

	verifications := auth.NewVerificationWorkflow(app.repo, cfg.GetVerificationTTL()).
		WithLogger(app.GetLogger("auth:verify")).
		WithActivitySink(activity).
		WithMetrics(app.metrics)

	app.janitor = auth.NewJanitor(app.repo.Sessions(), cfg.GetInactivityThreshold()).
		WithSchedule(cfg.GetJanitorSchedule()).
		WithLogger(app.GetLogger("auth:janitor")).
		WithActivitySink(activity).
		WithMetrics(app.metrics)

	if err := app.janitor.Start(ctx); err != nil {
		return err
	}

	children := auth.NewChildAccess(app.repo.ParentLinks()).
		WithLogger(app.GetLogger("auth:children")).
		WithActivitySink(activity)

	httpAuth := auth.NewHTTPAuthenticator(guard, sessions, cfg).
		WithLogger(app.GetLogger("auth:http"))

	controller := auth.NewAuthController(httpAuth, sessions, verifications, app.janitor, children,
		auth.WithControllerLogger(app.GetLogger("auth:ctrl")),
	)

	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:      true,
			EnablePrintRoutes: true,
			StrictRouting:     false,
		}))
	})

	srv.Router().WithLogger(app.GetLogger("router"))

	auth.RegisterAuthRoutes(srv.Router(), controller)

	srv.Router().Get("/session/hint", sessionHint(cfg.GetCookieName())).
		SetName("session-hint.get")

	app.srv = srv
	return nil
}

// WithMetricsServer exposes the default registry on its own listener. An
// empty address turns it off.
func WithMetricsServer(app *App) *http.Server {
	if app.config.MetricsAddr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              app.config.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger := app.GetLogger("metrics")
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "error", err)
		}
	}()

	return srv
}

// auditSink writes normalized activity records to the audit logger
func auditSink(logger glog.Logger) auth.ActivitySink {
	return auth.ActivitySinkFunc(func(ctx context.Context, event auth.ActivityEvent) error {
		record := activitymap.Normalize(event)
		logger.Info("activity",
			"verb", record.Verb,
			"actor_id", record.ActorID,
			"object_type", record.ObjectType,
			"object_id", record.ObjectID,
			"metadata", print.MaybePrettyJSON(record.Metadata),
		)
		return nil
	})
}

// sessionHint lets the client UI warn before a session runs out. The
// token is not verified, the response must never gate anything.
func sessionHint(cookieName string) router.HandlerFunc {
	return func(c router.Context) error {
		raw := c.Cookies(cookieName)

		hint, err := tokenhint.Peek(raw)
		if err != nil {
			return c.JSON(http.StatusOK, router.ViewContext{
				"present":          raw != "",
				"probably_expired": true,
			})
		}

		return c.JSON(http.StatusOK, router.ViewContext{
			"present":          true,
			"role":             hint.Role,
			"expires_at":       hint.ExpiresAt,
			"probably_expired": tokenhint.ProbablyExpired(raw, time.Now()),
		})
	}
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
