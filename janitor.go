package auth

import (
	"context"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/robfig/cron/v3"
)

const (
	DefaultInactivityThreshold = 7 * 24 * time.Hour
	DefaultJanitorSchedule     = "@every 15m"
)

// SweepReport is the result of one Sweep call
type SweepReport struct {
	ExpiredDeleted  int          `json:"expired_deleted"`
	InactiveDeleted int          `json:"inactive_deleted"`
	Stats           SessionStats `json:"stats"`
	SweptAt         time.Time    `json:"swept_at"`
}

// Janitor deletes expired and idle sessions
type Janitor struct {
	sessions     Sessions
	inactivity   time.Duration
	schedule     string
	clock        Clock
	logger       Logger
	activitySink ActivitySink
	metrics      *Metrics

	mu   sync.Mutex
	cron *cron.Cron
}

func NewJanitor(sessions Sessions, inactivity time.Duration) *Janitor {
	if inactivity <= 0 {
		inactivity = DefaultInactivityThreshold
	}
	return &Janitor{
		sessions:     sessions,
		inactivity:   inactivity,
		schedule:     DefaultJanitorSchedule,
		clock:        systemClock,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}
}

func (j *Janitor) WithSchedule(spec string) *Janitor {
	if spec != "" {
		j.schedule = spec
	}
	return j
}

func (j *Janitor) WithClock(clock Clock) *Janitor {
	if clock != nil {
		j.clock = clock
	}
	return j
}

func (j *Janitor) WithLogger(logger Logger) *Janitor {
	j.logger = normalizeLogger(logger)
	return j
}

func (j *Janitor) WithActivitySink(sink ActivitySink) *Janitor {
	j.activitySink = normalizeActivitySink(sink)
	return j
}

func (j *Janitor) WithMetrics(m *Metrics) *Janitor {
	j.metrics = m
	return j
}

// Sweep takes a single "now" and uses it for both criteria and for the
// stats, so every row is judged against the same instant.
func (j *Janitor) Sweep(ctx context.Context) (SweepReport, error) {
	select {
	case <-ctx.Done():
		return SweepReport{}, goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during session sweep")
	default:
	}

	started := time.Now()
	now := j.clock().UTC()
	report := SweepReport{SweptAt: now}

	expired, err := j.sessions.DeleteExpired(ctx, now)
	if err != nil {
		return report, datastoreFailure(err, "delete expired sessions")
	}
	report.ExpiredDeleted = expired

	inactive, err := j.sessions.DeleteInactiveSince(ctx, now.Add(-j.inactivity))
	if err != nil {
		return report, datastoreFailure(err, "delete inactive sessions")
	}
	report.InactiveDeleted = inactive

	stats, err := j.sessions.Stats(ctx, now)
	if err != nil {
		return report, datastoreFailure(err, "session stats")
	}
	report.Stats = stats

	j.metrics.observeSweep(report, time.Since(started))

	j.logger.Info("session sweep finished",
		"expired_deleted", report.ExpiredDeleted,
		"inactive_deleted", report.InactiveDeleted,
		"active", stats.Active,
		"total", stats.Total,
	)

	recordActivity(ctx, j.activitySink, j.logger, ActivityEvent{
		EventType: ActivityEventSessionsSwept,
		Metadata: map[string]any{
			"expired_deleted":  report.ExpiredDeleted,
			"inactive_deleted": report.InactiveDeleted,
		},
		OccurredAt: now,
	})

	return report, nil
}

// Stats reports session counts without deleting anything
func (j *Janitor) Stats(ctx context.Context) (SessionStats, error) {
	stats, err := j.sessions.Stats(ctx, j.clock().UTC())
	if err != nil {
		return stats, datastoreFailure(err, "session stats")
	}
	return stats, nil
}

// Start schedules Sweep on the configured cron spec. Sweeps run with ctx;
// cancelling it stops the schedule.
func (j *Janitor) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.cron != nil {
		return goerrors.New("janitor already started", goerrors.CategoryConflict)
	}

	c := cron.New()
	_, err := c.AddFunc(j.schedule, func() {
		if _, err := j.Sweep(ctx); err != nil {
			j.logger.Error("scheduled session sweep failed", "error", err)
		}
	})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid janitor schedule").
			WithMetadata(map[string]any{"schedule": j.schedule})
	}

	c.Start()
	j.cron = c

	go func() {
		<-ctx.Done()
		j.Stop()
	}()

	j.logger.Info("session janitor started", "schedule", j.schedule)
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish
func (j *Janitor) Stop() {
	j.mu.Lock()
	c := j.cron
	j.cron = nil
	j.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
}
