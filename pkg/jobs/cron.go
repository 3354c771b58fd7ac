package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/jordanlanch/bookworm/pkg/cache"
	"github.com/jordanlanch/bookworm/pkg/logger"
	"github.com/robfig/cron/v3"
)

const (
	// DefaultCleanupSchedule runs the expiry sweep daily at 2 AM
	DefaultCleanupSchedule = "0 2 * * *"

	sweepLockKey = "locks:recommendations:sweep"
	sweepTimeout = 10 * time.Minute
)

// Sweep outcomes
const (
	SweepOK      = "ok"
	SweepFailed  = "failed"
	SweepSkipped = "skipped"
)

// Sweeper deletes expired recommendations
type Sweeper interface {
	CleanupExpiredRecommendations(ctx context.Context) (int64, error)
}

// Locker hands out distributed locks
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (*cache.Lock, bool, error)
}

// SweepRecorder counts sweep outcomes
type SweepRecorder interface {
	RecordSweep(outcome string)
}

// CronManager manages scheduled jobs
type CronManager struct {
	cron     *cron.Cron
	sweeper  Sweeper
	locker   Locker
	schedule string
	logger   logger.Logger
	recorder SweepRecorder
	report   func(error)
}

// Option configures a CronManager
type Option func(*CronManager)

// WithLocker guards the sweep with a distributed lock
func WithLocker(l Locker) Option {
	return func(cm *CronManager) {
		cm.locker = l
	}
}

// WithSchedule overrides the cleanup cron expression
func WithSchedule(spec string) Option {
	return func(cm *CronManager) {
		if spec != "" {
			cm.schedule = spec
		}
	}
}

// WithRecorder reports sweep outcomes
func WithRecorder(r SweepRecorder) Option {
	return func(cm *CronManager) {
		cm.recorder = r
	}
}

// WithErrorReporter replaces Sentry as the sink for sweep failures
func WithErrorReporter(report func(error)) Option {
	return func(cm *CronManager) {
		cm.report = report
	}
}

// NewCronManager creates a new cron manager
func NewCronManager(sweeper Sweeper, log logger.Logger, opts ...Option) *CronManager {
	if log == nil {
		log = logger.Default()
	}
	log = log.With("component", "cron")

	cl := cronLogger{log}
	cm := &CronManager{
		cron:     cron.New(cron.WithLocation(time.UTC), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		sweeper:  sweeper,
		schedule: DefaultCleanupSchedule,
		logger:   log,
		report:   func(err error) { sentry.CaptureException(err) },
	}
	for _, opt := range opts {
		opt(cm)
	}
	return cm
}

// SetupJobs configures all scheduled jobs
func (cm *CronManager) SetupJobs() error {
	_, err := cm.cron.AddFunc(cm.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()

		_ = cm.RunSweep(ctx)
	})
	if err != nil {
		return fmt.Errorf("invalid cleanup schedule %q: %w", cm.schedule, err)
	}

	cm.logger.Info("cron jobs configured", "cleanup_schedule", cm.schedule)
	return nil
}

// RunSweep deletes expired recommendations once. Failures are logged and
// reported, and a sweep already running elsewhere makes this one a no-op.
func (cm *CronManager) RunSweep(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sweep panicked: %v", r)
			cm.fail(err)
		}
	}()

	if cm.locker != nil {
		lock, ok, lerr := cm.locker.AcquireLock(ctx, sweepLockKey, sweepTimeout)
		switch {
		case lerr != nil:
			cm.logger.Warn("sweep lock unavailable, sweeping anyway", "error", lerr)
		case !ok:
			cm.logger.Info("sweep already running on another instance")
			cm.record(SweepSkipped)
			return nil
		default:
			defer func() {
				if rerr := lock.Release(context.Background()); rerr != nil {
					cm.logger.Warn("failed to release sweep lock", "error", rerr)
				}
			}()
		}
	}

	start := time.Now()
	deleted, err := cm.sweeper.CleanupExpiredRecommendations(ctx)
	if err != nil {
		cm.fail(fmt.Errorf("expired recommendation sweep: %w", err))
		return err
	}

	cm.logger.Info("expired recommendations swept", "deleted", deleted, "duration", time.Since(start))
	cm.record(SweepOK)
	return nil
}

func (cm *CronManager) fail(err error) {
	cm.logger.Error("expired recommendation sweep failed", "error", err)
	cm.record(SweepFailed)
	if cm.report != nil {
		cm.report(err)
	}
}

func (cm *CronManager) record(outcome string) {
	if cm.recorder != nil {
		cm.recorder.RecordSweep(outcome)
	}
}

// Start starts the cron scheduler
func (cm *CronManager) Start() {
	cm.logger.Info("starting cron scheduler")
	cm.cron.Start()
}

// Stop stops the scheduler and waits for a running sweep to finish or ctx to end
func (cm *CronManager) Stop(ctx context.Context) {
	cm.logger.Info("stopping cron scheduler")
	select {
	case <-cm.cron.Stop().Done():
	case <-ctx.Done():
		cm.logger.Warn("cron jobs still running at shutdown")
	}
}

// Entries returns the scheduled jobs
func (cm *CronManager) Entries() []cron.Entry {
	return cm.cron.Entries()
}

// cronLogger adapts logger.Logger to cron.Logger
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}
