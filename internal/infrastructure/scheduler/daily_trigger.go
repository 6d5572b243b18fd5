// Package scheduler runs the daily invoicing sync.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bicicare/invoicebridge/internal/application/invoicing"
)

const dayLayout = "2006-01-02"

// DaySyncer invoices the bookings paid on a day.
type DaySyncer interface {
	SyncDay(ctx context.Context, day time.Time) (*invoicing.SyncReport, error)
}

// CheckpointPruner removes completed checkpoints older than a cutoff.
type CheckpointPruner interface {
	DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// DailyTriggerConfig holds configuration for the daily trigger
type DailyTriggerConfig struct {
	// RunHour is the UTC hour from which the daily sync may start
	RunHour int
	// CheckInterval is how often to check if it's time to run
	CheckInterval time.Duration
	// JobTimeout bounds a single sync run. Zero means no limit.
	JobTimeout time.Duration
	// CheckpointRetention is the age after which completed checkpoints are
	// pruned. Zero disables pruning.
	CheckpointRetention time.Duration
}

// DefaultDailyTriggerConfig returns default trigger configuration
func DefaultDailyTriggerConfig() DailyTriggerConfig {
	return DailyTriggerConfig{
		RunHour:       2,
		CheckInterval: 15 * time.Minute,
		JobTimeout:    30 * time.Minute,
	}
}

// Validate validates the configuration
func (c DailyTriggerConfig) Validate() error {
	if c.RunHour < 0 || c.RunHour > 23 {
		return fmt.Errorf("%w: run hour %d", ErrInvalidConfig, c.RunHour)
	}
	if c.CheckInterval <= 0 {
		return fmt.Errorf("%w: check interval must be positive", ErrInvalidConfig)
	}
	if c.JobTimeout < 0 || c.CheckpointRetention < 0 {
		return fmt.Errorf("%w: negative duration", ErrInvalidConfig)
	}
	return nil
}

// Option configures a DailyTrigger
type Option func(*DailyTrigger)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *DailyTrigger) {
		t.now = now
	}
}

// WithPruner prunes completed checkpoints after each scheduled run.
func WithPruner(p CheckpointPruner) Option {
	return func(t *DailyTrigger) {
		t.pruner = p
	}
}

// DailyTrigger syncs the previous UTC day once per day. Scheduled and manual
// runs share a guard so only one sync runs at a time.
type DailyTrigger struct {
	config DailyTriggerConfig
	syncer DaySyncer
	pruner CheckpointPruner
	logger *zap.Logger
	now    func() time.Time

	runMu   sync.Mutex // held for the duration of a sync
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
	lastRun string // UTC date of the last scheduled run
}

// NewDailyTrigger creates a new daily trigger
func NewDailyTrigger(config DailyTriggerConfig, syncer DaySyncer, logger *zap.Logger, opts ...Option) (*DailyTrigger, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &DailyTrigger{
		config: config,
		syncer: syncer,
		logger: logger.Named("scheduler"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Start starts the trigger loop. Calling Start twice is a no-op.
func (t *DailyTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return nil
	}
	t.running = true

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go t.runLoop(ctx)

	t.logger.Info("Daily trigger started",
		zap.Int("run_hour", t.config.RunHour),
		zap.Duration("check_interval", t.config.CheckInterval),
	)
	return nil
}

// Stop stops the trigger and waits for a running sync to return, or for ctx
// to expire.
func (t *DailyTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return nil
	}
	t.running = false
	cancel := t.cancel
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("Daily trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsRunning reports whether the trigger loop is active.
func (t *DailyTrigger) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// LastRunDate returns the UTC date of the last scheduled run, or "".
func (t *DailyTrigger) LastRunDate() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastRun
}

func (t *DailyTrigger) runLoop(ctx context.Context) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.config.CheckInterval)
	defer ticker.Stop()

	// Catch up right away when started after the run hour.
	t.CheckAndTrigger(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.CheckAndTrigger(ctx)
		}
	}
}

// CheckAndTrigger runs the sync for yesterday if it is past the run hour and
// today's run has not happened yet. It reports whether a run was started.
func (t *DailyTrigger) CheckAndTrigger(ctx context.Context) bool {
	now := t.now().UTC()
	today := now.Format(dayLayout)

	t.mu.Lock()
	if t.lastRun == today || now.Hour() < t.config.RunHour {
		t.mu.Unlock()
		return false
	}
	t.lastRun = today
	t.mu.Unlock()

	yesterday := time.Date(now.Year(), now.Month(), now.Day()-1, 0, 0, 0, 0, time.UTC)
	report, err := t.RunDay(ctx, yesterday)
	if err != nil {
		if errors.Is(err, ErrSyncInProgress) {
			// A manual run covers the slot; try again next tick.
			t.mu.Lock()
			t.lastRun = ""
			t.mu.Unlock()
		}
		t.logger.Error("Scheduled sync failed",
			zap.String("day", yesterday.Format(dayLayout)),
			zap.Error(err),
		)
		return true
	}

	t.logger.Info("Scheduled sync completed",
		zap.String("run_id", report.RunID.String()),
		zap.String("day", report.Day),
		zap.Int("created", report.Created),
		zap.Int("failed", report.Failed),
	)
	t.prune(ctx, now)
	return true
}

// RunDay syncs day unless another sync is running, in which case it returns
// ErrSyncInProgress.
func (t *DailyTrigger) RunDay(ctx context.Context, day time.Time) (*invoicing.SyncReport, error) {
	if !t.runMu.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer t.runMu.Unlock()

	if t.config.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.config.JobTimeout)
		defer cancel()
	}

	report, err := t.syncer.SyncDay(ctx, day)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrSyncTimeout, err)
		}
		return nil, err
	}
	return report, nil
}

func (t *DailyTrigger) prune(ctx context.Context, now time.Time) {
	if t.pruner == nil || t.config.CheckpointRetention <= 0 {
		return
	}
	cutoff := now.Add(-t.config.CheckpointRetention)
	n, err := t.pruner.DeleteCompletedBefore(ctx, cutoff)
	if err != nil {
		t.logger.Warn("Checkpoint pruning failed", zap.Error(err))
		return
	}
	if n > 0 {
		t.logger.Info("Pruned completed checkpoints",
			zap.Int64("count", n),
			zap.Time("cutoff", cutoff),
		)
	}
}
