package quota

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Sweeper periodically reclaims expired window states of a store
type Sweeper struct {
	store     CounterStore
	interval  time.Duration
	clock     clockwork.Clock
	logger    Logger
	scheduler gocron.Scheduler
	mu        sync.Mutex
}

// NewSweeper creates a sweeper; it does nothing until Start
func NewSweeper(store CounterStore, interval time.Duration, clock clockwork.Clock, log Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = nopLogger{}
	}
	return &Sweeper{
		store:    store,
		interval: interval,
		clock:    clock,
		logger:   log,
	}
}

// Start schedules the sweep job
func (w *Sweeper) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.scheduler != nil {
		return nil
	}

	scheduler, err := gocron.NewScheduler(gocron.WithClock(w.clock))
	if err != nil {
		return fmt.Errorf("create sweep scheduler failed: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(w.interval),
		gocron.NewTask(w.Sweep),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return fmt.Errorf("schedule sweep job failed: %w", err)
	}

	scheduler.Start()
	w.scheduler = scheduler
	return nil
}

// Sweep runs one cleanup pass
func (w *Sweeper) Sweep() {
	ctx := context.Background()
	removed, err := w.store.Cleanup(ctx)
	if err != nil {
		w.logger.WarnCtx(ctx, "Quota sweep failed", zap.Error(err))
		return
	}
	if removed > 0 {
		w.logger.DebugCtx(ctx, "Quota sweep removed expired windows", zap.Int("removed", removed))
	}
}

// Stop shuts the scheduler down (idempotent)
func (w *Sweeper) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.scheduler == nil {
		return nil
	}
	err := w.scheduler.Shutdown()
	w.scheduler = nil
	return err
}
