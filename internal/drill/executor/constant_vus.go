package executor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wafdrill/wafdrill/internal/drill"
	"github.com/wafdrill/wafdrill/internal/drill/metrics"
)

// ConstantVUs runs a fixed number of VUs for a specified duration.
//
// This is the primary executor for both drill profiles: the authenticated
// profile pairs it with random pacing (the simulated user's think time),
// the flood profile with no pacing at all so that each VU hammers the
// target as fast as it can.
type ConstantVUs struct {
	config    *Config
	scheduler *drill.Scheduler

	// startTime and cancelFunc are written by Run and read by Stop,
	// GetProgress and GetStats from other goroutines.
	mu         sync.Mutex
	startTime  time.Time
	cancelFunc context.CancelFunc

	activeVUs  atomic.Int32
	iterations atomic.Int64
	running    atomic.Bool

	wg sync.WaitGroup
}

// NewConstantVUs creates a new constant VUs executor.
func NewConstantVUs() *ConstantVUs {
	return &ConstantVUs{}
}

// Type returns the executor type.
func (e *ConstantVUs) Type() Type {
	return TypeConstantVUs
}

// Init initializes the executor with configuration.
func (e *ConstantVUs) Init(ctx context.Context, config *Config) error {
	if config.Type != TypeConstantVUs {
		return fmt.Errorf("invalid config type: expected %s, got %s", TypeConstantVUs, config.Type)
	}

	if err := config.Validate(); err != nil {
		return err
	}

	e.config = config
	return nil
}

// Run starts the executor and blocks until completion.
func (e *ConstantVUs) Run(ctx context.Context, scheduler *drill.Scheduler, metricsEngine *metrics.Engine) error {
	runCtx, cancel := context.WithTimeout(ctx, e.config.Duration)
	defer cancel()

	e.mu.Lock()
	e.scheduler = scheduler
	e.startTime = time.Now()
	e.cancelFunc = cancel
	e.mu.Unlock()
	e.running.Store(true)

	for i := 0; i < e.config.VUs; i++ {
		vu := scheduler.SpawnVU()
		e.wg.Add(1)
		go e.runVU(runCtx, vu)
	}

	e.wg.Wait()
	e.running.Store(false)

	return nil
}

// runVU runs a single VU through the scheduler's iteration loop until the
// context is cancelled.
func (e *ConstantVUs) runVU(ctx context.Context, vu *drill.VirtualUser) {
	defer e.wg.Done()

	e.activeVUs.Add(1)
	e.scheduler.UpdateMetrics()
	defer func() {
		e.activeVUs.Add(-1)
		e.scheduler.UpdateMetrics()
	}()

	e.scheduler.RunVU(ctx, vu, func(ctx context.Context) {
		e.iterations.Add(1)
		e.config.Pacing.Wait(ctx)
	})
}

// GetProgress returns current progress (0.0 to 1.0).
func (e *ConstantVUs) GetProgress() float64 {
	e.mu.Lock()
	start := e.startTime
	e.mu.Unlock()

	if !e.running.Load() {
		if start.IsZero() {
			return 0.0
		}
		return 1.0
	}

	progress := float64(time.Since(start)) / float64(e.config.Duration)
	if progress > 1.0 {
		progress = 1.0
	}
	return progress
}

// GetActiveVUs returns current active VU count.
func (e *ConstantVUs) GetActiveVUs() int {
	return int(e.activeVUs.Load())
}

// GetStats returns executor statistics.
func (e *ConstantVUs) GetStats() *Stats {
	e.mu.Lock()
	start := e.startTime
	e.mu.Unlock()

	var elapsed time.Duration
	if !start.IsZero() {
		elapsed = time.Since(start)
	}

	return &Stats{
		StartTime:     start,
		CurrentTime:   time.Now(),
		Elapsed:       elapsed,
		TotalDuration: e.config.Duration,
		ActiveVUs:     int(e.activeVUs.Load()),
		TargetVUs:     e.config.VUs,
		Iterations:    e.iterations.Load(),
	}
}

// Stop gracefully stops the executor.
func (e *ConstantVUs) Stop(ctx context.Context) error {
	e.mu.Lock()
	cancel := e.cancelFunc
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	graceful := e.config.GracefulStop
	if graceful == 0 {
		graceful = 30 * time.Second
	}

	select {
	case <-done:
		return nil
	case <-time.After(graceful):
		return fmt.Errorf("graceful stop timeout after %v", graceful)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ensure ConstantVUs implements Executor
var _ Executor = (*ConstantVUs)(nil)
