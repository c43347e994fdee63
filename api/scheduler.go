/*
scheduler.go - Automated expiry sweep scheduler

PURPOSE:
  Periodically runs the expiry sweep so items within the alert horizon
  (15 days, then every day of the final week) raise ExpiryWarning
  notifications without anyone calling the admin endpoint.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Sweeps once immediately on start, then on every tick
  - Same-day repeats are suppressed by the store, so overlapping or
    frequent runs never duplicate an alert
  - Each run is recorded by the sweeper for audit and UI display

CONFIGURATION:
  - CheckInterval: How often to sweep (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewExpirySweepScheduler(sweeper, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: TriggerExpirySweep endpoint (manual sweep)
  - ledger/sweep.go: Sweeper
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/qmedic/stock-ledger/ledger"
)

// ExpirySweepScheduler runs the expiry sweep on a fixed interval.
type ExpirySweepScheduler struct {
	Sweeper       *ledger.Sweeper
	Logger        *zap.Logger
	CheckInterval time.Duration
	Enabled       bool

	// RunTimeout bounds a single sweep; zero means no limit.
	RunTimeout time.Duration

	ticker  *time.Ticker
	stopped bool
	stop    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	lastRun time.Time
}

// NewExpirySweepScheduler creates a new scheduler.
func NewExpirySweepScheduler(sweeper *ledger.Sweeper, logger *zap.Logger) *ExpirySweepScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExpirySweepScheduler{
		Sweeper:       sweeper,
		Logger:        logger,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		RunTimeout:    5 * time.Minute,
		stop:          make(chan struct{}),
	}
}

// Start begins the scheduler.
func (s *ExpirySweepScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.Logger.Info("expiry sweep scheduler disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}
	if s.stopped {
		s.Logger.Warn("expiry sweep scheduler already stopped, not restarting")
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.wg.Add(1)

	go s.run(s.ticker.C)

	s.Logger.Info("expiry sweep scheduler started", zap.Duration("interval", s.CheckInterval))
}

// Stop stops the scheduler and waits for an in-flight sweep to finish. A
// stopped scheduler cannot be restarted.
func (s *ExpirySweepScheduler) Stop() {
	s.mu.Lock()
	ticker := s.ticker
	s.ticker = nil
	s.stopped = true
	s.mu.Unlock()

	if ticker == nil {
		return
	}
	ticker.Stop()
	close(s.stop)
	s.wg.Wait()
	s.Logger.Info("expiry sweep scheduler stopped")
}

func (s *ExpirySweepScheduler) run(tick <-chan time.Time) {
	defer s.wg.Done()

	// Run immediately on start
	s.sweep()

	for {
		select {
		case <-tick:
			s.sweep()
		case <-s.stop:
			return
		}
	}
}

func (s *ExpirySweepScheduler) sweep() {
	base, abort := context.WithCancel(context.Background())
	defer abort()
	ctx := base
	if s.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(base, s.RunTimeout)
		defer cancel()
	}

	// Abort the sweep if Stop is called mid-run.
	go func() {
		select {
		case <-s.stop:
			abort()
		case <-ctx.Done():
		}
	}()

	run, err := s.Sweeper.Run(ctx)
	s.recordRun(run.StartedAt)
	if err != nil {
		s.Logger.Error("scheduled expiry sweep failed", zap.String("run_id", run.ID), zap.Error(err))
		return
	}
	if run.Alerted > 0 || run.DispatchFailed > 0 {
		s.Logger.Info("scheduled expiry sweep completed",
			zap.String("run_id", run.ID),
			zap.Int("alerted", run.Alerted),
			zap.Int("suppressed", run.Suppressed),
			zap.Int("dispatch_failed", run.DispatchFailed),
		)
	}
}

func (s *ExpirySweepScheduler) recordRun(at time.Time) {
	if at.IsZero() {
		at = time.Now()
	}
	s.mu.Lock()
	s.lastRun = at
	s.mu.Unlock()
}

// LastRunTime returns when the most recent sweep started, or zero.
func (s *ExpirySweepScheduler) LastRunTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}

// GetNextRunTime returns when the next scheduled sweep will occur.
func (s *ExpirySweepScheduler) GetNextRunTime() time.Time {
	last := s.LastRunTime()
	if last.IsZero() {
		return time.Now().Add(s.CheckInterval)
	}
	return last.Add(s.CheckInterval)
}
