/*
sweep.go - Scheduled expiry scan

PURPOSE:
  Scans every item with an expiry date and records an ExpiryWarning when the
  item is 15 days out, or within its final 7 days. Shares the notification
  snapshot logic with the engine's low-stock check (alerts.go).

IDEMPOTENCY:
  Store.RecordExpiryAlert ignores a second alert for the same item, type and
  AlertDay. Overlapping or repeated runs on the same day therefore record and
  dispatch each alert once.

WHAT IT DOES NOT DO:
  - Never touches item quantity or history
  - Never alerts already-expired items
  - Never rolls back a recorded alert because dispatch failed

SEE ALSO:
  - api/scheduler.go: Periodic trigger
  - alerts.go:        ShouldAlertExpiry, ExpiryAlert
*/
package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	SweepRunning   = "running"
	SweepCompleted = "completed"
	SweepFailed    = "failed"
)

// SweepRun is the audit record of one sweep cycle.
type SweepRun struct {
	ID             string
	Status         string
	StartedAt      time.Time
	CompletedAt    *time.Time
	Scanned        int
	Alerted        int
	Suppressed     int
	DispatchFailed int
	Error          string
}

type Sweeper struct {
	Store      Store
	Runs       SweepRunStore // optional
	Dispatcher Dispatcher    // optional
	Logger     *zap.Logger
	Now        func() time.Time
}

func NewSweeper(store Store, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		Store:  store,
		Logger: logger,
		Now:    func() time.Time { return time.Now().UTC() },
	}
}

// Run performs one sweep cycle. A storage error on an individual alert is
// logged and the scan continues; the run is marked failed and the first such
// error is returned.
func (s *Sweeper) Run(ctx context.Context) (SweepRun, error) {
	now := s.Now()
	run := SweepRun{
		ID:        uuid.NewString(),
		Status:    SweepRunning,
		StartedAt: now,
	}
	s.saveRun(ctx, run)

	items, err := s.Store.ListExpiringItems(ctx)
	if err != nil {
		return s.finish(ctx, run, err), err
	}

	today := DateOf(now)
	var firstErr error
	for _, item := range items {
		if item.ExpiryDate == nil {
			continue
		}
		run.Scanned++

		days := DaysLeft(DateOf(*item.ExpiryDate), today)
		if !ShouldAlertExpiry(days) {
			continue
		}

		saved, inserted, err := s.Store.RecordExpiryAlert(ctx, ExpiryAlert(item, days, now))
		if err != nil {
			s.Logger.Error("record expiry alert failed",
				zap.String("run_id", run.ID),
				zap.String("item_code", item.Code),
				zap.Error(err),
			)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if !inserted {
			run.Suppressed++
			continue
		}
		run.Alerted++

		if s.Dispatcher == nil {
			continue
		}
		if err := s.Dispatcher.Dispatch(ctx, saved); err != nil {
			run.DispatchFailed++
			s.Logger.Warn("expiry dispatch failed",
				zap.String("run_id", run.ID),
				zap.String("item_code", item.Code),
				zap.Int64("notification_id", int64(saved.ID)),
				zap.Error(err),
			)
		}
	}

	return s.finish(ctx, run, firstErr), firstErr
}

func (s *Sweeper) finish(ctx context.Context, run SweepRun, err error) SweepRun {
	completed := s.Now()
	run.CompletedAt = &completed
	run.Status = SweepCompleted
	if err != nil {
		run.Status = SweepFailed
		run.Error = err.Error()
	}
	s.saveRun(ctx, run)

	s.Logger.Info("expiry sweep finished",
		zap.String("run_id", run.ID),
		zap.String("status", run.Status),
		zap.Int("scanned", run.Scanned),
		zap.Int("alerted", run.Alerted),
		zap.Int("suppressed", run.Suppressed),
		zap.Int("dispatch_failed", run.DispatchFailed),
	)
	return run
}

func (s *Sweeper) saveRun(ctx context.Context, run SweepRun) {
	if s.Runs == nil {
		return
	}
	if err := s.Runs.SaveSweepRun(ctx, run); err != nil {
		s.Logger.Warn("save sweep run failed", zap.String("run_id", run.ID), zap.Error(err))
	}
}
