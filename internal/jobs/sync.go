package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/garnizeh/leavesync/internal/syncer"
)

// Runner runs one sync pass.
type Runner interface {
	Run(ctx context.Context, trigger string) (syncer.Report, error)
}

// NewSyncHandler returns the handler for sync jobs. Only a pass that could
// not run at all is retried; per-record failures are part of the report.
func NewSyncHandler(r Runner, logger *slog.Logger) Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, j *Job) error {
		var p SyncPayload
		if len(j.Payload) > 0 {
			if err := json.Unmarshal(j.Payload, &p); err != nil {
				return fmt.Errorf("decode sync payload: %w", err)
			}
		}
		if p.Trigger == "" {
			p.Trigger = syncer.TriggerSchedule
		}
		rep, err := r.Run(ctx, p.Trigger)
		if err != nil {
			return err
		}
		logger.Info("sync job done", "job_id", j.ID, "run_id", rep.ID, "failed", rep.Failed)
		return nil
	}
}

// Scheduler enqueues a sync job every interval unless one is already waiting
// or running.
type Scheduler struct {
	pool        *WorkerPool
	interval    time.Duration
	maxAttempts int
	logger      *slog.Logger
}

func NewScheduler(pool *WorkerPool, interval time.Duration, maxAttempts int, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{pool: pool, interval: interval, maxAttempts: maxAttempts, logger: logger}
}

// Run blocks until ctx is done. A zero interval disables scheduling.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.interval <= 0 {
		s.logger.Info("sync schedule disabled")
		<-ctx.Done()
		return nil
	}
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			_, err := s.Trigger(ctx, syncer.TriggerSchedule)
			switch {
			case errors.Is(err, ErrSyncPending):
				s.logger.Debug("previous sync still pending, tick skipped")
			case err != nil && ctx.Err() == nil:
				s.logger.Error("schedule sync", "err", err)
			}
		}
	}
}

// ErrSyncPending is returned by Trigger while a sync job is queued or running.
var ErrSyncPending = errors.New("sync job already pending")

// Trigger enqueues a sync job and returns its id.
func (s *Scheduler) Trigger(ctx context.Context, trigger string) (int64, error) {
	n, err := s.pool.repo.CountActive(ctx, TypeSync)
	if err != nil {
		return 0, fmt.Errorf("count active sync jobs: %w", err)
	}
	if n > 0 {
		return 0, ErrSyncPending
	}
	id, err := s.pool.Enqueue(ctx, TypeSync, SyncPayload{Trigger: trigger}, 100, s.maxAttempts)
	if err != nil {
		return 0, err
	}
	s.logger.Info("sync job enqueued", "job_id", id, "trigger", trigger)
	return id, nil
}
