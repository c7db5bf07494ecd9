// Package syncer runs one pass over the vacation database: it fills in
// defaults and computed balances, writes them back, and sends each status
// email at most once.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/garnizeh/leavesync/internal/leave"
	"github.com/garnizeh/leavesync/internal/store"
	"github.com/garnizeh/leavesync/pkg/mailer"
	"github.com/garnizeh/leavesync/pkg/models"
	"github.com/garnizeh/leavesync/pkg/repository"
)

// Triggers recorded on each run.
const (
	TriggerCLI      = "cli"
	TriggerSchedule = "schedule"
	TriggerAPI      = "api"
)

type RequestStore interface {
	ListPending(ctx context.Context) ([]leave.VacationRequest, error)
	ListApprovedByNationalID(ctx context.Context, nid string) ([]leave.VacationRequest, error)
	Update(ctx context.Context, id string, patch leave.RequestPatch) error
	MarkNotified(ctx context.Context, id string, status leave.Status) error
}

type EmployeeStore interface {
	FindByNationalID(ctx context.Context, nid string) (leave.Employee, error)
	UpdateRemaining(ctx context.Context, id string, remaining float64) error
}

type Notifier interface {
	Notify(ctx context.Context, n mailer.Notification) error
}

// Deps groups the collaborators of a Syncer. Ledger and Runs are optional.
type Deps struct {
	Requests  RequestStore
	Employees EmployeeStore
	Notifier  Notifier
	Ledger    repository.NotificationRepo
	Runs      repository.RunRepo
}

// Report summarizes one pass.
type Report struct {
	ID       string    `json:"id"`
	Trigger  string    `json:"trigger"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
	Fetched  int       `json:"fetched"`
	Updated  int       `json:"updated"`
	Notified int       `json:"notified"`
	Repaired int       `json:"repaired"`
	Skipped  int       `json:"skipped"`
	Failed   int       `json:"failed"`
	Error    string    `json:"error,omitempty"`
}

type Syncer struct {
	deps   Deps
	dryRun bool
	logger *slog.Logger
	now    func() time.Time
}

func New(deps Deps, dryRun bool, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{deps: deps, dryRun: dryRun, logger: logger, now: time.Now}
}

// Run processes the pending requests one at a time. A failure on one record
// is logged and counted and the pass moves on. The returned error is set only
// when the pass could not run at all.
func (s *Syncer) Run(ctx context.Context, trigger string) (Report, error) {
	m := getMetrics()
	rep := Report{ID: uuid.NewString(), Trigger: trigger, Started: s.now()}
	s.startRun(ctx, rep)

	log := s.logger.With("run_id", rep.ID, "trigger", trigger)
	if s.dryRun {
		log.Info("dry run: no writes or emails")
	}

	requests, err := s.deps.Requests.ListPending(ctx)
	if err != nil {
		err = fmt.Errorf("list pending requests: %w", err)
		rep.Error = err.Error()
		s.finish(ctx, &rep)
		return rep, err
	}
	rep.Fetched = len(requests)

	for _, req := range requests {
		if ctxErr := ctx.Err(); ctxErr != nil {
			rep.Error = ctxErr.Error()
			s.finish(ctx, &rep)
			return rep, ctxErr
		}
		res := s.process(ctx, rep.ID, req)
		rep.add(res)
		outcome := res.outcome()
		m.recordsTotal.WithLabelValues(outcome).Inc()

		switch {
		case res.err != nil:
			log.Error("request failed", "request_id", req.ID, "national_id", req.NationalID, "err", res.err)
		case res.skip != leave.SkipNone:
			log.Debug("request skipped", "request_id", req.ID, "reason", string(res.skip))
		default:
			log.Info("request processed", "request_id", req.ID, "outcome", outcome)
		}
	}

	s.finish(ctx, &rep)
	log.Info("sync pass finished",
		"fetched", rep.Fetched, "updated", rep.Updated, "notified", rep.Notified,
		"repaired", rep.Repaired, "skipped", rep.Skipped, "failed", rep.Failed,
		"duration", rep.Finished.Sub(rep.Started).String())
	return rep, nil
}

type result struct {
	updated  bool
	notified bool
	repaired bool
	skip     leave.SkipReason
	err      error
}

func (r result) outcome() string {
	switch {
	case r.err != nil:
		return "failed"
	case r.notified:
		return "notified"
	case r.repaired:
		return "repaired"
	case r.skip != leave.SkipNone:
		return "skipped"
	case r.updated:
		return "updated"
	}
	return "unchanged"
}

func (r *Report) add(res result) {
	if res.updated {
		r.Updated++
	}
	if res.notified {
		r.Notified++
	}
	if res.repaired {
		r.Repaired++
	}
	if res.err != nil {
		r.Failed++
	} else if res.skip != leave.SkipNone {
		r.Skipped++
	}
}

func (s *Syncer) process(ctx context.Context, runID string, req leave.VacationRequest) result {
	var res result

	emp, err := s.deps.Employees.FindByNationalID(ctx, req.NationalID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			res.err = fmt.Errorf("lookup employee: %w", err)
			return res
		}
		s.logger.Warn("no employee for request", "request_id", req.ID, "national_id", req.NationalID)
		emp = leave.Employee{}
	}

	var approved []leave.VacationRequest
	if emp.ID != "" && emp.AccruedBalance != nil {
		approved, err = s.deps.Requests.ListApprovedByNationalID(ctx, req.NationalID)
		if err != nil {
			res.err = fmt.Errorf("list approved requests: %w", err)
			return res
		}
	}

	bal := leave.Compute(req, emp.AccruedBalance, approved)
	patch := leave.Diff(req, leave.DisplayName(req, emp), bal)
	if !patch.Empty() {
		if !s.dryRun {
			if err := s.deps.Requests.Update(ctx, req.ID, patch); err != nil {
				res.err = err
				return res
			}
		}
		patch.Apply(&req)
		res.updated = true
	}

	if emp.ID != "" && bal.Remaining != nil && !sameValue(emp.RemainingBalance, *bal.Remaining) {
		if !s.dryRun {
			if err := s.deps.Employees.UpdateRemaining(ctx, emp.ID, *bal.Remaining); err != nil {
				res.err = err
				return res
			}
		}
		res.updated = true
	}

	ok, reason := leave.NotificationEligible(req, emp)
	if !ok {
		res.skip = reason
		return res
	}

	sent, err := s.alreadySent(ctx, req)
	if err != nil {
		res.err = err
		return res
	}
	if sent {
		// email went out on an earlier pass that never wrote the marker
		if !s.dryRun {
			if err := s.deps.Requests.MarkNotified(ctx, req.ID, req.Status); err != nil {
				res.err = err
				return res
			}
		}
		res.repaired = true
		return res
	}

	if s.dryRun {
		res.notified = true
		return res
	}

	to := leave.Recipient(req, emp)
	n := mailer.Notification{
		Status:           req.Status,
		To:               to,
		Name:             leave.DisplayName(req, emp),
		Start:            *req.Start,
		End:              *req.End,
		RequestedDays:    req.RequestedDays,
		RemainingBalance: req.RemainingBalance,
	}
	if err := s.deps.Notifier.Notify(ctx, n); err != nil {
		res.err = err
		return res
	}
	res.notified = true
	getMetrics().notifications.WithLabelValues(string(req.Status)).Inc()

	// the email is out; a shutdown from here on must not lose the record of it
	wctx := context.WithoutCancel(ctx)
	if s.deps.Ledger != nil {
		entry := &models.Notification{RequestID: req.ID, Status: string(req.Status), Recipient: to, RunID: runID}
		if err := s.deps.Ledger.RecordSent(wctx, entry); err != nil {
			s.logger.Error("record notification in ledger", "request_id", req.ID, "err", err)
		}
	}
	if err := s.deps.Requests.MarkNotified(wctx, req.ID, req.Status); err != nil {
		res.err = err
	}
	return res
}

func (s *Syncer) alreadySent(ctx context.Context, req leave.VacationRequest) (bool, error) {
	if s.deps.Ledger == nil {
		return false, nil
	}
	sent, err := s.deps.Ledger.HasSent(ctx, req.ID, string(req.Status))
	if err != nil {
		return false, fmt.Errorf("check ledger: %w", err)
	}
	return sent, nil
}

func (s *Syncer) startRun(ctx context.Context, rep Report) {
	if s.deps.Runs == nil {
		return
	}
	run := &models.SyncRun{ID: rep.ID, Trigger: rep.Trigger, Started: rep.Started.UnixMilli()}
	if err := s.deps.Runs.StartRun(ctx, run); err != nil {
		s.logger.Warn("record run start", "run_id", rep.ID, "err", err)
	}
}

func (s *Syncer) finish(ctx context.Context, rep *Report) {
	rep.Finished = s.now()
	m := getMetrics()
	m.runDuration.Observe(rep.Finished.Sub(rep.Started).Seconds())
	if rep.Error != "" {
		m.runsTotal.WithLabelValues(rep.Trigger, "error").Inc()
	} else {
		m.runsTotal.WithLabelValues(rep.Trigger, "ok").Inc()
		m.lastSuccess.Set(float64(rep.Finished.Unix()))
	}

	if s.deps.Runs == nil {
		return
	}
	run := &models.SyncRun{
		ID:       rep.ID,
		Trigger:  rep.Trigger,
		Started:  rep.Started.UnixMilli(),
		Fetched:  rep.Fetched,
		Updated:  rep.Updated,
		Notified: rep.Notified,
		Repaired: rep.Repaired,
		Skipped:  rep.Skipped,
		Failed:   rep.Failed,
		Error:    rep.Error,
	}
	// the run row must be written even when ctx was canceled mid-pass
	if err := s.deps.Runs.FinishRun(context.WithoutCancel(ctx), run); err != nil {
		s.logger.Warn("record run finish", "run_id", rep.ID, "err", err)
	}
}

func sameValue(stored *float64, v float64) bool {
	return stored != nil && *stored == v
}
