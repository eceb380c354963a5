package decision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/subvote/internal/model"
)

// NoVotesReason is the reason of an application that expired without votes.
const NoVotesReason = "no votes before deadline"

// SweepReport summarizes one sweep run.
type SweepReport struct {
	RunID    string `json:"run_id"`
	Due      int    `json:"due"`
	Approved int    `json:"approved"`
	Rejected int    `json:"rejected"`
	Expired  int    `json:"expired"`
	Errored  int    `json:"errored"` // Approvals compensated into error
	Skipped  int    `json:"skipped"` // Resolved by another trigger first
	Failed   int    `json:"failed"`  // Could not be processed; retried next sweep
}

// AtDeadline decides an application whose voting window has closed.
// No votes expires; otherwise strict majority approves and ties reject.
func AtDeadline(t model.Tally) (model.Outcome, string) {
	if t.Total() == 0 {
		return model.OutcomeExpired, NoVotesReason
	}
	reason := fmt.Sprintf("voting closed (%s)", t)
	if t.Approve > t.Deny {
		return model.OutcomeApproved, reason
	}
	return model.OutcomeRejected, reason
}

// Sweep resolves every pending application whose deadline is at or before now.
//
// Each application is handled independently: a failure is logged and counted
// and the sweep moves on. The returned error is non-nil only when the due
// list itself could not be read.
func (e *Engine) Sweep(ctx context.Context) (SweepReport, error) {
	report := SweepReport{RunID: e.ids.Generate()}
	logger := e.logger.With("run_id", report.RunID)

	due, err := e.store.ListDueApplications(ctx, e.clock.Now())
	if err != nil {
		return report, fmt.Errorf("sweep: %w", err)
	}
	report.Due = len(due)

	for _, app := range due {
		if ctx.Err() != nil {
			logger.Warn("sweep interrupted", "remaining", report.Due-report.processed())
			break
		}
		e.sweepOne(ctx, logger, app, &report)
	}

	if report.Due > 0 {
		logger.Info("sweep finished",
			"due", report.Due,
			"approved", report.Approved,
			"rejected", report.Rejected,
			"expired", report.Expired,
			"errored", report.Errored,
			"skipped", report.Skipped,
			"failed", report.Failed)
	}
	return report, nil
}

func (r SweepReport) processed() int {
	return r.Approved + r.Rejected + r.Expired + r.Errored + r.Skipped + r.Failed
}

func (e *Engine) sweepOne(ctx context.Context, logger *slog.Logger, app model.Application, report *SweepReport) {
	votes, err := e.store.ListVotes(ctx, app.ID)
	if err != nil {
		report.Failed++
		logger.Error("sweep: list votes failed", "application_id", app.ID, "error", err)
		return
	}

	outcome, reason := AtDeadline(model.Count(votes))
	res, err := e.Resolve(ctx, app.ID, reason, outcome)
	switch {
	case errors.Is(err, ErrAlreadyResolved):
		report.Skipped++
		return
	case err != nil:
		report.Failed++
		logger.Error("sweep: resolve failed", "application_id", app.ID, "error", err)
		return
	}

	switch res.Status {
	case model.StatusApproved:
		report.Approved++
	case model.StatusRejected:
		report.Rejected++
	case model.StatusExpired:
		report.Expired++
	case model.StatusError:
		report.Errored++
	}
}

// Sweeper runs Sweep on a fixed period.
type Sweeper struct {
	engine   *Engine
	interval time.Duration
}

// NewSweeper creates a sweeper using the engine's configured interval.
func NewSweeper(e *Engine) *Sweeper {
	return &Sweeper{engine: e, interval: e.cfg.SweepInterval}
}

// Run sweeps once immediately and then every interval until ctx is done.
// It returns nil when ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.engine.logger.Info("sweeper started", "interval", s.interval)
	for {
		if _, err := s.engine.Sweep(ctx); err != nil {
			s.engine.logger.Error("sweep failed", "error", err)
		}

		select {
		case <-ctx.Done():
			s.engine.logger.Info("sweeper stopped")
			return nil
		case <-ticker.C:
		}
	}
}
