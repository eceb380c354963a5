package decision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/subvote/internal/model"
	"github.com/roach88/subvote/internal/store"
)

// VoteRequest is one admin pressing approve or deny.
type VoteRequest struct {
	ApplicationID int64
	VoterID       string // Chat user id of the voter
	Kind          model.VoteKind

	// MessageID is the review message the vote came from, if known. It is
	// stored on the application when none is recorded yet.
	MessageID string
}

// VoteResult reports what a recorded vote caused.
type VoteResult struct {
	Recorded bool
	Tally    model.Tally

	// Outcome is set when this vote reached the quorum.
	Outcome model.Outcome

	// Resolution is set when this vote's fast-track won the claim. A nil
	// Resolution with a set Outcome means another trigger resolved first.
	Resolution *Resolution
}

// FastTrack reports whether t decides an application before its deadline.
// Approval is checked first; either side reaching quorum decides.
func FastTrack(t model.Tally, quorum int) (model.Outcome, string, bool) {
	switch {
	case t.Approve >= quorum:
		return model.OutcomeApproved, fmt.Sprintf("fast-track approve (%s)", t), true
	case t.Deny >= quorum:
		return model.OutcomeRejected, fmt.Sprintf("fast-track reject (%s)", t), true
	}
	return "", "", false
}

// CastVote records a vote and fast-tracks the application if it reaches quorum.
//
// A rejected vote returns a *VoteError and changes nothing. A repeat vote
// from the same voter replaces the earlier one. Without quorum the review
// message is re-rendered with the new tally and both actions.
func (e *Engine) CastVote(ctx context.Context, req VoteRequest) (VoteResult, error) {
	if _, err := model.ParseVoteKind(string(req.Kind)); err != nil {
		return VoteResult{}, voteError(ErrCodeInvalidVote, req.ApplicationID, "%v", err)
	}

	app, err := e.store.GetApplication(ctx, req.ApplicationID)
	if errors.Is(err, store.ErrNotFound) {
		return VoteResult{}, voteError(ErrCodeInvalidVote, req.ApplicationID, "application does not exist")
	}
	if err != nil {
		return VoteResult{}, fmt.Errorf("cast vote: %w", err)
	}
	if app.Status != model.StatusPending {
		return VoteResult{}, voteError(ErrCodeInvalidVote, req.ApplicationID, "application is already %s", app.Status)
	}

	now := e.clock.Now()
	if !now.Before(app.VotingDeadline) {
		return VoteResult{}, voteError(ErrCodeVoteWindowClosed, req.ApplicationID, "voting closed at %s", app.VotingDeadline.UTC().Format("2006-01-02 15:04 MST"))
	}

	if _, err := e.store.FindAdminByChatID(ctx, req.VoterID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return VoteResult{}, voteError(ErrCodeUnauthorized, req.ApplicationID, "voter %s is not a bound admin", req.VoterID)
		}
		return VoteResult{}, fmt.Errorf("cast vote: %w", err)
	}

	recorded, err := e.store.UpsertVote(ctx, model.Vote{
		ApplicationID: req.ApplicationID,
		VoterID:       req.VoterID,
		Kind:          req.Kind,
		CreatedAt:     now,
	})
	if err != nil {
		return VoteResult{}, fmt.Errorf("cast vote: %w", err)
	}
	if !recorded {
		return VoteResult{}, e.guardMiss(ctx, req.ApplicationID, now)
	}

	logger := e.logger.With("application_id", req.ApplicationID, "voter_id", req.VoterID)
	logger.Info("vote recorded", "vote", req.Kind)

	if app.ReviewMessageID == "" && req.MessageID != "" {
		if err := e.store.SetReviewMessageID(ctx, app.ID, req.MessageID); err != nil {
			logger.Warn("review message id not saved", "message_id", req.MessageID, "error", err)
		} else {
			app.ReviewMessageID = req.MessageID
		}
	}

	votes, err := e.store.ListVotes(ctx, app.ID)
	if err != nil {
		return VoteResult{Recorded: true}, fmt.Errorf("cast vote: %w", err)
	}
	result := VoteResult{Recorded: true, Tally: model.Count(votes)}

	outcome, reason, decided := FastTrack(result.Tally, e.cfg.Quorum)
	if !decided {
		e.publishActive(ctx, logger, app.ID)
		return result, nil
	}

	result.Outcome = outcome
	res, err := e.Resolve(ctx, app.ID, reason, outcome)
	switch {
	case errors.Is(err, ErrAlreadyResolved):
		logger.Debug("fast-track lost the claim", "outcome", outcome)
	case err != nil:
		return result, fmt.Errorf("cast vote: %w", err)
	default:
		result.Resolution = &res
	}
	return result, nil
}

// guardMiss explains why the store refused a vote that passed the checks
// above: the application was resolved, or its window closed, in between.
func (e *Engine) guardMiss(ctx context.Context, id int64, now time.Time) error {
	app, err := e.store.GetApplication(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return voteError(ErrCodeInvalidVote, id, "application does not exist")
	case err != nil:
		return fmt.Errorf("cast vote: %w", err)
	case app.Status != model.StatusPending:
		return voteError(ErrCodeInvalidVote, id, "application was %s while voting", app.Status)
	case !now.Before(app.VotingDeadline):
		return voteError(ErrCodeVoteWindowClosed, id, "voting closed at %s", app.VotingDeadline.UTC().Format("2006-01-02 15:04 MST"))
	}
	return voteError(ErrCodeInvalidVote, id, "vote was not accepted")
}
