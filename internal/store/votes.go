package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/subvote/internal/model"
)

// UpsertVote records a voter's stance, replacing any earlier stance from the same voter.
//
// The write only happens while the application is pending and now is before its
// deadline; both conditions are evaluated inside the same statement, so a vote
// cannot land on an application that was resolved concurrently. recorded=false
// means the guard rejected the write and nothing changed.
func (s *Store) UpsertVote(ctx context.Context, v model.Vote) (recorded bool, err error) {
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now()
	}
	at := toMillis(v.CreatedAt)

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO application_votes (application_id, voter_id, vote_type, created_at)
		SELECT ?, ?, ?, ?
		WHERE EXISTS (
			SELECT 1 FROM applications
			WHERE id = ? AND status = 'pending' AND voting_deadline_at > ?
		)
		ON CONFLICT(application_id, voter_id) DO UPDATE SET
			vote_type = excluded.vote_type,
			created_at = excluded.created_at
	`,
		v.ApplicationID, v.VoterID, string(v.Kind), at,
		v.ApplicationID, at,
	)
	if err != nil {
		return false, fmt.Errorf("upsert vote: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("upsert vote: rows affected: %w", err)
	}
	return n > 0, nil
}

// ListVotes returns all votes for an application ordered by insertion.
// Returns an empty slice (not nil) if no votes exist.
func (s *Store) ListVotes(ctx context.Context, applicationID int64) ([]model.Vote, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT application_id, voter_id, vote_type, created_at
		FROM application_votes
		WHERE application_id = ?
		ORDER BY id ASC
	`, applicationID)
	if err != nil {
		return nil, fmt.Errorf("query votes: %w", err)
	}
	defer rows.Close()

	votes := []model.Vote{}
	for rows.Next() {
		var (
			v         model.Vote
			kind      string
			createdAt int64
		)
		if err := rows.Scan(&v.ApplicationID, &v.VoterID, &kind, &createdAt); err != nil {
			return nil, fmt.Errorf("scan vote: %w", err)
		}
		v.Kind = model.VoteKind(kind)
		v.CreatedAt = fromMillis(createdAt)
		votes = append(votes, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate votes: %w", err)
	}
	return votes, nil
}
