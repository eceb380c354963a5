package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/subvote/internal/model"
)

const applicationSelect = `
	SELECT a.id, a.user_id, a.request_type, a.target_dns_record_id, a.name,
	       a.record_type, a.record_value, a.purpose, a.status, a.admin_notes,
	       a.voting_deadline_at, a.review_message_id, a.created_at, a.resolved_at,
	       u.username, u.email
	FROM applications a
	JOIN users u ON a.user_id = u.id`

// ApplicationFilter narrows ListApplications. Zero fields match everything.
type ApplicationFilter struct {
	UserID        int64
	Status        model.Status
	CreatedBefore time.Time
}

// InsertApplication writes a new pending application and returns its ID.
// Status is forced to pending; resolution fields are ignored.
func (s *Store) InsertApplication(ctx context.Context, app model.Application) (int64, error) {
	if app.CreatedAt.IsZero() {
		app.CreatedAt = time.Now()
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO applications
		(user_id, request_type, target_dns_record_id, name, record_type, record_value,
		 purpose, status, voting_deadline_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 'pending', ?, ?)
	`,
		app.UserID,
		string(app.Kind),
		nullString(app.TargetRecordID),
		app.Name,
		string(app.RecordType),
		app.RecordValue,
		app.Purpose,
		toMillis(app.VotingDeadline),
		toMillis(app.CreatedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("insert application: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert application: last insert id: %w", err)
	}
	return id, nil
}

// GetApplication retrieves an application joined with its requester's username and email.
// Returns ErrNotFound if no such application exists.
func (s *Store) GetApplication(ctx context.Context, id int64) (model.Application, error) {
	row := s.db.QueryRowContext(ctx, applicationSelect+` WHERE a.id = ?`, id)
	app, err := scanApplication(row)
	if err != nil {
		return model.Application{}, fmt.Errorf("get application %d: %w", id, err)
	}
	return app, nil
}

// ListApplications returns applications matching the filter, ordered by id.
func (s *Store) ListApplications(ctx context.Context, f ApplicationFilter) ([]model.Application, error) {
	var (
		where []string
		args  []any
	)
	if f.UserID != 0 {
		where = append(where, "a.user_id = ?")
		args = append(args, f.UserID)
	}
	if f.Status != "" {
		where = append(where, "a.status = ?")
		args = append(args, string(f.Status))
	}
	if !f.CreatedBefore.IsZero() {
		where = append(where, "a.created_at < ?")
		args = append(args, toMillis(f.CreatedBefore))
	}

	query := applicationSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY a.id ASC"

	return s.queryApplications(ctx, query, args...)
}

// ListDueApplications returns pending applications whose voting deadline is at or before now.
func (s *Store) ListDueApplications(ctx context.Context, now time.Time) ([]model.Application, error) {
	return s.queryApplications(ctx, applicationSelect+`
		WHERE a.status = 'pending' AND a.voting_deadline_at <= ?
		ORDER BY a.id ASC
	`, toMillis(now))
}

func (s *Store) queryApplications(ctx context.Context, query string, args ...any) ([]model.Application, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query applications: %w", err)
	}
	defer rows.Close()

	apps := []model.Application{}
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applications: %w", err)
	}
	return apps, nil
}

// ClaimApplication atomically moves a pending application to status and records note.
//
// This is the only statement that takes an application out of pending. It is a
// compare-and-set on the status column: of any number of concurrent callers,
// exactly one observes claimed=true. The rest observe claimed=false and must
// treat the application as already resolved.
func (s *Store) ClaimApplication(ctx context.Context, id int64, status model.Status, note string, now time.Time) (claimed bool, err error) {
	if !status.IsTerminal() {
		return false, fmt.Errorf("claim application %d: %q is not a terminal status", id, status)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE applications
		SET status = ?, admin_notes = ?, resolved_at = ?
		WHERE id = ? AND status = 'pending'
	`, string(status), note, toMillis(now), id)
	if err != nil {
		return false, fmt.Errorf("claim application %d: %w", id, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim application %d: rows affected: %w", id, err)
	}
	return n == 1, nil
}

// MarkApplicationFailed compensates a claimed approval whose DNS change failed.
// Only an approved application can move to error; the row never returns to pending.
func (s *Store) MarkApplicationFailed(ctx context.Context, id int64, note string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE applications
		SET status = 'error', admin_notes = ?
		WHERE id = ? AND status = 'approved'
	`, note, id)
	if err != nil {
		return fmt.Errorf("mark application %d failed: %w", id, err)
	}
	return expectOneRow(result, fmt.Sprintf("mark application %d failed", id))
}

// SetReviewMessageID records the chat message that renders the application.
// Status is never touched.
func (s *Store) SetReviewMessageID(ctx context.Context, id int64, messageID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE applications SET review_message_id = ? WHERE id = ?
	`, messageID, id)
	if err != nil {
		return fmt.Errorf("set review message id: %w", err)
	}
	return expectOneRow(result, "set review message id")
}

func scanApplication(rs rowScanner) (model.Application, error) {
	var (
		app        model.Application
		kind       string
		target     sql.NullString
		recType    string
		status     string
		deadline   int64
		messageID  sql.NullString
		createdAt  int64
		resolvedAt sql.NullInt64
	)
	err := rs.Scan(
		&app.ID, &app.UserID, &kind, &target, &app.Name,
		&recType, &app.RecordValue, &app.Purpose, &status, &app.Notes,
		&deadline, &messageID, &createdAt, &resolvedAt,
		&app.Username, &app.Email,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Application{}, ErrNotFound
		}
		return model.Application{}, fmt.Errorf("scan application: %w", err)
	}
	app.Kind = model.RequestKind(kind)
	app.TargetRecordID = target.String
	app.RecordType = model.RecordType(recType)
	app.Status = model.Status(status)
	app.VotingDeadline = fromMillis(deadline)
	app.ReviewMessageID = messageID.String
	app.CreatedAt = fromMillis(createdAt)
	app.ResolvedAt = timePtr(resolvedAt)
	return app, nil
}
