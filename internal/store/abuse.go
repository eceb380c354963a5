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

const reportColumns = `id, name, reason, details, reporter_ip, status, review_message_id, created_at`

// InsertAbuseReport writes a new report and returns its ID.
// Status is forced to new.
func (s *Store) InsertAbuseReport(ctx context.Context, r model.AbuseReport) (int64, error) {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO abuse_reports (name, reason, details, reporter_ip, status, created_at)
		VALUES (?, ?, ?, ?, 'new', ?)
	`, r.Name, r.Reason, r.Details, r.ReporterIP, toMillis(r.CreatedAt))
	if err != nil {
		return 0, fmt.Errorf("insert abuse report: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert abuse report: last insert id: %w", err)
	}
	return id, nil
}

// GetAbuseReport retrieves a report by ID.
// Returns ErrNotFound if no such report exists.
func (s *Store) GetAbuseReport(ctx context.Context, id int64) (model.AbuseReport, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM abuse_reports WHERE id = ?`, id)
	r, err := scanReport(row)
	if err != nil {
		return model.AbuseReport{}, fmt.Errorf("get abuse report %d: %w", id, err)
	}
	return r, nil
}

// ListAbuseReports returns reports ordered by id. An empty status lists all.
func (s *Store) ListAbuseReports(ctx context.Context, status model.ReportStatus) ([]model.AbuseReport, error) {
	query := `SELECT ` + reportColumns + ` FROM abuse_reports`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query abuse reports: %w", err)
	}
	defer rows.Close()

	reports := []model.AbuseReport{}
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate abuse reports: %w", err)
	}
	return reports, nil
}

// TransitionAbuseReport moves a report to status if it is currently in one of from.
//
// Like ClaimApplication this is a compare-and-set: of concurrent callers at
// most one observes moved=true for a given starting state.
func (s *Store) TransitionAbuseReport(ctx context.Context, id int64, from []model.ReportStatus, to model.ReportStatus) (moved bool, err error) {
	if len(from) == 0 {
		return false, fmt.Errorf("transition abuse report %d: no source status", id)
	}

	placeholders := make([]string, len(from))
	args := []any{string(to), id}
	for i, st := range from {
		placeholders[i] = "?"
		args = append(args, string(st))
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE abuse_reports SET status = ?
		WHERE id = ? AND status IN (`+strings.Join(placeholders, ", ")+`)
	`, args...)
	if err != nil {
		return false, fmt.Errorf("transition abuse report %d: %w", id, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition abuse report %d: rows affected: %w", id, err)
	}
	return n == 1, nil
}

// SetAbuseReportMessageID records the chat message that renders the report.
func (s *Store) SetAbuseReportMessageID(ctx context.Context, id int64, messageID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE abuse_reports SET review_message_id = ? WHERE id = ?
	`, messageID, id)
	if err != nil {
		return fmt.Errorf("set report message id: %w", err)
	}
	return expectOneRow(result, "set report message id")
}

func scanReport(rs rowScanner) (model.AbuseReport, error) {
	var (
		r         model.AbuseReport
		status    string
		messageID sql.NullString
		createdAt int64
	)
	err := rs.Scan(&r.ID, &r.Name, &r.Reason, &r.Details, &r.ReporterIP, &status, &messageID, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.AbuseReport{}, ErrNotFound
		}
		return model.AbuseReport{}, fmt.Errorf("scan abuse report: %w", err)
	}
	r.Status = model.ReportStatus(status)
	r.ReviewMessageID = messageID.String
	r.CreatedAt = fromMillis(createdAt)
	return r, nil
}
