package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/subvote/internal/model"
)

// InsertRecord persists a record materialized at the DNS provider.
// The record's ID is the provider-assigned identifier.
func (s *Store) InsertRecord(ctx context.Context, r model.DNSRecord) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dns_records (id, user_id, type, name, content, ttl, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID,
		r.UserID,
		string(r.Type),
		r.Name,
		r.Value,
		r.TTL,
		toMillis(r.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert record %s: %w", r.ID, err)
	}
	return nil
}

// UpdateRecord overwrites a record's type, name and value in place.
// Returns ErrNotFound if the record no longer exists.
func (s *Store) UpdateRecord(ctx context.Context, r model.DNSRecord) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE dns_records SET type = ?, name = ?, content = ? WHERE id = ?
	`, string(r.Type), r.Name, r.Value, r.ID)
	if err != nil {
		return fmt.Errorf("update record %s: %w", r.ID, err)
	}
	return expectOneRow(result, "update record "+r.ID)
}

// GetRecord retrieves a record by provider ID.
// Returns ErrNotFound if no such record exists.
func (s *Store) GetRecord(ctx context.Context, id string) (model.DNSRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, type, name, content, ttl, created_at
		FROM dns_records WHERE id = ?
	`, id)
	r, err := scanRecord(row)
	if err != nil {
		return model.DNSRecord{}, fmt.Errorf("get record %s: %w", id, err)
	}
	return r, nil
}

// FindRecordByName returns the oldest record with the given fully qualified name.
// Returns ErrNotFound if no record has that name.
func (s *Store) FindRecordByName(ctx context.Context, name string) (model.DNSRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, type, name, content, ttl, created_at
		FROM dns_records WHERE name = ?
		ORDER BY created_at ASC, id ASC
		LIMIT 1
	`, name)
	r, err := scanRecord(row)
	if err != nil {
		return model.DNSRecord{}, fmt.Errorf("find record %s: %w", name, err)
	}
	return r, nil
}

// ListRecords returns a user's records ordered by creation.
// A zero userID lists every record.
func (s *Store) ListRecords(ctx context.Context, userID int64) ([]model.DNSRecord, error) {
	query := `SELECT id, user_id, type, name, content, ttl, created_at FROM dns_records`
	var args []any
	if userID != 0 {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	records := []model.DNSRecord{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

// DeleteRecord removes a record row. Applications referencing it keep their
// history with the reference cleared.
func (s *Store) DeleteRecord(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM dns_records WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete record %s: %w", id, err)
	}
	return expectOneRow(result, "delete record "+id)
}

func scanRecord(rs rowScanner) (model.DNSRecord, error) {
	var (
		r         model.DNSRecord
		typ       string
		createdAt int64
	)
	if err := rs.Scan(&r.ID, &r.UserID, &typ, &r.Name, &r.Value, &r.TTL, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.DNSRecord{}, ErrNotFound
		}
		return model.DNSRecord{}, fmt.Errorf("scan record: %w", err)
	}
	r.Type = model.RecordType(typ)
	r.CreatedAt = fromMillis(createdAt)
	return r, nil
}
