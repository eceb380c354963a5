package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/subvote/internal/model"
)

const userColumns = `id, username, email, role, telegram_user_id,
	telegram_bind_token, telegram_bind_token_expires_at, created_at`

// CreateUser inserts a user and returns it with its assigned ID.
func (s *Store) CreateUser(ctx context.Context, u model.User) (model.User, error) {
	if u.Role == "" {
		u.Role = model.RoleUser
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, email, role, telegram_user_id, created_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		u.Username,
		u.Email,
		string(u.Role),
		nullString(u.ChatUserID),
		toMillis(u.CreatedAt),
	)
	if err != nil {
		return model.User{}, fmt.Errorf("create user: %w", err)
	}

	u.ID, err = result.LastInsertId()
	if err != nil {
		return model.User{}, fmt.Errorf("create user: last insert id: %w", err)
	}
	u.CreatedAt = fromMillis(toMillis(u.CreatedAt))
	return u, nil
}

// GetUser retrieves a user by ID.
// Returns ErrNotFound if no such user exists.
func (s *Store) GetUser(ctx context.Context, id int64) (model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUserRow(row)
}

// GetUserByUsername retrieves a user by username.
// Returns ErrNotFound if no such user exists.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	return scanUserRow(row)
}

// FindAdminByChatID returns the admin bound to a chat user id.
// Returns ErrNotFound if the chat user is unbound or not an admin.
func (s *Store) FindAdminByChatID(ctx context.Context, chatUserID string) (model.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE telegram_user_id = ? AND role = 'admin'
	`, chatUserID)
	return scanUserRow(row)
}

// ListUsers returns all users ordered by id.
func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

// SetRole changes a user's role by username.
// Returns ErrNotFound if no user has that username.
func (s *Store) SetRole(ctx context.Context, username string, role model.Role) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET role = ? WHERE username = ?`, string(role), username)
	if err != nil {
		return fmt.Errorf("set role: %w", err)
	}
	return expectOneRow(result, "set role")
}

// SetBindToken stores a one-time token the user redeems in a private chat to bind their chat account.
func (s *Store) SetBindToken(ctx context.Context, userID int64, token string, expiresAt time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET telegram_bind_token = ?, telegram_bind_token_expires_at = ?
		WHERE id = ?
	`, token, toMillis(expiresAt), userID)
	if err != nil {
		return fmt.Errorf("set bind token: %w", err)
	}
	return expectOneRow(result, "set bind token")
}

// RedeemBindToken binds chatUserID to the user holding an unexpired token and clears the token.
// Returns ErrNotFound if the token is unknown or expired.
func (s *Store) RedeemBindToken(ctx context.Context, token, chatUserID string, now time.Time) (model.User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.User{}, fmt.Errorf("redeem bind token: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	row := tx.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE telegram_bind_token = ? AND telegram_bind_token_expires_at > ?
	`, token, toMillis(now))
	u, err := scanUserRow(row)
	if err != nil {
		return model.User{}, fmt.Errorf("redeem bind token: %w", err)
	}

	// A chat account can only be bound to one user.
	if _, err := tx.ExecContext(ctx, `
		UPDATE users SET telegram_user_id = NULL WHERE telegram_user_id = ? AND id != ?
	`, chatUserID, u.ID); err != nil {
		return model.User{}, fmt.Errorf("redeem bind token: unbind previous: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE users
		SET telegram_user_id = ?, telegram_bind_token = NULL, telegram_bind_token_expires_at = NULL
		WHERE id = ?
	`, chatUserID, u.ID); err != nil {
		return model.User{}, fmt.Errorf("redeem bind token: bind: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return model.User{}, fmt.Errorf("redeem bind token: commit: %w", err)
	}

	u.ChatUserID = chatUserID
	u.BindToken = ""
	u.BindTokenExpiresAt = nil
	return u, nil
}

// DeleteUser removes a user; their records, applications and votes cascade.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return expectOneRow(result, "delete user")
}

// VoterNames maps chat user ids to usernames for the given voters.
// Unknown voters are omitted from the result.
func (s *Store) VoterNames(ctx context.Context, votes []model.Vote) (map[string]string, error) {
	names := make(map[string]string, len(votes))
	for _, v := range votes {
		if _, ok := names[v.VoterID]; ok {
			continue
		}
		var username string
		err := s.db.QueryRowContext(ctx, `SELECT username FROM users WHERE telegram_user_id = ?`, v.VoterID).Scan(&username)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("voter names: %w", err)
		}
		names[v.VoterID] = username
	}
	return names, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(rs rowScanner) (model.User, error) {
	var (
		u         model.User
		role      string
		chatID    sql.NullString
		token     sql.NullString
		expiresAt sql.NullInt64
		createdAt int64
	)
	err := rs.Scan(&u.ID, &u.Username, &u.Email, &role, &chatID, &token, &expiresAt, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, fmt.Errorf("scan user: %w", err)
	}
	u.Role = model.Role(role)
	u.ChatUserID = chatID.String
	u.BindToken = token.String
	u.BindTokenExpiresAt = timePtr(expiresAt)
	u.CreatedAt = fromMillis(createdAt)
	return u, nil
}

func scanUserRow(row *sql.Row) (model.User, error) {
	return scanUser(row)
}

// expectOneRow maps a zero-row write to ErrNotFound.
func expectOneRow(result sql.Result, op string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}
