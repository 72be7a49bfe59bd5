package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"loomline/internal/services"
)

const userColumns = "id, username, full_name, role, active, created_at"

func scanUser(sc scanner) (*User, error) {
	var (
		id         int64
		username   string
		fullName   string
		role       string
		active     int64
		createdRaw string
	)
	if err := sc.Scan(&id, &username, &fullName, &role, &active, &createdRaw); err != nil {
		return nil, err
	}
	return &User{
		ID:        id,
		Username:  username,
		FullName:  fullName,
		Role:      role,
		Active:    active != 0,
		CreatedAt: timeFromRaw(createdRaw),
	}, nil
}

// CreateUser registers a new account.
func (s *Store) CreateUser(ctx context.Context, username, fullName, role string) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, services.Wrap(services.ErrValidation, "store", "create-user", "username is required", nil)
	}
	role = strings.ToUpper(strings.TrimSpace(role))
	if role == "" {
		return nil, services.Wrap(services.ErrValidation, "store", "create-user", "role is required", nil)
	}

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO users (username, full_name, role, active, created_at) VALUES (?, ?, ?, 1, ?)`,
		username,
		strings.TrimSpace(fullName),
		role,
		formatTime(time.Now()),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, services.Wrap(services.ErrAlreadyExists, "store", "create-user", fmt.Sprintf("username %q taken", username), err)
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetUser(ctx, id)
}

// GetUser fetches a user by identifier.
func (s *Store) GetUser(ctx context.Context, id int64) (*User, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "store", "get-user", fmt.Sprintf("user %d", id), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// GetUserByUsername fetches a user by login name.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+userColumns+` FROM users WHERE username = ?`, strings.TrimSpace(username))
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "store", "get-user", fmt.Sprintf("username %q", username), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get user by username: %w", err)
	}
	return user, nil
}

// ListUsers returns all accounts ordered by username.
func (s *Store) ListUsers(ctx context.Context) ([]*User, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT `+userColumns+` FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// UsersByRole returns active accounts holding the given role.
func (s *Store) UsersByRole(ctx context.Context, role string) ([]*User, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT `+userColumns+` FROM users WHERE role = ? AND active = 1 ORDER BY username`,
		strings.ToUpper(strings.TrimSpace(role)),
	)
	if err != nil {
		return nil, fmt.Errorf("users by role: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// SetUserActive toggles the active flag.
func (s *Store) SetUserActive(ctx context.Context, id int64, active bool) error {
	res, err := s.execWithRetry(ctx, `UPDATE users SET active = ? WHERE id = ?`, boolToInt(active), id)
	if err != nil {
		return fmt.Errorf("set user active: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrNotFound, "store", "set-user-active", fmt.Sprintf("user %d", id), nil)
	}
	return nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
