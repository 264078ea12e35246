package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// kv keys.
const (
	keySessionID     = "session_id"
	keyLastMigration = "last_migration"
)

// ErrNoAccount is returned when no user is logged in.
var ErrNoAccount = errors.New("no account record")

// Account is the persisted login record. It is what the identity
// resolver reads to decide whether requests carry a user id.
type Account struct {
	UserID     int64
	Username   string
	FirstName  string
	LastName   string
	Role       string
	LoggedInAt time.Time
}

// SessionID returns the persisted session identifier, or "" when none
// has been generated yet.
func (s *Store) SessionID(ctx context.Context) (string, error) {
	return s.getKV(ctx, keySessionID)
}

// SetSessionID persists the session identifier. Called exactly once,
// the first time the resolver needs an id.
func (s *Store) SetSessionID(ctx context.Context, id string) error {
	return s.setKV(ctx, keySessionID, id)
}

// LastMigration returns the "sessionID:userID" pair of the most
// recent successful cart migration, or "" if none has happened.
func (s *Store) LastMigration(ctx context.Context) (string, error) {
	return s.getKV(ctx, keyLastMigration)
}

// SetLastMigration records a successful cart migration.
func (s *Store) SetLastMigration(ctx context.Context, pair string) error {
	return s.setKV(ctx, keyLastMigration, pair)
}

// Account returns the current login record, or ErrNoAccount.
func (s *Store) Account(ctx context.Context) (*Account, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, username, first_name, last_name, role, logged_in_at
		FROM account WHERE id = 1
	`)

	var a Account
	var loggedInAt string
	err := row.Scan(&a.UserID, &a.Username, &a.FirstName, &a.LastName, &a.Role, &loggedInAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoAccount
	}
	if err != nil {
		return nil, fmt.Errorf("read account: %w", err)
	}

	a.LoggedInAt, err = time.Parse(time.RFC3339, loggedInAt)
	if err != nil {
		return nil, fmt.Errorf("parse logged_in_at: %w", err)
	}
	return &a, nil
}

// SaveAccount replaces the login record.
func (s *Store) SaveAccount(ctx context.Context, a Account) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO account (id, user_id, username, first_name, last_name, role, logged_in_at)
		VALUES (1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			username = excluded.username,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			role = excluded.role,
			logged_in_at = excluded.logged_in_at
	`, a.UserID, a.Username, a.FirstName, a.LastName, a.Role, a.LoggedInAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("save account: %w", err)
	}
	return nil
}

// ClearAccount removes the login record (logout).
func (s *Store) ClearAccount(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM account WHERE id = 1`); err != nil {
		return fmt.Errorf("clear account: %w", err)
	}
	return nil
}

func (s *Store) getKV(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read kv %q: %w", key, err)
	}
	return value, nil
}

func (s *Store) setKV(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("write kv %q: %w", key, err)
	}
	return nil
}
