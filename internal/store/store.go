// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store provides the SQLite-backed account store: user and admin
// credential records plus the lockout bookkeeping columns. The handle is
// injected into each component that needs it; there is no process-wide
// singleton.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrDuplicateUsername is returned when a username collides with an
	// existing one, ignoring letter case.
	ErrDuplicateUsername = errors.New("username already exists")

	// ErrUserNotFound is returned when no user record matches.
	ErrUserNotFound = errors.New("user not found")

	// ErrAdminNotFound is returned when no admin record matches.
	ErrAdminNotFound = errors.New("admin not found")
)

// =============================================================================
// RECORD TYPES
// =============================================================================

// User is a credential record with its lockout bookkeeping.
// LockoutUntil is unix seconds; zero means not locked.
type User struct {
	Username       string
	PasswordHash   string
	FailedAttempts int
	LockoutUntil   int64
	LockoutCount   int
}

// Admin is a privileged credential record. Admins live in their own
// namespace: usernames are not unique across the two tables, and admins
// carry no lockout state.
type Admin struct {
	Username     string
	PasswordHash string
}

// =============================================================================
// STORE
// =============================================================================

// Store wraps the SQLite handle shared by the account tables and the
// audit trail.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT UNIQUE NOT NULL,
	password_hash TEXT NOT NULL,
	failed_attempts INTEGER NOT NULL DEFAULT 0,
	lockout_until INTEGER NOT NULL DEFAULT 0,
	lockout_count INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS admins (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT UNIQUE NOT NULL,
	password_hash TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT,
	kind TEXT NOT NULL,
	metadata TEXT,
	timestamp INTEGER NOT NULL
);
`

// Open opens the SQLite database at path, creating the file and schema if
// needed.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &Store{db: db}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// DB exposes the underlying handle so the audit recorder can share it.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// =============================================================================
// USER OPERATIONS
// =============================================================================

const userColumns = `username, password_hash, failed_attempts, lockout_until, lockout_count`

// FindUser looks a user up by exact username. The login path is
// deliberately case-sensitive while registration and removal are not;
// the asymmetry is inherited behavior and preserved on purpose.
func (s *Store) FindUser(username string) (*User, error) {
	row := s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	return scanUser(row)
}

// FindUserFold looks a user up ignoring letter case.
func (s *Store) FindUserFold(username string) (*User, error) {
	row := s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE LOWER(username) = LOWER(?)`, username)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*User, error) {
	var u User
	err := row.Scan(&u.Username, &u.PasswordHash, &u.FailedAttempts, &u.LockoutUntil, &u.LockoutCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &u, nil
}

// CreateUser inserts a new user with zeroed lockout state. A collision
// with an existing username, ignoring case, returns ErrDuplicateUsername.
// The fold check and the insert run in one transaction so concurrent
// registrations of case variants cannot both land.
func (s *Store) CreateUser(username, passwordHash string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var existing string
	err = tx.QueryRow(`SELECT username FROM users WHERE LOWER(username) = LOWER(?)`, username).Scan(&existing)
	if err == nil {
		return ErrDuplicateUsername
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to query user: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO users (username, password_hash, failed_attempts, lockout_until, lockout_count)
		 VALUES (?, ?, 0, 0, 0)`,
		username, passwordHash,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return ErrDuplicateUsername
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// UpdateLockoutState persists one user's lockout bookkeeping as a single
// atomic statement, so concurrent attempts against the same account cannot
// interleave a partial update.
func (s *Store) UpdateLockoutState(username string, failedAttempts int, lockoutUntil int64, lockoutCount int) error {
	res, err := s.db.Exec(
		`UPDATE users SET failed_attempts = ?, lockout_until = ?, lockout_count = ? WHERE username = ?`,
		failedAttempts, lockoutUntil, lockoutCount, username,
	)
	if err != nil {
		return fmt.Errorf("failed to update lockout state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update lockout state: %w", err)
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ResetLockoutCount zeroes only the escalation counter. Used when the
// decay step fires; persisted independently of the attempt's outcome.
func (s *Store) ResetLockoutCount(username string) error {
	if _, err := s.db.Exec(`UPDATE users SET lockout_count = 0 WHERE username = ?`, username); err != nil {
		return fmt.Errorf("failed to reset lockout count: %w", err)
	}
	return nil
}

// DeleteUserFold removes the user matching username ignoring case.
// Returns ErrUserNotFound when nothing matched.
func (s *Store) DeleteUserFold(username string) error {
	res, err := s.db.Exec(`DELETE FROM users WHERE LOWER(username) = LOWER(?)`, username)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ListUsernames returns every username in ascending lexicographic order.
func (s *Store) ListUsernames() ([]string, error) {
	rows, err := s.db.Query(`SELECT username FROM users ORDER BY username ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to list users: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return names, nil
}

// =============================================================================
// ADMIN OPERATIONS
// =============================================================================

// FindAdmin looks an admin up by exact username. Admins are never matched
// case-insensitively.
func (s *Store) FindAdmin(username string) (*Admin, error) {
	var a Admin
	err := s.db.QueryRow(
		`SELECT username, password_hash FROM admins WHERE username = ?`, username,
	).Scan(&a.Username, &a.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAdminNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query admin: %w", err)
	}
	return &a, nil
}

// CreateAdmin inserts an admin record. Only bootstrap code calls this; the
// core never creates admins.
func (s *Store) CreateAdmin(username, passwordHash string) error {
	_, err := s.db.Exec(
		`INSERT INTO admins (username, password_hash) VALUES (?, ?)`,
		username, passwordHash,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return ErrDuplicateUsername
		}
		return fmt.Errorf("failed to insert admin: %w", err)
	}
	return nil
}
