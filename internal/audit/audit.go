// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package audit records security-relevant events to an append-only trail.
// Events are structured: a kind, the acting username, and optional
// key/value metadata. Formatting into text happens only at display time.
package audit

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// =============================================================================
// EVENT KINDS
// =============================================================================

// Kind identifies what happened. The set is closed; callers never invent
// kinds at runtime.
type Kind string

const (
	RegistrationSuccess            Kind = "registration_success"
	RegistrationFailedWeakPassword Kind = "registration_failed_weak_password"
	RegistrationFailedDuplicate    Kind = "registration_failed_duplicate"
	RegistrationFailedStorageError Kind = "registration_failed_storage_error"
	LoginSuccess                   Kind = "login_success"
	LoginFailed                    Kind = "login_failed"
	LoginFailedNoUser              Kind = "login_failed_no_user"
	LoginFailedStorageError        Kind = "login_failed_storage_error"
	LoginBlockedLocked             Kind = "login_blocked_locked"
	AccountLocked                  Kind = "account_locked"
	AdminLoginSuccess              Kind = "admin_login_success"
	AdminLoginFailed               Kind = "admin_login_failed"
	AdminLoginFailedNoUser         Kind = "admin_login_failed_no_user"
	AdminLoginFailedStorageError   Kind = "admin_login_failed_storage_error"
	RemoveUserSuccess              Kind = "remove_user_success"
	RemoveUserFailed               Kind = "remove_user_failed"
	RemoveUserFailedStorageError   Kind = "remove_user_failed_storage_error"
	UsersListed                    Kind = "users_listed"
	ListUsersFailedStorageError    Kind = "list_users_failed_storage_error"
)

// =============================================================================
// EVENT
// =============================================================================

// Event is a single audit trail entry.
type Event struct {
	Username string
	Kind     Kind
	Metadata map[string]string
	Time     time.Time
}

// String renders the event as a single log line. Metadata keys are sorted
// so the output is stable.
func (e Event) String() string {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(e.Time.UTC().Format("2006-01-02 15:04:05"))
	b.WriteString("] ")
	b.WriteString(e.Username)
	b.WriteString(" - ")
	b.WriteString(string(e.Kind))

	if len(e.Metadata) > 0 {
		keys := make([]string, 0, len(e.Metadata))
		for k := range e.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, k+"="+e.Metadata[k])
		}
		b.WriteString(" (")
		b.WriteString(strings.Join(pairs, ", "))
		b.WriteString(")")
	}

	return b.String()
}

// =============================================================================
// RECORDER
// =============================================================================

// Recorder appends events to the audit_events table. It shares the store's
// database handle rather than owning a file of its own, so the trail and
// the accounts live in one place.
type Recorder struct {
	db *sql.DB
}

// NewRecorder creates a recorder writing to db.
func NewRecorder(db *sql.DB) *Recorder {
	return &Recorder{db: db}
}

// Record appends one event. Failure to record is reported, never
// swallowed: callers decide whether a lost audit entry is fatal.
func (r *Recorder) Record(username string, kind Kind, metadata map[string]string, at time.Time) error {
	var metaJSON sql.NullString
	if len(metadata) > 0 {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("failed to encode audit metadata: %w", err)
		}
		metaJSON = sql.NullString{String: string(raw), Valid: true}
	}

	_, err := r.db.Exec(
		`INSERT INTO audit_events (username, kind, metadata, timestamp) VALUES (?, ?, ?, ?)`,
		username, string(kind), metaJSON, at.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to record audit event: %w", err)
	}
	return nil
}

// List returns the full trail, newest first.
func (r *Recorder) List() ([]Event, error) {
	rows, err := r.db.Query(
		`SELECT username, kind, metadata, timestamp FROM audit_events ORDER BY timestamp DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read audit trail: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e        Event
			kind     string
			metaJSON sql.NullString
			ts       int64
		)
		if err := rows.Scan(&e.Username, &kind, &metaJSON, &ts); err != nil {
			return nil, fmt.Errorf("failed to read audit trail: %w", err)
		}
		e.Kind = Kind(kind)
		e.Time = time.Unix(ts, 0).UTC()
		if metaJSON.Valid {
			if err := json.Unmarshal([]byte(metaJSON.String), &e.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode audit metadata: %w", err)
			}
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit trail: %w", err)
	}
	return events, nil
}
