// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/jeranaias/credlock/internal/audit"
	"github.com/jeranaias/credlock/internal/store"
)

// AdminSessionDuration is how long an admin session handle stays valid.
const AdminSessionDuration = 15 * time.Minute

// ErrSessionInvalid is returned when an admin operation is presented with
// an unknown, logged-out, or expired session handle.
var ErrSessionInvalid = errors.New("admin session is invalid or expired")

// AdminSession is the handle returned by a successful admin login. Admin
// operations require a live session; there is no ambient admin state.
type AdminSession struct {
	Token     string
	Username  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// generateSessionToken builds an unguessable session token from the
// system's CSPRNG.
func generateSessionToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "admin_" + hex.EncodeToString(b), nil
}

// =============================================================================
// ADMIN LOGIN
// =============================================================================

// LoginAdmin verifies admin credentials and issues a session handle.
// Admins have no lockout machinery; lookup is case-sensitive.
func (s *Service) LoginAdmin(username, password string) (*AdminSession, error) {
	admin, err := s.store.FindAdmin(username)
	if errors.Is(err, store.ErrAdminNotFound) {
		if aerr := s.record(username, audit.AdminLoginFailedNoUser, nil); aerr != nil {
			return nil, aerr
		}
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, s.storageFail(username, audit.AdminLoginFailedStorageError, nil, err)
	}

	if !CheckPassword(admin.PasswordHash, password) {
		if aerr := s.record(username, audit.AdminLoginFailed, nil); aerr != nil {
			return nil, aerr
		}
		return nil, ErrInvalidCredentials
	}

	token, err := generateSessionToken()
	if err != nil {
		return nil, err
	}

	now := s.now()
	sess := &AdminSession{
		Token:     token,
		Username:  admin.Username,
		IssuedAt:  now,
		ExpiresAt: now.Add(AdminSessionDuration),
	}

	s.sessionsMu.Lock()
	s.sessions[token] = sess
	s.sessionsMu.Unlock()

	if aerr := s.record(username, audit.AdminLoginSuccess, nil); aerr != nil {
		return nil, aerr
	}
	return sess, nil
}

// checkSession validates a session handle, evicting it if expired.
func (s *Service) checkSession(sess *AdminSession) error {
	if sess == nil {
		return ErrSessionInvalid
	}

	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()

	stored, ok := s.sessions[sess.Token]
	if !ok {
		return ErrSessionInvalid
	}
	if s.now().After(stored.ExpiresAt) {
		delete(s.sessions, sess.Token)
		return ErrSessionInvalid
	}
	return nil
}

// Logout invalidates a session handle. Logging out twice is harmless.
func (s *Service) Logout(sess *AdminSession) {
	if sess == nil {
		return
	}
	s.sessionsMu.Lock()
	delete(s.sessions, sess.Token)
	s.sessionsMu.Unlock()
}

// =============================================================================
// ADMIN OPERATIONS
// =============================================================================

// RemoveUser deletes the user matching target, ignoring letter case.
func (s *Service) RemoveUser(sess *AdminSession, target string) error {
	if err := s.checkSession(sess); err != nil {
		return err
	}

	err := s.store.DeleteUserFold(target)
	if errors.Is(err, store.ErrUserNotFound) {
		if aerr := s.record(sess.Username, audit.RemoveUserFailed, map[string]string{"target": target}); aerr != nil {
			return aerr
		}
		return err
	}
	if err != nil {
		return s.storageFail(sess.Username, audit.RemoveUserFailedStorageError, map[string]string{"target": target}, err)
	}

	return s.record(sess.Username, audit.RemoveUserSuccess, map[string]string{"target": target})
}

// ListUsers returns every username in ascending order.
func (s *Service) ListUsers(sess *AdminSession) ([]string, error) {
	if err := s.checkSession(sess); err != nil {
		return nil, err
	}

	names, err := s.store.ListUsernames()
	if err != nil {
		return nil, s.storageFail(sess.Username, audit.ListUsersFailedStorageError, nil, err)
	}

	if aerr := s.record(sess.Username, audit.UsersListed, nil); aerr != nil {
		return nil, aerr
	}
	return names, nil
}

// ShowLogs returns the audit trail, newest first. Reading the trail does
// not itself generate an event.
func (s *Service) ShowLogs(sess *AdminSession) ([]audit.Event, error) {
	if err := s.checkSession(sess); err != nil {
		return nil, err
	}
	return s.recorder.List()
}
