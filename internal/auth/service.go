// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package auth implements the credential flows: registration, login with
// escalating lockout, and the admin surface. Every terminal outcome of a
// flow records exactly one primary audit event; a lockout transition adds
// a second event for the lock itself.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/jeranaias/credlock/internal/audit"
	"github.com/jeranaias/credlock/internal/policy"
	"github.com/jeranaias/credlock/internal/store"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrInvalidCredentials is returned for a wrong password, an unknown
	// username, or an unknown admin. The caller cannot tell which.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrWeakPassword wraps the policy violation detail on registration.
	ErrWeakPassword = errors.New("password does not meet requirements")

	// ErrAuditFailure marks an error where the audit trail could not be
	// written. The operation's outcome is unknown to the trail, so callers
	// should treat this as fatal rather than retry.
	ErrAuditFailure = errors.New("audit trail write failed")
)

// LockedError is returned when a login attempt arrives inside an active
// lockout window. No credential check happened.
type LockedError struct {
	Remaining int64 // whole seconds until the window opens
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account is locked, try again in %d seconds", e.Remaining)
}

// LockoutImposedError is returned when this very attempt crossed the
// failure threshold and imposed a new lockout.
type LockoutImposedError struct {
	Duration time.Duration
}

func (e *LockoutImposedError) Error() string {
	return fmt.Sprintf("too many failed attempts, account locked for %d seconds", int64(e.Duration/time.Second))
}

// =============================================================================
// SERVICE
// =============================================================================

// Service owns the credential flows. It serializes login attempts so the
// read-modify-write of lockout state never interleaves.
type Service struct {
	store    *store.Store
	recorder *audit.Recorder
	now      func() time.Time

	mu sync.Mutex // guards the login read-modify-write cycle

	sessionsMu sync.Mutex
	sessions   map[string]*AdminSession
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source. Tests use this to drive lockout
// windows without sleeping.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a credential service over the given store and audit
// recorder.
func NewService(st *store.Store, recorder *audit.Recorder, opts ...Option) *Service {
	s := &Service{
		store:    st,
		recorder: recorder,
		now:      time.Now,
		sessions: make(map[string]*AdminSession),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// record writes one audit event, wrapping any failure in ErrAuditFailure
// so callers can distinguish a broken trail from a normal flow outcome.
func (s *Service) record(username string, kind audit.Kind, metadata map[string]string) error {
	if err := s.recorder.Record(username, kind, metadata, s.now()); err != nil {
		return fmt.Errorf("%w: %v", ErrAuditFailure, err)
	}
	return nil
}

// storageFail audits a storage failure before surfacing it. Storage
// errors are terminal outcomes too, so the trail write is still
// attempted; if the trail itself is broken that takes precedence.
func (s *Service) storageFail(username string, kind audit.Kind, metadata map[string]string, err error) error {
	if aerr := s.record(username, kind, metadata); aerr != nil {
		return aerr
	}
	return err
}

// =============================================================================
// REGISTRATION
// =============================================================================

// Register creates a new user account. The password must satisfy the
// strength policy and the username must be free, ignoring letter case.
func (s *Service) Register(username, password string) error {
	if err := policy.CheckPassword(password); err != nil {
		if aerr := s.record(username, audit.RegistrationFailedWeakPassword, nil); aerr != nil {
			return aerr
		}
		return fmt.Errorf("%w: %v", ErrWeakPassword, err)
	}

	hash, err := HashPassword(password)
	if err != nil {
		if aerr := s.record(username, audit.RegistrationFailedStorageError, nil); aerr != nil {
			return aerr
		}
		return err
	}

	if err := s.store.CreateUser(username, hash); err != nil {
		if errors.Is(err, store.ErrDuplicateUsername) {
			if aerr := s.record(username, audit.RegistrationFailedDuplicate, nil); aerr != nil {
				return aerr
			}
			return err
		}
		if aerr := s.record(username, audit.RegistrationFailedStorageError, nil); aerr != nil {
			return aerr
		}
		return err
	}

	return s.record(username, audit.RegistrationSuccess, nil)
}

// =============================================================================
// LOGIN
// =============================================================================

// Login verifies a user's credentials, enforcing the lockout machinery in
// a fixed order: escalation decay first, then the active-window check, and
// only then the credential check. Lookup is case-sensitive.
func (s *Service) Login(username, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.store.FindUser(username)
	if errors.Is(err, store.ErrUserNotFound) {
		if aerr := s.record(username, audit.LoginFailedNoUser, nil); aerr != nil {
			return aerr
		}
		return ErrInvalidCredentials
	}
	if err != nil {
		return s.storageFail(username, audit.LoginFailedStorageError, nil, err)
	}

	now := s.now()
	state := policy.LockoutState{
		FailedAttempts: user.FailedAttempts,
		LockoutUntil:   user.LockoutUntil,
		LockoutCount:   user.LockoutCount,
	}

	// Step 1: decay the escalation counter if the last lockout is stale.
	// The reset persists even if this attempt goes on to fail.
	if decayed, persist := policy.Decay(state, now); persist {
		state = decayed
		if err := s.store.ResetLockoutCount(username); err != nil {
			return s.storageFail(username, audit.LoginFailedStorageError, nil, err)
		}
	}

	// Step 2: reject without a credential check while the window is active.
	if remaining, locked := policy.Remaining(state, now); locked {
		if aerr := s.record(username, audit.LoginBlockedLocked, map[string]string{
			"remaining_secs": strconv.FormatInt(remaining, 10),
		}); aerr != nil {
			return aerr
		}
		return &LockedError{Remaining: remaining}
	}

	// Step 3: credential check.
	if CheckPassword(user.PasswordHash, password) {
		state = policy.ApplySuccess(state)
		if err := s.store.UpdateLockoutState(username, state.FailedAttempts, state.LockoutUntil, state.LockoutCount); err != nil {
			return s.storageFail(username, audit.LoginFailedStorageError, nil, err)
		}
		return s.record(username, audit.LoginSuccess, nil)
	}

	res := policy.ApplyFailure(state, now)
	if err := s.store.UpdateLockoutState(username, res.State.FailedAttempts, res.State.LockoutUntil, res.State.LockoutCount); err != nil {
		return s.storageFail(username, audit.LoginFailedStorageError, nil, err)
	}

	if aerr := s.record(username, audit.LoginFailed, nil); aerr != nil {
		return aerr
	}
	if res.LockedOut {
		if aerr := s.record(username, audit.AccountLocked, map[string]string{
			"duration_secs": strconv.FormatInt(int64(res.Duration/time.Second), 10),
			"lockout_count": strconv.Itoa(res.State.LockoutCount),
		}); aerr != nil {
			return aerr
		}
		return &LockoutImposedError{Duration: res.Duration}
	}

	return ErrInvalidCredentials
}
