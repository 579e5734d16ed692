// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package policy

import "time"

// =============================================================================
// LOCKOUT CONSTANTS
// =============================================================================

const (
	// MaxAttempts is the number of consecutive failed logins before a
	// lockout is imposed.
	MaxAttempts = 3

	// BaseLockout is the duration of the first lockout in an escalation
	// cycle.
	BaseLockout = 5 * time.Second

	// MaxLockout caps the escalating lockout duration.
	MaxLockout = 24 * time.Hour

	// ResetPeriod is how long after a lockout expires before the
	// escalation counter decays back to zero.
	ResetPeriod = 24 * time.Hour
)

// =============================================================================
// LOCKOUT STATE
// =============================================================================

// LockoutState is the per-account bookkeeping the engine consumes and
// produces. LockoutUntil is an absolute unix-seconds timestamp; zero means
// the account is not locked. LockoutCount is the number of lockout cycles
// since the last decay and drives the exponential backoff.
type LockoutState struct {
	FailedAttempts int
	LockoutUntil   int64
	LockoutCount   int
}

// FailureResult describes the transition after a failed credential check.
// Duration is only meaningful when LockedOut is true.
type FailureResult struct {
	State     LockoutState
	LockedOut bool
	Duration  time.Duration
}

// =============================================================================
// DECISION PROCEDURE
// =============================================================================

// The steps below are evaluated in order on every login attempt:
// Decay first, then Remaining, and only if the window is open does the
// caller check credentials and apply ApplySuccess or ApplyFailure.

// Decay resets the escalation counter once more than ResetPeriod has
// elapsed since the last lockout. The second return value tells the caller
// to persist the reset immediately, independent of the attempt's outcome.
// Decay is evaluated lazily, only when the account is next touched.
func Decay(state LockoutState, now time.Time) (LockoutState, bool) {
	if state.LockoutUntil != 0 && now.Unix()-state.LockoutUntil > int64(ResetPeriod/time.Second) {
		state.LockoutCount = 0
		return state, true
	}
	return state, false
}

// Remaining reports whether the account is inside an active lockout window
// and, if so, how many whole seconds remain until it opens (rounded down).
// While the window is active no credential check happens and no counter is
// touched.
func Remaining(state LockoutState, now time.Time) (int64, bool) {
	if state.LockoutUntil != 0 && now.Unix() < state.LockoutUntil {
		return state.LockoutUntil - now.Unix(), true
	}
	return 0, false
}

// ApplySuccess returns the state after a successful credential check:
// every counter resets to zero.
func ApplySuccess(LockoutState) LockoutState {
	return LockoutState{}
}

// ApplyFailure increments the failed-attempt counter and, once it reaches
// MaxAttempts, imposes an escalating lockout: the attempt counter resets,
// the lockout counter bumps, and the window lasts LockoutDuration for the
// new cycle count.
func ApplyFailure(state LockoutState, now time.Time) FailureResult {
	state.FailedAttempts++
	if state.FailedAttempts < MaxAttempts {
		return FailureResult{State: state}
	}

	state.LockoutCount++
	duration := LockoutDuration(state.LockoutCount)
	state.LockoutUntil = now.Unix() + int64(duration/time.Second)
	state.FailedAttempts = 0

	return FailureResult{State: state, LockedOut: true, Duration: duration}
}

// LockoutDuration returns the window for the nth consecutive lockout:
// BaseLockout doubled per cycle (5s, 10s, 20s, ...), capped at MaxLockout.
// Doubling iteratively avoids shift overflow for absurd cycle counts.
func LockoutDuration(lockoutCount int) time.Duration {
	if lockoutCount < 1 {
		lockoutCount = 1
	}

	d := BaseLockout
	for i := 1; i < lockoutCount; i++ {
		d *= 2
		if d >= MaxLockout {
			return MaxLockout
		}
	}
	if d > MaxLockout {
		d = MaxLockout
	}
	return d
}
