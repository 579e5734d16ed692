// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package policy implements the password strength rules and the account
// lockout state machine. Everything here is pure computation: no I/O, no
// storage, no clock of its own.
package policy

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MinPasswordLength is the minimum accepted password length.
const MinPasswordLength = 8

// SpecialChars is the fixed set of accepted special characters.
const SpecialChars = "!@#$%^&*()_-"

// Acceptable reports whether a candidate password satisfies the policy:
// at least MinPasswordLength characters, with at least one uppercase ASCII
// letter, one lowercase ASCII letter, one digit and one character from
// SpecialChars. Only ASCII classes count; no locale handling.
func Acceptable(password string) bool {
	return CheckPassword(password) == nil
}

// CheckPassword validates a candidate password and reports which
// requirements are missing.
func CheckPassword(password string) error {
	// Length counts characters, not bytes, so multibyte runes count once.
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}

	hasUpper := false
	hasLower := false
	hasDigit := false
	hasSpecial := false

	for _, c := range password {
		switch {
		case c >= 'A' && c <= 'Z':
			hasUpper = true
		case c >= 'a' && c <= 'z':
			hasLower = true
		case c >= '0' && c <= '9':
			hasDigit = true
		case strings.ContainsRune(SpecialChars, c):
			hasSpecial = true
		}
	}

	var missing []string
	if !hasUpper {
		missing = append(missing, "uppercase letter (A-Z)")
	}
	if !hasLower {
		missing = append(missing, "lowercase letter (a-z)")
	}
	if !hasDigit {
		missing = append(missing, "digit (0-9)")
	}
	if !hasSpecial {
		missing = append(missing, "special character ("+SpecialChars+")")
	}

	if len(missing) > 0 {
		return fmt.Errorf("password must contain at least one: %s", strings.Join(missing, ", "))
	}

	return nil
}
