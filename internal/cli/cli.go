// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the interactive terminal front end: the main
// menu, credential prompts, and the admin console. All decision logic
// lives in the auth service; this package only prompts and prints.
package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/peterh/liner"
	"golang.org/x/term"

	"github.com/jeranaias/credlock/internal/auth"
)

// =============================================================================
// STYLES
// =============================================================================

var (
	// Menu banner style
	bannerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#B48EAD")).
			Bold(true)

	// Prompt style
	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#88C0D0")).
			Bold(true)

	// Success style
	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A3BE8C"))

	// Warning style
	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EBCB8B"))

	// Error style
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#BF616A"))

	// Secondary info style
	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#81A1C1"))
)

// =============================================================================
// CLI
// =============================================================================

// CLI drives the interactive menu over a credential service.
type CLI struct {
	svc  *auth.Service
	line *liner.State
}

// New creates the interactive front end.
func New(svc *auth.Service) *CLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	return &CLI{svc: svc, line: line}
}

// Close releases the terminal state.
func (c *CLI) Close() {
	c.line.Close()
}

// Run executes the main menu loop until the user quits. It returns an
// error only when the audit trail can no longer be written; every other
// failure is printed and the loop continues.
func (c *CLI) Run() error {
	fmt.Println(bannerStyle.Render("credlock - credential manager"))
	fmt.Println()

	for {
		fmt.Println(infoStyle.Render("  [1] register    [2] login    [3] admin login    [4] quit"))
		input, err := c.line.Prompt(promptStyle.Render("> "))
		if err != nil {
			// Ctrl+C or EOF ends the session like quit.
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Println()
				return nil
			}
			return fmt.Errorf("failed to read input: %w", err)
		}

		var handlerErr error
		switch strings.ToLower(strings.TrimSpace(input)) {
		case "1", "register":
			handlerErr = c.handleRegister()
		case "2", "login":
			handlerErr = c.handleLogin()
		case "3", "admin", "admin login":
			handlerErr = c.handleAdminLogin()
		case "4", "quit", "exit", "q":
			fmt.Println(infoStyle.Render("goodbye"))
			return nil
		case "":
			continue
		default:
			fmt.Println(warningStyle.Render("unknown option, choose 1-4"))
			continue
		}

		if handlerErr != nil {
			if errors.Is(handlerErr, auth.ErrAuditFailure) {
				return handlerErr
			}
			fmt.Println(errorStyle.Render(handlerErr.Error()))
		}
		fmt.Println()
	}
}

// =============================================================================
// PROMPTS
// =============================================================================

func (c *CLI) promptUsername() (string, error) {
	name, err := c.line.Prompt("username: ")
	if err != nil {
		return "", fmt.Errorf("failed to read username: %w", err)
	}
	return strings.TrimSpace(name), nil
}

// promptPassword reads a password without echoing it to the terminal.
func promptPassword(label string) (string, error) {
	fmt.Print(label)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(password), nil
}

// =============================================================================
// HANDLERS
// =============================================================================

func (c *CLI) handleRegister() error {
	username, err := c.promptUsername()
	if err != nil {
		return err
	}
	if username == "" {
		fmt.Println(warningStyle.Render("username cannot be empty"))
		return nil
	}

	password, err := promptPassword("password: ")
	if err != nil {
		return err
	}

	if err := c.svc.Register(username, password); err != nil {
		if errors.Is(err, auth.ErrAuditFailure) {
			return err
		}
		if errors.Is(err, auth.ErrWeakPassword) {
			fmt.Println(errorStyle.Render(err.Error()))
			return nil
		}
		fmt.Println(errorStyle.Render("registration failed: " + err.Error()))
		return nil
	}

	fmt.Println(successStyle.Render("account created"))
	return nil
}

func (c *CLI) handleLogin() error {
	username, err := c.promptUsername()
	if err != nil {
		return err
	}
	password, err := promptPassword("password: ")
	if err != nil {
		return err
	}

	err = c.svc.Login(username, password)
	if err == nil {
		fmt.Println(successStyle.Render("welcome, " + username))
		return nil
	}
	if errors.Is(err, auth.ErrAuditFailure) {
		return err
	}

	var locked *auth.LockedError
	var imposed *auth.LockoutImposedError
	switch {
	case errors.As(err, &locked):
		fmt.Println(warningStyle.Render(err.Error()))
	case errors.As(err, &imposed):
		fmt.Println(warningStyle.Render(err.Error()))
	case errors.Is(err, auth.ErrInvalidCredentials):
		fmt.Println(errorStyle.Render(err.Error()))
	default:
		fmt.Println(errorStyle.Render("login failed: " + err.Error()))
	}
	return nil
}
