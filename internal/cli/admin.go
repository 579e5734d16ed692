// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/peterh/liner"

	"github.com/jeranaias/credlock/internal/auth"
)

// handleAdminLogin authenticates an admin and, on success, drops into the
// admin console until logout.
func (c *CLI) handleAdminLogin() error {
	username, err := c.promptUsername()
	if err != nil {
		return err
	}
	password, err := promptPassword("password: ")
	if err != nil {
		return err
	}

	sess, err := c.svc.LoginAdmin(username, password)
	if err != nil {
		if errors.Is(err, auth.ErrAuditFailure) {
			return err
		}
		fmt.Println(errorStyle.Render(err.Error()))
		return nil
	}

	fmt.Println(successStyle.Render("admin session started"))
	return c.adminConsole(sess)
}

// adminConsole runs the admin command loop against a live session handle.
func (c *CLI) adminConsole(sess *auth.AdminSession) error {
	defer c.svc.Logout(sess)

	for {
		fmt.Println(infoStyle.Render("  showlogs | listusers | removeuser <name> | logout"))
		input, err := c.line.Prompt(promptStyle.Render("admin> "))
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Println()
				return nil
			}
			return fmt.Errorf("failed to read input: %w", err)
		}

		fields := strings.Fields(strings.TrimSpace(input))
		if len(fields) == 0 {
			continue
		}

		var cmdErr error
		switch strings.ToLower(fields[0]) {
		case "showlogs", "logs":
			cmdErr = c.adminShowLogs(sess)
		case "listusers", "users":
			cmdErr = c.adminListUsers(sess)
		case "removeuser", "remove":
			if len(fields) < 2 {
				fmt.Println(warningStyle.Render("usage: removeuser <name>"))
				continue
			}
			cmdErr = c.adminRemoveUser(sess, fields[1])
		case "logout", "exit", "quit":
			fmt.Println(infoStyle.Render("admin session ended"))
			return nil
		default:
			fmt.Println(warningStyle.Render("unknown admin command"))
			continue
		}

		if cmdErr != nil {
			if errors.Is(cmdErr, auth.ErrAuditFailure) {
				return cmdErr
			}
			if errors.Is(cmdErr, auth.ErrSessionInvalid) {
				fmt.Println(warningStyle.Render("session expired, log in again"))
				return nil
			}
			fmt.Println(errorStyle.Render(cmdErr.Error()))
		}
	}
}

func (c *CLI) adminShowLogs(sess *auth.AdminSession) error {
	events, err := c.svc.ShowLogs(sess)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Println(infoStyle.Render("audit trail is empty"))
		return nil
	}
	for _, e := range events {
		fmt.Println(e.String())
	}
	return nil
}

func (c *CLI) adminListUsers(sess *auth.AdminSession) error {
	names, err := c.svc.ListUsers(sess)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Println(infoStyle.Render("no registered users"))
		return nil
	}
	for _, name := range names {
		fmt.Println("  " + name)
	}
	return nil
}

func (c *CLI) adminRemoveUser(sess *auth.AdminSession, target string) error {
	if err := c.svc.RemoveUser(sess, target); err != nil {
		return err
	}
	fmt.Println(successStyle.Render("removed " + target))
	return nil
}
