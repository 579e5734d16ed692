// credlock - a local credential manager with escalating lockout.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/jeranaias/credlock/internal/audit"
	"github.com/jeranaias/credlock/internal/auth"
	"github.com/jeranaias/credlock/internal/cli"
	"github.com/jeranaias/credlock/internal/config"
	"github.com/jeranaias/credlock/internal/store"
)

// defaultAdminPassword is the bootstrap password for the seeded admin
// account. Operators should change it after first login.
const defaultAdminPassword = "Password123"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	if cfg.Bootstrap.SeedDefaultAdmin {
		if err := seedDefaultAdmin(st, cfg.Bootstrap.DefaultAdminUser); err != nil {
			return err
		}
	}

	recorder := audit.NewRecorder(st.DB())
	svc := auth.NewService(st, recorder)

	c := cli.New(svc)
	defer c.Close()
	return c.Run()
}

// seedDefaultAdmin creates the bootstrap admin on first run so the admin
// console is reachable out of the box.
func seedDefaultAdmin(st *store.Store, username string) error {
	if _, err := st.FindAdmin(username); err == nil {
		return nil
	} else if !errors.Is(err, store.ErrAdminNotFound) {
		return err
	}

	hash, err := auth.HashPassword(defaultAdminPassword)
	if err != nil {
		return err
	}
	if err := st.CreateAdmin(username, hash); err != nil {
		return err
	}

	fmt.Printf("created default admin account %q (change its password)\n", username)
	return nil
}
