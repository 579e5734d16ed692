// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "credlock.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndFindUser(t *testing.T) {
	s := openTestStore(t)

	if err := s.CreateUser("alice", "hash1"); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	u, err := s.FindUser("alice")
	if err != nil {
		t.Fatalf("FindUser failed: %v", err)
	}
	if u.Username != "alice" || u.PasswordHash != "hash1" {
		t.Errorf("unexpected user record: %+v", u)
	}
	if u.FailedAttempts != 0 || u.LockoutUntil != 0 || u.LockoutCount != 0 {
		t.Errorf("new user should have zeroed lockout state: %+v", u)
	}
}

func TestFindUserIsCaseSensitive(t *testing.T) {
	s := openTestStore(t)

	if err := s.CreateUser("Alice", "hash1"); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	if _, err := s.FindUser("alice"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("FindUser(\"alice\") = %v, want ErrUserNotFound", err)
	}
	if _, err := s.FindUser("Alice"); err != nil {
		t.Errorf("FindUser(\"Alice\") failed: %v", err)
	}
}

func TestFindUserFoldIgnoresCase(t *testing.T) {
	s := openTestStore(t)

	if err := s.CreateUser("Alice", "hash1"); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	u, err := s.FindUserFold("ALICE")
	if err != nil {
		t.Fatalf("FindUserFold failed: %v", err)
	}
	if u.Username != "Alice" {
		t.Errorf("FindUserFold returned %q, want stored casing %q", u.Username, "Alice")
	}
}

func TestCreateUserDuplicateFold(t *testing.T) {
	s := openTestStore(t)

	if err := s.CreateUser("alice", "hash1"); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	if err := s.CreateUser("ALICE", "hash2"); !errors.Is(err, ErrDuplicateUsername) {
		t.Errorf("duplicate CreateUser = %v, want ErrDuplicateUsername", err)
	}
	if err := s.CreateUser("alice", "hash2"); !errors.Is(err, ErrDuplicateUsername) {
		t.Errorf("exact duplicate CreateUser = %v, want ErrDuplicateUsername", err)
	}
}

func TestCreateUserConcurrentCaseVariants(t *testing.T) {
	s := openTestStore(t)

	// Racing registrations of case variants must resolve to exactly one
	// account; the fold check and insert share a transaction.
	names := []string{"Bob", "bob", "BOB", "bOb"}
	errs := make([]error, len(names))

	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			errs[i] = s.CreateUser(name, "hash")
		}(i, name)
	}
	wg.Wait()

	var created, rejected int
	for i, err := range errs {
		switch {
		case err == nil:
			created++
		case errors.Is(err, ErrDuplicateUsername):
			rejected++
		default:
			t.Errorf("CreateUser(%q) = %v", names[i], err)
		}
	}
	if created != 1 {
		t.Errorf("created %d accounts, want exactly 1", created)
	}
	if rejected != len(names)-1 {
		t.Errorf("rejected %d registrations, want %d", rejected, len(names)-1)
	}

	all, err := s.ListUsernames()
	if err != nil {
		t.Fatalf("ListUsernames failed: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("store holds %d users, want 1: %v", len(all), all)
	}
}

func TestUpdateLockoutState(t *testing.T) {
	s := openTestStore(t)

	if err := s.CreateUser("bob", "hash"); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	if err := s.UpdateLockoutState("bob", 2, 1700000000, 3); err != nil {
		t.Fatalf("UpdateLockoutState failed: %v", err)
	}

	u, err := s.FindUser("bob")
	if err != nil {
		t.Fatalf("FindUser failed: %v", err)
	}
	if u.FailedAttempts != 2 || u.LockoutUntil != 1700000000 || u.LockoutCount != 3 {
		t.Errorf("lockout state not persisted: %+v", u)
	}

	if err := s.UpdateLockoutState("nobody", 1, 0, 0); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("UpdateLockoutState for missing user = %v, want ErrUserNotFound", err)
	}
}

func TestResetLockoutCount(t *testing.T) {
	s := openTestStore(t)

	if err := s.CreateUser("bob", "hash"); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if err := s.UpdateLockoutState("bob", 1, 42, 7); err != nil {
		t.Fatalf("UpdateLockoutState failed: %v", err)
	}
	if err := s.ResetLockoutCount("bob"); err != nil {
		t.Fatalf("ResetLockoutCount failed: %v", err)
	}

	u, err := s.FindUser("bob")
	if err != nil {
		t.Fatalf("FindUser failed: %v", err)
	}
	if u.LockoutCount != 0 {
		t.Errorf("lockout count = %d, want 0", u.LockoutCount)
	}
	if u.FailedAttempts != 1 || u.LockoutUntil != 42 {
		t.Errorf("reset touched other fields: %+v", u)
	}
}

func TestDeleteUserFold(t *testing.T) {
	s := openTestStore(t)

	if err := s.CreateUser("Carol", "hash"); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	if err := s.DeleteUserFold("carol"); err != nil {
		t.Fatalf("DeleteUserFold failed: %v", err)
	}
	if _, err := s.FindUserFold("carol"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("user still present after delete: %v", err)
	}
	if err := s.DeleteUserFold("carol"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("second delete = %v, want ErrUserNotFound", err)
	}
}

func TestListUsernamesSorted(t *testing.T) {
	s := openTestStore(t)

	for _, name := range []string{"zed", "alice", "mallory"} {
		if err := s.CreateUser(name, "hash"); err != nil {
			t.Fatalf("CreateUser(%q) failed: %v", name, err)
		}
	}

	names, err := s.ListUsernames()
	if err != nil {
		t.Fatalf("ListUsernames failed: %v", err)
	}
	want := []string{"alice", "mallory", "zed"}
	if len(names) != len(want) {
		t.Fatalf("got %d names, want %d", len(names), len(want))
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestAdminNamespaceSeparate(t *testing.T) {
	s := openTestStore(t)

	if err := s.CreateUser("admin", "userhash"); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	// Same name in the admin table does not collide with the user table.
	if err := s.CreateAdmin("admin", "adminhash"); err != nil {
		t.Fatalf("CreateAdmin failed: %v", err)
	}

	a, err := s.FindAdmin("admin")
	if err != nil {
		t.Fatalf("FindAdmin failed: %v", err)
	}
	if a.PasswordHash != "adminhash" {
		t.Errorf("admin hash = %q, want %q", a.PasswordHash, "adminhash")
	}

	if _, err := s.FindAdmin("nobody"); !errors.Is(err, ErrAdminNotFound) {
		t.Errorf("FindAdmin for missing admin = %v, want ErrAdminNotFound", err)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "credlock.db")

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	if err := s1.CreateUser("alice", "hash"); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	if _, err := s2.FindUser("alice"); err != nil {
		t.Errorf("data lost across reopen: %v", err)
	}
}
