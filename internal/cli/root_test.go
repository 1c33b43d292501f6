package cli

import (
	"strings"
	"testing"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand(nil)
	if cmd == nil {
		t.Fatal("expected root command")
	}
	if cmd.Use != "crmctl" {
		t.Fatalf("expected use crmctl, got %q", cmd.Use)
	}
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand(nil)
	for _, path := range [][]string{{"orphans"}, {"rederive"}, {"outbox", "prune"}} {
		sub, _, err := cmd.Find(path)
		if err != nil {
			t.Fatalf("command %v should exist: %v", path, err)
		}
		if sub.Name() != path[len(path)-1] {
			t.Fatalf("expected %q, found %q", path[len(path)-1], sub.Name())
		}
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand(nil)

	verbose := cmd.PersistentFlags().Lookup("verbose")
	if verbose == nil {
		t.Fatal("missing --verbose flag")
	}
	if verbose.Shorthand != "v" {
		t.Fatalf("expected -v shorthand, got %q", verbose.Shorthand)
	}

	format := cmd.PersistentFlags().Lookup("format")
	if format == nil {
		t.Fatal("missing --format flag")
	}
	if format.DefValue != "text" {
		t.Fatalf("expected text default, got %q", format.DefValue)
	}
}

func TestInvalidFormatRejected(t *testing.T) {
	cmd := NewRootCommand(nil)
	cmd.SetArgs([]string{"orphans", "--format", "yaml"})
	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "invalid format") {
		t.Fatalf("expected invalid format error, got %v", err)
	}
}

func TestMissingEnvironmentIsCommandError(t *testing.T) {
	cmd := NewRootCommand(nil)
	cmd.SetArgs([]string{"orphans"})
	err := cmd.Execute()
	if err == nil {
		t.Fatal("expected error without environment")
	}
	if code := GetExitCode(err); code != ExitCommandError {
		t.Fatalf("expected exit %d, got %d", ExitCommandError, code)
	}
}

func TestRederiveRejectsBadID(t *testing.T) {
	cmd := NewRootCommand(nil)
	cmd.SetArgs([]string{"rederive", "not-a-uuid"})
	err := cmd.Execute()
	if err == nil {
		t.Fatal("expected error for malformed deal id")
	}
	if code := GetExitCode(err); code != ExitCommandError {
		t.Fatalf("expected exit %d, got %d", ExitCommandError, code)
	}
}
