package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"syncademic/internal/domain"
)

func TestExitCode(t *testing.T) {
	t.Parallel()

	if got := ExitCode(nil); got != ExitOK {
		t.Errorf("nil error exits %d", got)
	}
	if got := ExitCode(errors.New("plain failure")); got != ExitTerminal {
		t.Errorf("plain error exits %d", got)
	}
	wrapped := fmt.Errorf("sync: %w", &exitError{code: ExitQuota, msg: "quota"})
	if got := ExitCode(wrapped); got != ExitQuota {
		t.Errorf("wrapped exit error exits %d", got)
	}
}

func TestExitCodeForKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind domain.ErrorKind
		want int
	}{
		{domain.ErrSourceUnreachable, ExitTransient},
		{domain.ErrCancelled, ExitTransient},
		{domain.ErrSourceInvalid, ExitTerminal},
		{domain.ErrIcsMalformed, ExitTerminal},
		{domain.ErrRulesetInvalid, ExitTerminal},
		{domain.ErrTargetRejected, ExitTerminal},
		{domain.ErrQuotaExceeded, ExitQuota},
		{domain.ErrAuthExpired, ExitAuth},
	}
	for _, tc := range tests {
		if got := exitCodeForKind(tc.kind); got != tc.want {
			t.Errorf("%s exits %d, want %d", tc.kind, got, tc.want)
		}
	}
}

func TestRootCommandTree(t *testing.T) {
	t.Parallel()

	root := NewRootCommand()
	for _, name := range []string{"sync", "serve", "profile", "auth"} {
		found := false
		for _, c := range root.Commands() {
			if c.Name() == name {
				found = true
			}
		}
		if !found {
			t.Errorf("command %q missing", name)
		}
	}
}

func TestAuthSetStoresAuthorization(t *testing.T) {
	t.Parallel()

	configPath := filepath.Join(t.TempDir(), "syncademic.yaml")
	var out bytes.Buffer

	root := NewRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{
		"auth", "set",
		"--config", configPath,
		"--user", "user-1",
		"--account-id", "acct-1",
		"--email", "student@example.edu",
		"--access-token", "tok",
	})

	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("auth set: %v", err)
	}
	if !strings.Contains(out.String(), "authorization stored for user user-1") {
		t.Errorf("output = %q", out.String())
	}
}

func TestAuthSetRejectsBadInput(t *testing.T) {
	t.Parallel()

	configPath := filepath.Join(t.TempDir(), "syncademic.yaml")

	tests := []struct {
		name string
		args []string
	}{
		{
			name: "missing email",
			args: []string{"auth", "set", "--config", configPath,
				"--user", "user-1", "--account-id", "acct-1", "--access-token", "tok"},
		},
		{
			name: "bad expiry",
			args: []string{"auth", "set", "--config", configPath,
				"--user", "user-1", "--account-id", "acct-1", "--email", "student@example.edu",
				"--access-token", "tok", "--expires-at", "tomorrow"},
		},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			root := NewRootCommand()
			root.SetOut(&bytes.Buffer{})
			root.SetErr(&bytes.Buffer{})
			root.SetArgs(tc.args)

			err := root.ExecuteContext(context.Background())
			if err == nil {
				t.Fatal("bad input accepted")
			}
			if got := ExitCode(err); got != ExitTerminal {
				t.Errorf("exit code = %d, want %d", got, ExitTerminal)
			}
		})
	}
}
