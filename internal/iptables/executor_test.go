package iptables

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type execCall struct {
	command string
	args    []string
	input   string
}

type recordingExecutor struct {
	calls      []execCall
	saveOutput string
	outputErr  error
	runErr     error
}

func (r *recordingExecutor) Output(_ context.Context, command string, args ...string) ([]byte, error) {
	r.calls = append(r.calls, execCall{command: command, args: append([]string(nil), args...)})
	if r.outputErr != nil {
		return nil, r.outputErr
	}
	return []byte(r.saveOutput), nil
}

func (r *recordingExecutor) RunInput(_ context.Context, input string, command string, args ...string) error {
	r.calls = append(r.calls, execCall{command: command, args: append([]string(nil), args...), input: input})
	return r.runErr
}

func TestNewSystemRejectsUnknownIPVersion(t *testing.T) {
	t.Parallel()

	if _, err := NewSystem(&recordingExecutor{}, 5, "", discardLogger()); err == nil {
		t.Fatal("expected IP version 5 to be rejected")
	}
}

func TestSystemCapture(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		ipVersion   int
		elevation   string
		wantCommand string
		wantArgs    []string
	}{
		{name: "ipv4", ipVersion: 4, wantCommand: "iptables-save", wantArgs: nil},
		{name: "ipv6", ipVersion: 6, wantCommand: "ip6tables-save", wantArgs: nil},
		{name: "elevated", ipVersion: 4, elevation: "sudo", wantCommand: "sudo", wantArgs: []string{"iptables-save"}},
		{name: "elevated with args", ipVersion: 4, elevation: "doas -n", wantCommand: "doas", wantArgs: []string{"-n", "iptables-save"}},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			exec := &recordingExecutor{saveOutput: emptyFilterSave}
			system, err := NewSystem(exec, tc.ipVersion, tc.elevation, discardLogger())
			if err != nil {
				t.Fatalf("NewSystem returned error: %v", err)
			}

			rs, err := system.Capture(context.Background())
			if err != nil {
				t.Fatalf("Capture returned error: %v", err)
			}
			if rs.Table("filter") == nil {
				t.Fatal("expected captured ruleset to hold the filter table")
			}

			if len(exec.calls) != 1 {
				t.Fatalf("expected 1 command, got %d", len(exec.calls))
			}
			call := exec.calls[0]
			if call.command != tc.wantCommand {
				t.Fatalf("command = %q, want %q", call.command, tc.wantCommand)
			}
			if diff := cmp.Diff(tc.wantArgs, call.args); diff != "" {
				t.Fatalf("args mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSystemCaptureFailures(t *testing.T) {
	t.Parallel()

	t.Run("command failure surfaces", func(t *testing.T) {
		t.Parallel()
		cmdErr := &CommandError{Command: "iptables-save", Err: errors.New("exit status 3")}
		exec := &recordingExecutor{outputErr: cmdErr}
		system, err := NewSystem(exec, 4, "", discardLogger())
		if err != nil {
			t.Fatalf("NewSystem returned error: %v", err)
		}

		_, err = system.Capture(context.Background())
		var got *CommandError
		if !errors.As(err, &got) {
			t.Fatalf("expected CommandError, got %T: %v", err, err)
		}
	})

	t.Run("malformed output surfaces as parse error", func(t *testing.T) {
		t.Parallel()
		exec := &recordingExecutor{saveOutput: "*filter\n"}
		system, err := NewSystem(exec, 4, "", discardLogger())
		if err != nil {
			t.Fatalf("NewSystem returned error: %v", err)
		}

		_, err = system.Capture(context.Background())
		var parseErr *ParseError
		if !errors.As(err, &parseErr) {
			t.Fatalf("expected ParseError, got %T: %v", err, err)
		}
	})
}

func TestSystemRestore(t *testing.T) {
	t.Parallel()

	rs, err := ParseString(emptyFilterSave, discardLogger())
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	tests := []struct {
		name        string
		ipVersion   int
		elevation   string
		counters    bool
		wantCommand string
		wantArgs    []string
	}{
		{name: "ipv4", ipVersion: 4, wantCommand: "iptables-restore", wantArgs: nil},
		{name: "ipv6 with counters", ipVersion: 6, counters: true, wantCommand: "ip6tables-restore", wantArgs: []string{"--counters"}},
		{name: "elevated with counters", ipVersion: 4, elevation: "sudo", counters: true, wantCommand: "sudo", wantArgs: []string{"iptables-restore", "--counters"}},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			exec := &recordingExecutor{}
			system, err := NewSystem(exec, tc.ipVersion, tc.elevation, discardLogger())
			if err != nil {
				t.Fatalf("NewSystem returned error: %v", err)
			}

			if err := system.Restore(context.Background(), rs, tc.counters); err != nil {
				t.Fatalf("Restore returned error: %v", err)
			}

			if len(exec.calls) != 1 {
				t.Fatalf("expected 1 command, got %d", len(exec.calls))
			}
			call := exec.calls[0]
			if call.command != tc.wantCommand {
				t.Fatalf("command = %q, want %q", call.command, tc.wantCommand)
			}
			if diff := cmp.Diff(tc.wantArgs, call.args); diff != "" {
				t.Fatalf("args mismatch (-want +got):\n%s", diff)
			}
			if call.input != rs.Render() {
				t.Fatalf("restore input differs from rendered ruleset:\n%s", call.input)
			}
		})
	}
}

func TestCommandErrorFormatting(t *testing.T) {
	t.Parallel()

	underlying := errors.New("exit status 2")
	err := &CommandError{
		Command: "iptables-restore",
		Args:    []string{"--counters"},
		Output:  "iptables-restore: line 3 failed\n",
		Err:     underlying,
	}

	message := err.Error()
	for _, want := range []string{"iptables-restore", "--counters", "exit status 2", "line 3 failed"} {
		if !strings.Contains(message, want) {
			t.Fatalf("error message %q missing %q", message, want)
		}
	}

	if !errors.Is(err, underlying) {
		t.Fatal("expected Unwrap to expose the underlying error")
	}
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	t.Run("missing file yields empty ruleset", func(t *testing.T) {
		t.Parallel()
		rs, err := LoadFile(filepath.Join(t.TempDir(), "absent.rules"), discardLogger())
		if err != nil {
			t.Fatalf("LoadFile returned error: %v", err)
		}
		if len(rs.Tables) != 0 {
			t.Fatalf("expected empty ruleset, got %d tables", len(rs.Tables))
		}
	})

	t.Run("round trips through SaveFile", func(t *testing.T) {
		t.Parallel()
		rs, err := ParseString(fullSave, discardLogger())
		if err != nil {
			t.Fatalf("Parse returned error: %v", err)
		}

		path := filepath.Join(t.TempDir(), "rules.v4")
		if err := SaveFile(path, rs); err != nil {
			t.Fatalf("SaveFile returned error: %v", err)
		}

		loaded, err := LoadFile(path, discardLogger())
		if err != nil {
			t.Fatalf("LoadFile returned error: %v", err)
		}
		if diff := cmp.Diff(rs, loaded, rulesetComparison()...); diff != "" {
			t.Fatalf("file round trip mismatch (-saved +loaded):\n%s", diff)
		}
	})

	t.Run("parse failure names the file", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "broken.rules")
		if err := os.WriteFile(path, []byte("*filter\n*filter\n"), 0o644); err != nil {
			t.Fatalf("WriteFile returned error: %v", err)
		}

		_, err := LoadFile(path, discardLogger())
		if err == nil {
			t.Fatal("expected LoadFile to fail")
		}
		if !strings.Contains(err.Error(), "broken.rules") {
			t.Fatalf("error %q does not name the file", err)
		}
	})
}
