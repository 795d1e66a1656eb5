package iptables

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

const (
	ipv4SaveBinary    = "iptables-save"
	ipv4RestoreBinary = "iptables-restore"
	ipv6SaveBinary    = "ip6tables-save"
	ipv6RestoreBinary = "ip6tables-restore"
)

// Executor abstracts command execution for the save/restore boundary.
type Executor interface {
	Output(ctx context.Context, command string, args ...string) ([]byte, error)
	RunInput(ctx context.Context, input string, command string, args ...string) error
}

// CommandError captures detailed failure information from command execution.
// A non-zero exit from the save or restore binary is a collaborator failure,
// never a model failure.
type CommandError struct {
	Command string
	Args    []string
	Output  string
	Err     error
}

// Error implements the error interface.
func (e *CommandError) Error() string {
	joined := strings.Join(e.Args, " ")
	if e.Output != "" {
		return fmt.Sprintf("command %s %s failed: %v: %s", e.Command, joined, e.Err, strings.TrimSpace(e.Output))
	}
	return fmt.Sprintf("command %s %s failed: %v", e.Command, joined, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As checks.
func (e *CommandError) Unwrap() error {
	return e.Err
}

// RealExecutor executes commands on the host system.
type RealExecutor struct{}

// NewExecutor constructs a RealExecutor instance.
func NewExecutor() Executor {
	return &RealExecutor{}
}

// Output executes the command and returns its standard output.
func (r *RealExecutor) Output(ctx context.Context, command string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, command, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		return nil, &CommandError{
			Command: command,
			Args:    append([]string(nil), args...),
			Output:  stderr.String(),
			Err:     err,
		}
	}
	return output, nil
}

// RunInput executes the command with input fed to its standard input.
func (r *RealExecutor) RunInput(ctx context.Context, input string, command string, args ...string) error {
	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Stdin = strings.NewReader(input)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return &CommandError{
			Command: command,
			Args:    append([]string(nil), args...),
			Output:  string(output),
			Err:     err,
		}
	}
	return nil
}

// System talks to the platform save/restore executables for one IP version,
// optionally through an elevation command prefix such as "sudo" or
// "doas -n".
type System struct {
	executor  Executor
	ipVersion int
	elevation []string
	logger    *slog.Logger
}

// NewSystem validates the IP version, splits the elevation command into argv
// form, and wires the executor. A nil executor gets a RealExecutor.
func NewSystem(executor Executor, ipVersion int, elevationCommand string, logger *slog.Logger) (*System, error) {
	if ipVersion != 4 && ipVersion != 6 {
		return nil, fmt.Errorf("unsupported IP version %d (want 4 or 6)", ipVersion)
	}
	if executor == nil {
		executor = NewExecutor()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &System{
		executor:  executor,
		ipVersion: ipVersion,
		elevation: strings.Fields(elevationCommand),
		logger:    logger,
	}, nil
}

func (s *System) saveBinary() string {
	if s.ipVersion == 6 {
		return ipv6SaveBinary
	}
	return ipv4SaveBinary
}

func (s *System) restoreBinary() string {
	if s.ipVersion == 6 {
		return ipv6RestoreBinary
	}
	return ipv4RestoreBinary
}

// command applies the elevation prefix to a binary and its arguments.
func (s *System) command(binary string, args ...string) (string, []string) {
	if len(s.elevation) == 0 {
		return binary, args
	}
	full := append(append([]string(nil), s.elevation[1:]...), binary)
	return s.elevation[0], append(full, args...)
}

// Capture runs the save executable and parses its output into a RuleSet.
func (s *System) Capture(ctx context.Context) (*RuleSet, error) {
	command, args := s.command(s.saveBinary())
	s.logger.Debug("capturing ruleset", slog.String("command", command), slog.Any("args", args))

	output, err := s.executor.Output(ctx, command, args...)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", s.saveBinary(), err)
	}
	rs, err := Parse(strings.NewReader(string(output)), s.logger)
	if err != nil {
		return nil, fmt.Errorf("parse %s output: %w", s.saveBinary(), err)
	}
	return rs, nil
}

// Restore feeds the rendered RuleSet to the restore executable. With
// counters, the chain and rule counter pairs are restored as well.
func (s *System) Restore(ctx context.Context, rs *RuleSet, counters bool) error {
	var args []string
	if counters {
		args = append(args, "--counters")
	}
	command, args := s.command(s.restoreBinary(), args...)
	s.logger.Info("restoring ruleset",
		slog.String("command", command),
		slog.Int("tables", len(rs.Tables)),
		slog.Bool("counters", counters),
	)

	if err := s.executor.RunInput(ctx, rs.Render(), command, args...); err != nil {
		return fmt.Errorf("run %s: %w", s.restoreBinary(), err)
	}
	return nil
}

// LoadFile parses a save-format file into a RuleSet. A missing file yields an
// empty RuleSet rather than an error, so a fresh install starts from nothing.
func LoadFile(path string, logger *slog.Logger) (*RuleSet, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return New(logger), nil
	}
	if err != nil {
		return nil, fmt.Errorf("open rules file: %w", err)
	}
	defer f.Close()

	rs, err := Parse(f, logger)
	if err != nil {
		return nil, fmt.Errorf("parse rules file %s: %w", path, err)
	}
	return rs, nil
}

// SaveFile renders the RuleSet to a save-format file.
func SaveFile(path string, rs *RuleSet) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create rules file: %w", err)
	}
	if err := rs.Encode(f); err != nil {
		f.Close()
		return fmt.Errorf("write rules file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close rules file: %w", err)
	}
	return nil
}
