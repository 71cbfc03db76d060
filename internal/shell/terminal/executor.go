// Package terminal runs external commands for the shell layer.
package terminal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// =============================================================================
// Types
// =============================================================================

// Command is one process invocation.
type Command struct {
	Name  string
	Args  []string
	Stdin io.Reader

	// Quiet keeps the argument vector out of the logs, for commands that
	// carry credentials.
	Quiet bool
	// IncludeStderr makes Output capture stderr together with stdout.
	IncludeStderr bool
}

// String renders the command line for logs and errors.
func (c Command) String() string {
	if c.Quiet {
		return c.Name + " <redacted>"
	}
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Executor runs commands.
type Executor interface {
	// Run executes the command, streaming its output.
	Run(ctx context.Context, cmd Command) error
	// Output executes the command and returns what it printed.
	Output(ctx context.Context, cmd Command) ([]byte, error)
}

// ErrCommandFailed is wrapped by every CommandError.
var ErrCommandFailed = errors.New("command failed")

// CommandError reports a command that could not be started or exited
// non-zero.
type CommandError struct {
	Command  string
	ExitCode int    // -1 when the process did not run
	Output   string // captured output, if any
	Err      error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s: exit code %d", e.Command, e.ExitCode)
	if e.Err != nil && e.ExitCode < 0 {
		msg = fmt.Sprintf("%s: %v", e.Command, e.Err)
	}
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + out
	}
	return msg
}

func (e *CommandError) Unwrap() []error {
	return []error{ErrCommandFailed, e.Err}
}

// =============================================================================
// ExecExecutor
// =============================================================================

// ExecExecutor runs commands with os/exec.
type ExecExecutor struct {
	Stdout io.Writer
	Stderr io.Writer
	Env    []string // extra KEY=VALUE entries appended to the process environment

	logger *slog.Logger
}

// NewExecExecutor returns an executor streaming to the process stdout and
// stderr.
func NewExecExecutor(logger *slog.Logger) *ExecExecutor {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &ExecExecutor{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		logger: logger,
	}
}

// Run implements Executor.
func (e *ExecExecutor) Run(ctx context.Context, cmd Command) error {
	c := e.command(ctx, cmd)
	c.Stdout = e.Stdout
	c.Stderr = e.Stderr

	e.logger.Info("executing", "command", cmd.String())
	if err := c.Run(); err != nil {
		return newCommandError(cmd, "", err)
	}
	return nil
}

// Output implements Executor.
func (e *ExecExecutor) Output(ctx context.Context, cmd Command) ([]byte, error) {
	c := e.command(ctx, cmd)
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	if cmd.IncludeStderr {
		c.Stderr = &stdout
	} else {
		c.Stderr = &stderr
	}

	e.logger.Debug("executing", "command", cmd.String())
	if err := c.Run(); err != nil {
		return stdout.Bytes(), newCommandError(cmd, stderr.String()+stdout.String(), err)
	}
	return stdout.Bytes(), nil
}

func (e *ExecExecutor) command(ctx context.Context, cmd Command) *exec.Cmd {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...) // #nosec G204 -- argv assembled by internal/core/command
	c.Stdin = cmd.Stdin
	if len(e.Env) > 0 {
		c.Env = append(os.Environ(), e.Env...)
	}
	return c
}

func newCommandError(cmd Command, output string, err error) *CommandError {
	code := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
	}
	return &CommandError{
		Command:  cmd.String(),
		ExitCode: code,
		Output:   output,
		Err:      err,
	}
}
