package terminal

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// Recorder is an Executor that records commands instead of running them.
// It backs --dry-run and doubles as the fake executor in tests: canned
// responses are matched by argument prefix.
type Recorder struct {
	mu        sync.Mutex
	commands  []Command
	responses []response

	logger *slog.Logger
}

type response struct {
	prefix []string
	output []byte
	err    error
}

// NewRecorder returns an empty Recorder. A nil logger discards.
func NewRecorder(logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Recorder{logger: logger}
}

// Respond registers output and err for commands whose arguments start with
// prefix. Later registrations take precedence.
func (r *Recorder) Respond(output string, err error, prefix ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses = append(r.responses, response{prefix: prefix, output: []byte(output), err: err})
}

// Run implements Executor.
func (r *Recorder) Run(_ context.Context, cmd Command) error {
	_, err := r.record(cmd)
	return err
}

// Output implements Executor.
func (r *Recorder) Output(_ context.Context, cmd Command) ([]byte, error) {
	return r.record(cmd)
}

// Commands returns the recorded commands.
func (r *Recorder) Commands() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Command(nil), r.commands...)
}

// Lines returns the recorded commands rendered as command lines.
func (r *Recorder) Lines() []string {
	cmds := r.Commands()
	out := make([]string, len(cmds))
	for i, c := range cmds {
		out[i] = c.String()
	}
	return out
}

func (r *Recorder) record(cmd Command) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.commands = append(r.commands, cmd)
	r.logger.Info("dry run", "command", cmd.String())

	for i := len(r.responses) - 1; i >= 0; i-- {
		if hasPrefix(cmd.Args, r.responses[i].prefix) {
			return r.responses[i].output, r.responses[i].err
		}
	}
	return nil, nil
}

func hasPrefix(args, prefix []string) bool {
	if len(prefix) > len(args) {
		return false
	}
	return strings.Join(args[:len(prefix)], "\x00") == strings.Join(prefix, "\x00")
}
