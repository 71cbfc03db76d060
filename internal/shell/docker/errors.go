package docker

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/artpar/dockbuild/internal/shell/terminal"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// Container errors
	ErrContainerNotFound = errors.New("container not found")
	ErrContainersFailed  = errors.New("containers exited with a non-zero code")

	// Image errors
	ErrImageNotFound = errors.New("image not found")
	ErrNoRepoDigest  = errors.New("image has no repository digest")

	// Engine errors
	ErrConnectionFailed = errors.New("docker connection failed")
	ErrUnexpectedOutput = errors.New("unexpected docker output")
)

// DockerError wraps errors with additional context.
type DockerError struct {
	Op      string // Operation that failed
	Entity  string // Entity type (container, image, registry)
	ID      string // Entity name if applicable
	Message string
	Err     error
}

func (e *DockerError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %s %s: %s", e.Op, e.Entity, e.ID, e.Message)
	}
	if e.Entity != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Entity, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *DockerError) Unwrap() error {
	return e.Err
}

// NewDockerError creates a new DockerError.
func NewDockerError(op, entity, id, message string, err error) *DockerError {
	return &DockerError{
		Op:      op,
		Entity:  entity,
		ID:      id,
		Message: message,
		Err:     err,
	}
}

// translateError maps CLI failures onto the package sentinels.
func translateError(op, entity, id string, err error) error {
	var cmdErr *terminal.CommandError
	if !errors.As(err, &cmdErr) {
		return NewDockerError(op, entity, id, err.Error(), err)
	}

	out := strings.ToLower(cmdErr.Output)
	switch {
	case strings.Contains(out, "no such image"):
		return NewDockerError(op, entity, id, "image not found", errors.Join(ErrImageNotFound, err))
	case strings.Contains(out, "no such container"):
		return NewDockerError(op, entity, id, "container not found", errors.Join(ErrContainerNotFound, err))
	case strings.Contains(out, "no such object"):
		if entity == "container" {
			return NewDockerError(op, entity, id, "container not found", errors.Join(ErrContainerNotFound, err))
		}
		return NewDockerError(op, entity, id, "image not found", errors.Join(ErrImageNotFound, err))
	case strings.Contains(out, "cannot connect to the docker daemon"):
		return NewDockerError(op, entity, id, "daemon unreachable", errors.Join(ErrConnectionFailed, err))
	}
	return NewDockerError(op, entity, id, cmdErr.Error(), err)
}

// ContainersFailedError lists the containers that exited non-zero. Failure
// is the set of containers, never a sum of their codes.
type ContainersFailedError struct {
	Failed map[string]int // container -> exit code
}

func (e *ContainersFailedError) Error() string {
	names := make([]string, 0, len(e.Failed))
	for name := range e.Failed {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s (exit %d)", name, e.Failed[name])
	}
	return fmt.Sprintf("%s: %s", ErrContainersFailed.Error(), strings.Join(parts, ", "))
}

func (e *ContainersFailedError) Unwrap() error {
	return ErrContainersFailed
}
