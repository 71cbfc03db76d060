package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/artpar/dockbuild/internal/core/compose"
	"github.com/artpar/dockbuild/internal/shell/docker"
	"github.com/artpar/dockbuild/internal/shell/swarm"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess     = 0
	ExitFailure     = 1
	ExitConfigError = 2
	ExitPartial     = 3 // some services or containers failed, the rest succeeded
)

// errConfig marks errors that stem from configuration or usage.
var errConfig = errors.New("configuration error")

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := NewRootCmd()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return exitCode(err)
	}
	return ExitSuccess
}

// exitCode maps an error onto the process exit code.
func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, errConfig), errors.Is(err, swarm.ErrInvalidWait):
		return ExitConfigError
	case errors.Is(err, compose.ErrPartialFailure),
		errors.Is(err, docker.ErrContainersFailed),
		errors.Is(err, swarm.ErrServiceTimeout):
		return ExitPartial
	default:
		return ExitFailure
	}
}
