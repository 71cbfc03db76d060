package docker

import (
	"context"
	"io"
	"log/slog"
	"sort"
)

// VerifyContainerExitCodes reads the exit code of every container. With
// assertCodes set, any non-zero code fails the call with a
// ContainersFailedError naming each failing container; otherwise the codes
// are only reported. A container that cannot be inspected always fails the
// call.
func VerifyContainerExitCodes(ctx context.Context, reader ExitCodeReader, containers []string, assertCodes bool, logger *slog.Logger) (*ExitReport, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	report := &ExitReport{Codes: make(map[string]int, len(containers))}
	for _, name := range containers {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		code, err := reader.ContainerExitCode(ctx, name)
		if err != nil {
			return report, err
		}
		report.Codes[name] = code
		logger.Info("container exit code", "container", name, "exit_code", code)

		if code != 0 {
			report.Failed = append(report.Failed, name)
		}
	}
	sort.Strings(report.Failed)

	if assertCodes && !report.OK() {
		failed := make(map[string]int, len(report.Failed))
		for _, name := range report.Failed {
			failed[name] = report.Codes[name]
		}
		return report, &ContainersFailedError{Failed: failed}
	}
	return report, nil
}
