package docker

import (
	"context"
	"fmt"

	"github.com/artpar/dockbuild/internal/core/command"
	"github.com/artpar/dockbuild/internal/core/compose"
)

// =============================================================================
// Dry-Run Inspector
// =============================================================================

// DryRunInspector runs inspections through a recording client and reports
// what it would look up instead of failing on the empty output. Digest
// lookups return compose.ErrLookupSkipped; containers read as exited zero
// and not running.
type DryRunInspector struct {
	client *Client
}

// NewDryRunInspector wraps client, whose executor is expected to record
// commands rather than run them.
func NewDryRunInspector(client *Client) *DryRunInspector {
	return &DryRunInspector{client: client}
}

var _ Inspector = (*DryRunInspector)(nil)

func (d *DryRunInspector) RepoDigest(ctx context.Context, image string) (string, error) {
	if _, err := d.client.ExecOutput(ctx, command.ImageInspect(image, command.FormatRepoDigests)); err != nil {
		return "", translateError("RepoDigest", "image", image, err)
	}
	return "", fmt.Errorf("%w: %s", compose.ErrLookupSkipped, image)
}

func (d *DryRunInspector) ContainerExitCode(ctx context.Context, container string) (int, error) {
	if _, err := d.client.ExecOutput(ctx, command.Inspect(container, command.FormatExitCode)); err != nil {
		return 0, translateError("ContainerExitCode", "container", container, err)
	}
	return 0, nil
}

func (d *DryRunInspector) ContainerRunning(ctx context.Context, container string) (bool, error) {
	if _, err := d.client.ExecOutput(ctx, command.Inspect(container, command.FormatRunning)); err != nil {
		return false, translateError("ContainerRunning", "container", container, err)
	}
	return false, nil
}
