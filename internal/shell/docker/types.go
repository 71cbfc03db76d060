// Package docker drives the container engine for image and container
// operations. Client shells out to the engine CLI; APIClient talks to the
// Engine API for read-only inspection.
package docker

import (
	"context"

	"github.com/artpar/dockbuild/internal/core/compose"
)

// NoValue is returned by ImageLabel for a label the image does not carry,
// matching the engine's own template output for missing keys.
const NoValue = "<no value>"

// =============================================================================
// Interfaces
// =============================================================================

// ExitCodeReader reads container exit codes.
type ExitCodeReader interface {
	ContainerExitCode(ctx context.Context, container string) (int, error)
}

// StateReader reads container state.
type StateReader interface {
	ExitCodeReader
	ContainerRunning(ctx context.Context, container string) (bool, error)
}

// Inspector is the read-only view of the engine used by compose operations:
// digest lookups and container state. Both Client and APIClient implement it.
type Inspector interface {
	compose.ImageInspector
	StateReader
}

// ImageStore pulls and reads local images. Both Client and APIClient
// implement it.
type ImageStore interface {
	PullImage(ctx context.Context, image string) error
	ImageExists(ctx context.Context, image string) (bool, error)
	ImageLabels(ctx context.Context, image string) (map[string]string, error)
}

var (
	_ Inspector  = (*Client)(nil)
	_ Inspector  = (*APIClient)(nil)
	_ ImageStore = (*Client)(nil)
	_ ImageStore = (*APIClient)(nil)
)

// ImageLabel returns one label value of image, or NoValue when absent.
func ImageLabel(ctx context.Context, store ImageStore, image, key string) (string, error) {
	labels, err := store.ImageLabels(ctx, image)
	if err != nil {
		return "", err
	}
	if v, ok := labels[key]; ok {
		return v, nil
	}
	return NoValue, nil
}

// ImageLabelExists reports whether image carries the label key.
func ImageLabelExists(ctx context.Context, store ImageStore, image, key string) (bool, error) {
	v, err := ImageLabel(ctx, store, image, key)
	if err != nil {
		return false, err
	}
	return v != NoValue, nil
}

// =============================================================================
// Results
// =============================================================================

// ExitReport holds the exit codes of a set of containers.
type ExitReport struct {
	Codes  map[string]int // container -> exit code
	Failed []string       // containers with a non-zero code, sorted
}

// OK reports whether every container exited zero.
func (r *ExitReport) OK() bool {
	return len(r.Failed) == 0
}
