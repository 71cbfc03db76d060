package docker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
)

// =============================================================================
// Engine API Client
// =============================================================================

// APIClient reads image and container state through the Engine API. It
// serves digest resolution and exit-code verification when the engine CLI
// is not installed.
type APIClient struct {
	cli    *client.Client
	logger *slog.Logger
}

// NewAPIClient creates a new Engine API client.
// If host is empty, it uses the default Docker host from environment.
// On macOS with Docker Desktop, it automatically detects the correct socket.
func NewAPIClient(ctx context.Context, host string, logger *slog.Logger) (*APIClient, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	var opts []client.Opt
	opts = append(opts, client.FromEnv)
	opts = append(opts, client.WithAPIVersionNegotiation())

	if host != "" {
		opts = append(opts, client.WithHost(host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, NewDockerError("NewAPIClient", "", "", "failed to create client", ErrConnectionFailed)
	}

	if _, pingErr := cli.Ping(ctx); pingErr != nil && host == "" {
		// Docker Desktop keeps its socket under the home directory.
		homeDir, _ := os.UserHomeDir()
		desktopSocket := "unix://" + homeDir + "/.docker/run/docker.sock"

		cli2, err2 := client.NewClientWithOpts(
			client.WithHost(desktopSocket),
			client.WithAPIVersionNegotiation(),
		)
		if err2 == nil {
			if _, pingErr2 := cli2.Ping(ctx); pingErr2 == nil {
				logger.Debug("using docker desktop socket", "host", desktopSocket)
				cli.Close()
				return &APIClient{cli: cli2, logger: logger}, nil
			}
			cli2.Close()
		}
	}

	return &APIClient{cli: cli, logger: logger}, nil
}

// Ping checks if Docker daemon is reachable.
func (d *APIClient) Ping(ctx context.Context) error {
	if _, err := d.cli.Ping(ctx); err != nil {
		return NewDockerError("Ping", "", "", fmt.Sprintf("failed to ping docker: %v", err), ErrConnectionFailed)
	}
	return nil
}

// Close closes the Docker client connection.
func (d *APIClient) Close() error {
	return d.cli.Close()
}

// =============================================================================
// Image Operations
// =============================================================================

// RepoDigest returns the repository digest of a local image.
func (d *APIClient) RepoDigest(ctx context.Context, imageName string) (string, error) {
	resp, err := d.cli.ImageInspect(ctx, imageName)
	if err != nil {
		return "", d.imageError("RepoDigest", imageName, err)
	}
	return selectRepoDigest(imageName, resp.RepoDigests)
}

// ImageExists checks if an image exists locally.
func (d *APIClient) ImageExists(ctx context.Context, imageName string) (bool, error) {
	_, err := d.cli.ImageInspect(ctx, imageName)
	if err != nil {
		if client.IsErrNotFound(err) {
			return false, nil
		}
		return false, NewDockerError("ImageExists", "image", imageName, err.Error(), err)
	}
	return true, nil
}

// ImageLabels returns the labels of a local image.
func (d *APIClient) ImageLabels(ctx context.Context, imageName string) (map[string]string, error) {
	resp, err := d.cli.ImageInspect(ctx, imageName)
	if err != nil {
		return nil, d.imageError("ImageLabels", imageName, err)
	}

	labels := map[string]string{}
	if resp.Config != nil {
		for k, v := range resp.Config.Labels {
			labels[k] = v
		}
	}
	return labels, nil
}

// PullImage pulls an image from the registry.
func (d *APIClient) PullImage(ctx context.Context, imageName string) error {
	reader, err := d.cli.ImagePull(ctx, imageName, image.PullOptions{})
	if err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "not found") ||
			strings.Contains(errStr, "manifest unknown") ||
			strings.Contains(errStr, "repository does not exist") ||
			strings.Contains(errStr, "pull access denied") {
			return NewDockerError("PullImage", "image", imageName, "image not found", ErrImageNotFound)
		}
		return NewDockerError("PullImage", "image", imageName, err.Error(), err)
	}
	defer reader.Close()

	// Drain the reader to complete the pull
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return NewDockerError("PullImage", "image", imageName, err.Error(), err)
	}
	return nil
}

// =============================================================================
// Container Operations
// =============================================================================

// ContainerExitCode returns the exit code of a container.
func (d *APIClient) ContainerExitCode(ctx context.Context, containerName string) (int, error) {
	resp, err := d.cli.ContainerInspect(ctx, containerName)
	if err != nil {
		return 0, d.containerError("ContainerExitCode", containerName, err)
	}
	if resp.ContainerJSONBase == nil || resp.State == nil {
		return 0, NewDockerError("ContainerExitCode", "container", containerName, "inspect response has no state", ErrUnexpectedOutput)
	}
	return resp.State.ExitCode, nil
}

// ContainerRunning reports whether a container is running.
func (d *APIClient) ContainerRunning(ctx context.Context, containerName string) (bool, error) {
	resp, err := d.cli.ContainerInspect(ctx, containerName)
	if err != nil {
		return false, d.containerError("ContainerRunning", containerName, err)
	}
	if resp.ContainerJSONBase == nil || resp.State == nil {
		return false, NewDockerError("ContainerRunning", "container", containerName, "inspect response has no state", ErrUnexpectedOutput)
	}
	return resp.State.Running, nil
}

// =============================================================================
// Helpers
// =============================================================================

func (d *APIClient) imageError(op, imageName string, err error) error {
	if client.IsErrNotFound(err) {
		return NewDockerError(op, "image", imageName, "image not found", ErrImageNotFound)
	}
	if client.IsErrConnectionFailed(err) {
		return NewDockerError(op, "image", imageName, err.Error(), ErrConnectionFailed)
	}
	return NewDockerError(op, "image", imageName, err.Error(), err)
}

func (d *APIClient) containerError(op, containerName string, err error) error {
	if client.IsErrNotFound(err) {
		return NewDockerError(op, "container", containerName, "container not found", ErrContainerNotFound)
	}
	if client.IsErrConnectionFailed(err) {
		return NewDockerError(op, "container", containerName, err.Error(), ErrConnectionFailed)
	}
	return NewDockerError(op, "container", containerName, err.Error(), err)
}
