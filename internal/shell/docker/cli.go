package docker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/artpar/dockbuild/internal/core/command"
	"github.com/artpar/dockbuild/internal/core/imageref"
	"github.com/artpar/dockbuild/internal/shell/terminal"
)

// DefaultBinary is the engine CLI used when none is configured.
const DefaultBinary = "docker"

// =============================================================================
// CLI Client
// =============================================================================

// Client runs image and container operations through the engine CLI.
type Client struct {
	exec   terminal.Executor
	binary string
	logger *slog.Logger
}

// NewClient creates a CLI client. An empty binary means "docker".
func NewClient(exec terminal.Executor, binary string, logger *slog.Logger) *Client {
	if binary == "" {
		binary = DefaultBinary
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{exec: exec, binary: binary, logger: logger}
}

// Binary returns the engine CLI the client invokes.
func (c *Client) Binary() string {
	return c.binary
}

// Executor returns the executor the client runs commands with.
func (c *Client) Executor() terminal.Executor {
	return c.exec
}

// Exec runs an arbitrary engine command, streaming its output.
func (c *Client) Exec(ctx context.Context, args []string) error {
	return c.exec.Run(ctx, terminal.Command{Name: c.binary, Args: args})
}

// ExecOutput runs an arbitrary engine command and returns its stdout.
func (c *Client) ExecOutput(ctx context.Context, args []string) ([]byte, error) {
	return c.exec.Output(ctx, terminal.Command{Name: c.binary, Args: args})
}

// =============================================================================
// Image Operations
// =============================================================================

// BuildImage builds an image, creating a buildx builder first for
// multi-platform builds.
func (c *Client) BuildImage(ctx context.Context, opts command.BuildOptions) error {
	args, err := command.Build(opts)
	if err != nil {
		return NewDockerError("BuildImage", "image", opts.Image, err.Error(), err)
	}
	if opts.UsesBuildx() {
		if err := c.Exec(ctx, command.BuildxCreate()); err != nil {
			return translateError("BuildImage", "image", opts.Image, err)
		}
	}
	if err := c.Exec(ctx, args); err != nil {
		return translateError("BuildImage", "image", opts.Image, err)
	}
	return nil
}

// RunImage runs image with a free-form property string such as
// "--name web -d".
func (c *Client) RunImage(ctx context.Context, image, properties string) error {
	props, err := terminal.SplitArgs(properties)
	if err != nil {
		return NewDockerError("RunImage", "image", image, err.Error(), err)
	}
	return c.Run(ctx, image, command.RunOptions{Properties: props})
}

// Run runs image with structured options.
func (c *Client) Run(ctx context.Context, image string, opts command.RunOptions) error {
	args, err := command.Run(image, opts)
	if err != nil {
		return NewDockerError("RunImage", "image", image, err.Error(), err)
	}
	if err := c.Exec(ctx, args); err != nil {
		return translateError("RunImage", "image", image, err)
	}
	return nil
}

// PullImage pulls image from its registry.
func (c *Client) PullImage(ctx context.Context, image string) error {
	if err := c.Exec(ctx, command.Pull(image)); err != nil {
		return translateError("PullImage", "image", image, err)
	}
	return nil
}

// PushImage pushes image to its registry.
func (c *Client) PushImage(ctx context.Context, image string) error {
	if err := c.Exec(ctx, command.Push(image)); err != nil {
		return translateError("PushImage", "image", image, err)
	}
	return nil
}

// TagImage tags source as target.
func (c *Client) TagImage(ctx context.Context, source, target string) error {
	if err := c.Exec(ctx, command.Tag(source, target)); err != nil {
		return translateError("TagImage", "image", source, err)
	}
	return nil
}

// SaveImage writes image to a tar archive at outputPath, creating the parent
// directory.
func (c *Client) SaveImage(ctx context.Context, image, outputPath string) error {
	if dir := filepath.Dir(outputPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return NewDockerError("SaveImage", "image", image, err.Error(), err)
		}
	}
	if err := c.Exec(ctx, command.Save(outputPath, image)); err != nil {
		return translateError("SaveImage", "image", image, err)
	}
	return nil
}

// RepoDigest returns the repository digest of a local image, e.g.
// "nginx@sha256:...". Images that were built locally and never pushed or
// pulled have none and yield ErrNoRepoDigest.
func (c *Client) RepoDigest(ctx context.Context, image string) (string, error) {
	out, err := c.ExecOutput(ctx, command.ImageInspect(image, command.FormatRepoDigests))
	if err != nil {
		return "", translateError("RepoDigest", "image", image, err)
	}

	var digests []string
	if err := json.Unmarshal(trimOutput(out), &digests); err != nil {
		return "", NewDockerError("RepoDigest", "image", image, "decode repo digests: "+err.Error(), ErrUnexpectedOutput)
	}
	return selectRepoDigest(image, digests)
}

// ImageID returns the content-addressed image ID ("sha256:...").
func (c *Client) ImageID(ctx context.Context, image string) (string, error) {
	out, err := c.ExecOutput(ctx, command.Inspect(image, command.FormatID))
	if err != nil {
		return "", translateError("ImageID", "image", image, err)
	}
	return string(trimOutput(out)), nil
}

// ImageInfo returns the decoded inspect document of an image.
func (c *Client) ImageInfo(ctx context.Context, image string) (map[string]any, error) {
	return c.inspect(ctx, "ImageInfo", "image", image)
}

// ContainerInfo returns the decoded inspect document of a container.
func (c *Client) ContainerInfo(ctx context.Context, container string) (map[string]any, error) {
	return c.inspect(ctx, "ContainerInfo", "container", container)
}

// ImageLabels returns the labels of an image. An image without labels
// yields an empty map.
func (c *Client) ImageLabels(ctx context.Context, image string) (map[string]string, error) {
	out, err := c.ExecOutput(ctx, command.Inspect(image, command.FormatLabels))
	if err != nil {
		return nil, translateError("ImageLabels", "image", image, err)
	}

	var labels map[string]string
	if err := json.Unmarshal(trimOutput(out), &labels); err != nil {
		return nil, NewDockerError("ImageLabels", "image", image, "decode labels: "+err.Error(), ErrUnexpectedOutput)
	}
	if labels == nil {
		labels = map[string]string{}
	}
	return labels, nil
}

// ImageExists reports whether image is present in the local image store.
func (c *Client) ImageExists(ctx context.Context, image string) (bool, error) {
	_, err := c.ExecOutput(ctx, command.ImageInspect(image, command.FormatID))
	if err == nil {
		return true, nil
	}
	err = translateError("ImageExists", "image", image, err)
	if errors.Is(err, ErrImageNotFound) {
		return false, nil
	}
	return false, err
}

// =============================================================================
// Container Operations
// =============================================================================

// ContainerExitCode returns the exit code of a container.
func (c *Client) ContainerExitCode(ctx context.Context, container string) (int, error) {
	out, err := c.ExecOutput(ctx, command.Inspect(container, command.FormatExitCode))
	if err != nil {
		return 0, translateError("ContainerExitCode", "container", container, err)
	}
	code, err := strconv.Atoi(string(trimOutput(out)))
	if err != nil {
		return 0, NewDockerError("ContainerExitCode", "container", container, fmt.Sprintf("parse exit code %q", out), ErrUnexpectedOutput)
	}
	return code, nil
}

// ContainerRunning reports whether a container is running.
func (c *Client) ContainerRunning(ctx context.Context, container string) (bool, error) {
	out, err := c.ExecOutput(ctx, command.Inspect(container, command.FormatRunning))
	if err != nil {
		return false, translateError("ContainerRunning", "container", container, err)
	}
	running, err := strconv.ParseBool(strings.ToLower(string(trimOutput(out))))
	if err != nil {
		return false, NewDockerError("ContainerRunning", "container", container, fmt.Sprintf("parse running state %q", out), ErrUnexpectedOutput)
	}
	return running, nil
}

// CopyFromContainer copies src out of a container to hostDest.
func (c *Client) CopyFromContainer(ctx context.Context, container, src, hostDest string) error {
	if err := c.Exec(ctx, command.Copy(container, src, hostDest)); err != nil {
		return translateError("CopyFromContainer", "container", container, err)
	}
	return nil
}

// ContainerLogs returns the combined stdout and stderr log of a container.
func (c *Client) ContainerLogs(ctx context.Context, container string) (string, error) {
	out, err := c.exec.Output(ctx, terminal.Command{Name: c.binary, Args: command.Logs(container), IncludeStderr: true})
	if err != nil {
		return "", translateError("ContainerLogs", "container", container, err)
	}
	return string(out), nil
}

// VerifyContainerExitCodes checks the exit code of each container.
func (c *Client) VerifyContainerExitCodes(ctx context.Context, containers []string, assertCodes bool) (*ExitReport, error) {
	return VerifyContainerExitCodes(ctx, c, containers, assertCodes, c.logger)
}

// =============================================================================
// Registry Operations
// =============================================================================

// Login authenticates against server. The password is passed on stdin and
// the command line is never logged.
func (c *Client) Login(ctx context.Context, server, user, password string, dryRun bool) error {
	if dryRun {
		c.logger.Info("would have logged in", "server", server, "user", user)
		return nil
	}
	err := c.exec.Run(ctx, terminal.Command{
		Name:  c.binary,
		Args:  command.Login(server, user),
		Stdin: strings.NewReader(password),
		Quiet: true,
	})
	if err != nil {
		return NewDockerError("Login", "registry", server, "login failed", err)
	}
	return nil
}

// Logout removes stored credentials for server.
func (c *Client) Logout(ctx context.Context, server string, dryRun bool) error {
	if dryRun {
		c.logger.Info("would have logged out", "server", server)
		return nil
	}
	err := c.exec.Run(ctx, terminal.Command{Name: c.binary, Args: command.Logout(server), Quiet: true})
	if err != nil {
		return NewDockerError("Logout", "registry", server, "logout failed", err)
	}
	return nil
}

// =============================================================================
// Helpers
// =============================================================================

func (c *Client) inspect(ctx context.Context, op, entity, name string) (map[string]any, error) {
	out, err := c.ExecOutput(ctx, command.Inspect(name, ""))
	if err != nil {
		return nil, translateError(op, entity, name, err)
	}

	var docs []map[string]any
	if err := json.Unmarshal(out, &docs); err != nil {
		return nil, NewDockerError(op, entity, name, "decode inspect output: "+err.Error(), ErrUnexpectedOutput)
	}
	if len(docs) == 0 {
		return nil, NewDockerError(op, entity, name, "empty inspect output", ErrUnexpectedOutput)
	}
	return docs[0], nil
}

// trimOutput strips whitespace and the quotes some shells leave around
// template output.
func trimOutput(out []byte) []byte {
	return []byte(strings.Trim(strings.TrimSpace(string(out)), `'"`))
}

// selectRepoDigest picks the digest belonging to image's repository,
// falling back to the first one.
func selectRepoDigest(image string, digests []string) (string, error) {
	if len(digests) == 0 {
		return "", NewDockerError("RepoDigest", "image", image, "image has no repository digest", ErrNoRepoDigest)
	}
	if repo, err := imageref.Repository(image); err == nil {
		for _, d := range digests {
			if strings.HasPrefix(d, repo+"@") {
				return d, nil
			}
		}
	}
	return digests[0], nil
}
