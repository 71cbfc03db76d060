// Package composecli runs compose workflows: it drives "docker compose" for
// build and lifecycle commands and applies the document transforms of
// internal/core/compose to compose files on disk.
package composecli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/artpar/dockbuild/internal/core/command"
	"github.com/artpar/dockbuild/internal/core/compose"
	"github.com/artpar/dockbuild/internal/core/imageref"
	"github.com/artpar/dockbuild/internal/shell/docker"
	"github.com/compose-spec/compose-go/v2/types"
)

// ErrNoFiles is returned when an operation is called without compose files.
var ErrNoFiles = errors.New("no compose files given")

// Runner executes compose operations against one project.
type Runner struct {
	docker    *docker.Client
	inspector docker.Inspector
	project   string
	logger    *slog.Logger

	// Lookup resolves ${VAR} placeholders in image references before
	// tagging, pushing or saving. Nil reads the process environment.
	Lookup compose.Lookup
}

// New creates a Runner. A nil inspector falls back to the CLI client.
func New(client *docker.Client, inspector docker.Inspector, project string, logger *slog.Logger) *Runner {
	if inspector == nil {
		inspector = client
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Runner{
		docker:    client,
		inspector: inspector,
		project:   project,
		logger:    logger.With("project", project),
	}
}

// Project returns the project name passed to "docker compose -p".
func (r *Runner) Project() string {
	return r.project
}

// =============================================================================
// Compose Lifecycle
// =============================================================================

// Build builds every service with a build section.
func (r *Runner) Build(ctx context.Context, files ...string) error {
	return r.compose(ctx, "build", files, command.ComposeBuild)
}

// Up creates and starts the services. Attached runs block until every
// container exits.
func (r *Runner) Up(ctx context.Context, files []string, detached bool) error {
	return r.compose(ctx, "up", files, func(t command.ComposeTarget) []string {
		return command.ComposeUp(t, detached)
	})
}

// Down stops and removes the services, including orphans.
func (r *Runner) Down(ctx context.Context, files ...string) error {
	return r.compose(ctx, "down", files, command.ComposeDown)
}

// Pull pulls the images of every service.
func (r *Runner) Pull(ctx context.Context, files ...string) error {
	return r.compose(ctx, "pull", files, command.ComposePull)
}

// Push pushes the images of every service.
func (r *Runner) Push(ctx context.Context, files ...string) error {
	return r.compose(ctx, "push", files, command.ComposePush)
}

// Config returns the configuration the engine renders for files, merged
// and interpolated by compose itself.
func (r *Runner) Config(ctx context.Context, files ...string) ([]byte, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("compose config: %w", ErrNoFiles)
	}
	out, err := r.docker.ExecOutput(ctx, command.ComposeConfig(command.ComposeTarget{Files: files, Project: r.project}))
	if err != nil {
		return nil, fmt.Errorf("compose config: %w", err)
	}
	return out, nil
}

func (r *Runner) compose(ctx context.Context, op string, files []string, build func(command.ComposeTarget) []string) error {
	if len(files) == 0 {
		return fmt.Errorf("compose %s: %w", op, ErrNoFiles)
	}
	r.logger.Info("compose "+op, "files", files)
	args := build(command.ComposeTarget{Files: files, Project: r.project})
	if err := r.docker.Exec(ctx, args); err != nil {
		return fmt.Errorf("compose %s: %w", op, err)
	}
	return nil
}

// =============================================================================
// Document Transforms
// =============================================================================

// Validate merges files and loads the result through the compose loader,
// surfacing schema violations before the engine sees the files.
func (r *Runner) Validate(ctx context.Context, files ...string) (*types.Project, error) {
	doc, err := r.load(files)
	if err != nil {
		return nil, err
	}
	return compose.ValidateProject(ctx, doc, r.project, environ())
}

// MergeFiles merges files in order and writes the result to output.
func (r *Runner) MergeFiles(files []string, output string) error {
	doc, err := r.load(files)
	if err != nil {
		return err
	}
	if err := writeOutput(doc, output); err != nil {
		return err
	}
	r.logger.Info("merged compose files", "files", files, "output", output)
	return nil
}

// AddContainerNames merges files, names every unnamed service after the
// project and writes the result to output. It returns the assigned names.
func (r *Runner) AddContainerNames(files []string, output string) ([]string, error) {
	doc, err := r.load(files)
	if err != nil {
		return nil, err
	}
	assigned := compose.AssignContainerNames(doc, r.project, r.logger)
	if err := writeOutput(doc, output); err != nil {
		return assigned, err
	}
	r.logger.Info("added container names", "count", len(assigned), "output", output)
	return assigned, nil
}

// AddDigestsToImageTags merges files, pins every resolvable image to its
// repository digest and writes the result to output. The output is written
// even when some images could not be resolved; the returned error then
// lists them.
func (r *Runner) AddDigestsToImageTags(ctx context.Context, files []string, output string, opts compose.ResolveOptions) (*compose.DigestReport, error) {
	doc, err := r.load(files)
	if err != nil {
		return nil, err
	}

	if opts.Lookup == nil {
		opts.Lookup = r.Lookup
	}
	report, resolveErr := compose.ResolveDigests(ctx, doc, r.inspector, opts, r.logger)
	if resolveErr != nil && !errors.Is(resolveErr, compose.ErrPartialFailure) {
		return report, resolveErr
	}
	if err := writeOutput(doc, output); err != nil {
		return report, errors.Join(resolveErr, err)
	}
	r.logger.Info("added image digests",
		"resolved", len(report.Resolved),
		"skipped", len(report.Skipped),
		"failed", len(report.Failed),
		"deferred", len(report.Deferred),
		"output", output)
	return report, resolveErr
}

// =============================================================================
// Image Operations
// =============================================================================

// TagImages tags the image of every service in file with tag.
func (r *Runner) TagImages(ctx context.Context, file, tag string) ([]compose.TagRewrite, error) {
	doc, err := r.loadResolved(file)
	if err != nil {
		return nil, err
	}
	plan, err := compose.ImageTags(doc, tag)
	if err != nil {
		return nil, err
	}

	for i, t := range plan {
		if err := r.docker.TagImage(ctx, t.Source, t.Target); err != nil {
			return plan[:i], err
		}
		r.logger.Info("tagged image", "service", t.Service, "source", t.Source, "target", t.Target)
	}
	return plan, nil
}

// PushImages pushes the image of every service in file. With a tag, each
// image is first tagged and the new reference is pushed.
func (r *Runner) PushImages(ctx context.Context, file, tag string) ([]string, error) {
	var refs []string
	if tag != "" {
		plan, err := r.TagImages(ctx, file, tag)
		if err != nil {
			return nil, err
		}
		for _, t := range plan {
			refs = append(refs, t.Target)
		}
	} else {
		images, err := r.images(file)
		if err != nil {
			return nil, err
		}
		refs = images
	}

	for i, ref := range refs {
		if err := r.docker.PushImage(ctx, ref); err != nil {
			return refs[:i], err
		}
	}
	return refs, nil
}

// SaveImages saves the image of every service in file to a tar archive in
// folder, named after the last path segment of the reference. It returns
// the written archive paths.
func (r *Runner) SaveImages(ctx context.Context, file, folder string) ([]string, error) {
	images, err := r.images(file)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return nil, fmt.Errorf("create output folder: %w", err)
	}

	var written []string
	for _, image := range images {
		out := filepath.Join(folder, imageref.ArchiveName(image))
		if err := r.docker.SaveImage(ctx, image, out); err != nil {
			return written, err
		}
		r.logger.Info("saved image", "image", image, "output", out)
		written = append(written, out)
	}
	return written, nil
}

// =============================================================================
// Compose Tests
// =============================================================================

// ExecuteTests runs the services attached until they exit, then checks that
// every named container exited zero. The project is torn down before and
// after the run; the teardown error is reported only when the test itself
// succeeded.
func (r *Runner) ExecuteTests(ctx context.Context, files []string, containers []string) (report *docker.ExitReport, err error) {
	if err := r.Down(ctx, files...); err != nil {
		return nil, err
	}
	defer func() {
		if downErr := r.Down(context.WithoutCancel(ctx), files...); downErr != nil && err == nil {
			err = downErr
		}
	}()

	if err := r.Up(ctx, files, false); err != nil {
		return nil, err
	}
	return docker.VerifyContainerExitCodes(ctx, r.inspector, containers, true, r.logger)
}

// =============================================================================
// Helpers
// =============================================================================

func (r *Runner) load(files []string) (*compose.Document, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	return compose.LoadFiles(files...)
}

// loadResolved loads file with placeholders substituted, so images named
// like "${REGISTRY}/app:${TAG}" reference real images.
func (r *Runner) loadResolved(file string) (*compose.Document, error) {
	doc, err := compose.LoadFile(file)
	if err != nil {
		return nil, err
	}
	compose.ResolveVariables(doc, r.Lookup, nil)
	return doc, nil
}

func (r *Runner) images(file string) ([]string, error) {
	doc, err := r.loadResolved(file)
	if err != nil {
		return nil, err
	}
	var images []string
	for _, svc := range doc.Services() {
		if image := svc.Image(); image != "" {
			images = append(images, image)
		}
	}
	return images, nil
}

// writeOutput writes doc to output, creating the parent directory.
func writeOutput(doc *compose.Document, output string) error {
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return fmt.Errorf("create output folder: %w", err)
	}
	return doc.WriteFile(output)
}

func environ() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}
