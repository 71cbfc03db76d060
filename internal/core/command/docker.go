// Package command builds argument vectors for the container engine CLI.
// Every function is pure: it returns the arguments that follow the engine
// binary and never executes anything.
package command

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/artpar/dockbuild/internal/core/imageref"
	"github.com/docker/go-connections/nat"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	ErrMissingImage  = errors.New("image name is required")
	ErrMissingTarget = errors.New("target is required")
	ErrInvalidPort   = errors.New("invalid port publish spec")
)

// =============================================================================
// Inspect Formats
// =============================================================================

// Go templates passed to "docker inspect --format".
const (
	FormatExitCode    = "{{.State.ExitCode}}"
	FormatRunning     = "{{.State.Running}}"
	FormatID          = "{{.Id}}"
	FormatRepoDigests = "{{json .RepoDigests}}"
	FormatLabels      = "{{json .Config.Labels}}"
)

// =============================================================================
// Image Commands
// =============================================================================

// BuildOptions describes an image build.
type BuildOptions struct {
	Image      string
	Dockerfile string   // default "Dockerfile"
	Context    string   // default "."
	Args       []string // KEY=VALUE build args
	Tags       []string // extra tags applied to Image
	Platforms  []string // e.g. linux/amd64; switches to buildx
	Push       bool
}

// UsesBuildx reports whether the build needs a buildx builder.
func (o BuildOptions) UsesBuildx() bool {
	return len(o.Platforms) > 0
}

// Build returns the build arguments. Extra tags are derived from Image with
// imageref.RewriteTag, so a digest-pinned Image with extra tags fails.
func Build(opts BuildOptions) ([]string, error) {
	if opts.Image == "" {
		return nil, ErrMissingImage
	}
	dockerfile := opts.Dockerfile
	if dockerfile == "" {
		dockerfile = "Dockerfile"
	}
	buildContext := opts.Context
	if buildContext == "" {
		buildContext = "."
	}

	var args []string
	if opts.UsesBuildx() {
		args = append(args, "buildx", "build", "--platform", strings.Join(opts.Platforms, ","))
	} else {
		args = append(args, "build")
	}
	args = append(args, "-f", dockerfile)
	for _, a := range opts.Args {
		args = append(args, "--build-arg", a)
	}
	args = append(args, "-t", opts.Image)
	for _, tag := range opts.Tags {
		target, err := imageref.RewriteTag(opts.Image, tag)
		if err != nil {
			return nil, err
		}
		args = append(args, "-t", target)
	}
	if opts.Push {
		args = append(args, "--push")
	}
	return append(args, buildContext), nil
}

// BuildxCreate creates and selects a buildx builder for multi-platform
// builds.
func BuildxCreate() []string {
	return []string{"buildx", "create", "--use"}
}

// RunOptions describes "docker run".
type RunOptions struct {
	Name       string
	Detach     bool
	Remove     bool
	Env        map[string]string
	Publish    []string // e.g. "8080:80/tcp"
	Properties []string // free-form extra arguments
	Command    []string
}

// Run returns the run arguments. Publish specs are validated before they
// reach the engine.
func Run(image string, opts RunOptions) ([]string, error) {
	if image == "" {
		return nil, ErrMissingImage
	}
	if _, _, err := nat.ParsePortSpecs(opts.Publish); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPort, err)
	}

	args := []string{"run"}
	if opts.Name != "" {
		args = append(args, "--name", opts.Name)
	}
	if opts.Detach {
		args = append(args, "-d")
	}
	if opts.Remove {
		args = append(args, "--rm")
	}
	for _, key := range sortedKeys(opts.Env) {
		args = append(args, "-e", key+"="+opts.Env[key])
	}
	for _, p := range opts.Publish {
		args = append(args, "-p", p)
	}
	args = append(args, opts.Properties...)
	args = append(args, image)
	return append(args, opts.Command...), nil
}

// Pull returns "pull <image>".
func Pull(image string) []string {
	return []string{"pull", image}
}

// Push returns "push <image>".
func Push(image string) []string {
	return []string{"push", image}
}

// Tag returns "tag <source> <target>".
func Tag(source, target string) []string {
	return []string{"tag", source, target}
}

// Save returns "save -o <output> <images...>".
func Save(output string, images ...string) []string {
	return append([]string{"save", "-o", output}, images...)
}

// Inspect returns "inspect [--format f] <target>". An empty format yields the
// full JSON document.
func Inspect(target, format string) []string {
	if format == "" {
		return []string{"inspect", target}
	}
	return []string{"inspect", "--format", format, target}
}

// ImageInspect returns "image inspect [--format f] <image>".
func ImageInspect(image, format string) []string {
	return append([]string{"image"}, Inspect(image, format)...)
}

// =============================================================================
// Container Commands
// =============================================================================

// Copy copies src out of a container to hostDest.
func Copy(container, src, hostDest string) []string {
	return []string{"cp", container + ":" + src, hostDest}
}

// Logs returns "logs <container>".
func Logs(container string) []string {
	return []string{"logs", container}
}

// =============================================================================
// Registry Commands
// =============================================================================

// Login reads the password from stdin so it never appears in argv.
func Login(server, user string) []string {
	args := []string{"login", "-u", user, "--password-stdin"}
	if server != "" {
		args = append(args, server)
	}
	return args
}

// Logout returns "logout [server]".
func Logout(server string) []string {
	if server == "" {
		return []string{"logout"}
	}
	return []string{"logout", server}
}

// Info returns "info --format <f>".
func Info(format string) []string {
	return []string{"info", "--format", format}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
