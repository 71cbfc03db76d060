package command

// =============================================================================
// Compose Commands
// =============================================================================

// ComposeTarget identifies the compose files and project a command applies to.
type ComposeTarget struct {
	Files   []string
	Project string
}

// Compose returns "compose [-p project] -f a -f b <sub...>".
func Compose(target ComposeTarget, sub ...string) []string {
	args := []string{"compose"}
	if target.Project != "" {
		args = append(args, "-p", target.Project)
	}
	for _, f := range target.Files {
		args = append(args, "-f", f)
	}
	return append(args, sub...)
}

// ComposeBuild returns "compose ... build".
func ComposeBuild(target ComposeTarget) []string {
	return Compose(target, "build")
}

// ComposeUp returns "compose ... up", detached when requested.
func ComposeUp(target ComposeTarget, detached bool) []string {
	if detached {
		return Compose(target, "up", "-d")
	}
	return Compose(target, "up")
}

// ComposeDown stops and removes the project's containers and networks.
func ComposeDown(target ComposeTarget) []string {
	return Compose(target, "down", "--remove-orphans")
}

// ComposePull returns "compose ... pull".
func ComposePull(target ComposeTarget) []string {
	return Compose(target, "pull")
}

// ComposePush returns "compose ... push".
func ComposePush(target ComposeTarget) []string {
	return Compose(target, "push")
}

// ComposeConfig renders the merged, interpolated configuration.
func ComposeConfig(target ComposeTarget) []string {
	return Compose(target, "config")
}
