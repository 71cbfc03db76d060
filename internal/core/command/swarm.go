package command

// =============================================================================
// Swarm Commands
// =============================================================================

// FormatSwarmState reports "active" on a swarm node.
const FormatSwarmState = "{{.Swarm.LocalNodeState}}"

// SwarmInit returns "swarm init".
func SwarmInit() []string {
	return []string{"swarm", "init"}
}

// SwarmLeave returns "swarm leave [--force]".
func SwarmLeave(force bool) []string {
	if force {
		return []string{"swarm", "leave", "--force"}
	}
	return []string{"swarm", "leave"}
}

// NetworkOptions describes a swarm network.
type NetworkOptions struct {
	Driver     string // default "overlay"
	Encrypted  bool
	Attachable bool
	Options    []string // extra raw arguments, e.g. "--ipv6"
}

// NetworkCreate returns "network create -d <driver> [...] <name>".
func NetworkCreate(name string, opts NetworkOptions) []string {
	driver := opts.Driver
	if driver == "" {
		driver = "overlay"
	}
	args := []string{"network", "create", "-d", driver}
	if opts.Attachable {
		args = append(args, "--attachable")
	}
	if opts.Encrypted {
		args = append(args, "--opt", "encrypted")
	}
	args = append(args, opts.Options...)
	return append(args, name)
}

// NetworkRemove returns "network rm <name>".
func NetworkRemove(name string) []string {
	return []string{"network", "rm", name}
}

// ConfigCreate returns "config create <name> <file>".
func ConfigCreate(name, file string) []string {
	return []string{"config", "create", name, file}
}

// ConfigRemove returns "config rm <name>".
func ConfigRemove(name string) []string {
	return []string{"config", "rm", name}
}

// SecretCreate returns "secret create <name> <file>".
func SecretCreate(name, file string) []string {
	return []string{"secret", "create", name, file}
}

// SecretRemove returns "secret rm <name>".
func SecretRemove(name string) []string {
	return []string{"secret", "rm", name}
}

// VolumeCreate returns "volume create [-d driver] <name>".
func VolumeCreate(name, driver string) []string {
	if driver == "" {
		return []string{"volume", "create", name}
	}
	return []string{"volume", "create", "-d", driver, name}
}

// VolumeRemove returns "volume rm <name>".
func VolumeRemove(name string) []string {
	return []string{"volume", "rm", name}
}

// StackDeploy returns "stack deploy -c <file> [--with-registry-auth] <stack>".
func StackDeploy(file, stack string, withRegistryAuth bool) []string {
	args := []string{"stack", "deploy", "-c", file}
	if withRegistryAuth {
		args = append(args, "--with-registry-auth")
	}
	return append(args, stack)
}

// StackRemove returns "stack rm <stack>".
func StackRemove(stack string) []string {
	return []string{"stack", "rm", stack}
}

// ServiceReplicas lists services matching name with their replica counts,
// one "<name> <current>/<desired>" line per service.
func ServiceReplicas(name string) []string {
	return []string{"service", "ls", "--filter", "name=" + name, "--format", "{{.Name}} {{.Replicas}}"}
}
