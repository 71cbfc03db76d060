// Package swarm manages a single-node Docker swarm: the swarm itself, its
// networks, configs, secrets and volumes, and stack deployments.
package swarm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/artpar/dockbuild/internal/core/command"
	"github.com/artpar/dockbuild/internal/shell/docker"
)

var (
	ErrServiceTimeout  = errors.New("timed out waiting for services")
	ErrInvalidReplicas = errors.New("invalid replica count")
	ErrInvalidWait     = errors.New("invalid wait options")
)

// StateActive is the local node state of a swarm member.
const StateActive = "active"

// Manager runs swarm operations through the engine CLI.
type Manager struct {
	docker *docker.Client
	logger *slog.Logger
}

// New creates a Manager.
func New(client *docker.Client, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Manager{docker: client, logger: logger}
}

// =============================================================================
// Swarm Lifecycle
// =============================================================================

// Start initialises a swarm unless this node already belongs to one.
func (m *Manager) Start(ctx context.Context) error {
	out, err := m.docker.ExecOutput(ctx, command.Info(command.FormatSwarmState))
	if err != nil {
		return fmt.Errorf("read swarm state: %w", err)
	}
	if strings.TrimSpace(string(out)) == StateActive {
		m.logger.Info("swarm already active")
		return nil
	}

	if err := m.docker.Exec(ctx, command.SwarmInit()); err != nil {
		return fmt.Errorf("init swarm: %w", err)
	}
	m.logger.Info("swarm initialised")
	return nil
}

// Leave makes this node leave the swarm.
func (m *Manager) Leave(ctx context.Context, force bool) error {
	if err := m.docker.Exec(ctx, command.SwarmLeave(force)); err != nil {
		return fmt.Errorf("leave swarm: %w", err)
	}
	return nil
}

// =============================================================================
// Networks, Configs, Secrets, Volumes
// =============================================================================

// DefaultNetworkOptions returns an attachable overlay network.
func DefaultNetworkOptions() command.NetworkOptions {
	return command.NetworkOptions{Driver: "overlay", Attachable: true}
}

// CreateNetwork creates a swarm network.
func (m *Manager) CreateNetwork(ctx context.Context, name string, opts command.NetworkOptions) error {
	return m.run(ctx, "create network", name, command.NetworkCreate(name, opts))
}

// RemoveNetwork removes a swarm network.
func (m *Manager) RemoveNetwork(ctx context.Context, name string) error {
	return m.run(ctx, "remove network", name, command.NetworkRemove(name))
}

// CreateConfig creates a swarm config from the contents of file.
func (m *Manager) CreateConfig(ctx context.Context, file, name string) error {
	return m.run(ctx, "create config", name, command.ConfigCreate(name, file))
}

// RemoveConfig removes a swarm config.
func (m *Manager) RemoveConfig(ctx context.Context, name string) error {
	return m.run(ctx, "remove config", name, command.ConfigRemove(name))
}

// CreateSecret creates a swarm secret from the contents of file.
func (m *Manager) CreateSecret(ctx context.Context, file, name string) error {
	return m.run(ctx, "create secret", name, command.SecretCreate(name, file))
}

// RemoveSecret removes a swarm secret.
func (m *Manager) RemoveSecret(ctx context.Context, name string) error {
	return m.run(ctx, "remove secret", name, command.SecretRemove(name))
}

// CreateVolume creates a volume; an empty driver uses the engine default.
func (m *Manager) CreateVolume(ctx context.Context, name, driver string) error {
	return m.run(ctx, "create volume", name, command.VolumeCreate(name, driver))
}

// RemoveVolume removes a volume.
func (m *Manager) RemoveVolume(ctx context.Context, name string) error {
	return m.run(ctx, "remove volume", name, command.VolumeRemove(name))
}

// =============================================================================
// Stacks
// =============================================================================

// DeployStack deploys file as stack.
func (m *Manager) DeployStack(ctx context.Context, file, stack string, withRegistryAuth bool) error {
	return m.run(ctx, "deploy stack", stack, command.StackDeploy(file, stack, withRegistryAuth))
}

// RemoveStack removes stack and its services.
func (m *Manager) RemoveStack(ctx context.Context, stack string) error {
	return m.run(ctx, "remove stack", stack, command.StackRemove(stack))
}

// =============================================================================
// Service State
// =============================================================================

// ServiceRunning reports whether every desired replica of service is
// running. A service scaled to zero or not yet created is not running.
func (m *Manager) ServiceRunning(ctx context.Context, service string) (bool, error) {
	out, err := m.docker.ExecOutput(ctx, command.ServiceReplicas(service))
	if err != nil {
		return false, fmt.Errorf("list service %s: %w", service, err)
	}

	// The name filter matches prefixes, so pick the exact line.
	for _, line := range strings.Split(string(out), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 || fields[0] != service {
			continue
		}
		current, desired, err := ParseReplicas(fields[1])
		if err != nil {
			return false, fmt.Errorf("service %s: %w", service, err)
		}
		return desired > 0 && current == desired, nil
	}
	return false, nil
}

// WaitUntilServicesRunning polls until every service is running. It fails
// with ErrServiceTimeout naming the services still pending once timeout
// elapses. interval must be positive and timeout must not be negative.
func (m *Manager) WaitUntilServicesRunning(ctx context.Context, timeout, interval time.Duration, services ...string) error {
	if interval <= 0 {
		return fmt.Errorf("%w: interval must be positive, got %s", ErrInvalidWait, interval)
	}
	if timeout < 0 {
		return fmt.Errorf("%w: timeout must not be negative, got %s", ErrInvalidWait, timeout)
	}

	deadline := time.Now().Add(timeout)
	pending := append([]string(nil), services...)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		var still []string
		for _, svc := range pending {
			running, err := m.ServiceRunning(ctx, svc)
			if err != nil {
				return err
			}
			if !running {
				still = append(still, svc)
			}
		}
		pending = still
		if len(pending) == 0 {
			m.logger.Info("services running", "services", services)
			return nil
		}

		if time.Now().After(deadline) {
			sort.Strings(pending)
			return fmt.Errorf("%w: %s", ErrServiceTimeout, strings.Join(pending, ", "))
		}
		m.logger.Debug("waiting for services", "pending", pending)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ParseReplicas parses one "current/desired" replica column of
// "docker service ls".
func ParseReplicas(s string) (current, desired int, err error) {
	cur, des, ok := strings.Cut(s, "/")
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidReplicas, s)
	}
	if current, err = strconv.Atoi(cur); err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidReplicas, s)
	}
	if desired, err = strconv.Atoi(des); err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidReplicas, s)
	}
	return current, desired, nil
}

func (m *Manager) run(ctx context.Context, op, name string, args []string) error {
	if err := m.docker.Exec(ctx, args); err != nil {
		return fmt.Errorf("%s %s: %w", op, name, err)
	}
	m.logger.Info(op, "name", name)
	return nil
}
