package swarm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/artpar/dockbuild/internal/core/command"
	"github.com/artpar/dockbuild/internal/shell/docker"
	"github.com/artpar/dockbuild/internal/shell/terminal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager() (*Manager, *terminal.Recorder) {
	rec := terminal.NewRecorder(nil)
	return New(docker.NewClient(rec, "", nil), nil), rec
}

// =============================================================================
// Swarm Lifecycle Tests
// =============================================================================

func TestManager_Start_Initialises(t *testing.T) {
	m, rec := newTestManager()
	rec.Respond("inactive\n", nil, "info")

	require.NoError(t, m.Start(context.Background()))
	assert.Equal(t, []string{
		"docker info --format {{.Swarm.LocalNodeState}}",
		"docker swarm init",
	}, rec.Lines())
}

func TestManager_Start_AlreadyActive(t *testing.T) {
	m, rec := newTestManager()
	rec.Respond("active\n", nil, "info")

	require.NoError(t, m.Start(context.Background()))
	assert.Len(t, rec.Lines(), 1)
}

func TestManager_Start_InfoFails(t *testing.T) {
	m, rec := newTestManager()
	rec.Respond("", errors.New("daemon down"), "info")

	err := m.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read swarm state")
}

func TestManager_Leave(t *testing.T) {
	m, rec := newTestManager()

	require.NoError(t, m.Leave(context.Background(), true))
	assert.Equal(t, []string{"docker swarm leave --force"}, rec.Lines())
}

// =============================================================================
// Resource Tests
// =============================================================================

func TestManager_Networks(t *testing.T) {
	m, rec := newTestManager()
	ctx := context.Background()

	require.NoError(t, m.CreateNetwork(ctx, "backend", DefaultNetworkOptions()))
	require.NoError(t, m.CreateNetwork(ctx, "secure", command.NetworkOptions{
		Driver:    "overlay",
		Encrypted: true,
		Options:   []string{"--ipv6"},
	}))
	require.NoError(t, m.RemoveNetwork(ctx, "backend"))

	assert.Equal(t, []string{
		"docker network create -d overlay --attachable backend",
		"docker network create -d overlay --opt encrypted --ipv6 secure",
		"docker network rm backend",
	}, rec.Lines())
}

func TestManager_ConfigsSecretsVolumes(t *testing.T) {
	m, rec := newTestManager()
	ctx := context.Background()

	require.NoError(t, m.CreateConfig(ctx, "CHANGELOG.md", "changelog-config"))
	require.NoError(t, m.RemoveConfig(ctx, "changelog-config"))
	require.NoError(t, m.CreateSecret(ctx, "CHANGELOG.md", "changelog-secret"))
	require.NoError(t, m.RemoveSecret(ctx, "changelog-secret"))
	require.NoError(t, m.CreateVolume(ctx, "data", ""))
	require.NoError(t, m.CreateVolume(ctx, "data2", "local"))
	require.NoError(t, m.RemoveVolume(ctx, "data"))

	assert.Equal(t, []string{
		"docker config create changelog-config CHANGELOG.md",
		"docker config rm changelog-config",
		"docker secret create changelog-secret CHANGELOG.md",
		"docker secret rm changelog-secret",
		"docker volume create data",
		"docker volume create -d local data2",
		"docker volume rm data",
	}, rec.Lines())
}

func TestManager_CreateFailureNamesResource(t *testing.T) {
	m, rec := newTestManager()
	rec.Respond("", errors.New("exists"), "secret", "create")

	err := m.CreateSecret(context.Background(), "f", "db-password")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create secret db-password")
}

func TestManager_Stacks(t *testing.T) {
	m, rec := newTestManager()
	ctx := context.Background()

	require.NoError(t, m.DeployStack(ctx, "docker-compose.yml", "shop", true))
	require.NoError(t, m.RemoveStack(ctx, "shop"))

	assert.Equal(t, []string{
		"docker stack deploy -c docker-compose.yml --with-registry-auth shop",
		"docker stack rm shop",
	}, rec.Lines())
}

// =============================================================================
// Service State Tests
// =============================================================================

func TestParseReplicas(t *testing.T) {
	tests := []struct {
		in               string
		current, desired int
		wantErr          bool
	}{
		{"1/1", 1, 1, false},
		{"0/3", 0, 3, false},
		{"2/0", 2, 0, false},
		{"", 0, 0, true},
		{"1", 0, 0, true},
		{"a/1", 0, 0, true},
		{"1/", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			cur, des, err := ParseReplicas(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidReplicas)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.current, cur)
			assert.Equal(t, tt.desired, des)
		})
	}
}

func TestManager_ServiceRunning(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   bool
	}{
		{"all replicas", "shop_web 2/2\n", true},
		{"converging", "shop_web 1/2\n", false},
		{"scaled to zero", "shop_web 0/0\n", false},
		{"absent", "", false},
		{"prefix match only", "shop_web-admin 1/1\n", false},
		{"exact among prefixes", "shop_web-admin 0/1\nshop_web 1/1 (max 1 per node)\n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, rec := newTestManager()
			rec.Respond(tt.output, nil, "service", "ls")

			running, err := m.ServiceRunning(context.Background(), "shop_web")
			require.NoError(t, err)
			assert.Equal(t, tt.want, running)
		})
	}
}

func TestManager_ServiceRunning_BadOutput(t *testing.T) {
	m, rec := newTestManager()
	rec.Respond("shop_web ?\n", nil, "service", "ls")

	_, err := m.ServiceRunning(context.Background(), "shop_web")
	assert.ErrorIs(t, err, ErrInvalidReplicas)
}

func TestManager_WaitUntilServicesRunning(t *testing.T) {
	m, rec := newTestManager()
	rec.Respond("shop_web 1/1\n", nil, "service", "ls", "--filter", "name=shop_web")
	rec.Respond("shop_db 1/1\n", nil, "service", "ls", "--filter", "name=shop_db")

	err := m.WaitUntilServicesRunning(context.Background(), time.Second, 10*time.Millisecond, "shop_web", "shop_db")
	require.NoError(t, err)
	assert.Len(t, rec.Lines(), 2)
}

func TestManager_WaitUntilServicesRunning_Timeout(t *testing.T) {
	m, rec := newTestManager()
	rec.Respond("shop_web 1/1\n", nil, "service", "ls", "--filter", "name=shop_web")
	rec.Respond("shop_db 0/1\n", nil, "service", "ls", "--filter", "name=shop_db")

	err := m.WaitUntilServicesRunning(context.Background(), 30*time.Millisecond, 10*time.Millisecond, "shop_web", "shop_db")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrServiceTimeout)
	assert.Contains(t, err.Error(), "shop_db")
	assert.NotContains(t, err.Error(), "shop_web")
}

func TestManager_WaitUntilServicesRunning_Cancelled(t *testing.T) {
	m, rec := newTestManager()
	rec.Respond("shop_web 0/1\n", nil, "service", "ls")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.WaitUntilServicesRunning(ctx, time.Minute, 10*time.Millisecond, "shop_web")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestManager_WaitUntilServicesRunning_InvalidOptions(t *testing.T) {
	tests := []struct {
		name     string
		timeout  time.Duration
		interval time.Duration
	}{
		{"zero interval", time.Second, 0},
		{"negative interval", time.Second, -time.Millisecond},
		{"negative timeout", -time.Second, time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, rec := newTestManager()

			err := m.WaitUntilServicesRunning(context.Background(), tt.timeout, tt.interval, "shop_web")
			assert.ErrorIs(t, err, ErrInvalidWait)
			assert.Empty(t, rec.Lines(), "nothing is polled")
		})
	}
}
