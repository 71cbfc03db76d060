package docker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/dockbuild/internal/core/compose"
)

// =============================================================================
// DryRunInspector Tests
// =============================================================================

func TestDryRunInspector_RepoDigestIsSkipped(t *testing.T) {
	c, rec := newTestClient()
	d := NewDryRunInspector(c)

	_, err := d.RepoDigest(context.Background(), "nginx:latest")
	assert.ErrorIs(t, err, compose.ErrLookupSkipped)
	assert.Equal(t, []string{"docker image inspect --format {{json .RepoDigests}} nginx:latest"}, rec.Lines())
}

func TestDryRunInspector_ContainerState(t *testing.T) {
	c, rec := newTestClient()
	d := NewDryRunInspector(c)

	code, err := d.ContainerExitCode(context.Background(), "shop_api")
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	running, err := d.ContainerRunning(context.Background(), "shop_api")
	require.NoError(t, err)
	assert.False(t, running)
	assert.Len(t, rec.Lines(), 2)
}

func TestDryRunInspector_ResolveDigestsDefersEveryService(t *testing.T) {
	c, _ := newTestClient()
	doc, err := compose.Parse("", []byte("services:\n  web:\n    image: nginx:latest\n  db:\n    image: postgres:16\n"))
	require.NoError(t, err)

	report, err := compose.ResolveDigests(context.Background(), doc, NewDryRunInspector(c), compose.ResolveOptions{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"db", "web"}, report.Deferred)
	assert.Empty(t, report.Failed)
}
