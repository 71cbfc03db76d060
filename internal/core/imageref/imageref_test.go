package imageref

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDigest = "sha256:4c0fdaa8b6341bfdeca5f18f7837462c80cff90527ee35ef185571e1c327beac"

// =============================================================================
// RewriteTag Tests
// =============================================================================

func TestRewriteTag(t *testing.T) {
	tests := []struct {
		name     string
		ref      string
		tag      string
		expected string
	}{
		{"tagged repo", "my_repo/my.service:tag", "1.0.0", "my_repo/my.service:1.0.0"},
		{"untagged", "test.image", "1.0.0", "test.image:1.0.0"},
		{"registry port untagged", "registry:5000/my.service", "1.0.0", "registry:5000/my.service:1.0.0"},
		{"registry port tagged", "registry:5000/my.service:dev", "2.1", "registry:5000/my.service:2.1"},
		{"official image", "nginx:latest", "1.27", "nginx:1.27"},
		{"nested path", "ghcr.io/org/team/app:sha-abc", "latest", "ghcr.io/org/team/app:latest"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RewriteTag(tt.ref, tt.tag)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestRewriteTag_DigestIsAmbiguous(t *testing.T) {
	ref := "registry:5000/my.service@" + testDigest

	_, err := RewriteTag(ref, "1.0.0")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAmbiguousReference))

	var ambErr *AmbiguousReferenceError
	require.ErrorAs(t, err, &ambErr)
	assert.Equal(t, ref, ambErr.Reference)
}

func TestRewriteTag_InvalidTag(t *testing.T) {
	_, err := RewriteTag("nginx:latest", "not a tag")
	assert.ErrorIs(t, err, ErrInvalidReference)
}

func TestRewriteTag_InvalidReference(t *testing.T) {
	_, err := RewriteTag("UPPER/Case:1", "2")
	assert.ErrorIs(t, err, ErrInvalidReference)
}

// =============================================================================
// PinDigest Tests
// =============================================================================

func TestPinDigest_FromRepoDigest(t *testing.T) {
	got, err := PinDigest("nginx:latest", "nginx@"+testDigest)
	require.NoError(t, err)
	assert.Equal(t, "nginx@"+testDigest, got)
}

func TestPinDigest_KeepsRegistryHost(t *testing.T) {
	got, err := PinDigest("registry:5000/team/app:1.2", "registry:5000/team/app@"+testDigest)
	require.NoError(t, err)
	assert.Equal(t, "registry:5000/team/app@"+testDigest, got)
}

func TestPinDigest_BareDigest(t *testing.T) {
	got, err := PinDigest("redis:7", testDigest)
	require.NoError(t, err)
	assert.Equal(t, "redis@"+testDigest, got)
}

func TestPinDigest_AlreadyPinned(t *testing.T) {
	pinned := "redis@" + testDigest
	got, err := PinDigest(pinned, pinned)
	require.NoError(t, err)
	assert.Equal(t, pinned, got)
}

func TestPinDigest_InvalidDigest(t *testing.T) {
	_, err := PinDigest("redis:7", "redis@sha256:short")
	assert.ErrorIs(t, err, ErrInvalidDigest)
}

// =============================================================================
// Helper Tests
// =============================================================================

func TestRepository(t *testing.T) {
	repo, err := Repository("registry:5000/my.service:tag")
	require.NoError(t, err)
	assert.Equal(t, "registry:5000/my.service", repo)
}

func TestTag(t *testing.T) {
	assert.Equal(t, "tag", Tag("my_repo/my.service:tag"))
	assert.Equal(t, "", Tag("registry:5000/my.service"))
	assert.Equal(t, "", Tag("not a reference"))
}

func TestHasDigest(t *testing.T) {
	assert.True(t, HasDigest("nginx@"+testDigest))
	assert.False(t, HasDigest("nginx:latest"))
}

func TestArchiveName(t *testing.T) {
	tests := []struct {
		ref      string
		expected string
	}{
		{"my_repo/my.service:tag", "my.service-tag.tar"},
		{"registry:5000/app:1.0", "app-1.0.tar"},
		{"nginx", "nginx.tar"},
		{"nginx@" + testDigest, "nginx-sha256-" + testDigest[len("sha256:"):] + ".tar"},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			assert.Equal(t, tt.expected, ArchiveName(tt.ref))
		})
	}
}
