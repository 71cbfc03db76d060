package compose

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Fixtures
// =============================================================================

const minimalValidSpec = `
services:
  app:
    image: nginx:latest
`

const sampleSpec = `
version: "3.8"
# comment kept on round trip
services:
  my-service:
    image: my_repo/my.service:tag
    container_name: my-service
    build:
      context: .
      dockerfile: Dockerfile
      args:
        VERSION: 1.2.3
    environment:
      VAR: "${SOME_ENV_VARIABLE}"
  nginx-service:
    image: nginx
    environment:
      - MODE=proxy
      - PASSTHROUGH
    labels:
      owner: example
x-custom:
  keep: me
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// =============================================================================
// Parse Tests
// =============================================================================

func TestParse_Minimal(t *testing.T) {
	doc, err := Parse("", []byte(minimalValidSpec))
	require.NoError(t, err)

	assert.Equal(t, []string{"app"}, doc.ServiceNames())
	svc, ok := doc.Service("app")
	require.True(t, ok)
	assert.Equal(t, "nginx:latest", svc.Image())
	assert.Empty(t, svc.ContainerName())
	assert.False(t, svc.HasBuild())
}

func TestParse_ServiceViews(t *testing.T) {
	doc, err := Parse("docker-compose.yml", []byte(sampleSpec))
	require.NoError(t, err)

	assert.Equal(t, []string{"my-service", "nginx-service"}, doc.ServiceNames())

	svc, ok := doc.Service("my-service")
	require.True(t, ok)
	assert.Equal(t, "my-service", svc.ContainerName())
	require.NotNil(t, svc.Build())
	assert.Equal(t, ".", svc.Build().Context)
	assert.Equal(t, "Dockerfile", svc.Build().Dockerfile)
	assert.Equal(t, map[string]string{"VERSION": "1.2.3"}, svc.Build().Args)
	assert.Equal(t, map[string]string{"VAR": "${SOME_ENV_VARIABLE}"}, svc.Environment())

	nginx, ok := doc.Service("nginx-service")
	require.True(t, ok)
	assert.Equal(t, map[string]string{"MODE": "proxy", "PASSTHROUGH": ""}, nginx.Environment())
	assert.Equal(t, map[string]string{"owner": "example"}, nginx.Labels())
	assert.Nil(t, nginx.Build())
}

func TestParse_ShortBuild(t *testing.T) {
	doc, err := Parse("", []byte(`
services:
  app:
    build: ./app
`))
	require.NoError(t, err)

	svc, _ := doc.Service("app")
	require.NotNil(t, svc.Build())
	assert.Equal(t, "./app", svc.Build().Context)
	assert.Empty(t, svc.Image())
}

func TestParse_EmptyInput(t *testing.T) {
	for _, input := range []string{"", "   \n\t"} {
		_, err := Parse("empty.yml", []byte(input))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrEmptyInput))
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse("broken.yml", []byte("services:\n  app: [unclosed"))
	require.Error(t, err)

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "broken.yml", parseErr.Source)
	assert.ErrorIs(t, err, ErrInvalidYAML)
}

func TestParse_SchemaViolations(t *testing.T) {
	tests := []struct {
		name  string
		input string
		field string
	}{
		{"root is a list", "- a\n- b\n", ""},
		{"services is a list", "services:\n  - web\n", "services"},
		{"service is a scalar", "services:\n  web: nginx\n", "services.web"},
		{"image is a mapping", "services:\n  web:\n    image:\n      name: nginx\n", "services.web.image"},
		{"environment is a scalar", "services:\n  web:\n    image: nginx\n    environment: A=b\n", "services.web.environment"},
		{"build is a list", "services:\n  web:\n    build:\n      - .\n", "services.web.build"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("compose.yml", []byte(tt.input))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidShape)

			var schemaErr *SchemaError
			require.ErrorAs(t, err, &schemaErr)
			assert.Equal(t, tt.field, schemaErr.Field)
			assert.Greater(t, schemaErr.Line, 0)
		})
	}
}

func TestParse_NoServicesKey(t *testing.T) {
	doc, err := Parse("", []byte("networks:\n  default:\n"))
	require.NoError(t, err)
	assert.Empty(t, doc.ServiceNames())
}

// =============================================================================
// Round Trip Tests
// =============================================================================

func TestBytes_PreservesUnknownKeysAndPlaceholders(t *testing.T) {
	doc, err := Parse("", []byte(sampleSpec))
	require.NoError(t, err)

	out, err := doc.Bytes()
	require.NoError(t, err)

	text := string(out)
	assert.Contains(t, text, `VAR: "${SOME_ENV_VARIABLE}"`)
	assert.Contains(t, text, "# comment kept on round trip")
	assert.Contains(t, text, "x-custom:")
	assert.Contains(t, text, "keep: me")
	assert.Contains(t, text, `version: "3.8"`)
}

func TestWriteFile_LoadFile(t *testing.T) {
	dir := t.TempDir()
	doc, err := Parse("", []byte(sampleSpec))
	require.NoError(t, err)

	path := filepath.Join(dir, "out.yml")
	require.NoError(t, doc.WriteFile(path))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, loaded.Source)
	assert.Equal(t, doc.ServiceNames(), loaded.ServiceNames())
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestClone_IsIndependent(t *testing.T) {
	doc, err := Parse("", []byte(minimalValidSpec))
	require.NoError(t, err)

	cp := doc.Clone()
	svc, _ := cp.Service("app")
	svc.SetImage("nginx:1.27")

	orig, _ := doc.Service("app")
	assert.Equal(t, "nginx:latest", orig.Image())
}

func TestNew_IsEmpty(t *testing.T) {
	doc := New()
	assert.Empty(t, doc.ServiceNames())

	out, err := doc.Bytes()
	require.NoError(t, err)
	assert.Contains(t, string(out), "services: {}")
}

func TestClone_AliasesPointIntoCopy(t *testing.T) {
	doc, err := Parse("", []byte(`
x-common: &common
  image: nginx:latest
services:
  web:
    <<: *common
`))
	require.NoError(t, err)

	cp := doc.Clone()
	web, _ := cp.Service("web")
	assert.Equal(t, "nginx:latest", web.Image())

	out, err := cp.Bytes()
	require.NoError(t, err)
	assert.Contains(t, string(out), "<<: *common")
	assert.NotContains(t, string(out), "!!merge")
}
