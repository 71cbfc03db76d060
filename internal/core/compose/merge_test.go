package compose

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, content string) *Document {
	t.Helper()
	doc, err := Parse("", []byte(content))
	require.NoError(t, err)
	return doc
}

// =============================================================================
// Merge Tests
// =============================================================================

func TestMerge_LaterImageWins(t *testing.T) {
	a := mustParse(t, "services:\n  a:\n    image: \"x:1\"\n")
	b := mustParse(t, "services:\n  a:\n    image: \"x:2\"\n")

	merged, err := Merge(a, b)
	require.NoError(t, err)

	assert.Equal(t, []string{"a"}, merged.ServiceNames())
	svc, _ := merged.Service("a")
	assert.Equal(t, "x:2", svc.Image())
}

func TestMerge_DoesNotModifyInputs(t *testing.T) {
	a := mustParse(t, "services:\n  a:\n    image: x:1\n")
	b := mustParse(t, "services:\n  a:\n    image: x:2\n  b:\n    image: y:1\n")

	_, err := Merge(a, b)
	require.NoError(t, err)

	assert.Equal(t, []string{"a"}, a.ServiceNames())
	svc, _ := a.Service("a")
	assert.Equal(t, "x:1", svc.Image())
}

func TestMerge_AliasedServiceOverride(t *testing.T) {
	a := mustParse(t, `
services:
  a: &base
    image: x:1
  b: *base
`)
	b := mustParse(t, "services:\n  b:\n    image: y:2\n")
	before, err := a.Bytes()
	require.NoError(t, err)

	merged, err := Merge(a, b)
	require.NoError(t, err)

	svcA, _ := merged.Service("a")
	svcB, _ := merged.Service("b")
	assert.Equal(t, "x:1", svcA.Image())
	assert.Equal(t, "y:2", svcB.Image())

	after, err := a.Bytes()
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after), "inputs are not modified")
}

func TestMerge_OverrideInheritsThroughMergeKey(t *testing.T) {
	a := mustParse(t, "services:\n  web:\n    image: nginx:1.25\n    restart: \"no\"\n")
	b := mustParse(t, `
x-common: &common
  image: nginx:1.27
  environment:
    MODE: prod
services:
  web:
    <<: *common
`)

	merged, err := Merge(a, b)
	require.NoError(t, err)

	web, _ := merged.Service("web")
	assert.Equal(t, "nginx:1.27", web.Image())
	assert.Equal(t, map[string]string{"MODE": "prod"}, web.Environment())

	out, err := merged.Bytes()
	require.NoError(t, err)
	assert.Contains(t, string(out), `restart: "no"`)
	assert.NotContains(t, string(out), "!!merge")
}

func TestMerge_AddsNewServices(t *testing.T) {
	a := mustParse(t, "services:\n  web:\n    image: nginx\n")
	b := mustParse(t, "services:\n  db:\n    image: postgres:15\n")

	merged, err := Merge(a, b)
	require.NoError(t, err)
	assert.Equal(t, []string{"db", "web"}, merged.ServiceNames())
}

func TestMerge_ServiceLevelIsShallow(t *testing.T) {
	a := mustParse(t, `
services:
  app:
    image: app:1
    build:
      context: ./app
      dockerfile: Dockerfile.dev
    command: ["serve"]
`)
	b := mustParse(t, `
services:
  app:
    build:
      context: ./other
`)

	merged, err := Merge(a, b)
	require.NoError(t, err)

	svc, _ := merged.Service("app")
	assert.Equal(t, "app:1", svc.Image())
	require.NotNil(t, svc.Build())
	assert.Equal(t, "./other", svc.Build().Context)
	assert.Empty(t, svc.Build().Dockerfile, "build is replaced wholesale")
}

func TestMerge_EnvironmentMergedKeyByKey(t *testing.T) {
	a := mustParse(t, `
services:
  app:
    image: app:1
    environment:
      - A=1
      - B=2
`)
	b := mustParse(t, `
services:
  app:
    environment:
      B: "20"
      C: ${FROM_HOST}
`)

	merged, err := Merge(a, b)
	require.NoError(t, err)

	svc, _ := merged.Service("app")
	assert.Equal(t, map[string]string{"A": "1", "B": "20", "C": "${FROM_HOST}"}, svc.Environment())
}

func TestMerge_LabelsMergedKeyByKey(t *testing.T) {
	a := mustParse(t, "services:\n  app:\n    image: a\n    labels:\n      one: \"1\"\n")
	b := mustParse(t, "services:\n  app:\n    labels:\n      two: \"2\"\n")

	merged, err := Merge(a, b)
	require.NoError(t, err)

	svc, _ := merged.Service("app")
	assert.Equal(t, map[string]string{"one": "1", "two": "2"}, svc.Labels())
}

func TestMerge_TopLevelMappingsOneLevelDeep(t *testing.T) {
	a := mustParse(t, `
services:
  app:
    image: a
networks:
  front:
    driver: bridge
  back:
    internal: true
`)
	b := mustParse(t, `
networks:
  front:
    driver: overlay
volumes:
  data:
`)

	merged, err := Merge(a, b)
	require.NoError(t, err)

	var out struct {
		Networks map[string]map[string]any `yaml:"networks"`
		Volumes  map[string]any            `yaml:"volumes"`
	}
	require.NoError(t, merged.Decode(&out))

	assert.Equal(t, "overlay", out.Networks["front"]["driver"])
	assert.Equal(t, true, out.Networks["back"]["internal"])
	assert.Contains(t, out.Volumes, "data")
}

func TestMerge_EmptyBlockKeepsEarlier(t *testing.T) {
	a := mustParse(t, "services:\n  app:\n    image: a\n")
	b := mustParse(t, "services:\nversion: \"3\"\n")

	merged, err := Merge(a, b)
	require.NoError(t, err)
	assert.Equal(t, []string{"app"}, merged.ServiceNames())
}

func TestMerge_SingleDocumentKeepsSource(t *testing.T) {
	a, err := Parse("base.yml", []byte(minimalValidSpec))
	require.NoError(t, err)

	merged, err := Merge(a)
	require.NoError(t, err)
	assert.Equal(t, "base.yml", merged.Source)
}

func TestMerge_NoDocuments(t *testing.T) {
	_, err := Merge()
	assert.ErrorIs(t, err, ErrNoDocuments)
}

func TestLoadFiles_Overrides(t *testing.T) {
	dir := t.TempDir()
	base := writeFile(t, dir, "docker-compose.yml", sampleSpec)
	override := writeFile(t, dir, "docker-compose.override.yml", `
services:
  nginx-service:
    image: nginx:1.27
    environment:
      MODE: direct
`)

	merged, err := LoadFiles(base, override)
	require.NoError(t, err)

	svc, _ := merged.Service("nginx-service")
	assert.Equal(t, "nginx:1.27", svc.Image())
	assert.Equal(t, map[string]string{"MODE": "direct", "PASSTHROUGH": ""}, svc.Environment())
}

func TestLoadFiles_ParseErrorNamesFile(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.yml", minimalValidSpec)
	bad := writeFile(t, dir, "bad.yml", "services: [")

	_, err := LoadFiles(good, bad)
	require.Error(t, err)

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, bad, parseErr.Source)
}
