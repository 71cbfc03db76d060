package compose

import (
	"gopkg.in/yaml.v3"
)

// =============================================================================
// ServiceSpec - Typed View Over a Service Node
// =============================================================================

// ServiceSpec is a view of one entry under services. Setters write through
// to the owning Document.
type ServiceSpec struct {
	Name string

	node *yaml.Node
}

// BuildConfig represents the build section of a service.
type BuildConfig struct {
	Context    string
	Dockerfile string
	Args       map[string]string
}

// Image returns the image reference, or "" when the service has none.
func (s *ServiceSpec) Image() string {
	return scalarValue(lookup(s.node, "image"))
}

// SetImage replaces the image reference.
func (s *ServiceSpec) SetImage(ref string) {
	setScalar(s.node, "image", ref)
}

// ContainerName returns the explicit container name, or "".
func (s *ServiceSpec) ContainerName() string {
	return scalarValue(lookup(s.node, "container_name"))
}

// SetContainerName sets container_name.
func (s *ServiceSpec) SetContainerName(name string) {
	setScalar(s.node, "container_name", name)
}

// HasBuild reports whether the service declares a build section.
func (s *ServiceSpec) HasBuild() bool {
	return !isNull(lookup(s.node, "build"))
}

// Build returns the build section, or nil. The short form
// "build: ./dir" is expanded to a context.
func (s *ServiceSpec) Build() *BuildConfig {
	n := resolve(lookup(s.node, "build"))
	if isNull(n) {
		return nil
	}
	if n.Kind == yaml.ScalarNode {
		return &BuildConfig{Context: n.Value}
	}

	cfg := &BuildConfig{
		Context:    scalarValue(lookup(n, "context")),
		Dockerfile: scalarValue(lookup(n, "dockerfile")),
	}
	if args := lookup(n, "args"); !isNull(args) {
		cfg.Args = stringMap(toMapping(args))
	}
	return cfg
}

// Environment returns the environment block in mapping form. Entries
// without a value map to "".
func (s *ServiceSpec) Environment() map[string]string {
	env := lookup(s.node, "environment")
	if isNull(env) {
		return map[string]string{}
	}
	return stringMap(toMapping(env))
}

// Labels returns the labels block in mapping form.
func (s *ServiceSpec) Labels() map[string]string {
	labels := lookup(s.node, "labels")
	if isNull(labels) {
		return map[string]string{}
	}
	return stringMap(toMapping(labels))
}

func stringMap(m *yaml.Node) map[string]string {
	out := make(map[string]string, len(m.Content)/2)
	for i := 0; i+1 < len(m.Content); i += 2 {
		out[m.Content[i].Value] = scalarValue(m.Content[i+1])
	}
	return out
}
