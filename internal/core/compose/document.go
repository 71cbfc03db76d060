package compose

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Document
// =============================================================================

// Document is a loaded compose file. It keeps the full YAML node tree so
// unknown keys, comments and ${VAR} placeholders survive a load/write cycle
// byte for byte; ServiceSpec gives typed access to the parts the
// transformer works on.
type Document struct {
	Source string // file the document was loaded from, "" when merged or in-memory

	node *yaml.Node // DocumentNode
}

// Parse decodes and validates a compose document.
func Parse(source string, data []byte) (*Document, error) {
	if strings.TrimSpace(string(data)) == "" {
		return nil, NewParseError(source, "compose file is empty", ErrEmptyInput)
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, NewParseError(source, err.Error(), ErrInvalidYAML)
	}
	if node.Kind != yaml.DocumentNode || len(node.Content) == 0 {
		return nil, NewParseError(source, "compose file is empty", ErrEmptyInput)
	}

	doc := &Document{Source: source, node: &node}
	if err := doc.validateShape(); err != nil {
		return nil, err
	}
	untagMergeKeys(&node)
	doc.detachServices()
	return doc, nil
}

// LoadFile reads and parses a single compose file.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read compose file: %w", err)
	}
	return Parse(path, data)
}

// LoadFiles reads every path in order and merges them, later files
// overriding earlier ones.
func LoadFiles(paths ...string) (*Document, error) {
	docs := make([]*Document, 0, len(paths))
	for _, p := range paths {
		doc, err := LoadFile(p)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return Merge(docs...)
}

// New returns an empty document with an empty services mapping.
func New() *Document {
	root := mappingNode()
	set(root, "services", mappingNode())
	return &Document{node: &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{root}}}
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	return &Document{Source: d.Source, node: clone(d.node)}
}

// Bytes encodes the document as YAML with two-space indentation.
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(d.node); err != nil {
		return nil, fmt.Errorf("encode compose document: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode compose document: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile encodes the document to path.
func (d *Document) WriteFile(path string) error {
	data, err := d.Bytes()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write compose file: %w", err)
	}
	return nil
}

// Decode decodes the whole document into v.
func (d *Document) Decode(v any) error {
	return d.root().Decode(v)
}

func (d *Document) root() *yaml.Node {
	return d.node.Content[0]
}

// services returns the services mapping, creating it when absent.
func (d *Document) services() *yaml.Node {
	root := d.root()
	svcs := lookup(root, "services")
	if svcs == nil || isNull(svcs) {
		svcs = mappingNode()
		set(root, "services", svcs)
	}
	return resolve(svcs)
}

// detachServices gives every service written as an alias ("b: *a") its own
// copy of the anchored mapping, so a write to one service never shows up
// under another service name.
func (d *Document) detachServices() {
	svcs := resolve(lookup(d.root(), "services"))
	if svcs == nil || svcs.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(svcs.Content); i += 2 {
		if svcs.Content[i+1].Kind == yaml.AliasNode {
			detach(svcs, svcs.Content[i].Value)
		}
	}
}

// ServiceNames returns the service keys in sorted order.
func (d *Document) ServiceNames() []string {
	svcs := resolve(lookup(d.root(), "services"))
	if svcs == nil || svcs.Kind != yaml.MappingNode {
		return nil
	}
	names := make([]string, 0, len(svcs.Content)/2)
	for i := 0; i+1 < len(svcs.Content); i += 2 {
		names = append(names, svcs.Content[i].Value)
	}
	sort.Strings(names)
	return names
}

// Service returns a view of the named service.
func (d *Document) Service(name string) (*ServiceSpec, bool) {
	n := resolve(ownLookup(lookup(d.root(), "services"), name))
	if n == nil || n.Kind != yaml.MappingNode {
		return nil, false
	}
	return &ServiceSpec{Name: name, node: n}, true
}

// Services returns views of all services, sorted by name.
func (d *Document) Services() []*ServiceSpec {
	names := d.ServiceNames()
	out := make([]*ServiceSpec, 0, len(names))
	for _, name := range names {
		if svc, ok := d.Service(name); ok {
			out = append(out, svc)
		}
	}
	return out
}

// =============================================================================
// Schema Validation
// =============================================================================

func (d *Document) validateShape() error {
	root := resolve(d.root())
	if root.Kind != yaml.MappingNode {
		return d.schemaError("", root, "document root must be a mapping")
	}

	svcs := lookup(root, "services")
	if isNull(svcs) {
		return nil
	}
	svcs = resolve(svcs)
	if svcs.Kind != yaml.MappingNode {
		return d.schemaError("services", svcs, "must be a mapping of service names")
	}

	for i := 0; i+1 < len(svcs.Content); i += 2 {
		name := svcs.Content[i].Value
		field := "services." + name
		svc := resolve(svcs.Content[i+1])
		if svc.Kind != yaml.MappingNode {
			return d.schemaError(field, svc, "service must be a mapping")
		}
		for _, key := range []string{"image", "container_name"} {
			if v := lookup(svc, key); v != nil && !isNull(v) && resolve(v).Kind != yaml.ScalarNode {
				return d.schemaError(field+"."+key, v, "must be a string")
			}
		}
		if v := lookup(svc, "environment"); v != nil && !isNull(v) {
			if k := resolve(v).Kind; k != yaml.MappingNode && k != yaml.SequenceNode {
				return d.schemaError(field+".environment", v, "must be a mapping or a list of KEY=VALUE")
			}
		}
		if v := lookup(svc, "build"); v != nil && !isNull(v) {
			if k := resolve(v).Kind; k != yaml.MappingNode && k != yaml.ScalarNode {
				return d.schemaError(field+".build", v, "must be a context path or a mapping")
			}
		}
	}
	return nil
}

func (d *Document) schemaError(field string, n *yaml.Node, reason string) *SchemaError {
	return &SchemaError{Source: d.Source, Field: field, Line: n.Line, Reason: reason}
}
