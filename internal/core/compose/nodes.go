package compose

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// YAML Node Helpers
// =============================================================================

// resolve follows alias nodes to the anchored node.
func resolve(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	return n
}

func isNull(n *yaml.Node) bool {
	n = resolve(n)
	return n == nil || (n.Kind == yaml.ScalarNode && n.Tag == "!!null")
}

// maxMergeDepth bounds how far lookup follows "<<" merge keys, so a
// self-referencing anchor cannot recurse forever.
const maxMergeDepth = 16

// lookup returns the value stored under key in mapping m, or nil. Keys
// inherited through "<<" merge keys are found too; an explicit key always
// wins over a merged one.
func lookup(m *yaml.Node, key string) *yaml.Node {
	return lookupDepth(m, key, 0)
}

func lookupDepth(m *yaml.Node, key string, depth int) *yaml.Node {
	m = resolve(m)
	if m == nil || m.Kind != yaml.MappingNode || depth > maxMergeDepth {
		return nil
	}
	if v := ownLookup(m, key); v != nil {
		return v
	}
	for _, src := range mergeSources(m) {
		if v := lookupDepth(src, key, depth+1); v != nil {
			return v
		}
	}
	return nil
}

// ownLookup returns the value of an explicit key of m, ignoring merge keys.
func ownLookup(m *yaml.Node, key string) *yaml.Node {
	m = resolve(m)
	if m == nil || m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if !isMergeKey(m.Content[i]) && m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

// isMergeKey reports whether k is a "<<" merge key. A quoted "<<" is an
// ordinary string key.
func isMergeKey(k *yaml.Node) bool {
	if k.Kind != yaml.ScalarNode || k.Value != "<<" {
		return false
	}
	return k.Tag == "!!merge" || (k.Tag == "" && k.Style == 0)
}

// mergeSources returns the mappings merged into m, in precedence order.
// The value of a merge key is one mapping or a sequence of them.
func mergeSources(m *yaml.Node) []*yaml.Node {
	var out []*yaml.Node
	for i := 0; i+1 < len(m.Content); i += 2 {
		if !isMergeKey(m.Content[i]) {
			continue
		}
		v := resolve(m.Content[i+1])
		switch {
		case v == nil:
		case v.Kind == yaml.MappingNode:
			out = append(out, v)
		case v.Kind == yaml.SequenceNode:
			for _, item := range v.Content {
				if item = resolve(item); item != nil && item.Kind == yaml.MappingNode {
					out = append(out, item)
				}
			}
		}
	}
	return out
}

// untagMergeKeys clears the explicit tag the parser puts on merge keys,
// which the encoder would otherwise print as "!!merge <<".
func untagMergeKeys(n *yaml.Node) {
	if n == nil || n.Kind == yaml.AliasNode {
		return
	}
	if n.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(n.Content); i += 2 {
			if isMergeKey(n.Content[i]) {
				n.Content[i].Tag = ""
			}
		}
	}
	for _, c := range n.Content {
		untagMergeKeys(c)
	}
}

// set stores value under key in mapping m, replacing an existing entry in
// place so key order is preserved. A key m only inherits through a merge key
// is added as an explicit key, which overrides the merged one.
func set(m *yaml.Node, key string, value *yaml.Node) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if !isMergeKey(m.Content[i]) && m.Content[i].Value == key {
			m.Content[i+1] = value
			return
		}
	}
	m.Content = append(m.Content, stringNode(key), value)
}

// scalarValue returns the string value of a scalar node, or "".
func scalarValue(n *yaml.Node) string {
	n = resolve(n)
	if n == nil || n.Kind != yaml.ScalarNode || n.Tag == "!!null" {
		return ""
	}
	return n.Value
}

// setScalar overwrites the value of an explicit scalar entry, keeping its
// quoting style, or stores a new scalar under key. Inherited and aliased
// values are never written through, since other nodes share them.
func setScalar(m *yaml.Node, key, value string) {
	if n := ownLookup(m, key); n != nil && n.Kind == yaml.ScalarNode && n.Tag != "!!null" {
		n.Value = value
		n.Tag = "!!str"
		return
	}
	set(m, key, stringNode(value))
}

func stringNode(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}

func nullNode() *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: ""}
}

func mappingNode() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
}

// clone deep-copies a node tree. Aliases whose anchor is inside the copied
// tree point at the copied anchor; aliases to anchors outside it are
// replaced by a copy of their target, so the result never shares nodes with
// the source.
func clone(n *yaml.Node) *yaml.Node {
	return cloneInto(n, map[*yaml.Node]*yaml.Node{})
}

func cloneInto(n *yaml.Node, copied map[*yaml.Node]*yaml.Node) *yaml.Node {
	if n == nil {
		return nil
	}
	if n.Kind == yaml.AliasNode {
		if target, ok := copied[n.Alias]; ok {
			c := *n
			c.Alias = target
			return &c
		}
		inlined := cloneInto(n.Alias, copied)
		if inlined != nil {
			inlined.Anchor = ""
		}
		return inlined
	}

	c := *n
	copied[n] = &c
	if len(n.Content) > 0 {
		c.Content = make([]*yaml.Node, len(n.Content))
		for i, child := range n.Content {
			c.Content[i] = cloneInto(child, copied)
		}
	}
	return &c
}

// detach makes the value stored under key in m a node owned by m alone.
// An alias is replaced by an unanchored copy of its target and returned;
// other values are returned as they are.
func detach(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if isMergeKey(m.Content[i]) || m.Content[i].Value != key {
			continue
		}
		v := m.Content[i+1]
		if v.Kind != yaml.AliasNode {
			return v
		}
		owned := clone(v)
		owned.Anchor = ""
		m.Content[i+1] = owned
		return owned
	}
	return nil
}

// flatten returns a copy of mapping n with its merge keys expanded, so every
// inherited entry becomes an explicit one.
func flatten(n *yaml.Node) *yaml.Node {
	return flattenDepth(n, 0)
}

func flattenDepth(n *yaml.Node, depth int) *yaml.Node {
	out := mappingNode()
	n = resolve(n)
	if n == nil || n.Kind != yaml.MappingNode || depth > maxMergeDepth {
		return out
	}
	out.Line, out.Column = n.Line, n.Column

	sources := mergeSources(n)
	for i := len(sources) - 1; i >= 0; i-- {
		mergeShallow(out, flattenDepth(sources[i], depth+1))
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if !isMergeKey(n.Content[i]) {
			set(out, n.Content[i].Value, clone(n.Content[i+1]))
		}
	}
	return out
}

// toMapping normalises a compose key/value block to mapping form.
// Compose allows both
//
//	environment:
//	  KEY: value
//
// and
//
//	environment:
//	  - KEY=value
//
// A list entry without "=" becomes a null value (pass-through from the host).
func toMapping(n *yaml.Node) *yaml.Node {
	n = resolve(n)
	switch {
	case n == nil || isNull(n):
		return mappingNode()
	case n.Kind == yaml.MappingNode:
		return flatten(n)
	case n.Kind == yaml.SequenceNode:
		m := mappingNode()
		m.Line, m.Column = n.Line, n.Column
		for _, item := range n.Content {
			entry := scalarValue(item)
			key, value, found := strings.Cut(entry, "=")
			if found {
				v := stringNode(value)
				v.Style = resolve(item).Style
				set(m, key, v)
			} else {
				set(m, key, nullNode())
			}
		}
		return m
	default:
		return clone(n)
	}
}

// walkScalars calls fn for every scalar value node under n. Mapping keys
// are skipped.
func walkScalars(n *yaml.Node, fn func(*yaml.Node)) {
	if n == nil {
		return
	}
	switch n.Kind {
	case yaml.DocumentNode, yaml.SequenceNode:
		for _, c := range n.Content {
			walkScalars(c, fn)
		}
	case yaml.MappingNode:
		for i := 1; i < len(n.Content); i += 2 {
			walkScalars(n.Content[i], fn)
		}
	case yaml.ScalarNode:
		fn(n)
	}
}
