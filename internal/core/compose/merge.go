package compose

import (
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Document Merger
// =============================================================================

// keyedServiceFields are service keys merged entry by entry instead of being
// replaced wholesale.
var keyedServiceFields = map[string]bool{
	"environment": true,
	"labels":      true,
}

// Merge combines docs in order. Later documents override earlier ones:
//   - services are merged per service; inside a service every key is
//     replaced wholesale except environment and labels, which are merged
//     key by key
//   - other top-level mappings (networks, volumes, secrets, configs, x-*)
//     are merged one level deep
//   - top-level scalars such as version: later wins
//
// The inputs are not modified.
func Merge(docs ...*Document) (*Document, error) {
	if len(docs) == 0 {
		return nil, ErrNoDocuments
	}

	out := docs[0].Clone()
	if len(docs) > 1 {
		out.Source = ""
	}
	for _, doc := range docs[1:] {
		mergeRoot(out.root(), doc.root())
	}
	return out, nil
}

func mergeRoot(dst, src *yaml.Node) {
	src = resolve(src)
	for i := 0; i+1 < len(src.Content); i += 2 {
		if isMergeKey(src.Content[i]) {
			setMergeKey(dst, clone(src.Content[i+1]))
			continue
		}
		key := src.Content[i].Value
		value := resolve(src.Content[i+1])

		existing := resolve(ownLookup(dst, key))
		switch {
		case existing == nil || isNull(existing):
			set(dst, key, clone(value))
		case isNull(value):
			// an empty block never erases what earlier files declared
		case key == "services":
			mergeServices(existing, value)
		case existing.Kind == yaml.MappingNode && value.Kind == yaml.MappingNode:
			mergeShallow(existing, value)
		default:
			set(dst, key, clone(value))
		}
	}
}

// mergeServices merges the services of src into dst. An aliased service in
// dst is detached before it is changed, and the overriding service is
// flattened first so the keys it inherits through "<<" take part in the
// override like explicit ones.
func mergeServices(dst, src *yaml.Node) {
	for i := 0; i+1 < len(src.Content); i += 2 {
		if isMergeKey(src.Content[i]) {
			continue
		}
		name := src.Content[i].Value
		svc := resolve(src.Content[i+1])

		existing := resolve(detach(dst, name))
		if existing == nil || existing.Kind != yaml.MappingNode || svc.Kind != yaml.MappingNode {
			set(dst, name, clone(svc))
			continue
		}
		mergeService(existing, flatten(svc))
	}
}

func mergeService(dst, src *yaml.Node) {
	for i := 0; i+1 < len(src.Content); i += 2 {
		key := src.Content[i].Value
		value := src.Content[i+1]

		existing := lookup(dst, key)
		if keyedServiceFields[key] && existing != nil && !isNull(existing) && !isNull(value) {
			merged := toMapping(existing)
			mergeShallow(merged, toMapping(value))
			set(dst, key, merged)
			continue
		}
		set(dst, key, clone(value))
	}
}

// mergeShallow copies every entry of src into dst, replacing entries with
// the same key. A merge key replaces the merge key of dst.
func mergeShallow(dst, src *yaml.Node) {
	for i := 0; i+1 < len(src.Content); i += 2 {
		if isMergeKey(src.Content[i]) {
			setMergeKey(dst, clone(src.Content[i+1]))
			continue
		}
		set(dst, src.Content[i].Value, clone(src.Content[i+1]))
	}
}

func setMergeKey(m *yaml.Node, value *yaml.Node) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if isMergeKey(m.Content[i]) {
			m.Content[i+1] = value
			return
		}
	}
	m.Content = append(m.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: "<<"}, value)
}
