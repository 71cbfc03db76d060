package compose

import (
	"os"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Variable Substitution Functions
// =============================================================================

// placeholderRegex matches "$$" escapes and ${VAR} / ${VAR:-default}
// placeholders.
// Groups:
//   - Group 1: Variable name
//   - Group 2: ":-default" suffix (optional)
//   - Group 3: Default value
var placeholderRegex = regexp.MustCompile(`\$\$|\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// Lookup resolves a variable name to its value.
type Lookup func(name string) (string, bool)

// SubstituteVariables replaces ${VAR} and ${VAR:-default} placeholders using
// lookup.
//
// Behavior:
//   - ${VAR} - replaced when lookup finds VAR, otherwise kept as-is
//   - ${VAR:-default} - replaced by the value, or by "default" when missing
//   - names in exclude are never replaced
//   - "$$" escapes are left untouched for the engine to unescape
//
// A nil lookup reads the process environment.
func SubstituteVariables(value string, lookup Lookup, exclude map[string]bool) string {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	return placeholderRegex.ReplaceAllStringFunc(value, func(match string) string {
		if match == "$$" {
			return match
		}
		sub := placeholderRegex.FindStringSubmatch(match)
		name := sub[1]
		if exclude[name] {
			return match
		}
		if val, ok := lookup(name); ok {
			return val
		}
		if sub[2] != "" {
			return sub[3]
		}
		return match
	})
}

// Placeholders returns the distinct variable names referenced by value,
// sorted.
func Placeholders(value string) []string {
	seen := make(map[string]bool)
	for _, sub := range placeholderRegex.FindAllStringSubmatch(value, -1) {
		if sub[1] != "" {
			seen[sub[1]] = true
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DocumentPlaceholders returns every variable name referenced anywhere in
// the document, sorted.
func DocumentPlaceholders(doc *Document) []string {
	seen := make(map[string]bool)
	walkScalars(doc.node, func(n *yaml.Node) {
		for _, name := range Placeholders(n.Value) {
			seen[name] = true
		}
	})
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveVariables substitutes placeholders in every string value of the
// document and returns how many values changed.
func ResolveVariables(doc *Document, lookup Lookup, exclude []string) int {
	skip := excludeSet(exclude)

	changed := 0
	walkScalars(doc.node, func(n *yaml.Node) {
		if n.Tag != "!!str" && n.Tag != "" {
			return
		}
		if v := SubstituteVariables(n.Value, lookup, skip); v != n.Value {
			n.Value = v
			changed++
		}
	})
	return changed
}

func excludeSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, name := range names {
		set[name] = true
	}
	return set
}
