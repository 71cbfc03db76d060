// Package imageref contains pure functions for manipulating container image
// references. Parsing is delegated to github.com/distribution/reference so a
// registry port is never mistaken for a tag separator.
package imageref

import (
	"errors"
	"fmt"
	"strings"

	"github.com/distribution/reference"
	"github.com/opencontainers/go-digest"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	ErrAmbiguousReference = errors.New("reference already carries a digest")
	ErrInvalidReference   = errors.New("invalid image reference")
	ErrInvalidDigest      = errors.New("invalid image digest")
)

// AmbiguousReferenceError is returned when a tag operation is requested on a
// digest-pinned reference.
type AmbiguousReferenceError struct {
	Reference string
}

func (e *AmbiguousReferenceError) Error() string {
	return fmt.Sprintf("%s: %s", e.Reference, ErrAmbiguousReference.Error())
}

func (e *AmbiguousReferenceError) Unwrap() error {
	return ErrAmbiguousReference
}

// =============================================================================
// Reference Functions
// =============================================================================

// HasDigest reports whether ref carries a content digest.
func HasDigest(ref string) bool {
	return strings.Contains(ref, "@")
}

// RewriteTag returns ref with its tag replaced by tag. An untagged reference
// gets the tag appended. Everything before the tag separator is kept as
// written, including a registry host port.
//
// Examples:
//
//	RewriteTag("my_repo/my.service:tag", "1.0.0")   // "my_repo/my.service:1.0.0"
//	RewriteTag("registry:5000/my.service", "1.0.0") // "registry:5000/my.service:1.0.0"
//	RewriteTag("app@sha256:abc...", "1.0.0")        // AmbiguousReferenceError
func RewriteTag(ref, tag string) (string, error) {
	if HasDigest(ref) {
		return "", &AmbiguousReferenceError{Reference: ref}
	}

	named, err := parseNamed(ref)
	if err != nil {
		return "", err
	}

	tagged, err := reference.WithTag(reference.TrimNamed(named), tag)
	if err != nil {
		return "", fmt.Errorf("tag %q: %w", tag, ErrInvalidReference)
	}
	return tagged.String(), nil
}

// Repository returns ref without tag or digest.
func Repository(ref string) (string, error) {
	named, err := parseNamed(ref)
	if err != nil {
		return "", err
	}
	return named.Name(), nil
}

// Tag returns the tag of ref, or "" when ref is untagged.
func Tag(ref string) string {
	named, err := parseNamed(ref)
	if err != nil {
		return ""
	}
	if tagged, ok := named.(reference.Tagged); ok {
		return tagged.Tag()
	}
	return ""
}

// PinDigest combines the repository of ref with the digest found in
// repoDigest (as reported by the engine, e.g. "nginx@sha256:...").
// A bare "sha256:..." digest is accepted as well.
func PinDigest(ref, repoDigest string) (string, error) {
	raw := repoDigest
	if idx := strings.LastIndex(raw, "@"); idx >= 0 {
		raw = raw[idx+1:]
	}
	dgst, err := digest.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%q: %w", repoDigest, ErrInvalidDigest)
	}

	named, err := parseNamed(ref)
	if err != nil {
		return "", err
	}

	canonical, err := reference.WithDigest(reference.TrimNamed(named), dgst)
	if err != nil {
		return "", fmt.Errorf("%q: %w", ref, ErrInvalidReference)
	}
	return canonical.String(), nil
}

// ArchiveName returns the file name used when saving ref to a tar archive.
// The last path segment is kept and tag/digest separators become dashes.
//
// Example:
//
//	ArchiveName("my_repo/my.service:tag") // "my.service-tag.tar"
func ArchiveName(ref string) string {
	name := ref
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	name = strings.NewReplacer("@", "-", ":", "-").Replace(name)
	return name + ".tar"
}

func parseNamed(ref string) (reference.Named, error) {
	parsed, err := reference.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", ref, ErrInvalidReference)
	}
	named, ok := parsed.(reference.Named)
	if !ok {
		return nil, fmt.Errorf("%q has no repository name: %w", ref, ErrInvalidReference)
	}
	return named, nil
}
