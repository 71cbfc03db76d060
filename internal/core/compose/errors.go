// Package compose contains the compose document transformer: loading,
// merging and rewriting compose files. Apart from the injected
// ImageInspector, everything here is a pure function over an in-memory
// document.
package compose

import (
	"errors"
	"fmt"
	"strings"

	"github.com/artpar/dockbuild/internal/core/imageref"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// Input errors
	ErrEmptyInput   = errors.New("compose file is empty")
	ErrInvalidYAML  = errors.New("invalid YAML syntax")
	ErrNoDocuments  = errors.New("no compose documents given")
	ErrInvalidShape = errors.New("document does not match the compose schema")

	// Resolution errors
	ErrUnresolvedImage = errors.New("image digest could not be resolved")
	ErrPartialFailure  = errors.New("operation partially failed")

	// ErrLookupSkipped is returned by an ImageInspector that only reports
	// the lookups it would run, as in a dry run.
	ErrLookupSkipped = errors.New("image lookup skipped")

	// ErrAmbiguousReference is re-exported so callers of the tag rewriter
	// need only this package.
	ErrAmbiguousReference = imageref.ErrAmbiguousReference

	// Validation errors reported by the compose-go loader
	ErrInvalidProject = errors.New("compose project failed validation")
)

// ParseError wraps errors with context about which file failed to parse.
type ParseError struct {
	Source  string // file path, "" for in-memory input
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("%s: %s", e.Source, e.Message)
	}
	return e.Message
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a new ParseError.
func NewParseError(source, message string, err error) *ParseError {
	return &ParseError{
		Source:  source,
		Message: message,
		Err:     err,
	}
}

// SchemaError reports a well-formed YAML document whose shape does not match
// the compose service schema.
type SchemaError struct {
	Source string
	Field  string // e.g., "services.web.environment"
	Line   int
	Reason string
}

func (e *SchemaError) Error() string {
	var b strings.Builder
	if e.Source != "" {
		b.WriteString(e.Source)
		if e.Line > 0 {
			fmt.Fprintf(&b, ":%d", e.Line)
		}
		b.WriteString(": ")
	}
	if e.Field != "" {
		b.WriteString(e.Field)
		b.WriteString(": ")
	}
	b.WriteString(e.Reason)
	return b.String()
}

func (e *SchemaError) Unwrap() error {
	return ErrInvalidShape
}

// UnresolvedImageError is reported per service when its image has no digest
// in the local image store.
type UnresolvedImageError struct {
	Service string
	Image   string
	Err     error
}

func (e *UnresolvedImageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("service %s: image %s: %v", e.Service, e.Image, e.Err)
	}
	return fmt.Sprintf("service %s: image %s: %s", e.Service, e.Image, ErrUnresolvedImage.Error())
}

func (e *UnresolvedImageError) Unwrap() error {
	return e.Err
}

// Is makes every UnresolvedImageError match ErrUnresolvedImage regardless of
// the underlying cause.
func (e *UnresolvedImageError) Is(target error) bool {
	return target == ErrUnresolvedImage
}

// PartialFailureError is returned when an operation over several services
// completed for some of them and failed for others.
type PartialFailureError struct {
	Op       string
	Failures []error
}

func (e *PartialFailureError) Error() string {
	msgs := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		msgs = append(msgs, f.Error())
	}
	return fmt.Sprintf("%s: %d failed: %s", e.Op, len(e.Failures), strings.Join(msgs, "; "))
}

func (e *PartialFailureError) Unwrap() []error {
	return append([]error{ErrPartialFailure}, e.Failures...)
}
