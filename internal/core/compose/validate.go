package compose

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/compose-spec/compose-go/v2/loader"
	"github.com/compose-spec/compose-go/v2/types"
)

// DefaultProjectName is used when validating a document without an explicit
// project name.
const DefaultProjectName = "dockbuild"

// =============================================================================
// Project Validation
// =============================================================================

// ValidateProject runs the document through the compose-go loader, which
// applies the full compose schema the engine will enforce, and returns the
// loaded project. Placeholders are interpolated from env on the loader's copy
// only; the document itself is not modified.
func ValidateProject(ctx context.Context, doc *Document, projectName string, env map[string]string) (*types.Project, error) {
	if projectName == "" {
		projectName = DefaultProjectName
	}

	var dict map[string]any
	if err := doc.Decode(&dict); err != nil {
		return nil, NewParseError(doc.Source, "invalid YAML syntax", ErrInvalidYAML)
	}
	content, err := doc.Bytes()
	if err != nil {
		return nil, err
	}

	filename := doc.Source
	workingDir := "."
	if filename == "" {
		filename = "compose.yaml"
	} else {
		workingDir = filepath.Dir(filename)
	}

	project, err := loader.LoadWithContext(ctx, types.ConfigDetails{
		WorkingDir: workingDir,
		ConfigFiles: []types.ConfigFile{
			{
				Filename: filename,
				Content:  content,
				Config:   dict,
			},
		},
		Environment: types.Mapping(env),
	}, func(opts *loader.Options) {
		opts.SetProjectName(projectName, true)
		opts.SkipNormalization = true
		opts.SkipExtends = true
		opts.ResolvePaths = false
	})
	if err != nil {
		msg := err.Error()
		if strings.Contains(msg, "dependency cycle detected") {
			msg = "circular dependency detected: " + msg
		}
		return nil, NewParseError(doc.Source, msg, ErrInvalidProject)
	}
	return project, nil
}
