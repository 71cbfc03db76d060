package compose

import (
	"fmt"
	"io"
	"log/slog"
)

// =============================================================================
// Name Synthesizer
// =============================================================================

// ContainerName generates the container name for a service.
// Pattern: {project}_{service}, or just {service} without a project.
//
// Example:
//
//	ContainerName("shop", "web") // returns "shop_web"
func ContainerName(project, service string) string {
	if project == "" {
		return service
	}
	return fmt.Sprintf("%s_%s", project, service)
}

// AssignContainerNames sets container_name on every service that lacks one
// and returns the names it assigned, in service order. Services with an
// explicit name are left alone, so applying it twice is a no-op the second
// time.
func AssignContainerNames(doc *Document, project string, logger *slog.Logger) []string {
	logger = orDiscard(logger)

	// Read every name before writing any, so a name written to a service
	// that others inherit from through "<<" is not mistaken for theirs.
	var unnamed []*ServiceSpec
	for _, svc := range doc.Services() {
		if svc.ContainerName() == "" {
			unnamed = append(unnamed, svc)
		}
	}

	var assigned []string
	for _, svc := range unnamed {
		name := ContainerName(project, svc.Name)
		svc.SetContainerName(name)
		assigned = append(assigned, name)
		logger.Debug("assigned container name", "service", svc.Name, "container_name", name)
	}
	return assigned
}

func orDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return logger
}
