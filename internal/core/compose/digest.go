package compose

import (
	"context"
	"errors"
	"log/slog"

	"github.com/artpar/dockbuild/internal/core/imageref"
)

// =============================================================================
// Digest Resolver
// =============================================================================

// ImageInspector looks up images in the local image store.
type ImageInspector interface {
	// RepoDigest returns the repository digest of image, e.g.
	// "nginx@sha256:...", or an error when the image is not present or was
	// never pushed or pulled.
	RepoDigest(ctx context.Context, image string) (string, error)
}

// ResolveOptions controls ResolveDigests.
type ResolveOptions struct {
	// ResolveEnvironment substitutes ${VAR} placeholders across the whole
	// document before digests are looked up. Off by default so resolved
	// secrets never end up in the written file. Placeholders in an image
	// reference are always substituted, since the image must be looked up.
	ResolveEnvironment bool
	// Lookup supplies variable values; nil reads the process environment.
	Lookup Lookup
	// Exclude lists variables that are never substituted.
	Exclude []string
}

// DigestReport summarises a ResolveDigests run.
type DigestReport struct {
	Resolved    map[string]string // service -> pinned image
	Skipped     []string          // build targets without a pushed/pulled image
	Failed      []*UnresolvedImageError
	Deferred    []string // services whose lookup the inspector skipped
	Substituted int      // scalar values changed by variable resolution
	// Placeholders lists the variables still referenced by the document
	// once resolution is done.
	Placeholders []string
}

// ResolveDigests pins the image of every service to its content digest.
//
// Services are processed in name order. A service whose image cannot be
// resolved but which has a build section is skipped; otherwise the failure is
// recorded and processing continues. When any service failed a
// *PartialFailureError is returned together with the report, and services
// processed before the failure stay rewritten.
func ResolveDigests(ctx context.Context, doc *Document, inspector ImageInspector, opts ResolveOptions, logger *slog.Logger) (*DigestReport, error) {
	logger = orDiscard(logger)

	report := &DigestReport{Resolved: make(map[string]string)}
	if opts.ResolveEnvironment {
		report.Substituted = ResolveVariables(doc, opts.Lookup, opts.Exclude)
		logger.Debug("resolved environment placeholders", "values", report.Substituted)
	}

	for _, svc := range doc.Services() {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		image := SubstituteVariables(svc.Image(), opts.Lookup, excludeSet(opts.Exclude))
		if image == "" {
			report.Skipped = append(report.Skipped, svc.Name)
			logger.Info("service has no image, skipping", "service", svc.Name)
			continue
		}

		if imageref.HasDigest(image) {
			report.Resolved[svc.Name] = image
			continue
		}

		pinned, err := pinImage(ctx, inspector, image)
		if errors.Is(err, ErrLookupSkipped) {
			report.Deferred = append(report.Deferred, svc.Name)
			logger.Info("image lookup skipped", "service", svc.Name, "image", image)
			continue
		}
		if err != nil {
			if svc.HasBuild() {
				report.Skipped = append(report.Skipped, svc.Name)
				logger.Info("build target has no digest, leaving image unresolved",
					"service", svc.Name, "image", image, "reason", err)
				continue
			}
			report.Failed = append(report.Failed, &UnresolvedImageError{Service: svc.Name, Image: image, Err: err})
			logger.Warn("could not resolve image digest", "service", svc.Name, "image", image, "error", err)
			continue
		}

		svc.SetImage(pinned)
		report.Resolved[svc.Name] = pinned
		logger.Debug("pinned image digest", "service", svc.Name, "image", pinned)
	}

	report.Placeholders = DocumentPlaceholders(doc)
	if len(report.Placeholders) > 0 {
		logger.Debug("document keeps placeholders", "variables", report.Placeholders)
	}

	if len(report.Failed) > 0 {
		failures := make([]error, len(report.Failed))
		for i, f := range report.Failed {
			failures[i] = f
		}
		return report, &PartialFailureError{Op: "resolve digests", Failures: failures}
	}
	return report, nil
}

func pinImage(ctx context.Context, inspector ImageInspector, image string) (string, error) {
	repoDigest, err := inspector.RepoDigest(ctx, image)
	if err != nil {
		return "", err
	}
	return imageref.PinDigest(image, repoDigest)
}
