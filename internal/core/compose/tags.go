package compose

import (
	"fmt"
	"log/slog"

	"github.com/artpar/dockbuild/internal/core/imageref"
)

// =============================================================================
// Image Tag Rewriter
// =============================================================================

// TagRewrite records one image retagged by RewriteImageTags.
type TagRewrite struct {
	Service string
	Source  string
	Target  string
}

// ImageTags returns the retag plan for every service with an image without
// modifying the document. It fails on the first digest-pinned or invalid
// reference.
func ImageTags(doc *Document, tag string) ([]TagRewrite, error) {
	var plan []TagRewrite
	for _, svc := range doc.Services() {
		image := svc.Image()
		if image == "" {
			continue
		}
		target, err := imageref.RewriteTag(image, tag)
		if err != nil {
			return nil, fmt.Errorf("service %s: %w", svc.Name, err)
		}
		plan = append(plan, TagRewrite{Service: svc.Name, Source: image, Target: target})
	}
	return plan, nil
}

// RewriteImageTags applies tag to the image of every service, in service
// order. On error the services already processed stay rewritten.
func RewriteImageTags(doc *Document, tag string, logger *slog.Logger) ([]TagRewrite, error) {
	logger = orDiscard(logger)

	var done []TagRewrite
	for _, svc := range doc.Services() {
		image := svc.Image()
		if image == "" {
			continue
		}
		target, err := imageref.RewriteTag(image, tag)
		if err != nil {
			return done, fmt.Errorf("service %s: %w", svc.Name, err)
		}
		svc.SetImage(target)
		done = append(done, TagRewrite{Service: svc.Name, Source: image, Target: target})
		logger.Debug("rewrote image tag", "service", svc.Name, "from", image, "to", target)
	}
	return done, nil
}
