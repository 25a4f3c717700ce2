package source

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ReviewPulse/internal/domain"
	"ReviewPulse/internal/ports"
)

// Source captures a single review provider for one store platform. Scraping
// itself lives behind this boundary; implementations hand over raw records
// exactly as the store reported them.
type Source interface {
	Platform() domain.Platform
	Fetch(ctx context.Context, from, to time.Time) ([]domain.RawReview, error)
}

// Registry keeps a mapping from platforms to their source implementations.
type Registry struct {
	sources map[domain.Platform]Source
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{sources: map[domain.Platform]Source{}}
}

// Register adds or replaces a source implementation.
func (r *Registry) Register(src Source) {
	if r.sources == nil {
		r.sources = map[domain.Platform]Source{}
	}
	r.sources[src.Platform()] = src
}

// Resolve returns a source by platform or an error if it is absent.
func (r *Registry) Resolve(platform domain.Platform) (Source, error) {
	if src, ok := r.sources[platform]; ok {
		return src, nil
	}
	return nil, fmt.Errorf("no source registered for platform %s", platform)
}

// Platforms lists registered platforms in the fixed platform order.
func (r *Registry) Platforms() []domain.Platform {
	ordered := []domain.Platform{domain.PlatformAppStore, domain.PlatformPlayStore}
	out := make([]domain.Platform, 0, len(r.sources))
	for _, p := range ordered {
		if _, ok := r.sources[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

// MultiSource aggregates every registered source into the single collection
// boundary the pipeline consumes.
type MultiSource struct {
	registry *Registry
	logger   *slog.Logger
}

var _ ports.ReviewSource = (*MultiSource)(nil)

// NewMultiSource wires the registry.
func NewMultiSource(registry *Registry, logger *slog.Logger) *MultiSource {
	return &MultiSource{registry: registry, logger: logger}
}

// FetchWindow collects raw reviews from every platform for the given window.
// A platform without a registered source is simply absent from the result;
// a registered source failing fails the whole fetch so a partial window is
// never mistaken for a complete one.
func (s *MultiSource) FetchWindow(ctx context.Context, from, to time.Time) ([]domain.RawReview, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("source registry is not configured")
	}

	var aggregated []domain.RawReview
	for _, platform := range s.registry.Platforms() {
		src, err := s.registry.Resolve(platform)
		if err != nil {
			return nil, err
		}

		records, err := src.Fetch(ctx, from, to)
		if err != nil {
			return nil, fmt.Errorf("fetch %s reviews: %w", platform, err)
		}
		for i := range records {
			if records[i].Platform == "" {
				records[i].Platform = platform
			}
		}
		s.debug("platform fetched", "platform", platform, "count", len(records))
		aggregated = append(aggregated, records...)
	}

	s.debug("fetch window done", "total", len(aggregated),
		"from", from.Format("2006-01-02"), "to", to.Format("2006-01-02"))
	return aggregated, nil
}

func (s *MultiSource) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
