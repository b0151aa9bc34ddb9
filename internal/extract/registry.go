package extract

import (
	"fmt"

	"github.com/MrSnakeDoc/mediabot/internal/domain"
)

// Registry maps each platform to its extractor. It is built once and never mutated.
type Registry struct {
	byPlatform map[domain.Platform]Extractor
}

// NewRegistry builds a registry from extractors. Each platform may appear once.
func NewRegistry(extractors ...Extractor) (*Registry, error) {
	m := make(map[domain.Platform]Extractor, len(extractors))
	for _, e := range extractors {
		p := e.Platform()
		if !p.Valid() {
			return nil, fmt.Errorf("unknown platform %q", p)
		}
		if _, dup := m[p]; dup {
			return nil, fmt.Errorf("duplicate extractor for platform %q", p)
		}
		m[p] = e
	}
	return &Registry{byPlatform: m}, nil
}

// Lookup returns the extractor for p.
func (r *Registry) Lookup(p domain.Platform) (Extractor, bool) {
	e, ok := r.byPlatform[p]
	return e, ok
}

// Platforms returns the registered platforms in detection priority order.
func (r *Registry) Platforms() []domain.Platform {
	out := make([]domain.Platform, 0, len(r.byPlatform))
	for _, p := range domain.Platforms() {
		if _, ok := r.byPlatform[p]; ok {
			out = append(out, p)
		}
	}
	return out
}
