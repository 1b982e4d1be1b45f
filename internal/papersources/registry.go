package papersources

import (
	"slices"
	"sync"

	"github.com/helixir/research-workspace/internal/domain"
)

// Registry manages paper sources in registration order.
// Registration order is the order the aggregator concatenates results in,
// so it is part of the observable behavior and is preserved exactly.
type Registry struct {
	mu      sync.RWMutex
	sources []PaperSource
}

// NewRegistry creates a new, empty source registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a source to the registry.
// If a source with the same tag already exists, it is replaced in place and
// keeps its original position.
// This method is thread-safe.
func (r *Registry) Register(source PaperSource) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, existing := range r.sources {
		if existing.Source() == source.Source() {
			r.sources[i] = source
			return
		}
	}
	r.sources = append(r.sources, source)
}

// Get returns a source by tag, or nil if not found.
// This method is thread-safe.
func (r *Registry) Get(source domain.Source) PaperSource {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.sources {
		if s.Source() == source {
			return s
		}
	}
	return nil
}

// Len returns the number of registered sources.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sources)
}

// AllSources returns all registered sources in registration order.
// The returned slice is a snapshot.
func (r *Registry) AllSources() []PaperSource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.sources)
}

// EnabledSources returns only enabled sources, in registration order.
func (r *Registry) EnabledSources() []PaperSource {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sources := make([]PaperSource, 0, len(r.sources))
	for _, source := range r.sources {
		if source.IsEnabled() {
			sources = append(sources, source)
		}
	}
	return sources
}

// Resolve selects the sources a search should fan out to.
//
// An empty request selects the enabled members of the free set
// (domain.FreeSources). Otherwise the request is intersected with the enabled
// registered sources; unknown or unregistered names are ignored. In both cases
// the result follows registration order, never request order.
func (r *Registry) Resolve(requested []domain.Source) []PaperSource {
	want := make(map[domain.Source]bool)
	if len(requested) == 0 {
		for _, s := range domain.FreeSources {
			want[s] = true
		}
	} else {
		for _, s := range requested {
			want[s] = true
		}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	selected := make([]PaperSource, 0, len(want))
	for _, source := range r.sources {
		if want[source.Source()] && source.IsEnabled() {
			selected = append(selected, source)
		}
	}
	return selected
}
