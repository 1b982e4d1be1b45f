package papersources

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/research-workspace/internal/domain"
)

// mockPaperSource is a mock implementation of PaperSource for testing.
type mockPaperSource struct {
	source  domain.Source
	enabled bool

	// searchFunc allows customizing search behavior in tests
	searchFunc func(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.Paper, error)

	searchCalls atomic.Int32
}

func newMockPaperSource(source domain.Source, enabled bool) *mockPaperSource {
	return &mockPaperSource{source: source, enabled: enabled}
}

func (m *mockPaperSource) Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.Paper, error) {
	m.searchCalls.Add(1)
	if m.searchFunc != nil {
		return m.searchFunc(ctx, query, opts)
	}
	return []domain.Paper{}, nil
}

func (m *mockPaperSource) Source() domain.Source {
	return m.source
}

func (m *mockPaperSource) Name() string {
	return string(m.source)
}

func (m *mockPaperSource) IsEnabled() bool {
	return m.enabled
}

func (m *mockPaperSource) SearchCallCount() int {
	return int(m.searchCalls.Load())
}

func sourceTags(sources []PaperSource) []domain.Source {
	tags := make([]domain.Source, 0, len(sources))
	for _, s := range sources {
		tags = append(tags, s.Source())
	}
	return tags
}

func TestNewRegistry(t *testing.T) {
	registry := NewRegistry()

	require.NotNil(t, registry)
	assert.Equal(t, 0, registry.Len())
	assert.Empty(t, registry.AllSources())
	assert.Empty(t, registry.Resolve(nil))
}

func TestRegistry_Register(t *testing.T) {
	t.Run("preserves registration order", func(t *testing.T) {
		registry := NewRegistry()
		registry.Register(newMockPaperSource(domain.SourceCrossRef, true))
		registry.Register(newMockPaperSource(domain.SourcePubMed, true))
		registry.Register(newMockPaperSource(domain.SourceArXiv, true))

		assert.Equal(t,
			[]domain.Source{domain.SourceCrossRef, domain.SourcePubMed, domain.SourceArXiv},
			sourceTags(registry.AllSources()))
	})

	t.Run("replacement keeps original position", func(t *testing.T) {
		registry := NewRegistry()
		first := newMockPaperSource(domain.SourcePubMed, false)
		registry.Register(first)
		registry.Register(newMockPaperSource(domain.SourceArXiv, true))

		replacement := newMockPaperSource(domain.SourcePubMed, true)
		registry.Register(replacement)

		assert.Equal(t, 2, registry.Len())
		assert.Same(t, replacement, registry.Get(domain.SourcePubMed))
		assert.Equal(t, []domain.Source{domain.SourcePubMed, domain.SourceArXiv}, sourceTags(registry.AllSources()))
	})

	t.Run("get returns nil for unknown source", func(t *testing.T) {
		assert.Nil(t, NewRegistry().Get(domain.SourceIEEE))
	})
}

func TestRegistry_EnabledSources(t *testing.T) {
	registry := NewRegistry()
	registry.Register(newMockPaperSource(domain.SourcePubMed, true))
	registry.Register(newMockPaperSource(domain.SourceArXiv, false))
	registry.Register(newMockPaperSource(domain.SourceCrossRef, true))

	assert.Equal(t, []domain.Source{domain.SourcePubMed, domain.SourceCrossRef}, sourceTags(registry.EnabledSources()))
}

func TestRegistry_Resolve(t *testing.T) {
	registry := NewRegistry()
	for _, s := range domain.AllSources {
		registry.Register(newMockPaperSource(s, true))
	}

	t.Run("empty request selects the free set", func(t *testing.T) {
		assert.Equal(t, domain.FreeSources, sourceTags(registry.Resolve(nil)))
	})

	t.Run("request order does not matter", func(t *testing.T) {
		got := registry.Resolve([]domain.Source{domain.SourceCrossRef, domain.SourceArXiv})
		assert.Equal(t, []domain.Source{domain.SourceArXiv, domain.SourceCrossRef}, sourceTags(got))
	})

	t.Run("opt-in sources are reachable when requested", func(t *testing.T) {
		got := registry.Resolve([]domain.Source{domain.SourceBASE, domain.SourceSemanticScholar})
		assert.Equal(t, []domain.Source{domain.SourceSemanticScholar, domain.SourceBASE}, sourceTags(got))
	})

	t.Run("unregistered sources are ignored", func(t *testing.T) {
		partial := NewRegistry()
		partial.Register(newMockPaperSource(domain.SourcePubMed, true))

		got := partial.Resolve([]domain.Source{domain.SourceIEEE, domain.SourcePubMed})
		assert.Equal(t, []domain.Source{domain.SourcePubMed}, sourceTags(got))

		assert.Empty(t, partial.Resolve([]domain.Source{domain.SourceCORE}))
	})

	t.Run("disabled sources are skipped", func(t *testing.T) {
		partial := NewRegistry()
		partial.Register(newMockPaperSource(domain.SourcePubMed, false))
		partial.Register(newMockPaperSource(domain.SourceArXiv, true))

		assert.Equal(t, []domain.Source{domain.SourceArXiv}, sourceTags(partial.Resolve(nil)))
	})
}

func TestRegistry_Concurrency(t *testing.T) {
	registry := NewRegistry()

	var wg sync.WaitGroup
	for _, s := range domain.AllSources {
		wg.Add(2)
		go func(s domain.Source) {
			defer wg.Done()
			registry.Register(newMockPaperSource(s, true))
		}(s)
		go func() {
			defer wg.Done()
			_ = registry.Resolve(nil)
			_ = registry.AllSources()
		}()
	}
	wg.Wait()

	assert.Equal(t, len(domain.AllSources), registry.Len())
}
