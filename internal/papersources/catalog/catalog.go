// Package catalog builds the paper source registry from configuration.
package catalog

import (
	"github.com/rs/zerolog"

	"github.com/helixir/research-workspace/internal/config"
	"github.com/helixir/research-workspace/internal/domain"
	"github.com/helixir/research-workspace/internal/observability"
	"github.com/helixir/research-workspace/internal/papersources"
	"github.com/helixir/research-workspace/internal/papersources/arxiv"
	"github.com/helixir/research-workspace/internal/papersources/base"
	"github.com/helixir/research-workspace/internal/papersources/biorxiv"
	"github.com/helixir/research-workspace/internal/papersources/core"
	"github.com/helixir/research-workspace/internal/papersources/crossref"
	"github.com/helixir/research-workspace/internal/papersources/ieee"
	"github.com/helixir/research-workspace/internal/papersources/pubmed"
	"github.com/helixir/research-workspace/internal/papersources/semanticscholar"
)

// Build registers every configured paper source, in domain.AllSources order.
// Key-gated providers are skipped when no key is configured. metrics may be nil.
func Build(cfg *config.Config, logger zerolog.Logger, metrics *observability.Metrics) *papersources.Registry {
	registry := papersources.NewRegistry()
	sources := cfg.PaperSources
	retries := cfg.Search.MaxRetries

	// PubMed.
	if sources.PubMed.Enabled {
		registry.Register(pubmed.New(pubmed.Config{
			BaseURL:    sources.PubMed.BaseURL,
			APIKey:     sources.PubMed.APIKey,
			Timeout:    sources.PubMed.Timeout,
			RateLimit:  sources.PubMed.RateLimit,
			MaxRetries: retries,
			RetryDelay: cfg.Search.RetryDelay,
			Enabled:    true,
			Metrics:    metrics,
		}))
		logger.Info().Msg("registered paper source: PubMed")
	}

	// arXiv.
	if sources.ArXiv.Enabled {
		registry.Register(arxiv.New(arxiv.Config{
			BaseURL:    sources.ArXiv.BaseURL,
			Timeout:    sources.ArXiv.Timeout,
			RateLimit:  sources.ArXiv.RateLimit,
			MaxRetries: retries,
			Enabled:    true,
			Metrics:    metrics,
		}))
		logger.Info().Msg("registered paper source: arXiv")
	}

	// bioRxiv and medRxiv share one adapter.
	preprints := []struct {
		source domain.Source
		cfg    config.PaperSourceConfig
	}{
		{domain.SourceBioRxiv, sources.BioRxiv},
		{domain.SourceMedRxiv, sources.MedRxiv},
	}
	for _, p := range preprints {
		if !p.cfg.Enabled {
			continue
		}
		registry.Register(biorxiv.New(biorxiv.Config{
			BaseURL:    p.cfg.BaseURL,
			Source:     p.source,
			Timeout:    p.cfg.Timeout,
			RateLimit:  p.cfg.RateLimit,
			MaxRetries: retries,
			Enabled:    true,
			Metrics:    metrics,
		}))
		logger.Info().Msgf("registered paper source: %s", p.source)
	}

	// CrossRef.
	if sources.CrossRef.Enabled {
		registry.Register(crossref.New(crossref.Config{
			BaseURL:    sources.CrossRef.BaseURL,
			Mailto:     sources.CrossRef.Mailto,
			Timeout:    sources.CrossRef.Timeout,
			RateLimit:  sources.CrossRef.RateLimit,
			MaxRetries: retries,
			Enabled:    true,
			Metrics:    metrics,
		}))
		logger.Info().Msg("registered paper source: CrossRef")
	}

	// Semantic Scholar.
	if sources.SemanticScholar.Enabled {
		ssCfg := sources.SemanticScholar
		registry.Register(semanticscholar.NewClient(semanticscholar.Config{
			BaseURL:    ssCfg.BaseURL,
			APIKey:     ssCfg.APIKey,
			Timeout:    ssCfg.Timeout,
			RateLimit:  ssCfg.RateLimit,
			MaxRetries: retries,
			Enabled:    true,
			Metrics:    metrics,
		}, nil))
		logger.Info().Msg("registered paper source: Semantic Scholar")
	}

	// CORE.
	if sources.CORE.Enabled && sources.CORE.APIKey != "" {
		registry.Register(core.New(core.Config{
			BaseURL:    sources.CORE.BaseURL,
			APIKey:     sources.CORE.APIKey,
			Timeout:    sources.CORE.Timeout,
			RateLimit:  sources.CORE.RateLimit,
			MaxRetries: retries,
			Enabled:    true,
			Metrics:    metrics,
		}))
		logger.Info().Msg("registered paper source: CORE")
	} else if sources.CORE.Enabled {
		logger.Warn().Msg("CORE enabled without API key, not registering")
	}

	// IEEE Xplore.
	if sources.IEEE.Enabled && sources.IEEE.APIKey != "" {
		registry.Register(ieee.New(ieee.Config{
			BaseURL:    sources.IEEE.BaseURL,
			APIKey:     sources.IEEE.APIKey,
			Timeout:    sources.IEEE.Timeout,
			RateLimit:  sources.IEEE.RateLimit,
			MaxRetries: retries,
			Enabled:    true,
			Metrics:    metrics,
		}))
		logger.Info().Msg("registered paper source: IEEE")
	} else if sources.IEEE.Enabled {
		logger.Warn().Msg("IEEE enabled without API key, not registering")
	}

	// BASE.
	if sources.BASE.Enabled {
		registry.Register(base.New(base.Config{
			BaseURL:    sources.BASE.BaseURL,
			Timeout:    sources.BASE.Timeout,
			RateLimit:  sources.BASE.RateLimit,
			MaxRetries: retries,
			Enabled:    true,
			Metrics:    metrics,
		}))
		logger.Info().Msg("registered paper source: BASE")
	}

	logger.Info().Int("count", registry.Len()).Msg("paper sources registered")
	return registry
}
