// Package main is the entry point for the papersearch CLI, a one-shot
// front end to the multi-source paper search.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/helixir/research-workspace/internal/aggregator"
	"github.com/helixir/research-workspace/internal/config"
	"github.com/helixir/research-workspace/internal/domain"
	"github.com/helixir/research-workspace/internal/observability"
	"github.com/helixir/research-workspace/internal/papersources"
	"github.com/helixir/research-workspace/internal/papersources/catalog"
)

// version is set at build time via ldflags.
var version = "dev"

// searcher is the part of the aggregator the search command needs.
type searcher interface {
	SearchDetailed(ctx context.Context, query string, opts domain.SearchOptions) (*aggregator.SearchResult, error)
}

// sourceCatalog is the part of the registry the sources command needs.
type sourceCatalog interface {
	Get(source domain.Source) papersources.PaperSource
}

// app carries what every subcommand shares. The constructors are swapped in
// tests.
type app struct {
	configPath string
	verbose    bool
	stdout     io.Writer
	stderr     io.Writer

	loadConfig func(path string) (*config.Config, error)
	newCatalog func(cfg *config.Config, logger zerolog.Logger) *papersources.Registry
	newSearch  func(cfg *config.Config, catalog *papersources.Registry, logger zerolog.Logger) searcher
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		stdout:     stdout,
		stderr:     stderr,
		loadConfig: config.LoadFile,
		newCatalog: func(cfg *config.Config, logger zerolog.Logger) *papersources.Registry {
			return catalog.Build(cfg, logger, nil)
		},
		newSearch: func(cfg *config.Config, registry *papersources.Registry, logger zerolog.Logger) searcher {
			return aggregator.New(registry, aggregator.Config{
				DefaultLimit:  cfg.Search.DefaultLimit,
				SourceTimeout: cfg.Search.SourceTimeout,
				Dedupe:        cfg.Search.Dedupe,
			}, logger, nil)
		},
	}
}

// logger writes human-readable diagnostics to stderr so stdout stays
// machine-readable.
func (a *app) logger() zerolog.Logger {
	cfg := observability.DefaultLoggingConfig()
	cfg.Level = "warn"
	if a.verbose {
		cfg.Level = "debug"
	}
	cfg.Format = "console"
	return observability.WithComponent(observability.NewLoggerTo(cfg, a.stderr), "papersearch")
}

// setup loads configuration and builds the source registry.
func (a *app) setup() (*config.Config, *papersources.Registry, zerolog.Logger, error) {
	logger := a.logger()
	cfg, err := a.loadConfig(a.configPath)
	if err != nil {
		return nil, nil, logger, fmt.Errorf("load config: %w", err)
	}
	return cfg, a.newCatalog(cfg, logger), logger, nil
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "papersearch",
		Short: "Search research papers across public academic sources",
		Long: `papersearch runs one query against PubMed, arXiv, bioRxiv, medRxiv, CrossRef,
Semantic Scholar, CORE, IEEE Xplore and BASE in parallel and prints the merged,
sorted result list.

Sources are configured the same way as the research-workspace server: a
config.yaml file plus RESEARCH_* environment variables. API keys are only read
from the environment.`,
		SilenceUsage: true,
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default: ./config.yaml, ./config/config.yaml or /etc/research-workspace/config.yaml)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log per-source diagnostics to stderr")

	root.AddCommand(a.searchCmd(), a.sourcesCmd(), a.versionCmd())
	return root
}

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of papersearch",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "papersearch %s\n", version)
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout, os.Stderr).rootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
