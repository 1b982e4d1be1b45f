package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/helixir/research-workspace/internal/domain"
)

// searchFlags holds the raw flag values of the search command.
type searchFlags struct {
	sources []string
	limit   int
	page    int
	sort    string
	from    int
	to      int
	format  string
	dedupe  bool
}

// options converts the flags into validated search options.
func (f searchFlags) options() (domain.SearchOptions, error) {
	sources, err := domain.ParseSources(f.sources)
	if err != nil {
		return domain.SearchOptions{}, err
	}
	sortOpt, err := domain.ParseSortOption(f.sort)
	if err != nil {
		return domain.SearchOptions{}, err
	}
	opts := domain.SearchOptions{
		FromYear: f.from,
		ToYear:   f.to,
		Sources:  sources,
		Limit:    f.limit,
		Page:     f.page,
		Sort:     sortOpt,
	}
	if err := opts.Validate(); err != nil {
		return domain.SearchOptions{}, err
	}
	return opts, nil
}

func (a *app) searchCmd() *cobra.Command {
	var flags searchFlags

	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Search every selected source and print the merged results",
		Long: `search sends QUERY to the selected sources in parallel, merges what comes back,
sorts it and prints the first --limit records. A source that fails or times out
is reported and skipped; the other sources still contribute.

Without --sources the default set is searched: PubMed, arXiv, bioRxiv, medRxiv
and CrossRef.`,
		Example: `  papersearch search "CRISPR base editing" --sources arXiv,CrossRef --limit 10
  papersearch search "sepsis biomarkers" --from 2020 --to 2023 --sort citations_desc --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.TrimSpace(strings.Join(args, " "))
			if query == "" {
				return errors.New("query must not be empty")
			}
			format, err := parseFormat(flags.format)
			if err != nil {
				return err
			}
			opts, err := flags.options()
			if err != nil {
				return err
			}
			return a.runSearch(cmd.Context(), query, opts, format, flags.dedupe)
		},
	}

	cmd.Flags().StringSliceVarP(&flags.sources, "sources", "s", nil, "comma-separated source names or slugs (default: PubMed, arXiv, bioRxiv, medRxiv, CrossRef)")
	cmd.Flags().IntVarP(&flags.limit, "limit", "n", 0, fmt.Sprintf("maximum number of results (default: config search.default_limit, max %d)", domain.MaxLimit))
	cmd.Flags().IntVar(&flags.page, "page", 1, "1-based result page requested from each source")
	cmd.Flags().StringVar(&flags.sort, "sort", string(domain.DefaultSortOption), "ordering: date_desc, date_asc or citations_desc")
	cmd.Flags().IntVar(&flags.from, "from", 0, "earliest publication year (inclusive)")
	cmd.Flags().IntVar(&flags.to, "to", 0, "latest publication year (inclusive)")
	cmd.Flags().StringVarP(&flags.format, "format", "f", string(formatTable), "output format: table, json or yaml")
	cmd.Flags().BoolVar(&flags.dedupe, "dedupe", false, "drop records that duplicate an earlier one by DOI or title")

	return cmd
}

func (a *app) runSearch(ctx context.Context, query string, opts domain.SearchOptions, format outputFormat, dedupe bool) error {
	cfg, registry, logger, err := a.setup()
	if err != nil {
		return err
	}
	if dedupe {
		cfg.Search.Dedupe = true
	}
	if len(registry.Resolve(opts.Sources)) == 0 {
		return fmt.Errorf("none of the selected sources is enabled; run %q to list them", "papersearch sources")
	}

	result, err := a.newSearch(cfg, registry, logger).SearchDetailed(ctx, query, opts)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	for _, s := range result.Sources {
		if s.Failed {
			logger.Warn().Str("source", string(s.Source)).Str("reason", s.Reason).Msg("source failed")
		}
	}

	return writeResults(a.stdout, format, query, result)
}
