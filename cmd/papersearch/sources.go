package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/helixir/research-workspace/internal/domain"
)

func (a *app) sourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List the paper sources and whether each is enabled",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, registry, _, err := a.setup()
			if err != nil {
				return err
			}
			return writeSources(a.stdout, registry)
		},
	}
}

func writeSources(w io.Writer, catalog sourceCatalog) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSLUG\tFREE\tAPI KEY\tSTATUS")
	for _, s := range domain.AllSources {
		status := "not configured"
		if src := catalog.Get(s); src != nil {
			status = "disabled"
			if src.IsEnabled() {
				status = "enabled"
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", s, s.Slug(), yesNo(s.IsFree()), yesNo(s.RequiresAPIKey()), status)
	}
	return tw.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
