package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/semlaunch/pkg/types"
)

func newQueryCommand() *cobra.Command {
	var (
		count  int
		settle time.Duration
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "query [input...]",
		Short: "Rank paths for an input and print the results",
		Long: `Rank paths for an input and print the results.

The first query of a session has no semantic stage. With --settle the
background scheduler gets that long to embed the paths around the first
results, then the query runs again with semantic matches included.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if count <= 0 {
				count = a.Config.ResultCount
			}
			input := strings.Join(args, " ")
			ctx := cmd.Context()
			if err := a.Start(ctx); err != nil {
				return err
			}

			results := a.Ranker.GetResults(ctx, input, count)
			if settle > 0 {
				select {
				case <-time.After(settle):
				case <-ctx.Done():
					return ctx.Err()
				}
				results = a.Ranker.GetResults(ctx, input, count)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}
			return printResults(cmd.OutOrStdout(), results)
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 0, "maximum number of results (default from config)")
	cmd.Flags().DurationVar(&settle, "settle", 0, "let background embedding run this long, then query again")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	return cmd
}

func printResults(w io.Writer, results []types.RankResult) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, r := range results {
		if _, err := fmt.Fprintf(tw, "%.3f\t%s\t%s\n", r.Score, r.Source, r.Path); err != nil {
			return err
		}
	}
	return tw.Flush()
}
