package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newBuildCommand() *cobra.Command {
	var (
		scanAll bool
		trees   int
		workers int
	)
	cmd := &cobra.Command{
		Use:   "build <dir>",
		Short: "Embed a directory tree into the approximate index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			cfg, err := a.BuildConfig()
			if err != nil {
				return err
			}
			cfg.ScanAll = scanAll
			if trees > 0 {
				cfg.Trees = trees
			}
			if workers > 0 {
				cfg.Workers = workers
			}

			stats, err := a.Builder.Build(cmd.Context(), args[0], cfg)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Indexed %d entries (%d embedded, %d skipped, %d failed)\n",
				stats.Entries, stats.Embedded, stats.Skipped, stats.Failed)
			fmt.Fprintf(out, "Wrote %d vectors in %d trees to %s in %s\n",
				stats.Embeddings, stats.Trees, cfg.IndexPath, stats.Duration.Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().BoolVar(&scanAll, "all", false, "include hidden and gitignored entries")
	cmd.Flags().IntVar(&trees, "trees", 0, "number of trees (default from config)")
	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent embedding workers (default from config)")
	return cmd
}
