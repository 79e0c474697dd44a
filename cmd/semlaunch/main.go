package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/semlaunch/internal/app"
	"github.com/dshills/semlaunch/internal/config"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "semlaunch",
		Short:         "Incremental path and semantic file finder",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().String("cwd", "", "directory queries resolve against (default: current directory)")

	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newQueryCommand())
	cmd.AddCommand(newBuildCommand())
	cmd.AddCommand(newVersionCommand())
	return cmd
}

// loadApp reads the configuration, installs the logger and wires the
// application. Logs go to stderr; stdout carries MCP traffic and results.
func loadApp(cmd *cobra.Command) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger()
	slog.SetDefault(logger)

	cwd, _ := cmd.Flags().GetString("cwd")
	return app.New(cfg, cwd, logger)
}
