package main

import (
	"github.com/spf13/cobra"

	"github.com/dshills/semlaunch/internal/mcp"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve find_paths, build_index and get_status over MCP stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			server, err := mcp.NewServer(a)
			if err != nil {
				return err
			}
			return server.Serve(cmd.Context())
		},
	}
}
