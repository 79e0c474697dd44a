package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/semlaunch/internal/app"
)

const (
	// ServerName is the MCP server name
	ServerName = "semlaunch"
	// ServerVersion is the current server version
	ServerVersion = "0.1.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp *server.MCPServer
	app *app.App
}

// NewServer creates an MCP server over a wired application.
func NewServer(a *app.App) (*Server, error) {
	s := &Server{
		mcp: server.NewMCPServer(ServerName, ServerVersion),
		app: a,
	}

	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}
	return s, nil
}

// Serve starts the background scheduler, then serves MCP on stdio until the
// client disconnects.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.app.Start(ctx); err != nil {
		return err
	}
	s.app.Logger.Info("mcp server started", "name", ServerName, "version", ServerVersion)
	return server.ServeStdio(s.mcp)
}

func (s *Server) registerTools() error {
	s.mcp.AddTool(findPathsTool(), s.handleFindPaths)
	s.mcp.AddTool(buildIndexTool(), s.handleBuildIndex)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
	return nil
}
