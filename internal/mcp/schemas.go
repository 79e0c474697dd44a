package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

const (
	defaultCount = 20
	maxCount     = 200
)

// findPathsTool returns the tool definition for find_paths
func findPathsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "find_paths",
		Description: "Rank files and directories matching a path fragment or a natural-language description",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Path fragment (absolute or relative to the server's working directory) or description. Empty lists the working directory.",
				},
				"count": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results",
					"default":     defaultCount,
					"minimum":     1,
					"maximum":     maxCount,
				},
			},
		},
	}
}

// buildIndexTool returns the tool definition for build_index
func buildIndexTool() mcp.Tool {
	return mcp.Tool{
		Name:        "build_index",
		Description: "Embed a directory tree into the approximate index loaded at startup",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path of the directory to index",
				},
				"scan_all": map[string]interface{}{
					"type":        "boolean",
					"description": "Include hidden and gitignored entries",
					"default":     false,
				},
			},
			Required: []string{"path"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report metadata store counts, pending embedding work and loaded index tiers",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
