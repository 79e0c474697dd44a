package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/semlaunch/internal/builder"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeIndexingInProgress = -32002 // Another build is already running
)

// handleFindPaths handles the find_paths tool invocation
func (s *Server) handleFindPaths(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	query := getStringDefault(args, "query", "")
	count := getIntDefault(args, "count", defaultCount)
	if count < 1 || count > maxCount {
		return nil, newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("count must be between 1 and %d", maxCount), map[string]interface{}{
			"param": "count",
			"value": count,
		})
	}

	results := s.app.Ranker.GetResults(ctx, query, count)
	response := map[string]interface{}{
		"query":   query,
		"cwd":     s.app.Ranker.WorkingDir(),
		"results": results,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleBuildIndex handles the build_index tool invocation
func (s *Server) handleBuildIndex(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}
	if err := validatePath(path); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}

	cfg, err := s.app.BuildConfig()
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "invalid build configuration", map[string]interface{}{
			"error": err.Error(),
		})
	}
	cfg.ScanAll = getBoolDefault(args, "scan_all", false)

	stats, err := s.app.Builder.Build(ctx, path, cfg)
	if errors.Is(err, builder.ErrBuildInProgress) {
		return nil, newMCPError(ErrorCodeIndexingInProgress, "indexing in progress", nil)
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"indexed":     true,
		"index_path":  cfg.IndexPath,
		"entries":     stats.Entries,
		"embedded":    stats.Embedded,
		"embeddings":  stats.Embeddings,
		"skipped":     stats.Skipped,
		"failed":      stats.Failed,
		"trees":       stats.Trees,
		"duration_ms": stats.Duration.Milliseconds(),
		"message":     "The new index is served now and loaded again on every start.",
	}
	if n := len(stats.ErrorMessages); n > 0 {
		if n > 5 {
			response["errors"] = stats.ErrorMessages[:5]
			response["error_count"] = n
		} else {
			response["errors"] = stats.ErrorMessages
		}
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := s.app.Store.GetStatus(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"session": s.app.Session,
		"cwd":     s.app.Ranker.WorkingDir(),
		"store": map[string]interface{}{
			"items":      status.Items,
			"none":       status.None,
			"name":       status.Name,
			"paragraphs": status.Paragraphs,
			"size_mb":    fmt.Sprintf("%.2f", status.SizeMB),
		},
		"scheduler": s.app.Scheduler.Stats(),
		"cache":     s.app.Cache.Stats(),
		"embedder": map[string]interface{}{
			"provider": s.app.Embedder.Provider(),
			"model":    s.app.Embedder.Model(),
		},
		"building": s.app.Builder.Running(),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// arguments returns the call's argument map. A call without arguments gets
// an empty map.
func arguments(request mcp.CallToolRequest) (map[string]interface{}, error) {
	if request.Params.Arguments == nil {
		return map[string]interface{}{}, nil
	}
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	return args, nil
}

// validatePath checks that path is an absolute, readable directory
func validatePath(path string) error {
	if path == "" {
		return ErrPathRequired
	}
	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}
	if !info.IsDir() {
		return ErrNotDirectory
	}

	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()
	return nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// Validation helpers

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
)
