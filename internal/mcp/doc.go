// Package mcp implements the Model Context Protocol (MCP) server for semlaunch.
//
// The server exposes three tools over stdio:
//   - find_paths: rank files and directories for a path fragment or description
//   - build_index: embed a directory tree into the approximate index
//   - get_status: report store counts, pending embedding work and index tiers
//
// # Tool: find_paths
//
//	Request:
//	{
//	  "name": "find_paths",
//	  "arguments": {"query": "src/ma", "count": 10}
//	}
//
//	Response:
//	{
//	  "query": "src/ma",
//	  "cwd": "/home/user/project",
//	  "results": [
//	    {"path": "/home/user/project/src/main.go", "source": "start_like_path", "score": 1}
//	  ]
//	}
//
// Every call also queues background embedding work for the paths around its
// results, so repeated queries gain semantic matches over time. The first
// query of a session never runs the semantic stage.
//
// # Tool: build_index
//
//	Request:
//	{
//	  "name": "build_index",
//	  "arguments": {"path": "/home/user", "scan_all": false}
//	}
//
// The build runs synchronously. A second call while one is running fails with
// code -32002 ("indexing in progress"). The index written is picked up on the
// next server start.
//
// # Error Handling
//
// Error codes:
//   - -32602: Invalid params (missing/invalid arguments)
//   - -32603: Internal error (database, filesystem, embedder)
//   - -32002: Indexing in progress
//
// # Logging
//
// The server logs to stderr; stdout is reserved for MCP protocol.
package mcp
