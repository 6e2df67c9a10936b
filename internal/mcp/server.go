// Package mcp exposes document search and question answering as MCP
// tools over stdio.
package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/server"

	"github.com/ziadkadry99/clinrag/internal/index"
	"github.com/ziadkadry99/clinrag/internal/rag"
	"github.com/ziadkadry99/clinrag/internal/registry"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Searcher is the retrieval surface the tools need.
type Searcher interface {
	Search(ctx context.Context, query string, filter *index.Filter, topK int) ([]index.Result, error)
}

// Answerer produces RAG answers.
type Answerer interface {
	Answer(ctx context.Context, q rag.Query) (*rag.GenerationResponse, error)
}

// Server wraps an MCP server that exposes document tools.
type Server struct {
	searcher Searcher
	answerer Answerer
	registry *registry.Registry
	mcp      *server.MCPServer
}

// NewServer creates a new MCP server with the given dependencies.
func NewServer(searcher Searcher, answerer Answerer, reg *registry.Registry) *Server {
	s := &Server{
		searcher: searcher,
		answerer: answerer,
		registry: reg,
	}

	s.mcp = server.NewMCPServer(
		"clinrag",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(searchDocumentsTool, s.handleSearchDocuments)
	s.mcp.AddTool(askDocumentsTool, s.handleAskDocuments)
	s.mcp.AddTool(listDocumentsTool, s.handleListDocuments)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
