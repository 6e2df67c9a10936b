package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/clinrag/internal/index"
	"github.com/ziadkadry99/clinrag/internal/rag"
)

// handleSearchDocuments performs hybrid retrieval over the index.
func (s *Server) handleSearchDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}

	limit := request.GetInt("limit", index.DefaultTopK)
	if limit <= 0 {
		limit = index.DefaultTopK
	}

	var filter *index.Filter
	if docID := request.GetString("document_id", ""); docID != "" {
		filter = &index.Filter{DocumentID: docID}
	}

	results, err := s.searcher.Search(ctx, query, filter, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	if len(results) == 0 {
		return mcp.NewToolResultText("No results found. Upload and index documents first."), nil
	}

	return mcp.NewToolResultText(formatSearchResults(results)), nil
}

// handleAskDocuments runs the full retrieval and generation flow.
func (s *Server) handleAskDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: question"), nil
	}

	resp, err := s.answerer.Answer(ctx, rag.Query{
		Question:   question,
		DocumentID: request.GetString("document_id", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("question failed: %v", err)), nil
	}

	return mcp.NewToolResultText(formatAnswer(resp)), nil
}

// handleListDocuments returns the registered documents and their status.
func (s *Server) handleListDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docs, err := s.registry.List(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("listing failed: %v", err)), nil
	}

	if len(docs) == 0 {
		return mcp.NewToolResultText("No documents registered."), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d document(s):\n", len(docs))
	for _, d := range docs {
		fmt.Fprintf(&sb, "\n- %s (%s)\n  id: %s\n  status: %s\n", d.Filename, d.Format, d.ID, d.Status)
		if d.FailureReason != "" {
			fmt.Fprintf(&sb, "  reason: %s\n", d.FailureReason)
		}
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// formatSearchResults converts retrieval hits into a text format suited
// for AI agent consumption.
func formatSearchResults(results []index.Result) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d result(s):\n", len(results))

	for i, r := range results {
		fmt.Fprintf(&sb, "\n--- Result %d ---\n", i+1)
		fmt.Fprintf(&sb, "Document: %s (chunk %d of %s)\n", r.Filename, r.Seq, r.DocumentID)
		fmt.Fprintf(&sb, "Score: %.3f\n\n", r.Score)
		sb.WriteString(r.Text)
		sb.WriteString("\n")
	}

	return sb.String()
}

// formatAnswer renders an answer with its citation list.
func formatAnswer(resp *rag.GenerationResponse) string {
	var sb strings.Builder
	sb.WriteString(resp.Answer)

	if resp.Degraded {
		sb.WriteString("\n\nNote: no document context was available for this answer.")
	}

	if len(resp.Citations) > 0 {
		sb.WriteString("\n\nSources:\n")
		for _, c := range resp.Citations {
			fmt.Fprintf(&sb, "- %s (chunk %d, document %s)\n", c.Filename, c.Seq, c.DocumentID)
		}
	}
	return sb.String()
}
