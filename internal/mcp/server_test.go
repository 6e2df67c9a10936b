package mcp

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/clinrag/internal/index"
	"github.com/ziadkadry99/clinrag/internal/rag"
	"github.com/ziadkadry99/clinrag/internal/registry"
)

type stubSearcher struct {
	results []index.Result
	err     error
	lastK   int
	filter  *index.Filter
}

func (s *stubSearcher) Search(ctx context.Context, query string, filter *index.Filter, topK int) ([]index.Result, error) {
	s.lastK = topK
	s.filter = filter
	return s.results, s.err
}

type stubAnswerer struct {
	resp *rag.GenerationResponse
	err  error
}

func (s *stubAnswerer) Answer(ctx context.Context, q rag.Query) (*rag.GenerationResponse, error) {
	return s.resp, s.err
}

func newTestServer(t *testing.T, searcher Searcher, answerer Answerer) *Server {
	t.Helper()
	reg, err := registry.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { reg.Close() })
	return NewServer(searcher, answerer, reg)
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("empty tool result")
	}
	text, ok := mcp.AsTextContent(result.Content[0])
	if !ok {
		t.Fatalf("unexpected content type %T", result.Content[0])
	}
	return text.Text
}

func TestToolDefinitions(t *testing.T) {
	cases := []struct {
		tool mcp.Tool
		want string
	}{
		{searchDocumentsTool, "search_documents"},
		{askDocumentsTool, "ask_documents"},
		{listDocumentsTool, "list_documents"},
	}
	for _, tc := range cases {
		if tc.tool.Name != tc.want {
			t.Errorf("tool name: got %q, want %q", tc.tool.Name, tc.want)
		}
		if tc.tool.Description == "" {
			t.Errorf("%s: missing description", tc.want)
		}
	}
}

func TestSearchDocuments(t *testing.T) {
	searcher := &stubSearcher{results: []index.Result{
		{ChunkID: "d1:0", DocumentID: "d1", Seq: 0, Text: "The plan was adjusted.", Filename: "plan.txt", Score: 0.91},
	}}
	srv := newTestServer(t, searcher, &stubAnswerer{})

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{
		"query": "plan adjustments",
		"limit": 3,
	}

	result, err := srv.handleSearchDocuments(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool errored: %s", resultText(t, result))
	}

	text := resultText(t, result)
	if !strings.Contains(text, "plan.txt") || !strings.Contains(text, "The plan was adjusted.") {
		t.Errorf("result missing content: %s", text)
	}
	if searcher.lastK != 3 {
		t.Errorf("limit not forwarded, got %d", searcher.lastK)
	}
}

func TestSearchDocumentsScoped(t *testing.T) {
	searcher := &stubSearcher{}
	srv := newTestServer(t, searcher, &stubAnswerer{})

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{
		"query":       "anything",
		"document_id": "d7",
	}

	result, err := srv.handleSearchDocuments(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if searcher.filter == nil || searcher.filter.DocumentID != "d7" {
		t.Errorf("document filter not forwarded: %+v", searcher.filter)
	}
	if !strings.Contains(resultText(t, result), "No results") {
		t.Error("empty search should explain itself")
	}
}

func TestSearchDocumentsRequiresQuery(t *testing.T) {
	srv := newTestServer(t, &stubSearcher{}, &stubAnswerer{})

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{}

	result, err := srv.handleSearchDocuments(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Error("missing query should produce a tool error")
	}
}

func TestAskDocuments(t *testing.T) {
	answerer := &stubAnswerer{resp: &rag.GenerationResponse{
		Answer:    "The medication was changed in March [1].",
		Citations: []rag.Citation{{ChunkID: "d1:0", DocumentID: "d1", Seq: 0, Filename: "notes.txt"}},
	}}
	srv := newTestServer(t, &stubSearcher{}, answerer)

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{
		"question": "When did the medication change?",
	}

	result, err := srv.handleAskDocuments(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	text := resultText(t, result)
	if !strings.Contains(text, "changed in March") {
		t.Errorf("answer missing: %s", text)
	}
	if !strings.Contains(text, "Sources:") || !strings.Contains(text, "notes.txt") {
		t.Errorf("citations missing: %s", text)
	}
}

func TestAskDocumentsDegraded(t *testing.T) {
	answerer := &stubAnswerer{resp: &rag.GenerationResponse{
		Answer:   "Nothing relevant was found in the indexed documents.",
		Degraded: true,
	}}
	srv := newTestServer(t, &stubSearcher{}, answerer)

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{"question": "Anything?"}

	result, err := srv.handleAskDocuments(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(resultText(t, result), "no document context") {
		t.Error("degraded answers should be flagged in the output")
	}
}

func TestListDocuments(t *testing.T) {
	srv := newTestServer(t, &stubSearcher{}, &stubAnswerer{})
	ctx := context.Background()

	doc := &registry.Document{ID: "d1", Filename: "intake.txt", Format: "txt", Raw: []byte("x")}
	if err := srv.registry.Create(ctx, doc); err != nil {
		t.Fatalf("Create: %v", err)
	}

	result, err := srv.handleListDocuments(ctx, mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text := resultText(t, result)
	if !strings.Contains(text, "intake.txt") || !strings.Contains(text, "pending") {
		t.Errorf("listing incomplete: %s", text)
	}
}
