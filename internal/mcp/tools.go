package mcp

import "github.com/mark3labs/mcp-go/mcp"

// searchDocumentsTool defines the search_documents MCP tool.
var searchDocumentsTool = mcp.NewTool("search_documents",
	mcp.WithDescription("Search the indexed documents with hybrid semantic and keyword retrieval. Returns ranked chunks with their source document."),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Natural language search query"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of chunks to return (default 8)"),
	),
	mcp.WithString("document_id",
		mcp.Description("Restrict the search to a single document"),
	),
)

// askDocumentsTool defines the ask_documents MCP tool.
var askDocumentsTool = mcp.NewTool("ask_documents",
	mcp.WithDescription("Ask a question about the indexed documents. Retrieves relevant chunks and synthesizes a cited answer."),
	mcp.WithString("question",
		mcp.Required(),
		mcp.Description("The question to answer from the documents"),
	),
	mcp.WithString("document_id",
		mcp.Description("Restrict retrieval to a single document"),
	),
)

// listDocumentsTool defines the list_documents MCP tool.
var listDocumentsTool = mcp.NewTool("list_documents",
	mcp.WithDescription("List the registered documents with their ingestion status."),
)
