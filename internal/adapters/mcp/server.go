// Package mcp exposes the retrieval surface over the Model Context
// Protocol so agent runtimes can query the corpus without going through
// the HTTP API.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
	"github.com/kirillkom/pdf-rag-assistant/internal/core/ports"
)

type Config struct {
	Name    string
	Version string
}

// Server wraps an MCP stdio server around the same inbound ports the
// HTTP adapter uses.
type Server struct {
	mcpServer *server.MCPServer
	query     ports.CorpusQueryService
	reader    ports.DocumentReader
}

func NewServer(config Config, query ports.CorpusQueryService, reader ports.DocumentReader) *Server {
	if config.Name == "" {
		config.Name = "pdf-rag-assistant"
	}
	if config.Version == "" {
		config.Version = "dev"
	}

	mcpServer := server.NewMCPServer(
		config.Name,
		config.Version,
		server.WithToolCapabilities(true),
	)

	s := &Server{
		mcpServer: mcpServer,
		query:     query,
		reader:    reader,
	}

	queryTool := mcp.NewTool("query_corpus",
		mcp.WithDescription("Ask a question against the indexed document corpus. Returns a generated answer with source attributions."),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("Question to answer from the corpus"),
		),
		mcp.WithNumber("top_k",
			mcp.Description("Maximum number of source chunks to retrieve (default: 5)"),
		),
	)
	mcpServer.AddTool(queryTool, s.queryCorpusHandler)

	contextTool := mcp.NewTool("get_context",
		mcp.WithDescription("Retrieve the raw context bundle for a question without answer generation. Sources are deduplicated per page and carry image descriptions."),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("Question to retrieve context for"),
		),
		mcp.WithNumber("top_k",
			mcp.Description("Maximum number of source chunks to retrieve (default: 5)"),
		),
	)
	mcpServer.AddTool(contextTool, s.getContextHandler)

	listTool := mcp.NewTool("list_documents",
		mcp.WithDescription("List documents in the corpus with their processing status."),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of documents to return (default: all)"),
		),
	)
	mcpServer.AddTool(listTool, s.listDocumentsHandler)

	imagesTool := mcp.NewTool("get_page_images",
		mcp.WithDescription("Get the image descriptors extracted from one page of a document."),
		mcp.WithString("document_id",
			mcp.Required(),
			mcp.Description("Document identifier"),
		),
		mcp.WithNumber("page",
			mcp.Required(),
			mcp.Description("1-based page number"),
		),
	)
	mcpServer.AddTool(imagesTool, s.getPageImagesHandler)

	return s
}

func (s *Server) queryCorpusHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := req.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError("question parameter is required"), nil
	}
	topK := req.GetInt("top_k", 0)

	answer, err := s.query.Ask(ctx, question, topK)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
	}
	return marshalResult(answer)
}

func (s *Server) getContextHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := req.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError("question parameter is required"), nil
	}
	topK := req.GetInt("top_k", 0)

	bundle, err := s.query.AnswerContext(ctx, question, topK)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("context retrieval failed: %v", err)), nil
	}
	return marshalResult(bundle)
}

func (s *Server) listDocumentsHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 0)

	docs, err := s.reader.List(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
	}
	if docs == nil {
		docs = []domain.Document{}
	}
	return marshalResult(map[string]any{"documents": docs})
}

func (s *Server) getPageImagesHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("document_id")
	if err != nil {
		return mcp.NewToolResultError("document_id parameter is required"), nil
	}
	page, err := req.RequireInt("page")
	if err != nil {
		return mcp.NewToolResultError("page parameter is required"), nil
	}

	images, err := s.reader.PageImages(ctx, id, page)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("page images failed: %v", err)), nil
	}
	if images == nil {
		images = []domain.ImageDescriptor{}
	}
	return marshalResult(map[string]any{"images": images})
}

func marshalResult(payload any) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(raw)), nil
}

// ServeStdio blocks serving MCP requests over stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
