package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/compass-docsync/internal/adapters/view"
	"github.com/kirillkom/compass-docsync/internal/core/domain"
)

const (
	mcpServerName    = "compass-docsync"
	mcpServerVersion = "1.0.0"

	toolListDocuments   = "list_documents"
	toolDocumentCounts  = "document_counts"
	toolGetDocument     = "get_document"
	toolRefreshDocument = "refresh_documents"
)

// mcpTools exposes the synchronized view to MCP clients. Tools only read the
// local collection, except refresh_documents which asks for a fresh fetch.
type mcpTools struct {
	rt *Router
}

func newMCPServer(rt *Router) *server.MCPServer {
	tools := &mcpTools{rt: rt}
	s := server.NewMCPServer(mcpServerName, mcpServerVersion, server.WithToolCapabilities(false))

	filterValues := []string{string(domain.FilterAll)}
	for _, t := range domain.KnownDocumentTypes {
		filterValues = append(filterValues, string(t))
	}

	s.AddTool(mcp.NewTool(toolListDocuments,
		mcp.WithDescription("List the user's documents as rendered cards, optionally filtered by classification."),
		mcp.WithString("filter", mcp.Description("Classification filter."), mcp.Enum(filterValues...)),
		mcp.WithBoolean("include_ocr", mcp.Description("Include the OCR preview of each document.")),
	), tools.listDocuments)

	s.AddTool(mcp.NewTool(toolDocumentCounts,
		mcp.WithDescription("Count documents per classification tag."),
	), tools.documentCounts)

	s.AddTool(mcp.NewTool(toolGetDocument,
		mcp.WithDescription("Show one document with its extracted invoice fields."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Document id.")),
		mcp.WithBoolean("include_ocr", mcp.Description("Include the OCR preview.")),
	), tools.getDocument)

	s.AddTool(mcp.NewTool(toolRefreshDocument,
		mcp.WithDescription("Fetch the document list from the backend now and report the counts."),
	), tools.refreshDocuments)

	return s
}

func newMCPHandler(rt *Router) http.Handler {
	return server.NewStreamableHTTPServer(newMCPServer(rt), server.WithStateLess(true))
}

func (t *mcpTools) listDocuments(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter, err := domain.ParseFilter(request.GetString("filter", string(domain.FilterAll)))
	if err != nil {
		return t.fail(toolListDocuments, err), nil
	}

	list := t.rt.formatter.RenderList(t.rt.collection.Snapshot(), filter, request.GetBool("include_ocr", false))
	var buf bytes.Buffer
	if err := view.WriteText(&buf, list, nil); err != nil {
		return t.fail(toolListDocuments, err), nil
	}
	return t.ok(toolListDocuments, buf.String()), nil
}

func (t *mcpTools) documentCounts(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	counts := domain.CountByType(t.rt.collection.Snapshot().Documents)
	return t.okJSON(toolDocumentCounts, counts), nil
}

func (t *mcpTools) getDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return t.fail(toolGetDocument, err), nil
	}

	doc, ok := t.rt.collection.Find(id)
	if !ok {
		if t.rt.documents == nil {
			return t.fail(toolGetDocument, domain.ErrDocumentNotFound), nil
		}
		fetched, err := t.rt.documents.GetDocument(ctx, id)
		if err != nil {
			return t.fail(toolGetDocument, err), nil
		}
		doc = *fetched
	}
	return t.okJSON(toolGetDocument, t.rt.formatter.RenderCard(doc, request.GetBool("include_ocr", false))), nil
}

func (t *mcpTools) refreshDocuments(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if t.rt.sync == nil {
		return t.fail(toolRefreshDocument, domain.WrapError(domain.ErrTemporary, "refresh", errSyncNotConfigured)), nil
	}
	if err := t.rt.sync.RefreshNow(ctx, "mcp"); err != nil {
		return t.fail(toolRefreshDocument, err), nil
	}
	return t.okJSON(toolRefreshDocument, domain.CountByType(t.rt.collection.Snapshot().Documents)), nil
}

func (t *mcpTools) ok(tool, text string) *mcp.CallToolResult {
	t.record(tool, "ok")
	return mcp.NewToolResultText(text)
}

func (t *mcpTools) okJSON(tool string, payload any) *mcp.CallToolResult {
	raw, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return t.fail(tool, err)
	}
	return t.ok(tool, string(raw))
}

func (t *mcpTools) fail(tool string, err error) *mcp.CallToolResult {
	t.record(tool, "error")
	t.rt.logger.Warn("mcp_tool_failed", "tool", tool, "error", err)
	return mcp.NewToolResultError(err.Error())
}

func (t *mcpTools) record(tool, status string) {
	if t.rt.metrics != nil {
		t.rt.metrics.RecordToolCall(serviceName, tool, status)
	}
}
