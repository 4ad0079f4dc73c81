package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kirillkom/compass-docsync/internal/config"
	"github.com/kirillkom/compass-docsync/internal/core/domain"
)

func newTestTools(services Services) *mcpTools {
	return &mcpTools{rt: NewRouter(config.Config{}, services)}
}

func toolRequest(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil || len(result.Content) == 0 {
		t.Fatalf("expected tool content, got %+v", result)
	}
	text, ok := mcp.AsTextContent(result.Content[0])
	if !ok {
		t.Fatalf("expected text content, got %T", result.Content[0])
	}
	return text.Text
}

func TestMCPListDocumentsRendersFilteredText(t *testing.T) {
	tools := newTestTools(Services{Collection: &fakeCollection{state: domain.CollectionState{Documents: sampleDocuments()}}})

	result, err := tools.listDocuments(context.Background(), toolRequest(toolListDocuments, map[string]any{"filter": "invoice"}))
	if err != nil {
		t.Fatalf("listDocuments() error = %v", err)
	}
	text := resultText(t, result)
	if !strings.Contains(text, "[Invoices (2)]") {
		t.Fatalf("expected active invoice tab, got:\n%s", text)
	}
	if !strings.Contains(text, "a.pdf") || strings.Contains(text, "b.pdf") {
		t.Fatalf("expected only invoices listed, got:\n%s", text)
	}
}

func TestMCPListDocumentsRejectsUnknownFilter(t *testing.T) {
	tools := newTestTools(Services{Collection: &fakeCollection{}})

	result, err := tools.listDocuments(context.Background(), toolRequest(toolListDocuments, map[string]any{"filter": "receipts"}))
	if err != nil {
		t.Fatalf("listDocuments() error = %v", err)
	}
	if !result.IsError {
		t.Fatalf("expected tool error result")
	}
}

func TestMCPDocumentCounts(t *testing.T) {
	tools := newTestTools(Services{Collection: &fakeCollection{state: domain.CollectionState{Documents: sampleDocuments()}}})

	result, _ := tools.documentCounts(context.Background(), toolRequest(toolDocumentCounts, nil))
	var counts domain.TypeCounts
	if err := json.Unmarshal([]byte(resultText(t, result)), &counts); err != nil {
		t.Fatalf("decode counts: %v", err)
	}
	if counts.All != 5 || counts.Of(domain.TypeInvoice) != 2 || counts.Of(domain.TypeMeetingMinutes) != 0 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
}

func TestMCPGetDocumentRequiresID(t *testing.T) {
	tools := newTestTools(Services{Collection: &fakeCollection{}})

	result, _ := tools.getDocument(context.Background(), toolRequest(toolGetDocument, map[string]any{}))
	if !result.IsError {
		t.Fatalf("expected missing id to fail")
	}
}

func TestMCPGetDocumentFromCollection(t *testing.T) {
	tools := newTestTools(Services{Collection: &fakeCollection{state: domain.CollectionState{Documents: sampleDocuments()}}})

	result, _ := tools.getDocument(context.Background(), toolRequest(toolGetDocument, map[string]any{"id": "1"}))
	if result.IsError || !strings.Contains(resultText(t, result), `"filename": "a.pdf"`) {
		t.Fatalf("unexpected card result: %+v", result)
	}
}

func TestMCPRefreshReportsFailure(t *testing.T) {
	sync := &fakeSync{err: domain.WrapError(domain.ErrSyncFailed, "refresh documents", errors.New("down"))}
	tools := newTestTools(Services{Collection: &fakeCollection{}, Sync: sync})

	result, _ := tools.refreshDocuments(context.Background(), toolRequest(toolRefreshDocument, nil))
	if !result.IsError || !strings.Contains(resultText(t, result), "down") {
		t.Fatalf("expected refresh failure surfaced, got %+v", result)
	}
	if len(sync.reasons) != 1 || sync.reasons[0] != "mcp" {
		t.Fatalf("expected one mcp refresh, got %v", sync.reasons)
	}
}
