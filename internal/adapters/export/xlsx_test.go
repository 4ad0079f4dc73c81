package export

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/compass-docsync/internal/adapters/view"
	"github.com/kirillkom/compass-docsync/internal/core/domain"
)

func TestWriteWorkbook(t *testing.T) {
	total := "42.00"
	sender := "ACME GmbH"
	docs := []domain.Document{
		{
			ID:               "doc-1",
			OriginalFilename: "invoice.pdf",
			FileType:         "application/pdf",
			FileSize:         2048,
			Status:           domain.StatusCompleted,
			DocumentType:     domain.TypeInvoice,
			InvoiceData:      &domain.InvoiceData{TotalAmount: &total, Sender: &domain.Contact{Name: &sender}},
		},
		{ID: "doc-2", OriginalFilename: "scan.png", Status: domain.StatusProcessing},
	}

	var buf bytes.Buffer
	if err := WriteWorkbook(&buf, docs, domain.CountByType(docs), view.DefaultFormatter()); err != nil {
		t.Fatalf("WriteWorkbook() error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(SheetDocuments)
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header and 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "ID" || rows[1][1] != "invoice.pdf" || rows[1][2] != "Completed" {
		t.Fatalf("unexpected first row: %v", rows[1])
	}
	if rows[1][13] != "42.00" || rows[1][15] != "ACME GmbH" {
		t.Fatalf("expected invoice columns, got %v", rows[1])
	}
	if rows[2][6] != view.MissingValue {
		t.Fatalf("expected missing timestamp marker, got %v", rows[2])
	}

	summary, err := f.GetRows(SheetSummary)
	if err != nil {
		t.Fatalf("GetRows(summary) error = %v", err)
	}
	if len(summary) != 6 || summary[1][1] != "2" || summary[2][0] != "invoice" || summary[2][1] != "1" {
		t.Fatalf("unexpected summary: %v", summary)
	}
}
