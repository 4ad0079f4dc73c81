package view

import (
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/compass-docsync/internal/core/domain"
)

func strPtr(s string) *string { return &s }

func sectionTitles(inv *InvoiceView) []string {
	titles := make([]string, 0, len(inv.Sections))
	for _, s := range inv.Sections {
		titles = append(titles, s.Title)
	}
	return titles
}

func TestRenderCardInvoiceWithoutSender(t *testing.T) {
	f := DefaultFormatter()
	doc := domain.Document{
		ID:               "doc-1",
		OriginalFilename: "invoice.pdf",
		FileType:         "application/pdf",
		FileSize:         1536,
		Status:           domain.StatusCompleted,
		InvoiceData: &domain.InvoiceData{
			InvoiceNumber: strPtr("INV-7"),
			TotalAmount:   strPtr("120.00"),
			Currency:      strPtr("EUR"),
			DueDate:       strPtr("  "),
		},
	}

	card := f.RenderCard(doc, false)
	if card.Status.Text != "Completed" || card.Size != "1.5 KB" || card.Uploaded != MissingValue {
		t.Fatalf("unexpected metadata: %+v", card)
	}
	if card.TypeBadge != "Invoice" || card.Invoice == nil {
		t.Fatalf("expected invoice section")
	}
	titles := sectionTitles(card.Invoice)
	if len(titles) != 2 || titles[0] != "Invoice Details" || titles[1] != "Financial Summary" {
		t.Fatalf("expected only the fixed sections, got %v", titles)
	}
	details := card.Invoice.Sections[0].Fields
	if len(details) != 1 || details[0] != (Field{Label: "Invoice #", Value: "INV-7"}) {
		t.Fatalf("blank due date must be hidden, got %+v", details)
	}
	financial := card.Invoice.Sections[1].Fields
	if len(financial) != 1 || financial[0].Value != "120.00 EUR" {
		t.Fatalf("expected total with currency, got %+v", financial)
	}
}

func TestRenderCardEmptyReceiverStillShowsHeader(t *testing.T) {
	f := DefaultFormatter()
	card := f.RenderCard(domain.Document{
		ID:     "doc-2",
		Status: domain.StatusOCRComplete,
		InvoiceData: &domain.InvoiceData{
			TotalAmount: strPtr("5"),
			Receiver:    &domain.Contact{},
			Notes:       strPtr("Paid in cash"),
		},
	}, false)

	titles := sectionTitles(card.Invoice)
	if len(titles) != 3 || titles[2] != "To (Receiver)" {
		t.Fatalf("expected receiver header, got %v", titles)
	}
	if len(card.Invoice.Sections[2].Fields) != 0 {
		t.Fatalf("expected no receiver fields")
	}
	if card.Invoice.Sections[1].Fields[0].Value != "5" {
		t.Fatalf("total without currency must not carry a suffix: %+v", card.Invoice.Sections[1].Fields)
	}
	if card.Invoice.Notes != "Paid in cash" {
		t.Fatalf("expected notes, got %q", card.Invoice.Notes)
	}
}

func TestRenderCardWithoutInvoice(t *testing.T) {
	card := DefaultFormatter().RenderCard(domain.Document{ID: "doc-3", Status: "archived", FileSize: 512}, false)
	if card.Invoice != nil || card.TypeBadge != "" || card.OCR != nil {
		t.Fatalf("expected bare card, got %+v", card)
	}
	if card.Status.Text != "archived" || card.Status.Class != "status-unknown" {
		t.Fatalf("unknown status must render raw, got %+v", card.Status)
	}
	if card.Size != "512 B" {
		t.Fatalf("unexpected size %q", card.Size)
	}
}

func TestRenderCardOCRTruncation(t *testing.T) {
	f := DefaultFormatter()
	long := strings.Repeat("é", 1200)
	doc := domain.Document{ID: "doc-4", Status: domain.StatusCompleted, OCRText: &long}

	collapsed := f.RenderCard(doc, false)
	if collapsed.OCR == nil || collapsed.OCR.Label != "Show OCR Text" || collapsed.OCR.Text != "" {
		t.Fatalf("unexpected collapsed OCR: %+v", collapsed.OCR)
	}

	expanded := f.RenderCard(doc, true)
	if expanded.OCR.Label != "Hide OCR Text" || !expanded.OCR.Truncated {
		t.Fatalf("unexpected expanded OCR: %+v", expanded.OCR)
	}
	want := strings.Repeat("é", OCRPreviewLimit) + "..."
	if expanded.OCR.Text != want {
		t.Fatalf("expected %d runes plus indicator, got %d runes", OCRPreviewLimit, len([]rune(expanded.OCR.Text)))
	}

	short := "Total due 42"
	shortCard := f.RenderCard(domain.Document{OCRText: &short}, true)
	if shortCard.OCR.Text != short || shortCard.OCR.Truncated {
		t.Fatalf("short text must be shown whole, got %+v", shortCard.OCR)
	}
}

func TestFormatterLocales(t *testing.T) {
	ts := time.Date(2024, 3, 9, 14, 5, 6, 0, time.UTC)
	cases := []struct {
		locale string
		want   string
	}{
		{"en-US", "3/9/2024 2:05:06 PM"},
		{"en-GB", "09/03/2024 14:05:06"},
		{"de-DE", "9.3.2024 14:05:06"},
		{"ru", "09.03.2024 14:05:06"},
		{"ja-JP", "2024-03-09 14:05:06"},
	}
	for _, tc := range cases {
		f, err := NewFormatter(tc.locale, "UTC")
		if err != nil {
			t.Fatalf("NewFormatter(%q) error = %v", tc.locale, err)
		}
		if got := f.Timestamp(&ts); got != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.locale, tc.want, got)
		}
	}

	berlin, err := NewFormatter("de", "Europe/Berlin")
	if err != nil {
		t.Fatalf("NewFormatter() error = %v", err)
	}
	if got := berlin.Timestamp(&ts); got != "9.3.2024 15:05:06" {
		t.Fatalf("expected local time zone, got %q", got)
	}

	if _, err := NewFormatter("en-US", "Mars/Olympus"); err == nil {
		t.Fatalf("expected error for unknown time zone")
	}
}

func TestFileSizeUnits(t *testing.T) {
	f := DefaultFormatter()
	cases := map[int64]string{
		0:               "0 B",
		1023:            "1023 B",
		1024:            "1.0 KB",
		1536:            "1.5 KB",
		3 * 1024 * 1024: "3.0 MB",
	}
	for size, want := range cases {
		if got := f.FileSize(size); got != want {
			t.Fatalf("FileSize(%d) = %q, want %q", size, got, want)
		}
	}
}
