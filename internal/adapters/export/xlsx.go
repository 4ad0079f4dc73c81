package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/compass-docsync/internal/adapters/view"
	"github.com/kirillkom/compass-docsync/internal/core/domain"
)

const (
	SheetDocuments = "Documents"
	SheetSummary   = "Summary"
	ContentType    = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var documentColumns = []string{
	"ID", "Filename", "Status", "Type", "File Type", "Size (bytes)", "Uploaded",
	"Invoice #", "Invoice Date", "Due Date", "Payment Terms", "Subtotal", "Tax", "Total", "Currency",
	"Sender", "Receiver", "Error",
}

// WriteWorkbook writes docs and their type counts as an XLSX workbook.
func WriteWorkbook(w io.Writer, docs []domain.Document, counts domain.TypeCounts, formatter *view.Formatter) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName("Sheet1", SheetDocuments); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeDocuments(f, docs, formatter); err != nil {
		return err
	}
	if _, err := f.NewSheet(SheetSummary); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}
	if err := writeSummary(f, counts); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeDocuments(f *excelize.File, docs []domain.Document, formatter *view.Formatter) error {
	header := make([]any, 0, len(documentColumns))
	for _, col := range documentColumns {
		header = append(header, col)
	}
	if err := f.SetSheetRow(SheetDocuments, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	if err := f.SetRowStyle(SheetDocuments, 1, 1, bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, doc := range docs {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		row := documentRow(doc, formatter)
		if err := f.SetSheetRow(SheetDocuments, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.SetPanes(SheetDocuments, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}
	return nil
}

func documentRow(doc domain.Document, formatter *view.Formatter) []any {
	row := []any{
		doc.ID,
		doc.OriginalFilename,
		view.Badge(doc.Status).Text,
		string(doc.DocumentType),
		doc.FileType,
		doc.FileSize,
		formatter.Timestamp(doc.CreatedAt),
	}
	inv := doc.InvoiceData
	if inv == nil {
		inv = &domain.InvoiceData{}
	}
	row = append(row,
		text(inv.InvoiceNumber),
		text(inv.InvoiceDate),
		text(inv.DueDate),
		text(inv.PaymentTerms),
		text(inv.Subtotal),
		text(inv.TaxAmount),
		text(inv.TotalAmount),
		text(inv.Currency),
		contactName(inv.Sender),
		contactName(inv.Receiver),
		text(doc.ErrorMessage),
	)
	return row
}

func writeSummary(f *excelize.File, counts domain.TypeCounts) error {
	rows := [][]any{{"Type", "Documents"}, {"all", counts.All}}
	for _, t := range domain.KnownDocumentTypes {
		rows = append(rows, []any{string(t), counts.Of(t)})
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		if err := f.SetSheetRow(SheetSummary, cell, &row); err != nil {
			return fmt.Errorf("write summary row: %w", err)
		}
	}
	return nil
}

func text(v *string) string {
	s, _ := domain.Present(v)
	return s
}

func contactName(c *domain.Contact) string {
	if c == nil {
		return ""
	}
	return text(c.Name)
}
