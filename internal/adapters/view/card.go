package view

import (
	"github.com/kirillkom/compass-docsync/internal/core/domain"
)

// OCRPreviewLimit is the number of characters of OCR text a card reveals.
const OCRPreviewLimit = 1000

type StatusBadge struct {
	Text  string `json:"text"`
	Class string `json:"class"`
}

type Field struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

type Section struct {
	Title  string  `json:"title"`
	Fields []Field `json:"fields"`
}

type InvoiceView struct {
	Sections []Section `json:"sections"`
	Notes    string    `json:"notes,omitempty"`
}

// OCRView is the disclosure for extracted text. Text is computed once per
// render; toggling only changes Expanded and Label.
type OCRView struct {
	Label     string `json:"label"`
	Expanded  bool   `json:"expanded"`
	Text      string `json:"text,omitempty"`
	Truncated bool   `json:"truncated"`
}

type Card struct {
	ID           string       `json:"id"`
	Filename     string       `json:"filename"`
	Status       StatusBadge  `json:"status"`
	TypeBadge    string       `json:"type_badge,omitempty"`
	FileType     string       `json:"file_type"`
	Size         string       `json:"size"`
	Uploaded     string       `json:"uploaded"`
	ErrorMessage string       `json:"error_message,omitempty"`
	Invoice      *InvoiceView `json:"invoice,omitempty"`
	OCR          *OCRView     `json:"ocr,omitempty"`
}

var statusBadges = map[domain.DocumentStatus]StatusBadge{
	domain.StatusUploaded:    {Text: "Uploaded", Class: "status-uploaded"},
	domain.StatusProcessing:  {Text: "Processing", Class: "status-processing"},
	domain.StatusOCRComplete: {Text: "OCR Complete", Class: "status-ocr"},
	domain.StatusCompleted:   {Text: "Completed", Class: "status-completed"},
	domain.StatusFailed:      {Text: "Failed", Class: "status-failed"},
}

// Badge returns the label for status; unknown statuses are shown as sent.
func Badge(status domain.DocumentStatus) StatusBadge {
	if badge, ok := statusBadges[status]; ok {
		return badge
	}
	return StatusBadge{Text: string(status), Class: "status-unknown"}
}

// RenderCard never fails: every optional node that is absent is simply left out.
func (f *Formatter) RenderCard(doc domain.Document, showOCR bool) Card {
	card := Card{
		ID:       doc.ID,
		Filename: doc.OriginalFilename,
		Status:   Badge(doc.Status),
		FileType: doc.FileType,
		Size:     f.FileSize(doc.FileSize),
		Uploaded: f.Timestamp(doc.CreatedAt),
	}
	if msg, ok := domain.Present(doc.ErrorMessage); ok {
		card.ErrorMessage = msg
	}
	if doc.InvoiceData != nil {
		card.TypeBadge = "Invoice"
		card.Invoice = renderInvoice(doc.InvoiceData)
	}
	if text, ok := presentRaw(doc.OCRText); ok {
		card.OCR = renderOCR(text, showOCR)
	}
	return card
}

func renderInvoice(inv *domain.InvoiceData) *InvoiceView {
	details := Section{Title: "Invoice Details", Fields: []Field{}}
	details.Fields = appendField(details.Fields, "Invoice #", inv.InvoiceNumber)
	details.Fields = appendField(details.Fields, "Date", inv.InvoiceDate)
	details.Fields = appendField(details.Fields, "Due Date", inv.DueDate)
	details.Fields = appendField(details.Fields, "Payment Terms", inv.PaymentTerms)

	financial := Section{Title: "Financial Summary", Fields: []Field{}}
	financial.Fields = appendField(financial.Fields, "Subtotal", inv.Subtotal)
	financial.Fields = appendField(financial.Fields, "Tax", inv.TaxAmount)
	if total, ok := domain.Present(inv.TotalAmount); ok {
		if currency, ok := domain.Present(inv.Currency); ok {
			total += " " + currency
		}
		financial.Fields = append(financial.Fields, Field{Label: "Total", Value: total})
	}

	out := &InvoiceView{Sections: []Section{details, financial}}
	if inv.Sender != nil {
		out.Sections = append(out.Sections, renderContact("From (Sender)", inv.Sender))
	}
	if inv.Receiver != nil {
		out.Sections = append(out.Sections, renderContact("To (Receiver)", inv.Receiver))
	}
	if notes, ok := domain.Present(inv.Notes); ok {
		out.Notes = notes
	}
	return out
}

func renderContact(title string, c *domain.Contact) Section {
	section := Section{Title: title, Fields: []Field{}}
	section.Fields = appendField(section.Fields, "Name", c.Name)
	section.Fields = appendField(section.Fields, "Address", c.Address)
	section.Fields = appendField(section.Fields, "Email", c.Email)
	section.Fields = appendField(section.Fields, "Phone", c.Phone)
	section.Fields = appendField(section.Fields, "Tax ID", c.TaxID)
	return section
}

func appendField(fields []Field, label string, v *string) []Field {
	if value, ok := domain.Present(v); ok {
		return append(fields, Field{Label: label, Value: value})
	}
	return fields
}

// presentRaw keeps OCR text byte for byte; only blank text counts as absent.
func presentRaw(v *string) (string, bool) {
	if _, ok := domain.Present(v); !ok {
		return "", false
	}
	return *v, true
}

func renderOCR(text string, expanded bool) *OCRView {
	preview, truncated := truncateRunes(text, OCRPreviewLimit)
	if truncated {
		preview += "..."
	}
	view := &OCRView{Expanded: expanded, Truncated: truncated, Label: "Show OCR Text"}
	if expanded {
		view.Label = "Hide OCR Text"
		view.Text = preview
	}
	return view
}

func truncateRunes(s string, limit int) (string, bool) {
	count := 0
	for i := range s {
		if count == limit {
			return s[:i], true
		}
		count++
	}
	return s, false
}
