package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/compass-docsync/internal/core/domain"
)

// optString decodes an optional leaf. Extraction output is loosely typed, so
// numbers and booleans are kept as their JSON text; null, objects and arrays
// stay absent.
type optString struct {
	value *string
}

func (o *optString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		o.value = nil
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		o.value = &s
		return nil
	}
	if data[0] == '{' || data[0] == '[' {
		// A structured value where a leaf belongs is dropped, not fatal to the list.
		slog.Debug("wire_leaf_ignored", "kind", kindOf(data[0]))
		o.value = nil
		return nil
	}
	s := string(data)
	o.value = &s
	return nil
}

func kindOf(b byte) string {
	if b == '{' {
		return "object"
	}
	return "array"
}

// wireTime accepts the timestamp layouts the backend has been seen to emit,
// including ISO strings without a zone, which are read as UTC.
type wireTime struct {
	value *time.Time
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func (w *wireTime) UnmarshalJSON(data []byte) error {
	var raw *string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if raw == nil || strings.TrimSpace(*raw) == "" {
		w.value = nil
		return nil
	}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, strings.TrimSpace(*raw)); err == nil {
			w.value = &ts
			return nil
		}
	}
	// Unparseable timestamps are treated as missing rather than failing the whole list.
	w.value = nil
	return nil
}

type wireSize int64

func (s *wireSize) UnmarshalJSON(data []byte) error {
	text := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if text == "" || text == "null" {
		*s = 0
		return nil
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return fmt.Errorf("file_size: %w", err)
	}
	if v < 0 {
		v = 0
	}
	*s = wireSize(v)
	return nil
}

type contactDTO struct {
	Name    optString `json:"name"`
	Address optString `json:"address"`
	Email   optString `json:"email"`
	Phone   optString `json:"phone"`
	TaxID   optString `json:"tax_id"`
}

type invoiceDTO struct {
	InvoiceNumber optString   `json:"invoice_number"`
	InvoiceDate   optString   `json:"invoice_date"`
	DueDate       optString   `json:"due_date"`
	PaymentTerms  optString   `json:"payment_terms"`
	Subtotal      optString   `json:"subtotal"`
	TaxAmount     optString   `json:"tax_amount"`
	TotalAmount   optString   `json:"total_amount"`
	Currency      optString   `json:"currency"`
	Notes         optString   `json:"notes"`
	Sender        *contactDTO `json:"sender"`
	Receiver      *contactDTO `json:"receiver"`
}

type documentDTO struct {
	ID               string      `json:"id"`
	OriginalFilename string      `json:"original_filename"`
	FileType         string      `json:"file_type"`
	FileSize         wireSize    `json:"file_size"`
	Status           string      `json:"status"`
	DocumentType     *string     `json:"document_type"`
	OCRText          *string     `json:"ocr_text"`
	InvoiceData      *invoiceDTO `json:"invoice_data"`
	ErrorMessage     *string     `json:"error_message"`
	CreatedAt        wireTime    `json:"created_at"`
	UpdatedAt        wireTime    `json:"updated_at"`
	FileURL          string      `json:"file_url,omitempty"`
}

type listResponse struct {
	Documents []documentDTO `json:"documents"`
	Total     *int          `json:"total"`
}

type uploadResponse struct {
	Message  string       `json:"message"`
	Document *documentDTO `json:"document"`
}

type downloadResponse struct {
	DownloadURL string `json:"download_url"`
	Filename    string `json:"filename"`
	ExpiresIn   int    `json:"expires_in"`
}

type errorResponse struct {
	Detail json.RawMessage `json:"detail"`
}

func (d documentDTO) toDomain() domain.Document {
	doc := domain.Document{
		ID:               d.ID,
		OriginalFilename: d.OriginalFilename,
		FileType:         d.FileType,
		FileSize:         int64(d.FileSize),
		Status:           domain.DocumentStatus(d.Status),
		OCRText:          d.OCRText,
		ErrorMessage:     d.ErrorMessage,
		CreatedAt:        d.CreatedAt.value,
		UpdatedAt:        d.UpdatedAt.value,
	}
	if d.DocumentType != nil {
		doc.DocumentType = domain.DocumentType(strings.ToLower(strings.TrimSpace(*d.DocumentType)))
	}
	if d.InvoiceData != nil {
		doc.InvoiceData = d.InvoiceData.toDomain()
	}
	return doc
}

func (i invoiceDTO) toDomain() *domain.InvoiceData {
	return &domain.InvoiceData{
		InvoiceNumber: i.InvoiceNumber.value,
		InvoiceDate:   i.InvoiceDate.value,
		DueDate:       i.DueDate.value,
		PaymentTerms:  i.PaymentTerms.value,
		Subtotal:      i.Subtotal.value,
		TaxAmount:     i.TaxAmount.value,
		TotalAmount:   i.TotalAmount.value,
		Currency:      i.Currency.value,
		Notes:         i.Notes.value,
		Sender:        i.Sender.toDomain(),
		Receiver:      i.Receiver.toDomain(),
	}
}

func (c *contactDTO) toDomain() *domain.Contact {
	if c == nil {
		return nil
	}
	return &domain.Contact{
		Name:    c.Name.value,
		Address: c.Address.value,
		Email:   c.Email.value,
		Phone:   c.Phone.value,
		TaxID:   c.TaxID.value,
	}
}

// detailText flattens a FastAPI style detail, which is either a string or a
// list of validation items with a msg field.
func detailText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &items); err == nil {
		parts := make([]string, 0, len(items))
		for _, item := range items {
			if msg := strings.TrimSpace(item.Msg); msg != "" {
				parts = append(parts, msg)
			}
		}
		return strings.Join(parts, "; ")
	}
	return ""
}
