package domain

import (
	"strings"
	"time"
)

type DocumentStatus string

const (
	StatusUploaded    DocumentStatus = "uploaded"
	StatusProcessing  DocumentStatus = "processing"
	StatusOCRComplete DocumentStatus = "ocr_complete"
	StatusCompleted   DocumentStatus = "completed"
	StatusFailed      DocumentStatus = "failed"
)

// Known reports whether the status is one the backend documents.
func (s DocumentStatus) Known() bool {
	switch s {
	case StatusUploaded, StatusProcessing, StatusOCRComplete, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further status change is expected.
func (s DocumentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

type DocumentType string

const (
	TypeInvoice        DocumentType = "invoice"
	TypeContract       DocumentType = "contract"
	TypeMeetingMinutes DocumentType = "meeting_minutes"
	TypeEmail          DocumentType = "email"
)

// KnownDocumentTypes lists classification tags in display order.
var KnownDocumentTypes = []DocumentType{TypeInvoice, TypeContract, TypeMeetingMinutes, TypeEmail}

func (t DocumentType) Known() bool {
	for _, known := range KnownDocumentTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Document is the client copy of a server-owned record.
type Document struct {
	ID               string         `json:"id"`
	OriginalFilename string         `json:"original_filename"`
	FileType         string         `json:"file_type"`
	FileSize         int64          `json:"file_size"`
	Status           DocumentStatus `json:"status"`
	DocumentType     DocumentType   `json:"document_type,omitempty"`
	OCRText          *string        `json:"ocr_text,omitempty"`
	InvoiceData      *InvoiceData   `json:"invoice_data,omitempty"`
	ErrorMessage     *string        `json:"error_message,omitempty"`
	CreatedAt        *time.Time     `json:"created_at,omitempty"`
	UpdatedAt        *time.Time     `json:"updated_at,omitempty"`
}

// InvoiceData is the structured extraction result. Every node is optional.
type InvoiceData struct {
	InvoiceNumber *string  `json:"invoice_number,omitempty"`
	InvoiceDate   *string  `json:"invoice_date,omitempty"`
	DueDate       *string  `json:"due_date,omitempty"`
	PaymentTerms  *string  `json:"payment_terms,omitempty"`
	Subtotal      *string  `json:"subtotal,omitempty"`
	TaxAmount     *string  `json:"tax_amount,omitempty"`
	TotalAmount   *string  `json:"total_amount,omitempty"`
	Currency      *string  `json:"currency,omitempty"`
	Notes         *string  `json:"notes,omitempty"`
	Sender        *Contact `json:"sender,omitempty"`
	Receiver      *Contact `json:"receiver,omitempty"`
}

type Contact struct {
	Name    *string `json:"name,omitempty"`
	Address *string `json:"address,omitempty"`
	Email   *string `json:"email,omitempty"`
	Phone   *string `json:"phone,omitempty"`
	TaxID   *string `json:"tax_id,omitempty"`
}

// Present returns the trimmed value of an optional leaf and whether it should be shown.
func Present(v *string) (string, bool) {
	if v == nil {
		return "", false
	}
	s := strings.TrimSpace(*v)
	return s, s != ""
}

// StatusChange is observed when a document's status differs between two applied refreshes.
type StatusChange struct {
	DocumentID string         `json:"document_id"`
	Filename   string         `json:"filename"`
	From       DocumentStatus `json:"from,omitempty"`
	To         DocumentStatus `json:"to"`
	ObservedAt time.Time      `json:"observed_at"`
}

// DiffStatuses lists status changes from prev to next, in next's order.
// Documents new in next are reported with an empty From.
func DiffStatuses(prev, next []Document, at time.Time) []StatusChange {
	before := make(map[string]DocumentStatus, len(prev))
	for _, doc := range prev {
		before[doc.ID] = doc.Status
	}
	var changes []StatusChange
	for _, doc := range next {
		old, ok := before[doc.ID]
		if ok && old == doc.Status {
			continue
		}
		changes = append(changes, StatusChange{
			DocumentID: doc.ID,
			Filename:   doc.OriginalFilename,
			From:       old,
			To:         doc.Status,
			ObservedAt: at,
		})
	}
	return changes
}

// CollectionState is a read-only copy of the synchronized collection.
type CollectionState struct {
	Documents    []Document `json:"documents"`
	Loading      bool       `json:"loading"`
	Err          string     `json:"error,omitempty"`
	RefreshedAt  time.Time  `json:"refreshed_at,omitempty"`
	FromSnapshot bool       `json:"from_snapshot,omitempty"`
}

// DownloadLink is a short-lived URL for fetching the original file.
type DownloadLink struct {
	URL       string `json:"download_url"`
	Filename  string `json:"filename"`
	ExpiresIn int    `json:"expires_in"`
}
