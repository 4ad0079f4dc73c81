package view

import (
	"github.com/kirillkom/compass-docsync/internal/core/domain"
)

const (
	StateLoading = "loading"
	StateEmpty   = "empty"
	StateReady   = "ready"

	LoadingMessage = "Loading documents..."
	EmptyMessage   = "No documents found"
	EmptyHint      = "Upload a document to get started"
)

type Tab struct {
	Filter domain.Filter `json:"filter"`
	Label  string        `json:"label"`
	Count  int           `json:"count"`
	Active bool          `json:"active"`
}

type ErrorBanner struct {
	Message string `json:"message"`
	Retry   string `json:"retry"`
}

type ListView struct {
	Tabs         []Tab         `json:"tabs"`
	Filter       domain.Filter `json:"filter"`
	State        string        `json:"state"`
	Message      string        `json:"message,omitempty"`
	Hint         string        `json:"hint,omitempty"`
	Loading      bool          `json:"loading"`
	Error        *ErrorBanner  `json:"error,omitempty"`
	Cards        []Card        `json:"cards"`
	RefreshedAt  string        `json:"refreshed_at,omitempty"`
	FromSnapshot bool          `json:"from_snapshot,omitempty"`
}

var tabLabels = map[domain.Filter]string{
	domain.FilterAll:                         "All",
	domain.Filter(domain.TypeInvoice):        "Invoices",
	domain.Filter(domain.TypeContract):       "Contracts",
	domain.Filter(domain.TypeMeetingMinutes): "Minutes",
	domain.Filter(domain.TypeEmail):          "Emails",
}

// Tabs lists the filter tabs with counts taken over the whole collection.
func Tabs(counts domain.TypeCounts, active domain.Filter) []Tab {
	tabs := []Tab{{Filter: domain.FilterAll, Label: tabLabels[domain.FilterAll], Count: counts.All, Active: active == domain.FilterAll}}
	for _, t := range domain.KnownDocumentTypes {
		f := domain.Filter(t)
		tabs = append(tabs, Tab{Filter: f, Label: tabLabels[f], Count: counts.Of(t), Active: active == f})
	}
	return tabs
}

// RenderList derives the whole list screen from one collection snapshot.
func (f *Formatter) RenderList(state domain.CollectionState, filter domain.Filter, showOCR bool) ListView {
	if filter == "" {
		filter = domain.FilterAll
	}
	filtered := domain.FilterByType(state.Documents, filter)

	out := ListView{
		Tabs:         Tabs(domain.CountByType(state.Documents), filter),
		Filter:       filter,
		Loading:      state.Loading,
		Cards:        make([]Card, 0, len(filtered)),
		FromSnapshot: state.FromSnapshot,
	}
	if !state.RefreshedAt.IsZero() {
		ts := state.RefreshedAt
		out.RefreshedAt = f.Timestamp(&ts)
	}
	if state.Err != "" {
		out.Error = &ErrorBanner{Message: "Error: " + state.Err, Retry: "Retry"}
	}

	switch {
	case state.Loading && len(state.Documents) == 0:
		out.State = StateLoading
		out.Message = LoadingMessage
	case len(filtered) == 0:
		out.State = StateEmpty
		out.Message = EmptyMessage
		out.Hint = EmptyHint
	default:
		out.State = StateReady
		for _, doc := range filtered {
			out.Cards = append(out.Cards, f.RenderCard(doc, showOCR))
		}
	}
	return out
}
