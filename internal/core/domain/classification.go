package domain

import (
	"fmt"
	"strings"
)

// Filter selects documents by classification tag. FilterAll keeps everything.
type Filter string

const FilterAll Filter = "all"

func ParseFilter(raw string) (Filter, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" || value == string(FilterAll) {
		return FilterAll, nil
	}
	if DocumentType(value).Known() {
		return Filter(value), nil
	}
	return "", WrapError(ErrInvalidInput, "parse filter", fmt.Errorf("unknown filter %q", raw))
}

// TypeCounts holds per-tag totals. All counts every document, tagged or not.
type TypeCounts struct {
	All    int                  `json:"all"`
	ByType map[DocumentType]int `json:"by_type"`
}

func (c TypeCounts) Of(t DocumentType) int {
	return c.ByType[t]
}

func CountByType(docs []Document) TypeCounts {
	counts := TypeCounts{
		All:    len(docs),
		ByType: make(map[DocumentType]int, len(KnownDocumentTypes)),
	}
	for _, t := range KnownDocumentTypes {
		counts.ByType[t] = 0
	}
	for _, doc := range docs {
		if _, ok := counts.ByType[doc.DocumentType]; ok {
			counts.ByType[doc.DocumentType]++
		}
	}
	return counts
}

// FilterByType returns docs unchanged for FilterAll, otherwise the stable
// subsequence whose tag equals the filter.
func FilterByType(docs []Document, filter Filter) []Document {
	if filter == FilterAll || filter == "" {
		return docs
	}
	out := make([]Document, 0, len(docs))
	for _, doc := range docs {
		if string(doc.DocumentType) == string(filter) {
			out = append(out, doc)
		}
	}
	return out
}
