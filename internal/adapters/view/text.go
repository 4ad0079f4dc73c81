package view

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/kirillkom/compass-docsync/internal/core/domain"
)

// WriteText renders the list screen as plain text for terminals.
func WriteText(w io.Writer, list ListView, upload *domain.UploadState) error {
	bw := bufio.NewWriter(w)

	if upload != nil {
		writeUpload(bw, *upload)
	}
	if list.Error != nil {
		fmt.Fprintf(bw, "%s (%s)\n", list.Error.Message, list.Error.Retry)
	}

	tabs := make([]string, 0, len(list.Tabs))
	for _, tab := range list.Tabs {
		label := fmt.Sprintf("%s (%d)", tab.Label, tab.Count)
		if tab.Active {
			label = "[" + label + "]"
		}
		tabs = append(tabs, label)
	}
	fmt.Fprintln(bw, strings.Join(tabs, "  "))
	if list.RefreshedAt != "" {
		suffix := ""
		if list.FromSnapshot {
			suffix = " (cached)"
		}
		fmt.Fprintf(bw, "Last refreshed: %s%s\n", list.RefreshedAt, suffix)
	}
	fmt.Fprintln(bw)

	switch list.State {
	case StateLoading, StateEmpty:
		fmt.Fprintln(bw, list.Message)
		if list.Hint != "" {
			fmt.Fprintln(bw, list.Hint)
		}
	default:
		for i, card := range list.Cards {
			if i > 0 {
				fmt.Fprintln(bw)
			}
			writeCard(bw, card)
		}
	}
	return bw.Flush()
}

func writeUpload(w io.Writer, state domain.UploadState) {
	switch state.Phase {
	case domain.PhaseIdle:
		return
	case domain.PhaseError:
		fmt.Fprintf(w, "Upload failed: %s\n", state.ErrorMessage)
	default:
		line := fmt.Sprintf("%s: %s", state.Filename, state.ProgressText)
		if state.Pages > 0 {
			line += fmt.Sprintf(" (%d pages)", state.Pages)
		}
		fmt.Fprintln(w, line)
	}
}

func writeCard(w io.Writer, card Card) {
	header := fmt.Sprintf("[%s] %s", card.Status.Text, card.Filename)
	if card.TypeBadge != "" {
		header += " <" + card.TypeBadge + ">"
	}
	fmt.Fprintln(w, header)
	fmt.Fprintf(w, "  File Type: %s\n", card.FileType)
	fmt.Fprintf(w, "  Size: %s\n", card.Size)
	fmt.Fprintf(w, "  Uploaded: %s\n", card.Uploaded)
	if card.ErrorMessage != "" {
		fmt.Fprintf(w, "  Error: %s\n", card.ErrorMessage)
	}

	if card.Invoice != nil {
		for _, section := range card.Invoice.Sections {
			fmt.Fprintf(w, "  %s\n", section.Title)
			for _, field := range section.Fields {
				fmt.Fprintf(w, "    %s: %s\n", field.Label, field.Value)
			}
		}
		if card.Invoice.Notes != "" {
			fmt.Fprintf(w, "  Notes: %s\n", card.Invoice.Notes)
		}
	}

	if card.OCR != nil {
		fmt.Fprintf(w, "  %s\n", card.OCR.Label)
		if card.OCR.Expanded {
			for _, line := range strings.Split(card.OCR.Text, "\n") {
				fmt.Fprintf(w, "    %s\n", line)
			}
		}
	}
}
