package inspect

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/compass-docsync/internal/core/domain"
)

// PDFInspector reads the page count of PDF uploads without consuming the body.
type PDFInspector struct {
	logger *slog.Logger
}

func NewPDFInspector(logger *slog.Logger) *PDFInspector {
	if logger == nil {
		logger = slog.Default()
	}
	return &PDFInspector{logger: logger}
}

// PageCount returns 0 for non-PDF files, bodies without random access and
// documents the parser cannot read.
func (i *PDFInspector) PageCount(file domain.UploadFile) int {
	if !isPDF(file) || file.Size <= 0 {
		return 0
	}
	readerAt, ok := file.Body.(io.ReaderAt)
	if !ok {
		return 0
	}
	pages, err := countPages(readerAt, file.Size)
	if err != nil {
		i.logger.Debug("pdf_inspect_failed", "filename", file.Name, "error", err)
		return 0
	}
	return pages
}

func isPDF(file domain.UploadFile) bool {
	if file.ContentType != "" {
		return file.ContentType == "application/pdf"
	}
	return strings.EqualFold(filepath.Ext(file.Name), ".pdf")
}

func countPages(r io.ReaderAt, size int64) (pages int, err error) {
	// The parser panics on some malformed cross-reference tables.
	defer func() {
		if rec := recover(); rec != nil {
			pages, err = 0, fmt.Errorf("parse pdf: %v", rec)
		}
	}()
	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	return reader.NumPage(), nil
}
