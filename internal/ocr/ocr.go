// Package ocr turns input documents into page text. The actual text
// recognition is delegated to external tools (pdftoppm and tesseract) or
// read from pre-computed sidecar text files.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackzampolin/formscan/internal/records"
)

// ErrNoText is returned when a source has no text for a document.
var ErrNoText = errors.New("no text available")

// Source produces the pages of one document, in page order.
type Source interface {
	Pages(ctx context.Context, path string) ([]records.Page, error)
}

// SplitPages splits a document's text into pages on form feeds. Page
// indexes are 1-based. A trailing empty page after a final form feed is
// dropped.
func SplitPages(file, text string) []records.Page {
	parts := strings.Split(text, "\f")
	if len(parts) > 1 && strings.TrimSpace(parts[len(parts)-1]) == "" {
		parts = parts[:len(parts)-1]
	}
	pages := make([]records.Page, len(parts))
	for i, p := range parts {
		pages[i] = records.Page{File: file, Index: i + 1, Text: p}
	}
	return pages
}

// SidecarSource reads page text from a .txt file next to the document:
// <name>.txt, or <name>.pdf.txt. Pages are separated by form feeds, the
// way tesseract and pdftotext write multi-page output.
type SidecarSource struct{}

// SidecarPath returns the first existing sidecar for path, or "".
func SidecarPath(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".txt") {
		return path
	}
	candidates := []string{
		strings.TrimSuffix(path, filepath.Ext(path)) + ".txt",
		path + ".txt",
	}
	for _, c := range candidates {
		if st, err := os.Stat(c); err == nil && !st.IsDir() {
			return c
		}
	}
	return ""
}

// Pages implements Source.
func (SidecarSource) Pages(ctx context.Context, path string) ([]records.Page, error) {
	sidecar := SidecarPath(path)
	if sidecar == "" {
		return nil, fmt.Errorf("%w: no sidecar text for %s", ErrNoText, path)
	}
	data, err := os.ReadFile(sidecar)
	if err != nil {
		return nil, fmt.Errorf("failed to read sidecar: %w", err)
	}
	return SplitPages(path, string(data)), nil
}

// AutoSource prefers a sidecar when one exists and falls back to OCR.
type AutoSource struct {
	Sidecar SidecarSource
	OCR     Source
}

// Pages implements Source.
func (a AutoSource) Pages(ctx context.Context, path string) ([]records.Page, error) {
	if SidecarPath(path) != "" || a.OCR == nil {
		return a.Sidecar.Pages(ctx, path)
	}
	return a.OCR.Pages(ctx, path)
}
