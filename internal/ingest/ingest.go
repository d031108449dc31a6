// Package ingest discovers the scanned order forms to process.
package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Request describes where to look for documents.
type Request struct {
	Root   string       // directory walked recursively
	Paths  []string     // explicit files, used as given when Root is empty
	Logger *slog.Logger // Optional logger for progress updates
}

// Document is one discovered input file.
type Document struct {
	Path  string
	Title string // file name without extension and numeric suffix
}

var (
	numberSuffix = regexp.MustCompile(`(?i)[-_ ](\d+)\.pdf$`)
	titleSuffix  = regexp.MustCompile(`[-_ ]\d+$`)
)

// Discover returns the PDFs under req.Root (or the explicit req.Paths),
// ordered by directory, then title, then numeric suffix.
func Discover(ctx context.Context, req Request) ([]Document, error) {
	log := req.Logger
	if log == nil {
		log = slog.Default()
	}

	var paths []string
	switch {
	case req.Root != "":
		st, err := os.Stat(req.Root)
		if err != nil {
			return nil, fmt.Errorf("input not found: %w", err)
		}
		if !st.IsDir() {
			paths = []string{req.Root}
			break
		}
		err = filepath.WalkDir(req.Root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if d.IsDir() {
				if path != req.Root && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if isPDF(path) {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", req.Root, err)
		}
	case len(req.Paths) > 0:
		for _, p := range req.Paths {
			if _, err := os.Stat(p); err != nil {
				return nil, fmt.Errorf("PDF not found: %s", p)
			}
		}
		paths = req.Paths
	default:
		return nil, fmt.Errorf("no input directory or PDF paths provided")
	}

	sorted := sortPDFsByNumber(paths)
	docs := make([]Document, len(sorted))
	for i, p := range sorted {
		docs[i] = Document{Path: p, Title: deriveTitle(p)}
	}
	log.Info("discovered documents", "count", len(docs), "root", req.Root)
	return docs, nil
}

func isPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

// sortPDFsByNumber sorts PDF paths by directory, title and numeric suffix.
// e.g., ["form-2.pdf", "form-1.pdf", "form-10.pdf"] -> ["form-1.pdf", "form-2.pdf", "form-10.pdf"]
func sortPDFsByNumber(paths []string) []string {
	sorted := make([]string, len(paths))
	copy(sorted, paths)

	sort.SliceStable(sorted, func(i, j int) bool {
		di, dj := filepath.Dir(sorted[i]), filepath.Dir(sorted[j])
		if di != dj {
			return di < dj
		}
		ti, tj := deriveTitle(sorted[i]), deriveTitle(sorted[j])
		if ti != tj {
			return ti < tj
		}

		mi := numberSuffix.FindStringSubmatch(sorted[i])
		mj := numberSuffix.FindStringSubmatch(sorted[j])

		// If both have numbers, sort numerically
		if len(mi) > 1 && len(mj) > 1 {
			ni, _ := strconv.Atoi(mi[1])
			nj, _ := strconv.Atoi(mj[1])
			return ni < nj
		}

		// Files without numbers come first
		if len(mi) > 1 {
			return false
		}
		if len(mj) > 1 {
			return true
		}

		// Both without numbers: alphabetical
		return sorted[i] < sorted[j]
	})

	return sorted
}

// deriveTitle extracts a title from a PDF filename.
// e.g., "die-order.pdf" -> "die-order"
// e.g., "die-order-1.pdf" -> "die-order"
func deriveTitle(pdfPath string) string {
	base := filepath.Base(pdfPath)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return titleSuffix.ReplaceAllString(name, "")
}
