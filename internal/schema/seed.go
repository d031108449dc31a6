package schema

import (
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"

	"github.com/jackzampolin/formscan/internal/fsutil"
)

//go:embed defaults/*.json
var defaultsFS embed.FS

// Builtin returns the embedded definitions keyed by doc type.
func Builtin() (map[string][]byte, error) {
	entries, err := fs.ReadDir(defaultsFS, "defaults")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded schemas: %w", err)
	}
	out := make(map[string][]byte, len(entries))
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), fileExt) {
			continue
		}
		data, err := defaultsFS.ReadFile("defaults/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read embedded schema %s: %w", e.Name(), err)
		}
		out[DocTypeOf(e.Name())] = data
	}
	return out, nil
}

// Seed writes the built-in definitions into the store for every doc type
// that has no file yet. Existing files are never overwritten. It returns
// the doc types written.
func Seed(store *Store, logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	builtin, err := Builtin()
	if err != nil {
		return nil, err
	}
	if err := store.EnsureExists(); err != nil {
		return nil, err
	}

	docTypes := make([]string, 0, len(builtin))
	for docType := range builtin {
		docTypes = append(docTypes, docType)
	}
	sort.Strings(docTypes)

	var written []string
	for _, docType := range docTypes {
		if fsutil.Exists(store.Path(docType)) {
			logger.Debug("schema already present", "doc_type", docType)
			continue
		}
		if err := store.Write(docType, builtin[docType]); err != nil {
			return written, err
		}
		logger.Info("seeded schema", "doc_type", docType)
		written = append(written, docType)
	}
	return written, nil
}
