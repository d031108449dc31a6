// Package export writes accepted tidy rows to their destinations: a JSON
// file (flat or grouped), an XLSX workbook and a SQLite database.
package export

import (
	"encoding/json"
	"fmt"

	"github.com/jackzampolin/formscan/internal/aggregate"
	"github.com/jackzampolin/formscan/internal/fsutil"
)

// WriteJSON writes the flat tidy table as a JSON array of objects.
func WriteJSON(path string, t *aggregate.Table) error {
	if t == nil {
		t = &aggregate.Table{}
	}
	return writeJSON(path, t)
}

// WriteGroupedJSON writes the grouped {file, pages:[{page, records}]} form.
func WriteGroupedJSON(path string, docs []aggregate.Document) error {
	if docs == nil {
		docs = []aggregate.Document{}
	}
	return writeJSON(path, docs)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	data = append(data, '\n')
	if err := fsutil.WriteAtomic(path, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// header returns the column names of a table in output order.
func header(t *aggregate.Table) []string {
	cols := []string{aggregate.ColFile, aggregate.ColPage, aggregate.ColModel}
	return append(cols, t.Columns...)
}
