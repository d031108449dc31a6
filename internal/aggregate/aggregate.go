// Package aggregate flattens per-page records into tidy tables and
// per-file grouped documents.
package aggregate

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/jackzampolin/formscan/internal/records"
)

// ErrAggregationType is returned when a document stage hands over something
// that is not a valid record collection.
var ErrAggregationType = errors.New("invalid record collection")

// Fixed columns stamped on every row; never dropped.
const (
	ColFile  = "file"
	ColPage  = "page"
	ColModel = "model"
)

// Row is one flattened record.
type Row struct {
	File   string
	Page   int
	Model  records.Model
	Values map[string]any
}

// payloadEmpty reports whether every payload value is nil.
func (r Row) payloadEmpty() bool {
	for _, v := range r.Values {
		if v != nil {
			return false
		}
	}
	return true
}

// Table is a tidy table: one row per record, payload columns limited to the
// ones holding at least one non-nil value.
type Table struct {
	Columns []string
	Rows    []Row
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Flat returns row i as a flat mapping carrying every table column.
func (t *Table) Flat(i int) map[string]any {
	r := t.Rows[i]
	out := make(map[string]any, len(t.Columns)+3)
	out[ColFile] = r.File
	out[ColPage] = r.Page
	out[ColModel] = string(r.Model)
	for _, c := range t.Columns {
		out[c] = r.Values[c]
	}
	return out
}

// Maps returns every row as a flat mapping.
func (t *Table) Maps() []map[string]any {
	out := make([]map[string]any, t.Len())
	for i := range out {
		out[i] = t.Flat(i)
	}
	return out
}

// Filter returns a table holding the rows for which keep returns true.
// Columns are recomputed.
func (t *Table) Filter(keep func(Row) bool) *Table {
	var rows []Row
	for _, r := range t.Rows {
		if keep(r) {
			rows = append(rows, r)
		}
	}
	return build(rows)
}

// MarshalJSON encodes the table as an array of flat objects.
func (t *Table) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Maps())
}

// PageGroup holds the records of one page.
type PageGroup struct {
	Page    int              `json:"page"`
	Records []records.Record `json:"records"`
}

// Document is the grouped form of one input file.
type Document struct {
	File  string      `json:"file"`
	Pages []PageGroup `json:"pages"`
}

// Aggregate flattens the per-page records of one file.
// pages[i] holds the records of page i+1. A file with no usable records
// yields an empty table and a document with no pages.
func Aggregate(pages [][]records.Record, file string) (*Table, Document, error) {
	var rows []Row
	for i, recs := range pages {
		for j, rec := range recs {
			if err := rec.Check(); err != nil {
				return nil, Document{}, fmt.Errorf("%w: %s page %d record %d: %v", ErrAggregationType, file, i+1, j, err)
			}
			rows = append(rows, Row{
				File:   file,
				Page:   i + 1,
				Model:  rec.Model(),
				Values: rec.Fields(),
			})
		}
	}
	t := build(rows)
	docs := group(t)
	if len(docs) == 0 {
		return t, Document{File: file, Pages: []PageGroup{}}, nil
	}
	return t, docs[0], nil
}

// Merge combines per-file tables and documents of one run. Files keep their
// first-seen order; the column-drop rule is applied over the union.
func Merge(tables []*Table, docs []Document) (*Table, []Document) {
	var rows []Row
	for _, t := range tables {
		if t != nil {
			rows = append(rows, t.Rows...)
		}
	}

	var merged []Document
	index := map[string]int{}
	for _, d := range docs {
		i, ok := index[d.File]
		if !ok {
			index[d.File] = len(merged)
			pages := make([]PageGroup, len(d.Pages))
			copy(pages, d.Pages)
			merged = append(merged, Document{File: d.File, Pages: pages})
			continue
		}
		merged[i].Pages = append(merged[i].Pages, d.Pages...)
		sort.SliceStable(merged[i].Pages, func(a, b int) bool {
			return merged[i].Pages[a].Page < merged[i].Pages[b].Page
		})
	}
	return build(rows), merged
}

// build drops empty rows and all-nil columns and orders rows by file
// (first-seen) then page, keeping record order within a page.
func build(rows []Row) *Table {
	kept := make([]Row, 0, len(rows))
	for _, r := range rows {
		if !r.payloadEmpty() {
			kept = append(kept, r)
		}
	}

	rank := map[string]int{}
	for _, r := range kept {
		if _, ok := rank[r.File]; !ok {
			rank[r.File] = len(rank)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		ri, rj := rank[kept[i].File], rank[kept[j].File]
		if ri != rj {
			return ri < rj
		}
		return kept[i].Page < kept[j].Page
	})

	var cols []string
	seen := map[string]bool{}
	for _, r := range kept {
		for _, name := range records.FieldNames(r.Model) {
			if seen[name] || r.Values[name] == nil {
				continue
			}
			seen[name] = true
			cols = append(cols, name)
		}
	}
	return &Table{Columns: cols, Rows: kept}
}

// group converts table rows back into per-file documents.
func group(t *Table) []Document {
	var docs []Document
	index := map[string]int{}
	for _, r := range t.Rows {
		di, ok := index[r.File]
		if !ok {
			di = len(docs)
			index[r.File] = di
			docs = append(docs, Document{File: r.File, Pages: []PageGroup{}})
		}
		d := &docs[di]
		if n := len(d.Pages); n == 0 || d.Pages[n-1].Page != r.Page {
			d.Pages = append(d.Pages, PageGroup{Page: r.Page})
		}
		pg := &d.Pages[len(d.Pages)-1]
		pg.Records = append(pg.Records, toRecord(r))
	}
	return docs
}

// toRecord rebuilds a record from a row. Values were produced from a checked
// record, so every key belongs to the model.
func toRecord(r Row) records.Record {
	rec := records.MustNew(r.Model)
	for k, v := range r.Values {
		_ = rec.Set(k, v)
	}
	return rec
}
