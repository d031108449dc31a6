// Package pipeline runs a batch of documents end to end: page text,
// routing, per-document aggregation on the worker pool, then cross-file
// merge, validation and export once every task has reported.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/formscan/internal/aggregate"
	"github.com/jackzampolin/formscan/internal/export"
	"github.com/jackzampolin/formscan/internal/extract"
	"github.com/jackzampolin/formscan/internal/ingest"
	"github.com/jackzampolin/formscan/internal/jobs"
	"github.com/jackzampolin/formscan/internal/ocr"
	"github.com/jackzampolin/formscan/internal/schema"
)

// ErrNoDocuments is returned when a run is started without input.
var ErrNoDocuments = errors.New("no documents to process")

// Config configures a Runner.
type Config struct {
	Source    ocr.Source
	Validator *schema.Validator
	Workers   int
	Timeout   time.Duration // 0 waits for every document
	RunID     string        // generated when empty
	Logger    *slog.Logger

	// Outputs; empty paths are skipped.
	OutputPath string
	Grouped    bool
	XLSXPath   string
	SQLitePath string
}

// Failure names a document whose task failed.
type Failure struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// FileOutcome is the validation result of one file.
type FileOutcome struct {
	File string `json:"file"`
	Rows int    `json:"rows"`
	schema.Outcome
}

// Summary reports a finished run.
type Summary struct {
	RunID            string        `json:"run_id"`
	Documents        int           `json:"documents"`
	Rows             int           `json:"rows"`
	AcceptedRows     int           `json:"accepted_rows"`
	Failures         []Failure     `json:"failures"`
	Outcomes         []FileOutcome `json:"outcomes"`
	ValidationFailed bool          `json:"validation_failed"`
	Outputs          []string      `json:"outputs,omitempty"`
	Duration         time.Duration `json:"duration"`
}

// docResult is what one document task hands back.
type docResult struct {
	table *aggregate.Table
	doc   aggregate.Document
}

// Runner processes batches of documents.
type Runner struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a runner.
func New(cfg Config) (*Runner, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("pipeline: source is required")
	}
	if cfg.Validator == nil {
		return nil, fmt.Errorf("pipeline: validator is required")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.New().String()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{cfg: cfg, logger: logger.With("run_id", cfg.RunID)}, nil
}

// RunID returns the run identifier stamped on logs and exports.
func (r *Runner) RunID() string {
	return r.cfg.RunID
}

// Process runs one document: page text, routing and aggregation.
func (r *Runner) Process(ctx context.Context, path string) (*aggregate.Table, aggregate.Document, error) {
	pages, err := r.cfg.Source.Pages(ctx, path)
	if err != nil {
		return nil, aggregate.Document{}, fmt.Errorf("failed to read pages: %w", err)
	}
	recs := extract.RoutePages(pages)
	return aggregate.Aggregate(recs, path)
}

// Run processes docs on the worker pool, waits for all of them (or the
// timeout), then merges, validates each file and exports the rows of files
// that passed validation.
func (r *Runner) Run(ctx context.Context, docs []ingest.Document) (*Summary, error) {
	if len(docs) == 0 {
		return nil, ErrNoDocuments
	}
	start := time.Now()
	r.logger.Info("run started", "documents", len(docs), "workers", r.cfg.Workers)

	pool := jobs.NewPool[docResult](jobs.PoolConfig{
		Name:      "documents",
		Logger:    r.logger,
		Workers:   r.cfg.Workers,
		QueueSize: len(docs),
	})
	pool.Start(ctx)
	for _, d := range docs {
		path := d.Path
		err := pool.Submit(jobs.Task[docResult]{
			ID: path,
			Run: func(ctx context.Context) (docResult, error) {
				table, doc, err := r.Process(ctx, path)
				return docResult{table: table, doc: doc}, err
			},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to submit %s: %w", path, err)
		}
	}

	waitCtx := ctx
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}
	results := pool.Wait(waitCtx)

	summary := &Summary{
		RunID:     r.cfg.RunID,
		Documents: len(docs),
		Failures:  []Failure{},
		Outcomes:  []FileOutcome{},
	}
	var (
		tables  []*aggregate.Table
		grouped []aggregate.Document
	)
	for _, res := range results {
		if res.Err != nil {
			summary.Failures = append(summary.Failures, Failure{File: res.ID, Error: res.Err.Error()})
			r.logger.Error("document failed", "file", res.ID, "error", res.Err)
			continue
		}
		tables = append(tables, res.Value.table)
		grouped = append(grouped, res.Value.doc)
	}

	merged, mergedDocs := aggregate.Merge(tables, grouped)
	summary.Rows = merged.Len()

	accepted := map[string]bool{}
	for _, d := range mergedDocs {
		batch := []map[string]any{}
		for i := range merged.Rows {
			if merged.Rows[i].File == d.File {
				batch = append(batch, merged.Flat(i))
			}
		}
		out := r.cfg.Validator.Validate(batch, d.File)
		summary.Outcomes = append(summary.Outcomes, FileOutcome{File: d.File, Rows: len(batch), Outcome: out})
		if out.Passed {
			accepted[d.File] = true
		} else {
			summary.ValidationFailed = true
		}
	}

	keptTable := merged.Filter(func(row aggregate.Row) bool { return accepted[row.File] })
	keptDocs := make([]aggregate.Document, 0, len(mergedDocs))
	for _, d := range mergedDocs {
		if accepted[d.File] {
			keptDocs = append(keptDocs, d)
		}
	}
	summary.AcceptedRows = keptTable.Len()

	outputs, err := r.export(ctx, keptTable, keptDocs)
	summary.Outputs = outputs
	summary.Duration = time.Since(start)
	if err != nil {
		return summary, err
	}

	r.logger.Info("run complete",
		"documents", summary.Documents,
		"failed", len(summary.Failures),
		"rows", summary.Rows,
		"accepted_rows", summary.AcceptedRows,
		"validation_failed", summary.ValidationFailed,
		"duration", summary.Duration,
	)
	return summary, nil
}

func (r *Runner) export(ctx context.Context, table *aggregate.Table, docs []aggregate.Document) ([]string, error) {
	var outputs []string
	if p := r.cfg.OutputPath; p != "" {
		var err error
		if r.cfg.Grouped {
			err = export.WriteGroupedJSON(p, docs)
		} else {
			err = export.WriteJSON(p, table)
		}
		if err != nil {
			return outputs, err
		}
		outputs = append(outputs, p)
	}
	if p := r.cfg.XLSXPath; p != "" {
		if err := export.WriteXLSX(p, table); err != nil {
			return outputs, err
		}
		outputs = append(outputs, p)
	}
	if p := r.cfg.SQLitePath; p != "" {
		if err := export.WriteSQLite(ctx, p, r.cfg.RunID, table); err != nil {
			return outputs, err
		}
		outputs = append(outputs, p)
	}
	for _, p := range outputs {
		r.logger.Info("wrote output", "path", p, "format", filepath.Ext(p))
	}
	return outputs, nil
}
