package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackzampolin/formscan/internal/ingest"
	"github.com/jackzampolin/formscan/internal/ocr"
	"github.com/jackzampolin/formscan/internal/records"
	"github.com/jackzampolin/formscan/internal/schema"
)

// fakeSource serves page text from memory. Files mapped to a nil slice
// block until the task context is cancelled.
type fakeSource struct {
	texts map[string][]string
	fail  map[string]error
}

func (f *fakeSource) Pages(ctx context.Context, path string) ([]records.Page, error) {
	if err := f.fail[path]; err != nil {
		return nil, err
	}
	texts, ok := f.texts[path]
	if !ok {
		return nil, ocr.ErrNoText
	}
	if texts == nil {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	pages := make([]records.Page, len(texts))
	for i, text := range texts {
		pages[i] = records.Page{File: path, Index: i + 1, Text: text}
	}
	return pages, nil
}

func newValidator(t *testing.T, seed bool, defs map[string]string) (*schema.Validator, string) {
	t.Helper()
	store := schema.NewStore(filepath.Join(t.TempDir(), "schemas"))
	if seed {
		if _, err := schema.Seed(store, nil); err != nil {
			t.Fatal(err)
		}
	}
	for docType, def := range defs {
		if err := store.Write(docType, []byte(def)); err != nil {
			t.Fatal(err)
		}
	}
	reg := schema.NewRegistry(schema.RegistryConfig{Store: store})
	if _, err := reg.Load(""); err != nil {
		t.Fatal(err)
	}
	logPath := filepath.Join(t.TempDir(), "validation_errors.jsonl")
	return schema.NewValidator(schema.ValidatorConfig{
		Registry: reg,
		ErrorLog: schema.NewErrorLog(logPath),
		RunID:    "run-test",
	}), logPath
}

func docs(paths ...string) []ingest.Document {
	out := make([]ingest.Document, len(paths))
	for i, p := range paths {
		out[i] = ingest.Document{Path: p}
	}
	return out
}

func TestRunner_EndToEnd(t *testing.T) {
	src := &fakeSource{
		texts: map[string][]string{
			"order-1.pdf": {
				"TOOL\nassembly type: DBF\ncopy number: 3\ncustomer code: ABC",
				"PIECE\ndiameter: 12.5\nPIECE\nheight: 4",
			},
			"blank.pdf": {"", "nothing to see"},
		},
		fail: map[string]error{"broken.pdf": errors.New("scanner jam")},
	}
	v, _ := newValidator(t, true, nil)
	out := t.TempDir()

	runner, err := New(Config{
		Source:     src,
		Validator:  v,
		Workers:    2,
		RunID:      "run-test",
		OutputPath: filepath.Join(out, "results.json"),
		XLSXPath:   filepath.Join(out, "results.xlsx"),
		SQLitePath: filepath.Join(out, "results.db"),
	})
	if err != nil {
		t.Fatal(err)
	}

	summary, err := runner.Run(context.Background(), docs("order-1.pdf", "blank.pdf", "broken.pdf"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if summary.Documents != 3 || summary.Rows != 3 || summary.AcceptedRows != 3 {
		t.Errorf("summary = %+v", summary)
	}
	if len(summary.Failures) != 1 || summary.Failures[0].File != "broken.pdf" ||
		!strings.Contains(summary.Failures[0].Error, "scanner jam") {
		t.Errorf("Failures = %+v", summary.Failures)
	}
	if summary.ValidationFailed {
		t.Errorf("ValidationFailed = true, outcomes = %+v", summary.Outcomes)
	}
	if len(summary.Outcomes) != 2 {
		t.Fatalf("Outcomes = %+v, want one per processed file", summary.Outcomes)
	}
	if o := summary.Outcomes[0]; o.File != "order-1.pdf" || o.DocType != "requisition" || o.Rows != 3 {
		t.Errorf("order-1 outcome = %+v", o)
	}
	if len(summary.Outputs) != 3 {
		t.Errorf("Outputs = %v", summary.Outputs)
	}

	data, err := os.ReadFile(filepath.Join(out, "results.json"))
	if err != nil {
		t.Fatal(err)
	}
	var rows []map[string]any
	if err := json.Unmarshal(data, &rows); err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("wrote %d rows, want 3", len(rows))
	}
	if rows[0]["model"] != "tool" || rows[0]["assemblyType"] != "DBF" {
		t.Errorf("first row = %v", rows[0])
	}
	if rows[1]["diameter"] != 12.5 || rows[2]["height"] != 4.0 {
		t.Errorf("piece rows = %v, %v", rows[1], rows[2])
	}
}

func TestRunner_GroupedOutput(t *testing.T) {
	src := &fakeSource{texts: map[string][]string{
		"a.pdf": {"CUSTOMER\nnickname: acme"},
		"b.pdf": {""},
	}}
	v, _ := newValidator(t, true, nil)
	path := filepath.Join(t.TempDir(), "grouped.json")

	runner, err := New(Config{Source: src, Validator: v, OutputPath: path, Grouped: true})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := runner.Run(context.Background(), docs("a.pdf", "b.pdf")); err != nil {
		t.Fatal(err)
	}

	data, _ := os.ReadFile(path)
	var grouped []struct {
		File  string            `json:"file"`
		Pages []json.RawMessage `json:"pages"`
	}
	if err := json.Unmarshal(data, &grouped); err != nil {
		t.Fatal(err)
	}
	if len(grouped) != 2 {
		t.Fatalf("got %d documents, want 2: %s", len(grouped), data)
	}
	if grouped[1].File != "b.pdf" || grouped[1].Pages == nil || len(grouped[1].Pages) != 0 {
		t.Errorf("b.pdf = %+v, want empty pages", grouped[1])
	}
}

func TestRunner_ValidationFailureExcludesFile(t *testing.T) {
	facture := `{"type":"array","items":{"type":"object","required":["numero_facture"]}}`
	src := &fakeSource{texts: map[string][]string{
		"facture_9.pdf": {"PIECE\ndiameter: 3"},
		"scan.pdf":      {"CUSTOMER\nnickname: acme"},
	}}
	v, logPath := newValidator(t, false, map[string]string{"facture": facture})
	path := filepath.Join(t.TempDir(), "results.json")

	runner, err := New(Config{Source: src, Validator: v, OutputPath: path})
	if err != nil {
		t.Fatal(err)
	}
	summary, err := runner.Run(context.Background(), docs("facture_9.pdf", "scan.pdf"))
	if err != nil {
		t.Fatal(err)
	}

	if !summary.ValidationFailed {
		t.Fatal("ValidationFailed = false")
	}
	if o := summary.Outcomes[0]; o.Passed || o.DocType != "facture" {
		t.Errorf("facture outcome = %+v", o)
	}
	if summary.AcceptedRows != 1 {
		t.Errorf("AcceptedRows = %d, want 1", summary.AcceptedRows)
	}

	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "facture_9.pdf") {
		t.Errorf("rejected file was exported: %s", data)
	}

	entries, err := schema.ReadErrorLog(logPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].File != "facture_9.pdf" || entries[0].RunID != "run-test" {
		t.Errorf("error log = %+v", entries)
	}
}

func TestRunner_TimeoutAbandonsSlowDocuments(t *testing.T) {
	src := &fakeSource{texts: map[string][]string{
		"fast.pdf": {"CUSTOMER\nnickname: quick"},
		"slow.pdf": nil,
	}}
	v, _ := newValidator(t, true, nil)

	runner, err := New(Config{Source: src, Validator: v, Workers: 2, Timeout: 200 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	summary, err := runner.Run(context.Background(), docs("fast.pdf", "slow.pdf"))
	if err != nil {
		t.Fatal(err)
	}
	if summary.Rows != 1 {
		t.Errorf("Rows = %d, want 1", summary.Rows)
	}
	if len(summary.Failures) != 1 || summary.Failures[0].File != "slow.pdf" {
		t.Errorf("Failures = %+v", summary.Failures)
	}
}

func TestRunner_Errors(t *testing.T) {
	v, _ := newValidator(t, false, nil)
	if _, err := New(Config{Validator: v}); err == nil {
		t.Error("New() accepted a config without source")
	}
	runner, err := New(Config{Source: &fakeSource{}, Validator: v})
	if err != nil {
		t.Fatal(err)
	}
	if runner.RunID() == "" {
		t.Error("RunID() is empty")
	}
	if _, err := runner.Run(context.Background(), nil); !errors.Is(err, ErrNoDocuments) {
		t.Errorf("Run(nil) error = %v, want ErrNoDocuments", err)
	}
}
