package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Outcome is the result of validating one batch. A mismatch is an outcome,
// not an error.
type Outcome struct {
	DocType string   `json:"doc_type"`
	Passed  bool     `json:"passed"`
	Path    []string `json:"violation_path,omitempty"`
	Message string   `json:"message,omitempty"`
}

// ValidatorConfig configures a Validator.
type ValidatorConfig struct {
	Registry *Registry
	ErrorLog *ErrorLog // optional; failures are only logged through slog when nil
	RunID    string
	Logger   *slog.Logger
}

// Validator resolves the doc type of a batch and validates it against the
// registry's current snapshot.
type Validator struct {
	registry *Registry
	errLog   *ErrorLog
	runID    string
	logger   *slog.Logger
}

// NewValidator creates a validator.
func NewValidator(cfg ValidatorConfig) *Validator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{
		registry: cfg.Registry,
		errLog:   cfg.ErrorLog,
		runID:    cfg.RunID,
		logger:   logger.With("component", "schema_validator"),
	}
}

// filename keywords, checked in order
var hints = []struct {
	keywords []string
	docType  string
}{
	{[]string{"facture", "invoice"}, "facture"},
	{[]string{"plan"}, "plan"},
	{[]string{"order", "requisition"}, "requisition"},
}

// Classify returns the doc type a batch resolves to: the first registered
// non-default schema (ascending doc-type name) accepting every record,
// else the filename heuristic on hint, else default.
func (v *Validator) Classify(batch []map[string]any, hint string) string {
	doc, err := normalizeBatch(batch)
	if err != nil {
		return v.byHint(hint)
	}
	return v.classify(doc, len(batch), hint)
}

func (v *Validator) classify(doc any, n int, hint string) string {
	// An empty array satisfies any array schema, so it never decides the type.
	if n > 0 {
		for _, s := range v.registry.candidates() {
			if s.Validate(doc) == nil {
				return s.DocType
			}
		}
	}
	return v.byHint(hint)
}

func (v *Validator) byHint(hint string) string {
	name := strings.ToLower(filepath.Base(hint))
	for _, h := range hints {
		for _, kw := range h.keywords {
			if strings.Contains(name, kw) {
				if _, ok := v.registry.Lookup(h.docType); ok {
					return h.docType
				}
				return DefaultDocType
			}
		}
	}
	return DefaultDocType
}

// Validate classifies the batch and validates it against the resolved
// schema. Failures are appended to the error log.
func (v *Validator) Validate(batch []map[string]any, sourceHint string) Outcome {
	doc, err := normalizeBatch(batch)
	if err != nil {
		return v.fail(sourceHint, Outcome{DocType: DefaultDocType, Message: err.Error()})
	}
	docType := v.classify(doc, len(batch), sourceHint)
	return v.check(docType, doc, sourceHint)
}

// ValidateAs validates the batch against docType directly, skipping
// classification. Unregistered doc types resolve to default.
func (v *Validator) ValidateAs(docType string, batch []map[string]any, sourceHint string) Outcome {
	doc, err := normalizeBatch(batch)
	if err != nil {
		return v.fail(sourceHint, Outcome{DocType: v.registry.Get(docType).DocType, Message: err.Error()})
	}
	return v.check(docType, doc, sourceHint)
}

func (v *Validator) check(docType string, doc any, hint string) Outcome {
	s := v.registry.Get(docType)
	out := Outcome{DocType: s.DocType, Passed: true}
	if err := s.Validate(doc); err != nil {
		out.Passed = false
		out.Path, out.Message = violation(err)
		return v.fail(hint, out)
	}
	v.logger.Debug("batch validated", "file", hint, "doc_type", out.DocType)
	return out
}

func (v *Validator) fail(hint string, out Outcome) Outcome {
	out.Passed = false
	v.logger.Warn("validation failed",
		"file", hint,
		"doc_type", out.DocType,
		"path", strings.Join(out.Path, "."),
		"message", out.Message,
	)
	err := v.errLog.Append(ErrorEntry{
		RunID:   v.runID,
		File:    hint,
		DocType: out.DocType,
		Message: out.Message,
		Path:    out.Path,
	})
	if err != nil {
		v.logger.Error("failed to record validation error", "error", err)
	}
	return out
}

// violation extracts the deepest cause of a validation error: the path of
// the offending instance location and its message.
func violation(err error) ([]string, string) {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return nil, err.Error()
	}
	leaf := ve
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}
	return pointerPath(leaf.InstanceLocation), leaf.Message
}

func pointerPath(loc string) []string {
	loc = strings.TrimPrefix(loc, "/")
	if loc == "" {
		return nil
	}
	parts := strings.Split(loc, "/")
	for i, p := range parts {
		p = strings.ReplaceAll(p, "~1", "/")
		parts[i] = strings.ReplaceAll(p, "~0", "~")
	}
	return parts
}

func normalizeBatch(batch []map[string]any) (any, error) {
	if batch == nil {
		batch = []map[string]any{}
	}
	return normalize(batch)
}

// normalize round-trips v through JSON so that the validator sees the same
// types a decoded document would have: objects, arrays, json.Number.
func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("batch is not JSON-encodable: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("batch is not JSON-decodable: %w", err)
	}
	return doc, nil
}
