package schema

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
)

// ErrInvalidDocType is returned for doc type names that cannot name a
// store file.
var ErrInvalidDocType = errors.New("invalid doc type")

var docTypeRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_\-]*$`)

// LearnerConfig configures a Learner.
type LearnerConfig struct {
	Store    *Store
	Registry *Registry
	Infer    InferFunc // defaults to Infer
	Logger   *slog.Logger
}

// Learner replaces a doc type's persisted schema with one inferred from
// confirmed examples, but only once the inferred draft accepts every one
// of them.
type Learner struct {
	store    *Store
	registry *Registry
	infer    InferFunc
	logger   *slog.Logger
}

// NewLearner creates a learner.
func NewLearner(cfg LearnerConfig) *Learner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	infer := cfg.Infer
	if infer == nil {
		infer = Infer
	}
	return &Learner{
		store:    cfg.Store,
		registry: cfg.Registry,
		infer:    infer,
		logger:   logger.With("component", "schema_learner"),
	}
}

// Learn infers a draft from examples, checks every example against it and,
// when all pass, backs up the current definition, persists the draft and
// reloads the registry. It returns false with a nil error when the draft
// is rejected; the persisted definition is then untouched.
//
// A true result with a non-nil error means the draft was persisted but the
// registry reload failed.
func (l *Learner) Learn(docType string, examples []map[string]any) (bool, error) {
	if !docTypeRe.MatchString(docType) {
		return false, fmt.Errorf("%w: %q", ErrInvalidDocType, docType)
	}
	logger := l.logger.With("doc_type", docType, "examples", len(examples))

	if len(examples) == 0 {
		logger.Warn("learn rejected", "reason", "no examples")
		return false, nil
	}

	draft, err := l.infer(examples)
	if err != nil {
		logger.Warn("learn rejected", "reason", "inference failed", "error", err)
		return false, nil
	}
	compiled, err := Compile(docType, draft)
	if err != nil {
		logger.Warn("learn rejected", "reason", "draft does not compile", "error", err)
		return false, nil
	}
	for i, ex := range examples {
		doc, err := normalizeBatch([]map[string]any{ex})
		if err != nil {
			logger.Warn("learn rejected", "reason", "example not encodable", "index", i, "error", err)
			return false, nil
		}
		if err := compiled.Validate(doc); err != nil {
			path, msg := violation(err)
			logger.Warn("learn rejected", "reason", "draft rejects example",
				"index", i, "path", path, "message", msg)
			return false, nil
		}
	}
	logger.Debug("draft self-validated")

	backedUp, err := l.store.Backup(docType)
	if err != nil {
		return false, err
	}
	if err := l.store.Write(docType, draft); err != nil {
		return false, err
	}
	logger.Info("schema learned", "path", l.store.Path(docType), "backup", backedUp)

	if l.registry != nil {
		// The whole store is reloaded so the learned doc type is visible
		// even when the registry was pinned to a single file.
		if _, err := l.registry.Load(""); err != nil {
			return true, fmt.Errorf("schema persisted but reload failed: %w", err)
		}
	}
	return true, nil
}
