// Package svcctx wires the long-lived services a command needs and carries
// them through context.
package svcctx

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/jackzampolin/formscan/internal/config"
	"github.com/jackzampolin/formscan/internal/home"
	"github.com/jackzampolin/formscan/internal/schema"
)

// Services holds all core services that flow through context.
type Services struct {
	Config    *config.Config
	Logger    *slog.Logger
	Home      *home.Dir
	RunID     string
	Store     *schema.Store
	Registry  *schema.Registry
	ErrorLog  *schema.ErrorLog
	Validator *schema.Validator
	Learner   *schema.Learner
}

// New builds the schema services from cfg. A store with no schema files is
// seeded with the built-in definitions before the registry loads.
func New(cfg *config.Config, h *home.Dir, logger *slog.Logger) (*Services, error) {
	if cfg == nil {
		return nil, fmt.Errorf("svcctx: config is required")
	}
	if h == nil {
		return nil, fmt.Errorf("svcctx: home is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := h.EnsureExists(); err != nil {
		return nil, err
	}

	schemaDir := cfg.SchemaDirectory
	if schemaDir == "" {
		schemaDir = h.SchemasDir()
	}
	store := schema.NewStore(schemaDir)
	if err := store.EnsureExists(); err != nil {
		return nil, err
	}
	files, err := store.Files()
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		seeded, err := schema.Seed(store, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("seeded schema store", "dir", schemaDir, "doc_types", seeded)
	}

	registry := schema.NewRegistry(schema.RegistryConfig{
		Store:      store,
		SchemaFile: cfg.SchemaFile,
		Logger:     logger,
	})
	if err := registry.Reload(); err != nil {
		return nil, err
	}

	logPath := cfg.ValidationLogPath
	if logPath == "" {
		logPath = h.ValidationLogPath()
	}
	errLog := schema.NewErrorLog(logPath)

	runID := uuid.New().String()
	return &Services{
		Config:   cfg,
		Logger:   logger,
		Home:     h,
		RunID:    runID,
		Store:    store,
		Registry: registry,
		ErrorLog: errLog,
		Validator: schema.NewValidator(schema.ValidatorConfig{
			Registry: registry,
			ErrorLog: errLog,
			RunID:    runID,
			Logger:   logger,
		}),
		Learner: schema.NewLearner(schema.LearnerConfig{
			Store:    store,
			Registry: registry,
			Logger:   logger,
		}),
	}, nil
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// LoggerFrom extracts the logger from context, falling back to slog.Default.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil && s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// ValidatorFrom extracts the validator from context.
func ValidatorFrom(ctx context.Context) *schema.Validator {
	if s := ServicesFrom(ctx); s != nil {
		return s.Validator
	}
	return nil
}

// LearnerFrom extracts the learner from context.
func LearnerFrom(ctx context.Context) *schema.Learner {
	if s := ServicesFrom(ctx); s != nil {
		return s.Learner
	}
	return nil
}
