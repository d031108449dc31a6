package schema

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// DefaultDocType is the terminal fallback doc type. It always resolves.
const DefaultDocType = "default"

// Schema is one compiled doc-type definition.
type Schema struct {
	DocType    string
	Source     string // file the definition was loaded from; empty for the built-in default
	Definition json.RawMessage
	compiled   *jsonschema.Schema
}

// Validate checks a decoded JSON value (see normalize) against the schema.
func (s *Schema) Validate(doc any) error {
	return s.compiled.Validate(doc)
}

// Compile parses and compiles a definition for docType.
func Compile(docType string, definition []byte) (*Schema, error) {
	compiler := jsonschema.NewCompiler()
	url := docType + fileExt
	if err := compiler.AddResource(url, bytes.NewReader(definition)); err != nil {
		return nil, fmt.Errorf("failed to load schema %s: %w", docType, err)
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema %s: %w", docType, err)
	}
	return &Schema{
		DocType:    docType,
		Definition: json.RawMessage(append([]byte(nil), definition...)),
		compiled:   compiled,
	}, nil
}

// snapshot is an immutable view of the registry. It is never modified
// after publication.
type snapshot struct {
	schemas map[string]*Schema
	order   []string // non-default doc types, ascending
}

func (s *snapshot) copyMap() map[string]*Schema {
	out := make(map[string]*Schema, len(s.schemas))
	for k, v := range s.schemas {
		out[k] = v
	}
	return out
}

// RegistryConfig configures a Registry.
type RegistryConfig struct {
	Store      *Store
	SchemaFile string // when set, Reload loads only this file
	Logger     *slog.Logger
}

// Registry maps doc types to compiled schemas. Readers go through an
// atomically published snapshot and never block; loads build a new
// snapshot off to the side and swap it in.
type Registry struct {
	store      *Store
	schemaFile string
	logger     *slog.Logger

	mu   sync.Mutex // serializes loads
	snap atomic.Pointer[snapshot]
}

// NewRegistry creates a registry holding only the default schema. Call
// Load or Reload to populate it from the store.
func NewRegistry(cfg RegistryConfig) *Registry {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		store:      cfg.Store,
		schemaFile: cfg.SchemaFile,
		logger:     logger.With("component", "schema_registry"),
	}
	r.snap.Store(&snapshot{
		schemas: map[string]*Schema{DefaultDocType: defaultSchema()},
	})
	return r
}

func defaultSchema() *Schema {
	s, err := Compile(DefaultDocType, []byte("{}"))
	if err != nil {
		// {} always compiles.
		panic(err)
	}
	return s
}

// Store returns the backing store.
func (r *Registry) Store() *Store {
	return r.store
}

// Reload loads the configured source: the single schema file when one was
// configured, otherwise the whole store.
func (r *Registry) Reload() error {
	_, err := r.Load(r.schemaFile)
	return err
}

// Load rebuilds the registry from the store and publishes it. When only is
// non-empty, just that file (a name inside the store or a path) is loaded.
// Files that fail to parse or compile are logged and skipped. When the
// store cannot be read, ErrStoreIO is returned and the previous snapshot
// stays published.
func (r *Registry) Load(only string) (map[string]*Schema, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	files, err := r.sourceFiles(only)
	if err != nil {
		return nil, err
	}

	schemas := make(map[string]*Schema, len(files)+1)
	for _, path := range files {
		docType := DocTypeOf(path)
		if prev, ok := schemas[docType]; ok {
			r.logger.Warn("duplicate schema for doc type, keeping first",
				"doc_type", docType, "kept", prev.Source, "skipped", path)
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			if only != "" {
				return nil, fmt.Errorf("%w: read %s: %v", ErrStoreIO, path, err)
			}
			r.logger.Warn("skipping unreadable schema", "path", path, "error", err)
			continue
		}
		s, err := Compile(docType, data)
		if err != nil {
			r.logger.Warn("skipping invalid schema", "path", path, "error", err)
			continue
		}
		s.Source = path
		schemas[docType] = s
	}
	if _, ok := schemas[DefaultDocType]; !ok {
		schemas[DefaultDocType] = defaultSchema()
	}

	next := &snapshot{schemas: schemas}
	for docType := range schemas {
		if docType != DefaultDocType {
			next.order = append(next.order, docType)
		}
	}
	sort.Strings(next.order)
	r.snap.Store(next)

	r.logger.Debug("schemas loaded", "count", len(schemas), "doc_types", next.order)
	return next.copyMap(), nil
}

func (r *Registry) sourceFiles(only string) ([]string, error) {
	if r.store == nil {
		return nil, fmt.Errorf("%w: no store configured", ErrStoreIO)
	}
	if only == "" {
		return r.store.Files()
	}
	path := only
	if !strings.HasSuffix(path, fileExt) {
		path += fileExt
	}
	if !filepath.IsAbs(path) && !strings.ContainsRune(path, filepath.Separator) {
		path = filepath.Join(r.store.Dir(), path)
	}
	return []string{path}, nil
}

// Get returns the schema for docType, or the default schema when docType
// is not registered.
func (r *Registry) Get(docType string) *Schema {
	snap := r.snap.Load()
	if s, ok := snap.schemas[docType]; ok {
		return s
	}
	return snap.schemas[DefaultDocType]
}

// Lookup returns the schema registered for docType without fallback.
func (r *Registry) Lookup(docType string) (*Schema, bool) {
	s, ok := r.snap.Load().schemas[docType]
	return s, ok
}

// DocTypes returns every registered doc type, ascending, default included.
func (r *Registry) DocTypes() []string {
	snap := r.snap.Load()
	out := make([]string, 0, len(snap.schemas))
	for docType := range snap.schemas {
		out = append(out, docType)
	}
	sort.Strings(out)
	return out
}

// candidates returns the non-default schemas in structural-match order.
func (r *Registry) candidates() []*Schema {
	snap := r.snap.Load()
	out := make([]*Schema, 0, len(snap.order))
	for _, docType := range snap.order {
		out = append(out, snap.schemas[docType])
	}
	return out
}

// Watch reloads the registry whenever definition files in the store change.
// Bursts of events are coalesced by debounce. It blocks until ctx is done.
func (r *Registry) Watch(ctx context.Context, debounce time.Duration) error {
	if r.store == nil {
		return fmt.Errorf("%w: no store configured", ErrStoreIO)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(r.store.Dir()); err != nil {
		return fmt.Errorf("%w: watch %s: %v", ErrStoreIO, r.store.Dir(), err)
	}
	r.logger.Info("watching schema store", "dir", r.store.Dir())

	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case e, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !relevant(e) {
				continue
			}
			if debounce <= 0 {
				r.reloadFromWatch()
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(debounce)
			timerCh = timer.C
		case <-timerCh:
			timerCh = nil
			r.reloadFromWatch()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("schema watcher error", "error", err)
		}
	}
}

func relevant(e fsnotify.Event) bool {
	name := filepath.Base(e.Name)
	if !strings.HasSuffix(name, fileExt) || strings.HasPrefix(name, ".") {
		return false
	}
	return e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0
}

func (r *Registry) reloadFromWatch() {
	if err := r.Reload(); err != nil {
		r.logger.Error("schema reload failed", "error", err)
		return
	}
	r.logger.Info("schemas reloaded", "doc_types", r.DocTypes())
}
