package schema

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jackzampolin/formscan/internal/fsutil"
)

// ErrStoreIO is returned when the schema store or its backup directory
// cannot be read or written.
var ErrStoreIO = errors.New("schema store i/o")

const (
	fileExt       = ".json"
	backupExt     = ".bak.json"
	backupDirName = "backups"
)

// Store is a directory of schema definitions, one <doc_type>.json file per
// document type, with a single-slot backups/ directory beside them.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir. Nothing is created until
// EnsureExists or a write.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the store directory.
func (s *Store) Dir() string {
	return s.dir
}

// BackupDir returns the directory holding backups.
func (s *Store) BackupDir() string {
	return filepath.Join(s.dir, backupDirName)
}

// Path returns the definition file for a doc type.
func (s *Store) Path(docType string) string {
	return filepath.Join(s.dir, docType+fileExt)
}

// BackupPath returns the backup file for a doc type.
func (s *Store) BackupPath(docType string) string {
	return filepath.Join(s.BackupDir(), docType+backupExt)
}

// EnsureExists creates the store and backup directories.
func (s *Store) EnsureExists() error {
	if err := os.MkdirAll(s.BackupDir(), 0o755); err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrStoreIO, s.BackupDir(), err)
	}
	return nil
}

// DocTypeOf maps a store file name to its doc type: the base name without
// .json and without a trailing _schema, lower-cased.
func DocTypeOf(name string) string {
	base := strings.TrimSuffix(filepath.Base(name), fileExt)
	base = strings.TrimSuffix(base, "_schema")
	return strings.ToLower(base)
}

// Files lists the definition files in the store, sorted by name.
func (s *Store) Files() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrStoreIO, s.dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileExt) || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		files = append(files, filepath.Join(s.dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// Read returns the persisted definition for a doc type. A missing file
// yields an error satisfying errors.Is(err, os.ErrNotExist).
func (s *Store) Read(docType string) ([]byte, error) {
	data, err := os.ReadFile(s.Path(docType))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	return data, nil
}

// Write atomically replaces the definition for a doc type.
func (s *Store) Write(docType string, data []byte) error {
	if err := fsutil.WriteAtomic(s.Path(docType), data); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrStoreIO, docType, err)
	}
	return nil
}

// Backup copies the current definition of docType byte for byte into its
// backup slot, overwriting any previous backup. It reports false when
// there was nothing to back up.
func (s *Store) Backup(docType string) (bool, error) {
	src, err := os.Open(s.Path(docType))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("%w: open %s: %v", ErrStoreIO, docType, err)
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return false, fmt.Errorf("%w: read %s: %v", ErrStoreIO, docType, err)
	}
	if err := fsutil.WriteAtomic(s.BackupPath(docType), data); err != nil {
		return false, fmt.Errorf("%w: backup %s: %v", ErrStoreIO, docType, err)
	}
	return true, nil
}
