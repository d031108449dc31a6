package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the formscan home directory.
	DefaultDirName = ".formscan"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"

	// SchemasDirName holds one schema file per doc type.
	SchemasDirName = "schemas"

	// BackupsDirName is the schema backup directory, inside SchemasDirName.
	BackupsDirName = "backups"

	// LogsDirName holds the validation error log.
	LogsDirName = "logs"

	// ValidationLogName is the JSON-lines validation error log.
	ValidationLogName = "validation_errors.jsonl"

	// OutputDirName is where run outputs go when no path is configured.
	OutputDirName = "output"
)

// Dir represents the formscan home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.formscan).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// SchemasDir returns the schema store directory.
func (d *Dir) SchemasDir() string {
	return filepath.Join(d.path, SchemasDirName)
}

// BackupsDir returns the schema backup directory.
func (d *Dir) BackupsDir() string {
	return filepath.Join(d.SchemasDir(), BackupsDirName)
}

// LogsDir returns the log directory.
func (d *Dir) LogsDir() string {
	return filepath.Join(d.path, LogsDirName)
}

// ValidationLogPath returns the default validation error log path.
func (d *Dir) ValidationLogPath() string {
	return filepath.Join(d.LogsDir(), ValidationLogName)
}

// OutputDir returns the default output directory.
func (d *Dir) OutputDir() string {
	return filepath.Join(d.path, OutputDirName)
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	for _, dir := range []string{d.BackupsDir(), d.LogsDir(), d.OutputDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}
