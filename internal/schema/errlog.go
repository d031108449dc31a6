package schema

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ErrorEntry is one line of the validation-error log.
type ErrorEntry struct {
	Time    time.Time `json:"time"`
	RunID   string    `json:"run_id,omitempty"`
	File    string    `json:"file"`
	DocType string    `json:"doc_type"`
	Message string    `json:"message"`
	Path    []string  `json:"path"`
}

// ErrorLog appends validation diagnostics to a JSON-lines file. It never
// truncates. A nil *ErrorLog discards entries.
type ErrorLog struct {
	path string
	mu   sync.Mutex
}

// NewErrorLog returns a log writing to path. The file and its directory
// are created on the first append.
func NewErrorLog(path string) *ErrorLog {
	return &ErrorLog{path: path}
}

// Path returns the log file path.
func (l *ErrorLog) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Append writes e as a single line.
func (l *ErrorLog) Append(e ErrorEntry) error {
	if l == nil || l.path == "" {
		return nil
	}
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	if e.Path == nil {
		e.Path = []string{}
	}
	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode validation error: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open validation log: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write validation log: %w", err)
	}
	return f.Close()
}

// ReadErrorLog returns every entry in the log at path. A missing file
// yields no entries.
func ReadErrorLog(path string) ([]ErrorEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var entries []ErrorEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var e ErrorEntry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return entries, fmt.Errorf("malformed validation log line %d: %w", len(entries)+1, err)
		}
		entries = append(entries, e)
	}
	return entries, scanner.Err()
}
