package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.MaxWorkers != 5 {
		t.Errorf("expected 5 workers, got %d", cfg.MaxWorkers)
	}
	if cfg.OCR.DPI != 300 || cfg.OCR.TesseractCmd != "tesseract" {
		t.Errorf("unexpected OCR defaults: %+v", cfg.OCR)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"zero workers", func(c *Config) { c.MaxWorkers = 0 }, "max_workers"},
		{"negative workers", func(c *Config) { c.MaxWorkers = -3 }, "max_workers"},
		{"unknown level", func(c *Config) { c.LogLevel = "verbose" }, "log_level"},
		{"negative timeout", func(c *Config) { c.Timeout = -time.Second }, "timeout"},
		{"negative dpi", func(c *Config) { c.OCR.DPI = -1 }, "ocr.dpi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error mentioning %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestNewManager(t *testing.T) {
	t.Run("loads from config file", func(t *testing.T) {
		configFile := writeConfig(t, t.TempDir(), `
pdf_input_directory: /scans
max_workers: 12
log_level: DEBUG
timeout: 90s
schema_file: facture.json
ocr:
  language: fra
schemas:
  watch: true
`)
		mgr, err := NewManager(configFile)
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}

		cfg := mgr.Get()
		if cfg.PDFInputDirectory != "/scans" || cfg.MaxWorkers != 12 {
			t.Errorf("unexpected config: %+v", cfg)
		}
		if cfg.LogLevel != "debug" {
			t.Errorf("expected log level normalized to debug, got %s", cfg.LogLevel)
		}
		if cfg.Timeout != 90*time.Second {
			t.Errorf("expected 90s timeout, got %s", cfg.Timeout)
		}
		if cfg.SchemaFile != "facture.json" || !cfg.Schemas.Watch {
			t.Errorf("unexpected schema settings: %q watch=%v", cfg.SchemaFile, cfg.Schemas.Watch)
		}
		// Unset nested keys keep their defaults.
		if cfg.OCR.Language != "fra" || cfg.OCR.DPI != 300 {
			t.Errorf("unexpected OCR config: %+v", cfg.OCR)
		}
		if mgr.ConfigFile() != configFile {
			t.Errorf("expected ConfigFile %s, got %s", configFile, mgr.ConfigFile())
		}
	})

	t.Run("falls back to defaults without a file", func(t *testing.T) {
		mgr, err := NewManager("", t.TempDir())
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}
		cfg := mgr.Get()
		if cfg.JSONOutputPath != "data/output/results.json" || cfg.MaxWorkers != 5 {
			t.Errorf("expected defaults, got %+v", cfg)
		}
		if mgr.ConfigFile() != "" {
			t.Errorf("expected no config file, got %s", mgr.ConfigFile())
		}
	})

	t.Run("finds config.yaml in a search dir", func(t *testing.T) {
		dir := t.TempDir()
		writeConfig(t, dir, "max_workers: 3\n")
		mgr, err := NewManager("", dir)
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}
		if mgr.Get().MaxWorkers != 3 {
			t.Errorf("expected 3 workers, got %d", mgr.Get().MaxWorkers)
		}
	})

	t.Run("environment overrides file", func(t *testing.T) {
		t.Setenv("FORMSCAN_MAX_WORKERS", "8")
		t.Setenv("FORMSCAN_OCR_DPI", "150")
		configFile := writeConfig(t, t.TempDir(), "max_workers: 2\n")

		mgr, err := NewManager(configFile)
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}
		cfg := mgr.Get()
		if cfg.MaxWorkers != 8 || cfg.OCR.DPI != 150 {
			t.Errorf("expected env overrides, got workers=%d dpi=%d", cfg.MaxWorkers, cfg.OCR.DPI)
		}
	})

	t.Run("rejects invalid values", func(t *testing.T) {
		configFile := writeConfig(t, t.TempDir(), "max_workers: 0\n")
		if _, err := NewManager(configFile); err == nil {
			t.Error("expected error for max_workers: 0")
		}
	})

	t.Run("rejects malformed yaml", func(t *testing.T) {
		configFile := writeConfig(t, t.TempDir(), "max_workers: [\n")
		if _, err := NewManager(configFile); err == nil {
			t.Error("expected error for malformed file")
		}
	})
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "# formscan configuration") {
		t.Errorf("missing header: %q", data[:40])
	}

	mgr, err := NewManager(path)
	if err != nil {
		t.Fatalf("written default does not load: %v", err)
	}
	cfg := mgr.Get()
	want := DefaultConfig()
	if cfg.PDFInputDirectory != want.PDFInputDirectory || cfg.MaxWorkers != want.MaxWorkers || cfg.OCR != want.OCR {
		t.Errorf("round trip mismatch: got %+v", cfg)
	}
}

func TestManager_OnChange_Multiple(t *testing.T) {
	mgr, err := NewManager(writeConfig(t, t.TempDir(), "max_workers: 1\n"))
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	mgr.OnChange(func(cfg *Config) {})
	mgr.OnChange(func(cfg *Config) {})
	mgr.OnChange(func(cfg *Config) {})

	mgr.mu.RLock()
	if len(mgr.callbacks) != 3 {
		t.Errorf("expected 3 callbacks, got %d", len(mgr.callbacks))
	}
	mgr.mu.RUnlock()
}

func TestManager_Get_ThreadSafe(t *testing.T) {
	mgr, err := NewManager(writeConfig(t, t.TempDir(), "max_workers: 4\n"))
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				_ = mgr.Get().MaxWorkers
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}
}

func TestManager_WatchConfig(t *testing.T) {
	configFile := writeConfig(t, t.TempDir(), "max_workers: 2\n")

	mgr, err := NewManager(configFile)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}
	if mgr.Get().MaxWorkers != 2 {
		t.Fatalf("initial value mismatch: got %d", mgr.Get().MaxWorkers)
	}

	var callbackCount atomic.Int32
	mgr.OnChange(func(cfg *Config) {
		callbackCount.Add(1)
	})

	mgr.WatchConfig(nil)

	// Give fsnotify time to set up the watcher
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(configFile, []byte("max_workers: 9\n"), 0o644); err != nil {
		t.Fatalf("failed to write updated config file: %v", err)
	}

	// fsnotify may deliver several events for one write; wait for the final state.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if mgr.Get().MaxWorkers == 9 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	if mgr.Get().MaxWorkers != 9 {
		t.Errorf("config not updated: expected 9 workers, got %d", mgr.Get().MaxWorkers)
	}
	if callbackCount.Load() == 0 {
		t.Error("callback was not invoked after config file change")
	}
}
