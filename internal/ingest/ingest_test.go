package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestSortPDFsByNumber(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "already sorted",
			input:    []string{"form-1.pdf", "form-2.pdf", "form-3.pdf"},
			expected: []string{"form-1.pdf", "form-2.pdf", "form-3.pdf"},
		},
		{
			name:     "reverse order",
			input:    []string{"form-3.pdf", "form-2.pdf", "form-1.pdf"},
			expected: []string{"form-1.pdf", "form-2.pdf", "form-3.pdf"},
		},
		{
			name:     "mixed with double digits",
			input:    []string{"form-10.pdf", "form-2.pdf", "form-1.pdf"},
			expected: []string{"form-1.pdf", "form-2.pdf", "form-10.pdf"},
		},
		{
			name:     "single file without number",
			input:    []string{"form.pdf"},
			expected: []string{"form.pdf"},
		},
		{
			name:     "numbered and unnumbered",
			input:    []string{"form-2.pdf", "form.pdf", "form-1.pdf"},
			expected: []string{"form.pdf", "form-1.pdf", "form-2.pdf"},
		},
		{
			name:     "underscore suffix and upper-case extension",
			input:    []string{"scan_12.PDF", "scan_3.pdf"},
			expected: []string{"scan_3.pdf", "scan_12.PDF"},
		},
		{
			name:     "titles before numbers",
			input:    []string{"plan-1.pdf", "facture-2.pdf", "facture-1.pdf"},
			expected: []string{"facture-1.pdf", "facture-2.pdf", "plan-1.pdf"},
		},
		{
			name:     "directories first",
			input:    []string{"b/form-1.pdf", "a/form-2.pdf"},
			expected: []string{"a/form-2.pdf", "b/form-1.pdf"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := sortPDFsByNumber(tt.input)
			if len(result) != len(tt.expected) {
				t.Fatalf("length mismatch: got %d, want %d", len(result), len(tt.expected))
			}
			for i := range result {
				if result[i] != tt.expected[i] {
					t.Errorf("index %d: got %q, want %q", i, result[i], tt.expected[i])
				}
			}
		})
	}
}

func TestDeriveTitle(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"/path/to/die-order.pdf", "die-order"},
		{"/path/to/die-order-1.pdf", "die-order"},
		{"/path/to/die-order-10.pdf", "die-order"},
		{"scan_7.pdf", "scan"},
		{"simple.pdf", "simple"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := deriveTitle(tt.input)
			if result != tt.expected {
				t.Errorf("got %q, want %q", result, tt.expected)
			}
		})
	}
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "order-2.pdf"))
	touch(t, filepath.Join(root, "order-1.pdf"))
	touch(t, filepath.Join(root, "notes.txt"))
	touch(t, filepath.Join(root, "2024", "facture.PDF"))
	touch(t, filepath.Join(root, ".cache", "hidden.pdf"))

	docs, err := Discover(context.Background(), Request{Root: root})
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	want := []string{
		filepath.Join(root, "order-1.pdf"),
		filepath.Join(root, "order-2.pdf"),
		filepath.Join(root, "2024", "facture.PDF"),
	}
	if len(docs) != len(want) {
		t.Fatalf("Discover() = %+v, want %v", docs, want)
	}
	for i := range want {
		if docs[i].Path != want[i] {
			t.Errorf("docs[%d] = %q, want %q", i, docs[i].Path, want[i])
		}
	}
	if docs[0].Title != "order" {
		t.Errorf("Title = %q, want order", docs[0].Title)
	}
}

func TestDiscover_Inputs(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "single.pdf")
	touch(t, file)

	docs, err := Discover(context.Background(), Request{Root: file})
	if err != nil || len(docs) != 1 || docs[0].Path != file {
		t.Errorf("Discover(file) = %+v, %v", docs, err)
	}

	docs, err = Discover(context.Background(), Request{Paths: []string{file}})
	if err != nil || len(docs) != 1 {
		t.Errorf("Discover(paths) = %+v, %v", docs, err)
	}

	if _, err := Discover(context.Background(), Request{Paths: []string{filepath.Join(root, "missing.pdf")}}); err == nil {
		t.Error("Discover() accepted a missing path")
	}
	if _, err := Discover(context.Background(), Request{Root: filepath.Join(root, "missing")}); err == nil {
		t.Error("Discover() accepted a missing root")
	}
	if _, err := Discover(context.Background(), Request{}); err == nil {
		t.Error("Discover() accepted an empty request")
	}
}
