package ocr

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/jackzampolin/formscan/internal/records"
)

// Runner executes an external command and returns its stdout.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s failed: %w (output: %s)", name, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// PageCounter returns the number of pages in a PDF.
type PageCounter func(path string) (int, error)

// PDFPageCount counts pages with pdfcpu.
func PDFPageCount(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()
	n, err := api.PageCount(f, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to get page count: %w", err)
	}
	return n, nil
}

// TesseractConfig configures the OCR adapter.
type TesseractConfig struct {
	PdftoppmCmd  string        // default: pdftoppm
	TesseractCmd string        // default: tesseract
	DPI          int           // default: 300
	Language     string        // default: eng
	Attempts     uint          // per command, default: 3
	RetryDelay   time.Duration // default: 500ms
	Runner       Runner        // default: ExecRunner
	PageCount    PageCounter   // default: PDFPageCount
	Logger       *slog.Logger
}

// TesseractSource rasterizes each PDF page with pdftoppm and recognizes it
// with tesseract. Pages of one document are processed in order.
type TesseractSource struct {
	cfg    TesseractConfig
	logger *slog.Logger
}

// NewTesseractSource creates the adapter, filling defaults.
func NewTesseractSource(cfg TesseractConfig) *TesseractSource {
	if cfg.PdftoppmCmd == "" {
		cfg.PdftoppmCmd = "pdftoppm"
	}
	if cfg.TesseractCmd == "" {
		cfg.TesseractCmd = "tesseract"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.Language == "" {
		cfg.Language = "eng"
	}
	if cfg.Attempts == 0 {
		cfg.Attempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	if cfg.Runner == nil {
		cfg.Runner = ExecRunner{}
	}
	if cfg.PageCount == nil {
		cfg.PageCount = PDFPageCount
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &TesseractSource{cfg: cfg, logger: logger.With("component", "ocr")}
}

// Pages implements Source.
func (s *TesseractSource) Pages(ctx context.Context, path string) ([]records.Page, error) {
	count, err := s.cfg.PageCount(path)
	if err != nil {
		return nil, err
	}

	tmpDir, err := os.MkdirTemp("", "formscan-ocr-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	pages := make([]records.Page, 0, count)
	for page := 1; page <= count; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := s.recognize(ctx, path, tmpDir, page)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}
		pages = append(pages, records.Page{File: path, Index: page, Text: text})
	}
	s.logger.Debug("document recognized", "file", filepath.Base(path), "pages", count)
	return pages, nil
}

// recognize renders one page to PNG and runs tesseract on it.
func (s *TesseractSource) recognize(ctx context.Context, pdfPath, tmpDir string, page int) (string, error) {
	pageStr := strconv.Itoa(page)
	prefix := filepath.Join(tmpDir, fmt.Sprintf("page_%04d", page))

	// -singlefile writes <prefix>.png without a page suffix
	_, err := s.run(ctx, s.cfg.PdftoppmCmd,
		"-png",
		"-f", pageStr,
		"-l", pageStr,
		"-r", strconv.Itoa(s.cfg.DPI),
		"-singlefile",
		pdfPath,
		prefix,
	)
	if err != nil {
		return "", err
	}
	image := prefix + ".png"
	defer os.Remove(image)

	out, err := s.run(ctx, s.cfg.TesseractCmd, image, "stdout", "-l", s.cfg.Language)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(out), "\f\n "), nil
}

func (s *TesseractSource) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var out []byte
	err := retry.Do(
		func() error {
			var err error
			out, err = s.cfg.Runner.Run(ctx, name, args...)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(s.cfg.Attempts),
		retry.Delay(s.cfg.RetryDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Warn("command failed, retrying", "command", name, "attempt", n+1, "error", err)
		}),
	)
	return out, err
}
