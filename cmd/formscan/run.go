package main

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/formscan/internal/ingest"
	"github.com/jackzampolin/formscan/internal/ocr"
	"github.com/jackzampolin/formscan/internal/pipeline"
)

// errValidationFailed makes `run --strict` exit non-zero.
var errValidationFailed = errors.New("validation failed for at least one file")

var (
	runInput   string
	runOutput  string
	runXLSX    string
	runSQLite  string
	runWorkers int
	runTimeout time.Duration
	runGrouped bool
	runStrict  bool
	runWatch   bool
)

var runCmd = &cobra.Command{
	Use:   "run [files...]",
	Short: "Process a directory (or list) of scanned order forms",
	Long: `Process scanned order forms end to end.

PDFs are discovered under --input (or taken from the arguments), recognized
page by page, routed into records, aggregated and validated per file. Rows
of files that pass validation are written to the JSON output, and to XLSX
and SQLite when those paths are set. A summary is printed when the run
finishes.

A <name>.txt sidecar next to a PDF is used instead of OCR; form feeds
separate its pages.

Examples:
  formscan run --input scans/ --output-file results.json
  formscan run a.pdf b.pdf --workers 8 --grouped
  formscan run --input scans/ --strict --timeout 10m -o json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		mgr, svc, err := setup(cmd)
		if err != nil {
			return err
		}
		cfg := svc.Config
		logger := svc.Logger
		flags := cmd.Flags()

		if flags.Changed("input") {
			cfg.PDFInputDirectory = runInput
		}
		if flags.Changed("output-file") {
			cfg.JSONOutputPath = runOutput
		}
		if flags.Changed("xlsx") {
			cfg.XLSXOutputPath = runXLSX
		}
		if flags.Changed("sqlite") {
			cfg.SQLiteOutputPath = runSQLite
		}
		if flags.Changed("workers") {
			cfg.MaxWorkers = runWorkers
		}
		if flags.Changed("timeout") {
			cfg.Timeout = runTimeout
		}
		if flags.Changed("grouped") {
			cfg.Grouped = runGrouped
		}
		if flags.Changed("watch-schemas") {
			cfg.Schemas.Watch = runWatch
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		req := ingest.Request{Root: cfg.PDFInputDirectory, Logger: logger}
		if len(args) > 0 {
			req = ingest.Request{Paths: args, Logger: logger}
		}
		docs, err := ingest.Discover(ctx, req)
		if err != nil {
			return err
		}

		if cfg.Schemas.Watch {
			go func() {
				if err := svc.Registry.Watch(ctx, 250*time.Millisecond); err != nil {
					logger.Error("schema watch stopped", "error", err)
				}
			}()
			followConfig(mgr, logger)
		}

		source := ocr.AutoSource{
			OCR: ocr.NewTesseractSource(ocr.TesseractConfig{
				PdftoppmCmd:  cfg.OCR.PdftoppmCmd,
				TesseractCmd: cfg.OCR.TesseractCmd,
				DPI:          cfg.OCR.DPI,
				Language:     cfg.OCR.Language,
				Attempts:     cfg.OCR.Attempts,
				Logger:       logger,
			}),
		}

		runner, err := pipeline.New(pipeline.Config{
			Source:     source,
			Validator:  svc.Validator,
			Workers:    cfg.MaxWorkers,
			Timeout:    cfg.Timeout,
			RunID:      svc.RunID,
			Logger:     logger,
			OutputPath: cfg.JSONOutputPath,
			Grouped:    cfg.Grouped,
			XLSXPath:   cfg.XLSXOutputPath,
			SQLitePath: cfg.SQLiteOutputPath,
		})
		if err != nil {
			return err
		}

		summary, err := runner.Run(ctx, docs)
		if summary != nil {
			if perr := printer(cmd).Print(summary); perr != nil {
				return perr
			}
		}
		if err != nil {
			return err
		}
		if runStrict && summary.ValidationFailed {
			return errValidationFailed
		}
		return nil
	},
}

func init() {
	f := runCmd.Flags()
	f.StringVarP(&runInput, "input", "i", "", "input directory or PDF (default: pdf_input_directory)")
	f.StringVar(&runOutput, "output-file", "", "JSON output path (default: json_output_path)")
	f.StringVar(&runXLSX, "xlsx", "", "also write rows to this XLSX workbook")
	f.StringVar(&runSQLite, "sqlite", "", "also append rows to this SQLite database")
	f.IntVarP(&runWorkers, "workers", "w", 0, "concurrent documents (default: max_workers)")
	f.DurationVar(&runTimeout, "timeout", 0, "abandon documents still running after this long (0: wait)")
	f.BoolVar(&runGrouped, "grouped", false, "write {file, pages} documents instead of flat rows")
	f.BoolVar(&runStrict, "strict", false, "exit non-zero when any file fails validation")
	f.BoolVar(&runWatch, "watch-schemas", false, "reload schemas when the store changes during the run")
}
