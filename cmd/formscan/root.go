package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/formscan/internal/config"
	"github.com/jackzampolin/formscan/internal/home"
	"github.com/jackzampolin/formscan/internal/output"
	"github.com/jackzampolin/formscan/internal/svcctx"
	"github.com/jackzampolin/formscan/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
	verbose      bool

	format   = output.Default
	logLevel = new(slog.LevelVar)
)

var rootCmd = &cobra.Command{
	Use:   "formscan",
	Short: "Extract, aggregate and validate records from scanned order forms",
	Long: `formscan turns scanned order forms (PDF) into a tidy table of records.

Each page is recognized (sidecar text or pdftoppm + tesseract), split into
PIECE, TOOL, PROFILE and CUSTOMER sections plus requisition and purchase
order headers, aggregated across pages and files, and validated against a
store of per-document-type schemas that can be learned from confirmed
examples.`,
	Version:       version.GitRelease,
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.formscan/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "formscan home directory (default: ~/.formscan)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&verbose, "verbose", "v", false, "debug logging (overrides log_level)",
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		f, err := output.ParseFormat(outputFormat)
		if err != nil {
			return err
		}
		format = f
		return nil
	}

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(learnCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(errorsCmd)
	rootCmd.AddCommand(schemasCmd)
	rootCmd.AddCommand(configCmd)
}

// printer renders command results to the command's stdout.
func printer(cmd *cobra.Command) *output.Printer {
	return output.NewPrinter(cmd.OutOrStdout(), format)
}

// newLogger builds the stderr text logger. Its level follows log_level and
// can be changed at runtime through logLevel.
func newLogger(cfg *config.Config) *slog.Logger {
	if verbose {
		logLevel.Set(slog.LevelDebug)
	} else {
		logLevel.Set(cfg.Level())
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}

// loadConfig resolves the home directory and reads the config from
// --config, ./config.yaml or the home directory.
func loadConfig() (*home.Dir, *config.Manager, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, nil, err
	}
	mgr, err := config.NewManager(cfgFile, h.Path())
	if err != nil {
		return nil, nil, err
	}
	return h, mgr, nil
}

// setup loads config and builds the services for cmd, attaching them to
// its context.
func setup(cmd *cobra.Command) (*config.Manager, *svcctx.Services, error) {
	h, mgr, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	cfg := *mgr.Get()
	logger := newLogger(&cfg)
	slog.SetDefault(logger)

	svc, err := svcctx.New(&cfg, h, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	if f := mgr.ConfigFile(); f != "" {
		logger.Debug("config loaded", "file", f)
	}
	cmd.SetContext(svcctx.WithServices(cmd.Context(), svc))
	return mgr, svc, nil
}

// followConfig applies log_level edits while a long-running command is
// active.
func followConfig(mgr *config.Manager, logger *slog.Logger) {
	if mgr.ConfigFile() == "" {
		return
	}
	mgr.OnChange(func(cfg *config.Config) {
		if !verbose {
			logLevel.Set(cfg.Level())
		}
	})
	mgr.WatchConfig(logger)
}
