package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/formscan/internal/schema"
)

var (
	errorsTail int
	errorsRun  string
)

var errorsCmd = &cobra.Command{
	Use:   "errors",
	Short: "Show entries from the validation error log",
	Long: `Print validation failures recorded in the JSON-lines error log
(validation_log_path, default ~/.formscan/logs/validation_errors.jsonl).

Examples:
  formscan errors --tail 20
  formscan errors --run 0b6c... -o json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		h, mgr, err := loadConfig()
		if err != nil {
			return err
		}
		path := mgr.Get().ValidationLogPath
		if path == "" {
			path = h.ValidationLogPath()
		}
		entries, err := schema.ReadErrorLog(path)
		if err != nil {
			return err
		}

		if errorsRun != "" {
			kept := entries[:0]
			for _, e := range entries {
				if e.RunID == errorsRun {
					kept = append(kept, e)
				}
			}
			entries = kept
		}
		if errorsTail > 0 && len(entries) > errorsTail {
			entries = entries[len(entries)-errorsTail:]
		}
		if entries == nil {
			entries = []schema.ErrorEntry{}
		}
		return printer(cmd).Print(entries)
	},
}

func init() {
	errorsCmd.Flags().IntVar(&errorsTail, "tail", 0, "only the last N entries")
	errorsCmd.Flags().StringVar(&errorsRun, "run", "", "only entries from this run id")
}
