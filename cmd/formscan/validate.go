package main

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/formscan/internal/schema"
)

var errValidationMismatch = errors.New("batch does not match its schema")

var (
	validateAs   string
	validateHint string
)

var validateCmd = &cobra.Command{
	Use:   "validate <rows.json>",
	Short: "Validate a JSON array of rows against the schema store",
	Long: `Validate a batch of rows (a JSON array of objects, e.g. a run's output)
against the schema store. The doc type is detected structurally, then from
the source file name, then falls back to "default"; --as skips detection.
Mismatches are appended to the validation error log and exit non-zero.

Examples:
  formscan validate results.json
  formscan validate rows.json --hint facture_2024.pdf
  formscan validate rows.json --as requisition`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		batch, err := readObjects(args[0])
		if err != nil {
			return err
		}
		_, svc, err := setup(cmd)
		if err != nil {
			return err
		}

		hint := validateHint
		if hint == "" {
			hint = filepath.Base(args[0])
		}
		var out schema.Outcome
		if validateAs != "" {
			out = svc.Validator.ValidateAs(strings.ToLower(validateAs), batch, hint)
		} else {
			out = svc.Validator.Validate(batch, hint)
		}
		if err := printer(cmd).Print(out); err != nil {
			return err
		}
		if !out.Passed {
			return errValidationMismatch
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().StringVar(&validateAs, "as", "", "validate against this doc type instead of detecting it")
	validateCmd.Flags().StringVar(&validateHint, "hint", "", "source file name used for detection (default: the rows file name)")
}
