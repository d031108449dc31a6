package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// errLearnRejected makes a rejected draft exit non-zero.
var errLearnRejected = errors.New("draft schema rejected; persisted schema unchanged")

// learnResult is printed after `formscan learn`.
type learnResult struct {
	DocType  string `json:"doc_type"`
	Examples int    `json:"examples"`
	Accepted bool   `json:"accepted"`
	Path     string `json:"path,omitempty"`
	Backup   string `json:"backup,omitempty"`
}

var learnCmd = &cobra.Command{
	Use:   "learn <doc-type> <examples.json>",
	Short: "Replace a doc type's schema with one learned from examples",
	Long: `Infer a schema for <doc-type> from a JSON array of confirmed example
objects. The draft is persisted only if it accepts every example; the
previous definition is kept as a backup. A rejected draft leaves the store
untouched and exits non-zero.

Example:
  formscan learn facture confirmed_factures.json`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		docType, path := args[0], args[1]
		examples, err := readObjects(path)
		if err != nil {
			return err
		}
		_, svc, err := setup(cmd)
		if err != nil {
			return err
		}

		hadSchema := false
		if s, ok := svc.Registry.Lookup(docType); ok && s.Source != "" {
			hadSchema = true
		}

		accepted, err := svc.Learner.Learn(docType, examples)
		res := learnResult{DocType: docType, Examples: len(examples), Accepted: accepted}
		if accepted {
			res.Path = svc.Store.Path(docType)
			if hadSchema {
				res.Backup = svc.Store.BackupPath(docType)
			}
		}
		if perr := printer(cmd).Print(res); perr != nil {
			return perr
		}
		if err != nil {
			return err
		}
		if !accepted {
			return errLearnRejected
		}
		return nil
	},
}

// readObjects decodes a JSON array of objects from path.
func readObjects(path string) ([]map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var objs []map[string]any
	if err := json.Unmarshal(data, &objs); err != nil {
		return nil, fmt.Errorf("%s is not a JSON array of objects: %w", path, err)
	}
	return objs, nil
}
