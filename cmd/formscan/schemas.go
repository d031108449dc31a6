package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/formscan/internal/fsutil"
	"github.com/jackzampolin/formscan/internal/schema"
)

var schemasCmd = &cobra.Command{
	Use:   "schemas",
	Short: "Inspect and manage the schema store",
}

// schemaInfo is one row of `schemas list`.
type schemaInfo struct {
	DocType string `json:"doc_type"`
	Source  string `json:"source"`
	Backup  bool   `json:"backup"`
}

var schemasListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered doc types",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, svc, err := setup(cmd)
		if err != nil {
			return err
		}
		infos := []schemaInfo{}
		for _, docType := range svc.Registry.DocTypes() {
			s := svc.Registry.Get(docType)
			source := s.Source
			if source == "" {
				source = "built-in"
			}
			infos = append(infos, schemaInfo{
				DocType: docType,
				Source:  source,
				Backup:  fsutil.Exists(svc.Store.BackupPath(docType)),
			})
		}
		return printer(cmd).Print(infos)
	},
}

var schemasShowCmd = &cobra.Command{
	Use:   "show <doc-type>",
	Short: "Print a doc type's definition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, svc, err := setup(cmd)
		if err != nil {
			return err
		}
		s, ok := svc.Registry.Lookup(args[0])
		if !ok {
			return fmt.Errorf("unknown doc type %q", args[0])
		}
		var def any
		if err := json.Unmarshal(s.Definition, &def); err != nil {
			return fmt.Errorf("decode %s: %w", s.DocType, err)
		}
		return printer(cmd).Print(def)
	},
}

var schemasSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Write built-in definitions for doc types missing from the store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, svc, err := setup(cmd)
		if err != nil {
			return err
		}
		written, err := schema.Seed(svc.Store, svc.Logger)
		if err != nil {
			return err
		}
		if written == nil {
			written = []string{}
		}
		return printer(cmd).Print(map[string]any{"dir": svc.Store.Dir(), "written": written})
	},
}

var schemasWatchDebounce time.Duration

var schemasWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Log registry reloads as the store changes (until interrupted)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, svc, err := setup(cmd)
		if err != nil {
			return err
		}
		followConfig(mgr, svc.Logger)
		return svc.Registry.Watch(cmd.Context(), schemasWatchDebounce)
	},
}

func init() {
	schemasWatchCmd.Flags().DurationVar(&schemasWatchDebounce, "debounce", 250*time.Millisecond, "quiet period before reloading")

	schemasCmd.AddCommand(schemasListCmd)
	schemasCmd.AddCommand(schemasShowCmd)
	schemasCmd.AddCommand(schemasSeedCmd)
	schemasCmd.AddCommand(schemasWatchCmd)
}
