// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mhoffm/markvault/internal/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent conversions",
	Long: `History lists the most recent conversions recorded in the vault's history
database, newest first. With --export the records are written to stdout as
YAML instead.`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().Int("limit", 20, "maximum number of records to show")
	historyCmd.Flags().Bool("export", false, "write records to stdout as YAML")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	vaultDir, _ := cmd.Flags().GetString("vault")
	limit, _ := cmd.Flags().GetInt("limit")

	store, err := history.Open(vaultDir)
	if err != nil {
		return err
	}
	defer store.Close()

	if export, _ := cmd.Flags().GetBool("export"); export {
		return store.ExportYAML(os.Stdout, limit)
	}

	records, err := store.Recent(limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No conversions recorded yet")
		return nil
	}

	for _, rec := range records {
		line := fmt.Sprintf("%s  %-10s %-12s %s",
			rec.CreatedAt.Format("2006-01-02 15:04:05"), rec.Status, rec.Backend, rec.SourcePath)
		switch {
		case rec.Error != "":
			line += fmt.Sprintf("  (%s)", rec.Error)
		case rec.MarkdownPath != "":
			line += fmt.Sprintf("  -> %s", rec.MarkdownPath)
		}
		fmt.Fprintln(os.Stdout, line)
	}
	return nil
}
