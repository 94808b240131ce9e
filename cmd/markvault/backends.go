// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mhoffm/markvault/internal/backend"
)

var backendsCmd = &cobra.Command{
	Use:   "backends",
	Short: "List the available backends and their settings",
	Long: `Backends prints each conversion backend together with the settings it
understands, the expected value types, and the defaults. Setting IDs match
the config file keys and the MARKVAULT_* environment variables.`,
	Run: func(cmd *cobra.Command, args []string) {
		for _, b := range backend.All() {
			fmt.Printf("%s\n", b.ID())
			for _, def := range b.SettingDefinitions() {
				line := fmt.Sprintf("  %-22s %-8s %s", def.ID, def.Type, def.Description)
				if def.Default != nil {
					line += fmt.Sprintf(" (default: %v)", def.Default)
				}
				if def.TestsConnection {
					line += " [tests connection]"
				}
				fmt.Fprintln(os.Stdout, line)
			}
			fmt.Println()
		}
	},
}

func init() {
	rootCmd.AddCommand(backendsCmd)
}
