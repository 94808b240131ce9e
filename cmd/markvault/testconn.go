// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mhoffm/markvault/internal/backend"
	"github.com/mhoffm/markvault/pkg/types"
)

var testConnectionCmd = &cobra.Command{
	Use:   "test-connection",
	Short: "Probe the configured backend",
	Long: `Test-connection sends the configured backend's health probe and reports
whether the endpoint is reachable and, where an API key is involved, whether
the key is accepted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings := resolveSettings()
		if name, _ := cmd.Flags().GetString("backend"); name != "" {
			settings.Backend = types.BackendID(name)
		}
		if err := settings.Validate(); err != nil {
			return err
		}

		b, err := backend.Select(settings.Backend)
		if err != nil {
			return err
		}

		if !b.TestConnection(cmd.Context(), settings, false, os.Stdout) {
			return fmt.Errorf("backend %s is not reachable", settings.Backend)
		}
		return nil
	},
}

func init() {
	testConnectionCmd.Flags().String("backend", "", "backend to probe (default: configured backend)")

	rootCmd.AddCommand(testConnectionCmd)
}
