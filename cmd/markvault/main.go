// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the markvault CLI: it converts
// documents into Markdown notes inside a note vault by delegating the
// conversion work to one of several remote backends.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mhoffm/markvault/internal/secrets"
	"github.com/mhoffm/markvault/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// secretDefault returns fallback when set, otherwise the secret value for key.
func secretDefault(key, fallback string) string {
	if fallback != "" {
		return fallback
	}
	if v, ok := loadedSecrets[key]; ok {
		return v
	}
	return ""
}

// rootCmd is the base command for the markvault CLI.
var rootCmd = &cobra.Command{
	Use:   "markvault",
	Short: "Convert documents to Markdown notes in a vault",
	Long: `markvault converts PDF and Office documents into Markdown notes inside a
note vault. The conversion itself runs on a remote backend (a self-hosted
Marker API container, the hosted Datalab API, a local Python Marker service,
or the MistralAI OCR API); markvault submits the file, waits for the result,
and materializes it as vault files: the Markdown note, extracted images, and
optional metadata frontmatter.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./markvault.yaml or ~/.config/markvault/config.yaml)")
	rootCmd.PersistentFlags().String("vault", ".", "root directory of the note vault")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("markvault")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "markvault"))
		}
	}

	viper.SetEnvPrefix("MARKVAULT")
	viper.AutomaticEnv()

	defaults := types.DefaultSettings()
	viper.SetDefault("backend", string(defaults.Backend))
	viper.SetDefault("marker_endpoint", defaults.MarkerEndpoint)
	viper.SetDefault("python_endpoint", defaults.PythonEndpoint)
	viper.SetDefault("extract_content", string(defaults.ExtractContent))
	viper.SetDefault("create_folder", defaults.CreateFolder)
	viper.SetDefault("create_asset_subfolder", defaults.CreateAssetSubfolder)
	viper.SetDefault("langs", defaults.Langs)

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// resolveSettings builds the immutable per-conversion Settings value from the
// configuration sources, in precedence order: flags (bound by the caller),
// environment, config file, secrets, defaults.
func resolveSettings() types.Settings {
	return types.Settings{
		Backend:              types.BackendID(viper.GetString("backend")),
		MarkerEndpoint:       viper.GetString("marker_endpoint"),
		PythonEndpoint:       viper.GetString("python_endpoint"),
		DatalabAPIKey:        secretDefault("datalab-api-key", viper.GetString("datalab_api_key")),
		MistralAIAPIKey:      secretDefault("mistralai-api-key", viper.GetString("mistralai_api_key")),
		ExtractContent:       types.ExtractMode(viper.GetString("extract_content")),
		CreateFolder:         viper.GetBool("create_folder"),
		CreateAssetSubfolder: viper.GetBool("create_asset_subfolder"),
		WriteMetadata:        viper.GetBool("write_metadata"),
		MoveOriginal:         viper.GetBool("move_original"),
		DeleteOriginal:       viper.GetBool("delete_original"),
		Langs:                viper.GetString("langs"),
		ForceOCR:             viper.GetBool("force_ocr"),
		Paginate:             viper.GetBool("paginate"),
		MaxPages:             viper.GetInt("max_pages"),
		StripExistingOCR:     viper.GetBool("strip_existing_ocr"),
		UseLLM:               viper.GetBool("use_llm"),
		SkipCache:            viper.GetBool("skip_cache"),
		ImageLimit:           viper.GetInt("image_limit"),
		ImageMinSize:         viper.GetInt("image_min_size"),
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
