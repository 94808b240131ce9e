// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mhoffm/markvault/internal/history"
	"github.com/mhoffm/markvault/internal/pipeline"
	"github.com/mhoffm/markvault/internal/vault"
)

var convertCmd = &cobra.Command{
	Use:   "convert [files...]",
	Short: "Convert documents in the vault to Markdown notes",
	Long: `Convert submits each file (a vault-relative path) to the configured
backend, waits for the result, and writes the Markdown note, extracted
images, and optional metadata frontmatter into the vault. Each file is an
independent conversion: one failure does not stop the rest.`,
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().String("backend", "", "conversion backend: selfhosted, datalab, python-api, or mistralai")
	convertCmd.Flags().String("mode", "", "content to extract: text, images, or all")
	convertCmd.Flags().Bool("create-folder", true, "create a dedicated folder per document")
	convertCmd.Flags().Bool("asset-subfolder", true, "place images in an assets/ subfolder")
	convertCmd.Flags().Bool("write-metadata", false, "merge conversion metadata into the note frontmatter")
	convertCmd.Flags().Bool("move-original", false, "move the source file into the target folder")
	convertCmd.Flags().Bool("delete-original", false, "move the source file to the vault trash after conversion")
	convertCmd.Flags().String("langs", "", "comma-separated OCR language hints (datalab, python-api)")
	convertCmd.Flags().Bool("force-ocr", false, "force OCR on every page")
	convertCmd.Flags().Bool("paginate", false, "add horizontal rules between pages")
	convertCmd.Flags().Int("max-pages", 0, "maximum number of pages to convert (0 for all)")
	convertCmd.Flags().Bool("strip-existing-ocr", false, "discard embedded OCR text and redo OCR (datalab)")
	convertCmd.Flags().Bool("use-llm", false, "use an LLM to improve conversion quality (datalab)")
	convertCmd.Flags().Bool("skip-cache", false, "bypass the remote conversion cache (datalab)")
	convertCmd.Flags().Int("image-limit", 0, "maximum number of images to extract (mistralai, 0 for no limit)")
	convertCmd.Flags().Int("image-min-size", 0, "minimum image dimension in pixels (mistralai, 0 for none)")
	convertCmd.Flags().Bool("yes", false, "answer yes to all confirmation prompts")
	convertCmd.Flags().Bool("no-history", false, "do not record the conversion in the history database")

	viper.BindPFlag("backend", convertCmd.Flags().Lookup("backend"))
	viper.BindPFlag("extract_content", convertCmd.Flags().Lookup("mode"))
	viper.BindPFlag("create_folder", convertCmd.Flags().Lookup("create-folder"))
	viper.BindPFlag("create_asset_subfolder", convertCmd.Flags().Lookup("asset-subfolder"))
	viper.BindPFlag("write_metadata", convertCmd.Flags().Lookup("write-metadata"))
	viper.BindPFlag("move_original", convertCmd.Flags().Lookup("move-original"))
	viper.BindPFlag("delete_original", convertCmd.Flags().Lookup("delete-original"))
	viper.BindPFlag("langs", convertCmd.Flags().Lookup("langs"))
	viper.BindPFlag("force_ocr", convertCmd.Flags().Lookup("force-ocr"))
	viper.BindPFlag("paginate", convertCmd.Flags().Lookup("paginate"))
	viper.BindPFlag("max_pages", convertCmd.Flags().Lookup("max-pages"))
	viper.BindPFlag("strip_existing_ocr", convertCmd.Flags().Lookup("strip-existing-ocr"))
	viper.BindPFlag("use_llm", convertCmd.Flags().Lookup("use-llm"))
	viper.BindPFlag("skip_cache", convertCmd.Flags().Lookup("skip-cache"))
	viper.BindPFlag("image_limit", convertCmd.Flags().Lookup("image-limit"))
	viper.BindPFlag("image_min_size", convertCmd.Flags().Lookup("image-min-size"))

	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("provide one or more vault-relative file paths to convert")
	}

	vaultDir, _ := cmd.Flags().GetString("vault")
	v, err := vault.Open(vaultDir)
	if err != nil {
		return err
	}

	settings := resolveSettings()

	var prompter vault.Prompter
	if yes, _ := cmd.Flags().GetBool("yes"); yes {
		prompter = vault.PromptFunc(func(title, message string) bool { return true })
	} else {
		prompter = vault.PromptFunc(terminalConfirm)
	}

	p := &pipeline.Pipeline{
		Vault:    v,
		Prompter: prompter,
		Notices:  os.Stdout,
	}

	if noHistory, _ := cmd.Flags().GetBool("no-history"); !noHistory {
		store, err := history.Open(vaultDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "history disabled: %v\n", err)
		} else {
			defer store.Close()
			p.History = store
		}
	}

	files := make([]vault.File, 0, len(args))
	for _, arg := range args {
		files = append(files, vault.FileFromPath(arg))
	}

	result := p.ConvertAll(cmd.Context(), settings, files)
	if result.HasFailures() {
		return fmt.Errorf("%d file(s) failed conversion", result.Failed)
	}
	return nil
}

// terminalConfirm asks a yes/no question on the terminal. Anything but an
// explicit yes declines.
func terminalConfirm(title, message string) bool {
	fmt.Printf("%s\n%s [y/N]: ", title, message)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
