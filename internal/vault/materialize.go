// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package vault

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/mhoffm/markvault/pkg/types"
)

// imageLinkPattern matches Markdown image references ![alt](path).
var imageLinkPattern = regexp.MustCompile(`!\[[^\]]*\]\(([^)]*)\)`)

// frontmatterKeys are the metadata keys promoted into frontmatter; everything
// else the backend reports is dropped.
var frontmatterKeys = []string{"languages", "filetype", "ocr_stats", "block_stats"}

// imagePrefix derives the per-source-file prefix that keeps image names unique
// when several conversions share one folder: the stem with periods replaced by
// underscores and spaces percent-encoded, followed by an underscore.
func imagePrefix(file File) string {
	p := strings.ReplaceAll(file.Stem(), ".", "_") + "_"
	return strings.ReplaceAll(p, " ", "%20")
}

// markdownPath returns the vault-relative path of the Markdown file for one
// source file under the target folder.
func markdownPath(target Target, file File) string {
	return target.Folder + file.Stem() + ".md"
}

// WriteMarkdown materializes the Markdown body of a result. When the asset
// subfolder convention is active every image reference is rewritten to
// assets/<prefix><path>; in text-only mode image references are stripped
// entirely. An existing file at the computed path is overwritten. Returns the
// vault-relative path of the written file.
func WriteMarkdown(v *Vault, settings types.Settings, markdown string, target Target, file File, w io.Writer) (string, error) {
	if settings.CreateAssetSubfolder {
		prefix := imagePrefix(file)
		markdown = imageLinkPattern.ReplaceAllString(markdown, "![$1](assets/"+prefix+"$1)")
	}
	if settings.ExtractContent == types.ExtractText {
		markdown = imageLinkPattern.ReplaceAllString(markdown, "")
	}

	mdPath := markdownPath(target, file)
	if err := v.WriteFile(mdPath, []byte(markdown)); err != nil {
		return "", err
	}
	fmt.Fprintf(w, "Markdown file created: %s\n", file.Stem()+".md")
	return mdPath, nil
}

// WriteImages materializes the extracted images. With the asset subfolder
// convention the assets/ folder is created first if absent and each image name
// gets the same prefix WriteMarkdown used for the links, so links and files
// agree. Existing images are overwritten. Individual decode or write failures
// are reported but do not abort the remaining images; the count of written
// images is returned.
func WriteImages(v *Vault, settings types.Settings, images map[string]string, target Target, file File, w io.Writer) (int, error) {
	if len(images) == 0 {
		return 0, nil
	}

	folder := target.Folder
	if settings.CreateAssetSubfolder {
		folder = target.AssetsFolder()
		if !v.FolderExists(folder) {
			if err := v.CreateFolder(folder); err != nil {
				return 0, err
			}
		}
	}

	names := make([]string, 0, len(images))
	for name := range images {
		names = append(names, name)
	}
	sort.Strings(names)

	written := 0
	for _, name := range names {
		stored := name
		if settings.CreateAssetSubfolder {
			stored = imagePrefix(file) + name
		}
		raw, err := base64.StdEncoding.DecodeString(images[name])
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to decode image %s: %v\n", name, err)
			continue
		}
		if err := v.WriteFile(folder+stored, raw); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write image %s: %v\n", stored, err)
			continue
		}
		written++
	}

	if written == len(images) {
		fmt.Fprintf(w, "%d image files created successfully\n", written)
	} else {
		fmt.Fprintf(w, "%d of %d image files created (some failed)\n", written, len(images))
	}
	return written, nil
}

// MergeMetadata promotes recognized metadata keys into the Markdown file's
// frontmatter. Statistics sub-objects are flattened into individual
// "key: value" lines; the "equations" field is serialized as an inline scalar.
// The generated lines are merged by prepending to any existing frontmatter
// block rather than replacing it. A missing Markdown file (images-only mode)
// is a no-op.
func MergeMetadata(v *Vault, metadata map[string]any, target Target, file File) error {
	mdPath := markdownPath(target, file)
	if !v.FileExists(mdPath) {
		return nil
	}

	lines := frontmatterLines(metadata)
	if len(lines) == 0 {
		return nil
	}

	content, err := v.ReadBinary(mdPath)
	if err != nil {
		return err
	}

	body := string(content)
	var b strings.Builder
	b.WriteString("---\n")
	for _, line := range lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if rest, ok := strings.CutPrefix(body, "---\n"); ok {
		// Merge into the existing block: our lines go first.
		b.WriteString(rest)
	} else {
		b.WriteString("---\n")
		b.WriteString(body)
	}

	return v.WriteFile(mdPath, []byte(b.String()))
}

// frontmatterLines renders the promoted metadata keys as frontmatter lines.
// Map iteration order is not stable, so keys within a statistics sub-object
// are sorted.
func frontmatterLines(metadata map[string]any) []string {
	var lines []string
	for _, key := range frontmatterKeys {
		value, ok := metadata[key]
		if !ok {
			continue
		}
		switch key {
		case "ocr_stats", "block_stats":
			stats, ok := value.(map[string]any)
			if !ok {
				continue
			}
			subKeys := make([]string, 0, len(stats))
			for k := range stats {
				subKeys = append(subKeys, k)
			}
			sort.Strings(subKeys)
			for _, k := range subKeys {
				if k == "equations" {
					lines = append(lines, fmt.Sprintf("%s: %s", k, inlineScalar(stats[k])))
				} else {
					lines = append(lines, fmt.Sprintf("%s: %v", k, stats[k]))
				}
			}
		default:
			lines = append(lines, fmt.Sprintf("%s: %v", key, scalarValue(value)))
		}
	}
	return lines
}

// inlineScalar serializes a value as compact JSON with the outer delimiters
// and quote characters removed, matching the frontmatter convention for the
// equations statistics field.
func inlineScalar(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	s := string(raw)
	if len(s) >= 2 {
		s = s[1 : len(s)-1]
	}
	return strings.ReplaceAll(s, `"`, "")
}

// scalarValue renders list values (e.g. the language list) comma-joined the
// way a plain string conversion would, and passes scalars through.
func scalarValue(v any) any {
	if list, ok := v.([]any); ok {
		parts := make([]string, len(list))
		for i, item := range list {
			parts[i] = fmt.Sprintf("%v", item)
		}
		return strings.Join(parts, ",")
	}
	return v
}

// ApplyPostActions moves and/or trashes the original file after a successful
// materialization. Failures here are reported but never returned: the written
// Markdown and images are the primary deliverable and are not rolled back.
func ApplyPostActions(v *Vault, settings types.Settings, target Target, file File, w io.Writer) {
	if settings.MoveOriginal {
		newPath := target.Folder + file.Name
		if newPath != file.Path {
			if err := v.Rename(file.Path, newPath); err != nil {
				fmt.Fprintf(os.Stderr, "failed to move original file: %v\n", err)
				fmt.Fprintln(w, "Error: Failed to move original file to target folder")
			} else {
				// The file moved; the delete branch below must see the new path.
				file.Path = newPath
			}
		}
	}

	if settings.DeleteOriginal {
		if err := v.Trash(file.Path); err != nil {
			fmt.Fprintf(os.Stderr, "failed to delete original file: %v\n", err)
			fmt.Fprintln(w, "Error: Failed to delete original file")
		} else {
			fmt.Fprintln(w, "Original file deleted")
		}
	}
}
