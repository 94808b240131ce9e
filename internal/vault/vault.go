// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package vault provides the note-vault filesystem surface and the
// materialization operations that turn a normalized conversion result into
// vault files. All paths are vault-relative with forward-slash separators;
// folder paths carry exactly one trailing slash.
package vault

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// trashDir is where Trash moves files, relative to the vault root.
const trashDir = ".trash"

// Vault is a note vault rooted at a directory on disk.
type Vault struct {
	root string
}

// Open returns a Vault rooted at dir. The directory must exist.
func Open(dir string) (*Vault, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("opening vault %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("vault path %s is not a directory", dir)
	}
	return &Vault{root: dir}, nil
}

// Root returns the vault's root directory on disk.
func (v *Vault) Root() string { return v.root }

// abs maps a vault-relative path to an OS path.
func (v *Vault) abs(rel string) string {
	return filepath.Join(v.root, filepath.FromSlash(strings.TrimSuffix(rel, "/")))
}

// ReadBinary reads the raw bytes of a vault file.
func (v *Vault) ReadBinary(rel string) ([]byte, error) {
	data, err := os.ReadFile(v.abs(rel))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", rel, err)
	}
	return data, nil
}

// FileExists reports whether rel names an existing regular file.
func (v *Vault) FileExists(rel string) bool {
	info, err := os.Stat(v.abs(rel))
	return err == nil && !info.IsDir()
}

// FolderExists reports whether rel names an existing folder.
func (v *Vault) FolderExists(rel string) bool {
	info, err := os.Stat(v.abs(rel))
	return err == nil && info.IsDir()
}

// CreateFolder creates the folder at rel, including missing parents. It is a
// no-op when the folder already exists.
func (v *Vault) CreateFolder(rel string) error {
	if err := os.MkdirAll(v.abs(rel), 0o755); err != nil {
		return fmt.Errorf("creating folder %s: %w", rel, err)
	}
	return nil
}

// WriteFile writes data to rel, overwriting any existing content. The parent
// folder must already exist; folder creation is an explicit, separate step.
func (v *Vault) WriteFile(rel string, data []byte) error {
	if err := os.WriteFile(v.abs(rel), data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", rel, err)
	}
	return nil
}

// ListPrefix returns the vault-relative paths of all files whose path starts
// with prefix, sorted. Folders themselves are not listed.
func (v *Vault) ListPrefix(prefix string) ([]string, error) {
	var matches []string
	err := filepath.WalkDir(v.root, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, relErr := filepath.Rel(v.root, p)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)
		if strings.HasPrefix(rel, trashDir+"/") {
			return nil
		}
		if strings.HasPrefix(rel, prefix) {
			matches = append(matches, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", prefix, err)
	}
	sort.Strings(matches)
	return matches, nil
}

// Rename moves a file to a new vault-relative path.
func (v *Vault) Rename(oldRel, newRel string) error {
	if err := os.Rename(v.abs(oldRel), v.abs(newRel)); err != nil {
		return fmt.Errorf("moving %s to %s: %w", oldRel, newRel, err)
	}
	return nil
}

// Trash moves a file into the vault's .trash/ folder instead of deleting it
// outright, preserving the containing-folder structure flattened to the base
// name.
func (v *Vault) Trash(rel string) error {
	if err := os.MkdirAll(filepath.Join(v.root, trashDir), 0o755); err != nil {
		return fmt.Errorf("creating trash folder: %w", err)
	}
	dst := path.Join(trashDir, path.Base(rel))
	if err := os.Rename(v.abs(rel), v.abs(dst)); err != nil {
		return fmt.Errorf("trashing %s: %w", rel, err)
	}
	return nil
}

// File references a source document inside the vault.
type File struct {
	// Path is the vault-relative path, forward slashes.
	Path string
	// Name is the file name including extension.
	Name string
	// Extension is the lowercase extension without the leading period.
	Extension string
}

// FileFromPath builds a File reference from a vault-relative path.
func FileFromPath(rel string) File {
	rel = strings.TrimPrefix(filepath.ToSlash(rel), "./")
	name := path.Base(rel)
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(name)), ".")
	return File{Path: rel, Name: name, Extension: ext}
}

// Stem returns the file name with its extension stripped.
func (f File) Stem() string {
	return strings.TrimSuffix(f.Name, path.Ext(f.Name))
}

// Folder returns the containing folder with a trailing slash, or "" for the
// vault root.
func (f File) Folder() string {
	dir := path.Dir(f.Path)
	if dir == "." || dir == "/" {
		return ""
	}
	return dir + "/"
}

// Prompter mediates the two user confirmations the pipeline can suspend on:
// integrating into an existing folder and overwriting existing files. The CLI
// supplies a terminal implementation; tests supply canned responses.
type Prompter interface {
	// Confirm asks an okay/cancel question and reports the user's choice.
	Confirm(title, message string) bool
}

// PromptFunc adapts a function to the Prompter interface.
type PromptFunc func(title, message string) bool

// Confirm implements Prompter.
func (f PromptFunc) Confirm(title, message string) bool { return f(title, message) }
