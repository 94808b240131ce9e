// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline sequences one conversion end to end: validate the
// configuration, resolve the target location, precheck collisions, invoke the
// backend, materialize the result into the vault, and apply post-actions.
// Each stage returns a typed error and the pipeline short-circuits on the
// first failure; nothing here panics across the CLI boundary.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/mhoffm/markvault/internal/backend"
	"github.com/mhoffm/markvault/internal/history"
	"github.com/mhoffm/markvault/internal/vault"
	"github.com/mhoffm/markvault/pkg/types"
)

// Category classifies a conversion failure per the error taxonomy.
type Category string

const (
	// CategoryConfig: missing endpoint/key or invalid extraction mode;
	// reported before any network call.
	CategoryConfig Category = "configuration"
	// CategoryConnectivity: the pre-submission probe failed.
	CategoryConnectivity Category = "connectivity"
	// CategoryRemote: the backend rejected or failed the conversion, the
	// polling budget ran out, or the response failed to parse.
	CategoryRemote Category = "remote"
	// CategoryVault: a filesystem mutation during materialization failed.
	CategoryVault Category = "vault"
)

// Error is a categorized conversion failure.
type Error struct {
	Category Category
	Err      error
}

func (e *Error) Error() string { return fmt.Sprintf("%s error: %v", e.Category, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

func fail(c Category, err error) *Error { return &Error{Category: c, Err: err} }

// Pipeline holds the collaborators one conversion needs. The settings value
// is passed into Convert per call and never stored.
type Pipeline struct {
	// Vault is the note vault being written to.
	Vault *vault.Vault

	// Prompter mediates the folder-exists and files-exist confirmations.
	Prompter vault.Prompter

	// Notices receives user-visible progress and terminal messages.
	Notices io.Writer

	// History records conversion outcomes; nil disables recording. Store
	// failures never fail a conversion.
	History *history.Store
}

// Convert runs one conversion. The returned status is StatusConverted on
// success, StatusCancelled when the user declined a prompt (not an error),
// and StatusFailed alongside a categorized error. All failures are also
// surfaced as notices, so callers only need the error for exit codes.
func (p *Pipeline) Convert(ctx context.Context, settings types.Settings, file vault.File) (types.RecordStatus, error) {
	start := time.Now()

	if err := settings.Validate(); err != nil {
		fmt.Fprintf(p.Notices, "Error: %v\n", err)
		return types.StatusFailed, fail(CategoryConfig, err)
	}

	b, err := backend.Select(settings.Backend)
	if err != nil {
		fmt.Fprintf(p.Notices, "Error: %v\n", err)
		return types.StatusFailed, fail(CategoryConfig, err)
	}

	// Connectivity precheck: no submission without a reachable backend.
	if !b.TestConnection(ctx, settings, true, p.Notices) {
		err := fmt.Errorf("backend %s is not reachable", settings.Backend)
		fmt.Fprintf(p.Notices, "Error: %v\n", err)
		return types.StatusFailed, fail(CategoryConnectivity, err)
	}

	target, ok, err := vault.ResolveTarget(p.Vault, p.Prompter, settings, file)
	if err != nil {
		fmt.Fprintf(p.Notices, "Error: %v\n", err)
		return types.StatusFailed, fail(CategoryVault, err)
	}
	if !ok {
		p.cancelled(settings, file, start)
		return types.StatusCancelled, nil
	}

	// Collision precheck applies when images will be written.
	if settings.ExtractContent.IncludesImages() {
		proceed, err := vault.CheckForExistingFiles(p.Vault, p.Prompter, target)
		if err != nil {
			fmt.Fprintf(p.Notices, "Error: %v\n", err)
			return types.StatusFailed, fail(CategoryVault, err)
		}
		if !proceed {
			p.cancelled(settings, file, start)
			return types.StatusCancelled, nil
		}
	}

	content, err := p.Vault.ReadBinary(file.Path)
	if err != nil {
		fmt.Fprintf(p.Notices, "Error reading file: %v\n", err)
		return types.StatusFailed, fail(CategoryVault, err)
	}
	in := backend.Input{
		Name:    file.Name,
		Content: content,
		AbsPath: filepath.Join(p.Vault.Root(), filepath.FromSlash(file.Path)),
	}

	result, err := b.Convert(ctx, settings, in, p.Notices)
	if err != nil {
		fmt.Fprintf(p.Notices, "Conversion failed: %v\n", err)
		p.failed(settings, file, start, err.Error())
		return types.StatusFailed, fail(CategoryRemote, err)
	}
	if !result.Success {
		reason := result.Error
		if reason == "" {
			reason = "unknown error"
		}
		fmt.Fprintf(p.Notices, "Conversion failed: %s\n", reason)
		p.failed(settings, file, start, reason)
		return types.StatusFailed, fail(CategoryRemote, errors.New(reason))
	}

	mdPath, imageCount, err := p.materialize(settings, result, target, file)
	if err != nil {
		fmt.Fprintf(p.Notices, "Error: Failed to process conversion result - %v\n", err)
		p.failed(settings, file, start, err.Error())
		return types.StatusFailed, fail(CategoryVault, err)
	}

	// Post-actions are best-effort: the written output is the deliverable.
	vault.ApplyPostActions(p.Vault, settings, target, file, p.Notices)

	p.record(types.Record{
		SourcePath:   file.Path,
		Backend:      settings.Backend,
		Status:       types.StatusConverted,
		MarkdownPath: mdPath,
		ImageCount:   imageCount,
		Duration:     time.Since(start),
	})
	fmt.Fprintln(p.Notices, "Conversion completed successfully")
	return types.StatusConverted, nil
}

// materialize applies a successful result to the vault per the extraction
// mode and returns the Markdown path (if written) and the image count.
func (p *Pipeline) materialize(settings types.Settings, result types.ConversionResult, target vault.Target, file vault.File) (string, int, error) {
	var mdPath string
	var imageCount int
	var err error

	if settings.ExtractContent.IncludesText() {
		mdPath, err = vault.WriteMarkdown(p.Vault, settings, result.Markdown, target, file, p.Notices)
		if err != nil {
			return "", 0, err
		}
	}

	if settings.ExtractContent.IncludesImages() && len(result.Images) > 0 {
		imageCount, err = vault.WriteImages(p.Vault, settings, result.Images, target, file, p.Notices)
		if err != nil {
			return mdPath, 0, err
		}
	}

	if settings.WriteMetadata && len(result.Metadata) > 0 {
		if err := vault.MergeMetadata(p.Vault, result.Metadata, target, file); err != nil {
			// Metadata merge is independent of the primary deliverable.
			fmt.Fprintf(os.Stderr, "failed to merge metadata: %v\n", err)
			fmt.Fprintln(p.Notices, "Error: Failed to add metadata to markdown file")
		}
	}

	return mdPath, imageCount, nil
}

// cancelled records a user-cancelled conversion and emits the single
// terminal notice.
func (p *Pipeline) cancelled(settings types.Settings, file vault.File, start time.Time) {
	fmt.Fprintln(p.Notices, "Conversion cancelled")
	p.record(types.Record{
		SourcePath: file.Path,
		Backend:    settings.Backend,
		Status:     types.StatusCancelled,
		Duration:   time.Since(start),
	})
}

// failed records a failed conversion.
func (p *Pipeline) failed(settings types.Settings, file vault.File, start time.Time, reason string) {
	p.record(types.Record{
		SourcePath: file.Path,
		Backend:    settings.Backend,
		Status:     types.StatusFailed,
		Error:      reason,
		Duration:   time.Since(start),
	})
}

// record writes a history row, best-effort.
func (p *Pipeline) record(rec types.Record) {
	if p.History == nil {
		return
	}
	if err := p.History.Record(rec); err != nil {
		fmt.Fprintf(os.Stderr, "failed to record conversion history: %v\n", err)
	}
}

// BatchResult holds the outcome of converting a selection of files.
type BatchResult struct {
	Converted int
	Cancelled int
	Failed    int
}

// Total returns the total number of files processed.
func (r BatchResult) Total() int { return r.Converted + r.Cancelled + r.Failed }

// HasFailures reports whether any file failed conversion.
func (r BatchResult) HasFailures() bool { return r.Failed > 0 }

// ConvertAll converts a selection of files. Each file runs as an independent
// sequence with its own prompts and its own outcome; one file's failure does
// not stop the rest.
func (p *Pipeline) ConvertAll(ctx context.Context, settings types.Settings, files []vault.File) BatchResult {
	var result BatchResult
	for _, file := range files {
		status, _ := p.Convert(ctx, settings, file)
		switch status {
		case types.StatusConverted:
			result.Converted++
		case types.StatusCancelled:
			result.Cancelled++
		default:
			result.Failed++
		}
	}
	fmt.Fprintf(p.Notices, "\nBatch summary: %d converted, %d cancelled, %d failed (total: %d)\n",
		result.Converted, result.Cancelled, result.Failed, result.Total())
	return result
}
