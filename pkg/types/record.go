// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// RecordStatus classifies the outcome of one conversion invocation.
type RecordStatus string

const (
	// StatusConverted marks a conversion whose Markdown/images were written.
	StatusConverted RecordStatus = "converted"
	// StatusFailed marks a conversion that reported an error.
	StatusFailed RecordStatus = "failed"
	// StatusCancelled marks a conversion the user aborted at a prompt.
	StatusCancelled RecordStatus = "cancelled"
)

// Record is one row of the conversion history.
type Record struct {
	// ID is assigned by the store.
	ID int64 `json:"id" yaml:"id"`

	// SourcePath is the vault-relative path of the converted file.
	SourcePath string `json:"source_path" yaml:"source_path"`

	// Backend names the backend that performed the conversion.
	Backend BackendID `json:"backend" yaml:"backend"`

	// Status is the terminal outcome.
	Status RecordStatus `json:"status" yaml:"status"`

	// MarkdownPath is the vault-relative path of the written Markdown file,
	// empty for images-only conversions and failures.
	MarkdownPath string `json:"markdown_path,omitempty" yaml:"markdown_path,omitempty"`

	// ImageCount is the number of image files written.
	ImageCount int `json:"image_count" yaml:"image_count"`

	// Duration is the wall-clock time of the conversion.
	Duration time.Duration `json:"duration" yaml:"duration"`

	// Error is the failure reason for StatusFailed records.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`

	// CreatedAt is when the record was written.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}
