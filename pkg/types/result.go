// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// ConversionResult is the canonical record every backend response is
// normalized into. The pipeline and materializer branch only on this type,
// never on backend identity.
type ConversionResult struct {
	// Success reports whether the backend produced usable output. When false,
	// Error carries the reason and no filesystem mutation is attempted.
	Success bool `json:"success"`

	// Markdown is the converted document body. Populated on success when the
	// extraction mode includes text.
	Markdown string `json:"markdown,omitempty"`

	// Images maps image identifiers (unique within one result) to raw image
	// bytes encoded as base64, without any data-URL prefix.
	Images map[string]string `json:"images,omitempty"`

	// Metadata carries backend-supplied document metadata (language list,
	// page counts, OCR statistics). Keys and value shapes vary per backend.
	Metadata map[string]any `json:"metadata,omitempty"`

	// Error describes the failure when Success is false.
	Error string `json:"error,omitempty"`
}

// Failure builds a failed result with the given reason.
func Failure(reason string) ConversionResult {
	return ConversionResult{Success: false, Error: reason}
}
