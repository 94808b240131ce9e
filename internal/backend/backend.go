// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package backend implements the conversion backends: each adapter knows how
// to submit a document to one remote API, drive its protocol to completion,
// and normalize the response into the canonical ConversionResult. Adapters
// never touch the vault; materialization is the pipeline's job.
package backend

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/mhoffm/markvault/pkg/types"
)

// Client is the HTTP client all adapters use. Submissions can run for
// minutes, so there is no client timeout; cancellation comes from the
// request context. Tests substitute httptest clients.
var Client = &http.Client{}

// Input is the document handed to an adapter for conversion.
type Input struct {
	// Name is the file name including extension.
	Name string

	// Content is the raw file bytes.
	Content []byte

	// AbsPath is the absolute on-disk path; the local Python service reads
	// the file itself and is handed the path instead of the bytes.
	AbsPath string
}

// Backend is the capability contract every adapter satisfies.
type Backend interface {
	// ID returns the backend identifier.
	ID() types.BackendID

	// Convert submits the document, drives any polling protocol, and returns
	// the normalized result. Progress notices go to w. A returned error
	// covers protocol failures (network, validation); a result with
	// Success=false covers remote-processing and parse failures. Neither
	// performs any vault mutation.
	Convert(ctx context.Context, settings types.Settings, in Input, w io.Writer) (types.ConversionResult, error)

	// TestConnection probes the backend without vault side effects: a
	// dedicated health endpoint or an empty-payload submission. When silent
	// is false the outcome is reported to w; failures are always logged.
	TestConnection(ctx context.Context, settings types.Settings, silent bool, w io.Writer) bool

	// SettingDefinitions returns the ordered configuration surface this
	// backend declares.
	SettingDefinitions() []SettingDefinition
}

// Select returns the adapter for the configured backend identifier.
func Select(id types.BackendID) (Backend, error) {
	switch id {
	case types.BackendSelfhosted:
		return &Selfhosted{}, nil
	case types.BackendDatalab:
		return &Datalab{}, nil
	case types.BackendPythonAPI:
		return &PythonAPI{}, nil
	case types.BackendMistralAI:
		return &MistralAI{}, nil
	}
	return nil, fmt.Errorf("unknown backend %q", id)
}

// All returns every adapter in declaration order, for listing surfaces.
func All() []Backend {
	return []Backend{&Selfhosted{}, &Datalab{}, &PythonAPI{}, &MistralAI{}}
}

// AffordanceType names the UI affordance a setting definition asks for.
type AffordanceType string

const (
	AffordanceText     AffordanceType = "text"
	AffordanceToggle   AffordanceType = "toggle"
	AffordanceDropdown AffordanceType = "dropdown"
)

// SettingDefinition describes one configuration field a backend declares.
// The UI collaborator renders these; the CLI lists them under
// "markvault backends".
type SettingDefinition struct {
	// ID is the configuration key.
	ID string

	// Name is the human-readable label.
	Name string

	// Description explains the setting.
	Description string

	// Type is the UI affordance.
	Type AffordanceType

	// Placeholder is shown in empty text fields.
	Placeholder string

	// Default is the value used when the setting is unset.
	Default any

	// TestsConnection marks the setting that carries the "test connection"
	// action button.
	TestsConnection bool
}
