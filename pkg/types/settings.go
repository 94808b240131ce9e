// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "fmt"

// ExtractMode selects which content a conversion materializes.
type ExtractMode string

const (
	// ExtractText writes only the Markdown file; image references are stripped.
	ExtractText ExtractMode = "text"
	// ExtractImages writes only the extracted images, no Markdown file.
	ExtractImages ExtractMode = "images"
	// ExtractAll writes both the Markdown file and the extracted images.
	ExtractAll ExtractMode = "all"
)

// Valid reports whether the mode is one of the three recognized values.
func (m ExtractMode) Valid() bool {
	switch m {
	case ExtractText, ExtractImages, ExtractAll:
		return true
	}
	return false
}

// IncludesText reports whether Markdown output is materialized.
func (m ExtractMode) IncludesText() bool { return m != ExtractImages }

// IncludesImages reports whether image output is materialized.
func (m ExtractMode) IncludesImages() bool { return m != ExtractText }

// BackendID identifies a conversion backend.
type BackendID string

const (
	BackendSelfhosted BackendID = "selfhosted"
	BackendDatalab    BackendID = "datalab"
	BackendPythonAPI  BackendID = "python-api"
	BackendMistralAI  BackendID = "mistralai"
)

// Settings holds the full configuration for one conversion. A Settings value
// is resolved once by the CLI (config file, environment, flags, secrets) and
// passed by value into the pipeline; nothing mutates it afterwards.
type Settings struct {
	// Backend selects the conversion backend.
	Backend BackendID `json:"backend" yaml:"backend"`

	// MarkerEndpoint is the host:port of the self-hosted Marker API.
	MarkerEndpoint string `json:"marker_endpoint" yaml:"marker_endpoint"`

	// PythonEndpoint is the host:port of the local Python Marker service.
	PythonEndpoint string `json:"python_endpoint" yaml:"python_endpoint"`

	// DatalabAPIKey authenticates against the hosted Datalab API.
	DatalabAPIKey string `json:"datalab_api_key,omitempty" yaml:"datalab_api_key,omitempty"`

	// MistralAIAPIKey authenticates against the MistralAI OCR API.
	MistralAIAPIKey string `json:"mistralai_api_key,omitempty" yaml:"mistralai_api_key,omitempty"`

	// ExtractContent selects text, images, or all.
	ExtractContent ExtractMode `json:"extract_content" yaml:"extract_content"`

	// CreateFolder puts the conversion output into a dedicated folder derived
	// from the source file name instead of the source's containing folder.
	CreateFolder bool `json:"create_folder" yaml:"create_folder"`

	// CreateAssetSubfolder places extracted images under an assets/ subfolder
	// and rewrites Markdown image links to match.
	CreateAssetSubfolder bool `json:"create_asset_subfolder" yaml:"create_asset_subfolder"`

	// WriteMetadata merges backend-supplied document metadata into the
	// Markdown file's frontmatter.
	WriteMetadata bool `json:"write_metadata" yaml:"write_metadata"`

	// MoveOriginal moves the source file into the target folder after a
	// successful conversion.
	MoveOriginal bool `json:"move_original" yaml:"move_original"`

	// DeleteOriginal sends the source file to the vault trash after a
	// successful conversion.
	DeleteOriginal bool `json:"delete_original" yaml:"delete_original"`

	// Langs is a comma-separated list of OCR language hints.
	Langs string `json:"langs" yaml:"langs"`

	// ForceOCR re-runs OCR even when the document carries a text layer.
	ForceOCR bool `json:"force_ocr" yaml:"force_ocr"`

	// Paginate inserts horizontal rules between pages.
	Paginate bool `json:"paginate" yaml:"paginate"`

	// MaxPages limits the number of pages to convert; 0 means all pages.
	MaxPages int `json:"max_pages,omitempty" yaml:"max_pages,omitempty"`

	// StripExistingOCR removes existing OCR text and re-runs OCR.
	StripExistingOCR bool `json:"strip_existing_ocr" yaml:"strip_existing_ocr"`

	// UseLLM enables LLM-assisted layout enhancement on Datalab.
	UseLLM bool `json:"use_llm" yaml:"use_llm"`

	// SkipCache forces re-conversion on Datalab instead of serving a cached result.
	SkipCache bool `json:"skip_cache" yaml:"skip_cache"`

	// ImageLimit caps the number of images MistralAI extracts; 0 means no limit.
	ImageLimit int `json:"image_limit,omitempty" yaml:"image_limit,omitempty"`

	// ImageMinSize is the minimum height/width of images MistralAI extracts;
	// 0 means no minimum.
	ImageMinSize int `json:"image_min_size,omitempty" yaml:"image_min_size,omitempty"`
}

// DefaultSettings mirrors the defaults the settings surface advertises.
func DefaultSettings() Settings {
	return Settings{
		Backend:              BackendSelfhosted,
		MarkerEndpoint:       "localhost:8000",
		PythonEndpoint:       "localhost:8001",
		ExtractContent:       ExtractAll,
		CreateFolder:         true,
		CreateAssetSubfolder: true,
		Langs:                "en",
	}
}

// Validate checks the invariants every backend relies on: a recognized
// backend identifier and a valid extraction mode.
func (s Settings) Validate() error {
	if !s.ExtractContent.Valid() {
		return fmt.Errorf("invalid content extraction mode %q (want text, images, or all)", s.ExtractContent)
	}
	switch s.Backend {
	case BackendSelfhosted, BackendDatalab, BackendPythonAPI, BackendMistralAI:
		return nil
	}
	return fmt.Errorf("unknown backend %q", s.Backend)
}
