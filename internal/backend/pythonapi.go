// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/mhoffm/markvault/internal/normalize"
	"github.com/mhoffm/markvault/pkg/types"
)

// PythonAPI converts through a Marker service running locally as a Python
// process. The service reads the document from disk itself, so the request
// carries the absolute file path as JSON instead of the file bytes.
type PythonAPI struct{}

// pythonRequest is the JSON submission body.
type pythonRequest struct {
	Filepath       string `json:"filepath"`
	PageRange      string `json:"page_range"`
	Languages      string `json:"languages"`
	ForceOCR       bool   `json:"force_ocr"`
	PaginateOutput bool   `json:"paginate_output"`
	OutputFormat   string `json:"output_format"`
}

// pythonErrorDetail is the service's request rejection shape.
type pythonErrorDetail struct {
	Detail []struct {
		Msg string `json:"msg"`
	} `json:"detail"`
}

// ID implements Backend.
func (p *PythonAPI) ID() types.BackendID { return types.BackendPythonAPI }

// Convert implements Backend. The response is synchronous:
// {success, output, images, metadata}.
func (p *PythonAPI) Convert(ctx context.Context, settings types.Settings, in Input, w io.Writer) (types.ConversionResult, error) {
	fmt.Fprintln(w, "Converting file with Python API...")

	langs := settings.Langs
	if langs == "" {
		langs = "en"
	}
	payload, err := json.Marshal(pythonRequest{
		Filepath:       in.AbsPath,
		PageRange:      "",
		Languages:      langs,
		ForceOCR:       settings.ForceOCR,
		PaginateOutput: settings.Paginate,
		OutputFormat:   "markdown",
	})
	if err != nil {
		return types.ConversionResult{}, err
	}

	url := fmt.Sprintf("http://%s/marker", settings.PythonEndpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return types.ConversionResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := Client.Do(req)
	if err != nil {
		return types.ConversionResult{}, fmt.Errorf("submitting to Python API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.ConversionResult{}, fmt.Errorf("reading Python API response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var detail pythonErrorDetail
		if jsonErr := json.Unmarshal(body, &detail); jsonErr == nil && len(detail.Detail) > 0 {
			msgs := make([]string, len(detail.Detail))
			for i, d := range detail.Detail {
				msgs[i] = d.Msg
			}
			return types.ConversionResult{}, fmt.Errorf("python API conversion failed: %s", strings.Join(msgs, "; "))
		}
		return types.ConversionResult{}, fmt.Errorf("python API conversion failed: HTTP %d", resp.StatusCode)
	}

	var envelope struct {
		Success bool `json:"success"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		fmt.Fprintf(os.Stderr, "raw payload before failing parse: %s\n", truncateBody(body))
		return types.Failure(normalize.ErrUnrecognized), nil
	}
	if !envelope.Success {
		return types.Failure("unknown conversion error"), nil
	}

	return normalize.Payload(body), nil
}

// TestConnection implements Backend by probing the service root.
func (p *PythonAPI) TestConnection(ctx context.Context, settings types.Settings, silent bool, w io.Writer) bool {
	if settings.PythonEndpoint == "" {
		fmt.Fprintln(w, "Error: Python API endpoint not configured")
		return false
	}

	url := fmt.Sprintf("http://%s/", settings.PythonEndpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error connecting to Python API: %v\n", err)
		return false
	}
	resp, err := Client.Do(req)
	if err != nil {
		fmt.Fprintln(w, "Error connecting to Python API")
		fmt.Fprintf(os.Stderr, "error connecting to Python API: %v\n", err)
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(w, "Error connecting to Python API: %d\n", resp.StatusCode)
		return false
	}
	if !silent {
		fmt.Fprintln(w, "Connection successful!")
	}
	return true
}

// SettingDefinitions implements Backend.
func (p *PythonAPI) SettingDefinitions() []SettingDefinition {
	return []SettingDefinition{
		{
			ID:              "python_endpoint",
			Name:            "Python API address",
			Description:     "The endpoint to use for the Python API.",
			Type:            AffordanceText,
			Placeholder:     "localhost:8001",
			Default:         "localhost:8001",
			TestsConnection: true,
		},
		{
			ID:          "langs",
			Name:        "Languages",
			Description: "The languages to use if OCR is needed, separated by commas",
			Type:        AffordanceText,
			Placeholder: "en",
			Default:     "en",
		},
		{
			ID:          "force_ocr",
			Name:        "Force OCR",
			Description: "Force OCR (activate this when auto-detect often fails)",
			Type:        AffordanceToggle,
			Default:     false,
		},
		{
			ID:          "paginate",
			Name:        "Paginate",
			Description: "Add horizontal rules between each page",
			Type:        AffordanceToggle,
			Default:     false,
		},
	}
}

// truncateBody limits logged payloads to a diagnosable size.
func truncateBody(body []byte) string {
	const limit = 500
	if len(body) <= limit {
		return string(body)
	}
	return string(body[:limit]) + "..."
}
