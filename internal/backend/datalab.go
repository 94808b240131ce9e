// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/mhoffm/markvault/internal/httputil"
	"github.com/mhoffm/markvault/internal/poll"
	"github.com/mhoffm/markvault/pkg/types"
)

// datalabBaseURL is the hosted Marker API. A var so tests can point it at an
// httptest server.
var datalabBaseURL = "https://www.datalab.to"

// apiKeyHeader authenticates every Datalab request.
const apiKeyHeader = "X-Api-Key"

// Datalab converts through the hosted Datalab Marker API. Submission returns
// a job handle; the result arrives through the polling protocol.
type Datalab struct{}

// datalabInitial is the submission acknowledgement carrying the job handle.
type datalabInitial struct {
	Success         bool   `json:"success"`
	Error           string `json:"error"`
	RequestID       string `json:"request_id"`
	RequestCheckURL string `json:"request_check_url"`
}

// datalabFinal is the terminal polling payload.
type datalabFinal struct {
	Status   string            `json:"status"`
	Markdown string            `json:"markdown"`
	Images   map[string]string `json:"images"`
	Metadata map[string]any    `json:"metadata"`
	Error    string            `json:"error"`
}

// ID implements Backend.
func (d *Datalab) ID() types.BackendID { return types.BackendDatalab }

// Convert implements Backend: multipart submission, then polling until the
// remote reports complete, a terminal error, or the budget runs out.
func (d *Datalab) Convert(ctx context.Context, settings types.Settings, in Input, w io.Writer) (types.ConversionResult, error) {
	if settings.DatalabAPIKey == "" {
		fmt.Fprintln(w, "Error: Datalab API key is not configured")
		return types.ConversionResult{}, errors.New("missing Datalab API key")
	}

	fmt.Fprintln(w, "Converting file to Markdown, this can take a few seconds...")

	checkURL, err := d.submit(ctx, settings, in)
	if err != nil {
		return types.ConversionResult{}, err
	}

	poller := &poll.Poller{
		Client:  Client,
		Headers: map[string]string{apiKeyHeader: settings.DatalabAPIKey},
		Notices: w,
	}
	raw, err := poller.Wait(ctx, checkURL)
	if err != nil {
		if errors.Is(err, poll.ErrTimedOut) {
			return types.Failure(err.Error()), nil
		}
		return types.ConversionResult{}, err
	}

	var final datalabFinal
	if err := json.Unmarshal(raw, &final); err != nil {
		return types.ConversionResult{}, fmt.Errorf("decoding Datalab result: %w", err)
	}
	if final.Status != "complete" {
		reason := final.Error
		if reason == "" {
			reason = "conversion failed or timed out"
		}
		return types.Failure(reason), nil
	}

	return types.ConversionResult{
		Success:  true,
		Markdown: final.Markdown,
		Images:   final.Images,
		Metadata: final.Metadata,
	}, nil
}

// submit posts the document and returns the job-status check URL.
func (d *Datalab) submit(ctx context.Context, settings types.Settings, in Input) (string, error) {
	langs := settings.Langs
	if langs == "" {
		langs = "en"
	}
	fields := []FormField{
		{Name: "langs", Value: langs},
		{Name: "force_ocr", Value: strconv.FormatBool(settings.ForceOCR)},
		{Name: "paginate", Value: strconv.FormatBool(settings.Paginate)},
		{Name: "disable_image_extraction", Value: strconv.FormatBool(!settings.ExtractContent.IncludesImages())},
		{Name: "output_format", Value: "markdown"},
		{Name: "strip_existing_ocr", Value: strconv.FormatBool(settings.StripExistingOCR)},
		{Name: "use_llm", Value: strconv.FormatBool(settings.UseLLM)},
		{Name: "skip_cache", Value: strconv.FormatBool(settings.SkipCache)},
	}
	if settings.MaxPages > 0 {
		fields = append(fields, FormField{Name: "max_pages", Value: strconv.Itoa(settings.MaxPages)})
	}

	contentType := contentTypeForExtension(extensionOf(in.Name))
	if contentType == "application/octet-stream" {
		fmt.Fprintf(os.Stderr, "unrecognized file extension for %s, using generic content type\n", in.Name)
	}

	body, boundary := buildMultipart(
		FilePart{FieldName: "file", FileName: in.Name, ContentType: contentType, Content: in.Content},
		fields,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, datalabBaseURL+"/api/v1/marker", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "multipart/form-data; boundary="+boundary)
	req.Header.Set(apiKeyHeader, settings.DatalabAPIKey)

	resp, err := httputil.DoWithRetry(ctx, Client, req, 0)
	if err != nil {
		return "", fmt.Errorf("submitting to Datalab: %w", err)
	}
	defer resp.Body.Close()

	var initial datalabInitial
	if err := json.NewDecoder(resp.Body).Decode(&initial); err != nil {
		return "", fmt.Errorf("invalid response from Datalab API: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		detail := initial.Error
		if detail == "" {
			detail = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
		return "", fmt.Errorf("datalab conversion failed: %s", detail)
	}
	if initial.RequestCheckURL == "" {
		return "", errors.New("missing request check URL in conversion response")
	}
	return initial.RequestCheckURL, nil
}

// TestConnection implements Backend via the Datalab account health endpoint.
func (d *Datalab) TestConnection(ctx context.Context, settings types.Settings, silent bool, w io.Writer) bool {
	if settings.DatalabAPIKey == "" {
		fmt.Fprintln(w, "Err: Datalab API key not set")
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, datalabBaseURL+"/api/v1/user_health", nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error connecting to Datalab Marker API: %v\n", err)
		return false
	}
	req.Header.Set(apiKeyHeader, settings.DatalabAPIKey)

	resp, err := httputil.DoWithRetry(ctx, Client, req, 0)
	if err != nil {
		fmt.Fprintln(w, "Error connecting to Datalab Marker API")
		fmt.Fprintf(os.Stderr, "error connecting to Datalab Marker API: %v\n", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(w, "Error connecting to Datalab Marker API: %d\n", resp.StatusCode)
		return false
	}

	var health struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil || health.Status != "ok" {
		fmt.Fprintln(w, "Error connecting to Datalab Marker API")
		return false
	}
	if !silent {
		fmt.Fprintln(w, "Connection successful!")
	}
	return true
}

// SettingDefinitions implements Backend.
func (d *Datalab) SettingDefinitions() []SettingDefinition {
	return []SettingDefinition{
		{
			ID:              "datalab_api_key",
			Name:            "API Key",
			Description:     "Enter your Datalab API key",
			Type:            AffordanceText,
			Placeholder:     "API Key",
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
			Description: "Force OCR (activate this when auto-detect often fails, make sure to set the correct languages)",
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
		{
			ID:          "max_pages",
			Name:        "Maximum pages",
			Description: "Limit the number of pages to convert (0 for all pages)",
			Type:        AffordanceText,
			Placeholder: "All pages",
		},
		{
			ID:          "strip_existing_ocr",
			Name:        "Strip existing OCR",
			Description: "Remove existing OCR text and re-run OCR (ignored if Force OCR is enabled)",
			Type:        AffordanceToggle,
			Default:     false,
		},
		{
			ID:          "use_llm",
			Name:        "Use LLM enhancement",
			Description: "Use AI to enhance tables, forms, math, and layout detection (doubles cost)",
			Type:        AffordanceToggle,
			Default:     false,
		},
		{
			ID:          "skip_cache",
			Name:        "Skip cache",
			Description: "Force re-conversion and skip using cached results",
			Type:        AffordanceToggle,
			Default:     false,
		},
	}
}
