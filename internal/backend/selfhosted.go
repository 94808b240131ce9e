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

// Selfhosted converts through a self-hosted Marker API container. The API is
// synchronous: one multipart POST returns the final payload.
type Selfhosted struct{}

// conversionEnvelope is the Marker API response: a status string and, on
// success, the nested result object the normalizer unwraps.
type conversionEnvelope struct {
	Status string          `json:"status"`
	Result json.RawMessage `json:"result"`
}

// validationError is the FastAPI-style request rejection the Marker API
// returns on a malformed submission.
type validationError struct {
	Detail []struct {
		Loc  []any  `json:"loc"`
		Msg  string `json:"msg"`
		Type string `json:"type"`
	} `json:"detail"`
}

// ID implements Backend.
func (s *Selfhosted) ID() types.BackendID { return types.BackendSelfhosted }

// Convert implements Backend. Older Marker API builds expect the file under
// "pdf_file", newer ones under "document_file"; the first attempt uses
// pdf_file and a missing-field rejection naming document_file triggers one
// retry with the other name.
func (s *Selfhosted) Convert(ctx context.Context, settings types.Settings, in Input, w io.Writer) (types.ConversionResult, error) {
	fmt.Fprintln(w, "Converting PDF to Markdown, this can take a few seconds...")

	raw, err := s.submit(ctx, settings, in, "pdf_file")
	if err != nil {
		msg := err.Error()
		if strings.Contains(msg, "missing") && strings.Contains(msg, "document_file") {
			raw, err = s.submit(ctx, settings, in, "document_file")
		}
		if err != nil {
			return types.ConversionResult{}, err
		}
	}

	var envelope conversionEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		fmt.Fprintf(os.Stderr, "raw payload before failing parse: %s\n", raw)
		return types.Failure(normalize.ErrUnrecognized), nil
	}
	if !strings.EqualFold(envelope.Status, "success") || len(envelope.Result) == 0 {
		status := envelope.Status
		if status == "" {
			status = "Unknown"
		}
		return types.Failure(fmt.Sprintf("conversion failed with status: %s", status)), nil
	}

	return normalize.Payload(raw), nil
}

// submit posts the document as multipart form data with the given file field
// name and returns the raw response body.
func (s *Selfhosted) submit(ctx context.Context, settings types.Settings, in Input, fieldName string) (json.RawMessage, error) {
	extractImages := "false"
	if settings.ExtractContent.IncludesImages() {
		extractImages = "true"
	}

	body, boundary := buildMultipart(
		FilePart{
			FieldName:   fieldName,
			FileName:    "document.pdf",
			ContentType: "application/pdf",
			Content:     in.Content,
		},
		[]FormField{{Name: "extract_images", Value: extractImages}},
	)

	url := fmt.Sprintf("http://%s/convert", settings.MarkerEndpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "multipart/form-data; boundary="+boundary)

	resp, err := Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submitting to Marker API: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading Marker API response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var ve validationError
		if jsonErr := json.Unmarshal(payload, &ve); jsonErr == nil && len(ve.Detail) > 0 {
			msgs := make([]string, len(ve.Detail))
			for i, d := range ve.Detail {
				loc := make([]string, len(d.Loc))
				for j, l := range d.Loc {
					loc[j] = fmt.Sprintf("%v", l)
				}
				msgs[i] = fmt.Sprintf("%s at %s - %s", d.Type, strings.Join(loc, "."), d.Msg)
			}
			return nil, fmt.Errorf("validation error: %s", strings.Join(msgs, "; "))
		}
		return nil, fmt.Errorf("server returned error: HTTP %d", resp.StatusCode)
	}

	if len(payload) == 0 || string(payload) == "{}" {
		return nil, fmt.Errorf("no data returned from Marker API")
	}
	return payload, nil
}

// TestConnection implements Backend via the Marker API health endpoint.
func (s *Selfhosted) TestConnection(ctx context.Context, settings types.Settings, silent bool, w io.Writer) bool {
	if settings.MarkerEndpoint == "" {
		fmt.Fprintln(w, "Error: Marker API endpoint not configured")
		return false
	}

	url := fmt.Sprintf("http://%s/health", settings.MarkerEndpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Marker API connection error: %v\n", err)
		return false
	}
	resp, err := Client.Do(req)
	if err != nil {
		fmt.Fprintf(w, "Marker API connection failed: %v\n", err)
		fmt.Fprintf(os.Stderr, "Marker API connection error: %v\n", err)
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(w, "Marker API connection failed: HTTP %d\n", resp.StatusCode)
		fmt.Fprintf(os.Stderr, "Marker API connection failed: HTTP %d\n", resp.StatusCode)
		return false
	}
	if !silent {
		fmt.Fprintln(w, "Connection successful!")
	}
	return true
}

// SettingDefinitions implements Backend.
func (s *Selfhosted) SettingDefinitions() []SettingDefinition {
	return []SettingDefinition{
		{
			ID:              "marker_endpoint",
			Name:            "Marker API endpoint",
			Description:     "The endpoint to use for the Marker API.",
			Type:            AffordanceText,
			Placeholder:     "localhost:8000",
			Default:         "localhost:8000",
			TestsConnection: true,
		},
	}
}
