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

	"github.com/mhoffm/markvault/internal/normalize"
	"github.com/mhoffm/markvault/pkg/types"
)

// mistralBaseURL is the MistralAI API host. A var so tests can point it at an
// httptest server.
var mistralBaseURL = "https://api.mistral.ai"

// ocrModel is the OCR model requested for every conversion.
const ocrModel = "mistral-ocr-latest"

// MistralAI converts through the MistralAI OCR service. The protocol has
// three steps: upload the file, obtain a signed download URL, then run OCR
// against that URL. The response is a page array the normalizer flattens.
type MistralAI struct{}

// ocrRequest is the OCR-process call body.
type ocrRequest struct {
	Model              string      `json:"model"`
	Document           ocrDocument `json:"document"`
	IncludeImageBase64 bool        `json:"includeImageBase64"`
	ImageLimit         int         `json:"imageLimit,omitempty"`
	ImageMinSize       int         `json:"imageMinSize,omitempty"`
}

type ocrDocument struct {
	Type        string `json:"type"`
	DocumentURL string `json:"documentUrl"`
}

// ocrResponse is the page-array result.
type ocrResponse struct {
	Pages []normalize.OCRPage `json:"pages"`
}

// ID implements Backend.
func (m *MistralAI) ID() types.BackendID { return types.BackendMistralAI }

// Convert implements Backend.
func (m *MistralAI) Convert(ctx context.Context, settings types.Settings, in Input, w io.Writer) (types.ConversionResult, error) {
	if settings.MistralAIAPIKey == "" {
		fmt.Fprintln(w, "Error: MistralAI API key is not configured")
		return types.ConversionResult{}, errors.New("missing MistralAI API key")
	}

	fmt.Fprintln(w, "Converting file with MistralAI OCR...")

	fmt.Fprintln(w, "Uploading file to MistralAI...")
	fileID, err := m.upload(ctx, settings, in)
	if err != nil {
		return types.ConversionResult{}, err
	}

	signedURL, err := m.signedURL(ctx, settings, fileID)
	if err != nil {
		return types.ConversionResult{}, err
	}

	pages, err := m.process(ctx, settings, signedURL)
	if err != nil {
		return types.ConversionResult{}, err
	}
	if len(pages) == 0 {
		return types.Failure("failed to process file with OCR"), nil
	}

	return normalize.FromOCRPages(pages, settings.ExtractContent), nil
}

// upload posts the file bytes and returns the remote file identifier.
func (m *MistralAI) upload(ctx context.Context, settings types.Settings, in Input) (string, error) {
	body, boundary := buildMultipart(
		FilePart{
			FieldName:   "file",
			FileName:    in.Name,
			ContentType: contentTypeForExtension(extensionOf(in.Name)),
			Content:     in.Content,
		},
		[]FormField{{Name: "purpose", Value: "ocr"}},
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, mistralBaseURL+"/v1/files", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "multipart/form-data; boundary="+boundary)
	req.Header.Set("Authorization", "Bearer "+settings.MistralAIAPIKey)

	var uploaded struct {
		ID string `json:"id"`
	}
	if err := m.do(req, &uploaded); err != nil {
		return "", fmt.Errorf("uploading file to MistralAI: %w", err)
	}
	if uploaded.ID == "" {
		return "", errors.New("failed to upload file to MistralAI")
	}
	return uploaded.ID, nil
}

// signedURL fetches a short-lived download URL for an uploaded file.
func (m *MistralAI) signedURL(ctx context.Context, settings types.Settings, fileID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mistralBaseURL+"/v1/files/"+fileID+"/url", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+settings.MistralAIAPIKey)

	var signed struct {
		URL string `json:"url"`
	}
	if err := m.do(req, &signed); err != nil {
		return "", fmt.Errorf("fetching signed URL: %w", err)
	}
	if signed.URL == "" {
		return "", errors.New("missing signed URL in MistralAI response")
	}
	return signed.URL, nil
}

// process runs OCR against the signed document URL and returns the pages.
func (m *MistralAI) process(ctx context.Context, settings types.Settings, documentURL string) ([]normalize.OCRPage, error) {
	request := ocrRequest{
		Model:              ocrModel,
		Document:           ocrDocument{Type: "document_url", DocumentURL: documentURL},
		IncludeImageBase64: settings.ExtractContent.IncludesImages(),
	}
	if settings.ImageLimit > 0 {
		request.ImageLimit = settings.ImageLimit
	}
	if settings.ImageMinSize > 0 {
		request.ImageMinSize = settings.ImageMinSize
	}

	payload, err := json.Marshal(request)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, mistralBaseURL+"/v1/ocr", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+settings.MistralAIAPIKey)

	var response ocrResponse
	if err := m.do(req, &response); err != nil {
		return nil, fmt.Errorf("running MistralAI OCR: %w", err)
	}
	return response.Pages, nil
}

// do executes a request and decodes the JSON response into out, turning
// non-2xx statuses into errors.
func (m *MistralAI) do(req *http.Request, out any) error {
	resp, err := Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncateBody(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		fmt.Fprintf(os.Stderr, "raw payload before failing parse: %s\n", truncateBody(body))
		return fmt.Errorf("decoding MistralAI response: %w", err)
	}
	return nil
}

// TestConnection implements Backend by listing the account's files, which
// validates both reachability and the API key.
func (m *MistralAI) TestConnection(ctx context.Context, settings types.Settings, silent bool, w io.Writer) bool {
	if settings.MistralAIAPIKey == "" {
		if !silent {
			fmt.Fprintln(w, "Error: MistralAI API key is not configured")
		}
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mistralBaseURL+"/v1/files", nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error connecting to MistralAI API: %v\n", err)
		return false
	}
	req.Header.Set("Authorization", "Bearer "+settings.MistralAIAPIKey)

	resp, err := Client.Do(req)
	if err != nil {
		if !silent {
			fmt.Fprintf(w, "Error connecting to MistralAI API: %v\n", err)
		}
		fmt.Fprintf(os.Stderr, "error connecting to MistralAI API: %v\n", err)
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		if !silent {
			fmt.Fprintf(w, "Error connecting to MistralAI API: %d\n", resp.StatusCode)
		}
		return false
	}
	if !silent {
		fmt.Fprintln(w, "MistralAI connection successful!")
	}
	return true
}

// SettingDefinitions implements Backend.
func (m *MistralAI) SettingDefinitions() []SettingDefinition {
	return []SettingDefinition{
		{
			ID:              "mistralai_api_key",
			Name:            "MistralAI API Key",
			Description:     "Enter your MistralAI API key",
			Type:            AffordanceText,
			Placeholder:     "API Key",
			TestsConnection: true,
		},
		{
			ID:          "image_limit",
			Name:        "Image limit",
			Description: "Maximum number of images to extract (0 for no limit)",
			Type:        AffordanceText,
			Placeholder: "0",
			Default:     0,
		},
		{
			ID:          "image_min_size",
			Name:        "Image minimum size",
			Description: "Minimum height and width of images to extract (0 for no minimum)",
			Type:        AffordanceText,
			Placeholder: "0",
			Default:     0,
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
