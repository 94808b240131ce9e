// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhoffm/markvault/pkg/types"
)

func mistralSettings() types.Settings {
	s := types.DefaultSettings()
	s.Backend = types.BackendMistralAI
	s.MistralAIAPIKey = "mi-key"
	return s
}

func TestMistralConvert_UploadSignProcess(t *testing.T) {
	var ts *httptest.Server
	ts = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer mi-key", r.Header.Get("Authorization"))

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/files":
			require.NoError(t, r.ParseMultipartForm(1 << 20))
			assert.Equal(t, "ocr", r.FormValue("purpose"))
			_, header, err := r.FormFile("file")
			require.NoError(t, err)
			assert.Equal(t, "scan.pdf", header.Filename)
			fmt.Fprint(w, `{"id": "file-123"}`)

		case r.Method == http.MethodGet && r.URL.Path == "/v1/files/file-123/url":
			fmt.Fprintf(w, `{"url": "%s/signed/file-123"}`, ts.URL)

		case r.Method == http.MethodPost && r.URL.Path == "/v1/ocr":
			var req map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "mistral-ocr-latest", req["model"])
			assert.Equal(t, true, req["includeImageBase64"])
			doc := req["document"].(map[string]any)
			assert.Equal(t, "document_url", doc["type"])
			assert.Equal(t, ts.URL+"/signed/file-123", doc["documentUrl"])

			fmt.Fprint(w, `{"pages": [
				{"markdown": "page one", "images": [{"id": "img-0.jpeg", "imageBase64": "data:image/jpeg;base64,AAAA"}]},
				{"markdown": "page two", "images": []}
			]}`)

		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()
	Client = ts.Client()
	mistralBaseURL = ts.URL

	var notices bytes.Buffer
	m := &MistralAI{}
	result, err := m.Convert(context.Background(), mistralSettings(), Input{Name: "scan.pdf", Content: []byte("%PDF")}, &notices)
	require.NoError(t, err)

	require.True(t, result.Success)
	assert.Equal(t, "page one\n\n---\n\npage two", result.Markdown)
	assert.Equal(t, map[string]string{"img-0.jpeg": "AAAA"}, result.Images)
	assert.Equal(t, 2, result.Metadata["page_count"])
	assert.Contains(t, notices.String(), "Uploading file to MistralAI")
}

func TestMistralConvert_ImageLimitsForwarded(t *testing.T) {
	var ts *httptest.Server
	ts = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/v1/files" && r.Method == http.MethodPost:
			fmt.Fprint(w, `{"id": "f"}`)
		case r.URL.Path == "/v1/files/f/url":
			fmt.Fprintf(w, `{"url": "%s/signed"}`, ts.URL)
		case r.URL.Path == "/v1/ocr":
			var req map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, float64(5), req["imageLimit"])
			assert.Equal(t, float64(100), req["imageMinSize"])
			fmt.Fprint(w, `{"pages": [{"markdown": "m", "images": []}]}`)
		}
	}))
	defer ts.Close()
	Client = ts.Client()
	mistralBaseURL = ts.URL

	settings := mistralSettings()
	settings.ImageLimit = 5
	settings.ImageMinSize = 100

	m := &MistralAI{}
	result, err := m.Convert(context.Background(), settings, Input{Name: "a.pdf"}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestMistralConvert_MissingKey(t *testing.T) {
	settings := mistralSettings()
	settings.MistralAIAPIKey = ""

	var notices bytes.Buffer
	m := &MistralAI{}
	_, err := m.Convert(context.Background(), settings, Input{Name: "a.pdf"}, &notices)
	require.Error(t, err)
	assert.Contains(t, notices.String(), "API key is not configured")
}

func TestMistralConvert_EmptyPagesIsFailure(t *testing.T) {
	var ts *httptest.Server
	ts = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/v1/files" && r.Method == http.MethodPost:
			fmt.Fprint(w, `{"id": "f"}`)
		case r.URL.Path == "/v1/files/f/url":
			fmt.Fprintf(w, `{"url": "%s/signed"}`, ts.URL)
		case r.URL.Path == "/v1/ocr":
			fmt.Fprint(w, `{"pages": []}`)
		}
	}))
	defer ts.Close()
	Client = ts.Client()
	mistralBaseURL = ts.URL

	m := &MistralAI{}
	result, err := m.Convert(context.Background(), mistralSettings(), Input{Name: "a.pdf"}, &bytes.Buffer{})
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, "failed to process file with OCR", result.Error)
}

func TestMistralConvert_UploadRejected(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"message": "invalid api key"}`)
	}))
	defer ts.Close()
	Client = ts.Client()
	mistralBaseURL = ts.URL

	m := &MistralAI{}
	_, err := m.Convert(context.Background(), mistralSettings(), Input{Name: "a.pdf"}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 401")
}

func TestMistralTestConnection(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/files", r.URL.Path)
		require.Equal(t, "Bearer mi-key", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"data": []}`)
	}))
	defer ts.Close()
	Client = ts.Client()
	mistralBaseURL = ts.URL

	var out bytes.Buffer
	m := &MistralAI{}
	assert.True(t, m.TestConnection(context.Background(), mistralSettings(), false, &out))
	assert.Contains(t, out.String(), "MistralAI connection successful!")
}

func TestMistralTestConnection_MissingKeySilent(t *testing.T) {
	settings := mistralSettings()
	settings.MistralAIAPIKey = ""

	var out bytes.Buffer
	m := &MistralAI{}
	assert.False(t, m.TestConnection(context.Background(), settings, true, &out))
	assert.Empty(t, out.String())
}
