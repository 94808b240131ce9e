// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package backend

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhoffm/markvault/pkg/types"
)

// selfhostedSettings points the adapter at a test server.
func selfhostedSettings(ts *httptest.Server) types.Settings {
	s := types.DefaultSettings()
	s.MarkerEndpoint = strings.TrimPrefix(ts.URL, "http://")
	return s
}

func TestSelfhostedConvert_Success(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/convert", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1 << 20))

		_, header, err := r.FormFile("pdf_file")
		require.NoError(t, err)
		assert.Equal(t, "document.pdf", header.Filename)
		assert.Equal(t, "true", r.FormValue("extract_images"))

		fmt.Fprint(w, `{"status": "success", "result": {"markdown": "# Out", "images": {"fig.png": "aGk="}, "meta": {"filetype": "pdf"}}}`)
	}))
	defer ts.Close()
	Client = ts.Client()

	var notices bytes.Buffer
	b := &Selfhosted{}
	result, err := b.Convert(context.Background(), selfhostedSettings(ts), Input{Name: "paper.pdf", Content: []byte("%PDF")}, &notices)
	require.NoError(t, err)

	require.True(t, result.Success)
	assert.Equal(t, "# Out", result.Markdown)
	assert.Equal(t, map[string]string{"fig.png": "aGk="}, result.Images)
	assert.Contains(t, notices.String(), "Converting PDF to Markdown")
}

func TestSelfhostedConvert_TextModeDisablesImageExtraction(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1 << 20))
		assert.Equal(t, "false", r.FormValue("extract_images"))
		fmt.Fprint(w, `{"status": "success", "result": {"markdown": "text"}}`)
	}))
	defer ts.Close()
	Client = ts.Client()

	settings := selfhostedSettings(ts)
	settings.ExtractContent = types.ExtractText

	b := &Selfhosted{}
	result, err := b.Convert(context.Background(), settings, Input{Name: "a.pdf"}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestSelfhostedConvert_RetriesWithDocumentFileField(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		require.NoError(t, r.ParseMultipartForm(1 << 20))

		if n == 1 {
			// Newer API builds reject the legacy field name.
			_, _, err := r.FormFile("pdf_file")
			require.NoError(t, err)
			w.WriteHeader(http.StatusUnprocessableEntity)
			fmt.Fprint(w, `{"detail": [{"loc": ["body", "document_file"], "msg": "field required", "type": "missing"}]}`)
			return
		}

		_, _, err := r.FormFile("document_file")
		require.NoError(t, err)
		fmt.Fprint(w, `{"status": "success", "result": {"markdown": "retried"}}`)
	}))
	defer ts.Close()
	Client = ts.Client()

	b := &Selfhosted{}
	result, err := b.Convert(context.Background(), selfhostedSettings(ts), Input{Name: "a.pdf"}, &bytes.Buffer{})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "retried", result.Markdown)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestSelfhostedConvert_ValidationErrorFormatted(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"detail": [{"loc": ["body", "extract_images"], "msg": "value is not a valid boolean", "type": "type_error.bool"}]}`)
	}))
	defer ts.Close()
	Client = ts.Client()

	b := &Selfhosted{}
	_, err := b.Convert(context.Background(), selfhostedSettings(ts), Input{Name: "a.pdf"}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation error: type_error.bool at body.extract_images - value is not a valid boolean")
}

func TestSelfhostedConvert_FailureStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"status": "error", "result": null}`)
	}))
	defer ts.Close()
	Client = ts.Client()

	b := &Selfhosted{}
	result, err := b.Convert(context.Background(), selfhostedSettings(ts), Input{Name: "a.pdf"}, &bytes.Buffer{})
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, "conversion failed with status: error", result.Error)
}

func TestSelfhostedConvert_EmptyBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer ts.Close()
	Client = ts.Client()

	b := &Selfhosted{}
	_, err := b.Convert(context.Background(), selfhostedSettings(ts), Input{Name: "a.pdf"}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no data returned")
}

func TestSelfhostedTestConnection(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			fmt.Fprint(w, `{"status": "ok"}`)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()
	Client = ts.Client()

	var out bytes.Buffer
	b := &Selfhosted{}
	ok := b.TestConnection(context.Background(), selfhostedSettings(ts), false, &out)
	assert.True(t, ok)
	assert.Contains(t, out.String(), "Connection successful!")

	// Silent probes succeed without user-facing output.
	out.Reset()
	ok = b.TestConnection(context.Background(), selfhostedSettings(ts), true, &out)
	assert.True(t, ok)
	assert.Empty(t, out.String())
}

func TestSelfhostedTestConnection_Unhealthy(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()
	Client = ts.Client()

	var out bytes.Buffer
	b := &Selfhosted{}
	assert.False(t, b.TestConnection(context.Background(), selfhostedSettings(ts), false, &out))
	assert.Contains(t, out.String(), "HTTP 503")
}
