// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package normalize

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhoffm/markvault/pkg/types"
)

func TestPayload_WrappedArray(t *testing.T) {
	raw := json.RawMessage(`[{"result": {"markdown": "# Title", "images": {"fig1.png": "aGVsbG8="}, "meta": {"filetype": "pdf"}}}]`)

	result := Payload(raw)

	require.True(t, result.Success)
	assert.Equal(t, "# Title", result.Markdown)
	assert.Equal(t, map[string]string{"fig1.png": "aGVsbG8="}, result.Images)
	assert.Equal(t, map[string]any{"filetype": "pdf"}, result.Metadata)
}

func TestPayload_ShapeInvariance(t *testing.T) {
	// Equivalent content in every accepted shape normalizes identically.
	shapes := map[string]string{
		RuleWrappedArray: `[{"result": {"markdown": "body", "images": {"a.png": "QQ=="}, "meta": {"filetype": "pdf"}}}]`,
		RuleResultField:  `{"result": {"markdown": "body", "images": {"a.png": "QQ=="}, "meta": {"filetype": "pdf"}}}`,
		RuleOutputField:  `{"success": true, "output": "body", "images": {"a.png": "QQ=="}, "metadata": {"filetype": "pdf"}}`,
		RuleFlatArray:    `[{"markdown": "body", "images": {"a.png": "QQ=="}, "meta": {"filetype": "pdf"}}]`,
	}
	for rule, raw := range shapes {
		t.Run(rule, func(t *testing.T) {
			result := Payload(json.RawMessage(raw))
			require.True(t, result.Success)
			assert.Equal(t, "body", result.Markdown)
			assert.Equal(t, map[string]string{"a.png": "QQ=="}, result.Images)
			assert.Equal(t, "pdf", result.Metadata["filetype"])
		})
	}
}

func TestPayload_MultiElementArrayIsMalformed(t *testing.T) {
	raw := json.RawMessage(`[{"result": {"markdown": "a"}}, {"result": {"markdown": "b"}}]`)

	result := Payload(raw)

	assert.False(t, result.Success)
	assert.Equal(t, ErrMalformed, result.Error)
}

func TestPayload_ResultField(t *testing.T) {
	raw := json.RawMessage(`{"status": "success", "result": {"markdown": "body", "metadata": {"languages": ["en"]}}}`)

	result := Payload(raw)

	require.True(t, result.Success)
	assert.Equal(t, "body", result.Markdown)
	assert.Equal(t, map[string]any{"languages": []any{"en"}}, result.Metadata)
}

func TestPayload_OutputField(t *testing.T) {
	raw := json.RawMessage(`{"success": true, "output": "# Converted", "images": {"p1.png": "Zm9v"}, "metadata": {"filetype": "pdf"}}`)

	result := Payload(raw)

	require.True(t, result.Success)
	assert.Equal(t, "# Converted", result.Markdown)
	assert.Equal(t, map[string]string{"p1.png": "Zm9v"}, result.Images)
	// metadata is honored even though the shape names it differently.
	assert.Equal(t, "pdf", result.Metadata["filetype"])
}

func TestPayload_FlatSingleElementArray(t *testing.T) {
	raw := json.RawMessage(`[{"markdown": "flat", "images": {}}]`)

	result := Payload(raw)

	require.True(t, result.Success)
	assert.Equal(t, "flat", result.Markdown)
}

func TestPayload_MetaPreferredOverMetadata(t *testing.T) {
	raw := json.RawMessage(`{"result": {"markdown": "m", "meta": {"filetype": "docx"}, "metadata": {"filetype": "pdf"}}}`)

	result := Payload(raw)

	require.True(t, result.Success)
	assert.Equal(t, "docx", result.Metadata["filetype"])
}

func TestPayload_Unrecognized(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty array", `[]`},
		{"scalar", `42`},
		{"success false with output", `{"success": false, "output": "x"}`},
		{"object without known fields", `{"foo": "bar"}`},
		{"invalid json", `{not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Payload(json.RawMessage(tt.raw))
			assert.False(t, result.Success)
			assert.Equal(t, ErrUnrecognized, result.Error)
		})
	}
}

func TestPayload_ImagePayloadsPassThroughUnchanged(t *testing.T) {
	// Backend-supplied image strings are stored verbatim; only the OCR page
	// path strips data-URL prefixes.
	raw := json.RawMessage(`{"result": {"markdown": "m", "images": {"a.png": "data:image/png;base64,AAAA"}}}`)

	result := Payload(raw)

	require.True(t, result.Success)
	assert.Equal(t, "data:image/png;base64,AAAA", result.Images["a.png"])
}

func TestFromOCRPages_JoinsPagesAndCollectsImages(t *testing.T) {
	pages := []OCRPage{
		{Markdown: "page one", Images: []OCRImage{{ID: "img-0.jpeg", ImageBase64: "data:image/jpeg;base64,AAAA"}}},
		{Markdown: "page two", Images: []OCRImage{{ID: "img-1.jpeg", ImageBase64: "BBBB"}}},
	}

	result := FromOCRPages(pages, types.ExtractAll)

	require.True(t, result.Success)
	assert.Equal(t, "page one\n\n---\n\npage two", result.Markdown)
	assert.Equal(t, map[string]string{"img-0.jpeg": "AAAA", "img-1.jpeg": "BBBB"}, result.Images)
	assert.Equal(t, 2, result.Metadata["page_count"])
	assert.Equal(t, "mistralai-ocr", result.Metadata["processor"])
}

func TestFromOCRPages_TextOnlySkipsImages(t *testing.T) {
	pages := []OCRPage{
		{Markdown: "body", Images: []OCRImage{{ID: "img-0.jpeg", ImageBase64: "AAAA"}}},
	}

	result := FromOCRPages(pages, types.ExtractText)

	assert.Equal(t, "body", result.Markdown)
	assert.Empty(t, result.Images)
}

func TestFromOCRPages_ImagesOnlySkipsText(t *testing.T) {
	pages := []OCRPage{
		{Markdown: "body", Images: []OCRImage{{ID: "img-0.jpeg", ImageBase64: "AAAA"}}},
	}

	result := FromOCRPages(pages, types.ExtractImages)

	assert.Empty(t, result.Markdown)
	assert.Equal(t, map[string]string{"img-0.jpeg": "AAAA"}, result.Images)
}
