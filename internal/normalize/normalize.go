// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package normalize maps the structurally different backend response shapes
// onto the one canonical ConversionResult. Each backend vendor shapes its
// payload independently; the rules here are an ordered compatibility matcher,
// tried first match wins, so the pipeline never branches on backend identity.
package normalize

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/mhoffm/markvault/pkg/types"
)

// Rule names, surfaced in diagnostics so a failing payload can be traced to
// the rule that rejected it.
const (
	RuleWrappedArray = "wrapped-array"
	RuleResultField  = "result-field"
	RuleOutputField  = "output-field"
	RuleFlatArray    = "flat-array"
)

// ErrMalformed is the user-facing message for a multi-element array payload.
const ErrMalformed = "malformed data returned"

// ErrUnrecognized is the user-facing message when no rule matches.
const ErrUnrecognized = "parsing data failed"

// Payload normalizes a backend's raw decoded response body. The shapes
// accepted, in order:
//
//  1. array of length 1 whose element has a "result" field — unwrap to it
//  2. array of length > 1 — malformed
//  3. object with a "result" field — unwrap to it
//  4. object with success=true and a string "output" — output is the markdown
//  5. array of length 1 without a "result" field — the element is the payload
//
// Anything else fails with ErrUnrecognized and the raw payload is logged for
// diagnosis (never shown to the user).
func Payload(raw json.RawMessage) types.ConversionResult {
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		logRawPayload(raw)
		return types.Failure(ErrUnrecognized)
	}

	switch data := generic.(type) {
	case []any:
		if len(data) > 1 {
			return types.Failure(ErrMalformed)
		}
		if len(data) == 0 {
			logRawPayload(raw)
			return types.Failure(ErrUnrecognized)
		}
		element, ok := data[0].(map[string]any)
		if !ok {
			logRawPayload(raw)
			return types.Failure(ErrUnrecognized)
		}
		if result, ok := element["result"].(map[string]any); ok {
			return fromObject(result)
		}
		// Flat single-element array: the element itself is the payload.
		return fromObject(element)

	case map[string]any:
		if result, ok := data["result"].(map[string]any); ok {
			return fromObject(result)
		}
		if success, _ := data["success"].(bool); success {
			if output, ok := data["output"].(string); ok {
				obj := make(map[string]any, len(data))
				for k, v := range data {
					obj[k] = v
				}
				obj["markdown"] = output
				if meta, ok := obj["metadata"]; ok {
					if _, hasMeta := obj["meta"]; !hasMeta {
						obj["meta"] = meta
					}
				}
				return fromObject(obj)
			}
		}
	}

	logRawPayload(raw)
	return types.Failure(ErrUnrecognized)
}

// fromObject builds a ConversionResult from an unwrapped payload object,
// applying the uniform field aliasing: meta over metadata, markdown over
// output.
func fromObject(obj map[string]any) types.ConversionResult {
	result := types.ConversionResult{Success: true}

	if md, ok := obj["markdown"].(string); ok {
		result.Markdown = md
	} else if out, ok := obj["output"].(string); ok {
		result.Markdown = out
	}

	if images, ok := obj["images"].(map[string]any); ok {
		result.Images = make(map[string]string, len(images))
		for name, v := range images {
			if s, ok := v.(string); ok {
				result.Images[name] = s
			}
		}
	}

	if meta, ok := obj["meta"].(map[string]any); ok {
		result.Metadata = meta
	} else if meta, ok := obj["metadata"].(map[string]any); ok {
		result.Metadata = meta
	}

	return result
}

// OCRPage is one page of an OCR-service response.
type OCRPage struct {
	Markdown string     `json:"markdown"`
	Images   []OCRImage `json:"images"`
}

// OCRImage is one embedded page image with its base64 payload.
type OCRImage struct {
	ID          string `json:"id"`
	ImageBase64 string `json:"imageBase64"`
}

// FromOCRPages normalizes the OCR-service page-array format: page bodies are
// concatenated with a page-break marker between them and every page's images
// are collected into one flat mapping keyed by the backend-supplied image id,
// with any data-URL prefix stripped before storage. The mode controls whether
// text and image content are included at all.
func FromOCRPages(pages []OCRPage, mode types.ExtractMode) types.ConversionResult {
	var md strings.Builder
	images := make(map[string]string)

	for i, page := range pages {
		if i > 0 {
			md.WriteString("\n\n---\n\n")
		}
		if mode != types.ExtractImages {
			md.WriteString(page.Markdown)
		}
		if mode != types.ExtractText {
			for _, img := range page.Images {
				images[img.ID] = stripDataURL(img.ImageBase64)
			}
		}
	}

	return types.ConversionResult{
		Success:  true,
		Markdown: md.String(),
		Images:   images,
		Metadata: map[string]any{
			"page_count": len(pages),
			"processor":  "mistralai-ocr",
		},
	}
}

// stripDataURL removes a data-URL prefix (e.g. "data:image/jpeg;base64,")
// from a base64 payload, returning bare base64.
func stripDataURL(s string) string {
	if strings.HasPrefix(s, "data:") {
		if _, after, found := strings.Cut(s, ","); found {
			return after
		}
	}
	return s
}

func logRawPayload(raw json.RawMessage) {
	fmt.Fprintf(os.Stderr, "raw payload before failing parse: %s\n", truncate(string(raw), 500))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
