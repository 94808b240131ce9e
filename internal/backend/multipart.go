// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package backend

import (
	"bytes"
	"fmt"
	"math/rand"
	"path"
	"strings"
)

// FormField is one plain multipart form field.
type FormField struct {
	Name  string
	Value string
}

// FilePart is the binary file part of a multipart submission.
type FilePart struct {
	FieldName   string
	FileName    string
	ContentType string
	Content     []byte
}

// boundaryAlphabet mirrors the base-36 suffix browsers generate.
const boundaryAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// randomBoundary generates a locally unique multipart boundary token.
func randomBoundary() string {
	suffix := make([]byte, 11)
	for i := range suffix {
		suffix[i] = boundaryAlphabet[rand.Intn(len(boundaryAlphabet))]
	}
	return "----WebKitFormBoundary" + string(suffix)
}

// buildMultipart frames a file part and form fields into a multipart/form-data
// body by concatenating header fragments and raw bytes. The body is built by
// hand so binary content round-trips exactly regardless of payload size; no
// host multipart encoder is involved. The file part comes first, then the
// fields, then the closing boundary.
func buildMultipart(file FilePart, fields []FormField) (body []byte, boundary string) {
	boundary = randomBoundary()
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "--%s\r\n", boundary)
	fmt.Fprintf(&buf, "Content-Disposition: form-data; name=%q; filename=%q\r\n", file.FieldName, file.FileName)
	fmt.Fprintf(&buf, "Content-Type: %s\r\n\r\n", file.ContentType)
	buf.Write(file.Content)
	buf.WriteString("\r\n")

	for _, field := range fields {
		fmt.Fprintf(&buf, "--%s\r\n", boundary)
		fmt.Fprintf(&buf, "Content-Disposition: form-data; name=%q\r\n\r\n%s\r\n", field.Name, field.Value)
	}

	fmt.Fprintf(&buf, "--%s--\r\n", boundary)
	return buf.Bytes(), boundary
}

// extensionOf returns the lowercase extension of a file name without the
// leading period.
func extensionOf(name string) string {
	return strings.TrimPrefix(strings.ToLower(path.Ext(name)), ".")
}

// contentTypeForExtension maps a source file extension to the MIME type the
// hosted API expects. Unrecognized extensions fall back to a generic type.
func contentTypeForExtension(ext string) string {
	switch ext {
	case "pdf":
		return "application/pdf"
	case "docx", "doc":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case "pptx", "ppt":
		return "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
