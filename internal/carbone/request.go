// Package carbone sends template and data pairs to the Carbone render API and
// stores the returned documents.
package carbone

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// DefaultConvertTo is the output format used when none is given.
const DefaultConvertTo = "pdf"

// RenderRequest is the JSON body accepted by the render endpoint.
type RenderRequest struct {
	Template  string         `json:"template"`
	Data      map[string]any `json:"data"`
	ConvertTo string         `json:"convertTo"`
}

// LoadTemplate reads the whole template file. Its content is opaque.
func LoadTemplate(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", &FileAccessError{Op: "read template", Path: path, Err: err}
	}
	return string(raw), nil
}

// LoadData reads a JSON object used as the data record. Numbers are kept as
// written so they are forwarded without float rounding.
func LoadData(path string) (map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &FileAccessError{Op: "read data", Path: path, Err: err}
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var data map[string]any
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("decode data %s: %w", path, err)
	}
	return data, nil
}

// BuildPayload assembles a request. data is forwarded unchanged; a nil record
// is sent as an empty object.
func BuildPayload(template string, data map[string]any, convertTo string) RenderRequest {
	if data == nil {
		data = map[string]any{}
	}
	convertTo = strings.TrimSpace(convertTo)
	if convertTo == "" {
		convertTo = DefaultConvertTo
	}
	return RenderRequest{
		Template:  template,
		Data:      data,
		ConvertTo: convertTo,
	}
}

// Encode serializes the request as JSON without HTML escaping so the template
// travels byte for byte.
func (r RenderRequest) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

var contentTypes = map[string]string{
	"pdf":  "application/pdf",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"odt":  "application/vnd.oasis.opendocument.text",
	"ods":  "application/vnd.oasis.opendocument.spreadsheet",
	"html": "text/html; charset=utf-8",
	"txt":  "text/plain; charset=utf-8",
	"csv":  "text/csv; charset=utf-8",
}

// ContentType maps an output format to its MIME type.
func ContentType(convertTo string) string {
	if ct, ok := contentTypes[strings.ToLower(convertTo)]; ok {
		return ct
	}
	return "application/octet-stream"
}
