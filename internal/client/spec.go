package client

import (
	"fmt"
	"mime"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const (
	HeaderContentType = "Content-Type"
	HeaderAPIKey      = "x-api-key"

	ContentTypeJSON = "application/json"
)

// RequestSpec is the shared request configuration: where to send and
// which headers every request carries. Build it once and don't mutate it.
type RequestSpec struct {
	BaseURI string
	Headers map[string]string
}

// NewRequestSpec builds the standard JSON + API key request spec.
func NewRequestSpec(baseURI, apiKey string) RequestSpec {
	headers := map[string]string{
		HeaderContentType: ContentTypeJSON,
	}
	if apiKey != "" {
		headers[HeaderAPIKey] = apiKey
	}
	return RequestSpec{
		BaseURI: strings.TrimSuffix(strings.TrimSpace(baseURI), "/"),
		Headers: headers,
	}
}

// URL joins the base URI and a path that may or may not start with "/".
func (s RequestSpec) URL(path string) string {
	if path == "" {
		return s.BaseURI
	}
	return s.BaseURI + "/" + strings.TrimPrefix(path, "/")
}

// ResponseSpec describes what a conforming response looks like.
// Zero fields are not checked.
type ResponseSpec struct {
	ContentType string
	Schema      string // JSON schema document
}

// JSONResponse expects a JSON content type.
func JSONResponse() ResponseSpec {
	return ResponseSpec{ContentType: ContentTypeJSON}
}

// WithSchema returns a copy of the spec that also validates the body.
func (s ResponseSpec) WithSchema(schema string) ResponseSpec {
	s.Schema = schema
	return s
}

// Conform checks resp against the spec.
func (s ResponseSpec) Conform(resp *Response) error {
	if s.ContentType != "" {
		if err := resp.ExpectContentType(s.ContentType); err != nil {
			return err
		}
	}
	if s.Schema != "" {
		if err := validateSchema(s.Schema, resp.Body); err != nil {
			return &AssertionError{Check: "schema", Expected: "body matching schema", Actual: err.Error(), Body: resp.String()}
		}
	}
	return nil
}

func validateSchema(schema string, body []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewBytesLoader(body),
	)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		errs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			errs = append(errs, e.String())
		}
		return fmt.Errorf("validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// mediaType strips parameters such as charset.
func mediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.TrimSpace(strings.Split(contentType, ";")[0])
	}
	return mt
}

// User payload schemas returned by the users API.
const (
	UserIDSchema = `{
  "type": "object",
  "required": ["id"],
  "properties": {
    "id": {"type": ["string", "integer"]}
  }
}`

	UserSchema = `{
  "type": "object",
  "required": ["email"],
  "properties": {
    "id": {"type": ["string", "integer"]},
    "email": {"type": "string"},
    "username": {"type": "string"}
  }
}`
)
