package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Response represents an API response.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// JSON decodes the response body as JSON.
func (r *Response) JSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// String returns the response body as string.
func (r *Response) String() string {
	return string(r.Body)
}

// Field returns the value at a gjson path as a string. Numbers render in
// their JSON form, so an id of 123 and "123" both come back as "123".
// Missing fields return "".
func (r *Response) Field(path string) string {
	res := gjson.GetBytes(r.Body, path)
	if !res.Exists() || res.Type == gjson.Null {
		return ""
	}
	return res.String()
}

// AssertionError is a failed expectation on a response.
type AssertionError struct {
	Check    string
	Expected any
	Actual   any
	Body     string
}

func (e *AssertionError) Error() string {
	msg := fmt.Sprintf("%s: expected %v, got %v", e.Check, e.Expected, e.Actual)
	if e.Body != "" {
		msg += ". Body: " + truncate(e.Body, 512)
	}
	return msg
}

// ExpectStatus checks the status code.
func (r *Response) ExpectStatus(expected int) error {
	if r.StatusCode != expected {
		return &AssertionError{Check: "status", Expected: expected, Actual: r.StatusCode, Body: r.String()}
	}
	return nil
}

// ExpectContentType checks the media type, ignoring parameters.
func (r *Response) ExpectContentType(expected string) error {
	actual := r.Headers.Get(HeaderContentType)
	if !strings.EqualFold(mediaType(actual), expected) {
		return &AssertionError{Check: "content type", Expected: expected, Actual: fmt.Sprintf("%q", actual)}
	}
	return nil
}

// ExpectField checks that a JSON field equals expected exactly.
func (r *Response) ExpectField(path, expected string) error {
	actual := r.Field(path)
	if actual != expected {
		return &AssertionError{Check: "field " + path, Expected: fmt.Sprintf("%q", expected), Actual: fmt.Sprintf("%q", actual), Body: r.String()}
	}
	return nil
}

// ExpectNonEmpty returns the field value, or an error when it is missing or empty.
func (r *Response) ExpectNonEmpty(path string) (string, error) {
	v := r.Field(path)
	if v == "" {
		return "", &AssertionError{Check: "field " + path, Expected: "non-empty value", Actual: "nothing", Body: r.String()}
	}
	return v, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
