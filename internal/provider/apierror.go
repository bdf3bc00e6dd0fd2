package provider

import (
	"fmt"
	"io"
	"net/http"

	"github.com/tidwall/gjson"
)

// APIError represents an error response from an upstream LLM provider.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

// Error returns a formatted error string including provider, status, and message.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: HTTP %d: %s", e.Provider, e.StatusCode, e.Message)
}

// HTTPStatus returns the upstream HTTP status code.
func (e *APIError) HTTPStatus() int { return e.StatusCode }

// ParseAPIError reads up to 4KB of the response body and returns an
// APIError. Provider error envelopes carry the message at error.message
// in both dialects; bodies without one are passed through raw.
func ParseAPIError(provider string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := gjson.GetBytes(body, "error.message").String()
	if msg == "" {
		msg = string(body)
	}
	return &APIError{Provider: provider, StatusCode: resp.StatusCode, Message: msg}
}
