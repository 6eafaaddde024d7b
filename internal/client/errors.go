package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"

	"github.com/lmskit/canvas-go/internal/transport"
)

// maxErrorBody bounds how much of an error response is retained.
const maxErrorBody = 1 << 16

// APIError is a non-2xx Canvas response, decoded as far as the body
// allows. The raw body is kept so callers can inspect shapes this client
// does not model.
type APIError struct {
	// StatusCode is the HTTP status of the response.
	StatusCode int

	// Messages are the error messages Canvas included, in body order.
	Messages []string

	// ReportID is the error_report_id Canvas attaches to 500-class
	// failures, zero when absent.
	ReportID int64

	// RequestID is the X-Request-Context-Id response header, when present.
	RequestID string

	// Throttled marks a 403 that is a rate-limit rejection rather than an
	// authorization failure.
	Throttled bool

	// Body is the raw response body.
	Body []byte
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := "request failed"
	if len(e.Messages) > 0 {
		msg = strings.Join(e.Messages, "; ")
	}
	if e.ReportID != 0 {
		return fmt.Sprintf("canvas: %s (status %d, report %d)", msg, e.StatusCode, e.ReportID)
	}
	return fmt.Sprintf("canvas: %s (status %d)", msg, e.StatusCode)
}

// IsNotFound reports whether err is a Canvas 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsUnauthorized reports whether err is a Canvas 401.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// IsThrottled reports whether err is rate limiting, from either side: a
// Canvas throttle rejection, or the local bucket refusing to wait.
func IsThrottled(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Throttled
	}
	var rateErr *transport.RateLimitError
	if errors.As(err, &rateErr) {
		return true
	}
	var waitErr *transport.WaitLimitError
	return errors.As(err, &waitErr)
}

// errorBody matches the envelope shapes Canvas uses for failures. Errors
// is either a list of objects or a map of field name to such a list.
type errorBody struct {
	Message       string          `json:"message"`
	ReportID      int64           `json:"error_report_id"`
	RawErrors     json.RawMessage `json:"errors"`
	Status        string          `json:"status"`
	Documentation string          `json:"documentation_url"`
}

type errorEntry struct {
	Message string `json:"message"`
}

// decodeAPIError drains resp and builds the APIError for it. The response
// body is consumed.
func decodeAPIError(resp *http.Response) *APIError {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		RequestID:  resp.Header.Get("X-Request-Context-Id"),
		Throttled:  transport.IsThrottleResponse(resp),
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return apiErr
	}
	apiErr.Body = body

	var envelope errorBody
	if jerr := json.Unmarshal(body, &envelope); jerr != nil {
		return apiErr
	}
	apiErr.ReportID = envelope.ReportID
	if envelope.Message != "" {
		apiErr.Messages = append(apiErr.Messages, envelope.Message)
	}
	apiErr.Messages = append(apiErr.Messages, errorMessages(envelope.RawErrors)...)
	return apiErr
}

// errorMessages extracts messages from either errors shape.
func errorMessages(raw json.RawMessage) []string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil
	}

	var out []string
	switch trimmed[0] {
	case '[':
		var entries []errorEntry
		if err := json.Unmarshal(raw, &entries); err != nil {
			return nil
		}
		for _, e := range entries {
			if e.Message != "" {
				out = append(out, e.Message)
			}
		}
	case '{':
		var fields map[string][]errorEntry
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil
		}
		names := make([]string, 0, len(fields))
		for field := range fields {
			names = append(names, field)
		}
		slices.Sort(names)
		for _, field := range names {
			for _, e := range fields[field] {
				if e.Message != "" {
					out = append(out, field+" "+e.Message)
				}
			}
		}
	}
	return out
}
