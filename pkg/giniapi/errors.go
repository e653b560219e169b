// Package giniapi is a client for the Gini document-processing API.
// It owns the OAuth2 session lifecycle (login strategies, refresh before
// expiry, revocation), an authenticated request dispatcher with vendor
// media-type negotiation, and the upload → poll → terminal-state flow.
package giniapi

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Sentinel errors classifying API failures.
// Use errors.Is(err, giniapi.ErrUpload) to check.
var (
	ErrOAuth      = errors.New("giniapi: oauth failure")
	ErrRequest    = errors.New("giniapi: request failure")
	ErrProcessing = errors.New("giniapi: processing timeout")
	ErrUpload     = errors.New("giniapi: upload failure")
	ErrDocument   = errors.New("giniapi: document failure")
	ErrSearch     = errors.New("giniapi: search failure")
)

// undef is the sentinel value for server error fields that could not be
// parsed from the response body.
const undef = "undef"

// APIError wraps a sentinel error with the HTTP method, URL, status code
// and the server's error object fields ({message, requestId}) when the
// body was valid JSON. DocID is set when a document was in flight, so
// callers can still act on (e.g. delete) an orphaned document.
type APIError struct {
	StatusCode int
	Method     string
	URL        string
	Message    string
	RequestID  string
	DocID      string
	Err        error // sentinel, for errors.Is()
}

func (e *APIError) Error() string {
	msg := e.Err.Error()
	if e.Method != "" {
		msg += ": " + e.Method + " " + e.URL
	}

	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": %d", e.StatusCode)
	}

	if e.Message != "" {
		msg += " - " + e.Message
	}

	if e.RequestID != "" && e.RequestID != undef {
		msg += fmt.Sprintf(" (request id: %s)", e.RequestID)
	}

	if e.DocID != "" {
		msg += fmt.Sprintf(" (document %s)", e.DocID)
	}

	return msg
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// newAPIError builds an APIError for the given sentinel and request,
// extracting {message, requestId} from the response body. Unparseable
// bodies degrade to "undef" fields rather than raising a secondary error.
func newAPIError(sentinel error, method, url string, status int, body []byte) *APIError {
	apiErr := &APIError{
		StatusCode: status,
		Method:     method,
		URL:        url,
		Message:    undef,
		RequestID:  undef,
		Err:        sentinel,
	}

	if len(body) > 0 {
		var parsed struct {
			Message   string `json:"message"`
			RequestID string `json:"requestId"`
		}

		if err := json.Unmarshal(body, &parsed); err == nil {
			if parsed.Message != "" {
				apiErr.Message = parsed.Message
			}

			if parsed.RequestID != "" {
				apiErr.RequestID = parsed.RequestID
			}
		}
	}

	return apiErr
}

// reclassify rebinds an APIError to a different sentinel, preserving the
// captured request details. Used where a generic dispatch failure has a
// more specific meaning at the call site (e.g. a non-200 document fetch
// is a document failure, not a generic request failure).
// Non-APIError values are returned unchanged.
func reclassify(err, sentinel error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		clone := *apiErr
		clone.Err = sentinel

		return &clone
	}

	return err
}
