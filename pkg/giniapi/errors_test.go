package giniapi

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAPIError_ParsesServerErrorBody(t *testing.T) {
	body := []byte(`{"message":"Validation of the request entity failed","requestId":"8896f9dc"}`)

	apiErr := newAPIError(ErrRequest, http.MethodPost, "https://api.example.net/documents", http.StatusBadRequest, body)

	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "Validation of the request entity failed", apiErr.Message)
	assert.Equal(t, "8896f9dc", apiErr.RequestID)
	assert.ErrorIs(t, apiErr, ErrRequest)
}

func TestNewAPIError_UnparseableBodyDegradesToUndef(t *testing.T) {
	tests := []struct {
		name string
		body []byte
	}{
		{"html body", []byte(`<html>Bad Gateway</html>`)},
		{"empty body", nil},
		{"truncated json", []byte(`{"message":`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiErr := newAPIError(ErrUpload, http.MethodPost, "/documents", http.StatusBadGateway, tt.body)

			assert.Equal(t, undef, apiErr.Message)
			assert.Equal(t, undef, apiErr.RequestID)
		})
	}
}

func TestAPIError_ErrorString(t *testing.T) {
	apiErr := &APIError{
		StatusCode: http.StatusNotFound,
		Method:     http.MethodGet,
		URL:        "https://api.example.net/documents/abc",
		Message:    "document not found",
		RequestID:  "req-1",
		DocID:      "abc",
		Err:        ErrDocument,
	}

	msg := apiErr.Error()
	assert.Contains(t, msg, "404")
	assert.Contains(t, msg, "GET")
	assert.Contains(t, msg, "document not found")
	assert.Contains(t, msg, "req-1")
	assert.Contains(t, msg, "abc")
}

func TestAPIError_Unwrap(t *testing.T) {
	apiErr := &APIError{Err: ErrSearch}

	assert.Equal(t, ErrSearch, errors.Unwrap(apiErr))
	assert.ErrorIs(t, apiErr, ErrSearch)
	assert.NotErrorIs(t, apiErr, ErrUpload)
}

func TestReclassify_PreservesRequestDetails(t *testing.T) {
	orig := newAPIError(ErrRequest, http.MethodGet, "/documents/abc", http.StatusForbidden, []byte(`{"message":"denied","requestId":"r2"}`))

	got := reclassify(orig, ErrDocument)

	var apiErr *APIError
	require.ErrorAs(t, got, &apiErr)
	assert.ErrorIs(t, got, ErrDocument)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, "denied", apiErr.Message)
	assert.Equal(t, "r2", apiErr.RequestID)

	// The original keeps its sentinel.
	assert.ErrorIs(t, orig, ErrRequest)
}

func TestReclassify_NonAPIErrorUnchanged(t *testing.T) {
	err := errors.New("plain failure")

	assert.Equal(t, err, reclassify(err, ErrDocument))
}
