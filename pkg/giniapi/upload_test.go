package giniapi

import (
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// uploadMux serves the create-then-poll sequence: POST /documents answers
// 201 with a Location, GETs of the created document walk the progress
// sequence.
func uploadMux(t *testing.T, sequence []Progress) *http.ServeMux {
	t.Helper()

	var polls int

	mux := http.NewServeMux()
	mux.HandleFunc("/documents", func(w http.ResponseWriter, r *http.Request) {
		mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		require.NoError(t, err)
		require.Equal(t, "multipart/form-data", mediaType)

		reader := multipart.NewReader(r.Body, params["boundary"])
		part, err := reader.NextPart()
		require.NoError(t, err)
		assert.Equal(t, "file", part.FormName())

		content, err := io.ReadAll(part)
		require.NoError(t, err)
		assert.Equal(t, "invoice body", string(content))

		w.Header().Set("Location", "/documents/doc-1")
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("/documents/doc-1", func(w http.ResponseWriter, _ *http.Request) {
		progress := sequence[len(sequence)-1]
		if polls < len(sequence) {
			progress = sequence[polls]
		}

		polls++

		w.Header().Set("Content-Type", "application/vnd.gini.v1+json")
		fmt.Fprintf(w, `{"id":"doc-1","progress":%q,"_links":{}}`, progress)
	})

	return mux
}

func TestUpload_Success(t *testing.T) {
	srv := httptest.NewServer(uploadMux(t, []Progress{ProgressPending, ProgressCompleted}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	doc, err := client.Upload(context.Background(), strings.NewReader("invoice body"), UploadOptions{
		Filename: "invoice.pdf",
	})
	require.NoError(t, err)

	assert.Equal(t, "doc-1", doc.ID)
	assert.Equal(t, ProgressCompleted, doc.Progress)
	assert.True(t, doc.IsSuccessful())

	assert.Greater(t, doc.Duration.Upload, time.Duration(0))
	assert.Greater(t, doc.Duration.Processing, time.Duration(0))
	assert.Equal(t, doc.Duration.Upload+doc.Duration.Processing, doc.Duration.Total)
}

func TestUpload_SendsDocTypeHint(t *testing.T) {
	mux := uploadMux(t, []Progress{ProgressCompleted})

	var query string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			query = r.URL.RawQuery
		}

		mux.ServeHTTP(w, r)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	_, err := client.Upload(context.Background(), strings.NewReader("invoice body"), UploadOptions{
		DocType: "Invoice",
	})
	require.NoError(t, err)
	assert.Equal(t, "doctype=Invoice", query)
}

func TestUpload_SendsUserIdentifierOnUploadAndPolls(t *testing.T) {
	mux := uploadMux(t, []Progress{ProgressCompleted})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "end-user-9", r.Header.Get("X-User-Identifier"))
		mux.ServeHTTP(w, r)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	doc, err := client.Upload(context.Background(), strings.NewReader("invoice body"), UploadOptions{
		UserIdentifier: "end-user-9",
	})
	require.NoError(t, err)
	assert.Equal(t, "end-user-9", doc.UserIdentifier)
}

func TestUpload_RejectionIsUploadError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"upload refused","requestId":"r-up"}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	_, err := client.Upload(context.Background(), strings.NewReader("x"), UploadOptions{})
	require.Error(t, err)

	// A server rejection is a distinct failure from a slow pipeline.
	assert.ErrorIs(t, err, ErrUpload)
	assert.NotErrorIs(t, err, ErrProcessing)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "upload refused", apiErr.Message)
}

func TestUpload_MissingLocationIsUploadError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	_, err := client.Upload(context.Background(), strings.NewReader("x"), UploadOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpload)
	assert.Contains(t, err.Error(), "Location")
}

func TestUpload_ProcessingTimeoutCarriesDocID(t *testing.T) {
	// The document never leaves PENDING, so the processing deadline trips.
	srv := httptest.NewServer(uploadMux(t, []Progress{ProgressPending}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	client.sleepFunc = timeSleep
	client.processingTimeout = 50 * time.Millisecond

	_, err := client.Upload(context.Background(), strings.NewReader("x"), UploadOptions{
		Interval: 5 * time.Millisecond,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProcessing)

	// The id of the orphaned document comes along so the caller can
	// delete it.
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "doc-1", apiErr.DocID)
}

func TestUpload_PollFailureAbortsSequence(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/documents", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Location", "/documents/doc-1")
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("/documents/doc-1", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusGone)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	_, err := client.Upload(context.Background(), strings.NewReader("x"), UploadOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDocument)
}
