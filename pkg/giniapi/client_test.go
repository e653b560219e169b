package giniapi

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noopSleep is a sleep function that returns immediately, for fast tests.
func noopSleep(_ context.Context, _ time.Duration) error {
	return nil
}

// newTestClient creates a Client pointing at the given base URL with a
// bearer token installed and instant poll sleeps.
func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()

	c, err := New(Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		OAuthBase:    baseURL,
		APIBase:      baseURL,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)

	c.SetToken(&Token{AccessValue: "test-token", Kind: TokenBearer})
	c.sleepFunc = noopSleep

	return c
}

func TestNew_MandatoryCredentials(t *testing.T) {
	_, err := New(Config{ClientID: "only-id"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mandatory")
}

func TestNew_InvalidAPIBase(t *testing.T) {
	_, err := New(Config{ClientID: "id", ClientSecret: "secret", APIBase: "not a url"})
	assert.Error(t, err)
}

func TestAcceptHeader(t *testing.T) {
	client := newTestClient(t, "http://127.0.0.1:1")

	tests := []struct {
		name     string
		opts     requestOptions
		expected string
	}{
		{"defaults", requestOptions{}, "application/vnd.gini.v1+json"},
		{"xml type", requestOptions{mediaType: mediaXML}, "application/vnd.gini.v1+xml"},
		{"incubator version", requestOptions{version: incubatorVersion}, "application/vnd.gini.incubator+json"},
		{"full override", requestOptions{accept: "application/octet-stream"}, "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, client.acceptHeader(&tt.opts))
		})
	}
}

func TestDispatch_SendsNegotiatedHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/vnd.gini.v1+json", r.Header.Get("Accept"))
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, userAgent, r.Header.Get("User-Agent"))
		assert.Empty(t, r.Header.Get("X-User-Identifier"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	resp, err := client.dispatch(context.Background(), http.MethodGet, "/documents", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDispatch_UserIdentifierHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "end-user-42", r.Header.Get("X-User-Identifier"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	_, err := client.dispatch(context.Background(), http.MethodGet, "/documents", &requestOptions{
		userIdentifier: "end-user-42",
	})
	require.NoError(t, err)
}

func TestDispatch_BasicAuthorizationForGatewayToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Basic Y2xpZW50OnNlY3JldA==", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	client.SetToken(&Token{AccessValue: "Y2xpZW50OnNlY3JldA==", Kind: TokenBasic})

	_, err := client.dispatch(context.Background(), http.MethodGet, "/documents", nil)
	require.NoError(t, err)
}

func TestDispatch_ResolvesAbsoluteLinksAgainstAPIHost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/documents/abc-123/extractions", r.URL.Path)
		assert.Equal(t, "incubator=true", r.URL.RawQuery)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	// Links in response bodies carry the production host; the dispatcher
	// pins them to the session's API base, preserving the query string.
	_, err := client.dispatch(context.Background(), http.MethodGet,
		"https://api.gini.net/documents/abc-123/extractions?incubator=true", nil)
	require.NoError(t, err)
}

func TestDispatch_500YieldsRequestError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"exploded","requestId":"req-9"}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	_, err := client.dispatch(context.Background(), http.MethodGet, "/documents", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRequest)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, http.MethodGet, apiErr.Method)
	assert.Equal(t, "exploded", apiErr.Message)
	assert.Equal(t, "req-9", apiErr.RequestID)
}

func TestDispatch_ErrorBodyDefaultsToUndef(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`<html>Bad Gateway</html>`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	_, err := client.dispatch(context.Background(), http.MethodGet, "/documents", nil)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, undef, apiErr.Message)
	assert.Equal(t, undef, apiErr.RequestID)
}

func TestDispatch_TimeoutYieldsProcessingError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}

		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	client.processingTimeout = 30 * time.Millisecond

	_, err := client.dispatch(context.Background(), http.MethodGet, "/documents", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProcessing)
}

func TestDispatch_TransportFailureYieldsRequestError(t *testing.T) {
	client := newTestClient(t, "http://127.0.0.1:1")

	_, err := client.dispatch(context.Background(), http.MethodGet, "/documents", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRequest)
}

func TestDispatch_ParsesVendorJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.gini.v1+json")
		_, _ = w.Write([]byte(`{"progress":"COMPLETED"}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	resp, err := client.dispatch(context.Background(), http.MethodGet, "/documents/abc", nil)
	require.NoError(t, err)

	parsed, ok := resp.Parsed.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "COMPLETED", parsed["progress"])
}

func TestDispatch_UnparseableBodyStaysRawString(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.gini.v1+json")
		_, _ = w.Write([]byte("plainly not json"))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	resp, err := client.dispatch(context.Background(), http.MethodGet, "/documents/abc", nil)
	require.NoError(t, err)
	assert.Equal(t, "plainly not json", resp.Parsed)
}

func TestDispatch_WithoutLoginFailsWithOAuthError(t *testing.T) {
	client := newTestClient(t, "http://127.0.0.1:1")
	client.SetToken(nil)

	_, err := client.dispatch(context.Background(), http.MethodGet, "/documents", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOAuth)
}

func TestDispatch_BodyContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/vnd.gini.v1+json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"value":"42.00:EUR"}`, string(body))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	resp, err := client.dispatch(context.Background(), http.MethodPut, "/feedback", &requestOptions{
		body: strings.NewReader(`{"value":"42.00:EUR"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestTimeSleep_Completes(t *testing.T) {
	assert.NoError(t, timeSleep(context.Background(), time.Millisecond))
}

func TestTimeSleep_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, timeSleep(ctx, time.Minute), context.Canceled)
}
