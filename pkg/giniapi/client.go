package giniapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Default session settings, overridable via Config.
const (
	DefaultOAuthBase         = "https://user.gini.net"
	DefaultOAuthRedirect     = "http://localhost"
	DefaultAPIBase           = "https://api.gini.net"
	DefaultAPIVersion        = "v1"
	DefaultUploadTimeout     = 90 * time.Second
	DefaultProcessingTimeout = 180 * time.Second

	userAgent = "gini-go/0.1"
)

// Config holds the settings for a Client. ClientID and ClientSecret are
// mandatory; everything else has a default.
type Config struct {
	ClientID     string
	ClientSecret string

	// OAuthBase is the identity provider base URL.
	OAuthBase string
	// OAuthRedirect is the redirect URI registered for the auth-code grant.
	OAuthRedirect string
	// APIBase is the API base URL. Relative resource paths and absolute
	// resource links are both resolved against its scheme and host.
	APIBase string
	// APIVersion selects the vendor media type (application/vnd.gini.<version>+json).
	APIVersion string

	// UploadTimeout bounds the document transfer itself.
	UploadTimeout time.Duration
	// ProcessingTimeout bounds an individual request, and the whole
	// upload-and-poll sequence.
	ProcessingTimeout time.Duration

	// HTTPClient overrides the transport. Defaults to http.DefaultClient.
	HTTPClient *http.Client
	// Logger receives structured request and lifecycle logs.
	// Defaults to slog.Default().
	Logger *slog.Logger
}

// Client is an authenticated session against the document-processing API.
// Create one per set of credentials with New, then Login before dispatching.
//
// All operations are synchronous. Callers needing concurrent polling of
// many documents run multiple Upload calls on separate goroutines, each
// owning its own Document (and must serialize token refresh, see Token).
type Client struct {
	clientID      string
	clientSecret  string
	oauthBase     string
	oauthRedirect string
	apiURL        *url.URL
	apiVersion    string

	uploadTimeout     time.Duration
	processingTimeout time.Duration

	httpClient *http.Client
	logger     *slog.Logger
	token      *Token
	parsers    *parserRegistry

	// sleepFunc waits between document polls. Tests override this to
	// avoid real delays.
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// New creates a Client from the given config and registers the response
// parsers for the configured API version.
func New(cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("giniapi: ClientID and ClientSecret are mandatory")
	}

	applyDefaults(&cfg)

	apiURL, err := url.Parse(strings.TrimRight(cfg.APIBase, "/"))
	if err != nil || apiURL.Host == "" {
		return nil, fmt.Errorf("giniapi: invalid APIBase %q", cfg.APIBase)
	}

	c := &Client{
		clientID:          cfg.ClientID,
		clientSecret:      cfg.ClientSecret,
		oauthBase:         strings.TrimRight(cfg.OAuthBase, "/"),
		oauthRedirect:     cfg.OAuthRedirect,
		apiURL:            apiURL,
		apiVersion:        cfg.APIVersion,
		uploadTimeout:     cfg.UploadTimeout,
		processingTimeout: cfg.ProcessingTimeout,
		httpClient:        cfg.HTTPClient,
		logger:            cfg.Logger,
		parsers:           newParserRegistry(),
		sleepFunc:         timeSleep,
	}

	// Register parsers for the stable and incubator surfaces, mirroring
	// the Accept values the dispatcher can emit.
	for _, version := range []string{c.apiVersion, incubatorVersion} {
		c.parsers.register(vendorMediaType(version, mediaJSON), parseJSON)
		c.parsers.register(vendorMediaType(version, mediaXML), parseXML)
	}

	c.parsers.register("application/json", parseJSON)

	c.logger.Info("api client initialized",
		slog.String("api_base", apiURL.String()),
		slog.String("api_version", c.apiVersion),
	)

	return c, nil
}

func applyDefaults(cfg *Config) {
	if cfg.OAuthBase == "" {
		cfg.OAuthBase = DefaultOAuthBase
	}

	if cfg.OAuthRedirect == "" {
		cfg.OAuthRedirect = DefaultOAuthRedirect
	}

	if cfg.APIBase == "" {
		cfg.APIBase = DefaultAPIBase
	}

	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}

	if cfg.UploadTimeout == 0 {
		cfg.UploadTimeout = DefaultUploadTimeout
	}

	if cfg.ProcessingTimeout == 0 {
		cfg.ProcessingTimeout = DefaultProcessingTimeout
	}

	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
}

// Token returns the session's current token, or nil before login.
// The same pointer stays valid across refreshes.
func (c *Client) Token() *Token {
	return c.token
}

// SetToken installs a previously persisted token, resuming a session
// without a fresh login.
func (c *Client) SetToken(tok *Token) {
	c.token = tok
}

// Media types for the vendor Accept scheme.
const (
	mediaJSON = "json"
	mediaXML  = "xml"

	// incubatorVersion selects the experimental API surface.
	incubatorVersion = "incubator"
)

// vendorMediaType renders the versioned vendor media type,
// e.g. application/vnd.gini.v1+json.
func vendorMediaType(version, mediaType string) string {
	return "application/vnd.gini." + version + "+" + mediaType
}

// requestOptions tune a single dispatch. The zero value requests the
// session's configured version as JSON.
type requestOptions struct {
	// mediaType overrides the Accept type suffix (json, xml).
	mediaType string
	// version overrides the Accept version segment (e.g. incubator).
	version string
	// accept replaces the vendor Accept header entirely
	// (e.g. application/octet-stream for processed documents).
	accept string
	// userIdentifier populates X-User-Identifier for gateway flows acting
	// on behalf of an end user.
	userIdentifier string
	// contentType and body form the request payload.
	contentType string
	body        io.Reader
}

// acceptHeader resolves the effective Accept header for the options.
func (c *Client) acceptHeader(opts *requestOptions) string {
	if opts.accept != "" {
		return opts.accept
	}

	mediaType := opts.mediaType
	if mediaType == "" {
		mediaType = mediaJSON
	}

	version := opts.version
	if version == "" {
		version = c.apiVersion
	}

	return vendorMediaType(version, mediaType)
}

// Response is the outcome of a successful dispatch.
type Response struct {
	StatusCode int
	Header     http.Header
	URL        string
	Body       []byte
	// Parsed is the content-negotiated decode of Body: a generic value
	// tree for registered media types, or the raw body string when the
	// media type is unknown or the body does not parse. Structural access
	// on a raw string fails at the caller, by intent — the dispatcher
	// does not mask shape problems.
	Parsed any
}

// dispatch executes an authenticated request against the API. The resource
// may be a relative path or an absolute link from a response body; either
// way it is resolved against the configured API host, preserving the query
// string. Non-2xx responses surface as ErrRequest, a deadline exceeded as
// ErrProcessing.
func (c *Client) dispatch(ctx context.Context, method, resource string, opts *requestOptions) (*Response, error) {
	if opts == nil {
		opts = &requestOptions{}
	}

	if err := c.EnsureFresh(ctx); err != nil {
		return nil, err
	}

	loc, err := c.resolveResource(resource)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.processingTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, loc, opts.body)
	if err != nil {
		return nil, &APIError{Method: method, URL: loc, Message: err.Error(), RequestID: undef, Err: ErrRequest}
	}

	req.Header.Set("Accept", c.acceptHeader(opts))
	req.Header.Set("Authorization", c.token.authorizationHeader())
	req.Header.Set("User-Agent", userAgent)

	if opts.userIdentifier != "" {
		req.Header.Set("X-User-Identifier", opts.userIdentifier)
	}

	if opts.body != nil {
		contentType := opts.contentType
		if contentType == "" {
			contentType = vendorMediaType(c.apiVersion, mediaJSON)
		}

		req.Header.Set("Content-Type", contentType)
	}

	c.logger.Debug("dispatching request",
		slog.String("method", method),
		slog.String("url", loc),
		slog.String("accept", req.Header.Get("Accept")),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &APIError{Method: method, URL: loc, Message: "request timed out", RequestID: undef, Err: ErrProcessing}
		}

		return nil, &APIError{Method: method, URL: loc, Message: err.Error(), RequestID: undef, Err: ErrRequest}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &APIError{Method: method, URL: loc, Message: "request timed out", RequestID: undef, Err: ErrProcessing}
		}

		return nil, &APIError{Method: method, URL: loc, Message: err.Error(), RequestID: undef, Err: ErrRequest}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		c.logger.Debug("request failed",
			slog.String("method", method),
			slog.String("url", loc),
			slog.Int("status", resp.StatusCode),
		)

		return nil, newAPIError(ErrRequest, method, loc, resp.StatusCode, body)
	}

	c.logger.Debug("request succeeded",
		slog.String("method", method),
		slog.String("url", loc),
		slog.Int("status", resp.StatusCode),
	)

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		URL:        loc,
		Body:       body,
		Parsed:     c.parsers.parse(resp.Header.Get("Content-Type"), body),
	}, nil
}

// resolveResource rebuilds the resource URL against the configured API
// host, keeping only path and query. Absolute links from response bodies
// are therefore pinned to the session's API base.
func (c *Client) resolveResource(resource string) (string, error) {
	parsed, err := url.Parse(resource)
	if err != nil {
		return "", &APIError{URL: resource, Message: "invalid resource: " + err.Error(), RequestID: undef, Err: ErrRequest}
	}

	loc := url.URL{
		Scheme:   c.apiURL.Scheme,
		Host:     c.apiURL.Host,
		Path:     parsed.Path,
		RawQuery: parsed.RawQuery,
	}

	if !strings.HasPrefix(loc.Path, "/") {
		loc.Path = "/" + loc.Path
	}

	return loc.String(), nil
}

// timeSleep waits for the given duration or until the context is canceled.
// It is the default sleepFunc for Client.
func timeSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
