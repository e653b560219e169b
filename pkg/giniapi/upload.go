package giniapi

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"
)

// UploadOptions tune an upload-and-poll sequence. The zero value uploads
// an unnamed document and polls at DefaultPollInterval.
type UploadOptions struct {
	// Filename is the multipart filename. Defaults to "document".
	Filename string
	// DocType, when set, is passed as a doctype hint to the API.
	DocType string
	// Interval is the poll interval. Defaults to DefaultPollInterval.
	Interval time.Duration
	// UserIdentifier is sent as X-User-Identifier on the upload and every
	// subsequent poll (gateway delegation flows).
	UserIdentifier string
	// OnProgress, when non-nil, is invoked with the handle after every
	// non-terminal poll.
	OnProgress func(*Document)
}

// Upload sends a document (binary file or UTF-8 text payload) and polls
// its status resource until processing reaches a terminal state.
//
// The transfer itself runs under the session's upload timeout; a non-201
// response fails with ErrUpload and is not retried. The whole sequence is
// bounded by the session's processing timeout — exceeding it fails with
// ErrProcessing carrying the in-flight document id, so the caller can
// still act on (e.g. delete) the orphaned document. On success the
// returned handle carries the upload, processing and total durations.
func (c *Client) Upload(ctx context.Context, content io.Reader, opts UploadOptions) (*Document, error) {
	ctx, cancel := context.WithTimeout(ctx, c.processingTimeout)
	defer cancel()

	uploadStart := time.Now()

	location, err := c.performUpload(ctx, content, &opts)
	if err != nil {
		return nil, err
	}

	uploadDuration := time.Since(uploadStart)

	doc := newDocument(c, location)
	doc.UserIdentifier = opts.UserIdentifier

	c.logger.Info("document uploaded, polling",
		slog.String("id", doc.ID),
		slog.Duration("upload_duration", uploadDuration),
	)

	pollStart := time.Now()

	if err := doc.Poll(ctx, opts.Interval, opts.OnProgress); err != nil {
		return nil, err
	}

	processingDuration := time.Since(pollStart)
	doc.Duration = Duration{
		Upload:     uploadDuration,
		Processing: processingDuration,
		Total:      uploadDuration + processingDuration,
	}

	c.logger.Info("document processing finished",
		slog.String("id", doc.ID),
		slog.String("progress", string(doc.Progress)),
		slog.Duration("total_duration", doc.Duration.Total),
	)

	return doc, nil
}

// performUpload executes the multipart POST under the upload timeout and
// returns the Location header of the created document.
func (c *Client) performUpload(ctx context.Context, content io.Reader, opts *UploadOptions) (string, error) {
	filename := opts.Filename
	if filename == "" {
		filename = "document"
	}

	var buf bytes.Buffer

	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", c.uploadError("building multipart body: " + err.Error())
	}

	if _, err := io.Copy(part, content); err != nil {
		return "", c.uploadError("reading upload content: " + err.Error())
	}

	if err := writer.Close(); err != nil {
		return "", c.uploadError("finalizing multipart body: " + err.Error())
	}

	resource := "/documents"
	if opts.DocType != "" {
		resource += "?doctype=" + url.QueryEscape(opts.DocType)
	}

	loc, err := c.resolveResource(resource)
	if err != nil {
		return "", err
	}

	if err := c.EnsureFresh(ctx); err != nil {
		return "", err
	}

	uploadCtx, cancel := context.WithTimeout(ctx, c.uploadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(uploadCtx, http.MethodPost, loc, &buf)
	if err != nil {
		return "", c.uploadError("creating upload request: " + err.Error())
	}

	req.Header.Set("Accept", c.acceptHeader(&requestOptions{}))
	req.Header.Set("Authorization", c.token.authorizationHeader())
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("User-Agent", userAgent)

	if opts.UserIdentifier != "" {
		req.Header.Set("X-User-Identifier", opts.UserIdentifier)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", &APIError{
				Method: http.MethodPost, URL: loc,
				Message: "document upload timed out", RequestID: undef,
				Err: ErrProcessing,
			}
		}

		return "", &APIError{
			Method: http.MethodPost, URL: loc,
			Message: err.Error(), RequestID: undef,
			Err: ErrUpload,
		}
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		body = nil
	}

	if resp.StatusCode != http.StatusCreated {
		return "", newAPIError(ErrUpload, http.MethodPost, loc, resp.StatusCode, body)
	}

	location := resp.Header.Get("Location")
	if location == "" {
		apiErr := newAPIError(ErrUpload, http.MethodPost, loc, resp.StatusCode, body)
		apiErr.Message = "upload response missing Location header"

		return "", apiErr
	}

	return location, nil
}

func (c *Client) uploadError(msg string) error {
	return &APIError{Method: http.MethodPost, URL: "/documents", Message: msg, RequestID: undef, Err: ErrUpload}
}
