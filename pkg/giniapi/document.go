package giniapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"time"
)

// Progress is a document's processing state as reported by the server.
type Progress string

// Known processing states. PENDING is the initial state; COMPLETED and
// ERROR are terminal. Unrecognized values read from the server are
// treated as non-terminal — the poll loop keeps waiting instead of
// crashing.
const (
	ProgressPending   Progress = "PENDING"
	ProgressCompleted Progress = "COMPLETED"
	ProgressError     Progress = "ERROR"
)

// DefaultPollInterval is the wait between status polls.
const DefaultPollInterval = 500 * time.Millisecond

// Duration records the elapsed time of an upload-and-poll sequence.
type Duration struct {
	Upload     time.Duration
	Processing time.Duration
	Total      time.Duration
}

// Document mirrors a remote document's processing state. Every Update
// overwrites the mirror with the server's current snapshot; the handle is
// never destroyed client-side.
type Document struct {
	client *Client

	// ID is the document id, derived from the resource location and
	// overwritten by the server's own id field on fetch.
	ID string
	// Location is the document resource URL.
	Location string
	// Progress is the current processing state.
	Progress Progress
	// Links maps named sub-resources (extractions, layout, processed,
	// document) to their URLs.
	Links map[string]string
	// Extra holds server fields outside the stable contract, passed
	// through untouched.
	Extra map[string]any
	// Duration is set after a successful upload-and-poll sequence.
	Duration Duration
	// UserIdentifier, when set, is sent as X-User-Identifier on every
	// request made through this handle (gateway delegation flows).
	UserIdentifier string

	pagesRaw    []any
	extractions *Extractions
	layout      *Layout
}

// newDocument creates a handle for the given resource location. The id is
// derived from the location's last path segment until a fetch replaces it
// with the server's value.
func newDocument(c *Client, location string) *Document {
	d := &Document{
		client:   c,
		Location: location,
		Progress: ProgressPending,
		Links:    make(map[string]string),
		Extra:    make(map[string]any),
	}

	if parsed, err := url.Parse(location); err == nil {
		if id := path.Base(parsed.Path); id != "." && id != "/" {
			d.ID = id
		}
	}

	return d
}

// newDocumentFromData creates a handle pre-populated from embedded
// response data (list/search results), without a fetch.
func newDocumentFromData(c *Client, location string, data map[string]any) *Document {
	d := newDocument(c, location)
	d.populate(data)

	return d
}

// populate overwrites the mirrored state from a parsed document payload.
// Known fields become typed; everything else lands in Extra.
func (d *Document) populate(data map[string]any) {
	for k, v := range data {
		switch k {
		case "id":
			if id, ok := v.(string); ok {
				d.ID = id
			}
		case "progress":
			if p, ok := v.(string); ok {
				d.Progress = Progress(p)
			}
		case "_links":
			d.Links = linkMap(v)
		case "pages":
			if pages, ok := v.([]any); ok {
				d.pagesRaw = pages
			}
		default:
			d.Extra[k] = v
		}
	}
}

// linkMap flattens the server's _links object into name → URL.
func linkMap(v any) map[string]string {
	links := make(map[string]string)

	raw, ok := v.(map[string]any)
	if !ok {
		return links
	}

	for name, link := range raw {
		if s, isString := link.(string); isString {
			links[name] = s
		}
	}

	return links
}

// selfLink returns the server's own link for the document, falling back
// to the handle's location.
func (d *Document) selfLink() string {
	if link, ok := d.Links["document"]; ok {
		return link
	}

	return d.Location
}

// IsComplete reports whether processing has finished, successfully or not.
func (d *Document) IsComplete() bool {
	return d.Progress != ProgressPending
}

// IsSuccessful reports whether processing finished successfully.
func (d *Document) IsSuccessful() bool {
	return d.Progress == ProgressCompleted
}

// terminal reports whether the poll loop should stop. Unlike IsComplete,
// unknown progress values are non-terminal.
func (d *Document) terminal() bool {
	return d.Progress == ProgressCompleted || d.Progress == ProgressError
}

// Update refetches the document resource and overwrites the mirrored
// state with the server's current snapshot. A fetch failure surfaces as
// ErrDocument carrying the document id.
func (d *Document) Update(ctx context.Context) error {
	resp, err := d.client.dispatch(ctx, http.MethodGet, d.Location, &requestOptions{
		userIdentifier: d.UserIdentifier,
	})
	if err != nil {
		return d.classify(err)
	}

	if resp.StatusCode != http.StatusOK {
		return d.docError(http.MethodGet, resp, "failed to fetch document data")
	}

	data, ok := resp.Parsed.(map[string]any)
	if !ok {
		return d.docError(http.MethodGet, resp, "unexpected document payload")
	}

	d.populate(data)

	return nil
}

// Poll refetches the document at the given interval until it reaches a
// terminal state. onProgress, when non-nil, is invoked after every
// non-terminal poll; the terminal update ends the loop without a callback.
// Cancellation is deadline-driven and surfaces as ErrProcessing carrying
// the document id.
func (d *Document) Poll(ctx context.Context, interval time.Duration, onProgress func(*Document)) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	for {
		if err := d.Update(ctx); err != nil {
			return err
		}

		if d.terminal() {
			return nil
		}

		if onProgress != nil {
			onProgress(d)
		}

		if err := d.client.sleepFunc(ctx, interval); err != nil {
			return &APIError{
				Method:    http.MethodGet,
				URL:       d.Location,
				Message:   "document processing timed out",
				RequestID: undef,
				DocID:     d.ID,
				Err:       ErrProcessing,
			}
		}
	}
}

// Pages returns the page image maps, index 0 = page 1.
func (d *Document) Pages() []any {
	pages := make([]any, 0, len(d.pagesRaw))

	for _, p := range d.pagesRaw {
		if m, ok := p.(map[string]any); ok {
			pages = append(pages, m["images"])
		}
	}

	return pages
}

// Processed fetches the binary representation of the processed document
// (pdf, jpg, png, ...).
func (d *Document) Processed(ctx context.Context) ([]byte, error) {
	link, ok := d.Links["processed"]
	if !ok {
		return nil, &APIError{
			Method: http.MethodGet, URL: d.Location,
			Message: "document has no processed link", RequestID: undef,
			DocID: d.ID, Err: ErrDocument,
		}
	}

	resp, err := d.client.dispatch(ctx, http.MethodGet, link, &requestOptions{
		accept:         "application/octet-stream",
		userIdentifier: d.UserIdentifier,
	})
	if err != nil {
		return nil, d.classify(err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, d.docError(http.MethodGet, resp, "failed to fetch processed document")
	}

	return resp.Body, nil
}

// ReportError submits an error report for the document and returns the
// error id issued by the API.
func (d *Document) ReportError(ctx context.Context, summary, description string) (string, error) {
	resource := d.selfLink() + "/errorreport?summary=" + url.QueryEscape(summary) +
		"&description=" + url.QueryEscape(description)

	resp, err := d.client.dispatch(ctx, http.MethodPost, resource, &requestOptions{
		userIdentifier: d.UserIdentifier,
	})
	if err != nil {
		return "", d.classify(err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", d.docError(http.MethodPost, resp, "failed to submit error report")
	}

	if data, ok := resp.Parsed.(map[string]any); ok {
		if errorID, isString := data["errorId"].(string); isString {
			return errorID, nil
		}
	}

	return "", d.docError(http.MethodPost, resp, "error report response missing errorId")
}

// classify rebinds a generic dispatch failure to ErrDocument and stamps
// the document id. Processing and oauth failures keep their sentinel but
// still pick up the id so callers can clean up the orphaned document.
func (d *Document) classify(err error) error {
	if errors.Is(err, ErrRequest) {
		err = reclassify(err, ErrDocument)
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.DocID == "" {
		apiErr.DocID = d.ID
	}

	return err
}

// docError builds an ErrDocument for an unexpected-but-successful
// response (e.g. a 2xx other than the one the operation requires).
func (d *Document) docError(method string, resp *Response, msg string) error {
	apiErr := newAPIError(ErrDocument, method, resp.URL, resp.StatusCode, resp.Body)
	if apiErr.Message == undef {
		apiErr.Message = msg
	}

	apiErr.DocID = d.ID

	return apiErr
}

// Get fetches a document by id and returns a populated handle.
func (c *Client) Get(ctx context.Context, id string) (*Document, error) {
	doc := newDocument(c, "/documents/"+id)
	if err := doc.Update(ctx); err != nil {
		return nil, err
	}

	return doc, nil
}

// Delete removes a document. Success is HTTP 204.
func (c *Client) Delete(ctx context.Context, id string) error {
	doc := newDocument(c, "/documents/"+id)

	resp, err := c.dispatch(ctx, http.MethodDelete, doc.Location, nil)
	if err != nil {
		return doc.classify(err)
	}

	if resp.StatusCode != http.StatusNoContent {
		return doc.docError(http.MethodDelete, resp, "document deletion failed")
	}

	c.logger.Info("deleted document", slog.String("id", id))

	return nil
}
