package giniapi

import (
	"context"
	"net/http"
)

// Layout exposes a document's layout sub-resource, negotiated as XML or
// JSON via the vendor Accept header. Fetches are cached per handle.
type Layout struct {
	client   *Client
	doc      *Document
	location string

	xmlBody  []byte
	jsonBody []byte
}

// Layout returns the document's layout accessor. The layout itself is
// fetched lazily by XML or JSON.
func (d *Document) Layout() *Layout {
	if d.layout == nil {
		d.layout = &Layout{
			client:   d.client,
			doc:      d,
			location: d.Links["layout"],
		}
	}

	return d.layout
}

// XML returns the layout as an XML document.
func (l *Layout) XML(ctx context.Context) ([]byte, error) {
	if l.xmlBody != nil {
		return l.xmlBody, nil
	}

	body, err := l.fetch(ctx, mediaXML)
	if err != nil {
		return nil, err
	}

	l.xmlBody = body

	return body, nil
}

// JSON returns the layout as a JSON document.
func (l *Layout) JSON(ctx context.Context) ([]byte, error) {
	if l.jsonBody != nil {
		return l.jsonBody, nil
	}

	body, err := l.fetch(ctx, mediaJSON)
	if err != nil {
		return nil, err
	}

	l.jsonBody = body

	return body, nil
}

func (l *Layout) fetch(ctx context.Context, mediaType string) ([]byte, error) {
	if l.location == "" {
		return nil, &APIError{
			Method: http.MethodGet, URL: l.doc.Location,
			Message: "document has no layout link", RequestID: undef,
			DocID: l.doc.ID, Err: ErrDocument,
		}
	}

	resp, err := l.client.dispatch(ctx, http.MethodGet, l.location, &requestOptions{
		mediaType:      mediaType,
		userIdentifier: l.doc.UserIdentifier,
	})
	if err != nil {
		return nil, l.doc.classify(err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, l.doc.docError(http.MethodGet, resp, "failed to fetch layout")
	}

	return resp.Body, nil
}
