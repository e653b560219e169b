package giniapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// defaultPageLimit is the number of documents returned per page when the
// caller does not set a limit.
const defaultPageLimit = 20

// DocumentSet is a page of documents from a list or search query.
type DocumentSet struct {
	// TotalCount is the total number of matching documents, which may
	// exceed the page size.
	TotalCount int
	// Documents holds the handles for this page, populated from the
	// embedded response data without extra fetches.
	Documents []*Document
}

// ListOptions tune a document listing. Offset is endpoint-specific: when
// zero it is omitted and the server's default applies.
type ListOptions struct {
	Limit  int
	Offset int
}

// SearchOptions tune a fulltext search.
type SearchOptions struct {
	// DocType restricts results to documents of the given type.
	DocType string
	Limit   int
	Offset  int
}

// List returns a page of the session's documents.
func (c *Client) List(ctx context.Context, opts ListOptions) (*DocumentSet, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}

	resource := fmt.Sprintf("/documents?limit=%d", limit)
	if opts.Offset > 0 {
		resource += fmt.Sprintf("&next=%d", opts.Offset)
	}

	resp, err := c.dispatch(ctx, http.MethodGet, resource, nil)
	if err != nil {
		return nil, reclassify(err, ErrDocument)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := newAPIError(ErrDocument, http.MethodGet, resp.URL, resp.StatusCode, resp.Body)
		if apiErr.Message == undef {
			apiErr.Message = "failed to list documents"
		}

		return nil, apiErr
	}

	return c.newDocumentSet(resp)
}

// Search performs a fulltext search across the session's documents.
// Failures surface as ErrSearch.
func (c *Client) Search(ctx context.Context, query string, opts SearchOptions) (*DocumentSet, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}

	resource := fmt.Sprintf("/search?q=%s&type=%s&limit=%d",
		url.QueryEscape(query), url.QueryEscape(opts.DocType), limit)
	if opts.Offset > 0 {
		resource += fmt.Sprintf("&next=%d", opts.Offset)
	}

	resp, err := c.dispatch(ctx, http.MethodGet, resource, nil)
	if err != nil {
		return nil, reclassify(err, ErrSearch)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := newAPIError(ErrSearch, http.MethodGet, resp.URL, resp.StatusCode, resp.Body)
		if apiErr.Message == undef {
			apiErr.Message = "search query failed"
		}

		return nil, apiErr
	}

	return c.newDocumentSet(resp)
}

// newDocumentSet builds a DocumentSet from a parsed list/search response
// ({totalCount, next, documents}). Handles are populated from the
// embedded document data, so a listed document mirrors the same progress
// and links a direct fetch of the same id would.
func (c *Client) newDocumentSet(resp *Response) (*DocumentSet, error) {
	data, ok := resp.Parsed.(map[string]any)
	if !ok {
		apiErr := newAPIError(ErrRequest, http.MethodGet, resp.URL, resp.StatusCode, resp.Body)
		apiErr.Message = "unexpected document set payload"

		return nil, apiErr
	}

	set := &DocumentSet{}

	if total, isNumber := data["totalCount"].(float64); isNumber {
		set.TotalCount = int(total)
	}

	docs, _ := data["documents"].([]any)
	for _, raw := range docs {
		docData, isMap := raw.(map[string]any)
		if !isMap {
			continue
		}

		location := ""
		if links, isLinks := docData["_links"].(map[string]any); isLinks {
			if self, isString := links["document"].(string); isString {
				location = self
			}
		}

		set.Documents = append(set.Documents, newDocumentFromData(c, location, docData))
	}

	return set, nil
}
