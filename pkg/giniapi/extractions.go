package giniapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
)

// Extraction is one labeled extraction result: the extracted value, its
// semantic entity, the bounding box it was found in, and the name of the
// candidates group it belongs to.
type Extraction struct {
	Value      any
	Entity     string
	Box        map[string]any
	Candidates string
}

// Box locates a value on a document page. Used when submitting feedback.
type Box struct {
	Page   int     `json:"page"`
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Feedback is the payload for correcting an extraction label.
type Feedback struct {
	Value any  `json:"value"`
	Box   *Box `json:"box,omitempty"`
}

// Extractions holds a document's extraction results: a label → Extraction
// map plus the candidates groups. Labels are an explicit map with typed
// accessors — no dynamic attribute synthesis.
type Extractions struct {
	client    *Client
	doc       *Document
	location  string
	incubator bool

	// Labels maps extraction labels to their results.
	Labels map[string]Extraction
	// Candidates maps candidate group names to their alternatives.
	Candidates map[string]any
}

// ExtractionsOptions tune an extractions fetch.
type ExtractionsOptions struct {
	// Refresh invalidates the cached extractions.
	Refresh bool
	// Incubator requests the experimental extraction surface.
	Incubator bool
}

// Extractions fetches (and caches) the document's extraction results.
func (d *Document) Extractions(ctx context.Context, opts ExtractionsOptions) (*Extractions, error) {
	if d.extractions != nil && !opts.Refresh && d.extractions.incubator == opts.Incubator {
		return d.extractions, nil
	}

	link, ok := d.Links["extractions"]
	if !ok {
		return nil, &APIError{
			Method: http.MethodGet, URL: d.Location,
			Message: "document has no extractions link", RequestID: undef,
			DocID: d.ID, Err: ErrDocument,
		}
	}

	ext := &Extractions{
		client:    d.client,
		doc:       d,
		location:  link,
		incubator: opts.Incubator,
	}

	if err := ext.update(ctx); err != nil {
		return nil, err
	}

	d.extractions = ext

	return ext, nil
}

// update fetches the extractions resource and repopulates the label map.
func (e *Extractions) update(ctx context.Context) error {
	opts := &requestOptions{userIdentifier: e.doc.UserIdentifier}
	if e.incubator {
		opts.version = incubatorVersion
	}

	resp, err := e.client.dispatch(ctx, http.MethodGet, e.location, opts)
	if err != nil {
		return e.doc.classify(err)
	}

	if resp.StatusCode != http.StatusOK {
		return e.doc.docError(http.MethodGet, resp, "failed to fetch extractions")
	}

	data, ok := resp.Parsed.(map[string]any)
	if !ok {
		return e.doc.docError(http.MethodGet, resp, "unexpected extractions payload")
	}

	e.Labels = make(map[string]Extraction)

	if raw, isMap := data["extractions"].(map[string]any); isMap {
		for label, v := range raw {
			e.Labels[label] = parseExtraction(v)
		}
	}

	if candidates, isMap := data["candidates"].(map[string]any); isMap {
		e.Candidates = candidates
	}

	return nil
}

func parseExtraction(v any) Extraction {
	var ext Extraction

	raw, ok := v.(map[string]any)
	if !ok {
		ext.Value = v

		return ext
	}

	ext.Value = raw["value"]

	if entity, isString := raw["entity"].(string); isString {
		ext.Entity = entity
	}

	if box, isMap := raw["box"].(map[string]any); isMap {
		ext.Box = box
	}

	if candidates, isString := raw["candidates"].(string); isString {
		ext.Candidates = candidates
	}

	return ext
}

// Value returns the extracted value for the given label. Unknown labels
// surface as ErrDocument.
func (e *Extractions) Value(label string) (any, error) {
	ext, ok := e.Labels[label]
	if !ok {
		return nil, e.unknownLabel(label)
	}

	return ext.Value, nil
}

// SubmitFeedback corrects an extraction label. Success is HTTP 204. A 422
// response means the feedback itself was invalid and surfaces as
// ErrDocument; any other non-2xx from the same call is passed through
// unchanged (ErrRequest), preserving the distinction between "your
// feedback was invalid" and "something else broke".
func (e *Extractions) SubmitFeedback(ctx context.Context, label string, feedback Feedback) error {
	if _, ok := e.Labels[label]; !ok {
		return e.unknownLabel(label)
	}

	payload, err := json.Marshal(feedback)
	if err != nil {
		return &APIError{
			Method: http.MethodPut, URL: e.location + "/" + label,
			Message: "encoding feedback: " + err.Error(), RequestID: undef,
			DocID: e.doc.ID, Err: ErrDocument,
		}
	}

	resp, err := e.client.dispatch(ctx, http.MethodPut, e.location+"/"+label, &requestOptions{
		body:           bytes.NewReader(payload),
		userIdentifier: e.doc.UserIdentifier,
	})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnprocessableEntity {
			return e.doc.classify(reclassify(err, ErrDocument))
		}

		return err
	}

	if resp.StatusCode != http.StatusNoContent {
		return e.doc.docError(http.MethodPut, resp, "failed to submit feedback for label "+label)
	}

	return nil
}

func (e *Extractions) unknownLabel(label string) error {
	return &APIError{
		Method: http.MethodGet, URL: e.location,
		Message: "unknown extraction label " + label, RequestID: undef,
		DocID: e.doc.ID, Err: ErrDocument,
	}
}
