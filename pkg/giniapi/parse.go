package giniapi

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"mime"
	"strings"
)

// parserFunc decodes a response body into a generic structured value.
type parserFunc func(body []byte) (any, error)

// parserRegistry maps media types to body parsers. The dispatcher
// consults it with the response Content-Type; anything unknown or
// unparseable degrades to the raw body string.
type parserRegistry struct {
	parsers map[string]parserFunc
}

func newParserRegistry() *parserRegistry {
	return &parserRegistry{parsers: make(map[string]parserFunc)}
}

func (r *parserRegistry) register(mediaType string, fn parserFunc) {
	r.parsers[mediaType] = fn
}

// parse decodes body according to the Content-Type header. Parameters
// (charset etc.) are stripped before lookup.
func (r *parserRegistry) parse(contentType string, body []byte) any {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(contentType)
	}

	if fn, ok := r.parsers[mediaType]; ok {
		if v, parseErr := fn(body); parseErr == nil {
			return v
		}
	}

	return string(body)
}

// parseJSON decodes a JSON body into maps, slices and scalars.
func parseJSON(body []byte) (any, error) {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, err
	}

	return v, nil
}

// parseXML decodes an XML body into a generic tree: elements become
// map[string]any keyed by local name (repeated siblings promote to a
// slice), attributes become string entries, and leaf elements become
// their trimmed character data.
func parseXML(body []byte) (any, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))

	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}

		if start, ok := tok.(xml.StartElement); ok {
			v, decErr := decodeXMLElement(dec, start)
			if decErr != nil {
				return nil, decErr
			}

			return map[string]any{start.Name.Local: v}, nil
		}
	}
}

func decodeXMLElement(dec *xml.Decoder, start xml.StartElement) (any, error) {
	children := make(map[string]any)

	for _, attr := range start.Attr {
		children[attr.Name.Local] = attr.Value
	}

	var text strings.Builder

	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			child, err := decodeXMLElement(dec, t)
			if err != nil {
				return nil, err
			}

			addXMLChild(children, t.Name.Local, child)

		case xml.CharData:
			text.Write(t)

		case xml.EndElement:
			if len(children) == 0 {
				return strings.TrimSpace(text.String()), nil
			}

			return children, nil
		}
	}
}

// addXMLChild inserts a child value, promoting repeated element names to
// a slice so sibling lists survive the decode.
func addXMLChild(children map[string]any, name string, value any) {
	existing, ok := children[name]
	if !ok {
		children[name] = value

		return
	}

	if list, isList := existing.([]any); isList {
		children[name] = append(list, value)

		return
	}

	children[name] = []any{existing, value}
}
