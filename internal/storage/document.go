package storage

import (
	"encoding/json"
	"fmt"

	apperrors "github.com/julianstephens/daybook/internal/errors"
)

// Document is a stored record as its top-level JSON fields.
type Document map[string]json.RawMessage

// Encode converts v, which must marshal to a JSON object, into a Document.
func Encode(v any) (Document, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return ParseDocument(b)
}

// Fields encodes only the named top-level fields of v.
func Fields(v any, names ...string) (Document, error) {
	doc, err := Encode(v)
	if err != nil {
		return nil, err
	}
	out := make(Document, len(names))
	for _, n := range names {
		raw, ok := doc[n]
		if !ok {
			return nil, fmt.Errorf("failed to encode document: no field %q", n)
		}
		out[n] = raw
	}
	return out, nil
}

// Decode unmarshals doc into v.
func Decode(doc Document, v any) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return apperrors.Decode("decode document", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return apperrors.Decode("decode document", err)
	}
	return nil
}

// ParseDocument parses a serialized JSON object.
func ParseDocument(b []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, apperrors.Decode("parse document", err)
	}
	if doc == nil {
		return nil, apperrors.Decode("parse document", fmt.Errorf("document is not a JSON object"))
	}
	return doc, nil
}

// Bytes serializes the document.
func (d Document) Bytes() ([]byte, error) {
	return json.Marshal(d)
}

// Clone returns a copy that shares no field buffers with d.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

// Merge returns base with the top-level fields of patch applied.
func Merge(base, patch Document) Document {
	out := base.Clone()
	if out == nil {
		out = make(Document, len(patch))
	}
	for k, v := range patch {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}
