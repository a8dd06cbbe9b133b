package querybuilder

import (
	"encoding/json"
	"errors"
	"slices"

	jsoniter "github.com/json-iterator/go"
)

var (
	documentJSON = jsoniter.ConfigCompatibleWithStandardLibrary

	documentNumberJSON = jsoniter.Config{
		EscapeHTML:             true,
		SortMapKeys:            true,
		ValidateJsonRawMessage: true,
		UseNumber:              true,
	}.Froze()
)

// Document is a rendered filter: string keys, nested objects as Document and arrays as []any.
// Scalars are string, int64, float64 or bool.
type Document map[string]any

// Keys returns the top-level keys in sorted order.
func (d Document) Keys() []string {
	keys := make([]string, 0, len(d))
	for key := range d {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	return keys
}

// JSON encodes the Document with object keys sorted, so equal Documents encode to equal bytes.
func (d Document) JSON() ([]byte, error) {
	return documentJSON.Marshal(d)
}

// String returns the JSON encoding of the Document, or "{}" if it cannot be encoded.
func (d Document) String() string {
	b, err := d.JSON()
	if err != nil {
		return "{}"
	}

	return string(b)
}

// Clone returns a deep copy of the Document.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}

	return cloneAny(d).(Document)
}

func cloneAny(v any) any {
	switch typed := v.(type) {
	case Document:
		doc := make(Document, len(typed))
		for key, value := range typed {
			doc[key] = cloneAny(value)
		}
		return doc
	case map[string]any:
		m := make(map[string]any, len(typed))
		for key, value := range typed {
			m[key] = cloneAny(value)
		}
		return m
	case []any:
		items := make([]any, len(typed))
		for i, item := range typed {
			items[i] = cloneAny(item)
		}
		return items
	default:
		return v
	}
}

// ParseDocument decodes a JSON object into a Document.
// Integral numbers decode to int64, all other numbers to float64.
func ParseDocument(data []byte) (Document, error) {
	var raw map[string]any
	if err := documentNumberJSON.Unmarshal(data, &raw); err != nil {
		return nil, errors.Join(ErrInvalidDocument, err)
	}

	if raw == nil {
		return nil, errors.Join(ErrInvalidDocument, errors.New("null is not an object"))
	}

	normalized, err := normalize(raw)
	if err != nil {
		return nil, err
	}

	return normalized.(Document), nil
}

func normalize(v any) (any, error) {
	switch typed := v.(type) {
	case map[string]any:
		doc := make(Document, len(typed))
		for key, value := range typed {
			normalized, err := normalize(value)
			if err != nil {
				return nil, err
			}
			doc[key] = normalized
		}
		return doc, nil
	case []any:
		items := make([]any, len(typed))
		for i, item := range typed {
			normalized, err := normalize(item)
			if err != nil {
				return nil, err
			}
			items[i] = normalized
		}
		return items, nil
	case json.Number:
		value, err := numberFromJSON(typed)
		if err != nil {
			return nil, errors.Join(ErrInvalidDocument, err)
		}
		return value.Native(), nil
	default:
		return v, nil
	}
}
