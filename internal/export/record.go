// Package export converts rows to and from the JSON, CSV and XLSX formats
// used for backup and bulk import.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Field is one key of a record with its JSON-encoded value.
type Field struct {
	Key   string
	Value json.RawMessage
}

// Record is an ordered set of fields, in struct declaration order.
type Record []Field

// Keys returns the field names of r.
func (r Record) Keys() []string {
	keys := make([]string, len(r))
	for i, f := range r {
		keys[i] = f.Key
	}
	return keys
}

// Records encodes rows, which must marshal to a JSON array of objects, and
// returns one Record per element with keys in encoding order.
func Records(rows any) ([]Record, error) {
	raw, err := json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("export: encode rows: %w", err)
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("export: rows must encode to an array: %w", err)
	}
	out := make([]Record, 0, len(items))
	for i, item := range items {
		rec, err := decodeOrdered(item)
		if err != nil {
			return nil, fmt.Errorf("export: row %d: %w", i, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func decodeOrdered(obj json.RawMessage) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(obj))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}
	var rec Record
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected key, got %v", tok)
		}
		var val json.RawMessage
		if err := dec.Decode(&val); err != nil {
			return nil, err
		}
		rec = append(rec, Field{Key: key, Value: val})
	}
	return rec, nil
}
