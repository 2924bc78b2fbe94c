package variables

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// Field is one key/value pair of a list record.
type Field struct {
	Key   string
	Value string
}

// Record is one flat element of a list variable, with fields in source
// order.
type Record []Field

// Get returns the value of key.
func (r Record) Get(key string) (string, bool) {
	for _, f := range r {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// DecodeList parses a list variable's raw value as an ordered collection of
// flat records. Strict JSON is tried first; relaxed input such as unquoted
// keys or single quotes is repaired and retried.
func DecodeList(raw string) ([]Record, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}

	records, err := decodeRecords([]byte(trimmed))
	if err == nil {
		return records, nil
	}

	repaired, repairErr := jsonrepair.JSONRepair(trimmed)
	if repairErr != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}

	records, repairedErr := decodeRecords([]byte(repaired))
	if repairedErr != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}
	return records, nil
}

func decodeRecords(data []byte) ([]Record, error) {
	var elements []json.RawMessage
	if err := json.Unmarshal(data, &elements); err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(elements))
	for i, elem := range elements {
		rec, err := decodeRecord(elem)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func decodeRecord(data json.RawMessage) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected an object, got %s", string(data))
	}

	var rec Record
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected key %v", keyTok)
		}

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		rec = append(rec, Field{Key: key, Value: scalarString(value)})
	}

	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return rec, nil
}

// scalarString stringifies a JSON value. Strings lose their quotes, null is
// empty and anything nested is kept as compact JSON.
func scalarString(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	switch {
	case len(trimmed) == 0, bytes.Equal(trimmed, []byte("null")):
		return ""
	case trimmed[0] == '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	case trimmed[0] == '{' || trimmed[0] == '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, trimmed); err == nil {
			return buf.String()
		}
	}
	return string(trimmed)
}

// EncodeList is the inverse of DecodeList, producing strict JSON.
func EncodeList(records []Record) (string, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, rec := range records {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('{')
		for j, f := range rec {
			if j > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(f.Key)
			if err != nil {
				return "", err
			}
			value, err := json.Marshal(f.Value)
			if err != nil {
				return "", err
			}
			buf.Write(key)
			buf.WriteByte(':')
			buf.Write(value)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte(']')
	return buf.String(), nil
}
