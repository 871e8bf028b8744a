// Package filecodec encodes and decodes the structured file payloads carried
// in an execution request's "files" map and, symmetrically, decodes harvested
// output files back into response strings.
package filecodec

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Kind tags a Value's underlying JSON shape.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// KV is one object member, retaining the order it was written on the wire.
type KV struct {
	Key   string
	Value Value
}

// Value is a JSON value that preserves object member order, unlike decoding
// into map[string]any (which Go's map iteration randomizes). Order matters
// here: the CSV/TSV "list of objects" encoding derives its header row from
// the union of member names in first-seen order, and JSON/YAML re-encoding
// is specified to be deterministic with respect to the input.
type Value struct {
	Kind   Kind
	Bool   bool
	Number json.Number
	Str    string
	Array  []Value
	Object []KV
}

// ParseValue decodes arbitrary JSON into an order-preserving Value tree.
func ParseValue(raw json.RawMessage) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	v, err := parseValueFromDecoder(dec)
	if err != nil {
		return Value{}, err
	}
	return v, nil
}

func parseValueFromDecoder(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	return parseValueFromToken(tok, dec)
}

func parseValueFromToken(tok json.Token, dec *json.Decoder) (Value, error) {
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			var members []KV
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Value{}, fmt.Errorf("non-string object key")
				}
				val, err := parseValueFromDecoder(dec)
				if err != nil {
					return Value{}, err
				}
				members = append(members, KV{Key: key, Value: val})
			}
			if _, err := dec.Token(); err != nil { // consume '}'
				return Value{}, err
			}
			return Value{Kind: KindObject, Object: members}, nil
		case '[':
			var items []Value
			for dec.More() {
				val, err := parseValueFromDecoder(dec)
				if err != nil {
					return Value{}, err
				}
				items = append(items, val)
			}
			if _, err := dec.Token(); err != nil { // consume ']'
				return Value{}, err
			}
			return Value{Kind: KindArray, Array: items}, nil
		default:
			return Value{}, fmt.Errorf("unexpected delimiter %v", t)
		}
	case nil:
		return Value{Kind: KindNull}, nil
	case bool:
		return Value{Kind: KindBool, Bool: t}, nil
	case json.Number:
		return Value{Kind: KindNumber, Number: t}, nil
	case string:
		return Value{Kind: KindString, Str: t}, nil
	default:
		return Value{}, fmt.Errorf("unsupported token %T", tok)
	}
}

// MarshalJSON writes v back out preserving its original member order,
// i.e. the order ParseValue observed on the wire.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.writeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) writeJSON(buf *bytes.Buffer) error {
	switch v.Kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		if v.Bool {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case KindNumber:
		buf.WriteString(v.Number.String())
	case KindString:
		enc, err := json.Marshal(v.Str)
		if err != nil {
			return err
		}
		buf.Write(enc)
	case KindArray:
		buf.WriteByte('[')
		for i, item := range v.Array {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindObject:
		buf.WriteByte('{')
		for i, kv := range v.Object {
			if i > 0 {
				buf.WriteByte(',')
			}
			keyEnc, err := json.Marshal(kv.Key)
			if err != nil {
				return err
			}
			buf.Write(keyEnc)
			buf.WriteByte(':')
			if err := kv.Value.writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	return nil
}

// Get returns the member named key and whether it was present.
func (v Value) Get(key string) (Value, bool) {
	for _, kv := range v.Object {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return Value{}, false
}

// Native converts v into a plain interface{} tree (map[string]any /
// []any / scalars), for callers that only need to inspect it, not
// re-encode it order-sensitively.
func (v Value) Native() any {
	switch v.Kind {
	case KindNull:
		return nil
	case KindBool:
		return v.Bool
	case KindNumber:
		if f, err := v.Number.Float64(); err == nil {
			return f
		}
		return v.Number.String()
	case KindString:
		return v.Str
	case KindArray:
		out := make([]any, len(v.Array))
		for i, item := range v.Array {
			out[i] = item.Native()
		}
		return out
	case KindObject:
		out := make(map[string]any, len(v.Object))
		for _, kv := range v.Object {
			out[kv.Key] = kv.Value.Native()
		}
		return out
	}
	return nil
}
