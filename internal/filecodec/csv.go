package filecodec

import (
	"bytes"
	"encoding/csv"
)

// encodeDelimited implements the csv/tsv encoding rule from the spec: either
// a list of row objects (headers are the union of keys in first-seen order,
// missing keys yield empty fields) or a dict of equal-length columns
// (keys are headers, values are the column bodies). encoding/csv's writer
// already implements the required RFC-4180-style quoting (wrap in quotes
// when a field contains the separator, a quote, or a newline; double inner
// quotes), so it is used directly rather than reimplemented.
func encodeDelimited(v Value, sep rune) ([]byte, error) {
	var headers []string
	var rows [][]string

	switch v.Kind {
	case KindArray:
		seen := map[string]bool{}
		for _, elem := range v.Array {
			if elem.Kind != KindObject {
				return nil, errInvalidPayload("csv/tsv list elements must all be objects")
			}
			for _, kv := range elem.Object {
				if !seen[kv.Key] {
					seen[kv.Key] = true
					headers = append(headers, kv.Key)
				}
			}
		}
		for _, elem := range v.Array {
			row := make([]string, len(headers))
			for i, h := range headers {
				if cell, ok := elem.Get(h); ok {
					row[i] = scalarCell(cell)
				}
			}
			rows = append(rows, row)
		}

	case KindObject:
		if len(v.Object) == 0 {
			headers = nil
		}
		colLen := -1
		cols := make([][]Value, len(v.Object))
		for i, kv := range v.Object {
			headers = append(headers, kv.Key)
			if kv.Value.Kind != KindArray {
				return nil, errInvalidPayload("csv/tsv column %q must be an array", kv.Key)
			}
			if colLen == -1 {
				colLen = len(kv.Value.Array)
			} else if len(kv.Value.Array) != colLen {
				return nil, errInvalidPayload("csv/tsv columns must be equal length")
			}
			cols[i] = kv.Value.Array
		}
		if colLen < 0 {
			colLen = 0
		}
		for r := 0; r < colLen; r++ {
			row := make([]string, len(headers))
			for i, col := range cols {
				row[i] = scalarCell(col[r])
			}
			rows = append(rows, row)
		}

	default:
		return nil, errInvalidPayload("csv/tsv payload must be a list of objects or a dict of columns")
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = sep
	if headers != nil {
		if err := w.Write(headers); err != nil {
			return nil, err
		}
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func scalarCell(v Value) string {
	switch v.Kind {
	case KindNull:
		return ""
	case KindBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case KindNumber:
		return v.Number.String()
	case KindString:
		return v.Str
	default:
		enc, err := v.MarshalJSON()
		if err != nil {
			return ""
		}
		return string(enc)
	}
}
