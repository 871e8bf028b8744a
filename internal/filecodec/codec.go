package filecodec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	dbzip2 "github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"

	"github.com/shellforge/execd/internal/request"
)


// Format is a recognized structured file format, independent of any
// compression suffix.
type Format int

const (
	FormatText Format = iota
	FormatJSON
	FormatJSONLines
	FormatYAML
	FormatCSV
	FormatTSV
)

// Compression is a recognized trailing compression suffix.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionGzip
	CompressionBzip2
)

// Suffixes classifies a logical path's trailing segments into a structured
// format and an optional compression, dispatch-table style rather than
// branching on concrete types at each write site.
func Suffixes(path string) (Format, Compression, error) {
	rest := path
	compression := CompressionNone

	if ext, ok := trimExt(rest); ok {
		switch ext {
		case "gz":
			compression = CompressionGzip
			rest = strings.TrimSuffix(rest, ".gz")
		case "bz2":
			compression = CompressionBzip2
			rest = strings.TrimSuffix(rest, ".bz2")
		}
	}

	if ext, ok := trimExt(rest); ok {
		switch ext {
		case "gz", "bz2":
			return 0, 0, errInvalidFormat("multiple compression suffixes on %q", path)
		}
	}

	format := FormatText
	if ext, ok := trimExt(rest); ok {
		switch ext {
		case "json":
			format = FormatJSON
		case "jsonl", "ndjson":
			format = FormatJSONLines
		case "yaml", "yml":
			format = FormatYAML
		case "csv":
			format = FormatCSV
		case "tsv":
			format = FormatTSV
		case "txt":
			format = FormatText
		default:
			format = FormatText
		}
	}

	return format, compression, nil
}

func trimExt(path string) (string, bool) {
	idx := strings.LastIndexByte(path, '.')
	if idx < 0 || idx == len(path)-1 {
		return "", false
	}
	// Don't treat a leading dot (hidden file with no real extension,
	// e.g. ".bashrc") as an extension.
	slash := strings.LastIndexByte(path, '/')
	if idx == slash+1 {
		return "", false
	}
	return strings.ToLower(path[idx+1:]), true
}

// Encode turns a request-supplied logical value into the concrete bytes to
// write at path, applying the recognized format and then any compression
// suffix.
func Encode(path string, raw []byte) ([]byte, error) {
	format, compression, err := Suffixes(path)
	if err != nil {
		return nil, err
	}

	encoded, err := encodeFormat(format, raw)
	if err != nil {
		return nil, err
	}

	return compress(compression, encoded)
}

// EncodeUncompressed runs only the format step (no compression), giving the
// canonical post-codec, pre-compression bytes the cache fingerprint is
// defined over.
func EncodeUncompressed(path string, raw []byte) ([]byte, error) {
	format, _, err := Suffixes(path)
	if err != nil {
		return nil, err
	}
	return encodeFormat(format, raw)
}

func encodeFormat(format Format, raw []byte) ([]byte, error) {
	switch format {
	case FormatText:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, errInvalidPayload("txt payload must be a string")
		}
		return []byte(s), nil

	case FormatJSON:
		v, err := ParseValue(raw)
		if err != nil {
			return nil, errInvalidPayload("invalid JSON payload: %v", err)
		}
		enc, err := v.MarshalJSON()
		if err != nil {
			return nil, err
		}
		return enc, nil

	case FormatJSONLines:
		v, err := ParseValue(raw)
		if err != nil {
			return nil, errInvalidPayload("invalid JSON payload: %v", err)
		}
		if v.Kind != KindArray {
			return nil, errInvalidPayload("jsonl/ndjson payload must be an array")
		}
		var buf bytes.Buffer
		for _, item := range v.Array {
			enc, err := item.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(enc)
			buf.WriteByte('\n')
		}
		return buf.Bytes(), nil

	case FormatYAML:
		v, err := ParseValue(raw)
		if err != nil {
			return nil, errInvalidPayload("invalid YAML source payload: %v", err)
		}
		enc, err := encodeYAML(v)
		if err != nil {
			return nil, err
		}
		return enc, nil

	case FormatCSV:
		v, err := ParseValue(raw)
		if err != nil {
			return nil, errInvalidPayload("invalid csv source payload: %v", err)
		}
		return encodeDelimited(v, ',')

	case FormatTSV:
		v, err := ParseValue(raw)
		if err != nil {
			return nil, errInvalidPayload("invalid tsv source payload: %v", err)
		}
		return encodeDelimited(v, '\t')

	default:
		return nil, errInvalidFormat("unrecognized format")
	}
}

func compress(c Compression, data []byte) ([]byte, error) {
	switch c {
	case CompressionNone:
		return data, nil
	case CompressionGzip:
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case CompressionBzip2:
		var buf bytes.Buffer
		w, err := dbzip2.NewWriter(&buf, nil)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unknown compression %d", c)
	}
}

// Decode turns harvested bytes at path back into the UTF-8 response string.
// Compression, if any, is reversed; the decoded format is NOT re-applied —
// per spec, harvested files are always returned as plain decoded strings.
func Decode(path string, data []byte) (string, error) {
	_, compression, err := Suffixes(path)
	if err != nil {
		return "", err
	}
	plain, err := decompress(compression, data)
	if err != nil {
		return "", err
	}
	return strings.ToValidUTF8(string(plain), string(utf8.RuneError)), nil
}

func decompress(c Compression, data []byte) ([]byte, error) {
	switch c {
	case CompressionNone:
		return data, nil
	case CompressionGzip:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	case CompressionBzip2:
		r, err := dbzip2.NewReader(bytes.NewReader(data), nil)
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	default:
		return nil, fmt.Errorf("unknown compression %d", c)
	}
}

func errInvalidFormat(format string, args ...any) error {
	return request.NewError(request.CodeInvalidFileFormat, format, args...)
}

func errInvalidPayload(format string, args ...any) error {
	return request.NewError(request.CodeInvalidFilePayload, format, args...)
}
