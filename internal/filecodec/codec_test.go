package filecodec

import (
	"bytes"
	"compress/gzip"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuffixes(t *testing.T) {
	cases := []struct {
		path       string
		format     Format
		compress   Compression
		wantErr    bool
	}{
		{path: "a/b.json", format: FormatJSON, compress: CompressionNone},
		{path: "a.jsonl", format: FormatJSONLines, compress: CompressionNone},
		{path: "a.ndjson", format: FormatJSONLines, compress: CompressionNone},
		{path: "a.yaml", format: FormatYAML, compress: CompressionNone},
		{path: "a.yml.gz", format: FormatYAML, compress: CompressionGzip},
		{path: "a.csv.bz2", format: FormatCSV, compress: CompressionBzip2},
		{path: "a.tsv", format: FormatTSV, compress: CompressionNone},
		{path: "a.txt", format: FormatText, compress: CompressionNone},
		{path: "a.unknownext", format: FormatText, compress: CompressionNone},
		{path: "plain", format: FormatText, compress: CompressionNone},
		{path: ".bashrc", format: FormatText, compress: CompressionNone},
		{path: "a.gz.bz2", wantErr: true},
		{path: "a.json.gz.bz2", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			f, c, err := Suffixes(tc.path)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.format, f)
			assert.Equal(t, tc.compress, c)
		})
	}
}

func TestEncodeJSON(t *testing.T) {
	out, err := Encode("x.json", []byte(`{"b":1,"a":2}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"b":1,"a":2}`, string(out))
	assert.Equal(t, `{"b":1,"a":2}`, string(out))
}

func TestEncodeJSONLines(t *testing.T) {
	out, err := Encode("x.jsonl", []byte(`[{"a":1},{"b":2}]`))
	require.NoError(t, err)
	assert.Equal(t, "{\"a\":1}\n{\"b\":2}\n", string(out))
}

func TestEncodeJSONLinesRejectsNonArray(t *testing.T) {
	_, err := Encode("x.jsonl", []byte(`{"a":1}`))
	require.Error(t, err)
}

func TestEncodeYAML(t *testing.T) {
	out, err := Encode("x.yaml", []byte(`{"a":1,"b":"two"}`))
	require.NoError(t, err)
	assert.Contains(t, string(out), "a: 1")
	assert.Contains(t, string(out), "b: two")
}

func TestEncodeCSVListOfObjects(t *testing.T) {
	out, err := Encode("x.csv", []byte(`[{"a":1,"b":"x"},{"a":2}]`))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(out), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "a,b", lines[0])
	assert.Equal(t, "1,x", lines[1])
	assert.Equal(t, "2,", lines[2])
}

func TestEncodeTSVDictOfColumns(t *testing.T) {
	out, err := Encode("x.tsv", []byte(`{"a":[1,2],"b":["x","y"]}`))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(out), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "a\tb", lines[0])
	assert.Equal(t, "1\tx", lines[1])
	assert.Equal(t, "2\ty", lines[2])
}

func TestEncodeCSVColumnLengthMismatch(t *testing.T) {
	_, err := Encode("x.csv", []byte(`{"a":[1,2],"b":["x"]}`))
	require.Error(t, err)
}

func TestEncodeText(t *testing.T) {
	out, err := Encode("x.txt", []byte(`"hello"`))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(out))
}

func TestEncodeTextRejectsNonString(t *testing.T) {
	_, err := Encode("x.txt", []byte(`42`))
	require.Error(t, err)
}

func TestCompressionRoundTrip(t *testing.T) {
	encoded, err := Encode("x.json.gz", []byte(`{"k":"v"}`))
	require.NoError(t, err)

	r, err := gzip.NewReader(bytes.NewReader(encoded))
	require.NoError(t, err)
	defer r.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(r)
	require.NoError(t, err)
	assert.Equal(t, `{"k":"v"}`, buf.String())

	decoded, err := Decode("x.json.gz", encoded)
	require.NoError(t, err)
	assert.Equal(t, `{"k":"v"}`, decoded)
}

func TestDoubleCompressionSuffixRejected(t *testing.T) {
	_, err := Encode("x.json.gz.bz2", []byte(`{}`))
	require.Error(t, err)
}

func TestDecodePlainText(t *testing.T) {
	s, err := Decode("notes.txt", []byte("hello world"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", s)
}
