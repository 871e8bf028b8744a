// Package workspace materializes a request's file map onto a concrete
// directory tree and harvests files back out of it by glob pattern.
package workspace

import (
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/shellforge/execd/internal/filecodec"
	"github.com/shellforge/execd/internal/request"
)

// WrittenFile reports one materialized path and the byte length of its
// encoded, pre-compression payload (what POST /v1/environment reports back
// as written_bytes).
type WrittenFile struct {
	Path  string
	Bytes int
}

// Materialize writes every entry of files under root, in order: resolve
// path relative to root (reject escapes), create intermediate directories,
// encode via filecodec, write. Writes are sequential by construction — one
// request is one goroutine walking this slice, never parallelized.
func Materialize(root string, files []request.FileEntry) ([]WrittenFile, error) {
	written := make([]WrittenFile, 0, len(files))
	for _, f := range files {
		abs, err := ResolvePath(root, f.Path)
		if err != nil {
			return nil, err
		}

		plain, err := filecodec.EncodeUncompressed(f.Path, f.Value)
		if err != nil {
			return nil, err
		}
		final, err := filecodec.Encode(f.Path, f.Value)
		if err != nil {
			return nil, err
		}

		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			return nil, request.Wrap(request.CodeFileWriteError, err, "creating directories for %q", f.Path)
		}
		if err := os.WriteFile(abs, final, 0o644); err != nil {
			return nil, request.Wrap(request.CodeFileWriteError, err, "writing %q", f.Path)
		}

		written = append(written, WrittenFile{Path: f.Path, Bytes: len(plain)})
	}
	return written, nil
}

// ResolvePath resolves rel as relative to root, rejecting anything absolute
// or that normalizes outside root — a workspace path must never escape its
// root. Path arithmetic is done with forward-slash ("path") semantics
// regardless of host OS, matching the wire format's POSIX-style paths; the
// final join converts to the host's separator.
func ResolvePath(root, rel string) (string, error) {
	if rel == "" {
		return "", request.NewError(request.CodeInvalidPath, "path must not be empty")
	}
	if path.IsAbs(rel) {
		return "", request.NewError(request.CodeInvalidPath, "path %q must be relative", rel)
	}

	cleaned := path.Clean(rel)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", request.NewError(request.CodeInvalidPath, "path %q escapes the workspace", rel)
	}

	return filepath.Join(root, filepath.FromSlash(cleaned)), nil
}
