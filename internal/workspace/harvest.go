package workspace

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/shellforge/execd/internal/filecodec"
	"github.com/shellforge/execd/internal/request"
)

// Harvest walks root, matching every regular file's path (relative to root,
// '/'-separated) against the compiled patterns, and returns the decoded
// content of every match. Directories and symlinks that would resolve
// outside root are skipped. The returned map is marshaled by encoding/json
// with sorted keys, which happens to satisfy "harvested paths come back in
// lexicographic order" for free.
func Harvest(root string, patterns []string) (map[string]string, error) {
	if len(patterns) == 0 {
		return nil, nil
	}

	compiled := make([][]segment, 0, len(patterns))
	for _, p := range patterns {
		segs, err := compilePattern(p)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, segs)
	}

	out := map[string]string{}
	walkErr := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // best-effort: a transient stat error just skips that entry
		}
		if d.IsDir() {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			resolved, err := filepath.EvalSymlinks(p)
			if err != nil {
				return nil
			}
			if !withinRoot(root, resolved) {
				return nil
			}
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil
		}
		relSlash := filepath.ToSlash(rel)
		components := strings.Split(relSlash, "/")

		matched := false
		for _, segs := range compiled {
			if matchPath(segs, components) {
				matched = true
				break
			}
		}
		if !matched {
			return nil
		}
		if _, already := out[relSlash]; already {
			return nil
		}

		raw, err := os.ReadFile(p)
		if err != nil {
			return request.Wrap(request.CodeFileReadError, err, "reading harvested file %q", relSlash)
		}
		decoded, err := filecodec.Decode(relSlash, raw)
		if err != nil {
			return err
		}
		out[relSlash] = decoded
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return out, nil
}

func withinRoot(root, candidate string) bool {
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	candAbs, err := filepath.Abs(candidate)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(rootAbs, candAbs)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
