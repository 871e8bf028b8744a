package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"sort"
	"strconv"

	"github.com/shellforge/execd/internal/filecodec"
	"github.com/shellforge/execd/internal/request"
)

// Fingerprint computes the deterministic cache key for req: every field that
// can affect the execution's outcome contributes, in a
// fixed order; "force" and execution-time data never do. Every field is
// length-prefixed before hashing so that no ambiguity (e.g. "ab"+"c" vs
// "a"+"bc") can produce a colliding digest.
func Fingerprint(req *request.ExecutionRequest) (string, error) {
	h := sha256.New()

	writeCommand(h, req.Command)
	writeEnv(h, req.Env)
	if err := writeFiles(h, req.Files); err != nil {
		return "", err
	}
	writeLP(h, req.Stdin)
	writeLP(h, strconv.FormatFloat(req.Timeout, 'g', -1, 64))
	writeTrack(h, req.Track)
	writeBool(h, req.ContinueOnError)
	if req.HasEnvironment {
		writeLP(h, "env:"+req.Environment)
	} else {
		writeLP(h, "env:<none>")
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

func writeLP(h hash.Hash, s string) {
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(s)))
	h.Write(lenBuf[:])
	h.Write([]byte(s))
}

func writeBool(h hash.Hash, b bool) {
	if b {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}
}

func writeCommand(h hash.Hash, cmd request.Command) {
	if !cmd.IsChain {
		writeLP(h, "single")
		writeLP(h, cmd.Single)
		return
	}
	writeLP(h, "chain")
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(cmd.Steps)))
	h.Write(lenBuf[:])
	for _, step := range cmd.Steps {
		writeLP(h, step.Cmd)
		if step.Timeout != nil {
			writeLP(h, strconv.FormatFloat(*step.Timeout, 'g', -1, 64))
		} else {
			writeLP(h, "<default>")
		}
		writeBool(h, step.Required)
	}
}

func writeEnv(h hash.Hash, env map[string]string) {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		writeLP(h, k)
		writeLP(h, env[k])
	}
}

func writeFiles(h hash.Hash, files []request.FileEntry) error {
	sorted := make([]request.FileEntry, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(sorted)))
	h.Write(lenBuf[:])
	for _, f := range sorted {
		encoded, err := filecodec.EncodeUncompressed(f.Path, f.Value)
		if err != nil {
			return err
		}
		writeLP(h, f.Path)
		writeLP(h, string(encoded))
	}
	return nil
}

func writeTrack(h hash.Hash, patterns []string) {
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(patterns)))
	h.Write(lenBuf[:])
	for _, p := range patterns {
		writeLP(h, p)
	}
}
