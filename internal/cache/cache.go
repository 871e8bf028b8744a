// Package cache memoizes completed executions by request fingerprint,
// guaranteeing at most one concurrent execution per fingerprint.
package cache

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/shellforge/execd/internal/chain"
)

// DefaultCapacity bounds the in-memory cache when no explicit capacity is
// configured. Eviction is least-recently-used.
const DefaultCapacity = 4096

// StoredResult is the ExecutionResult fields cached per fingerprint, minus
// the per-request id and cached flag (the GLOSSARY's "stored result").
type StoredResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
	Duration time.Duration
	Files    map[string]string
	IsChain  bool                    // false: single-command shortcut, Stdout/Stderr are top-level
	Commands []chain.StepTranscript // meaningful only when IsChain; empty-but-non-nil for a zero-step chain
}

// Cache is a bounded, in-memory, fingerprint-keyed store of StoredResults
// with single-flighted misses.
type Cache struct {
	lru   *lru.Cache[string, StoredResult]
	group singleflight.Group
}

// New builds a Cache bounded at capacity entries.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	l, err := lru.New[string, StoredResult](capacity)
	if err != nil {
		// Only returns an error for capacity <= 0, already guarded above.
		panic(err)
	}
	return &Cache{lru: l}
}

// Get returns the stored result for key, if present. Cache lookups never
// fail — callers treat "not found" exactly like "degraded to a miss".
func (c *Cache) Get(key string) (StoredResult, bool) {
	return c.lru.Get(key)
}

// Do runs fn at most once across all concurrent callers sharing key,
// storing its result on success. leaderRan reports whether THIS call is the
// one whose fn was actually invoked (false for callers that piggybacked on
// a concurrent in-flight call) — callers use it to attribute
// ran/duration/commands statistics exactly once per actual execution, while
// every call (leader or follower) still counts as its own cache miss.
func (c *Cache) Do(key string, fn func() (StoredResult, error)) (result StoredResult, leaderRan bool, err error) {
	v, doErr, _ := c.group.Do(key, func() (any, error) {
		leaderRan = true
		res, ferr := fn()
		if ferr != nil {
			return StoredResult{}, ferr
		}
		c.lru.Add(key, res)
		return res, nil
	})
	if doErr != nil {
		return StoredResult{}, leaderRan, doErr
	}
	return v.(StoredResult), leaderRan, nil
}
