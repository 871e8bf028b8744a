// Package stats maintains a thread-safe rolling summary of execution
// durations, per-step command counts, and cache hit/miss ratios.
package stats

import (
	"math"
	"sort"
	"sync"
)

// DurationStats is the snapshot's duration block: all fields are nil when no
// non-cached execution has completed yet ("duration statistics over an
// empty sample are all null").
type DurationStats struct {
	Average *float64 `json:"average"`
	Median  *float64 `json:"median"`
	Max     *float64 `json:"max"`
	Min     *float64 `json:"min"`
	Stddev  *float64 `json:"stddev"`
}

// CacheStats mirrors the response's "cache" block.
type CacheStats struct {
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// Snapshot is a point-in-time read of the aggregator.
type Snapshot struct {
	Ran      uint64         `json:"ran"`
	Duration DurationStats  `json:"duration"`
	Commands CommandsStats  `json:"commands"`
	Cache    CacheStats     `json:"cache"`
}

// CommandsStats mirrors the response's "commands" block.
type CommandsStats struct {
	Total uint64 `json:"total"`
}

// Aggregator accumulates statistics under one small mutex guarding its
// shared counters, the same way every other registry in this service
// protects its state. Mean and
// variance are computed with Welford's streaming algorithm so the running
// aggregate never needs the full sample; an exact median still requires
// the samples, so a bounded window of durations is retained for that one
// statistic (see DESIGN.md).
type Aggregator struct {
	mu sync.Mutex

	ran  uint64
	mean float64
	m2   float64
	min  float64
	max  float64

	recentDurations []float64 // bounded ring for median; see maxRetainedDurations

	commandsTotal uint64
	cacheHits     uint64
	cacheMisses   uint64
}

// maxRetainedDurations bounds the median sample so a long-running server
// doesn't grow this slice without limit; the mean/stddev remain exact
// regardless since they never depend on it.
const maxRetainedDurations = 10000

// New creates an empty Aggregator.
func New() *Aggregator {
	return &Aggregator{}
}

// RecordExecution registers one completed non-cached execution: its total
// duration (seconds) and the number of steps it ran. Only dispositions that
// produced a usable result call this; cache hits never do.
func (a *Aggregator) RecordExecution(durationSeconds float64, commandCount int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.ran++
	if a.ran == 1 {
		a.min, a.max = durationSeconds, durationSeconds
	} else {
		if durationSeconds < a.min {
			a.min = durationSeconds
		}
		if durationSeconds > a.max {
			a.max = durationSeconds
		}
	}

	delta := durationSeconds - a.mean
	a.mean += delta / float64(a.ran)
	delta2 := durationSeconds - a.mean
	a.m2 += delta * delta2

	a.recentDurations = append(a.recentDurations, durationSeconds)
	if len(a.recentDurations) > maxRetainedDurations {
		a.recentDurations = a.recentDurations[1:]
	}

	a.commandsTotal += uint64(commandCount)
}

// RecordCacheHit registers a request served from the cache.
func (a *Aggregator) RecordCacheHit() {
	a.mu.Lock()
	a.cacheHits++
	a.mu.Unlock()
}

// RecordCacheMiss registers a request that did not find a ready cache
// entry, whether or not it ended up running the chain itself (see
// cache.Cache.Do's leaderRan).
func (a *Aggregator) RecordCacheMiss() {
	a.mu.Lock()
	a.cacheMisses++
	a.mu.Unlock()
}

// Snapshot returns a consistent read of all counters.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	snap := Snapshot{
		Ran:      a.ran,
		Commands: CommandsStats{Total: a.commandsTotal},
		Cache: CacheStats{
			Hits:   a.cacheHits,
			Misses: a.cacheMisses,
		},
	}
	if total := a.cacheHits + a.cacheMisses; total > 0 {
		snap.Cache.HitRate = float64(a.cacheHits) / float64(total)
	}

	if a.ran > 0 {
		mean, min, max := a.mean, a.min, a.max
		variance := 0.0
		if a.ran > 1 {
			variance = a.m2 / float64(a.ran)
		}
		stddev := math.Sqrt(variance)
		median := computeMedian(a.recentDurations)

		snap.Duration = DurationStats{
			Average: &mean,
			Median:  &median,
			Max:     &max,
			Min:     &min,
			Stddev:  &stddev,
		}
	}

	return snap
}

func computeMedian(samples []float64) float64 {
	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)

	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
