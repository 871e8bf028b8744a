package stats

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotEmptyIsNull(t *testing.T) {
	a := New()
	snap := a.Snapshot()
	assert.Equal(t, uint64(0), snap.Ran)
	assert.Nil(t, snap.Duration.Average)
	assert.Nil(t, snap.Duration.Median)
	assert.Equal(t, 0.0, snap.Cache.HitRate)
}

func TestRecordExecutionUpdatesDuration(t *testing.T) {
	a := New()
	a.RecordExecution(1.0, 2)
	a.RecordExecution(3.0, 1)

	snap := a.Snapshot()
	require.NotNil(t, snap.Duration.Average)
	assert.InDelta(t, 2.0, *snap.Duration.Average, 1e-9)
	assert.InDelta(t, 1.0, *snap.Duration.Min, 1e-9)
	assert.InDelta(t, 3.0, *snap.Duration.Max, 1e-9)
	assert.Equal(t, uint64(2), snap.Ran)
	assert.Equal(t, uint64(3), snap.Commands.Total)
}

func TestMedianOddAndEven(t *testing.T) {
	a := New()
	for _, d := range []float64{1, 2, 3} {
		a.RecordExecution(d, 1)
	}
	snap := a.Snapshot()
	assert.InDelta(t, 2.0, *snap.Duration.Median, 1e-9)

	a2 := New()
	for _, d := range []float64{1, 2, 3, 4} {
		a2.RecordExecution(d, 1)
	}
	snap2 := a2.Snapshot()
	assert.InDelta(t, 2.5, *snap2.Duration.Median, 1e-9)
}

func TestCacheHitRate(t *testing.T) {
	a := New()
	a.RecordCacheHit()
	a.RecordCacheHit()
	a.RecordCacheMiss()
	snap := a.Snapshot()
	assert.Equal(t, uint64(2), snap.Cache.Hits)
	assert.Equal(t, uint64(1), snap.Cache.Misses)
	assert.InDelta(t, 2.0/3.0, snap.Cache.HitRate, 1e-9)
}

func TestConcurrentUpdatesAreConsistent(t *testing.T) {
	a := New()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.RecordExecution(1.0, 1)
		}()
	}
	wg.Wait()
	snap := a.Snapshot()
	assert.Equal(t, uint64(100), snap.Ran)
	assert.Equal(t, uint64(100), snap.Commands.Total)
}
