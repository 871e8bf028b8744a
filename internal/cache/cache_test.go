package cache

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shellforge/execd/internal/request"
)

func TestFingerprintDeterministic(t *testing.T) {
	req := &request.ExecutionRequest{
		Command: request.Command{Single: "echo hi"},
		Env:     map[string]string{"A": "1"},
		Timeout: 10,
	}
	fp1, err := Fingerprint(req)
	require.NoError(t, err)
	fp2, err := Fingerprint(req)
	require.NoError(t, err)
	assert.Equal(t, fp1, fp2)
}

func TestFingerprintDiffersOnCommand(t *testing.T) {
	a := &request.ExecutionRequest{Command: request.Command{Single: "echo a"}, Timeout: 10}
	b := &request.ExecutionRequest{Command: request.Command{Single: "echo b"}, Timeout: 10}
	fpA, err := Fingerprint(a)
	require.NoError(t, err)
	fpB, err := Fingerprint(b)
	require.NoError(t, err)
	assert.NotEqual(t, fpA, fpB)
}

func TestFingerprintIgnoresForce(t *testing.T) {
	a := &request.ExecutionRequest{Command: request.Command{Single: "echo a"}, Timeout: 10, Force: false}
	b := &request.ExecutionRequest{Command: request.Command{Single: "echo a"}, Timeout: 10, Force: true}
	fpA, err := Fingerprint(a)
	require.NoError(t, err)
	fpB, err := Fingerprint(b)
	require.NoError(t, err)
	assert.Equal(t, fpA, fpB)
}

func TestCacheGetMiss(t *testing.T) {
	c := New(10)
	_, ok := c.Get("nope")
	assert.False(t, ok)
}

func TestCacheDoStoresResult(t *testing.T) {
	c := New(10)
	result, leaderRan, err := c.Do("k", func() (StoredResult, error) {
		return StoredResult{Stdout: "hi"}, nil
	})
	require.NoError(t, err)
	assert.True(t, leaderRan)
	assert.Equal(t, "hi", result.Stdout)

	stored, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "hi", stored.Stdout)
}

func TestCacheDoSingleFlightsConcurrentCallers(t *testing.T) {
	c := New(10)
	var calls int64
	var wg sync.WaitGroup
	start := make(chan struct{})

	results := make([]bool, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			<-start
			_, leaderRan, err := c.Do("same-key", func() (StoredResult, error) {
				atomic.AddInt64(&calls, 1)
				return StoredResult{Stdout: "done"}, nil
			})
			require.NoError(t, err)
			results[idx] = leaderRan
		}(i)
	}
	close(start)
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt64(&calls), int64(20))
	leaders := 0
	for _, r := range results {
		if r {
			leaders++
		}
	}
	assert.Equal(t, int(atomic.LoadInt64(&calls)), leaders)
}
