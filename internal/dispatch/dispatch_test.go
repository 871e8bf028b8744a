package dispatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shellforge/execd/internal/cache"
	"github.com/shellforge/execd/internal/environment"
	"github.com/shellforge/execd/internal/request"
	"github.com/shellforge/execd/internal/stats"
)

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	envs, err := environment.New(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	return New(envs, cache.New(16), stats.New(), zap.NewNop())
}

func TestExecuteSingleCommand(t *testing.T) {
	d := newTestDispatcher(t)
	req, err := request.Parse([]byte(`{"command":"echo hi"}`))
	require.NoError(t, err)

	result, err := d.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, result.Cached)
	assert.False(t, result.IsChain)
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, "hi\n", result.Stdout)
	assert.NotEmpty(t, result.ID)
	assert.Nil(t, result.Environment)
}

func TestExecuteSecondIdenticalRequestIsCached(t *testing.T) {
	d := newTestDispatcher(t)
	req, err := request.Parse([]byte(`{"command":"echo hi"}`))
	require.NoError(t, err)

	first, err := d.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := d.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, first.Stdout, second.Stdout)
}

func TestExecuteForceBypassesCache(t *testing.T) {
	d := newTestDispatcher(t)
	req, err := request.Parse([]byte(`{"command":"echo hi"}`))
	require.NoError(t, err)

	_, err = d.Execute(context.Background(), req)
	require.NoError(t, err)

	forced, err := request.Parse([]byte(`{"command":"echo hi","force":true}`))
	require.NoError(t, err)
	result, err := d.Execute(context.Background(), forced)
	require.NoError(t, err)
	assert.False(t, result.Cached)
}

func TestExecuteEmptyChain(t *testing.T) {
	d := newTestDispatcher(t)
	req, err := request.Parse([]byte(`{"command":[]}`))
	require.NoError(t, err)

	result, err := d.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.IsChain)
	assert.Equal(t, 0, result.ExitCode)
	assert.NotNil(t, result.Commands)
	assert.Len(t, result.Commands, 0)
}

func TestExecuteWithFilesAndTrack(t *testing.T) {
	d := newTestDispatcher(t)
	req, err := request.Parse([]byte(`{"command":"cat a.txt > b.txt","files":{"a.txt":"hello"},"track":["*.txt"]}`))
	require.NoError(t, err)

	result, err := d.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	require.NotNil(t, result.Files)
	assert.Equal(t, "hello", result.Files["a.txt"])
	assert.Equal(t, "hello", result.Files["b.txt"])
}

func TestExecuteNamedEnvironmentNotFound(t *testing.T) {
	d := newTestDispatcher(t)
	req, err := request.Parse([]byte(`{"command":"echo hi","environment":"nope"}`))
	require.NoError(t, err)

	_, err = d.Execute(context.Background(), req)
	require.Error(t, err)
}

func TestExecuteNeverModeEnvironmentReportsCommitted(t *testing.T) {
	envs, err := environment.New(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	_, err = envs.Create("x", "never", nil)
	require.NoError(t, err)
	d := New(envs, cache.New(16), stats.New(), zap.NewNop())

	req, err := request.Parse([]byte(`{"command":"echo hi","environment":"x"}`))
	require.NoError(t, err)

	result, err := d.Execute(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, result.Environment)
	assert.Equal(t, "x", result.Environment.Name)
	assert.True(t, result.Environment.Committed)
}

func TestExecuteForkModeEnvironmentReportsUncommitted(t *testing.T) {
	envs, err := environment.New(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	_, err = envs.Create("f", "fork", nil)
	require.NoError(t, err)
	d := New(envs, cache.New(16), stats.New(), zap.NewNop())

	req, err := request.Parse([]byte(`{"command":"echo hi","environment":"f"}`))
	require.NoError(t, err)

	result, err := d.Execute(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, result.Environment)
	assert.Equal(t, "f", result.Environment.Name)
	assert.False(t, result.Environment.Committed)
}
