package chain

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shellforge/execd/internal/request"
)

func TestRunAllStepsNoFailures(t *testing.T) {
	steps := []request.CommandStep{
		{Cmd: "echo a"},
		{Cmd: "echo b"},
	}
	res, err := Run(context.Background(), t.TempDir(), nil, "", 5*time.Second, steps, false)
	require.NoError(t, err)
	require.Len(t, res.Commands, 2)
	assert.Equal(t, 0, res.ExitCode)
	assert.False(t, res.TimedOut)
}

func TestRunRequiredStepAlwaysRuns(t *testing.T) {
	steps := []request.CommandStep{
		{Cmd: "exit 0"},
		{Cmd: "exit 1"},
		{Cmd: "echo ran", Required: true},
	}
	res, err := Run(context.Background(), t.TempDir(), nil, "", 5*time.Second, steps, false)
	require.NoError(t, err)
	require.Len(t, res.Commands, 3)
	assert.Equal(t, 1, res.Commands[1].ExitCode)
	assert.Equal(t, 0, res.ExitCode) // last executed step (the required cleanup) succeeded
}

func TestRunSkipsAfterNonRequiredFailureWithoutContinue(t *testing.T) {
	steps := []request.CommandStep{
		{Cmd: "exit 1"},
		{Cmd: "echo skipped"},
	}
	res, err := Run(context.Background(), t.TempDir(), nil, "", 5*time.Second, steps, false)
	require.NoError(t, err)
	require.Len(t, res.Commands, 1)
	assert.Equal(t, 1, res.ExitCode)
}

func TestRunContinuesAfterFailureWithContinueOnError(t *testing.T) {
	steps := []request.CommandStep{
		{Cmd: "exit 1"},
		{Cmd: "echo continued"},
	}
	res, err := Run(context.Background(), t.TempDir(), nil, "", 5*time.Second, steps, true)
	require.NoError(t, err)
	require.Len(t, res.Commands, 2)
	assert.Equal(t, 0, res.ExitCode)
}

func TestRunEmptyChain(t *testing.T) {
	res, err := Run(context.Background(), t.TempDir(), nil, "", 5*time.Second, nil, false)
	require.NoError(t, err)
	assert.Empty(t, res.Commands)
	assert.Equal(t, 0, res.ExitCode)
}

func TestRunDurationIsSumOfExecutedSteps(t *testing.T) {
	steps := []request.CommandStep{
		{Cmd: "sleep 0.1"},
		{Cmd: "sleep 0.1"},
	}
	res, err := Run(context.Background(), t.TempDir(), nil, "", 5*time.Second, steps, false)
	require.NoError(t, err)
	var sum time.Duration
	for _, c := range res.Commands {
		sum += c.Duration
	}
	assert.Equal(t, sum, res.Duration)
}

func TestRunFromCommandSingle(t *testing.T) {
	cmd := request.Command{Single: "echo hi"}
	res, err := RunFromCommand(context.Background(), t.TempDir(), nil, "", 5*time.Second, cmd, false)
	require.NoError(t, err)
	single := res.AsSingle()
	assert.Equal(t, "hi\n", single.Stdout)
}

func TestRunPerStepTimeoutOverride(t *testing.T) {
	override := 0.2
	steps := []request.CommandStep{
		{Cmd: "sleep 2", Timeout: &override},
	}
	res, err := Run(context.Background(), t.TempDir(), nil, "", 5*time.Second, steps, false)
	require.NoError(t, err)
	assert.True(t, res.Commands[0].TimedOut)
}
