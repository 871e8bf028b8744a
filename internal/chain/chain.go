// Package chain drives an ordered sequence of command steps under a
// required/continue-on-error continuation policy, producing a per-step
// transcript and a rolled-up result.
package chain

import (
	"context"
	"time"

	"github.com/shellforge/execd/internal/executor"
	"github.com/shellforge/execd/internal/request"
)

// StepTranscript is one executed step's record.
type StepTranscript struct {
	Cmd      string
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
	TimedOut bool
	Required bool
}

// Result is the chain's aggregate outcome plus the transcript of every step
// that actually ran (skipped steps are omitted).
type Result struct {
	Commands []StepTranscript
	ExitCode int
	TimedOut bool
	Duration time.Duration
}

// AsSingle converts a one-step result into the single-command response
// shape: the step's fields promoted to the top level, commands dropped.
func (r *Result) AsSingle() StepTranscript {
	if len(r.Commands) == 0 {
		return StepTranscript{}
	}
	return r.Commands[0]
}

// Run executes steps in order inside cwd with the given env and stdin,
// falling back to defaultTimeout for any step that doesn't override it.
//
// Continuation policy: a step always runs unless a *prior non-required* step
// has failed (non-zero exit), in which case it only runs if it is itself
// required or continueOnError is set. A required step's own failure does not
// gate later steps — only a failing non-required step does.
func Run(ctx context.Context, cwd string, env map[string]string, stdin string, defaultTimeout time.Duration, steps []request.CommandStep, continueOnError bool) (*Result, error) {
	result := &Result{}
	failed := false

	for _, step := range steps {
		if failed && !step.Required && !continueOnError {
			continue
		}

		timeout := defaultTimeout
		if step.Timeout != nil {
			timeout = time.Duration(*step.Timeout * float64(time.Second))
		}

		stepResult, err := executor.Run(ctx, step.Cmd, cwd, env, stdin, timeout)
		if err != nil {
			return nil, err
		}

		result.Commands = append(result.Commands, StepTranscript{
			Cmd:      step.Cmd,
			Stdout:   stepResult.Stdout,
			Stderr:   stepResult.Stderr,
			ExitCode: stepResult.ExitCode,
			Duration: stepResult.Duration,
			TimedOut: stepResult.TimedOut,
			Required: step.Required,
		})

		result.ExitCode = stepResult.ExitCode
		result.TimedOut = result.TimedOut || stepResult.TimedOut
		result.Duration += stepResult.Duration

		if stepResult.ExitCode != 0 && !step.Required {
			failed = true
		}
	}

	return result, nil
}

// RunFromCommand runs a request.Command — either the single-string shortcut
// (wrapped as one non-required step) or an explicit chain — returning the
// same Result shape either way.
func RunFromCommand(ctx context.Context, cwd string, env map[string]string, stdin string, defaultTimeout time.Duration, cmd request.Command, continueOnError bool) (*Result, error) {
	if !cmd.IsChain {
		return Run(ctx, cwd, env, stdin, defaultTimeout, []request.CommandStep{{Cmd: cmd.Single}}, continueOnError)
	}
	return Run(ctx, cwd, env, stdin, defaultTimeout, cmd.Steps, continueOnError)
}
