// Package dispatch threads one request through validation, the cache,
// environment checkout, the chain runner, and the stats aggregator — the
// single coroutine each HTTP request runs inside.
package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shellforge/execd/internal/cache"
	"github.com/shellforge/execd/internal/chain"
	"github.com/shellforge/execd/internal/environment"
	"github.com/shellforge/execd/internal/request"
	"github.com/shellforge/execd/internal/stats"
	"github.com/shellforge/execd/internal/workspace"
)

// Result is the assembled response of one /v1/execute call.
type Result struct {
	ID          string
	Cached      bool
	Stdout      string
	Stderr      string
	ExitCode    int
	TimedOut    bool
	Duration    time.Duration
	IsChain     bool
	Commands    []chain.StepTranscript // meaningful only when IsChain
	Files       map[string]string
	Environment *EnvironmentInfo // nil when the request named no environment
}

// EnvironmentInfo reports which named environment a request ran against and
// whether the run committed its writes to that environment's shared base
// (true for `never` mode) or discarded its own throwaway copy (`fork`/`base`).
type EnvironmentInfo struct {
	Name      string
	Committed bool
}

// Dispatcher is the top-level coroutine each /v1/execute call runs inside:
// it owns no state of its own beyond references to the components it
// threads together — one execute method, no persistence of its own.
type Dispatcher struct {
	environments *environment.Manager
	cache        *cache.Cache
	stats        *stats.Aggregator
	logger       *zap.Logger
}

// New builds a Dispatcher over already-constructed components.
func New(environments *environment.Manager, c *cache.Cache, s *stats.Aggregator, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		environments: environments,
		cache:        c,
		stats:        s,
		logger:       logger.Named("dispatch"),
	}
}

// Execute runs the full dispatch algorithm for one already-parsed request.
//
// Steps:
//  1. Fingerprint the request.
//  2. Checkout a workspace: named environment (honoring its concurrency
//     mode) or an ephemeral directory.
//  3. Unless force, consult the cache; a hit short-circuits everything
//     below it.
//  4. On a miss, materialize files over the workspace (request files
//     overlay the environment's own files — request values win), run the
//     chain, harvest tracked files, store the result, and update stats.
//  5. Always release the checkout before returning.
func (d *Dispatcher) Execute(ctx context.Context, req *request.ExecutionRequest) (*Result, error) {
	fingerprint, err := cache.Fingerprint(req)
	if err != nil {
		return nil, err
	}

	checkout, err := d.acquireWorkspace(req)
	if err != nil {
		return nil, err
	}
	defer checkout.Release()

	var envInfo *EnvironmentInfo
	if req.HasEnvironment {
		envInfo = &EnvironmentInfo{Name: req.Environment, Committed: checkout.Committed}
	}

	if !req.Force {
		if stored, ok := d.cache.Get(fingerprint); ok {
			d.stats.RecordCacheHit()
			return assembleResult(stored, true, envInfo), nil
		}
	}

	stored, leaderRan, err := d.cache.Do(fingerprint, func() (cache.StoredResult, error) {
		return d.run(ctx, checkout.Root, req)
	})
	if err != nil {
		return nil, err
	}

	d.stats.RecordCacheMiss()
	if leaderRan {
		d.stats.RecordExecution(stored.Duration.Seconds(), commandCount(stored))
	}

	return assembleResult(stored, false, envInfo), nil
}

// acquireWorkspace checks out the named environment or allocates an
// ephemeral directory when the request names none.
func (d *Dispatcher) acquireWorkspace(req *request.ExecutionRequest) (*environment.Checkout, error) {
	if req.HasEnvironment {
		return d.environments.Checkout(req.Environment)
	}
	return d.environments.NewEphemeralWorkspace()
}

// run materializes files, drives the chain, and harvests tracked output —
// the work that only happens on an actual cache miss.
func (d *Dispatcher) run(ctx context.Context, root string, req *request.ExecutionRequest) (cache.StoredResult, error) {
	if _, err := workspace.Materialize(root, req.Files); err != nil {
		return cache.StoredResult{}, err
	}

	timeout := time.Duration(req.Timeout * float64(time.Second))
	result, err := chain.RunFromCommand(ctx, root, req.Env, req.Stdin, timeout, req.Command, req.ContinueOnError)
	if err != nil {
		return cache.StoredResult{}, err
	}

	var files map[string]string
	if req.HasTrack && len(req.Track) > 0 {
		harvested, err := workspace.Harvest(root, req.Track)
		if err != nil {
			return cache.StoredResult{}, err
		}
		files = harvested
	}

	stored := cache.StoredResult{
		ExitCode: result.ExitCode,
		TimedOut: result.TimedOut,
		Duration: result.Duration,
		Files:    files,
		IsChain:  req.Command.IsChain,
	}
	if req.Command.IsChain {
		if result.Commands != nil {
			stored.Commands = result.Commands
		} else {
			stored.Commands = []chain.StepTranscript{}
		}
	} else {
		single := result.AsSingle()
		stored.Stdout = single.Stdout
		stored.Stderr = single.Stderr
	}
	return stored, nil
}

// commandCount reports how many per-step executions this result represents,
// for StatsAggregator's commands.total: one for the single-command
// shortcut, len(Commands) for an explicit chain (including zero for an
// empty chain).
func commandCount(stored cache.StoredResult) int {
	if stored.IsChain {
		return len(stored.Commands)
	}
	return 1
}

func assembleResult(stored cache.StoredResult, cached bool, envInfo *EnvironmentInfo) *Result {
	return &Result{
		ID:          uuid.NewString(),
		Cached:      cached,
		Stdout:      stored.Stdout,
		Stderr:      stored.Stderr,
		ExitCode:    stored.ExitCode,
		TimedOut:    stored.TimedOut,
		Duration:    stored.Duration,
		IsChain:     stored.IsChain,
		Commands:    stored.Commands,
		Files:       stored.Files,
		Environment: envInfo,
	}
}
