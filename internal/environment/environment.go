// Package environment maintains the registry of named, long-lived working
// directories and leases per-execution workspaces under one of three
// concurrency policies.
package environment

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/shellforge/execd/internal/request"
	"github.com/shellforge/execd/internal/workspace"
)

// Mode is one of the three environment concurrency policies: exclusive,
// forking, or fresh-from-base.
type Mode string

const (
	ModeNever Mode = "never"
	ModeFork  Mode = "fork"
	ModeBase  Mode = "base"
)

func parseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeNever, ModeFork, ModeBase:
		return Mode(s), nil
	default:
		return "", request.NewError(request.CodeInvalidConcurrency, "unknown concurrency_mode %q", s)
	}
}

// entry is one registered environment.
type entry struct {
	name     string
	mode     Mode
	baseRoot string

	locked atomic.Bool // never-mode exclusive try-lock

	mu        sync.Mutex
	checkouts map[string]time.Time // fork/base checkout root -> acquired-at, for the reaper
}

// Checkout is a leased workspace root for one execution.
type Checkout struct {
	Root      string
	Committed bool // true when writes land on the shared base (never mode)
	release   func()
}

// Release returns the checkout: for `never` it frees the lock; for
// `fork`/`base` it deletes the copy. Safe to call at most once.
func (c *Checkout) Release() {
	if c == nil || c.release == nil {
		return
	}
	c.release()
}

// Manager is the registry of named environments plus ephemeral-workspace
// bookkeeping for requests that don't name one.
type Manager struct {
	mu      sync.RWMutex
	entries map[string]*entry
	root    string // base directory under which all environment/ephemeral trees live
	logger  *zap.Logger
}

// New creates a Manager rooted at root (created if absent).
func New(root string, logger *zap.Logger) (*Manager, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating environment root: %w", err)
	}
	return &Manager{
		entries: map[string]*entry{},
		root:    root,
		logger:  logger.Named("environment"),
	}, nil
}

// Create registers a new named environment, materializing files into its
// base directory.
func (m *Manager) Create(name, modeStr string, files []request.FileEntry) ([]workspace.WrittenFile, error) {
	if name == "" {
		return nil, request.NewError(request.CodeMissingRequiredField, "missing required field %q", "name")
	}
	mode, err := parseMode(modeStr)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if _, exists := m.entries[name]; exists {
		m.mu.Unlock()
		return nil, request.NewError(request.CodeEnvironmentExists, "environment %q already exists", name)
	}
	// Reserve the name before releasing the lock so two concurrent
	// creations of the same name can't both win.
	e := &entry{name: name, mode: mode, checkouts: map[string]time.Time{}}
	m.entries[name] = e
	m.mu.Unlock()

	baseRoot := filepath.Join(m.root, "envs", sanitizeName(name))
	if err := os.MkdirAll(baseRoot, 0o755); err != nil {
		m.removeEntry(name)
		return nil, fmt.Errorf("creating environment base directory: %w", err)
	}
	written, err := workspace.Materialize(baseRoot, files)
	if err != nil {
		m.removeEntry(name)
		return nil, err
	}
	e.baseRoot = baseRoot
	return written, nil
}

func (m *Manager) removeEntry(name string) {
	m.mu.Lock()
	delete(m.entries, name)
	m.mu.Unlock()
}

// Checkout leases a workspace for name per its concurrency mode.
func (m *Manager) Checkout(name string) (*Checkout, error) {
	m.mu.RLock()
	e, ok := m.entries[name]
	m.mu.RUnlock()
	if !ok {
		return nil, request.NewError(request.CodeEnvironmentNotFound, "environment %q not found", name)
	}

	switch e.mode {
	case ModeNever:
		if !e.locked.CompareAndSwap(false, true) {
			return nil, request.NewError(request.CodeEnvironmentLocked, "environment %q is in use", name)
		}
		return &Checkout{
			Root:      e.baseRoot,
			Committed: true,
			release:   func() { e.locked.Store(false) },
		}, nil

	case ModeFork, ModeBase:
		root, err := m.forkCheckout(e)
		if err != nil {
			return nil, err
		}
		return &Checkout{Root: root, Committed: false, release: func() { m.releaseForkCheckout(e, root) }}, nil

	default:
		return nil, request.NewError(request.CodeInvalidConcurrency, "unknown concurrency_mode %q", e.mode)
	}
}

func (m *Manager) forkCheckout(e *entry) (string, error) {
	dest := filepath.Join(m.root, "checkouts", sanitizeName(e.name)+"-"+randSuffix())
	if err := copyTree(e.baseRoot, dest); err != nil {
		return "", fmt.Errorf("copying environment %q: %w", e.name, err)
	}
	e.mu.Lock()
	e.checkouts[dest] = time.Now()
	e.mu.Unlock()
	return dest, nil
}

func (m *Manager) releaseForkCheckout(e *entry, root string) {
	e.mu.Lock()
	delete(e.checkouts, root)
	e.mu.Unlock()
	_ = os.RemoveAll(root)
}

// NewEphemeralWorkspace allocates a throwaway directory for a request with
// no named environment. The returned release deletes it.
func (m *Manager) NewEphemeralWorkspace() (*Checkout, error) {
	dest := filepath.Join(m.root, "ephemeral", randSuffix())
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return nil, fmt.Errorf("creating ephemeral workspace: %w", err)
	}
	return &Checkout{
		Root:      dest,
		Committed: false,
		release:   func() { _ = os.RemoveAll(dest) },
	}, nil
}

// ReapStale force-releases fork/base checkouts older than maxAge — a
// backstop for leases orphaned by a crashed request goroutine rather than
// the normal release-on-completion path.
func (m *Manager) ReapStale(maxAge time.Duration) int {
	m.mu.RLock()
	entries := make([]*entry, 0, len(m.entries))
	for _, e := range m.entries {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	reaped := 0
	cutoff := time.Now().Add(-maxAge)
	for _, e := range entries {
		e.mu.Lock()
		for root, acquiredAt := range e.checkouts {
			if acquiredAt.Before(cutoff) {
				delete(e.checkouts, root)
				_ = os.RemoveAll(root)
				reaped++
			}
		}
		e.mu.Unlock()
	}
	if reaped > 0 {
		m.logger.Info("reaped stale environment checkouts", zap.Int("count", reaped))
	}
	return reaped
}
