// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard
// dependencies on specific observability backends. Consumers register
// hooks at startup to receive events about pipeline stages, cache
// operations, and solver subprocess runs.
//
// The package uses a simple hooks pattern: hook interfaces per event
// category, no-op defaults, and registration from main. Libraries call
// hooks to emit events:
//
//	observability.Pipeline().OnAnalyzeStart(ctx, repoID)
//	// ... walk manifests ...
//	observability.Pipeline().OnAnalyzeComplete(ctx, repoID, depCount, duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// PipelineHooks receives events from the resolution pipeline.
type PipelineHooks interface {
	// Analysis events, one pair per repository.
	OnAnalyzeStart(ctx context.Context, repoID string)
	OnAnalyzeComplete(ctx context.Context, repoID string, depCount int, duration time.Duration, err error)

	// Conflict detection events, one pair per run.
	OnDetectStart(ctx context.Context, repoCount int)
	OnDetectComplete(ctx context.Context, conflictCount int, duration time.Duration)

	// Solve events, one pair per run.
	OnSolveStart(ctx context.Context, requirementCount int)
	OnSolveComplete(ctx context.Context, solver string, duration time.Duration, err error)
}

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// SolverHooks receives events from external solver subprocesses.
type SolverHooks interface {
	// OnProbe records an availability probe and its outcome.
	OnProbe(ctx context.Context, solver string, available bool)

	// OnRun records one subprocess invocation.
	OnRun(ctx context.Context, solver string, duration time.Duration, err error)
}

// NoopPipelineHooks is a no-op implementation of PipelineHooks.
type NoopPipelineHooks struct{}

func (NoopPipelineHooks) OnAnalyzeStart(context.Context, string)                            {}
func (NoopPipelineHooks) OnAnalyzeComplete(context.Context, string, int, time.Duration, error) {
}
func (NoopPipelineHooks) OnDetectStart(context.Context, int)                      {}
func (NoopPipelineHooks) OnDetectComplete(context.Context, int, time.Duration)    {}
func (NoopPipelineHooks) OnSolveStart(context.Context, int)                       {}
func (NoopPipelineHooks) OnSolveComplete(context.Context, string, time.Duration, error) {
}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopSolverHooks is a no-op implementation of SolverHooks.
type NoopSolverHooks struct{}

func (NoopSolverHooks) OnProbe(context.Context, string, bool)              {}
func (NoopSolverHooks) OnRun(context.Context, string, time.Duration, error) {
}

var (
	pipelineHooks PipelineHooks = NoopPipelineHooks{}
	cacheHooks    CacheHooks    = NoopCacheHooks{}
	solverHooks   SolverHooks   = NoopSolverHooks{}
	hooksMu       sync.RWMutex
)

// SetPipelineHooks registers custom pipeline hooks.
// This should be called once at application startup before any pipeline operations.
func SetPipelineHooks(h PipelineHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		pipelineHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
// This should be called once at application startup before any cache operations.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetSolverHooks registers custom solver hooks.
// This should be called once at application startup before any solver runs.
func SetSolverHooks(h SolverHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		solverHooks = h
	}
}

// Pipeline returns the registered pipeline hooks.
func Pipeline() PipelineHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return pipelineHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// Solver returns the registered solver hooks.
func Solver() SolverHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return solverHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	pipelineHooks = NoopPipelineHooks{}
	cacheHooks = NoopCacheHooks{}
	solverHooks = NoopSolverHooks{}
}
