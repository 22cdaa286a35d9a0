// Package pipeline runs the full analyze → detect → compat → merge → solve
// sequence over a set of repositories. CLI commands and the HTTP server
// both drive it, so behavior and caching stay identical across entry
// points.
//
// Repositories are analyzed concurrently; conflict detection is the join
// barrier. Analysis results may be cached keyed by manifest content, so a
// repository whose manifests have not changed is never re-walked.
package pipeline

import (
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stackfuse/pkg/analyzer"
	"github.com/matzehuels/stackfuse/pkg/compat"
	"github.com/matzehuels/stackfuse/pkg/conflict"
	"github.com/matzehuels/stackfuse/pkg/errors"
	"github.com/matzehuels/stackfuse/pkg/resolve"
)

const (
	// DefaultConcurrency bounds parallel repository analysis.
	DefaultConcurrency = 4

	// DefaultCacheTTL expires cached graphs even when manifests look
	// unchanged, guarding against stale fingerprints.
	DefaultCacheTTL = 24 * time.Hour
)

// RepoInput names one repository to include.
type RepoInput struct {
	ID   string // Identifier used in reports; defaults to the directory name
	Root string // Filesystem root of the checkout
}

// Options configures one pipeline run.
type Options struct {
	Repos []RepoInput

	MaxDepth     int           // Manifest search depth (default analyzer.DefaultMaxDepth)
	Concurrency  int           // Parallel analyses (default 4)
	StageTimeout time.Duration // Per solver stage (default resolve.DefaultStageTimeout)
	CacheTTL     time.Duration // Graph cache entry lifetime (default 24h)

	// SkipSolve stops after compatibility checking; analyze-only callers
	// set it.
	SkipSolve bool

	// Strict turns an incompatible pair into an error instead of a
	// recorded verdict.
	Strict bool

	// Solvers overrides the default solver ladder.
	Solvers []resolve.Solver

	// OnSolveStart, when set, fires once analysis and compatibility
	// checks finish and solving begins. Callers tracking job state hook
	// it.
	OnSolveStart func()

	Logger *log.Logger
}

// ValidateAndSetDefaults checks the options and fills in defaults.
func (o *Options) ValidateAndSetDefaults() error {
	if len(o.Repos) == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "no repositories given")
	}
	seen := make(map[string]bool, len(o.Repos))
	for i, repo := range o.Repos {
		if repo.Root == "" {
			return errors.New(errors.ErrCodeInvalidInput, "repository %d has no root path", i)
		}
		if repo.ID == "" {
			return errors.New(errors.ErrCodeInvalidInput, "repository %q has no id", repo.Root)
		}
		if seen[repo.ID] {
			return errors.New(errors.ErrCodeInvalidInput, "duplicate repository id %q", repo.ID)
		}
		seen[repo.ID] = true
	}

	if o.MaxDepth <= 0 {
		o.MaxDepth = analyzer.DefaultMaxDepth
	}
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.StageTimeout <= 0 {
		o.StageTimeout = resolve.DefaultStageTimeout
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = DefaultCacheTTL
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return nil
}

// Stats records per-stage timing and totals for one run.
type Stats struct {
	AnalyzeTime time.Duration
	DetectTime  time.Duration
	CompatTime  time.Duration
	SolveTime   time.Duration

	ManifestCount   int
	DependencyCount int
}

// CacheInfo reports cache effectiveness for one run.
type CacheInfo struct {
	GraphHits   int
	GraphMisses int

	// ResolutionHit is set when a previous solve of the identical
	// requirement set (with the same solver lineup) was served from cache.
	ResolutionHit bool
}

// Result is the complete outcome of one pipeline run. Resolution is nil
// when SkipSolve is set.
type Result struct {
	Graphs       []*analyzer.Graph
	Conflicts    *conflict.Report
	Compat       *compat.Matrix
	Requirements []resolve.Requirement
	Resolution   *resolve.Result

	Stats     Stats
	CacheInfo CacheInfo
}
