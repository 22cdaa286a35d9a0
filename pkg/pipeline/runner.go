package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/stackfuse/pkg/analyzer"
	"github.com/matzehuels/stackfuse/pkg/cache"
	"github.com/matzehuels/stackfuse/pkg/compat"
	"github.com/matzehuels/stackfuse/pkg/conflict"
	"github.com/matzehuels/stackfuse/pkg/errors"
	"github.com/matzehuels/stackfuse/pkg/observability"
	"github.com/matzehuels/stackfuse/pkg/resolve"
)

// Runner executes pipelines against a cache. It is stateless apart from
// the cache and logger; one Runner serves concurrent runs.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner. A nil cache disables caching, a nil keyer
// selects the default key derivation.
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if c == nil {
		c = cache.NewNullCache()
	}
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{Cache: c, Keyer: keyer, Logger: logger}
}

// Execute runs the full pipeline over the configured repositories.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}

	result := &Result{}

	analyzeStart := time.Now()
	graphs, hits, err := r.analyzeAll(ctx, opts)
	if err != nil {
		return nil, err
	}
	result.Graphs = graphs
	result.CacheInfo.GraphHits = hits
	result.CacheInfo.GraphMisses = len(graphs) - hits
	result.Stats.AnalyzeTime = time.Since(analyzeStart)
	for _, g := range graphs {
		result.Stats.ManifestCount += len(g.ManifestFiles)
		result.Stats.DependencyCount += len(g.Dependencies) + len(g.DevDependencies)
	}
	r.Logger.Info("analysis complete",
		"repos", len(graphs),
		"dependencies", result.Stats.DependencyCount,
		"cache_hits", hits,
		"duration", result.Stats.AnalyzeTime.Round(time.Millisecond))

	detectStart := time.Now()
	observability.Pipeline().OnDetectStart(ctx, len(graphs))
	inputs := make([]conflict.Input, len(graphs))
	for i, g := range graphs {
		inputs[i] = g.ConflictInput()
	}
	result.Conflicts = conflict.Detect(inputs)
	result.Stats.DetectTime = time.Since(detectStart)
	observability.Pipeline().OnDetectComplete(ctx, len(result.Conflicts.Conflicts), result.Stats.DetectTime)

	compatStart := time.Now()
	matrix, err := compat.Check(graphs)
	if err != nil {
		return nil, err
	}
	result.Compat = matrix
	result.Stats.CompatTime = time.Since(compatStart)
	if !matrix.OverallCompatible {
		if opts.Strict {
			return nil, errors.New(errors.ErrCodeCompatibility,
				"repositories are not pairwise compatible: %s", incompatiblePairs(matrix))
		}
		r.Logger.Warn("repositories are not pairwise compatible", "pairs", incompatiblePairs(matrix))
	}

	if opts.SkipSolve {
		return result, nil
	}

	reqs, err := resolve.Merge(graphs, result.Conflicts)
	if err != nil {
		return nil, err
	}
	result.Requirements = reqs

	if opts.OnSolveStart != nil {
		opts.OnSolveStart()
	}
	observability.Pipeline().OnSolveStart(ctx, len(reqs))
	solveStart := time.Now()

	resKey := r.resolutionKey(reqs, opts)
	if data, hit, cacheErr := r.Cache.Get(ctx, resKey); cacheErr == nil && hit {
		var cached resolve.Result
		if json.Unmarshal(data, &cached) == nil && cached.Success {
			r.Logger.Debug("resolution cache hit", "solver", cached.SolverUsed)
			observability.Cache().OnCacheHit(ctx, "resolution")
			result.CacheInfo.ResolutionHit = true
			result.Stats.SolveTime = time.Since(solveStart)
			observability.Pipeline().OnSolveComplete(ctx, string(cached.SolverUsed), result.Stats.SolveTime, nil)
			result.Resolution = &cached
			return result, nil
		}
		// Undecodable or failed entry: drop it and solve again.
		_ = r.Cache.Delete(ctx, resKey)
	}
	observability.Cache().OnCacheMiss(ctx, "resolution")

	chain := resolve.NewChain(resolve.ChainOptions{
		Solvers:      opts.Solvers,
		StageTimeout: opts.StageTimeout,
		Logger:       opts.Logger,
	})
	resolution, err := chain.Resolve(ctx, reqs, result.Conflicts)
	result.Stats.SolveTime = time.Since(solveStart)
	if err != nil {
		observability.Pipeline().OnSolveComplete(ctx, "", result.Stats.SolveTime, err)
		return nil, err
	}
	observability.Pipeline().OnSolveComplete(ctx, string(resolution.SolverUsed), result.Stats.SolveTime, nil)
	result.Resolution = resolution

	if data, marshalErr := json.Marshal(resolution); marshalErr == nil {
		if err := r.Cache.Set(ctx, resKey, data, opts.CacheTTL); err != nil {
			r.Logger.Warn("resolution cache write failed", "err", err)
		} else {
			observability.Cache().OnCacheSet(ctx, "resolution", len(data))
		}
	}
	return result, nil
}

// resolutionKey fingerprints the merged requirement set together with the
// solver lineup. A naive-only run must never serve a result cached from an
// external solver, or the other way around.
func (r *Runner) resolutionKey(reqs []resolve.Requirement, opts Options) string {
	var b strings.Builder
	for _, req := range reqs {
		b.WriteString(req.Render())
		b.WriteByte('\n')
	}
	if len(opts.Solvers) == 0 {
		b.WriteString("solvers:default\n")
	} else {
		for _, s := range opts.Solvers {
			b.WriteString("solver:")
			b.WriteString(s.Name())
			b.WriteByte('\n')
		}
	}
	return r.Keyer.ResolutionKey(cache.Hash([]byte(b.String())))
}

// analyzeAll fans analysis out across repositories, bounded by the
// concurrency option. Graph order matches input order regardless of
// completion order.
func (r *Runner) analyzeAll(ctx context.Context, opts Options) ([]*analyzer.Graph, int, error) {
	graphs := make([]*analyzer.Graph, len(opts.Repos))
	cached := make([]bool, len(opts.Repos))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(opts.Concurrency)
	for i, repo := range opts.Repos {
		group.Go(func() error {
			g, hit, err := r.AnalyzeRepo(groupCtx, repo, opts)
			if err != nil {
				return err
			}
			graphs[i] = g
			cached[i] = hit
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, 0, err
	}

	hits := 0
	for _, hit := range cached {
		if hit {
			hits++
		}
	}
	return graphs, hits, nil
}

// AnalyzeRepo analyzes one repository, consulting the graph cache first.
// The second return reports whether the cache served the graph.
func (r *Runner) AnalyzeRepo(ctx context.Context, repo RepoInput, opts Options) (*analyzer.Graph, bool, error) {
	key, err := r.graphKey(repo, opts.MaxDepth)
	if err == nil && key != "" {
		if data, hit, cacheErr := r.Cache.Get(ctx, key); cacheErr == nil && hit {
			var g analyzer.Graph
			if json.Unmarshal(data, &g) == nil && g.RepoID == repo.ID {
				r.Logger.Debug("graph cache hit", "repo", repo.ID)
				observability.Cache().OnCacheHit(ctx, "graph")
				return &g, true, nil
			}
			// Undecodable entry: drop it and re-analyze.
			_ = r.Cache.Delete(ctx, key)
		}
	}
	observability.Cache().OnCacheMiss(ctx, "graph")

	observability.Pipeline().OnAnalyzeStart(ctx, repo.ID)
	start := time.Now()
	g, err := analyzer.Analyze(ctx, repo.ID, repo.Root, analyzer.Options{
		MaxDepth: opts.MaxDepth,
		Logger:   opts.Logger,
	})
	if err != nil {
		observability.Pipeline().OnAnalyzeComplete(ctx, repo.ID, 0, time.Since(start), err)
		return nil, false, err
	}
	observability.Pipeline().OnAnalyzeComplete(ctx, repo.ID, len(g.Dependencies)+len(g.DevDependencies), time.Since(start), nil)

	if key != "" {
		if data, marshalErr := json.Marshal(g); marshalErr == nil {
			if err := r.Cache.Set(ctx, key, data, opts.CacheTTL); err != nil {
				r.Logger.Warn("graph cache write failed", "repo", repo.ID, "err", err)
			} else {
				observability.Cache().OnCacheSet(ctx, "graph", len(data))
			}
		}
	}
	return g, false, nil
}

// graphKey fingerprints a repository by its manifest contents. Any edit to
// any manifest changes the key.
func (r *Runner) graphKey(repo RepoInput, maxDepth int) (string, error) {
	paths, err := analyzer.FindManifests(repo.Root, maxDepth)
	if err != nil {
		return "", err
	}
	if len(paths) == 0 {
		return "", nil
	}

	var fingerprint strings.Builder
	for _, rel := range paths {
		data, err := os.ReadFile(filepath.Join(repo.Root, rel))
		if err != nil {
			// Disappearing file between walk and read: skip caching.
			return "", nil
		}
		fingerprint.WriteString(rel)
		fingerprint.WriteByte('\n')
		fingerprint.WriteString(cache.Hash(data))
		fingerprint.WriteByte('\n')
	}
	return r.Keyer.GraphKey(repo.Root, cache.Hash([]byte(fingerprint.String()))), nil
}

func incompatiblePairs(m *compat.Matrix) string {
	var pairs []string
	for _, p := range m.Pairs {
		if !p.Compatible {
			pairs = append(pairs, p.RepoA+"/"+p.RepoB)
		}
	}
	return strings.Join(pairs, ", ")
}
