package resolve

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stackfuse/pkg/conflict"
	"github.com/matzehuels/stackfuse/pkg/errors"
	"github.com/matzehuels/stackfuse/pkg/observability"
)

// DefaultStageTimeout bounds one solver stage attempt.
const DefaultStageTimeout = 2 * time.Minute

// Solver is one resolution strategy.
type Solver interface {
	// Name returns the strategy identifier for logs and notes.
	Name() string
	// Kind returns which chain stage this solver fills.
	Kind() SolverKind
	// Probe reports whether the solver is usable in this environment.
	Probe(ctx context.Context) bool
	// Resolve pins the merged requirement set.
	Resolve(ctx context.Context, reqs []Requirement) (*Result, error)
}

// probed wraps a Solver so availability is checked once per process, not
// per request: re-probing would pay subprocess startup cost on every call.
type probed struct {
	Solver
	once      sync.Once
	available bool
}

func (p *probed) Probe(ctx context.Context) bool {
	p.once.Do(func() {
		p.available = p.Solver.Probe(ctx)
		observability.Solver().OnProbe(ctx, p.Name(), p.available)
	})
	return p.available
}

// Chain drives the fallback ladder: primary, then secondary, then naive.
// Stages advance on any failure; only exhausting every stage is fatal.
type Chain struct {
	stages  []*probed
	timeout time.Duration
	logger  *log.Logger
}

// ChainOptions configures a solver chain.
type ChainOptions struct {
	Solvers      []Solver      // Stage order; default uv, pip-compile, naive
	StageTimeout time.Duration // Per-stage bound (default 2m)
	Logger       *log.Logger
}

// NewChain builds the fallback chain. With no explicit solvers the default
// ladder is used: uv, pip-compile, then the in-process naive fallback.
func NewChain(opts ChainOptions) *Chain {
	solvers := opts.Solvers
	if len(solvers) == 0 {
		solvers = []Solver{NewUvSolver(""), NewPipCompileSolver(""), NewNaiveSolver()}
	}
	timeout := opts.StageTimeout
	if timeout <= 0 {
		timeout = DefaultStageTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}

	c := &Chain{timeout: timeout, logger: logger}
	for _, s := range solvers {
		c.stages = append(c.stages, &probed{Solver: s})
	}
	return c
}

// Resolve walks the ladder until a stage produces a valid resolution. The
// conflict report, when given, feeds the ConflictsResolved count on the
// produced result.
func (c *Chain) Resolve(ctx context.Context, reqs []Requirement, report *conflict.Report) (*Result, error) {
	resolved := 0
	if report != nil {
		resolved = len(report.Conflicts)
	}

	var lastErr error
	for _, stage := range c.stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !stage.Probe(ctx) {
			c.logger.Debug("solver unavailable, falling through", "solver", stage.Name())
			lastErr = errors.New(errors.ErrCodeSolverUnavailable, "%s unavailable", stage.Name())
			continue
		}

		stageCtx, cancel := context.WithTimeout(ctx, c.timeout)
		start := time.Now()
		result, err := stage.Resolve(stageCtx, reqs)
		cancel()
		observability.Solver().OnRun(ctx, stage.Name(), time.Since(start), err)

		switch {
		case err == nil && result != nil:
			result.ConflictsResolved = resolved
			c.logger.Info("resolution complete",
				"solver", stage.Name(),
				"packages", len(result.Packages),
				"duration", time.Since(start).Round(time.Millisecond))
			return result, nil
		case stageCtx.Err() == context.DeadlineExceeded:
			// Partial output from a killed process is discarded, never
			// parsed; the timeout only advances the ladder.
			lastErr = errors.New(errors.ErrCodeResolutionTimeout, "%s exceeded %s", stage.Name(), c.timeout)
			c.logger.Warn("solver stage timed out", "solver", stage.Name(), "timeout", c.timeout)
		default:
			lastErr = err
			c.logger.Warn("solver stage failed", "solver", stage.Name(), "err", err)
		}
	}

	return nil, errors.Wrap(errors.ErrCodeResolutionFailed, lastErr, "all solver stages exhausted")
}
