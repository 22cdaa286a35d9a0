package resolve

import (
	"context"
	"fmt"
	"strings"

	"github.com/matzehuels/stackfuse/pkg/verspec"
)

// NaiveSolver is the terminal fallback. It performs no real constraint
// solving: for each package it takes the most specific constraint already
// chosen during merging and assumes it is satisfiable, noting that the
// result is unverified. It needs no external tools and always produces
// output.
type NaiveSolver struct{}

// NewNaiveSolver returns the in-process fallback solver.
func NewNaiveSolver() *NaiveSolver { return &NaiveSolver{} }

func (n *NaiveSolver) Name() string     { return "naive" }
func (n *NaiveSolver) Kind() SolverKind { return SolverNaive }

// Probe always succeeds: there is nothing external to check.
func (n *NaiveSolver) Probe(ctx context.Context) bool { return true }

// Resolve assumes each winning constraint is satisfiable and derives an
// anchor version from it: the pin itself, or the nearest declared bound.
func (n *NaiveSolver) Resolve(ctx context.Context, reqs []Requirement) (*Result, error) {
	var (
		packages []ResolvedPackage
		preview  strings.Builder
		unpinned int
	)
	preview.WriteString("# naive resolution (constraints assumed satisfiable, not verified)\n")

	for _, req := range reqs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		version := anchorVersion(req.Spec)
		if version == "" {
			unpinned++
			fmt.Fprintf(&preview, "%s  # unconstrained\n", req.Name)
			packages = append(packages, ResolvedPackage{Name: req.Name})
			continue
		}
		fmt.Fprintf(&preview, "%s==%s\n", req.Name, version)
		packages = append(packages, ResolvedPackage{Name: req.Name, ExactVersion: version})
	}

	notes := []string{
		"naive fallback: versions are anchors from declared constraints, not solved pins; verify before use",
	}
	if unpinned > 0 {
		notes = append(notes, fmt.Sprintf("%d package(s) had no constraint and were left unpinned", unpinned))
	}

	return &Result{
		Success:         true,
		Packages:        packages,
		LockfilePreview: strings.TrimSpace(preview.String()),
		Notes:           notes,
		SolverUsed:      SolverNaive,
	}, nil
}

// anchorVersion extracts a representative version from a specifier: the
// exact pin when there is one, otherwise the lower bound, otherwise the
// upper bound. Returns "" for unconstrained specs.
func anchorVersion(raw string) string {
	spec, err := verspec.Parse(raw)
	if err != nil {
		return ""
	}
	switch {
	case spec.Pin != "":
		return spec.Pin
	case spec.Lower != nil:
		return spec.Lower.Version
	case spec.Upper != nil:
		return spec.Upper.Version
	default:
		return ""
	}
}
