// Package compat evaluates whether a set of analyzed repositories can share
// one merged dependency set. The check is pairwise and symmetric: every
// pair of repositories gets a verdict, and the overall answer is the
// conjunction of all pairs.
//
// Two conditions are hard failures for a pair: declared runtime
// requirements whose version ranges cannot overlap, and blocking version
// conflicts between the pair's regular dependencies. A differing primary
// language is only a warning; polyglot merges are unusual, not impossible.
package compat

import (
	"fmt"
	"sort"

	"github.com/matzehuels/stackfuse/pkg/analyzer"
	"github.com/matzehuels/stackfuse/pkg/conflict"
	"github.com/matzehuels/stackfuse/pkg/errors"
	"github.com/matzehuels/stackfuse/pkg/verspec"
)

// PairVerdict is the compatibility outcome for one repository pair.
type PairVerdict struct {
	RepoA string
	RepoB string

	Compatible bool

	// SharedDeps lists normalized package names both repositories require.
	SharedDeps []string

	// Conflicts holds the pair's version conflicts, blocking and not.
	Conflicts []conflict.Info

	// Reasons explains hard failures in display order.
	Reasons []string

	// Warnings are advisory only and never flip Compatible.
	Warnings []string
}

// Matrix is the full pairwise compatibility result.
type Matrix struct {
	Repos []string
	Pairs []PairVerdict

	// OverallCompatible is true only when every pair is compatible.
	OverallCompatible bool

	// Warnings aggregates every pair's advisory findings.
	Warnings []string
}

// Pair returns the verdict for two repo ids in either order.
func (m *Matrix) Pair(a, b string) (PairVerdict, bool) {
	for _, p := range m.Pairs {
		if (p.RepoA == a && p.RepoB == b) || (p.RepoA == b && p.RepoB == a) {
			return p, true
		}
	}
	return PairVerdict{}, false
}

// Check builds the pairwise matrix for the given graphs. It fails only on
// malformed input, such as a runtime requirement that cannot be parsed at
// all; conflicting-but-well-formed repositories produce an incompatible
// verdict, not an error.
func Check(graphs []*analyzer.Graph) (*Matrix, error) {
	m := &Matrix{OverallCompatible: true}
	for _, g := range graphs {
		m.Repos = append(m.Repos, g.RepoID)
	}
	sort.Strings(m.Repos)

	byID := make(map[string]*analyzer.Graph, len(graphs))
	for _, g := range graphs {
		byID[g.RepoID] = g
	}

	for i := 0; i < len(m.Repos); i++ {
		for j := i + 1; j < len(m.Repos); j++ {
			verdict, err := checkPair(byID[m.Repos[i]], byID[m.Repos[j]])
			if err != nil {
				return nil, err
			}
			m.Pairs = append(m.Pairs, verdict)
			m.Warnings = append(m.Warnings, verdict.Warnings...)
			if !verdict.Compatible {
				m.OverallCompatible = false
			}
		}
	}
	return m, nil
}

func checkPair(a, b *analyzer.Graph) (PairVerdict, error) {
	verdict := PairVerdict{RepoA: a.RepoID, RepoB: b.RepoID, Compatible: true}

	ok, err := runtimesOverlap(a, b)
	if err != nil {
		return PairVerdict{}, err
	}
	if !ok {
		verdict.Compatible = false
		verdict.Reasons = append(verdict.Reasons, fmt.Sprintf(
			"runtime requirements cannot overlap: %s wants %q, %s wants %q",
			a.RepoID, a.Runtime, b.RepoID, b.Runtime))
	}

	report := conflict.Detect([]conflict.Input{a.ConflictInput(), b.ConflictInput()})
	verdict.Conflicts = report.Conflicts
	if report.HasBlocking() {
		verdict.Compatible = false
		for _, info := range report.Blocking() {
			verdict.Reasons = append(verdict.Reasons, info.String())
		}
	}

	if a.PrimaryLanguage != "" && b.PrimaryLanguage != "" && a.PrimaryLanguage != b.PrimaryLanguage {
		verdict.Warnings = append(verdict.Warnings, fmt.Sprintf(
			"primary languages differ: %s is %s, %s is %s",
			a.RepoID, a.PrimaryLanguage, b.RepoID, b.PrimaryLanguage))
	}

	verdict.SharedDeps = sharedDeps(a, b)
	return verdict, nil
}

// runtimesOverlap compares declared runtime requirements, such as a Python
// version range. A repository with no declaration is compatible with any
// runtime. Unparseable declarations are a hard error: guessing about the
// interpreter would make the verdict meaningless.
func runtimesOverlap(a, b *analyzer.Graph) (bool, error) {
	if a.Runtime == "" || b.Runtime == "" {
		return true, nil
	}
	specA, err := verspec.Parse(a.Runtime)
	if err != nil {
		return false, errors.Wrap(errors.ErrCodeCompatibility, err,
			"%s: unparseable runtime requirement %q", a.RepoID, a.Runtime)
	}
	specB, err := verspec.Parse(b.Runtime)
	if err != nil {
		return false, errors.Wrap(errors.ErrCodeCompatibility, err,
			"%s: unparseable runtime requirement %q", b.RepoID, b.Runtime)
	}
	return verspec.Overlaps(specA, specB), nil
}

func sharedDeps(a, b *analyzer.Graph) []string {
	inA := make(map[string]bool, len(a.Dependencies))
	for _, d := range a.Dependencies {
		inA[d.Normalized] = true
	}
	var shared []string
	for _, d := range b.Dependencies {
		if inA[d.Normalized] {
			shared = append(shared, d.Normalized)
		}
	}
	sort.Strings(shared)
	return shared
}
