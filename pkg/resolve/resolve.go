// Package resolve merges per-repository dependency graphs into one flat
// candidate requirement set and drives a solver fallback chain to pin it.
//
// Solvers are strategies behind a common interface: an external primary
// (uv), an external secondary (pip-compile) and an in-process naive
// fallback that never needs a subprocess. Each stage is probed for
// availability once per process and attempted in order; any stage failure
// (unavailable tool, non-zero exit, malformed output, timeout) falls
// through to the next stage. The naive stage always produces output, marked
// as unverified.
package resolve

import (
	"fmt"
	"strings"
)

// SolverKind identifies which stage produced a resolution.
type SolverKind string

const (
	SolverPrimary   SolverKind = "primary"
	SolverSecondary SolverKind = "secondary"
	SolverNaive     SolverKind = "naive"
)

// Requirement is one merged candidate: a package with the winning spec and
// the repositories that asked for it.
type Requirement struct {
	Name    string   // Display name (first-seen spelling)
	Spec    string   // Winning specifier text, "" when unconstrained
	Extras  []string // Union of requested extras, sorted
	Markers string   // Environment markers from the winning entry
	Repos   []string // Repo ids that require this package, sorted

	// SourceSpecs preserves each repository's original spec for error
	// messages and notes.
	SourceSpecs map[string]string
}

// Render writes the requirement in the flat one-per-line grammar the
// external solvers consume.
func (r Requirement) Render() string {
	var b strings.Builder
	b.WriteString(r.Name)
	if len(r.Extras) > 0 {
		fmt.Fprintf(&b, "[%s]", strings.Join(r.Extras, ","))
	}
	b.WriteString(r.Spec)
	if r.Markers != "" {
		b.WriteString(" ; ")
		b.WriteString(r.Markers)
	}
	return b.String()
}

// ResolvedPackage is one exact pin in a resolution.
type ResolvedPackage struct {
	Name         string
	ExactVersion string
	Hash         string // Integrity hash when the solver provides one
}

// Result is the outcome of one resolution attempt. A new attempt always
// produces a new Result; nothing here is mutated after creation.
type Result struct {
	Success           bool
	Packages          []ResolvedPackage
	LockfilePreview   string // Human-readable lockfile text for display
	ConflictsResolved int
	Notes             []string
	SolverUsed        SolverKind
}
