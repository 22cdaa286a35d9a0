package analyzer

import (
	"sort"

	"github.com/matzehuels/stackfuse/pkg/conflict"
	"github.com/matzehuels/stackfuse/pkg/manifest"
)

// Graph is one repository's deduplicated dependency set. It is created once
// per repository by Analyze and is immutable afterwards; conflict detection
// and resolution only ever read it.
type Graph struct {
	RepoID string
	Root   string

	Dependencies    []manifest.Dependency // regular dependencies, deduplicated
	DevDependencies []manifest.Dependency // dev/test dependencies, deduplicated

	// InternalConflicts records same-repo ties: equal specificity,
	// different value. The first-seen entry stays in Dependencies; the tie
	// is reported rather than silently dropped.
	InternalConflicts []conflict.Info

	Warnings []manifest.Warning

	Runtime         string   // Declared interpreter/platform constraint ("" if none)
	PrimaryLanguage string   // Language contributing the most dependencies
	Languages       []string // Languages seen across manifests, sorted
	ManifestFiles   []string // Relative paths of parsed manifests, sorted
}

// ConflictInput flattens the graph for cross-repository conflict detection.
// Dev dependencies stay out: they never join the unified candidate set.
func (g *Graph) ConflictInput() conflict.Input {
	return conflict.Input{RepoID: g.RepoID, Deps: g.Dependencies}
}

// Package returns the deduplicated entry for a normalized name, searching
// regular dependencies first.
func (g *Graph) Package(normalized string) (manifest.Dependency, bool) {
	for _, d := range g.Dependencies {
		if d.Normalized == normalized {
			return d, true
		}
	}
	for _, d := range g.DevDependencies {
		if d.Normalized == normalized {
			return d, true
		}
	}
	return manifest.Dependency{}, false
}

// sortDeps orders dependencies by normalized name for deterministic output.
func sortDeps(deps []manifest.Dependency) {
	sort.Slice(deps, func(i, j int) bool { return deps[i].Normalized < deps[j].Normalized })
}
