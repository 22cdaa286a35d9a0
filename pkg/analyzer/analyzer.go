// Package analyzer locates and parses every recognized manifest in one
// repository checkout and merges the results into a single Graph.
//
// Analysis is a pure function of the filesystem at call time: nothing is
// cached here. Callers that want caching (the pipeline runner does) key it
// on manifest content themselves.
package analyzer

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stackfuse/pkg/conflict"
	"github.com/matzehuels/stackfuse/pkg/errors"
	"github.com/matzehuels/stackfuse/pkg/manifest"
	"github.com/matzehuels/stackfuse/pkg/verspec"
)

// DefaultMaxDepth bounds the manifest search below the repository root.
const DefaultMaxDepth = 5

// skipDirs are build/cache directories never descended into.
var skipDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	"node_modules": true,
	"vendor":       true,
	"target":       true,
	"dist":         true,
	"build":        true,
	"venv":         true,
	".venv":        true,
	"__pycache__":  true,
	".tox":         true,
	".mypy_cache":  true,
	".ruff_cache":  true,
	".idea":        true,
}

// Options configures repository analysis.
type Options struct {
	MaxDepth int         // Directory depth below the root (default 5)
	Logger   *log.Logger // Progress/debug logging (default discard)
}

// WithDefaults returns a copy of Options with zero values replaced.
func (o Options) WithDefaults() Options {
	opts := o
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.Logger == nil {
		opts.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return opts
}

// Analyze walks the repository root, parses every recognized manifest and
// returns the merged Graph. Parse-level problems become Graph warnings;
// only an unusable root is an error.
func Analyze(ctx context.Context, repoID, root string, opts Options) (*Graph, error) {
	opts = opts.WithDefaults()

	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, errors.New(errors.ErrCodeInvalidPath, "repository root is not a directory: %s", root)
	}

	paths, err := FindManifests(root, opts.MaxDepth)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "walk %s", root)
	}

	g := &Graph{RepoID: repoID, Root: root}
	var results []*manifest.Result

	for _, rel := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		parser, ok := manifest.Detect(rel)
		if !ok {
			continue
		}
		data, err := os.ReadFile(filepath.Join(root, rel))
		if err != nil {
			g.Warnings = append(g.Warnings, manifest.Warning{File: rel, Message: fmt.Sprintf("unreadable: %v", err)})
			continue
		}
		res, err := parser.Parse(rel, data)
		if err != nil {
			// A broken file never aborts the repository; parse failures
			// stay inside the analyzer as warnings.
			g.Warnings = append(g.Warnings, manifest.Warning{File: rel, Message: fmt.Sprintf("parse failed: %v", err)})
			opts.Logger.Warn("manifest parse failed", "repo", repoID, "file", rel, "err", err)
			continue
		}
		opts.Logger.Debug("parsed manifest", "repo", repoID, "file", rel, "deps", len(res.Deps))
		g.ManifestFiles = append(g.ManifestFiles, rel)
		g.Warnings = append(g.Warnings, res.Warnings...)
		results = append(results, res)
	}

	merge(g, results)
	return g, nil
}

// FindManifests returns recognized manifest paths relative to root, sorted,
// never descending past maxDepth or into skipped directories. Callers that
// cache analysis results use it to fingerprint a repository without
// analyzing it.
func FindManifests(root string, maxDepth int) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtree: skip it, the rest of the repo still counts.
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		if d.IsDir() {
			if rel == "." {
				return nil
			}
			if skipDirs[d.Name()] || strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if strings.Count(rel, string(filepath.Separator))+1 >= maxDepth {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := manifest.Detect(rel); ok {
			paths = append(paths, rel)
		}
		return nil
	})
	sort.Strings(paths)
	return paths, err
}

// slot is the current winner for one normalized name during merging.
type slot struct {
	dep manifest.Dependency
	dev bool
}

// merge deduplicates parsed results into the graph. When two entries share
// a normalized name, the more specific constraint wins; equal-specificity
// disagreements are kept as internal conflicts. Extras are additive and
// union across entries. A package declared both regular and dev counts as
// regular.
func merge(g *Graph, results []*manifest.Result) {
	chosen := make(map[string]*slot)
	langCounts := make(map[string]int)
	langSeen := make(map[string]bool)

	for _, res := range results {
		if len(res.Deps) > 0 || res.Runtime != "" {
			if !langSeen[res.Language] {
				langSeen[res.Language] = true
				g.Languages = append(g.Languages, res.Language)
			}
		}
		if res.Runtime != "" {
			if g.Runtime == "" {
				g.Runtime = res.Runtime
			} else if g.Runtime != res.Runtime {
				g.Warnings = append(g.Warnings, manifest.Warning{
					Message: fmt.Sprintf("multiple runtime constraints declared (%q, %q); keeping %q", g.Runtime, res.Runtime, g.Runtime),
				})
			}
		}

		for _, dep := range res.Deps {
			langCounts[res.Language]++
			existing, ok := chosen[dep.Normalized]
			if !ok {
				d := dep
				chosen[dep.Normalized] = &slot{dep: d, dev: dep.Dev}
				continue
			}
			existing.dep.Extras = unionExtras(existing.dep.Extras, dep.Extras)
			if existing.dev && !dep.Dev {
				// Regular beats dev for section placement; the spec text
				// with higher specificity still wins below.
				existing.dev = false
			}
			keepSpec(g, existing, dep)
		}
	}

	sort.Strings(g.Languages)
	for lang, n := range langCounts {
		if g.PrimaryLanguage == "" || n > langCounts[g.PrimaryLanguage] ||
			(n == langCounts[g.PrimaryLanguage] && lang < g.PrimaryLanguage) {
			g.PrimaryLanguage = lang
		}
	}

	for _, s := range chosen {
		if s.dev {
			g.DevDependencies = append(g.DevDependencies, s.dep)
		} else {
			g.Dependencies = append(g.Dependencies, s.dep)
		}
	}
	sortDeps(g.Dependencies)
	sortDeps(g.DevDependencies)
	sort.Slice(g.InternalConflicts, func(i, j int) bool {
		return g.InternalConflicts[i].Package < g.InternalConflicts[j].Package
	})
}

// keepSpec applies the specificity rule between the already chosen entry
// and a newly seen one: exact pin > double bound > single bound >
// unconstrained. Equal specificity with different text is a tie, recorded
// as an internal conflict while the first-seen entry stays.
func keepSpec(g *Graph, existing *slot, incoming manifest.Dependency) {
	if incoming.Spec == existing.dep.Spec {
		return
	}

	curSpec, curErr := verspec.Parse(existing.dep.Spec)
	newSpec, newErr := verspec.Parse(incoming.Spec)
	if newErr != nil {
		g.Warnings = append(g.Warnings, manifest.Warning{
			File:    incoming.SourceFile,
			Message: fmt.Sprintf("%s: ignoring unparseable spec %q", incoming.Name, incoming.Spec),
		})
		return
	}
	if curErr != nil {
		existing.dep.Spec = incoming.Spec
		existing.dep.SourceFile = incoming.SourceFile
		return
	}

	switch {
	case newSpec.Specificity() > curSpec.Specificity():
		existing.dep.Spec = incoming.Spec
		existing.dep.SourceFile = incoming.SourceFile
	case newSpec.Specificity() < curSpec.Specificity():
		// Existing entry already more specific.
	default:
		// Equal specificity, different value: record the tie.
		g.InternalConflicts = append(g.InternalConflicts, conflict.Info{
			Package:  incoming.Normalized,
			Repos:    []string{g.RepoID, g.RepoID},
			Specs:    []string{existing.dep.Spec, incoming.Spec},
			Kind:     tieKind(curSpec, newSpec),
			Blocking: !verspec.Overlaps(curSpec, newSpec),
		})
	}
}

// tieKind classifies an equal-specificity tie with the overlap heuristic.
func tieKind(a, b verspec.Spec) conflict.Kind {
	if verspec.Overlaps(a, b) {
		return conflict.KindVersionOverlap
	}
	return conflict.KindVersionDisjoint
}

// unionExtras merges two sorted extras lists.
func unionExtras(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, e := range append(append([]string{}, a...), b...) {
		if !seen[e] {
			seen[e] = true
			out = append(out, e)
		}
	}
	sort.Strings(out)
	return out
}
