package resolve

import (
	"sort"
	"strings"

	"github.com/matzehuels/stackfuse/pkg/analyzer"
	"github.com/matzehuels/stackfuse/pkg/conflict"
	"github.com/matzehuels/stackfuse/pkg/errors"
	"github.com/matzehuels/stackfuse/pkg/verspec"
)

// Merge flattens all repositories' regular dependencies into one candidate
// list, applying the same specificity tie-break the analyzer uses within a
// repository, but across repositories.
//
// A blocking conflict that specificity cannot settle (both sides equally
// specific and genuinely disjoint) is a pre-solve failure: Merge returns a
// DEPENDENCY_CONFLICT error instead of handing the solver an impossible
// set.
func Merge(graphs []*analyzer.Graph, report *conflict.Report) ([]Requirement, error) {
	if report != nil {
		if err := checkBlocking(report); err != nil {
			return nil, err
		}
	}

	merged := make(map[string]*Requirement)
	winning := make(map[string]verspec.Spec)

	for _, g := range graphs {
		for _, dep := range g.Dependencies {
			spec, err := verspec.Parse(dep.Spec)
			if err != nil {
				// Unparseable specs were already warned about upstream;
				// treat as unconstrained here.
				spec = verspec.Spec{Raw: dep.Spec}
			}

			req, ok := merged[dep.Normalized]
			if !ok {
				merged[dep.Normalized] = &Requirement{
					Name:        dep.Name,
					Spec:        dep.Spec,
					Extras:      append([]string{}, dep.Extras...),
					Markers:     dep.Markers,
					Repos:       []string{g.RepoID},
					SourceSpecs: map[string]string{g.RepoID: dep.Spec},
				}
				winning[dep.Normalized] = spec
				continue
			}

			req.Repos = append(req.Repos, g.RepoID)
			req.SourceSpecs[g.RepoID] = dep.Spec
			req.Extras = mergeExtras(req.Extras, dep.Extras)
			if spec.Specificity() > winning[dep.Normalized].Specificity() {
				req.Spec = dep.Spec
				req.Name = dep.Name
				winning[dep.Normalized] = spec
			}
		}
	}

	names := make([]string, 0, len(merged))
	for name := range merged {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Requirement, 0, len(names))
	for _, name := range names {
		req := *merged[name]
		sort.Strings(req.Repos)
		out = append(out, req)
	}
	return out, nil
}

// checkBlocking surfaces equal-specificity disjoint conflicts before any
// solver runs. Disjoint pairs where one side is strictly more specific are
// left to the specificity rule.
func checkBlocking(report *conflict.Report) error {
	var impossible []conflict.Info
	for _, info := range report.Blocking() {
		if equallySpecific(info) {
			impossible = append(impossible, info)
		}
	}
	if len(impossible) == 0 {
		return nil
	}

	lines := make([]string, len(impossible))
	for i, info := range impossible {
		lines[i] = info.String()
	}
	return errors.New(errors.ErrCodeDependencyConflict,
		"unresolvable version conflicts: %s", strings.Join(lines, "; "))
}

// equallySpecific reports whether at least two of the conflicting specs
// share the top specificity rank with different text.
func equallySpecific(info conflict.Info) bool {
	top := verspec.Unconstrained
	ranks := make([]verspec.Specificity, len(info.Specs))
	for i, raw := range info.Specs {
		s, err := verspec.Parse(raw)
		if err != nil {
			continue
		}
		ranks[i] = s.Specificity()
		if ranks[i] > top {
			top = ranks[i]
		}
	}

	seen := ""
	for i, rank := range ranks {
		if rank != top {
			continue
		}
		if seen == "" {
			seen = info.Specs[i]
			continue
		}
		if info.Specs[i] != seen {
			return true
		}
	}
	return false
}

func mergeExtras(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, e := range append(append([]string{}, a...), b...) {
		if e != "" && !seen[e] {
			seen[e] = true
			out = append(out, e)
		}
	}
	sort.Strings(out)
	return out
}
