// Package conflict detects version and extras disagreements for the same
// package across repository dependency sets.
//
// Classification uses the approximate interval heuristic from pkg/verspec.
// The detector is order-independent: inputs in any order produce an
// identical, deterministically sorted report.
package conflict

import (
	"fmt"
	"sort"
	"strings"

	"github.com/matzehuels/stackfuse/pkg/manifest"
	"github.com/matzehuels/stackfuse/pkg/verspec"
)

// Kind classifies one conflict entry.
type Kind string

const (
	// KindVersionOverlap: specs differ but their intervals intersect; a
	// solver may still find a version both sides accept.
	KindVersionOverlap Kind = "version_overlap"
	// KindVersionDisjoint: no version can satisfy both specs. Blocking.
	KindVersionDisjoint Kind = "version_disjoint"
	// KindExtrasMismatch: same package requested with different extras
	// sets. Extras are additive, so this is informational only.
	KindExtrasMismatch Kind = "extras_mismatch"
)

// Info describes one detected conflict.
type Info struct {
	Package  string   // Normalized package name
	Repos    []string // Repo ids involved, sorted
	Specs    []string // Specifier texts, aligned with Repos
	Kind     Kind
	Blocking bool
}

// String renders the conflict for log lines and error messages.
func (i Info) String() string {
	pairs := make([]string, len(i.Repos))
	for n, repo := range i.Repos {
		spec := i.Specs[n]
		if spec == "" {
			spec = "*"
		}
		pairs[n] = fmt.Sprintf("%s(%s)", repo, spec)
	}
	return fmt.Sprintf("%s: %s [%s]", i.Package, strings.Join(pairs, " vs "), i.Kind)
}

// Report aggregates the conflicts found in one detection pass. Reports are
// computed fresh from the current dependency sets on every call and never
// persisted.
type Report struct {
	Conflicts []Info
	Warnings  []string
}

// HasBlocking reports whether any entry blocks resolution.
func (r *Report) HasBlocking() bool {
	for _, c := range r.Conflicts {
		if c.Blocking {
			return true
		}
	}
	return false
}

// Blocking returns only the blocking entries.
func (r *Report) Blocking() []Info {
	var out []Info
	for _, c := range r.Conflicts {
		if c.Blocking {
			out = append(out, c)
		}
	}
	return out
}

// Input is one repository's flattened dependency list.
type Input struct {
	RepoID string
	Deps   []manifest.Dependency
}

// occurrence is one (repo, dependency) sighting of a package.
type occurrence struct {
	repo string
	dep  manifest.Dependency
}

// Detect builds the conflict report for the given repositories. Packages
// appearing in a single repository never conflict here; same-repo
// disagreements are the analyzer's business.
func Detect(inputs []Input) *Report {
	byName := make(map[string][]occurrence)
	for _, in := range inputs {
		seen := make(map[string]bool)
		for _, dep := range in.Deps {
			// One sighting per repo per package: the analyzer has already
			// deduplicated within a repository.
			if seen[dep.Normalized] {
				continue
			}
			seen[dep.Normalized] = true
			byName[dep.Normalized] = append(byName[dep.Normalized], occurrence{repo: in.RepoID, dep: dep})
		}
	}

	report := &Report{}
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		occs := byName[name]
		if len(occs) < 2 {
			continue
		}
		sort.Slice(occs, func(i, j int) bool { return occs[i].repo < occs[j].repo })

		if info, ok := classifyVersions(name, occs, report); ok {
			report.Conflicts = append(report.Conflicts, info)
		}
		if info, ok := classifyExtras(name, occs); ok {
			report.Conflicts = append(report.Conflicts, info)
		}
	}
	return report
}

// classifyVersions applies the pairwise interval heuristic across every
// occurrence of one package. The strongest verdict wins: any disjoint pair
// makes the whole entry disjoint and blocking.
func classifyVersions(name string, occs []occurrence, report *Report) (Info, bool) {
	repos := make([]string, len(occs))
	specs := make([]string, len(occs))
	parsed := make([]verspec.Spec, len(occs))
	allEqual := true
	for i, o := range occs {
		repos[i] = o.repo
		specs[i] = o.dep.Spec
		s, err := verspec.Parse(o.dep.Spec)
		if err != nil {
			// Unparseable specs degrade to unconstrained: warn, never block.
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("%s: %s: treating unparseable spec %q as unconstrained", o.repo, name, o.dep.Spec))
			s = verspec.Spec{Raw: o.dep.Spec}
		}
		parsed[i] = s
		if o.dep.Spec != occs[0].dep.Spec {
			allEqual = false
		}
	}
	if allEqual {
		return Info{}, false
	}

	disjoint := false
	overlapping := false
	for i := 0; i < len(parsed); i++ {
		for j := i + 1; j < len(parsed); j++ {
			if parsed[i].IsUnconstrained() || parsed[j].IsUnconstrained() {
				// Unconstrained never conflicts with anything.
				continue
			}
			if parsed[i].Specificity() == verspec.Exact && parsed[j].Specificity() == verspec.Exact &&
				verspec.Compare(parsed[i].Pin, parsed[j].Pin) == 0 {
				continue
			}
			if verspec.Overlaps(parsed[i], parsed[j]) {
				overlapping = true
			} else {
				disjoint = true
			}
		}
	}

	switch {
	case disjoint:
		return Info{Package: name, Repos: repos, Specs: specs, Kind: KindVersionDisjoint, Blocking: true}, true
	case overlapping:
		return Info{Package: name, Repos: repos, Specs: specs, Kind: KindVersionOverlap, Blocking: false}, true
	default:
		return Info{}, false
	}
}

// classifyExtras reports differing extras sets for one package. Always
// non-blocking: extras are additive.
func classifyExtras(name string, occs []occurrence) (Info, bool) {
	first := strings.Join(occs[0].dep.Extras, ",")
	differs := false
	for _, o := range occs[1:] {
		if strings.Join(o.dep.Extras, ",") != first {
			differs = true
			break
		}
	}
	if !differs {
		return Info{}, false
	}

	repos := make([]string, len(occs))
	specs := make([]string, len(occs))
	for i, o := range occs {
		repos[i] = o.repo
		specs[i] = strings.Join(o.dep.Extras, ",")
	}
	return Info{Package: name, Repos: repos, Specs: specs, Kind: KindExtrasMismatch, Blocking: false}, true
}
