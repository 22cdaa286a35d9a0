package resolve

import (
	"reflect"
	"testing"

	"github.com/matzehuels/stackfuse/pkg/analyzer"
	"github.com/matzehuels/stackfuse/pkg/conflict"
	"github.com/matzehuels/stackfuse/pkg/errors"
	"github.com/matzehuels/stackfuse/pkg/manifest"
)

func graph(repoID string, deps ...manifest.Dependency) *analyzer.Graph {
	return &analyzer.Graph{RepoID: repoID, Dependencies: deps}
}

func dep(name, spec string, extras ...string) manifest.Dependency {
	return manifest.Dependency{
		Name:       name,
		Normalized: manifest.Normalize(name),
		Spec:       spec,
		Extras:     extras,
	}
}

func TestMerge_SpecificityAcrossRepos(t *testing.T) {
	graphs := []*analyzer.Graph{
		graph("repo-a", dep("numpy", ">=1.20"), dep("requests", ">=2.28,<3.0")),
		graph("repo-b", dep("numpy", "==1.26.2"), dep("flask", "")),
	}

	reqs, err := Merge(graphs, nil)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}

	byName := make(map[string]Requirement)
	for _, r := range reqs {
		byName[manifest.Normalize(r.Name)] = r
	}

	if r := byName["numpy"]; r.Spec != "==1.26.2" {
		t.Errorf("numpy spec = %q, want the exact pin", r.Spec)
	}
	if r := byName["numpy"]; !reflect.DeepEqual(r.Repos, []string{"repo-a", "repo-b"}) {
		t.Errorf("numpy repos = %v", r.Repos)
	}
	if r := byName["numpy"]; r.SourceSpecs["repo-a"] != ">=1.20" {
		t.Errorf("source specs should keep every repo's text: %v", r.SourceSpecs)
	}
	if r := byName["flask"]; r.Spec != "" {
		t.Errorf("flask = %+v", r)
	}

	// Output is sorted by normalized name.
	for i := 1; i < len(reqs); i++ {
		if manifest.Normalize(reqs[i-1].Name) > manifest.Normalize(reqs[i].Name) {
			t.Errorf("requirements not sorted: %v before %v", reqs[i-1].Name, reqs[i].Name)
		}
	}
}

func TestMerge_ExtrasUnion(t *testing.T) {
	graphs := []*analyzer.Graph{
		graph("repo-a", dep("celery", ">=5.3", "redis")),
		graph("repo-b", dep("celery", ">=5.3", "msgpack")),
	}

	reqs, err := Merge(graphs, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(reqs) != 1 || !reflect.DeepEqual(reqs[0].Extras, []string{"msgpack", "redis"}) {
		t.Errorf("reqs = %+v", reqs)
	}
}

func TestMerge_PreSolveFailureOnEqualSpecificityDisjoint(t *testing.T) {
	graphs := []*analyzer.Graph{
		graph("repo-a", dep("numpy", "==2.0.0")),
		graph("repo-b", dep("numpy", "==1.26.2")),
	}
	report := conflict.Detect([]conflict.Input{
		graphs[0].ConflictInput(),
		graphs[1].ConflictInput(),
	})

	_, err := Merge(graphs, report)
	if err == nil {
		t.Fatal("equal-specificity disjoint pins must fail before solving")
	}
	if !errors.Is(err, errors.ErrCodeDependencyConflict) {
		t.Errorf("error code = %v, want DEPENDENCY_CONFLICT", errors.GetCode(err))
	}
}

func TestMerge_SpecificityWinsOverDisjoint(t *testing.T) {
	// A pin against a disjoint range: specificity settles it, no pre-solve
	// failure.
	graphs := []*analyzer.Graph{
		graph("repo-a", dep("numpy", "==2.0.0")),
		graph("repo-b", dep("numpy", ">=1.24,<1.26")),
	}
	report := conflict.Detect([]conflict.Input{
		graphs[0].ConflictInput(),
		graphs[1].ConflictInput(),
	})
	if !report.HasBlocking() {
		t.Fatal("sanity: this pair should be a blocking conflict")
	}

	reqs, err := Merge(graphs, report)
	if err != nil {
		t.Fatalf("specificity should settle this without failing: %v", err)
	}
	if len(reqs) != 1 || reqs[0].Spec != "==2.0.0" {
		t.Errorf("reqs = %+v", reqs)
	}
}

func TestRequirement_Render(t *testing.T) {
	tests := []struct {
		req  Requirement
		want string
	}{
		{Requirement{Name: "requests", Spec: ">=2.28"}, "requests>=2.28"},
		{Requirement{Name: "celery", Spec: ">=5.3", Extras: []string{"msgpack", "redis"}}, "celery[msgpack,redis]>=5.3"},
		{Requirement{Name: "httpx"}, "httpx"},
		{Requirement{Name: "pywin32", Spec: ">=300", Markers: `sys_platform == "win32"`}, `pywin32>=300 ; sys_platform == "win32"`},
	}
	for _, tt := range tests {
		if got := tt.req.Render(); got != tt.want {
			t.Errorf("Render() = %q, want %q", got, tt.want)
		}
	}
}
