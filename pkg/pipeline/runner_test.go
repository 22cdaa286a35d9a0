package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/matzehuels/stackfuse/pkg/cache"
	"github.com/matzehuels/stackfuse/pkg/errors"
	"github.com/matzehuels/stackfuse/pkg/resolve"
)

func writeRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func naiveOnly() []resolve.Solver {
	return []resolve.Solver{resolve.NewNaiveSolver()}
}

func TestExecute_FullRun(t *testing.T) {
	api := writeRepo(t, map[string]string{
		"requirements.txt": "requests>=2.28,<3.0\nnumpy==1.26.2\n",
	})
	worker := writeRepo(t, map[string]string{
		"requirements.txt": "requests>=2.30\ncelery>=5.3\n",
	})

	runner := NewRunner(nil, nil, nil)
	result, err := runner.Execute(context.Background(), Options{
		Repos: []RepoInput{
			{ID: "api", Root: api},
			{ID: "worker", Root: worker},
		},
		Solvers: naiveOnly(),
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if len(result.Graphs) != 2 {
		t.Fatalf("got %d graphs", len(result.Graphs))
	}
	if result.Graphs[0].RepoID != "api" || result.Graphs[1].RepoID != "worker" {
		t.Errorf("graph order must match input order: %s, %s",
			result.Graphs[0].RepoID, result.Graphs[1].RepoID)
	}
	if result.Compat == nil || !result.Compat.OverallCompatible {
		t.Errorf("compat = %+v", result.Compat)
	}
	if len(result.Requirements) != 3 {
		t.Errorf("got %d merged requirements, want 3", len(result.Requirements))
	}
	if result.Resolution == nil || !result.Resolution.Success {
		t.Errorf("resolution = %+v", result.Resolution)
	}
	if result.Stats.DependencyCount != 4 {
		t.Errorf("DependencyCount = %d", result.Stats.DependencyCount)
	}
}

func TestExecute_SkipSolve(t *testing.T) {
	root := writeRepo(t, map[string]string{"requirements.txt": "flask>=3.0\n"})

	runner := NewRunner(nil, nil, nil)
	result, err := runner.Execute(context.Background(), Options{
		Repos:     []RepoInput{{ID: "api", Root: root}},
		SkipSolve: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Resolution != nil || result.Requirements != nil {
		t.Errorf("SkipSolve must stop before merging: %+v", result)
	}
	if result.Conflicts == nil || result.Compat == nil {
		t.Error("conflict and compat stages still run")
	}
}

func TestExecute_PreSolveConflict(t *testing.T) {
	a := writeRepo(t, map[string]string{"requirements.txt": "numpy==2.0.0\n"})
	b := writeRepo(t, map[string]string{"requirements.txt": "numpy==1.26.2\n"})

	runner := NewRunner(nil, nil, nil)
	_, err := runner.Execute(context.Background(), Options{
		Repos: []RepoInput{
			{ID: "a", Root: a},
			{ID: "b", Root: b},
		},
		Solvers: naiveOnly(),
	})
	if !errors.Is(err, errors.ErrCodeDependencyConflict) {
		t.Errorf("error = %v, want DEPENDENCY_CONFLICT", err)
	}
}

func TestExecute_StrictCompat(t *testing.T) {
	legacy := writeRepo(t, map[string]string{
		"Pipfile": "[packages]\nflask = \"*\"\n\n[requires]\npython_version = \"3.8\"\n",
	})
	modern := writeRepo(t, map[string]string{
		"Pipfile": "[packages]\nflask = \"*\"\n\n[requires]\npython_version = \"3.12\"\n",
	})

	runner := NewRunner(nil, nil, nil)
	opts := Options{
		Repos: []RepoInput{
			{ID: "legacy", Root: legacy},
			{ID: "modern", Root: modern},
		},
		Solvers: naiveOnly(),
	}

	opts.Strict = true
	if _, err := runner.Execute(context.Background(), opts); !errors.Is(err, errors.ErrCodeCompatibility) {
		t.Errorf("strict mode error = %v, want COMPATIBILITY_ERROR", err)
	}

	opts.Strict = false
	result, err := runner.Execute(context.Background(), opts)
	if err != nil {
		t.Fatalf("non-strict run failed: %v", err)
	}
	if result.Compat.OverallCompatible {
		t.Error("the incompatibility should still be recorded")
	}
}

func TestExecute_GraphCache(t *testing.T) {
	root := writeRepo(t, map[string]string{"requirements.txt": "requests>=2.28\n"})

	fileCache, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	runner := NewRunner(fileCache, nil, nil)
	opts := Options{
		Repos:     []RepoInput{{ID: "api", Root: root}},
		SkipSolve: true,
	}

	first, err := runner.Execute(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if first.CacheInfo.GraphHits != 0 || first.CacheInfo.GraphMisses != 1 {
		t.Errorf("first run cache info = %+v", first.CacheInfo)
	}

	second, err := runner.Execute(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if second.CacheInfo.GraphHits != 1 {
		t.Errorf("second run should hit the cache: %+v", second.CacheInfo)
	}
	if len(second.Graphs[0].Dependencies) != 1 {
		t.Errorf("cached graph lost its dependencies: %+v", second.Graphs[0])
	}

	// Editing a manifest invalidates the entry.
	if err := os.WriteFile(filepath.Join(root, "requirements.txt"), []byte("requests>=2.31\n"), 0644); err != nil {
		t.Fatal(err)
	}
	third, err := runner.Execute(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if third.CacheInfo.GraphHits != 0 {
		t.Errorf("changed manifest must miss: %+v", third.CacheInfo)
	}
	if third.Graphs[0].Dependencies[0].Spec != ">=2.31" {
		t.Errorf("stale graph served: %+v", third.Graphs[0].Dependencies[0])
	}
}

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"no repos", Options{}},
		{"missing root", Options{Repos: []RepoInput{{ID: "a"}}}},
		{"missing id", Options{Repos: []RepoInput{{Root: "/tmp/x"}}}},
		{"duplicate id", Options{Repos: []RepoInput{{ID: "a", Root: "/x"}, {ID: "a", Root: "/y"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.opts.ValidateAndSetDefaults(); !errors.Is(err, errors.ErrCodeInvalidInput) {
				t.Errorf("err = %v, want INVALID_INPUT", err)
			}
		})
	}

	valid := Options{Repos: []RepoInput{{ID: "a", Root: "/x"}}}
	if err := valid.ValidateAndSetDefaults(); err != nil {
		t.Fatalf("valid options rejected: %v", err)
	}
	if valid.Concurrency != DefaultConcurrency || valid.CacheTTL != DefaultCacheTTL {
		t.Errorf("defaults not applied: %+v", valid)
	}
}

func TestExecute_ResolutionCache(t *testing.T) {
	root := writeRepo(t, map[string]string{"requirements.txt": "requests>=2.28\nnumpy==1.26.2\n"})

	fileCache, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	runner := NewRunner(fileCache, nil, nil)
	opts := Options{
		Repos:   []RepoInput{{ID: "api", Root: root}},
		Solvers: naiveOnly(),
	}

	first, err := runner.Execute(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if first.CacheInfo.ResolutionHit {
		t.Errorf("first run must solve, not hit: %+v", first.CacheInfo)
	}

	second, err := runner.Execute(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if !second.CacheInfo.ResolutionHit {
		t.Errorf("identical requirement set should hit the resolution cache: %+v", second.CacheInfo)
	}
	if second.Resolution == nil || !second.Resolution.Success {
		t.Fatalf("cached resolution = %+v", second.Resolution)
	}
	if second.Resolution.LockfilePreview != first.Resolution.LockfilePreview {
		t.Error("cached resolution should match the solved one")
	}

	// A different manifest yields a different requirement set and misses.
	if err := os.WriteFile(filepath.Join(root, "requirements.txt"), []byte("requests>=2.31\n"), 0644); err != nil {
		t.Fatal(err)
	}
	third, err := runner.Execute(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if third.CacheInfo.ResolutionHit {
		t.Errorf("changed requirements must solve again: %+v", third.CacheInfo)
	}
}
