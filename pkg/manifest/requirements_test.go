package manifest

import (
	"reflect"
	"strings"
	"testing"
)

func TestRequirementsTxt_Supports(t *testing.T) {
	parser := &RequirementsTxt{}

	tests := []struct {
		filename string
		want     bool
	}{
		{"requirements.txt", true},
		{"requirements-dev.txt", true},
		{"requirements_prod.txt", true},
		{"pyproject.toml", false},
		{"Pipfile", false},
		{"package.json", false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			if got := parser.Supports(tt.filename); got != tt.want {
				t.Errorf("Supports(%q) = %v, want %v", tt.filename, got, tt.want)
			}
		})
	}
}

func TestRequirementsTxt_Parse(t *testing.T) {
	content := `# Core dependencies
requests>=2.28.0
numpy==1.26.2  # pinned for ABI stability
click[colorama,shell]>=8.0
httpx

pywin32>=300 ; sys_platform == "win32"
`
	parser := &RequirementsTxt{}
	res, err := parser.Parse("requirements.txt", []byte(content))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	byName := make(map[string]Dependency)
	for _, d := range res.Deps {
		byName[d.Normalized] = d
	}
	if len(res.Deps) != 5 {
		t.Fatalf("got %d deps, want 5: %+v", len(res.Deps), res.Deps)
	}

	if d := byName["requests"]; d.Spec != ">=2.28.0" {
		t.Errorf("requests spec = %q", d.Spec)
	}
	if d := byName["numpy"]; d.Spec != "==1.26.2" {
		t.Errorf("numpy spec = %q (comment should be stripped)", d.Spec)
	}
	if d := byName["click"]; !reflect.DeepEqual(d.Extras, []string{"colorama", "shell"}) {
		t.Errorf("click extras = %v", d.Extras)
	}
	if d := byName["httpx"]; d.Spec != "" {
		t.Errorf("httpx should be unconstrained, got %q", d.Spec)
	}
	if d := byName["pywin32"]; d.Markers != `sys_platform == "win32"` {
		t.Errorf("pywin32 markers = %q", d.Markers)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("unexpected warnings: %+v", res.Warnings)
	}
}

// One bad line among valid ones is skipped with a warning, never an error.
func TestRequirementsTxt_MalformedLine(t *testing.T) {
	lines := []string{
		"requests>=2.28.0",
		"numpy==1.26.2",
		"click>=8.0",
		"flask>=2.0",
		"pydantic>=2.0",
		"===broken===",
		"httpx",
		"scipy>=1.10",
		"pandas>=2.0",
		"rich",
		"uvicorn>=0.20",
	}
	parser := &RequirementsTxt{}
	res, err := parser.Parse("requirements.txt", []byte(strings.Join(lines, "\n")))
	if err != nil {
		t.Fatalf("Parse should not fail on a malformed line: %v", err)
	}
	if len(res.Deps) != 10 {
		t.Errorf("got %d deps, want 10", len(res.Deps))
	}
	if len(res.Warnings) != 1 {
		t.Fatalf("got %d warnings, want 1: %+v", len(res.Warnings), res.Warnings)
	}
	if res.Warnings[0].Line != 6 {
		t.Errorf("warning line = %d, want 6", res.Warnings[0].Line)
	}
}

func TestRequirementsTxt_SkipsOptionsAndURLs(t *testing.T) {
	content := `-r base.txt
-e ./local-package
git+https://github.com/user/repo.git
https://example.com/pkg.tar.gz
requests>=2.0
`
	parser := &RequirementsTxt{}
	res, err := parser.Parse("requirements.txt", []byte(content))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Deps) != 1 || res.Deps[0].Normalized != "requests" {
		t.Errorf("deps = %+v, want only requests", res.Deps)
	}
	if len(res.Warnings) != 4 {
		t.Errorf("got %d warnings, want 4", len(res.Warnings))
	}
}

func TestRequirementsTxt_DevFlavoredFile(t *testing.T) {
	parser := &RequirementsTxt{}
	res, err := parser.Parse("requirements-dev.txt", []byte("pytest>=7.0\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Deps) != 1 || !res.Deps[0].Dev {
		t.Errorf("entries in requirements-dev.txt should be dev: %+v", res.Deps)
	}
}
