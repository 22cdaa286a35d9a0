package manifest

import (
	"reflect"
	"sort"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Requests", "requests"},
		{"typing_extensions", "typing-extensions"},
		{"ruamel.yaml", "ruamel-yaml"},
		{"A__b..C--d", "a-b-c-d"},
		{" numpy ", "numpy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.name); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		path string
		want Format
		ok   bool
	}{
		{"requirements.txt", FormatRequirements, true},
		{"requirements-dev.txt", FormatRequirements, true},
		{"sub/dir/pyproject.toml", FormatPyproject, true},
		{"Pipfile", FormatPipfile, true},
		{"package.json", FormatPackageJSON, true},
		{"Cargo.toml", FormatCargo, true},
		{"cargo.toml", FormatCargo, true},
		{"go.mod", "", false},
		{"poetry.lock", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			p, ok := Detect(tt.path)
			if ok != tt.ok {
				t.Fatalf("Detect(%q) ok = %v, want %v", tt.path, ok, tt.ok)
			}
			if ok && p.Format() != tt.want {
				t.Errorf("Detect(%q) format = %v, want %v", tt.path, p.Format(), tt.want)
			}
		})
	}
}

// Parsing the same content twice yields the same dependency set.
func TestParse_Idempotent(t *testing.T) {
	content := []byte(`requests>=2.28.0
numpy==1.26.2
click[colorama]>=8.0
`)
	parser := &RequirementsTxt{}

	first, err := parser.Parse("requirements.txt", content)
	if err != nil {
		t.Fatal(err)
	}
	second, err := parser.Parse("requirements.txt", content)
	if err != nil {
		t.Fatal(err)
	}

	normalize := func(deps []Dependency) []Dependency {
		out := append([]Dependency{}, deps...)
		sort.Slice(out, func(i, j int) bool { return out[i].Normalized < out[j].Normalized })
		return out
	}
	if !reflect.DeepEqual(normalize(first.Deps), normalize(second.Deps)) {
		t.Errorf("repeated parse differs:\nfirst:  %+v\nsecond: %+v", first.Deps, second.Deps)
	}
}
