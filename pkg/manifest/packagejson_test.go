package manifest

import (
	"testing"

	"github.com/matzehuels/stackfuse/pkg/errors"
)

func TestPackageJSON_Parse(t *testing.T) {
	content := `{
  "name": "demo",
  "engines": { "node": ">=18" },
  "dependencies": {
    "express": "^4.18.2",
    "lodash": "~4.17.21",
    "chalk": ">=5.0.0",
    "left-pad": "*",
    "local-lib": "file:../local-lib"
  },
  "devDependencies": {
    "jest": "^29.0.0"
  }
}`
	parser := &PackageJSON{}
	res, err := parser.Parse("package.json", []byte(content))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if res.Runtime != ">=18" {
		t.Errorf("Runtime = %q, want >=18", res.Runtime)
	}

	byName := make(map[string]Dependency)
	for _, d := range res.Deps {
		byName[d.Normalized] = d
	}

	if d := byName["express"]; d.Spec != "^4.18.2" || d.Dev {
		t.Errorf("express = %+v", d)
	}
	if d := byName["lodash"]; d.Spec != "~4.17.21" {
		t.Errorf("lodash = %+v", d)
	}
	if d := byName["left-pad"]; d.Spec != "" {
		t.Errorf("wildcard should be unconstrained: %+v", d)
	}
	if d := byName["jest"]; !d.Dev {
		t.Errorf("jest should be dev: %+v", d)
	}
	if _, ok := byName["local-lib"]; ok {
		t.Error("file: reference should be skipped")
	}
	if len(res.Warnings) != 1 {
		t.Errorf("got %d warnings, want 1 (file: reference): %+v", len(res.Warnings), res.Warnings)
	}
}

func TestPackageJSON_NonStringValue(t *testing.T) {
	content := `{"dependencies": {"weird": {"version": "1.0.0"}, "ok": "1.2.3"}}`
	parser := &PackageJSON{}
	res, err := parser.Parse("package.json", []byte(content))
	if err != nil {
		t.Fatalf("Parse should not fail on one bad entry: %v", err)
	}
	if len(res.Deps) != 1 || res.Deps[0].Normalized != "ok" {
		t.Errorf("deps = %+v, want only ok", res.Deps)
	}
	if len(res.Warnings) != 1 {
		t.Errorf("got %d warnings, want 1", len(res.Warnings))
	}
}

func TestPackageJSON_InvalidJSON(t *testing.T) {
	parser := &PackageJSON{}
	_, err := parser.Parse("package.json", []byte("{not json"))
	if err == nil {
		t.Fatal("unreadable JSON should fail at file level")
	}
	if !errors.Is(err, errors.ErrCodeParse) {
		t.Errorf("file-level failure should carry PARSE_ERROR, got %v", err)
	}
}
