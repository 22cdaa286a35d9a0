package manifest

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/matzehuels/stackfuse/pkg/errors"
)

// PackageJSON parses package.json files: separate dependencies and
// devDependencies maps whose values are range tokens ("^1.2.3", "~0.4",
// ">=2"). Range operators are carried through as opaque specifier text; they
// are only interpreted by the overlap heuristic, never evaluated exactly.
type PackageJSON struct{}

func (p *PackageJSON) Format() Format { return FormatPackageJSON }

func (p *PackageJSON) Supports(name string) bool { return strings.EqualFold(name, "package.json") }

type packageJSONFile struct {
	Name            string                     `json:"name"`
	Dependencies    map[string]json.RawMessage `json:"dependencies"`
	DevDependencies map[string]json.RawMessage `json:"devDependencies"`
	Engines         struct {
		Node string `json:"node"`
	} `json:"engines"`
}

func (p *PackageJSON) Parse(path string, data []byte) (*Result, error) {
	var file packageJSONFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrap(errors.ErrCodeParse, err, "decode %s", path)
	}

	res := &Result{Format: FormatPackageJSON, Language: "javascript"}
	res.Runtime = file.Engines.Node

	p.addMap(file.Dependencies, false, path, res)
	p.addMap(file.DevDependencies, true, path, res)
	return res, nil
}

func (p *PackageJSON) addMap(m map[string]json.RawMessage, dev bool, path string, res *Result) {
	for name, raw := range m {
		var spec string
		if err := json.Unmarshal(raw, &spec); err != nil {
			// Workspace/object entries and other non-string values.
			res.Warnings = append(res.Warnings, Warning{
				File:    path,
				Message: fmt.Sprintf("skipped non-string version for %q", name),
			})
			continue
		}
		spec = strings.TrimSpace(spec)
		switch {
		case spec == "*" || spec == "latest" || spec == "":
			spec = ""
		case strings.Contains(spec, "/") || strings.Contains(spec, ":"):
			// git/file/workspace references are not version specifiers.
			res.Warnings = append(res.Warnings, Warning{
				File:    path,
				Message: fmt.Sprintf("skipped non-registry specifier %q for %q", spec, name),
			})
			continue
		}
		res.Deps = append(res.Deps, newDependency(name, spec, path, dev))
	}
}
