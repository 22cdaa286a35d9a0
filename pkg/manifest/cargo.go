package manifest

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/stackfuse/pkg/errors"
)

// CargoToml parses Cargo.toml manifests: [dependencies] and
// [dev-dependencies] tables with either a bare version string or an inline
// table carrying a version key. Cargo's bare versions have caret semantics,
// so "1.2" is normalized to "^1.2" before it reaches the overlap heuristic.
type CargoToml struct{}

func (c *CargoToml) Format() Format { return FormatCargo }

func (c *CargoToml) Supports(name string) bool { return strings.EqualFold(name, "cargo.toml") }

type cargoFile struct {
	Package struct {
		Name        string `toml:"name"`
		RustVersion string `toml:"rust-version"`
	} `toml:"package"`
	Dependencies      map[string]any `toml:"dependencies"`
	DevDependencies   map[string]any `toml:"dev-dependencies"`
	BuildDependencies map[string]any `toml:"build-dependencies"`
}

func (c *CargoToml) Parse(path string, data []byte) (*Result, error) {
	var cargo cargoFile
	if err := toml.Unmarshal(data, &cargo); err != nil {
		return nil, errors.Wrap(errors.ErrCodeParse, err, "decode %s", path)
	}

	res := &Result{Format: FormatCargo, Language: "rust"}
	if cargo.Package.RustVersion != "" {
		res.Runtime = ">=" + cargo.Package.RustVersion
	}

	c.addTable(cargo.Dependencies, false, path, res)
	c.addTable(cargo.DevDependencies, true, path, res)
	c.addTable(cargo.BuildDependencies, false, path, res)
	return res, nil
}

func (c *CargoToml) addTable(table map[string]any, dev bool, path string, res *Result) {
	for name, value := range table {
		switch v := value.(type) {
		case string:
			res.Deps = append(res.Deps, newDependency(name, cargoSpec(v), path, dev))
		case map[string]any:
			spec, ok := v["version"].(string)
			if !ok {
				if _, isPath := v["path"]; isPath {
					// Workspace-local path dependency; no registry version.
					res.Deps = append(res.Deps, newDependency(name, "", path, dev))
					continue
				}
				if _, isGit := v["git"]; isGit {
					res.Warnings = append(res.Warnings, Warning{
						File:    path,
						Message: fmt.Sprintf("skipped git dependency %q", name),
					})
					continue
				}
			}
			dep := newDependency(name, cargoSpec(spec), path, dev)
			if features, ok := v["features"].([]any); ok {
				var names []string
				for _, f := range features {
					if s, ok := f.(string); ok {
						names = append(names, s)
					}
				}
				dep.Extras = sortExtras(names)
			}
			res.Deps = append(res.Deps, dep)
		default:
			res.Warnings = append(res.Warnings, Warning{
				File:    path,
				Message: fmt.Sprintf("unsupported Cargo dependency value for %q (%T)", name, value),
			})
		}
	}
}

// cargoSpec maps Cargo version requirements to the shared specifier
// vocabulary. Bare versions get their implicit caret made explicit; "=" pins
// and explicit range operators pass through.
func cargoSpec(spec string) string {
	spec = strings.TrimSpace(spec)
	if spec == "" || spec == "*" {
		return ""
	}
	if spec[0] >= '0' && spec[0] <= '9' {
		return "^" + spec
	}
	return spec
}
