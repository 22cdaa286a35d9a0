package manifest

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/stackfuse/pkg/errors"
)

// Pipfile parses Pipfile manifests: name-keyed [packages] and
// [dev-packages] tables with either a bare specifier string or an inline
// table carrying version/extras/markers.
type Pipfile struct{}

func (p *Pipfile) Format() Format { return FormatPipfile }

func (p *Pipfile) Supports(name string) bool { return name == "Pipfile" }

type pipfileFile struct {
	Packages    map[string]any `toml:"packages"`
	DevPackages map[string]any `toml:"dev-packages"`
	Requires    struct {
		PythonVersion string `toml:"python_version"`
	} `toml:"requires"`
}

func (p *Pipfile) Parse(path string, data []byte) (*Result, error) {
	var file pipfileFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrap(errors.ErrCodeParse, err, "decode %s", path)
	}

	res := &Result{Format: FormatPipfile, Language: "python"}
	if file.Requires.PythonVersion != "" {
		// Pipfile pins a major.minor interpreter line.
		res.Runtime = "==" + file.Requires.PythonVersion + ".*"
	}

	p.addTable(file.Packages, false, path, res)
	p.addTable(file.DevPackages, true, path, res)
	return res, nil
}

func (p *Pipfile) addTable(table map[string]any, dev bool, path string, res *Result) {
	for name, value := range table {
		switch v := value.(type) {
		case string:
			spec := strings.TrimSpace(v)
			if spec == "*" {
				spec = ""
			}
			res.Deps = append(res.Deps, newDependency(name, spec, path, dev))
		case map[string]any:
			spec, _ := v["version"].(string)
			if spec == "*" {
				spec = ""
			}
			dep := newDependency(name, spec, path, dev)
			if markers, ok := v["markers"].(string); ok {
				dep.Markers = markers
			}
			if extras, ok := v["extras"].([]any); ok {
				var names []string
				for _, e := range extras {
					if s, ok := e.(string); ok {
						names = append(names, s)
					}
				}
				dep.Extras = sortExtras(names)
			}
			res.Deps = append(res.Deps, dep)
		default:
			res.Warnings = append(res.Warnings, Warning{
				File:    path,
				Message: fmt.Sprintf("unsupported Pipfile value for %q (%T)", name, value),
			})
		}
	}
}
