package manifest

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/stackfuse/pkg/errors"
)

// Pyproject parses pyproject.toml files. Two dialects are understood and
// both reduce to the same Dependency shape:
//
//   - the standards-based [project] table with its dependencies list and
//     [dependency-groups] for dev entries
//   - the legacy [tool.poetry] dependency tables
//
// Dialect selection is by presence of top-level keys, not by filename.
type Pyproject struct{}

func (p *Pyproject) Format() Format { return FormatPyproject }

func (p *Pyproject) Supports(name string) bool { return name == "pyproject.toml" }

type pyprojectFile struct {
	Project struct {
		Dependencies         []string            `toml:"dependencies"`
		OptionalDependencies map[string][]string `toml:"optional-dependencies"`
		RequiresPython       string              `toml:"requires-python"`
	} `toml:"project"`
	DependencyGroups map[string][]string `toml:"dependency-groups"`
	Tool             struct {
		Poetry struct {
			Dependencies    map[string]any `toml:"dependencies"`
			DevDependencies map[string]any `toml:"dev-dependencies"`
			Group           map[string]struct {
				Dependencies map[string]any `toml:"dependencies"`
			} `toml:"group"`
		} `toml:"poetry"`
	} `toml:"tool"`
}

func (p *Pyproject) Parse(path string, data []byte) (*Result, error) {
	var file pyprojectFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrap(errors.ErrCodeParse, err, "decode %s", path)
	}

	res := &Result{Format: FormatPyproject, Language: "python"}
	res.Runtime = file.Project.RequiresPython

	if len(file.Project.Dependencies) > 0 || len(file.DependencyGroups) > 0 {
		p.parseStandard(&file, path, res)
	}
	if len(file.Tool.Poetry.Dependencies) > 0 || len(file.Tool.Poetry.DevDependencies) > 0 || len(file.Tool.Poetry.Group) > 0 {
		p.parsePoetry(&file, path, res)
	}
	return res, nil
}

// parseStandard handles the PEP 621 [project] dialect. Entries use the
// requirements grammar, so the line parser is reused.
func (p *Pyproject) parseStandard(file *pyprojectFile, path string, res *Result) {
	add := func(entries []string, dev bool) {
		for _, entry := range entries {
			dep, ok := parseRequirementLine(strings.TrimSpace(entry), path, dev)
			if !ok {
				res.Warnings = append(res.Warnings, Warning{
					File:    path,
					Message: fmt.Sprintf("unparseable project dependency %q", entry),
				})
				continue
			}
			res.Deps = append(res.Deps, dep)
		}
	}

	add(file.Project.Dependencies, false)
	for _, entries := range file.Project.OptionalDependencies {
		add(entries, false)
	}
	for _, entries := range file.DependencyGroups {
		add(entries, true)
	}
}

// parsePoetry handles the legacy [tool.poetry] dialect, where dependencies
// are name-keyed with either a bare specifier string or an inline table.
func (p *Pyproject) parsePoetry(file *pyprojectFile, path string, res *Result) {
	poetry := file.Tool.Poetry

	addTable := func(table map[string]any, dev bool) {
		for name, value := range table {
			if strings.EqualFold(name, "python") {
				// Interpreter constraint, not a package dependency.
				if s, ok := value.(string); ok && res.Runtime == "" {
					res.Runtime = s
				}
				continue
			}
			dep, warn := poetryDependency(name, value, path, dev)
			if warn != "" {
				res.Warnings = append(res.Warnings, Warning{File: path, Message: warn})
				continue
			}
			res.Deps = append(res.Deps, dep)
		}
	}

	addTable(poetry.Dependencies, false)
	addTable(poetry.DevDependencies, true)
	// Every named group is a non-main group; treat them all as dev.
	for _, tbl := range poetry.Group {
		addTable(tbl.Dependencies, true)
	}
}

// poetryDependency decodes one name/value pair from a poetry dependency
// table. The value is either a specifier string or an inline table with a
// "version" key; anything else is reported as a warning.
func poetryDependency(name string, value any, path string, dev bool) (Dependency, string) {
	switch v := value.(type) {
	case string:
		dep := newDependency(name, normalizePoetrySpec(v), path, dev)
		return dep, ""
	case map[string]any:
		spec, _ := v["version"].(string)
		dep := newDependency(name, normalizePoetrySpec(spec), path, dev)
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
		return dep, ""
	default:
		return Dependency{}, fmt.Sprintf("unsupported poetry dependency value for %q (%T)", name, value)
	}
}

// normalizePoetrySpec passes poetry specifiers through, mapping the bare
// wildcard to unconstrained.
func normalizePoetrySpec(spec string) string {
	spec = strings.TrimSpace(spec)
	if spec == "*" {
		return ""
	}
	return spec
}
