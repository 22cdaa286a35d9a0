package manifest

import (
	"bufio"
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/matzehuels/stackfuse/pkg/errors"
)

// depLineRE matches "name[extras]specifier" with optional whitespace. The
// name grammar follows PEP 508: leading alphanumeric, then alphanumerics,
// dots, hyphens and underscores.
var depLineRE = regexp.MustCompile(`^([a-zA-Z0-9][-a-zA-Z0-9._]*)\s*(?:\[([^\]]*)\])?\s*(.*)$`)

// RequirementsTxt parses flat requirement lists: one dependency per line,
// optional version specifiers, optional bracketed extras, optional ";"
// environment markers, "#" comments and blank lines skipped.
type RequirementsTxt struct{}

func (r *RequirementsTxt) Format() Format { return FormatRequirements }

func (r *RequirementsTxt) Supports(name string) bool {
	return name == "requirements.txt" ||
		(strings.HasPrefix(name, "requirements") && strings.HasSuffix(name, ".txt"))
}

func (r *RequirementsTxt) Parse(path string, data []byte) (*Result, error) {
	res := &Result{Format: FormatRequirements, Language: "python"}

	// Dev-flavored requirement files mark their entries as dev.
	dev := isDevRequirements(path)

	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := stripComment(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "-") {
			// pip options (-r, -e, --index-url); not dependency entries.
			res.Warnings = append(res.Warnings, Warning{
				File: path, Line: lineno,
				Message: fmt.Sprintf("skipped pip option %q", line),
			})
			continue
		}
		if strings.Contains(line, "://") || strings.HasPrefix(line, "git+") {
			res.Warnings = append(res.Warnings, Warning{
				File: path, Line: lineno,
				Message: fmt.Sprintf("skipped URL requirement %q", line),
			})
			continue
		}

		dep, ok := parseRequirementLine(line, path, dev)
		if !ok {
			res.Warnings = append(res.Warnings, Warning{
				File: path, Line: lineno,
				Message: fmt.Sprintf("unparseable requirement %q", line),
			})
			continue
		}
		res.Deps = append(res.Deps, dep)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeParse, err, "read %s", path)
	}
	return res, nil
}

// parseRequirementLine decodes one requirement entry. The line has already
// been stripped of comments and surrounding whitespace.
func parseRequirementLine(line, path string, dev bool) (Dependency, bool) {
	spec := line
	markers := ""
	if i := strings.Index(line, ";"); i >= 0 {
		spec = strings.TrimSpace(line[:i])
		markers = strings.TrimSpace(line[i+1:])
	}

	m := depLineRE.FindStringSubmatch(spec)
	if m == nil || m[1] == "" {
		return Dependency{}, false
	}

	verspec := strings.TrimSpace(m[3])
	if verspec != "" && !strings.ContainsAny(verspec, "=<>!~") {
		// Trailing junk that is not a specifier, e.g. "requests foo".
		return Dependency{}, false
	}

	dep := newDependency(m[1], verspec, path, dev)
	dep.Markers = markers
	if m[2] != "" {
		dep.Extras = sortExtras(strings.Split(m[2], ","))
	}
	return dep, true
}

// stripComment removes a trailing "#" comment and trims the line.
func stripComment(line string) string {
	if i := strings.Index(line, "#"); i >= 0 {
		line = line[:i]
	}
	return strings.TrimSpace(line)
}

// isDevRequirements reports whether the filename indicates development
// dependencies (requirements-dev.txt, requirements_test.txt and friends).
func isDevRequirements(path string) bool {
	name := strings.ToLower(path)
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	for _, tag := range []string{"dev", "test", "lint", "ci"} {
		if strings.Contains(name, tag) {
			return true
		}
	}
	return false
}
