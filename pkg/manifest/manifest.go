// Package manifest reads dependency declarations from ecosystem-specific
// manifest files and reduces them to a uniform Dependency shape.
//
// The supported format set is small and fixed: a flat requirements list,
// pyproject.toml (standards-based and poetry dialects), Pipfile,
// package.json, and Cargo.toml. Dispatch is closed over this list; there is
// no runtime discovery of parsers.
//
// Parsers are lenient at the entry level: a malformed line or table value is
// skipped and recorded as a Warning, it never aborts parsing of the rest of
// the file. Only an unreadable file (e.g. invalid TOML/JSON as a whole)
// produces an error.
package manifest

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Format identifies one supported manifest family.
type Format string

const (
	FormatRequirements Format = "requirements"
	FormatPyproject    Format = "pyproject"
	FormatPipfile      Format = "pipfile"
	FormatPackageJSON  Format = "packagejson"
	FormatCargo        Format = "cargo"
)

// Dependency is one declared dependency, normalized across formats.
type Dependency struct {
	Name       string   // Name as written in the manifest
	Normalized string   // Canonical join key (lowercase, separators unified)
	Spec       string   // Version specifier text, "" when unconstrained
	Extras     []string // Optional feature names, sorted
	Markers    string   // Environment markers, captured verbatim, never evaluated
	Dev        bool     // Declared in a dev/test section
	SourceFile string   // Manifest file this entry came from
}

// Warning records a skipped or suspicious entry. Warnings never stop
// parsing.
type Warning struct {
	File    string
	Line    int // 0 when the format has no line numbers
	Message string
}

// Result is the outcome of parsing one manifest file.
type Result struct {
	Format   Format
	Deps     []Dependency
	Warnings []Warning
	Runtime  string // Declared interpreter/platform constraint ("" if absent)
	Language string // Primary language implied by the format
}

// Parser reads dependency information from one manifest format.
type Parser interface {
	// Parse decodes the manifest content. path is used only for
	// attribution in Dependency.SourceFile and Warnings.
	Parse(path string, data []byte) (*Result, error)
	// Supports reports whether this parser handles the given filename.
	Supports(filename string) bool
	// Format returns the format identifier.
	Format() Format
}

// Parsers returns the fixed parser list, one per supported format.
func Parsers() []Parser {
	return []Parser{
		&RequirementsTxt{},
		&Pyproject{},
		&Pipfile{},
		&PackageJSON{},
		&CargoToml{},
	}
}

// Detect finds the parser that supports the given file path. The second
// return is false when no parser matches.
func Detect(path string) (Parser, bool) {
	name := filepath.Base(path)
	for _, p := range Parsers() {
		if p.Supports(name) {
			return p, true
		}
	}
	return nil, false
}

var separatorRE = regexp.MustCompile(`[-_.]+`)

// Normalize canonicalizes a package name for cross-file and cross-repo
// comparison: lowercase with runs of "-", "_" and "." unified to "-".
func Normalize(name string) string {
	return separatorRE.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
}

// newDependency fills the derived fields shared by every parser.
func newDependency(name, spec, source string, dev bool) Dependency {
	return Dependency{
		Name:       name,
		Normalized: Normalize(name),
		Spec:       strings.TrimSpace(spec),
		SourceFile: source,
		Dev:        dev,
	}
}

// sortExtras returns a sorted copy of extras with empties dropped.
func sortExtras(extras []string) []string {
	var out []string
	for _, e := range extras {
		if e = strings.TrimSpace(e); e != "" {
			out = append(out, e)
		}
	}
	sort.Strings(out)
	return out
}
