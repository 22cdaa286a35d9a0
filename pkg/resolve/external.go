package resolve

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/matzehuels/stackfuse/pkg/errors"
)

// ExternalSolver shells out to a real constraint solver. The process
// contract: requirements go in one-per-line on stdin, the pinned lockfile
// comes back on stdout, diagnostics on stderr, non-zero exit on failure.
type ExternalSolver struct {
	name string
	kind SolverKind
	exe  string
	args []string
}

// NewUvSolver returns the primary solver, backed by "uv pip compile".
// exe overrides the executable name (default "uv").
func NewUvSolver(exe string) *ExternalSolver {
	if exe == "" {
		exe = "uv"
	}
	return &ExternalSolver{
		name: "uv",
		kind: SolverPrimary,
		exe:  exe,
		args: []string{"pip", "compile", "-", "--no-header", "--no-annotate"},
	}
}

// NewPipCompileSolver returns the secondary solver, backed by pip-tools'
// pip-compile. exe overrides the executable name (default "pip-compile").
func NewPipCompileSolver(exe string) *ExternalSolver {
	if exe == "" {
		exe = "pip-compile"
	}
	return &ExternalSolver{
		name: "pip-compile",
		kind: SolverSecondary,
		exe:  exe,
		args: []string{"--no-header", "--no-annotate", "--output-file", "-", "-"},
	}
}

func (s *ExternalSolver) Name() string     { return s.name }
func (s *ExternalSolver) Kind() SolverKind { return s.kind }

// Probe checks that the executable exists on PATH.
func (s *ExternalSolver) Probe(ctx context.Context) bool {
	_, err := exec.LookPath(s.exe)
	return err == nil
}

// Resolve invokes the solver process with the rendered requirement list.
func (s *ExternalSolver) Resolve(ctx context.Context, reqs []Requirement) (*Result, error) {
	var input bytes.Buffer
	for _, r := range reqs {
		input.WriteString(r.Render())
		input.WriteByte('\n')
	}

	cmd := exec.CommandContext(ctx, s.exe, s.args...)
	cmd.Stdin = &input
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			// Killed on timeout/cancel: the partial output is untrusted.
			return nil, ctx.Err()
		}
		notes := parseFailureNotes(stderr.String())
		return nil, errors.New(errors.ErrCodeResolutionFailed,
			"%s failed: %s", s.name, strings.Join(notes, "; "))
	}

	packages, err := parseLockfile(stdout.String())
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeResolutionFailed, err, "%s produced malformed output", s.name)
	}

	return &Result{
		Success:         true,
		Packages:        packages,
		LockfilePreview: strings.TrimSpace(stdout.String()),
		SolverUsed:      s.kind,
	}, nil
}

// pinRE matches one lockfile line: "name==1.2.3" with optional extras.
var pinRE = regexp.MustCompile(`^([a-zA-Z0-9][-a-zA-Z0-9._]*)(?:\[[^\]]*\])?==(\S+)`)

// hashRE matches pip-tools style continuation lines carrying hashes.
var hashRE = regexp.MustCompile(`--hash=(\S+)`)

// parseLockfile extracts exact pins from solver stdout. Comment and option
// lines are skipped; a hash continuation line attaches to the preceding
// pin. Output with no pins at all is malformed.
func parseLockfile(text string) ([]ResolvedPackage, error) {
	var packages []ResolvedPackage
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if m := hashRE.FindStringSubmatch(line); m != nil && len(packages) > 0 {
			if packages[len(packages)-1].Hash == "" {
				packages[len(packages)-1].Hash = m[1]
			}
			continue
		}
		if m := pinRE.FindStringSubmatch(line); m != nil {
			packages = append(packages, ResolvedPackage{
				Name:         m[1],
				ExactVersion: strings.TrimSuffix(m[2], "\\"),
			})
		}
	}
	if len(packages) == 0 {
		return nil, fmt.Errorf("no pinned packages in solver output")
	}
	return packages, nil
}

// failurePatterns map known solver-error phrasings to structured notes.
// Anything unmatched is preserved verbatim rather than discarded.
var failurePatterns = []struct {
	re   *regexp.Regexp
	note string
}{
	{regexp.MustCompile(`(?i)ResolutionImpossible`), "solver reports the constraint set is unsatisfiable"},
	{regexp.MustCompile(`(?i)No solution found when resolving dependencies`), "solver found no solution for the requirement set"},
	{regexp.MustCompile(`(?i)conflicting dependencies`), "solver detected conflicting dependencies"},
	{regexp.MustCompile(`(?i)Cannot install ([^\s,]+)`), "cannot install %s"},
	{regexp.MustCompile(`(?i)could not find a version that (?:satisfies|matches) ([^\s,]+)`), "no version satisfies %s"},
}

// parseFailureNotes turns solver stderr into human-readable notes. Matched
// phrasings become structured messages; leftover non-empty lines are kept
// as-is so no diagnostic detail is lost.
func parseFailureNotes(stderr string) []string {
	var notes []string
	matchedLines := make(map[string]bool)

	for _, p := range failurePatterns {
		for _, m := range p.re.FindAllStringSubmatch(stderr, -1) {
			if len(m) > 1 {
				notes = append(notes, fmt.Sprintf(p.note, m[1]))
			} else {
				notes = append(notes, p.note)
			}
			matchedLines[m[0]] = true
		}
	}

	for _, line := range strings.Split(stderr, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		matched := false
		for substr := range matchedLines {
			if strings.Contains(line, substr) {
				matched = true
				break
			}
		}
		if !matched {
			notes = append(notes, line)
		}
	}

	if len(notes) == 0 {
		notes = append(notes, "solver exited with an error and no diagnostics")
	}
	return dedupeNotes(notes)
}

func dedupeNotes(notes []string) []string {
	seen := make(map[string]bool, len(notes))
	var out []string
	for _, n := range notes {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}
