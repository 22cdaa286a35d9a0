// Package verspec parses version specifier strings and provides the
// heuristic interval checks used for conflict detection and compatibility
// analysis.
//
// The package deliberately does not implement exact range-set arithmetic.
// Specifiers from different ecosystems (PEP 440 style "==", ">=", "~=",
// npm style "^"/"~", Cargo style "=") are reduced to a single approximate
// interval with an optional exact pin. The only promises are:
//   - parsing never panics or hangs on hostile input
//   - an unrecognizable clause degrades the spec, it does not fail it
//   - two specs whose intervals touch are treated as overlapping
package verspec

import (
	"strconv"
	"strings"

	"github.com/matzehuels/stackfuse/pkg/errors"
)

// Specificity ranks how constrained a spec is. Higher values win during
// deduplication: an exact pin beats a double-bounded range, which beats a
// single bound, which beats no constraint at all.
type Specificity int

const (
	Unconstrained Specificity = iota
	SingleBound
	DoubleBound
	Exact
)

// String returns a human-readable name for the specificity level.
func (s Specificity) String() string {
	switch s {
	case Exact:
		return "exact"
	case DoubleBound:
		return "bounded"
	case SingleBound:
		return "half-bounded"
	default:
		return "unconstrained"
	}
}

// Bound is one end of a version interval.
type Bound struct {
	Version   string
	Inclusive bool
}

// Spec is the reduced interval form of a version specifier string.
type Spec struct {
	Raw   string // Original specifier text, preserved verbatim
	Pin   string // Non-empty when the spec is a single exact pin
	Lower *Bound // nil means unbounded below
	Upper *Bound // nil means unbounded above
}

// IsUnconstrained reports whether the spec places no restriction at all.
func (s Spec) IsUnconstrained() bool {
	return s.Pin == "" && s.Lower == nil && s.Upper == nil
}

// Specificity returns the dedup rank of this spec.
func (s Spec) Specificity() Specificity {
	switch {
	case s.Pin != "":
		return Exact
	case s.Lower != nil && s.Upper != nil:
		return DoubleBound
	case s.Lower != nil || s.Upper != nil:
		return SingleBound
	default:
		return Unconstrained
	}
}

// Parse reduces a specifier string to a Spec. An empty string or "*" yields
// an unconstrained spec. Clauses are comma-separated; each clause tightens
// the interval. A clause that cannot be understood is ignored (the result
// is looser, never wrong in the blocking direction). Parse returns an error
// only when the input is non-empty yet yields no usable information and
// contains no recognizable version text, e.g. "==>" or "!!".
func Parse(raw string) (Spec, error) {
	s := Spec{Raw: raw}
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == "*" {
		return s, nil
	}

	recognized := 0
	for _, clause := range strings.Split(trimmed, ",") {
		clause = strings.TrimSpace(clause)
		if clause == "" || clause == "*" {
			continue
		}
		if applyClause(&s, clause) {
			recognized++
		}
	}

	if recognized == 0 {
		return Spec{Raw: raw}, errors.New(errors.ErrCodeInvalidSpec, "unrecognizable version specifier %q", raw)
	}

	// A pin combined with other clauses keeps the pin; the solver sees the
	// raw text anyway, the interval is only used for the overlap heuristic.
	if s.Pin != "" {
		s.Lower = &Bound{Version: s.Pin, Inclusive: true}
		s.Upper = &Bound{Version: s.Pin, Inclusive: true}
	}
	return s, nil
}

// applyClause folds one specifier clause into the spec. Reports whether the
// clause was understood.
func applyClause(s *Spec, clause string) bool {
	op, ver := splitOp(clause)
	if !versionLike(ver) {
		return false
	}
	switch op {
	case "==", "=", "":
		// Bare versions reach us from package.json and normalized Cargo
		// tables; treat them as pins.
		s.Pin = ver
	case ">=":
		tightenLower(s, &Bound{Version: ver, Inclusive: true})
	case ">":
		tightenLower(s, &Bound{Version: ver, Inclusive: false})
	case "<=":
		tightenUpper(s, &Bound{Version: ver, Inclusive: true})
	case "<":
		tightenUpper(s, &Bound{Version: ver, Inclusive: false})
	case "~=", "~":
		// Compatible release: >= ver, < ver with its last segment bumped.
		tightenLower(s, &Bound{Version: ver, Inclusive: true})
		if next := bumpPenultimate(ver); next != "" {
			tightenUpper(s, &Bound{Version: next, Inclusive: false})
		}
	case "^":
		tightenLower(s, &Bound{Version: ver, Inclusive: true})
		if next := bumpLeading(ver); next != "" {
			tightenUpper(s, &Bound{Version: next, Inclusive: false})
		}
	case "!=":
		// Exclusions cannot be represented as an interval; ignoring them
		// only widens the heuristic. Still counts as understood.
	default:
		return false
	}
	return true
}

// versionLike reports whether the text plausibly names a version: a leading
// digit, optionally behind a "v" prefix. Operator leftovers like the ">" in
// "==>" fail this, so the clause stays unrecognized instead of becoming a
// garbage pin.
func versionLike(ver string) bool {
	ver = strings.TrimPrefix(ver, "v")
	return ver != "" && ver[0] >= '0' && ver[0] <= '9'
}

var ops = []string{"===", "==", ">=", "<=", "!=", "~=", ">", "<", "^", "~", "="}

// splitOp separates the leading operator from the version text.
func splitOp(clause string) (op, ver string) {
	for _, candidate := range ops {
		if strings.HasPrefix(clause, candidate) {
			rest := strings.TrimSpace(clause[len(candidate):])
			if candidate == "===" {
				candidate = "=="
			}
			return candidate, rest
		}
	}
	if len(clause) > 0 && (clause[0] >= '0' && clause[0] <= '9' || clause[0] == 'v') {
		return "", strings.TrimPrefix(clause, "v")
	}
	return "", ""
}

// bumpPenultimate implements the "~=" upper bound: "1.4.2" -> "1.5",
// "2.28" -> "3". Returns "" when the version has no numeric segments.
func bumpPenultimate(ver string) string {
	segs := numericSegments(ver)
	if len(segs) == 0 {
		return ""
	}
	if len(segs) == 1 {
		return strconv.Itoa(segs[0] + 1)
	}
	segs = segs[:len(segs)-1]
	segs[len(segs)-1]++
	return joinSegments(segs)
}

// bumpLeading implements the "^" upper bound: the leftmost non-zero segment
// is incremented and everything after it drops. "^0.2.5" -> "0.3",
// "^1.2.3" -> "2".
func bumpLeading(ver string) string {
	segs := numericSegments(ver)
	if len(segs) == 0 {
		return ""
	}
	for i, seg := range segs {
		if seg != 0 {
			bumped := append([]int{}, segs[:i+1]...)
			bumped[i]++
			return joinSegments(bumped)
		}
	}
	last := len(segs) - 1
	segs[last]++
	return joinSegments(segs)
}

func tightenLower(s *Spec, b *Bound) {
	if s.Lower == nil || Compare(b.Version, s.Lower.Version) > 0 {
		s.Lower = b
	}
}

func tightenUpper(s *Spec, b *Bound) {
	if s.Upper == nil || Compare(b.Version, s.Upper.Version) < 0 {
		s.Upper = b
	}
}

// Overlaps reports whether the two specs could be satisfied by a common
// version under the interval heuristic. Unconstrained specs overlap with
// everything. Touching bounds count as overlapping only when both touching
// ends are inclusive.
func Overlaps(a, b Spec) bool {
	if a.IsUnconstrained() || b.IsUnconstrained() {
		return true
	}
	if a.Pin != "" && b.Pin != "" {
		return Compare(a.Pin, b.Pin) == 0
	}
	return lowerBelowUpper(a.Lower, b.Upper) && lowerBelowUpper(b.Lower, a.Upper)
}

// lowerBelowUpper reports whether the interval [lower, ...] reaches as far
// down as [..., upper] reaches up. Nil bounds are infinite in their
// direction.
func lowerBelowUpper(lower, upper *Bound) bool {
	if lower == nil || upper == nil {
		return true
	}
	c := Compare(lower.Version, upper.Version)
	if c != 0 {
		return c < 0
	}
	return lower.Inclusive && upper.Inclusive
}

// Compare orders two version strings. Dotted numeric segments compare
// numerically; a non-numeric suffix within a segment (pre-release tags like
// "1.0.0rc1" or "2.0.0-beta") compares lexically after the numeric part and
// sorts below the plain release. Missing segments count as zero.
func Compare(a, b string) int {
	as := strings.Split(strings.TrimPrefix(strings.TrimSpace(a), "v"), ".")
	bs := strings.Split(strings.TrimPrefix(strings.TrimSpace(b), "v"), ".")

	n := len(as)
	if len(bs) > n {
		n = len(bs)
	}
	for i := 0; i < n; i++ {
		var sa, sb string
		if i < len(as) {
			sa = as[i]
		}
		if i < len(bs) {
			sb = bs[i]
		}
		if c := compareSegment(sa, sb); c != 0 {
			return c
		}
	}
	return 0
}

// compareSegment compares one dotted segment: numeric prefix first, then the
// remaining tag text. A segment with a tag sorts below the same number
// without one ("1.0rc1" < "1.0").
func compareSegment(a, b string) int {
	na, ta := splitNum(a)
	nb, tb := splitNum(b)
	if na != nb {
		if na < nb {
			return -1
		}
		return 1
	}
	if ta == tb {
		return 0
	}
	if ta == "" {
		return 1
	}
	if tb == "" {
		return -1
	}
	return strings.Compare(ta, tb)
}

// splitNum splits a segment into its numeric prefix and trailing tag.
func splitNum(s string) (int, string) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	n, _ := strconv.Atoi(s[:i])
	return n, strings.TrimLeft(s[i:], "-_")
}

func numericSegments(ver string) []int {
	var segs []int
	for _, part := range strings.Split(ver, ".") {
		n, tag := splitNum(part)
		segs = append(segs, n)
		if tag != "" {
			break
		}
	}
	return segs
}

func joinSegments(segs []int) string {
	parts := make([]string, len(segs))
	for i, s := range segs {
		parts[i] = strconv.Itoa(s)
	}
	return strings.Join(parts, ".")
}
