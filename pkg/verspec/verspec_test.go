package verspec

import "testing"

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0", "1.0", 0},
		{"1.0", "1.0.0", 0},
		{"1.2", "1.10", -1},
		{"2.0", "1.26", 1},
		{"1.26.2", "1.26.10", -1},
		{"v1.2.3", "1.2.3", 0},
		{"1.0.0rc1", "1.0.0", -1},
		{"2.0.0-beta", "2.0.0", -1},
		{"1.0.0rc1", "1.0.0rc2", -1},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_vs_"+tt.b, func(t *testing.T) {
			if got := Compare(tt.a, tt.b); got != tt.want {
				t.Errorf("Compare(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestParse_Specificity(t *testing.T) {
	tests := []struct {
		raw  string
		want Specificity
	}{
		{"", Unconstrained},
		{"*", Unconstrained},
		{"==1.26.2", Exact},
		{"1.26.2", Exact},
		{"=1.26.2", Exact},
		{">=1.20", SingleBound},
		{"<2.0", SingleBound},
		{">=1.24,<1.26", DoubleBound},
		{"~=2.28.0", DoubleBound},
		{"^1.2.3", DoubleBound},
		{"~1.4.2", DoubleBound},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			s, err := Parse(tt.raw)
			if err != nil {
				t.Fatalf("Parse(%q) failed: %v", tt.raw, err)
			}
			if got := s.Specificity(); got != tt.want {
				t.Errorf("Specificity(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParse_Unrecognizable(t *testing.T) {
	// "==>" and ">=abc" carry a real operator but no version text behind
	// it; they must not turn into garbage pins or bounds.
	for _, raw := range []string{"==>", ">=abc", "^junk", "!!", "@@@"} {
		s, err := Parse(raw)
		if err == nil {
			t.Errorf("Parse(%q) should fail", raw)
		}
		if s.Pin != "" || s.Lower != nil || s.Upper != nil {
			t.Errorf("Parse(%q) leaked constraints: %+v", raw, s)
		}
	}

	// A bad clause among good ones is ignored, not fatal.
	s, err := Parse(">=1.0,???")
	if err != nil {
		t.Fatalf("Parse with one bad clause failed: %v", err)
	}
	if s.Lower == nil || s.Lower.Version != "1.0" {
		t.Errorf("good clause should survive: %+v", s)
	}
}

func TestParse_CompatibleRelease(t *testing.T) {
	s, err := Parse("~=1.4.2")
	if err != nil {
		t.Fatal(err)
	}
	if s.Lower == nil || s.Lower.Version != "1.4.2" || !s.Lower.Inclusive {
		t.Errorf("lower = %+v, want >=1.4.2", s.Lower)
	}
	if s.Upper == nil || s.Upper.Version != "1.5" || s.Upper.Inclusive {
		t.Errorf("upper = %+v, want <1.5", s.Upper)
	}
}

func TestParse_Caret(t *testing.T) {
	tests := []struct {
		raw       string
		wantUpper string
	}{
		{"^1.2.3", "2"},
		{"^0.2.5", "0.3"},
		{"^0.0.4", "0.0.5"},
	}
	for _, tt := range tests {
		s, err := Parse(tt.raw)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tt.raw, err)
		}
		if s.Upper == nil || s.Upper.Version != tt.wantUpper {
			t.Errorf("Parse(%q).Upper = %+v, want <%s", tt.raw, s.Upper, tt.wantUpper)
		}
	}
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"equal pins", "==1.26.2", "==1.26.2", true},
		{"different pins", "==1.26.2", "==1.25.0", false},
		{"unconstrained vs anything", "", "==1.0", true},
		{"star vs pin", "*", "==1.0", true},
		{"overlapping ranges", ">=2.28,<3.0", ">=2.30", true},
		{"disjoint ranges", ">=2.0", ">=1.24,<1.26", false},
		{"touching inclusive", ">=1.0,<=2.0", ">=2.0", true},
		{"touching exclusive", ">=1.0,<2.0", ">=2.0", false},
		{"pin inside range", "==2.29.0", ">=2.28,<3.0", true},
		{"pin outside range", "==3.1.0", ">=2.28,<3.0", false},
		{"caret vs compatible", "^1.4.0", "~=1.4.2", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := Parse(tt.a)
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.a, err)
			}
			b, err := Parse(tt.b)
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.b, err)
			}
			if got := Overlaps(a, b); got != tt.want {
				t.Errorf("Overlaps(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
			// The check is symmetric.
			if got := Overlaps(b, a); got != tt.want {
				t.Errorf("Overlaps(%q, %q) = %v, want %v", tt.b, tt.a, got, tt.want)
			}
		})
	}
}
