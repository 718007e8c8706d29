package localpath

import (
	"bytes"
	"testing"
)

// sep1 and sep2 model single-byte and two-byte platform separators.
var (
	sep1 = Separator("/")
	sep2 = Separator("\\\x00")
)

func lp(s string) LocalPath { return FromLocal([]byte(s)) }

func TestSeparatorAppend(t *testing.T) {
	tests := []struct {
		name   string
		base   string
		add    string
		sep    Separator
		always bool
		want   string
	}{
		{name: "Empty base no separator", base: "", add: "leaf", sep: sep1, always: false, want: "leaf"},
		{name: "Empty base forced separator", base: "", add: "leaf", sep: sep1, always: true, want: "/leaf"},
		{name: "Non-empty base", base: "a/b", add: "c", sep: sep1, always: false, want: "a/b/c"},
		{name: "Two byte separator", base: "a", add: "b", sep: sep2, always: false, want: "a\\\x00b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := lp(tt.base).Clone()
			p.SeparatorAppend(lp(tt.add), tt.sep, tt.always)
			if got := string(p.Bytes()); got != tt.want {
				t.Errorf("SeparatorAppend() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSeparatorPrepend(t *testing.T) {
	p := lp("leaf").Clone()
	p.SeparatorPrepend(lp("base"), sep1)
	if got := string(p.Bytes()); got != "base/leaf" {
		t.Errorf("SeparatorPrepend() = %q, want %q", got, "base/leaf")
	}
}

func TestTrimTrailingSeparator(t *testing.T) {
	tests := []struct {
		name string
		in   string
		sep  Separator
		want string
	}{
		{name: "Trailing separator removed", in: "a/b/", sep: sep1, want: "a/b"},
		{name: "No trailing separator", in: "a/b", sep: sep1, want: "a/b"},
		{name: "Only separator", in: "/", sep: sep1, want: ""},
		{name: "Two byte separator removed", in: "ab\\\x00", sep: sep2, want: "ab"},
		{name: "Unaligned occurrence kept", in: "a\\\x00b", sep: sep2, want: "a\\\x00b"},
		{name: "Shorter than separator", in: "a", sep: sep2, want: "a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := lp(tt.in).Clone()
			p.TrimTrailingSeparator(tt.sep)
			if got := string(p.Bytes()); got != tt.want {
				t.Errorf("TrimTrailingSeparator() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFindNextSeparator(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		start     int
		sep       Separator
		wantPos   int
		wantFound bool
	}{
		{name: "First separator", in: "ab/cd/e", start: 0, sep: sep1, wantPos: 2, wantFound: true},
		{name: "From offset", in: "ab/cd/e", start: 3, sep: sep1, wantPos: 5, wantFound: true},
		{name: "None", in: "abcde", start: 0, sep: sep1, wantFound: false},
		// The two-byte separator starting at offset 3 is unaligned and must
		// be skipped; the aligned one at offset 6 wins.
		{name: "Unaligned occurrence skipped", in: "ab\x00\\\x00a\\\x00", start: 0, sep: sep2, wantPos: 6, wantFound: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos, found := lp(tt.in).FindNextSeparator(tt.start, tt.sep)
			if found != tt.wantFound {
				t.Fatalf("FindNextSeparator() found = %v, want %v", found, tt.wantFound)
			}
			if found && pos != tt.wantPos {
				t.Errorf("FindNextSeparator() pos = %d, want %d", pos, tt.wantPos)
			}
			if found && pos%len(tt.sep) != 0 {
				t.Errorf("FindNextSeparator() pos %d is not aligned to width %d", pos, len(tt.sep))
			}
		})
	}
}

func TestFindPrevSeparator(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		start     int
		sep       Separator
		wantPos   int
		wantFound bool
	}{
		{name: "Last separator", in: "ab/cd/e", start: 6, sep: sep1, wantPos: 5, wantFound: true},
		{name: "From offset before last", in: "ab/cd/e", start: 4, sep: sep1, wantPos: 2, wantFound: true},
		{name: "None", in: "abcde", start: 4, sep: sep1, wantFound: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos, found := lp(tt.in).FindPrevSeparator(tt.start, tt.sep)
			if found != tt.wantFound {
				t.Fatalf("FindPrevSeparator() found = %v, want %v", found, tt.wantFound)
			}
			if found && pos != tt.wantPos {
				t.Errorf("FindPrevSeparator() pos = %d, want %d", pos, tt.wantPos)
			}
		})
	}
}

func TestLeafnameByteIndex(t *testing.T) {
	tests := []struct {
		name string
		in   string
		sep  Separator
		want int
	}{
		{name: "Leaf after separator", in: "a/b/leaf", sep: sep1, want: 4},
		{name: "No separator", in: "leaf", sep: sep1, want: 0},
		{name: "Empty", in: "", sep: sep1, want: 0},
		{name: "Two byte separator", in: "ab\\\x00leaf", sep: sep2, want: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := lp(tt.in).LeafnameByteIndex(tt.sep); got != tt.want {
				t.Errorf("LeafnameByteIndex() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestBackEqual(t *testing.T) {
	p := lp("dir/name.txt")
	if !p.BackEqual(4, lp("name.txt")) {
		t.Error("BackEqual() = false for a matching suffix")
	}
	if p.BackEqual(4, lp("name.bin")) {
		t.Error("BackEqual() = true for a non-matching suffix")
	}
	if p.BackEqual(3, lp("name.txt")) {
		t.Error("BackEqual() = true for a suffix that does not reach the end")
	}
}

func TestIsContainingPathOf(t *testing.T) {
	tests := []struct {
		name   string
		parent string
		child  string
		sep    Separator
		want   bool
	}{
		{name: "Direct child", parent: "a/b", child: "a/b/x", sep: sep1, want: true},
		{name: "Same path", parent: "a/b", child: "a/b", sep: sep1, want: true},
		{name: "Sibling with shared prefix", parent: "a/b", child: "a/bc", sep: sep1, want: false},
		{name: "Sibling last char changed", parent: "a/b", child: "a/c/x", sep: sep1, want: false},
		{name: "Shorter candidate", parent: "a/b", child: "a", sep: sep1, want: false},
		{name: "Two byte separator child", parent: "ab", child: "ab\\\x00x", sep: sep2, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := lp(tt.parent).IsContainingPathOf(lp(tt.child), tt.sep); got != tt.want {
				t.Errorf("IsContainingPathOf(%q, %q) = %v, want %v", tt.parent, tt.child, got, tt.want)
			}
		})
	}
}

func TestSubpathExtraction(t *testing.T) {
	p := lp("a/b/c")
	if got := string(p.SubpathFrom(2).Bytes()); got != "b/c" {
		t.Errorf("SubpathFrom(2) = %q, want %q", got, "b/c")
	}
	if got := string(p.SubstrTo(3).Bytes()); got != "a/b" {
		t.Errorf("SubstrTo(3) = %q, want %q", got, "a/b")
	}

	// Extraction must copy: mutating the original must not leak through.
	sub := p.SubpathFrom(0)
	p.Append(lp("/d"))
	if got := string(sub.Bytes()); got != "a/b/c" {
		t.Errorf("SubpathFrom result changed after mutation: %q", got)
	}
}

func TestCloneIndependence(t *testing.T) {
	p := lp("abc")
	c := p.Clone()
	c.Append(lp("def"))
	if !bytes.Equal(p.Bytes(), []byte("abc")) {
		t.Errorf("Clone mutation leaked into original: %q", p.Bytes())
	}
}
