package rangepatch

import "fmt"

// Range is the half-open interval [Start, End) of offsets into one buffer.
type Range struct {
	Start, End int
}

func (r Range) Len() int { return r.End - r.Start }

// Contains reports whether offset o lies inside r.
func (r Range) Contains(o int) bool {
	return o >= r.Start && o < r.End
}

// Overlaps reports whether r and o share an offset: the span needed to hold both is
// smaller than their combined size.
func (r Range) Overlaps(o Range) bool {
	return max(r.End, o.End)-min(r.Start, o.Start) < r.Len()+o.Len()
}

func (r Range) String() string {
	return fmt.Sprintf("[%d,%d)", r.Start, r.End)
}

// Match is a run of bytes found at Old in the old buffer and at New in the new one.
// Both ranges are Size bytes long.
type Match struct {
	Old, New Range
	Size     int
}

// Crosses reports whether m and o appear in a different relative order in the two
// buffers.
func (m Match) Crosses(o Match) bool {
	return (m.Old.Start > o.Old.Start && m.New.Start < o.New.Start) ||
		(m.Old.Start < o.Old.Start && m.New.Start > o.New.Start)
}

// Conflicts reports whether m and o cannot both be part of one edit script.
func (m Match) Conflicts(o Match) bool {
	return m.Crosses(o) || m.Old.Overlaps(o.Old) || m.New.Overlaps(o.New)
}

// diagonal identifies the line new = old + d that every anchor of m lies on.
func (m Match) diagonal() int {
	return m.New.Start - m.Old.Start
}

// outranks orders matches for conflict resolution: longer first, then the one that
// starts earlier in the old buffer, then earlier in the new buffer.
func (m Match) outranks(o Match) bool {
	if m.Size != o.Size {
		return m.Size > o.Size
	}
	if m.Old.Start != o.Old.Start {
		return m.Old.Start < o.Old.Start
	}
	return m.New.Start < o.New.Start
}

func (m Match) String() string {
	return fmt.Sprintf("%v->%v(%d)", m.Old, m.New, m.Size)
}

// expand grows the anchor (o, n), where old[o] == new[n], in both directions for as
// long as the buffers agree.
func expand(old, new []byte, o, n int) Match {
	left := commonSuffixLength(old[:o], new[:n])
	right := commonPrefixLength(old[o+1:], new[n+1:])
	size := left + 1 + right

	return Match{
		Old:  Range{o - left, o - left + size},
		New:  Range{n - left, n - left + size},
		Size: size,
	}
}

// commonPrefixLength returns the length of the common prefix of two byte slices.
func commonPrefixLength(text1, text2 []byte) int {
	n := 0
	for ; n < len(text1) && n < len(text2); n++ {
		if text1[n] != text2[n] {
			return n
		}
	}
	return n
}

// commonSuffixLength returns the length of the common suffix of two byte slices.
func commonSuffixLength(text1, text2 []byte) int {
	// Linear search, see https://github.com/sergi/go-diff/issues/54.
	i1 := len(text1)
	i2 := len(text2)
	for n := 0; ; n++ {
		i1--
		i2--
		if i1 < 0 || i2 < 0 || text1[i1] != text2[i2] {
			return n
		}
	}
}
