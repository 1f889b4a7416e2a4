package vm

import "strings"

// Comparator orders compound tails. It must be a total order: zero only
// for identical tails, and antisymmetric.
type Comparator func(a, b string) int

// CompareTails orders tails by length first, then by byte content.
func CompareTails(a, b string) int {
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return strings.Compare(a, b)
}

// NewTail joins resolved tail parts with periods, so NewTail("1", "X")
// is the tail of A.1.X.
func NewTail(parts ...string) string {
	return strings.Join(parts, ".")
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}

// CheckedComparator wraps cmp so that every comparison is also made in
// the reverse direction. An inconsistent answer panics with a
// *ProtocolViolation instead of silently corrupting a table.
func CheckedComparator(cmp Comparator) Comparator {
	return func(a, b string) int {
		r := cmp(a, b)
		if a == b {
			if r != 0 {
				panic(violation("compare tails", "%q compares %d with itself", a, r))
			}
			return 0
		}
		if back := cmp(b, a); sign(r) != -sign(back) || r == 0 {
			panic(violation("compare tails", "%q vs %q gave %d, reverse gave %d", a, b, r, back))
		}
		return r
	}
}
