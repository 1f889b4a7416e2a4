package vm

import (
	"errors"
	"math"
	"math/rand"
	"slices"
	"strconv"
	"testing"
)

func heightBound(n int) float64 {
	return 1.45 * math.Log2(float64(n+2))
}

func fill(t *testing.T, table *CompoundTable, tails []string) {
	t.Helper()
	for _, tail := range tails {
		table.FindOrCreate(tail).Set(tail)
		if err := table.Validate(); err != nil {
			t.Fatalf("after inserting %q: %v", tail, err)
		}
	}
}

// ---------------------------------------------------------------------------
// Tail ordering
// ---------------------------------------------------------------------------

func TestCompareTailsLengthFirst(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"9", "10", -1},
		{"10", "9", 1},
		{"AB", "AA", 1},
		{"AA", "AB", -1},
		{"", "A", -1},
		{"X.Y", "X.Y", 0},
	}
	for _, tt := range tests {
		if got := sign(CompareTails(tt.a, tt.b)); got != tt.want {
			t.Errorf("CompareTails(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestNewTail(t *testing.T) {
	if got := NewTail("1", "X", "Y"); got != "1.X.Y" {
		t.Errorf("Expected 1.X.Y, got %q", got)
	}
	if got := NewTail("ONLY"); got != "ONLY" {
		t.Errorf("Expected ONLY, got %q", got)
	}
}

func TestCheckedComparatorRejectsInconsistentOrder(t *testing.T) {
	bad := CheckedComparator(func(a, b string) int { return 1 })
	table := NewCompoundTableWithComparator(bad)
	table.FindOrCreate("A")

	defer func() {
		r := recover()
		err, ok := r.(error)
		if !ok {
			t.Fatalf("Expected a panic with an error, got %v", r)
		}
		var pv *ProtocolViolation
		if !errors.As(err, &pv) || !errors.Is(err, ErrProtocolViolation) {
			t.Fatalf("Expected ProtocolViolation, got %v", err)
		}
	}()
	table.FindOrCreate("B")
	t.Fatal("Expected panic from inconsistent comparator")
}

func TestCheckedComparatorAcceptsCompareTails(t *testing.T) {
	table := NewCompoundTableWithComparator(CheckedComparator(CompareTails))
	fill(t, table, []string{"B", "A", "CC", "C"})
	if got := table.Tails(); !slices.Equal(got, []string{"A", "B", "C", "CC"}) {
		t.Errorf("Expected [A B C CC], got %v", got)
	}
}

// ---------------------------------------------------------------------------
// Lookup
// ---------------------------------------------------------------------------

func TestFindMissIsNotFound(t *testing.T) {
	table := NewCompoundTable()
	if e, ok := table.Find("X"); ok || e != nil {
		t.Errorf("Expected miss on empty table, got %v", e)
	}
	table.FindOrCreate("Y").Set(1)
	if _, ok := table.Find("X"); ok {
		t.Error("Expected miss for absent tail")
	}
	if table.Nodes() != 1 {
		t.Errorf("Find without create must not insert, got %d nodes", table.Nodes())
	}
}

func TestFindOrCreateThenFindSameSlot(t *testing.T) {
	table := NewCompoundTable()
	created := table.FindOrCreate("ABC")
	found, ok := table.Find("ABC")
	if !ok || found != created {
		t.Fatalf("Expected the created element, got %v (ok=%v)", found, ok)
	}
	again := table.FindOrCreate("ABC")
	if again != created {
		t.Error("FindOrCreate on existing tail returned a different element")
	}
	if table.Nodes() != 1 {
		t.Errorf("Expected 1 node, got %d", table.Nodes())
	}
}

func TestElementPointersSurviveGrowth(t *testing.T) {
	table := NewCompoundTable()
	first := table.FindOrCreate("0")
	first.Set("zero")
	for i := 1; i < 1000; i++ {
		table.FindOrCreate(strconv.Itoa(i)).Set(i)
	}
	found, _ := table.Find("0")
	if found != first || first.Value() != "zero" {
		t.Errorf("Element moved or lost its value: %v", found.Value())
	}
}

func TestRemoveDropsValue(t *testing.T) {
	table := NewCompoundTable()
	fill(t, table, []string{"A", "B", "C"})

	table.Remove("B")
	if table.Len() != 2 {
		t.Errorf("Expected 2 assigned, got %d", table.Len())
	}
	e, ok := table.Find("B")
	if !ok || e.Assigned() || e.Value() != nil {
		t.Errorf("Expected dropped element for B, got %v", e)
	}
	if got := table.Tails(); !slices.Equal(got, []string{"A", "C"}) {
		t.Errorf("Expected [A C], got %v", got)
	}

	table.FindOrCreate("B").Set("again")
	if table.Len() != 3 {
		t.Errorf("Expected 3 assigned after revive, got %d", table.Len())
	}
	table.Remove("missing")
	if err := table.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Balance
// ---------------------------------------------------------------------------

func TestInsertOneToNine(t *testing.T) {
	table := NewCompoundTable()
	var tails []string
	for i := 1; i <= 9; i++ {
		tails = append(tails, strconv.Itoa(i))
	}
	fill(t, table, tails)

	if h := table.Height(); h > 4 {
		t.Errorf("Expected height <= 4, got %d", h)
	}
	if got := table.Tails(); !slices.Equal(got, tails) {
		t.Errorf("Expected %v, got %v", tails, got)
	}
}

func TestAscendingInsertStaysBalanced(t *testing.T) {
	table := NewCompoundTable()
	const n = 5000
	for i := 0; i < n; i++ {
		table.FindOrCreate(strconv.Itoa(i)).Set(i)
	}
	if err := table.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if h := float64(table.Height()); h > heightBound(n) {
		t.Errorf("Height %v exceeds AVL bound %.2f", h, heightBound(n))
	}
}

func TestRandomInsertHeightBound(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 20; round++ {
		table := NewCompoundTable()
		n := rng.Intn(400) + 1
		for i := 0; i < n; i++ {
			tail := strconv.Itoa(rng.Intn(100000))
			table.FindOrCreate(tail).Set(i)
		}
		if err := table.Validate(); err != nil {
			t.Fatalf("round %d: %v", round, err)
		}
		if h := float64(table.Height()); h > heightBound(table.Nodes()) {
			t.Errorf("round %d: height %v exceeds bound %.2f for %d nodes", round, h, heightBound(table.Nodes()), table.Nodes())
		}
	}
}

func TestZigZagInsertsRotateTwice(t *testing.T) {
	table := NewCompoundTable()
	fill(t, table, []string{"C", "A", "B"})
	if table.Height() != 2 {
		t.Errorf("Expected height 2 after double rotation, got %d", table.Height())
	}
	fill(t, table, []string{"E", "D"})
	if table.Height() != 3 {
		t.Errorf("Expected height 3, got %d", table.Height())
	}
}

// ---------------------------------------------------------------------------
// Iteration and copying
// ---------------------------------------------------------------------------

func TestIterationIsAscending(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	table := NewCompoundTable()
	for i := 0; i < 300; i++ {
		table.FindOrCreate(NewTail(strconv.Itoa(rng.Intn(50)), string(rune('A'+rng.Intn(26))))).Set(i)
	}
	var prev string
	count := 0
	for tail := range table.All() {
		if count > 0 && CompareTails(prev, tail) >= 0 {
			t.Fatalf("Out of order: %q then %q", prev, tail)
		}
		prev = tail
		count++
	}
	if count != table.Len() {
		t.Errorf("Iterated %d, table holds %d", count, table.Len())
	}
}

func TestIterationIsRestartable(t *testing.T) {
	table := NewCompoundTable()
	fill(t, table, []string{"X", "Y", "Z"})

	for tail := range table.All() {
		if tail != "X" {
			t.Errorf("Expected X first, got %q", tail)
		}
		break
	}
	var all []string
	for tail := range table.All() {
		all = append(all, tail)
	}
	if !slices.Equal(all, []string{"X", "Y", "Z"}) {
		t.Errorf("Expected full restart, got %v", all)
	}
}

func TestPermutationsYieldSameMembers(t *testing.T) {
	base := []string{"1", "2", "10", "A", "B.C", "ZZZ", "Q", "100", "X.1", "X.2"}
	want := slices.Clone(base)
	slices.SortFunc(want, CompareTails)

	rng := rand.New(rand.NewSource(11))
	for round := 0; round < 25; round++ {
		perm := slices.Clone(base)
		rng.Shuffle(len(perm), func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })

		table := NewCompoundTable()
		fill(t, table, perm)
		if got := table.Tails(); !slices.Equal(got, want) {
			t.Fatalf("permutation %v: got %v, want %v", perm, got, want)
		}
	}
}

func TestLeafWalkVisitsEveryNode(t *testing.T) {
	table := NewCompoundTable()
	for i := 0; i < 100; i++ {
		table.FindOrCreate(strconv.Itoa(i))
	}
	seen := make(map[string]bool)
	last := noElement
	for r := table.findLeaf(table.root); r != noElement; r = table.nextLeaf(r) {
		e := table.at(r)
		for _, c := range []elementRef{e.left, e.right} {
			if c != noElement && !seen[table.at(c).name] {
				t.Fatalf("%q visited before its child %q", e.name, table.at(c).name)
			}
		}
		seen[e.name] = true
		last = r
	}
	if len(seen) != 100 {
		t.Errorf("Expected 100 nodes visited, got %d", len(seen))
	}
	if last != table.root {
		t.Error("Leaf-first walk should finish at the root")
	}
}

func TestCopyFromYieldsSourcePairs(t *testing.T) {
	src := NewCompoundTable()
	for i := 0; i < 50; i++ {
		src.FindOrCreate(strconv.Itoa(i)).Set(i * i)
	}
	src.Remove("7")

	dst := NewCompoundTable()
	dst.CopyFrom(src)
	if err := dst.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if dst.Len() != src.Len() {
		t.Fatalf("Expected %d entries, got %d", src.Len(), dst.Len())
	}
	for tail, e := range src.All() {
		got, ok := dst.Find(tail)
		if !ok || got.Value() != e.Value() {
			t.Errorf("tail %q: expected %v, got %v", tail, e.Value(), got)
		}
	}
	if _, ok := dst.Find("7"); ok {
		t.Error("Dropped source element should not be copied")
	}

	// The copy is independent of the source.
	dst.FindOrCreate("0").Set("changed")
	if e, _ := src.Find("0"); e.Value() != 0 {
		t.Errorf("Source changed through copy: %v", e.Value())
	}
}

func TestClearDiscardsTree(t *testing.T) {
	table := NewCompoundTable()
	old := table.FindOrCreate("A")
	old.Set(1)
	fill(t, table, []string{"B", "C"})

	table.Clear()
	if table.Len() != 0 || table.Nodes() != 0 || table.First() != nil {
		t.Fatalf("Expected empty table, got len=%d nodes=%d", table.Len(), table.Nodes())
	}
	old.Set(2)
	if table.Len() != 0 {
		t.Errorf("Detached element changed count to %d", table.Len())
	}
	if table.Next(old) != nil {
		t.Error("Next on detached element should be nil")
	}
	if err := table.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}
