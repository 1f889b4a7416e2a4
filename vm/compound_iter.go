package vm

import (
	"fmt"
	"iter"
)

// ---------------------------------------------------------------------------
// Ordered traversal over parent links
// ---------------------------------------------------------------------------

func (t *CompoundTable) leftmost(r elementRef) elementRef {
	for t.at(r).left != noElement {
		r = t.at(r).left
	}
	return r
}

func (t *CompoundTable) successor(r elementRef) elementRef {
	e := t.at(r)
	if e.right != noElement {
		return t.leftmost(e.right)
	}
	child := r
	parent := e.parent
	for parent != noElement && t.at(parent).right == child {
		child = parent
		parent = t.at(parent).parent
	}
	return parent
}

func (t *CompoundTable) skipDropped(r elementRef) *CompoundElement {
	for r != noElement {
		if e := t.at(r); e.assigned {
			return e
		}
		r = t.successor(r)
	}
	return nil
}

// First returns the assigned element with the lowest tail, or nil.
func (t *CompoundTable) First() *CompoundElement {
	if t.root == noElement {
		return nil
	}
	return t.skipDropped(t.leftmost(t.root))
}

// Next returns the assigned element following e in tail order, or nil.
func (t *CompoundTable) Next(e *CompoundElement) *CompoundElement {
	if e == nil || e.table != t {
		return nil
	}
	return t.skipDropped(t.successor(e.self))
}

// All yields every assigned tail and its element in ascending order.
// Each call starts a fresh traversal.
func (t *CompoundTable) All() iter.Seq2[string, *CompoundElement] {
	return func(yield func(string, *CompoundElement) bool) {
		for e := t.First(); e != nil; e = t.Next(e) {
			if !yield(e.name, e) {
				return
			}
		}
	}
}

// Tails returns the assigned tails in ascending order.
func (t *CompoundTable) Tails() []string {
	tails := make([]string, 0, t.live)
	for name := range t.All() {
		tails = append(tails, name)
	}
	return tails
}

// ---------------------------------------------------------------------------
// Leaf-first traversal
// ---------------------------------------------------------------------------

// findLeaf descends left as far as possible, then right, until it reaches
// a node without children.
func (t *CompoundTable) findLeaf(r elementRef) elementRef {
	for {
		e := t.at(r)
		for e.left != noElement {
			r = e.left
			e = t.at(r)
		}
		if e.right == noElement {
			return r
		}
		r = e.right
	}
}

// nextLeaf continues a leaf-first walk: every node is visited after both
// of its subtrees.
func (t *CompoundTable) nextLeaf(r elementRef) elementRef {
	parent := t.at(r).parent
	if parent == noElement {
		return noElement
	}
	p := t.at(parent)
	if p.right == r || p.right == noElement {
		return parent
	}
	return t.findLeaf(p.right)
}

// CopyFrom adds every assigned element of other to t, overwriting values
// stored under the same tails.
func (t *CompoundTable) CopyFrom(other *CompoundTable) {
	if other == nil || other == t || other.root == noElement {
		return
	}
	for r := other.findLeaf(other.root); r != noElement; r = other.nextLeaf(r) {
		if e := other.at(r); e.assigned {
			t.FindOrCreate(e.name).Set(e.value)
		}
	}
}

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

// Validate checks links, depth counters, the balance bound and ordering.
func (t *CompoundTable) Validate() error {
	if t.root == noElement {
		if t.count != 0 {
			return fmt.Errorf("empty tree but %d elements allocated", t.count)
		}
		return nil
	}
	if p := t.at(t.root).parent; p != noElement {
		return fmt.Errorf("root %q has parent", t.at(t.root).name)
	}

	seen := 0
	live := 0
	var check func(r elementRef) (uint16, error)
	check = func(r elementRef) (uint16, error) {
		if r == noElement {
			return 0, nil
		}
		e := t.at(r)
		seen++
		if e.assigned {
			live++
		}
		for _, c := range []elementRef{e.left, e.right} {
			if c != noElement && t.at(c).parent != r {
				return 0, fmt.Errorf("child %q of %q has wrong parent", t.at(c).name, e.name)
			}
		}
		if e.left != noElement && t.compare(t.at(e.left).name, e.name) >= 0 {
			return 0, fmt.Errorf("left child %q not below %q", t.at(e.left).name, e.name)
		}
		if e.right != noElement && t.compare(t.at(e.right).name, e.name) <= 0 {
			return 0, fmt.Errorf("right child %q not above %q", t.at(e.right).name, e.name)
		}
		lh, err := check(e.left)
		if err != nil {
			return 0, err
		}
		rh, err := check(e.right)
		if err != nil {
			return 0, err
		}
		if lh != e.leftDepth || rh != e.rightDepth {
			return 0, fmt.Errorf("%q records depths %d/%d, actual %d/%d", e.name, e.leftDepth, e.rightDepth, lh, rh)
		}
		if lh > rh+1 || rh > lh+1 {
			return 0, fmt.Errorf("%q out of balance: %d/%d", e.name, lh, rh)
		}
		return 1 + max(lh, rh), nil
	}
	if _, err := check(t.root); err != nil {
		return err
	}

	if seen != t.count {
		return fmt.Errorf("reached %d elements, %d allocated", seen, t.count)
	}
	if live != t.live {
		return fmt.Errorf("counted %d assigned elements, table records %d", live, t.live)
	}

	var prev *CompoundElement
	for r := t.leftmost(t.root); r != noElement; r = t.successor(r) {
		e := t.at(r)
		if prev != nil && t.compare(prev.name, e.name) >= 0 {
			return fmt.Errorf("traversal out of order: %q before %q", prev.name, e.name)
		}
		prev = e
	}
	return nil
}
