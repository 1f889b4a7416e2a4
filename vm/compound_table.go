package vm

// ---------------------------------------------------------------------------
// CompoundTable: height-balanced tree of stem tails
// ---------------------------------------------------------------------------

// elementPageSize is the number of elements allocated together. Elements
// never move once allocated, so pointers handed to callers stay valid.
const elementPageSize = 64

type elementRef int32

const noElement elementRef = -1

// CompoundElement is one node of a CompoundTable: a tail name and the
// value slot for that compound variable.
type CompoundElement struct {
	name     string
	value    Value
	assigned bool

	self       elementRef
	left       elementRef
	right      elementRef
	parent     elementRef
	leftDepth  uint16 // height of the left subtree
	rightDepth uint16 // height of the right subtree

	table *CompoundTable
}

// Name returns the element's tail.
func (e *CompoundElement) Name() string { return e.name }

// Value returns the assigned value, or nil when the element is dropped.
func (e *CompoundElement) Value() Value { return e.value }

// Assigned reports whether the element currently holds a value.
func (e *CompoundElement) Assigned() bool { return e.assigned }

// Set assigns v to the element.
func (e *CompoundElement) Set(v Value) {
	if !e.assigned && e.table != nil {
		e.table.live++
	}
	e.value = v
	e.assigned = true
}

// Drop releases the element's value. The node stays in its table.
func (e *CompoundElement) Drop() {
	if e.assigned && e.table != nil {
		e.table.live--
	}
	e.value = nil
	e.assigned = false
}

func (e *CompoundElement) height() uint16 {
	return 1 + max(e.leftDepth, e.rightDepth)
}

// CompoundTable maps tails to value slots. Tails are ordered by the
// table's comparator, not hashed, and the tree is kept height balanced so
// lookups stay logarithmic for any naming pattern.
//
// A table is not safe for concurrent use; its owning container must
// serialize access.
type CompoundTable struct {
	pages   []*[elementPageSize]CompoundElement
	count   int // elements allocated
	live    int // elements holding a value
	root    elementRef
	owner   *Stem
	compare Comparator
}

// NewCompoundTable creates an empty table ordered by CompareTails.
func NewCompoundTable() *CompoundTable {
	return NewCompoundTableWithComparator(CompareTails)
}

// NewCompoundTableWithComparator creates an empty table ordered by cmp.
func NewCompoundTableWithComparator(cmp Comparator) *CompoundTable {
	if cmp == nil {
		cmp = CompareTails
	}
	return &CompoundTable{root: noElement, compare: cmp}
}

// Owner returns the stem that owns the table, if any.
func (t *CompoundTable) Owner() *Stem { return t.owner }

func (t *CompoundTable) at(r elementRef) *CompoundElement {
	return &t.pages[r/elementPageSize][r%elementPageSize]
}

func (t *CompoundTable) newElement(name string, parent elementRef) *CompoundElement {
	if t.count == len(t.pages)*elementPageSize {
		t.pages = append(t.pages, new([elementPageSize]CompoundElement))
	}
	r := elementRef(t.count)
	t.count++
	e := t.at(r)
	*e = CompoundElement{
		name:   name,
		self:   r,
		left:   noElement,
		right:  noElement,
		parent: parent,
		table:  t,
	}
	return e
}

// Find returns the element for tail. A miss is reported as nil, false.
// Dropped elements are still found; check Assigned for a value.
func (t *CompoundTable) Find(tail string) (*CompoundElement, bool) {
	e := t.findEntry(tail, false)
	return e, e != nil
}

// FindOrCreate returns the element for tail, inserting an unassigned
// element when the tail is new.
func (t *CompoundTable) FindOrCreate(tail string) *CompoundElement {
	return t.findEntry(tail, true)
}

// Remove drops the value stored under tail, if any.
func (t *CompoundTable) Remove(tail string) {
	if e := t.findEntry(tail, false); e != nil {
		e.Drop()
	}
}

// Len returns the number of assigned elements.
func (t *CompoundTable) Len() int { return t.live }

// Nodes returns the number of elements in the tree, dropped or not.
func (t *CompoundTable) Nodes() int { return t.count }

// Height returns the height of the tree; an empty table has height 0.
func (t *CompoundTable) Height() int {
	if t.root == noElement {
		return 0
	}
	return int(t.at(t.root).height())
}

// Clear discards every element at once. Elements obtained earlier become
// detached and no longer affect the table.
func (t *CompoundTable) Clear() {
	for _, page := range t.pages {
		for i := range page {
			page[i].table = nil
		}
	}
	t.pages = nil
	t.count = 0
	t.live = 0
	t.root = noElement
}

func (t *CompoundTable) findEntry(tail string, create bool) *CompoundElement {
	anchor := noElement
	toRight := false
	for cur := t.root; cur != noElement; {
		e := t.at(cur)
		rc := t.compare(tail, e.name)
		if rc == 0 {
			return e
		}
		anchor = cur
		if rc > 0 {
			toRight = true
			cur = e.right
		} else {
			toRight = false
			cur = e.left
		}
	}
	if !create {
		return nil
	}

	e := t.newElement(tail, anchor)
	switch {
	case anchor == noElement:
		t.root = e.self
	case toRight:
		t.at(anchor).right = e.self
	default:
		t.at(anchor).left = e.self
	}
	t.balance(e.self)
	return e
}

// balance walks up from a freshly inserted element, refreshing the depth
// counter on the side just climbed. A side deeper than its sibling by more
// than one is fixed with a rotation; the walk stops once a subtree keeps
// its previous height.
func (t *CompoundTable) balance(r elementRef) {
	child := r
	for parent := t.at(child).parent; parent != noElement; {
		p := t.at(parent)
		old := p.height()
		depth := t.at(child).height()
		if p.left == child {
			p.leftDepth = depth
		} else {
			p.rightDepth = depth
		}

		top := parent
		switch {
		case p.leftDepth > p.rightDepth+1:
			if l := t.at(p.left); l.rightDepth > l.leftDepth {
				t.moveNode(p.left, false)
			}
			top = t.moveNode(parent, true)
		case p.rightDepth > p.leftDepth+1:
			if rt := t.at(p.right); rt.leftDepth > rt.rightDepth {
				t.moveNode(p.right, true)
			}
			top = t.moveNode(parent, false)
		}

		if t.at(top).height() == old {
			return
		}
		child = top
		parent = t.at(top).parent
	}
}

// moveNode rotates the subtree at anchor. With toRight the left child is
// lifted into the anchor's place, otherwise the right child. It returns
// the new subtree root.
func (t *CompoundTable) moveNode(anchor elementRef, toRight bool) elementRef {
	a := t.at(anchor)
	var lifted elementRef
	if toRight {
		lifted = a.left
		w := t.at(lifted)
		a.left = w.right
		a.leftDepth = w.rightDepth
		if w.right != noElement {
			t.at(w.right).parent = anchor
		}
		w.right = anchor
		w.rightDepth = a.height()
	} else {
		lifted = a.right
		w := t.at(lifted)
		a.right = w.left
		a.rightDepth = w.leftDepth
		if w.left != noElement {
			t.at(w.left).parent = anchor
		}
		w.left = anchor
		w.leftDepth = a.height()
	}

	w := t.at(lifted)
	grand := a.parent
	w.parent = grand
	a.parent = lifted
	if grand == noElement {
		t.root = lifted
	} else if g := t.at(grand); g.left == anchor {
		g.left = lifted
		g.leftDepth = w.height()
	} else {
		g.right = lifted
		g.rightDepth = w.height()
	}
	return lifted
}
