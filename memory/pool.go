package memory

import "fmt"

// poolHeaderSize is the bookkeeping area at the low end of every pool.
// It is rounded up to the source granularity, so the effective overhead
// of a pool is one granule.
const poolHeaderSize = 64

// ---------------------------------------------------------------------------
// Segment: a byte range carved from a pool
// ---------------------------------------------------------------------------

// Segment is a contiguous byte range handed to the object heap. The pool
// keeps no reference to a segment once it has been carved.
type Segment struct {
	Data   []byte  // committed, zero-filled bytes
	Offset uintptr // offset of Data within the pool region
	Large  bool    // carved from the high end of the pool

	pool *Pool
}

// Size returns the segment length in bytes.
func (s *Segment) Size() uintptr { return uintptr(len(s.Data)) }

// Pool returns the pool the segment was carved from.
func (s *Segment) Pool() *Pool { return s.pool }

// End returns the offset one past the segment's last byte.
func (s *Segment) End() uintptr { return s.Offset + s.Size() }

// ---------------------------------------------------------------------------
// Pool: reserved region with two bump cursors
// ---------------------------------------------------------------------------

// Pool is a reserved virtual memory region. Small segments are carved
// upward from nextAlloc, large segments downward from nextLargeAlloc;
// the gap between the cursors is the uncommitted span.
type Pool struct {
	id     int
	source Source
	region []byte
	header uintptr

	uncommitted    uintptr
	nextAlloc      uintptr
	nextLargeAlloc uintptr

	spare *Segment
	next  *Pool
}

// newPool reserves a pool big enough for at least minSize plus the pool
// overhead. Only the header and the first segment are committed; that
// segment is kept as the pool's spare.
func newPool(id int, src Source, cfg Config, minSize uintptr) (*Pool, error) {
	g := src.Granularity()
	header := roundUp(uintptr(poolHeaderSize), g)
	spareSize, err := segmentSize(max(cfg.SegmentSize, minSize), g)
	if err != nil {
		return nil, err
	}
	if spareSize > ^uintptr(0)-header-g {
		return nil, exhausted("reserve", minSize, nil)
	}
	size := roundUp(max(cfg.PoolSize, header+spareSize), g)

	region, err := src.Reserve(size)
	if err != nil {
		return nil, err
	}
	if err := src.Commit(region, 0, header+spareSize); err != nil {
		_ = src.Release(region)
		return nil, err
	}

	p := &Pool{
		id:             id,
		source:         src,
		region:         region,
		header:         header,
		nextAlloc:      header + spareSize,
		nextLargeAlloc: size,
	}
	p.uncommitted = p.nextLargeAlloc - p.nextAlloc
	p.spare = p.segment(header, spareSize, false)
	return p, nil
}

func (p *Pool) segment(offset, size uintptr, large bool) *Segment {
	end := offset + size
	return &Segment{
		Data:   p.region[offset:end:end],
		Offset: offset,
		Large:  large,
		pool:   p,
	}
}

// segmentSize rounds minSize up to the granularity. A request too close
// to the top of the address space to be rounded is reported as exhausted.
func segmentSize(minSize, granule uintptr) (uintptr, error) {
	if minSize > ^uintptr(0)-granule {
		return 0, exhausted("reserve", minSize, nil)
	}
	return roundUp(max(minSize, 1), granule), nil
}

// takeSpare hands out the pre-carved spare segment if it can satisfy
// minSize.
func (p *Pool) takeSpare(minSize uintptr) *Segment {
	if p.spare == nil || p.spare.Size() < minSize {
		return nil
	}
	s := p.spare
	p.spare = nil
	return s
}

// newSegment carves a segment from the low end. It reports false when
// the uncommitted span cannot hold the request.
func (p *Pool) newSegment(minSize uintptr) (*Segment, bool, error) {
	if s := p.takeSpare(minSize); s != nil {
		return s, true, nil
	}
	size, err := segmentSize(minSize, p.source.Granularity())
	if err != nil {
		return nil, false, err
	}
	if size > p.uncommitted {
		return nil, false, nil
	}
	offset := p.nextAlloc
	if err := p.source.Commit(p.region, offset, size); err != nil {
		return nil, false, err
	}
	p.nextAlloc += size
	p.uncommitted -= size
	return p.segment(offset, size, false), true, nil
}

// newLargeSegment carves a segment from the high end. It reports false
// when the uncommitted span cannot hold the request.
func (p *Pool) newLargeSegment(minSize uintptr) (*Segment, bool, error) {
	if s := p.takeSpare(minSize); s != nil {
		return s, true, nil
	}
	size, err := segmentSize(minSize, p.source.Granularity())
	if err != nil {
		return nil, false, err
	}
	if size > p.uncommitted {
		return nil, false, nil
	}
	offset := p.nextLargeAlloc - size
	if err := p.source.Commit(p.region, offset, size); err != nil {
		return nil, false, err
	}
	p.nextLargeAlloc = offset
	p.uncommitted -= size
	return p.segment(offset, size, true), true, nil
}

// ID returns the pool's position in its allocator's chain, starting at 0.
func (p *Pool) ID() int { return p.id }

// Size returns the reserved size of the pool.
func (p *Pool) Size() uintptr { return uintptr(len(p.region)) }

// Overhead returns the bytes taken by the pool header.
func (p *Pool) Overhead() uintptr { return p.header }

// Uncommitted returns the bytes still available between the cursors.
func (p *Pool) Uncommitted() uintptr { return p.uncommitted }

// NextAlloc returns the low cursor.
func (p *Pool) NextAlloc() uintptr { return p.nextAlloc }

// NextLargeAlloc returns the high cursor.
func (p *Pool) NextLargeAlloc() uintptr { return p.nextLargeAlloc }

// HasSpare reports whether the pre-carved first segment is still unused.
func (p *Pool) HasSpare() bool { return p.spare != nil }

// Next returns the following pool in the chain.
func (p *Pool) Next() *Pool { return p.next }

// validate checks the cursor invariants.
func (p *Pool) validate() error {
	if p.nextAlloc > p.nextLargeAlloc {
		return fmt.Errorf("pool %d: nextAlloc %d above nextLargeAlloc %d", p.id, p.nextAlloc, p.nextLargeAlloc)
	}
	if p.uncommitted != p.nextLargeAlloc-p.nextAlloc {
		return fmt.Errorf("pool %d: uncommitted %d, cursor gap %d", p.id, p.uncommitted, p.nextLargeAlloc-p.nextAlloc)
	}
	if p.nextLargeAlloc > p.Size() {
		return fmt.Errorf("pool %d: nextLargeAlloc %d beyond size %d", p.id, p.nextLargeAlloc, p.Size())
	}
	if p.nextAlloc < p.header {
		return fmt.Errorf("pool %d: nextAlloc %d inside header", p.id, p.nextAlloc)
	}
	return nil
}
