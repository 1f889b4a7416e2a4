package memory

import (
	"errors"
	"fmt"
	"sync"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("rxcore.memory")

// ErrClosed is returned by an Allocator after Close.
var ErrClosed = errors.New("memory: allocator closed")

const (
	// DefaultPoolSize is the reservation target for a new pool.
	DefaultPoolSize = 4 * 1024 * 1024

	// DefaultSegmentSize is the size of the spare segment pre-carved when
	// a pool is created.
	DefaultSegmentSize = 64 * 1024
)

// Config sizes the pools an Allocator creates.
type Config struct {
	PoolSize    uintptr
	SegmentSize uintptr
}

// DefaultConfig returns the standard pool sizing.
func DefaultConfig() Config {
	return Config{
		PoolSize:    DefaultPoolSize,
		SegmentSize: DefaultSegmentSize,
	}
}

func (c Config) withDefaults() Config {
	if c.PoolSize == 0 {
		c.PoolSize = DefaultPoolSize
	}
	if c.SegmentSize == 0 {
		c.SegmentSize = DefaultSegmentSize
	}
	return c
}

// Stats is a snapshot of allocator activity.
type Stats struct {
	Pools         int
	Reserved      uintptr
	Uncommitted   uintptr
	SmallSegments int
	LargeSegments int
	SmallBytes    uintptr
	LargeBytes    uintptr
	SpareHits     int
	ChainGrowths  int
}

// ---------------------------------------------------------------------------
// Allocator: owner of the pool chain
// ---------------------------------------------------------------------------

// Allocator hands out segments to the object heap. It owns a chain of
// pools; the current pool is always the last one in the chain. The mutex
// guards the chain links, both bump cursors and the uncommitted counter
// they share.
type Allocator struct {
	mu     sync.Mutex
	cfg    Config
	source Source

	first   *Pool
	current *Pool
	pools   int
	closed  bool

	smallSegments int
	largeSegments int
	smallBytes    uintptr
	largeBytes    uintptr
	spareHits     int
	growths       int
}

// NewAllocator creates an allocator and its first pool. A nil source
// selects the platform's virtual memory source.
func NewAllocator(cfg Config, src Source) (*Allocator, error) {
	if src == nil {
		src = NewOSSource()
	}
	a := &Allocator{
		cfg:    cfg.withDefaults(),
		source: src,
	}
	p, err := newPool(0, src, a.cfg, 0)
	if err != nil {
		log.Errorf("cannot create initial pool: %s", err)
		return nil, err
	}
	a.first = p
	a.current = p
	a.pools = 1
	log.Infof("allocator ready: pool size %d, segment size %d, granularity %d",
		p.Size(), a.cfg.SegmentSize, src.Granularity())
	return a, nil
}

// ReserveSegment returns a segment of at least minSize bytes carved from
// the low end of the current pool, growing the chain when the pool is
// exhausted.
func (a *Allocator) ReserveSegment(minSize uintptr) (*Segment, error) {
	return a.reserve(minSize, false)
}

// ReserveLargeSegment returns a segment of at least minSize bytes carved
// from the high end of the current pool, keeping long-lived allocations
// apart from the small ones.
func (a *Allocator) ReserveLargeSegment(minSize uintptr) (*Segment, error) {
	return a.reserve(minSize, true)
}

func (a *Allocator) reserve(minSize uintptr, large bool) (*Segment, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil, ErrClosed
	}

	for attempt := 0; attempt < 2; attempt++ {
		hadSpare := a.current.spare != nil
		var (
			seg *Segment
			ok  bool
			err error
		)
		if large {
			seg, ok, err = a.current.newLargeSegment(minSize)
		} else {
			seg, ok, err = a.current.newSegment(minSize)
		}
		if err != nil {
			log.Errorf("pool %d: cannot commit %d bytes: %s", a.current.id, minSize, err)
			return nil, err
		}
		if ok {
			a.account(seg, hadSpare && a.current.spare == nil)
			return seg, nil
		}
		if err := a.grow(minSize); err != nil {
			return nil, err
		}
	}
	// A freshly created pool always carries a spare that fits minSize.
	return nil, fmt.Errorf("%w: no pool can hold %d bytes", ErrResourceExhausted, minSize)
}

func (a *Allocator) account(seg *Segment, spare bool) {
	if spare {
		a.spareHits++
	}
	if seg.Large {
		a.largeSegments++
		a.largeBytes += seg.Size()
	} else {
		a.smallSegments++
		a.smallBytes += seg.Size()
	}
}

// grow appends a pool sized for at least minSize plus overhead and makes
// it current.
func (a *Allocator) grow(minSize uintptr) error {
	p, err := newPool(a.pools, a.source, a.cfg, minSize)
	if err != nil {
		log.Errorf("cannot extend pool chain for %d bytes: %s", minSize, err)
		return err
	}
	a.current.next = p
	a.current = p
	a.pools++
	a.growths++
	log.Debugf("pool chain grown to %d pools (%d bytes reserved for request of %d)", a.pools, p.Size(), minSize)
	return nil
}

// FirstPool returns the head of the pool chain.
func (a *Allocator) FirstPool() *Pool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.first
}

// CurrentPool returns the pool new segments are carved from.
func (a *Allocator) CurrentPool() *Pool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// Pools returns the number of pools in the chain.
func (a *Allocator) Pools() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pools
}

// Stats returns a snapshot of allocator activity.
func (a *Allocator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := Stats{
		Pools:         a.pools,
		SmallSegments: a.smallSegments,
		LargeSegments: a.largeSegments,
		SmallBytes:    a.smallBytes,
		LargeBytes:    a.largeBytes,
		SpareHits:     a.spareHits,
		ChainGrowths:  a.growths,
	}
	for p := a.first; p != nil; p = p.next {
		s.Reserved += p.Size()
		s.Uncommitted += p.uncommitted
	}
	return s
}

// Validate walks the pool chain and checks every pool's cursor
// invariants.
func (a *Allocator) Validate() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := 0
	for p := a.first; p != nil; p = p.next {
		if err := p.validate(); err != nil {
			return err
		}
		if p.next == nil && p != a.current {
			return fmt.Errorf("pool %d ends the chain but is not current", p.id)
		}
		n++
	}
	if n != a.pools {
		return fmt.Errorf("chain holds %d pools, expected %d", n, a.pools)
	}
	return nil
}

// Close releases every pool's reservation. Segments handed out earlier
// must not be used afterwards.
func (a *Allocator) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true

	var errs []error
	for p := a.first; p != nil; p = p.next {
		if err := a.source.Release(p.region); err != nil {
			errs = append(errs, fmt.Errorf("pool %d: %w", p.id, err))
		}
		p.region = nil
		p.spare = nil
	}
	a.first = nil
	a.current = nil
	return errors.Join(errs...)
}
