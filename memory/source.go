package memory

import (
	"errors"
	"fmt"
	"sync"
)

// ErrResourceExhausted is returned (wrapped) when the operating system
// refuses to reserve or commit memory. It is not retried locally; the
// caller decides whether to collect garbage or terminate.
var ErrResourceExhausted = errors.New("memory: resource exhausted")

// Source reserves virtual address ranges and commits pages within them.
// Every implementation honours the same reserve-then-commit contract:
// a reserved region must not be touched until the range has been
// committed, and committed pages read as zero.
type Source interface {
	// Granularity is the unit that segment sizes and commit ranges are
	// rounded up to.
	Granularity() uintptr

	// Reserve returns a region of exactly size bytes.
	Reserve(size uintptr) ([]byte, error)

	// Commit makes region[offset:offset+size] usable. Offset and size are
	// multiples of Granularity.
	Commit(region []byte, offset, size uintptr) error

	// Release gives the whole region back.
	Release(region []byte) error
}

func exhausted(op string, size uintptr, err error) error {
	if err == nil {
		return fmt.Errorf("%w: %s of %d bytes", ErrResourceExhausted, op, size)
	}
	return fmt.Errorf("%w: %s of %d bytes: %v", ErrResourceExhausted, op, size, err)
}

// ---------------------------------------------------------------------------
// HeapSource: Go heap backed source
// ---------------------------------------------------------------------------

// HeapSource hands out zero-filled Go byte slices. Commit is bookkeeping
// only. A non-zero Limit caps the total bytes reserved so exhaustion can
// be exercised. The counters are guarded, so one HeapSource may back
// several allocators.
type HeapSource struct {
	PageSize uintptr
	Limit    uintptr

	mu        sync.Mutex
	reserved  uintptr
	committed uintptr
}

// NewHeapSource creates a HeapSource with the given page size (4096 when
// zero) and reservation limit (unlimited when zero).
func NewHeapSource(pageSize, limit uintptr) *HeapSource {
	if pageSize == 0 {
		pageSize = 4096
	}
	return &HeapSource{PageSize: pageSize, Limit: limit}
}

// Granularity returns the configured page size.
func (h *HeapSource) Granularity() uintptr { return h.PageSize }

// Reserve allocates a zero-filled slice of size bytes, failing once the
// limit would be exceeded.
func (h *HeapSource) Reserve(size uintptr) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if size > ^uintptr(0)-h.reserved || (h.Limit != 0 && h.reserved+size > h.Limit) {
		return nil, exhausted("reserve", size, nil)
	}
	h.reserved += size
	return make([]byte, size), nil
}

// Commit records size committed bytes; heap memory is usable at once.
func (h *HeapSource) Commit(region []byte, offset, size uintptr) error {
	if offset > uintptr(len(region)) || size > uintptr(len(region))-offset {
		return exhausted("commit", size, fmt.Errorf("range %d+%d outside region of %d", offset, size, len(region)))
	}
	h.mu.Lock()
	h.committed += size
	h.mu.Unlock()
	return nil
}

// Release returns the region's bytes to the reservation budget.
func (h *HeapSource) Release(region []byte) error {
	h.mu.Lock()
	h.reserved -= uintptr(len(region))
	h.mu.Unlock()
	return nil
}

// Reserved reports the bytes currently reserved through this source.
func (h *HeapSource) Reserved() uintptr {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reserved
}

// Committed reports the bytes committed through this source.
func (h *HeapSource) Committed() uintptr {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.committed
}
