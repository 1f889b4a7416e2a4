package vm

// DefaultFrameCapacity is the slot count of a standard frame buffer.
const DefaultFrameCapacity = 2048

// ---------------------------------------------------------------------------
// FrameBuffer: bump-allocated block of slots
// ---------------------------------------------------------------------------

// FrameBuffer is a fixed block of slots. Slots [0, next) belong to live
// frames, [next, len(slots)) are free. live holds the serials of the
// buffer's live frames, newest last.
type FrameBuffer struct {
	slots    []Value
	next     int
	live     []uint64
	previous *FrameBuffer
}

func newFrameBuffer(size int) *FrameBuffer {
	return &FrameBuffer{slots: make([]Value, size)}
}

// Capacity returns the buffer's total slot count.
func (b *FrameBuffer) Capacity() int { return len(b.slots) }

// Used returns the number of live slots.
func (b *FrameBuffer) Used() int { return b.next }

// Free returns the number of slots still available.
func (b *FrameBuffer) Free() int { return len(b.slots) - b.next }

// Previous returns the buffer chained below b.
func (b *FrameBuffer) Previous() *FrameBuffer { return b.previous }

func (b *FrameBuffer) allocate(n int, serial uint64) Frame {
	offset := b.next
	b.next += n
	b.live = append(b.live, serial)
	return Frame{
		Slots:  b.slots[offset:b.next:b.next],
		buffer: b,
		offset: offset,
		serial: serial,
	}
}

// release drops the newest frame, which starts at offset, clearing its
// slots so the collector can reclaim what it held.
func (b *FrameBuffer) release(offset int) {
	clear(b.slots[offset:b.next])
	b.next = offset
	b.live = b.live[:len(b.live)-1]
}

// holds reports whether the frame with the given serial is live here.
func (b *FrameBuffer) holds(serial uint64) bool {
	for _, s := range b.live {
		if s == serial {
			return true
		}
	}
	return false
}

// Frame is a run of slots reserved for one activation.
type Frame struct {
	Slots []Value

	buffer *FrameBuffer
	offset int
	serial uint64
}

// Len returns the number of slots in the frame.
func (f Frame) Len() int { return len(f.Slots) }

// Buffer returns the buffer holding the frame.
func (f Frame) Buffer() *FrameBuffer { return f.buffer }

// ---------------------------------------------------------------------------
// ActivationStack: chain of frame buffers
// ---------------------------------------------------------------------------

// ActivationStack hands out frames in LIFO order from a chain of frame
// buffers, keeping one spare buffer cached for reuse. A stack belongs to
// one activity and is not safe for concurrent use.
type ActivationStack struct {
	current  *FrameBuffer
	unused   *FrameBuffer
	capacity int

	depth     int
	allocated int
	serials   uint64
}

// NewActivationStack creates a stack whose buffers hold capacity slots;
// a non-positive capacity selects DefaultFrameCapacity.
func NewActivationStack(capacity int) *ActivationStack {
	if capacity <= 0 {
		capacity = DefaultFrameCapacity
	}
	s := &ActivationStack{capacity: capacity}
	s.push(s.newBuffer(capacity))
	return s
}

func (s *ActivationStack) newBuffer(size int) *FrameBuffer {
	s.allocated++
	return newFrameBuffer(size)
}

func (s *ActivationStack) push(b *FrameBuffer) {
	b.previous = s.current
	s.current = b
	s.depth++
}

// AllocateFrame reserves n slots on top of the stack.
func (s *ActivationStack) AllocateFrame(n int) Frame {
	if n < 0 {
		panic(violation("allocate frame", "negative frame size %d", n))
	}
	if s.current.Free() < n {
		s.expandCapacity(n)
	}
	s.serials++
	return s.current.allocate(n, s.serials)
}

// expandCapacity chains a buffer able to hold n slots on top of the
// current one, reusing the cached buffer when it is big enough.
func (s *ActivationStack) expandCapacity(n int) {
	var b *FrameBuffer
	if s.unused != nil && s.unused.Capacity() >= n {
		b = s.unused
		s.unused = nil
	} else {
		b = s.newBuffer(max(s.capacity, n))
		log.Debugf("activation stack: new frame buffer of %d slots", b.Capacity())
	}
	s.push(b)
}

// ReleaseFrame returns f and must be called in reverse allocation order.
// A frame released out of order, twice, or on the wrong stack is reported
// as a *ProtocolViolation and the stack is left unchanged.
func (s *ActivationStack) ReleaseFrame(f Frame) error {
	if err := s.checkRelease(f); err != nil {
		log.Warningf("%s", err)
		return err
	}
	for s.current != f.buffer {
		popped := s.current
		s.current = popped.previous
		popped.previous = nil
		s.depth--
		if s.unused == nil || popped.Capacity() > s.unused.Capacity() {
			s.unused = popped
		}
	}
	s.current.release(f.offset)
	return nil
}

func (s *ActivationStack) checkRelease(f Frame) error {
	if f.buffer == nil {
		return violation("release frame", "frame was not allocated")
	}
	b := s.current
	for b != f.buffer {
		if len(b.live) != 0 {
			return violation("release frame", "%d newer frames are still live", len(b.live))
		}
		b = b.previous
		if b == nil {
			return violation("release frame", "frame does not belong to this stack")
		}
	}
	if n := len(b.live); n == 0 || b.live[n-1] != f.serial {
		if b.holds(f.serial) {
			return violation("release frame", "newer frames are still live")
		}
		return violation("release frame", "frame already released")
	}
	return nil
}

// Current returns the top buffer.
func (s *ActivationStack) Current() *FrameBuffer { return s.current }

// Unused returns the cached spare buffer, if any.
func (s *ActivationStack) Unused() *FrameBuffer { return s.unused }

// Depth returns the number of buffers in the chain.
func (s *ActivationStack) Depth() int { return s.depth }

// Allocated returns how many buffers the stack has created.
func (s *ActivationStack) Allocated() int { return s.allocated }

// Capacity returns the standard buffer size.
func (s *ActivationStack) Capacity() int { return s.capacity }

// Used returns the number of live slots across the chain.
func (s *ActivationStack) Used() int {
	n := 0
	for b := s.current; b != nil; b = b.previous {
		n += b.next
	}
	return n
}
