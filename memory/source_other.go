//go:build !unix && !windows

package memory

// NewOSSource returns the platform's virtual memory source. Platforms
// without reserve/commit primitives fall back to zero-filled heap slices.
func NewOSSource() Source {
	return NewHeapSource(4096, 0)
}
