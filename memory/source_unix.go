//go:build unix

package memory

import (
	"golang.org/x/sys/unix"
)

// MmapSource reserves anonymous PROT_NONE mappings and commits pages by
// making them readable and writable.
type MmapSource struct {
	pageSize uintptr
}

// NewOSSource returns the platform's virtual memory source.
func NewOSSource() Source {
	return &MmapSource{pageSize: uintptr(unix.Getpagesize())}
}

func (m *MmapSource) Granularity() uintptr { return m.pageSize }

func (m *MmapSource) Reserve(size uintptr) ([]byte, error) {
	region, err := unix.Mmap(-1, 0, int(size), unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, exhausted("reserve", size, err)
	}
	return region, nil
}

func (m *MmapSource) Commit(region []byte, offset, size uintptr) error {
	if size == 0 {
		return nil
	}
	if err := unix.Mprotect(region[offset:offset+size], unix.PROT_READ|unix.PROT_WRITE); err != nil {
		return exhausted("commit", size, err)
	}
	return nil
}

func (m *MmapSource) Release(region []byte) error {
	return unix.Munmap(region)
}
