//go:build windows

package memory

import (
	"os"
	"unsafe"

	"golang.org/x/sys/windows"
)

// VirtualAllocSource reserves address space with MEM_RESERVE and commits
// pages inside it with MEM_COMMIT.
type VirtualAllocSource struct {
	pageSize uintptr
}

// NewOSSource returns the platform's virtual memory source.
func NewOSSource() Source {
	return &VirtualAllocSource{pageSize: uintptr(os.Getpagesize())}
}

func (v *VirtualAllocSource) Granularity() uintptr { return v.pageSize }

func (v *VirtualAllocSource) Reserve(size uintptr) ([]byte, error) {
	addr, err := windows.VirtualAlloc(0, size, windows.MEM_RESERVE, windows.PAGE_NOACCESS)
	if err != nil {
		return nil, exhausted("reserve", size, err)
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), size), nil
}

func (v *VirtualAllocSource) Commit(region []byte, offset, size uintptr) error {
	if size == 0 {
		return nil
	}
	base := uintptr(unsafe.Pointer(&region[0]))
	if _, err := windows.VirtualAlloc(base+offset, size, windows.MEM_COMMIT, windows.PAGE_READWRITE); err != nil {
		return exhausted("commit", size, err)
	}
	return nil
}

func (v *VirtualAllocSource) Release(region []byte) error {
	return windows.VirtualFree(uintptr(unsafe.Pointer(&region[0])), 0, windows.MEM_RELEASE)
}
