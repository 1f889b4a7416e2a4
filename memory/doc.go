// Package memory implements the segment pool allocator that backs the
// interpreter's object heap.
//
// This package contains:
//   - Allocator, the explicit context that owns a chain of pools
//   - Pool, a reserved and partially committed virtual memory region
//   - Segment, a byte range carved from either end of a pool
//   - Source implementations for reserving and committing memory
package memory
