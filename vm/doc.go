// Package vm implements the per-call and per-variable runtime structures
// of the interpreter.
//
// This package contains:
//   - CompoundTable, the balanced tree behind stem variables
//   - Stem, the container owning a compound table
//   - ActivationStack, chained frame buffers for activation storage
//   - Activity, one thread of execution owning one activation stack
package vm
