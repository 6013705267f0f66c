// Package memory provides bounded, read-only access to a target's address space.
//
// Every consumer of target memory goes through the Reader interface. A read
// always names an explicit size; a reader never infers a length from the
// bytes it returns. Failures are reported as *Fault values carrying a
// FaultReason instead of panics, so a single bad address never takes down
// the caller.
//
// # Sources
//
//   - Snapshot: a sparse in-memory copy of a stopped process (regions of
//     stack, heap and global storage), also persisted as CBOR files.
//   - dap.MemoryReader: reads through a debug adapter's readMemory request.
//
// Wrap any source with Guard to get the null-address and size checks the
// value materializer relies on.
package memory
