// Package typeinfo is the engine's language-neutral Type IR and the
// resolver that produces it.
//
// A Type is a single struct tagged by Kind; consumers switch on the Kind
// rather than dispatching through interfaces. Types are built once per
// debug session (from a metadata file or from DWARF), registered in a
// Registry, and sealed. After sealing they are immutable and shared by
// every inspection request.
//
// Layout (sizes, alignment, field offsets, bit-field placement) is decided
// here and nowhere else. The value materializer only adds offsets it finds
// on Field values.
package typeinfo
