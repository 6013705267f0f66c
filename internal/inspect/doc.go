// Package inspect is the engine's entry point.
//
// A Session binds a sealed type registry to a memory reader for the
// lifetime of one debug session. Each call to Inspect, Globals, Locals or
// Evaluate is an independent top-level request: it gets a fresh visited
// set and depth counter, reads the target through the session's reader,
// and returns a rendered node tree that needs no further memory access.
//
// The only failures a request propagates are metadata gaps (an unknown
// symbol or type) and malformed requests. Memory faults never surface as
// errors; they become Unreadable markers in the rendered tree.
//
// Sessions also keep a list of watch expressions. Expressions support
// variable names (optionally qualified as function::name), member access
// with "." and "->", dereference with "*", and indexing with "[i]".
package inspect
