// Package render turns value trees into stable, presentation-ready output.
//
// Render converts a *value.Value into a tree of Node values that needs no
// further memory access. Three serializations are provided:
//
//   - JSON: the full node tree, including kinds, scopes and addresses.
//   - Compact: a name to value JSON object in declaration order.
//   - Text: gdb-style one-line text ({id = 2, weight = 42, color = GREEN}).
//
// Output is deterministic. The same value tree always renders to the same
// bytes.
package render
