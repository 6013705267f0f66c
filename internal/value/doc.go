// Package value materializes typed values out of raw target memory.
//
// A Materializer walks a typeinfo.Type against a memory.Reader and returns
// a tree of Value nodes. The walk is safe on arbitrary input:
//
//   - every read has an explicit size and goes through memory.Guard;
//   - a failed read becomes an Unreadable leaf for that subtree only;
//   - pointer chains are tracked in a per-call Visited set, so cycles end
//     in a CyclicReference marker;
//   - pointer depth, array length and string scans are capped by Limits.
//
// Values are built fresh for every request and never modified after
// Materialize returns.
package value
