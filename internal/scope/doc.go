// Package scope classifies where a value lives and what a smart pointer
// owns.
//
// Symbol metadata always wins: a variable declared global is Global no
// matter what region its address falls in. Only values without metadata
// (heap pointees, raw addresses) fall back to address heuristics, and when
// those are inconclusive the result is Unknown.
package scope
