// Package visualize turns materialized values into graphs for drawing data
// structures.
//
// Structural follows the pointer fields of one struct type breadth-first
// and returns every reachable node once, keyed by address. Variables
// expands named struct and array variables one level and reports named
// pointer variables, for views that draw arrays with index pointers.
package visualize
