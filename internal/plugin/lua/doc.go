// Package lua runs user supplied summarizers written in Lua.
//
// A script registers one function per type name:
//
//	varlens.summarizer("Person", function(v)
//	    return v.fields.name.str .. " (" .. v.fields.age.value .. ")"
//	end)
//
// The function receives a table view of the materialized value and returns
// a one-line summary, or nil to decline. Scripts run in a sandbox without
// the io, os, debug and package libraries, and every call is bounded by a
// timeout.
//
// Value tables carry:
//
//	name, kind, type        strings
//	address                 number, when the value lives in memory
//	value                   number or boolean for scalars and enums
//	enumerator              enumerator name of enums
//	str, truncated          text of char arrays and char pointers
//	marker, reason          terminal marker and unreadable reason
//	fields                  struct and union members by name
//	elements                array elements, 1-based
//	pointer, target         pointee address and the dereferenced value
//	use_count               strong count of shared and weak pointers
package lua
