package value

import (
	"strconv"

	"github.com/dshills/varlens/internal/memory"
	"github.com/dshills/varlens/internal/scope"
	"github.com/dshills/varlens/internal/typeinfo"
)

// Marker is a terminal state attached to a value instead of (or in
// addition to) its payload. Markers are data, not errors.
type Marker uint8

const (
	// NoMarker means the value is complete.
	NoMarker Marker = iota
	// NullPointer marks a pointer-like value whose pointee address is null.
	NullPointer
	// CyclicReference marks a pointee already visited in this request.
	CyclicReference
	// DepthExceeded marks a pointee beyond Limits.MaxDepth.
	DepthExceeded
	// ArrayTruncated marks an array with more elements than
	// Limits.MaxArrayElements.
	ArrayTruncated
	// StringTruncated marks a string that ended at a cap rather than at
	// a NUL byte.
	StringTruncated
	// Unreadable marks a value whose memory could not be read; Reason
	// says why.
	Unreadable
	// UnnamedEnumerator marks an enum value with no matching enumerator.
	UnnamedEnumerator
	// Expired marks a weak pointer whose object has no strong owners left.
	Expired
)

var markerNames = [...]string{
	NoMarker:          "",
	NullPointer:       "NullPointer",
	CyclicReference:   "CyclicReference",
	DepthExceeded:     "DepthExceeded",
	ArrayTruncated:    "ArrayTruncated",
	StringTruncated:   "StringTruncated",
	Unreadable:        "Unreadable",
	UnnamedEnumerator: "UnnamedEnumerator",
	Expired:           "Expired",
}

// String returns the marker name; NoMarker is empty.
func (m Marker) String() string {
	if int(m) < len(markerNames) {
		return markerNames[m]
	}
	return "Marker(" + strconv.Itoa(int(m)) + ")"
}

// Value is one node of a materialized value tree.
type Value struct {
	// Name is the variable name, field name, or "[i]" for array elements.
	Name string

	// Type is the value's type.
	Type *typeinfo.Type

	// Kind mirrors Type.Kind.
	Kind typeinfo.Kind

	// Address is where the value was read from. HasAddress is false for
	// values that only exist in registers.
	Address    memory.Address
	HasAddress bool

	// Scope is the storage duration of the value's memory.
	Scope scope.Scope

	// Ownership is set for smart pointers only.
	Ownership scope.Ownership

	// Scalar and enum payloads. Uint holds the raw bits (masked to the
	// width), Int the sign-extended value for signed types.
	Int   int64
	Uint  uint64
	Float float64
	Bool  bool

	// Raw holds scalar bytes the engine cannot decode numerically, such as
	// 128-bit integers and extended precision floats.
	Raw []byte

	// Enumerator is the enumerator name of an enum value.
	Enumerator string

	// Pointer is the pointee address of pointers, references and smart
	// pointers.
	Pointer memory.Address

	// UseCount is the strong owner count of shared and weak pointers.
	UseCount    int64
	HasUseCount bool

	// Str is the text of char arrays and pointers to char. StrTruncated
	// is set when the text ended at a cap instead of a NUL byte.
	Str          string
	HasStr       bool
	StrTruncated bool

	// Marker is the terminal state, if any; Reason is set for Unreadable.
	Marker Marker
	Reason memory.FaultReason

	// Children are struct fields and union members in declaration order
	// and array elements in index order.
	Children []*Value

	// Target is the dereferenced pointee.
	Target *Value
}

// Child returns the child with the given name.
func (v *Value) Child(name string) *Value {
	for _, c := range v.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Index returns the i-th child.
func (v *Value) Index(i int) *Value {
	if i < 0 || i >= len(v.Children) {
		return nil
	}
	return v.Children[i]
}

// Deref returns the pointee of a pointer-like value or v itself.
func (v *Value) Deref() *Value {
	if v.Target != nil {
		return v.Target
	}
	return v
}

// IsTerminal reports whether the value ends the tree without a payload.
func (v *Value) IsTerminal() bool {
	switch v.Marker {
	case CyclicReference, DepthExceeded, Unreadable:
		return true
	}
	return false
}

// Walk calls fn for v and every descendant, parents first. Returning false
// from fn skips the node's descendants.
func (v *Value) Walk(fn func(*Value) bool) {
	if v == nil || !fn(v) {
		return
	}
	for _, c := range v.Children {
		c.Walk(fn)
	}
	v.Target.Walk(fn)
}
