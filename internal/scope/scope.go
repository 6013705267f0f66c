package scope

import (
	"github.com/dshills/varlens/internal/memory"
	"github.com/dshills/varlens/internal/typeinfo"
)

// Scope is the storage duration of a value's memory.
type Scope uint8

const (
	// Unknown means neither metadata nor address ranges were conclusive.
	Unknown Scope = iota
	// Global is static storage at file or namespace scope.
	Global
	// StaticLocal is static storage declared inside a function.
	StaticLocal
	// StackLocal is automatic storage in a stack frame.
	StackLocal
	// Heap is dynamically allocated storage.
	Heap
)

var scopeNames = [...]string{
	Unknown:     "Unknown",
	Global:      "Global",
	StaticLocal: "StaticLocal",
	StackLocal:  "StackLocal",
	Heap:        "Heap",
}

// String returns the scope name.
func (s Scope) String() string {
	if int(s) < len(scopeNames) {
		return scopeNames[s]
	}
	return scopeNames[Unknown]
}

// Ownership tags what a smart pointer owns.
type Ownership uint8

const (
	// None is used for everything that is not a smart pointer.
	None Ownership = iota
	// OwnsTarget means the wrapper owns a live object.
	OwnsTarget
	// Borrows means the wrapper observes an object it does not own.
	Borrows
	// MovedFrom means the wrapper is alive but its raw pointer is null.
	MovedFrom
)

// String returns the ownership name; None is empty.
func (o Ownership) String() string {
	switch o {
	case OwnsTarget:
		return "OwnsTarget"
	case Borrows:
		return "Borrows"
	case MovedFrom:
		return "MovedFrom"
	default:
		return ""
	}
}

// OwnershipOf derives the ownership tag from a smart pointer's kind and
// whether its stored raw pointer is null.
func OwnershipOf(kind typeinfo.SmartKind, rawNull bool) Ownership {
	switch {
	case kind == typeinfo.SmartWeak:
		return Borrows
	case rawNull:
		return MovedFrom
	default:
		return OwnsTarget
	}
}

// FromStorage maps symbol storage to a scope. Register-allocated locals
// have automatic storage duration and report StackLocal.
func FromStorage(s typeinfo.Storage) Scope {
	switch s {
	case typeinfo.StorageGlobal:
		return Global
	case typeinfo.StorageStaticLocal:
		return StaticLocal
	case typeinfo.StorageStackLocal, typeinfo.StorageRegister:
		return StackLocal
	default:
		return Unknown
	}
}

// FromRegion maps a memory region kind to a scope. Global regions hold
// both globals and static locals; without a symbol they report Global.
func FromRegion(k memory.RegionKind) Scope {
	switch k {
	case memory.RegionStack:
		return StackLocal
	case memory.RegionHeap:
		return Heap
	case memory.RegionGlobal:
		return Global
	default:
		return Unknown
	}
}
