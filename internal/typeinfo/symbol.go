package typeinfo

import (
	"fmt"

	"github.com/dshills/varlens/internal/memory"
)

// Storage is the storage duration recorded for a symbol.
type Storage uint8

const (
	// StorageUnknown means the metadata does not say.
	StorageUnknown Storage = iota
	// StorageGlobal is static storage at file or namespace scope.
	StorageGlobal
	// StorageStaticLocal is static storage declared inside a function.
	StorageStaticLocal
	// StorageStackLocal is automatic storage in a stack frame.
	StorageStackLocal
	// StorageRegister is a value that lives only in a register.
	StorageRegister
)

// String returns the storage name.
func (s Storage) String() string {
	switch s {
	case StorageGlobal:
		return "global"
	case StorageStaticLocal:
		return "static_local"
	case StorageStackLocal:
		return "stack_local"
	case StorageRegister:
		return "register"
	default:
		return "unknown"
	}
}

// ParseStorage parses a storage name as produced by String.
func ParseStorage(s string) (Storage, error) {
	switch s {
	case "global", "static":
		return StorageGlobal, nil
	case "static_local":
		return StorageStaticLocal, nil
	case "stack_local", "local", "argument":
		return StorageStackLocal, nil
	case "register":
		return StorageRegister, nil
	case "", "unknown":
		return StorageUnknown, nil
	default:
		return StorageUnknown, fmt.Errorf("%w: storage %q", ErrInvalidType, s)
	}
}

// Symbol is a variable known to the metadata.
type Symbol struct {
	// Name is the source-level variable name.
	Name string

	// Function is the enclosing function for locals and static locals.
	Function string

	// Type is the variable's resolved type.
	Type *Type

	// Storage is the variable's storage duration.
	Storage Storage

	// Address is the fixed address of globals and static locals.
	Address memory.Address

	// FrameOffset is the offset of a stack local from its frame base.
	FrameOffset int64
}

// QualifiedName returns "function::name" for symbols declared in a
// function and the bare name otherwise.
func (s *Symbol) QualifiedName() string {
	if s.Function != "" {
		return s.Function + "::" + s.Name
	}
	return s.Name
}

// HasFixedAddress reports whether the symbol lives at a static address.
func (s *Symbol) HasFixedAddress() bool {
	return s.Storage == StorageGlobal || s.Storage == StorageStaticLocal
}
