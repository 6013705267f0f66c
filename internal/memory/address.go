package memory

import "fmt"

// Address is a location in the target's address space.
type Address uint64

// Null is the null address.
const Null Address = 0

// IsNull reports whether the address is null.
func (a Address) IsNull() bool {
	return a == Null
}

// Add returns the address offset by n bytes.
func (a Address) Add(n int64) Address {
	return Address(int64(a) + n)
}

// String formats the address the way debuggers print pointers.
func (a Address) String() string {
	return fmt.Sprintf("0x%x", uint64(a))
}

// RegionKind describes what kind of storage a region of memory holds.
type RegionKind uint8

const (
	// RegionOther is mapped memory of unknown purpose (code, mmap, ...).
	RegionOther RegionKind = iota
	// RegionStack is thread stack memory.
	RegionStack
	// RegionHeap is dynamically allocated memory.
	RegionHeap
	// RegionGlobal is static storage (.data, .bss).
	RegionGlobal
)

// String returns the region kind name.
func (k RegionKind) String() string {
	switch k {
	case RegionStack:
		return "stack"
	case RegionHeap:
		return "heap"
	case RegionGlobal:
		return "global"
	default:
		return "other"
	}
}

// ParseRegionKind parses a region kind name as produced by String.
func ParseRegionKind(s string) (RegionKind, error) {
	switch s {
	case "stack":
		return RegionStack, nil
	case "heap":
		return RegionHeap, nil
	case "global", "data", "bss":
		return RegionGlobal, nil
	case "other", "":
		return RegionOther, nil
	default:
		return RegionOther, fmt.Errorf("unknown region kind %q", s)
	}
}
