package memory

import (
	"errors"
	"fmt"
)

// ErrFault is matched by every *Fault via errors.Is.
var ErrFault = errors.New("memory fault")

// FaultReason classifies why a read failed.
type FaultReason uint8

const (
	// Unmapped means some byte of the range is not mapped (including null).
	Unmapped FaultReason = iota + 1
	// ProtectedPage means the range touches memory that may not be read.
	ProtectedPage
	// MisalignedAccess means the target refuses reads at this alignment.
	MisalignedAccess
)

// String returns the reason name.
func (r FaultReason) String() string {
	switch r {
	case Unmapped:
		return "Unmapped"
	case ProtectedPage:
		return "ProtectedPage"
	case MisalignedAccess:
		return "MisalignedAccess"
	default:
		return "Unknown"
	}
}

// Fault is the typed failure of a memory read.
type Fault struct {
	Addr   Address
	Size   int
	Reason FaultReason
	Err    error // underlying backend error, if any
}

// NewFault creates a fault for the given range.
func NewFault(addr Address, size int, reason FaultReason) *Fault {
	return &Fault{Addr: addr, Size: size, Reason: reason}
}

// Error implements the error interface.
func (f *Fault) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("read %d bytes at %s: %s: %v", f.Size, f.Addr, f.Reason, f.Err)
	}
	return fmt.Sprintf("read %d bytes at %s: %s", f.Size, f.Addr, f.Reason)
}

// Unwrap returns the underlying backend error.
func (f *Fault) Unwrap() error {
	return f.Err
}

// Is makes errors.Is(err, ErrFault) true for every fault.
func (f *Fault) Is(target error) bool {
	return target == ErrFault
}

// ReasonOf extracts the fault reason from err. Errors that are not faults
// are reported as Unmapped: a reader that failed for an unknown reason did
// not produce the bytes.
func ReasonOf(err error) FaultReason {
	var f *Fault
	if errors.As(err, &f) {
		return f.Reason
	}
	return Unmapped
}
