package memory

import "fmt"

// DefaultMaxRead bounds a single guarded read (1 MiB).
const DefaultMaxRead = 1 << 20

// Reader reads bytes from a target's address space.
//
// Implementations must not panic on invalid ranges and must not alter the
// target's execution state. A failed read returns a *Fault.
type Reader interface {
	ReadMemory(addr Address, size int) ([]byte, error)
}

// ReaderFunc adapts a function to the Reader interface.
type ReaderFunc func(addr Address, size int) ([]byte, error)

// ReadMemory calls f(addr, size).
func (f ReaderFunc) ReadMemory(addr Address, size int) ([]byte, error) {
	return f(addr, size)
}

// RegionLookup reports what kind of storage an address belongs to.
// The second result is false when the address is not in any known region.
type RegionLookup interface {
	RegionKindOf(addr Address) (RegionKind, bool)
}

// Guarded enforces the contract every consumer of a Reader relies on.
type Guarded struct {
	inner   Reader
	maxRead int
}

// Guard wraps r so that null addresses fail without consulting r, sizes are
// bounded by maxRead, and backend panics become Unmapped faults.
// A maxRead of zero or less selects DefaultMaxRead.
func Guard(r Reader, maxRead int) *Guarded {
	if g, ok := r.(*Guarded); ok {
		r = g.inner
	}
	if maxRead <= 0 {
		maxRead = DefaultMaxRead
	}
	return &Guarded{inner: r, maxRead: maxRead}
}

// Inner returns the wrapped reader.
func (g *Guarded) Inner() Reader {
	return g.inner
}

// ReadMemory reads size bytes at addr.
func (g *Guarded) ReadMemory(addr Address, size int) (data []byte, err error) {
	if addr.IsNull() {
		return nil, NewFault(addr, size, Unmapped)
	}
	if size < 0 || size > g.maxRead {
		return nil, &Fault{Addr: addr, Size: size, Reason: Unmapped,
			Err: fmt.Errorf("read size %d outside [0, %d]", size, g.maxRead)}
	}
	if size == 0 {
		return []byte{}, nil
	}
	if uint64(addr)+uint64(size) < uint64(addr) {
		return nil, NewFault(addr, size, Unmapped)
	}

	defer func() {
		if r := recover(); r != nil {
			data = nil
			err = &Fault{Addr: addr, Size: size, Reason: Unmapped, Err: fmt.Errorf("reader panic: %v", r)}
		}
	}()

	data, err = g.inner.ReadMemory(addr, size)
	if err != nil {
		if _, ok := err.(*Fault); !ok {
			err = &Fault{Addr: addr, Size: size, Reason: ReasonOf(err), Err: err}
		}
		return nil, err
	}
	if len(data) != size {
		return nil, &Fault{Addr: addr, Size: size, Reason: Unmapped,
			Err: fmt.Errorf("short read: got %d bytes", len(data))}
	}
	return data, nil
}

// RegionKindOf forwards to the wrapped reader when it knows its regions.
func (g *Guarded) RegionKindOf(addr Address) (RegionKind, bool) {
	if rl, ok := g.inner.(RegionLookup); ok {
		return rl.RegionKindOf(addr)
	}
	return RegionOther, false
}
