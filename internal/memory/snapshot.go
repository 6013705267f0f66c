package memory

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
)

// Errors returned when building snapshots.
var (
	// ErrOverlap indicates a region overlaps an existing region.
	ErrOverlap = errors.New("region overlaps existing region")

	// ErrNoSpace indicates no region of the requested kind has room left.
	ErrNoSpace = errors.New("no space left in region")
)

// Region is a contiguous mapped range of a snapshot.
type Region struct {
	// Base is the first address of the region.
	Base Address

	// Data holds the region's bytes; its length is the region size.
	Data []byte

	// Kind is the storage kind of the region.
	Kind RegionKind

	// Readable is false for guard pages and other protected memory.
	Readable bool

	used int // bump allocation offset
}

// End returns the first address past the region.
func (r *Region) End() Address {
	return r.Base.Add(int64(len(r.Data)))
}

// Contains reports whether addr lies inside the region.
func (r *Region) Contains(addr Address) bool {
	return addr >= r.Base && addr < r.End()
}

// Snapshot is a sparse copy of a target's address space.
//
// Snapshots are safe for concurrent reads; building (Map, Write, Allocate)
// must not race with reads of the same bytes.
type Snapshot struct {
	mu      sync.RWMutex
	regions []*Region // sorted by Base

	// PtrSize is the target pointer width in bytes.
	PtrSize int

	// BigEndian selects the target byte order.
	BigEndian bool

	// StrictAlignment makes 2, 4 and 8 byte reads at misaligned
	// addresses fail with MisalignedAccess.
	StrictAlignment bool
}

// NewSnapshot creates an empty little-endian snapshot with 8-byte pointers.
func NewSnapshot() *Snapshot {
	return &Snapshot{PtrSize: 8}
}

// ByteOrder returns the snapshot's byte order.
func (s *Snapshot) ByteOrder() binary.ByteOrder {
	if s.BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// Map adds a zero-filled readable region of the given size.
func (s *Snapshot) Map(base Address, size int, kind RegionKind) (*Region, error) {
	return s.MapRegion(&Region{Base: base, Data: make([]byte, size), Kind: kind, Readable: true})
}

// MapRegion adds r to the snapshot.
func (s *Snapshot) MapRegion(r *Region) (*Region, error) {
	if len(r.Data) == 0 {
		return nil, fmt.Errorf("map region at %s: empty region", r.Base)
	}
	if uint64(r.Base)+uint64(len(r.Data)) < uint64(r.Base) {
		return nil, fmt.Errorf("map region at %s: wraps address space", r.Base)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.regions {
		if r.Base < existing.End() && existing.Base < r.End() {
			return nil, fmt.Errorf("map region at %s: %w (%s-%s)", r.Base, ErrOverlap, existing.Base, existing.End())
		}
	}
	s.regions = append(s.regions, r)
	sort.Slice(s.regions, func(i, j int) bool {
		return s.regions[i].Base < s.regions[j].Base
	})
	return r, nil
}

// Regions returns the snapshot's regions sorted by base address.
func (s *Snapshot) Regions() []*Region {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Region, len(s.regions))
	copy(result, s.regions)
	return result
}

// find returns the region containing addr. Caller holds s.mu.
func (s *Snapshot) find(addr Address) *Region {
	i := sort.Search(len(s.regions), func(i int) bool {
		return s.regions[i].End() > addr
	})
	if i < len(s.regions) && s.regions[i].Contains(addr) {
		return s.regions[i]
	}
	return nil
}

// RegionKindOf reports the storage kind of the region containing addr.
func (s *Snapshot) RegionKindOf(addr Address) (RegionKind, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if r := s.find(addr); r != nil {
		return r.Kind, true
	}
	return RegionOther, false
}

// ReadMemory implements Reader. Reads may span adjacent regions.
func (s *Snapshot) ReadMemory(addr Address, size int) ([]byte, error) {
	if addr.IsNull() {
		return nil, NewFault(addr, size, Unmapped)
	}
	if size < 0 {
		return nil, NewFault(addr, size, Unmapped)
	}
	if s.StrictAlignment && (size == 2 || size == 4 || size == 8) && uint64(addr)%uint64(size) != 0 {
		return nil, NewFault(addr, size, MisalignedAccess)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]byte, 0, size)
	cur := addr
	for len(out) < size {
		r := s.find(cur)
		if r == nil {
			return nil, NewFault(addr, size, Unmapped)
		}
		if !r.Readable {
			return nil, NewFault(addr, size, ProtectedPage)
		}
		off := int(cur - r.Base)
		n := min(size-len(out), len(r.Data)-off)
		out = append(out, r.Data[off:off+n]...)
		cur = cur.Add(int64(n))
	}
	return out, nil
}

// Write copies data into the snapshot at addr. Protection is ignored so
// fixtures can populate guard pages too.
func (s *Snapshot) Write(addr Address, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := addr
	rest := data
	for len(rest) > 0 {
		r := s.find(cur)
		if r == nil {
			return NewFault(addr, len(data), Unmapped)
		}
		off := int(cur - r.Base)
		n := copy(r.Data[off:], rest)
		rest = rest[n:]
		cur = cur.Add(int64(n))
	}
	return nil
}

// WriteUint writes v as a size-byte unsigned integer in the snapshot's byte order.
func (s *Snapshot) WriteUint(addr Address, size int, v uint64) error {
	buf := make([]byte, 8)
	switch size {
	case 1:
		buf[0] = byte(v)
	case 2:
		s.ByteOrder().PutUint16(buf, uint16(v))
	case 4:
		s.ByteOrder().PutUint32(buf, uint32(v))
	case 8:
		s.ByteOrder().PutUint64(buf, v)
	default:
		return fmt.Errorf("write uint: unsupported size %d", size)
	}
	return s.Write(addr, buf[:size])
}

// WriteInt writes v as a size-byte two's complement integer.
func (s *Snapshot) WriteInt(addr Address, size int, v int64) error {
	return s.WriteUint(addr, size, uint64(v))
}

// WriteFloat32 writes an IEEE-754 single.
func (s *Snapshot) WriteFloat32(addr Address, v float32) error {
	return s.WriteUint(addr, 4, uint64(math.Float32bits(v)))
}

// WriteFloat64 writes an IEEE-754 double.
func (s *Snapshot) WriteFloat64(addr Address, v float64) error {
	return s.WriteUint(addr, 8, math.Float64bits(v))
}

// WritePointer writes a pointer-sized address.
func (s *Snapshot) WritePointer(addr, target Address) error {
	return s.WriteUint(addr, s.PtrSize, uint64(target))
}

// Allocate reserves size bytes aligned to align in the first region of the
// given kind that has room, returning the address of the block.
func (s *Snapshot) Allocate(kind RegionKind, size, align int) (Address, error) {
	if align <= 0 {
		align = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.regions {
		if r.Kind != kind || !r.Readable {
			continue
		}
		start := alignUp(uint64(r.Base)+uint64(r.used), uint64(align))
		off := int(start - uint64(r.Base))
		if off+size <= len(r.Data) {
			r.used = off + size
			return Address(start), nil
		}
	}
	return Null, fmt.Errorf("allocate %d bytes in %s: %w", size, kind, ErrNoSpace)
}

func alignUp(v, align uint64) uint64 {
	return (v + align - 1) / align * align
}
