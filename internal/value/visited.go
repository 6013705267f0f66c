package value

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/dshills/varlens/internal/memory"
	"github.com/dshills/varlens/internal/typeinfo"
)

type visitKey struct {
	addr memory.Address
	typ  *typeinfo.Type
}

// Visited is the set of (address, type) pairs already expanded during one
// top-level materialization. It is not safe for concurrent use; every
// top-level request owns its own set.
type Visited struct {
	set mapset.Set[visitKey]
}

// NewVisited creates an empty set.
func NewVisited() *Visited {
	return &Visited{set: mapset.NewThreadUnsafeSet[visitKey]()}
}

// Add records (addr, t) and reports whether it was new.
func (v *Visited) Add(addr memory.Address, t *typeinfo.Type) bool {
	return v.set.Add(visitKey{addr: addr, typ: t})
}

// Contains reports whether (addr, t) was recorded.
func (v *Visited) Contains(addr memory.Address, t *typeinfo.Type) bool {
	return v.set.Contains(visitKey{addr: addr, typ: t})
}

// Len returns the number of recorded pairs.
func (v *Visited) Len() int {
	return v.set.Cardinality()
}
