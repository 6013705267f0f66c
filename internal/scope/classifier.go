package scope

import (
	"github.com/dshills/varlens/internal/memory"
	"github.com/dshills/varlens/internal/typeinfo"
)

// Bounds is a half-open address range known to hold one kind of storage,
// such as the stack between the stack pointer and the stack top.
type Bounds struct {
	Scope Scope
	Lo    memory.Address
	Hi    memory.Address
}

// Contains reports whether addr is in [Lo, Hi).
func (b Bounds) Contains(addr memory.Address) bool {
	return addr >= b.Lo && addr < b.Hi
}

// Classifier assigns scopes to values.
type Classifier struct {
	regions memory.RegionLookup
	bounds  []Bounds
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithRegions adds a region lookup, typically a memory.Snapshot.
func WithRegions(r memory.RegionLookup) Option {
	return func(c *Classifier) {
		c.regions = r
	}
}

// WithStack declares the live stack range.
func WithStack(lo, hi memory.Address) Option {
	return func(c *Classifier) {
		c.bounds = append(c.bounds, Bounds{Scope: StackLocal, Lo: lo, Hi: hi})
	}
}

// WithHeap declares a heap arena range.
func WithHeap(lo, hi memory.Address) Option {
	return func(c *Classifier) {
		c.bounds = append(c.bounds, Bounds{Scope: Heap, Lo: lo, Hi: hi})
	}
}

// NewClassifier creates a classifier. With no options every value without
// symbol metadata is Unknown.
func NewClassifier(opts ...Option) *Classifier {
	c := &Classifier{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify returns the scope of the value at addr. sym may be nil.
func (c *Classifier) Classify(addr memory.Address, sym *typeinfo.Symbol) Scope {
	if sym != nil {
		if s := FromStorage(sym.Storage); s != Unknown {
			return s
		}
	}
	if addr.IsNull() || c == nil {
		return Unknown
	}
	for _, b := range c.bounds {
		if b.Contains(addr) {
			return b.Scope
		}
	}
	if c.regions != nil {
		if k, ok := c.regions.RegionKindOf(addr); ok {
			return FromRegion(k)
		}
	}
	return Unknown
}
