package value

// Default limits.
const (
	DefaultMaxArrayElements = 200
	DefaultMaxDepth         = 64
	DefaultMaxStringScan    = 1024
)

// Limits bounds the cost of one materialization.
type Limits struct {
	// MaxArrayElements is the number of array elements materialized before
	// the array is marked ArrayTruncated.
	MaxArrayElements int `toml:"max_array_elements"`

	// MaxDepth is the number of pointer dereferences followed from the
	// root before a pointee is marked DepthExceeded.
	MaxDepth int `toml:"max_depth"`

	// MaxStringScan is the number of bytes scanned for the NUL terminator
	// of a pointer to char.
	MaxStringScan int `toml:"max_string_scan"`
}

// DefaultLimits returns the default limits.
func DefaultLimits() Limits {
	return Limits{
		MaxArrayElements: DefaultMaxArrayElements,
		MaxDepth:         DefaultMaxDepth,
		MaxStringScan:    DefaultMaxStringScan,
	}
}

// withDefaults replaces non-positive limits by their defaults.
func (l Limits) withDefaults() Limits {
	if l.MaxArrayElements <= 0 {
		l.MaxArrayElements = DefaultMaxArrayElements
	}
	if l.MaxDepth <= 0 {
		l.MaxDepth = DefaultMaxDepth
	}
	if l.MaxStringScan <= 0 {
		l.MaxStringScan = DefaultMaxStringScan
	}
	return l
}
