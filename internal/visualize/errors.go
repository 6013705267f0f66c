package visualize

import "errors"

var (
	// ErrInvalidQuery indicates a query without a struct type.
	ErrInvalidQuery = errors.New("invalid visualization query")
)
