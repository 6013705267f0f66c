package typeinfo

import (
	"errors"
	"fmt"
)

// Errors returned by type resolution.
var (
	// ErrTypeNotFound indicates the metadata has no such type or symbol.
	ErrTypeNotFound = errors.New("type not found")

	// ErrSymbolNotFound indicates the metadata has no such symbol. Errors
	// matching it also match ErrTypeNotFound.
	ErrSymbolNotFound = errors.New("symbol not found")

	// ErrSealed indicates a mutation of a sealed registry.
	ErrSealed = errors.New("registry is sealed")

	// ErrDuplicate indicates a name was defined twice.
	ErrDuplicate = errors.New("duplicate definition")

	// ErrAliasCycle indicates typedefs that refer to each other.
	ErrAliasCycle = errors.New("alias cycle")

	// ErrInvalidType indicates a malformed type description.
	ErrInvalidType = errors.New("invalid type")
)

// NotFoundError reports a missing type or symbol.
type NotFoundError struct {
	// Symbol is true when a symbol rather than a type was requested.
	Symbol bool
	Name   string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e.Symbol {
		return fmt.Sprintf("symbol %q not found", e.Name)
	}
	return fmt.Sprintf("type %q not found", e.Name)
}

// Is matches ErrTypeNotFound for every missing name and ErrSymbolNotFound
// for missing symbols.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrTypeNotFound || (e.Symbol && target == ErrSymbolNotFound)
}
