package inspect

import (
	"errors"
	"fmt"

	"github.com/dshills/varlens/internal/typeinfo"
)

// Errors returned by a Session.
var (
	// ErrSessionClosed indicates the session was closed.
	ErrSessionClosed = errors.New("session closed")

	// ErrSymbolNotFound indicates the metadata has no such variable.
	ErrSymbolNotFound = typeinfo.ErrSymbolNotFound

	// ErrTypeNotFound indicates the metadata has no such type.
	ErrTypeNotFound = typeinfo.ErrTypeNotFound

	// ErrNoFrame indicates a stack local was requested without a frame for
	// its function.
	ErrNoFrame = errors.New("no frame for stack local")

	// ErrInvalidRequest indicates a request names neither a symbol nor an
	// address and type.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrInvalidExpression indicates a watch expression that cannot be
	// parsed or evaluated.
	ErrInvalidExpression = errors.New("invalid expression")
)

// ExprError describes an expression failure.
type ExprError struct {
	// Expr is the full expression.
	Expr string

	// Pos is the byte offset of the failure, or -1 when it is not tied to
	// a position.
	Pos int

	// Msg describes the failure.
	Msg string

	// Err is an underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *ExprError) Error() string {
	msg := e.Msg
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Pos >= 0 {
		return fmt.Sprintf("expression %q at %d: %s", e.Expr, e.Pos, msg)
	}
	return fmt.Sprintf("expression %q: %s", e.Expr, msg)
}

// Unwrap returns the underlying error.
func (e *ExprError) Unwrap() error {
	return e.Err
}

// Is matches ErrInvalidExpression.
func (e *ExprError) Is(target error) bool {
	return target == ErrInvalidExpression
}
