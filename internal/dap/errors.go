package dap

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed indicates the client was closed.
	ErrClosed = errors.New("dap client closed")

	// ErrUnexpectedResponse indicates a response of the wrong type for
	// its request.
	ErrUnexpectedResponse = errors.New("unexpected dap response")

	// ErrNotSupported indicates the adapter lacks a capability.
	ErrNotSupported = errors.New("not supported by debug adapter")
)

// ResponseError is a response with success set to false.
type ResponseError struct {
	// Command is the request command.
	Command string

	// Message is the adapter's short error message.
	Message string

	// Detail is the formatted error body, if any.
	Detail string
}

// Error implements the error interface.
func (e *ResponseError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s failed: %s: %s", e.Command, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s failed: %s", e.Command, e.Message)
}
