package dap

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/dshills/varlens/internal/memory"
)

// DefaultReadTimeout bounds one readMemory round trip.
const DefaultReadTimeout = 5 * time.Second

// MemoryReader implements memory.Reader with the readMemory request.
type MemoryReader struct {
	client  *Client
	timeout time.Duration
}

// ReaderOption configures a MemoryReader.
type ReaderOption func(*MemoryReader)

// WithReadTimeout sets the per-read timeout.
func WithReadTimeout(d time.Duration) ReaderOption {
	return func(r *MemoryReader) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// NewMemoryReader creates a reader over c.
func NewMemoryReader(c *Client, opts ...ReaderOption) *MemoryReader {
	r := &MemoryReader{client: c, timeout: DefaultReadTimeout}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReadMemory reads size bytes at addr. Adapter errors, unreadable bytes
// and short responses are Unmapped faults.
func (r *MemoryReader) ReadMemory(addr memory.Address, size int) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	body, err := r.client.ReadMemory(ctx, addr.String(), 0, size)
	if err != nil {
		return nil, &memory.Fault{Addr: addr, Size: size, Reason: memory.Unmapped, Err: err}
	}
	if body.UnreadableBytes > 0 {
		return nil, &memory.Fault{Addr: addr, Size: size, Reason: memory.Unmapped,
			Err: fmt.Errorf("%d unreadable bytes", body.UnreadableBytes)}
	}

	data, err := base64.StdEncoding.DecodeString(body.Data)
	if err != nil {
		return nil, &memory.Fault{Addr: addr, Size: size, Reason: memory.Unmapped,
			Err: fmt.Errorf("decode data: %w", err)}
	}
	if len(data) < size {
		return nil, &memory.Fault{Addr: addr, Size: size, Reason: memory.Unmapped,
			Err: fmt.Errorf("short read: got %d bytes", len(data))}
	}
	return data[:size], nil
}
