package dap

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	godap "github.com/google/go-dap"
	"github.com/sirupsen/logrus"
)

// Client is a DAP client that communicates with a debug adapter.
type Client struct {
	transport Transport
	seq       int64
	pending   map[int]*pendingRequest
	pendingMu sync.Mutex
	onEvent   func(godap.EventMessage)
	logger    *logrus.Logger
	done      chan struct{}
	closeOnce sync.Once
	err       error
	errMu     sync.RWMutex
}

// pendingRequest tracks a request awaiting its response.
type pendingRequest struct {
	done      chan struct{}
	closeOnce sync.Once
	response  godap.ResponseMessage
	err       error
}

func (p *pendingRequest) close() {
	p.closeOnce.Do(func() {
		close(p.done)
	})
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithEventHandler sets the handler called for every event. It runs on the
// receive loop and must not block.
func WithEventHandler(fn func(godap.EventMessage)) ClientOption {
	return func(c *Client) {
		c.onEvent = fn
	}
}

// WithClientLogger sets the logger for protocol traffic.
func WithClientLogger(l *logrus.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a client and starts its receive loop.
func NewClient(transport Transport, opts ...ClientOption) *Client {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	c := &Client{
		transport: transport,
		pending:   make(map[int]*pendingRequest),
		logger:    discard,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.receiveLoop()
	return c
}

// Close closes the client and its transport. Pending requests fail with
// ErrClosed.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.failPending(ErrClosed)
	})
	return c.transport.Close()
}

// Error returns the error that stopped the receive loop, if any.
func (c *Client) Error() error {
	c.errMu.RLock()
	defer c.errMu.RUnlock()
	return c.err
}

func (c *Client) failPending(err error) {
	c.pendingMu.Lock()
	for _, req := range c.pending {
		req.err = err
		req.close()
	}
	c.pending = make(map[int]*pendingRequest)
	c.pendingMu.Unlock()
}

func (c *Client) receiveLoop() {
	for {
		msg, err := c.transport.Receive()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}

			c.errMu.Lock()
			c.err = err
			c.errMu.Unlock()
			c.logger.WithError(err).Debug("dap receive loop stopped")
			c.failPending(err)
			return
		}

		select {
		case <-c.done:
			return
		default:
		}

		c.handleMessage(msg)
	}
}

func (c *Client) handleMessage(msg godap.Message) {
	switch m := msg.(type) {
	case godap.ResponseMessage:
		resp := m.GetResponse()
		c.pendingMu.Lock()
		req, ok := c.pending[resp.RequestSeq]
		if ok {
			delete(c.pending, resp.RequestSeq)
		}
		c.pendingMu.Unlock()

		if !ok {
			c.logger.WithField("request_seq", resp.RequestSeq).Debug("dap response without request")
			return
		}
		req.response = m
		req.close()
	case godap.EventMessage:
		if c.onEvent != nil {
			c.onEvent(m)
		}
	}
}

// newRequest allocates a sequence number for command.
func (c *Client) newRequest(command string) godap.Request {
	seq := int(atomic.AddInt64(&c.seq, 1))
	return godap.Request{
		ProtocolMessage: godap.ProtocolMessage{Seq: seq, Type: "request"},
		Command:         command,
	}
}

// roundTrip sends req and waits for its response. Responses with success
// set to false become a *ResponseError.
func (c *Client) roundTrip(ctx context.Context, req godap.RequestMessage) (godap.ResponseMessage, error) {
	select {
	case <-c.done:
		return nil, ErrClosed
	default:
	}

	r := req.GetRequest()
	pending := &pendingRequest{done: make(chan struct{})}

	c.pendingMu.Lock()
	c.pending[r.Seq] = pending
	c.pendingMu.Unlock()

	c.logger.WithFields(logrus.Fields{"seq": r.Seq, "command": r.Command}).Debug("dap request")
	if err := c.transport.Send(req); err != nil {
		c.pendingMu.Lock()
		delete(c.pending, r.Seq)
		c.pendingMu.Unlock()
		return nil, fmt.Errorf("send %s: %w", r.Command, err)
	}

	select {
	case <-ctx.Done():
		c.pendingMu.Lock()
		delete(c.pending, r.Seq)
		c.pendingMu.Unlock()
		return nil, ctx.Err()
	case <-pending.done:
		if pending.err != nil {
			return nil, pending.err
		}
	}

	resp := pending.response.GetResponse()
	if !resp.Success {
		rerr := &ResponseError{Command: r.Command, Message: resp.Message}
		if er, ok := pending.response.(*godap.ErrorResponse); ok && er.Body.Error != nil {
			rerr.Detail = er.Body.Error.Format
		}
		return nil, rerr
	}
	return pending.response, nil
}

// DefaultInitializeArguments returns the arguments varlens sends, with
// memory references enabled.
func DefaultInitializeArguments(clientID string) godap.InitializeRequestArguments {
	return godap.InitializeRequestArguments{
		ClientID:                 clientID,
		ClientName:               clientID,
		AdapterID:                clientID,
		PathFormat:               "path",
		LinesStartAt1:            true,
		ColumnsStartAt1:          true,
		SupportsMemoryReferences: true,
	}
}

// Initialize sends the initialize request and returns the adapter's
// capabilities.
func (c *Client) Initialize(ctx context.Context, args godap.InitializeRequestArguments) (*godap.Capabilities, error) {
	req := &godap.InitializeRequest{Request: c.newRequest("initialize"), Arguments: args}
	resp, err := c.roundTrip(ctx, req)
	if err != nil {
		return nil, err
	}
	ir, ok := resp.(*godap.InitializeResponse)
	if !ok {
		return nil, fmt.Errorf("%w: %T for initialize", ErrUnexpectedResponse, resp)
	}
	return &ir.Body, nil
}

// ReadMemory reads count bytes at offset from a memory reference.
func (c *Client) ReadMemory(ctx context.Context, ref string, offset, count int) (*godap.ReadMemoryResponseBody, error) {
	req := &godap.ReadMemoryRequest{
		Request: c.newRequest("readMemory"),
		Arguments: godap.ReadMemoryArguments{
			MemoryReference: ref,
			Offset:          offset,
			Count:           count,
		},
	}
	resp, err := c.roundTrip(ctx, req)
	if err != nil {
		return nil, err
	}
	rr, ok := resp.(*godap.ReadMemoryResponse)
	if !ok {
		return nil, fmt.Errorf("%w: %T for readMemory", ErrUnexpectedResponse, resp)
	}
	return &rr.Body, nil
}

// Disconnect asks the adapter to end the debug session.
func (c *Client) Disconnect(ctx context.Context) error {
	req := &godap.DisconnectRequest{Request: c.newRequest("disconnect")}
	_, err := c.roundTrip(ctx, req)
	return err
}
