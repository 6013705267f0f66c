package dap

import (
	"bufio"
	"context"
	"encoding/base64"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	godap "github.com/google/go-dap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/varlens/internal/memory"
	"github.com/dshills/varlens/internal/scope"
	"github.com/dshills/varlens/internal/typeinfo"
	"github.com/dshills/varlens/internal/value"
)

// fakeAdapter serves DAP requests over one end of a pipe, reading memory
// from a snapshot.
type fakeAdapter struct {
	t      *testing.T
	conn   net.Conn
	snap   *memory.Snapshot
	silent atomic.Bool // never answer readMemory

	mu       sync.Mutex
	seq      int
	requests []string
}

func startAdapter(t *testing.T, snap *memory.Snapshot) (*fakeAdapter, *Client, chan godap.EventMessage) {
	t.Helper()
	server, client := net.Pipe()
	a := &fakeAdapter{t: t, conn: server, snap: snap}
	go a.serve()

	events := make(chan godap.EventMessage, 4)
	c := NewClient(NewStreamTransport(client), WithEventHandler(func(e godap.EventMessage) {
		events <- e
	}))
	t.Cleanup(func() {
		_ = c.Close()
		_ = server.Close()
	})
	return a, c, events
}

func (a *fakeAdapter) serve() {
	r := bufio.NewReader(a.conn)
	for {
		msg, err := godap.ReadProtocolMessage(r)
		if err != nil {
			return
		}
		req, ok := msg.(godap.RequestMessage)
		if !ok {
			continue
		}
		a.mu.Lock()
		a.requests = append(a.requests, req.GetRequest().Command)
		a.mu.Unlock()

		switch m := msg.(type) {
		case *godap.InitializeRequest:
			a.send(&godap.InitializeResponse{
				Response: a.response(m.GetRequest(), true, ""),
				Body:     godap.Capabilities{SupportsReadMemoryRequest: true},
			})
			a.send(&godap.InitializedEvent{Event: godap.Event{
				ProtocolMessage: godap.ProtocolMessage{Seq: a.nextSeq(), Type: "event"},
				Event:           "initialized",
			}})
		case *godap.ReadMemoryRequest:
			if a.silent.Load() {
				continue
			}
			a.readMemory(m)
		case *godap.DisconnectRequest:
			a.send(&godap.DisconnectResponse{Response: a.response(m.GetRequest(), true, "")})
		default:
			a.send(&godap.ErrorResponse{Response: a.response(req.GetRequest(), false, "unsupported")})
		}
	}
}

func (a *fakeAdapter) readMemory(m *godap.ReadMemoryRequest) {
	addr, err := strconv.ParseUint(m.Arguments.MemoryReference, 0, 64)
	if err != nil {
		a.send(&godap.ErrorResponse{Response: a.response(&m.Request, false, "bad reference")})
		return
	}
	target := memory.Address(addr).Add(int64(m.Arguments.Offset))
	data, err := a.snap.ReadMemory(target, m.Arguments.Count)
	if err != nil {
		a.send(&godap.ErrorResponse{
			Response: a.response(&m.Request, false, "cannot read memory"),
			Body:     godap.ErrorResponseBody{Error: &godap.ErrorMessage{Format: err.Error()}},
		})
		return
	}
	a.send(&godap.ReadMemoryResponse{
		Response: a.response(&m.Request, true, ""),
		Body: godap.ReadMemoryResponseBody{
			Address: target.String(),
			Data:    base64.StdEncoding.EncodeToString(data),
		},
	})
}

func (a *fakeAdapter) nextSeq() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seq++
	return a.seq
}

func (a *fakeAdapter) response(req *godap.Request, success bool, message string) godap.Response {
	return godap.Response{
		ProtocolMessage: godap.ProtocolMessage{Seq: a.nextSeq(), Type: "response"},
		RequestSeq:      req.Seq,
		Success:         success,
		Command:         req.Command,
		Message:         message,
	}
}

func (a *fakeAdapter) send(msg godap.Message) {
	_ = godap.WriteProtocolMessage(a.conn, msg)
}

func (a *fakeAdapter) commands() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.requests...)
}

func newTestSnapshot(t *testing.T) *memory.Snapshot {
	t.Helper()
	snap := memory.NewSnapshot()
	_, err := snap.Map(0x1000, 0x100, memory.RegionGlobal)
	require.NoError(t, err)
	require.NoError(t, snap.WriteInt(0x1000, 4, 42))
	require.NoError(t, snap.WritePointer(0x1008, 0x1000))
	return snap
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestClient_Initialize(t *testing.T) {
	a, c, events := startAdapter(t, newTestSnapshot(t))

	caps, err := c.Initialize(testContext(t), DefaultInitializeArguments("varlens"))
	require.NoError(t, err)
	assert.True(t, caps.SupportsReadMemoryRequest)

	select {
	case e := <-events:
		assert.Equal(t, "initialized", e.GetEvent().Event)
	case <-time.After(2 * time.Second):
		t.Fatal("no initialized event")
	}

	require.NoError(t, c.Disconnect(testContext(t)))
	assert.Equal(t, []string{"initialize", "disconnect"}, a.commands())
}

func TestClient_ReadMemory(t *testing.T) {
	_, c, _ := startAdapter(t, newTestSnapshot(t))

	body, err := c.ReadMemory(testContext(t), "0x1000", 0, 4)
	require.NoError(t, err)
	data, err := base64.StdEncoding.DecodeString(body.Data)
	require.NoError(t, err)
	assert.Equal(t, []byte{42, 0, 0, 0}, data)

	_, err = c.ReadMemory(testContext(t), "0x9000", 0, 4)
	var rerr *ResponseError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "readMemory", rerr.Command)
	assert.Equal(t, "cannot read memory", rerr.Message)
	assert.Contains(t, rerr.Detail, "Unmapped")
}

func TestClient_ContextCancel(t *testing.T) {
	a, c, _ := startAdapter(t, newTestSnapshot(t))
	a.silent.Store(true)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.ReadMemory(ctx, "0x1000", 0, 4)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_Close(t *testing.T) {
	a, c, _ := startAdapter(t, newTestSnapshot(t))
	a.silent.Store(true)

	errc := make(chan error, 1)
	go func() {
		_, err := c.ReadMemory(context.Background(), "0x1000", 0, 4)
		errc <- err
	}()
	require.Eventually(t, func() bool { return len(a.commands()) == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, c.Close())
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("pending request not released")
	}

	_, err := c.ReadMemory(context.Background(), "0x1000", 0, 4)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMemoryReader(t *testing.T) {
	_, c, _ := startAdapter(t, newTestSnapshot(t))
	r := NewMemoryReader(c, WithReadTimeout(time.Second))

	data, err := r.ReadMemory(0x1000, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{42, 0, 0, 0}, data)

	_, err = r.ReadMemory(0x9000, 4)
	require.ErrorIs(t, err, memory.ErrFault)
	assert.Equal(t, memory.Unmapped, memory.ReasonOf(err))
}

func TestMemoryReader_Materialize(t *testing.T) {
	_, c, _ := startAdapter(t, newTestSnapshot(t))

	arch := typeinfo.DefaultArch
	ptr := typeinfo.PointerTo(typeinfo.Builtins(arch)["int"], arch)
	m := value.NewMaterializer(NewMemoryReader(c), arch)

	v := m.MaterializeRoot("p", 0x1008, ptr, scope.Global)
	assert.Equal(t, value.NoMarker, v.Marker)
	require.NotNil(t, v.Target)
	assert.Equal(t, int64(42), v.Target.Int)

	v = m.MaterializeRoot("q", 0x9000, ptr, scope.Unknown)
	assert.Equal(t, value.Unreadable, v.Marker)
	assert.Equal(t, memory.Unmapped, v.Reason)
}
