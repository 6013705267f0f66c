package dap

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os/exec"
	"sync"

	godap "github.com/google/go-dap"
)

// Transport carries DAP messages to and from a debug adapter.
type Transport interface {
	// Send writes one message.
	Send(msg godap.Message) error

	// Receive blocks for the next message.
	Receive() (godap.Message, error)

	// Close closes the transport.
	Close() error
}

// StreamTransport implements Transport over any byte stream, such as a
// TCP connection.
type StreamTransport struct {
	rwc    io.ReadWriteCloser
	reader *bufio.Reader
	mu     sync.Mutex
}

// NewStreamTransport creates a transport from a ReadWriteCloser.
func NewStreamTransport(rwc io.ReadWriteCloser) *StreamTransport {
	return &StreamTransport{
		rwc:    rwc,
		reader: bufio.NewReader(rwc),
	}
}

// DialTCP connects to a debug adapter listening on address.
func DialTCP(address string) (*StreamTransport, error) {
	conn, err := net.Dial("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", address, err)
	}
	return NewStreamTransport(conn), nil
}

// Send writes a message.
func (t *StreamTransport) Send(msg godap.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	return godap.WriteProtocolMessage(t.rwc, msg)
}

// Receive reads a message.
func (t *StreamTransport) Receive() (godap.Message, error) {
	return godap.ReadProtocolMessage(t.reader)
}

// Close closes the stream.
func (t *StreamTransport) Close() error {
	return t.rwc.Close()
}

// StdioTransport implements Transport over stdin/stdout of a subprocess.
type StdioTransport struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	reader *bufio.Reader
	mu     sync.Mutex
}

// NewStdioTransport starts cmd and talks DAP over its standard streams.
func NewStdioTransport(cmd *exec.Cmd) (*StdioTransport, error) {
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("get stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("get stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdout.Close()
		return nil, fmt.Errorf("start command: %w", err)
	}

	return &StdioTransport{
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdout,
		reader: bufio.NewReader(stdout),
	}, nil
}

// Send writes a message to the subprocess.
func (t *StdioTransport) Send(msg godap.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	return godap.WriteProtocolMessage(t.stdin, msg)
}

// Receive reads a message from the subprocess.
func (t *StdioTransport) Receive() (godap.Message, error) {
	return godap.ReadProtocolMessage(t.reader)
}

// Close closes the pipes and terminates the subprocess.
func (t *StdioTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stdin.Close()
	t.stdout.Close()

	if t.cmd.Process != nil {
		t.cmd.Process.Kill()
	}

	return t.cmd.Wait()
}
