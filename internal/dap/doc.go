// Package dap talks to a Debug Adapter Protocol server and exposes its
// readMemory request as a memory.Reader.
//
// Messages use the github.com/google/go-dap types and framing. A Client
// runs one receive loop per transport, matches responses to requests by
// sequence number and hands events to an optional handler:
//
//	t, err := dap.DialTCP("127.0.0.1:4711")
//	c := dap.NewClient(t)
//	caps, err := c.Initialize(ctx, dap.DefaultInitializeArguments("varlens"))
//	r := dap.NewMemoryReader(c)
//	data, err := r.ReadMemory(0x601040, 16)
package dap
