package inspect

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dshills/varlens/internal/memory"
	"github.com/dshills/varlens/internal/typeinfo"
)

var (
	localsFrame = Frame{Function: "manipulateLocals", Base: 0x7f800}
	mainFrame   = Frame{Function: "main", Base: 0x7fc00}
)

// program is a stopped process described by testdata/program.toml: a
// global data segment at 0x1000, a heap at 0x10000 and a stack at 0x7f000.
type program struct {
	t    *testing.T
	snap *memory.Snapshot
	reg  *typeinfo.Registry
}

func newProgram(t *testing.T) *program {
	t.Helper()

	reg, err := typeinfo.LoadMetadataFile("testdata/program.toml")
	require.NoError(t, err)

	snap := memory.NewSnapshot()
	for _, r := range []struct {
		base memory.Address
		kind memory.RegionKind
	}{
		{0x1000, memory.RegionGlobal},
		{0x10000, memory.RegionHeap},
		{0x7f000, memory.RegionStack},
	} {
		_, err := snap.Map(r.base, 0x1000, r.kind)
		require.NoError(t, err)
	}

	p := &program{t: t, snap: snap, reg: reg}
	p.globals()
	p.locals()
	p.smartPointers()
	return p
}

func (p *program) int32(addr memory.Address, v int64) {
	p.t.Helper()
	require.NoError(p.t, p.snap.WriteInt(addr, 4, v))
}

func (p *program) float(addr memory.Address, v float32) {
	p.t.Helper()
	require.NoError(p.t, p.snap.WriteFloat32(addr, v))
}

func (p *program) ptr(addr, target memory.Address) {
	p.t.Helper()
	require.NoError(p.t, p.snap.WritePointer(addr, target))
}

func (p *program) bytes(addr memory.Address, data []byte) {
	p.t.Helper()
	require.NoError(p.t, p.snap.Write(addr, data))
}

func (p *program) cstring(addr memory.Address, s string) {
	p.bytes(addr, append([]byte(s), 0))
}

func (p *program) globals() {
	p.int32(0x1000, 10)
	p.float(0x1004, 3.14)
	p.bytes(0x1008, []byte{'A'})
	p.item(0x100c, 1, 65.5, 0)
	p.ptr(0x1018, 0x100c)
	p.int32(0x1020, 20)
	p.float(0x1024, 6.78)

	// head -> 1 -> 2 -> 3
	p.ptr(0x1028, 0x10000)
	for i, addr := range []memory.Address{0x10000, 0x10010, 0x10020} {
		p.int32(addr, int64(i+1))
		if i < 2 {
			p.ptr(addr+8, addr+0x10)
		}
	}

	p.cstring(0x1030, "张三")
	p.int32(0x1030+52, 12345)
	p.int32(0x1030+56, 2005)
	p.int32(0x1030+60, 3)
	p.int32(0x1030+64, 15)
	p.ptr(0x1078, 0x1030)

	for i := 0; i < 6; i++ {
		p.int32(0x1080+memory.Address(4*i), int64(i+1))
	}

	p.cstring(0x1200, "Hello, World!")
	p.ptr(0x10a0, 0x1200)

	// a = 1, b = 5, c = 9
	p.int32(0x10a8, 1|5<<1|9<<4)
}

func (p *program) item(addr memory.Address, id int64, weight float32, color int64) {
	p.int32(addr, id)
	p.float(addr+4, weight)
	p.int32(addr+8, color)
}

func (p *program) locals() {
	base := localsFrame.Base
	p.int32(base-4, 5)
	p.bytes(base-5, []byte{'G'})
	p.item(base-20, 2, 42, 1)
	p.int32(base-24, 2)
	p.int32(base-28, 123)
	p.ptr(base-40, base-4)
	p.ptr(base-48, 0xdeadbeef)
}

func (p *program) smartPointers() {
	base := mainFrame.Base
	// person1 owns Alice, who owns Bob through friend_ptr; person2 was
	// moved into Alice's friend_ptr.
	p.ptr(base-8, 0x10100)
	p.ptr(base-16, 0)
	require.NoError(p.t, p.snap.WriteInt(base-24, 8, -7))

	p.cstring(0x10180, "Alice")
	p.ptr(0x10100, 0x10180)
	p.int32(0x10108, 30)
	p.ptr(0x10110, 0x10200)

	p.cstring(0x10280, "Bob")
	p.ptr(0x10200, 0x10280)
	p.int32(0x10208, 25)
	p.ptr(0x10210, 0)
}

// session opens a session over the program.
func (p *program) session(opts ...Option) *Session {
	p.t.Helper()
	s, err := NewSession(p.reg, p.snap, opts...)
	require.NoError(p.t, err)
	p.t.Cleanup(func() { _ = s.Close() })
	return s
}

var ctx = context.Background()
