package value

import (
	"testing"

	"github.com/dshills/varlens/internal/memory"
	"github.com/dshills/varlens/internal/typeinfo"
	"github.com/stretchr/testify/require"
)

// fixture is an in-memory target: a snapshot with global, heap and stack
// regions plus the builtin types.
type fixture struct {
	t    *testing.T
	snap *memory.Snapshot
	arch typeinfo.Arch
	b    map[string]*typeinfo.Type
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
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
	return &fixture{t: t, snap: snap, arch: typeinfo.DefaultArch, b: typeinfo.Builtins(typeinfo.DefaultArch)}
}

func (f *fixture) alloc(kind memory.RegionKind, t *typeinfo.Type) memory.Address {
	f.t.Helper()
	addr, err := f.snap.Allocate(kind, max(t.Size, 1), max(t.Align, 1))
	require.NoError(f.t, err)
	return addr
}

func (f *fixture) putInt(addr memory.Address, size int, v int64) {
	f.t.Helper()
	require.NoError(f.t, f.snap.WriteInt(addr, size, v))
}

func (f *fixture) putPtr(addr, target memory.Address) {
	f.t.Helper()
	require.NoError(f.t, f.snap.WritePointer(addr, target))
}

func (f *fixture) put(addr memory.Address, data []byte) {
	f.t.Helper()
	require.NoError(f.t, f.snap.Write(addr, data))
}

func (f *fixture) materializer(opts ...Option) *Materializer {
	return NewMaterializer(f.snap, f.arch, opts...)
}

// nodeType builds struct Node { int value; struct Node *next; }.
func (f *fixture) nodeType() *typeinfo.Type {
	node := &typeinfo.Type{Name: "Node", Kind: typeinfo.KindStruct}
	*node = *typeinfo.NewStruct("Node").
		Field("value", f.b["int"]).
		Field("next", typeinfo.PointerTo(node, f.arch)).
		MustBuild()
	return node
}

// list allocates n heap nodes with values 1..n and returns the first.
func (f *fixture) list(node *typeinfo.Type, n int) memory.Address {
	var head memory.Address
	var prev memory.Address
	for i := 1; i <= n; i++ {
		addr := f.alloc(memory.RegionHeap, node)
		f.putInt(addr, 4, int64(i))
		if prev.IsNull() {
			head = addr
		} else {
			f.putPtr(prev.Add(8), addr)
		}
		prev = addr
	}
	return head
}
