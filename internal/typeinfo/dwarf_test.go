package typeinfo

import (
	"debug/dwarf"
	"testing"

	"github.com/dshills/varlens/internal/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dwarfInt(name string, size int64) *dwarf.IntType {
	return &dwarf.IntType{BasicType: dwarf.BasicType{CommonType: dwarf.CommonType{Name: name, ByteSize: size}}}
}

func dwarfUint(name string, size int64) *dwarf.UintType {
	return &dwarf.UintType{BasicType: dwarf.BasicType{CommonType: dwarf.CommonType{Name: name, ByteSize: size}}}
}

func TestDWARFConverter_SelfReferentialStruct(t *testing.T) {
	c := newDWARFConverter(NewRegistry(DefaultArch))

	node := &dwarf.StructType{CommonType: dwarf.CommonType{ByteSize: 16}, StructName: "Node", Kind: "struct"}
	node.Field = []*dwarf.StructField{
		{Name: "value", Type: dwarfInt("int", 4), ByteOffset: 0},
		{Name: "next", Type: &dwarf.PtrType{CommonType: dwarf.CommonType{ByteSize: 8}, Type: node}, ByteOffset: 8},
	}

	typ := c.convert(node)
	assert.Equal(t, KindStruct, typ.Kind)
	assert.Equal(t, 16, typ.Size)

	value, ok := typ.Field("value")
	require.True(t, ok)
	assert.Same(t, c.reg.types["int"], value.Type)

	next, ok := typ.Field("next")
	require.True(t, ok)
	assert.Same(t, typ, next.Type.Elem)
	assert.Same(t, typ, c.convert(node))
}

func TestDWARFConverter_Scalars(t *testing.T) {
	c := newDWARFConverter(NewRegistry(DefaultArch))

	assert.Same(t, c.reg.types["unsigned long"], c.convert(dwarfUint("long unsigned int", 8)))

	ch := c.convert(&dwarf.CharType{BasicType: dwarf.BasicType{CommonType: dwarf.CommonType{Name: "char", ByteSize: 1}}})
	assert.True(t, ch.IsCharScalar())

	f := c.convert(&dwarf.FloatType{BasicType: dwarf.BasicType{CommonType: dwarf.CommonType{Name: "double", ByteSize: 8}}})
	assert.True(t, f.Float)

	odd := c.convert(dwarfInt("__int128", 16))
	assert.Equal(t, 16, odd.Size)
	assert.True(t, odd.Signed)

	assert.Same(t, Void, c.convert(&dwarf.VoidType{}))
	assert.Same(t, Void, c.convert(nil))
}

func TestDWARFConverter_EnumArrayTypedef(t *testing.T) {
	c := newDWARFConverter(NewRegistry(DefaultArch))

	enum := &dwarf.EnumType{
		CommonType: dwarf.CommonType{ByteSize: 4},
		EnumName:   "Dir",
		Val:        []*dwarf.EnumValue{{Name: "LEFT", Val: -1}, {Name: "RIGHT", Val: 1}},
	}
	e := c.convert(enum)
	assert.Equal(t, KindEnum, e.Kind)
	assert.True(t, e.Signed)

	arr := c.convert(&dwarf.ArrayType{Type: dwarfInt("int", 4), Count: 3})
	assert.Equal(t, "int [3]", arr.String())

	flexible := c.convert(&dwarf.ArrayType{Type: dwarfInt("int", 4), Count: -1})
	assert.Equal(t, 0, flexible.Len)

	td := &dwarf.TypedefType{CommonType: dwarf.CommonType{Name: "myint"}, Type: dwarfInt("int", 4)}
	assert.Same(t, c.reg.types["int"], c.convert(td))

	q := &dwarf.QualType{Qual: "const", Type: dwarfInt("int", 4)}
	assert.Same(t, c.reg.types["int"], c.convert(q))
}

func TestDWARFConverter_BitFields(t *testing.T) {
	u := dwarfUint("unsigned int", 4)

	tests := []struct {
		name   string
		fields []*dwarf.StructField
	}{
		{
			name: "data bit offset",
			fields: []*dwarf.StructField{
				{Name: "a", Type: u, BitSize: 3, DataBitOffset: 0},
				{Name: "b", Type: u, BitSize: 5, DataBitOffset: 3},
				{Name: "c", Type: u, BitSize: 4, DataBitOffset: 32},
			},
		},
		{
			name: "legacy bit offset",
			fields: []*dwarf.StructField{
				{Name: "a", Type: u, ByteSize: 4, BitSize: 3, BitOffset: 29},
				{Name: "b", Type: u, ByteSize: 4, BitSize: 5, BitOffset: 24},
				{Name: "c", Type: u, ByteSize: 4, BitSize: 4, BitOffset: 28, ByteOffset: 4},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newDWARFConverter(NewRegistry(DefaultArch))
			st := &dwarf.StructType{CommonType: dwarf.CommonType{ByteSize: 8}, StructName: "Flags", Kind: "struct", Field: tt.fields}
			typ := c.convert(st)
			require.Equal(t, KindStruct, typ.Kind)

			want := map[string][2]int{"a": {0, 0}, "b": {0, 3}, "c": {4, 0}}
			for name, pos := range want {
				f, ok := typ.Field(name)
				require.True(t, ok, name)
				assert.Equal(t, pos[0], f.Offset, name)
				assert.Equal(t, pos[1], f.BitOffset, name)
			}
		})
	}
}

func TestDWARFConverter_SmartPointerAndIncomplete(t *testing.T) {
	r := NewRegistry(DefaultArch)
	c := newDWARFConverter(r)

	widget := &dwarf.StructType{CommonType: dwarf.CommonType{ByteSize: 4}, StructName: "Widget", Kind: "class",
		Field: []*dwarf.StructField{{Name: "id", Type: dwarfInt("int", 4)}}}
	require.NoError(t, r.Define(c.convert(widget)))

	sp := &dwarf.StructType{CommonType: dwarf.CommonType{ByteSize: 16}, StructName: "std::shared_ptr<Widget>", Kind: "class"}
	typ := c.convert(sp)
	c.finish()

	assert.Equal(t, KindSmartPointer, typ.Kind)
	assert.Equal(t, SmartShared, typ.Smart)
	assert.Equal(t, "Widget", typ.Elem.Name)

	opaque := c.convert(&dwarf.StructType{StructName: "FILE", Kind: "struct", Incomplete: true})
	assert.Equal(t, KindVoid, opaque.Kind)
	assert.Equal(t, "FILE", opaque.String())
}

func TestDecodeLocation(t *testing.T) {
	tests := []struct {
		name     string
		expr     []byte
		function string
		ok       bool
		storage  Storage
		addr     memory.Address
		offset   int64
	}{
		{"global", []byte{opAddr, 0x10, 0x40, 0, 0, 0, 0, 0, 0}, "", true, StorageGlobal, 0x4010, 0},
		{"static local", []byte{opAddr, 0x10, 0x40, 0, 0, 0, 0, 0, 0}, "main", true, StorageStaticLocal, 0x4010, 0},
		{"frame base", []byte{opFbreg, 0x6c}, "main", true, StorageStackLocal, 0, -20},
		{"frame base outside function", []byte{opFbreg, 0x6c}, "", false, 0, 0, 0},
		{"register", []byte{0x50}, "main", false, 0, 0, 0},
		{"truncated address", []byte{opAddr, 0x10}, "", false, 0, 0, 0},
		{"empty", nil, "", false, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sym := &Symbol{Name: "v", Function: tt.function}
			ok := decodeLocation(tt.expr, DefaultArch, sym)
			assert.Equal(t, tt.ok, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.storage, sym.Storage)
			assert.Equal(t, tt.addr, sym.Address)
			assert.Equal(t, tt.offset, sym.FrameOffset)
		})
	}
}

func TestSLEB128(t *testing.T) {
	tests := []struct {
		in   []byte
		want int64
		n    int
	}{
		{[]byte{0x02}, 2, 1},
		{[]byte{0x7e}, -2, 1},
		{[]byte{0xff, 0x00}, 127, 2},
		{[]byte{0x80, 0x7f}, -128, 2},
		{[]byte{0x80}, 0, 0},
	}
	for _, tt := range tests {
		v, n := sleb128(tt.in)
		assert.Equal(t, tt.want, v)
		assert.Equal(t, tt.n, n)
	}
}
