package typeinfo

import (
	"debug/dwarf"
	"debug/elf"
	"encoding/binary"
	"fmt"

	"github.com/dshills/varlens/internal/memory"
)

// DWARF location expression opcodes understood by the loader.
const (
	opAddr  = 0x03
	opFbreg = 0x91
)

// LoadDWARF builds an unsealed registry from the DWARF information of an
// ELF executable.
func LoadDWARF(path string) (*Registry, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open elf: %w", err)
	}
	defer f.Close()

	d, err := f.DWARF()
	if err != nil {
		return nil, fmt.Errorf("read dwarf: %w", err)
	}

	arch := Arch{PtrSize: 8, BigEndian: f.ByteOrder == binary.BigEndian}
	if f.Class == elf.ELFCLASS32 {
		arch.PtrSize = 4
	}
	return FromDWARF(d, arch)
}

// FromDWARF builds an unsealed registry from DWARF data.
func FromDWARF(d *dwarf.Data, arch Arch) (*Registry, error) {
	c := newDWARFConverter(NewRegistry(arch))
	if err := c.walk(d); err != nil {
		return nil, err
	}
	c.finish()
	return c.reg, nil
}

// dwarfConverter translates debug/dwarf types into the Type IR.
type dwarfConverter struct {
	reg   *Registry
	memo  map[dwarf.Type]*Type
	smart []pendingSmart
}

// pendingSmart is a smart pointer whose pointee is named by its template
// argument and looked up once every type has been converted.
type pendingSmart struct {
	t    *Type
	elem string
}

func newDWARFConverter(reg *Registry) *dwarfConverter {
	return &dwarfConverter{reg: reg, memo: make(map[dwarf.Type]*Type)}
}

// walk visits every entry, registering named types and variables.
func (c *dwarfConverter) walk(d *dwarf.Data) error {
	r := d.Reader()
	// functions holds the enclosing subprogram name per nesting level
	// ("" for non-function scopes).
	var functions []string

	current := func() string {
		for i := len(functions) - 1; i >= 0; i-- {
			if functions[i] != "" {
				return functions[i]
			}
		}
		return ""
	}

	for {
		e, err := r.Next()
		if err != nil {
			return fmt.Errorf("read dwarf entry: %w", err)
		}
		if e == nil {
			return nil
		}
		if e.Tag == 0 {
			if len(functions) > 0 {
				functions = functions[:len(functions)-1]
			}
			continue
		}

		switch e.Tag {
		case dwarf.TagBaseType, dwarf.TagStructType, dwarf.TagClassType, dwarf.TagUnionType,
			dwarf.TagEnumerationType, dwarf.TagTypedef:
			c.declareEntry(d, e)
		case dwarf.TagVariable, dwarf.TagFormalParameter:
			c.variableEntry(d, e, current())
		}

		if e.Children {
			name := ""
			if e.Tag == dwarf.TagSubprogram {
				name, _ = e.Val(dwarf.AttrName).(string)
				if name == "" {
					name = "?"
				}
			}
			functions = append(functions, name)
		}
	}
}

// declareEntry registers a named type entry. Conflicting definitions from
// other compilation units keep the first one seen.
func (c *dwarfConverter) declareEntry(d *dwarf.Data, e *dwarf.Entry) {
	name, _ := e.Val(dwarf.AttrName).(string)
	if name == "" {
		return
	}
	dt, err := d.Type(e.Offset)
	if err != nil {
		return
	}

	if td, ok := dt.(*dwarf.TypedefType); ok {
		target := c.convert(td.Type)
		if target.Name == "" && target.IsAggregate() {
			target.Name = name
			_ = c.reg.Define(target)
			return
		}
		if target.Name == name {
			return
		}
		_ = c.reg.Alias(name, target.String())
		return
	}

	t := c.convert(dt)
	if t.Name == "" || stripTag(t.Name) != name {
		return
	}
	_ = c.reg.Define(t)
}

// variableEntry records a variable with a location the engine can use.
func (c *dwarfConverter) variableEntry(d *dwarf.Data, e *dwarf.Entry, function string) {
	name, _ := e.Val(dwarf.AttrName).(string)
	if name == "" {
		return
	}
	if decl, _ := e.Val(dwarf.AttrDeclaration).(bool); decl {
		return
	}
	off, ok := e.Val(dwarf.AttrType).(dwarf.Offset)
	if !ok {
		return
	}
	field := e.AttrField(dwarf.AttrLocation)
	if field == nil || field.Class != dwarf.ClassExprLoc {
		return
	}
	expr, _ := field.Val.([]byte)

	t, err := c.typeAt(d, off)
	if err != nil {
		return
	}
	sym := &Symbol{Name: name, Function: function, Type: t}
	if !decodeLocation(expr, c.reg.arch, sym) {
		return
	}
	_ = c.reg.AddSymbol(sym)
}

// decodeLocation understands the two single-operation location forms that
// describe memory-resident variables: a static address and an offset from
// the frame base.
func decodeLocation(expr []byte, arch Arch, sym *Symbol) bool {
	if len(expr) == 0 {
		return false
	}
	switch expr[0] {
	case opAddr:
		if len(expr) != 1+arch.PtrSize {
			return false
		}
		var addr uint64
		if arch.PtrSize == 4 {
			addr = uint64(arch.ByteOrder().Uint32(expr[1:]))
		} else {
			addr = arch.ByteOrder().Uint64(expr[1:])
		}
		sym.Address = memory.Address(addr)
		sym.Storage = StorageGlobal
		if sym.Function != "" {
			sym.Storage = StorageStaticLocal
		}
		return true
	case opFbreg:
		v, n := sleb128(expr[1:])
		if n == 0 || 1+n != len(expr) || sym.Function == "" {
			return false
		}
		sym.FrameOffset = v
		sym.Storage = StorageStackLocal
		return true
	}
	return false
}

// sleb128 decodes a signed LEB128 value, returning it and the bytes used.
func sleb128(b []byte) (int64, int) {
	var result int64
	var shift uint
	for i, c := range b {
		if shift >= 64 {
			return 0, 0
		}
		result |= int64(c&0x7f) << shift
		shift += 7
		if c&0x80 == 0 {
			if shift < 64 && c&0x40 != 0 {
				result |= -1 << shift
			}
			return result, i + 1
		}
	}
	return 0, 0
}

// typeAt converts the type entry at off. References are handled here
// because debug/dwarf reports them as unsupported types without a pointee.
func (c *dwarfConverter) typeAt(d *dwarf.Data, off dwarf.Offset) (*Type, error) {
	r := d.Reader()
	r.Seek(off)
	e, err := r.Next()
	if err != nil {
		return nil, err
	}
	if e != nil && (e.Tag == dwarf.TagReferenceType || e.Tag == dwarf.TagRvalueReferenceType) {
		elem := Void
		if inner, ok := e.Val(dwarf.AttrType).(dwarf.Offset); ok {
			if et, err := c.typeAt(d, inner); err == nil {
				elem = et
			}
		}
		return ReferenceTo(elem, c.reg.arch), nil
	}
	dt, err := d.Type(off)
	if err != nil {
		return nil, err
	}
	return c.convert(dt), nil
}

// convert translates one debug/dwarf type. Results are memoized so that
// recursive types (a struct holding a pointer to itself) terminate and
// keep a single identity.
func (c *dwarfConverter) convert(dt dwarf.Type) *Type {
	if dt == nil {
		return Void
	}
	if t, ok := c.memo[dt]; ok {
		return t
	}

	var t *Type
	switch v := dt.(type) {
	case *dwarf.IntType:
		t = c.scalar(v.Name, NewInt(v.Name, int(v.ByteSize), true))
	case *dwarf.UintType:
		t = c.scalar(v.Name, NewInt(v.Name, int(v.ByteSize), false))
	case *dwarf.CharType:
		t = c.scalar(v.Name, NewChar(v.Name, int(v.ByteSize), true))
	case *dwarf.UcharType:
		t = c.scalar(v.Name, NewChar(v.Name, int(v.ByteSize), false))
	case *dwarf.BoolType:
		t = c.scalar(v.Name, &Type{Name: v.Name, Kind: KindScalar, Size: int(v.ByteSize), Align: int(v.ByteSize), Bool: true})
	case *dwarf.FloatType:
		t = c.scalar(v.Name, NewFloat(v.Name, int(v.ByteSize)))
	case *dwarf.EnumType:
		t = c.enum(v)
	case *dwarf.StructType:
		return c.aggregate(v)
	case *dwarf.ArrayType:
		n := int(v.Count)
		if n < 0 {
			n = 0
		}
		t = ArrayOf(c.convert(v.Type), n)
	case *dwarf.PtrType:
		t = &Type{Kind: KindPointer, Size: c.reg.arch.PtrSize, Align: c.reg.arch.PtrSize}
		c.memo[dt] = t
		t.Elem = c.convert(v.Type)
		return t
	case *dwarf.VoidType:
		return Void
	case *dwarf.TypedefType:
		return c.convert(v.Type)
	case *dwarf.QualType:
		return c.convert(v.Type)
	case *dwarf.UnsupportedType:
		if v.Tag == dwarf.TagReferenceType || v.Tag == dwarf.TagRvalueReferenceType {
			t = ReferenceTo(Void, c.reg.arch)
		} else {
			t = &Type{Name: v.Name, Kind: KindVoid, Size: int(max(v.ByteSize, 0)), Align: 1}
		}
	default:
		// void, functions, complex numbers, nullptr_t: opaque.
		t = &Type{Name: dt.Common().Name, Kind: KindVoid, Size: int(max(dt.Common().ByteSize, 0)), Align: 1}
	}
	c.memo[dt] = t
	return t
}

// scalar reuses the registry's builtin descriptor when the name and size
// match, so DWARF and hand-written metadata agree on identity.
func (c *dwarfConverter) scalar(name string, t *Type) *Type {
	if canon, ok := builtinSynonyms[name]; ok {
		name = canon
	}
	c.reg.mu.RLock()
	b, ok := c.reg.types[name]
	c.reg.mu.RUnlock()
	if ok && b.Kind == KindScalar && b.Size == t.Size && b.Signed == t.Signed && b.Float == t.Float {
		return b
	}
	if t.Align == 0 {
		t.Align = 1
	}
	return t
}

func (c *dwarfConverter) enum(v *dwarf.EnumType) *Type {
	signed := false
	for _, ev := range v.Val {
		if ev.Val < 0 {
			signed = true
		}
	}
	size := int(v.ByteSize)
	if size <= 0 {
		size = 4
	}
	enums := make([]Enumerator, len(v.Val))
	for i, ev := range v.Val {
		enums[i] = Enumerator{Name: ev.Name, Value: ev.Val}
	}
	t, err := NewEnum(v.EnumName, NewInt("", size, signed), enums...)
	if err != nil {
		return &Type{Name: v.EnumName, Kind: KindVoid, Size: size, Align: 1}
	}
	return t
}

func (c *dwarfConverter) aggregate(v *dwarf.StructType) *Type {
	if kind, elem, ok := parseSmartPointer(normalizeExpr(v.StructName)); ok {
		t := NewSmartPointer(kind, Void, c.reg.arch)
		t.Name = v.StructName
		if v.ByteSize > 0 {
			t.Size = int(v.ByteSize)
		}
		c.memo[v] = t
		c.smart = append(c.smart, pendingSmart{t: t, elem: elem})
		return t
	}

	shell := &Type{Name: v.StructName, Kind: KindStruct}
	if v.Kind == "union" {
		shell.Kind = KindUnion
	}
	c.memo[v] = shell
	if v.Incomplete {
		shell.Kind = KindVoid
		return shell
	}

	var sb *StructBuilder
	if shell.Kind == KindUnion {
		sb = NewUnion(v.StructName)
	} else {
		sb = NewStruct(v.StructName)
	}
	for _, f := range v.Field {
		ft := c.convert(f.Type)
		if f.BitSize > 0 && ft.Size > 0 {
			offset, bitOffset := bitFieldPosition(f, ft.Size, c.reg.arch)
			sb.BitFieldAt(f.Name, ft, offset, bitOffset, int(f.BitSize))
			continue
		}
		offset := int(f.ByteOffset)
		if shell.Kind == KindUnion {
			offset = 0
		}
		sb.FieldAt(f.Name, ft, offset)
	}
	if v.ByteSize > 0 {
		sb.Size(int(v.ByteSize))
	}

	built, err := sb.Build()
	if err != nil {
		shell.Kind = KindVoid
		shell.Size = int(max(v.ByteSize, 0))
		shell.Align = 1
		return shell
	}
	*shell = *built
	return shell
}

// bitFieldPosition converts a DWARF bit-field location into a storage unit
// offset and an allocation-order bit position inside it.
func bitFieldPosition(f *dwarf.StructField, unitSize int, arch Arch) (int, int) {
	unitBits := unitSize * 8
	if f.DataBitOffset != 0 || f.BitOffset == 0 {
		// DWARF 4: bits counted from the start of the aggregate.
		pos := int(f.DataBitOffset)
		if f.DataBitOffset == 0 {
			pos = int(f.ByteOffset) * 8
		}
		offset := pos / unitBits * unitSize
		return offset, pos - offset*8
	}
	// DWARF 2/3: BitOffset counts from the most significant bit of a unit
	// of ByteSize bytes at ByteOffset.
	size := int(f.ByteSize)
	if size == 0 {
		size = unitSize
	}
	if arch.BigEndian {
		return int(f.ByteOffset), int(f.BitOffset)
	}
	return int(f.ByteOffset), size*8 - int(f.BitOffset) - int(f.BitSize)
}

// finish resolves smart pointer pointees by name.
func (c *dwarfConverter) finish() {
	for _, p := range c.smart {
		if et, err := c.reg.Resolve(p.elem); err == nil {
			p.t.Elem = et
		}
	}
}
