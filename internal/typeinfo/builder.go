package typeinfo

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Arch describes the target's data model.
type Arch struct {
	// PtrSize is the pointer width in bytes (4 or 8).
	PtrSize int

	// BigEndian selects the byte order.
	BigEndian bool
}

// DefaultArch is LP64 little-endian (x86-64, arm64).
var DefaultArch = Arch{PtrSize: 8}

// ByteOrder returns the arch's byte order.
func (a Arch) ByteOrder() binary.ByteOrder {
	if a.BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// Validate checks the arch is usable.
func (a Arch) Validate() error {
	if a.PtrSize != 4 && a.PtrSize != 8 {
		return fmt.Errorf("%w: pointer size %d", ErrInvalidType, a.PtrSize)
	}
	return nil
}

// Void is the opaque type.
var Void = &Type{Name: "void", Kind: KindVoid, Align: 1}

// NewInt creates an integer scalar.
func NewInt(name string, size int, signed bool) *Type {
	return &Type{Name: name, Kind: KindScalar, Size: size, Align: size, Signed: signed}
}

// NewChar creates a character scalar of the given size.
func NewChar(name string, size int, signed bool) *Type {
	return &Type{Name: name, Kind: KindScalar, Size: size, Align: size, Signed: signed, Char: true}
}

// NewFloat creates a floating point scalar (4 or 8 bytes).
func NewFloat(name string, size int) *Type {
	return &Type{Name: name, Kind: KindScalar, Size: size, Align: size, Signed: true, Float: true}
}

// NewBool creates a one byte boolean.
func NewBool(name string) *Type {
	return &Type{Name: name, Kind: KindScalar, Size: 1, Align: 1, Bool: true}
}

// Builtins returns the C/C++ fundamental types for arch keyed by name.
// Each call returns fresh descriptors.
func Builtins(arch Arch) map[string]*Type {
	long := arch.PtrSize
	types := []*Type{
		NewChar("char", 1, true),
		NewChar("signed char", 1, true),
		NewChar("unsigned char", 1, false),
		NewChar("wchar_t", 4, true),
		NewChar("char16_t", 2, false),
		NewChar("char32_t", 4, false),
		NewBool("bool"),
		NewBool("_Bool"),
		NewInt("short", 2, true),
		NewInt("unsigned short", 2, false),
		NewInt("int", 4, true),
		NewInt("unsigned int", 4, false),
		NewInt("long", long, true),
		NewInt("unsigned long", long, false),
		NewInt("long long", 8, true),
		NewInt("unsigned long long", 8, false),
		NewInt("int8_t", 1, true),
		NewInt("uint8_t", 1, false),
		NewInt("int16_t", 2, true),
		NewInt("uint16_t", 2, false),
		NewInt("int32_t", 4, true),
		NewInt("uint32_t", 4, false),
		NewInt("int64_t", 8, true),
		NewInt("uint64_t", 8, false),
		NewInt("size_t", arch.PtrSize, false),
		NewInt("ssize_t", arch.PtrSize, true),
		NewInt("intptr_t", arch.PtrSize, true),
		NewInt("uintptr_t", arch.PtrSize, false),
		NewFloat("float", 4),
		NewFloat("double", 8),
		Void,
	}

	result := make(map[string]*Type, len(types))
	for _, t := range types {
		result[t.Name] = t
	}
	return result
}

// builtinSynonyms maps alternative spellings to canonical builtin names.
var builtinSynonyms = map[string]string{
	"signed":                 "int",
	"signed int":             "int",
	"unsigned":               "unsigned int",
	"short int":              "short",
	"signed short":           "short",
	"short unsigned int":     "unsigned short",
	"unsigned short int":     "unsigned short",
	"long int":               "long",
	"signed long":            "long",
	"long unsigned int":      "unsigned long",
	"unsigned long int":      "unsigned long",
	"long long int":          "long long",
	"long long unsigned int": "unsigned long long",
	"unsigned long long int": "unsigned long long",
}

// NewEnum creates an enumeration over an integer underlying type.
func NewEnum(name string, underlying *Type, enumerators ...Enumerator) (*Type, error) {
	if underlying == nil || underlying.Kind != KindScalar || underlying.Float {
		return nil, fmt.Errorf("%w: enum %s needs an integer underlying type", ErrInvalidType, name)
	}
	return &Type{
		Name:        name,
		Kind:        KindEnum,
		Size:        underlying.Size,
		Align:       underlying.Align,
		Signed:      underlying.Signed,
		Underlying:  underlying,
		Enumerators: append([]Enumerator(nil), enumerators...),
	}, nil
}

// ArrayOf creates an array of n elements of elem. The element type must be
// complete.
func ArrayOf(elem *Type, n int) *Type {
	if n < 0 {
		n = 0
	}
	return &Type{
		Kind:  KindArray,
		Size:  elem.Size * n,
		Align: max(elem.Align, 1),
		Elem:  elem,
		Len:   n,
	}
}

// PointerTo creates a raw pointer to elem.
func PointerTo(elem *Type, arch Arch) *Type {
	return &Type{Kind: KindPointer, Size: arch.PtrSize, Align: arch.PtrSize, Elem: elem}
}

// ReferenceTo creates a C++ reference to elem. References are stored as
// pointers.
func ReferenceTo(elem *Type, arch Arch) *Type {
	return &Type{Kind: KindReference, Size: arch.PtrSize, Align: arch.PtrSize, Elem: elem}
}

// NewSmartPointer creates a smart pointer with the libstdc++ layout: the
// raw pointer first, followed for shared and weak pointers by a pointer to
// a control block whose strong count sits after its vtable pointer.
func NewSmartPointer(kind SmartKind, elem *Type, arch Arch) *Type {
	t := &Type{
		Name:       fmt.Sprintf("std::%s_ptr<%s>", kind, elem),
		Kind:       KindSmartPointer,
		Size:       arch.PtrSize,
		Align:      arch.PtrSize,
		Elem:       elem,
		Smart:      kind,
		CtrlOffset: -1,
	}
	if kind == SmartShared || kind == SmartWeak {
		t.Size = 2 * arch.PtrSize
		t.CtrlOffset = arch.PtrSize
		t.UseCountOffset = arch.PtrSize
	}
	return t
}

// StructBuilder lays out a struct or union following the C ABI rules:
// natural alignment, padding between members, bit-fields packed into
// storage units of their declared type.
type StructBuilder struct {
	name   string
	kind   Kind
	fields []Field
	bitPos int // next free bit
	align  int
	size   int // explicit size, 0 to compute
	err    error
}

// NewStruct starts a struct layout.
func NewStruct(name string) *StructBuilder {
	return &StructBuilder{name: name, kind: KindStruct, align: 1}
}

// NewUnion starts a union layout.
func NewUnion(name string) *StructBuilder {
	return &StructBuilder{name: name, kind: KindUnion, align: 1}
}

// Field appends a member at the next naturally aligned offset.
func (b *StructBuilder) Field(name string, t *Type) *StructBuilder {
	if !b.check(name, t) {
		return b
	}
	align := max(t.Align, 1)
	offset := 0
	if b.kind == KindStruct {
		offset = alignUp(bitsToBytes(b.bitPos), align)
		b.bitPos = (offset + t.Size) * 8
	} else {
		b.bitPos = max(b.bitPos, t.Size*8)
	}
	b.align = max(b.align, align)
	b.fields = append(b.fields, Field{Name: name, Type: t, Offset: offset})
	return b
}

// FieldAt appends a member at an explicit byte offset, as reported by
// debug information.
func (b *StructBuilder) FieldAt(name string, t *Type, offset int) *StructBuilder {
	if !b.check(name, t) {
		return b
	}
	if offset < 0 || (b.kind == KindUnion && offset != 0) {
		b.err = fmt.Errorf("%w: field %s.%s at offset %d", ErrInvalidType, b.name, name, offset)
		return b
	}
	b.align = max(b.align, max(t.Align, 1))
	b.bitPos = max(b.bitPos, (offset+t.Size)*8)
	b.fields = append(b.fields, Field{Name: name, Type: t, Offset: offset})
	return b
}

// BitField appends a bit-field of the given width. A zero width closes the
// current storage unit, as in C.
func (b *StructBuilder) BitField(name string, t *Type, width int) *StructBuilder {
	if !b.check(name, t) {
		return b
	}
	if t.Kind != KindScalar && t.Kind != KindEnum || t.Float {
		b.err = fmt.Errorf("%w: bit-field %s.%s must be an integer", ErrInvalidType, b.name, name)
		return b
	}
	unitBits := t.Size * 8
	if width < 0 || width > unitBits {
		b.err = fmt.Errorf("%w: bit-field %s.%s width %d", ErrInvalidType, b.name, name, width)
		return b
	}

	start := b.bitPos
	if b.kind == KindUnion {
		start = 0
	}
	if width == 0 {
		b.bitPos = alignUp(start, unitBits)
		return b
	}
	if start/unitBits != (start+width-1)/unitBits {
		start = alignUp(start, unitBits)
	}

	offset := start / unitBits * t.Size
	b.fields = append(b.fields, Field{
		Name:      name,
		Type:      t,
		Offset:    offset,
		BitOffset: start - offset*8,
		BitSize:   width,
	})
	b.align = max(b.align, max(t.Align, 1))
	if b.kind == KindUnion {
		b.bitPos = max(b.bitPos, width)
	} else {
		b.bitPos = start + width
	}
	return b
}

// BitFieldAt appends a bit-field at an explicit storage unit offset and bit
// position, as reported by debug information.
func (b *StructBuilder) BitFieldAt(name string, t *Type, offset, bitOffset, width int) *StructBuilder {
	if !b.check(name, t) {
		return b
	}
	if width <= 0 || offset < 0 || bitOffset < 0 || bitOffset+width > t.Size*8 {
		b.err = fmt.Errorf("%w: bit-field %s.%s at %d:%d width %d", ErrInvalidType, b.name, name, offset, bitOffset, width)
		return b
	}
	b.align = max(b.align, max(t.Align, 1))
	b.bitPos = max(b.bitPos, offset*8+bitOffset+width)
	b.fields = append(b.fields, Field{Name: name, Type: t, Offset: offset, BitOffset: bitOffset, BitSize: width})
	return b
}

// Size forces the final size, as reported by debug information.
func (b *StructBuilder) Size(n int) *StructBuilder {
	b.size = n
	return b
}

// Align forces the final alignment.
func (b *StructBuilder) Align(n int) *StructBuilder {
	if n > 0 {
		b.align = n
	}
	return b
}

func (b *StructBuilder) check(name string, t *Type) bool {
	if b.err != nil {
		return false
	}
	if t == nil {
		b.err = fmt.Errorf("%w: field %s.%s has no type", ErrInvalidType, b.name, name)
		return false
	}
	if name != "" {
		for _, f := range b.fields {
			if f.Name == name {
				b.err = fmt.Errorf("%w: duplicate field %s.%s", ErrInvalidType, b.name, name)
				return false
			}
		}
	}
	return true
}

// Build finishes the layout.
func (b *StructBuilder) Build() (*Type, error) {
	if b.err != nil {
		return nil, b.err
	}
	size := b.size
	if size == 0 {
		size = alignUp(bitsToBytes(b.bitPos), b.align)
	}
	for _, f := range b.fields {
		if f.Offset+f.Type.Size > size {
			return nil, fmt.Errorf("%w: field %s.%s exceeds size %d", ErrInvalidType, b.name, f.Name, size)
		}
	}
	return &Type{
		Name:   b.name,
		Kind:   b.kind,
		Size:   size,
		Align:  b.align,
		Fields: b.fields,
	}, nil
}

// MustBuild is Build for statically known layouts; it panics on error.
func (b *StructBuilder) MustBuild() *Type {
	t, err := b.Build()
	if err != nil {
		panic(err)
	}
	return t
}

func alignUp(v, align int) int {
	if align <= 1 {
		return v
	}
	return (v + align - 1) / align * align
}

func bitsToBytes(bits int) int {
	return (bits + 7) / 8
}

// stripTag removes an elaborated type specifier ("struct X" -> "X").
func stripTag(name string) string {
	for _, prefix := range []string{"enum class ", "enum struct ", "struct ", "class ", "union ", "enum "} {
		if strings.HasPrefix(name, prefix) {
			return strings.TrimSpace(name[len(prefix):])
		}
	}
	return name
}
