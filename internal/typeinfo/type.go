package typeinfo

import (
	"fmt"
	"strings"
)

// Kind discriminates the variants of Type.
type Kind uint8

const (
	// KindVoid is an opaque or incomplete type; values of it are never read.
	KindVoid Kind = iota
	// KindScalar is an integer, character, boolean or floating point type.
	KindScalar
	// KindEnum is an enumeration over an integer underlying type.
	KindEnum
	// KindStruct is a struct or class with ordered fields.
	KindStruct
	// KindUnion is a union; every field starts at offset 0.
	KindUnion
	// KindArray is a fixed-length, row-major array.
	KindArray
	// KindPointer is a raw pointer.
	KindPointer
	// KindReference is a C++ reference.
	KindReference
	// KindSmartPointer is an owning or observing pointer wrapper.
	KindSmartPointer
)

var kindNames = [...]string{
	KindVoid:         "void",
	KindScalar:       "scalar",
	KindEnum:         "enum",
	KindStruct:       "struct",
	KindUnion:        "union",
	KindArray:        "array",
	KindPointer:      "pointer",
	KindReference:    "reference",
	KindSmartPointer: "smart_pointer",
}

// String returns the kind name.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// SmartKind identifies the ownership model of a smart pointer.
type SmartKind uint8

const (
	// SmartUnique is an exclusively owning pointer (std::unique_ptr).
	SmartUnique SmartKind = iota + 1
	// SmartShared is a reference-counted owning pointer (std::shared_ptr).
	SmartShared
	// SmartWeak is a non-owning observer of a shared object (std::weak_ptr).
	SmartWeak
)

// String returns the smart pointer kind name.
func (k SmartKind) String() string {
	switch k {
	case SmartUnique:
		return "unique"
	case SmartShared:
		return "shared"
	case SmartWeak:
		return "weak"
	default:
		return "none"
	}
}

// Enumerator is a named enum value.
type Enumerator struct {
	Name  string
	Value int64
}

// Field is a member of a struct or union.
type Field struct {
	// Name is the member name; anonymous members have an empty name.
	Name string

	// Type is the member type.
	Type *Type

	// Offset is the byte offset from the start of the aggregate. For
	// bit-fields it is the offset of the storage unit.
	Offset int

	// BitOffset is the position of a bit-field inside its storage unit in
	// allocation order: counted from the least significant bit on
	// little-endian targets and from the most significant bit on
	// big-endian ones.
	BitOffset int

	// BitSize is the width of a bit-field; zero for ordinary members.
	BitSize int
}

// IsBitField reports whether the field is a bit-field.
func (f *Field) IsBitField() bool {
	return f.BitSize > 0
}

// Type is a node of the Type IR.
type Type struct {
	// Name is the declared name ("int", "Node", "Color"). Derived types
	// (pointers, arrays) have an empty name and are printed structurally.
	Name string

	// Kind selects which of the remaining fields are meaningful.
	Kind Kind

	// Size is the size in bytes.
	Size int

	// Align is the required alignment in bytes.
	Align int

	// Scalar attributes.
	Signed bool
	Char   bool
	Float  bool
	Bool   bool

	// Enum attributes. Underlying is a scalar.
	Underlying  *Type
	Enumerators []Enumerator
	Scoped      bool

	// Struct and union members in declaration order.
	Fields []Field

	// Elem is the element type of arrays and the pointee of pointers,
	// references and smart pointers.
	Elem *Type

	// Len is the array length.
	Len int

	// Smart pointer layout. PtrOffset locates the stored raw pointer.
	// CtrlOffset locates the control block pointer of shared and weak
	// pointers (-1 when absent); UseCountOffset is the offset of the
	// 32-bit strong count inside the control block.
	Smart          SmartKind
	PtrOffset      int
	CtrlOffset     int
	UseCountOffset int
}

// IsAggregate reports whether the type has fields.
func (t *Type) IsAggregate() bool {
	return t.Kind == KindStruct || t.Kind == KindUnion
}

// IsPointerLike reports whether values of the type refer to other memory.
func (t *Type) IsPointerLike() bool {
	return t.Kind == KindPointer || t.Kind == KindReference || t.Kind == KindSmartPointer
}

// IsCharScalar reports whether the type is a character scalar.
func (t *Type) IsCharScalar() bool {
	return t != nil && t.Kind == KindScalar && t.Char
}

// IsCharPointer reports whether the type is a pointer to a character scalar.
func (t *Type) IsCharPointer() bool {
	return t.Kind == KindPointer && t.Elem.IsCharScalar() && t.Elem.Size == 1
}

// IsCharArray reports whether the type is an array of single-byte characters.
func (t *Type) IsCharArray() bool {
	return t.Kind == KindArray && t.Elem.IsCharScalar() && t.Elem.Size == 1
}

// Field returns the member with the given name.
func (t *Type) Field(name string) (*Field, bool) {
	for i := range t.Fields {
		if t.Fields[i].Name == name {
			return &t.Fields[i], true
		}
	}
	return nil, false
}

// EnumName returns the enumerator name for v.
func (t *Type) EnumName(v int64) (string, bool) {
	for _, e := range t.Enumerators {
		if e.Value == v {
			return e.Name, true
		}
	}
	return "", false
}

// String renders the type the way a C/C++ debugger prints it.
func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	base, suffix := t.declarator()
	if suffix == "" {
		return base
	}
	return base + " " + suffix
}

// declarator splits the printed type into its base name and the
// pointer/array declarator that follows it.
func (t *Type) declarator() (string, string) {
	switch t.Kind {
	case KindPointer, KindReference:
		mark := "*"
		if t.Kind == KindReference {
			mark = "&"
		}
		if t.Elem == nil {
			return "void", mark
		}
		base, suffix := t.Elem.declarator()
		if strings.HasPrefix(suffix, "[") {
			return base, "(" + mark + ")" + suffix
		}
		return base, suffix + mark
	case KindArray:
		base, suffix := t.Elem.declarator()
		dim := fmt.Sprintf("[%d]", t.Len)
		if strings.HasPrefix(suffix, "[") {
			return base, dim + suffix
		}
		return base, suffix + dim
	case KindSmartPointer:
		if t.Name != "" {
			return t.Name, ""
		}
		return fmt.Sprintf("std::%s_ptr<%s>", t.Smart, t.Elem), ""
	case KindVoid:
		if t.Name == "" {
			return "void", ""
		}
	}
	return t.Name, ""
}
