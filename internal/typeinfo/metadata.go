package typeinfo

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/dshills/varlens/internal/memory"
	"gopkg.in/yaml.v3"
)

// Metadata is a declarative description of a target's types and variables.
// It is the hand-written (or tool-generated) alternative to DWARF.
type Metadata struct {
	Arch    ArchSpec     `toml:"arch" yaml:"arch" json:"arch"`
	Types   []TypeSpec   `toml:"types" yaml:"types" json:"types"`
	Symbols []SymbolSpec `toml:"symbols" yaml:"symbols" json:"symbols"`
}

// ArchSpec describes the target data model.
type ArchSpec struct {
	PtrSize   int  `toml:"ptr_size" yaml:"ptr_size" json:"ptr_size"`
	BigEndian bool `toml:"big_endian" yaml:"big_endian" json:"big_endian"`
}

// TypeSpec describes one named type.
type TypeSpec struct {
	Name string `toml:"name" yaml:"name" json:"name"`

	// Kind is struct, class, union, enum or alias (typedef, using).
	Kind string `toml:"kind" yaml:"kind" json:"kind"`

	// Aggregates.
	Fields []FieldSpec `toml:"fields" yaml:"fields" json:"fields"`
	Size   int         `toml:"size" yaml:"size" json:"size"`
	Align  int         `toml:"align" yaml:"align" json:"align"`

	// Enums.
	Underlying  string           `toml:"underlying" yaml:"underlying" json:"underlying"`
	Scoped      bool             `toml:"scoped" yaml:"scoped" json:"scoped"`
	Enumerators []EnumeratorSpec `toml:"enumerators" yaml:"enumerators" json:"enumerators"`

	// Aliases.
	Target string `toml:"target" yaml:"target" json:"target"`
}

// FieldSpec describes a struct or union member.
type FieldSpec struct {
	Name   string `toml:"name" yaml:"name" json:"name"`
	Type   string `toml:"type" yaml:"type" json:"type"`
	Offset *int   `toml:"offset" yaml:"offset" json:"offset"`
	Bits   int    `toml:"bits" yaml:"bits" json:"bits"`
}

// EnumeratorSpec describes an enumerator.
type EnumeratorSpec struct {
	Name  string `toml:"name" yaml:"name" json:"name"`
	Value int64  `toml:"value" yaml:"value" json:"value"`
}

// SymbolSpec describes a variable.
type SymbolSpec struct {
	Name        string `toml:"name" yaml:"name" json:"name"`
	Type        string `toml:"type" yaml:"type" json:"type"`
	Storage     string `toml:"storage" yaml:"storage" json:"storage"`
	Function    string `toml:"function" yaml:"function" json:"function"`
	Address     uint64 `toml:"address" yaml:"address" json:"address"`
	FrameOffset int64  `toml:"frame_offset" yaml:"frame_offset" json:"frame_offset"`
}

// Format names a metadata encoding.
type Format string

// Supported metadata encodings.
const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatForPath picks the encoding from a file extension.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown metadata format for %s", path)
	}
}

// DecodeMetadata parses metadata in the given encoding.
func DecodeMetadata(data []byte, format Format) (*Metadata, error) {
	var md Metadata
	var err error
	switch format {
	case FormatTOML:
		_, err = toml.NewDecoder(bytes.NewReader(data)).Decode(&md)
	case FormatYAML:
		err = yaml.Unmarshal(data, &md)
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&md)
	default:
		err = fmt.Errorf("unsupported format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return &md, nil
}

// LoadMetadataFile reads metadata from path and builds a registry.
func LoadMetadataFile(path string) (*Registry, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	md, err := DecodeMetadata(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return md.Build()
}

// Build creates an unsealed registry from the metadata.
func (md *Metadata) Build() (*Registry, error) {
	arch := Arch{PtrSize: md.Arch.PtrSize, BigEndian: md.Arch.BigEndian}
	if arch.PtrSize == 0 {
		arch.PtrSize = DefaultArch.PtrSize
	}
	if err := arch.Validate(); err != nil {
		return nil, err
	}

	b := &metadataBuilder{
		reg:      NewRegistry(arch),
		specs:    make(map[*Type]*TypeSpec),
		complete: make(map[*Type]bool),
		building: make(map[*Type]bool),
	}
	if err := b.declare(md.Types); err != nil {
		return nil, err
	}
	for t := range b.specs {
		if err := b.completeType(t); err != nil {
			return nil, err
		}
	}
	for i := range md.Symbols {
		if err := b.addSymbol(&md.Symbols[i]); err != nil {
			return nil, err
		}
	}
	return b.reg, nil
}

type metadataBuilder struct {
	reg      *Registry
	specs    map[*Type]*TypeSpec // aggregate shells awaiting layout
	complete map[*Type]bool
	building map[*Type]bool
}

// declare registers every named type so that aggregates can refer to each
// other (and to themselves) through pointers before any layout happens.
func (b *metadataBuilder) declare(specs []TypeSpec) error {
	for i := range specs {
		spec := &specs[i]
		if spec.Name == "" {
			return fmt.Errorf("%w: type without a name", ErrInvalidType)
		}
		switch strings.ToLower(spec.Kind) {
		case "struct", "class", "union":
			kind := KindStruct
			if strings.EqualFold(spec.Kind, "union") {
				kind = KindUnion
			}
			shell := &Type{Name: spec.Name, Kind: kind}
			if err := b.reg.Define(shell); err != nil {
				return fmt.Errorf("type %s: %w", spec.Name, err)
			}
			b.specs[shell] = spec
		case "alias", "typedef", "using":
			if err := b.reg.Alias(spec.Name, spec.Target); err != nil {
				return fmt.Errorf("type %s: %w", spec.Name, err)
			}
		case "enum":
			if err := b.defineEnum(spec); err != nil {
				return fmt.Errorf("type %s: %w", spec.Name, err)
			}
		default:
			return fmt.Errorf("%w: type %s has kind %q", ErrInvalidType, spec.Name, spec.Kind)
		}
	}
	return nil
}

func (b *metadataBuilder) defineEnum(spec *TypeSpec) error {
	underlying := spec.Underlying
	if underlying == "" {
		underlying = "unsigned int"
		for _, e := range spec.Enumerators {
			if e.Value < 0 {
				underlying = "int"
				break
			}
		}
	}
	ut, err := b.reg.Resolve(underlying)
	if err != nil {
		return err
	}
	enums := make([]Enumerator, len(spec.Enumerators))
	for i, e := range spec.Enumerators {
		enums[i] = Enumerator{Name: e.Name, Value: e.Value}
	}
	t, err := NewEnum(spec.Name, ut, enums...)
	if err != nil {
		return err
	}
	t.Scoped = spec.Scoped
	return b.reg.Define(t)
}

// completeType lays out an aggregate shell, first completing every
// aggregate it contains by value.
func (b *metadataBuilder) completeType(shell *Type) error {
	if b.complete[shell] {
		return nil
	}
	spec := b.specs[shell]
	if b.building[shell] {
		return fmt.Errorf("%w: %s contains itself by value", ErrInvalidType, spec.Name)
	}
	b.building[shell] = true
	defer delete(b.building, shell)

	var sb *StructBuilder
	if shell.Kind == KindUnion {
		sb = NewUnion(spec.Name)
	} else {
		sb = NewStruct(spec.Name)
	}

	for _, f := range spec.Fields {
		ft, err := b.fieldType(f.Type)
		if err != nil {
			return fmt.Errorf("type %s field %s: %w", spec.Name, f.Name, err)
		}
		switch {
		case f.Bits > 0:
			sb.BitField(f.Name, ft, f.Bits)
		case f.Offset != nil:
			sb.FieldAt(f.Name, ft, *f.Offset)
		default:
			sb.Field(f.Name, ft)
		}
	}
	if spec.Size > 0 {
		sb.Size(spec.Size)
	}
	sb.Align(spec.Align)

	built, err := sb.Build()
	if err != nil {
		return err
	}
	*shell = *built
	b.complete[shell] = true
	return nil
}

// fieldType resolves a member type, completing by-value aggregates first
// so that their sizes are known.
func (b *metadataBuilder) fieldType(expr string) (*Type, error) {
	base, byValue, err := b.byValueBase(expr)
	if err != nil {
		return nil, err
	}
	if byValue {
		bt, err := b.reg.Resolve(base)
		if err != nil {
			return nil, err
		}
		if _, pending := b.specs[bt]; pending {
			if err := b.completeType(bt); err != nil {
				return nil, err
			}
		}
	}
	return b.reg.Resolve(expr)
}

// byValueBase expands aliases in expr until it reaches a named type. The
// second result is false when a pointer or reference intervenes, in which
// case the named type's layout is not needed.
func (b *metadataBuilder) byValueBase(expr string) (string, bool, error) {
	for i := 0; i < maxAliasDepth; i++ {
		base, ops, _, err := splitDeclarator(normalizeExpr(expr))
		if err != nil {
			return "", false, err
		}
		if len(ops) > 0 {
			return "", false, nil
		}
		name := stripTag(base)
		b.reg.mu.RLock()
		target, isAlias := b.reg.aliases[name]
		b.reg.mu.RUnlock()
		if !isAlias {
			return name, true, nil
		}
		expr = target
	}
	return "", false, fmt.Errorf("%w: %s", ErrAliasCycle, expr)
}

func (b *metadataBuilder) addSymbol(spec *SymbolSpec) error {
	t, err := b.reg.Resolve(spec.Type)
	if err != nil {
		return fmt.Errorf("symbol %s: %w", spec.Name, err)
	}
	storage, err := ParseStorage(spec.Storage)
	if err != nil {
		return fmt.Errorf("symbol %s: %w", spec.Name, err)
	}
	if storage == StorageUnknown {
		storage = StorageGlobal
		if spec.Function != "" {
			storage = StorageStackLocal
		}
	}
	return b.reg.AddSymbol(&Symbol{
		Name:        spec.Name,
		Function:    spec.Function,
		Type:        t,
		Storage:     storage,
		Address:     memory.Address(spec.Address),
		FrameOffset: spec.FrameOffset,
	})
}
