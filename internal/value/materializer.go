package value

import (
	"bytes"
	"fmt"

	"github.com/dshills/varlens/internal/memory"
	"github.com/dshills/varlens/internal/scope"
	"github.com/dshills/varlens/internal/typeinfo"
)

// stringChunk is the read size used while scanning for a NUL terminator.
const stringChunk = 64

// Materializer turns typed memory into Value trees. It holds no mutable
// state and may be shared by concurrent requests.
type Materializer struct {
	reader     memory.Reader
	arch       typeinfo.Arch
	classifier *scope.Classifier
	limits     Limits
}

// Option configures a Materializer.
type Option func(*Materializer)

// WithLimits sets the traversal limits. Non-positive fields keep their
// defaults.
func WithLimits(l Limits) Option {
	return func(m *Materializer) {
		m.limits = l.withDefaults()
	}
}

// WithClassifier sets the classifier used for pointees.
func WithClassifier(c *scope.Classifier) Option {
	return func(m *Materializer) {
		m.classifier = c
	}
}

// NewMaterializer creates a materializer reading through r, which is
// wrapped in memory.Guard.
func NewMaterializer(r memory.Reader, arch typeinfo.Arch, opts ...Option) *Materializer {
	guarded := memory.Guard(r, memory.DefaultMaxRead)
	m := &Materializer{
		reader: guarded,
		arch:   arch,
		limits: DefaultLimits(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.classifier == nil {
		m.classifier = scope.NewClassifier(scope.WithRegions(guarded))
	}
	return m
}

// Limits returns the effective limits.
func (m *Materializer) Limits() Limits {
	return m.limits
}

// MaterializeRoot materializes one top-level variable with a fresh visited
// set, seeded with the variable itself, and depth 0.
func (m *Materializer) MaterializeRoot(name string, addr memory.Address, t *typeinfo.Type, sc scope.Scope) *Value {
	visited := NewVisited()
	visited.Add(addr, t)
	v := m.materialize(nil, addr, t, sc, visited, 0)
	v.Name = name
	return v
}

// Materialize materializes the value of type t at addr. Its scope comes
// from the classifier.
func (m *Materializer) Materialize(addr memory.Address, t *typeinfo.Type, visited *Visited, depth int) *Value {
	if visited == nil {
		visited = NewVisited()
	}
	return m.materialize(nil, addr, t, m.classifier.Classify(addr, nil), visited, depth)
}

// MaterializeBytes decodes a value that has no address, such as a
// register-allocated local. Only scalars, enums and pointer-like values
// can be decoded from bytes.
func (m *Materializer) MaterializeBytes(name string, data []byte, t *typeinfo.Type, sc scope.Scope) *Value {
	w := &window{data: data}
	v := &Value{Name: name, Type: t, Kind: t.Kind, Scope: sc}
	switch t.Kind {
	case typeinfo.KindScalar, typeinfo.KindEnum, typeinfo.KindPointer, typeinfo.KindReference, typeinfo.KindSmartPointer:
		if len(data) < t.Size {
			return unreadable(v, memory.Unmapped)
		}
		visited := NewVisited()
		full := m.materialize(w, 0, t, sc, visited, 0)
		full.Name = name
		full.HasAddress = false
		full.Address = 0
		return full
	}
	return unreadable(v, memory.Unmapped)
}

// window serves reads from bytes already fetched for an enclosing
// aggregate.
type window struct {
	base memory.Address
	data []byte
}

func (w *window) slice(addr memory.Address, size int) ([]byte, bool) {
	if w == nil || addr < w.base {
		return nil, false
	}
	off := uint64(addr - w.base)
	if off+uint64(size) > uint64(len(w.data)) {
		return nil, false
	}
	return w.data[off : off+uint64(size)], true
}

func (m *Materializer) read(w *window, addr memory.Address, size int) ([]byte, error) {
	if b, ok := w.slice(addr, size); ok {
		return b, nil
	}
	return m.reader.ReadMemory(addr, size)
}

func unreadable(v *Value, reason memory.FaultReason) *Value {
	v.Marker = Unreadable
	v.Reason = reason
	return v
}

func (m *Materializer) materialize(w *window, addr memory.Address, t *typeinfo.Type, sc scope.Scope, visited *Visited, depth int) *Value {
	v := &Value{Type: t, Kind: t.Kind, Address: addr, HasAddress: true, Scope: sc}

	switch t.Kind {
	case typeinfo.KindScalar, typeinfo.KindEnum:
		b, err := m.read(w, addr, t.Size)
		if err != nil {
			return unreadable(v, memory.ReasonOf(err))
		}
		m.decodeScalar(v, t, b)
	case typeinfo.KindStruct, typeinfo.KindUnion:
		m.aggregate(w, v, visited, depth)
	case typeinfo.KindArray:
		m.array(w, v, visited, depth)
	case typeinfo.KindPointer, typeinfo.KindReference:
		m.pointer(w, v, visited, depth)
	case typeinfo.KindSmartPointer:
		m.smartPointer(w, v, visited, depth)
	case typeinfo.KindVoid:
		// Opaque: nothing to read.
	default:
		panic(fmt.Sprintf("value: unhandled type kind %s", t.Kind))
	}
	return v
}

func (m *Materializer) aggregate(w *window, v *Value, visited *Visited, depth int) {
	t := v.Type
	inner, err := m.span(w, v.Address, t.Size)

	v.Children = make([]*Value, 0, len(t.Fields))
	for i := range t.Fields {
		f := &t.Fields[i]
		addr := v.Address.Add(int64(f.Offset))
		var child *Value
		if f.IsBitField() {
			child = m.bitField(inner, addr, f, v.Scope)
		} else {
			child = m.materialize(inner, addr, f.Type, v.Scope, visited, depth)
		}
		child.Name = f.Name
		v.Children = append(v.Children, child)
	}
	collapse(v, err)
}

// span fetches [addr, addr+size) in one read so members decode from a
// shared window. It returns a nil window when the span is larger than one
// guarded read or the read fails; members then read their own bytes and a
// fault only affects the members it covers.
func (m *Materializer) span(w *window, addr memory.Address, size int) (*window, error) {
	if b, ok := w.slice(addr, size); ok {
		return &window{base: addr, data: b}, nil
	}
	if size > memory.DefaultMaxRead {
		return nil, nil
	}
	data, err := m.reader.ReadMemory(addr, size)
	if err != nil {
		return nil, err
	}
	return &window{base: addr, data: data}, nil
}

// collapse turns an aggregate whose block read failed into a single
// Unreadable leaf when none of its members could be read either.
func collapse(v *Value, err error) {
	if err == nil {
		return
	}
	for _, c := range v.Children {
		if c.Marker != Unreadable {
			return
		}
	}
	v.Children = nil
	v.HasStr, v.Str, v.StrTruncated = false, "", false
	unreadable(v, memory.ReasonOf(err))
}

func (m *Materializer) bitField(w *window, addr memory.Address, f *typeinfo.Field, sc scope.Scope) *Value {
	v := &Value{Type: f.Type, Kind: f.Type.Kind, Address: addr, HasAddress: true, Scope: sc}
	b, err := m.read(w, addr, f.Type.Size)
	if err != nil {
		return unreadable(v, memory.ReasonOf(err))
	}

	unitBits := f.Type.Size * 8
	shift := f.BitOffset
	if m.arch.BigEndian {
		shift = unitBits - f.BitOffset - f.BitSize
	}
	bits := decodeUint(b, m.arch.BigEndian) >> uint(shift)
	if f.BitSize < 64 {
		bits &= 1<<uint(f.BitSize) - 1
	}
	m.setInteger(v, f.Type, bits, f.BitSize)
	return v
}

func (m *Materializer) array(w *window, v *Value, visited *Visited, depth int) {
	t := v.Type
	elem := t.Elem
	count := t.Len
	if count > m.limits.MaxArrayElements {
		count = m.limits.MaxArrayElements
		v.Marker = ArrayTruncated
	}

	inner, err := m.span(w, v.Address, elem.Size*count)

	if t.IsCharArray() {
		m.charArray(inner, v)
	}

	v.Children = make([]*Value, 0, count)
	for i := 0; i < count; i++ {
		child := m.materialize(inner, v.Address.Add(int64(i*elem.Size)), elem, v.Scope, visited, depth)
		child.Name = fmt.Sprintf("[%d]", i)
		v.Children = append(v.Children, child)
	}
	collapse(v, err)
}

// charArray sets the string form of a char array: the bytes up to the
// first NUL or the declared bound, independent of the element cap. The
// scan stops at MaxStringScan; ending there or at a fault without a NUL
// sets StrTruncated.
func (m *Materializer) charArray(w *window, v *Value) {
	bound := min(v.Type.Len, m.limits.MaxStringScan)
	buf, terminated, err := m.scan(w, v.Address, bound)
	if !terminated && err != nil && len(buf) == 0 {
		return
	}
	v.Str, v.HasStr = string(buf), true
	v.StrTruncated = !terminated && (err != nil || v.Type.Len > bound)
}

// pointee reads a stored pointer value.
func (m *Materializer) pointee(w *window, addr memory.Address) (memory.Address, error) {
	b, err := m.read(w, addr, m.arch.PtrSize)
	if err != nil {
		return memory.Null, err
	}
	return memory.Address(decodeUint(b, m.arch.BigEndian)), nil
}

func (m *Materializer) pointer(w *window, v *Value, visited *Visited, depth int) {
	target, err := m.pointee(w, v.Address)
	if err != nil {
		unreadable(v, memory.ReasonOf(err))
		return
	}
	v.Pointer = target
	if target.IsNull() {
		v.Marker = NullPointer
		return
	}
	if v.Type.IsCharPointer() {
		m.scanString(v, target)
		return
	}
	v.Target = m.follow(target, v.Type.Elem, visited, depth)
}

// follow dereferences a non-null pointee, guarding against cycles and
// runaway depth.
func (m *Materializer) follow(addr memory.Address, elem *typeinfo.Type, visited *Visited, depth int) *Value {
	if elem == nil || elem.Kind == typeinfo.KindVoid {
		return nil
	}
	sc := m.classifier.Classify(addr, nil)
	marker := func(mk Marker) *Value {
		return &Value{Type: elem, Kind: elem.Kind, Address: addr, HasAddress: true, Scope: sc, Marker: mk}
	}
	if visited.Contains(addr, elem) {
		return marker(CyclicReference)
	}
	if depth+1 > m.limits.MaxDepth {
		return marker(DepthExceeded)
	}
	visited.Add(addr, elem)
	return m.materialize(nil, addr, elem, sc, visited, depth+1)
}

// scanString reads a NUL-terminated string of at most MaxStringScan bytes.
func (m *Materializer) scanString(v *Value, addr memory.Address) {
	buf, terminated, err := m.scan(nil, addr, m.limits.MaxStringScan)
	switch {
	case terminated:
		v.Str, v.HasStr = string(buf), true
	case err != nil && len(buf) == 0:
		v.Target = unreadable(&Value{
			Type: v.Type.Elem, Kind: v.Type.Elem.Kind, Address: addr, HasAddress: true,
			Scope: m.classifier.Classify(addr, nil),
		}, memory.ReasonOf(err))
	default:
		m.truncatedString(v, buf)
	}
}

// scan reads at most limit bytes at addr looking for a NUL. It returns the
// bytes before the NUL, whether one was found, and the fault that ended
// the scan early. Reads are chunked; when a chunk faults the scan falls
// back to single bytes so the readable prefix is kept.
func (m *Materializer) scan(w *window, addr memory.Address, limit int) ([]byte, bool, error) {
	if b, ok := w.slice(addr, limit); ok {
		if i := bytes.IndexByte(b, 0); i >= 0 {
			return b[:i], true, nil
		}
		return b, false, nil
	}

	buf := make([]byte, 0, min(limit, stringChunk))
	for len(buf) < limit {
		n := min(stringChunk, limit-len(buf))
		at := addr.Add(int64(len(buf)))
		chunk, err := m.reader.ReadMemory(at, n)
		if err != nil {
			chunk = m.readPrefix(at, n)
		}
		if i := bytes.IndexByte(chunk, 0); i >= 0 {
			return append(buf, chunk[:i]...), true, nil
		}
		buf = append(buf, chunk...)
		if len(chunk) < n {
			return buf, false, err
		}
	}
	return buf, false, nil
}

// truncatedString records a string that ended without a terminator,
// either at the scan cap or at a fault.
func (m *Materializer) truncatedString(v *Value, buf []byte) {
	v.Str, v.HasStr, v.StrTruncated = string(buf), true, true
	v.Marker = StringTruncated
}

// readPrefix reads up to n bytes one at a time, stopping at the first
// fault or NUL.
func (m *Materializer) readPrefix(addr memory.Address, n int) []byte {
	var out []byte
	for i := 0; i < n; i++ {
		b, err := m.reader.ReadMemory(addr.Add(int64(i)), 1)
		if err != nil {
			break
		}
		out = append(out, b[0])
		if b[0] == 0 {
			break
		}
	}
	return out
}

func (m *Materializer) smartPointer(w *window, v *Value, visited *Visited, depth int) {
	t := v.Type
	inner, _ := m.span(w, v.Address, t.Size)

	raw, err := m.pointee(inner, v.Address.Add(int64(t.PtrOffset)))
	if err != nil {
		unreadable(v, memory.ReasonOf(err))
		return
	}
	v.Pointer = raw
	v.Ownership = scope.OwnershipOf(t.Smart, raw.IsNull())

	if t.CtrlOffset >= 0 && (t.Smart == typeinfo.SmartShared || t.Smart == typeinfo.SmartWeak) {
		m.useCount(inner, v)
	}

	switch {
	case raw.IsNull():
		v.Marker = NullPointer
	case t.Smart == typeinfo.SmartWeak && v.HasUseCount && v.UseCount == 0:
		v.Marker = Expired
	default:
		v.Target = m.follow(raw, t.Elem, visited, depth)
	}
}

// useCount reads the strong count from the control block. A null control
// block means no owners.
func (m *Materializer) useCount(w *window, v *Value) {
	t := v.Type
	ctrl, err := m.pointee(w, v.Address.Add(int64(t.CtrlOffset)))
	if err != nil {
		return
	}
	if ctrl.IsNull() {
		v.UseCount, v.HasUseCount = 0, true
		return
	}
	b, err := m.reader.ReadMemory(ctrl.Add(int64(t.UseCountOffset)), 4)
	if err != nil {
		return
	}
	v.UseCount = int64(int32(decodeUint(b, m.arch.BigEndian)))
	v.HasUseCount = true
}
