package inspect

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/dshills/varlens/internal/memory"
	"github.com/dshills/varlens/internal/render"
	"github.com/dshills/varlens/internal/scope"
	"github.com/dshills/varlens/internal/typeinfo"
	"github.com/dshills/varlens/internal/value"
)

// lvalue is an evaluated expression: an object in memory.
type lvalue struct {
	addr  memory.Address
	typ   *typeinfo.Type
	scope scope.Scope

	// A bit-field has no address of its own. owner and ownerAddr locate the
	// aggregate that directly contains it.
	bits      *typeinfo.Field
	owner     *typeinfo.Type
	ownerAddr memory.Address

	// fault is the read error of a pointer on the way to the object. A
	// faulted lvalue keeps its type but has no address.
	fault error
}

type evaluator struct {
	s     *Session
	src   string
	frame *Frame
}

func (ev *evaluator) errorf(e *expr, err error, msg string, args ...any) error {
	return &ExprError{Expr: ev.src, Pos: e.pos, Msg: fmt.Sprintf(msg, args...), Err: err}
}

func (ev *evaluator) eval(e *expr) (lvalue, error) {
	switch e.op {
	case opIdent:
		return ev.ident(e)
	case opMember, opArrow:
		x, err := ev.eval(e.x)
		if err != nil {
			return lvalue{}, err
		}
		if e.op == opArrow {
			if x, err = ev.deref(e, x); err != nil {
				return lvalue{}, err
			}
		}
		return ev.member(e, x)
	case opIndex:
		x, err := ev.eval(e.x)
		if err != nil {
			return lvalue{}, err
		}
		return ev.index(e, x)
	case opDeref:
		x, err := ev.eval(e.x)
		if err != nil {
			return lvalue{}, err
		}
		return ev.deref(e, x)
	}
	return lvalue{}, ev.errorf(e, nil, "unsupported expression")
}

func (ev *evaluator) ident(e *expr) (lvalue, error) {
	sym, err := ev.s.lookup(e.name, ev.frame)
	if err != nil {
		return lvalue{}, ev.errorf(e, err, "unknown variable %s", e.name)
	}
	if sym.Storage == typeinfo.StorageRegister {
		return lvalue{}, ev.errorf(e, nil, "%s lives in a register", e.name)
	}
	addr, err := ev.s.symbolAddress(sym, ev.frame)
	if err != nil {
		return lvalue{}, ev.errorf(e, err, "%s has no address", e.name)
	}
	return lvalue{addr: addr, typ: sym.Type, scope: ev.s.classifier.Classify(addr, sym)}, nil
}

func (ev *evaluator) member(e *expr, x lvalue) (lvalue, error) {
	if x.bits != nil {
		return lvalue{}, ev.errorf(e, nil, "bit-field has no members")
	}
	t := x.typ
	if t.Kind == typeinfo.KindReference {
		var err error
		if x, err = ev.deref(e, x); err != nil {
			return lvalue{}, err
		}
		t = x.typ
	}
	if !t.IsAggregate() {
		return lvalue{}, ev.errorf(e, nil, "%s is not a struct or union", t)
	}
	f, owner, ownerOff, ok := findField(t, e.name, 0)
	if !ok {
		return lvalue{}, ev.errorf(e, nil, "%s has no member %s", t, e.name)
	}
	if x.fault != nil {
		return lvalue{typ: f.Type, scope: x.scope, fault: x.fault}, nil
	}
	if f.IsBitField() {
		return lvalue{
			typ:       f.Type,
			scope:     x.scope,
			bits:      f,
			owner:     owner,
			ownerAddr: x.addr.Add(int64(ownerOff)),
		}, nil
	}
	return lvalue{addr: x.addr.Add(int64(ownerOff + f.Offset)), typ: f.Type, scope: x.scope}, nil
}

// findField looks name up in t, descending into anonymous members. It
// returns the field, the aggregate declaring it and that aggregate's
// offset from t.
func findField(t *typeinfo.Type, name string, base int) (*typeinfo.Field, *typeinfo.Type, int, bool) {
	if f, ok := t.Field(name); ok && name != "" {
		return f, t, base, true
	}
	for i := range t.Fields {
		f := &t.Fields[i]
		if f.Name != "" || f.Type == nil || !f.Type.IsAggregate() {
			continue
		}
		if found, owner, off, ok := findField(f.Type, name, base+f.Offset); ok {
			return found, owner, off, true
		}
	}
	return nil, nil, 0, false
}

func (ev *evaluator) index(e *expr, x lvalue) (lvalue, error) {
	if x.bits != nil {
		return lvalue{}, ev.errorf(e, nil, "cannot index a bit-field")
	}
	switch x.typ.Kind {
	case typeinfo.KindArray:
		if e.index < 0 || e.index >= int64(x.typ.Len) {
			return lvalue{}, ev.errorf(e, nil, "index %d out of range [0, %d)", e.index, x.typ.Len)
		}
		elem := x.typ.Elem
		if x.fault != nil {
			return lvalue{typ: elem, scope: x.scope, fault: x.fault}, nil
		}
		return lvalue{addr: x.addr.Add(e.index * int64(elem.Size)), typ: elem, scope: x.scope}, nil
	case typeinfo.KindPointer:
		p, err := ev.deref(e, x)
		if err != nil || p.fault != nil {
			return p, err
		}
		p.addr = p.addr.Add(e.index * int64(p.typ.Size))
		p.scope = ev.s.classifier.Classify(p.addr, nil)
		return p, nil
	default:
		return lvalue{}, ev.errorf(e, nil, "cannot index %s", x.typ)
	}
}

func (ev *evaluator) deref(e *expr, x lvalue) (lvalue, error) {
	if x.bits != nil || !x.typ.IsPointerLike() {
		return lvalue{}, ev.errorf(e, nil, "cannot dereference %s", x.typ)
	}
	elem := x.typ.Elem
	if elem == nil || elem.Kind == typeinfo.KindVoid {
		return lvalue{}, ev.errorf(e, nil, "cannot dereference %s", x.typ)
	}
	if x.fault != nil {
		return lvalue{typ: elem, scope: scope.Unknown, fault: x.fault}, nil
	}
	at := x.addr
	if x.typ.Kind == typeinfo.KindSmartPointer {
		at = at.Add(int64(x.typ.PtrOffset))
	}
	arch := ev.s.registry.Arch()
	b, err := ev.s.reader.ReadMemory(at, arch.PtrSize)
	if err != nil {
		return lvalue{typ: elem, scope: scope.Unknown, fault: err}, nil
	}
	var target uint64
	if arch.PtrSize == 4 {
		target = uint64(arch.ByteOrder().Uint32(b))
	} else {
		target = arch.ByteOrder().Uint64(b)
	}
	addr := memory.Address(target)
	if addr.IsNull() {
		return lvalue{}, ev.errorf(e, nil, "null pointer dereference")
	}
	return lvalue{addr: addr, typ: elem, scope: ev.s.classifier.Classify(addr, nil)}, nil
}

// Evaluate evaluates a watch expression and renders its value. Expressions
// are variable names followed by member access (".", "->"), constant
// subscripts and unary "*", with parentheses for grouping.
func (s *Session) Evaluate(ctx context.Context, src string, frame *Frame) (*render.Node, error) {
	v, err := s.EvaluateValue(ctx, src, frame)
	if err != nil {
		return nil, err
	}
	return s.renderer.Render(v), nil
}

// EvaluateValue is Evaluate without rendering.
func (s *Session) EvaluateValue(ctx context.Context, src string, frame *Frame) (*value.Value, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e, err := parseExpr(src)
	if err != nil {
		return nil, err
	}
	ev := &evaluator{s: s, src: src, frame: frame}
	lv, err := ev.eval(e)
	if err != nil {
		s.log().WithFields(logrus.Fields{"expr": src}).WithError(err).Debug("evaluate failed")
		return nil, err
	}

	if lv.fault != nil {
		return &value.Value{
			Name:   src,
			Type:   lv.typ,
			Kind:   lv.typ.Kind,
			Scope:  lv.scope,
			Marker: value.Unreadable,
			Reason: memory.ReasonOf(lv.fault),
		}, nil
	}
	if lv.bits != nil {
		parent := s.materializer.MaterializeRoot(src, lv.ownerAddr, lv.owner, lv.scope)
		if parent.Marker == value.Unreadable {
			return &value.Value{
				Name:   src,
				Type:   lv.typ,
				Kind:   lv.typ.Kind,
				Scope:  lv.scope,
				Marker: value.Unreadable,
				Reason: parent.Reason,
			}, nil
		}
		v := parent.Child(lv.bits.Name)
		if v == nil {
			return nil, ev.errorf(e, nil, "bit-field %s not materialized", lv.bits.Name)
		}
		v.Name = src
		return v, nil
	}
	return s.materializer.MaterializeRoot(src, lv.addr, lv.typ, lv.scope), nil
}
