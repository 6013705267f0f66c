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

// Frame locates a stopped function's stack frame.
type Frame = memory.StackFrame

// Request names what to inspect: a symbol, or an address and a type.
type Request struct {
	// Symbol is a variable name, bare or qualified as "function::name".
	Symbol string

	// Address and Type inspect raw memory. With Symbol set, Type instead
	// reinterprets the symbol's storage as another type.
	Address memory.Address
	Type    string

	// Bytes holds the contents of a register-allocated variable.
	Bytes []byte

	// Frame is the frame used for stack locals; it also decides which
	// function's locals shadow globals.
	Frame *Frame
}

// Inspect materializes and renders one variable.
func (s *Session) Inspect(ctx context.Context, req Request) (*render.Node, error) {
	v, err := s.inspectValue(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.renderer.Render(v), nil
}

// InspectValue is Inspect without rendering.
func (s *Session) InspectValue(ctx context.Context, req Request) (*value.Value, error) {
	return s.inspectValue(ctx, req)
}

func (s *Session) inspectValue(ctx context.Context, req Request) (*value.Value, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log := s.log().WithFields(logrus.Fields{"symbol": req.Symbol, "type": req.Type})

	if req.Symbol == "" {
		if req.Type == "" || req.Address.IsNull() && req.Bytes == nil {
			return nil, fmt.Errorf("%w: need a symbol or an address and a type", ErrInvalidRequest)
		}
		t, err := s.registry.Resolve(req.Type)
		if err != nil {
			return nil, fmt.Errorf("inspect %s: %w", req.Type, err)
		}
		if req.Bytes != nil {
			return s.materializer.MaterializeBytes(req.Type, req.Bytes, t, scope.Unknown), nil
		}
		name := fmt.Sprintf("(%s) %s", t, req.Address)
		log.WithField("address", req.Address.String()).Debug("inspect address")
		return s.materializer.MaterializeRoot(name, req.Address, t, s.classifier.Classify(req.Address, nil)), nil
	}

	sym, err := s.lookup(req.Symbol, req.Frame)
	if err != nil {
		log.WithError(err).Debug("inspect failed")
		return nil, fmt.Errorf("inspect %s: %w", req.Symbol, err)
	}
	t := sym.Type
	if req.Type != "" {
		if t, err = s.registry.Resolve(req.Type); err != nil {
			return nil, fmt.Errorf("inspect %s: %w", req.Symbol, err)
		}
	}

	v, err := s.materializeSymbol(sym, t, req)
	if err != nil {
		log.WithError(err).Debug("inspect failed")
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"scope":  v.Scope.String(),
		"marker": v.Marker.String(),
	}).Debug("inspect")
	return v, nil
}

func (s *Session) lookup(name string, frame *Frame) (*typeinfo.Symbol, error) {
	if frame != nil {
		return s.registry.LookupSymbol(name, frame.Function)
	}
	return s.registry.Symbol(name)
}

// symbolAddress returns where a symbol lives in memory.
func (s *Session) symbolAddress(sym *typeinfo.Symbol, frame *Frame) (memory.Address, error) {
	switch sym.Storage {
	case typeinfo.StorageGlobal, typeinfo.StorageStaticLocal:
		return sym.Address, nil
	case typeinfo.StorageStackLocal:
		if frame == nil || frame.Function != sym.Function {
			return memory.Null, fmt.Errorf("%w: %s", ErrNoFrame, sym.QualifiedName())
		}
		return frame.Base.Add(sym.FrameOffset), nil
	default:
		return sym.Address, nil
	}
}

func (s *Session) materializeSymbol(sym *typeinfo.Symbol, t *typeinfo.Type, req Request) (*value.Value, error) {
	sc := s.classifier.Classify(sym.Address, sym)
	if sym.Storage == typeinfo.StorageRegister {
		return s.materializer.MaterializeBytes(sym.Name, req.Bytes, t, sc), nil
	}
	addr, err := s.symbolAddress(sym, req.Frame)
	if err != nil {
		return nil, fmt.Errorf("inspect %s: %w", req.Symbol, err)
	}
	return s.materializer.MaterializeRoot(sym.Name, addr, t, sc), nil
}

// Globals renders every global and static local, ordered by address.
func (s *Session) Globals(ctx context.Context) ([]*render.Node, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	globals := s.registry.Globals()
	nodes := make([]*render.Node, 0, len(globals))
	for _, sym := range globals {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := s.materializeSymbol(sym, sym.Type, Request{Symbol: sym.QualifiedName()})
		if err != nil {
			return nil, err
		}
		n := s.renderer.Render(v)
		n.Name = sym.QualifiedName()
		nodes = append(nodes, n)
	}
	s.log().WithField("count", len(nodes)).Debug("globals")
	return nodes, nil
}

// Locals renders the stack locals of frame's function in declaration
// order.
func (s *Session) Locals(ctx context.Context, frame Frame) ([]*render.Node, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	locals := s.registry.Locals(frame.Function)
	nodes := make([]*render.Node, 0, len(locals))
	for _, sym := range locals {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := s.materializeSymbol(sym, sym.Type, Request{Symbol: sym.Name, Frame: &frame})
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, s.renderer.Render(v))
	}
	s.log().WithFields(logrus.Fields{"function": frame.Function, "count": len(nodes)}).Debug("locals")
	return nodes, nil
}
