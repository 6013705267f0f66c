package render

import (
	"github.com/dshills/varlens/internal/typeinfo"
	"github.com/dshills/varlens/internal/value"
)

// Node kinds besides the typeinfo kind names.
const (
	// KindMarker is an explicit terminal node: the end of a capped array
	// or the target of a null or expired pointer.
	KindMarker = "marker"
)

// Node is one rendered value.
type Node struct {
	Name      string  `json:"name,omitempty"`
	Kind      string  `json:"kind"`
	Type      string  `json:"type,omitempty"`
	Scope     string  `json:"scope,omitempty"`
	Ownership string  `json:"ownership,omitempty"`
	Address   string  `json:"address,omitempty"`
	Value     string  `json:"value,omitempty"`
	Char      string  `json:"char,omitempty"`
	String    *string `json:"string,omitempty"`
	UseCount  *int64  `json:"use_count,omitempty"`
	Marker    string  `json:"marker,omitempty"`
	Reason    string  `json:"reason,omitempty"`
	Summary   string  `json:"summary,omitempty"`
	Children  []*Node `json:"children,omitempty"`
}

// Child returns the child with the given name.
func (n *Node) Child(name string) *Node {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// IsMarker reports whether n is an explicit marker node.
func (n *Node) IsMarker() bool {
	return n.Kind == KindMarker
}

// Summarizer produces a one-line summary for values of types it knows.
type Summarizer interface {
	Summarize(v *value.Value) (string, bool)
}

// SummarizerFunc adapts a function to the Summarizer interface.
type SummarizerFunc func(v *value.Value) (string, bool)

// Summarize calls f(v).
func (f SummarizerFunc) Summarize(v *value.Value) (string, bool) {
	return f(v)
}

// Renderer converts value trees into node trees.
type Renderer struct {
	summarizers []Summarizer
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithSummarizer adds a summarizer. The first summarizer that accepts a
// value wins.
func WithSummarizer(s Summarizer) Option {
	return func(r *Renderer) {
		r.summarizers = append(r.summarizers, s)
	}
}

// NewRenderer creates a renderer.
func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render renders v with a default renderer.
func Render(v *value.Value) *Node {
	return NewRenderer().Render(v)
}

// Render converts v into a node tree.
func (r *Renderer) Render(v *value.Value) *Node {
	if v == nil {
		return nil
	}
	n := &Node{
		Name:   v.Name,
		Kind:   v.Kind.String(),
		Type:   v.Type.String(),
		Scope:  v.Scope.String(),
		Marker: v.Marker.String(),
	}
	if v.HasAddress {
		n.Address = v.Address.String()
	}
	if v.Marker == value.Unreadable {
		n.Reason = v.Reason.String()
	}

	if !v.IsTerminal() {
		switch v.Kind {
		case typeinfo.KindScalar, typeinfo.KindEnum:
			n.Value = scalarText(v)
			if v.Type.IsCharScalar() && len(v.Raw) == 0 {
				n.Char = charLiteral(v.Uint, v.Type.Size)
			}
		case typeinfo.KindStruct, typeinfo.KindUnion:
			n.Children = r.children(v.Children)
		case typeinfo.KindArray:
			r.array(n, v)
		case typeinfo.KindPointer, typeinfo.KindReference, typeinfo.KindSmartPointer:
			r.pointer(n, v)
		}
	}

	for _, s := range r.summarizers {
		if summary, ok := s.Summarize(v); ok {
			n.Summary = summary
			break
		}
	}
	return n
}

func (r *Renderer) children(vs []*value.Value) []*Node {
	out := make([]*Node, 0, len(vs))
	for _, c := range vs {
		out = append(out, r.Render(c))
	}
	return out
}

func (r *Renderer) array(n *Node, v *value.Value) {
	n.Marker = ""
	n.Children = r.children(v.Children)
	if v.HasStr {
		s := v.Str
		n.String = &s
		if v.StrTruncated {
			n.Marker = value.StringTruncated.String()
		}
	}
	if v.Marker == value.ArrayTruncated {
		n.Children = append(n.Children, &Node{
			Name:   "...",
			Kind:   KindMarker,
			Marker: value.ArrayTruncated.String(),
		})
	}
}

func (r *Renderer) pointer(n *Node, v *value.Value) {
	n.Value = v.Pointer.String()
	if v.Kind == typeinfo.KindSmartPointer {
		n.Ownership = v.Ownership.String()
		if v.HasUseCount {
			count := v.UseCount
			n.UseCount = &count
		}
	}
	if v.HasStr {
		s := v.Str
		n.String = &s
	}

	switch {
	case v.Marker == value.NullPointer || v.Marker == value.Expired:
		n.Marker = ""
		n.Children = []*Node{{Name: "*", Kind: KindMarker, Marker: v.Marker.String()}}
	case v.Target != nil:
		target := r.Render(v.Target)
		target.Name = "*"
		n.Children = []*Node{target}
	}
}
