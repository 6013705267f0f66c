package visualize

import (
	"fmt"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/dshills/varlens/internal/memory"
	"github.com/dshills/varlens/internal/render"
	"github.com/dshills/varlens/internal/typeinfo"
	"github.com/dshills/varlens/internal/value"
)

// Query selects the struct type to draw and which of its fields are data
// and which are links.
type Query struct {
	// Struct is the node type, with or without the "struct" tag.
	Struct string `json:"struct"`

	// Values names the data fields shown inside each node.
	Values []string `json:"values"`

	// Points names the pointer fields followed to other nodes. A field that
	// is an array of pointers contributes every element.
	Points []string `json:"points"`
}

// VariableQuery selects variables by name.
type VariableQuery struct {
	// StructVars are struct or array variables expanded one level.
	StructVars []string `json:"structVars"`

	// PointVars are variables reported as pointers or indexes.
	PointVars []string `json:"pointVars"`
}

// Variable is one named value in a graph.
type Variable struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Node is one drawn object.
type Node struct {
	// Name is the variable name for top-level nodes.
	Name string `json:"name,omitempty"`

	// ID is the object's address.
	ID     string      `json:"id"`
	Type   string      `json:"type"`
	Values []*Variable `json:"values"`
	Points []*Variable `json:"points"`
}

// StructuralGraph is the result of Structural.
type StructuralGraph struct {
	// Nodes lists every reachable struct in breadth-first order.
	Nodes []*Node `json:"nodes"`

	// Points lists the top-level pointers to the struct type.
	Points []*Variable `json:"points"`
}

// VariableGraph is the result of Variables.
type VariableGraph struct {
	Structs []*Node     `json:"structs"`
	Points  []*Variable `json:"points"`
}

// Structural walks roots breadth-first, collecting every struct of the
// queried type reachable through the queried pointer fields. Each struct
// appears once however many paths lead to it.
func Structural(roots []*value.Value, q Query) (*StructuralGraph, error) {
	name := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(q.Struct), "struct "))
	if name == "" {
		return nil, fmt.Errorf("%w: no struct type", ErrInvalidQuery)
	}
	values := mapset.NewThreadUnsafeSet(q.Values...)
	points := mapset.NewThreadUnsafeSet(q.Points...)

	graph := &StructuralGraph{Nodes: []*Node{}, Points: []*Variable{}}
	var queue []*value.Value
	for _, v := range roots {
		switch {
		case isPointerTo(v.Type, name):
			graph.Points = append(graph.Points, pointerVariable(v.Name, v))
			queue = append(queue, v.Target)
		case v.Type.Name == name && v.Kind == typeinfo.KindStruct:
			queue = append(queue, v)
		}
	}

	seen := mapset.NewThreadUnsafeSet[memory.Address]()
	for len(queue) > 0 {
		var next []*value.Value
		for _, v := range queue {
			if v == nil || !v.HasAddress || v.Type.Name != name || len(v.Children) == 0 {
				continue
			}
			if !seen.Add(v.Address) {
				continue
			}
			node := &Node{
				Name: v.Name,
				ID:   v.Address.String(),
				Type: v.Type.String(),
			}
			for _, f := range v.Children {
				switch {
				case values.Contains(f.Name):
					node.Values = append(node.Values, variable(f.Name, f))
				case points.Contains(f.Name) && f.Kind == typeinfo.KindArray:
					for _, elem := range f.Children {
						node.Points = append(node.Points, pointerVariable(f.Name+elem.Name, elem))
						next = append(next, elem.Target)
					}
				case points.Contains(f.Name):
					node.Points = append(node.Points, pointerVariable(f.Name, f))
					next = append(next, f.Target)
				}
			}
			graph.Nodes = append(graph.Nodes, node)
		}
		queue = next
	}
	return graph, nil
}

// Variables expands the named struct and array variables one level and
// reports the named pointer variables. A pointer listed in StructVars is
// expanded through its target.
func Variables(roots []*value.Value, q VariableQuery) *VariableGraph {
	structs := mapset.NewThreadUnsafeSet(q.StructVars...)
	points := mapset.NewThreadUnsafeSet(q.PointVars...)

	graph := &VariableGraph{Structs: []*Node{}, Points: []*Variable{}}
	for _, v := range roots {
		if points.Contains(v.Name) {
			graph.Points = append(graph.Points, variable(v.Name, v))
		}
		if !structs.Contains(v.Name) {
			continue
		}
		obj := v
		if v.Type.IsPointerLike() && v.Target != nil {
			obj = v.Target
		}
		node := &Node{
			Name:   v.Name,
			ID:     obj.Address.String(),
			Type:   v.Type.String(),
			Values: make([]*Variable, 0, len(obj.Children)),
		}
		for _, c := range obj.Children {
			node.Values = append(node.Values, variable(c.Name, c))
		}
		graph.Structs = append(graph.Structs, node)
	}
	return graph
}

func isPointerTo(t *typeinfo.Type, name string) bool {
	return t != nil && t.IsPointerLike() && t.Elem != nil && t.Elem.Name == name
}

func variable(name string, v *value.Value) *Variable {
	n := render.Render(v)
	n.Name = ""
	return &Variable{Name: name, Type: v.Type.String(), Value: render.Text(n)}
}

// pointerVariable reports a pointer by its raw address only.
func pointerVariable(name string, v *value.Value) *Variable {
	val := v.Pointer.String()
	if v.Marker == value.Unreadable {
		val = "<" + v.Marker.String() + ">"
	}
	return &Variable{Name: name, Type: v.Type.String(), Value: val}
}
