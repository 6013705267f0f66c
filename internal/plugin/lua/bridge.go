package lua

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/varlens/internal/typeinfo"
	"github.com/dshills/varlens/internal/value"
)

// DefaultTableDepth is how many levels of fields, elements and pointer
// targets are converted below the summarized value.
const DefaultTableDepth = 3

// valueTable converts v into a Lua table, descending depth levels.
func valueTable(L *lua.LState, v *value.Value, depth int) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("name", lua.LString(v.Name))
	t.RawSetString("kind", lua.LString(v.Kind.String()))
	t.RawSetString("type", lua.LString(v.Type.String()))
	if v.HasAddress {
		t.RawSetString("address", lua.LNumber(v.Address))
	}
	if v.Marker != value.NoMarker {
		t.RawSetString("marker", lua.LString(v.Marker.String()))
	}
	if v.Marker == value.Unreadable {
		t.RawSetString("reason", lua.LString(v.Reason.String()))
	}
	if v.IsTerminal() {
		return t
	}

	switch v.Kind {
	case typeinfo.KindScalar, typeinfo.KindEnum:
		if lv := scalar(v); lv != lua.LNil {
			t.RawSetString("value", lv)
		}
		if v.Enumerator != "" {
			t.RawSetString("enumerator", lua.LString(v.Enumerator))
		}
	case typeinfo.KindStruct, typeinfo.KindUnion:
		if depth > 0 {
			fields := L.NewTable()
			for _, c := range v.Children {
				if c.Name != "" {
					fields.RawSetString(c.Name, valueTable(L, c, depth-1))
				}
			}
			t.RawSetString("fields", fields)
		}
	case typeinfo.KindArray:
		if depth > 0 {
			elems := L.NewTable()
			for _, c := range v.Children {
				elems.Append(valueTable(L, c, depth-1))
			}
			t.RawSetString("elements", elems)
		}
	case typeinfo.KindPointer, typeinfo.KindReference, typeinfo.KindSmartPointer:
		t.RawSetString("pointer", lua.LNumber(v.Pointer))
		if v.HasUseCount {
			t.RawSetString("use_count", lua.LNumber(v.UseCount))
		}
		if v.Target != nil && depth > 0 {
			t.RawSetString("target", valueTable(L, v.Target, depth-1))
		}
	}
	if v.HasStr {
		t.RawSetString("str", lua.LString(v.Str))
		t.RawSetString("truncated", lua.LBool(v.StrTruncated))
	}
	return t
}

func scalar(v *value.Value) lua.LValue {
	switch {
	case len(v.Raw) > 0:
		return lua.LNil
	case v.Type.Bool:
		return lua.LBool(v.Bool)
	case v.Type.Float:
		return lua.LNumber(v.Float)
	case v.Type.Signed || (v.Kind == typeinfo.KindEnum && v.Type.Underlying != nil && v.Type.Underlying.Signed):
		return lua.LNumber(v.Int)
	default:
		return lua.LNumber(v.Uint)
	}
}
