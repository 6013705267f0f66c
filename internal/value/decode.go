package value

import (
	"bytes"
	"math"

	"github.com/dshills/varlens/internal/typeinfo"
)

// decodeUint decodes an unsigned integer of up to 8 bytes.
func decodeUint(b []byte, bigEndian bool) uint64 {
	var v uint64
	if bigEndian {
		for _, c := range b {
			v = v<<8 | uint64(c)
		}
		return v
	}
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func (m *Materializer) decodeScalar(v *Value, t *typeinfo.Type, b []byte) {
	switch {
	case len(b) == 0 || len(b) > 8:
		v.Raw = bytes.Clone(b)
	case t.Float && len(b) == 4:
		v.Float = float64(math.Float32frombits(uint32(decodeUint(b, m.arch.BigEndian))))
	case t.Float && len(b) == 8:
		v.Float = math.Float64frombits(decodeUint(b, m.arch.BigEndian))
	case t.Float:
		v.Raw = bytes.Clone(b)
	default:
		m.setInteger(v, t, decodeUint(b, m.arch.BigEndian), len(b)*8)
	}
}

// setInteger stores width bits of an integer, bool, char or enum.
func (m *Materializer) setInteger(v *Value, t *typeinfo.Type, bits uint64, width int) {
	v.Uint = bits
	v.Int = int64(bits)
	if t.Signed && width > 0 && width < 64 && bits&(1<<uint(width-1)) != 0 {
		v.Int = int64(bits | ^uint64(0)<<uint(width))
	}
	if t.Bool {
		v.Bool = bits != 0
	}
	if t.Kind == typeinfo.KindEnum {
		if name, ok := t.EnumName(v.Int); ok {
			v.Enumerator = name
		} else {
			v.Marker = UnnamedEnumerator
		}
	}
}
