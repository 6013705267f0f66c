package render

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/dshills/varlens/internal/typeinfo"
	"github.com/dshills/varlens/internal/value"
)

// scalarText formats a scalar or enum payload.
func scalarText(v *value.Value) string {
	t := v.Type
	switch {
	case len(v.Raw) > 0:
		return "0x" + hex.EncodeToString(v.Raw)
	case t.Kind == typeinfo.KindEnum && v.Enumerator != "":
		return v.Enumerator
	case t.Bool:
		return strconv.FormatBool(v.Bool)
	case t.Float && t.Size == 4:
		return strconv.FormatFloat(v.Float, 'g', -1, 32)
	case t.Float:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case t.Signed:
		return strconv.FormatInt(v.Int, 10)
	default:
		return strconv.FormatUint(v.Uint, 10)
	}
}

// charLiteral renders a character code the way gdb does: 'A', '\n',
// '\000', or '\377' for bytes outside printable ASCII.
func charLiteral(code uint64, size int) string {
	if size > 1 {
		r := rune(code)
		if r <= unicode.MaxRune && unicode.IsPrint(r) && r != '\'' && r != '\\' {
			return "'" + string(r) + "'"
		}
		if r > 0xff {
			return fmt.Sprintf("'\\x%x'", code)
		}
	}
	return "'" + escapeByte(byte(code), '\'') + "'"
}

// escapeByte escapes one byte inside a quoted literal delimited by quote.
func escapeByte(b byte, quote byte) string {
	switch b {
	case 0:
		return `\000`
	case '\a':
		return `\a`
	case '\b':
		return `\b`
	case '\f':
		return `\f`
	case '\n':
		return `\n`
	case '\r':
		return `\r`
	case '\t':
		return `\t`
	case '\v':
		return `\v`
	case '\\':
		return `\\`
	case quote:
		return `\` + string(quote)
	}
	if b < 0x20 || b >= 0x7f {
		return fmt.Sprintf(`\%03o`, b)
	}
	return string(b)
}

// quoteC quotes s as a C string literal.
func quoteC(s string) string {
	return `"` + escapeC(s) + `"`
}

// escapeC escapes s as the body of a C string literal. Bytes outside
// printable ASCII become octal escapes, so the result is valid UTF-8 and
// every target byte can be recovered from it.
func escapeC(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		sb.WriteString(escapeByte(s[i], '"'))
	}
	return sb.String()
}
