package render

import (
	"strconv"
	"strings"
)

// Text renders the node the way gdb prints a variable:
//
//	list = {id = 2, weight = 42, color = GREEN, next = 0x0 <NullPointer>}
func Text(n *Node) string {
	var sb strings.Builder
	if n.Name != "" {
		sb.WriteString(n.Name)
		sb.WriteString(" = ")
	}
	writeText(&sb, n)
	return sb.String()
}

func writeText(sb *strings.Builder, n *Node) {
	if n.Summary != "" {
		sb.WriteString(n.Summary)
		return
	}
	if n.IsMarker() {
		writeMarker(sb, n)
		return
	}
	if n.Marker != "" && n.Value == "" && n.String == nil && len(n.Children) == 0 {
		writeMarker(sb, n)
		return
	}

	switch n.Kind {
	case "struct", "union":
		sb.WriteByte('{')
		for i, c := range n.Children {
			if i > 0 {
				sb.WriteString(", ")
			}
			if c.Name != "" {
				sb.WriteString(c.Name)
				sb.WriteString(" = ")
			}
			writeText(sb, c)
		}
		sb.WriteByte('}')
	case "array":
		if n.String != nil {
			sb.WriteString(quoteC(*n.String))
			if n.Marker != "" {
				sb.WriteString("...")
			}
			return
		}
		sb.WriteByte('{')
		first := true
		for _, c := range n.Children {
			if c.IsMarker() {
				sb.WriteString("...")
				continue
			}
			if !first {
				sb.WriteString(", ")
			}
			first = false
			writeText(sb, c)
		}
		sb.WriteByte('}')
	case "smart_pointer":
		sb.WriteString(n.Type)
		if n.UseCount != nil {
			sb.WriteString(" (use count ")
			sb.WriteString(strconv.FormatInt(*n.UseCount, 10))
			sb.WriteByte(')')
		}
		if n.Ownership != "" {
			sb.WriteString(" [")
			sb.WriteString(n.Ownership)
			sb.WriteByte(']')
		}
		sb.WriteString(" = {get() = ")
		writePointer(sb, n)
		sb.WriteByte('}')
	case "pointer", "reference":
		writePointer(sb, n)
	case "void":
		sb.WriteString("<opaque>")
	default:
		sb.WriteString(n.Value)
		if n.Char != "" {
			sb.WriteByte(' ')
			sb.WriteString(n.Char)
		}
		if n.Marker != "" {
			sb.WriteString(" <")
			sb.WriteString(n.Marker)
			sb.WriteByte('>')
		}
	}
}

func writePointer(sb *strings.Builder, n *Node) {
	sb.WriteString(n.Value)
	if n.String != nil {
		sb.WriteByte(' ')
		sb.WriteString(quoteC(*n.String))
		if n.Marker != "" {
			sb.WriteString("...")
		}
		return
	}
	if len(n.Children) == 1 {
		c := n.Children[0]
		if c.IsMarker() || (c.Marker != "" && c.Value == "" && len(c.Children) == 0) {
			sb.WriteByte(' ')
			writeMarker(sb, c)
			return
		}
		sb.WriteString(" -> ")
		writeText(sb, c)
	}
}

func writeMarker(sb *strings.Builder, n *Node) {
	sb.WriteByte('<')
	sb.WriteString(n.Marker)
	if n.Reason != "" {
		sb.WriteString(": ")
		sb.WriteString(n.Reason)
	}
	sb.WriteByte('>')
}
