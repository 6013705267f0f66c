package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/sjson"
)

// JSON returns the indented JSON encoding of the node tree.
func JSON(n *Node) ([]byte, error) {
	data, err := json.MarshalIndent(n, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode node: %w", err)
	}
	return data, nil
}

// MarshalJSON encodes the node with its string form C-escaped.
func (n *Node) MarshalJSON() ([]byte, error) {
	type plain Node
	out := struct {
		*plain
		String *string `json:"string,omitempty"`
	}{plain: (*plain)(n)}
	if n.String != nil {
		s := escapeC(*n.String)
		out.String = &s
	}
	return json.Marshal(out)
}

// Compact returns a JSON document mapping the node's name to its value:
// objects for structs and unions (members in declaration order), arrays for
// arrays, the pointee for pointers, and "<Marker>" strings for terminals.
func Compact(n *Node) (string, error) {
	raw, err := compactValue(n)
	if err != nil {
		return "", err
	}
	if n.Name == "" {
		return raw, nil
	}
	return sjson.SetRaw("{}", escapeKey(n.Name), raw)
}

func compactValue(n *Node) (string, error) {
	if n.Summary != "" {
		return jsonString(n.Summary), nil
	}
	if n.IsMarker() || (n.Marker != "" && len(n.Children) == 0 && n.Value == "" && n.String == nil) {
		return markerString(n), nil
	}

	switch n.Kind {
	case "struct", "union":
		doc := "{}"
		for i, c := range n.Children {
			raw, err := compactValue(c)
			if err != nil {
				return "", err
			}
			key := c.Name
			if key == "" {
				key = fmt.Sprintf("<anonymous %d>", i)
			}
			if doc, err = sjson.SetRaw(doc, escapeKey(key), raw); err != nil {
				return "", fmt.Errorf("compact %s: %w", key, err)
			}
		}
		return doc, nil
	case "array":
		if n.String != nil {
			return jsonString(escapeC(*n.String)), nil
		}
		doc := "[]"
		for _, c := range n.Children {
			raw, err := compactValue(c)
			if err != nil {
				return "", err
			}
			if doc, err = sjson.SetRaw(doc, "-1", raw); err != nil {
				return "", fmt.Errorf("compact %s: %w", c.Name, err)
			}
		}
		return doc, nil
	case "pointer", "reference", "smart_pointer":
		if n.String != nil {
			return jsonString(escapeC(*n.String)), nil
		}
		if len(n.Children) == 1 {
			return compactValue(n.Children[0])
		}
		return jsonString(n.Value), nil
	case "void":
		return "null", nil
	}
	return scalarJSON(n), nil
}

// scalarJSON emits numbers and booleans bare and everything else as a
// string.
func scalarJSON(n *Node) string {
	switch n.Value {
	case "true", "false":
		return n.Value
	}
	if f, err := strconv.ParseFloat(n.Value, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) &&
		!strings.HasPrefix(n.Value, "0x") {
		return n.Value
	}
	return jsonString(n.Value)
}

func markerString(n *Node) string {
	if n.Reason != "" {
		return jsonString("<" + n.Marker + ": " + n.Reason + ">")
	}
	return jsonString("<" + n.Marker + ">")
}

// escapeKey escapes the characters that have a meaning in sjson paths.
func escapeKey(key string) string {
	var sb strings.Builder
	for _, r := range key {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\', ':':
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// jsonString encodes s as a JSON string without HTML escaping.
func jsonString(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return strings.TrimSuffix(buf.String(), "\n")
}
