// Package layer stacks configuration sources by priority.
//
// Each source contributes a nested map; a Manager merges the maps from the
// lowest priority to the highest so that later sources override earlier
// ones key by key.
package layer

import (
	"fmt"
	"time"
)

// Source identifies where a layer was loaded from.
type Source uint8

const (
	// SourceBuiltin holds compiled-in defaults.
	SourceBuiltin Source = iota
	// SourceUser is the per-user file (~/.config/varlens/config.toml).
	SourceUser
	// SourceWorkspace is the project file (.varlens.toml).
	SourceWorkspace
	// SourceEnv holds VARLENS_* environment variables.
	SourceEnv
	// SourceArgs holds command line flags.
	SourceArgs
)

var sourceNames = [...]string{
	SourceBuiltin:   "builtin",
	SourceUser:      "user",
	SourceWorkspace: "workspace",
	SourceEnv:       "environment",
	SourceArgs:      "arguments",
}

// String returns the source name.
func (s Source) String() string {
	if int(s) < len(sourceNames) {
		return sourceNames[s]
	}
	return fmt.Sprintf("source(%d)", s)
}

// Priority returns the merge priority of the source. Higher wins.
func (s Source) Priority() int {
	switch s {
	case SourceBuiltin:
		return PriorityBuiltin
	case SourceUser:
		return PriorityUser
	case SourceWorkspace:
		return PriorityWorkspace
	case SourceEnv:
		return PriorityEnv
	case SourceArgs:
		return PriorityArgs
	default:
		return PriorityBuiltin
	}
}

// Layer is one configuration source.
type Layer struct {
	// Name identifies the layer inside a Manager.
	Name string

	// Priority orders the merge; higher overrides lower.
	Priority int

	Source Source

	// Path is the file the layer was read from, if any.
	Path string

	// Data is the nested key/value tree.
	Data map[string]any

	// LoadedAt is when the layer data was last replaced.
	LoadedAt time.Time

	// ReadOnly rejects Set and Replace.
	ReadOnly bool
}

// New creates an empty layer with the source's default priority.
func New(name string, source Source) *Layer {
	return NewWithData(name, source, make(map[string]any))
}

// NewWithData creates a layer around data. The map is not copied.
func NewWithData(name string, source Source, data map[string]any) *Layer {
	if data == nil {
		data = make(map[string]any)
	}
	return &Layer{
		Name:     name,
		Priority: source.Priority(),
		Source:   source,
		Data:     data,
		LoadedAt: time.Now(),
	}
}

// Clone returns a deep copy of the layer.
func (l *Layer) Clone() *Layer {
	c := *l
	c.Data = cloneMap(l.Data)
	return &c
}

func cloneMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = cloneValue(v)
	}
	return dst
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
