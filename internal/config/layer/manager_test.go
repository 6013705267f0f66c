package layer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager() *Manager {
	m := NewManager()
	m.Add(NewWithData("env", SourceEnv, map[string]any{
		"limits": map[string]any{"max_depth": int64(3)},
	}))
	m.Add(NewWithData("builtin", SourceBuiltin, map[string]any{
		"limits":  map[string]any{"max_depth": int64(64), "max_array_elements": int64(200)},
		"logging": map[string]any{"level": "warn"},
	}))
	m.Add(NewWithData("user", SourceUser, map[string]any{
		"logging": map[string]any{"level": "debug"},
		"limits":  map[string]any{"max_depth": int64(10)},
	}))
	return m
}

func TestManager_Order(t *testing.T) {
	m := newTestManager()

	var names []string
	for _, l := range m.Layers() {
		names = append(names, l.Name)
	}
	assert.Equal(t, []string{"builtin", "user", "env"}, names)
}

func TestManager_Merge(t *testing.T) {
	m := newTestManager()
	merged := m.Merge()

	v, _ := GetByPath(merged, "limits.max_depth")
	assert.Equal(t, int64(3), v)
	v, _ = GetByPath(merged, "limits.max_array_elements")
	assert.Equal(t, int64(200), v)
	v, _ = GetByPath(merged, "logging.level")
	assert.Equal(t, "debug", v)

	SetByPath(merged, "logging.level", "trace")
	v, _ = GetByPath(m.Merge(), "logging.level")
	assert.Equal(t, "debug", v, "Merge returns a copy")
}

func TestManager_GetAndWhichLayer(t *testing.T) {
	m := newTestManager()

	v, l, ok := m.Get("limits.max_depth")
	require.True(t, ok)
	assert.Equal(t, int64(3), v)
	assert.Equal(t, "env", l.Name)

	assert.Equal(t, "user", m.WhichLayer("logging.level"))
	assert.Equal(t, "builtin", m.WhichLayer("limits.max_array_elements"))
	assert.Equal(t, "", m.WhichLayer("dap.address"))
}

func TestManager_SetReplace(t *testing.T) {
	m := newTestManager()

	require.NoError(t, m.Set("user", "dap.address", "localhost:4711"))
	v, _ := GetByPath(m.Merge(), "dap.address")
	assert.Equal(t, "localhost:4711", v)

	require.NoError(t, m.Replace("env", nil))
	v, _ = GetByPath(m.Merge(), "limits.max_depth")
	assert.Equal(t, int64(10), v)
	assert.Equal(t, "user", m.WhichLayer("limits.max_depth"))

	require.NoError(t, m.Replace("user", nil))
	v, _ = GetByPath(m.Merge(), "logging.level")
	assert.Equal(t, "warn", v)

	assert.ErrorIs(t, m.Set("args", "x", 1), ErrLayerNotFound)
	m.Layer("builtin").ReadOnly = true
	assert.ErrorIs(t, m.Set("builtin", "x", 1), ErrReadOnly)
	assert.ErrorIs(t, m.Replace("builtin", nil), ErrReadOnly)
}

func TestManager_AddReplacesSameName(t *testing.T) {
	m := newTestManager()
	m.Add(NewWithData("user", SourceUser, map[string]any{"logging": map[string]any{"level": "error"}}))

	assert.Len(t, m.Layers(), 3)
	v, _ := GetByPath(m.Merge(), "logging.level")
	assert.Equal(t, "error", v)

	assert.True(t, m.Remove("user"))
	assert.False(t, m.Remove("user"))
	assert.Nil(t, m.Layer("user"))
}
