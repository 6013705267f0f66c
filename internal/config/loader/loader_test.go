package loader

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/varlens/internal/config/layer"
)

type memFS map[string]string

func (m memFS) ReadFile(path string) ([]byte, error) {
	data, ok := m[path]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return []byte(data), nil
}

type brokenFS struct{}

func (brokenFS) ReadFile(string) ([]byte, error) {
	return nil, errors.New("disk on fire")
}

func TestTOMLLoader_Load(t *testing.T) {
	fsys := memFS{"/home/u/.config/varlens/config.toml": `
[limits]
max_depth = 8
max_array_elements = 16

[logging]
level = "debug"

[scripts]
files = ["a.lua", "b.lua"]
`}
	data, err := NewTOMLLoaderWithFS(fsys, "/home/u/.config/varlens/config.toml").Load()
	require.NoError(t, err)

	v, _ := layer.GetByPath(data, "limits.max_depth")
	assert.Equal(t, int64(8), v)
	v, _ = layer.GetByPath(data, "logging.level")
	assert.Equal(t, "debug", v)
	v, _ = layer.GetByPath(data, "scripts.files")
	assert.Equal(t, []any{"a.lua", "b.lua"}, v)
}

func TestTOMLLoader_Missing(t *testing.T) {
	data, err := NewTOMLLoaderWithFS(memFS{}, "/nope.toml").Load()
	require.NoError(t, err)
	assert.Nil(t, data)

	_, err = NewTOMLLoaderWithFS(brokenFS{}, "/x.toml").Load()
	assert.ErrorContains(t, err, "disk on fire")
}

func TestTOMLLoader_ParseError(t *testing.T) {
	fsys := memFS{"/bad.toml": "[limits]\nmax_depth = 8\nmax_depth = 9\n"}
	_, err := NewTOMLLoaderWithFS(fsys, "/bad.toml").Load()

	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "/bad.toml", perr.Path)
	assert.Greater(t, perr.Line, 1)
	assert.Contains(t, err.Error(), "parse error in /bad.toml at line")
}

func TestEnvLoader_Load(t *testing.T) {
	l := NewEnvLoader("VARLENS_")
	l.environ = func() []string {
		return []string{
			"VARLENS_MAX_DEPTH=12",
			"VARLENS_LOG_LEVEL=trace",
			"VARLENS_DAP_TIMEOUT=750ms",
			"VARLENS_RENDER_SHOW_ADDRESSES=yes",
			"VARLENS_LIMITS_MAX_STRING_SCAN=99",
			"VARLENS_BARE=1",
			"HOME=/home/u",
		}
	}
	data, err := l.Load()
	require.NoError(t, err)

	tests := []struct {
		path string
		want any
	}{
		{"limits.max_depth", int64(12)},
		{"logging.level", "trace"},
		{"dap.timeout", "750ms"},
		{"render.show_addresses", true},
		{"limits.max_string_scan", int64(99)},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			v, ok := layer.GetByPath(data, tt.path)
			require.True(t, ok)
			assert.Equal(t, tt.want, v)
		})
	}
	assert.Len(t, data, 4, "unprefixed and section-less variables are ignored")
}

func TestEnvLoader_AddMapping(t *testing.T) {
	t.Setenv("VARLENS_ADAPTER", "127.0.0.1:4711")
	l := NewEnvLoader("VARLENS_")
	l.AddMapping("VARLENS_ADAPTER", "dap.address")

	data, err := l.Load()
	require.NoError(t, err)
	v, _ := layer.GetByPath(data, "dap.address")
	assert.Equal(t, "127.0.0.1:4711", v)
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, true, parseValue("on"))
	assert.Equal(t, false, parseValue("No"))
	assert.Equal(t, int64(-3), parseValue("-3"))
	assert.Equal(t, 1.5, parseValue("1.5"))
	assert.Equal(t, []any{"a", float64(2)}, parseValue(`["a", 2]`))
	assert.Equal(t, "5s", parseValue("5s"))
	assert.Equal(t, "", parseValue(""))
}
