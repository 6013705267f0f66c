package config

import (
	"bytes"
	"context"
	"io/fs"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

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

const (
	userFile      = "/home/u/.config/varlens/config.toml"
	workspaceFile = "/src/proj/.varlens.toml"
)

func newStore(t *testing.T, files memFS) *Store {
	t.Helper()
	s := New(
		WithFileSystem(files),
		WithUserFile(userFile),
		WithWorkspaceFile(workspaceFile),
		WithEnvPrefix("VARLENS_TEST_"),
	)
	require.NoError(t, s.Load(context.Background()))
	return s
}

func TestStore_Defaults(t *testing.T) {
	s := newStore(t, memFS{})

	cfg, err := s.Config()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Empty(t, s.Unknown())
	assert.Equal(t, "", s.LayerPath(LayerUser))

	_, src, ok := s.Get("limits.max_depth")
	require.True(t, ok)
	assert.Equal(t, LayerBuiltin, src)
}

func TestStore_Precedence(t *testing.T) {
	t.Setenv("VARLENS_TEST_MAX_ARRAY_ELEMENTS", "7")
	t.Setenv("VARLENS_TEST_LOG_FORMAT", "json")

	s := newStore(t, memFS{
		userFile: `
[limits]
max_depth = 10
max_array_elements = 50

[logging]
level = "debug"

[scripts]
dir = "/home/u/.config/varlens/scripts"
`,
		workspaceFile: `
[limits]
max_depth = 4

[dap]
address = "127.0.0.1:4711"
timeout = "250ms"
`,
	})
	s.Set("logging.level", "error")

	cfg, err := s.Config()
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Limits.MaxDepth)
	assert.Equal(t, 7, cfg.Limits.MaxArrayElements)
	assert.Equal(t, 1024, cfg.Limits.MaxStringScan)
	assert.Equal(t, Logging{Level: "error", Format: "json"}, cfg.Logging)
	assert.Equal(t, "127.0.0.1:4711", cfg.DAP.Address)
	assert.Equal(t, "/home/u/.config/varlens/scripts", cfg.Scripts.Dir)

	d, err := cfg.DAP.TimeoutDuration()
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, d)

	sources := map[string]string{
		"limits.max_depth":          LayerWorkspace,
		"limits.max_array_elements": LayerEnv,
		"limits.max_string_scan":    LayerBuiltin,
		"logging.level":             LayerArgs,
		"scripts.dir":               LayerUser,
	}
	for path, want := range sources {
		_, got, ok := s.Get(path)
		require.True(t, ok, path)
		assert.Equal(t, want, got, path)
	}
	assert.Equal(t, workspaceFile, s.LayerPath(LayerWorkspace))
	assert.Contains(t, s.Settings(), "dap.address")
}

func TestStore_SetBeforeLoad(t *testing.T) {
	s := New(WithFileSystem(memFS{}), WithUserFile(""), WithWorkspaceFile(""), WithEnvPrefix("VARLENS_TEST_"))
	s.Set("limits.max_depth", int64(2))

	_, err := s.Config()
	assert.ErrorIs(t, err, ErrNotLoaded)

	require.NoError(t, s.Load(context.Background()))
	cfg, err := s.Config()
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Limits.MaxDepth)
}

func TestStore_Unknown(t *testing.T) {
	s := newStore(t, memFS{userFile: "[render]\nshow_addresses = true\n"})

	_, err := s.Config()
	require.NoError(t, err)
	assert.Contains(t, s.Unknown(), "render.show_addresses")
}

func TestStore_Errors(t *testing.T) {
	t.Run("parse", func(t *testing.T) {
		s := New(WithFileSystem(memFS{workspaceFile: "[limits\n"}), WithUserFile(""),
			WithWorkspaceFile(workspaceFile), WithEnvPrefix("VARLENS_TEST_"))
		err := s.Load(context.Background())

		var perr *ParseError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, workspaceFile, perr.Path)
	})

	tests := []struct {
		name string
		file string
	}{
		{"negative limit", "[limits]\nmax_depth = -1\n"},
		{"wrong type", "[limits]\nmax_depth = \"deep\"\n"},
		{"bad level", "[logging]\nlevel = \"chatty\"\n"},
		{"bad format", "[logging]\nformat = \"xml\"\n"},
		{"bad timeout", "[dap]\ntimeout = \"soon\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t, memFS{userFile: tt.file})
			_, err := s.Config()
			assert.ErrorIs(t, err, ErrInvalidValue)
		})
	}
}

func TestConfig_NewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := Default()
	cfg.Logging = Logging{Level: "info", Format: "json"}

	log, err := cfg.NewLogger(&buf)
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())

	log.WithField("expr", "head->next").Info("evaluated")
	log.Debug("hidden")
	assert.Equal(t, "head->next", gjson.Get(buf.String(), "expr").String())
	assert.Equal(t, "evaluated", gjson.Get(buf.String(), "msg").String())

	cfg.Logging.Level = "loud"
	_, err = cfg.NewLogger(&buf)
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, `"5s"`, FormatValue("5s"))
	assert.Equal(t, "64", FormatValue(int64(64)))
	assert.Equal(t, `["a.lua", "b.lua"]`, FormatValue([]any{"a.lua", "b.lua"}))
}

func TestStore_ReloadReplacesLayers(t *testing.T) {
	files := memFS{userFile: "[limits]\nmax_depth = 10\n"}
	s := newStore(t, files)
	assert.Equal(t, LayerUser, s.Source("limits.max_depth"))

	files[userFile] = "[limits]\nmax_depth = 12\n"
	t.Setenv("VARLENS_TEST_MAX_STRING_SCAN", "64")
	require.NoError(t, s.Load(context.Background()))

	cfg, err := s.Config()
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Limits.MaxDepth)
	assert.Equal(t, 64, cfg.Limits.MaxStringScan)
	assert.Equal(t, userFile, s.LayerPath(LayerUser))

	delete(files, userFile)
	require.NoError(t, s.Load(context.Background()))
	assert.Equal(t, LayerBuiltin, s.Source("limits.max_depth"))
}

func TestStore_ResetAndSource(t *testing.T) {
	t.Setenv("VARLENS_TEST_MAX_DEPTH", "9")
	s := newStore(t, memFS{})

	assert.Equal(t, LayerEnv, s.Source("limits.max_depth"))
	assert.Equal(t, "", s.Source("limits.nope"))

	require.NoError(t, s.Reset(LayerEnv))
	assert.Equal(t, LayerBuiltin, s.Source("limits.max_depth"))
	cfg, err := s.Config()
	require.NoError(t, err)
	assert.Equal(t, Default().Limits.MaxDepth, cfg.Limits.MaxDepth)

	assert.ErrorIs(t, s.Reset(LayerBuiltin), layer.ErrReadOnly)
	assert.ErrorIs(t, s.Reset("nope"), layer.ErrLayerNotFound)
}
