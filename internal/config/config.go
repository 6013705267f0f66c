package config

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"

	"github.com/dshills/varlens/internal/config/layer"
	"github.com/dshills/varlens/internal/config/loader"
	"github.com/dshills/varlens/internal/value"
)

// Standard file names and the environment prefix.
const (
	UserFileName      = "config.toml"
	WorkspaceFileName = ".varlens.toml"
	EnvPrefix         = "VARLENS_"
)

// Layer names used by Store.
const (
	LayerBuiltin   = "builtin"
	LayerUser      = "user"
	LayerWorkspace = "workspace"
	LayerEnv       = "environment"
	LayerArgs      = "arguments"
)

// Config is the typed view of the merged configuration.
type Config struct {
	Limits  value.Limits `toml:"limits"`
	Logging Logging      `toml:"logging"`
	DAP     DAP          `toml:"dap"`
	Scripts Scripts      `toml:"scripts"`
}

// Logging configures the process logger.
type Logging struct {
	// Level is a logrus level name.
	Level string `toml:"level"`
	// Format is "text" or "json".
	Format string `toml:"format"`
}

// DAP configures the debug adapter connection.
type DAP struct {
	// Address is host:port of a listening adapter. Empty disables DAP.
	Address string `toml:"address"`
	// Timeout bounds each readMemory request, as a Go duration string.
	Timeout string `toml:"timeout"`
}

// TimeoutDuration parses Timeout.
func (d DAP) TimeoutDuration() (time.Duration, error) {
	if d.Timeout == "" {
		return 0, nil
	}
	t, err := time.ParseDuration(d.Timeout)
	if err != nil {
		return 0, fmt.Errorf("%w: dap.timeout %q", ErrInvalidValue, d.Timeout)
	}
	return t, nil
}

// Scripts locates Lua summarizer scripts.
type Scripts struct {
	// Dir is searched for *.lua files.
	Dir string `toml:"dir"`
	// Files are loaded after the files found in Dir.
	Files []string `toml:"files"`
}

// Default returns the builtin configuration.
func Default() Config {
	return Config{
		Limits:  value.DefaultLimits(),
		Logging: Logging{Level: "warning", Format: "text"},
		DAP:     DAP{Timeout: "5s"},
	}
}

// Validate checks every setting.
func (c Config) Validate() error {
	if c.Limits.MaxDepth < 0 || c.Limits.MaxArrayElements < 0 || c.Limits.MaxStringScan < 0 {
		return fmt.Errorf("%w: limits must not be negative", ErrInvalidValue)
	}
	if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("%w: logging.level %q", ErrInvalidValue, c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: logging.format %q", ErrInvalidValue, c.Logging.Format)
	}
	_, err := c.DAP.TimeoutDuration()
	return err
}

// NewLogger builds a logger writing to w according to c.Logging.
func (c Config) NewLogger(w io.Writer) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("%w: logging.level %q", ErrInvalidValue, c.Logging.Level)
	}
	log := logrus.New()
	log.SetOutput(w)
	log.SetLevel(level)
	if c.Logging.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	}
	return log, nil
}

// Store owns the configuration layers.
type Store struct {
	mu sync.Mutex

	layers *layer.Manager
	fs     loader.FileSystem

	userFile      string
	workspaceFile string
	envPrefix     string

	loaded    bool
	undecoded []string
}

// Option configures a Store.
type Option func(*Store)

// WithUserFile overrides the user configuration file.
func WithUserFile(path string) Option {
	return func(s *Store) {
		s.userFile = path
	}
}

// WithWorkspaceFile overrides the workspace configuration file.
func WithWorkspaceFile(path string) Option {
	return func(s *Store) {
		s.workspaceFile = path
	}
}

// WithEnvPrefix overrides the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(s *Store) {
		s.envPrefix = prefix
	}
}

// WithFileSystem reads configuration files through fsys.
func WithFileSystem(fsys loader.FileSystem) Option {
	return func(s *Store) {
		s.fs = fsys
	}
}

// New creates a store. Nothing is read until Load.
func New(opts ...Option) *Store {
	s := &Store{
		layers:        layer.NewManager(),
		fs:            loader.OSFS{},
		userFile:      defaultUserFile(),
		workspaceFile: WorkspaceFileName,
		envPrefix:     EnvPrefix,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func defaultUserFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "varlens", UserFileName)
}

// Load reads every source into its layer. Missing files are skipped.
// Values set with Set before Load are kept.
func (s *Store) Load(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	builtin, err := toMap(Default())
	if err != nil {
		return err
	}
	b := layer.NewWithData(LayerBuiltin, layer.SourceBuiltin, builtin)
	b.ReadOnly = true
	s.layers.Add(b)

	for _, f := range []struct {
		name   string
		source layer.Source
		path   string
	}{
		{LayerUser, layer.SourceUser, s.userFile},
		{LayerWorkspace, layer.SourceWorkspace, s.workspaceFile},
	} {
		if f.path == "" {
			continue
		}
		data, err := loader.NewTOMLLoaderWithFS(s.fs, f.path).Load()
		if err != nil {
			return err
		}
		if data == nil {
			s.layers.Remove(f.name)
			continue
		}
		if err := s.put(f.name, f.source, f.path, data); err != nil {
			return err
		}
	}

	env, err := loader.NewEnvLoader(s.envPrefix).Load()
	if err != nil {
		return err
	}
	if err := s.put(LayerEnv, layer.SourceEnv, "", env); err != nil {
		return err
	}

	if s.layers.Layer(LayerArgs) == nil {
		s.layers.Add(layer.New(LayerArgs, layer.SourceArgs))
	}
	s.loaded = true
	return nil
}

// put installs data as the named layer. A layer kept from an earlier Load
// has its data replaced.
func (s *Store) put(name string, source layer.Source, path string, data map[string]any) error {
	if s.layers.Layer(name) != nil {
		return s.layers.Replace(name, data)
	}
	l := layer.NewWithData(name, source, data)
	l.Path = path
	s.layers.Add(l)
	return nil
}

// Reset empties the named layer so lower layers show through. The builtin
// layer cannot be reset.
func (s *Store) Reset(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.layers.Replace(name, nil)
}

// Source returns the name of the layer supplying path, or "" for an
// unknown setting.
func (s *Store) Source(path string) string {
	return s.layers.WhichLayer(path)
}

// Set stores a command line override at path.
func (s *Store) Set(path string, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.layers.Layer(LayerArgs) == nil {
		s.layers.Add(layer.New(LayerArgs, layer.SourceArgs))
	}
	// The arguments layer is never read-only.
	_ = s.layers.Set(LayerArgs, path, v)
}

// Get returns the effective value at path and the name of the layer that
// supplied it.
func (s *Store) Get(path string) (any, string, bool) {
	v, l, ok := s.layers.Get(path)
	if !ok {
		return nil, "", false
	}
	return v, l.Name, true
}

// Settings lists every effective setting path, sorted.
func (s *Store) Settings() []string {
	return layer.Paths(s.layers.Merge())
}

// Config decodes and validates the merged configuration.
func (s *Store) Config() (Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return Config{}, ErrNotLoaded
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(s.layers.Merge()); err != nil {
		return Config{}, fmt.Errorf("encoding merged config: %w", err)
	}
	var cfg Config
	md, err := toml.Decode(buf.String(), &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrInvalidValue, err)
	}
	s.undecoded = s.undecoded[:0]
	for _, k := range md.Undecoded() {
		s.undecoded = append(s.undecoded, k.String())
	}
	sort.Strings(s.undecoded)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Unknown returns the setting paths the last Config call did not
// recognize.
func (s *Store) Unknown() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.undecoded...)
}

// LayerPath returns the file behind a file layer, or "".
func (s *Store) LayerPath(name string) string {
	if l := s.layers.Layer(name); l != nil {
		return l.Path
	}
	return ""
}

func toMap(c Config) (map[string]any, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return nil, fmt.Errorf("encoding defaults: %w", err)
	}
	return loader.ParseTOML("<builtin>", buf.Bytes())
}

// FormatValue prints a setting value the way it would appear in a file.
func FormatValue(v any) string {
	switch t := v.(type) {
	case string:
		return fmt.Sprintf("%q", t)
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = FormatValue(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprint(t)
	}
}
