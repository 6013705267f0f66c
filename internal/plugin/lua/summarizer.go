package lua

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/varlens/internal/value"
)

// Summarizers holds the summarizer functions registered by scripts. It
// implements render.Summarizer.
type Summarizers struct {
	state  *State
	logger logrus.FieldLogger
	depth  int

	stateOpts []StateOption

	mu    sync.RWMutex
	funcs map[string]*lua.LFunction
}

// Option configures Summarizers.
type Option func(*Summarizers)

// WithLogger receives script output and summarizer failures.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Summarizers) {
		s.logger = l
	}
}

// WithTableDepth bounds how far below the summarized value fields and
// pointer targets are exposed to scripts.
func WithTableDepth(depth int) Option {
	return func(s *Summarizers) {
		s.depth = depth
	}
}

// WithTimeout bounds each script load and summarizer call.
func WithTimeout(d time.Duration) Option {
	return func(s *Summarizers) {
		s.stateOpts = append(s.stateOpts, WithExecutionTimeout(d))
	}
}

// New creates an empty summarizer set with its own Lua state.
func New(opts ...Option) (*Summarizers, error) {
	s := &Summarizers{
		logger: discardLogger(),
		depth:  DefaultTableDepth,
		funcs:  make(map[string]*lua.LFunction),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.state = NewState(append([]StateOption{WithStateLogger(s.logger)}, s.stateOpts...)...)
	err := s.state.RegisterModule("varlens", map[string]lua.LGFunction{
		"summarizer": s.register,
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// register implements varlens.summarizer(typeName, fn).
func (s *Summarizers) register(L *lua.LState) int {
	name := L.CheckString(1)
	fn := L.CheckFunction(2)
	if name == "" {
		L.ArgError(1, ErrBadRegistration.Error()+": empty type name")
		return 0
	}
	s.mu.Lock()
	s.funcs[name] = fn
	s.mu.Unlock()
	return 0
}

// LoadString runs a script chunk; name identifies it in errors.
func (s *Summarizers) LoadString(name, code string) error {
	if err := s.state.DoString(name, code); err != nil {
		return &ScriptError{Path: name, Err: err}
	}
	return nil
}

// LoadFile runs the script at path.
func (s *Summarizers) LoadFile(path string) error {
	code, err := os.ReadFile(path)
	if err != nil {
		return &ScriptError{Path: path, Err: err}
	}
	return s.LoadString(path, string(code))
}

// LoadDir runs every *.lua file in dir in name order. A missing directory
// loads nothing.
func (s *Summarizers) LoadDir(dir string) error {
	paths, err := filepath.Glob(filepath.Join(dir, "*.lua"))
	if err != nil {
		return fmt.Errorf("listing scripts in %s: %w", dir, err)
	}
	sort.Strings(paths)
	for _, p := range paths {
		if err := s.LoadFile(p); err != nil {
			return err
		}
	}
	return nil
}

// Types returns the registered type names, sorted.
func (s *Summarizers) Types() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.funcs))
	for name := range s.funcs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Summarize implements render.Summarizer. Values are matched by declared
// type name first and by printed type second. Script failures are logged
// and decline the value.
func (s *Summarizers) Summarize(v *value.Value) (string, bool) {
	if v == nil || v.Type == nil || v.IsTerminal() {
		return "", false
	}
	fn, key := s.lookup(v)
	if fn == nil {
		return "", false
	}

	ret, err := s.state.Call(fn, func(L *lua.LState) lua.LValue {
		return valueTable(L, v, s.depth)
	})
	if err != nil {
		s.logger.WithError(err).WithField("type", key).Warn("summarizer failed")
		return "", false
	}
	switch r := ret.(type) {
	case lua.LString:
		return string(r), true
	case lua.LNumber, lua.LBool:
		return r.String(), true
	default:
		return "", false
	}
}

func (s *Summarizers) lookup(v *value.Value) (*lua.LFunction, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if v.Type.Name != "" {
		if fn, ok := s.funcs[v.Type.Name]; ok {
			return fn, v.Type.Name
		}
	}
	key := v.Type.String()
	return s.funcs[key], key
}

// Close releases the Lua state.
func (s *Summarizers) Close() error {
	return s.state.Close()
}
