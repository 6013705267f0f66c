package lua

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	lua "github.com/yuin/gopher-lua"
)

// DefaultExecutionTimeout bounds a single script load or summarizer call.
const DefaultExecutionTimeout = 100 * time.Millisecond

// State is a sandboxed Lua interpreter.
//
// gopher-lua's LState is not goroutine-safe; every method takes the state
// mutex.
type State struct {
	L *lua.LState

	mu      sync.Mutex
	timeout time.Duration
	logger  logrus.FieldLogger
	closed  bool
}

// StateOption configures a State.
type StateOption func(*State)

// WithExecutionTimeout bounds each load and call.
func WithExecutionTimeout(d time.Duration) StateOption {
	return func(s *State) {
		s.timeout = d
	}
}

// WithStateLogger receives the output of the Lua print function.
func WithStateLogger(l logrus.FieldLogger) StateOption {
	return func(s *State) {
		s.logger = l
	}
}

// NewState creates a sandboxed state.
func NewState(opts ...StateOption) *State {
	s := &State{
		timeout: DefaultExecutionTimeout,
		logger:  discardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.L = lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(s.L)
	installSandbox(s.L, s.logger)
	return s
}

// openSafeLibraries opens the libraries that cannot reach the host.
func openSafeLibraries(L *lua.LState) {
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.fn))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
}

// DoString runs a chunk.
func (s *State) DoString(name, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}
	return s.run(func() error {
		fn, err := s.L.Load(stringsReader(code), name)
		if err != nil {
			return err
		}
		s.L.Push(fn)
		return s.L.PCall(0, lua.MultRet, nil)
	})
}

// Call invokes fn with the argument built by arg and returns its first
// result. arg runs with the state locked.
func (s *State) Call(fn *lua.LFunction, arg func(L *lua.LState) lua.LValue) (lua.LValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return lua.LNil, ErrStateClosed
	}
	var ret lua.LValue = lua.LNil
	err := s.run(func() error {
		if err := s.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, arg(s.L)); err != nil {
			return err
		}
		ret = s.L.Get(-1)
		return nil
	})
	return ret, err
}

// RegisterModule installs a global table of Go functions.
func (s *State) RegisterModule(name string, funcs map[string]lua.LGFunction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}
	s.L.SetGlobal(name, s.L.SetFuncs(s.L.NewTable(), funcs))
	return nil
}

// run executes fn under the call timeout. The caller holds the mutex.
func (s *State) run(fn func() error) (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	s.L.SetContext(ctx)
	defer s.L.RemoveContext()

	top := s.L.GetTop()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
		s.L.SetTop(top)
		if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %v", ErrExecutionTimeout, err)
		}
	}()
	return fn()
}

// Close releases the interpreter. Later calls return ErrStateClosed.
func (s *State) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.L.Close()
	s.closed = true
	return nil
}

func discardLogger() *logrus.Logger {
	l := logrus.New()
	l.Out = io.Discard
	return l
}
