package inspect

import (
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dshills/varlens/internal/memory"
	"github.com/dshills/varlens/internal/render"
	"github.com/dshills/varlens/internal/scope"
	"github.com/dshills/varlens/internal/typeinfo"
	"github.com/dshills/varlens/internal/value"
)

// Session inspects one target with one set of type metadata.
type Session struct {
	id           string
	registry     *typeinfo.Registry
	reader       *memory.Guarded
	materializer *value.Materializer
	renderer     *render.Renderer
	classifier   *scope.Classifier
	logger       *logrus.Logger

	// Options collected before construction.
	limits      value.Limits
	summarizers []render.Summarizer

	mu           sync.RWMutex
	closed       bool
	watches      []string
	watchResults []WatchResult
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *logrus.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithLimits sets the traversal limits.
func WithLimits(l value.Limits) Option {
	return func(s *Session) {
		s.limits = l
	}
}

// WithClassifier sets the scope classifier used for values without symbol
// metadata.
func WithClassifier(c *scope.Classifier) Option {
	return func(s *Session) {
		s.classifier = c
	}
}

// WithSummarizer adds a summarizer to the renderer.
func WithSummarizer(sum render.Summarizer) Option {
	return func(s *Session) {
		s.summarizers = append(s.summarizers, sum)
	}
}

// WithID overrides the generated session id.
func WithID(id string) Option {
	return func(s *Session) {
		s.id = id
	}
}

// NewSession creates a session over reg and r. The registry is sealed: the
// type metadata stays fixed for the session's lifetime.
func NewSession(reg *typeinfo.Registry, r memory.Reader, opts ...Option) (*Session, error) {
	if reg == nil {
		return nil, fmt.Errorf("%w: nil registry", ErrInvalidRequest)
	}
	if r == nil {
		return nil, fmt.Errorf("%w: nil reader", ErrInvalidRequest)
	}

	discard := logrus.New()
	discard.SetOutput(io.Discard)

	s := &Session{
		id:       uuid.NewString(),
		registry: reg,
		reader:   memory.Guard(r, memory.DefaultMaxRead),
		logger:   discard,
		limits:   value.DefaultLimits(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.classifier == nil {
		s.classifier = scope.NewClassifier(scope.WithRegions(s.reader))
	}

	reg.Seal()
	s.materializer = value.NewMaterializer(s.reader, reg.Arch(),
		value.WithLimits(s.limits),
		value.WithClassifier(s.classifier),
	)
	ropts := make([]render.Option, 0, len(s.summarizers))
	for _, sum := range s.summarizers {
		ropts = append(ropts, render.WithSummarizer(sum))
	}
	s.renderer = render.NewRenderer(ropts...)

	s.log().WithField("arch_ptr_size", reg.Arch().PtrSize).Debug("session opened")
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Registry returns the session's sealed registry.
func (s *Session) Registry() *typeinfo.Registry {
	return s.registry
}

// Limits returns the effective traversal limits.
func (s *Session) Limits() value.Limits {
	return s.materializer.Limits()
}

// Close ends the session. Later requests fail with ErrSessionClosed.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	s.closed = true
	s.watches = nil
	s.watchResults = nil
	s.log().Debug("session closed")
	return nil
}

// IsClosed reports whether Close was called.
func (s *Session) IsClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

func (s *Session) checkOpen() error {
	if s.IsClosed() {
		return ErrSessionClosed
	}
	return nil
}

func (s *Session) log() *logrus.Entry {
	return s.logger.WithField("session", s.id)
}
