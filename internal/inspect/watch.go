package inspect

import (
	"context"
	"fmt"

	"github.com/dshills/varlens/internal/render"
)

// WatchResult is the last evaluation of one watch expression.
type WatchResult struct {
	// Expression is the watched expression.
	Expression string

	// Node is the rendered value; nil when Err is set.
	Node *render.Node

	// Err is the evaluation failure, if any.
	Err error
}

// AddWatch adds a watch expression. The expression is parsed up front so
// syntax errors are reported immediately.
func (s *Session) AddWatch(expression string) error {
	if _, err := parseExpr(expression); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	s.watches = append(s.watches, expression)
	return nil
}

// RemoveWatch removes a watch expression by index.
func (s *Session) RemoveWatch(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.watches) {
		return fmt.Errorf("%w: watch index %d out of range", ErrInvalidRequest, index)
	}

	s.watches = append(s.watches[:index], s.watches[index+1:]...)
	if index < len(s.watchResults) {
		s.watchResults = append(s.watchResults[:index], s.watchResults[index+1:]...)
	}
	return nil
}

// ClearWatches removes all watch expressions.
func (s *Session) ClearWatches() {
	s.mu.Lock()
	s.watches = nil
	s.watchResults = nil
	s.mu.Unlock()
}

// Watches returns the current watch expressions.
func (s *Session) Watches() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]string, len(s.watches))
	copy(result, s.watches)
	return result
}

// WatchResults returns the last evaluated watch results.
func (s *Session) WatchResults() []WatchResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]WatchResult, len(s.watchResults))
	copy(result, s.watchResults)
	return result
}

// EvaluateWatches evaluates every watch expression in frame. Each failure
// is kept on its own result; the returned error is only set when the
// session is closed or ctx is done.
func (s *Session) EvaluateWatches(ctx context.Context, frame *Frame) ([]WatchResult, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	watches := s.Watches()

	results := make([]WatchResult, len(watches))
	for i, expression := range watches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		node, err := s.Evaluate(ctx, expression, frame)
		results[i] = WatchResult{Expression: expression, Node: node, Err: err}
	}

	s.mu.Lock()
	s.watchResults = results
	s.mu.Unlock()

	out := make([]WatchResult, len(results))
	copy(out, results)
	return out, nil
}
