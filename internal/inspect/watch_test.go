package inspect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/varlens/internal/render"
)

func TestWatches(t *testing.T) {
	s := newProgram(t).session()

	require.NoError(t, s.AddWatch("globalInt"))
	require.NoError(t, s.AddWatch("manipulateLocals::localInt"))
	require.NoError(t, s.AddWatch("head->next->data"))
	assert.ErrorIs(t, s.AddWatch("head +"), ErrInvalidExpression)
	assert.Equal(t, []string{"globalInt", "manipulateLocals::localInt", "head->next->data"}, s.Watches())

	results, err := s.EvaluateWatches(ctx, &localsFrame)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, r := range results {
		require.NoError(t, r.Err, r.Expression)
	}
	assert.Equal(t, "globalInt = 10", render.Text(results[0].Node))
	assert.Equal(t, "manipulateLocals::localInt = 5", render.Text(results[1].Node))
	assert.Equal(t, "head->next->data = 2", render.Text(results[2].Node))

	// Without a frame the stack local fails on its own.
	results, err = s.EvaluateWatches(ctx, nil)
	require.NoError(t, err)
	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, ErrNoFrame)
	assert.Nil(t, results[1].Node)
	assert.NoError(t, results[2].Err)
	assert.Equal(t, results, s.WatchResults())

	require.NoError(t, s.RemoveWatch(1))
	assert.Equal(t, []string{"globalInt", "head->next->data"}, s.Watches())
	stored := s.WatchResults()
	require.Len(t, stored, 2)
	assert.Equal(t, "head->next->data", stored[1].Expression)

	assert.ErrorIs(t, s.RemoveWatch(2), ErrInvalidRequest)
	assert.ErrorIs(t, s.RemoveWatch(-1), ErrInvalidRequest)

	s.ClearWatches()
	assert.Empty(t, s.Watches())
	assert.Empty(t, s.WatchResults())
}

func TestWatches_CopiesAreIndependent(t *testing.T) {
	s := newProgram(t).session()
	require.NoError(t, s.AddWatch("globalInt"))

	w := s.Watches()
	w[0] = "changed"
	assert.Equal(t, []string{"globalInt"}, s.Watches())
}

func TestWatches_Closed(t *testing.T) {
	s := newProgram(t).session()
	require.NoError(t, s.AddWatch("globalInt"))
	require.NoError(t, s.Close())

	_, err := s.EvaluateWatches(ctx, nil)
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.Empty(t, s.Watches())
}
