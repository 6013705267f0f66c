package memory

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuard_NullNeverConsultsTarget(t *testing.T) {
	called := false
	g := Guard(ReaderFunc(func(addr Address, size int) ([]byte, error) {
		called = true
		return make([]byte, size), nil
	}), 0)

	_, err := g.ReadMemory(Null, 8)
	assert.Equal(t, Unmapped, ReasonOf(err))
	assert.False(t, called)
}

func TestGuard_SizeBounds(t *testing.T) {
	g := Guard(ReaderFunc(func(addr Address, size int) ([]byte, error) {
		return make([]byte, size), nil
	}), 16)

	_, err := g.ReadMemory(0x10, 17)
	assert.Error(t, err)

	_, err = g.ReadMemory(0x10, -1)
	assert.Error(t, err)

	data, err := g.ReadMemory(0x10, 0)
	require.NoError(t, err)
	assert.Empty(t, data)

	data, err = g.ReadMemory(0x10, 16)
	require.NoError(t, err)
	assert.Len(t, data, 16)
}

func TestGuard_RecoversPanics(t *testing.T) {
	g := Guard(ReaderFunc(func(addr Address, size int) ([]byte, error) {
		panic("backend exploded")
	}), 0)

	_, err := g.ReadMemory(0x10, 4)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFault))
}

func TestGuard_ShortReadAndForeignErrors(t *testing.T) {
	short := Guard(ReaderFunc(func(addr Address, size int) ([]byte, error) {
		return make([]byte, size-1), nil
	}), 0)
	_, err := short.ReadMemory(0x10, 4)
	assert.Equal(t, Unmapped, ReasonOf(err))

	foreign := Guard(ReaderFunc(func(addr Address, size int) ([]byte, error) {
		return nil, errors.New("io timeout")
	}), 0)
	_, err = foreign.ReadMemory(0x10, 4)
	var f *Fault
	require.True(t, errors.As(err, &f))
	assert.EqualError(t, f.Unwrap(), "io timeout")
}

func TestGuard_Unwraps(t *testing.T) {
	s := NewSnapshot()
	g := Guard(Guard(s, 0), 0)
	assert.Same(t, s, g.Inner())

	_, err := s.Map(0x1000, 8, RegionStack)
	require.NoError(t, err)
	kind, ok := g.RegionKindOf(0x1004)
	assert.True(t, ok)
	assert.Equal(t, RegionStack, kind)
}

func TestFault_Error(t *testing.T) {
	f := NewFault(0x20, 4, ProtectedPage)
	assert.Equal(t, "read 4 bytes at 0x20: ProtectedPage", f.Error())
	assert.Equal(t, "Unknown", FaultReason(0).String())
}
