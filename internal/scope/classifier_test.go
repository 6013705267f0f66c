package scope

import (
	"testing"

	"github.com/dshills/varlens/internal/memory"
	"github.com/dshills/varlens/internal/typeinfo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifier_SymbolWins(t *testing.T) {
	snap := memory.NewSnapshot()
	_, err := snap.Map(0x7000, 0x100, memory.RegionHeap)
	require.NoError(t, err)
	c := NewClassifier(WithRegions(snap))

	tests := []struct {
		storage typeinfo.Storage
		want    Scope
	}{
		{typeinfo.StorageGlobal, Global},
		{typeinfo.StorageStaticLocal, StaticLocal},
		{typeinfo.StorageStackLocal, StackLocal},
		{typeinfo.StorageRegister, StackLocal},
		{typeinfo.StorageUnknown, Heap},
	}
	for _, tt := range tests {
		t.Run(tt.storage.String(), func(t *testing.T) {
			sym := &typeinfo.Symbol{Name: "v", Storage: tt.storage}
			assert.Equal(t, tt.want, c.Classify(0x7010, sym))
		})
	}
}

func TestClassifier_AddressHeuristics(t *testing.T) {
	snap := memory.NewSnapshot()
	_, err := snap.Map(0x1000, 0x100, memory.RegionGlobal)
	require.NoError(t, err)
	_, err = snap.Map(0x2000, 0x100, memory.RegionOther)
	require.NoError(t, err)

	c := NewClassifier(
		WithRegions(snap),
		WithStack(0x7ff0, 0x8000),
		WithHeap(0x5000, 0x6000),
	)

	tests := []struct {
		name string
		addr memory.Address
		want Scope
	}{
		{"null", memory.Null, Unknown},
		{"stack bounds", 0x7ff8, StackLocal},
		{"stack end is exclusive", 0x8000, Unknown},
		{"heap bounds", 0x5000, Heap},
		{"global region", 0x1010, Global},
		{"other region", 0x2000, Unknown},
		{"nowhere", 0x9000, Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.addr, nil))
		})
	}
}

func TestClassifier_NoInformation(t *testing.T) {
	assert.Equal(t, Unknown, NewClassifier().Classify(0x1000, nil))

	var c *Classifier
	assert.Equal(t, Unknown, c.Classify(0x1000, nil))
	assert.Equal(t, Global, c.Classify(0x1000, &typeinfo.Symbol{Storage: typeinfo.StorageGlobal}))
}

func TestOwnershipOf(t *testing.T) {
	tests := []struct {
		kind    typeinfo.SmartKind
		rawNull bool
		want    Ownership
	}{
		{typeinfo.SmartUnique, false, OwnsTarget},
		{typeinfo.SmartUnique, true, MovedFrom},
		{typeinfo.SmartShared, false, OwnsTarget},
		{typeinfo.SmartShared, true, MovedFrom},
		{typeinfo.SmartWeak, false, Borrows},
		{typeinfo.SmartWeak, true, Borrows},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, OwnershipOf(tt.kind, tt.rawNull), "%s null=%v", tt.kind, tt.rawNull)
	}
}

func TestNames(t *testing.T) {
	assert.Equal(t, "StaticLocal", StaticLocal.String())
	assert.Equal(t, "Unknown", Scope(42).String())
	assert.Equal(t, "MovedFrom", MovedFrom.String())
	assert.Empty(t, None.String())
}
