package flash

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuffer_MapContract(t *testing.T) {
	ctx := context.Background()
	b := NewBuffer(newMapStore(), MintToken(), nil)

	empty, err := b.IsEmpty(ctx)
	require.NoError(t, err)
	assert.True(t, empty)

	require.NoError(t, b.Put(ctx, "name", "alice"))
	require.NoError(t, b.Put(ctx, "admin", true))

	v, ok, err := b.Get(ctx, "name")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "alice", v)

	has, err := b.ContainsKey(ctx, "admin")
	require.NoError(t, err)
	assert.True(t, has)

	has, err = b.ContainsValue(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, has)

	n, err := b.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	values, err := b.Values(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []any{"alice", true}, values)

	require.NoError(t, b.Remove(ctx, "name"))
	_, ok, err = b.Get(ctx, "name")
	require.NoError(t, err)
	assert.False(t, ok)

	removed, err := b.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	empty, err = b.IsEmpty(ctx)
	require.NoError(t, err)
	assert.True(t, empty)
}

func TestBuffer_NumbersCompareAfterCodec(t *testing.T) {
	ctx := context.Background()
	b := NewBuffer(newMapStore(), MintToken(), JSONCodec{})

	require.NoError(t, b.Put(ctx, "count", 3))
	has, err := b.ContainsValue(ctx, 3)
	require.NoError(t, err)
	assert.True(t, has)

	v, _, err := b.Get(ctx, "count")
	require.NoError(t, err)
	assert.Equal(t, float64(3), v)
}

func TestBuffer_TokensIsolated(t *testing.T) {
	ctx := context.Background()
	store := newMapStore()
	a := NewBuffer(store, MintToken(), nil)
	b := NewBuffer(store, MintToken(), nil)

	require.NoError(t, a.Put(ctx, "k", "from-a"))
	require.NoError(t, b.Put(ctx, "k", "from-b"))

	va, _, err := a.Get(ctx, "k")
	require.NoError(t, err)
	vb, _, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "from-a", va)
	assert.Equal(t, "from-b", vb)

	_, err = a.Clear(ctx)
	require.NoError(t, err)
	n, err := b.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestBuffer_SharedStoreVisibleAcrossInstances(t *testing.T) {
	ctx := context.Background()
	store := newMapStore()
	token := MintToken()
	writer := NewBuffer(store, token, nil)
	reader := NewBuffer(store, token, nil)

	require.NoError(t, writer.Put(ctx, "k", "v"))
	v, ok, err := reader.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestBuffer_DecodeFailure(t *testing.T) {
	ctx := context.Background()
	store := newMapStore()
	b := NewBuffer(store, MintToken(), nil)
	store.data[b.View().SessionKey("broken")] = []byte("{not json")

	_, _, err := b.Get(ctx, "broken")
	assert.Error(t, err)
}
