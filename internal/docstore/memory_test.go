package docstore

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopbooks/shopbooks/internal/shared"
)

type widget struct {
	ID     string  `json:"id"`
	ShopID string  `json:"shopId"`
	Size   float64 `json:"size"`
	Open   bool    `json:"open"`
}

func seedMemory(t *testing.T) *Memory {
	t.Helper()
	store := NewMemory()
	ctx := context.Background()
	docs := []widget{
		{ID: "a", ShopID: "shop-1", Size: 10, Open: true},
		{ID: "b", ShopID: "shop-1", Size: 25, Open: false},
		{ID: "c", ShopID: "shop-2", Size: 40, Open: true},
	}
	for _, d := range docs {
		require.NoError(t, store.Put(ctx, "widgets", d.ID, d))
	}
	return store
}

func decodeWidgets(t *testing.T, raws []json.RawMessage) []widget {
	t.Helper()
	out, err := DecodeAll[widget](raws)
	require.NoError(t, err)
	return out
}

func TestMemoryGetPutDelete(t *testing.T) {
	store := seedMemory(t)
	ctx := context.Background()

	var got widget
	require.NoError(t, store.Get(ctx, "widgets", "a", &got))
	assert.Equal(t, "shop-1", got.ShopID)
	assert.Equal(t, 10.0, got.Size)

	require.NoError(t, store.Delete(ctx, "widgets", "a"))
	err := store.Get(ctx, "widgets", "a", &got)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestMemoryGetMissing(t *testing.T) {
	store := NewMemory()
	var got widget
	err := store.Get(context.Background(), "widgets", "nope", &got)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestMemoryQueryEquality(t *testing.T) {
	store := seedMemory(t)

	raws, err := store.Query(context.Background(), "widgets", Eq("shopId", "shop-1"))
	require.NoError(t, err)
	found := decodeWidgets(t, raws)
	require.Len(t, found, 2)
	assert.Equal(t, "a", found[0].ID)
	assert.Equal(t, "b", found[1].ID)
}

func TestMemoryQueryOrdered(t *testing.T) {
	store := seedMemory(t)
	ctx := context.Background()

	raws, err := store.Query(ctx, "widgets", Where{Field: "size", Op: OpGreaterOrEqual, Value: 25.0})
	require.NoError(t, err)
	found := decodeWidgets(t, raws)
	require.Len(t, found, 2)
	assert.Equal(t, "b", found[0].ID)
	assert.Equal(t, "c", found[1].ID)

	raws, err = store.Query(ctx, "widgets", Where{Field: "size", Op: OpLess, Value: 25.0})
	require.NoError(t, err)
	found = decodeWidgets(t, raws)
	require.Len(t, found, 1)
	assert.Equal(t, "a", found[0].ID)
}

func TestMemoryQueryBoolean(t *testing.T) {
	store := seedMemory(t)

	raws, err := store.Query(context.Background(), "widgets", Eq("open", true))
	require.NoError(t, err)
	found := decodeWidgets(t, raws)
	require.Len(t, found, 2)
	assert.Equal(t, "a", found[0].ID)
	assert.Equal(t, "c", found[1].ID)
}

func TestMemoryQueryCombinedConditions(t *testing.T) {
	store := seedMemory(t)

	raws, err := store.Query(context.Background(), "widgets",
		Eq("shopId", "shop-1"),
		Where{Field: "size", Op: OpGreater, Value: 15.0})
	require.NoError(t, err)
	found := decodeWidgets(t, raws)
	require.Len(t, found, 1)
	assert.Equal(t, "b", found[0].ID)
}

func TestMemoryBatchAppliesAllOps(t *testing.T) {
	store := seedMemory(t)
	ctx := context.Background()

	batch := store.Batch()
	batch.Set("widgets", "d", widget{ID: "d", ShopID: "shop-3", Size: 5})
	batch.Update("widgets", "a", map[string]any{"shopId": "shop-9"})
	batch.Increment("widgets", "a", "size", 2.5)
	batch.Delete("widgets", "b")
	require.NoError(t, batch.Commit(ctx))

	var a widget
	require.NoError(t, store.Get(ctx, "widgets", "a", &a))
	assert.Equal(t, "shop-9", a.ShopID)
	assert.Equal(t, 12.5, a.Size)

	var d widget
	require.NoError(t, store.Get(ctx, "widgets", "d", &d))
	assert.Equal(t, "shop-3", d.ShopID)

	var b widget
	assert.ErrorIs(t, store.Get(ctx, "widgets", "b", &b), shared.ErrNotFound)
}

func TestMemoryBatchIncrementCreatesDocument(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	batch := store.Batch()
	batch.Update("balances", "acct_fy", map[string]any{"accountId": "acct"})
	batch.Increment("balances", "acct_fy", "balance", 150)
	require.NoError(t, batch.Commit(ctx))

	batch = store.Batch()
	batch.Increment("balances", "acct_fy", "balance", -50)
	require.NoError(t, batch.Commit(ctx))

	var doc map[string]any
	require.NoError(t, store.Get(ctx, "balances", "acct_fy", &doc))
	assert.Equal(t, 100.0, doc["balance"])
	assert.Equal(t, "acct", doc["accountId"])
}

func TestMemoryBatchMarshalFailureLeavesStoreUntouched(t *testing.T) {
	store := seedMemory(t)
	ctx := context.Background()

	batch := store.Batch()
	batch.Delete("widgets", "a")
	batch.Set("widgets", "bad", make(chan int))
	require.Error(t, batch.Commit(ctx))

	var a widget
	assert.NoError(t, store.Get(ctx, "widgets", "a", &a))
}
