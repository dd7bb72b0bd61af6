package store_test

import (
	"context"
	"encoding/json"
	"testing"

	"pasar/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *store.GormStore {
	t.Helper()
	st, err := store.OpenSQLite(":memory:")
	require.NoError(t, err)
	return st
}

func TestGormStore_RoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	var out record
	assert.ErrorIs(t, st.Get(ctx, "things/a", &out), store.ErrNotFound)

	require.NoError(t, st.Set(ctx, "things/a", record{Name: "a", Count: 1}))
	require.NoError(t, st.Get(ctx, "things/a", &out))
	assert.Equal(t, record{Name: "a", Count: 1}, out)

	require.NoError(t, st.Set(ctx, "things/a", record{Name: "a", Count: 2}))
	require.NoError(t, st.Get(ctx, "things/a", &out))
	assert.Equal(t, 2, out.Count)

	require.NoError(t, st.Remove(ctx, "things/a"))
	assert.ErrorIs(t, st.Get(ctx, "things/a", &out), store.ErrNotFound)
}

func TestGormStore_ListFiltersDescendants(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.Set(ctx, "warnings/u1/w1", record{Name: "w1"}))
	require.NoError(t, st.Set(ctx, "warnings/u1/w2", record{Name: "w2"}))
	require.NoError(t, st.Set(ctx, "warnings/u1/w2/deep", record{Name: "too deep"}))
	require.NoError(t, st.Set(ctx, "warnings/u2/w3", record{Name: "w3"}))

	var out []record
	require.NoError(t, st.List(ctx, "warnings/u1", &out))
	require.Len(t, out, 2)
	assert.Equal(t, "w1", out[0].Name)
	assert.Equal(t, "w2", out[1].Name)
}

func TestGormStore_UpdateFields(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, st.UpdateFields(ctx, "things/missing", map[string]any{"count": 1}), store.ErrNotFound)

	require.NoError(t, st.Set(ctx, "things/a", record{Name: "a", Count: 1}))
	require.NoError(t, st.UpdateFields(ctx, "things/a", map[string]any{"count": 5}))

	var out record
	require.NoError(t, st.Get(ctx, "things/a", &out))
	assert.Equal(t, "a", out.Name)
	assert.Equal(t, 5, out.Count)
}

func TestGormStore_TransactionCreatesAndAborts(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	committed, err := st.RunTransaction(ctx, "things/new", func(current json.RawMessage) (json.RawMessage, error) {
		assert.Nil(t, current)
		return json.Marshal(record{Name: "created", Count: 1})
	})
	require.NoError(t, err)
	assert.True(t, committed)

	var out record
	require.NoError(t, st.Get(ctx, "things/new", &out))
	assert.Equal(t, "created", out.Name)

	committed, err = st.RunTransaction(ctx, "things/new", func(current json.RawMessage) (json.RawMessage, error) {
		return nil, assert.AnError
	})
	assert.False(t, committed)
	assert.ErrorIs(t, err, assert.AnError)

	// The abort must roll back: record unchanged.
	require.NoError(t, st.Get(ctx, "things/new", &out))
	assert.Equal(t, 1, out.Count)
}
