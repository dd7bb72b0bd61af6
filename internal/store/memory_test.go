package store_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"pasar/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestMemoryStore_GetSet(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()

	var out record
	err := st.Get(ctx, "things/a", &out)
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, st.Set(ctx, "things/a", record{Name: "a", Count: 1}))
	require.NoError(t, st.Get(ctx, "things/a", &out))
	assert.Equal(t, record{Name: "a", Count: 1}, out)

	// Set overwrites.
	require.NoError(t, st.Set(ctx, "things/a", record{Name: "a", Count: 2}))
	require.NoError(t, st.Get(ctx, "things/a", &out))
	assert.Equal(t, 2, out.Count)
}

func TestMemoryStore_ListIsOneLevel(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, st.Set(ctx, "warnings/u1/w1", record{Name: "w1"}))
	require.NoError(t, st.Set(ctx, "warnings/u1/w2", record{Name: "w2"}))
	require.NoError(t, st.Set(ctx, "warnings/u2/w3", record{Name: "w3"}))
	require.NoError(t, st.Set(ctx, "warnings/u1", record{Name: "not a child"}))

	var out []record
	require.NoError(t, st.List(ctx, "warnings/u1", &out))
	require.Len(t, out, 2)
	assert.Equal(t, "w1", out[0].Name)
	assert.Equal(t, "w2", out[1].Name)

	// Listing a parent with no children yields an empty slice.
	require.NoError(t, st.List(ctx, "warnings/u3", &out))
	assert.Empty(t, out)
}

func TestMemoryStore_UpdateFields(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()

	err := st.UpdateFields(ctx, "things/missing", map[string]any{"count": 1})
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, st.Set(ctx, "things/a", record{Name: "a", Count: 1}))
	require.NoError(t, st.UpdateFields(ctx, "things/a", map[string]any{"count": 9}))

	var out record
	require.NoError(t, st.Get(ctx, "things/a", &out))
	assert.Equal(t, "a", out.Name) // untouched field survives
	assert.Equal(t, 9, out.Count)
}

func TestMemoryStore_Remove(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, st.Set(ctx, "things/a", record{Name: "a"}))
	require.NoError(t, st.Remove(ctx, "things/a"))

	var out record
	assert.ErrorIs(t, st.Get(ctx, "things/a", &out), store.ErrNotFound)

	// Removing an absent record is not an error.
	assert.NoError(t, st.Remove(ctx, "things/a"))
}

func TestMemoryStore_GenerateIDUnique(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, err := st.GenerateID(ctx, "things")
		require.NoError(t, err)
		require.NotEmpty(t, id)
		require.False(t, seen[id], "GenerateID returned a duplicate")
		seen[id] = true
	}
}

func TestMemoryStore_TransactionAbort(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, st.Set(ctx, "things/a", record{Name: "a", Count: 1}))

	committed, err := st.RunTransaction(ctx, "things/a", func(current json.RawMessage) (json.RawMessage, error) {
		return nil, assert.AnError
	})
	assert.False(t, committed)
	assert.ErrorIs(t, err, assert.AnError)

	// Aborted transaction leaves the record untouched.
	var out record
	require.NoError(t, st.Get(ctx, "things/a", &out))
	assert.Equal(t, 1, out.Count)
}

func TestMemoryStore_TransactionSeesAbsentRecord(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()

	committed, err := st.RunTransaction(ctx, "things/new", func(current json.RawMessage) (json.RawMessage, error) {
		assert.Nil(t, current)
		return json.Marshal(record{Name: "created"})
	})
	require.NoError(t, err)
	assert.True(t, committed)

	var out record
	require.NoError(t, st.Get(ctx, "things/new", &out))
	assert.Equal(t, "created", out.Name)
}

func TestMemoryStore_ConcurrentTransactionsSerialize(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, st.Set(ctx, "counters/c", record{Count: 0}))

	const writers = 50
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := st.RunTransaction(ctx, "counters/c", func(current json.RawMessage) (json.RawMessage, error) {
				var r record
				if err := json.Unmarshal(current, &r); err != nil {
					return nil, err
				}
				r.Count++
				return json.Marshal(r)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	var out record
	require.NoError(t, st.Get(ctx, "counters/c", &out))
	assert.Equal(t, writers, out.Count, "every increment must be applied exactly once")
}

func TestMemoryStore_ListenReceivesWrites(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()

	changes := make(chan string, 4)
	cancel, err := st.Listen(ctx, "adminNotifications", func(path string, rec json.RawMessage) {
		changes <- path
	})
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, st.Set(ctx, "adminNotifications/n1", record{Name: "n1"}))
	require.NoError(t, st.Set(ctx, "orders/o1", record{Name: "unrelated"}))

	select {
	case path := <-changes:
		assert.Equal(t, "adminNotifications/n1", path)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a change notification")
	}

	// The unrelated write must not be delivered.
	select {
	case path := <-changes:
		t.Fatalf("unexpected notification for %s", path)
	case <-time.After(100 * time.Millisecond):
	}

	// After cancel, no further deliveries.
	cancel()
	require.NoError(t, st.Set(ctx, "adminNotifications/n2", record{Name: "n2"}))
	select {
	case path := <-changes:
		t.Fatalf("notification after cancel for %s", path)
	case <-time.After(100 * time.Millisecond):
	}
}
