package buffer

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/exportflow/domain"
)

func openStore(t *testing.T, maxSize int) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "outbox.db"), "", maxSize)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func eventItem(t *testing.T, id string, p domain.Priority) Item {
	t.Helper()
	item, err := NewEventItem(domain.Event{
		ID:         id,
		Type:       domain.EventStateUpdated,
		Priority:   p,
		BusinessID: "biz",
		Payload:    map[string]any{"version": 1},
		Timestamp:  time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return item
}

func TestBatchDrainsUrgentFirst(t *testing.T) {
	store := openStore(t, 0)
	require.NoError(t, store.Enqueue(eventItem(t, "low", domain.PriorityLow)))
	require.NoError(t, store.Enqueue(eventItem(t, "critical", domain.PriorityCritical)))
	require.NoError(t, store.Enqueue(eventItem(t, "medium", domain.PriorityMedium)))

	items, err := store.GetBatch(10)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "critical", items[0].EventID)
	assert.Equal(t, "medium", items[1].EventID)
	assert.Equal(t, "low", items[2].EventID)

	event, err := items[0].Event()
	require.NoError(t, err)
	assert.Equal(t, domain.EventStateUpdated, event.Type)
	assert.Equal(t, "biz", event.BusinessID)
}

func TestRemoveAndRequeue(t *testing.T) {
	store := openStore(t, 0)
	require.NoError(t, store.Enqueue(eventItem(t, "a", domain.PriorityHigh)))
	require.NoError(t, store.Enqueue(eventItem(t, "b", domain.PriorityHigh)))

	items, err := store.GetBatch(1)
	require.NoError(t, err)
	require.Len(t, items, 1)
	first := items[0]
	first.Retries++
	require.NoError(t, store.Requeue(first))

	items, err = store.GetBatch(10)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "b", items[0].EventID)
	assert.Equal(t, 1, items[1].Retries)

	require.NoError(t, store.Remove(Item{EventID: items[1].EventID}))
	size, err := store.Size()
	require.NoError(t, err)
	assert.Equal(t, 1, size)

	// removing twice is harmless
	require.NoError(t, store.Remove(Item{EventID: items[1].EventID}))
}

func TestEnqueueKeepsOneCopyPerEvent(t *testing.T) {
	store := openStore(t, 0)
	first := eventItem(t, "a", domain.PriorityHigh)
	require.NoError(t, store.Enqueue(first))

	again := eventItem(t, "a", domain.PriorityHigh)
	again.Retries = 2
	require.NoError(t, store.Enqueue(again))

	items, err := store.GetBatch(10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 0, items[0].Retries)

	assert.ErrorIs(t, store.Enqueue(Item{}), ErrNoEventID)
}

func TestMaxSize(t *testing.T) {
	store := openStore(t, 1)
	require.NoError(t, store.Enqueue(eventItem(t, "a", domain.PriorityLow)))
	assert.ErrorIs(t, store.Enqueue(eventItem(t, "b", domain.PriorityLow)), ErrFull)
}

func TestCleanup(t *testing.T) {
	store := openStore(t, 0)
	old := eventItem(t, "old", domain.PriorityLow)
	old.Timestamp = time.Now().Add(-48 * time.Hour)
	require.NoError(t, store.Enqueue(old))
	require.NoError(t, store.Enqueue(eventItem(t, "fresh", domain.PriorityLow)))

	removed, err := store.Cleanup(time.Now().Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	size, err := store.Size()
	require.NoError(t, err)
	assert.Equal(t, 1, size)
}

func TestClosedStore(t *testing.T) {
	var store *Store
	assert.Error(t, store.Enqueue(Item{}))
	_, err := store.Size()
	assert.Error(t, err)
	assert.NoError(t, store.Close())
}
