package sqlite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bluecounts/pos/pkg/types"
)

func enqueueTest(t *testing.T, b *Backend, action types.ActionType, payload any) *types.SyncQueueItem {
	t.Helper()
	var item *types.SyncQueueItem
	require.NoError(t, b.Transact(func(tx *Tx) error {
		var err error
		item, err = tx.Enqueue(action, payload)
		return err
	}))
	return item
}

func TestEnqueueAndListPending(t *testing.T) {
	b := setupBackend(t)

	first := enqueueTest(t, b, types.ActionAdjustStock, types.AdjustStockPayload{ProductID: "p1", QuantityChange: 2})
	// Distinct timestamps keep the enqueue order observable.
	time.Sleep(2 * time.Millisecond)
	second := enqueueTest(t, b, types.ActionAdjustStock, types.AdjustStockPayload{ProductID: "p2", QuantityChange: -1})

	pending, err := b.ListPending()
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, first.ID, pending[0].ID)
	assert.Equal(t, second.ID, pending[1].ID)
	assert.Equal(t, types.StatusPending, pending[0].Status)

	n, err := b.PendingCount()
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestMarkSyncedIsIdempotent(t *testing.T) {
	b := setupBackend(t)
	item := enqueueTest(t, b, types.ActionAddProduct, types.AddProductPayload{ID: "p1", SKU: "S", Name: "N", Price: 1})

	require.NoError(t, b.MarkSynced(item.ID))
	got, err := b.GetQueueItem(item.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusSynced, got.Status)

	// Re-marking a synced item is a no-op.
	require.NoError(t, b.MarkSynced(item.ID))
	got, err = b.GetQueueItem(item.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusSynced, got.Status)

	assert.ErrorIs(t, b.MarkSynced("missing"), types.ErrNotFound)
}

func TestMarkFailedIsTerminal(t *testing.T) {
	b := setupBackend(t)
	item := enqueueTest(t, b, types.ActionSale, types.SalePayload{DeviceTransactionID: "tx-1", TotalAmount: 5})

	require.NoError(t, b.MarkFailed(item.ID, "duplicate device_transaction_id"))
	got, err := b.GetQueueItem(item.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, got.Status)
	assert.Equal(t, "duplicate device_transaction_id", got.ErrorMessage)

	// A failed item never re-enters the pending set on its own.
	pending, err := b.ListPending()
	require.NoError(t, err)
	assert.Empty(t, pending)

	// Marking synced after failed is a no-op: the transition happened once.
	require.NoError(t, b.MarkSynced(item.ID))
	got, err = b.GetQueueItem(item.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, got.Status)
}

func TestRetryReenqueuesFailedItem(t *testing.T) {
	b := setupBackend(t)
	item := enqueueTest(t, b, types.ActionSale, types.SalePayload{DeviceTransactionID: "tx-1", TotalAmount: 5})

	// Pending items cannot be retried.
	assert.ErrorIs(t, b.Retry(item.ID), types.ErrQueueItemNotFailed)

	require.NoError(t, b.MarkFailed(item.ID, "boom"))
	require.NoError(t, b.Retry(item.ID))

	got, err := b.GetQueueItem(item.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusPending, got.Status)
	assert.Empty(t, got.ErrorMessage)

	assert.ErrorIs(t, b.Retry("missing"), types.ErrNotFound)
}

func TestQueueSurvivesRollback(t *testing.T) {
	b := setupBackend(t)

	// A failed transaction leaves neither the entity rows nor the queue
	// entry behind.
	err := b.Transact(func(tx *Tx) error {
		if _, err := tx.Enqueue(types.ActionAdjustStock, types.AdjustStockPayload{ProductID: "p1", QuantityChange: 1}); err != nil {
			return err
		}
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	n, err := b.PendingCount()
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}
