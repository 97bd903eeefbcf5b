// Sync queue table operations: the append-only outbox of pending mutations.
// Items are ordered by enqueue time, transition pending -> synced/failed
// exactly once, and are never deleted; they stay behind for audit.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bluecounts/pos/pkg/types"
)

const queueColumns = "id, action_type, payload, timestamp, status, error_message"

// Enqueue appends a pending intent inside the transaction, in the same
// commit as the optimistic rows it represents. The payload is marshaled to
// JSON; marshaling is purely local, so enqueueing can never fail because of
// network state.
func (t *Tx) Enqueue(action types.ActionType, payload any) (*types.SyncQueueItem, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s payload: %w", action, err)
	}
	item := &types.SyncQueueItem{
		ID:         GenerateID(),
		ActionType: action,
		Payload:    raw,
		Timestamp:  time.Now().UnixMilli(),
		Status:     types.StatusPending,
	}
	_, err = t.tx.Exec(
		"INSERT INTO sync_queue ("+queueColumns+") VALUES (?, ?, ?, ?, ?, NULL)",
		item.ID, string(item.ActionType), string(item.Payload), item.Timestamp, string(item.Status),
	)
	if err != nil {
		return nil, fmt.Errorf("enqueueing %s: %w", action, err)
	}
	return item, nil
}

// ListPending returns all pending queue items in original enqueue order.
func (b *Backend) ListPending() ([]*types.SyncQueueItem, error) {
	return b.listByStatus(string(types.StatusPending))
}

// ListQueue returns every queue item, newest last.
func (b *Backend) ListQueue() ([]*types.SyncQueueItem, error) {
	return b.listByStatus("")
}

func (b *Backend) listByStatus(status string) ([]*types.SyncQueueItem, error) {
	db, err := b.ready()
	if err != nil {
		return nil, err
	}

	query := "SELECT " + queueColumns + " FROM sync_queue"
	var args []any
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY timestamp ASC, id ASC"

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing queue: %w", err)
	}
	defer rows.Close()

	var items []*types.SyncQueueItem
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning queue item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating queue: %w", err)
	}
	return items, nil
}

// PendingCount returns the number of pending queue items.
func (b *Backend) PendingCount() (int64, error) {
	db, err := b.ready()
	if err != nil {
		return 0, err
	}
	var n int64
	if err := db.QueryRow(
		"SELECT COUNT(*) FROM sync_queue WHERE status = ?", string(types.StatusPending),
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting pending queue items: %w", err)
	}
	return n, nil
}

// GetQueueItem retrieves one queue item by ID.
func (b *Backend) GetQueueItem(id string) (*types.SyncQueueItem, error) {
	db, err := b.ready()
	if err != nil {
		return nil, err
	}
	row := db.QueryRow("SELECT "+queueColumns+" FROM sync_queue WHERE id = ?", id)
	item, err := scanQueueItem(row)
	if err == sql.ErrNoRows {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting queue item %s: %w", id, err)
	}
	return item, nil
}

// MarkSynced marks a pending item synced. Re-marking an already synced item
// is a no-op; marking an unknown item returns ErrNotFound.
func (b *Backend) MarkSynced(id string) error {
	db, err := b.ready()
	if err != nil {
		return err
	}
	if err := queueItemExists(db, id); err != nil {
		return err
	}
	_, err = db.Exec(
		"UPDATE sync_queue SET status = ?, error_message = NULL WHERE id = ? AND status = ?",
		string(types.StatusSynced), id, string(types.StatusPending),
	)
	if err != nil {
		return fmt.Errorf("marking queue item %s synced: %w", id, err)
	}
	return nil
}

// MarkFailed marks a pending item failed with the server-supplied message.
// Failed is terminal until Retry re-enqueues; re-marking is a no-op.
func (b *Backend) MarkFailed(id, message string) error {
	db, err := b.ready()
	if err != nil {
		return err
	}
	if err := queueItemExists(db, id); err != nil {
		return err
	}
	_, err = db.Exec(
		"UPDATE sync_queue SET status = ?, error_message = ? WHERE id = ? AND status = ?",
		string(types.StatusFailed), message, id, string(types.StatusPending),
	)
	if err != nil {
		return fmt.Errorf("marking queue item %s failed: %w", id, err)
	}
	return nil
}

// Retry flips a failed item back to pending so the next push picks it up.
// Only failed items can be retried.
func (b *Backend) Retry(id string) error {
	db, err := b.ready()
	if err != nil {
		return err
	}
	if err := queueItemExists(db, id); err != nil {
		return err
	}
	res, err := db.Exec(
		"UPDATE sync_queue SET status = ?, error_message = NULL WHERE id = ? AND status = ?",
		string(types.StatusPending), id, string(types.StatusFailed),
	)
	if err != nil {
		return fmt.Errorf("retrying queue item %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("retrying queue item %s: %w", id, err)
	}
	if n == 0 {
		return types.ErrQueueItemNotFailed
	}
	return nil
}

func queueItemExists(q querier, id string) error {
	var one int
	err := q.QueryRow("SELECT 1 FROM sync_queue WHERE id = ?", id).Scan(&one)
	if err == sql.ErrNoRows {
		return types.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("checking queue item %s: %w", id, err)
	}
	return nil
}

func scanQueueItem(r rowScanner) (*types.SyncQueueItem, error) {
	var item types.SyncQueueItem
	var action, status, payload string
	var errMsg sql.NullString
	if err := r.Scan(&item.ID, &action, &payload, &item.Timestamp, &status, &errMsg); err != nil {
		return nil, err
	}
	item.ActionType = types.ActionType(action)
	item.Status = types.SyncStatus(status)
	item.Payload = json.RawMessage(payload)
	item.ErrorMessage = errMsg.String
	return &item, nil
}
