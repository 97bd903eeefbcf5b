package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bluecounts/pos/pkg/types"
)

// Push submits the pending queue as one batch in creation order. Each item
// settles exactly once: the server's per-item verdict marks it synced or
// failed. A transport failure marks nothing, so every item stays pending
// for the next attempt. With no pending items Push is a no-op. Push never
// touches the watermark; the follow-up pull merges the server-assigned rows
// and advances it then.
func (o *Orchestrator) Push(ctx context.Context) error {
	defer o.refreshPendingCount()

	pending, err := o.store.ListPending()
	if err != nil {
		o.settle(err)
		return fmt.Errorf("listing pending items: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	o.setState(StatePushing)
	err = o.push(ctx, pending)
	o.settle(err)
	return err
}

func (o *Orchestrator) push(ctx context.Context, pending []*types.SyncQueueItem) error {
	req := PushRequest{
		TenantID: o.config.TenantID,
		OutletID: o.config.OutletID,
		DeviceID: o.config.DeviceID,
	}
	byID := make(map[string]*types.SyncQueueItem, len(pending))
	for _, item := range pending {
		byID[item.ID] = item
		req.Items = append(req.Items, PushItem{
			ID:         item.ID,
			ActionType: item.ActionType,
			Payload:    item.Payload,
		})
	}

	resp, err := o.client.Push(ctx, req)
	if err != nil {
		return err
	}

	synced, failed := 0, 0
	for _, result := range resp.Results {
		switch result.Status {
		case ResultAccepted, ResultSynced:
			if err := o.store.MarkSynced(result.QueueID); err != nil {
				return fmt.Errorf("marking %s synced: %w", result.QueueID, err)
			}
			synced++
		case ResultFailed:
			if err := o.store.MarkFailed(result.QueueID, result.Error); err != nil {
				return fmt.Errorf("marking %s failed: %w", result.QueueID, err)
			}
			if err := o.reconcileRejected(byID[result.QueueID]); err != nil {
				return err
			}
			o.logger.Warn("server rejected queued mutation",
				zap.String("queue_id", result.QueueID),
				zap.String("error", result.Error))
			failed++
		default:
			return fmt.Errorf("unknown result status %q for item %s", result.Status, result.QueueID)
		}
	}

	o.logger.Info("push complete",
		zap.Int("submitted", len(pending)),
		zap.Int("synced", synced),
		zap.Int("failed", failed),
		zap.Int64("version_id", resp.VersionID))
	return nil
}

// reconcileRejected undoes the optimistic state behind a definitively
// rejected item. A rejected OPEN_SESSION voids the local session row so it
// cannot shadow the session the server accepted instead.
func (o *Orchestrator) reconcileRejected(item *types.SyncQueueItem) error {
	if item == nil || item.ActionType != types.ActionOpenSession {
		return nil
	}
	var payload types.OpenSessionPayload
	if err := json.Unmarshal(item.Payload, &payload); err != nil {
		return fmt.Errorf("decoding rejected OPEN_SESSION payload: %w", err)
	}
	if err := o.store.TombstoneSession(payload.ID, time.Now().UTC(), 0); err != nil {
		return fmt.Errorf("voiding rejected session %s: %w", payload.ID, err)
	}
	o.logger.Info("voided rejected session open", zap.String("session_id", payload.ID))
	return nil
}

// RetryQueueItem re-enqueues one failed item and refreshes the pending
// count. Failed items never retry implicitly; this is the only way back.
func (o *Orchestrator) RetryQueueItem(id string) error {
	if err := o.store.Retry(id); err != nil {
		return err
	}
	o.refreshPendingCount()
	return nil
}
