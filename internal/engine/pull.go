package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Pull fetches the tenant delta and merges it into the local store. The
// watermark advances only after every table merged cleanly; any failure
// before that aborts the operation and leaves the watermark untouched, so
// the next pull re-fetches the same delta.
//
// A full pull (since version 0) happens when forceFull is set or when the
// tenant has no local product rows yet, which is how a fresh device
// bootstraps its catalog.
func (o *Orchestrator) Pull(ctx context.Context, forceFull bool) error {
	o.setState(StatePulling)
	err := o.pull(ctx, forceFull)
	o.settle(err)
	return err
}

func (o *Orchestrator) pull(ctx context.Context, forceFull bool) error {
	since := int64(0)
	if !forceFull {
		count, err := o.store.CountProducts(o.config.TenantID)
		if err != nil {
			return fmt.Errorf("checking local catalog: %w", err)
		}
		if count > 0 {
			since, err = o.store.Watermark()
			if err != nil {
				return fmt.Errorf("reading watermark: %w", err)
			}
		}
	}

	resp, err := o.client.Pull(ctx, o.config.TenantID, since)
	if err != nil {
		return err
	}

	tables := resp.Tables
	for _, p := range tables.Products {
		if p.DeletedAt != nil {
			err = o.store.TombstoneProduct(p.ID, *p.DeletedAt, p.VersionID)
		} else {
			err = o.store.MergeProduct(p)
		}
		if err != nil {
			return fmt.Errorf("merging product %s: %w", p.ID, err)
		}
	}
	for _, inv := range tables.Inventory {
		if err := o.store.MergeInventory(inv); err != nil {
			return fmt.Errorf("merging inventory %s: %w", inv.ID, err)
		}
	}
	for _, s := range tables.Sales {
		if s.DeletedAt != nil {
			err = o.store.TombstoneSale(s.ID, *s.DeletedAt, s.VersionID)
		} else {
			err = o.store.MergeSale(s)
		}
		if err != nil {
			return fmt.Errorf("merging sale %s: %w", s.ID, err)
		}
	}
	for _, it := range tables.SaleItems {
		if it.DeletedAt != nil {
			err = o.store.TombstoneSaleItem(it.ID, *it.DeletedAt, it.VersionID)
		} else {
			err = o.store.MergeSaleItem(it)
		}
		if err != nil {
			return fmt.Errorf("merging sale item %s: %w", it.ID, err)
		}
	}
	for _, sess := range tables.PosSessions {
		if sess.DeletedAt != nil {
			err = o.store.TombstoneSession(sess.ID, *sess.DeletedAt, sess.VersionID)
		} else {
			err = o.store.MergeSession(sess)
		}
		if err != nil {
			return fmt.Errorf("merging session %s: %w", sess.ID, err)
		}
	}

	if resp.ServerMaxVersionID > 0 {
		if err := o.store.AdvanceWatermark(resp.ServerMaxVersionID); err != nil {
			return fmt.Errorf("advancing watermark: %w", err)
		}
	}

	o.logger.Info("pull complete",
		zap.Int64("since", since),
		zap.Int64("server_max_version", resp.ServerMaxVersionID),
		zap.Int("products", len(tables.Products)),
		zap.Int("inventory", len(tables.Inventory)),
		zap.Int("sales", len(tables.Sales)),
		zap.Int("sale_items", len(tables.SaleItems)),
		zap.Int("sessions", len(tables.PosSessions)))
	return nil
}
