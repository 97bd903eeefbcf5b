// Inventory table operations. Inventory rows are keyed by id like every
// other entity, but carry a logical key (tenant_id, outlet_id, product_id)
// that must stay unique; the merge helper repairs duplicate rows for one
// logical key, which arise when a product was created optimistically before
// the server assigned the canonical row id.
package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/bluecounts/pos/pkg/types"
)

const inventoryColumns = "id, tenant_id, outlet_id, product_id, quantity, version_id, created_at, updated_at, deleted_at"

// InsertInventory writes a locally created inventory row inside the
// transaction.
func (t *Tx) InsertInventory(inv *types.Inventory) error {
	if inv.ID == "" {
		return types.ErrInvalidID
	}
	_, err := t.tx.Exec(
		"INSERT INTO inventory ("+inventoryColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		inv.ID, inv.TenantID, inv.OutletID, inv.ProductID, inv.Quantity, inv.VersionID,
		timeToCol(inv.CreatedAt), timeToCol(inv.UpdatedAt), timePtrToCol(inv.DeletedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting inventory %s: %w", inv.ID, err)
	}
	return nil
}

// AdjustInventoryQuantity applies a relative quantity change to one row
// inside the transaction.
func (t *Tx) AdjustInventoryQuantity(id string, delta int64) error {
	res, err := t.tx.Exec("UPDATE inventory SET quantity = quantity + ? WHERE id = ?", delta, id)
	if err != nil {
		return fmt.Errorf("adjusting inventory %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("adjusting inventory %s: %w", id, err)
	}
	if n == 0 {
		return types.ErrNotFound
	}
	return nil
}

// InventoryByKey finds the inventory row for a logical key inside the
// transaction. When duplicate rows exist the highest-version one wins.
func (t *Tx) InventoryByKey(tenantID, outletID, productID string) (*types.Inventory, error) {
	return inventoryByKey(t.tx, tenantID, outletID, productID)
}

// InventoryByKey finds the inventory row for (tenant_id, outlet_id,
// product_id). When duplicate rows exist the highest-version one wins.
// Returns ErrNotFound when no row carries the key.
func (b *Backend) InventoryByKey(tenantID, outletID, productID string) (*types.Inventory, error) {
	db, err := b.ready()
	if err != nil {
		return nil, err
	}
	return inventoryByKey(db, tenantID, outletID, productID)
}

func inventoryByKey(q querier, tenantID, outletID, productID string) (*types.Inventory, error) {
	row := q.QueryRow(
		"SELECT "+inventoryColumns+` FROM inventory
		 WHERE tenant_id = ? AND outlet_id = ? AND product_id = ?
		 ORDER BY version_id DESC LIMIT 1`,
		tenantID, outletID, productID,
	)
	inv, err := scanInventory(row)
	if err == sql.ErrNoRows {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting inventory for product %s: %w", productID, err)
	}
	return inv, nil
}

// MergeInventory applies one authoritative inventory row from a pull delta.
// Local rows sharing the logical key under a different id are deleted
// first; this silently heals duplicates and is never surfaced as an error.
// A tombstone row updates deleted_at and version_id in place; any other row
// is upserted with the higher version winning.
func (b *Backend) MergeInventory(inv *types.Inventory) error {
	return b.Transact(func(tx *Tx) error {
		_, err := tx.tx.Exec(
			"DELETE FROM inventory WHERE tenant_id = ? AND outlet_id = ? AND product_id = ? AND id != ?",
			inv.TenantID, inv.OutletID, inv.ProductID, inv.ID,
		)
		if err != nil {
			return fmt.Errorf("repairing duplicate inventory for product %s: %w", inv.ProductID, err)
		}

		if inv.DeletedAt != nil {
			_, err = tx.tx.Exec(
				"UPDATE inventory SET deleted_at = ?, version_id = ? WHERE id = ? AND version_id <= ?",
				timePtrToCol(inv.DeletedAt), inv.VersionID, inv.ID, inv.VersionID,
			)
			if err != nil {
				return fmt.Errorf("tombstoning inventory %s: %w", inv.ID, err)
			}
			return nil
		}

		_, err = tx.tx.Exec(
			`INSERT INTO inventory (`+inventoryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET
			   tenant_id = excluded.tenant_id,
			   outlet_id = excluded.outlet_id,
			   product_id = excluded.product_id,
			   quantity = excluded.quantity,
			   version_id = excluded.version_id,
			   created_at = excluded.created_at,
			   updated_at = excluded.updated_at,
			   deleted_at = excluded.deleted_at
			 WHERE excluded.version_id >= inventory.version_id`,
			inv.ID, inv.TenantID, inv.OutletID, inv.ProductID, inv.Quantity, inv.VersionID,
			timeToCol(inv.CreatedAt), timeToCol(inv.UpdatedAt), timePtrToCol(inv.DeletedAt),
		)
		if err != nil {
			return fmt.Errorf("merging inventory %s: %w", inv.ID, err)
		}
		return nil
	})
}

// GetInventory retrieves an inventory row by ID, tombstoned or not.
func (b *Backend) GetInventory(id string) (*types.Inventory, error) {
	db, err := b.ready()
	if err != nil {
		return nil, err
	}
	row := db.QueryRow("SELECT "+inventoryColumns+" FROM inventory WHERE id = ?", id)
	inv, err := scanInventory(row)
	if err == sql.ErrNoRows {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting inventory %s: %w", id, err)
	}
	return inv, nil
}

// ActiveInventory returns all non-tombstoned inventory rows for an outlet.
func (b *Backend) ActiveInventory(tenantID, outletID string) ([]*types.Inventory, error) {
	db, err := b.ready()
	if err != nil {
		return nil, err
	}
	rows, err := db.Query(
		"SELECT "+inventoryColumns+" FROM inventory WHERE tenant_id = ? AND outlet_id = ? AND deleted_at IS NULL",
		tenantID, outletID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing inventory: %w", err)
	}
	defer rows.Close()

	var items []*types.Inventory
	for rows.Next() {
		inv, err := scanInventory(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning inventory: %w", err)
		}
		items = append(items, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating inventory: %w", err)
	}
	return items, nil
}

func scanInventory(r rowScanner) (*types.Inventory, error) {
	var inv types.Inventory
	var createdAt, updatedAt, deletedAt sql.NullString
	if err := r.Scan(&inv.ID, &inv.TenantID, &inv.OutletID, &inv.ProductID, &inv.Quantity,
		&inv.VersionID, &createdAt, &updatedAt, &deletedAt); err != nil {
		return nil, err
	}
	var err error
	if inv.CreatedAt, err = colToTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if inv.UpdatedAt, err = colToTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	if inv.DeletedAt, err = colToTimePtr(deletedAt); err != nil {
		return nil, fmt.Errorf("parsing deleted_at: %w", err)
	}
	return &inv, nil
}
