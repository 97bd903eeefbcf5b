// Sale and sale_items table operations.
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/bluecounts/pos/pkg/types"
)

const (
	saleColumns     = "id, tenant_id, outlet_id, device_id, session_id, device_transaction_id, total_amount, version_id, created_at, updated_at, deleted_at"
	saleItemColumns = "id, tenant_id, outlet_id, sale_id, product_id, quantity, unit_price, line_total, version_id, created_at, deleted_at"
)

// InsertSale writes a locally created sale inside the transaction.
func (t *Tx) InsertSale(s *types.Sale) error {
	if s.ID == "" {
		return types.ErrInvalidID
	}
	_, err := t.tx.Exec(
		"INSERT INTO sales ("+saleColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		s.ID, s.TenantID, s.OutletID, s.DeviceID, nullStr(s.SessionID), s.DeviceTransactionID,
		s.TotalAmount, s.VersionID, timeToCol(s.CreatedAt), timeToCol(s.UpdatedAt), timePtrToCol(s.DeletedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting sale %s: %w", s.ID, err)
	}
	return nil
}

// InsertSaleItem writes one sale line inside the transaction.
func (t *Tx) InsertSaleItem(it *types.SaleItem) error {
	if it.ID == "" {
		return types.ErrInvalidID
	}
	_, err := t.tx.Exec(
		"INSERT INTO sale_items ("+saleItemColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		it.ID, it.TenantID, it.OutletID, it.SaleID, it.ProductID, it.Quantity,
		it.UnitPrice, it.LineTotal, it.VersionID, timeToCol(it.CreatedAt), timePtrToCol(it.DeletedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting sale item %s: %w", it.ID, err)
	}
	return nil
}

// MergeSale upserts an authoritative sale from a pull delta; the higher
// version wins.
func (b *Backend) MergeSale(s *types.Sale) error {
	db, err := b.ready()
	if err != nil {
		return err
	}
	_, err = db.Exec(
		`INSERT INTO sales (`+saleColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   tenant_id = excluded.tenant_id,
		   outlet_id = excluded.outlet_id,
		   device_id = excluded.device_id,
		   session_id = excluded.session_id,
		   device_transaction_id = excluded.device_transaction_id,
		   total_amount = excluded.total_amount,
		   version_id = excluded.version_id,
		   created_at = excluded.created_at,
		   updated_at = excluded.updated_at,
		   deleted_at = excluded.deleted_at
		 WHERE excluded.version_id >= sales.version_id`,
		s.ID, s.TenantID, s.OutletID, s.DeviceID, nullStr(s.SessionID), s.DeviceTransactionID,
		s.TotalAmount, s.VersionID, timeToCol(s.CreatedAt), timeToCol(s.UpdatedAt), timePtrToCol(s.DeletedAt),
	)
	if err != nil {
		return fmt.Errorf("merging sale %s: %w", s.ID, err)
	}
	return nil
}

// TombstoneSale records a server-signalled sale deletion in place.
func (b *Backend) TombstoneSale(id string, deletedAt time.Time, versionID int64) error {
	db, err := b.ready()
	if err != nil {
		return err
	}
	_, err = db.Exec(
		"UPDATE sales SET deleted_at = ?, version_id = ? WHERE id = ? AND version_id <= ?",
		timeToCol(deletedAt), versionID, id, versionID,
	)
	if err != nil {
		return fmt.Errorf("tombstoning sale %s: %w", id, err)
	}
	return nil
}

// MergeSaleItem upserts an authoritative sale line from a pull delta.
func (b *Backend) MergeSaleItem(it *types.SaleItem) error {
	db, err := b.ready()
	if err != nil {
		return err
	}
	_, err = db.Exec(
		`INSERT INTO sale_items (`+saleItemColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   tenant_id = excluded.tenant_id,
		   outlet_id = excluded.outlet_id,
		   sale_id = excluded.sale_id,
		   product_id = excluded.product_id,
		   quantity = excluded.quantity,
		   unit_price = excluded.unit_price,
		   line_total = excluded.line_total,
		   version_id = excluded.version_id,
		   created_at = excluded.created_at,
		   deleted_at = excluded.deleted_at
		 WHERE excluded.version_id >= sale_items.version_id`,
		it.ID, it.TenantID, it.OutletID, it.SaleID, it.ProductID, it.Quantity,
		it.UnitPrice, it.LineTotal, it.VersionID, timeToCol(it.CreatedAt), timePtrToCol(it.DeletedAt),
	)
	if err != nil {
		return fmt.Errorf("merging sale item %s: %w", it.ID, err)
	}
	return nil
}

// TombstoneSaleItem records a server-signalled sale line deletion in place.
func (b *Backend) TombstoneSaleItem(id string, deletedAt time.Time, versionID int64) error {
	db, err := b.ready()
	if err != nil {
		return err
	}
	_, err = db.Exec(
		"UPDATE sale_items SET deleted_at = ?, version_id = ? WHERE id = ? AND version_id <= ?",
		timeToCol(deletedAt), versionID, id, versionID,
	)
	if err != nil {
		return fmt.Errorf("tombstoning sale item %s: %w", id, err)
	}
	return nil
}

// GetSale retrieves a sale by ID, tombstoned or not.
func (b *Backend) GetSale(id string) (*types.Sale, error) {
	db, err := b.ready()
	if err != nil {
		return nil, err
	}
	row := db.QueryRow("SELECT "+saleColumns+" FROM sales WHERE id = ?", id)
	s, err := scanSale(row)
	if err == sql.ErrNoRows {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting sale %s: %w", id, err)
	}
	return s, nil
}

// SaleTotalsForSession returns the total_amount of every non-tombstoned
// sale recorded against the session, used when computing the expected
// closing balance.
func (b *Backend) SaleTotalsForSession(sessionID string) ([]float64, error) {
	db, err := b.ready()
	if err != nil {
		return nil, err
	}
	rows, err := db.Query(
		"SELECT total_amount FROM sales WHERE session_id = ? AND deleted_at IS NULL",
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing sale totals: %w", err)
	}
	defer rows.Close()

	var totals []float64
	for rows.Next() {
		var t float64
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scanning sale total: %w", err)
		}
		totals = append(totals, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sale totals: %w", err)
	}
	return totals, nil
}

// SaleItemsForSale returns the lines of one sale.
func (b *Backend) SaleItemsForSale(saleID string) ([]*types.SaleItem, error) {
	db, err := b.ready()
	if err != nil {
		return nil, err
	}
	rows, err := db.Query("SELECT "+saleItemColumns+" FROM sale_items WHERE sale_id = ?", saleID)
	if err != nil {
		return nil, fmt.Errorf("listing sale items: %w", err)
	}
	defer rows.Close()

	var items []*types.SaleItem
	for rows.Next() {
		it, err := scanSaleItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning sale item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sale items: %w", err)
	}
	return items, nil
}

func scanSale(r rowScanner) (*types.Sale, error) {
	var s types.Sale
	var sessionID sql.NullString
	var createdAt, updatedAt, deletedAt sql.NullString
	if err := r.Scan(&s.ID, &s.TenantID, &s.OutletID, &s.DeviceID, &sessionID,
		&s.DeviceTransactionID, &s.TotalAmount, &s.VersionID,
		&createdAt, &updatedAt, &deletedAt); err != nil {
		return nil, err
	}
	s.SessionID = sessionID.String
	var err error
	if s.CreatedAt, err = colToTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if s.UpdatedAt, err = colToTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	if s.DeletedAt, err = colToTimePtr(deletedAt); err != nil {
		return nil, fmt.Errorf("parsing deleted_at: %w", err)
	}
	return &s, nil
}

func scanSaleItem(r rowScanner) (*types.SaleItem, error) {
	var it types.SaleItem
	var createdAt, deletedAt sql.NullString
	if err := r.Scan(&it.ID, &it.TenantID, &it.OutletID, &it.SaleID, &it.ProductID,
		&it.Quantity, &it.UnitPrice, &it.LineTotal, &it.VersionID,
		&createdAt, &deletedAt); err != nil {
		return nil, err
	}
	var err error
	if it.CreatedAt, err = colToTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if it.DeletedAt, err = colToTimePtr(deletedAt); err != nil {
		return nil, fmt.Errorf("parsing deleted_at: %w", err)
	}
	return &it, nil
}

// nullStr maps the empty string to NULL for optional TEXT columns.
func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
