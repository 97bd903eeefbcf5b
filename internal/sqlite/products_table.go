// Product table operations. Products are server-owned master data: the
// merge helpers implement upsert-by-id where the higher version wins, so an
// optimistic local row (version 0) is naturally superseded on pull.
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/bluecounts/pos/pkg/types"
)

const productColumns = "id, tenant_id, sku, name, description, price, version_id, created_at, updated_at, deleted_at"

// InsertProduct writes a locally created product inside the transaction.
func (t *Tx) InsertProduct(p *types.Product) error {
	return insertProduct(t.tx, p)
}

func insertProduct(q querier, p *types.Product) error {
	if p.ID == "" {
		return types.ErrInvalidID
	}
	_, err := q.Exec(
		"INSERT INTO products ("+productColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		p.ID, p.TenantID, p.SKU, p.Name, p.Description, p.Price, p.VersionID,
		timeToCol(p.CreatedAt), timeToCol(p.UpdatedAt), timePtrToCol(p.DeletedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting product %s: %w", p.ID, err)
	}
	return nil
}

// MergeProduct upserts an authoritative row from a pull delta. A row whose
// stored version is higher than the incoming one is left untouched.
func (b *Backend) MergeProduct(p *types.Product) error {
	db, err := b.ready()
	if err != nil {
		return err
	}
	_, err = db.Exec(
		`INSERT INTO products (`+productColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   tenant_id = excluded.tenant_id,
		   sku = excluded.sku,
		   name = excluded.name,
		   description = excluded.description,
		   price = excluded.price,
		   version_id = excluded.version_id,
		   created_at = excluded.created_at,
		   updated_at = excluded.updated_at,
		   deleted_at = excluded.deleted_at
		 WHERE excluded.version_id >= products.version_id`,
		p.ID, p.TenantID, p.SKU, p.Name, p.Description, p.Price, p.VersionID,
		timeToCol(p.CreatedAt), timeToCol(p.UpdatedAt), timePtrToCol(p.DeletedAt),
	)
	if err != nil {
		return fmt.Errorf("merging product %s: %w", p.ID, err)
	}
	return nil
}

// TombstoneProduct records a server-signalled deletion: deleted_at and
// version_id are set, every other field is preserved. A missing row or a
// higher stored version makes this a no-op.
func (b *Backend) TombstoneProduct(id string, deletedAt time.Time, versionID int64) error {
	db, err := b.ready()
	if err != nil {
		return err
	}
	_, err = db.Exec(
		"UPDATE products SET deleted_at = ?, version_id = ? WHERE id = ? AND version_id <= ?",
		timeToCol(deletedAt), versionID, id, versionID,
	)
	if err != nil {
		return fmt.Errorf("tombstoning product %s: %w", id, err)
	}
	return nil
}

// GetProduct retrieves a product by ID, tombstoned or not.
func (b *Backend) GetProduct(id string) (*types.Product, error) {
	db, err := b.ready()
	if err != nil {
		return nil, err
	}
	row := db.QueryRow("SELECT "+productColumns+" FROM products WHERE id = ?", id)
	p, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting product %s: %w", id, err)
	}
	return p, nil
}

// ActiveProducts returns all non-tombstoned products for the tenant.
func (b *Backend) ActiveProducts(tenantID string) ([]*types.Product, error) {
	db, err := b.ready()
	if err != nil {
		return nil, err
	}
	rows, err := db.Query(
		"SELECT "+productColumns+" FROM products WHERE tenant_id = ? AND deleted_at IS NULL ORDER BY name ASC",
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	defer rows.Close()

	var products []*types.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating products: %w", err)
	}
	return products, nil
}

// CountProducts counts all product rows for the tenant, tombstones
// included. The pull path uses it to decide whether a full resync is
// needed.
func (b *Backend) CountProducts(tenantID string) (int64, error) {
	db, err := b.ready()
	if err != nil {
		return 0, err
	}
	var n int64
	if err := db.QueryRow("SELECT COUNT(*) FROM products WHERE tenant_id = ?", tenantID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting products: %w", err)
	}
	return n, nil
}

// ProductBySKU finds an active product by (tenant_id, sku).
// Returns ErrNotFound when no active product carries the SKU.
func (b *Backend) ProductBySKU(tenantID, sku string) (*types.Product, error) {
	db, err := b.ready()
	if err != nil {
		return nil, err
	}
	row := db.QueryRow(
		"SELECT "+productColumns+" FROM products WHERE tenant_id = ? AND sku = ? AND deleted_at IS NULL",
		tenantID, sku,
	)
	p, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting product by sku %s: %w", sku, err)
	}
	return p, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(r rowScanner) (*types.Product, error) {
	var p types.Product
	var description sql.NullString
	var createdAt, updatedAt, deletedAt sql.NullString
	if err := r.Scan(&p.ID, &p.TenantID, &p.SKU, &p.Name, &description, &p.Price,
		&p.VersionID, &createdAt, &updatedAt, &deletedAt); err != nil {
		return nil, err
	}
	p.Description = description.String
	var err error
	if p.CreatedAt, err = colToTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if p.UpdatedAt, err = colToTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	if p.DeletedAt, err = colToTimePtr(deletedAt); err != nil {
		return nil, fmt.Errorf("parsing deleted_at: %w", err)
	}
	return &p, nil
}
