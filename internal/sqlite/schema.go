// Package sqlite implements the durable local store for the POS client:
// entity tables, the outbound sync queue, and sync metadata, all backed by
// a single SQLite database file.
package sqlite

// Schema DDL for all tables. Entity tables mirror the server's row shape;
// deleted rows are kept as tombstones (deleted_at set), never removed.
const (
	createProducts = `CREATE TABLE IF NOT EXISTS products (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    sku TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    price REAL NOT NULL,
    version_id INTEGER NOT NULL DEFAULT 0,
    created_at TEXT,
    updated_at TEXT,
    deleted_at TEXT
);`

	createInventory = `CREATE TABLE IF NOT EXISTS inventory (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    outlet_id TEXT NOT NULL,
    product_id TEXT NOT NULL,
    quantity INTEGER NOT NULL DEFAULT 0,
    version_id INTEGER NOT NULL DEFAULT 0,
    created_at TEXT,
    updated_at TEXT,
    deleted_at TEXT
);`

	createSales = `CREATE TABLE IF NOT EXISTS sales (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    outlet_id TEXT NOT NULL,
    device_id TEXT NOT NULL,
    session_id TEXT,
    device_transaction_id TEXT NOT NULL,
    total_amount REAL NOT NULL,
    version_id INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    updated_at TEXT,
    deleted_at TEXT
);`

	createSaleItems = `CREATE TABLE IF NOT EXISTS sale_items (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    outlet_id TEXT NOT NULL,
    sale_id TEXT NOT NULL,
    product_id TEXT NOT NULL,
    quantity INTEGER NOT NULL,
    unit_price REAL NOT NULL,
    line_total REAL NOT NULL,
    version_id INTEGER NOT NULL DEFAULT 0,
    created_at TEXT,
    deleted_at TEXT
);`

	createPosSessions = `CREATE TABLE IF NOT EXISTS pos_sessions (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    outlet_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    device_id TEXT,
    opening_balance REAL NOT NULL,
    closing_balance REAL,
    expected_balance REAL,
    status TEXT NOT NULL,
    opened_at TEXT NOT NULL,
    closed_at TEXT,
    version_id INTEGER NOT NULL DEFAULT 0,
    deleted_at TEXT
);`

	createSyncQueue = `CREATE TABLE IF NOT EXISTS sync_queue (
    id TEXT PRIMARY KEY,
    action_type TEXT NOT NULL,
    payload TEXT NOT NULL,
    timestamp INTEGER NOT NULL,
    status TEXT NOT NULL,
    error_message TEXT
);`

	createSyncMeta = `CREATE TABLE IF NOT EXISTS sync_meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);`
)

// Index DDL for the lookups the pull merge and the optimistic write path
// perform. The inventory logical-key index is deliberately not unique:
// duplicate rows for one key are a repair condition handled during pull,
// not a constraint violation.
const (
	idxProductsTenant     = `CREATE INDEX IF NOT EXISTS idx_products_tenant ON products(tenant_id);`
	idxProductsTenantSKU  = `CREATE INDEX IF NOT EXISTS idx_products_tenant_sku ON products(tenant_id, sku);`
	idxInventoryKey       = `CREATE INDEX IF NOT EXISTS idx_inventory_key ON inventory(tenant_id, outlet_id, product_id);`
	idxSalesSession       = `CREATE INDEX IF NOT EXISTS idx_sales_session ON sales(session_id);`
	idxSalesDeviceTx      = `CREATE INDEX IF NOT EXISTS idx_sales_device_tx ON sales(tenant_id, device_id, device_transaction_id);`
	idxSaleItemsSale      = `CREATE INDEX IF NOT EXISTS idx_sale_items_sale ON sale_items(sale_id);`
	idxSessionsOutlet     = `CREATE INDEX IF NOT EXISTS idx_sessions_outlet_status ON pos_sessions(outlet_id, status);`
	idxQueueStatusOrdered = `CREATE INDEX IF NOT EXISTS idx_queue_status_timestamp ON sync_queue(status, timestamp);`
)

// schemaDDL lists all CREATE TABLE statements in dependency order.
var schemaDDL = []string{
	createProducts,
	createInventory,
	createSales,
	createSaleItems,
	createPosSessions,
	createSyncQueue,
	createSyncMeta,
}

// indexDDL lists all CREATE INDEX statements.
var indexDDL = []string{
	idxProductsTenant,
	idxProductsTenantSKU,
	idxInventoryKey,
	idxSalesSession,
	idxSalesDeviceTx,
	idxSaleItemsSale,
	idxSessionsOutlet,
	idxQueueStatusOrdered,
}
