package types

import (
	"errors"
	"time"
)

// Inventory tracks on-hand quantity for one product at one outlet. The
// logical key (tenant_id, outlet_id, product_id) must be unique; duplicate
// local rows sharing that key can arise from optimistic creation before the
// server-assigned row ID is known and are repaired during pull.
type Inventory struct {
	ID        string     `json:"id"`
	TenantID  string     `json:"tenant_id"`
	OutletID  string     `json:"outlet_id"`
	ProductID string     `json:"product_id"`
	Quantity  int64      `json:"quantity"`
	VersionID int64      `json:"version_id"`
	CreatedAt time.Time  `json:"created_at,omitempty"`
	UpdatedAt time.Time  `json:"updated_at,omitempty"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// ErrInvalidQuantity rejects zero or non-numeric quantity input before it
// reaches the store or the queue.
var ErrInvalidQuantity = errors.New("quantity must be a non-zero number")

// Deleted reports whether the row is a tombstone.
func (i *Inventory) Deleted() bool { return i.DeletedAt != nil }
