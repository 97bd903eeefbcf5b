package types

import (
	"errors"
	"time"
)

// Product is master data owned by the server: a pull merge with a higher
// version ID always wins over local optimistic state. A product is unique
// per (tenant_id, sku) logically; the client records whatever the server
// confirms.
type Product struct {
	ID          string     `json:"id"`
	TenantID    string     `json:"tenant_id"`
	SKU         string     `json:"sku"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Price       float64    `json:"price"`
	VersionID   int64      `json:"version_id"`
	CreatedAt   time.Time  `json:"created_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at,omitempty"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

// Product validation errors.
var (
	ErrInvalidName  = errors.New("product name must not be empty")
	ErrInvalidSKU   = errors.New("product SKU must not be empty")
	ErrDuplicateSKU = errors.New("product SKU already in use")
	ErrInvalidPrice = errors.New("product price must be zero or more")
)

// Deleted reports whether the row is a tombstone.
func (p *Product) Deleted() bool { return p.DeletedAt != nil }
