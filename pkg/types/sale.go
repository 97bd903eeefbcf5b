package types

import (
	"errors"
	"time"
)

// Sale is a checkout originating on a device. DeviceTransactionID is the
// client-generated idempotency key the server uses to detect retransmission
// of the same checkout.
type Sale struct {
	ID                  string     `json:"id"`
	TenantID            string     `json:"tenant_id"`
	OutletID            string     `json:"outlet_id"`
	DeviceID            string     `json:"device_id"`
	SessionID           string     `json:"session_id,omitempty"`
	DeviceTransactionID string     `json:"device_transaction_id"`
	TotalAmount         float64    `json:"total_amount"`
	VersionID           int64      `json:"version_id"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at,omitempty"`
	DeletedAt           *time.Time `json:"deleted_at,omitempty"`
}

// SaleItem is one line of a sale. It has no identity of its own beyond the
// owning sale.
type SaleItem struct {
	ID        string     `json:"id"`
	TenantID  string     `json:"tenant_id"`
	OutletID  string     `json:"outlet_id"`
	SaleID    string     `json:"sale_id"`
	ProductID string     `json:"product_id"`
	Quantity  int64      `json:"quantity"`
	UnitPrice float64    `json:"unit_price"`
	LineTotal float64    `json:"line_total"`
	VersionID int64      `json:"version_id"`
	CreatedAt time.Time  `json:"created_at,omitempty"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Checkout validation errors.
var (
	ErrEmptyCart         = errors.New("cart must contain at least one item")
	ErrUnknownProduct    = errors.New("unknown product in cart")
	ErrInvalidLineAmount = errors.New("line quantity must be positive")
)

// Deleted reports whether the row is a tombstone.
func (s *Sale) Deleted() bool { return s.DeletedAt != nil }
