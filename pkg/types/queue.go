package types

import (
	"encoding/json"
	"errors"
)

// ActionType identifies the kind of intent a queue item replays against the
// server.
type ActionType string

const (
	ActionSale         ActionType = "SALE"
	ActionAdjustStock  ActionType = "ADJUST_STOCK"
	ActionAddProduct   ActionType = "ADD_PRODUCT"
	ActionOpenSession  ActionType = "OPEN_SESSION"
	ActionCloseSession ActionType = "CLOSE_SESSION"
)

// SyncStatus is the lifecycle state of a queue item. An item moves from
// pending to synced or failed exactly once; failed is terminal until an
// operator-triggered retry re-enqueues it.
type SyncStatus string

const (
	StatusPending SyncStatus = "pending"
	StatusSynced  SyncStatus = "synced"
	StatusFailed  SyncStatus = "failed"
)

// SyncQueueItem is one durable intent in the outbox. Items are created in
// the same local transaction as the optimistic rows they represent, mutated
// only by the push path, and retained forever for audit.
type SyncQueueItem struct {
	ID           string          `json:"id"`
	ActionType   ActionType      `json:"action_type"`
	Payload      json.RawMessage `json:"payload"`
	Timestamp    int64           `json:"timestamp"` // unix milliseconds at enqueue
	Status       SyncStatus      `json:"status"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

// Queue errors.
var (
	ErrQueueItemNotFailed = errors.New("only failed queue items can be retried")
)

// SalePayload reconstructs a checkout server-side. DeviceTransactionID lets
// the server reject a replay of the same checkout.
type SalePayload struct {
	DeviceTransactionID string            `json:"device_transaction_id"`
	TotalAmount         float64           `json:"total_amount"`
	Items               []SaleItemPayload `json:"items"`
	SessionID           string            `json:"session_id,omitempty"`
}

// SaleItemPayload is one line of a SalePayload.
type SaleItemPayload struct {
	ProductID string  `json:"product_id"`
	Quantity  int64   `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	LineTotal float64 `json:"line_total"`
}

// AddProductPayload carries a locally created product, including the
// client-generated ID so the server can map it stably.
type AddProductPayload struct {
	ID              string  `json:"id"`
	SKU             string  `json:"sku"`
	Name            string  `json:"name"`
	Description     string  `json:"description,omitempty"`
	Price           float64 `json:"price"`
	InitialQuantity int64   `json:"initial_quantity"`
}

// AdjustStockPayload is a relative inventory change for one product at the
// ambient outlet.
type AdjustStockPayload struct {
	ProductID      string `json:"product_id"`
	QuantityChange int64  `json:"quantity_change"`
}

// OpenSessionPayload opens a register session. The client-generated ID keeps
// the local optimistic row and the server row correlated.
type OpenSessionPayload struct {
	ID             string  `json:"id"`
	OutletID       string  `json:"outlet_id"`
	DeviceID       string  `json:"device_id,omitempty"`
	OpeningBalance float64 `json:"opening_balance"`
	OpenedAt       string  `json:"opened_at"`
	UserID         string  `json:"user_id"`
}

// CloseSessionPayload closes a register session with the counted balance.
type CloseSessionPayload struct {
	SessionID      string  `json:"session_id"`
	ClosingBalance float64 `json:"closing_balance"`
	ClosedAt       string  `json:"closed_at"`
}
