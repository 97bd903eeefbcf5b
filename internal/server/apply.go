package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bluecounts/pos/internal/engine"
	"github.com/bluecounts/pos/pkg/types"
)

func now() time.Time { return time.Now().UTC() }

// applyItem replays one queued intent against tenant state. A returned
// error marks the item failed; it never aborts the rest of the batch.
// Callers must hold s.mu.
func (s *Server) applyItem(ts *tenantState, req engine.PushRequest, item engine.PushItem) error {
	switch item.ActionType {
	case types.ActionSale:
		var p types.SalePayload
		if err := json.Unmarshal(item.Payload, &p); err != nil {
			return fmt.Errorf("invalid SALE payload: %w", err)
		}
		return ts.applySale(req, p)
	case types.ActionAddProduct:
		var p types.AddProductPayload
		if err := json.Unmarshal(item.Payload, &p); err != nil {
			return fmt.Errorf("invalid ADD_PRODUCT payload: %w", err)
		}
		return ts.applyAddProduct(req, p)
	case types.ActionAdjustStock:
		var p types.AdjustStockPayload
		if err := json.Unmarshal(item.Payload, &p); err != nil {
			return fmt.Errorf("invalid ADJUST_STOCK payload: %w", err)
		}
		return ts.applyAdjustStock(req, p)
	case types.ActionOpenSession:
		var p types.OpenSessionPayload
		if err := json.Unmarshal(item.Payload, &p); err != nil {
			return fmt.Errorf("invalid OPEN_SESSION payload: %w", err)
		}
		return ts.applyOpenSession(req, p)
	case types.ActionCloseSession:
		var p types.CloseSessionPayload
		if err := json.Unmarshal(item.Payload, &p); err != nil {
			return fmt.Errorf("invalid CLOSE_SESSION payload: %w", err)
		}
		return ts.applyCloseSession(p)
	default:
		return fmt.Errorf("unknown action type %q", item.ActionType)
	}
}

// applySale materializes a checkout. A device transaction ID already seen
// is accepted silently without re-applying, which makes retransmission of
// the same checkout safe.
func (ts *tenantState) applySale(req engine.PushRequest, p types.SalePayload) error {
	if p.DeviceTransactionID == "" {
		return errors.New("device_transaction_id is required")
	}
	if _, seen := ts.seenTransactions[p.DeviceTransactionID]; seen {
		return nil
	}
	if len(p.Items) == 0 {
		return errors.New("sale has no items")
	}
	for _, line := range p.Items {
		if _, ok := ts.products[line.ProductID]; !ok {
			return fmt.Errorf("unknown product %s", line.ProductID)
		}
		if line.Quantity <= 0 {
			return fmt.Errorf("product %s: quantity must be positive", line.ProductID)
		}
	}

	sale := &types.Sale{
		ID:                  newID(),
		TenantID:            req.TenantID,
		OutletID:            req.OutletID,
		DeviceID:            req.DeviceID,
		SessionID:           p.SessionID,
		DeviceTransactionID: p.DeviceTransactionID,
		TotalAmount:         p.TotalAmount,
		VersionID:           ts.nextVersion(),
		CreatedAt:           now(),
	}
	ts.sales[sale.ID] = sale
	ts.seenTransactions[p.DeviceTransactionID] = sale.ID

	for _, line := range p.Items {
		item := &types.SaleItem{
			ID:        newID(),
			TenantID:  req.TenantID,
			OutletID:  req.OutletID,
			SaleID:    sale.ID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			LineTotal: line.LineTotal,
			VersionID: ts.nextVersion(),
			CreatedAt: sale.CreatedAt,
		}
		ts.saleItems[item.ID] = item

		inv := ts.inventoryForProduct(req.TenantID, req.OutletID, line.ProductID)
		inv.Quantity -= line.Quantity
		inv.VersionID = ts.nextVersion()
	}
	return nil
}

func (ts *tenantState) applyAddProduct(req engine.PushRequest, p types.AddProductPayload) error {
	if p.Name == "" || p.SKU == "" {
		return errors.New("name and sku are required")
	}
	if p.Price < 0 {
		return errors.New("price must be zero or more")
	}
	for _, existing := range ts.products {
		if existing.SKU == p.SKU && existing.DeletedAt == nil {
			return fmt.Errorf("sku %q already exists", p.SKU)
		}
	}

	id := p.ID
	if id == "" {
		id = newID()
	}
	ts.products[id] = &types.Product{
		ID:          id,
		TenantID:    req.TenantID,
		SKU:         p.SKU,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		VersionID:   ts.nextVersion(),
		CreatedAt:   now(),
	}

	inv := ts.inventoryForProduct(req.TenantID, req.OutletID, id)
	inv.Quantity += p.InitialQuantity
	inv.VersionID = ts.nextVersion()
	return nil
}

func (ts *tenantState) applyAdjustStock(req engine.PushRequest, p types.AdjustStockPayload) error {
	if p.QuantityChange == 0 {
		return errors.New("quantity_change must be non-zero")
	}
	if _, ok := ts.products[p.ProductID]; !ok {
		return fmt.Errorf("unknown product %s", p.ProductID)
	}

	inv := ts.inventoryForProduct(req.TenantID, req.OutletID, p.ProductID)
	inv.Quantity += p.QuantityChange
	inv.VersionID = ts.nextVersion()
	return nil
}

// applyOpenSession accepts a session opened offline, keeping the
// client-generated ID so the client's optimistic row converges in place.
func (ts *tenantState) applyOpenSession(req engine.PushRequest, p types.OpenSessionPayload) error {
	if p.ID == "" {
		return errors.New("session id is required")
	}
	if _, ok := ts.sessions[p.ID]; ok {
		return nil
	}
	if open := ts.openSessionForOutlet(p.OutletID); open != nil {
		return errors.New("an open session already exists for this outlet")
	}
	if p.OpeningBalance < 0 {
		return errors.New("opening_balance must be zero or more")
	}

	openedAt, err := time.Parse(time.RFC3339, p.OpenedAt)
	if err != nil {
		openedAt = now()
	}
	ts.sessions[p.ID] = &types.PosSession{
		ID:             p.ID,
		TenantID:       req.TenantID,
		OutletID:       p.OutletID,
		UserID:         p.UserID,
		DeviceID:       p.DeviceID,
		OpeningBalance: p.OpeningBalance,
		Status:         types.SessionOpen,
		OpenedAt:       openedAt,
		VersionID:      ts.nextVersion(),
	}
	return nil
}

func (ts *tenantState) applyCloseSession(p types.CloseSessionPayload) error {
	sess, ok := ts.sessions[p.SessionID]
	if !ok {
		return fmt.Errorf("unknown session %s", p.SessionID)
	}
	if sess.Status != types.SessionOpen {
		return nil
	}
	if p.ClosingBalance < 0 {
		return errors.New("closing_balance must be zero or more")
	}

	closedAt, err := time.Parse(time.RFC3339, p.ClosedAt)
	if err != nil {
		closedAt = now()
	}
	ts.closeSession(sess, p.ClosingBalance, closedAt)
	return nil
}

// closeSession settles a session: the expected balance is the opening
// float plus the non-deleted sale totals recorded against it.
func (ts *tenantState) closeSession(sess *types.PosSession, closingBalance float64, closedAt time.Time) (expected, variance float64) {
	var totals []float64
	for _, sale := range ts.sales {
		if sale.SessionID == sess.ID && sale.DeletedAt == nil {
			totals = append(totals, sale.TotalAmount)
		}
	}
	expected = types.ExpectedSessionBalance(sess.OpeningBalance, totals)
	variance = types.Variance(closingBalance, expected)

	sess.ClosingBalance = &closingBalance
	sess.ExpectedBalance = &expected
	sess.Status = types.SessionClosed
	sess.ClosedAt = &closedAt
	sess.VersionID = ts.nextVersion()
	return expected, variance
}
