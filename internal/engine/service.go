package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bluecounts/pos/internal/sqlite"
	"github.com/bluecounts/pos/pkg/types"
)

// Connectivity answers whether remote calls are worth attempting right now.
// The orchestrator implements it; tests substitute a stub.
type Connectivity interface {
	Online() bool
}

// Service is the optimistic write path. Every user action validates its
// input, applies a tentative local change, and enqueues the intent in one
// store transaction. Either everything lands or nothing does; the queue can
// never reference state the store does not hold.
type Service struct {
	store  *sqlite.Backend
	client *Client
	config types.Config
	conn   Connectivity
	logger *zap.Logger
}

// NewService creates the write path over an attached store. conn may be nil,
// in which case every action takes the offline route.
func NewService(store *sqlite.Backend, client *Client, config types.Config, conn Connectivity, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:  store,
		client: client,
		config: config,
		conn:   conn,
		logger: logger,
	}
}

func (s *Service) online() bool {
	return s.conn != nil && s.conn.Online()
}

// CartLine is one product with a quantity in a checkout request. Repeated
// product IDs are aggregated before the sale is built.
type CartLine struct {
	ProductID string
	Quantity  int64
}

// CheckoutResult is the locally committed sale.
type CheckoutResult struct {
	Sale    *types.Sale
	Items   []*types.SaleItem
	QueueID string
}

// Checkout records a sale entirely locally: the sale and its lines at
// version 0, a tentative inventory decrement per line, and a SALE queue
// entry, all in one transaction. No network round trip happens here even
// when online; the push that follows settles the sale with the server.
func (s *Service) Checkout(ctx context.Context, lines []CartLine) (*CheckoutResult, error) {
	if len(lines) == 0 {
		return nil, types.ErrEmptyCart
	}

	// Aggregate repeated products so one cart line maps to one sale item.
	quantities := make(map[string]int64)
	order := make([]string, 0, len(lines))
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("product %s: %w", line.ProductID, types.ErrInvalidLineAmount)
		}
		if _, seen := quantities[line.ProductID]; !seen {
			order = append(order, line.ProductID)
		}
		quantities[line.ProductID] += line.Quantity
	}

	now := time.Now().UTC()
	sale := &types.Sale{
		ID:                  sqlite.GenerateID(),
		TenantID:            s.config.TenantID,
		OutletID:            s.config.OutletID,
		DeviceID:            s.config.DeviceID,
		DeviceTransactionID: newDeviceTransactionID(now),
		CreatedAt:           now,
	}
	if open, err := s.store.OpenSessionForOutlet(s.config.OutletID); err == nil {
		sale.SessionID = open.ID
	} else if !errors.Is(err, types.ErrNotFound) {
		return nil, fmt.Errorf("resolving open session: %w", err)
	}

	var items []*types.SaleItem
	payload := types.SalePayload{DeviceTransactionID: sale.DeviceTransactionID, SessionID: sale.SessionID}
	for _, productID := range order {
		product, err := s.store.GetProduct(productID)
		if err != nil {
			if errors.Is(err, types.ErrNotFound) {
				return nil, fmt.Errorf("product %s: %w", productID, types.ErrUnknownProduct)
			}
			return nil, err
		}
		if product.Deleted() {
			return nil, fmt.Errorf("product %s: %w", productID, types.ErrUnknownProduct)
		}

		qty := quantities[productID]
		lineTotal := product.Price * float64(qty)
		items = append(items, &types.SaleItem{
			ID:        sqlite.GenerateID(),
			TenantID:  s.config.TenantID,
			OutletID:  s.config.OutletID,
			SaleID:    sale.ID,
			ProductID: productID,
			Quantity:  qty,
			UnitPrice: product.Price,
			LineTotal: lineTotal,
			CreatedAt: now,
		})
		payload.Items = append(payload.Items, types.SaleItemPayload{
			ProductID: productID,
			Quantity:  qty,
			UnitPrice: product.Price,
			LineTotal: lineTotal,
		})
		sale.TotalAmount += lineTotal
	}
	payload.TotalAmount = sale.TotalAmount

	var queueID string
	err := s.store.Transact(func(tx *sqlite.Tx) error {
		if err := tx.InsertSale(sale); err != nil {
			return err
		}
		for _, item := range items {
			if err := tx.InsertSaleItem(item); err != nil {
				return err
			}
			// Tentative decrement. A missing inventory row is tolerated;
			// the server's authoritative quantity arrives on the next pull.
			inv, err := tx.InventoryByKey(s.config.TenantID, s.config.OutletID, item.ProductID)
			switch {
			case err == nil:
				if err := tx.AdjustInventoryQuantity(inv.ID, -item.Quantity); err != nil {
					return err
				}
			case !errors.Is(err, types.ErrNotFound):
				return err
			}
		}
		queued, err := tx.Enqueue(types.ActionSale, payload)
		if err != nil {
			return err
		}
		queueID = queued.ID
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("recording sale: %w", err)
	}

	s.logger.Info("sale recorded",
		zap.String("sale_id", sale.ID),
		zap.String("device_transaction_id", sale.DeviceTransactionID),
		zap.Float64("total", sale.TotalAmount),
		zap.Int("lines", len(items)))
	return &CheckoutResult{Sale: sale, Items: items, QueueID: queueID}, nil
}

// AddProductInput is the user-entered product form.
type AddProductInput struct {
	Name            string
	SKU             string
	Description     string
	Price           float64
	InitialQuantity int64
}

// AddProduct creates a product with an initial stock level at the ambient
// outlet. Both rows are optimistic at version 0 until the server confirms
// them through a pull.
func (s *Service) AddProduct(ctx context.Context, in AddProductInput) (*types.Product, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.SKU = strings.TrimSpace(in.SKU)
	if in.Name == "" {
		return nil, types.ErrInvalidName
	}
	if in.SKU == "" {
		return nil, types.ErrInvalidSKU
	}
	if in.Price < 0 || math.IsNaN(in.Price) || math.IsInf(in.Price, 0) {
		return nil, types.ErrInvalidPrice
	}
	if in.InitialQuantity < 0 {
		return nil, types.ErrInvalidQuantity
	}
	if _, err := s.store.ProductBySKU(s.config.TenantID, in.SKU); err == nil {
		return nil, fmt.Errorf("sku %q: %w", in.SKU, types.ErrDuplicateSKU)
	} else if !errors.Is(err, types.ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	product := &types.Product{
		ID:          sqlite.GenerateID(),
		TenantID:    s.config.TenantID,
		SKU:         in.SKU,
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	payload := types.AddProductPayload{
		ID:              product.ID,
		SKU:             product.SKU,
		Name:            product.Name,
		Description:     product.Description,
		Price:           product.Price,
		InitialQuantity: in.InitialQuantity,
	}

	err := s.store.Transact(func(tx *sqlite.Tx) error {
		if err := tx.InsertProduct(product); err != nil {
			return err
		}
		if err := s.applyInventoryDelta(tx, product.ID, in.InitialQuantity, now); err != nil {
			return err
		}
		_, err := tx.Enqueue(types.ActionAddProduct, payload)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("recording product: %w", err)
	}

	s.logger.Info("product recorded",
		zap.String("product_id", product.ID),
		zap.String("sku", product.SKU),
		zap.Int64("initial_quantity", in.InitialQuantity))
	return product, nil
}

// AdjustStock applies a relative inventory change for one product at the
// ambient outlet and queues the same delta for the server.
func (s *Service) AdjustStock(ctx context.Context, productID string, change int64) error {
	if change == 0 {
		return types.ErrInvalidQuantity
	}
	product, err := s.store.GetProduct(productID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return fmt.Errorf("product %s: %w", productID, types.ErrUnknownProduct)
		}
		return err
	}
	if product.Deleted() {
		return fmt.Errorf("product %s: %w", productID, types.ErrUnknownProduct)
	}

	now := time.Now().UTC()
	err = s.store.Transact(func(tx *sqlite.Tx) error {
		if err := s.applyInventoryDelta(tx, productID, change, now); err != nil {
			return err
		}
		_, err := tx.Enqueue(types.ActionAdjustStock, types.AdjustStockPayload{
			ProductID:      productID,
			QuantityChange: change,
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("recording stock adjustment: %w", err)
	}

	s.logger.Info("stock adjustment recorded",
		zap.String("product_id", productID),
		zap.Int64("change", change))
	return nil
}

// applyInventoryDelta adjusts the existing inventory row for the logical key
// or seeds an optimistic row when none exists yet.
func (s *Service) applyInventoryDelta(tx *sqlite.Tx, productID string, delta int64, now time.Time) error {
	inv, err := tx.InventoryByKey(s.config.TenantID, s.config.OutletID, productID)
	switch {
	case err == nil:
		return tx.AdjustInventoryQuantity(inv.ID, delta)
	case errors.Is(err, types.ErrNotFound):
		return tx.InsertInventory(&types.Inventory{
			ID:        sqlite.GenerateID(),
			TenantID:  s.config.TenantID,
			OutletID:  s.config.OutletID,
			ProductID: productID,
			Quantity:  delta,
			CreatedAt: now,
			UpdatedAt: now,
		})
	default:
		return err
	}
}

// OpenSession opens a register session for the ambient outlet. When online
// it asks the server first so the session exists authoritatively from the
// start; any remote failure degrades to the offline route, an optimistic
// local row plus an OPEN_SESSION queue entry.
func (s *Service) OpenSession(ctx context.Context, openingBalance float64) (*types.PosSession, error) {
	if openingBalance < 0 || math.IsNaN(openingBalance) || math.IsInf(openingBalance, 0) {
		return nil, types.ErrInvalidBalance
	}
	if _, err := s.store.OpenSessionForOutlet(s.config.OutletID); err == nil {
		return nil, types.ErrSessionAlreadyOpen
	} else if !errors.Is(err, types.ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	session := &types.PosSession{
		TenantID:       s.config.TenantID,
		OutletID:       s.config.OutletID,
		UserID:         s.config.UserID,
		DeviceID:       s.config.DeviceID,
		OpeningBalance: openingBalance,
		Status:         types.SessionOpen,
		OpenedAt:       now,
	}

	if s.online() {
		resp, err := s.client.OpenSession(ctx, OpenSessionRequest{
			TenantID:       s.config.TenantID,
			OutletID:       s.config.OutletID,
			DeviceID:       s.config.DeviceID,
			OpeningBalance: openingBalance,
		})
		switch {
		case err == nil:
			session.ID = resp.SessionID
			session.VersionID = resp.VersionID
			if err := s.store.Transact(func(tx *sqlite.Tx) error {
				return tx.UpsertSession(session)
			}); err != nil {
				return nil, fmt.Errorf("recording session: %w", err)
			}
			s.logger.Info("session opened on server", zap.String("session_id", session.ID))
			return session, nil
		case errors.Is(err, ErrConflict):
			// Another device already holds the outlet open; the next pull
			// brings that session down. Queueing the intent would only
			// produce an item that can never succeed.
			return nil, types.ErrSessionAlreadyOpen
		default:
			s.logger.Warn("server open failed, falling back to queue", zap.Error(err))
		}
	}

	session.ID = sqlite.GenerateID()
	payload := types.OpenSessionPayload{
		ID:             session.ID,
		OutletID:       session.OutletID,
		DeviceID:       session.DeviceID,
		OpeningBalance: session.OpeningBalance,
		OpenedAt:       now.Format(time.RFC3339Nano),
		UserID:         session.UserID,
	}
	err := s.store.Transact(func(tx *sqlite.Tx) error {
		if err := tx.UpsertSession(session); err != nil {
			return err
		}
		_, err := tx.Enqueue(types.ActionOpenSession, payload)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("recording session: %w", err)
	}
	s.logger.Info("session opened locally", zap.String("session_id", session.ID))
	return session, nil
}

// CloseResult reports the reconciliation figures of a closed session.
type CloseResult struct {
	Session         *types.PosSession
	ExpectedBalance float64
	Variance        float64
}

// CloseSession closes the given session with the counted drawer balance.
// The expected balance is the opening float plus the session's sale totals;
// the variance is counted minus expected. When online the server computes
// both authoritatively; offline the local figures stand until sync.
func (s *Service) CloseSession(ctx context.Context, sessionID string, closingBalance float64) (*CloseResult, error) {
	if closingBalance < 0 || math.IsNaN(closingBalance) || math.IsInf(closingBalance, 0) {
		return nil, types.ErrInvalidBalance
	}
	session, err := s.store.GetSession(sessionID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, types.ErrNoOpenSession
		}
		return nil, err
	}
	if session.Status != types.SessionOpen {
		return nil, types.ErrSessionClosed
	}

	totals, err := s.store.SaleTotalsForSession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("summing session sales: %w", err)
	}
	expected := types.ExpectedSessionBalance(session.OpeningBalance, totals)
	variance := types.Variance(closingBalance, expected)
	now := time.Now().UTC()

	if s.online() {
		resp, err := s.client.CloseSession(ctx, sessionID, CloseSessionRequest{
			TenantID:       s.config.TenantID,
			ClosingBalance: closingBalance,
		})
		switch {
		case err == nil:
			expected = resp.ExpectedBalance
			variance = resp.Variance
			if err := s.store.Transact(func(tx *sqlite.Tx) error {
				return tx.CloseSessionRow(sessionID, closingBalance, expected, now, resp.VersionID)
			}); err != nil {
				return nil, fmt.Errorf("recording session close: %w", err)
			}
			s.logger.Info("session closed on server",
				zap.String("session_id", sessionID),
				zap.Float64("variance", variance))
			return s.closeResult(sessionID, expected, variance)
		case errors.Is(err, ErrConflict):
			// The server already holds this session closed; the next pull
			// brings its settled figures down.
			return nil, types.ErrSessionClosed
		default:
			s.logger.Warn("server close failed, falling back to queue", zap.Error(err))
		}
	}

	payload := types.CloseSessionPayload{
		SessionID:      sessionID,
		ClosingBalance: closingBalance,
		ClosedAt:       now.Format(time.RFC3339Nano),
	}
	err = s.store.Transact(func(tx *sqlite.Tx) error {
		if err := tx.CloseSessionRow(sessionID, closingBalance, expected, now, session.VersionID); err != nil {
			return err
		}
		_, err := tx.Enqueue(types.ActionCloseSession, payload)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("recording session close: %w", err)
	}
	s.logger.Info("session closed locally",
		zap.String("session_id", sessionID),
		zap.Float64("variance", variance))
	return s.closeResult(sessionID, expected, variance)
}

func (s *Service) closeResult(sessionID string, expected, variance float64) (*CloseResult, error) {
	session, err := s.store.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	return &CloseResult{Session: session, ExpectedBalance: expected, Variance: variance}, nil
}

// newDeviceTransactionID builds the checkout idempotency key. The wall-clock
// prefix keeps keys roughly sortable; the random suffix keeps two checkouts
// in the same millisecond distinct.
func newDeviceTransactionID(now time.Time) string {
	return fmt.Sprintf("tx-%d-%s", now.UnixMilli(), uuid.NewString()[:8])
}
