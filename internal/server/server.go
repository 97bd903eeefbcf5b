// Package server is an in-memory implementation of the sync backend used
// for development and end-to-end tests. It applies the same rules a real
// backend would: a per-tenant version counter stamped on every accepted
// mutation, checkout replay detection through device transaction IDs, and
// one open register session per outlet.
package server

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bluecounts/pos/pkg/types"
)

// Server holds the mock backend state. All handlers run under one mutex;
// contention is irrelevant at mock scale and it keeps version stamping
// trivially serial.
type Server struct {
	token  string
	logger *zap.Logger

	mu      sync.Mutex
	tenants map[string]*tenantState
}

// tenantState is everything the backend knows about one tenant.
type tenantState struct {
	maxVersion int64

	products  map[string]*types.Product
	inventory map[string]*types.Inventory
	sales     map[string]*types.Sale
	saleItems map[string]*types.SaleItem
	sessions  map[string]*types.PosSession

	// device_transaction_id -> sale ID, for checkout replay detection.
	seenTransactions map[string]string
}

// NewServer creates a mock backend that accepts the given bearer token.
func NewServer(token string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		token:   token,
		logger:  logger,
		tenants: make(map[string]*tenantState),
	}
}

// Router builds the gin engine with all sync endpoints registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	e := gin.New()
	e.Use(gin.Recovery(), s.requireBearer)

	e.GET("/sync/pull", s.handlePull)
	e.POST("/sync", s.handlePush)
	e.POST("/sessions/open", s.handleOpenSession)
	e.POST("/sessions/:id/close", s.handleCloseSession)

	e.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	return e
}

func (s *Server) requireBearer(c *gin.Context) {
	if c.GetHeader("Authorization") != "Bearer "+s.token {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid bearer token"})
		return
	}
	c.Next()
}

// tenant returns the state for tenantID, creating it on first use.
// Callers must hold s.mu.
func (s *Server) tenant(tenantID string) *tenantState {
	ts, ok := s.tenants[tenantID]
	if !ok {
		ts = &tenantState{
			products:         make(map[string]*types.Product),
			inventory:        make(map[string]*types.Inventory),
			sales:            make(map[string]*types.Sale),
			saleItems:        make(map[string]*types.SaleItem),
			sessions:         make(map[string]*types.PosSession),
			seenTransactions: make(map[string]string),
		}
		s.tenants[tenantID] = ts
	}
	return ts
}

func (ts *tenantState) nextVersion() int64 {
	ts.maxVersion++
	return ts.maxVersion
}

// inventoryForProduct finds the inventory row for (outlet, product),
// creating a zero-quantity row when none exists.
func (ts *tenantState) inventoryForProduct(tenantID, outletID, productID string) *types.Inventory {
	for _, inv := range ts.inventory {
		if inv.OutletID == outletID && inv.ProductID == productID {
			return inv
		}
	}
	inv := &types.Inventory{
		ID:        newID(),
		TenantID:  tenantID,
		OutletID:  outletID,
		ProductID: productID,
	}
	ts.inventory[inv.ID] = inv
	return inv
}

// openSessionForOutlet returns the open session at outletID, if any.
func (ts *tenantState) openSessionForOutlet(outletID string) *types.PosSession {
	for _, sess := range ts.sessions {
		if sess.OutletID == outletID && sess.Status == types.SessionOpen {
			return sess
		}
	}
	return nil
}

// Seed loads a catalog with stock into a tenant, stamping fresh versions.
// Used by tests and the demo server.
func (s *Server) Seed(tenantID, outletID string, products []*types.Product, quantities map[string]int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := s.tenant(tenantID)
	for _, p := range products {
		row := *p
		row.TenantID = tenantID
		if row.ID == "" {
			row.ID = newID()
		}
		row.VersionID = ts.nextVersion()
		ts.products[row.ID] = &row

		inv := ts.inventoryForProduct(tenantID, outletID, row.ID)
		inv.Quantity = quantities[p.SKU]
		inv.VersionID = ts.nextVersion()
	}
	s.logger.Info("seeded tenant",
		zap.String("tenant_id", tenantID),
		zap.Int("products", len(products)))
}

func parseVersion(raw string) (int64, bool) {
	if raw == "" {
		return 0, true
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}
