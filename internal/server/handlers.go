package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bluecounts/pos/internal/engine"
	"github.com/bluecounts/pos/pkg/types"
)

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// handlePull returns every row with version_id above the client's
// watermark, tombstones included.
func (s *Server) handlePull(c *gin.Context) {
	tenantID := c.Query("tenant_id")
	if tenantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenant_id is required"})
		return
	}
	since, ok := parseVersion(c.Query("max_version_id"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "max_version_id must be a non-negative integer"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ts := s.tenant(tenantID)

	resp := engine.PullResponse{ServerMaxVersionID: ts.maxVersion}
	for _, p := range ts.products {
		if p.VersionID > since {
			resp.Tables.Products = append(resp.Tables.Products, p)
		}
	}
	for _, inv := range ts.inventory {
		if inv.VersionID > since {
			resp.Tables.Inventory = append(resp.Tables.Inventory, inv)
		}
	}
	for _, sale := range ts.sales {
		if sale.VersionID > since {
			resp.Tables.Sales = append(resp.Tables.Sales, sale)
		}
	}
	for _, item := range ts.saleItems {
		if item.VersionID > since {
			resp.Tables.SaleItems = append(resp.Tables.SaleItems, item)
		}
	}
	for _, sess := range ts.sessions {
		if sess.VersionID > since {
			resp.Tables.PosSessions = append(resp.Tables.PosSessions, sess)
		}
	}

	c.JSON(http.StatusOK, resp)
}

// handlePush applies a mutation batch in order and reports a per-item
// verdict. Items settle independently: one rejected item does not abort
// the batch.
func (s *Server) handlePush(c *gin.Context) {
	var req engine.PushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Warn("failed to bind push request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	if req.TenantID == "" || req.OutletID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenant_id and outlet_id are required"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ts := s.tenant(req.TenantID)

	resp := engine.PushResponse{}
	for _, item := range req.Items {
		result := engine.PushItemResult{QueueID: item.ID, Status: engine.ResultSynced}
		if err := s.applyItem(ts, req, item); err != nil {
			result.Status = engine.ResultFailed
			result.Error = err.Error()
			s.logger.Warn("rejected batch item",
				zap.String("queue_id", item.ID),
				zap.String("action_type", string(item.ActionType)),
				zap.Error(err))
		}
		resp.Results = append(resp.Results, result)
	}
	resp.VersionID = ts.maxVersion

	c.JSON(http.StatusOK, resp)
}

// handleOpenSession opens a register session directly, the online-first
// path of the client write path.
func (s *Server) handleOpenSession(c *gin.Context) {
	var req engine.OpenSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	if req.OutletID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "outlet_id is required"})
		return
	}
	if req.OpeningBalance < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "opening_balance must be zero or more"})
		return
	}
	tenantID := req.TenantID
	if tenantID == "" {
		tenantID = c.Query("tenant_id")
	}
	if tenantID == "" {
		tenantID = c.GetHeader("X-Tenant-ID")
	}
	if tenantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenant_id is required"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ts := s.tenant(tenantID)

	if open := ts.openSessionForOutlet(req.OutletID); open != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "an open session already exists for this outlet"})
		return
	}

	sess := &types.PosSession{
		ID:             newID(),
		TenantID:       tenantID,
		OutletID:       req.OutletID,
		DeviceID:       req.DeviceID,
		OpeningBalance: req.OpeningBalance,
		Status:         types.SessionOpen,
		OpenedAt:       now(),
		VersionID:      ts.nextVersion(),
	}
	ts.sessions[sess.ID] = sess

	c.JSON(http.StatusOK, engine.OpenSessionResponse{
		SessionID:      sess.ID,
		OpeningBalance: sess.OpeningBalance,
		VersionID:      sess.VersionID,
	})
}

// handleCloseSession closes a session and returns the authoritative
// expected balance and variance.
func (s *Server) handleCloseSession(c *gin.Context) {
	sessionID := c.Param("id")
	var req engine.CloseSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	if req.ClosingBalance < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "closing_balance must be zero or more"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var ts *tenantState
	var sess *types.PosSession
	if req.TenantID != "" {
		ts = s.tenant(req.TenantID)
		sess = ts.sessions[sessionID]
	} else {
		ts, sess = s.findSession(sessionID)
	}
	if sess == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	if sess.Status != types.SessionOpen {
		c.JSON(http.StatusConflict, gin.H{"error": "session is already closed"})
		return
	}

	expected, variance := ts.closeSession(sess, req.ClosingBalance, now())

	c.JSON(http.StatusOK, engine.CloseSessionResponse{
		ExpectedBalance: expected,
		Variance:        variance,
		VersionID:       sess.VersionID,
	})
}

// findSession locates a session across tenants. Callers must hold s.mu.
func (s *Server) findSession(sessionID string) (*tenantState, *types.PosSession) {
	for _, ts := range s.tenants {
		if sess, ok := ts.sessions[sessionID]; ok {
			return ts, sess
		}
	}
	return nil, nil
}
