package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bluecounts/pos/internal/sqlite"
	"github.com/bluecounts/pos/pkg/types"
)

type stubConn bool

func (s stubConn) Online() bool { return bool(s) }

// setupOfflineService builds a Service with no reachable server, the
// default operating mode for every local-first test.
func setupOfflineService(t *testing.T) (*Service, *sqlite.Backend) {
	t.Helper()
	store, cfg := setupStore(t, "")
	svc := NewService(store, NewClient("", "", nil), cfg, stubConn(false), nil)
	return svc, store
}

func seedProduct(t *testing.T, store *sqlite.Backend, id string, price float64, stock int64) {
	t.Helper()
	require.NoError(t, store.MergeProduct(&types.Product{
		ID: id, TenantID: testTenant, SKU: "SKU-" + id,
		Name: "Product " + id, Price: price, VersionID: 1,
		CreatedAt: time.Now().UTC(),
	}))
	require.NoError(t, store.MergeInventory(&types.Inventory{
		ID: "inv-" + id, TenantID: testTenant, OutletID: testOutlet,
		ProductID: id, Quantity: stock, VersionID: 1,
	}))
}

func TestCheckoutRecordsSaleLocally(t *testing.T) {
	svc, store := setupOfflineService(t)
	seedProduct(t, store, "p1", 2.50, 20)
	seedProduct(t, store, "p2", 10.00, 5)

	// p1 appears twice and must aggregate into one line.
	result, err := svc.Checkout(context.Background(), []CartLine{
		{ProductID: "p1", Quantity: 2},
		{ProductID: "p2", Quantity: 1},
		{ProductID: "p1", Quantity: 1},
	})
	require.NoError(t, err)

	assert.InDelta(t, 17.50, result.Sale.TotalAmount, 1e-9)
	assert.Zero(t, result.Sale.VersionID)
	assert.Regexp(t, `^tx-\d+-`, result.Sale.DeviceTransactionID)
	require.Len(t, result.Items, 2)
	assert.Equal(t, int64(3), result.Items[0].Quantity)

	inv1, err := store.InventoryByKey(testTenant, testOutlet, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(17), inv1.Quantity)
	inv2, err := store.InventoryByKey(testTenant, testOutlet, "p2")
	require.NoError(t, err)
	assert.Equal(t, int64(4), inv2.Quantity)

	pending, err := store.ListPending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, types.ActionSale, pending[0].ActionType)

	var payload types.SalePayload
	require.NoError(t, json.Unmarshal(pending[0].Payload, &payload))
	assert.Equal(t, result.Sale.DeviceTransactionID, payload.DeviceTransactionID)
	assert.InDelta(t, 17.50, payload.TotalAmount, 1e-9)
	require.Len(t, payload.Items, 2)
}

func TestCheckoutValidation(t *testing.T) {
	svc, store := setupOfflineService(t)
	seedProduct(t, store, "p1", 1.00, 10)

	_, err := svc.Checkout(context.Background(), nil)
	assert.ErrorIs(t, err, types.ErrEmptyCart)

	_, err = svc.Checkout(context.Background(), []CartLine{{ProductID: "p1", Quantity: 0}})
	assert.ErrorIs(t, err, types.ErrInvalidLineAmount)

	_, err = svc.Checkout(context.Background(), []CartLine{{ProductID: "ghost", Quantity: 1}})
	assert.ErrorIs(t, err, types.ErrUnknownProduct)

	// Nothing leaked into the store or the queue.
	pending, qerr := store.ListPending()
	require.NoError(t, qerr)
	assert.Empty(t, pending)
}

func TestCheckoutWithoutInventoryRowStillSucceeds(t *testing.T) {
	svc, store := setupOfflineService(t)
	require.NoError(t, store.MergeProduct(&types.Product{
		ID: "p1", TenantID: testTenant, SKU: "SKU-p1",
		Name: "Product p1", Price: 3.00, VersionID: 1,
	}))

	result, err := svc.Checkout(context.Background(), []CartLine{{ProductID: "p1", Quantity: 2}})
	require.NoError(t, err)
	assert.InDelta(t, 6.00, result.Sale.TotalAmount, 1e-9)
}

func TestAddProductSeedsInventory(t *testing.T) {
	svc, store := setupOfflineService(t)

	product, err := svc.AddProduct(context.Background(), AddProductInput{
		Name: "Espresso", SKU: "ESP-1", Price: 2.20, InitialQuantity: 50,
	})
	require.NoError(t, err)
	assert.Zero(t, product.VersionID)

	inv, err := store.InventoryByKey(testTenant, testOutlet, product.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), inv.Quantity)

	pending, err := store.ListPending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, types.ActionAddProduct, pending[0].ActionType)

	var payload types.AddProductPayload
	require.NoError(t, json.Unmarshal(pending[0].Payload, &payload))
	assert.Equal(t, product.ID, payload.ID)
	assert.Equal(t, int64(50), payload.InitialQuantity)
}

func TestAddProductValidation(t *testing.T) {
	svc, _ := setupOfflineService(t)
	ctx := context.Background()

	_, err := svc.AddProduct(ctx, AddProductInput{SKU: "X", Price: 1})
	assert.ErrorIs(t, err, types.ErrInvalidName)

	_, err = svc.AddProduct(ctx, AddProductInput{Name: "X", Price: 1})
	assert.ErrorIs(t, err, types.ErrInvalidSKU)

	_, err = svc.AddProduct(ctx, AddProductInput{Name: "X", SKU: "X", Price: -1})
	assert.ErrorIs(t, err, types.ErrInvalidPrice)

	_, err = svc.AddProduct(ctx, AddProductInput{Name: "X", SKU: "X", Price: 1, InitialQuantity: -1})
	assert.ErrorIs(t, err, types.ErrInvalidQuantity)

	_, err = svc.AddProduct(ctx, AddProductInput{Name: "First", SKU: "DUP", Price: 1})
	require.NoError(t, err)
	_, err = svc.AddProduct(ctx, AddProductInput{Name: "Second", SKU: "DUP", Price: 2})
	assert.ErrorIs(t, err, types.ErrDuplicateSKU)
}

func TestAdjustStock(t *testing.T) {
	svc, store := setupOfflineService(t)
	seedProduct(t, store, "p1", 1.00, 10)

	assert.ErrorIs(t, svc.AdjustStock(context.Background(), "p1", 0), types.ErrInvalidQuantity)
	assert.ErrorIs(t, svc.AdjustStock(context.Background(), "ghost", 5), types.ErrUnknownProduct)

	require.NoError(t, svc.AdjustStock(context.Background(), "p1", -4))

	inv, err := store.InventoryByKey(testTenant, testOutlet, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(6), inv.Quantity)

	pending, err := store.ListPending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, types.ActionAdjustStock, pending[0].ActionType)
}

func TestSessionLifecycleOffline(t *testing.T) {
	svc, store := setupOfflineService(t)
	seedProduct(t, store, "p1", 10.00, 50)
	ctx := context.Background()

	session, err := svc.OpenSession(ctx, 100.00)
	require.NoError(t, err)
	assert.Equal(t, types.SessionOpen, session.Status)

	_, err = svc.OpenSession(ctx, 50.00)
	assert.ErrorIs(t, err, types.ErrSessionAlreadyOpen)

	// A checkout during the session attaches to it.
	result, err := svc.Checkout(ctx, []CartLine{{ProductID: "p1", Quantity: 2}})
	require.NoError(t, err)
	assert.Equal(t, session.ID, result.Sale.SessionID)

	closed, err := svc.CloseSession(ctx, session.ID, 121.00)
	require.NoError(t, err)
	assert.InDelta(t, 120.00, closed.ExpectedBalance, 1e-9)
	assert.InDelta(t, 1.00, closed.Variance, 1e-9)
	assert.Equal(t, types.SessionClosed, closed.Session.Status)

	_, err = svc.CloseSession(ctx, session.ID, 121.00)
	assert.ErrorIs(t, err, types.ErrSessionClosed)

	// Open, sale, close: three queued intents in creation order.
	pending, err := store.ListPending()
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, types.ActionOpenSession, pending[0].ActionType)
	assert.Equal(t, types.ActionSale, pending[1].ActionType)
	assert.Equal(t, types.ActionCloseSession, pending[2].ActionType)
}

func TestSessionOpenPrefersServerWhenOnline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/sessions/open", r.URL.Path)
		var req OpenSessionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, testTenant, req.TenantID)
		assert.Equal(t, testOutlet, req.OutletID)
		json.NewEncoder(w).Encode(OpenSessionResponse{
			SessionID:      "srv-sess-1",
			OpeningBalance: req.OpeningBalance,
			VersionID:      12,
		})
	}))
	t.Cleanup(srv.Close)

	store, cfg := setupStore(t, srv.URL)
	svc := NewService(store, NewClient(srv.URL, cfg.Token, nil), cfg, stubConn(true), nil)

	session, err := svc.OpenSession(context.Background(), 75.00)
	require.NoError(t, err)
	assert.Equal(t, "srv-sess-1", session.ID)
	assert.Equal(t, int64(12), session.VersionID)

	// The server owned the open, so no intent was queued.
	pending, err := store.ListPending()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSessionOpenFallsBackToQueueOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	store, cfg := setupStore(t, srv.URL)
	svc := NewService(store, NewClient(srv.URL, cfg.Token, nil), cfg, stubConn(true), nil)

	session, err := svc.OpenSession(context.Background(), 75.00)
	require.NoError(t, err)
	assert.Equal(t, types.SessionOpen, session.Status)

	pending, err := store.ListPending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, types.ActionOpenSession, pending[0].ActionType)
}

func TestSessionOpenConflictIsSurfacedNotQueued(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"an open session already exists for this outlet"}`, http.StatusConflict)
	}))
	t.Cleanup(srv.Close)

	store, cfg := setupStore(t, srv.URL)
	svc := NewService(store, NewClient(srv.URL, cfg.Token, nil), cfg, stubConn(true), nil)

	// A business refusal must surface; queueing it would only produce an
	// item that can never succeed.
	_, err := svc.OpenSession(context.Background(), 75.00)
	assert.ErrorIs(t, err, types.ErrSessionAlreadyOpen)

	pending, err := store.ListPending()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSessionCloseConflictIsSurfacedNotQueued(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"session is already closed"}`, http.StatusConflict)
	}))
	t.Cleanup(srv.Close)

	store, cfg := setupStore(t, srv.URL)
	svc := NewService(store, NewClient(srv.URL, cfg.Token, nil), cfg, stubConn(true), nil)

	session := &types.PosSession{
		ID: "sess-1", TenantID: testTenant, OutletID: testOutlet,
		OpeningBalance: 30, Status: types.SessionOpen, OpenedAt: time.Now().UTC(),
	}
	require.NoError(t, store.Transact(func(tx *sqlite.Tx) error {
		return tx.UpsertSession(session)
	}))

	_, err := svc.CloseSession(context.Background(), session.ID, 30)
	assert.ErrorIs(t, err, types.ErrSessionClosed)

	// The local row is untouched; the next pull delivers the server's
	// settled figures.
	got, err := store.GetSession(session.ID)
	require.NoError(t, err)
	assert.Equal(t, types.SessionOpen, got.Status)

	pending, err := store.ListPending()
	require.NoError(t, err)
	assert.Empty(t, pending)
}
