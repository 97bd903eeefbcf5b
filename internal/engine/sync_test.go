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

const (
	testTenant = "tenant-1"
	testOutlet = "outlet-1"
	testDevice = "device-1"
	testToken  = "test-token"
)

func setupStore(t *testing.T, apiBase string) (*sqlite.Backend, types.Config) {
	t.Helper()
	cfg := types.Config{
		APIBase:  apiBase,
		TenantID: testTenant,
		OutletID: testOutlet,
		DeviceID: testDevice,
		UserID:   "user-1",
		Token:    testToken,
		DataDir:  t.TempDir(),
	}
	b := sqlite.NewBackend()
	require.NoError(t, b.Attach(cfg))
	t.Cleanup(func() { b.Detach() })
	return b, cfg
}

func setupOrchestrator(t *testing.T, handler http.Handler) (*Orchestrator, *sqlite.Backend) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	store, cfg := setupStore(t, srv.URL)
	o, err := NewOrchestrator(store, NewClient(srv.URL, cfg.Token, nil), cfg, nil)
	require.NoError(t, err)
	// MarkReachable avoids the reconnect cycle firing here;
	// TestReconnectTriggersSyncCycle covers that path on its own.
	o.MarkReachable(true)
	return o, store
}

func serverProduct(id string, version int64) *types.Product {
	return &types.Product{
		ID:        id,
		TenantID:  testTenant,
		SKU:       "SKU-" + id,
		Name:      "Product " + id,
		Price:     5.00,
		VersionID: version,
		CreatedAt: time.Now().UTC(),
	}
}

func pullHandler(t *testing.T, resp PullResponse, gotSince *[]string) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer "+testToken, r.Header.Get("Authorization"))
		if gotSince != nil {
			*gotSince = append(*gotSince, r.URL.Query().Get("max_version_id"))
		}
		require.Equal(t, testTenant, r.URL.Query().Get("tenant_id"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})
}

func TestPullMergesAndAdvancesWatermark(t *testing.T) {
	deletedAt := time.Now().UTC()
	resp := PullResponse{
		Tables: PullTables{
			Products: []*types.Product{
				serverProduct("p1", 3),
				serverProduct("p2", 4),
			},
			Inventory: []*types.Inventory{{
				ID: "inv1", TenantID: testTenant, OutletID: testOutlet,
				ProductID: "p1", Quantity: 10, VersionID: 5,
			}},
		},
		ServerMaxVersionID: 5,
	}
	resp.Tables.Products[1].DeletedAt = &deletedAt

	o, store := setupOrchestrator(t, pullHandler(t, resp, nil))
	// Seed p2 so the tombstone update has a row to hit.
	require.NoError(t, store.MergeProduct(serverProduct("p2", 1)))

	require.NoError(t, o.Pull(context.Background(), false))

	active, err := store.ActiveProducts(testTenant)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "p1", active[0].ID)

	inv, err := store.InventoryByKey(testTenant, testOutlet, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), inv.Quantity)

	watermark, err := store.Watermark()
	require.NoError(t, err)
	assert.Equal(t, int64(5), watermark)
	assert.Equal(t, StateIdle, o.Status().State)
}

func TestPullFullWhenCatalogEmpty(t *testing.T) {
	var gotSince []string
	resp := PullResponse{
		Tables:             PullTables{Products: []*types.Product{serverProduct("p1", 7)}},
		ServerMaxVersionID: 7,
	}
	o, _ := setupOrchestrator(t, pullHandler(t, resp, &gotSince))

	// Empty catalog: the pull falls back to version 0 regardless of watermark.
	require.NoError(t, o.Pull(context.Background(), false))
	// Catalog present: the next pull resumes from the watermark.
	require.NoError(t, o.Pull(context.Background(), false))

	require.Equal(t, []string{"0", "7"}, gotSince)
}

func TestPullFailureLeavesWatermark(t *testing.T) {
	o, store := setupOrchestrator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	err := o.Pull(context.Background(), false)
	require.Error(t, err)

	watermark, werr := store.Watermark()
	require.NoError(t, werr)
	assert.Zero(t, watermark)

	status := o.Status()
	assert.Equal(t, StateError, status.State)
	assert.NotEmpty(t, status.LastError)
}

func TestPushSettlesEachItemOnce(t *testing.T) {
	var got PushRequest
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		resp := PushResponse{VersionID: 9}
		for i, item := range got.Items {
			result := PushItemResult{QueueID: item.ID, Status: ResultSynced}
			if i == 1 {
				result.Status = ResultFailed
				result.Error = "insufficient stock"
			}
			resp.Results = append(resp.Results, result)
		}
		json.NewEncoder(w).Encode(resp)
	})
	o, store := setupOrchestrator(t, handler)

	var first, second string
	require.NoError(t, store.Transact(func(tx *sqlite.Tx) error {
		a, err := tx.Enqueue(types.ActionAdjustStock, types.AdjustStockPayload{ProductID: "p1", QuantityChange: 2})
		if err != nil {
			return err
		}
		b, err := tx.Enqueue(types.ActionAdjustStock, types.AdjustStockPayload{ProductID: "p2", QuantityChange: -5})
		if err != nil {
			return err
		}
		first, second = a.ID, b.ID
		return nil
	}))

	require.NoError(t, o.Push(context.Background()))

	require.Len(t, got.Items, 2)
	assert.Equal(t, testTenant, got.TenantID)
	assert.Equal(t, first, got.Items[0].ID)

	a, err := store.GetQueueItem(first)
	require.NoError(t, err)
	assert.Equal(t, types.StatusSynced, a.Status)

	b, err := store.GetQueueItem(second)
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, b.Status)
	assert.Equal(t, "insufficient stock", b.ErrorMessage)

	// Push leaves the watermark alone: nothing is merged locally until the
	// closing pull brings the server rows down.
	watermark, err := store.Watermark()
	require.NoError(t, err)
	assert.Zero(t, watermark)
	assert.Zero(t, o.Status().PendingCount)
}

func TestSyncCycleObservesPushedRows(t *testing.T) {
	var pushed bool
	var gotSince []string
	mux := http.NewServeMux()
	mux.HandleFunc("/sync/pull", func(w http.ResponseWriter, r *http.Request) {
		gotSince = append(gotSince, r.URL.Query().Get("max_version_id"))
		resp := PullResponse{
			Tables:             PullTables{Products: []*types.Product{serverProduct("p1", 3)}},
			ServerMaxVersionID: 3,
		}
		if pushed {
			resp.Tables.Products = append(resp.Tables.Products, serverProduct("p2", 9))
			resp.ServerMaxVersionID = 9
		}
		json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/sync", func(w http.ResponseWriter, r *http.Request) {
		var req PushRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		pushed = true
		resp := PushResponse{VersionID: 9}
		for _, item := range req.Items {
			resp.Results = append(resp.Results, PushItemResult{QueueID: item.ID, Status: ResultSynced})
		}
		json.NewEncoder(w).Encode(resp)
	})
	o, store := setupOrchestrator(t, mux)

	require.NoError(t, store.Transact(func(tx *sqlite.Tx) error {
		_, err := tx.Enqueue(types.ActionAddProduct, types.AddProductPayload{ID: "p2", SKU: "S2", Name: "Two", Price: 1})
		return err
	}))

	require.NoError(t, o.SyncCycle(context.Background(), false))

	// The closing pull resumes from the first pull's watermark, not the
	// push verdict, so the rows the push created are still above it.
	require.Equal(t, []string{"0", "3"}, gotSince)

	got, err := store.GetProduct("p2")
	require.NoError(t, err)
	assert.Equal(t, int64(9), got.VersionID)

	watermark, err := store.Watermark()
	require.NoError(t, err)
	assert.Equal(t, int64(9), watermark)
}

func TestPushTransportFailureKeepsItemsPending(t *testing.T) {
	o, store := setupOrchestrator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))

	require.NoError(t, store.Transact(func(tx *sqlite.Tx) error {
		_, err := tx.Enqueue(types.ActionAdjustStock, types.AdjustStockPayload{ProductID: "p1", QuantityChange: 1})
		return err
	}))

	require.Error(t, o.Push(context.Background()))

	pending, err := store.ListPending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, int64(1), o.Status().PendingCount)
}

func TestPushWithEmptyQueueIsNoOp(t *testing.T) {
	o, _ := setupOrchestrator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}))
	require.NoError(t, o.Push(context.Background()))
	assert.Equal(t, StateIdle, o.Status().State)
}

func TestSyncCycleRefusesOffline(t *testing.T) {
	store, cfg := setupStore(t, "http://127.0.0.1:0")
	o, err := NewOrchestrator(store, NewClient(cfg.APIBase, cfg.Token, nil), cfg, nil)
	require.NoError(t, err)

	assert.False(t, o.Online())
	assert.ErrorIs(t, o.SyncCycle(context.Background(), false), ErrOffline)
}

func TestSimulateOfflineOverridesReachability(t *testing.T) {
	o, store := setupOrchestrator(t, pullHandler(t, PullResponse{}, nil))

	require.True(t, o.Online())
	require.NoError(t, o.SetSimulateOffline(true))
	assert.False(t, o.Online())
	assert.ErrorIs(t, o.SyncCycle(context.Background(), false), ErrOffline)

	// The override is persisted, so a fresh orchestrator restores it.
	o2, err := NewOrchestrator(store, nil, store.Config(), nil)
	require.NoError(t, err)
	assert.True(t, o2.Status().SimulateOff)
}

func TestReconnectTriggersSyncCycle(t *testing.T) {
	pulls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pulls++
		json.NewEncoder(w).Encode(PullResponse{})
	}))
	t.Cleanup(srv.Close)

	store, cfg := setupStore(t, srv.URL)
	o, err := NewOrchestrator(store, NewClient(srv.URL, cfg.Token, nil), cfg, nil)
	require.NoError(t, err)

	o.SetReachable(context.Background(), true)
	// Pull, empty push, pull again.
	assert.Equal(t, 2, pulls)

	// Already online: no new cycle.
	o.SetReachable(context.Background(), true)
	assert.Equal(t, 2, pulls)

	o.SetReachable(context.Background(), false)
	assert.False(t, o.Online())
}

func TestRejectedSessionOpenIsVoided(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req PushRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		resp := PushResponse{VersionID: 4}
		for _, item := range req.Items {
			resp.Results = append(resp.Results, PushItemResult{
				QueueID: item.ID,
				Status:  ResultFailed,
				Error:   "an open session already exists for this outlet",
			})
		}
		json.NewEncoder(w).Encode(resp)
	})
	o, store := setupOrchestrator(t, handler)

	session := &types.PosSession{
		ID: "local-sess", TenantID: testTenant, OutletID: testOutlet,
		OpeningBalance: 40, Status: types.SessionOpen, OpenedAt: time.Now().UTC(),
	}
	require.NoError(t, store.Transact(func(tx *sqlite.Tx) error {
		if err := tx.UpsertSession(session); err != nil {
			return err
		}
		_, err := tx.Enqueue(types.ActionOpenSession, types.OpenSessionPayload{
			ID: session.ID, OutletID: testOutlet, OpeningBalance: 40,
		})
		return err
	}))

	require.NoError(t, o.Push(context.Background()))

	item, err := store.ListQueue()
	require.NoError(t, err)
	require.Len(t, item, 1)
	assert.Equal(t, types.StatusFailed, item[0].Status)

	// The optimistic row is voided so it cannot shadow the session the
	// server accepted from another device.
	got, err := store.GetSession(session.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.DeletedAt)

	_, err = store.OpenSessionForOutlet(testOutlet)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestRetryQueueItemRequiresFailedStatus(t *testing.T) {
	o, store := setupOrchestrator(t, http.NotFoundHandler())

	var id string
	require.NoError(t, store.Transact(func(tx *sqlite.Tx) error {
		item, err := tx.Enqueue(types.ActionAdjustStock, types.AdjustStockPayload{ProductID: "p1", QuantityChange: 1})
		if err != nil {
			return err
		}
		id = item.ID
		return nil
	}))

	assert.ErrorIs(t, o.RetryQueueItem(id), types.ErrQueueItemNotFailed)

	require.NoError(t, store.MarkFailed(id, "rejected"))
	require.NoError(t, o.RetryQueueItem(id))

	item, err := store.GetQueueItem(id)
	require.NoError(t, err)
	assert.Equal(t, types.StatusPending, item.Status)
	assert.Equal(t, int64(1), o.Status().PendingCount)
}
