package sqlite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bluecounts/pos/pkg/types"
)

const (
	testTenant = "tenant-1"
	testOutlet = "outlet-1"
	testDevice = "device-1"
)

// setupBackend creates an attached Backend over a throwaway data directory.
func setupBackend(t *testing.T) *Backend {
	t.Helper()
	b := NewBackend()
	cfg := types.Config{
		TenantID: testTenant,
		OutletID: testOutlet,
		DeviceID: testDevice,
		DataDir:  t.TempDir(),
	}
	require.NoError(t, b.Attach(cfg))
	t.Cleanup(func() { b.Detach() })
	return b
}

func testProduct(id string, version int64) *types.Product {
	return &types.Product{
		ID:        id,
		TenantID:  testTenant,
		SKU:       "SKU-" + id,
		Name:      "Product " + id,
		Price:     9.99,
		VersionID: version,
		CreatedAt: time.Now().UTC(),
	}
}

func TestAttachDetachLifecycle(t *testing.T) {
	b := NewBackend()
	cfg := types.Config{
		TenantID: testTenant,
		OutletID: testOutlet,
		DeviceID: testDevice,
		DataDir:  t.TempDir(),
	}

	require.NoError(t, b.Attach(cfg))
	assert.ErrorIs(t, b.Attach(cfg), types.ErrAlreadyAttached)

	require.NoError(t, b.Detach())
	// Detach is idempotent.
	require.NoError(t, b.Detach())

	_, err := b.ActiveProducts(testTenant)
	assert.ErrorIs(t, err, types.ErrStoreDetached)
}

func TestAttachRejectsInvalidConfig(t *testing.T) {
	b := NewBackend()
	err := b.Attach(types.Config{OutletID: testOutlet, DeviceID: testDevice, DataDir: t.TempDir()})
	assert.ErrorIs(t, err, types.ErrTenantEmpty)
}

func TestAttachPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	cfg := types.Config{TenantID: testTenant, OutletID: testOutlet, DeviceID: testDevice, DataDir: dir}

	b := NewBackend()
	require.NoError(t, b.Attach(cfg))
	require.NoError(t, b.MergeProduct(testProduct("p1", 3)))
	require.NoError(t, b.Detach())

	reopened := NewBackend()
	require.NoError(t, reopened.Attach(cfg))
	defer reopened.Detach()

	p, err := reopened.GetProduct("p1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), p.VersionID)
}

func TestMergeProductVersionGuard(t *testing.T) {
	b := setupBackend(t)

	p := testProduct("p1", 5)
	p.Name = "Version five"
	require.NoError(t, b.MergeProduct(p))

	// A lower version must not overwrite.
	stale := testProduct("p1", 3)
	stale.Name = "Stale"
	require.NoError(t, b.MergeProduct(stale))

	got, err := b.GetProduct("p1")
	require.NoError(t, err)
	assert.Equal(t, "Version five", got.Name)
	assert.Equal(t, int64(5), got.VersionID)

	// An equal or higher version replaces the row.
	newer := testProduct("p1", 6)
	newer.Name = "Version six"
	require.NoError(t, b.MergeProduct(newer))
	got, err = b.GetProduct("p1")
	require.NoError(t, err)
	assert.Equal(t, "Version six", got.Name)
}

func TestMergeProductSupersedesOptimisticRow(t *testing.T) {
	b := setupBackend(t)

	// Optimistic local creation writes version 0.
	require.NoError(t, b.Transact(func(tx *Tx) error {
		return tx.InsertProduct(testProduct("p1", 0))
	}))

	confirmed := testProduct("p1", 7)
	confirmed.Name = "Confirmed"
	require.NoError(t, b.MergeProduct(confirmed))

	got, err := b.GetProduct("p1")
	require.NoError(t, err)
	assert.Equal(t, "Confirmed", got.Name)
	assert.Equal(t, int64(7), got.VersionID)
}

func TestMergeOrderIndependence(t *testing.T) {
	// Applying the same delta rows in any order must converge to the same
	// final state: upsert by id, highest version wins.
	rows := []*types.Product{
		testProduct("p1", 1),
		testProduct("p1", 4),
		testProduct("p1", 2),
	}
	rows[0].Name = "one"
	rows[1].Name = "four"
	rows[2].Name = "two"

	orders := [][]int{{0, 1, 2}, {2, 1, 0}, {1, 0, 2}}
	for _, order := range orders {
		b := setupBackend(t)
		for _, i := range order {
			require.NoError(t, b.MergeProduct(rows[i]))
		}
		got, err := b.GetProduct("p1")
		require.NoError(t, err)
		assert.Equal(t, "four", got.Name)
		assert.Equal(t, int64(4), got.VersionID)
	}
}

func TestTombstoneVisibility(t *testing.T) {
	b := setupBackend(t)
	require.NoError(t, b.MergeProduct(testProduct("p1", 1)))
	require.NoError(t, b.MergeProduct(testProduct("p2", 1)))

	deletedAt := time.Now().UTC()
	require.NoError(t, b.TombstoneProduct("p1", deletedAt, 2))

	// Active listings exclude the tombstone.
	active, err := b.ActiveProducts(testTenant)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "p2", active[0].ID)

	// Direct get still returns it, with other fields preserved.
	got, err := b.GetProduct("p1")
	require.NoError(t, err)
	assert.True(t, got.Deleted())
	assert.Equal(t, "Product p1", got.Name)
	assert.Equal(t, int64(2), got.VersionID)
}

func TestInventoryDuplicateRepair(t *testing.T) {
	b := setupBackend(t)

	// Two local rows for one logical key: the optimistic one and a second
	// created before the server id was known.
	require.NoError(t, b.Transact(func(tx *Tx) error {
		if err := tx.InsertInventory(&types.Inventory{
			ID: "local-a", TenantID: testTenant, OutletID: testOutlet, ProductID: "p1", Quantity: 5,
		}); err != nil {
			return err
		}
		return tx.InsertInventory(&types.Inventory{
			ID: "local-b", TenantID: testTenant, OutletID: testOutlet, ProductID: "p1", Quantity: 3,
		})
	}))

	// The authoritative row arrives under the server-assigned id.
	require.NoError(t, b.MergeInventory(&types.Inventory{
		ID: "server-1", TenantID: testTenant, OutletID: testOutlet, ProductID: "p1",
		Quantity: 7, VersionID: 4,
	}))

	items, err := b.ActiveInventory(testTenant, testOutlet)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "server-1", items[0].ID)
	assert.Equal(t, int64(7), items[0].Quantity)

	_, err = b.GetInventory("local-a")
	assert.ErrorIs(t, err, types.ErrNotFound)
	_, err = b.GetInventory("local-b")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestInventoryByKeyPrefersHighestVersion(t *testing.T) {
	b := setupBackend(t)
	require.NoError(t, b.Transact(func(tx *Tx) error {
		if err := tx.InsertInventory(&types.Inventory{
			ID: "v0", TenantID: testTenant, OutletID: testOutlet, ProductID: "p1", Quantity: 2,
		}); err != nil {
			return err
		}
		return tx.InsertInventory(&types.Inventory{
			ID: "v3", TenantID: testTenant, OutletID: testOutlet, ProductID: "p1", Quantity: 9, VersionID: 3,
		})
	}))

	inv, err := b.InventoryByKey(testTenant, testOutlet, "p1")
	require.NoError(t, err)
	assert.Equal(t, "v3", inv.ID)
	assert.Equal(t, int64(9), inv.Quantity)
}

func TestOpenSessionForOutletPrefersConfirmedRow(t *testing.T) {
	b := setupBackend(t)

	// An optimistic open that opened later must not shadow the
	// server-confirmed session for the same outlet.
	earlier := time.Now().UTC().Add(-time.Minute)
	require.NoError(t, b.MergeSession(&types.PosSession{
		ID: "confirmed", TenantID: testTenant, OutletID: testOutlet,
		OpeningBalance: 50, Status: types.SessionOpen, OpenedAt: earlier, VersionID: 5,
	}))
	require.NoError(t, b.Transact(func(tx *Tx) error {
		return tx.UpsertSession(&types.PosSession{
			ID: "optimistic", TenantID: testTenant, OutletID: testOutlet,
			OpeningBalance: 20, Status: types.SessionOpen, OpenedAt: time.Now().UTC(),
		})
	}))

	open, err := b.OpenSessionForOutlet(testOutlet)
	require.NoError(t, err)
	assert.Equal(t, "confirmed", open.ID)
}

func TestWatermarkMonotonic(t *testing.T) {
	b := setupBackend(t)

	w, err := b.Watermark()
	require.NoError(t, err)
	assert.Equal(t, int64(0), w)

	require.NoError(t, b.AdvanceWatermark(10))
	w, err = b.Watermark()
	require.NoError(t, err)
	assert.Equal(t, int64(10), w)

	// A lower or equal value never regresses the watermark.
	require.NoError(t, b.AdvanceWatermark(7))
	require.NoError(t, b.AdvanceWatermark(10))
	w, err = b.Watermark()
	require.NoError(t, err)
	assert.Equal(t, int64(10), w)

	require.NoError(t, b.AdvanceWatermark(12))
	w, err = b.Watermark()
	require.NoError(t, err)
	assert.Equal(t, int64(12), w)
}

func TestSimulateOfflineToggle(t *testing.T) {
	b := setupBackend(t)

	on, err := b.SimulateOffline()
	require.NoError(t, err)
	assert.False(t, on)

	require.NoError(t, b.SetSimulateOffline(true))
	on, err = b.SimulateOffline()
	require.NoError(t, err)
	assert.True(t, on)

	require.NoError(t, b.SetSimulateOffline(false))
	on, err = b.SimulateOffline()
	require.NoError(t, err)
	assert.False(t, on)
}
