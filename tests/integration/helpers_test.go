// Package integration exercises the full sync loop: local store, engine
// and the in-memory backend talking the real wire protocol over HTTP.
package integration

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bluecounts/pos/internal/engine"
	"github.com/bluecounts/pos/internal/server"
	"github.com/bluecounts/pos/internal/sqlite"
	"github.com/bluecounts/pos/pkg/types"
)

const (
	testTenant = "tenant-1"
	testOutlet = "outlet-1"
	testToken  = "itest-token"
)

// device bundles one register's store, orchestrator and write path.
type device struct {
	store        *sqlite.Backend
	orchestrator *engine.Orchestrator
	service      *engine.Service
}

// startBackend runs the mock backend over a real listener.
func startBackend(t *testing.T) (*server.Server, string) {
	t.Helper()
	s := server.NewServer(testToken, nil)
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return s, srv.URL
}

// newDevice attaches an isolated store for deviceID and wires the engine
// against the backend at baseURL. The device starts reachable; tests
// toggle the simulate-offline override to go dark.
func newDevice(t *testing.T, baseURL, deviceID string) *device {
	t.Helper()
	cfg := types.Config{
		APIBase:  baseURL,
		TenantID: testTenant,
		OutletID: testOutlet,
		DeviceID: deviceID,
		UserID:   "user-" + deviceID,
		Token:    testToken,
		DataDir:  t.TempDir(),
	}
	store := sqlite.NewBackend()
	require.NoError(t, store.Attach(cfg))
	t.Cleanup(func() { store.Detach() })

	client := engine.NewClient(baseURL, testToken, nil)
	orchestrator, err := engine.NewOrchestrator(store, client, cfg, nil)
	require.NoError(t, err)
	orchestrator.MarkReachable(true)

	return &device{
		store:        store,
		orchestrator: orchestrator,
		service:      engine.NewService(store, client, cfg, orchestrator, nil),
	}
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func seedBackend(s *server.Server) {
	s.Seed(testTenant, testOutlet, []*types.Product{
		{ID: "p-esp", SKU: "ESP-1", Name: "Espresso", Price: 2.00},
		{ID: "p-lat", SKU: "LAT-1", Name: "Latte", Price: 3.50},
	}, map[string]int64{"ESP-1": 100, "LAT-1": 50})
}
