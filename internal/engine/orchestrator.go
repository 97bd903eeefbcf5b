package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/bluecounts/pos/internal/sqlite"
	"github.com/bluecounts/pos/pkg/types"
)

// ErrOffline is returned when a sync cycle is requested while the device
// is offline, either physically or through the simulate-offline override.
var ErrOffline = errors.New("device is offline")

// SyncState is the orchestrator's current activity. The error state is not
// sticky: the next pull or push replaces it.
type SyncState string

const (
	StateIdle    SyncState = "idle"
	StatePulling SyncState = "pulling"
	StatePushing SyncState = "pushing"
	StateError   SyncState = "error"
)

// Status is a point-in-time snapshot of the engine surface.
type Status struct {
	State        SyncState `json:"state"`
	Online       bool      `json:"online"`
	Reachable    bool      `json:"reachable"`
	SimulateOff  bool      `json:"simulate_offline"`
	Watermark    int64     `json:"watermark"`
	PendingCount int64     `json:"pending_count"`
	LastError    string    `json:"last_error,omitempty"`
}

// Orchestrator sequences pull and push against the local store and exposes
// the connectivity and progress surface. All user writes go through the
// Service; the orchestrator only moves data between store and server.
type Orchestrator struct {
	store  *sqlite.Backend
	client *Client
	config types.Config
	logger *zap.Logger

	mu           sync.Mutex
	state        SyncState
	lastError    string
	pendingCount int64
	reachable    bool
	simulateOff  bool
}

// NewOrchestrator creates an orchestrator over an attached store. The
// simulate-offline override is restored from the store so it survives
// restarts. Reachability starts false; the caller reports it through
// SetReachable.
func NewOrchestrator(store *sqlite.Backend, client *Client, config types.Config, logger *zap.Logger) (*Orchestrator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	simulate, err := store.SimulateOffline()
	if err != nil {
		return nil, fmt.Errorf("restoring offline override: %w", err)
	}
	pending, err := store.PendingCount()
	if err != nil {
		return nil, fmt.Errorf("counting pending items: %w", err)
	}
	return &Orchestrator{
		store:        store,
		client:       client,
		config:       config,
		logger:       logger,
		state:        StateIdle,
		pendingCount: pending,
		simulateOff:  simulate,
	}, nil
}

// Online reports effective connectivity: the network must be reachable and
// the simulate-offline override must be off.
func (o *Orchestrator) Online() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.reachable && !o.simulateOff
}

// MarkReachable records physical network reachability without any side
// effect. One-shot callers that sequence their own cycle use this.
func (o *Orchestrator) MarkReachable(reachable bool) {
	o.mu.Lock()
	o.reachable = reachable
	o.mu.Unlock()
}

// SetReachable records physical network reachability. A transition from
// offline to online triggers a full sync cycle; the cycle's error, if any,
// is recorded on the status surface and not returned here.
func (o *Orchestrator) SetReachable(ctx context.Context, reachable bool) {
	o.mu.Lock()
	wasOnline := o.reachable && !o.simulateOff
	o.reachable = reachable
	nowOnline := o.reachable && !o.simulateOff
	o.mu.Unlock()

	if !wasOnline && nowOnline {
		o.logger.Info("connectivity restored, starting sync cycle")
		if err := o.SyncCycle(ctx, false); err != nil {
			o.logger.Warn("sync cycle after reconnect failed", zap.Error(err))
		}
	}
}

// SetSimulateOffline persists the simulate-offline override. While set,
// the device behaves exactly as if the network were down, regardless of
// actual reachability.
func (o *Orchestrator) SetSimulateOffline(on bool) error {
	if err := o.store.SetSimulateOffline(on); err != nil {
		return err
	}
	o.mu.Lock()
	o.simulateOff = on
	o.mu.Unlock()
	o.logger.Info("simulate offline override changed", zap.Bool("enabled", on))
	return nil
}

// Start runs the initial sync cycle if the device is online. Offline
// startup is not an error; the device simply serves local data.
func (o *Orchestrator) Start(ctx context.Context) error {
	if !o.Online() {
		o.logger.Info("starting offline, serving local data")
		return nil
	}
	return o.SyncCycle(ctx, true)
}

// SyncCycle runs one complete cycle: pull, push the pending queue, then
// pull again so the server-assigned rows for the just-pushed mutations
// land locally and advance the watermark. When forceFull is set the first
// pull ignores the watermark.
func (o *Orchestrator) SyncCycle(ctx context.Context, forceFull bool) error {
	if !o.Online() {
		return ErrOffline
	}
	if err := o.Pull(ctx, forceFull); err != nil {
		return err
	}
	if err := o.Push(ctx); err != nil {
		return err
	}
	return o.Pull(ctx, false)
}

// Status returns a snapshot of the engine surface.
func (o *Orchestrator) Status() Status {
	watermark, err := o.store.Watermark()
	if err != nil {
		watermark = 0
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return Status{
		State:        o.state,
		Online:       o.reachable && !o.simulateOff,
		Reachable:    o.reachable,
		SimulateOff:  o.simulateOff,
		Watermark:    watermark,
		PendingCount: o.pendingCount,
		LastError:    o.lastError,
	}
}

func (o *Orchestrator) setState(s SyncState) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// settle records the outcome of a pull or push on the status surface.
func (o *Orchestrator) settle(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		o.state = StateError
		o.lastError = err.Error()
		return
	}
	o.state = StateIdle
	o.lastError = ""
}

// refreshPendingCount re-reads the pending queue size. Called after every
// push attempt and every enqueue so the surface never goes stale.
func (o *Orchestrator) refreshPendingCount() {
	pending, err := o.store.PendingCount()
	if err != nil {
		o.logger.Warn("counting pending items", zap.Error(err))
		return
	}
	o.mu.Lock()
	o.pendingCount = pending
	o.mu.Unlock()
}
