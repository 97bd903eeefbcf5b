// Package engine implements the offline-first synchronization engine: the
// remote sync client, the pull and push operations, the sync orchestrator,
// and the optimistic write path used by every user action.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bluecounts/pos/pkg/types"
)

// Remote access errors. Both are treated as recoverable transport failures:
// local operation continues, nothing is marked, and the next triggered
// cycle retries.
var (
	ErrNoServer    = errors.New("no API base configured")
	ErrNoAuthToken = errors.New("no bearer token available")
)

// ErrConflict marks a definitive business rejection (HTTP 409). Unlike a
// transport failure it must never degrade to a queued intent; callers
// surface it to the user instead.
var ErrConflict = errors.New("rejected by server")

// Client talks the sync wire protocol to the server. The server is an
// opaque authority reachable through /sync/pull and /sync, plus the
// opportunistic /sessions endpoints.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
	logger  *zap.Logger
}

// NewClient creates a Client. An empty token disables every remote call
// without blocking local operation. A nil logger falls back to a no-op
// logger.
func NewClient(baseURL, token string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpc:   &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

// PullTables is the per-table delta in a pull response. Each row may carry
// deleted_at to signal a tombstone.
type PullTables struct {
	Products    []*types.Product    `json:"products"`
	Inventory   []*types.Inventory  `json:"inventory"`
	Sales       []*types.Sale       `json:"sales"`
	SaleItems   []*types.SaleItem   `json:"sale_items"`
	PosSessions []*types.PosSession `json:"pos_sessions"`
}

// PullResponse is the body of GET /sync/pull.
type PullResponse struct {
	Tables             PullTables `json:"tables"`
	ServerMaxVersionID int64      `json:"server_max_version_id"`
}

// PushItem is one queued mutation inside a push batch.
type PushItem struct {
	ID         string           `json:"id"`
	ActionType types.ActionType `json:"action_type"`
	Payload    json.RawMessage  `json:"payload"`
}

// PushRequest is the body of POST /sync. The whole batch is submitted in
// one request so the server can apply it as a single transaction.
type PushRequest struct {
	TenantID string     `json:"tenant_id"`
	OutletID string     `json:"outlet_id"`
	DeviceID string     `json:"device_id"`
	Items    []PushItem `json:"items"`
}

// Per-item statuses in a push response.
const (
	ResultAccepted = "accepted"
	ResultSynced   = "synced"
	ResultFailed   = "failed"
)

// PushItemResult is the server's verdict on one batch item.
type PushItemResult struct {
	QueueID string `json:"queue_id"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

// PushResponse is the body of POST /sync.
type PushResponse struct {
	VersionID int64            `json:"version_id"`
	Results   []PushItemResult `json:"results"`
}

// OpenSessionRequest is the body of POST /sessions/open. The tenant rides
// in the body so the opened session lands in the same tenant scope every
// /sync/pull reads from.
type OpenSessionRequest struct {
	TenantID       string  `json:"tenant_id"`
	OutletID       string  `json:"outlet_id"`
	DeviceID       string  `json:"device_id,omitempty"`
	OpeningBalance float64 `json:"opening_balance"`
}

// OpenSessionResponse is the body returned by POST /sessions/open.
type OpenSessionResponse struct {
	SessionID      string  `json:"session_id"`
	OpeningBalance float64 `json:"opening_balance"`
	VersionID      int64   `json:"version_id"`
}

// CloseSessionRequest is the body of POST /sessions/{id}/close.
type CloseSessionRequest struct {
	TenantID       string  `json:"tenant_id"`
	ClosingBalance float64 `json:"closing_balance"`
}

// CloseSessionResponse carries the server-computed session figures.
type CloseSessionResponse struct {
	ExpectedBalance float64 `json:"expected_balance"`
	Variance        float64 `json:"variance"`
	VersionID       int64   `json:"version_id"`
}

// Pull fetches the per-table delta of rows with version_id > sinceVersion.
func (c *Client) Pull(ctx context.Context, tenantID string, sinceVersion int64) (*PullResponse, error) {
	endpoint := fmt.Sprintf("%s/sync/pull?tenant_id=%s&max_version_id=%d",
		c.baseURL, url.QueryEscape(tenantID), sinceVersion)

	var out PullResponse
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &out); err != nil {
		return nil, fmt.Errorf("pull: %w", err)
	}
	return &out, nil
}

// Push submits the pending batch to POST /sync.
func (c *Client) Push(ctx context.Context, req PushRequest) (*PushResponse, error) {
	var out PushResponse
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/sync", req, &out); err != nil {
		return nil, fmt.Errorf("push: %w", err)
	}
	return &out, nil
}

// OpenSession opens a register session directly on the server. The write
// path calls it opportunistically when online; on transport failure the
// same intent degrades to an OPEN_SESSION queue entry, while ErrConflict
// surfaces as a refusal.
func (c *Client) OpenSession(ctx context.Context, req OpenSessionRequest) (*OpenSessionResponse, error) {
	var out OpenSessionResponse
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/sessions/open", req, &out); err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	return &out, nil
}

// CloseSession closes a register session directly on the server.
func (c *Client) CloseSession(ctx context.Context, sessionID string, req CloseSessionRequest) (*CloseSessionResponse, error) {
	endpoint := fmt.Sprintf("%s/sessions/%s/close", c.baseURL, url.PathEscape(sessionID))
	var out CloseSessionResponse
	if err := c.do(ctx, http.MethodPost, endpoint, req, &out); err != nil {
		return nil, fmt.Errorf("close session: %w", err)
	}
	return &out, nil
}

// do performs one authorized JSON request. Any transport failure or
// non-2xx status is returned as a plain error; the engine treats them all
// identically as recoverable.
func (c *Client) do(ctx context.Context, method, endpoint string, body, out any) error {
	if c.baseURL == "" {
		return ErrNoServer
	}
	if c.token == "" {
		return ErrNoAuthToken
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Debug("request rejected",
			zap.String("method", method),
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode))
		if resp.StatusCode == http.StatusConflict {
			if len(msg) > 0 {
				return fmt.Errorf("%w: %s", ErrConflict, strings.TrimSpace(string(msg)))
			}
			return ErrConflict
		}
		if len(msg) > 0 {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		}
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
