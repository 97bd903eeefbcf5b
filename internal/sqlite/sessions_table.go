// POS session table operations.
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/bluecounts/pos/pkg/types"
)

const sessionColumns = "id, tenant_id, outlet_id, user_id, device_id, opening_balance, closing_balance, expected_balance, status, opened_at, closed_at, version_id, deleted_at"

// UpsertSession writes a session row inside the transaction, replacing any
// existing row with the same id. The write path uses it both for optimistic
// local opens (version 0) and for rows confirmed directly by the sessions
// endpoint.
func (t *Tx) UpsertSession(s *types.PosSession) error {
	if s.ID == "" {
		return types.ErrInvalidID
	}
	_, err := t.tx.Exec(
		`INSERT INTO pos_sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   tenant_id = excluded.tenant_id,
		   outlet_id = excluded.outlet_id,
		   user_id = excluded.user_id,
		   device_id = excluded.device_id,
		   opening_balance = excluded.opening_balance,
		   closing_balance = excluded.closing_balance,
		   expected_balance = excluded.expected_balance,
		   status = excluded.status,
		   opened_at = excluded.opened_at,
		   closed_at = excluded.closed_at,
		   version_id = excluded.version_id,
		   deleted_at = excluded.deleted_at`,
		s.ID, s.TenantID, s.OutletID, s.UserID, nullStr(s.DeviceID),
		s.OpeningBalance, nullFloat(s.ClosingBalance), nullFloat(s.ExpectedBalance),
		s.Status, timeToCol(s.OpenedAt), timePtrToCol(s.ClosedAt), s.VersionID, timePtrToCol(s.DeletedAt),
	)
	if err != nil {
		return fmt.Errorf("upserting session %s: %w", s.ID, err)
	}
	return nil
}

// CloseSessionRow marks a session closed inside the transaction, recording
// the counted and expected balances.
func (t *Tx) CloseSessionRow(id string, closing, expected float64, closedAt time.Time, versionID int64) error {
	res, err := t.tx.Exec(
		`UPDATE pos_sessions
		 SET closing_balance = ?, expected_balance = ?, status = ?, closed_at = ?, version_id = ?
		 WHERE id = ?`,
		closing, expected, types.SessionClosed, timeToCol(closedAt), versionID, id,
	)
	if err != nil {
		return fmt.Errorf("closing session %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("closing session %s: %w", id, err)
	}
	if n == 0 {
		return types.ErrNotFound
	}
	return nil
}

// MergeSession upserts an authoritative session from a pull delta; the
// higher version wins, so a server-rejected optimistic open is overwritten
// by whichever session the server accepted.
func (b *Backend) MergeSession(s *types.PosSession) error {
	db, err := b.ready()
	if err != nil {
		return err
	}
	_, err = db.Exec(
		`INSERT INTO pos_sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   tenant_id = excluded.tenant_id,
		   outlet_id = excluded.outlet_id,
		   user_id = excluded.user_id,
		   device_id = excluded.device_id,
		   opening_balance = excluded.opening_balance,
		   closing_balance = excluded.closing_balance,
		   expected_balance = excluded.expected_balance,
		   status = excluded.status,
		   opened_at = excluded.opened_at,
		   closed_at = excluded.closed_at,
		   version_id = excluded.version_id,
		   deleted_at = excluded.deleted_at
		 WHERE excluded.version_id >= pos_sessions.version_id`,
		s.ID, s.TenantID, s.OutletID, s.UserID, nullStr(s.DeviceID),
		s.OpeningBalance, nullFloat(s.ClosingBalance), nullFloat(s.ExpectedBalance),
		s.Status, timeToCol(s.OpenedAt), timePtrToCol(s.ClosedAt), s.VersionID, timePtrToCol(s.DeletedAt),
	)
	if err != nil {
		return fmt.Errorf("merging session %s: %w", s.ID, err)
	}
	return nil
}

// TombstoneSession records a server-signalled session deletion in place.
func (b *Backend) TombstoneSession(id string, deletedAt time.Time, versionID int64) error {
	db, err := b.ready()
	if err != nil {
		return err
	}
	_, err = db.Exec(
		"UPDATE pos_sessions SET deleted_at = ?, version_id = ? WHERE id = ? AND version_id <= ?",
		timeToCol(deletedAt), versionID, id, versionID,
	)
	if err != nil {
		return fmt.Errorf("tombstoning session %s: %w", id, err)
	}
	return nil
}

// GetSession retrieves a session by ID, tombstoned or not.
func (b *Backend) GetSession(id string) (*types.PosSession, error) {
	db, err := b.ready()
	if err != nil {
		return nil, err
	}
	row := db.QueryRow("SELECT "+sessionColumns+" FROM pos_sessions WHERE id = ?", id)
	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting session %s: %w", id, err)
	}
	return s, nil
}

// OpenSessionForOutlet finds the open session for an outlet via the
// (outlet_id, status) index. A server-confirmed session outranks an
// optimistic version-0 row that has not settled yet. Returns ErrNotFound
// when no session is open.
func (b *Backend) OpenSessionForOutlet(outletID string) (*types.PosSession, error) {
	db, err := b.ready()
	if err != nil {
		return nil, err
	}
	row := db.QueryRow(
		`SELECT `+sessionColumns+` FROM pos_sessions
		 WHERE outlet_id = ? AND status = ? AND deleted_at IS NULL
		 ORDER BY version_id DESC, opened_at DESC LIMIT 1`,
		outletID, types.SessionOpen,
	)
	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting open session for outlet %s: %w", outletID, err)
	}
	return s, nil
}

func scanSession(r rowScanner) (*types.PosSession, error) {
	var s types.PosSession
	var deviceID sql.NullString
	var closing, expected sql.NullFloat64
	var openedAt, closedAt, deletedAt sql.NullString
	if err := r.Scan(&s.ID, &s.TenantID, &s.OutletID, &s.UserID, &deviceID,
		&s.OpeningBalance, &closing, &expected, &s.Status,
		&openedAt, &closedAt, &s.VersionID, &deletedAt); err != nil {
		return nil, err
	}
	s.DeviceID = deviceID.String
	if closing.Valid {
		v := closing.Float64
		s.ClosingBalance = &v
	}
	if expected.Valid {
		v := expected.Float64
		s.ExpectedBalance = &v
	}
	var err error
	if s.OpenedAt, err = colToTime(openedAt); err != nil {
		return nil, fmt.Errorf("parsing opened_at: %w", err)
	}
	if s.ClosedAt, err = colToTimePtr(closedAt); err != nil {
		return nil, fmt.Errorf("parsing closed_at: %w", err)
	}
	if s.DeletedAt, err = colToTimePtr(deletedAt); err != nil {
		return nil, fmt.Errorf("parsing deleted_at: %w", err)
	}
	return &s, nil
}

// nullFloat maps a nil pointer to NULL for optional REAL columns.
func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}
