package types

import (
	"errors"
	"time"
)

// PosSession status values. At most one open session is expected per outlet
// at a time, enforced by workflow (the write path refuses a second open)
// rather than by a hard local constraint, so a pull can still merge
// whichever session the server actually accepted.
const (
	SessionOpen   = "open"
	SessionClosed = "closed"
)

// PosSession is one register session at an outlet: opened with a counted
// float, closed with a counted balance that is compared against the
// expected balance derived from the session's sales.
type PosSession struct {
	ID              string     `json:"id"`
	TenantID        string     `json:"tenant_id"`
	OutletID        string     `json:"outlet_id"`
	UserID          string     `json:"user_id"`
	DeviceID        string     `json:"device_id,omitempty"`
	OpeningBalance  float64    `json:"opening_balance"`
	ClosingBalance  *float64   `json:"closing_balance,omitempty"`
	ExpectedBalance *float64   `json:"expected_balance,omitempty"`
	Status          string     `json:"status"`
	OpenedAt        time.Time  `json:"opened_at"`
	ClosedAt        *time.Time `json:"closed_at,omitempty"`
	VersionID       int64      `json:"version_id"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty"`
}

// Session validation errors.
var (
	ErrInvalidBalance     = errors.New("balance must be zero or more")
	ErrSessionAlreadyOpen = errors.New("an open session already exists for this outlet")
	ErrNoOpenSession      = errors.New("no open session for this outlet")
	ErrSessionClosed      = errors.New("session is already closed")
)

// ExpectedSessionBalance computes what the drawer should hold given the session's
// opening float and the sum of sale totals recorded against the session.
func ExpectedSessionBalance(openingBalance float64, saleTotals []float64) float64 {
	expected := openingBalance
	for _, t := range saleTotals {
		expected += t
	}
	return expected
}

// Variance is the counted closing balance minus the expected balance.
// Positive means the drawer is over, negative means short.
func Variance(closingBalance, expectedBalance float64) float64 {
	return closingBalance - expectedBalance
}

// Deleted reports whether the row is a tombstone.
func (s *PosSession) Deleted() bool { return s.DeletedAt != nil }
