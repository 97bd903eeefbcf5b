package types

import "errors"

// Config holds the identity and connection parameters for the POS client.
// TenantID, OutletID, and DeviceID are the ambient identifiers every sync
// request carries; Token is the bearer credential issued by the auth
// collaborator and may be empty while operating purely offline.
type Config struct {
	APIBase  string `json:"api_base" yaml:"api_base"`
	TenantID string `json:"tenant_id" yaml:"tenant_id"`
	OutletID string `json:"outlet_id" yaml:"outlet_id"`
	DeviceID string `json:"device_id" yaml:"device_id"`
	UserID   string `json:"user_id" yaml:"user_id"`
	Token    string `json:"token,omitempty" yaml:"token,omitempty"`
	DataDir  string `json:"data_dir" yaml:"data_dir"`
}

// Config validation errors.
var (
	ErrTenantEmpty = errors.New("tenant_id must not be empty")
	ErrOutletEmpty = errors.New("outlet_id must not be empty")
	ErrDeviceEmpty = errors.New("device_id must not be empty")
)

// Validate checks that the identifiers required for local operation are
// present. APIBase and Token are deliberately not required: the client
// must keep working with no server configured at all.
func (c Config) Validate() error {
	if c.TenantID == "" {
		return ErrTenantEmpty
	}
	if c.OutletID == "" {
		return ErrOutletEmpty
	}
	if c.DeviceID == "" {
		return ErrDeviceEmpty
	}
	return nil
}
