// Sync metadata table operations, including the version watermark.
package sqlite

import (
	"database/sql"
	"fmt"
	"strconv"

	"github.com/bluecounts/pos/pkg/types"
)

// MetaValue reads one sync_meta value. The second return reports whether
// the key exists.
func (b *Backend) MetaValue(key string) (string, bool, error) {
	db, err := b.ready()
	if err != nil {
		return "", false, err
	}
	var value string
	err = db.QueryRow("SELECT value FROM sync_meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading sync_meta %s: %w", key, err)
	}
	return value, true, nil
}

// SetMetaValue writes one sync_meta value unconditionally.
func (b *Backend) SetMetaValue(key, value string) error {
	db, err := b.ready()
	if err != nil {
		return err
	}
	_, err = db.Exec(
		"INSERT INTO sync_meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("writing sync_meta %s: %w", key, err)
	}
	return nil
}

// Watermark returns the highest version_id known to be fully merged, or
// zero when the client has never synced.
func (b *Backend) Watermark() (int64, error) {
	value, ok, err := b.MetaValue(types.MetaKeyMaxVersion)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	v, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing watermark %q: %w", value, err)
	}
	return v, nil
}

// AdvanceWatermark persists a new watermark. The watermark never
// decreases: a value at or below the stored one leaves it unchanged.
func (b *Backend) AdvanceWatermark(version int64) error {
	current, err := b.Watermark()
	if err != nil {
		return err
	}
	if version <= current {
		return nil
	}
	return b.SetMetaValue(types.MetaKeyMaxVersion, strconv.FormatInt(version, 10))
}

// SimulateOffline reports whether the development-only offline toggle is
// set. The flag is persisted so it survives restarts, like the rest of the
// client state.
func (b *Backend) SimulateOffline() (bool, error) {
	value, ok, err := b.MetaValue(types.MetaKeySimulateOffline)
	if err != nil {
		return false, err
	}
	return ok && value == "1", nil
}

// SetSimulateOffline persists the development-only offline toggle.
func (b *Backend) SetSimulateOffline(on bool) error {
	value := "0"
	if on {
		value = "1"
	}
	return b.SetMetaValue(types.MetaKeySimulateOffline, value)
}
