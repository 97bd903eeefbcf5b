package types

import "errors"

// Store lifecycle errors.
var (
	ErrStoreDetached   = errors.New("store is detached")
	ErrAlreadyAttached = errors.New("store is already attached")
)

// Row operation errors.
var (
	ErrNotFound    = errors.New("entity not found")
	ErrInvalidID   = errors.New("invalid entity ID")
	ErrInvalidData = errors.New("invalid entity data")
)

// SyncMeta keys. The watermark is the highest version_id known to be fully
// merged from the server; delta pulls request only rows newer than it.
const (
	MetaKeyMaxVersion      = "local_max_version_id"
	MetaKeySimulateOffline = "simulate_offline"
)
