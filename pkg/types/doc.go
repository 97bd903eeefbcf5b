// Package types defines the domain entities, sync queue records, client
// configuration, and standard errors for the Bluecounts POS offline-first
// client.
//
// Every entity carries a tenant ID and a server-assigned version ID that is
// zero until the row has been confirmed by a sync. Deletion is soft: rows
// keep a deleted_at tombstone and are never physically removed on the
// client.
package types
