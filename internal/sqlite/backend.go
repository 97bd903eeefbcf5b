package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/bluecounts/pos/pkg/types"
)

// dbFileName is the SQLite database file created inside the data directory.
const dbFileName = "bluecounts.db"

// querier is the common surface of *sql.DB and *sql.Tx that the table
// operations run against.
type querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// Backend is the local store: durable, transactional, indexed tabular
// storage for all domain entities plus the sync queue and sync metadata.
// The backend is not attached until Attach is called with a Config.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	db       *sql.DB
}

// Tx exposes the table write operations bound to one SQLite transaction.
// The optimistic write path uses it so that entity rows and their queue
// entry commit or roll back together.
type Tx struct {
	tx *sql.Tx
}

// NewBackend creates a new, detached SQLite backend.
func NewBackend() *Backend {
	return &Backend{}
}

// Attach opens (or creates) the database inside config.DataDir, applies the
// schema and indexes, and makes the backend ready for table operations.
// Returns ErrAlreadyAttached if called while attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}

	if err := config.Validate(); err != nil {
		return err
	}

	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dataDir, dbFileName))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	for _, ddl := range schemaDDL {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return fmt.Errorf("applying schema: %w", err)
		}
	}
	for _, ddl := range indexDDL {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return fmt.Errorf("applying indexes: %w", err)
		}
	}

	b.db = db
	b.config = config
	b.attached = true
	return nil
}

// Detach closes the database. After Detach all operations return
// ErrStoreDetached. Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	if b.db != nil {
		if err := b.db.Close(); err != nil {
			return err
		}
		b.db = nil
	}
	b.attached = false
	return nil
}

// Config returns the configuration the backend was attached with.
func (b *Backend) Config() types.Config {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.config
}

// ready returns the live database handle, or ErrStoreDetached.
func (b *Backend) ready() (*sql.DB, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrStoreDetached
	}
	return b.db, nil
}

// Transact runs fn inside one SQLite transaction. If fn returns an error
// the transaction is rolled back and the error returned unchanged.
func (b *Backend) Transact(fn func(tx *Tx) error) error {
	db, err := b.ready()
	if err != nil {
		return err
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&Tx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GenerateID generates a new UUID v7 for entity and queue IDs.
func GenerateID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to UUID v4 if v7 generation fails.
		return uuid.New().String()
	}
	return id.String()
}

// Time column helpers. Timestamps are stored as RFC3339 TEXT; NULL maps to
// the zero time (or a nil pointer for tombstone columns).

func timeToCol(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func timePtrToCol(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func colToTime(s sql.NullString) (time.Time, error) {
	if !s.Valid || s.String == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s.String)
}

func colToTimePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
