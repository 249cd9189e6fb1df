// Package sqlite implements the durable Store backend on SQLite.
//
// The database handle is opened lazily by the first caller (or by Open) and
// shared by every collection. Concurrent callers arriving before the first
// open completes wait on the same in-flight open. Each collection call runs
// as one transaction; the pool holds a single connection so transactions
// execute one at a time in arrival order.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/dossier/internal/metrics"
	"github.com/mesh-intelligence/dossier/pkg/types"
)

// Backend implements types.Store using SQLite.
type Backend struct {
	config  types.Config
	log     zerolog.Logger
	metrics *metrics.Recorder

	opening singleflight.Group

	mu     sync.RWMutex
	db     *sql.DB
	closed bool

	agents *collection[types.AgentProfile]
	songs  *collection[types.RecognizedSong]
}

var _ types.Store = (*Backend)(nil)

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the backend logger.
func WithLogger(l zerolog.Logger) Option {
	return func(b *Backend) { b.log = l }
}

// WithMetrics sets the recorder for store operations.
func WithMetrics(m *metrics.Recorder) Option {
	return func(b *Backend) { b.metrics = m }
}

// NewBackend creates a backend for config. Nothing is opened until Open or
// the first collection call.
func NewBackend(config types.Config, opts ...Option) *Backend {
	b := &Backend{config: config, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(b)
	}
	b.log = b.log.With().Str("component", "sqlite").Logger()
	b.agents = newCollection[types.AgentProfile](b, types.AgentsCollection)
	b.songs = newCollection[types.RecognizedSong](b, types.SongsCollection)
	return b
}

// Path returns the database file path.
func (b *Backend) Path() string {
	dir := b.config.DataDir
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, b.config.StoreName()+".db")
}

// Open acquires the shared handle, creating or upgrading the schema.
func (b *Backend) Open(ctx context.Context) error {
	_, err := b.handle(ctx)
	return err
}

// Agents returns the agent profile collection.
func (b *Backend) Agents() types.Collection[types.AgentProfile] { return b.agents }

// Songs returns the recognized song collection.
func (b *Backend) Songs() types.Collection[types.RecognizedSong] { return b.songs }

// Version reports the schema version of the open database.
func (b *Backend) Version(ctx context.Context) (int, error) {
	db, err := b.handle(ctx)
	if err != nil {
		return 0, err
	}
	return userVersion(ctx, db)
}

// Close releases the handle. Close is idempotent; after Close every
// operation returns ErrStoreClosed.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	return err
}

// handle returns the memoized handle or joins the in-flight open.
func (b *Backend) handle(ctx context.Context) (*sql.DB, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.RLock()
	db, closed := b.db, b.closed
	b.mu.RUnlock()
	if closed {
		return nil, types.ErrStoreClosed
	}
	if db != nil {
		return db, nil
	}

	// The open outlives any single caller's cancellation so that other
	// waiters are not failed by it.
	ch := b.opening.DoChan("open", func() (any, error) {
		return b.open(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*sql.DB), nil
	}
}

// open creates the handle and runs migrations. Failures are not memoized;
// the next caller retries.
func (b *Backend) open(ctx context.Context) (*sql.DB, error) {
	b.mu.RLock()
	db, closed := b.db, b.closed
	b.mu.RUnlock()
	if closed {
		return nil, types.ErrStoreClosed
	}
	if db != nil {
		return db, nil
	}

	if err := b.config.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrStoreUnavailable, err)
	}
	path := b.Path()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating data dir: %w", types.ErrStoreUnavailable, err)
	}

	start := time.Now()
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrStoreUnavailable, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %w", types.ErrStoreUnavailable, err)
	}
	from, err := migrate(ctx, db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %w", types.ErrStoreUnavailable, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		db.Close()
		return nil, types.ErrStoreClosed
	}
	b.db = db

	evt := b.log.Info().Str("path", path).Int("version", SchemaVersion).Dur("took", time.Since(start))
	if from != SchemaVersion {
		evt = evt.Int("from_version", from)
	}
	evt.Msg("store opened")
	return db, nil
}
