package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/dossier/internal/metrics"
	"github.com/mesh-intelligence/dossier/internal/storetest"
	"github.com/mesh-intelligence/dossier/pkg/types"
)

func newTestBackend(t *testing.T, opts ...Option) *Backend {
	t.Helper()
	b := NewBackend(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}, opts...)
	t.Cleanup(func() { b.Close() })
	return b
}

func TestCollectionContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) types.Store { return newTestBackend(t) })
}

func TestOpenCreatesDatabase(t *testing.T) {
	b := newTestBackend(t)
	require.NoError(t, b.Open(context.Background()))

	assert.Equal(t, filepath.Join(b.config.DataDir, "ResistanceDB.db"), b.Path())
	_, err := os.Stat(b.Path())
	assert.NoError(t, err)

	v, err := b.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, v)
}

func TestOpenUsesConfiguredName(t *testing.T) {
	dir := t.TempDir()
	b := NewBackend(types.Config{Backend: types.BackendSQLite, DataDir: dir, Name: "TestDB"})
	defer b.Close()
	require.NoError(t, b.Open(context.Background()))
	assert.FileExists(t, filepath.Join(dir, "TestDB.db"))
}

func TestOpenLazilyOnFirstCall(t *testing.T) {
	b := newTestBackend(t)
	_, err := os.Stat(b.Path())
	require.True(t, os.IsNotExist(err))

	_, err = b.Agents().GetAll(context.Background())
	require.NoError(t, err)
	assert.FileExists(t, b.Path())
}

func TestConcurrentOpenSharesHandle(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	const n = 16
	handles := make([]*sql.DB, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			handles[i], errs[i] = b.handle(ctx)
		}()
	}
	wg.Wait()

	for i := range n {
		require.NoError(t, errs[i])
		assert.Same(t, handles[0], handles[i])
	}
}

func TestOpenFailureIsNotMemoized(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocked")
	require.NoError(t, os.WriteFile(blocker, []byte("file, not a dir"), 0o644))

	b := NewBackend(types.Config{Backend: types.BackendSQLite, DataDir: blocker})
	defer b.Close()

	err := b.Open(context.Background())
	require.ErrorIs(t, err, types.ErrStoreUnavailable)

	require.NoError(t, os.Remove(blocker))
	assert.NoError(t, b.Open(context.Background()))
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		config types.Config
		want   error
	}{
		{"empty backend", types.Config{DataDir: t.TempDir()}, types.ErrBackendEmpty},
		{"path in name", types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir(), Name: "../x"}, types.ErrInvalidName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBackend(tt.config)
			defer b.Close()
			err := b.Open(context.Background())
			assert.ErrorIs(t, err, types.ErrStoreUnavailable)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestOpenCanceledContext(t *testing.T) {
	b := newTestBackend(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := b.handle(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestUpgradeDropsDeprecatedTables(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, types.DefaultStoreName+".db")

	// A version 3 database: agents, songs and the legacy broadcast table.
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	for _, stmt := range []string{createAgents, createSongs, createBroadcast,
		`INSERT INTO agents (id, value) VALUES ('RSR-old', '{"id":"RSR-old","name":"Relic","password":"x","peacePoints":7,"missions":[]}')`,
		"PRAGMA user_version = 3"} {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	require.NoError(t, db.Close())

	b := NewBackend(types.Config{Backend: types.BackendSQLite, DataDir: dir})
	defer b.Close()
	ctx := context.Background()

	v, err := b.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, v)

	h, err := b.handle(ctx)
	require.NoError(t, err)
	for _, name := range types.DeprecatedCollectionNames {
		var n int
		require.NoError(t, h.QueryRow("SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name).Scan(&n))
		assert.Zero(t, n, "table %s should be dropped", name)
	}

	old, ok, err := b.Agents().Get(ctx, "RSR-old")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 7, old.PeacePoints)
}

func TestOpenRefusesNewerSchema(t *testing.T) {
	dir := t.TempDir()
	db, err := sql.Open("sqlite", filepath.Join(dir, types.DefaultStoreName+".db"))
	require.NoError(t, err)
	_, err = db.Exec(fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion+1))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	b := NewBackend(types.Config{Backend: types.BackendSQLite, DataDir: dir})
	defer b.Close()
	assert.ErrorIs(t, b.Open(context.Background()), types.ErrStoreUnavailable)
}

func TestReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	cfg := types.Config{Backend: types.BackendSQLite, DataDir: dir}
	ctx := context.Background()

	b := NewBackend(cfg)
	require.NoError(t, b.Songs().Add(ctx, storetest.Song(t, "acr-keep", 245)))
	require.NoError(t, b.Close())

	b2 := NewBackend(cfg)
	defer b2.Close()
	got, ok, err := b2.Songs().Get(ctx, "acr-keep")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 5, got.ClueMatrix.Segments())
	clue, ok := got.ClueMatrix.Clue(types.CategoryAction, types.SubcategoryRacism, 4)
	require.True(t, ok)
	assert.Equal(t, 50, clue.Points)
}

func TestGetAllSkipsUndecodableRows(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()
	require.NoError(t, b.Agents().Add(ctx, storetest.Agent("RSR-good", "Nova")))

	h, err := b.handle(ctx)
	require.NoError(t, err)
	_, err = h.Exec(`INSERT INTO agents (id, value) VALUES ('RSR-bad', 'not json')`)
	require.NoError(t, err)

	all, err := b.Agents().GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "RSR-good", all[0].ID)

	_, _, err = b.Agents().Get(ctx, "RSR-bad")
	assert.ErrorIs(t, err, types.ErrInvalidData)
}

func TestOperationsAreObserved(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)
	b := newTestBackend(t, WithMetrics(m))
	ctx := context.Background()

	require.NoError(t, b.Agents().Add(ctx, storetest.Agent("RSR-1", "Nova")))
	assert.Error(t, b.Agents().Add(ctx, storetest.Agent("RSR-1", "Nova")))

	n, err := testutil.GatherAndCount(reg, "dossier_store_operations_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
