package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mesh-intelligence/dossier/pkg/types"
)

// SchemaVersion is the schema version this binary writes. It is stored in
// PRAGMA user_version.
const SchemaVersion = 5

// Migration is one forward-only schema step.
type Migration struct {
	Version int
	Name    string
	Up      func(ctx context.Context, tx *sql.Tx) error
}

// migrations is the list of all migrations in order. Version N leaves the
// database at user_version N.
var migrations = []Migration{
	{Version: 1, Name: "create_agents", Up: execAll(createAgents)},
	{Version: 2, Name: "create_songs", Up: execAll(createSongs)},
	{Version: 3, Name: "create_broadcast", Up: execAll(createBroadcast)},
	{Version: 4, Name: "index_agent_names", Up: execAll(idxAgentsName)},
	{Version: 5, Name: "drop_deprecated", Up: dropDeprecated},
}

// Records are stored whole as JSON in the value column.
const (
	createAgents = `CREATE TABLE IF NOT EXISTS agents (
    id TEXT PRIMARY KEY NOT NULL,
    value TEXT NOT NULL
);`

	createSongs = `CREATE TABLE IF NOT EXISTS songs (
    id TEXT PRIMARY KEY NOT NULL,
    value TEXT NOT NULL
);`

	createBroadcast = `CREATE TABLE IF NOT EXISTS broadcast (
    id TEXT PRIMARY KEY NOT NULL,
    value TEXT NOT NULL
);`

	idxAgentsName = `CREATE INDEX IF NOT EXISTS idx_agents_name
    ON agents(lower(json_extract(value, '$.name')));`

)

// dropDeprecated removes every table named in DeprecatedCollectionNames.
func dropDeprecated(ctx context.Context, tx *sql.Tx) error {
	for _, name := range types.DeprecatedCollectionNames {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %q", name)); err != nil {
			return err
		}
	}
	return nil
}

func execAll(stmts ...string) func(context.Context, *sql.Tx) error {
	return func(ctx context.Context, tx *sql.Tx) error {
		for _, s := range stmts {
			if _, err := tx.ExecContext(ctx, s); err != nil {
				return err
			}
		}
		return nil
	}
}

// userVersion reads PRAGMA user_version.
func userVersion(ctx context.Context, q interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
}) (int, error) {
	var v int
	if err := q.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}

// migrate brings db up to SchemaVersion inside one transaction. A database
// written by a newer binary is refused.
func migrate(ctx context.Context, db *sql.DB) (from int, err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin migration: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	from, err = userVersion(ctx, tx)
	if err != nil {
		return 0, err
	}
	if from > SchemaVersion {
		return from, fmt.Errorf("schema version %d is newer than supported version %d", from, SchemaVersion)
	}
	for _, m := range migrations {
		if m.Version <= from {
			continue
		}
		if err = m.Up(ctx, tx); err != nil {
			return from, fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
		}
	}
	if from < SchemaVersion {
		// PRAGMA does not accept bound parameters.
		if _, err = tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion)); err != nil {
			return from, fmt.Errorf("writing schema version: %w", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return from, fmt.Errorf("commit migration: %w", err)
	}
	return from, nil
}
