package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mesh-intelligence/dossier/pkg/types"
)

// collection implements types.Collection over one table whose rows hold a
// record's JSON encoding keyed by its id.
type collection[T types.Record] struct {
	backend *Backend
	name    string
}

func newCollection[T types.Record](b *Backend, name string) *collection[T] {
	return &collection[T]{backend: b, name: name}
}

// Name returns the collection name.
func (c *collection[T]) Name() string { return c.name }

// GetAll returns every record in key order. Rows that no longer decode are
// skipped and logged.
func (c *collection[T]) GetAll(ctx context.Context) ([]T, error) {
	var out []T
	err := c.tx(ctx, "get_all", func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, "SELECT id, value FROM "+c.name+" ORDER BY id")
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var id, value string
			if err := rows.Scan(&id, &value); err != nil {
				return err
			}
			var rec T
			if err := json.Unmarshal([]byte(value), &rec); err != nil {
				c.backend.log.Warn().Err(err).Str("collection", c.name).Str("id", id).Msg("skipping undecodable record")
				continue
			}
			out = append(out, rec)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns the record stored under key, or ok == false when absent.
func (c *collection[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var (
		rec T
		ok  bool
	)
	if err := validKey(key); err != nil {
		return rec, false, err
	}
	err := c.tx(ctx, "get", func(tx *sql.Tx) error {
		var value string
		err := tx.QueryRowContext(ctx, "SELECT value FROM "+c.name+" WHERE id = ?", key).Scan(&value)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := json.Unmarshal([]byte(value), &rec); err != nil {
			return fmt.Errorf("%w: %s %q: %w", types.ErrInvalidData, c.name, key, err)
		}
		ok = true
		return nil
	})
	if err != nil {
		var zero T
		return zero, false, err
	}
	return rec, ok, nil
}

// Add inserts rec, failing with ErrDuplicateKey when its key exists.
func (c *collection[T]) Add(ctx context.Context, rec T) error {
	key, value, err := encode(rec)
	if err != nil {
		return err
	}
	return c.tx(ctx, "add", func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, "SELECT 1 FROM "+c.name+" WHERE id = ?", key).Scan(&exists)
		if err == nil {
			return fmt.Errorf("%w: %s %q", types.ErrDuplicateKey, c.name, key)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		_, err = tx.ExecContext(ctx, "INSERT INTO "+c.name+" (id, value) VALUES (?, ?)", key, value)
		return err
	})
}

// Update inserts rec or replaces the record with the same key.
func (c *collection[T]) Update(ctx context.Context, rec T) error {
	key, value, err := encode(rec)
	if err != nil {
		return err
	}
	return c.tx(ctx, "update", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO "+c.name+" (id, value) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET value = excluded.value",
			key, value)
		return err
	})
}

// Delete removes the record under key. Missing keys are not an error.
func (c *collection[T]) Delete(ctx context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	return c.tx(ctx, "delete", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "DELETE FROM "+c.name+" WHERE id = ?", key)
		return err
	})
}

// tx runs fn in one transaction on the shared handle and records the
// outcome. Errors already carrying a store sentinel pass through unchanged.
func (c *collection[T]) tx(ctx context.Context, op string, fn func(*sql.Tx) error) (err error) {
	start := time.Now()
	defer func() {
		c.backend.metrics.Observe(ctx, c.name, op, err == nil, time.Since(start))
	}()

	db, err := c.backend.handle(ctx)
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return c.wrap(op, err)
	}
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return c.wrap(op, err)
	}
	if err = tx.Commit(); err != nil {
		return c.wrap(op, err)
	}
	return nil
}

func (c *collection[T]) wrap(op string, err error) error {
	if errors.Is(err, types.ErrDuplicateKey) || errors.Is(err, types.ErrInvalidData) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%s %s: %w", c.name, op, err)
}

func validKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return types.ErrInvalidKey
	}
	return nil
}

// encode returns the key and the JSON text for rec. The value is bound as
// TEXT so json_extract can index it.
func encode[T types.Record](rec T) (string, string, error) {
	key := rec.RecordKey()
	if err := validKey(key); err != nil {
		return "", "", err
	}
	value, err := json.Marshal(rec)
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", types.ErrInvalidData, err)
	}
	return key, string(value), nil
}
