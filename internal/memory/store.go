// Package memory implements an in-memory types.Store. Records are held in
// their JSON encoding so callers always receive independent copies, the
// same as with the SQLite backend. Intended for tests and throwaway runs.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mesh-intelligence/dossier/internal/metrics"
	"github.com/mesh-intelligence/dossier/pkg/types"
)

// Store implements types.Store backed by process memory.
type Store struct {
	mu      sync.Mutex
	closed  bool
	metrics *metrics.Recorder

	agents *collection[types.AgentProfile]
	songs  *collection[types.RecognizedSong]
}

var _ types.Store = (*Store)(nil)

// New returns an empty in-memory store. A nil recorder disables metrics.
func New(m *metrics.Recorder) *Store {
	s := &Store{metrics: m}
	s.agents = &collection[types.AgentProfile]{store: s, name: types.AgentsCollection, rows: map[string][]byte{}}
	s.songs = &collection[types.RecognizedSong]{store: s, name: types.SongsCollection, rows: map[string][]byte{}}
	return s
}

// Open succeeds until the store is closed.
func (s *Store) Open(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return types.ErrStoreClosed
	}
	return nil
}

// Agents returns the agent profile collection.
func (s *Store) Agents() types.Collection[types.AgentProfile] { return s.agents }

// Songs returns the recognized song collection.
func (s *Store) Songs() types.Collection[types.RecognizedSong] { return s.songs }

// Close drops all records. Idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.agents.rows = nil
	s.songs.rows = nil
	return nil
}

type collection[T types.Record] struct {
	store *Store
	name  string
	rows  map[string][]byte
}

func (c *collection[T]) Name() string { return c.name }

func (c *collection[T]) GetAll(ctx context.Context) ([]T, error) {
	var out []T
	err := c.do(ctx, "get_all", func() error {
		keys := make([]string, 0, len(c.rows))
		for k := range c.rows {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			var rec T
			if err := json.Unmarshal(c.rows[k], &rec); err != nil {
				continue
			}
			out = append(out, rec)
		}
		return nil
	})
	return out, err
}

func (c *collection[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var (
		rec T
		ok  bool
	)
	if strings.TrimSpace(key) == "" {
		return rec, false, types.ErrInvalidKey
	}
	err := c.do(ctx, "get", func() error {
		raw, found := c.rows[key]
		if !found {
			return nil
		}
		if err := json.Unmarshal(raw, &rec); err != nil {
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

func (c *collection[T]) Add(ctx context.Context, rec T) error {
	key, raw, err := encode(rec)
	if err != nil {
		return err
	}
	return c.do(ctx, "add", func() error {
		if _, exists := c.rows[key]; exists {
			return fmt.Errorf("%w: %s %q", types.ErrDuplicateKey, c.name, key)
		}
		c.rows[key] = raw
		return nil
	})
}

func (c *collection[T]) Update(ctx context.Context, rec T) error {
	key, raw, err := encode(rec)
	if err != nil {
		return err
	}
	return c.do(ctx, "update", func() error {
		c.rows[key] = raw
		return nil
	})
}

func (c *collection[T]) Delete(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return types.ErrInvalidKey
	}
	return c.do(ctx, "delete", func() error {
		delete(c.rows, key)
		return nil
	})
}

// do runs fn under the store lock, the in-memory equivalent of one
// transaction.
func (c *collection[T]) do(ctx context.Context, op string, fn func() error) (err error) {
	start := time.Now()
	defer func() {
		c.store.metrics.Observe(ctx, c.name, op, err == nil, time.Since(start))
	}()
	if err := ctx.Err(); err != nil {
		return err
	}

	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	if c.store.closed {
		return types.ErrStoreClosed
	}
	return fn()
}

func encode[T types.Record](rec T) (string, []byte, error) {
	key := rec.RecordKey()
	if strings.TrimSpace(key) == "" {
		return "", nil, types.ErrInvalidKey
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", types.ErrInvalidData, err)
	}
	return key, raw, nil
}
