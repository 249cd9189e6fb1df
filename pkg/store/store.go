// Package store provides the public factory for types.Store backends while
// keeping their implementations internal.
package store

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/dossier/internal/memory"
	"github.com/mesh-intelligence/dossier/internal/metrics"
	"github.com/mesh-intelligence/dossier/internal/sqlite"
	"github.com/mesh-intelligence/dossier/pkg/types"
)

// Options carries optional collaborators for a backend.
type Options struct {
	Logger  zerolog.Logger
	Metrics *metrics.Recorder
}

// New creates the backend named by config.Backend. The store is not opened;
// call Open during startup or let the first collection call open it.
//
// Example:
//
//	s, err := store.New(types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: dataDir,
//	}, store.Options{Logger: log})
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
func New(config types.Config, opts Options) (types.Store, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("store config: %w", err)
	}
	switch config.Backend {
	case types.BackendMemory:
		return memory.New(opts.Metrics), nil
	default:
		return sqlite.NewBackend(config,
			sqlite.WithLogger(opts.Logger),
			sqlite.WithMetrics(opts.Metrics),
		), nil
	}
}
