package cli

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/dossier/internal/agents"
	"github.com/mesh-intelligence/dossier/internal/cluegen"
	"github.com/mesh-intelligence/dossier/internal/config"
	"github.com/mesh-intelligence/dossier/internal/logging"
	"github.com/mesh-intelligence/dossier/internal/metrics"
	"github.com/mesh-intelligence/dossier/internal/paths"
	"github.com/mesh-intelligence/dossier/internal/songs"
	"github.com/mesh-intelligence/dossier/pkg/store"
	"github.com/mesh-intelligence/dossier/pkg/types"
)

// env is the configuration and ambient services every command starts from.
type env struct {
	configDir string
	cfg       *config.Config
	log       zerolog.Logger
	registry  *prometheus.Registry
	metrics   *metrics.Recorder
}

// app adds the opened store and the workflows built on it.
type app struct {
	*env
	store  types.Store
	agents *agents.Service
	songs  *songs.Service
}

// loadEnv resolves directories, reads configuration and builds the logger
// and metrics registry.
func (f *rootFlags) loadEnv(cmd *cobra.Command) (*env, error) {
	configDir, err := paths.ResolveConfigDir(f.configDir)
	if err != nil {
		return nil, fmt.Errorf("resolve config dir: %w", err)
	}
	cfg, err := config.Load(configDir, f.dataDir)
	if err != nil {
		return nil, err
	}
	if f.backend != "" {
		cfg.Store.Backend = f.backend
	}
	cfg.Log.Output = cmd.ErrOrStderr()
	cfg.Log.ServiceName = "dossier"

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	if err != nil {
		return nil, err
	}
	return &env{configDir: configDir, cfg: cfg, log: logging.New(cfg.Log), registry: reg, metrics: m}, nil
}

// open loads the environment, opens the store and wires the services.
// The caller must call close.
func (f *rootFlags) open(cmd *cobra.Command) (*app, error) {
	e, err := f.loadEnv(cmd)
	if err != nil {
		return nil, err
	}
	st, err := store.New(e.cfg.Store, store.Options{Logger: e.log, Metrics: e.metrics})
	if err != nil {
		return nil, err
	}
	if err := st.Open(cmd.Context()); err != nil {
		return nil, err
	}

	ag := agents.New(st.Agents(), agents.WithLogger(e.log), agents.WithMetrics(e.metrics))

	// Clue generation is optional; without a key Register and regen fail
	// with ErrExternalService.
	var gen songs.Generator
	client, err := cluegen.New(e.cfg.Gemini, cluegen.WithLogger(e.log))
	switch {
	case err == nil:
		gen = client
	case !errors.Is(err, cluegen.ErrNoAPIKey):
		st.Close()
		return nil, err
	}
	sg := songs.New(st.Songs(), gen, songs.WithLogger(e.log), songs.WithMissions(ag))

	return &app{env: e, store: st, agents: ag, songs: sg}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.log.Warn().Err(err).Msg("close store")
	}
}

// run opens the app for the duration of fn.
func (f *rootFlags) run(cmd *cobra.Command, fn func(a *app) error) error {
	a, err := f.open(cmd)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(a)
}

// agentByName resolves a handle to its profile.
func (a *app) agentByName(cmd *cobra.Command, name string) (types.AgentProfile, error) {
	return a.agents.FindByName(cmd.Context(), name)
}
