// Package agents implements the agent profile workflows on top of the
// agents collection: registration, login, password recovery, and the
// mission read-modify-write protocol.
//
// Every profile change goes through Mutate, which serializes writers per
// agent, applies the change to a private copy, and persists it with a single
// Update. Callers only ever see values that were persisted.
package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/mesh-intelligence/dossier/internal/metrics"
	"github.com/mesh-intelligence/dossier/pkg/types"
)

// ID prefixes.
const (
	AgentIDPrefix     = "RSR"
	MissionPrefixChat = "M01"
	MissionPrefixClue = "CLU"
)

// Service runs agent workflows against an agents collection.
type Service struct {
	agents   types.Collection[types.AgentProfile]
	log      zerolog.Logger
	metrics  *metrics.Recorder
	hashCost int

	profiles *keyLock
	handles  *keyLock
}

// handleSlot is the single key every handle write takes. Handles compare
// with Unicode case folding (SameHandle), so all of them share one slot.
const handleSlot = "handles"

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Recorder) Option {
	return func(s *Service) { s.metrics = m }
}

// WithHashCost sets the bcrypt cost for new password hashes.
func WithHashCost(cost int) Option {
	return func(s *Service) { s.hashCost = cost }
}

// New creates a Service over the given collection.
func New(agents types.Collection[types.AgentProfile], opts ...Option) *Service {
	s := &Service{
		agents:   agents,
		log:      zerolog.Nop(),
		hashCost: bcrypt.DefaultCost,
		profiles: newKeyLock(),
		handles:  newKeyLock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With().Str("component", "agents").Logger()
	return s
}

// NewID returns prefix-<uuid v7>. UUID v7 is time ordered.
func NewID(prefix string) string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return prefix + "-" + id.String()
}

// Get returns the profile with the given id, or ErrAgentNotFound.
func (s *Service) Get(ctx context.Context, id string) (types.AgentProfile, error) {
	a, ok, err := s.agents.Get(ctx, id)
	if err != nil {
		return types.AgentProfile{}, err
	}
	if !ok {
		return types.AgentProfile{}, fmt.Errorf("%w: %s", types.ErrAgentNotFound, id)
	}
	return a, nil
}

// FindByName returns the profile whose handle matches name
// case-insensitively, or ErrAgentNotFound.
func (s *Service) FindByName(ctx context.Context, name string) (types.AgentProfile, error) {
	a, ok, err := types.FindAgentByName(ctx, s.agents, name)
	if err != nil {
		return types.AgentProfile{}, err
	}
	if !ok {
		return types.AgentProfile{}, fmt.Errorf("%w: %s", types.ErrAgentNotFound, name)
	}
	return a, nil
}

// List returns every stored profile in id order.
func (s *Service) List(ctx context.Context) ([]types.AgentProfile, error) {
	return s.agents.GetAll(ctx)
}

// Leaderboard returns all profiles ranked by Peace Points. It is computed
// from the collection on every call.
func (s *Service) Leaderboard(ctx context.Context) ([]types.AgentProfile, error) {
	all, err := s.agents.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return types.RankByPeacePoints(all), nil
}

// Mutate applies fn to a copy of the stored profile and persists the result
// with one Update. Writers to the same agent run one at a time. On any error
// nothing is written and the zero profile is returned; on success the
// persisted profile is returned.
func (s *Service) Mutate(ctx context.Context, agentID string, fn func(*types.AgentProfile) error) (types.AgentProfile, error) {
	release, err := s.profiles.acquire(ctx, agentID)
	if err != nil {
		return types.AgentProfile{}, err
	}
	defer release()

	cur, err := s.Get(ctx, agentID)
	if err != nil {
		return types.AgentProfile{}, err
	}
	next := cur.Clone()
	if err := fn(&next); err != nil {
		return types.AgentProfile{}, err
	}
	if next.ID != cur.ID {
		return types.AgentProfile{}, fmt.Errorf("%w: profile id cannot change", types.ErrValidation)
	}
	if err := s.agents.Update(ctx, next); err != nil {
		return types.AgentProfile{}, err
	}
	return next, nil
}

// AssignMission appends a new ASSIGNED mission built from d with a fresh
// chat mission id.
func (s *Service) AssignMission(ctx context.Context, agentID string, d types.Directive) (types.Mission, error) {
	return s.AssignMissionID(ctx, agentID, NewID(MissionPrefixChat), d)
}

// AssignMissionID appends a new ASSIGNED mission with the given id.
func (s *Service) AssignMissionID(ctx context.Context, agentID, missionID string, d types.Directive) (types.Mission, error) {
	m, err := types.NewMission(missionID, d)
	if err != nil {
		return types.Mission{}, err
	}
	if _, err := s.Mutate(ctx, agentID, func(a *types.AgentProfile) error {
		return a.AssignMission(m)
	}); err != nil {
		return types.Mission{}, err
	}
	s.metrics.MissionAssigned()
	s.log.Info().Str("agent", agentID).Str("mission", m.ID).Int("points", m.Points).Msg("mission assigned")
	return m, nil
}

// SubmitMission completes an ASSIGNED mission with the report text and
// awards its points in the same write. It returns the persisted profile and
// the completed mission.
func (s *Service) SubmitMission(ctx context.Context, agentID, missionID, text string) (types.AgentProfile, types.Mission, error) {
	var done types.Mission
	a, err := s.Mutate(ctx, agentID, func(a *types.AgentProfile) error {
		m, err := a.CompleteMission(missionID, text)
		done = m
		return err
	})
	if err != nil {
		return types.AgentProfile{}, types.Mission{}, err
	}
	s.metrics.MissionCompleted(done.Points)
	s.log.Info().Str("agent", agentID).Str("mission", missionID).Int("points", done.Points).
		Int("peace_points", a.PeacePoints).Msg("mission completed")
	return a, done, nil
}

// ImportProfile upserts a profile read from a snapshot. A profile whose
// handle already belongs to another id is refused with an error wrapping
// both ErrDuplicateKey and ErrHandleTaken; one without an id or handle
// wraps ErrValidation.
func (s *Service) ImportProfile(ctx context.Context, a types.AgentProfile) error {
	a.Name = strings.TrimSpace(a.Name)
	if a.ID == "" || a.Name == "" {
		return fmt.Errorf("%w: imported profile needs an id and a handle", types.ErrValidation)
	}

	release, err := s.handles.acquire(ctx, handleSlot)
	if err != nil {
		return err
	}
	defer release()

	other, found, err := types.FindAgentByName(ctx, s.agents, a.Name)
	if err != nil {
		return err
	}
	if found && other.ID != a.ID {
		s.log.Warn().Str("agent", a.ID).Str("name", a.Name).Str("holder", other.ID).Msg("import refused: handle taken")
		return fmt.Errorf("%w: %w: %s", types.ErrDuplicateKey, ErrHandleTaken, a.Name)
	}

	unlock, err := s.profiles.acquire(ctx, a.ID)
	if err != nil {
		return err
	}
	defer unlock()
	return s.agents.Update(ctx, a)
}

// isNotFound reports whether err means the agent does not exist.
func isNotFound(err error) bool {
	return errors.Is(err, types.ErrAgentNotFound)
}
