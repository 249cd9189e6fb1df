// Package songs manages the signal registry: recognized songs and their
// generated clue matrices, plus clue interrogation for agents.
package songs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/dossier/internal/agents"
	"github.com/mesh-intelligence/dossier/pkg/types"
)

// Registry errors.
var (
	ErrSongExists      = fmt.Errorf("%w: signal already registered", types.ErrDuplicateKey)
	ErrSongUnavailable = errors.New("signal is not available to agents")
	ErrDraftIncomplete = fmt.Errorf("%w: acrid, title, artist, and a valid duration are required", types.ErrValidation)
)

// Generator produces the clue matrix for a song.
type Generator interface {
	Generate(ctx context.Context, title string, durationSeconds int) (types.ClueMatrix, error)
}

// MissionAssigner gives a mission with a known id to an agent.
type MissionAssigner interface {
	AssignMissionID(ctx context.Context, agentID, missionID string, d types.Directive) (types.Mission, error)
}

// Draft is the admin-editable song metadata.
type Draft struct {
	ID       string
	Title    string
	Artist   string
	Album    string
	Duration int
}

func (d Draft) normalized() Draft {
	return Draft{
		ID:       strings.TrimSpace(d.ID),
		Title:    strings.TrimSpace(d.Title),
		Artist:   strings.TrimSpace(d.Artist),
		Album:    strings.TrimSpace(d.Album),
		Duration: d.Duration,
	}
}

// Validate checks the required fields.
func (d Draft) Validate() error {
	n := d.normalized()
	if n.ID == "" || n.Title == "" || n.Artist == "" || n.Duration <= 0 {
		return ErrDraftIncomplete
	}
	return nil
}

// Service runs the registry workflows.
type Service struct {
	songs    types.Collection[types.RecognizedSong]
	gen      Generator
	missions MissionAssigner
	log      zerolog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithMissions enables Accept by giving the service a way to assign
// missions.
func WithMissions(m MissionAssigner) Option {
	return func(s *Service) { s.missions = m }
}

// New creates a Service. gen may be nil when only read and edit workflows
// are used; Register and RegenerateIntel then fail with ErrExternalService.
func New(songs types.Collection[types.RecognizedSong], gen Generator, opts ...Option) *Service {
	s := &Service{songs: songs, gen: gen, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With().Str("component", "songs").Logger()
	return s
}

// Register generates a clue matrix for a new signal and stores it as
// available to agents. Nothing is written if generation fails.
func (s *Service) Register(ctx context.Context, d Draft) (types.RecognizedSong, error) {
	if err := d.Validate(); err != nil {
		return types.RecognizedSong{}, err
	}
	d = d.normalized()

	_, exists, err := s.songs.Get(ctx, d.ID)
	if err != nil {
		return types.RecognizedSong{}, err
	}
	if exists {
		return types.RecognizedSong{}, fmt.Errorf("%w: %s", ErrSongExists, d.ID)
	}

	matrix, err := s.generate(ctx, d.Title, d.Duration)
	if err != nil {
		return types.RecognizedSong{}, err
	}
	song := types.RecognizedSong{
		ID:                  d.ID,
		Title:               d.Title,
		Artist:              d.Artist,
		Album:               d.Album,
		Duration:            d.Duration,
		ClueMatrix:          matrix,
		IsAvailableToAgents: true,
	}
	if err := s.songs.Add(ctx, song); err != nil {
		if errors.Is(err, types.ErrDuplicateKey) {
			return types.RecognizedSong{}, fmt.Errorf("%w: %s", ErrSongExists, d.ID)
		}
		return types.RecognizedSong{}, err
	}
	s.log.Info().Str("song", song.ID).Str("title", song.Title).Int("segments", matrix.Segments()).Msg("signal registered")
	return song, nil
}

// Edit patches the metadata of originalID, keeping its clue matrix and
// availability. When the id changes the new record is added before the old
// one is deleted.
func (s *Service) Edit(ctx context.Context, originalID string, d Draft) (types.RecognizedSong, error) {
	if err := d.Validate(); err != nil {
		return types.RecognizedSong{}, err
	}
	d = d.normalized()

	orig, err := s.Get(ctx, originalID)
	if err != nil {
		return types.RecognizedSong{}, err
	}
	song := orig.Clone()
	song.ID = d.ID
	song.Title = d.Title
	song.Artist = d.Artist
	song.Album = d.Album
	song.Duration = d.Duration

	if song.Segments() != song.ClueMatrix.Segments() {
		s.log.Warn().Str("song", song.ID).Int("segments", song.Segments()).
			Int("matrix_segments", song.ClueMatrix.Segments()).Msg("duration no longer matches clue matrix; regenerate intel")
	}

	if song.ID == orig.ID {
		if err := s.songs.Update(ctx, song); err != nil {
			return types.RecognizedSong{}, err
		}
		return song, nil
	}
	if err := s.songs.Add(ctx, song); err != nil {
		if errors.Is(err, types.ErrDuplicateKey) {
			return types.RecognizedSong{}, fmt.Errorf("%w: %s", ErrSongExists, song.ID)
		}
		return types.RecognizedSong{}, err
	}
	if err := s.songs.Delete(ctx, orig.ID); err != nil {
		return types.RecognizedSong{}, fmt.Errorf("removing %s after rename to %s: %w", orig.ID, song.ID, err)
	}
	s.log.Info().Str("from", orig.ID).Str("to", song.ID).Msg("signal renamed")
	return song, nil
}

// RegenerateIntel replaces the clue matrix of a stored song. The stored
// song is untouched if generation fails.
func (s *Service) RegenerateIntel(ctx context.Context, id string) (types.RecognizedSong, error) {
	song, err := s.Get(ctx, id)
	if err != nil {
		return types.RecognizedSong{}, err
	}
	matrix, err := s.generate(ctx, song.Title, song.Duration)
	if err != nil {
		return types.RecognizedSong{}, err
	}
	song.ClueMatrix = matrix
	if err := s.songs.Update(ctx, song); err != nil {
		return types.RecognizedSong{}, err
	}
	s.log.Info().Str("song", song.ID).Int("segments", matrix.Segments()).Msg("intel regenerated")
	return song, nil
}

// SetAvailability toggles whether agents can interrogate the song.
func (s *Service) SetAvailability(ctx context.Context, id string, available bool) (types.RecognizedSong, error) {
	song, err := s.Get(ctx, id)
	if err != nil {
		return types.RecognizedSong{}, err
	}
	song.IsAvailableToAgents = available
	if err := s.songs.Update(ctx, song); err != nil {
		return types.RecognizedSong{}, err
	}
	return song, nil
}

// Delete removes a song. Deleting an unknown id succeeds.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.songs.Delete(ctx, strings.TrimSpace(id))
}

// List returns every registered song.
func (s *Service) List(ctx context.Context) ([]types.RecognizedSong, error) {
	return s.songs.GetAll(ctx)
}

// Get returns the song with the given id, or ErrSongNotFound.
func (s *Service) Get(ctx context.Context, id string) (types.RecognizedSong, error) {
	song, ok, err := s.songs.Get(ctx, strings.TrimSpace(id))
	if err != nil {
		return types.RecognizedSong{}, err
	}
	if !ok {
		return types.RecognizedSong{}, fmt.Errorf("%w: %s", types.ErrSongNotFound, id)
	}
	return song, nil
}

func (s *Service) generate(ctx context.Context, title string, duration int) (types.ClueMatrix, error) {
	if s.gen == nil {
		return types.ClueMatrix{}, fmt.Errorf("%w: no clue generator configured", types.ErrExternalService)
	}
	m, err := s.gen.Generate(ctx, title, duration)
	if err != nil {
		s.log.Error().Err(err).Str("title", title).Msg("intel generation failed")
		if errors.Is(err, types.ErrExternalService) {
			return types.ClueMatrix{}, err
		}
		return types.ClueMatrix{}, fmt.Errorf("%w: %w", types.ErrExternalService, err)
	}
	want := types.SegmentCount(duration)
	if m.Segments() != want {
		return types.ClueMatrix{}, fmt.Errorf("%w: %w: generated %d segments, want %d",
			types.ErrExternalService, types.ErrInvalidClueMatrix, m.Segments(), want)
	}
	if err := m.Validate(); err != nil {
		return types.ClueMatrix{}, fmt.Errorf("%w: %w", types.ErrExternalService, err)
	}
	return m, nil
}

// Reveal returns the clue for one cell of the song's matrix.
func Reveal(song types.RecognizedSong, segment int, c types.Category, sub types.Subcategory) (types.ClueMission, error) {
	clue, ok := song.ClueMatrix.Clue(c, sub, segment)
	if !ok {
		return types.ClueMission{}, fmt.Errorf("%w: %s %s/%s at %s", types.ErrClueNotFound, song.ID, c, sub, types.SegmentLabel(segment))
	}
	return clue, nil
}

// Accept turns a revealed clue into an ASSIGNED mission for the agent. The
// mission carries the clue's category and subcategory.
func (s *Service) Accept(ctx context.Context, agentID, songID string, segment int, c types.Category, sub types.Subcategory) (types.Mission, error) {
	if s.missions == nil {
		return types.Mission{}, errors.New("songs: no mission assigner configured")
	}
	song, err := s.Get(ctx, songID)
	if err != nil {
		return types.Mission{}, err
	}
	if !song.IsAvailableToAgents {
		return types.Mission{}, fmt.Errorf("%w: %s", ErrSongUnavailable, song.ID)
	}
	clue, err := Reveal(song, segment, c, sub)
	if err != nil {
		return types.Mission{}, err
	}
	m, err := s.missions.AssignMissionID(ctx, agentID, agents.NewID(agents.MissionPrefixClue), types.Directive{
		Description: clue.Description,
		Points:      clue.Points,
		Category:    c,
		Subcategory: sub,
	})
	if err != nil {
		return types.Mission{}, err
	}
	s.log.Info().Str("agent", agentID).Str("song", song.ID).Str("mission", m.ID).Msg("clue accepted")
	return m, nil
}
