// Package storetest holds fixtures and a conformance suite shared by the
// types.Store backends.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/dossier/pkg/types"
)

// Matrix returns a fully populated clue matrix with the given segment count.
func Matrix(t testing.TB, segments int) types.ClueMatrix {
	t.Helper()
	m, err := types.NewClueMatrix(segments)
	require.NoError(t, err)
	for _, c := range types.Categories {
		for _, s := range types.Subcategories {
			for seg := 0; seg < segments; seg++ {
				require.NoError(t, m.Set(c, s, seg, types.ClueMission{
					Description: fmt.Sprintf("%s: %s, minute %d", c, s, seg),
					Points:      c.DefaultPoints(),
				}))
			}
		}
	}
	return m
}

// Song returns an available song whose matrix matches its duration.
func Song(t testing.TB, id string, duration int) types.RecognizedSong {
	t.Helper()
	return types.RecognizedSong{
		ID:                  id,
		Title:               "Signal " + id,
		Artist:              "The Resistance",
		Duration:            duration,
		ClueMatrix:          Matrix(t, types.SegmentCount(duration)),
		IsAvailableToAgents: true,
	}
}

// Agent returns a profile with no missions.
func Agent(id, name string) types.AgentProfile {
	return types.AgentProfile{
		ID:       id,
		Name:     name,
		Password: "hash",
		Missions: []types.Mission{},
		Email:    name + "@resistance.example",
	}
}

// Run exercises the Collection contract against stores built by newStore.
func Run(t *testing.T, newStore func(t *testing.T) types.Store) {
	t.Run("AddGet", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		agents := s.Agents()

		a := Agent("RSR-1", "Nova")
		require.NoError(t, agents.Add(ctx, a))

		got, ok, err := agents.Get(ctx, "RSR-1")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, a, got)
	})

	t.Run("GetMissingIsAbsent", func(t *testing.T) {
		s := newStore(t)
		_, ok, err := s.Songs().Get(context.Background(), "nope")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("AddDuplicateFails", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		require.NoError(t, s.Agents().Add(ctx, Agent("RSR-1", "Nova")))

		err := s.Agents().Add(ctx, Agent("RSR-1", "Other"))
		assert.ErrorIs(t, err, types.ErrDuplicateKey)

		got, _, err := s.Agents().Get(ctx, "RSR-1")
		require.NoError(t, err)
		assert.Equal(t, "Nova", got.Name)
	})

	t.Run("UpdateUpserts", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		songs := s.Songs()

		song := Song(t, "acr-1", 125)
		require.NoError(t, songs.Update(ctx, song))

		song.Title = "Retitled"
		song.IsAvailableToAgents = false
		require.NoError(t, songs.Update(ctx, song))

		all, err := songs.GetAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, "Retitled", all[0].Title)
		assert.False(t, all[0].IsAvailableToAgents)
		assert.Equal(t, 3, all[0].ClueMatrix.Segments())
	})

	t.Run("DeleteIsIdempotent", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		require.NoError(t, s.Songs().Add(ctx, Song(t, "acr-1", 60)))

		require.NoError(t, s.Songs().Delete(ctx, "acr-1"))
		require.NoError(t, s.Songs().Delete(ctx, "acr-1"))
		require.NoError(t, s.Songs().Delete(ctx, "never-existed"))

		_, ok, err := s.Songs().Get(ctx, "acr-1")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("GetAllKeyOrder", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		for _, id := range []string{"RSR-c", "RSR-a", "RSR-b"} {
			require.NoError(t, s.Agents().Add(ctx, Agent(id, id)))
		}
		all, err := s.Agents().GetAll(ctx)
		require.NoError(t, err)
		ids := make([]string, 0, len(all))
		for _, a := range all {
			ids = append(ids, a.ID)
		}
		assert.Equal(t, []string{"RSR-a", "RSR-b", "RSR-c"}, ids)
	})

	t.Run("CollectionsAreIndependent", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		require.NoError(t, s.Agents().Add(ctx, Agent("shared", "Nova")))
		require.NoError(t, s.Songs().Add(ctx, Song(t, "shared", 30)))

		require.NoError(t, s.Songs().Delete(ctx, "shared"))
		_, ok, err := s.Agents().Get(ctx, "shared")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("EmptyKeyRejected", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		assert.ErrorIs(t, s.Agents().Add(ctx, Agent("", "Nova")), types.ErrInvalidKey)
		assert.ErrorIs(t, s.Agents().Update(ctx, Agent(" ", "Nova")), types.ErrInvalidKey)
		_, _, err := s.Agents().Get(ctx, "")
		assert.ErrorIs(t, err, types.ErrInvalidKey)
		assert.ErrorIs(t, s.Agents().Delete(ctx, ""), types.ErrInvalidKey)
	})

	t.Run("ReturnedRecordsAreCopies", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		a := Agent("RSR-1", "Nova")
		m, err := types.NewMission("M01-1", types.Directive{Description: "Listen", Points: 10})
		require.NoError(t, err)
		require.NoError(t, a.AssignMission(m))
		require.NoError(t, s.Agents().Add(ctx, a))

		got, _, err := s.Agents().Get(ctx, "RSR-1")
		require.NoError(t, err)
		got.Missions[0].Status = types.MissionCompleted
		a.Missions[0].Description = "mutated"

		again, _, err := s.Agents().Get(ctx, "RSR-1")
		require.NoError(t, err)
		assert.Equal(t, types.MissionAssigned, again.Missions[0].Status)
		assert.Equal(t, "Listen", again.Missions[0].Description)
	})

	t.Run("ConcurrentAddsOneWinner", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		const n = 8
		var wg sync.WaitGroup
		errs := make([]error, n)
		for i := range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs[i] = s.Agents().Add(ctx, Agent("RSR-race", fmt.Sprintf("agent-%d", i)))
			}()
		}
		wg.Wait()

		var ok, dup int
		for _, err := range errs {
			switch {
			case err == nil:
				ok++
			case assert.ErrorIs(t, err, types.ErrDuplicateKey):
				dup++
			}
		}
		assert.Equal(t, 1, ok)
		assert.Equal(t, n-1, dup)
	})

	t.Run("ClosedStoreFails", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		require.NoError(t, s.Open(ctx))
		require.NoError(t, s.Close())
		require.NoError(t, s.Close())

		_, err := s.Agents().GetAll(ctx)
		assert.ErrorIs(t, err, types.ErrStoreClosed)
		assert.ErrorIs(t, s.Songs().Add(ctx, Song(t, "x", 10)), types.ErrStoreClosed)
		assert.ErrorIs(t, s.Open(ctx), types.ErrStoreClosed)
	})
}
