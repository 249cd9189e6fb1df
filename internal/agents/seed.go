package agents

import (
	"context"
	"fmt"

	"github.com/mesh-intelligence/dossier/pkg/types"
)

// rosterAgent describes a founding network agent seeded on first run.
type rosterAgent struct {
	id       string
	name     string
	points   int
	missions []types.Mission
}

func completed(id, description string, points int, review string) types.Mission {
	return types.Mission{
		ID:            id,
		Description:   description,
		Points:        points,
		Status:        types.MissionCompleted,
		ReviewComment: review,
	}
}

// roster is the founding leaderboard. Scores are carried-over network
// totals and are larger than their listed mission history.
var roster = []rosterAgent{
	{
		id: "RSR-0077", name: "Gl1tch", points: 8450,
		missions: []types.Mission{
			completed("M-A1", "Infiltrate a Raybot server farm.", 1500,
				"Clean work, Gl1tch. You were in and out without a trace."),
			completed("M-A2", `Broadcast "American Split AI" from a public landmark.`, 1000,
				"The message was heard loud and clear. Excellent execution."),
		},
	},
	{
		id: "RSR-1337", name: "rezleader", points: 7200,
		missions: []types.Mission{
			completed("M-B1", "Organize a flash mob to our new single.", 1200,
				"A perfect blend of chaos and art. Eddie would be proud."),
		},
	},
	{id: "RSR-9021", name: "ZeroCool", points: 6100},
	{
		id: "RSR-0451", name: "Echo", points: 5550,
		missions: []types.Mission{
			completed("M-C1", "Create a viral meme about The Corruption.", 500,
				"It's spreading faster than the virus itself. Solid work."),
		},
	},
}

// SeedRoster adds the founding agents when the collection is empty and
// reports how many were added. Seeded agents have no passcode and cannot
// log in. Seeding is idempotent.
func (s *Service) SeedRoster(ctx context.Context) (int, error) {
	all, err := s.agents.GetAll(ctx)
	if err != nil {
		return 0, err
	}
	if len(all) > 0 {
		return 0, nil
	}
	for _, r := range roster {
		missions := append([]types.Mission{}, r.missions...)
		a := types.AgentProfile{ID: r.id, Name: r.name, PeacePoints: r.points, Missions: missions}
		if err := s.agents.Add(ctx, a); err != nil {
			return 0, fmt.Errorf("seeding agent %s: %w", r.name, err)
		}
	}
	s.log.Info().Int("count", len(roster)).Msg("seeded founding roster")
	return len(roster), nil
}
