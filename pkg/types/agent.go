package types

import (
	"context"
	"slices"
	"strings"
)

// AgentProfile is one registered player. Password holds a salted one-way
// hash, never the plaintext passcode.
type AgentProfile struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Password    string    `json:"password"`
	PeacePoints int       `json:"peacePoints"`
	Missions    []Mission `json:"missions"`
	Phone       string    `json:"phone,omitempty"`
	Email       string    `json:"email,omitempty"`
}

// RecordKey implements Record.
func (a AgentProfile) RecordKey() string { return a.ID }

// Clone returns a deep copy so a caller can patch it without touching the
// original.
func (a AgentProfile) Clone() AgentProfile {
	c := a
	if a.Missions != nil {
		c.Missions = slices.Clone(a.Missions)
	}
	return c
}

// HasRecoveryContact reports whether a phone number or email is on file.
func (a AgentProfile) HasRecoveryContact() bool {
	return strings.TrimSpace(a.Phone) != "" || strings.TrimSpace(a.Email) != ""
}

// MissionIndex returns the position of the mission with the given id, or -1.
func (a AgentProfile) MissionIndex(id string) int {
	return slices.IndexFunc(a.Missions, func(m Mission) bool { return m.ID == id })
}

// AssignMission appends a new ASSIGNED mission. Returns ErrDuplicateMission
// if the id is already present and ErrInvalidTransition if the mission is
// not in its initial state.
func (a *AgentProfile) AssignMission(m Mission) error {
	if m.Status != MissionAssigned {
		return ErrInvalidTransition
	}
	if a.MissionIndex(m.ID) >= 0 {
		return ErrDuplicateMission
	}
	a.Missions = append(a.Missions, m)
	return nil
}

// CompleteMission completes the mission and awards its points in one step,
// so both changes reach the store in the same write. On error the profile is
// unchanged.
func (a *AgentProfile) CompleteMission(id, submission string) (Mission, error) {
	i := a.MissionIndex(id)
	if i < 0 {
		return Mission{}, ErrMissionNotFound
	}
	m := a.Missions[i]
	if err := m.Complete(submission); err != nil {
		return Mission{}, err
	}
	missions := slices.Clone(a.Missions)
	missions[i] = m
	a.Missions = missions
	a.PeacePoints += m.Points
	return m, nil
}

// SameHandle compares agent handles case-insensitively.
func SameHandle(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// FindAgentByName scans the agents collection for a case-insensitive handle
// match. Collections are small, so the scan is linear and unindexed.
func FindAgentByName(ctx context.Context, agents Collection[AgentProfile], name string) (AgentProfile, bool, error) {
	all, err := agents.GetAll(ctx)
	if err != nil {
		return AgentProfile{}, false, err
	}
	for _, a := range all {
		if SameHandle(a.Name, name) {
			return a, true, nil
		}
	}
	return AgentProfile{}, false, nil
}

// RankByPeacePoints orders agents for the leaderboard: highest score first,
// ties broken by handle.
func RankByPeacePoints(agents []AgentProfile) []AgentProfile {
	ranked := slices.Clone(agents)
	slices.SortStableFunc(ranked, func(x, y AgentProfile) int {
		if x.PeacePoints != y.PeacePoints {
			return y.PeacePoints - x.PeacePoints
		}
		return strings.Compare(strings.ToLower(x.Name), strings.ToLower(y.Name))
	})
	return ranked
}
