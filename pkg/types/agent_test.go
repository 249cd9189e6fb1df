package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgentCompleteMission(t *testing.T) {
	agent := AgentProfile{
		ID:          "RSR-1",
		Name:        "Gl1tch2",
		PeacePoints: 0,
		Email:       "a@b.com",
		Missions: []Mission{
			{ID: "M1", Description: "first", Points: 50, Status: MissionAssigned},
			{ID: "M2", Description: "second", Points: 20, Status: MissionAssigned},
		},
	}
	before := agent.Clone()

	m, err := agent.CompleteMission("M1", "did it")
	require.NoError(t, err)

	assert.Equal(t, MissionCompleted, m.Status)
	assert.Equal(t, 50, agent.PeacePoints)
	assert.Equal(t, MissionCompleted, agent.Missions[0].Status)
	assert.Equal(t, "did it", agent.Missions[0].SubmissionText)
	assert.Equal(t, MissionAssigned, agent.Missions[1].Status)
	assert.Equal(t, "a@b.com", agent.Email, "unrelated fields survive the patch")

	// The clone taken before completion still shows the old state.
	assert.Equal(t, MissionAssigned, before.Missions[0].Status)
	assert.Equal(t, 0, before.PeacePoints)
}

func TestAgentCompleteMissionErrorsLeaveProfileUnchanged(t *testing.T) {
	tests := []struct {
		name      string
		missionID string
		text      string
		wantErr   error
	}{
		{name: "unknown mission", missionID: "nope", text: "x", wantErr: ErrMissionNotFound},
		{name: "empty report", missionID: "M1", text: "  ", wantErr: ErrEmptySubmission},
		{name: "already completed", missionID: "M2", text: "again", wantErr: ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agent := AgentProfile{
				ID:          "RSR-1",
				PeacePoints: 30,
				Missions: []Mission{
					{ID: "M1", Points: 50, Status: MissionAssigned},
					{ID: "M2", Points: 30, Status: MissionCompleted},
				},
			}
			want := agent.Clone()

			_, err := agent.CompleteMission(tt.missionID, tt.text)

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, want, agent)
		})
	}
}

func TestAgentAssignMission(t *testing.T) {
	agent := AgentProfile{ID: "RSR-1"}

	m, err := NewMission("M1", Directive{Description: "go", Points: 5})
	require.NoError(t, err)
	require.NoError(t, agent.AssignMission(m))
	assert.Len(t, agent.Missions, 1)

	assert.ErrorIs(t, agent.AssignMission(m), ErrDuplicateMission)
	assert.Len(t, agent.Missions, 1)

	m.ID = "M2"
	m.Status = MissionCompleted
	assert.ErrorIs(t, agent.AssignMission(m), ErrInvalidTransition)
}

func TestAgentHasRecoveryContact(t *testing.T) {
	assert.False(t, AgentProfile{}.HasRecoveryContact())
	assert.False(t, AgentProfile{Phone: "  "}.HasRecoveryContact())
	assert.True(t, AgentProfile{Phone: "555-0100"}.HasRecoveryContact())
	assert.True(t, AgentProfile{Email: "a@b.com"}.HasRecoveryContact())
}

func TestSameHandle(t *testing.T) {
	assert.True(t, SameHandle("Gl1tch2", "GL1TCH2"))
	assert.True(t, SameHandle("dup", " Dup "))
	assert.False(t, SameHandle("dup", "dupe"))
}

func TestRankByPeacePoints(t *testing.T) {
	agents := []AgentProfile{
		{ID: "1", Name: "bravo", PeacePoints: 10},
		{ID: "2", Name: "Alpha", PeacePoints: 10},
		{ID: "3", Name: "charlie", PeacePoints: 90},
	}

	ranked := RankByPeacePoints(agents)

	require.Len(t, ranked, 3)
	assert.Equal(t, "3", ranked[0].ID)
	assert.Equal(t, "2", ranked[1].ID)
	assert.Equal(t, "1", ranked[2].ID)
	assert.Equal(t, "1", agents[0].ID, "input order is not modified")
}
