package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/dossier/pkg/types"
)

func TestParseDirective(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    types.Directive
		found   bool
		wantErr bool
	}{
		{
			name:  "plain chat",
			text:  "Stay sharp, Agent.",
			found: false,
		},
		{
			name:  "directive at end",
			text:  `Your orders. [MISSION_ASSIGNED: {"description": "Call an old friend.", "points": 100}]`,
			want:  types.Directive{Description: "Call an old friend.", Points: 100},
			found: true,
		},
		{
			name:  "no space after colon",
			text:  `[MISSION_ASSIGNED:{"description":"Write a letter","points":20}]`,
			want:  types.Directive{Description: "Write a letter", Points: 20},
			found: true,
		},
		{
			name:  "payload spans lines",
			text:  "Go.\n[MISSION_ASSIGNED: {\n  \"description\": \"Plant a tree\",\n  \"points\": 30\n}]",
			want:  types.Directive{Description: "Plant a tree", Points: 30},
			found: true,
		},
		{
			name:  "first token wins",
			text:  `[MISSION_ASSIGNED: {"description": "one", "points": 1}] [MISSION_ASSIGNED: {"description": "two", "points": 2}]`,
			want:  types.Directive{Description: "one", Points: 1},
			found: true,
		},
		{
			name:  "clue classification is dropped",
			text:  `[MISSION_ASSIGNED: {"description": "Hum it", "points": 50, "category": "ACTION", "subcategory": "Racism"}]`,
			want:  types.Directive{Description: "Hum it", Points: 50},
			found: true,
		},
		{
			name:    "malformed json",
			text:    `[MISSION_ASSIGNED: {"description": "oops", "points": }]`,
			found:   true,
			wantErr: true,
		},
		{
			name:    "missing description",
			text:    `[MISSION_ASSIGNED: {"points": 10}]`,
			found:   true,
			wantErr: true,
		},
		{
			name:    "negative points",
			text:    `[MISSION_ASSIGNED: {"description": "x", "points": -5}]`,
			found:   true,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found, err := ParseDirective(tt.text)
			assert.Equal(t, tt.found, found)
			if tt.wantErr {
				assert.ErrorIs(t, err, types.ErrInvalidData)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStripTokens(t *testing.T) {
	text := `Good work. [PEACE_POINTS_TOTAL: 150] Next: [MISSION_ASSIGNED: {"description": "x", "points": 1}]`
	assert.Equal(t, "Good work.  Next:", StripTokens(text))
}

func TestInstruction(t *testing.T) {
	agent := types.AgentProfile{ID: "RSR-1", Name: "Nova", PeacePoints: 70}

	fresh := Instruction(agent, false)
	assert.Contains(t, fresh, "new recruit, Agent Nova, ID: RSR-1")
	assert.Contains(t, fresh, "[MISSION_ASSIGNED:")

	back := Instruction(agent, true)
	assert.Contains(t, back, "reconnecting with Agent Nova")
	assert.Contains(t, back, "70 Peace Points")
}
