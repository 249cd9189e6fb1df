package types

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fullMatrix builds a matrix with every cell filled.
func fullMatrix(t *testing.T, segments int) ClueMatrix {
	t.Helper()
	m, err := NewClueMatrix(segments)
	require.NoError(t, err)
	for _, c := range Categories {
		for _, s := range Subcategories {
			for seg := 0; seg < segments; seg++ {
				require.NoError(t, m.Set(c, s, seg, ClueMission{
					Description: fmt.Sprintf("%s %s minute %d", c, s, seg),
					Points:      c.DefaultPoints(),
				}))
			}
		}
	}
	return m
}

func TestSegmentCount(t *testing.T) {
	tests := []struct {
		duration int
		want     int
	}{
		{duration: 0, want: 1},
		{duration: 59, want: 1},
		{duration: 60, want: 2},
		{duration: 125, want: 3},
		{duration: 239, want: 4},
		{duration: 240, want: 5},
		{duration: 600, want: 5},
		{duration: -3, want: 1},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%ds", tt.duration), func(t *testing.T) {
			assert.Equal(t, tt.want, SegmentCount(tt.duration))
		})
	}
}

func TestSegmentLabels(t *testing.T) {
	assert.Equal(t, "0:00-0:59", SegmentLabel(0))
	assert.Equal(t, "3:00-3:59", SegmentLabel(3))
	assert.Equal(t, "4:00+", SegmentLabel(4))

	assert.Equal(t, 0, SegmentForTimestamp(-1))
	assert.Equal(t, 2, SegmentForTimestamp(125))
	assert.Equal(t, 4, SegmentForTimestamp(3600))
}

func TestClueMatrixRoundTrip(t *testing.T) {
	for segments := 1; segments <= MaxSegments; segments++ {
		t.Run(fmt.Sprintf("%d segments", segments), func(t *testing.T) {
			song := RecognizedSong{
				ID:                  "acr-1",
				Title:               "American Split AI",
				Artist:              "Eddie Sing & The 31 Days",
				Duration:            segments * 60,
				ClueMatrix:          fullMatrix(t, segments),
				IsAvailableToAgents: true,
			}

			data, err := json.Marshal(song)
			require.NoError(t, err)

			var got RecognizedSong
			require.NoError(t, json.Unmarshal(data, &got))

			assert.Equal(t, song, got)
			assert.Equal(t, segments, got.ClueMatrix.Segments())
		})
	}
}

func TestClueMatrixJSONLayout(t *testing.T) {
	data, err := json.Marshal(fullMatrix(t, 2))
	require.NoError(t, err)

	var raw map[string]map[string][]ClueMission
	require.NoError(t, json.Unmarshal(data, &raw))

	assert.Len(t, raw, NumCategories)
	assert.Len(t, raw["KNOW"], NumSubcategories)
	assert.Len(t, raw["KNOW"]["Love/Human Relationships"], 2)
	assert.Equal(t, 50, raw["ACTION"]["Racism"][1].Points)
}

func TestClueMatrixUnmarshalRejectsBadShape(t *testing.T) {
	good := func() map[string]map[string][]ClueMission {
		data, err := json.Marshal(fullMatrix(t, 3))
		require.NoError(t, err)
		var raw map[string]map[string][]ClueMission
		require.NoError(t, json.Unmarshal(data, &raw))
		return raw
	}

	tests := []struct {
		name   string
		mutate func(raw map[string]map[string][]ClueMission)
	}{
		{
			name:   "missing category",
			mutate: func(raw map[string]map[string][]ClueMission) { delete(raw, "SHARE") },
		},
		{
			name: "unknown category",
			mutate: func(raw map[string]map[string][]ClueMission) {
				raw["DANCE"] = raw["SHARE"]
				delete(raw, "SHARE")
			},
		},
		{
			name:   "missing subcategory",
			mutate: func(raw map[string]map[string][]ClueMission) { delete(raw["KNOW"], "Racism") },
		},
		{
			name: "ragged segment lists",
			mutate: func(raw map[string]map[string][]ClueMission) {
				raw["ACTION"]["Sexism"] = raw["ACTION"]["Sexism"][:2]
			},
		},
		{
			name: "too many segments",
			mutate: func(raw map[string]map[string][]ClueMission) {
				for _, row := range raw {
					for s, clues := range row {
						row[s] = append(clues, clues...)
					}
				}
			},
		},
		{
			name: "empty description",
			mutate: func(raw map[string]map[string][]ClueMission) {
				raw["KNOW"]["Racism"][0].Description = ""
			},
		},
		{
			name: "negative points",
			mutate: func(raw map[string]map[string][]ClueMission) {
				raw["KNOW"]["Racism"][0].Points = -1
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := good()
			tt.mutate(raw)
			data, err := json.Marshal(raw)
			require.NoError(t, err)

			var m ClueMatrix
			err = json.Unmarshal(data, &m)
			assert.ErrorIs(t, err, ErrInvalidClueMatrix)
			assert.True(t, m.IsZero(), "failed decode must not leave a partial matrix")
		})
	}
}

func TestClueMatrixEmpty(t *testing.T) {
	var m ClueMatrix
	require.NoError(t, json.Unmarshal([]byte(`{}`), &m))
	assert.True(t, m.IsZero())
	require.NoError(t, json.Unmarshal([]byte(`null`), &m))
	assert.True(t, m.IsZero())

	data, err := json.Marshal(ClueMatrix{})
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(data))
}

func TestClueMatrixLookup(t *testing.T) {
	m := fullMatrix(t, 3)

	clue, ok := m.Clue(CategoryShare, SubcategoryThreatOfAI, 2)
	require.True(t, ok)
	assert.Equal(t, 20, clue.Points)

	_, ok = m.Clue(CategoryShare, SubcategoryThreatOfAI, 3)
	assert.False(t, ok)
	_, ok = m.Clue("DANCE", SubcategoryRacism, 0)
	assert.False(t, ok)

	assert.ErrorIs(t, m.Set(CategoryKnow, SubcategoryRacism, 7, ClueMission{}), ErrInvalidClueMatrix)
}

func TestClueMatrixCloneIsDeep(t *testing.T) {
	m := fullMatrix(t, 1)
	c := m.Clone()
	require.NoError(t, c.Set(CategoryKnow, SubcategoryLove, 0, ClueMission{Description: "changed", Points: 1}))

	orig, _ := m.Clue(CategoryKnow, SubcategoryLove, 0)
	assert.NotEqual(t, "changed", orig.Description)
}

func TestParseCategories(t *testing.T) {
	c, err := ParseCategory("action")
	require.NoError(t, err)
	assert.Equal(t, CategoryAction, c)

	s, err := ParseSubcategory("the threat of ai")
	require.NoError(t, err)
	assert.Equal(t, SubcategoryThreatOfAI, s)

	_, err = ParseCategory("nope")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = ParseSubcategory("nope")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestNewClueMatrixBounds(t *testing.T) {
	_, err := NewClueMatrix(0)
	assert.ErrorIs(t, err, ErrInvalidClueMatrix)
	_, err = NewClueMatrix(MaxSegments + 1)
	assert.ErrorIs(t, err, ErrInvalidClueMatrix)
}
