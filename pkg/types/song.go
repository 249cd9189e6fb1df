package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Category is the top-level axis of the clue matrix.
type Category string

// Clue matrix categories, in matrix order.
const (
	CategoryKnow        Category = "KNOW"
	CategoryAction      Category = "ACTION"
	CategoryShare       Category = "SHARE"
	CategoryAlternative Category = "ALTERNATIVE"
)

// Subcategory is the second axis of the clue matrix.
type Subcategory string

// Clue matrix subcategories, in matrix order.
const (
	SubcategoryLove       Subcategory = "Love/Human Relationships"
	SubcategoryRacism     Subcategory = "Racism"
	SubcategorySexism     Subcategory = "Sexism"
	SubcategoryPhobia     Subcategory = "Homo/Transphobia"
	SubcategoryThreatOfAI Subcategory = "The Threat of AI"
)

// Matrix dimensions.
const (
	NumCategories    = 4
	NumSubcategories = 5
	MaxSegments      = 5
)

// Categories lists every category in matrix order.
var Categories = [NumCategories]Category{
	CategoryKnow, CategoryAction, CategoryShare, CategoryAlternative,
}

// Subcategories lists every subcategory in matrix order.
var Subcategories = [NumSubcategories]Subcategory{
	SubcategoryLove, SubcategoryRacism, SubcategorySexism, SubcategoryPhobia, SubcategoryThreatOfAI,
}

// Index returns the position of c in Categories, or -1.
func (c Category) Index() int {
	for i, v := range Categories {
		if v == c {
			return i
		}
	}
	return -1
}

// DefaultPoints is the Peace Point reward generated clues carry for c.
func (c Category) DefaultPoints() int {
	switch c {
	case CategoryKnow:
		return 10
	case CategoryShare:
		return 20
	case CategoryAlternative:
		return 30
	case CategoryAction:
		return 50
	}
	return 0
}

// Index returns the position of s in Subcategories, or -1.
func (s Subcategory) Index() int {
	for i, v := range Subcategories {
		if v == s {
			return i
		}
	}
	return -1
}

// ParseCategory matches a category name case-insensitively.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if strings.EqualFold(string(c), strings.TrimSpace(s)) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: unknown category %q", ErrValidation, s)
}

// ParseSubcategory matches a subcategory name case-insensitively.
func ParseSubcategory(s string) (Subcategory, error) {
	for _, c := range Subcategories {
		if strings.EqualFold(string(c), strings.TrimSpace(s)) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: unknown subcategory %q", ErrValidation, s)
}

// SegmentCount returns the number of one-minute segments a song of the given
// duration gets in its clue matrix: min(5, floor(duration/60)+1).
func SegmentCount(durationSeconds int) int {
	if durationSeconds < 0 {
		durationSeconds = 0
	}
	return min(MaxSegments, durationSeconds/60+1)
}

// SegmentLabel formats a segment index as "m:00-m:59", or "4:00+" for the last.
func SegmentLabel(segment int) string {
	if segment >= MaxSegments-1 {
		return fmt.Sprintf("%d:00+", MaxSegments-1)
	}
	return fmt.Sprintf("%d:00-%d:59", segment, segment)
}

// SegmentForTimestamp maps a playback offset to its segment index.
func SegmentForTimestamp(seconds int) int {
	if seconds < 0 {
		return 0
	}
	return min(MaxSegments-1, seconds/60)
}

// ClueMission is a mission template stored in a song's clue matrix.
type ClueMission struct {
	Description string `json:"description"`
	Points      int    `json:"points"`
}

// ClueMatrix is the fixed-shape category x subcategory x segment table of
// clue missions for one song. The zero value is an empty matrix.
type ClueMatrix struct {
	segments int
	cells    [NumCategories][NumSubcategories][]ClueMission
}

// NewClueMatrix returns a matrix with the given number of segments per
// subcategory, every clue zero-valued.
func NewClueMatrix(segments int) (ClueMatrix, error) {
	if segments < 1 || segments > MaxSegments {
		return ClueMatrix{}, fmt.Errorf("%w: segment count %d out of range", ErrInvalidClueMatrix, segments)
	}
	m := ClueMatrix{segments: segments}
	for c := range m.cells {
		for s := range m.cells[c] {
			m.cells[c][s] = make([]ClueMission, segments)
		}
	}
	return m, nil
}

// Segments returns the number of time segments, or 0 for an empty matrix.
func (m ClueMatrix) Segments() int { return m.segments }

// IsZero reports whether the matrix holds no clues.
func (m ClueMatrix) IsZero() bool { return m.segments == 0 }

// Clue returns the clue at the given cell.
func (m ClueMatrix) Clue(c Category, s Subcategory, segment int) (ClueMission, bool) {
	ci, si := c.Index(), s.Index()
	if ci < 0 || si < 0 || segment < 0 || segment >= m.segments {
		return ClueMission{}, false
	}
	return m.cells[ci][si][segment], true
}

// Set stores a clue at the given cell.
func (m *ClueMatrix) Set(c Category, s Subcategory, segment int, clue ClueMission) error {
	ci, si := c.Index(), s.Index()
	if ci < 0 || si < 0 || segment < 0 || segment >= m.segments {
		return fmt.Errorf("%w: no cell %s/%s/%d", ErrInvalidClueMatrix, c, s, segment)
	}
	m.cells[ci][si][segment] = clue
	return nil
}

// Clone returns a deep copy of the matrix.
func (m ClueMatrix) Clone() ClueMatrix {
	c := ClueMatrix{segments: m.segments}
	for ci := range m.cells {
		for si := range m.cells[ci] {
			if m.cells[ci][si] != nil {
				c.cells[ci][si] = append([]ClueMission(nil), m.cells[ci][si]...)
			}
		}
	}
	return c
}

// Validate checks that every clue has a description and non-negative points.
func (m ClueMatrix) Validate() error {
	if m.IsZero() {
		return nil
	}
	for ci, c := range Categories {
		for si, s := range Subcategories {
			if len(m.cells[ci][si]) != m.segments {
				return fmt.Errorf("%w: %s/%s has %d segments, want %d",
					ErrInvalidClueMatrix, c, s, len(m.cells[ci][si]), m.segments)
			}
			for seg, clue := range m.cells[ci][si] {
				if strings.TrimSpace(clue.Description) == "" {
					return fmt.Errorf("%w: %s/%s/%d has no description", ErrInvalidClueMatrix, c, s, seg)
				}
				if clue.Points < 0 {
					return fmt.Errorf("%w: %s/%s/%d has negative points", ErrInvalidClueMatrix, c, s, seg)
				}
			}
		}
	}
	return nil
}

// MarshalJSON encodes the matrix as {category: {subcategory: [clue...]}}.
func (m ClueMatrix) MarshalJSON() ([]byte, error) {
	out := make(map[Category]map[Subcategory][]ClueMission, NumCategories)
	if m.IsZero() {
		return json.Marshal(out)
	}
	for ci, c := range Categories {
		row := make(map[Subcategory][]ClueMission, NumSubcategories)
		for si, s := range Subcategories {
			row[s] = m.cells[ci][si]
		}
		out[c] = row
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the nested JSON form and validates its shape. Every
// category and subcategory must be present with the same number of segments.
// An empty object or null decodes to the zero matrix.
func (m *ClueMatrix) UnmarshalJSON(data []byte) error {
	var raw map[string]map[string][]ClueMission
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidClueMatrix, err)
	}
	if len(raw) == 0 {
		*m = ClueMatrix{}
		return nil
	}
	if len(raw) != NumCategories {
		return fmt.Errorf("%w: %d categories, want %d", ErrInvalidClueMatrix, len(raw), NumCategories)
	}

	var out ClueMatrix
	for ci, c := range Categories {
		row, ok := raw[string(c)]
		if !ok {
			return fmt.Errorf("%w: missing category %s", ErrInvalidClueMatrix, c)
		}
		if len(row) != NumSubcategories {
			return fmt.Errorf("%w: %s has %d subcategories, want %d", ErrInvalidClueMatrix, c, len(row), NumSubcategories)
		}
		for si, s := range Subcategories {
			clues, ok := row[string(s)]
			if !ok {
				return fmt.Errorf("%w: missing subcategory %s/%s", ErrInvalidClueMatrix, c, s)
			}
			if out.segments == 0 {
				if len(clues) < 1 || len(clues) > MaxSegments {
					return fmt.Errorf("%w: %s/%s has %d segments", ErrInvalidClueMatrix, c, s, len(clues))
				}
				out.segments = len(clues)
			}
			out.cells[ci][si] = clues
		}
	}
	if err := out.Validate(); err != nil {
		return err
	}
	*m = out
	return nil
}

// RecognizedSong is a registered audio signal whose recognition unlocks
// clue-matrix missions. ID is the recognition service's identifier.
type RecognizedSong struct {
	ID                  string     `json:"id"`
	Title               string     `json:"title"`
	Artist              string     `json:"artist"`
	Album               string     `json:"album,omitempty"`
	Duration            int        `json:"duration"`
	ClueMatrix          ClueMatrix `json:"clueMatrix"`
	IsAvailableToAgents bool       `json:"isAvailableToAgents"`
}

// RecordKey implements Record.
func (s RecognizedSong) RecordKey() string { return s.ID }

// Segments returns the number of clue segments the song's duration calls for.
func (s RecognizedSong) Segments() int { return SegmentCount(s.Duration) }

// Clone returns a deep copy of the song.
func (s RecognizedSong) Clone() RecognizedSong {
	c := s
	c.ClueMatrix = s.ClueMatrix.Clone()
	return c
}
