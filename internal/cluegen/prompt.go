package cluegen

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/dossier/pkg/types"
)

// Prompt builds the generation instructions for a song with the given
// number of one-minute segments.
func Prompt(title string, segments int) string {
	cats := make([]string, 0, types.NumCategories)
	for _, c := range types.Categories {
		cats = append(cats, string(c))
	}
	subs := make([]string, 0, types.NumSubcategories)
	for _, s := range types.Subcategories {
		subs = append(subs, string(s))
	}
	points := fmt.Sprintf("%s=%d, %s=%d, %s=%d, %s=%d",
		types.CategoryKnow, types.CategoryKnow.DefaultPoints(),
		types.CategoryShare, types.CategoryShare.DefaultPoints(),
		types.CategoryAction, types.CategoryAction.DefaultPoints(),
		types.CategoryAlternative, types.CategoryAlternative.DefaultPoints())

	return fmt.Sprintf(`You are the Mission Intel Generator for a cyberpunk ARG, "Raybot Spider Resistance".
Your task is to generate a complete mission matrix for a song titled %q.
You must generate a unique mission for EVERY combination of category, subcategory, and time segment.

RULES:
1. Time Segments: Generate missions for the first %d one-minute time segments of the song.
2. Categories: For each time segment, create a mission for all %d main categories: %s.
3. Subcategories: For each main category, create a mission for all %d subcategories: %s.
4. Points: Assign points STRICTLY as follows: %s.
5. Content: Missions must be creative, thematic, and directly related to their subcategory. "ACTION" missions must involve a real-world or online task. "KNOW" missions should be intriguing questions. "SHARE" missions involve social media. "ALTERNATIVE" missions are eccentric and artistic.
6. Format: Return a single JSON object matching the provided schema. Each subcategory array must have exactly %d items, corresponding to each time segment.`,
		title, segments, types.NumCategories, strings.Join(cats, ", "),
		types.NumSubcategories, strings.Join(subs, ", "), points, segments)
}

func matrixSchema() *schema {
	clue := &schema{
		Type: "OBJECT",
		Properties: map[string]*schema{
			"description": {Type: "STRING", Description: "A unique, creative, and compelling mission objective (15-30 words). Must be a clear call to action or a provocative question."},
			"points":      {Type: "INTEGER", Description: "Peace Points by category: KNOW=10, SHARE=20, ACTION=50, ALTERNATIVE=30."},
		},
		Required: []string{"description", "points"},
	}
	root := &schema{Type: "OBJECT", Properties: map[string]*schema{}}
	for _, c := range types.Categories {
		row := &schema{Type: "OBJECT", Properties: map[string]*schema{}}
		for _, s := range types.Subcategories {
			row.Properties[string(s)] = &schema{Type: "ARRAY", Items: clue}
			row.Required = append(row.Required, string(s))
		}
		root.Properties[string(c)] = row
		root.Required = append(root.Required, string(c))
	}
	return root
}

// ParseMatrix decodes model output into a validated matrix. Markdown code
// fences around the JSON are tolerated.
func ParseMatrix(text string) (types.ClueMatrix, error) {
	var m types.ClueMatrix
	if err := json.Unmarshal([]byte(stripFences(text)), &m); err != nil {
		return types.ClueMatrix{}, err
	}
	if m.IsZero() {
		return types.ClueMatrix{}, fmt.Errorf("%w: empty matrix", types.ErrInvalidClueMatrix)
	}
	return m, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}
