// Package session drives a live chat/voice session: it relays transcript
// text, plays audio frames, turns embedded mission directives into
// assigned missions and releases every capture/playback resource when the
// line drops.
package session

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/mesh-intelligence/dossier/pkg/types"
)

var (
	directiveToken = regexp.MustCompile(`(?s)\[MISSION_ASSIGNED:\s*(\{.*?\})\]`)
	controlTokens  = regexp.MustCompile(`\[(MISSION_ASSIGNED|PEACE_POINTS_TOTAL|MISSION_REVIEWED):.*?\]`)
)

// ParseDirective extracts the first [MISSION_ASSIGNED: {...}] token from a
// transcript fragment. It reports false when the text carries no token. A
// token whose payload is not a valid directive returns an error wrapping
// ErrInvalidData. Only description and points are read; chat missions never
// carry a clue classification.
func ParseDirective(text string) (types.Directive, bool, error) {
	m := directiveToken.FindStringSubmatch(text)
	if m == nil {
		return types.Directive{}, false, nil
	}
	var payload struct {
		Description string `json:"description"`
		Points      int    `json:"points"`
	}
	if err := json.Unmarshal([]byte(m[1]), &payload); err != nil {
		return types.Directive{}, true, fmt.Errorf("%w: mission directive: %w", types.ErrInvalidData, err)
	}
	d := types.Directive{Description: payload.Description, Points: payload.Points}
	if err := d.Validate(); err != nil {
		return types.Directive{}, true, fmt.Errorf("%w: mission directive: %w", types.ErrInvalidData, err)
	}
	return d, true, nil
}

// StripTokens removes control tokens from text shown to the agent.
func StripTokens(text string) string {
	return strings.TrimSpace(controlTokens.ReplaceAllString(text, ""))
}
