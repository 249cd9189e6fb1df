package songs

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mesh-intelligence/dossier/pkg/types"
)

// ParseDuration converts "MM:SS" to seconds. Seconds must be 0-59 and the
// total must be positive.
func ParseDuration(s string) (int, error) {
	minutes, seconds, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || strings.Contains(seconds, ":") {
		return 0, fmt.Errorf("%w: duration %q is not MM:SS", types.ErrValidation, s)
	}
	m, err := strconv.Atoi(minutes)
	if err != nil || m < 0 {
		return 0, fmt.Errorf("%w: duration %q has invalid minutes", types.ErrValidation, s)
	}
	sec, err := strconv.Atoi(seconds)
	if err != nil || sec < 0 || sec > 59 {
		return 0, fmt.Errorf("%w: duration %q has invalid seconds", types.ErrValidation, s)
	}
	total := m*60 + sec
	if total == 0 {
		return 0, fmt.Errorf("%w: duration must be positive", types.ErrValidation)
	}
	return total, nil
}

// FormatDuration renders seconds as M:SS.
func FormatDuration(seconds int) string {
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
