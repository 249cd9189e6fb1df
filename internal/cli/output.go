package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/dossier/internal/songs"
	"github.com/mesh-intelligence/dossier/pkg/types"
)

var (
	headerColor = color.New(color.FgRed, color.Bold)
	okColor     = color.New(color.FgGreen)
	warnColor   = color.New(color.FgYellow)
	dimColor    = color.New(color.FgHiBlack)
)

// emit writes v as indented JSON in --json mode, otherwise calls text.
func (f *rootFlags) emit(cmd *cobra.Command, v any, text func(w io.Writer) error) error {
	w := cmd.OutOrStdout()
	if f.jsonMode {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return text(w)
}

// agentView is the public face of a profile: never the password hash.
type agentView struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	PeacePoints int             `json:"peacePoints"`
	Phone       string          `json:"phone,omitempty"`
	Email       string          `json:"email,omitempty"`
	Missions    []types.Mission `json:"missions"`
}

func viewAgent(a types.AgentProfile) agentView {
	missions := a.Missions
	if missions == nil {
		missions = []types.Mission{}
	}
	return agentView{ID: a.ID, Name: a.Name, PeacePoints: a.PeacePoints, Phone: a.Phone, Email: a.Email, Missions: missions}
}

func statusColor(s types.MissionStatus) *color.Color {
	switch s {
	case types.MissionCompleted:
		return okColor
	case types.MissionPendingReview:
		return warnColor
	default:
		return color.New(color.FgCyan)
	}
}

func printAgent(w io.Writer, a types.AgentProfile) error {
	headerColor.Fprintf(w, "AGENT %s\n", a.Name)
	fmt.Fprintf(w, "ID:           %s\n", a.ID)
	fmt.Fprintf(w, "Peace Points: %d\n", a.PeacePoints)
	if a.Phone != "" {
		fmt.Fprintf(w, "Phone:        %s\n", a.Phone)
	}
	if a.Email != "" {
		fmt.Fprintf(w, "Email:        %s\n", a.Email)
	}
	fmt.Fprintf(w, "Missions:     %d\n", len(a.Missions))
	return nil
}

func printMissions(w io.Writer, missions []types.Mission) error {
	if len(missions) == 0 {
		dimColor.Fprintln(w, "No missions assigned.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tPOINTS\tDESCRIPTION")
	for _, m := range missions {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", m.ID, statusColor(m.Status).Sprint(m.Status), m.Points, m.Description)
	}
	return tw.Flush()
}

func printSong(w io.Writer, s types.RecognizedSong, withMatrix bool) error {
	headerColor.Fprintf(w, "SIGNAL %s\n", s.ID)
	fmt.Fprintf(w, "Title:     %s\n", s.Title)
	fmt.Fprintf(w, "Artist:    %s\n", s.Artist)
	if s.Album != "" {
		fmt.Fprintf(w, "Album:     %s\n", s.Album)
	}
	fmt.Fprintf(w, "Duration:  %s\n", songs.FormatDuration(s.Duration))
	fmt.Fprintf(w, "Segments:  %d\n", s.ClueMatrix.Segments())
	avail := warnColor.Sprint("no")
	if s.IsAvailableToAgents {
		avail = okColor.Sprint("yes")
	}
	fmt.Fprintf(w, "Available: %s\n", avail)
	if !withMatrix || s.ClueMatrix.IsZero() {
		return nil
	}
	for _, c := range types.Categories {
		fmt.Fprintln(w)
		headerColor.Fprintln(w, c)
		for _, sub := range types.Subcategories {
			fmt.Fprintf(w, "  %s\n", sub)
			for seg := 0; seg < s.ClueMatrix.Segments(); seg++ {
				clue, _ := s.ClueMatrix.Clue(c, sub, seg)
				fmt.Fprintf(w, "    [%s] (%d) %s\n", types.SegmentLabel(seg), clue.Points, clue.Description)
			}
		}
	}
	return nil
}
