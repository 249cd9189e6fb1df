package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/dossier/internal/songs"
	"github.com/mesh-intelligence/dossier/pkg/types"
)

func newClueCmd(f *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clue",
		Short: "Interrogate a signal's clue matrix",
	}
	cmd.AddCommand(newClueRevealCmd(f), newClueAcceptCmd(f))
	return cmd
}

// cellFlags selects one clue: a segment (directly or from a playback
// offset) plus category and subcategory.
type cellFlags struct {
	segment     int
	at          int
	category    string
	subcategory string
}

func (c *cellFlags) bind(cmd *cobra.Command) {
	cmd.Flags().IntVar(&c.segment, "segment", 0, "time segment index (0 is 0:00-0:59)")
	cmd.Flags().IntVar(&c.at, "at", 0, "playback offset in seconds; selects the segment")
	cmd.Flags().StringVar(&c.category, "category", "", "KNOW, ACTION, SHARE or ALTERNATIVE")
	cmd.Flags().StringVar(&c.subcategory, "subcategory", "", "subcategory name")
	cmd.MarkFlagsMutuallyExclusive("segment", "at")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("subcategory")
}

func (c *cellFlags) resolve(cmd *cobra.Command) (int, types.Category, types.Subcategory, error) {
	seg := c.segment
	if cmd.Flags().Changed("at") {
		seg = types.SegmentForTimestamp(c.at)
	}
	cat, sub, err := parseCell(c.category, c.subcategory)
	return seg, cat, sub, err
}

type revealResult struct {
	Song        string            `json:"song"`
	Segment     int               `json:"segment"`
	Label       string            `json:"label"`
	Category    types.Category    `json:"category"`
	Subcategory types.Subcategory `json:"subcategory"`
	Clue        types.ClueMission `json:"clue"`
}

func newClueRevealCmd(f *rootFlags) *cobra.Command {
	var cell cellFlags
	cmd := &cobra.Command{
		Use:   "reveal <song-id>",
		Short: "Reveal one clue of an available signal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seg, cat, sub, err := cell.resolve(cmd)
			if err != nil {
				return err
			}
			return f.run(cmd, func(a *app) error {
				s, err := a.songs.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !s.IsAvailableToAgents {
					return fmt.Errorf("%w: %s", songs.ErrSongUnavailable, s.ID)
				}
				clue, err := songs.Reveal(s, seg, cat, sub)
				if err != nil {
					return err
				}
				res := revealResult{Song: s.ID, Segment: seg, Label: types.SegmentLabel(seg), Category: cat, Subcategory: sub, Clue: clue}
				return f.emit(cmd, res, func(w io.Writer) error {
					headerColor.Fprintf(w, "INTEL // %s // %s // %s\n", s.Title, res.Label, cat)
					fmt.Fprintf(w, "%s\n", sub)
					fmt.Fprintf(w, "%s\nReward: %d Peace Points\n", clue.Description, clue.Points)
					return nil
				})
			})
		},
	}
	cell.bind(cmd)
	return cmd
}

func newClueAcceptCmd(f *rootFlags) *cobra.Command {
	var cell cellFlags
	var agent, song string
	cmd := &cobra.Command{
		Use:   "accept",
		Short: "Accept a clue as a mission",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			seg, cat, sub, err := cell.resolve(cmd)
			if err != nil {
				return err
			}
			return f.run(cmd, func(a *app) error {
				p, err := a.agentByName(cmd, agent)
				if err != nil {
					return err
				}
				m, err := a.songs.Accept(cmd.Context(), p.ID, song, seg, cat, sub)
				if err != nil {
					return err
				}
				return f.emit(cmd, m, func(w io.Writer) error {
					okColor.Fprintf(w, "Mission %s accepted by Agent %s (%d Peace Points).\n", m.ID, p.Name, m.Points)
					_, err := fmt.Fprintln(w, m.Description)
					return err
				})
			})
		},
	}
	cmd.Flags().StringVar(&agent, "agent", "", "agent handle")
	cmd.Flags().StringVar(&song, "song", "", "signal id")
	_ = cmd.MarkFlagRequired("agent")
	_ = cmd.MarkFlagRequired("song")
	cell.bind(cmd)
	return cmd
}
