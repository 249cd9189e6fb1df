package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/dossier/internal/songs"
	"github.com/mesh-intelligence/dossier/pkg/types"
)

func newSongCmd(f *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "song",
		Aliases: []string{"signal"},
		Short:   "Manage registered signals and their clue matrices",
	}
	cmd.AddCommand(
		newSongRegisterCmd(f),
		newSongEditCmd(f),
		newSongDeleteCmd(f),
		newSongRegenCmd(f),
		newSongAvailabilityCmd(f),
		newSongListCmd(f),
		newSongShowCmd(f),
	)
	return cmd
}

// draftFlags binds the editable metadata of a song.
type draftFlags struct {
	id, title, artist, album, duration string
}

func (d *draftFlags) bind(cmd *cobra.Command, idFlag string) {
	cmd.Flags().StringVar(&d.id, idFlag, "", "recognition service id (ACRID)")
	cmd.Flags().StringVar(&d.title, "title", "", "song title")
	cmd.Flags().StringVar(&d.artist, "artist", "", "artist")
	cmd.Flags().StringVar(&d.album, "album", "", "album")
	cmd.Flags().StringVar(&d.duration, "duration", "", "length as MM:SS")
}

func (d *draftFlags) draft() (songs.Draft, error) {
	secs, err := songs.ParseDuration(d.duration)
	if err != nil {
		return songs.Draft{}, err
	}
	return songs.Draft{ID: d.id, Title: d.title, Artist: d.artist, Album: d.album, Duration: secs}, nil
}

func newSongRegisterCmd(f *rootFlags) *cobra.Command {
	var d draftFlags
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a signal and generate its clue matrix",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			draft, err := d.draft()
			if err != nil {
				return err
			}
			return f.run(cmd, func(a *app) error {
				s, err := a.songs.Register(cmd.Context(), draft)
				if err != nil {
					return err
				}
				return f.emit(cmd, s, func(w io.Writer) error {
					okColor.Fprintf(w, "Signal registered with %d time segments.\n", s.ClueMatrix.Segments())
					return printSong(w, s, false)
				})
			})
		},
	}
	d.bind(cmd, "id")
	for _, name := range []string{"id", "title", "artist", "duration"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newSongEditCmd(f *rootFlags) *cobra.Command {
	var d draftFlags
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit a signal's metadata or id, keeping its clue matrix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.run(cmd, func(a *app) error {
				cur, err := a.songs.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				draft := songs.Draft{ID: cur.ID, Title: cur.Title, Artist: cur.Artist, Album: cur.Album, Duration: cur.Duration}
				if cmd.Flags().Changed("new-id") {
					draft.ID = d.id
				}
				if cmd.Flags().Changed("title") {
					draft.Title = d.title
				}
				if cmd.Flags().Changed("artist") {
					draft.Artist = d.artist
				}
				if cmd.Flags().Changed("album") {
					draft.Album = d.album
				}
				if cmd.Flags().Changed("duration") {
					if draft.Duration, err = songs.ParseDuration(d.duration); err != nil {
						return err
					}
				}
				s, err := a.songs.Edit(cmd.Context(), cur.ID, draft)
				if err != nil {
					return err
				}
				return f.emit(cmd, s, func(w io.Writer) error {
					okColor.Fprintln(w, "Signal updated.")
					return printSong(w, s, false)
				})
			})
		},
	}
	d.bind(cmd, "new-id")
	return cmd
}

func newSongDeleteCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a signal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.run(cmd, func(a *app) error {
				if err := a.songs.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				return f.emit(cmd, map[string]string{"id": args[0], "status": "deleted"}, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "Signal %s deleted.\n", args[0])
					return err
				})
			})
		},
	}
}

func newSongRegenCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "regen <id>",
		Short: "Regenerate a signal's clue matrix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.run(cmd, func(a *app) error {
				s, err := a.songs.RegenerateIntel(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return f.emit(cmd, s, func(w io.Writer) error {
					okColor.Fprintf(w, "Intel regenerated for %s.\n", s.ID)
					return nil
				})
			})
		},
	}
}

func newSongAvailabilityCmd(f *rootFlags) *cobra.Command {
	var available bool
	cmd := &cobra.Command{
		Use:   "availability <id>",
		Short: "Show or hide a signal from agents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.run(cmd, func(a *app) error {
				s, err := a.songs.SetAvailability(cmd.Context(), args[0], available)
				if err != nil {
					return err
				}
				return f.emit(cmd, s, func(w io.Writer) error {
					state := "hidden from"
					if s.IsAvailableToAgents {
						state = "available to"
					}
					_, err := fmt.Fprintf(w, "Signal %s is %s agents.\n", s.ID, state)
					return err
				})
			})
		},
	}
	cmd.Flags().BoolVar(&available, "available", true, "whether agents can interrogate the signal")
	return cmd
}

type songSummary struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Artist    string `json:"artist"`
	Duration  int    `json:"duration"`
	Segments  int    `json:"segments"`
	Available bool   `json:"isAvailableToAgents"`
}

func newSongListCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered signals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.run(cmd, func(a *app) error {
				all, err := a.songs.List(cmd.Context())
				if err != nil {
					return err
				}
				out := make([]songSummary, 0, len(all))
				for _, s := range all {
					out = append(out, songSummary{
						ID: s.ID, Title: s.Title, Artist: s.Artist, Duration: s.Duration,
						Segments: s.ClueMatrix.Segments(), Available: s.IsAvailableToAgents,
					})
				}
				return f.emit(cmd, out, func(w io.Writer) error {
					if len(out) == 0 {
						dimColor.Fprintln(w, "No signals registered.")
						return nil
					}
					for _, s := range out {
						mark := okColor.Sprint("*")
						if !s.Available {
							mark = dimColor.Sprint("-")
						}
						fmt.Fprintf(w, "%s %s  %s by %s  [%s, %d segments]\n",
							mark, s.ID, s.Title, s.Artist, songs.FormatDuration(s.Duration), s.Segments)
					}
					return nil
				})
			})
		},
	}
}

func newSongShowCmd(f *rootFlags) *cobra.Command {
	var matrix bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a signal and optionally its clue matrix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.run(cmd, func(a *app) error {
				s, err := a.songs.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return f.emit(cmd, s, func(w io.Writer) error {
					return printSong(w, s, matrix)
				})
			})
		},
	}
	cmd.Flags().BoolVar(&matrix, "matrix", false, "print every clue")
	return cmd
}

// parseCell reads the --category/--subcategory flags shared by clue commands.
func parseCell(category, subcategory string) (types.Category, types.Subcategory, error) {
	c, err := types.ParseCategory(category)
	if err != nil {
		return "", "", err
	}
	s, err := types.ParseSubcategory(subcategory)
	if err != nil {
		return "", "", err
	}
	return c, s, nil
}
