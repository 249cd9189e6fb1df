package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/dossier/internal/recognition"
	"github.com/mesh-intelligence/dossier/pkg/types"
)

type recognizeResult struct {
	Matched    bool   `json:"matched"`
	Title      string `json:"title,omitempty"`
	Artist     string `json:"artist,omitempty"`
	ACRID      string `json:"acrid,omitempty"`
	Timestamp  int    `json:"timestamp"`
	Segment    int    `json:"segment"`
	Registered bool   `json:"registered"`
	Available  bool   `json:"available"`
}

func newRecognizeCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "recognize <audio-file>",
		Short: "Identify an audio sample and look up its signal",
		Long: "Send an audio sample to the recognition service. When the match is a\n" +
			"registered signal, report which clue segment the sample falls in.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sample, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			return f.run(cmd, func(a *app) error {
				client, err := recognition.New(a.cfg.ACR, recognition.WithLogger(a.log))
				if err != nil {
					return err
				}
				res, err := identify(cmd, a, client, sample, filepath.Base(args[0]))
				if err != nil {
					return err
				}
				return f.emit(cmd, res, func(w io.Writer) error {
					if !res.Matched {
						warnColor.Fprintln(w, "No match found.")
						return nil
					}
					okColor.Fprintf(w, "Signal locked: %s by %s\n", res.Title, res.Artist)
					fmt.Fprintf(w, "ACRID: %s  offset: %ds  segment: %s\n", res.ACRID, res.Timestamp, types.SegmentLabel(res.Segment))
					switch {
					case !res.Registered:
						dimColor.Fprintln(w, "Not a registered signal.")
					case !res.Available:
						dimColor.Fprintln(w, "Signal registered but not yet available to agents.")
					default:
						fmt.Fprintf(w, "Interrogate with: dossier clue reveal %s --segment %d --category KNOW --subcategory Racism\n", res.ACRID, res.Segment)
					}
					return nil
				})
			})
		},
	}
}

func identify(cmd *cobra.Command, a *app, id recognition.Identifier, sample []byte, name string) (recognizeResult, error) {
	m, err := id.Identify(cmd.Context(), sample, name)
	if errors.Is(err, recognition.ErrNoMatch) {
		return recognizeResult{}, nil
	}
	if err != nil {
		return recognizeResult{}, err
	}
	res := recognizeResult{
		Matched:   true,
		Title:     m.Title,
		Artist:    m.Artist,
		ACRID:     m.ACRID,
		Timestamp: m.Offset,
		Segment:   types.SegmentForTimestamp(m.Offset),
	}
	s, ok, err := a.store.Songs().Get(cmd.Context(), m.ACRID)
	if err != nil {
		return recognizeResult{}, err
	}
	res.Registered = ok
	res.Available = ok && s.IsAvailableToAgents
	return res, nil
}
