package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/dossier/internal/sqlite"
)

func newExportCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "export <dir>",
		Short: "Write every collection to JSONL snapshots",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.run(cmd, func(a *app) error {
				stats, err := sqlite.Export(cmd.Context(), a.store, args[0])
				if err != nil {
					return err
				}
				return f.emit(cmd, stats, func(w io.Writer) error {
					return printStats(w, "exported", stats)
				})
			})
		},
	}
}

func newImportCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "import <dir>",
		Short: "Upsert records from JSONL snapshots",
		Long: "Read <dir>/agents.jsonl and <dir>/songs.jsonl and upsert every valid\n" +
			"record. Missing files are skipped. Undecodable lines and agents whose\n" +
			"handle is already held by another id are counted as skipped.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.run(cmd, func(a *app) error {
				stats, err := sqlite.Import(cmd.Context(), a.store, a.agents, args[0])
				if err != nil {
					return err
				}
				return f.emit(cmd, stats, func(w io.Writer) error {
					return printStats(w, "imported", stats)
				})
			})
		},
	}
}

func printStats(w io.Writer, verb string, stats sqlite.SnapshotStats) error {
	seen := map[string]bool{}
	for n := range stats.Written {
		seen[n] = true
	}
	for n := range stats.Skipped {
		seen[n] = true
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		line := fmt.Sprintf("%s: %d %s", n, stats.Written[n], verb)
		if skipped := stats.Skipped[n]; skipped > 0 {
			line += warnColor.Sprintf(", %d skipped", skipped)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
