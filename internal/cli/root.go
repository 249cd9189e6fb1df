// Package cli implements the dossier command-line interface.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/dossier/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	backend   string
	jsonMode  bool
}

// NewRootCmd creates the top-level "dossier" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	f := &rootFlags{}
	root := &cobra.Command{
		Use:   "dossier",
		Short: "Resistance agent dossiers, missions and signal intel",
		Long: "Dossier keeps the Resistance roster: agent profiles, their missions and\n" +
			"Peace Points, and the registered signals whose clue matrices hand out\n" +
			"new missions.",
		// Do not print usage on errors returned by subcommands.
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&f.configDir, "config-dir", "", "configuration directory (default: $XDG_CONFIG_HOME/dossier)")
	root.PersistentFlags().StringVar(&f.dataDir, "data-dir", "", "data directory (default: $XDG_DATA_HOME/dossier)")
	root.PersistentFlags().StringVar(&f.backend, "backend", "", "storage backend: sqlite or memory (overrides config.yaml)")
	root.PersistentFlags().BoolVar(&f.jsonMode, "json", false, "output in JSON format")

	root.AddCommand(
		newVersionCmd(f),
		newInitCmd(f),
		newAgentCmd(f),
		newMissionCmd(f),
		newLeaderboardCmd(f),
		newSongCmd(f),
		newClueCmd(f),
		newExportCmd(f),
		newImportCmd(f),
		newRecognizeCmd(f),
		newServeCmd(f),
	)
	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error: %v", err))
		os.Exit(exitCode(err))
	}
	os.Exit(exitSuccess)
}

// exitCode maps an error to a process exit code: 2 for failures of the
// store or an external service, 1 for everything the user can correct.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitSuccess
	case errors.Is(err, types.ErrStoreUnavailable),
		errors.Is(err, types.ErrStoreClosed),
		errors.Is(err, types.ErrExternalService):
		return exitSysError
	default:
		return exitUserError
	}
}
