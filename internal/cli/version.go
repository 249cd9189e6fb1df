package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/dossier/internal/sqlite"
)

const modulePath = "github.com/mesh-intelligence/dossier"

// Version is overridden at build time with -ldflags "-X".
var Version = "0.1.0-dev"

type versionInfo struct {
	Version string `json:"version"`
	Module  string `json:"module"`
	Schema  int    `json:"schema"`
}

func newVersionCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the dossier version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v := versionInfo{Version: Version, Module: modulePath, Schema: sqlite.SchemaVersion}
			return f.emit(cmd, v, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "dossier v%s\nmodule: %s\nschema: %d\n", v.Version, v.Module, v.Schema)
				return err
			})
		},
	}
}
