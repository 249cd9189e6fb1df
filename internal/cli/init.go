package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

type initResult struct {
	ConfigDir string `json:"config_dir"`
	DataDir   string `json:"data_dir"`
	Backend   string `json:"backend"`
	Seeded    int    `json:"seeded"`
}

func newInitCmd(f *rootFlags) *cobra.Command {
	var seed bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize dossier storage",
		Long: "Create the configuration directory with a default config.yaml, then\n" +
			"open the store so its schema is created or migrated. With --seed the\n" +
			"founding agents are added to the roster.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.run(cmd, func(a *app) error {
				res := initResult{ConfigDir: a.configDir, DataDir: a.cfg.Store.DataDir, Backend: a.cfg.Store.Backend}
				if seed {
					n, err := a.agents.SeedRoster(cmd.Context())
					if err != nil {
						return fmt.Errorf("seed roster: %w", err)
					}
					res.Seeded = n
				}
				return f.emit(cmd, res, func(w io.Writer) error {
					okColor.Fprintln(w, "Dossier initialized")
					fmt.Fprintf(w, "config: %s\ndata:   %s (%s)\n", res.ConfigDir, res.DataDir, res.Backend)
					if seed {
						fmt.Fprintf(w, "seeded %d founding agents\n", res.Seeded)
					}
					return nil
				})
			})
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", false, "add the founding agents to the roster")
	return cmd
}
