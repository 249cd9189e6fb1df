package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/dossier/pkg/types"
)

func newMissionCmd(f *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mission",
		Short: "Assign, submit and list an agent's missions",
	}
	cmd.AddCommand(newMissionAssignCmd(f), newMissionSubmitCmd(f), newMissionListCmd(f))
	return cmd
}

func newMissionAssignCmd(f *rootFlags) *cobra.Command {
	var agent string
	var d types.Directive
	cmd := &cobra.Command{
		Use:   "assign",
		Short: "Hand an agent a new directive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.run(cmd, func(a *app) error {
				p, err := a.agentByName(cmd, agent)
				if err != nil {
					return err
				}
				m, err := a.agents.AssignMission(cmd.Context(), p.ID, d)
				if err != nil {
					return err
				}
				return f.emit(cmd, m, func(w io.Writer) error {
					okColor.Fprintf(w, "Mission %s assigned to Agent %s (%d Peace Points).\n", m.ID, p.Name, m.Points)
					return nil
				})
			})
		},
	}
	cmd.Flags().StringVar(&agent, "agent", "", "agent handle")
	cmd.Flags().StringVar(&d.Description, "description", "", "mission description")
	cmd.Flags().IntVar(&d.Points, "points", 0, "Peace Point reward")
	_ = cmd.MarkFlagRequired("agent")
	_ = cmd.MarkFlagRequired("description")
	return cmd
}

type submitResult struct {
	Mission     types.Mission `json:"mission"`
	PeacePoints int           `json:"peacePoints"`
}

func newMissionSubmitCmd(f *rootFlags) *cobra.Command {
	var agent, missionID, report string
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "File a field report and complete a mission",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.run(cmd, func(a *app) error {
				p, err := a.agentByName(cmd, agent)
				if err != nil {
					return err
				}
				updated, m, err := a.agents.SubmitMission(cmd.Context(), p.ID, missionID, report)
				if err != nil {
					return err
				}
				res := submitResult{Mission: m, PeacePoints: updated.PeacePoints}
				return f.emit(cmd, res, func(w io.Writer) error {
					okColor.Fprintf(w, "MISSION COMPLETE: +%d Peace Points.\n", m.Points)
					fmt.Fprintf(w, "%s\nAgent %s now holds %d Peace Points.\n", m.ReviewComment, updated.Name, updated.PeacePoints)
					return nil
				})
			})
		},
	}
	cmd.Flags().StringVar(&agent, "agent", "", "agent handle")
	cmd.Flags().StringVar(&missionID, "mission", "", "mission id")
	cmd.Flags().StringVar(&report, "report", "", "field report text")
	_ = cmd.MarkFlagRequired("agent")
	_ = cmd.MarkFlagRequired("mission")
	return cmd
}

func newMissionListCmd(f *rootFlags) *cobra.Command {
	var agent string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List an agent's missions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.run(cmd, func(a *app) error {
				p, err := a.agentByName(cmd, agent)
				if err != nil {
					return err
				}
				return f.emit(cmd, viewAgent(p).Missions, func(w io.Writer) error {
					return printMissions(w, p.Missions)
				})
			})
		},
	}
	cmd.Flags().StringVar(&agent, "agent", "", "agent handle")
	_ = cmd.MarkFlagRequired("agent")
	return cmd
}

type rankEntry struct {
	Rank        int    `json:"rank"`
	ID          string `json:"id"`
	Name        string `json:"name"`
	PeacePoints int    `json:"peacePoints"`
	Completed   int    `json:"completed"`
}

func newLeaderboardCmd(f *rootFlags) *cobra.Command {
	var agent string
	var limit int
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Rank agents by Peace Points",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.run(cmd, func(a *app) error {
				ranked, err := a.agents.Leaderboard(cmd.Context())
				if err != nil {
					return err
				}
				if limit > 0 && len(ranked) > limit {
					ranked = ranked[:limit]
				}
				entries := make([]rankEntry, 0, len(ranked))
				for i, p := range ranked {
					done := 0
					for _, m := range p.Missions {
						if m.Status == types.MissionCompleted {
							done++
						}
					}
					entries = append(entries, rankEntry{Rank: i + 1, ID: p.ID, Name: p.Name, PeacePoints: p.PeacePoints, Completed: done})
				}
				return f.emit(cmd, entries, func(w io.Writer) error {
					headerColor.Fprintln(w, "RESISTANCE LEADERBOARD")
					for _, e := range entries {
						line := fmt.Sprintf("%3d. %-20s %6d PP  %d completed", e.Rank, e.Name, e.PeacePoints, e.Completed)
						if agent != "" && types.SameHandle(agent, e.Name) {
							okColor.Fprintln(w, line+"  <- you")
							continue
						}
						fmt.Fprintln(w, line)
					}
					return nil
				})
			})
		},
	}
	cmd.Flags().StringVar(&agent, "agent", "", "highlight this agent")
	cmd.Flags().IntVar(&limit, "limit", 0, "show only the top N agents")
	return cmd
}
