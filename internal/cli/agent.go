package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/dossier/internal/agents"
)

func newAgentCmd(f *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Register, authenticate and recover agents",
	}
	cmd.AddCommand(
		newAgentRegisterCmd(f),
		newAgentLoginCmd(f),
		newAgentRecoverCmd(f),
		newAgentResetCmd(f),
		newAgentShowCmd(f),
	)
	return cmd
}

func newAgentRegisterCmd(f *rootFlags) *cobra.Command {
	var req agents.RegisterRequest
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Enlist a new agent",
		Long: "Create an agent profile. The handle must be unique regardless of case,\n" +
			"and a phone number or email address is required for passcode recovery.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.Confirm == "" {
				req.Confirm = req.Password
			}
			return f.run(cmd, func(a *app) error {
				p, err := a.agents.Register(cmd.Context(), req)
				if err != nil {
					return err
				}
				return f.emit(cmd, viewAgent(p), func(w io.Writer) error {
					okColor.Fprintf(w, "Welcome to the Resistance, Agent %s.\n", p.Name)
					return printAgent(w, p)
				})
			})
		},
	}
	cmd.Flags().StringVar(&req.Name, "name", "", "agent handle")
	cmd.Flags().StringVar(&req.Password, "password", "", "passcode")
	cmd.Flags().StringVar(&req.Confirm, "confirm", "", "passcode confirmation (default: same as --password)")
	cmd.Flags().StringVar(&req.Phone, "phone", "", "recovery phone number")
	cmd.Flags().StringVar(&req.Email, "email", "", "recovery email address")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newAgentLoginCmd(f *rootFlags) *cobra.Command {
	var name, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Verify an agent's handle and passcode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.run(cmd, func(a *app) error {
				p, err := a.agents.Login(cmd.Context(), name, password)
				if err != nil {
					return err
				}
				return f.emit(cmd, viewAgent(p), func(w io.Writer) error {
					okColor.Fprintf(w, "Identity confirmed. Welcome back, Agent %s.\n", p.Name)
					return printAgent(w, p)
				})
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "agent handle")
	cmd.Flags().StringVar(&password, "password", "", "passcode")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

// errRecovery reports a recovery request that could not be honored. Its
// message is the one shown to the agent.
type errRecovery struct{ msg string }

func (e errRecovery) Error() string { return e.msg }

func newAgentRecoverCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "recover <handle>",
		Short: "Request passcode recovery for a handle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.run(cmd, func(a *app) error {
				res, err := a.agents.RequestRecovery(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if res.Outcome != agents.RecoveryAcknowledged {
					return errRecovery{msg: res.Message}
				}
				return f.emit(cmd, res, func(w io.Writer) error {
					_, err := fmt.Fprintln(w, res.Message)
					return err
				})
			})
		},
	}
}

func newAgentResetCmd(f *rootFlags) *cobra.Command {
	var name, password, confirm string
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Set a new passcode for a recoverable agent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if confirm == "" {
				confirm = password
			}
			return f.run(cmd, func(a *app) error {
				if err := a.agents.ResetPassword(cmd.Context(), name, password, confirm); err != nil {
					return err
				}
				return f.emit(cmd, map[string]string{"name": name, "status": "reset"}, func(w io.Writer) error {
					okColor.Fprintln(w, "Passcode updated. You may now log in.")
					return nil
				})
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "agent handle")
	cmd.Flags().StringVar(&password, "password", "", "new passcode")
	cmd.Flags().StringVar(&confirm, "confirm", "", "passcode confirmation (default: same as --password)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newAgentShowCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show <handle>",
		Short: "Show an agent's dossier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.run(cmd, func(a *app) error {
				p, err := a.agentByName(cmd, args[0])
				if err != nil {
					return err
				}
				return f.emit(cmd, viewAgent(p), func(w io.Writer) error {
					if err := printAgent(w, p); err != nil {
						return err
					}
					fmt.Fprintln(w)
					return printMissions(w, p.Missions)
				})
			})
		},
	}
}
