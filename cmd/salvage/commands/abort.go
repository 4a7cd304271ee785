package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// AbortCommand holds the configuration for the abort command.
type AbortCommand struct {
	configPath string
	repoPath   string
	sessionID  string
	reason     string
}

// NewAbortCommand creates the abort command: it rolls the working tree back
// to the last checkpoint, releases the lock, and terminates the session.
func NewAbortCommand() *cobra.Command {
	ac := &AbortCommand{}

	cobraCmd := &cobra.Command{
		Use:   "abort",
		Short: "Abort a recovery session and roll back",
		RunE:  ac.run,
	}

	cobraCmd.Flags().StringVar(&ac.configPath, "config", "", "Config file path")
	cobraCmd.Flags().StringVar(&ac.repoPath, "repository", "", "Repository path (default: working directory)")
	cobraCmd.Flags().StringVar(&ac.sessionID, "session-id", "", "Recovery session id")
	cobraCmd.Flags().StringVar(&ac.reason, "reason", "operator abort", "Reason recorded in the audit ledger")
	_ = cobraCmd.MarkFlagRequired("session-id")

	return cobraCmd
}

func (ac *AbortCommand) run(cobraCmd *cobra.Command, _ []string) error {
	boot, err := newBootstrap(ac.configPath, ac.repoPath)
	if err != nil {
		return err
	}

	orch, err := boot.openOrchestrator(ac.sessionID)
	if err != nil {
		return err
	}

	err = orch.Abort(cobraCmd.Context(), ac.reason)
	if err != nil {
		return err
	}

	fmt.Fprintf(cobraCmd.OutOrStdout(), "Session %s aborted.\n", ac.sessionID)

	return nil
}
