package commands

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gitforensics/salvage/internal/report"
)

// ValidateCommand holds the configuration for the validate command.
type ValidateCommand struct {
	configPath string
	repoPath   string
	sessionID  string
	scope      sessionScope
}

// NewValidateCommand creates the validate command: it re-analyzes every
// recovered file from the working tree. Failure penalizes the candidate and
// returns the session to selection; success documents and unlocks it.
func NewValidateCommand() *cobra.Command {
	vc := &ValidateCommand{}

	cobraCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate recovered files and close the session",
		RunE:  vc.run,
	}

	cobraCmd.Flags().StringVar(&vc.configPath, "config", "", "Config file path")
	cobraCmd.Flags().StringVar(&vc.repoPath, "repository", "", "Repository path (default: working directory)")
	cobraCmd.Flags().StringVar(&vc.sessionID, "session-id", "", "Recovery session id")
	vc.scope.register(cobraCmd)
	_ = cobraCmd.MarkFlagRequired("session-id")

	return cobraCmd
}

func (vc *ValidateCommand) run(cobraCmd *cobra.Command, _ []string) error {
	boot, err := newBootstrap(vc.configPath, vc.repoPath)
	if err != nil {
		return err
	}

	vc.scope.apply(boot.cfg)

	orch, err := boot.openOrchestrator(vc.sessionID)
	if err != nil {
		return err
	}

	outcome, err := orch.Validate(cobraCmd.Context())
	if err != nil {
		return err
	}

	out := cobraCmd.OutOrStdout()

	for _, verdict := range outcome.Paths {
		if verdict.Valid {
			color.New(color.FgGreen).Fprintf(out, "ok    %s\n", verdict.Path)
		} else {
			color.New(color.FgRed).Fprintf(out, "fail  %s: %s\n", verdict.Path, verdict.Reason)
		}
	}

	if !outcome.Passed {
		fmt.Fprintf(out, "\nValidation failed; session returned to selection.\n\n")

		// The persisted ranking now carries the failure penalties, so show
		// it directly instead of pointing at a fresh re-rank.
		ranking, loadErr := orch.LoadRanking()
		if loadErr == nil {
			report.RenderRanking(out, orch.Session().Targets, ranking, time.Now())
		}

		fmt.Fprintf(out, "Next: salvage recover --session-id %s --select <path>=<commit>\n", vc.sessionID)

		return nil
	}

	fmt.Fprintf(out, "\nSession documented. Next: salvage report --session-id %s\n", vc.sessionID)

	return nil
}
