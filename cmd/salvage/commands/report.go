package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gitforensics/salvage/internal/audit"
	"github.com/gitforensics/salvage/internal/report"
)

// ReportCommand holds the configuration for the report command.
type ReportCommand struct {
	configPath string
	repoPath   string
	sessionID  string
	scope      sessionScope
}

// NewReportCommand creates the report command: it verifies the audit ledger,
// assembles the final session report, validates it against the report schema,
// and writes it into the session directory.
func NewReportCommand() *cobra.Command {
	rc := &ReportCommand{}

	cobraCmd := &cobra.Command{
		Use:   "report",
		Short: "Verify the ledger and write the session report",
		RunE:  rc.run,
	}

	cobraCmd.Flags().StringVar(&rc.configPath, "config", "", "Config file path")
	cobraCmd.Flags().StringVar(&rc.repoPath, "repository", "", "Repository path (default: working directory)")
	cobraCmd.Flags().StringVar(&rc.sessionID, "session-id", "", "Recovery session id")
	rc.scope.register(cobraCmd)
	_ = cobraCmd.MarkFlagRequired("session-id")

	return cobraCmd
}

func (rc *ReportCommand) run(cobraCmd *cobra.Command, _ []string) error {
	boot, err := newBootstrap(rc.configPath, rc.repoPath)
	if err != nil {
		return err
	}

	rc.scope.apply(boot.cfg)

	orch, err := boot.openOrchestrator(rc.sessionID)
	if err != nil {
		return err
	}

	// Ledger verification failure is a fatal integrity violation; the
	// report is never written over a broken chain.
	err = audit.Verify(orch.Ledger().Path())
	if err != nil {
		return err
	}

	recovered, err := orch.LoadRecovered()
	if err != nil {
		return err
	}

	ranking, err := orch.LoadRanking()
	if err != nil {
		return err
	}

	outcome, err := orch.LoadValidation()
	if err != nil {
		return err
	}

	rep := report.Build(orch.Session(), recovered, ranking, outcome, true, time.Now())

	path, err := rep.Write(orch.SessionDir())
	if err != nil {
		return err
	}

	fmt.Fprintf(cobraCmd.OutOrStdout(), "Report written: %s\n", path)

	return nil
}
