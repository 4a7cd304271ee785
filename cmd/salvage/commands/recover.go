package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// ErrInvalidSelection means a --select value was not in path=commit form.
var ErrInvalidSelection = errors.New("selection must be path=commit-id")

// RecoverCommand holds the configuration for the recover command.
type RecoverCommand struct {
	configPath string
	repoPath   string
	sessionID  string
	selections []string
	scope      sessionScope
}

// NewRecoverCommand creates the recover command: it writes the explicitly
// selected candidates into the working tree, one checkpointed path at a time.
func NewRecoverCommand() *cobra.Command {
	rc := &RecoverCommand{}

	cobraCmd := &cobra.Command{
		Use:   "recover",
		Short: "Write selected candidates to the working tree",
		Long: `Recover performs the surgical write phase. Every path needs an explicit
selection from the ranked table; the top score is never chosen automatically.
Each write is verified by recomputed content hash and committed as a
checkpoint on the emergency branch before the next path is touched.`,
		RunE: rc.run,
	}

	cobraCmd.Flags().StringVar(&rc.configPath, "config", "", "Config file path")
	cobraCmd.Flags().StringVar(&rc.repoPath, "repository", "", "Repository path (default: working directory)")
	cobraCmd.Flags().StringVar(&rc.sessionID, "session-id", "", "Recovery session id")
	cobraCmd.Flags().StringArrayVar(&rc.selections, "select", nil, "Selection as path=commit-id (repeatable)")
	rc.scope.register(cobraCmd)
	_ = cobraCmd.MarkFlagRequired("session-id")
	_ = cobraCmd.MarkFlagRequired("select")

	return cobraCmd
}

func (rc *RecoverCommand) run(cobraCmd *cobra.Command, _ []string) error {
	selections, err := parseSelections(rc.selections)
	if err != nil {
		return err
	}

	boot, err := newBootstrap(rc.configPath, rc.repoPath)
	if err != nil {
		return err
	}

	rc.scope.apply(boot.cfg)

	orch, err := boot.openOrchestrator(rc.sessionID)
	if err != nil {
		return err
	}

	recovered, err := orch.Recover(cobraCmd.Context(), selections)

	out := cobraCmd.OutOrStdout()

	for _, entry := range recovered {
		fmt.Fprintf(out, "Recovered %s from %.8s (checkpoint %.8s)\n",
			entry.Path, entry.CommitID, entry.Checkpoint)
	}

	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\nNext: salvage validate --session-id %s\n", rc.sessionID)

	return nil
}

func parseSelections(raw []string) (map[string]string, error) {
	selections := make(map[string]string, len(raw))

	for _, value := range raw {
		path, commit, ok := strings.Cut(value, "=")
		if !ok || path == "" || commit == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidSelection, value)
		}

		selections[path] = commit
	}

	return selections, nil
}
