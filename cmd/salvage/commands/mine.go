package commands

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/gitforensics/salvage/internal/orchestrate"
	"github.com/gitforensics/salvage/internal/score"
)

// ErrTargetPathRequired means mine was invoked without any target path.
var ErrTargetPathRequired = errors.New("at least one --target-path is required")

// MineCommand holds the configuration for the mine command.
type MineCommand struct {
	configPath string
	targets    []string
	symptom    string
	remotes    []string
	timeout    time.Duration
	depsFile   string
}

// NewMineCommand creates the mine command: it starts a new recovery session
// and enumerates every surviving copy of the target paths.
func NewMineCommand() *cobra.Command {
	mc := &MineCommand{}

	cobraCmd := &cobra.Command{
		Use:   "mine [repository]",
		Short: "Start a recovery session and mine candidates",
		Long: `Mine starts a new recovery session: it locks the repository, creates an
isolated emergency branch, captures the dependency snapshot, and then
enumerates recovery candidates across local branches, reflogs, unreachable
objects, and remotes. Mining is read-only with respect to existing history.`,
		Args: cobra.MaximumNArgs(1),
		RunE: mc.run,
	}

	cobraCmd.Flags().StringVar(&mc.configPath, "config", "", "Config file path")
	cobraCmd.Flags().StringArrayVar(&mc.targets, "target-path", nil, "Path to recover (repeatable)")
	cobraCmd.Flags().StringVar(&mc.symptom, "symptom", "", "Short description of the failure")
	cobraCmd.Flags().StringArrayVar(&mc.remotes, "remote", nil, "Remote to fetch before mining (repeatable)")
	cobraCmd.Flags().DurationVar(&mc.timeout, "timeout", 0, "Per-remote fetch timeout (overrides config)")
	cobraCmd.Flags().StringVar(&mc.depsFile, "deps-file", "", "Dependency snapshot file (YAML, overrides baseline capture)")

	return cobraCmd
}

func (mc *MineCommand) run(cobraCmd *cobra.Command, args []string) error {
	if len(mc.targets) == 0 {
		return ErrTargetPathRequired
	}

	repoPath := ""
	if len(args) > 0 {
		repoPath = args[0]
	}

	boot, err := newBootstrap(mc.configPath, repoPath)
	if err != nil {
		return err
	}

	if mc.timeout > 0 {
		boot.cfg.Mining.FetchTimeout = mc.timeout
	}

	snapshot, err := mc.loadSnapshot()
	if err != nil {
		return err
	}

	ctx := cobraCmd.Context()

	orch, err := orchestrate.Begin(ctx, boot.repo, boot.cfg, mc.symptom, mc.targets, snapshot, boot.logger)
	if err != nil {
		return err
	}

	result, err := orch.Mine(ctx, mc.remotes)
	if err != nil {
		return err
	}

	out := cobraCmd.OutOrStdout()

	fmt.Fprintf(out, "Session:    %s\n", orch.Session().SessionID)
	fmt.Fprintf(out, "Branch:     %s\n", orch.Session().EmergencyBranch)
	fmt.Fprintf(out, "Candidates: %d\n", result.Candidates.Len())

	for _, warning := range result.Warnings {
		fmt.Fprintf(out, "Warning:    %s: %s\n", warning.Remote, warning.Reason)
	}

	// A target with zero candidates can never be recovered; surface it
	// now instead of letting score fail later.
	if missing := result.Candidates.MissingTargets(mc.targets); len(missing) > 0 {
		return fmt.Errorf("%w: %v", orchestrate.ErrNoCandidates, missing)
	}

	fmt.Fprintf(out, "\nNext: salvage score --session-id %s\n", orch.Session().SessionID)

	return nil
}

// loadSnapshot reads an operator-supplied dependency snapshot. An explicit
// file always beats the baseline capture from the working tree.
func (mc *MineCommand) loadSnapshot() (*score.DependencySnapshot, error) {
	if mc.depsFile == "" {
		return nil, nil //nolint:nilnil // absence means capture at baseline
	}

	data, err := os.ReadFile(mc.depsFile)
	if err != nil {
		return nil, fmt.Errorf("read deps file: %w", err)
	}

	var snapshot score.DependencySnapshot

	err = yaml.Unmarshal(data, &snapshot)
	if err != nil {
		return nil, fmt.Errorf("decode deps file: %w", err)
	}

	if snapshot.CapturedAt.IsZero() {
		snapshot.CapturedAt = time.Now().UTC()
	}

	return &snapshot, nil
}
