package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/gitforensics/salvage/internal/analyze"
	"github.com/gitforensics/salvage/internal/orchestrate"
	"github.com/gitforensics/salvage/internal/report"
	"github.com/gitforensics/salvage/internal/score"
	"github.com/gitforensics/salvage/pkg/gitlib"
)

// ScoreCommand holds the configuration for the score command.
type ScoreCommand struct {
	configPath string
	repoPath   string
	sessionID  string
	explain    string
	scope      sessionScope
}

// NewScoreCommand creates the score command: it ranks mined candidates and
// prints the per-path table, leaving the session awaiting a selection.
func NewScoreCommand() *cobra.Command {
	sc := &ScoreCommand{}

	cobraCmd := &cobra.Command{
		Use:   "score",
		Short: "Rank mined candidates per target path",
		RunE:  sc.run,
	}

	cobraCmd.Flags().StringVar(&sc.configPath, "config", "", "Config file path")
	cobraCmd.Flags().StringVar(&sc.repoPath, "repository", "", "Repository path (default: working directory)")
	cobraCmd.Flags().StringVar(&sc.sessionID, "session-id", "", "Recovery session id")
	cobraCmd.Flags().StringVar(&sc.explain, "explain", "", "Also print score breakdowns and diffs vs the working tree for this path")
	sc.scope.register(cobraCmd)
	_ = cobraCmd.MarkFlagRequired("session-id")

	return cobraCmd
}

func (sc *ScoreCommand) run(cobraCmd *cobra.Command, _ []string) error {
	boot, err := newBootstrap(sc.configPath, sc.repoPath)
	if err != nil {
		return err
	}

	sc.scope.apply(boot.cfg)

	orch, err := boot.openOrchestrator(sc.sessionID)
	if err != nil {
		return err
	}

	paths, ranking, rankErr := orch.Rank(cobraCmd.Context())

	// Render whatever was ranked even when some path came up empty, so the
	// operator sees the full picture before the error surfaces.
	out := cobraCmd.OutOrStdout()
	if ranking != nil {
		report.RenderRanking(out, paths, ranking, time.Now())
	}

	if sc.explain != "" && ranking != nil {
		explainErr := sc.explainPath(cobraCmd, boot.repo, ranking[sc.explain])
		if explainErr != nil {
			return explainErr
		}
	}

	return rankErr
}

// explainPath prints the full score breakdown per candidate plus line-diff
// statistics against whatever is currently in the working tree, so the
// operator sees how far each candidate is from the corrupted state.
func (sc *ScoreCommand) explainPath(cobraCmd *cobra.Command, repo *gitlib.Repository, ranked []score.Ranked) error {
	if len(ranked) == 0 {
		return fmt.Errorf("%w: %s", orchestrate.ErrNoCandidates, sc.explain)
	}

	out := cobraCmd.OutOrStdout()

	// The corrupted file may be unreadable; an empty baseline still yields
	// meaningful insert counts.
	baseline, _ := os.ReadFile(filepath.Join(repo.Workdir(), sc.explain))

	for _, entry := range ranked {
		report.RenderBreakdown(out, entry)

		blob, err := repo.LookupBlob(cobraCmd.Context(), gitlib.NewHash(entry.Candidate.ContentHashHex))
		if err != nil {
			fmt.Fprintf(out, "  diff unavailable: %v\n\n", err)

			continue
		}

		stats := analyze.Diff(baseline, blob.Contents())
		blob.Free()

		if stats.Identical() {
			fmt.Fprintf(out, "  identical to working tree\n\n")

			continue
		}

		fmt.Fprintf(out, "  vs working tree: +%d -%d lines (%d unchanged)\n\n",
			stats.LinesInserted, stats.LinesDeleted, stats.LinesEqual)
	}

	return nil
}
