package orchestrate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gitforensics/salvage/internal/analyze"
	"github.com/gitforensics/salvage/internal/audit"
	"github.com/gitforensics/salvage/internal/mine"
	"github.com/gitforensics/salvage/internal/score"
	"github.com/gitforensics/salvage/internal/session"
	"github.com/gitforensics/salvage/pkg/config"
	"github.com/gitforensics/salvage/pkg/gitlib"
)

// File names inside a session directory.
const (
	ledgerFile     = "ledger.ndjson"
	candidatesFile = "candidates.json"
	rankingFile    = "ranking.json"
	recoveredFile  = "recovered.json"
	validationFile = "validation.json"
)

// Orchestrator wires the engine's components around one recovery session.
type Orchestrator struct {
	repo   *gitlib.Repository
	cfg    *config.Config
	sess   *session.RecoverySession
	guard  *session.Guard
	ledger *audit.Ledger
	scorer *score.Scorer
	logger *slog.Logger
	root   string
	now    func() time.Time
}

// Open attaches an orchestrator to an existing session.
func Open(repo *gitlib.Repository, cfg *config.Config, sess *session.RecoverySession, logger *slog.Logger) (*Orchestrator, error) {
	root := filepath.Join(repo.Workdir(), cfg.Session.Dir)

	ledger, err := audit.Open(filepath.Join(sess.Dir(root), ledgerFile), sess.SessionID)
	if err != nil {
		return nil, err
	}

	return &Orchestrator{
		repo:   repo,
		cfg:    cfg,
		sess:   sess,
		guard:  session.NewGuard(repo, sess, logger),
		ledger: ledger,
		scorer: score.NewScorer(cfg.Weights),
		logger: logger,
		root:   root,
		now:    time.Now,
	}, nil
}

// Begin creates a new session: acquires the repository lock, creates and
// checks out the emergency branch, and captures the dependency snapshot.
// This is INIT -> BASELINE; failure to make the branch exclusive is fatal.
func Begin(ctx context.Context, repo *gitlib.Repository, cfg *config.Config, symptom string, targets []string, snapshot *score.DependencySnapshot, logger *slog.Logger) (*Orchestrator, error) {
	sess := session.New(cfg.Session.BranchPrefix, symptom, targets, time.Now())

	orch, err := Open(repo, cfg, sess, logger)
	if err != nil {
		return nil, err
	}

	err = session.AcquireLock(repo, session.LockRecord{
		SessionID:       sess.SessionID,
		EmergencyBranch: sess.EmergencyBranch,
		AcquiredAt:      sess.StartedAt,
	})
	if err != nil {
		return nil, err
	}

	// The lock was just acquired but the session is not yet persisted,
	// so no resume path can release it. Any failure before the first
	// Save must release it here or the repository stays locked.
	releaseOnFailure := func(cause error) error {
		if relErr := session.ReleaseLock(repo, sess.SessionID); relErr != nil {
			orch.logger.ErrorContext(ctx, "failed to release lock after begin failure", "error", relErr)
		}

		return cause
	}

	head, err := repo.Head()
	if err != nil {
		return nil, releaseOnFailure(orch.fatal(ctx, err))
	}

	err = repo.CreateBranch(ctx, sess.EmergencyBranch, head, false)
	if err != nil {
		return nil, releaseOnFailure(orch.fatal(ctx, fmt.Errorf("emergency branch not exclusive: %w", err)))
	}

	err = repo.CheckoutBranch(sess.EmergencyBranch)
	if err != nil {
		return nil, releaseOnFailure(orch.fatal(ctx, err))
	}

	if snapshot == nil {
		snapshot = orch.captureSnapshot(ctx, targets)
	}

	sess.Snapshot = snapshot
	sess.AddCheckpoint("baseline", head.String(), orch.now())

	err = Transition(sess, session.StateBaseline)
	if err != nil {
		return nil, releaseOnFailure(err)
	}

	err = orch.record(audit.KindAction, map[string]any{
		"op":               "baseline",
		"emergency_branch": sess.EmergencyBranch,
		"baseline_commit":  head.String(),
		"targets":          targets,
	})
	if err != nil {
		return nil, releaseOnFailure(err)
	}

	err = orch.sess.Save(orch.root)
	if err != nil {
		return nil, releaseOnFailure(err)
	}

	return orch, nil
}

// Session returns the orchestrated session.
func (o *Orchestrator) Session() *session.RecoverySession {
	return o.sess
}

// SessionDir returns the on-disk session state directory.
func (o *Orchestrator) SessionDir() string {
	return o.sess.Dir(o.root)
}

// Ledger exposes the audit ledger for read access.
func (o *Orchestrator) Ledger() *audit.Ledger {
	return o.ledger
}

// Mine runs MINING and ANALYSIS and consolidates the ranked result. The
// phases are read-only and honor cancellation at their boundaries.
func (o *Orchestrator) Mine(ctx context.Context, remotes []string) (*mine.Result, error) {
	err := o.advance(session.StateMining, "mining")
	if err != nil {
		return nil, err
	}

	miner := mine.NewMiner(o.repo, o.cfg.Mining, o.logger)

	result, err := miner.Mine(ctx, o.sess.Targets, remotes)
	if err != nil {
		return nil, o.fatal(ctx, err)
	}

	for _, warning := range result.Warnings {
		recordErr := o.record(audit.KindWarning, map[string]any{
			"kind":   "NetworkFetchFailure",
			"remote": warning.Remote,
			"reason": warning.Reason,
		})
		if recordErr != nil {
			return nil, recordErr
		}
	}

	err = o.checkCancelled(ctx)
	if err != nil {
		return nil, err
	}

	err = o.advance(session.StateAnalysis, "analysis")
	if err != nil {
		return nil, err
	}

	err = o.analyzeCandidates(ctx, result.Candidates)
	if err != nil {
		return nil, err
	}

	err = o.checkCancelled(ctx)
	if err != nil {
		return nil, err
	}

	err = o.advance(session.StateConsolidation, "consolidation")
	if err != nil {
		return nil, err
	}

	err = o.persistCandidates(result.Candidates)
	if err != nil {
		return nil, err
	}

	err = o.record(audit.KindResult, map[string]any{
		"op":              "mining",
		"candidates":      result.Candidates.Len(),
		"remotes_fetched": result.RemotesFetched,
		"degraded":        len(result.Warnings),
	})
	if err != nil {
		return nil, err
	}

	return result, o.sess.Save(o.root)
}

// Rank scores the mined candidates and persists the total order, moving the
// session to AWAITING_SELECTION, where it blocks until an explicit choice.
func (o *Orchestrator) Rank(ctx context.Context) ([]string, map[string][]score.Ranked, error) {
	err := o.checkCancelled(ctx)
	if err != nil {
		return nil, nil, err
	}

	set, err := o.loadCandidates()
	if err != nil {
		return nil, nil, err
	}

	snapshot := score.DependencySnapshot{CapturedAt: o.sess.StartedAt}
	if o.sess.Snapshot != nil {
		snapshot = *o.sess.Snapshot
	}

	paths, ranking := o.scorer.Rank(set, snapshot, o.sess.Targets)

	missing := make([]string, 0)

	for _, target := range o.sess.Targets {
		if len(ranking[target]) == 0 {
			missing = append(missing, target)
		}
	}

	err = o.persistRanking(ranking)
	if err != nil {
		return nil, nil, err
	}

	// Rescoring after a validation failure finds the session already
	// awaiting selection; only the first ranking transitions.
	if o.sess.State != session.StateAwaitingSelection {
		err = o.advance(session.StateAwaitingSelection, "awaiting selection")
		if err != nil {
			return nil, nil, err
		}
	}

	err = o.record(audit.KindResult, map[string]any{
		"op":            "ranking",
		"paths":         paths,
		"missing_paths": missing,
	})
	if err != nil {
		return nil, nil, err
	}

	err = o.sess.Save(o.root)
	if err != nil {
		return nil, nil, err
	}

	if len(missing) > 0 {
		return paths, ranking, fmt.Errorf("%w: %v", ErrNoCandidates, missing)
	}

	return paths, ranking, nil
}

// analyzeCandidates attaches analysis results, reading each candidate blob
// once. Analysis failures degrade the candidate, never the session.
func (o *Orchestrator) analyzeCandidates(ctx context.Context, set *mine.Set) error {
	candidates := set.All()

	for i := range candidates {
		candidate := &candidates[i]

		blob, err := o.repo.LookupBlob(ctx, candidate.ContentHash)
		if err != nil {
			o.logger.WarnContext(ctx, "candidate blob vanished during analysis",
				"path", candidate.Path, "hash", candidate.ContentHashHex)

			continue
		}

		result := analyze.Analyze(candidate.Path, blob.Contents())
		candidate.Analysis = &result

		blob.Free()
	}

	return nil
}

func (o *Orchestrator) captureSnapshot(ctx context.Context, targets []string) *score.DependencySnapshot {
	snapshot := &score.DependencySnapshot{
		Required:   make(map[string][]string, len(targets)),
		CapturedAt: o.now().UTC(),
	}

	// Baseline capture: the structural signature of whatever currently
	// exists at each target is the best available statement of what the
	// codebase expects there. Requirements stay keyed per target so one
	// file's symbols are never demanded of another. The operator can
	// override with an explicit file.
	for _, target := range targets {
		content, err := os.ReadFile(filepath.Join(o.repo.Workdir(), target))
		if err != nil {
			continue
		}

		result := analyze.Analyze(target, content)
		if result.SyntaxValid == analyze.SyntaxValid && len(result.Signature) > 0 {
			snapshot.Required[target] = result.Signature
		}
	}

	o.logger.InfoContext(ctx, "captured dependency snapshot", "required", len(snapshot.Required))

	return snapshot
}

// advance transitions the session and mirrors the transition to the ledger.
func (o *Orchestrator) advance(to session.State, label string) error {
	from := o.sess.State

	err := Transition(o.sess, to)
	if err != nil {
		return err
	}

	return o.record(audit.KindGitState, map[string]any{
		"transition": fmt.Sprintf("%s -> %s", from, to),
		"phase":      label,
	})
}

// Abort rolls back to the last checkpoint, releases the lock, and moves the
// session to its terminal ABORTED state.
func (o *Orchestrator) Abort(ctx context.Context, reason string) error {
	if o.sess.State.Terminal() {
		return nil
	}

	rollbackErr := o.guard.Rollback(ctx)

	o.sess.State = session.StateAborted

	err := o.record(audit.KindCritical, map[string]any{
		"op":       "abort",
		"reason":   reason,
		"rollback": rollbackErr == nil,
	})
	if err != nil {
		return err
	}

	err = session.ReleaseLock(o.repo, o.sess.SessionID)
	if err != nil {
		return err
	}

	err = o.sess.Save(o.root)
	if err != nil {
		return err
	}

	return rollbackErr
}

// fatal records a critical failure with rollback guidance before returning
// it. Every fatal error surfaces the last valid checkpoint and the exact
// command to reach it.
func (o *Orchestrator) fatal(ctx context.Context, cause error) error {
	payload := map[string]any{"error": cause.Error()}

	if checkpoint, ok := o.sess.LastCheckpoint(); ok {
		payload["last_checkpoint"] = checkpoint.CommitID
		payload["rollback_command"] = "git checkout " + checkpoint.CommitID
	}

	recordErr := o.record(audit.KindCritical, payload)
	if recordErr != nil {
		o.logger.ErrorContext(ctx, "failed to record critical entry", "err", recordErr)
	}

	return cause
}

func (o *Orchestrator) checkCancelled(ctx context.Context) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", ErrUserCancelled, ctx.Err())
	}

	return nil
}

func (o *Orchestrator) record(kind audit.Kind, payload any) error {
	return o.ledger.Append(kind, payload)
}

func (o *Orchestrator) persistCandidates(set *mine.Set) error {
	return writeJSON(filepath.Join(o.SessionDir(), candidatesFile), set.All())
}

func (o *Orchestrator) loadCandidates() (*mine.Set, error) {
	var candidates []mine.Candidate

	err := readJSON(filepath.Join(o.SessionDir(), candidatesFile), &candidates)
	if err != nil {
		return nil, err
	}

	set := mine.NewSet()

	for _, candidate := range candidates {
		candidate.CommitID = gitlib.NewHash(candidate.CommitIDHex)
		candidate.ContentHash = gitlib.NewHash(candidate.ContentHashHex)
		set.Add(candidate)
	}

	return set, nil
}

func (o *Orchestrator) persistRanking(ranking map[string][]score.Ranked) error {
	return writeJSON(filepath.Join(o.SessionDir(), rankingFile), ranking)
}

// LoadRecovered reads the persisted recovery record back.
func (o *Orchestrator) LoadRecovered() ([]RecoveredPath, error) {
	var recovered []RecoveredPath

	err := readJSON(filepath.Join(o.SessionDir(), recoveredFile), &recovered)
	if err != nil {
		return nil, err
	}

	return recovered, nil
}

// LoadValidation reads the persisted validation outcome back, or nil when
// validation has not run.
func (o *Orchestrator) LoadValidation() (*ValidationOutcome, error) {
	path := filepath.Join(o.SessionDir(), validationFile)

	if _, statErr := os.Stat(path); statErr != nil {
		return nil, nil
	}

	var outcome ValidationOutcome

	err := readJSON(path, &outcome)
	if err != nil {
		return nil, err
	}

	return &outcome, nil
}

// LoadRanking reads the persisted total order back.
func (o *Orchestrator) LoadRanking() (map[string][]score.Ranked, error) {
	ranking := make(map[string][]score.Ranked)

	err := readJSON(filepath.Join(o.SessionDir(), rankingFile), &ranking)
	if err != nil {
		return nil, err
	}

	return ranking, nil
}

func writeJSON(path string, value any) error {
	err := os.MkdirAll(filepath.Dir(path), 0o755)
	if err != nil {
		return fmt.Errorf("create dir for %s: %w", path, err)
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}

	err = os.WriteFile(path, data, 0o644)
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	return nil
}

func readJSON(path string, value any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	err = json.Unmarshal(data, value)
	if err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}

	return nil
}
