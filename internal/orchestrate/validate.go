package orchestrate

import (
	"context"
	"os"
	"path/filepath"

	"github.com/gitforensics/salvage/internal/analyze"
	"github.com/gitforensics/salvage/internal/audit"
	"github.com/gitforensics/salvage/internal/score"
	"github.com/gitforensics/salvage/internal/session"
)

// PathValidation is the post-recovery verdict for one path.
type PathValidation struct {
	Path        string `json:"path"`
	CommitID    string `json:"commit_id"`
	ContentHash string `json:"content_hash"`
	Valid       bool   `json:"valid"`
	Reason      string `json:"reason,omitempty"`
}

// ValidationOutcome summarizes the VALIDATION phase.
type ValidationOutcome struct {
	Passed bool             `json:"passed"`
	Paths  []PathValidation `json:"paths"`
}

// Validate re-analyzes every recovered file from the working tree. On any
// failure the candidate's score is penalized in the persisted ranking and
// the session returns to AWAITING_SELECTION for a new explicit choice. On
// success the session reaches its terminal DOCUMENTED state and the lock
// is released.
func (o *Orchestrator) Validate(ctx context.Context) (*ValidationOutcome, error) {
	err := o.checkCancelled(ctx)
	if err != nil {
		return nil, err
	}

	var recovered []RecoveredPath

	err = readJSON(filepath.Join(o.SessionDir(), recoveredFile), &recovered)
	if err != nil {
		return nil, err
	}

	outcome := &ValidationOutcome{Passed: true}

	for _, entry := range recovered {
		verdict := o.validateOne(entry)
		outcome.Paths = append(outcome.Paths, verdict)

		if !verdict.Valid {
			outcome.Passed = false
		}

		recordErr := o.record(audit.KindResult, map[string]any{
			"op":     "validate",
			"path":   verdict.Path,
			"valid":  verdict.Valid,
			"reason": verdict.Reason,
		})
		if recordErr != nil {
			return nil, recordErr
		}
	}

	err = writeJSON(filepath.Join(o.SessionDir(), validationFile), outcome)
	if err != nil {
		return nil, err
	}

	if !outcome.Passed {
		return outcome, o.failValidation(ctx, outcome)
	}

	err = o.advance(session.StateDocumented, "documented")
	if err != nil {
		return nil, err
	}

	err = session.ReleaseLock(o.repo, o.sess.SessionID)
	if err != nil {
		return nil, err
	}

	o.logger.InfoContext(ctx, "session documented",
		"session_id", o.sess.SessionID, "paths", len(outcome.Paths))

	return outcome, o.sess.Save(o.root)
}

// validateOne runs the full analysis pipeline against the file as it now
// exists on disk, not against the blob that produced it.
func (o *Orchestrator) validateOne(entry RecoveredPath) PathValidation {
	verdict := PathValidation{
		Path:        entry.Path,
		CommitID:    entry.CommitID,
		ContentHash: entry.ContentHash,
	}

	content, err := os.ReadFile(filepath.Join(o.repo.Workdir(), entry.Path))
	if err != nil {
		verdict.Reason = "unreadable after recovery: " + err.Error()

		return verdict
	}

	result := analyze.Analyze(entry.Path, content)
	if result.SyntaxValid == analyze.SyntaxInvalid {
		verdict.Reason = "recovered content fails syntax validation"

		return verdict
	}

	if o.sess.Snapshot != nil {
		if missing := missingRequired(result, o.sess.Snapshot.ForPath(entry.Path)); missing != "" {
			verdict.Reason = "required symbol absent: " + missing

			return verdict
		}
	}

	verdict.Valid = true

	return verdict
}

// failValidation attaches the failure penalty to each failing candidate's
// persisted score history and hands control back to the operator.
func (o *Orchestrator) failValidation(ctx context.Context, outcome *ValidationOutcome) error {
	ranking, err := o.LoadRanking()
	if err != nil {
		return err
	}

	for _, verdict := range outcome.Paths {
		if verdict.Valid {
			continue
		}

		ranked := ranking[verdict.Path]
		for i := range ranked {
			if ranked[i].Candidate.CommitIDHex == verdict.CommitID {
				ranked[i].Score = o.scorer.PenalizeValidationFailure(ranked[i].Score, verdict.Reason)
			}
		}

		score.SortRanked(ranked)
		ranking[verdict.Path] = ranked
	}

	err = o.persistRanking(ranking)
	if err != nil {
		return err
	}

	err = o.advance(session.StateAwaitingSelection, "awaiting selection after validation failure")
	if err != nil {
		return err
	}

	o.logger.WarnContext(ctx, "validation failed, returning to selection",
		"session_id", o.sess.SessionID)

	return o.sess.Save(o.root)
}

// missingRequired reports the first required signature entry absent from the
// analysis, scoped to entries the analyzed format can express at all.
func missingRequired(result analyze.Result, required []string) string {
	if !result.HasSignature() {
		return ""
	}

	present := make(map[string]bool, len(result.Signature))
	for _, entry := range result.Signature {
		present[entry] = true
	}

	for _, want := range required {
		if !present[want] {
			return want
		}
	}

	return ""
}
