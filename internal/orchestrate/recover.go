package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/gitforensics/salvage/internal/audit"
	"github.com/gitforensics/salvage/internal/mine"
	"github.com/gitforensics/salvage/internal/score"
	"github.com/gitforensics/salvage/internal/session"
	"github.com/gitforensics/salvage/pkg/gitlib"
)

// RecoveredPath is the outcome of one surgical write.
type RecoveredPath struct {
	Path        string `json:"path"`
	CommitID    string `json:"commit_id"`
	ContentHash string `json:"content_hash"`
	Checkpoint  string `json:"checkpoint"`
}

// Recover performs SURGICAL_RECOVERY for the explicitly selected candidates:
// one path at a time, each write verified by recomputed hash and bracketed
// by checkpoint, so a failure mid-sequence leaves prior successes intact.
// selections maps target path to the chosen candidate's commit id.
func (o *Orchestrator) Recover(ctx context.Context, selections map[string]string) ([]RecoveredPath, error) {
	if len(selections) == 0 {
		return nil, ErrSelectionRequired
	}

	ranking, err := o.LoadRanking()
	if err != nil {
		return nil, err
	}

	err = o.advance(session.StateSurgicalRecovery, "surgical recovery")
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(selections))
	for path := range selections {
		paths = append(paths, path)
	}

	sort.Strings(paths)

	var recovered []RecoveredPath

	for _, path := range paths {
		// Each path is an independent step: cancellation lands between
		// steps, never inside a write.
		cancelErr := o.checkCancelled(ctx)
		if cancelErr != nil {
			return recovered, cancelErr
		}

		entry, recoverErr := o.recoverOne(ctx, path, selections[path], ranking)
		if recoverErr != nil {
			return recovered, o.failRecovery(ctx, path, recoverErr)
		}

		recovered = append(recovered, entry)

		saveErr := o.sess.Save(o.root)
		if saveErr != nil {
			return recovered, saveErr
		}
	}

	err = writeJSON(filepath.Join(o.SessionDir(), recoveredFile), recovered)
	if err != nil {
		return recovered, err
	}

	err = o.advance(session.StateValidation, "validation")
	if err != nil {
		return recovered, err
	}

	return recovered, o.sess.Save(o.root)
}

// recoverOne writes a single selected candidate to the working tree under
// the guard, verifies the round trip, and checkpoints the result.
func (o *Orchestrator) recoverOne(ctx context.Context, path, commitID string, rankedByPath map[string][]score.Ranked) (RecoveredPath, error) {
	candidate, err := findSelection(rankedByPath, path, commitID)
	if err != nil {
		return RecoveredPath{}, err
	}

	err = o.record(audit.KindDecision, map[string]any{
		"op":           "select",
		"path":         path,
		"commit_id":    commitID,
		"content_hash": candidate.ContentHashHex,
		"origin":       candidate.Origin,
	})
	if err != nil {
		return RecoveredPath{}, err
	}

	err = o.repo.VerifyObject(candidate.ContentHash)
	if err != nil {
		return RecoveredPath{}, err
	}

	blob, err := o.repo.LookupBlob(ctx, candidate.ContentHash)
	if err != nil {
		return RecoveredPath{}, err
	}

	content := append([]byte(nil), blob.Contents()...)
	blob.Free()

	var checkpointID gitlib.Hash

	err = o.guard.WithMutation(ctx, "recover "+path, func() error {
		writtenHash, writeErr := o.repo.WriteWorkingFile(path, content)
		if writeErr != nil {
			return writeErr
		}

		if writtenHash != candidate.ContentHash {
			return fmt.Errorf("post-write hash mismatch at %s: got %s, want %s",
				path, writtenHash.Short(), candidate.ContentHash.Short())
		}

		commitHash, commitErr := o.repo.StageAndCommit(ctx, []string{path},
			fmt.Sprintf("salvage: recover %s from %s", path, candidate.CommitID.Short()),
			gitlib.Signature{Name: o.cfg.Session.CommitterName, Email: o.cfg.Session.CommitterEmail})
		if commitErr != nil {
			return commitErr
		}

		checkpointID = commitHash

		return nil
	})
	if err != nil {
		return RecoveredPath{}, err
	}

	label := "recovered " + path
	o.sess.AddCheckpoint(label, checkpointID.String(), o.now())

	err = o.record(audit.KindResult, map[string]any{
		"op":           "recover",
		"path":         path,
		"content_hash": candidate.ContentHashHex,
		"checkpoint":   checkpointID.String(),
	})
	if err != nil {
		return RecoveredPath{}, err
	}

	return RecoveredPath{
		Path:        path,
		CommitID:    commitID,
		ContentHash: candidate.ContentHashHex,
		Checkpoint:  checkpointID.String(),
	}, nil
}

// failRecovery handles a write-time failure: branch violations abort the
// session outright; everything else returns control to AWAITING_SELECTION
// so a human re-confirms the next action. There is no silent retry with a
// different candidate.
func (o *Orchestrator) failRecovery(ctx context.Context, path string, cause error) error {
	// A corrupt object store cannot be rolled back around; surface it
	// without touching session state and let the operator escalate.
	if errors.Is(cause, gitlib.ErrRepositoryCorrupt) {
		return o.fatal(ctx, cause)
	}

	if isBranchViolation(cause) {
		abortErr := o.Abort(ctx, fmt.Sprintf("branch consistency violation recovering %s: %v", path, cause))
		if abortErr != nil {
			o.logger.ErrorContext(ctx, "abort after violation failed", "err", abortErr)
		}

		return o.fatal(ctx, cause)
	}

	transitionErr := Transition(o.sess, session.StateAwaitingSelection)
	if transitionErr == nil {
		transitionErr = o.sess.Save(o.root)
	}

	if transitionErr != nil {
		o.logger.ErrorContext(ctx, "failed to return session to selection", "err", transitionErr)
	}

	return o.fatal(ctx, fmt.Errorf("recovering %s: %w", path, cause))
}

// findSelection resolves an operator's path plus commit id choice against the
// persisted ranking. Only ranked candidates are recoverable.
func findSelection(ranking map[string][]score.Ranked, path, commitID string) (mine.Candidate, error) {
	for _, ranked := range ranking[path] {
		if ranked.Candidate.CommitIDHex == commitID {
			candidate := ranked.Candidate
			candidate.CommitID = gitlib.NewHash(candidate.CommitIDHex)
			candidate.ContentHash = gitlib.NewHash(candidate.ContentHashHex)

			return candidate, nil
		}
	}

	return mine.Candidate{}, fmt.Errorf("%w: no ranked candidate for %s at commit %s",
		ErrSelectionRequired, path, commitID)
}

func isBranchViolation(err error) bool {
	return errors.Is(err, session.ErrBranchConsistency)
}
