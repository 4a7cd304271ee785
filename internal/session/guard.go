package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gitforensics/salvage/pkg/gitlib"
)

// ErrBranchConsistency means the working copy is not on the emergency
// branch. Fatal: mutating anywhere else violates the session isolation
// boundary.
var ErrBranchConsistency = errors.New("branch consistency violation")

// Guard enforces the single-branch invariant around every mutating
// operation: the consistency check must pass both before and after.
type Guard struct {
	repo    *gitlib.Repository
	session *RecoverySession
	logger  *slog.Logger
}

// NewGuard creates a guard bound to one session.
func NewGuard(repo *gitlib.Repository, sess *RecoverySession, logger *slog.Logger) *Guard {
	return &Guard{repo: repo, session: sess, logger: logger}
}

// Check verifies the current branch equals the session's emergency branch.
func (g *Guard) Check() error {
	current, err := g.repo.CurrentBranch()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBranchConsistency, err)
	}

	if current != g.session.EmergencyBranch {
		return fmt.Errorf("%w: on %q, expected %q", ErrBranchConsistency, current, g.session.EmergencyBranch)
	}

	return nil
}

// WithMutation brackets a mutating operation with consistency checks. On a
// post-check failure it does not fix forward: it attempts exactly one
// automatic checkout of the emergency branch, logs critically either way,
// and reports the violation so the session aborts.
func (g *Guard) WithMutation(ctx context.Context, op string, fn func() error) error {
	err := g.Check()
	if err != nil {
		return fmt.Errorf("pre-check for %s: %w", op, err)
	}

	opErr := fn()

	err = g.Check()
	if err != nil {
		g.logger.ErrorContext(ctx, "branch changed during mutating operation",
			"op", op, "err", err)

		recoverErr := g.repo.CheckoutBranch(g.session.EmergencyBranch)
		if recoverErr != nil {
			g.logger.ErrorContext(ctx, "automatic re-checkout failed, operator intervention required",
				"branch", g.session.EmergencyBranch, "err", recoverErr)

			return fmt.Errorf("post-check for %s: %w; re-checkout failed: %w", op, err, recoverErr)
		}

		g.logger.ErrorContext(ctx, "re-checked out emergency branch after violation",
			"branch", g.session.EmergencyBranch)

		return fmt.Errorf("post-check for %s: %w", op, err)
	}

	return opErr
}

// Rollback checks out the last checkpoint commit on the emergency branch.
// Rollback targets are always checkpoints, never arbitrary states.
func (g *Guard) Rollback(ctx context.Context) error {
	checkpoint, ok := g.session.LastCheckpoint()
	if !ok {
		return errors.New("no checkpoint to roll back to")
	}

	err := g.repo.ResetBranchTo(g.session.EmergencyBranch,
		gitlib.NewHash(checkpoint.CommitID),
		"salvage: rollback to checkpoint "+checkpoint.Label)
	if err != nil {
		return fmt.Errorf("rollback: %w", err)
	}

	g.logger.InfoContext(ctx, "rolled back to checkpoint",
		"label", checkpoint.Label, "commit", checkpoint.CommitID)

	return nil
}
