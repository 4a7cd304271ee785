package gitlib

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	git2go "github.com/libgit2/git2go/v34"
)

// Mutating plumbing. Only the recovery orchestrator calls into this file, and
// only while holding the session's exclusive phase token.

const workingFileMode = 0o644

// CreateBranch creates a local branch at the given commit. With force=false
// an existing branch of the same name is an error.
func (r *Repository) CreateBranch(ctx context.Context, name string, target Hash, force bool) error {
	commit, err := r.LookupCommit(ctx, target)
	if err != nil {
		return err
	}
	defer commit.Free()

	branch, err := r.repo.CreateBranch(name, commit.Native(), force)
	if err != nil {
		return fmt.Errorf("create branch %s: %w", name, err)
	}

	branch.Free()

	return nil
}

// CheckoutBranch points HEAD at the branch and updates the working tree.
func (r *Repository) CheckoutBranch(name string) error {
	err := r.repo.SetHead("refs/heads/" + name)
	if err != nil {
		return fmt.Errorf("set HEAD to %s: %w", name, err)
	}

	opts := git2go.CheckoutOptions{
		Strategy: git2go.CheckoutSafe | git2go.CheckoutRecreateMissing,
	}

	err = r.repo.CheckoutHead(&opts)
	if err != nil {
		return fmt.Errorf("checkout %s: %w", name, err)
	}

	return nil
}

// ResetBranchTo moves the branch ref to the given commit and force-checks it
// out, discarding working tree state past that commit. Rollback only.
func (r *Repository) ResetBranchTo(name string, target Hash, logMessage string) error {
	err := r.CreateRef("refs/heads/"+name, target, true, logMessage)
	if err != nil {
		return err
	}

	err = r.repo.SetHead("refs/heads/" + name)
	if err != nil {
		return fmt.Errorf("set HEAD to %s: %w", name, err)
	}

	opts := git2go.CheckoutOptions{
		Strategy: git2go.CheckoutForce | git2go.CheckoutRecreateMissing,
	}

	err = r.repo.CheckoutHead(&opts)
	if err != nil {
		return fmt.Errorf("force checkout %s: %w", name, err)
	}

	return nil
}

// WriteWorkingFile writes content to the working tree at the given relative
// path and verifies the write by recomputing the blob hash from what landed
// on disk.
func (r *Repository) WriteWorkingFile(path string, content []byte) (Hash, error) {
	abs := filepath.Join(r.repo.Workdir(), path)

	err := os.MkdirAll(filepath.Dir(abs), 0o755)
	if err != nil {
		return Hash{}, fmt.Errorf("create parent dirs for %s: %w", path, err)
	}

	err = os.WriteFile(abs, content, workingFileMode)
	if err != nil {
		return Hash{}, fmt.Errorf("write %s: %w", path, err)
	}

	written, err := os.ReadFile(abs)
	if err != nil {
		return Hash{}, fmt.Errorf("read back %s: %w", path, err)
	}

	return HashBlobBytes(written), nil
}

// StageAndCommit stages the given paths and commits them to the current
// branch, returning the new commit id.
func (r *Repository) StageAndCommit(ctx context.Context, paths []string, message string, sig Signature) (Hash, error) {
	idx, err := r.repo.Index()
	if err != nil {
		return Hash{}, fmt.Errorf("open index: %w", err)
	}
	defer idx.Free()

	for _, p := range paths {
		addErr := idx.AddByPath(p)
		if addErr != nil {
			return Hash{}, fmt.Errorf("stage %s: %w", p, addErr)
		}
	}

	err = idx.Write()
	if err != nil {
		return Hash{}, fmt.Errorf("write index: %w", err)
	}

	treeOid, err := idx.WriteTree()
	if err != nil {
		return Hash{}, fmt.Errorf("write tree: %w", err)
	}

	tree, err := r.LookupTree(HashFromOid(treeOid))
	if err != nil {
		return Hash{}, err
	}
	defer tree.Free()

	head, err := r.Head()
	if err != nil {
		return Hash{}, err
	}

	parent, err := r.LookupCommit(ctx, head)
	if err != nil {
		return Hash{}, err
	}
	defer parent.Free()

	when := sig.When
	if when.IsZero() {
		when = time.Now()
	}

	gitSig := &git2go.Signature{Name: sig.Name, Email: sig.Email, When: when}

	commitOid, err := r.repo.CreateCommit("HEAD", gitSig, gitSig, message, tree.Native(), parent.Native())
	if err != nil {
		return Hash{}, fmt.Errorf("create commit: %w", err)
	}

	return HashFromOid(commitOid), nil
}

// CreateBlob stores raw bytes as a blob object and returns its id. Used for
// the session lock record, which lives in the repository so the
// single-session invariant survives process restarts.
func (r *Repository) CreateBlob(content []byte) (Hash, error) {
	oid, err := r.repo.CreateBlobFromBuffer(content)
	if err != nil {
		return Hash{}, fmt.Errorf("create blob: %w", err)
	}

	return HashFromOid(oid), nil
}
