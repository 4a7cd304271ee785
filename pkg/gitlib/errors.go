package gitlib

import (
	"errors"

	git2go "github.com/libgit2/git2go/v34"
)

// Error taxonomy for object store access. Callers classify failures with
// errors.Is; everything else wraps the underlying libgit2 error.
var (
	// ErrObjectNotFound means an object id could not be resolved. Non-fatal:
	// the candidate referencing it is dropped.
	ErrObjectNotFound = errors.New("object not found")

	// ErrNetworkTimeout means a remote fetch exceeded its deadline.
	// Propagated to the caller for retry policy.
	ErrNetworkTimeout = errors.New("network timeout")

	// ErrRepositoryCorrupt means the object store itself failed an integrity
	// check. Fatal: no session can proceed against a corrupt store.
	ErrRepositoryCorrupt = errors.New("repository corrupt")

	// ErrPathNotInTree means the requested path does not exist in a tree.
	ErrPathNotInTree = errors.New("path not in tree")
)

// classifyLookupError maps libgit2 lookup failures onto the taxonomy.
func classifyLookupError(err error) error {
	if err == nil {
		return nil
	}

	if git2go.IsErrorCode(err, git2go.ErrorCodeNotFound) {
		return ErrObjectNotFound
	}

	return err
}
