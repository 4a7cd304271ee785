package gitlib

import (
	"context"
	"fmt"
	"sort"

	git2go "github.com/libgit2/git2go/v34"
)

// ListRemotes returns the configured remote names, sorted.
func (r *Repository) ListRemotes() ([]string, error) {
	names, err := r.repo.Remotes.List()
	if err != nil {
		return nil, fmt.Errorf("list remotes: %w", err)
	}

	sort.Strings(names)

	return names, nil
}

// Fetch downloads objects and refs from the named remote. This is the only
// gitlib operation that performs network I/O. It honors ctx cancellation and
// deadline through the transfer callback, is idempotent, and safe to retry.
func (r *Repository) Fetch(ctx context.Context, remoteName string) error {
	remote, err := r.repo.Remotes.Lookup(remoteName)
	if err != nil {
		return fmt.Errorf("lookup remote %s: %w", remoteName, classifyLookupError(err))
	}
	defer remote.Free()

	opts := git2go.FetchOptions{
		RemoteCallbacks: git2go.RemoteCallbacks{
			TransferProgressCallback: func(_ git2go.TransferProgress) error {
				select {
				case <-ctx.Done():
					return fmt.Errorf("%w: fetch %s: %w", ErrNetworkTimeout, remoteName, ctx.Err())
				default:
					return nil
				}
			},
		},
	}

	err = remote.Fetch(nil, &opts, "")
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: fetch %s: %w", ErrNetworkTimeout, remoteName, ctx.Err())
		}

		return fmt.Errorf("fetch %s: %w", remoteName, err)
	}

	return nil
}
