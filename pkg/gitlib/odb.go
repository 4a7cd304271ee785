package gitlib

import (
	"fmt"
	"sort"

	git2go "github.com/libgit2/git2go/v34"
)

// AllCommits sweeps the object database and returns the id of every commit
// object it holds, reachable or not, sorted by hash for deterministic
// iteration. Orphan detection is the caller's job: subtract the reachable
// set from this one.
func (r *Repository) AllCommits() ([]Hash, error) {
	odb, err := r.repo.Odb()
	if err != nil {
		return nil, fmt.Errorf("%w: open odb: %w", ErrRepositoryCorrupt, err)
	}
	defer odb.Free()

	var commits []Hash

	err = odb.ForEach(func(oid *git2go.Oid) error {
		_, objType, headerErr := odb.ReadHeader(oid)
		if headerErr != nil {
			// An unreadable header means the store is damaged at this object;
			// skip it rather than failing the sweep.
			return nil //nolint:nilerr // damaged object, sweep continues
		}

		if objType == git2go.ObjectCommit {
			commits = append(commits, HashFromOid(oid))
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: odb sweep: %w", ErrRepositoryCorrupt, err)
	}

	sort.Slice(commits, func(i, j int) bool {
		return commits[i].String() < commits[j].String()
	})

	return commits, nil
}

// VerifyObject reads an object back from the odb and confirms its header is
// intact. Used as a cheap spot integrity check before mutating operations.
func (r *Repository) VerifyObject(hash Hash) error {
	odb, err := r.repo.Odb()
	if err != nil {
		return fmt.Errorf("%w: open odb: %w", ErrRepositoryCorrupt, err)
	}
	defer odb.Free()

	_, _, err = odb.ReadHeader(hash.ToOid())
	if err != nil {
		return fmt.Errorf("%w: object %s unreadable: %w", ErrRepositoryCorrupt, hash.Short(), err)
	}

	return nil
}
