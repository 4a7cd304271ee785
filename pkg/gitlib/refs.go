package gitlib

import (
	"errors"
	"fmt"
	"sort"

	git2go "github.com/libgit2/git2go/v34"
)

// Ref is a resolved reference: full name plus target commit.
type Ref struct {
	Name   string
	Target Hash
}

// ListRefs returns every reference in the repository, resolved to its target
// object and sorted by name. Symbolic refs are resolved; unresolvable refs
// are skipped.
func (r *Repository) ListRefs() ([]Ref, error) {
	iter, err := r.repo.NewReferenceIterator()
	if err != nil {
		return nil, fmt.Errorf("reference iterator: %w", err)
	}
	defer iter.Free()

	var refs []Ref

	for {
		ref, nextErr := iter.Next()
		if nextErr != nil {
			if git2go.IsErrorCode(nextErr, git2go.ErrorCodeIterOver) {
				break
			}

			return nil, fmt.Errorf("iterate references: %w", nextErr)
		}

		resolved, resolveErr := ref.Resolve()
		if resolveErr != nil {
			ref.Free()

			continue
		}

		refs = append(refs, Ref{Name: ref.Name(), Target: HashFromOid(resolved.Target())})

		resolved.Free()
		ref.Free()
	}

	sort.Slice(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })

	return refs, nil
}

// LocalBranches returns the short names and tips of all local branches,
// sorted by name.
func (r *Repository) LocalBranches() ([]Ref, error) {
	return r.branches(git2go.BranchLocal)
}

// RemoteBranches returns the short names ("origin/main") and tips of all
// remote-tracking branches, sorted by name.
func (r *Repository) RemoteBranches() ([]Ref, error) {
	return r.branches(git2go.BranchRemote)
}

func (r *Repository) branches(kind git2go.BranchType) ([]Ref, error) {
	iter, err := r.repo.NewBranchIterator(kind)
	if err != nil {
		return nil, fmt.Errorf("branch iterator: %w", err)
	}
	defer iter.Free()

	var branches []Ref

	err = iter.ForEach(func(branch *git2go.Branch, _ git2go.BranchType) error {
		name, nameErr := branch.Name()
		if nameErr != nil {
			return nil //nolint:nilerr // unnamed branch, skip it
		}

		target := branch.Target()
		if target == nil {
			// Unborn branch, nothing to mine.
			return nil
		}

		branches = append(branches, Ref{Name: name, Target: HashFromOid(target)})

		return nil
	})
	if err != nil && !git2go.IsErrorCode(err, git2go.ErrorCodeIterOver) {
		return nil, fmt.Errorf("iterate branches: %w", err)
	}

	sort.Slice(branches, func(i, j int) bool { return branches[i].Name < branches[j].Name })

	return branches, nil
}

// CreateRef creates a direct reference pointing at the given object. With
// force=false this is a compare-and-swap: it fails if the ref already exists.
func (r *Repository) CreateRef(name string, target Hash, force bool, logMessage string) error {
	ref, err := r.repo.References.Create(name, target.ToOid(), force, logMessage)
	if err != nil {
		return fmt.Errorf("create ref %s: %w", name, err)
	}

	ref.Free()

	return nil
}

// RefTarget resolves a reference name to its target hash.
func (r *Repository) RefTarget(name string) (Hash, error) {
	ref, err := r.repo.References.Lookup(name)
	if err != nil {
		return Hash{}, fmt.Errorf("lookup ref %s: %w", name, classifyLookupError(err))
	}
	defer ref.Free()

	resolved, err := ref.Resolve()
	if err != nil {
		return Hash{}, fmt.Errorf("resolve ref %s: %w", name, err)
	}
	defer resolved.Free()

	return HashFromOid(resolved.Target()), nil
}

// DeleteRef removes a reference. Deleting a missing ref is not an error.
func (r *Repository) DeleteRef(name string) error {
	ref, err := r.repo.References.Lookup(name)
	if err != nil {
		if errors.Is(classifyLookupError(err), ErrObjectNotFound) {
			return nil
		}

		return fmt.Errorf("lookup ref %s: %w", name, err)
	}
	defer ref.Free()

	err = ref.Delete()
	if err != nil {
		return fmt.Errorf("delete ref %s: %w", name, err)
	}

	return nil
}
