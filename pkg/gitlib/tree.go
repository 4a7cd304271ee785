package gitlib

import (
	"context"
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

// Tree wraps a libgit2 tree.
type Tree struct {
	tree *git2go.Tree
	repo *Repository
}

// Hash returns the tree hash.
func (t *Tree) Hash() Hash {
	return HashFromOid(t.tree.Id())
}

// EntryByPath returns the tree entry at the given path, which may contain
// slashes. Returns ErrPathNotInTree when the path does not exist.
func (t *Tree) EntryByPath(path string) (*TreeEntry, error) {
	entry, err := t.tree.EntryByPath(path)
	if err != nil {
		if git2go.IsErrorCode(err, git2go.ErrorCodeNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrPathNotInTree, path)
		}

		return nil, fmt.Errorf("entry by path %s: %w", path, err)
	}

	return &TreeEntry{entry: entry}, nil
}

// BlobAtPath resolves path to a blob within the tree.
func (t *Tree) BlobAtPath(ctx context.Context, path string) (*Blob, error) {
	entry, err := t.EntryByPath(path)
	if err != nil {
		return nil, err
	}

	if entry.Type() != git2go.ObjectBlob {
		return nil, fmt.Errorf("%w: %s is not a blob", ErrPathNotInTree, path)
	}

	return t.repo.LookupBlob(ctx, entry.Hash())
}

// Free releases the tree resources.
func (t *Tree) Free() {
	if t.tree != nil {
		t.tree.Free()
		t.tree = nil
	}
}

// Native returns the underlying libgit2 tree.
func (t *Tree) Native() *git2go.Tree {
	return t.tree
}

// TreeEntry wraps a libgit2 tree entry.
type TreeEntry struct {
	entry *git2go.TreeEntry
}

// Name returns the entry name.
func (e *TreeEntry) Name() string {
	return e.entry.Name
}

// Hash returns the entry object id.
func (e *TreeEntry) Hash() Hash {
	return HashFromOid(e.entry.Id)
}

// Type returns the entry object type.
func (e *TreeEntry) Type() git2go.ObjectType {
	return e.entry.Type
}
