package gitlib

import (
	git2go "github.com/libgit2/git2go/v34"
)

// Blob wraps a libgit2 blob.
type Blob struct {
	blob *git2go.Blob
}

// Hash returns the blob hash as stored in the object database.
func (b *Blob) Hash() Hash {
	return HashFromOid(b.blob.Id())
}

// Size returns the blob size.
func (b *Blob) Size() int64 {
	return b.blob.Size()
}

// Contents returns the blob contents.
func (b *Blob) Contents() []byte {
	return b.blob.Contents()
}

// ContentHash recomputes the object id from the blob bytes. A mismatch with
// Hash() means the object database lied about this blob.
func (b *Blob) ContentHash() Hash {
	return HashBlobBytes(b.blob.Contents())
}

// Free releases the blob resources.
func (b *Blob) Free() {
	if b.blob != nil {
		b.blob.Free()
		b.blob = nil
	}
}
