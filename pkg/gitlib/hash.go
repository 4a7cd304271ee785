// Package gitlib provides typed access to a git object store using libgit2.
// It is the only package that touches the repository; everything above it
// works with the wrapper types defined here.
package gitlib

import (
	"crypto/sha1" //nolint:gosec // git object ids are SHA-1 by format
	"strconv"

	git2go "github.com/libgit2/git2go/v34"
)

// Constants for hash operations.
const (
	// HashSize is the size of a SHA-1 hash in bytes.
	HashSize = 20
	// HashHexSize is the size of a hex-encoded SHA-1 hash.
	HashHexSize = 40
	// hexBase is the base for hexadecimal digits a-f.
	hexBase = 10
	// hexShift is the bit shift for the high nibble.
	hexShift = 4
)

// Hash represents a git object hash (SHA-1).
type Hash [HashSize]byte

// ZeroHash returns the zero value hash.
func ZeroHash() Hash {
	return Hash{}
}

// NewHash creates a Hash from a hex string.
func NewHash(hexStr string) Hash {
	var hash Hash

	for i := 0; i < HashSize && i*2+1 < len(hexStr); i++ {
		c1, c2 := hexStr[i*2], hexStr[i*2+1]
		hash[i] = hexCharToNibble(c1)<<hexShift | hexCharToNibble(c2)
	}

	return hash
}

// hexCharToNibble converts a hex character to its 4-bit value.
func hexCharToNibble(char byte) byte {
	switch {
	case char >= '0' && char <= '9':
		return char - '0'
	case char >= 'a' && char <= 'f':
		return char - 'a' + hexBase
	case char >= 'A' && char <= 'F':
		return char - 'A' + hexBase
	default:
		return 0
	}
}

// HashFromOid converts a libgit2 Oid to Hash.
func HashFromOid(oid *git2go.Oid) Hash {
	var h Hash
	copy(h[:], oid[:])

	return h
}

// HashBlobBytes computes the git object id of blob content from the bytes
// alone: SHA-1 over "blob <len>\x00" followed by the content. This is the
// recomputed content hash candidates carry; stored metadata is never trusted.
func HashBlobBytes(content []byte) Hash {
	hasher := sha1.New() //nolint:gosec // git object ids are SHA-1 by format
	hasher.Write([]byte("blob " + strconv.Itoa(len(content))))
	hasher.Write([]byte{0})
	hasher.Write(content)

	var h Hash
	copy(h[:], hasher.Sum(nil))

	return h
}

// String returns the hex representation of the hash.
func (h Hash) String() string {
	const hexChars = "0123456789abcdef"

	buf := make([]byte, HashHexSize)

	for i, byteVal := range h {
		buf[i*2] = hexChars[byteVal>>hexShift]
		buf[i*2+1] = hexChars[byteVal&0x0f]
	}

	return string(buf)
}

// Short returns the abbreviated (7 character) hex representation.
func (h Hash) Short() string {
	return h.String()[:7]
}

// IsZero returns true if the hash is all zeros.
func (h Hash) IsZero() bool {
	for _, b := range h {
		if b != 0 {
			return false
		}
	}

	return true
}

// ToOid converts Hash back to libgit2 Oid.
func (h Hash) ToOid() *git2go.Oid {
	oid := new(git2go.Oid)
	copy(oid[:], h[:])

	return oid
}
