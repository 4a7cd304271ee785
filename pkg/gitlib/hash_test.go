package gitlib

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHash_RoundTrip(t *testing.T) {
	t.Parallel()

	hex := "3b18e512dba79e4c8300dd08aeb37f8e728b8dad"
	h := NewHash(hex)

	assert.Equal(t, hex, h.String())
	assert.Equal(t, "3b18e51", h.Short())
	assert.False(t, h.IsZero())
}

func TestZeroHash(t *testing.T) {
	t.Parallel()

	assert.True(t, ZeroHash().IsZero())
	assert.Equal(t, "0000000000000000000000000000000000000000", ZeroHash().String())
}

func TestHashBlobBytes_KnownObjects(t *testing.T) {
	t.Parallel()

	// Ids computed by git hash-object.
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "empty blob", content: "", want: "e69de29bb2d1d6434b8b29ae775ad8c2e48c5391"},
		{name: "hello world", content: "hello world\n", want: "3b18e512dba79e4c8300dd08aeb37f8e728b8dad"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := HashBlobBytes([]byte(tt.content))
			require.Equal(t, tt.want, got.String())
		})
	}
}

func TestHashBlobBytes_Deterministic(t *testing.T) {
	t.Parallel()

	content := []byte("{\"key\": \"value\"}\n")

	assert.Equal(t, HashBlobBytes(content), HashBlobBytes(content))
}

func TestToOid_RoundTrip(t *testing.T) {
	t.Parallel()

	h := NewHash("e69de29bb2d1d6434b8b29ae775ad8c2e48c5391")

	assert.Equal(t, h, HashFromOid(h.ToOid()))
}
