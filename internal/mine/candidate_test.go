package mine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitforensics/salvage/pkg/gitlib"
)

func newCandidate(path, contentHex, commitHex string, origin Origin, source string) Candidate {
	c := Candidate{
		Origin:       origin,
		Source:       source,
		CommitID:     gitlib.NewHash(commitHex),
		CommitIDHex:  commitHex,
		Path:         path,
		ContentHash:  gitlib.NewHash(contentHex),
		DiscoveredAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	c.ContentHashHex = c.ContentHash.String()

	return c
}

func TestSet_DedupKeepsEarliestProvenance(t *testing.T) {
	t.Parallel()

	set := NewSet()

	first := newCandidate("config.json", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		"1111111111111111111111111111111111111111", OriginLocalBranch, "main")
	duplicate := newCandidate("config.json", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		"2222222222222222222222222222222222222222", OriginRemoteBranch, "origin/main")

	assert.True(t, set.Add(first))
	assert.False(t, set.Add(duplicate))

	require.Equal(t, 1, set.Len())
	kept := set.All()[0]
	assert.Equal(t, OriginLocalBranch, kept.Origin)
	assert.Equal(t, "main", kept.Source)
}

func TestSet_SameContentDifferentPathIsDistinct(t *testing.T) {
	t.Parallel()

	set := NewSet()
	hash := "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	commit := "1111111111111111111111111111111111111111"

	assert.True(t, set.Add(newCandidate("a.json", hash, commit, OriginLocalBranch, "main")))
	assert.True(t, set.Add(newCandidate("b.json", hash, commit, OriginLocalBranch, "main")))

	assert.Equal(t, 2, set.Len())
}

func TestSet_MissingTargets(t *testing.T) {
	t.Parallel()

	set := NewSet()
	set.Add(newCandidate("config.json", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		"1111111111111111111111111111111111111111", OriginLocalBranch, "main"))

	targets := []string{"config.json", "secrets.yaml", "schema.sql"}

	assert.Equal(t, []string{"secrets.yaml", "schema.sql"}, set.MissingTargets(targets))
	assert.Empty(t, set.MissingTargets([]string{"config.json"}))
	assert.Equal(t, []string{"anything"}, NewSet().MissingTargets([]string{"anything"}))
}

func TestSet_ByPath(t *testing.T) {
	t.Parallel()

	set := NewSet()
	commit := "1111111111111111111111111111111111111111"

	set.Add(newCandidate("z.json", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", commit, OriginLocalBranch, "main"))
	set.Add(newCandidate("a.json", "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", commit, OriginOrphan, "unreachable"))
	set.Add(newCandidate("z.json", "cccccccccccccccccccccccccccccccccccccccc", commit, OriginReflog, "HEAD"))

	paths, groups := set.ByPath()

	assert.Equal(t, []string{"a.json", "z.json"}, paths)
	require.Len(t, groups["z.json"], 2)
	// Discovery order preserved within a path group.
	assert.Equal(t, OriginLocalBranch, groups["z.json"][0].Origin)
	assert.Equal(t, OriginReflog, groups["z.json"][1].Origin)
}

func TestCandidate_Key(t *testing.T) {
	t.Parallel()

	a := newCandidate("x", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		"1111111111111111111111111111111111111111", OriginLocalBranch, "main")
	b := newCandidate("x", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		"9999999999999999999999999999999999999999", OriginOrphan, "unreachable")

	// Same path and content means same key, commit notwithstanding.
	assert.Equal(t, a.Key(), b.Key())
}
