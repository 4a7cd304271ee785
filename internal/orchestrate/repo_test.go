package orchestrate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	git2go "github.com/libgit2/git2go/v34"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitforensics/salvage/internal/mine"
	"github.com/gitforensics/salvage/internal/session"
	"github.com/gitforensics/salvage/pkg/config"
	"github.com/gitforensics/salvage/pkg/gitlib"
)

const (
	goodConfig    = `{"server": {"host": "localhost", "port": 8080}}`
	corruptConfig = `{"server": {"host": "localhost", "port":` // truncated mid-write
)

// testRepo wraps a real repository for integration testing.
type testRepo struct {
	t      *testing.T
	path   string
	native *git2go.Repository
}

func newTestRepo(t *testing.T) *testRepo {
	t.Helper()

	dir := t.TempDir()

	repo, err := git2go.InitRepository(dir, false)
	require.NoError(t, err)

	t.Cleanup(repo.Free)

	return &testRepo{t: t, path: dir, native: repo}
}

func (tr *testRepo) writeFile(name, content string) {
	tr.t.Helper()

	err := os.WriteFile(filepath.Join(tr.path, name), []byte(content), 0o644)
	require.NoError(tr.t, err)
}

// commitAll stages everything and commits, returning the commit hash.
func (tr *testRepo) commitAll(message string) gitlib.Hash {
	tr.t.Helper()

	index, err := tr.native.Index()
	require.NoError(tr.t, err)

	defer index.Free()

	err = index.AddAll([]string{"*"}, git2go.IndexAddDefault, nil)
	require.NoError(tr.t, err)

	err = index.Write()
	require.NoError(tr.t, err)

	treeID, err := index.WriteTree()
	require.NoError(tr.t, err)

	tree, err := tr.native.LookupTree(treeID)
	require.NoError(tr.t, err)

	defer tree.Free()

	sig := &git2go.Signature{Name: "Test User", Email: "test@example.com", When: time.Now()}

	var parents []*git2go.Commit

	head, err := tr.native.Head()
	if err == nil {
		headCommit, lookupErr := tr.native.LookupCommit(head.Target())
		require.NoError(tr.t, lookupErr)

		parents = append(parents, headCommit)

		head.Free()
	}

	oid, err := tr.native.CreateCommit("HEAD", sig, sig, message, tree, parents...)
	require.NoError(tr.t, err)

	for _, parent := range parents {
		parent.Free()
	}

	return gitlib.HashFromOid(oid)
}

func (tr *testRepo) open() *gitlib.Repository {
	tr.t.Helper()

	repo, err := gitlib.OpenRepository(tr.path)
	require.NoError(tr.t, err)

	tr.t.Cleanup(repo.Free)

	return repo
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// corruptedFixture builds a repository whose config.json had a good version
// and now carries a truncated one at HEAD.
func corruptedFixture(t *testing.T) (tr *testRepo, goodCommit gitlib.Hash) {
	t.Helper()

	tr = newTestRepo(t)
	tr.writeFile("config.json", goodConfig)
	goodCommit = tr.commitAll("add config")
	tr.writeFile("config.json", corruptConfig)
	tr.commitAll("update config")

	return tr, goodCommit
}

func candidateKeys(set *mine.Set) []string {
	keys := make([]string, 0, set.Len())
	for _, candidate := range set.All() {
		keys = append(keys, candidate.Key())
	}

	return keys
}

func refTargets(t *testing.T, repo *gitlib.Repository) map[string]string {
	t.Helper()

	refs, err := repo.ListRefs()
	require.NoError(t, err)

	targets := make(map[string]string, len(refs))
	for _, ref := range refs {
		targets[ref.Name] = ref.Target.String()
	}

	return targets
}

func TestMiner_RepeatedRunsYieldSameCandidates(t *testing.T) {
	tr, _ := corruptedFixture(t)
	repo := tr.open()

	miner := mine.NewMiner(repo, config.Default().Mining, testLogger())

	first, err := miner.Mine(context.Background(), []string{"config.json"}, nil)
	require.NoError(t, err)

	second, err := miner.Mine(context.Background(), []string{"config.json"}, nil)
	require.NoError(t, err)

	require.Equal(t, 2, first.Candidates.Len(),
		"expected one candidate per distinct config.json content")
	assert.Equal(t, candidateKeys(first.Candidates), candidateKeys(second.Candidates))
}

func TestMiner_LeavesRepositoryUntouched(t *testing.T) {
	tr, _ := corruptedFixture(t)
	repo := tr.open()

	before := refTargets(t, repo)

	miner := mine.NewMiner(repo, config.Default().Mining, testLogger())

	_, err := miner.Mine(context.Background(), []string{"config.json"}, nil)
	require.NoError(t, err)

	assert.Equal(t, before, refTargets(t, repo))

	content, err := os.ReadFile(filepath.Join(tr.path, "config.json"))
	require.NoError(t, err)
	assert.Equal(t, corruptConfig, string(content))
}

func TestSessionLifecycle_RoundTripRecovery(t *testing.T) {
	tr, goodCommit := corruptedFixture(t)
	repo := tr.open()

	originalRefs := refTargets(t, repo)
	originalBranch, err := repo.CurrentBranch()
	require.NoError(t, err)

	ctx := context.Background()
	cfg := config.Default()

	orch, err := Begin(ctx, repo, cfg, "truncated config", []string{"config.json"}, nil, testLogger())
	require.NoError(t, err)

	_, err = orch.Mine(ctx, nil)
	require.NoError(t, err)

	paths, ranking, err := orch.Rank(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"config.json"}, paths)
	require.NotEmpty(t, ranking["config.json"])

	// The parseable old version outranks the fresher truncated one.
	top := ranking["config.json"][0]
	require.Equal(t, goodCommit.String(), top.Candidate.CommitIDHex)

	recovered, err := orch.Recover(ctx, map[string]string{"config.json": top.Candidate.CommitIDHex})
	require.NoError(t, err)
	require.Len(t, recovered, 1)

	outcome, err := orch.Validate(ctx)
	require.NoError(t, err)
	assert.True(t, outcome.Passed)
	assert.Equal(t, session.StateDocumented, orch.Session().State)

	// Round trip: the working tree holds the selected version byte for byte.
	content, err := os.ReadFile(filepath.Join(tr.path, "config.json"))
	require.NoError(t, err)
	assert.Equal(t, goodConfig, string(content))

	// All writes landed on the emergency branch; every pre-session ref
	// still points where it did, and the lock is gone.
	after := refTargets(t, repo)
	for name, target := range originalRefs {
		assert.Equal(t, target, after[name], "pre-session ref %s moved", name)
	}

	assert.NotEqual(t, originalBranch, orch.Session().EmergencyBranch)

	_, err = session.ReadLock(repo)
	require.ErrorIs(t, err, gitlib.ErrObjectNotFound)
}

func TestBegin_ReleasesLockWhenBaselineFails(t *testing.T) {
	// An empty repository has no HEAD, so Begin fails after taking the
	// lock. The lock must not outlive the failed session.
	tr := newTestRepo(t)
	repo := tr.open()

	ctx := context.Background()
	cfg := config.Default()

	_, err := Begin(ctx, repo, cfg, "no head", []string{"config.json"}, nil, testLogger())
	require.Error(t, err)

	_, err = session.ReadLock(repo)
	require.ErrorIs(t, err, gitlib.ErrObjectNotFound)

	// A fresh session can lock again.
	record := session.LockRecord{SessionID: "next", EmergencyBranch: "b", AcquiredAt: time.Now()}
	require.NoError(t, session.AcquireLock(repo, record))
	require.NoError(t, session.ReleaseLock(repo, "next"))
}

func TestSessionLifecycle_ValidationFailureReturnsToSelection(t *testing.T) {
	tr, _ := corruptedFixture(t)
	repo := tr.open()

	ctx := context.Background()
	cfg := config.Default()

	orch, err := Begin(ctx, repo, cfg, "truncated config", []string{"config.json"}, nil, testLogger())
	require.NoError(t, err)

	_, err = orch.Mine(ctx, nil)
	require.NoError(t, err)

	_, ranking, err := orch.Rank(ctx)
	require.NoError(t, err)

	// Deliberately select the truncated version; validation rejects it.
	var corrupt string

	for _, ranked := range ranking["config.json"] {
		if ranked.Candidate.CommitIDHex != ranking["config.json"][0].Candidate.CommitIDHex {
			corrupt = ranked.Candidate.CommitIDHex
		}
	}

	require.NotEmpty(t, corrupt)

	_, err = orch.Recover(ctx, map[string]string{"config.json": corrupt})
	require.NoError(t, err)

	outcome, err := orch.Validate(ctx)
	require.NoError(t, err)
	assert.False(t, outcome.Passed)
	assert.Equal(t, session.StateAwaitingSelection, orch.Session().State)

	// The failure is recorded against the candidate's persisted score.
	reloaded, err := orch.LoadRanking()
	require.NoError(t, err)

	var penalized bool

	for _, ranked := range reloaded["config.json"] {
		if ranked.Candidate.CommitIDHex != corrupt {
			continue
		}

		for _, component := range ranked.Score.Components {
			if component.Delta == cfg.Weights.ValidationFailure {
				penalized = true
			}
		}
	}

	assert.True(t, penalized)

	require.NoError(t, orch.Abort(ctx, "test cleanup"))
}

var errBoom = errors.New("boom")

func TestGuard_RefusesForeignBranch(t *testing.T) {
	tr, _ := corruptedFixture(t)
	repo := tr.open()

	ctx := context.Background()

	orch, err := Begin(ctx, repo, config.Default(), "guard check", []string{"config.json"}, nil, testLogger())
	require.NoError(t, err)

	defer func() { _ = orch.Abort(ctx, "test cleanup") }()

	// Step off the emergency branch behind the guard's back.
	branch, err := repo.CurrentBranch()
	require.NoError(t, err)
	require.Equal(t, orch.Session().EmergencyBranch, branch)

	head, err := repo.Head()
	require.NoError(t, err)
	require.NoError(t, repo.CreateBranch(ctx, "unrelated", head, false))
	require.NoError(t, repo.CheckoutBranch("unrelated"))

	guard := session.NewGuard(repo, orch.Session(), testLogger())
	err = guard.WithMutation(ctx, "write", func() error { return errBoom })
	require.ErrorIs(t, err, session.ErrBranchConsistency)
}
