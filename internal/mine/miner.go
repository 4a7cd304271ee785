package mine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gitforensics/salvage/pkg/config"
	"github.com/gitforensics/salvage/pkg/gitlib"
)

// Result is everything one mining run produced.
type Result struct {
	Candidates *Set
	// Warnings lists non-fatal degradations, mirrored into the audit ledger
	// by the orchestrator.
	Warnings []Warning
	// RemotesFetched names the remotes whose fetch succeeded.
	RemotesFetched []string
}

// Miner produces the exhaustive candidate set for a set of target paths.
type Miner struct {
	repo   *gitlib.Repository
	cfg    config.MiningConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewMiner creates a miner over an open repository.
func NewMiner(repo *gitlib.Repository, cfg config.MiningConfig, logger *slog.Logger) *Miner {
	return &Miner{repo: repo, cfg: cfg, logger: logger, now: time.Now}
}

// Mine enumerates candidates for the target paths from every source:
// local branch ancestry, reflogs, the unreachable-object sweep, and remote
// branches. Sources run in a fixed order and each source iterates its
// commits deterministically, so an unchanged repository yields an identical
// candidate multiset on every run.
func (m *Miner) Mine(ctx context.Context, targets []string, remotes []string) (*Result, error) {
	if len(targets) == 0 {
		return nil, errors.New("no target paths given")
	}

	result := &Result{Candidates: NewSet()}
	visited := make(map[gitlib.Hash]bool)

	err := m.mineLocalBranches(ctx, targets, result, visited)
	if err != nil {
		return nil, err
	}

	err = m.mineReflogs(ctx, targets, result, visited)
	if err != nil {
		return nil, err
	}

	err = m.mineOrphans(ctx, targets, result, visited)
	if err != nil {
		return nil, err
	}

	err = m.mineRemotes(ctx, targets, remotes, result, visited)
	if err != nil {
		return nil, err
	}

	m.logger.InfoContext(ctx, "mining complete",
		"candidates", result.Candidates.Len(),
		"warnings", len(result.Warnings),
		"remotes_fetched", len(result.RemotesFetched),
	)

	return result, nil
}

func (m *Miner) mineLocalBranches(ctx context.Context, targets []string, result *Result, visited map[gitlib.Hash]bool) error {
	branches, err := m.repo.LocalBranches()
	if err != nil {
		return fmt.Errorf("enumerate local branches: %w", err)
	}

	for _, branch := range branches {
		walkErr := m.walkAncestry(ctx, branch.Target, func(commit *gitlib.Commit) {
			visited[commit.Hash()] = true
			m.emitCandidates(ctx, commit, targets, OriginLocalBranch, branch.Name, result)
		})
		if walkErr != nil {
			return fmt.Errorf("walk branch %s: %w", branch.Name, walkErr)
		}
	}

	return nil
}

func (m *Miner) mineReflogs(ctx context.Context, targets []string, result *Result, visited map[gitlib.Hash]bool) error {
	refs, err := m.repo.ListRefs()
	if err != nil {
		return fmt.Errorf("list refs: %w", err)
	}

	refNames := make([]string, 0, len(refs)+1)
	refNames = append(refNames, "HEAD")

	for _, ref := range refs {
		refNames = append(refNames, ref.Name)
	}

	for _, refName := range refNames {
		entries, reflogErr := m.repo.ReadReflog(refName)
		if reflogErr != nil {
			return fmt.Errorf("reflog %s: %w", refName, reflogErr)
		}

		for _, entry := range entries {
			for _, hash := range []gitlib.Hash{entry.New, entry.Old} {
				if hash.IsZero() || visited[hash] {
					continue
				}

				visited[hash] = true

				commit, lookupErr := m.repo.LookupCommit(ctx, hash)
				if lookupErr != nil {
					// Reflogs routinely reference pruned objects.
					if errors.Is(lookupErr, gitlib.ErrObjectNotFound) {
						continue
					}

					return lookupErr
				}

				// Reachable only through the reflog: this commit survives no
				// branch tip, so it is tagged by its reflog provenance.
				m.emitCandidates(ctx, commit, targets, OriginReflog, refName, result)
				commit.Free()
			}
		}
	}

	return nil
}

func (m *Miner) mineOrphans(ctx context.Context, targets []string, result *Result, visited map[gitlib.Hash]bool) error {
	all, err := m.repo.AllCommits()
	if err != nil {
		return err
	}

	for _, hash := range all {
		if visited[hash] {
			continue
		}

		visited[hash] = true

		commit, lookupErr := m.repo.LookupCommit(ctx, hash)
		if lookupErr != nil {
			if errors.Is(lookupErr, gitlib.ErrObjectNotFound) {
				continue
			}

			return lookupErr
		}

		m.emitCandidates(ctx, commit, targets, OriginOrphan, "unreachable", result)
		commit.Free()
	}

	return nil
}

func (m *Miner) mineRemotes(ctx context.Context, targets, remotes []string, result *Result, visited map[gitlib.Hash]bool) error {
	if len(remotes) == 0 {
		var err error

		remotes, err = m.repo.ListRemotes()
		if err != nil {
			return fmt.Errorf("list remotes: %w", err)
		}
	}

	if len(remotes) == 0 {
		return nil
	}

	fetched, warnings := m.fetchAll(ctx, remotes)
	result.RemotesFetched = fetched
	result.Warnings = append(result.Warnings, warnings...)

	branches, err := m.repo.RemoteBranches()
	if err != nil {
		return fmt.Errorf("enumerate remote branches: %w", err)
	}

	for _, branch := range branches {
		// Remote branch names look like "origin/release"; only mine branches
		// of remotes that were asked for.
		remoteName, _, found := strings.Cut(branch.Name, "/")
		if !found || !containsString(remotes, remoteName) {
			continue
		}

		walkErr := m.walkAncestry(ctx, branch.Target, func(commit *gitlib.Commit) {
			if visited[commit.Hash()] {
				// Already emitted under a more local provenance; remote
				// copies of the same commit add nothing.
				return
			}

			visited[commit.Hash()] = true
			m.emitCandidates(ctx, commit, targets, OriginRemoteBranch, branch.Name, result)
		})
		if walkErr != nil {
			return fmt.Errorf("walk remote branch %s: %w", branch.Name, walkErr)
		}
	}

	return nil
}

// walkAncestry visits commits reachable from tip in stable order, bounded by
// the configured horizon (0 = unlimited).
func (m *Miner) walkAncestry(_ context.Context, tip gitlib.Hash, visit func(*gitlib.Commit)) error {
	walk, err := m.repo.Walk()
	if err != nil {
		return err
	}
	defer walk.Free()

	walk.SortStable()

	err = walk.Push(tip)
	if err != nil {
		return err
	}

	count := 0

	return walk.Iterate(func(commit *gitlib.Commit) bool {
		visit(commit)

		count++

		return m.cfg.Horizon == 0 || count < m.cfg.Horizon
	})
}

// emitCandidates checks each target path at the commit and records a
// candidate for every hit. Lookup failures drop the individual candidate,
// never the run.
func (m *Miner) emitCandidates(ctx context.Context, commit *gitlib.Commit, targets []string, origin Origin, source string, result *Result) {
	tree, err := commit.Tree()
	if err != nil {
		m.logger.WarnContext(ctx, "unreadable commit tree, dropping candidates",
			"commit", commit.Hash().Short(), "err", err)

		return
	}
	defer tree.Free()

	for _, target := range targets {
		blob, blobErr := tree.BlobAtPath(ctx, target)
		if blobErr != nil {
			if errors.Is(blobErr, gitlib.ErrPathNotInTree) || errors.Is(blobErr, gitlib.ErrObjectNotFound) {
				continue
			}

			m.logger.WarnContext(ctx, "blob lookup failed, dropping candidate",
				"commit", commit.Hash().Short(), "path", target, "err", blobErr)

			continue
		}

		candidate := Candidate{
			Origin:       origin,
			Source:       source,
			CommitID:     commit.Hash(),
			CommitIDHex:  commit.Hash().String(),
			Path:         target,
			ContentHash:  blob.ContentHash(),
			CommitTime:   commit.When(),
			DiscoveredAt: m.now(),
		}
		candidate.ContentHashHex = candidate.ContentHash.String()

		blob.Free()

		result.Candidates.Add(candidate)
	}
}

func containsString(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}

	return false
}
