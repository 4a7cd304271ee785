// Package mine enumerates every surviving copy of a set of target paths
// across local branches, reflogs, unreachable objects, and remotes. Mining
// is strictly read-only: it never creates, deletes, or modifies a ref,
// reflog entry, or object.
package mine

import (
	"sort"
	"time"

	"github.com/gitforensics/salvage/internal/analyze"
	"github.com/gitforensics/salvage/pkg/gitlib"
)

// Origin classifies where a candidate was found.
type Origin string

// Candidate origins, ordered from most to least conventional.
const (
	OriginLocalBranch  Origin = "local-branch"
	OriginRemoteBranch Origin = "remote-branch"
	OriginReflog       Origin = "reflog-entry"
	OriginOrphan       Origin = "orphan-commit"
)

// Candidate is a possible recovery source for a single path at a single
// commit. Created during mining, enriched with Analysis during the analysis
// phase, immutable after scoring.
type Candidate struct {
	// Origin classifies the source.
	Origin Origin `json:"origin"`
	// Source names the branch, ref, or remote the candidate came from.
	Source string `json:"source"`
	// CommitID is the commit containing the path.
	CommitID gitlib.Hash `json:"-"`
	// CommitIDHex is the hex form, for persistence.
	CommitIDHex string `json:"commit_id"`
	// Path is the target path within the commit tree.
	Path string `json:"path"`
	// ContentHash is recomputed from the blob bytes, never read from
	// metadata.
	ContentHash gitlib.Hash `json:"-"`
	// ContentHashHex is the hex form, for persistence.
	ContentHashHex string `json:"content_hash"`
	// CommitTime is the committer timestamp, used for the bounded recency
	// scoring term.
	CommitTime time.Time `json:"commit_time"`
	// DiscoveredAt records when mining found this candidate.
	DiscoveredAt time.Time `json:"discovered_at"`
	// Analysis is attached during the analysis phase.
	Analysis *analyze.Result `json:"analysis,omitempty"`
}

// Key identifies a candidate for deduplication: same content at the same
// path is the same candidate regardless of how many commits carry it.
func (c Candidate) Key() string {
	return c.Path + "\x00" + c.ContentHash.String()
}

// Warning records a non-fatal mining degradation, such as a remote that
// failed every fetch attempt.
type Warning struct {
	Remote string `json:"remote,omitempty"`
	Reason string `json:"reason"`
}

// Set accumulates candidates with first-discovery deduplication.
type Set struct {
	byKey map[string]int
	all   []Candidate
}

// NewSet returns an empty candidate set.
func NewSet() *Set {
	return &Set{byKey: make(map[string]int)}
}

// Add inserts a candidate unless equivalent content at the same path was
// already discovered; the earliest provenance wins for traceability.
// Reports whether the candidate was kept.
func (s *Set) Add(candidate Candidate) bool {
	key := candidate.Key()
	if _, seen := s.byKey[key]; seen {
		return false
	}

	s.byKey[key] = len(s.all)
	s.all = append(s.all, candidate)

	return true
}

// Len returns the number of distinct candidates.
func (s *Set) Len() int {
	return len(s.all)
}

// All returns the candidates in discovery order.
func (s *Set) All() []Candidate {
	return s.all
}

// MissingTargets returns the target paths for which the set holds no
// candidate, in the given order.
func (s *Set) MissingTargets(targets []string) []string {
	present := make(map[string]bool, len(s.all))
	for _, candidate := range s.all {
		present[candidate.Path] = true
	}

	var missing []string

	for _, target := range targets {
		if !present[target] {
			missing = append(missing, target)
		}
	}

	return missing
}

// ByPath groups candidates per target path, preserving discovery order
// within each group and returning paths sorted.
func (s *Set) ByPath() (paths []string, groups map[string][]Candidate) {
	groups = make(map[string][]Candidate)

	for _, candidate := range s.all {
		groups[candidate.Path] = append(groups[candidate.Path], candidate)
	}

	paths = make([]string, 0, len(groups))
	for path := range groups {
		paths = append(paths, path)
	}

	sort.Strings(paths)

	return paths, groups
}
