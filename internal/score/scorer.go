// Package score ranks recovery candidates deterministically. Scoring is a
// pure function of candidate, analysis, and the dependency snapshot captured
// at session baseline: no wall clock, no randomness. Recency contributes a
// small bounded term; structural compatibility dominates, so a compatible
// old copy outranks a fresher incompatible one.
package score

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/gitforensics/salvage/internal/analyze"
	"github.com/gitforensics/salvage/internal/mine"
	"github.com/gitforensics/salvage/pkg/config"
)

const hoursPerDay = 24

// DependencySnapshot is the current codebase's declared dependency set,
// captured once at session baseline or supplied by the operator. It is never
// re-derived mid-session: the corrupted working tree is not a trustworthy
// source to guess from.
type DependencySnapshot struct {
	// Required maps each target path to the identifiers or key paths the
	// rest of the codebase depends on in that file, in signature notation
	// ("import:fmt", "server.port"). Scoping per path keeps one target's
	// symbols from being demanded of another target's candidates.
	Required map[string][]string `json:"required" yaml:"required"`
	// CapturedAt anchors the recency term.
	CapturedAt time.Time `json:"captured_at" yaml:"captured_at"`
}

// ForPath returns the required entries for one target path.
func (s DependencySnapshot) ForPath(path string) []string {
	return s.Required[path]
}

// Component is one explainable piece of a score.
type Component struct {
	Reason string `json:"reason"`
	Delta  int    `json:"delta"`
}

// Score is a candidate's total value plus its breakdown, retained for audit.
type Score struct {
	Value      int         `json:"value"`
	Components []Component `json:"components"`
}

// Ranked pairs a candidate with its score.
type Ranked struct {
	Candidate mine.Candidate `json:"candidate"`
	Score     Score          `json:"score"`
}

// Scorer applies the configured weight table.
type Scorer struct {
	weights config.WeightConfig
}

// NewScorer creates a scorer with the given weight table.
func NewScorer(weights config.WeightConfig) *Scorer {
	return &Scorer{weights: weights}
}

// Score evaluates a single candidate. complete reports whether every target
// path of the session is present in the candidate's commit, rewarding
// coherent snapshots over cherry-picked files.
func (s *Scorer) Score(candidate mine.Candidate, analysis analyze.Result, snap DependencySnapshot, complete bool) Score {
	var result Score

	result.add(s.syntaxComponent(analysis))

	required := snap.ForPath(candidate.Path)
	if analysis.HasSignature() && len(required) > 0 {
		hits, misses := matchSignature(analysis.Signature, required)
		result.add(Component{
			Reason: fmt.Sprintf("dependency compatibility: %d of %d required symbols present", hits, len(required)),
			Delta:  hits*s.weights.SignatureHit + misses*s.weights.SignatureMiss,
		})
	}

	result.add(s.provenanceComponent(candidate.Origin))

	if complete {
		result.add(Component{Reason: "all target paths present in same commit", Delta: s.weights.Completeness})
	}

	result.add(s.recencyComponent(candidate.CommitTime, snap.CapturedAt))

	return result
}

// PenalizeValidationFailure attaches a validation failure to a score's
// history. Called by the orchestrator when a recovered candidate fails
// validation; the failure is surfaced, never silently discarded.
func (s *Scorer) PenalizeValidationFailure(score Score, reason string) Score {
	score.add(Component{
		Reason: "validation failure: " + reason,
		Delta:  s.weights.ValidationFailure,
	})

	return score
}

// Rank scores every candidate in the set and returns a total order per path:
// by value descending, newest commit first on ties, then by commit id for a
// stable final tiebreak.
func (s *Scorer) Rank(set *mine.Set, snap DependencySnapshot, targets []string) (paths []string, ranking map[string][]Ranked) {
	completeCommits := completeCommitSet(set, targets)

	paths, groups := set.ByPath()
	ranking = make(map[string][]Ranked, len(groups))

	for _, path := range paths {
		ranked := make([]Ranked, 0, len(groups[path]))

		for _, candidate := range groups[path] {
			analysis := analyze.Result{SyntaxValid: analyze.SyntaxUnknown}
			if candidate.Analysis != nil {
				analysis = *candidate.Analysis
			}

			ranked = append(ranked, Ranked{
				Candidate: candidate,
				Score:     s.Score(candidate, analysis, snap, completeCommits[candidate.CommitIDHex]),
			})
		}

		SortRanked(ranked)

		ranking[path] = ranked
	}

	return paths, ranking
}

// SortRanked applies the canonical total order in place: value descending,
// newest commit first on ties, commit id as the final stable tiebreak.
func SortRanked(ranked []Ranked) {
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score.Value != ranked[j].Score.Value {
			return ranked[i].Score.Value > ranked[j].Score.Value
		}

		if !ranked[i].Candidate.CommitTime.Equal(ranked[j].Candidate.CommitTime) {
			return ranked[i].Candidate.CommitTime.After(ranked[j].Candidate.CommitTime)
		}

		return ranked[i].Candidate.CommitIDHex < ranked[j].Candidate.CommitIDHex
	})
}

func (sc *Score) add(component Component) {
	if component.Reason == "" {
		return
	}

	sc.Value += component.Delta
	sc.Components = append(sc.Components, component)
}

func (s *Scorer) syntaxComponent(analysis analyze.Result) Component {
	switch analysis.SyntaxValid {
	case analyze.SyntaxValid:
		return Component{Reason: "syntax valid", Delta: s.weights.SyntaxValid}
	case analyze.SyntaxInvalid:
		return Component{Reason: "syntax invalid", Delta: s.weights.SyntaxInvalid}
	default:
		return Component{Reason: "syntax unknown (no grammar for format)", Delta: 0}
	}
}

func (s *Scorer) provenanceComponent(origin mine.Origin) Component {
	switch origin {
	case mine.OriginRemoteBranch:
		// Remote-hosted history carries higher credibility than anything
		// that only ever lived in this working copy.
		return Component{Reason: "remote provenance", Delta: s.weights.RemoteProvenance}
	case mine.OriginReflog:
		return Component{Reason: "reflog provenance", Delta: s.weights.ReflogProvenance}
	case mine.OriginOrphan:
		return Component{Reason: "orphan provenance", Delta: s.weights.OrphanProvenance}
	default:
		return Component{Reason: "local branch provenance", Delta: 0}
	}
}

// recencyComponent decays from RecencyMax with the configured halflife.
// Age is measured against the snapshot capture time, not the wall clock, so
// rescoring is reproducible.
func (s *Scorer) recencyComponent(commitTime, capturedAt time.Time) Component {
	if commitTime.IsZero() || capturedAt.IsZero() {
		return Component{Reason: "recency unknown", Delta: 0}
	}

	ageDays := capturedAt.Sub(commitTime).Hours() / hoursPerDay
	if ageDays < 0 {
		ageDays = 0
	}

	// Config validation rejects a non-positive halflife, but the scorer
	// stays total for directly constructed weight tables.
	halflife := float64(s.weights.RecencyHalflife)
	if halflife <= 0 {
		halflife = float64(config.DefaultRecencyHalflifeDays)
	}

	delta := int(math.Round(float64(s.weights.RecencyMax) * math.Exp2(-ageDays/halflife)))

	return Component{
		Reason: fmt.Sprintf("recency: commit age %.0f days", ageDays),
		Delta:  delta,
	}
}

// matchSignature counts required entries present in and absent from the
// candidate signature.
func matchSignature(signature, required []string) (hits, misses int) {
	present := make(map[string]bool, len(signature))
	for _, entry := range signature {
		present[entry] = true
	}

	for _, want := range required {
		if present[want] {
			hits++
		} else {
			misses++
		}
	}

	return hits, misses
}

// completeCommitSet finds commits that carry every target path.
func completeCommitSet(set *mine.Set, targets []string) map[string]bool {
	pathsPerCommit := make(map[string]map[string]bool)

	for _, candidate := range set.All() {
		if pathsPerCommit[candidate.CommitIDHex] == nil {
			pathsPerCommit[candidate.CommitIDHex] = make(map[string]bool)
		}

		pathsPerCommit[candidate.CommitIDHex][candidate.Path] = true
	}

	complete := make(map[string]bool, len(pathsPerCommit))

	for commit, paths := range pathsPerCommit {
		complete[commit] = len(paths) == len(targets)
	}

	return complete
}
