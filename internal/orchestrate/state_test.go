package orchestrate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitforensics/salvage/internal/analyze"
	"github.com/gitforensics/salvage/internal/mine"
	"github.com/gitforensics/salvage/internal/score"
	"github.com/gitforensics/salvage/internal/session"
	"github.com/gitforensics/salvage/pkg/gitlib"
)

func TestCanTransition_HappyPath(t *testing.T) {
	t.Parallel()

	order := []session.State{
		session.StateInit,
		session.StateBaseline,
		session.StateMining,
		session.StateAnalysis,
		session.StateConsolidation,
		session.StateAwaitingSelection,
		session.StateSurgicalRecovery,
		session.StateValidation,
		session.StateDocumented,
	}

	for i := 0; i < len(order)-1; i++ {
		assert.True(t, CanTransition(order[i], order[i+1]),
			"%s -> %s should be legal", order[i], order[i+1])
	}
}

func TestCanTransition_RejectsSkips(t *testing.T) {
	t.Parallel()

	assert.False(t, CanTransition(session.StateInit, session.StateMining))
	assert.False(t, CanTransition(session.StateBaseline, session.StateAnalysis))
	assert.False(t, CanTransition(session.StateMining, session.StateSurgicalRecovery))
	assert.False(t, CanTransition(session.StateAwaitingSelection, session.StateValidation))
	assert.False(t, CanTransition(session.StateDocumented, session.StateInit))
}

func TestCanTransition_FailureReturnsToSelection(t *testing.T) {
	t.Parallel()

	assert.True(t, CanTransition(session.StateValidation, session.StateAwaitingSelection))
	assert.True(t, CanTransition(session.StateSurgicalRecovery, session.StateAwaitingSelection))
}

func TestCanTransition_AbortFromAnyNonTerminal(t *testing.T) {
	t.Parallel()

	for _, state := range []session.State{
		session.StateInit, session.StateBaseline, session.StateMining,
		session.StateAnalysis, session.StateConsolidation,
		session.StateAwaitingSelection, session.StateSurgicalRecovery,
		session.StateValidation,
	} {
		assert.True(t, CanTransition(state, session.StateAborted), "abort from %s", state)
	}

	assert.False(t, CanTransition(session.StateDocumented, session.StateAborted))
	assert.False(t, CanTransition(session.StateAborted, session.StateAborted))
}

func TestTransition_InvalidReturnsSentinel(t *testing.T) {
	t.Parallel()

	sess := session.New("salvage/recovery", "test", []string{"config.json"}, time.Now())

	err := Transition(sess, session.StateValidation)
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, session.StateInit, sess.State, "failed transition must not change state")
}

func TestTransition_AppliesState(t *testing.T) {
	t.Parallel()

	sess := session.New("salvage/recovery", "test", []string{"config.json"}, time.Now())

	require.NoError(t, Transition(sess, session.StateBaseline))
	assert.Equal(t, session.StateBaseline, sess.State)
}

func TestFindSelection(t *testing.T) {
	t.Parallel()

	commitHex := "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	contentHex := "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"

	ranking := map[string][]score.Ranked{
		"config.json": {
			{Candidate: mine.Candidate{
				Path:           "config.json",
				CommitIDHex:    commitHex,
				ContentHashHex: contentHex,
				Origin:         mine.OriginRemoteBranch,
			}},
		},
	}

	candidate, err := findSelection(ranking, "config.json", commitHex)
	require.NoError(t, err)
	assert.Equal(t, gitlib.NewHash(commitHex), candidate.CommitID)
	assert.Equal(t, gitlib.NewHash(contentHex), candidate.ContentHash)

	_, err = findSelection(ranking, "config.json", contentHex)
	require.ErrorIs(t, err, ErrSelectionRequired)

	_, err = findSelection(ranking, "missing.json", commitHex)
	require.ErrorIs(t, err, ErrSelectionRequired)
}

func TestMissingRequired(t *testing.T) {
	t.Parallel()

	result := analyze.Result{
		SyntaxValid: analyze.SyntaxValid,
		Signature:   []string{"server.port", "server.host"},
	}

	assert.Empty(t, missingRequired(result, []string{"server.port"}))
	assert.Equal(t, "database.url", missingRequired(result, []string{"server.port", "database.url"}))

	opaque := analyze.Result{SyntaxValid: analyze.SyntaxUnknown}
	assert.Empty(t, missingRequired(opaque, []string{"server.port"}),
		"formats without signatures cannot fail the symbol check")
}

func TestMissingRequired_ScopedPerTarget(t *testing.T) {
	t.Parallel()

	// Multi-target sessions keep requirements keyed per path. Each
	// recovered file is checked only against its own entry, so one
	// target's symbols can never fail another's validation.
	snapshot := score.DependencySnapshot{Required: map[string][]string{
		"config.json":   {"server.port", "server.host"},
		"database.yaml": {"database.url"},
	}}

	configResult := analyze.Result{
		SyntaxValid: analyze.SyntaxValid,
		Signature:   []string{"server.port", "server.host"},
	}
	dbResult := analyze.Result{
		SyntaxValid: analyze.SyntaxValid,
		Signature:   []string{"database.url"},
	}

	assert.Empty(t, missingRequired(configResult, snapshot.ForPath("config.json")))
	assert.Empty(t, missingRequired(dbResult, snapshot.ForPath("database.yaml")))

	// A path with no recorded requirements imposes none.
	assert.Empty(t, missingRequired(configResult, snapshot.ForPath("unknown.toml")))
}
