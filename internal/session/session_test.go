package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var startedAt = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

func TestNew_DerivesBranchName(t *testing.T) {
	t.Parallel()

	sess := New("salvage/recovery", "Corrupted config.json after rebase!", []string{"config.json"}, startedAt)

	assert.Equal(t, "salvage/recovery-20260301-093000-corrupted-config-json-after-rebase", sess.EmergencyBranch)
	assert.Equal(t, StateInit, sess.State)
	assert.NotEmpty(t, sess.SessionID)
	assert.Equal(t, []string{"config.json"}, sess.Targets)
}

func TestNew_EmptySymptom(t *testing.T) {
	t.Parallel()

	sess := New("salvage/recovery", "", nil, startedAt)

	assert.Contains(t, sess.EmergencyBranch, "unspecified")
}

func TestNew_LongSymptomTruncated(t *testing.T) {
	t.Parallel()

	long := "the quick brown fox jumps over the lazy dog repeatedly and then some more"
	sess := New("salvage/recovery", long, nil, startedAt)

	// prefix + timestamp + at most 40 slug chars.
	assert.LessOrEqual(t, len(sess.EmergencyBranch), len("salvage/recovery-20260301-093000-")+41)
}

func TestNew_UniqueSessionIDs(t *testing.T) {
	t.Parallel()

	a := New("p", "x", nil, startedAt)
	b := New("p", "x", nil, startedAt)

	assert.NotEqual(t, a.SessionID, b.SessionID)
}

func TestState_Terminal(t *testing.T) {
	t.Parallel()

	assert.True(t, StateDocumented.Terminal())
	assert.True(t, StateAborted.Terminal())
	assert.False(t, StateInit.Terminal())
	assert.False(t, StateSurgicalRecovery.Terminal())
}

func TestSession_Checkpoints(t *testing.T) {
	t.Parallel()

	sess := New("p", "x", nil, startedAt)

	_, ok := sess.LastCheckpoint()
	assert.False(t, ok)

	sess.AddCheckpoint("baseline", "1111111111111111111111111111111111111111", startedAt)
	sess.AddCheckpoint("recovered config.json", "2222222222222222222222222222222222222222", startedAt.Add(time.Minute))

	last, ok := sess.LastCheckpoint()
	require.True(t, ok)
	assert.Equal(t, "recovered config.json", last.Label)
	assert.Len(t, sess.Checkpoints, 2)
}

func TestSession_SaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	sess := New("salvage/recovery", "lost config", []string{"config.json", "app.yaml"}, startedAt)
	sess.State = StateConsolidation
	sess.AddCheckpoint("baseline", "1111111111111111111111111111111111111111", startedAt)

	require.NoError(t, sess.Save(root))

	restored, err := Load(root, sess.SessionID)
	require.NoError(t, err)

	assert.Equal(t, sess.SessionID, restored.SessionID)
	assert.Equal(t, sess.EmergencyBranch, restored.EmergencyBranch)
	assert.Equal(t, StateConsolidation, restored.State)
	assert.Equal(t, sess.Targets, restored.Targets)
	require.Len(t, restored.Checkpoints, 1)
	assert.Equal(t, "baseline", restored.Checkpoints[0].Label)
}

func TestLoad_Missing(t *testing.T) {
	t.Parallel()

	_, err := Load(t.TempDir(), "nope")
	require.ErrorIs(t, err, ErrNoSession)
}
