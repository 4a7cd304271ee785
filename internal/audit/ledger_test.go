package audit

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempLedger(t *testing.T) *Ledger {
	t.Helper()

	path := filepath.Join(t.TempDir(), "ledger.ndjson")

	ledger, err := Open(path, "session-1")
	require.NoError(t, err)

	return ledger
}

func TestLedger_AppendAndVerify(t *testing.T) {
	t.Parallel()

	ledger := tempLedger(t)

	require.NoError(t, ledger.Append(KindAction, map[string]string{"op": "checkout", "branch": "salvage/recovery-x"}))
	require.NoError(t, ledger.Append(KindDecision, map[string]string{"selected": "c2"}))
	require.NoError(t, ledger.Append(KindResult, map[string]string{"outcome": "recovered"}))

	require.NoError(t, Verify(ledger.Path()))

	entries, err := ReadAll(ledger.Path())
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, GenesisHash, entries[0].PrevHash)
	assert.Equal(t, entries[0].EntryHash, entries[1].PrevHash)
	assert.Equal(t, entries[1].EntryHash, entries[2].PrevHash)
	assert.Equal(t, "session-1", entries[0].SessionID)
}

func TestLedger_TamperDetected(t *testing.T) {
	t.Parallel()

	ledger := tempLedger(t)
	require.NoError(t, ledger.Append(KindAction, map[string]string{"op": "mine"}))
	require.NoError(t, ledger.Append(KindResult, map[string]string{"candidates": "17"}))

	raw, err := os.ReadFile(ledger.Path())
	require.NoError(t, err)

	// Mutate one payload byte.
	tampered := bytes.Replace(raw, []byte(`"candidates":"17"`), []byte(`"candidates":"99"`), 1)
	require.NotEqual(t, raw, tampered)
	require.NoError(t, os.WriteFile(ledger.Path(), tampered, 0o644))

	err = Verify(ledger.Path())
	require.ErrorIs(t, err, ErrIntegrityViolation)
}

func TestLedger_TamperedKindDetected(t *testing.T) {
	t.Parallel()

	ledger := tempLedger(t)
	require.NoError(t, ledger.Append(KindCritical, map[string]string{"op": "abort"}))

	raw, err := os.ReadFile(ledger.Path())
	require.NoError(t, err)

	// Downgrading a CRITICAL entry must break the chain even though the
	// payload bytes are untouched.
	tampered := bytes.Replace(raw, []byte(`"kind":"CRITICAL"`), []byte(`"kind":"RESULT"`), 1)
	require.NotEqual(t, raw, tampered)
	require.NoError(t, os.WriteFile(ledger.Path(), tampered, 0o644))

	err = Verify(ledger.Path())
	require.ErrorIs(t, err, ErrIntegrityViolation)
}

func TestLedger_TamperedSessionIDDetected(t *testing.T) {
	t.Parallel()

	ledger := tempLedger(t)
	require.NoError(t, ledger.Append(KindAction, map[string]string{"op": "mine"}))

	raw, err := os.ReadFile(ledger.Path())
	require.NoError(t, err)

	tampered := bytes.Replace(raw, []byte(`"session_id":"session-1"`), []byte(`"session_id":"session-2"`), 1)
	require.NotEqual(t, raw, tampered)
	require.NoError(t, os.WriteFile(ledger.Path(), tampered, 0o644))

	err = Verify(ledger.Path())
	require.ErrorIs(t, err, ErrIntegrityViolation)
}

func TestLedger_TamperedTimestampDetected(t *testing.T) {
	t.Parallel()

	ledger := tempLedger(t)
	require.NoError(t, ledger.Append(KindAction, map[string]string{"op": "mine"}))

	entries, err := ReadAll(ledger.Path())
	require.NoError(t, err)
	require.Len(t, entries, 1)

	raw, err := os.ReadFile(ledger.Path())
	require.NoError(t, err)

	original, err := entries[0].Timestamp.MarshalJSON()
	require.NoError(t, err)

	shifted, err := entries[0].Timestamp.Add(time.Hour).MarshalJSON()
	require.NoError(t, err)

	tampered := bytes.Replace(raw, original, shifted, 1)
	require.NotEqual(t, raw, tampered)
	require.NoError(t, os.WriteFile(ledger.Path(), tampered, 0o644))

	err = Verify(ledger.Path())
	require.ErrorIs(t, err, ErrIntegrityViolation)
}

func TestLedger_ResumeContinuesChain(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "ledger.ndjson")

	first, err := Open(path, "session-1")
	require.NoError(t, err)
	require.NoError(t, first.Append(KindAction, map[string]string{"op": "baseline"}))

	second, err := Open(path, "session-1")
	require.NoError(t, err)
	assert.Equal(t, first.LastHash(), second.LastHash())

	require.NoError(t, second.Append(KindAction, map[string]string{"op": "mine"}))
	require.NoError(t, Verify(path))
}

func TestLedger_RefusesToResumeTamperedChain(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "ledger.ndjson")

	first, err := Open(path, "session-1")
	require.NoError(t, err)
	require.NoError(t, first.Append(KindAction, map[string]string{"op": "baseline"}))

	raw, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	tampered := bytes.Replace(raw, []byte(`"op":"baseline"`), []byte(`"op":"override"`), 1)
	require.NotEqual(t, raw, tampered)
	require.NoError(t, os.WriteFile(path, tampered, 0o644))

	_, err = Open(path, "session-1")
	require.Error(t, err)
}

func TestVerifyEntries_Empty(t *testing.T) {
	t.Parallel()

	assert.NoError(t, VerifyEntries(nil))
}
