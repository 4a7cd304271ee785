// Package audit implements the append-only, hash-chained session ledger.
// Each entry's hash incorporates the previous entry's hash, so mutating any
// persisted byte breaks verification of everything after it. The chain is
// verified on read, not merely written.
package audit

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Kind classifies a ledger entry.
type Kind string

// Entry kinds.
const (
	KindAction   Kind = "ACTION"
	KindDecision Kind = "DECISION"
	KindResult   Kind = "RESULT"
	KindGitState Kind = "GIT_STATE"
	KindWarning  Kind = "WARNING"
	KindCritical Kind = "CRITICAL"
)

// GenesisHash seeds the chain before any entry exists.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// ErrIntegrityViolation means the persisted chain does not verify. The
// ledger is untrustworthy and the session must be re-derived from
// repository state alone.
var ErrIntegrityViolation = errors.New("audit ledger integrity violation")

// Entry is one link of the chain.
type Entry struct {
	Timestamp time.Time       `json:"timestamp"`
	SessionID string          `json:"session_id"`
	Kind      Kind            `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	PrevHash  string          `json:"prev_hash"`
	EntryHash string          `json:"entry_hash"`
}

// envelope is the canonical byte form covered by the chain hash: every
// persisted field except the hashes themselves. Mutating any of timestamp,
// session id, kind, or payload therefore breaks verification, not just
// payload bytes.
type envelope struct {
	Timestamp time.Time       `json:"timestamp"`
	SessionID string          `json:"session_id"`
	Kind      Kind            `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
}

func (e Entry) canonical() ([]byte, error) {
	raw, err := json.Marshal(envelope{
		Timestamp: e.Timestamp,
		SessionID: e.SessionID,
		Kind:      e.Kind,
		Payload:   e.Payload,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal audit envelope: %w", err)
	}

	return raw, nil
}

// chainHash computes H(prevHash || canonical entry bytes).
func chainHash(prevHash string, canonical []byte) string {
	hasher := sha256.New()
	hasher.Write([]byte(prevHash))
	hasher.Write(canonical)

	return hex.EncodeToString(hasher.Sum(nil))
}

// Ledger appends hash-chained entries to an NDJSON file.
type Ledger struct {
	path      string
	sessionID string
	lastHash  string
	now       func() time.Time
}

// Open creates or resumes the ledger at path. Resuming verifies the whole
// existing chain first; a ledger that does not verify is never appended to.
func Open(path, sessionID string) (*Ledger, error) {
	ledger := &Ledger{
		path:      path,
		sessionID: sessionID,
		lastHash:  GenesisHash,
		now:       time.Now,
	}

	entries, err := ReadAll(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			mkdirErr := os.MkdirAll(filepath.Dir(path), 0o755)
			if mkdirErr != nil {
				return nil, fmt.Errorf("create ledger dir: %w", mkdirErr)
			}

			return ledger, nil
		}

		return nil, err
	}

	err = VerifyEntries(entries)
	if err != nil {
		return nil, err
	}

	if len(entries) > 0 {
		ledger.lastHash = entries[len(entries)-1].EntryHash
	}

	return ledger, nil
}

// Append writes one entry and fsyncs it. The envelope is marshalled once and
// hashed exactly as it will re-marshal on read, so verification replays the
// same bytes.
func (l *Ledger) Append(kind Kind, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	entry := Entry{
		Timestamp: l.now().UTC(),
		SessionID: l.sessionID,
		Kind:      kind,
		Payload:   raw,
		PrevHash:  l.lastHash,
	}

	canonical, err := entry.canonical()
	if err != nil {
		return err
	}

	entry.EntryHash = chainHash(l.lastHash, canonical)

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}

	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer file.Close()

	_, err = file.Write(append(line, '\n'))
	if err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}

	err = file.Sync()
	if err != nil {
		return fmt.Errorf("sync ledger: %w", err)
	}

	l.lastHash = entry.EntryHash

	return nil
}

// LastHash returns the hash of the most recent entry.
func (l *Ledger) LastHash() string {
	return l.lastHash
}

// Path returns the ledger file location.
func (l *Ledger) Path() string {
	return l.path
}

// ReadAll loads every entry from an NDJSON ledger file without verifying.
func ReadAll(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer file.Close()

	var entries []Entry

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var entry Entry

		unmarshalErr := json.Unmarshal(line, &entry)
		if unmarshalErr != nil {
			return nil, fmt.Errorf("%w: undecodable entry %d: %w", ErrIntegrityViolation, len(entries), unmarshalErr)
		}

		entries = append(entries, entry)
	}

	scanErr := scanner.Err()
	if scanErr != nil {
		return nil, fmt.Errorf("read ledger: %w", scanErr)
	}

	return entries, nil
}

// VerifyEntries replays the hash chain over in-memory entries.
func VerifyEntries(entries []Entry) error {
	prev := GenesisHash

	for i, entry := range entries {
		if entry.PrevHash != prev {
			return fmt.Errorf("%w: entry %d prev_hash mismatch", ErrIntegrityViolation, i)
		}

		canonical, err := entry.canonical()
		if err != nil {
			return fmt.Errorf("%w: entry %d: %w", ErrIntegrityViolation, i, err)
		}

		want := chainHash(prev, canonical)
		if entry.EntryHash != want {
			return fmt.Errorf("%w: entry %d hash mismatch", ErrIntegrityViolation, i)
		}

		prev = entry.EntryHash
	}

	return nil
}

// Verify loads and verifies the whole chain at path.
func Verify(path string) error {
	entries, err := ReadAll(path)
	if err != nil {
		return err
	}

	return VerifyEntries(entries)
}
