package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gitforensics/salvage/pkg/gitlib"
)

// LockRefName is the repository ref holding the active session lock record.
// Keeping it inside the repository, not a side file, means the
// single-session invariant survives process restarts and crashes.
const LockRefName = "refs/salvage/lock"

// ErrSessionActive means another session holds the lock.
var ErrSessionActive = errors.New("another recovery session is active")

// LockRecord identifies the active session and its emergency branch.
type LockRecord struct {
	SessionID       string    `json:"session_id"`
	EmergencyBranch string    `json:"emergency_branch"`
	AcquiredAt      time.Time `json:"acquired_at"`
}

// AcquireLock writes the lock record as a blob and creates the lock ref with
// a compare-and-swap: creation fails if the ref already exists, so two
// sessions can never both hold it.
func AcquireLock(repo *gitlib.Repository, record LockRecord) error {
	existing, err := ReadLock(repo)
	if err == nil {
		return fmt.Errorf("%w: session %s on branch %s since %s",
			ErrSessionActive, existing.SessionID, existing.EmergencyBranch,
			existing.AcquiredAt.Format(time.RFC3339))
	}

	if !errors.Is(err, gitlib.ErrObjectNotFound) {
		return err
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal lock record: %w", err)
	}

	blobID, err := repo.CreateBlob(data)
	if err != nil {
		return err
	}

	err = repo.CreateRef(LockRefName, blobID, false, "salvage: acquire session lock")
	if err != nil {
		// Lost the race: someone created the ref between our read and write.
		return fmt.Errorf("%w: %w", ErrSessionActive, err)
	}

	return nil
}

// ReadLock returns the current lock record, or gitlib.ErrObjectNotFound
// (wrapped) when no session is active.
func ReadLock(repo *gitlib.Repository) (LockRecord, error) {
	blobID, err := repo.RefTarget(LockRefName)
	if err != nil {
		return LockRecord{}, err
	}

	blob, err := repo.LookupBlob(context.Background(), blobID)
	if err != nil {
		return LockRecord{}, err
	}
	defer blob.Free()

	var record LockRecord

	err = json.Unmarshal(blob.Contents(), &record)
	if err != nil {
		return LockRecord{}, fmt.Errorf("decode lock record: %w", err)
	}

	return record, nil
}

// ReleaseLock removes the lock ref. Only the owning session may release;
// a mismatched session id is a hard error.
func ReleaseLock(repo *gitlib.Repository, sessionID string) error {
	record, err := ReadLock(repo)
	if err != nil {
		if errors.Is(err, gitlib.ErrObjectNotFound) {
			return nil
		}

		return err
	}

	if record.SessionID != sessionID {
		return fmt.Errorf("%w: lock held by session %s", ErrSessionActive, record.SessionID)
	}

	return repo.DeleteRef(LockRefName)
}
