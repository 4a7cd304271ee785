package gitlib

import (
	"errors"
	"fmt"
	"time"

	"github.com/gitforensics/salvage/pkg/safeconv"
)

// ReflogEntry is one movement of a reference: where it pointed before and
// after, who moved it and why.
type ReflogEntry struct {
	Ref     string
	Old     Hash
	New     Hash
	Message string
	When    time.Time
}

// ReadReflog returns the reflog entries for a reference, newest first.
// A reference without a reflog yields an empty slice, not an error.
func (r *Repository) ReadReflog(refName string) ([]ReflogEntry, error) {
	reflog, err := r.repo.ReadReflog(refName)
	if err != nil {
		if errors.Is(classifyLookupError(err), ErrObjectNotFound) {
			return nil, nil
		}

		return nil, fmt.Errorf("read reflog %s: %w", refName, err)
	}
	defer reflog.Free()

	count := safeconv.MustUintToInt(reflog.EntryCount())
	entries := make([]ReflogEntry, 0, count)

	for i := range count {
		entry := reflog.EntryByIndex(safeconv.MustIntToUint(i))
		if entry == nil {
			continue
		}

		committer := entry.Committer()

		entries = append(entries, ReflogEntry{
			Ref:     refName,
			Old:     HashFromOid(entry.Old()),
			New:     HashFromOid(entry.New()),
			Message: entry.Message(),
			When:    committer.When,
		})
	}

	return entries, nil
}
