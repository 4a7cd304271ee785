package mine

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// maxFetchWorkers caps the remote fetch pool regardless of configuration.
const maxFetchWorkers = 8

// fetchAll fetches every remote concurrently in a bounded worker pool.
// Fetches are read-only and independent, so this is the one place mining is
// allowed to parallelize. A remote that fails all retries is degraded to a
// warning; it never fails the run.
func (m *Miner) fetchAll(ctx context.Context, remotes []string) (fetched []string, warnings []Warning) {
	workers := m.cfg.FetchWorkers
	if workers <= 0 || workers > maxFetchWorkers {
		workers = maxFetchWorkers
	}

	if workers > len(remotes) {
		workers = len(remotes)
	}

	var mu sync.Mutex

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(workers)

	for _, remote := range remotes {
		group.Go(func() error {
			err := m.fetchWithRetry(groupCtx, remote)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				m.logger.WarnContext(groupCtx, "remote degraded after retries",
					"remote", remote, "err", err)
				warnings = append(warnings, Warning{Remote: remote, Reason: err.Error()})

				return nil
			}

			fetched = append(fetched, remote)

			return nil
		})
	}

	// Workers only ever return nil; degradations are collected as warnings.
	_ = group.Wait()

	sort.Strings(fetched)
	sort.Slice(warnings, func(i, j int) bool { return warnings[i].Remote < warnings[j].Remote })

	return fetched, warnings
}

// fetchWithRetry runs one fetch with per-attempt timeout and exponential
// backoff between attempts.
func (m *Miner) fetchWithRetry(ctx context.Context, remote string) error {
	backoff := m.cfg.FetchBackoff
	if backoff <= 0 {
		backoff = time.Second
	}

	var lastErr error

	for attempt := 0; attempt <= m.cfg.FetchRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}

			backoff *= 2
		}

		attemptCtx := ctx

		var cancel context.CancelFunc
		if m.cfg.FetchTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, m.cfg.FetchTimeout)
		}

		lastErr = m.repo.Fetch(attemptCtx, remote)

		if cancel != nil {
			cancel()
		}

		if lastErr == nil {
			return nil
		}
	}

	return lastErr
}
