package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/gitforensics/salvage/pkg/config"
)

// sessionScope carries the flags every session-phase command accepts.
// Targets and remotes are pinned in the session when mining begins; later
// phases take the same flags so one invocation line works across the whole
// lifecycle, and apply only the timeout override.
type sessionScope struct {
	targets []string
	remotes []string
	timeout time.Duration
}

func (s *sessionScope) register(cobraCmd *cobra.Command) {
	cobraCmd.Flags().StringArrayVar(&s.targets, "target-path", nil, "Path to recover (pinned at mine time, repeatable)")
	cobraCmd.Flags().StringArrayVar(&s.remotes, "remote", nil, "Remote to fetch (pinned at mine time, repeatable)")
	cobraCmd.Flags().DurationVar(&s.timeout, "timeout", 0, "Per-remote fetch timeout (overrides config)")
}

func (s *sessionScope) apply(cfg *config.Config) {
	if s.timeout > 0 {
		cfg.Mining.FetchTimeout = s.timeout
	}
}
