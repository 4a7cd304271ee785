// Package commands implements the salvage subcommands. Every command shares
// the same bootstrap: load config, build the logger, open the repository,
// and attach to a session when one is named.
package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gitforensics/salvage/internal/audit"
	"github.com/gitforensics/salvage/internal/orchestrate"
	"github.com/gitforensics/salvage/internal/session"
	"github.com/gitforensics/salvage/pkg/config"
	"github.com/gitforensics/salvage/pkg/gitlib"
)

// Exit codes for the salvage binary. Codes 1 through 3 are reserved for
// their named conditions; everything unclassified exits with ExitGeneralError.
const (
	ExitOK            = 0
	ExitNoCandidates  = 1
	ExitFatal         = 2
	ExitUserCancelled = 3
	ExitGeneralError  = 4
)

// ErrRepositoryPathRequired means no repository argument or discoverable
// working directory was available.
var ErrRepositoryPathRequired = errors.New("repository path required")

// ExitCode maps an error to the binary's exit code contract.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, orchestrate.ErrUserCancelled):
		return ExitUserCancelled
	case errors.Is(err, session.ErrBranchConsistency),
		errors.Is(err, audit.ErrIntegrityViolation),
		errors.Is(err, gitlib.ErrRepositoryCorrupt):
		return ExitFatal
	case errors.Is(err, orchestrate.ErrNoCandidates):
		return ExitNoCandidates
	default:
		return ExitGeneralError
	}
}

// bootstrap is the shared command environment.
type bootstrap struct {
	cfg    *config.Config
	repo   *gitlib.Repository
	logger *slog.Logger
}

func newBootstrap(configPath, repoPath string) (*bootstrap, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger := newLogger(cfg.Logging)

	if repoPath == "" {
		repoPath, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRepositoryPathRequired, err)
		}
	}

	repo, err := gitlib.OpenRepository(repoPath)
	if err != nil {
		return nil, err
	}

	return &bootstrap{cfg: cfg, repo: repo, logger: logger}, nil
}

// openOrchestrator attaches to an existing session by id.
func (b *bootstrap) openOrchestrator(sessionID string) (*orchestrate.Orchestrator, error) {
	sess, err := session.Load(sessionRoot(b.repo, b.cfg), sessionID)
	if err != nil {
		return nil, err
	}

	return orchestrate.Open(b.repo, b.cfg, sess, b.logger)
}

func sessionRoot(repo *gitlib.Repository, cfg *config.Config) string {
	return filepath.Join(repo.Workdir(), cfg.Session.Dir)
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo

	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}
