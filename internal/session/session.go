// Package session owns the recovery session lifecycle: the repository-local
// lock record, the emergency branch isolation guard, checkpoints, and the
// persisted session state that lets subcommands share one session.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gitforensics/salvage/internal/score"
)

// State is a phase of the recovery state machine.
type State string

// Session states. DOCUMENTED and ABORTED are terminal.
const (
	StateInit              State = "INIT"
	StateBaseline          State = "BASELINE"
	StateMining            State = "MINING"
	StateAnalysis          State = "ANALYSIS"
	StateConsolidation     State = "CONSOLIDATION"
	StateAwaitingSelection State = "AWAITING_SELECTION"
	StateSurgicalRecovery  State = "SURGICAL_RECOVERY"
	StateValidation        State = "VALIDATION"
	StateDocumented        State = "DOCUMENTED"
	StateAborted           State = "ABORTED"
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateDocumented || s == StateAborted
}

// Checkpoint is a committed rollback point, created after every successful
// mutating step and never deleted during the session.
type Checkpoint struct {
	Label     string    `json:"label"`
	CommitID  string    `json:"commit_id"`
	CreatedAt time.Time `json:"created_at"`
}

// RecoverySession is the unit of work. Exactly one may be active per
// repository; the lock record enforces that.
type RecoverySession struct {
	SessionID       string                    `json:"session_id"`
	EmergencyBranch string                    `json:"emergency_branch"`
	Symptom         string                    `json:"symptom"`
	Targets         []string                  `json:"targets"`
	State           State                     `json:"state"`
	Checkpoints     []Checkpoint              `json:"checkpoints"`
	Snapshot        *score.DependencySnapshot `json:"snapshot,omitempty"`
	StartedAt       time.Time                 `json:"started_at"`
}

// ErrNoSession means no persisted session exists under the session root.
var ErrNoSession = errors.New("no recovery session found")

var branchUnsafe = regexp.MustCompile(`[^a-z0-9-]+`)

// New creates a session for the given corruption symptom and target paths.
// The emergency branch name is derived from timestamp and symptom.
func New(prefix, symptom string, targets []string, startedAt time.Time) *RecoverySession {
	slug := branchUnsafe.ReplaceAllString(strings.ToLower(symptom), "-")
	slug = strings.Trim(slug, "-")

	const maxSlugLen = 40
	if len(slug) > maxSlugLen {
		slug = slug[:maxSlugLen]
	}

	if slug == "" {
		slug = "unspecified"
	}

	return &RecoverySession{
		SessionID:       uuid.NewString(),
		EmergencyBranch: fmt.Sprintf("%s-%s-%s", prefix, startedAt.UTC().Format("20060102-150405"), slug),
		Symptom:         symptom,
		Targets:         targets,
		State:           StateInit,
		StartedAt:       startedAt.UTC(),
	}
}

// Dir returns this session's state directory under the session root.
func (s *RecoverySession) Dir(root string) string {
	return filepath.Join(root, s.SessionID)
}

// LastCheckpoint returns the most recent checkpoint, if any.
func (s *RecoverySession) LastCheckpoint() (Checkpoint, bool) {
	if len(s.Checkpoints) == 0 {
		return Checkpoint{}, false
	}

	return s.Checkpoints[len(s.Checkpoints)-1], true
}

// AddCheckpoint records a new rollback point.
func (s *RecoverySession) AddCheckpoint(label, commitID string, createdAt time.Time) {
	s.Checkpoints = append(s.Checkpoints, Checkpoint{
		Label:     label,
		CommitID:  commitID,
		CreatedAt: createdAt.UTC(),
	})
}

// Save persists the session state file in its directory under root.
func (s *RecoverySession) Save(root string) error {
	dir := s.Dir(root)

	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	err = os.WriteFile(filepath.Join(dir, "session.json"), data, 0o644)
	if err != nil {
		return fmt.Errorf("write session: %w", err)
	}

	return nil
}

// Load reads a persisted session by id.
func Load(root, sessionID string) (*RecoverySession, error) {
	data, err := os.ReadFile(filepath.Join(root, sessionID, "session.json"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: id %s", ErrNoSession, sessionID)
		}

		return nil, fmt.Errorf("read session: %w", err)
	}

	var restored RecoverySession

	err = json.Unmarshal(data, &restored)
	if err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}

	return &restored, nil
}
