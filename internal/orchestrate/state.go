// Package orchestrate drives the recovery session state machine. Read-only
// phases are freely retryable; every mutating step is bracketed by session
// guard checks and mirrored into the audit ledger.
package orchestrate

import (
	"errors"
	"fmt"

	"github.com/gitforensics/salvage/internal/session"
)

// Sentinel errors for session control flow.
var (
	// ErrInvalidTransition means the requested state change is not in the
	// transition table.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrUserCancelled means the operator cancelled; honored only at phase
	// boundaries, with checkpoints preserved.
	ErrUserCancelled = errors.New("session cancelled by user")
	// ErrNoCandidates means mining found nothing for a required path.
	ErrNoCandidates = errors.New("no candidates found")
	// ErrSelectionRequired means recovery was attempted without an explicit
	// candidate selection. There is no auto-selection of the top score.
	ErrSelectionRequired = errors.New("explicit candidate selection required")
)

// transitions is the full table. ABORTED is reachable from any non-terminal
// state and handled separately.
var transitions = map[session.State][]session.State{
	session.StateInit:              {session.StateBaseline},
	session.StateBaseline:          {session.StateMining},
	session.StateMining:            {session.StateAnalysis},
	session.StateAnalysis:          {session.StateConsolidation},
	session.StateConsolidation:     {session.StateAwaitingSelection},
	session.StateAwaitingSelection: {session.StateSurgicalRecovery},
	// A write failure mid-recovery hands control back to the operator with
	// prior checkpoints intact.
	session.StateSurgicalRecovery: {session.StateValidation, session.StateAwaitingSelection},
	// Validation failure returns to selection; it never silently retries
	// with a different candidate.
	session.StateValidation: {session.StateDocumented, session.StateAwaitingSelection},
}

// CanTransition reports whether from -> to is legal.
func CanTransition(from, to session.State) bool {
	if to == session.StateAborted {
		return !from.Terminal()
	}

	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}

	return false
}

// Transition validates and applies a state change on the session.
func Transition(sess *session.RecoverySession, to session.State) error {
	if !CanTransition(sess.State, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, sess.State, to)
	}

	sess.State = to

	return nil
}
