package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/javiermolinar/matchplan/internal/schedule"
)

// SessionState is the state of an EditSession.
type SessionState string

const (
	SessionIdle               SessionState = "idle"
	SessionEditing            SessionState = "editing"
	SessionValidatingConflict SessionState = "validating_conflict"
	SessionCommitted          SessionState = "committed"
)

// ErrInvalidTransition is returned when a session method is called from the
// wrong state.
var ErrInvalidTransition = errors.New("invalid edit session transition")

// EditSession drives a single interactive edit:
//
//	Idle -> Editing -> [ValidatingConflict] -> Committed | Idle
//
// Nothing is written before the commit.
type EditSession struct {
	engine  *Engine
	state   SessionState
	matchID string
	target  *schedule.SlotKey
	opts    MoveOptions
	pending Outcome
}

// NewSession starts an idle edit session.
func (e *Engine) NewSession() *EditSession {
	return &EditSession{engine: e, state: SessionIdle}
}

// State returns the current state.
func (s *EditSession) State() SessionState {
	return s.state
}

// Pending returns the outcome awaiting confirmation.
func (s *EditSession) Pending() Outcome {
	return s.pending
}

// Begin selects the match to edit.
func (s *EditSession) Begin(matchID string) error {
	if s.state != SessionIdle {
		return fmt.Errorf("%w: begin from %s", ErrInvalidTransition, s.state)
	}
	if _, ok := s.engine.Match(matchID); !ok {
		return fmt.Errorf("%w: %s", schedule.ErrMatchNotFound, matchID)
	}
	s.matchID = matchID
	s.target = nil
	s.opts = MoveOptions{}
	s.state = SessionEditing
	return nil
}

// Choose sets the target slot and the override path.
func (s *EditSession) Choose(target schedule.SlotKey, opts MoveOptions) error {
	if s.state != SessionEditing {
		return fmt.Errorf("%w: choose from %s", ErrInvalidTransition, s.state)
	}
	t := target
	s.target = &t
	opts.Confirmed = false
	s.opts = opts
	return nil
}

// Submit validates the chosen edit. It commits right away when there is
// nothing to confirm, waits for Confirm when warnings were found, and stays
// in Editing when the edit is rejected.
func (s *EditSession) Submit(ctx context.Context) (Outcome, error) {
	if s.state != SessionEditing || s.target == nil {
		return Outcome{}, fmt.Errorf("%w: submit from %s", ErrInvalidTransition, s.state)
	}

	out := s.engine.Move(ctx, s.matchID, *s.target, s.opts)
	switch out.Status {
	case StatusCommitted:
		s.state = SessionCommitted
	case StatusNeedsConfirmation:
		s.pending = out
		s.state = SessionValidatingConflict
	case StatusUnchanged:
		s.state = SessionIdle
	}
	return out, nil
}

// Confirm accepts the pending warnings and commits.
func (s *EditSession) Confirm(ctx context.Context) (Outcome, error) {
	if s.state != SessionValidatingConflict {
		return Outcome{}, fmt.Errorf("%w: confirm from %s", ErrInvalidTransition, s.state)
	}

	opts := s.opts
	opts.Confirmed = true
	out := s.engine.Move(ctx, s.matchID, *s.target, opts)
	s.pending = Outcome{}
	if out.Committed() {
		s.state = SessionCommitted
	} else {
		// the schedule changed underneath, go back to choosing
		s.state = SessionEditing
	}
	return out, nil
}

// Cancel discards the session selections.
func (s *EditSession) Cancel() {
	s.state = SessionIdle
	s.matchID = ""
	s.target = nil
	s.opts = MoveOptions{}
	s.pending = Outcome{}
}
