package engine

import (
	"github.com/javiermolinar/matchplan/internal/conflict"
	"github.com/javiermolinar/matchplan/internal/schedule"
)

// Rejection reasons.
const (
	ReasonSlotOccupied  = "slot occupied"
	ReasonMatchNotFound = "match not found"
	ReasonNotScheduled  = "match is not scheduled"
	ReasonSameMatch     = "cannot swap a match with itself"
)

// MoveOptions selects the override path of a move.
type MoveOptions struct {
	Swap      bool // exchange slots with the occupant
	Force     bool // unschedule the occupants
	Confirmed bool // the user accepted the warnings
}

// MoveCheck is the result of ValidateMove.
type MoveCheck struct {
	CanMove              bool
	Reason               string
	Warnings             []schedule.Conflict
	RequiresConfirmation bool
	Occupants            []string
}

// SwapCheck is the result of ValidateSwap.
type SwapCheck struct {
	CanSwap              bool
	Reason               string
	Warnings             []schedule.Conflict
	RequiresConfirmation bool
}

// Validator gates every write. It evaluates edits against a hypothetical
// copy of the match set and never mutates its input.
type Validator struct {
	Detector conflict.Detector
}

// ValidateMove checks moving matchID to target.
func (v Validator) ValidateMove(current []schedule.Match, matchID string, target schedule.SlotKey, opts MoveOptions) MoveCheck {
	m := schedule.Find(current, matchID)
	if m == nil {
		return MoveCheck{Reason: ReasonMatchNotFound}
	}
	if err := target.Validate(); err != nil {
		return MoveCheck{Reason: err.Error()}
	}

	occupants := occupantsOf(current, target, matchID)
	if len(occupants) >= v.Detector.Capacities.For(target.Venue) && !opts.Force {
		if !opts.Swap || len(occupants) == 0 {
			return MoveCheck{Reason: ReasonSlotOccupied, Occupants: occupants}
		}
		sc := v.ValidateSwap(current, matchID, occupants[0])
		return MoveCheck{
			CanMove:              sc.CanSwap,
			Reason:               sc.Reason,
			Warnings:             sc.Warnings,
			RequiresConfirmation: sc.RequiresConfirmation,
			Occupants:            occupants,
		}
	}

	hyp := schedule.CloneAll(current)
	slot := target
	schedule.Find(hyp, matchID).Slot = &slot
	if opts.Force {
		for _, id := range occupants {
			schedule.Find(hyp, id).Slot = nil
		}
	}

	found := v.Detector.DetectForMatch(hyp, matchID)
	if c, ok := firstCritical(found); ok {
		return MoveCheck{Reason: c.Message, Occupants: occupants}
	}
	return MoveCheck{
		CanMove:              true,
		Warnings:             found,
		RequiresConfirmation: len(found) > 0,
		Occupants:            occupants,
	}
}

// ValidateSwap checks exchanging the slots of a and b.
func (v Validator) ValidateSwap(current []schedule.Match, a, b string) SwapCheck {
	if a == b {
		return SwapCheck{Reason: ReasonSameMatch}
	}
	ma, mb := schedule.Find(current, a), schedule.Find(current, b)
	if ma == nil || mb == nil {
		return SwapCheck{Reason: ReasonMatchNotFound}
	}
	if ma.Slot == nil || mb.Slot == nil {
		return SwapCheck{Reason: ReasonNotScheduled}
	}

	hyp := schedule.CloneAll(current)
	ha, hb := schedule.Find(hyp, a), schedule.Find(hyp, b)
	ha.Slot, hb.Slot = hb.Slot, ha.Slot

	all := v.Detector.DetectAll(hyp)
	combined := append(append([]schedule.Conflict(nil), all[a]...), all[b]...)
	if c, ok := firstCritical(combined); ok {
		return SwapCheck{Reason: c.Message}
	}
	return SwapCheck{
		CanSwap:              true,
		Warnings:             combined,
		RequiresConfirmation: len(combined) > 0,
	}
}

func occupantsOf(matches []schedule.Match, target schedule.SlotKey, except string) []string {
	var ids []string
	for i := range matches {
		m := &matches[i]
		if m.ID != except && m.Slot != nil && *m.Slot == target {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

func firstCritical(cs []schedule.Conflict) (schedule.Conflict, bool) {
	for _, c := range cs {
		if c.IsCritical() {
			return c, true
		}
	}
	return schedule.Conflict{}, false
}
