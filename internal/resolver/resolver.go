// Package resolver proposes ranked fixes for detected conflicts.
package resolver

import (
	"fmt"
	"sort"
	"time"

	"github.com/javiermolinar/matchplan/internal/conflict"
	"github.com/javiermolinar/matchplan/internal/schedule"
)

// Scoring weights.
const (
	moveSameWeek   = 50
	moveSameVenue  = 40
	moveCloseTime  = 20
	swapSameWeek   = 30
	swapNoSharing  = 40
	closeTimeLimit = 120 // minutes

	DefaultMaxMoves = 3
	DefaultMaxSwaps = 2
)

// Resolver generates move and swap suggestions. The zero value is ready to use.
type Resolver struct {
	MinRest  time.Duration // rest_time threshold, defaults to conflict.DefaultMinRest
	MaxMoves int           // per conflict
	MaxSwaps int           // per conflict
}

// GenerateSuggestions returns deduplicated suggestions sorted by descending
// priority. Critical conflicts are handled first, then rest_time warnings.
// Fixed matches are never moved nor used as swap partners.
func (r Resolver) GenerateSuggestions(matches []schedule.Match, conflicts conflict.Map, freeSlots []schedule.SlotKey) []schedule.Suggestion {
	byID := schedule.IndexByID(matches)

	var targets []schedule.Conflict
	targets = append(targets, conflict.Critical(conflicts)...)
	for _, c := range conflict.Warnings(conflicts) {
		if c.Type == schedule.ConflictRestTime {
			targets = append(targets, c)
		}
	}

	var out []schedule.Suggestion
	seen := make(map[schedule.SuggestionAction]int)
	add := func(s schedule.Suggestion) {
		if i, ok := seen[s.Action]; ok {
			out[i].Impact.Resolves = mergeIDs(out[i].Impact.Resolves, s.Impact.Resolves)
			if s.Priority > out[i].Priority {
				out[i].Priority = s.Priority
			}
			return
		}
		seen[s.Action] = len(out)
		out = append(out, s)
	}

	for _, c := range targets {
		i, ok := byID[c.MatchID]
		if !ok {
			continue
		}
		m := &matches[i]
		if m.Fixed || m.Slot == nil {
			continue
		}
		resolves := mergeIDs([]string{m.ID}, nonEmpty(c.ConflictingMatch))

		for _, s := range r.moves(matches, m, c, freeSlots, resolves) {
			add(s)
		}
		for _, s := range r.swaps(matches, m, c, resolves) {
			add(s)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].Description < out[j].Description
	})
	return out
}

func (r Resolver) moves(matches []schedule.Match, m *schedule.Match, c schedule.Conflict, freeSlots []schedule.SlotKey, resolves []string) []schedule.Suggestion {
	type candidate struct {
		slot  schedule.SlotKey
		score int
	}

	var cands []candidate
	for _, slot := range freeSlots {
		if slot == *m.Slot {
			continue
		}
		if c.Type == schedule.ConflictRestTime && !r.restOK(matches, m, slot) {
			continue
		}
		cands = append(cands, candidate{slot: slot, score: moveScore(*m.Slot, slot)})
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score > cands[j].score
		}
		return cands[i].slot.Less(cands[j].slot)
	})

	limit := r.MaxMoves
	if limit <= 0 {
		limit = DefaultMaxMoves
	}
	if len(cands) > limit {
		cands = cands[:limit]
	}

	out := make([]schedule.Suggestion, 0, len(cands))
	for _, cand := range cands {
		out = append(out, schedule.Suggestion{
			Type:        schedule.SuggestionMove,
			Priority:    cand.score,
			Description: fmt.Sprintf("Move %s (%s) to %s", m.ID, m.Label(), cand.slot),
			Action:      schedule.SuggestionAction{Type: schedule.SuggestionMove, MatchID: m.ID, Target: cand.slot},
			Impact:      schedule.Impact{Resolves: append([]string(nil), resolves...)},
		})
	}
	return out
}

func (r Resolver) swaps(matches []schedule.Match, m *schedule.Match, c schedule.Conflict, resolves []string) []schedule.Suggestion {
	type candidate struct {
		other *schedule.Match
		score int
	}

	var cands []candidate
	for i := range matches {
		o := &matches[i]
		if o.ID == m.ID || o.Fixed || o.Slot == nil || *o.Slot == *m.Slot {
			continue
		}
		if c.Type == schedule.ConflictRestTime && !r.restOK(matches, m, *o.Slot) {
			continue
		}
		score := 0
		if o.Slot.Week == m.Slot.Week {
			score += swapSameWeek
		}
		if !m.SharesTeam(o) {
			score += swapNoSharing
		}
		cands = append(cands, candidate{other: o, score: score})
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score > cands[j].score
		}
		return cands[i].other.ID < cands[j].other.ID
	})

	limit := r.MaxSwaps
	if limit <= 0 {
		limit = DefaultMaxSwaps
	}
	if len(cands) > limit {
		cands = cands[:limit]
	}

	out := make([]schedule.Suggestion, 0, len(cands))
	for _, cand := range cands {
		a, b := m.ID, cand.other.ID
		if b < a {
			a, b = b, a
		}
		out = append(out, schedule.Suggestion{
			Type:        schedule.SuggestionSwap,
			Priority:    cand.score,
			Description: fmt.Sprintf("Swap %s (%s) with %s (%s)", m.ID, m.Slot, cand.other.ID, cand.other.Slot),
			Action:      schedule.SuggestionAction{Type: schedule.SuggestionSwap, MatchID: a, OtherID: b},
			Impact:      schedule.Impact{Resolves: append([]string(nil), resolves...)},
		})
	}
	return out
}

// restOK reports whether m placed at slot keeps the minimum rest with every
// other match of its teams in the same week.
func (r Resolver) restOK(matches []schedule.Match, m *schedule.Match, slot schedule.SlotKey) bool {
	minRest := r.MinRest
	if minRest <= 0 {
		minRest = conflict.DefaultMinRest
	}
	need := int(minRest / time.Minute)

	for i := range matches {
		o := &matches[i]
		if o.ID == m.ID || o.Slot == nil || o.Slot.Week != slot.Week || !m.SharesTeam(o) {
			continue
		}
		if schedule.GapMinutes(o.Slot.Time, slot.Time) < need {
			return false
		}
	}
	return true
}

func moveScore(from, to schedule.SlotKey) int {
	score := 0
	if from.Week == to.Week {
		score += moveSameWeek
	}
	if from.Venue == to.Venue {
		score += moveSameVenue
	}
	if schedule.GapMinutes(from.Time, to.Time) < closeTimeLimit {
		score += moveCloseTime
	}
	return score
}

// ApplySuggestion mutates matches in place and returns the modifications the
// caller must route through the state manager.
func ApplySuggestion(s schedule.Suggestion, matches []schedule.Match) ([]schedule.Modification, error) {
	switch s.Action.Type {
	case schedule.SuggestionMove:
		m := schedule.Find(matches, s.Action.MatchID)
		if m == nil {
			return nil, fmt.Errorf("%w: %s", schedule.ErrMatchNotFound, s.Action.MatchID)
		}
		if m.Fixed {
			return nil, fmt.Errorf("%w: %s", schedule.ErrMatchFixed, m.ID)
		}
		if err := s.Action.Target.Validate(); err != nil {
			return nil, err
		}
		prev := schedule.CopySlot(m.Slot)
		target := s.Action.Target
		m.Slot = &target
		return []schedule.Modification{{
			MatchID:  m.ID,
			Original: prev,
			New:      schedule.CopySlot(m.Slot),
			Action:   schedule.ActionMove,
		}}, nil

	case schedule.SuggestionSwap:
		if s.Action.MatchID == s.Action.OtherID {
			return nil, schedule.ErrSameMatchSwap
		}
		a := schedule.Find(matches, s.Action.MatchID)
		b := schedule.Find(matches, s.Action.OtherID)
		for id, m := range map[string]*schedule.Match{s.Action.MatchID: a, s.Action.OtherID: b} {
			if m == nil {
				return nil, fmt.Errorf("%w: %s", schedule.ErrMatchNotFound, id)
			}
			if m.Fixed {
				return nil, fmt.Errorf("%w: %s", schedule.ErrMatchFixed, id)
			}
			if m.Slot == nil {
				return nil, fmt.Errorf("%w: %s", schedule.ErrMatchNotScheduled, id)
			}
		}
		aSlot, bSlot := a.Slot, b.Slot
		a.Slot, b.Slot = bSlot, aSlot
		return []schedule.Modification{
			{MatchID: a.ID, Original: schedule.CopySlot(aSlot), New: schedule.CopySlot(a.Slot), Action: schedule.ActionSwap},
			{MatchID: b.ID, Original: schedule.CopySlot(bSlot), New: schedule.CopySlot(b.Slot), Action: schedule.ActionSwap},
		}, nil

	default:
		return nil, fmt.Errorf("%w: %q", schedule.ErrUnknownSuggestion, s.Action.Type)
	}
}

func mergeIDs(a, b []string) []string {
	set := make(map[string]struct{}, len(a)+len(b))
	for _, id := range a {
		set[id] = struct{}{}
	}
	for _, id := range b {
		set[id] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func nonEmpty(id string) []string {
	if id == "" {
		return nil
	}
	return []string{id}
}
