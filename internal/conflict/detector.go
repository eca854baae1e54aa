// Package conflict detects constraint violations over a match set.
//
// Detection is pure: every call rebuilds its lookup indices from the matches
// it is given and nothing is remembered between calls.
package conflict

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/javiermolinar/matchplan/internal/schedule"
	"github.com/javiermolinar/matchplan/internal/slots"
)

// DefaultMinRest is the minimum gap between two matches of the same team in
// the same week.
const DefaultMinRest = 90 * time.Minute

// Map holds the conflicts of every match. An absent key means no conflicts.
type Map map[string][]schedule.Conflict

// Detector evaluates the conflict rules. The zero value uses capacity 1 for
// every venue, DefaultMinRest and no grid check.
type Detector struct {
	Capacities slots.Capacities
	MinRest    time.Duration
	// InGrid reports whether a slot is part of the configured grid.
	// Nil disables the venue_constraint check.
	InGrid func(schedule.SlotKey) bool
}

type weekTime struct {
	week int
	time string
}

// DetectAll returns the conflicts of every scheduled match.
func (d Detector) DetectAll(matches []schedule.Match) Map {
	scheduled := make([]*schedule.Match, 0, len(matches))
	for i := range matches {
		m := &matches[i]
		if m.Slot == nil {
			continue
		}
		scheduled = append(scheduled, m)
	}
	sort.Slice(scheduled, func(i, j int) bool { return scheduled[i].ID < scheduled[j].ID })

	bySlot := make(map[schedule.SlotKey][]*schedule.Match)
	byTeam := make(map[string][]*schedule.Match)
	var teamKeys []string
	for _, m := range scheduled {
		bySlot[*m.Slot] = append(bySlot[*m.Slot], m)
		for _, key := range teamKeysOf(m) {
			if _, ok := byTeam[key]; !ok {
				teamKeys = append(teamKeys, key)
			}
			byTeam[key] = append(byTeam[key], m)
		}
	}
	sort.Strings(teamKeys)

	out := make(Map)
	add := func(c schedule.Conflict) {
		out[c.MatchID] = append(out[c.MatchID], c)
	}

	d.doubleBookings(bySlot, add)
	d.teamChecks(teamKeys, byTeam, add)
	for _, m := range scheduled {
		if c, ok := timePreference(m); ok {
			add(c)
		}
		if d.InGrid != nil && !d.InGrid(*m.Slot) {
			add(schedule.Conflict{
				Type:     schedule.ConflictVenueConstraint,
				Severity: schedule.SeverityCritical,
				Message:  fmt.Sprintf("%s is not an available slot", m.Slot),
				MatchID:  m.ID,
				Details:  map[string]any{"slot": m.Slot.String()},
			})
		}
	}

	for id := range out {
		sortConflicts(out[id])
	}
	return out
}

// DetectForMatch returns the conflicts involving id within matches.
func (d Detector) DetectForMatch(matches []schedule.Match, id string) []schedule.Conflict {
	return d.DetectAll(matches)[id]
}

func (d Detector) doubleBookings(bySlot map[schedule.SlotKey][]*schedule.Match, add func(schedule.Conflict)) {
	for key, group := range bySlot {
		capacity := d.Capacities.For(key.Venue)
		if len(group) <= capacity {
			continue
		}
		for _, m := range group {
			for _, other := range group {
				if other.ID == m.ID {
					continue
				}
				add(schedule.Conflict{
					Type:             schedule.ConflictDoubleBooking,
					Severity:         schedule.SeverityCritical,
					Message:          fmt.Sprintf("%s is double booked with %s at %s", m.ID, other.ID, key),
					MatchID:          m.ID,
					ConflictingMatch: other.ID,
					Details: map[string]any{
						"slot":     key.String(),
						"capacity": capacity,
						"count":    len(group),
					},
				})
			}
		}
	}
}

// teamChecks runs team_overlap and rest_time, both of which compare every
// pair of matches of one team.
func (d Detector) teamChecks(teamKeys []string, byTeam map[string][]*schedule.Match, add func(schedule.Conflict)) {
	minRest := d.minRest()

	for _, team := range teamKeys {
		group := byTeam[team]
		name := strings.SplitN(team, "|", 2)[0]

		for i, a := range group {
			for _, b := range group[i+1:] {
				if a.Slot.Week != b.Slot.Week {
					continue
				}
				if a.Slot.Time == b.Slot.Time {
					at := weekTime{a.Slot.Week, a.Slot.Time}
					for _, pair := range [][2]*schedule.Match{{a, b}, {b, a}} {
						add(schedule.Conflict{
							Type:             schedule.ConflictTeamOverlap,
							Severity:         schedule.SeverityCritical,
							Message:          fmt.Sprintf("%s plays %s and %s at the same time (week %d, %s)", name, pair[0].ID, pair[1].ID, at.week, at.time),
							MatchID:          pair[0].ID,
							ConflictingMatch: pair[1].ID,
							Details:          map[string]any{"team": team, "week": at.week, "time": at.time},
						})
					}
					continue
				}

				gap := schedule.GapMinutes(a.Slot.Time, b.Slot.Time)
				if gap >= minRest {
					continue
				}
				for _, pair := range [][2]*schedule.Match{{a, b}, {b, a}} {
					add(schedule.Conflict{
						Type:             schedule.ConflictRestTime,
						Severity:         schedule.SeverityWarning,
						Message:          fmt.Sprintf("%s has only %d min of rest between %s and %s (minimum %d)", name, gap, pair[0].ID, pair[1].ID, minRest),
						MatchID:          pair[0].ID,
						ConflictingMatch: pair[1].ID,
						Details: map[string]any{
							"team":             team,
							"week":             a.Slot.Week,
							"gap_minutes":      gap,
							"required_minutes": minRest,
						},
					})
				}
			}
		}
	}
}

func (d Detector) minRest() int {
	if d.MinRest <= 0 {
		return int(DefaultMinRest / time.Minute)
	}
	return int(d.MinRest / time.Minute)
}

func timePreference(m *schedule.Match) (schedule.Conflict, bool) {
	actual := schedule.TimeToMinutes(m.Slot.Time)

	var violated []schedule.Team
	var preferred []string
	for _, t := range m.Teams {
		earliest, ok := t.EarliestPreferred()
		if !ok || actual >= schedule.TimeToMinutes(earliest) {
			continue
		}
		violated = append(violated, t)
		preferred = append(preferred, earliest)
	}

	switch len(violated) {
	case 0:
		return schedule.Conflict{}, false
	case 1:
		return schedule.Conflict{
			Type:     schedule.ConflictTimePreference,
			Severity: schedule.SeverityWarning,
			Message:  fmt.Sprintf("%s prefers to play from %s, match is at %s", violated[0].Name, preferred[0], m.Slot.Time),
			MatchID:  m.ID,
			Details:  map[string]any{"teams": []string{violated[0].Key()}, "preferred": preferred, "actual": m.Slot.Time},
		}, true
	default:
		return schedule.Conflict{
			Type:     schedule.ConflictTimePreference,
			Severity: schedule.SeverityCritical,
			Message:  fmt.Sprintf("%s and %s both prefer later than %s", violated[0].Name, violated[1].Name, m.Slot.Time),
			MatchID:  m.ID,
			Details:  map[string]any{"teams": []string{violated[0].Key(), violated[1].Key()}, "preferred": preferred, "actual": m.Slot.Time},
		}, true
	}
}

func teamKeysOf(m *schedule.Match) []string {
	a, b := m.Teams[0].Key(), m.Teams[1].Key()
	if a == b {
		return []string{a}
	}
	return []string{a, b}
}

func sortConflicts(cs []schedule.Conflict) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].Type != cs[j].Type {
			return cs[i].Type < cs[j].Type
		}
		if cs[i].ConflictingMatch != cs[j].ConflictingMatch {
			return cs[i].ConflictingMatch < cs[j].ConflictingMatch
		}
		return cs[i].Message < cs[j].Message
	})
}
