package conflict

import (
	"sort"

	"github.com/javiermolinar/matchplan/internal/schedule"
)

// Summary counts conflicts by severity.
type Summary struct {
	Critical int
	Warning  int
	Matches  int // matches with at least one conflict
}

// Total returns the number of conflicts.
func (s Summary) Total() int {
	return s.Critical + s.Warning
}

// Summary counts the conflicts of the map.
func (m Map) Summary() Summary {
	var s Summary
	for _, cs := range m {
		if len(cs) > 0 {
			s.Matches++
		}
		for _, c := range cs {
			if c.IsCritical() {
				s.Critical++
			} else {
				s.Warning++
			}
		}
	}
	return s
}

// MatchIDs returns the conflicted match ids, sorted.
func (m Map) MatchIDs() []string {
	ids := make([]string, 0, len(m))
	for id, cs := range m {
		if len(cs) > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// All flattens the map in match id order.
func (m Map) All() []schedule.Conflict {
	var out []schedule.Conflict
	for _, id := range m.MatchIDs() {
		out = append(out, m[id]...)
	}
	return out
}

// Critical returns the critical conflicts in match id order.
func Critical(m Map) []schedule.Conflict {
	return filter(m, func(c schedule.Conflict) bool { return c.IsCritical() })
}

// Warnings returns the non-critical conflicts in match id order.
func Warnings(m Map) []schedule.Conflict {
	return filter(m, func(c schedule.Conflict) bool { return !c.IsCritical() })
}

// Count returns the total number of conflicts.
func Count(m Map) int {
	return m.Summary().Total()
}

// HasCritical returns true if any of cs is critical.
func HasCritical(cs []schedule.Conflict) bool {
	for _, c := range cs {
		if c.IsCritical() {
			return true
		}
	}
	return false
}

func filter(m Map, keep func(schedule.Conflict) bool) []schedule.Conflict {
	var out []schedule.Conflict
	for _, c := range m.All() {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}
