// Package scheduletest provides builders for schedule fixtures in tests.
package scheduletest

import "github.com/javiermolinar/matchplan/internal/schedule"

// Slot returns a pointer to a slot key.
func Slot(week int, time, venue string) *schedule.SlotKey {
	return &schedule.SlotKey{Week: week, Time: time, Venue: venue}
}

// Match builds a scheduled match between two teams of the same gender.
// A nil slot leaves the match unscheduled.
func Match(id, home, away, gender string, slot *schedule.SlotKey) schedule.Match {
	return schedule.Match{
		ID: id,
		Teams: [2]schedule.Team{
			{Name: home, Gender: gender},
			{Name: away, Gender: gender},
		},
		Pool: "P1",
		Slot: slot,
	}
}

// WithPreferences sets the preferred times of both teams.
func WithPreferences(m schedule.Match, home, away []string) schedule.Match {
	m.Teams[0].PreferredTimes = home
	m.Teams[1].PreferredTimes = away
	return m
}

// Fixed marks a match as pre-locked.
func Fixed(m schedule.Match) schedule.Match {
	m.Fixed = true
	return m
}

// Grid returns every combination of the given weeks, times and venues.
func Grid(weeks []int, times, venues []string) []schedule.SlotKey {
	keys := make([]schedule.SlotKey, 0, len(weeks)*len(times)*len(venues))
	for _, w := range weeks {
		for _, t := range times {
			for _, v := range venues {
				keys = append(keys, schedule.SlotKey{Week: w, Time: t, Venue: v})
			}
		}
	}
	return keys
}
