// Package solution loads the schedule produced by the external solver.
package solution

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/javiermolinar/matchplan/internal/schedule"
	"github.com/javiermolinar/matchplan/internal/slots"
)

type teamDoc struct {
	Name           string   `json:"name"`
	Gender         string   `json:"gender"`
	PreferredTimes []string `json:"preferred_times,omitempty"`
}

type matchDoc struct {
	ID      string   `json:"match_id"`
	Home    teamDoc  `json:"home"`
	Away    teamDoc  `json:"away"`
	Pool    string   `json:"pool"`
	Semaine *int     `json:"semaine"`
	Horaire *string  `json:"horaire"`
	Gymnase *string  `json:"gymnase"`
	Fixed   bool     `json:"is_fixed"`
	Entente bool     `json:"entente"`
	Score   *float64 `json:"score,omitempty"`
}

type slotDoc struct {
	Semaine int    `json:"semaine"`
	Horaire string `json:"horaire"`
	Gymnase string `json:"gymnase"`
}

type fileDoc struct {
	Name            string         `json:"name"`
	Matches         []matchDoc     `json:"matches"`
	Unscheduled     []matchDoc     `json:"unscheduled"`
	FreeSlots       []slotDoc      `json:"free_slots"`
	VenueCapacities map[string]int `json:"venue_capacities"`
}

// Solution is a validated solver output.
type Solution struct {
	Name       string
	Matches    []schedule.Match
	FreeSlots  []schedule.SlotKey
	Capacities slots.Capacities
}

// Load reads a solution file. A missing name defaults to the file base name.
func Load(path string) (*Solution, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading solution: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if s.Name == "" {
		s.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return s, nil
}

// Parse decodes and validates a solution document.
func Parse(data []byte) (*Solution, error) {
	var doc fileDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding solution: %w", err)
	}

	s := &Solution{
		Name:       doc.Name,
		Capacities: slots.Capacities{},
	}
	seen := make(map[string]bool)
	for _, list := range [][]matchDoc{doc.Matches, doc.Unscheduled} {
		for _, md := range list {
			m, err := md.toMatch()
			if err != nil {
				return nil, err
			}
			if seen[m.ID] {
				return nil, fmt.Errorf("%w: %s", schedule.ErrDuplicateMatchID, m.ID)
			}
			seen[m.ID] = true
			s.Matches = append(s.Matches, m)
		}
	}

	for _, sd := range doc.FreeSlots {
		k := schedule.SlotKey{Week: sd.Semaine, Time: sd.Horaire, Venue: sd.Gymnase}
		if err := k.Validate(); err != nil {
			return nil, fmt.Errorf("free slot %s: %w", k, err)
		}
		s.FreeSlots = append(s.FreeSlots, k)
	}
	for venue, n := range doc.VenueCapacities {
		if n < 1 {
			return nil, fmt.Errorf("venue %s: capacity must be at least 1, got %d", venue, n)
		}
		s.Capacities[venue] = n
	}
	return s, nil
}

func (md matchDoc) toMatch() (schedule.Match, error) {
	m := schedule.Match{
		ID: md.ID,
		Teams: [2]schedule.Team{
			{Name: md.Home.Name, Gender: md.Home.Gender, PreferredTimes: md.Home.PreferredTimes},
			{Name: md.Away.Name, Gender: md.Away.Gender, PreferredTimes: md.Away.PreferredTimes},
		},
		Pool:    md.Pool,
		Fixed:   md.Fixed,
		Entente: md.Entente,
		Score:   md.Score,
	}

	set := 0
	for _, present := range []bool{md.Semaine != nil, md.Horaire != nil, md.Gymnase != nil} {
		if present {
			set++
		}
	}
	switch set {
	case 0:
	case 3:
		m.Slot = &schedule.SlotKey{Week: *md.Semaine, Time: *md.Horaire, Venue: *md.Gymnase}
	default:
		return schedule.Match{}, fmt.Errorf("match %s: %w", md.ID, schedule.ErrPartialAssignment)
	}

	if err := m.Validate(); err != nil {
		return schedule.Match{}, err
	}
	return m, nil
}

// Slots returns every slot the solution refers to: assignments and free
// slots, sorted and deduplicated.
func (s *Solution) Slots() []schedule.SlotKey {
	set := make(map[schedule.SlotKey]struct{})
	for _, m := range s.Matches {
		if m.Slot != nil {
			set[*m.Slot] = struct{}{}
		}
	}
	for _, k := range s.FreeSlots {
		set[k] = struct{}{}
	}
	out := make([]schedule.SlotKey, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// Grid derives the weeks, times and venues of the solution, merged with the
// configured extra coordinates.
func (s *Solution) Grid(extra slots.Grid) slots.Grid {
	weeks := make(map[int]struct{})
	times := make(map[string]struct{})
	venues := make(map[string]struct{})

	for _, k := range s.Slots() {
		weeks[k.Week] = struct{}{}
		times[k.Time] = struct{}{}
		venues[k.Venue] = struct{}{}
	}
	for _, w := range extra.Weeks {
		weeks[w] = struct{}{}
	}
	for _, t := range extra.Times {
		times[t] = struct{}{}
	}
	for _, v := range extra.Venues {
		venues[v] = struct{}{}
	}

	g := slots.Grid{}
	for w := range weeks {
		g.Weeks = append(g.Weeks, w)
	}
	for t := range times {
		g.Times = append(g.Times, t)
	}
	for v := range venues {
		g.Venues = append(g.Venues, v)
	}
	sort.Ints(g.Weeks)
	sort.Strings(g.Times)
	sort.Strings(g.Venues)
	return g
}

// MergeCapacities returns the solution capacities overlaid on base.
func (s *Solution) MergeCapacities(base map[string]int) slots.Capacities {
	out := slots.Capacities{}
	for v, n := range base {
		out[v] = n
	}
	for v, n := range s.Capacities {
		out[v] = n
	}
	return out
}
