// Package slots maintains the occupancy index over every (week, time, venue)
// slot of the schedule grid.
package slots

import (
	"sort"

	"github.com/charmbracelet/log"

	"github.com/javiermolinar/matchplan/internal/schedule"
	"github.com/javiermolinar/matchplan/internal/state"
)

// DefaultCapacity is used for venues missing from the capacity table.
const DefaultCapacity = 1

// Status is derived from the occupant count.
type Status string

const (
	StatusFree     Status = "free"
	StatusOccupied Status = "occupied"
)

// Grid lists the configured coordinates. Every combination becomes a slot,
// whether or not a match uses it, so the grid never changes shape on edits.
type Grid struct {
	Weeks  []int
	Times  []string
	Venues []string
}

// Keys returns the full cross-product sorted by week, time, venue.
func (g Grid) Keys() []schedule.SlotKey {
	keys := make([]schedule.SlotKey, 0, len(g.Weeks)*len(g.Times)*len(g.Venues))
	for _, w := range g.Weeks {
		for _, t := range g.Times {
			for _, v := range g.Venues {
				keys = append(keys, schedule.SlotKey{Week: w, Time: t, Venue: v})
			}
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

// Capacities maps venue to the number of simultaneous matches it allows.
type Capacities map[string]int

// For returns the capacity of venue, defaulting to DefaultCapacity.
func (c Capacities) For(venue string) int {
	if n, ok := c[venue]; ok && n > 0 {
		return n
	}
	return DefaultCapacity
}

// Slot is a snapshot of one grid cell.
type Slot struct {
	Key       schedule.SlotKey
	Capacity  int
	Occupants []string
}

// Status returns free while the slot has spare capacity.
func (s Slot) Status() Status {
	if len(s.Occupants) < s.Capacity {
		return StatusFree
	}
	return StatusOccupied
}

type cell struct {
	capacity  int
	occupants []string
}

// MatchSource provides the current match set for rebuilds.
type MatchSource interface {
	CurrentMatches() []schedule.Match
}

// Index is a cache of slot occupancy. It can always be rebuilt from the
// current matches.
type Index struct {
	cells      map[schedule.SlotKey]*cell
	keys       []schedule.SlotKey
	locations  map[string]schedule.SlotKey
	capacities Capacities
	logger     *log.Logger
	src        MatchSource
	unindexed  int // scheduled matches left out by the last Rebuild
}

// New builds an empty index over the full grid.
func New(grid Grid, capacities Capacities, logger *log.Logger) *Index {
	if logger == nil {
		logger = log.Default()
	}
	if capacities == nil {
		capacities = Capacities{}
	}

	idx := &Index{
		cells:      make(map[schedule.SlotKey]*cell),
		keys:       grid.Keys(),
		locations:  make(map[string]schedule.SlotKey),
		capacities: capacities,
		logger:     logger,
	}
	for _, k := range idx.keys {
		idx.cells[k] = &cell{capacity: capacities.For(k.Venue)}
	}
	return idx
}

// Has returns true if key is part of the grid.
func (x *Index) Has(key schedule.SlotKey) bool {
	_, ok := x.cells[key]
	return ok
}

// Capacity returns the capacity of venue.
func (x *Index) Capacity(venue string) int {
	return x.capacities.For(venue)
}

// Len returns the number of slots in the grid.
func (x *Index) Len() int {
	return len(x.keys)
}

// OccupySlot records matchID in key. It fails if the slot is unknown or full
// with other matches.
func (x *Index) OccupySlot(key schedule.SlotKey, matchID string) bool {
	c, ok := x.cells[key]
	if !ok {
		return false
	}
	if contains(c.occupants, matchID) {
		return true
	}
	if len(c.occupants) >= c.capacity {
		return false
	}
	if prev, ok := x.locations[matchID]; ok && prev != key {
		x.release(prev, matchID)
	}
	c.occupants = append(c.occupants, matchID)
	x.locations[matchID] = key
	return true
}

// FreeSlot clears every occupant of key. It is a no-op for free or unknown slots.
func (x *Index) FreeSlot(key schedule.SlotKey) {
	c, ok := x.cells[key]
	if !ok {
		return
	}
	for _, id := range c.occupants {
		delete(x.locations, id)
	}
	c.occupants = nil
}

// MoveMatch releases matchID from oldSlot (if given) and occupies newSlot.
// The result is the result of the occupy step.
func (x *Index) MoveMatch(matchID string, oldSlot *schedule.SlotKey, newSlot schedule.SlotKey) bool {
	if oldSlot != nil {
		x.release(*oldSlot, matchID)
	}
	return x.OccupySlot(newSlot, matchID)
}

// Release removes matchID from whichever slot holds it.
func (x *Index) Release(matchID string) {
	if key, ok := x.locations[matchID]; ok {
		x.release(key, matchID)
	}
}

func (x *Index) release(key schedule.SlotKey, matchID string) {
	c, ok := x.cells[key]
	if !ok {
		return
	}
	for i, id := range c.occupants {
		if id == matchID {
			c.occupants = append(c.occupants[:i:i], c.occupants[i+1:]...)
			break
		}
	}
	if loc, ok := x.locations[matchID]; ok && loc == key {
		delete(x.locations, matchID)
	}
}

// Location returns the slot currently holding matchID.
func (x *Index) Location(matchID string) (schedule.SlotKey, bool) {
	k, ok := x.locations[matchID]
	return k, ok
}

// Slot returns a snapshot of key.
func (x *Index) Slot(key schedule.SlotKey) (Slot, bool) {
	c, ok := x.cells[key]
	if !ok {
		return Slot{}, false
	}
	return Slot{Key: key, Capacity: c.capacity, Occupants: append([]string(nil), c.occupants...)}, true
}

// Status returns the status of key, or false for unknown slots.
func (x *Index) Status(key schedule.SlotKey) (Status, bool) {
	s, ok := x.Slot(key)
	if !ok {
		return "", false
	}
	return s.Status(), true
}

// Occupants returns the match ids in key.
func (x *Index) Occupants(key schedule.SlotKey) []string {
	s, _ := x.Slot(key)
	return s.Occupants
}

// Slots returns snapshots of every slot, sorted.
func (x *Index) Slots() []Slot {
	out := make([]Slot, 0, len(x.keys))
	for _, k := range x.keys {
		s, _ := x.Slot(k)
		out = append(out, s)
	}
	return out
}

// FreeSlots returns the keys with spare capacity, sorted.
func (x *Index) FreeSlots() []schedule.SlotKey {
	var out []schedule.SlotKey
	for _, k := range x.keys {
		c := x.cells[k]
		if len(c.occupants) < c.capacity {
			out = append(out, k)
		}
	}
	return out
}

// Rebuild clears the index and replays matches. Matches outside the grid or
// beyond capacity are logged and left out.
func (x *Index) Rebuild(matches []schedule.Match) {
	for _, c := range x.cells {
		c.occupants = nil
	}
	x.locations = make(map[string]schedule.SlotKey)
	x.unindexed = 0

	for i := range matches {
		m := &matches[i]
		if m.Slot == nil {
			continue
		}
		if !x.OccupySlot(*m.Slot, m.ID) {
			x.unindexed++
			x.logger.Debug("match not indexed", "match_id", m.ID, "slot", m.Slot.String())
		}
	}
}

// Attach rebuilds the index from src and keeps it in sync with pub.
// An event the index cannot apply cleanly triggers a full rebuild.
func (x *Index) Attach(pub state.Publisher, src MatchSource) (detach func()) {
	x.src = src
	x.Rebuild(src.CurrentMatches())

	return pub.Subscribe(func(ev state.Event) {
		switch ev.Type {
		case state.EventModificationSaved:
			x.sync(ev.MatchID, ev.Modification.New)
		case state.EventModificationUndone:
			x.sync(ev.MatchID, ev.Modification.Original)
		default:
			x.Rebuild(src.CurrentMatches())
		}
	})
}

func (x *Index) sync(matchID string, to *schedule.SlotKey) {
	if x.unindexed > 0 {
		x.Rebuild(x.src.CurrentMatches())
		return
	}
	if to == nil {
		x.Release(matchID)
		return
	}
	var from *schedule.SlotKey
	if loc, ok := x.locations[matchID]; ok {
		from = &loc
	}
	if !x.MoveMatch(matchID, from, *to) {
		x.logger.Debug("slot index out of sync, rebuilding", "match_id", matchID, "slot", to.String())
		x.Rebuild(x.src.CurrentMatches())
	}
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
