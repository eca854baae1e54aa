// Package schedule defines the core domain types for matchplan.
package schedule

import (
	"errors"
	"fmt"
)

// Validation errors.
var (
	ErrEmptyMatchID       = errors.New("match id cannot be empty")
	ErrPartialAssignment  = errors.New("assignment must set week, time and venue together or none of them")
	ErrInvalidTimeFormat  = errors.New("time must be in HH:MM format")
	ErrInvalidWeek        = errors.New("week must be positive")
	ErrEmptyVenue         = errors.New("venue cannot be empty")
	ErrDuplicateMatchID   = errors.New("duplicate match id")
	ErrInvalidAction      = errors.New("invalid modification action")
	ErrMatchNotFound      = errors.New("match not found")
	ErrMatchNotScheduled  = errors.New("match is not scheduled")
	ErrMatchFixed         = errors.New("match is fixed and cannot be moved automatically")
	ErrUnknownSuggestion  = errors.New("unknown suggestion type")
	ErrSameMatchSwap      = errors.New("cannot swap a match with itself")
	ErrInvalidPreferences = errors.New("preferred times must be in HH:MM format")
)

// SlotKey identifies a (week, time, venue) coordinate. It is comparable and
// used directly as a map key.
type SlotKey struct {
	Week  int    `json:"week" msgpack:"week"`
	Time  string `json:"time" msgpack:"time"`
	Venue string `json:"venue" msgpack:"venue"`
}

// String returns a human readable representation, e.g. "W3 18:00 GYM1".
func (k SlotKey) String() string {
	return fmt.Sprintf("W%d %s %s", k.Week, k.Time, k.Venue)
}

// Validate checks that all three components are well formed.
func (k SlotKey) Validate() error {
	if k.Week <= 0 {
		return ErrInvalidWeek
	}
	if !ValidTime(k.Time) {
		return fmt.Errorf("%w: %q", ErrInvalidTimeFormat, k.Time)
	}
	if k.Venue == "" {
		return ErrEmptyVenue
	}
	return nil
}

// Less orders keys by week, time, then venue.
func (k SlotKey) Less(o SlotKey) bool {
	if k.Week != o.Week {
		return k.Week < o.Week
	}
	if k.Time != o.Time {
		return k.Time < o.Time
	}
	return k.Venue < o.Venue
}

// SameSlot reports whether two optional assignments are equal component-wise.
// Two unset assignments are equal.
func SameSlot(a, b *SlotKey) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// CopySlot returns a copy of an optional assignment.
func CopySlot(k *SlotKey) *SlotKey {
	if k == nil {
		return nil
	}
	c := *k
	return &c
}

// Team is one side of a match.
type Team struct {
	Name           string
	Gender         string
	PreferredTimes []string // "HH:MM", earliest acceptable start first
}

// Key returns the team identity used by conflict checks. Gender is part of
// the identity since a club may field a men's and a women's team under the
// same name.
func (t Team) Key() string {
	return t.Name + "|" + t.Gender
}

// EarliestPreferred returns the minimum preferred time and true, or false if
// the team has no preference.
func (t Team) EarliestPreferred() (string, bool) {
	if len(t.PreferredTimes) == 0 {
		return "", false
	}
	earliest := t.PreferredTimes[0]
	for _, p := range t.PreferredTimes[1:] {
		if TimeToMinutes(p) < TimeToMinutes(earliest) {
			earliest = p
		}
	}
	return earliest, true
}

// Match is a single fixture between two teams.
type Match struct {
	ID      string
	Teams   [2]Team
	Pool    string
	Slot    *SlotKey // nil means unscheduled
	Fixed   bool     // pre-locked, never moved automatically
	Entente bool     // intentionally left unscheduled
	Score   *float64
}

// IsScheduled returns true if the match has an assignment.
func (m *Match) IsScheduled() bool {
	return m.Slot != nil
}

// HasTeam returns true if one of the match teams has the given key.
func (m *Match) HasTeam(key string) bool {
	return m.Teams[0].Key() == key || m.Teams[1].Key() == key
}

// SharesTeam returns true if both matches involve a common team.
func (m *Match) SharesTeam(o *Match) bool {
	return m.HasTeam(o.Teams[0].Key()) || m.HasTeam(o.Teams[1].Key())
}

// Label returns "Home vs Away".
func (m *Match) Label() string {
	return m.Teams[0].Name + " vs " + m.Teams[1].Name
}

// Clone returns a deep copy of the match.
func (m Match) Clone() Match {
	c := m
	c.Slot = CopySlot(m.Slot)
	for i := range c.Teams {
		if m.Teams[i].PreferredTimes != nil {
			c.Teams[i].PreferredTimes = append([]string(nil), m.Teams[i].PreferredTimes...)
		}
	}
	if m.Score != nil {
		s := *m.Score
		c.Score = &s
	}
	return c
}

// Validate checks the match invariants.
func (m *Match) Validate() error {
	if m.ID == "" {
		return ErrEmptyMatchID
	}
	if m.Slot != nil {
		if err := m.Slot.Validate(); err != nil {
			return fmt.Errorf("match %s: %w", m.ID, err)
		}
	}
	for _, t := range m.Teams {
		for _, p := range t.PreferredTimes {
			if !ValidTime(p) {
				return fmt.Errorf("match %s team %s: %w", m.ID, t.Name, ErrInvalidPreferences)
			}
		}
	}
	return nil
}

// CloneAll deep-copies a match list.
func CloneAll(matches []Match) []Match {
	out := make([]Match, len(matches))
	for i := range matches {
		out[i] = matches[i].Clone()
	}
	return out
}

// IndexByID returns the position of every match id in the slice.
func IndexByID(matches []Match) map[string]int {
	idx := make(map[string]int, len(matches))
	for i := range matches {
		idx[matches[i].ID] = i
	}
	return idx
}

// Find returns a pointer into the slice for the given id.
func Find(matches []Match, id string) *Match {
	for i := range matches {
		if matches[i].ID == id {
			return &matches[i]
		}
	}
	return nil
}
