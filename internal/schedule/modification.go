package schedule

import "time"

// Action describes how a modification was produced.
type Action string

const (
	ActionMove         Action = "move"
	ActionSwap         Action = "swap"
	ActionUnschedule   Action = "unschedule"
	ActionForceReplace Action = "force-replace"
)

// Valid returns true if the action is a known value.
func (a Action) Valid() bool {
	switch a {
	case ActionMove, ActionSwap, ActionUnschedule, ActionForceReplace:
		return true
	default:
		return false
	}
}

// Modification is a single entry of the modification log. Original is always
// the first-ever assignment of the match, never an intermediate edit.
type Modification struct {
	MatchID   string    `json:"match_id" msgpack:"match_id"`
	Original  *SlotKey  `json:"original" msgpack:"original"`
	New       *SlotKey  `json:"new" msgpack:"new"`
	Timestamp time.Time `json:"timestamp" msgpack:"timestamp"`
	Action    Action    `json:"action" msgpack:"action"`
}

// IsNoop returns true if the modification would not change the assignment.
func (m Modification) IsNoop() bool {
	return SameSlot(m.Original, m.New)
}

// SameEffect reports whether two modifications lead to the same state,
// ignoring timestamps.
func (m Modification) SameEffect(o Modification) bool {
	return m.MatchID == o.MatchID &&
		SameSlot(m.Original, o.Original) &&
		SameSlot(m.New, o.New) &&
		m.Action == o.Action
}

// Clone returns a copy that shares no pointers with m.
func (m Modification) Clone() Modification {
	c := m
	c.Original = CopySlot(m.Original)
	c.New = CopySlot(m.New)
	return c
}
