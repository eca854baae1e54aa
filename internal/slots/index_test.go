package slots

import (
	"context"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javiermolinar/matchplan/internal/schedule"
	st "github.com/javiermolinar/matchplan/internal/schedule/scheduletest"
	"github.com/javiermolinar/matchplan/internal/state"
	"github.com/javiermolinar/matchplan/internal/storage"
)

func testGrid() Grid {
	return Grid{
		Weeks:  []int{3, 4},
		Times:  []string{"18:00", "20:00"},
		Venues: []string{"A", "B"},
	}
}

func key(week int, time, venue string) schedule.SlotKey {
	return schedule.SlotKey{Week: week, Time: time, Venue: venue}
}

func newTestIndex() *Index {
	return New(testGrid(), Capacities{"B": 2}, log.New(io.Discard))
}

func TestNew_FullCrossProduct(t *testing.T) {
	x := newTestIndex()

	assert.Equal(t, 8, x.Len())
	assert.Len(t, x.FreeSlots(), 8)
	assert.True(t, x.Has(key(4, "20:00", "B")))
	assert.False(t, x.Has(key(5, "20:00", "B")))
	assert.Equal(t, 1, x.Capacity("A"))
	assert.Equal(t, 2, x.Capacity("B"))
	assert.Equal(t, DefaultCapacity, x.Capacity("unknown"))

	slots := x.Slots()
	require.Len(t, slots, 8)
	assert.Equal(t, key(3, "18:00", "A"), slots[0].Key)
	assert.Equal(t, key(4, "20:00", "B"), slots[7].Key)
}

func TestOccupySlot(t *testing.T) {
	x := newTestIndex()
	a := key(3, "18:00", "A")

	assert.True(t, x.OccupySlot(a, "M1"))
	assert.True(t, x.OccupySlot(a, "M1"), "same occupant is accepted again")
	assert.False(t, x.OccupySlot(a, "M2"), "full slot rejects another match")
	assert.False(t, x.OccupySlot(key(9, "18:00", "A"), "M2"), "unknown slot")

	status, ok := x.Status(a)
	require.True(t, ok)
	assert.Equal(t, StatusOccupied, status)
	assert.Equal(t, []string{"M1"}, x.Occupants(a))
}

func TestOccupySlot_Capacity(t *testing.T) {
	x := newTestIndex()
	b := key(3, "18:00", "B")

	assert.True(t, x.OccupySlot(b, "M1"))
	status, _ := x.Status(b)
	assert.Equal(t, StatusFree, status)

	assert.True(t, x.OccupySlot(b, "M2"))
	status, _ = x.Status(b)
	assert.Equal(t, StatusOccupied, status)

	assert.False(t, x.OccupySlot(b, "M3"))
	assert.Equal(t, []string{"M1", "M2"}, x.Occupants(b))
}

func TestOccupySlot_RelocatesMatch(t *testing.T) {
	x := newTestIndex()

	require.True(t, x.OccupySlot(key(3, "18:00", "A"), "M1"))
	require.True(t, x.OccupySlot(key(4, "18:00", "A"), "M1"))

	assert.Empty(t, x.Occupants(key(3, "18:00", "A")))
	loc, ok := x.Location("M1")
	require.True(t, ok)
	assert.Equal(t, key(4, "18:00", "A"), loc)
}

func TestFreeSlot(t *testing.T) {
	x := newTestIndex()
	b := key(3, "18:00", "B")
	x.OccupySlot(b, "M1")
	x.OccupySlot(b, "M2")

	x.FreeSlot(b)
	assert.Empty(t, x.Occupants(b))
	_, ok := x.Location("M1")
	assert.False(t, ok)

	// no-op on free and unknown slots
	x.FreeSlot(b)
	x.FreeSlot(key(9, "18:00", "B"))
	assert.Len(t, x.FreeSlots(), 8)
}

func TestMoveMatch(t *testing.T) {
	x := newTestIndex()
	from := key(3, "18:00", "A")
	to := key(3, "20:00", "A")
	x.OccupySlot(from, "M1")
	x.OccupySlot(to, "M2")

	assert.False(t, x.MoveMatch("M1", &from, to), "occupied target")
	assert.Empty(t, x.Occupants(from), "old slot is released even when the occupy step fails")

	x.FreeSlot(to)
	assert.True(t, x.MoveMatch("M1", nil, to))
	assert.Equal(t, []string{"M1"}, x.Occupants(to))
}

func TestRebuild(t *testing.T) {
	x := newTestIndex()
	x.OccupySlot(key(4, "20:00", "A"), "stale")

	x.Rebuild([]schedule.Match{
		st.Match("M1", "LYON (1)", "PARIS", "F", st.Slot(3, "18:00", "A")),
		st.Match("M2", "NANTES", "LILLE", "M", st.Slot(3, "18:00", "A")),
		st.Match("M3", "NICE", "BREST", "M", st.Slot(7, "18:00", "A")),
		st.Match("M4", "METZ", "REIMS", "F", nil),
	})

	assert.Equal(t, []string{"M1"}, x.Occupants(key(3, "18:00", "A")))
	assert.Empty(t, x.Occupants(key(4, "20:00", "A")))
	_, ok := x.Location("M3")
	assert.False(t, ok, "slot outside the grid is not indexed")
}

func TestAttach_FollowsStateEvents(t *testing.T) {
	ctx := context.Background()
	originals := []schedule.Match{
		st.Match("M1", "LYON (1)", "PARIS", "F", st.Slot(3, "18:00", "A")),
		st.Match("M2", "NANTES", "LILLE", "M", st.Slot(3, "20:00", "A")),
		st.Match("M3", "NICE", "BREST", "M", nil),
	}
	mgr, err := state.New(ctx, originals, nil, storage.NewMemory(), state.Options{Logger: log.New(io.Discard)})
	require.NoError(t, err)

	x := newTestIndex()
	detach := x.Attach(mgr, mgr)
	defer detach()

	assert.Equal(t, []string{"M1"}, x.Occupants(key(3, "18:00", "A")))

	_, err = mgr.SaveModification(ctx, schedule.Modification{MatchID: "M1", New: st.Slot(4, "18:00", "B"), Action: schedule.ActionMove})
	require.NoError(t, err)
	assert.Empty(t, x.Occupants(key(3, "18:00", "A")))
	assert.Equal(t, []string{"M1"}, x.Occupants(key(4, "18:00", "B")))

	_, err = mgr.SaveModification(ctx, schedule.Modification{MatchID: "M2", Action: schedule.ActionUnschedule})
	require.NoError(t, err)
	assert.Empty(t, x.Occupants(key(3, "20:00", "A")))

	_, err = mgr.SaveModification(ctx, schedule.Modification{MatchID: "M3", New: st.Slot(3, "20:00", "A"), Action: schedule.ActionMove})
	require.NoError(t, err)
	assert.Equal(t, []string{"M3"}, x.Occupants(key(3, "20:00", "A")))

	_, err = mgr.UndoModification(ctx, "M1")
	require.NoError(t, err)
	assert.Equal(t, []string{"M1"}, x.Occupants(key(3, "18:00", "A")))
	assert.Empty(t, x.Occupants(key(4, "18:00", "B")))

	_, err = mgr.ResetAllModifications(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"M2"}, x.Occupants(key(3, "20:00", "A")))
	_, ok := x.Location("M3")
	assert.False(t, ok)
}

func TestAttach_MatchesRebuild(t *testing.T) {
	ctx := context.Background()
	originals := []schedule.Match{
		st.Match("M1", "LYON (1)", "PARIS", "F", st.Slot(3, "18:00", "A")),
		st.Match("M2", "NANTES", "LILLE", "M", st.Slot(3, "20:00", "B")),
	}
	mgr, err := state.New(ctx, originals, nil, storage.NewMemory(), state.Options{Logger: log.New(io.Discard)})
	require.NoError(t, err)

	synced := newTestIndex()
	synced.Attach(mgr, mgr)

	_, _ = mgr.SaveModification(ctx, schedule.Modification{MatchID: "M1", New: st.Slot(4, "20:00", "A"), Action: schedule.ActionMove})
	_, _ = mgr.SaveModification(ctx, schedule.Modification{MatchID: "M2", New: st.Slot(3, "18:00", "A"), Action: schedule.ActionMove})
	_, _ = mgr.SaveModification(ctx, schedule.Modification{MatchID: "M1", New: st.Slot(3, "18:00", "A"), Action: schedule.ActionMove})

	rebuilt := newTestIndex()
	rebuilt.Rebuild(mgr.CurrentMatches())

	assert.Equal(t, rebuilt.Slots(), synced.Slots())
}
