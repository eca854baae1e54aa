package history

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javiermolinar/matchplan/internal/metrics"
	"github.com/javiermolinar/matchplan/internal/schedule"
	st "github.com/javiermolinar/matchplan/internal/schedule/scheduletest"
	"github.com/javiermolinar/matchplan/internal/state"
	"github.com/javiermolinar/matchplan/internal/storage"
)

var fixedNow = time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)

func newTestHistory(t *testing.T, store storage.Store, limit int) (*Manager, *metrics.Mock) {
	t.Helper()
	mock := metrics.NewMock()
	h, err := New(context.Background(), store, Options{
		MaxEntries: limit,
		Logger:     log.New(io.Discard),
		Metrics:    mock,
		Now:        func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	return h, mock
}

func moveEntry(desc string) Entry {
	return Entry{
		Type:        TypeMove,
		Description: desc,
		Data: []Change{{
			MatchID: "M1",
			After:   &schedule.Modification{MatchID: "M1", New: st.Slot(4, "18:00", "A"), Action: schedule.ActionMove},
		}},
	}
}

func TestPushAction_FillsIDAndTimestamp(t *testing.T) {
	h, _ := newTestHistory(t, storage.NewMemory(), 0)

	e, err := h.PushAction(context.Background(), moveEntry("first"))
	require.NoError(t, err)

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, fixedNow, e.Timestamp)
	assert.True(t, h.CanUndo())
	assert.False(t, h.CanRedo())

	e2, err := h.PushAction(context.Background(), moveEntry("second"))
	require.NoError(t, err)
	assert.NotEqual(t, e.ID, e2.ID)
}

func TestPushAction_ClearsRedo(t *testing.T) {
	ctx := context.Background()
	h, _ := newTestHistory(t, storage.NewMemory(), 0)

	_, _ = h.PushAction(ctx, moveEntry("a"))
	_, ok, _ := h.Undo(ctx)
	require.True(t, ok)
	require.True(t, h.CanRedo())

	_, _ = h.PushAction(ctx, moveEntry("b"))
	assert.False(t, h.CanRedo())
}

func TestPushAction_BoundedDropsOldest(t *testing.T) {
	ctx := context.Background()
	h, _ := newTestHistory(t, storage.NewMemory(), 3)

	for i := 0; i < 5; i++ {
		_, err := h.PushAction(ctx, moveEntry(fmt.Sprintf("e%d", i)))
		require.NoError(t, err)
	}

	entries := h.UndoEntries()
	require.Len(t, entries, 3)
	assert.Equal(t, "e4", entries[0].Description)
	assert.Equal(t, "e2", entries[2].Description)
}

func TestDefaultMaxEntries(t *testing.T) {
	ctx := context.Background()
	h, _ := newTestHistory(t, storage.NewMemory(), 0)

	for i := 0; i < DefaultMaxEntries+10; i++ {
		_, _ = h.PushAction(ctx, moveEntry(fmt.Sprintf("e%d", i)))
	}
	assert.Len(t, h.UndoEntries(), DefaultMaxEntries)
}

func TestUndoRedo_InverseLaw(t *testing.T) {
	ctx := context.Background()
	h, mock := newTestHistory(t, storage.NewMemory(), 0)

	pushed, err := h.PushAction(ctx, moveEntry("move M1"))
	require.NoError(t, err)

	undone, ok, err := h.Undo(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, pushed, undone)
	assert.False(t, h.CanUndo())

	redone, ok, err := h.Redo(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, pushed, redone)
	assert.Equal(t, []Entry{pushed}, h.UndoEntries())
	assert.Empty(t, h.RedoEntries())

	assert.Equal(t, 1, mock.HistoryUndo())
	assert.Equal(t, 1, mock.HistoryRedo())
}

func TestUndoRedo_EmptyStacks(t *testing.T) {
	ctx := context.Background()
	h, mock := newTestHistory(t, storage.NewMemory(), 0)

	_, ok, err := h.Undo(ctx)
	assert.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = h.Redo(ctx)
	assert.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, 0, mock.HistoryUndo())
	assert.Equal(t, 0, mock.HistoryRedo())
}

func TestRevertToAction(t *testing.T) {
	ctx := context.Background()
	h, _ := newTestHistory(t, storage.NewMemory(), 0)

	var ids []string
	for i := 0; i < 4; i++ {
		e, err := h.PushAction(ctx, moveEntry(fmt.Sprintf("e%d", i)))
		require.NoError(t, err)
		ids = append(ids, e.ID)
	}

	var reversed []string
	n, err := h.RevertToAction(ctx, ids[1], func(e Entry) error {
		reversed = append(reversed, e.Description)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"e3", "e2"}, reversed)
	assert.Equal(t, ids[1], h.UndoEntries()[0].ID)
	assert.Len(t, h.RedoEntries(), 2)
}

func TestRevertToAction_TopIsNoop(t *testing.T) {
	ctx := context.Background()
	h, _ := newTestHistory(t, storage.NewMemory(), 0)
	e, _ := h.PushAction(ctx, moveEntry("only"))

	n, err := h.RevertToAction(ctx, e.ID, func(Entry) error {
		t.Fatal("nothing should be reversed")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRevertToAction_UnknownID(t *testing.T) {
	ctx := context.Background()
	h, _ := newTestHistory(t, storage.NewMemory(), 0)
	_, _ = h.PushAction(ctx, moveEntry("a"))

	n, err := h.RevertToAction(ctx, "missing", func(Entry) error { return nil })

	assert.ErrorIs(t, err, ErrEntryNotFound)
	assert.Equal(t, 0, n)
	assert.Len(t, h.UndoEntries(), 1)
}

func TestRevertToAction_StopsOnError(t *testing.T) {
	ctx := context.Background()
	h, _ := newTestHistory(t, storage.NewMemory(), 0)
	first, _ := h.PushAction(ctx, moveEntry("e0"))
	_, _ = h.PushAction(ctx, moveEntry("e1"))
	_, _ = h.PushAction(ctx, moveEntry("e2"))

	boom := errors.New("boom")
	calls := 0
	n, err := h.RevertToAction(ctx, first.ID, func(Entry) error {
		calls++
		if calls == 2 {
			return boom
		}
		return nil
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, n)
	assert.Equal(t, "e1", h.UndoEntries()[0].Description)
}

func TestPersistence_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	h, _ := newTestHistory(t, store, 0)

	a, _ := h.PushAction(ctx, moveEntry("a"))
	_, _ = h.PushAction(ctx, moveEntry("b"))
	_, _, _ = h.Undo(ctx)

	reloaded, _ := newTestHistory(t, store, 0)

	undo := reloaded.UndoEntries()
	require.Len(t, undo, 1)
	assert.Equal(t, a.ID, undo[0].ID)
	assert.Equal(t, TypeMove, undo[0].Type)
	assert.True(t, fixedNow.Equal(undo[0].Timestamp))
	require.Len(t, undo[0].Data, 1)
	assert.Equal(t, "M1", undo[0].Data[0].MatchID)
	assert.Nil(t, undo[0].Data[0].Before)
	require.NotNil(t, undo[0].Data[0].After)
	assert.Equal(t, *st.Slot(4, "18:00", "A"), *undo[0].Data[0].After.New)

	redo := reloaded.RedoEntries()
	require.Len(t, redo, 1)
	assert.Equal(t, "b", redo[0].Description)
}

func TestPersistence_IndependentOfModificationLog(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	h, _ := newTestHistory(t, store, 0)
	_, _ = h.PushAction(ctx, moveEntry("a"))

	_, ok, _ := store.Get(ctx, storage.KeyHistory)
	assert.True(t, ok)
	_, ok, _ = store.Get(ctx, storage.KeyModifications)
	assert.False(t, ok)
}

func TestPersistence_FailureIsNonFatal(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	h, mock := newTestHistory(t, store, 0)
	store.FailWith = storage.ErrQuotaExceeded

	_, err := h.PushAction(ctx, moveEntry("a"))

	assert.ErrorIs(t, err, state.ErrPersistence)
	assert.ErrorIs(t, err, storage.ErrQuotaExceeded)
	assert.True(t, h.CanUndo())
	assert.Equal(t, 1, mock.PersistenceFailures())
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	h, _ := newTestHistory(t, storage.NewMemory(), 0)
	_, _ = h.PushAction(ctx, moveEntry("a"))
	_, _ = h.PushAction(ctx, moveEntry("b"))
	_, _, _ = h.Undo(ctx)

	require.NoError(t, h.Clear(ctx))
	assert.False(t, h.CanUndo())
	assert.False(t, h.CanRedo())
}
