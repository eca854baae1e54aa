// Package history keeps the bounded undo/redo stacks of user actions.
//
// The stacks are a convenience layer over the modification log: they record
// what each action changed so it can be reversed, but the state manager stays
// the authority on the current schedule.
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/javiermolinar/matchplan/internal/metrics"
	"github.com/javiermolinar/matchplan/internal/schedule"
	"github.com/javiermolinar/matchplan/internal/state"
	"github.com/javiermolinar/matchplan/internal/storage"
)

// DefaultMaxEntries bounds each stack.
const DefaultMaxEntries = 50

// ErrEntryNotFound is returned when reverting to an id that is not on the undo stack.
var ErrEntryNotFound = errors.New("history entry not found")

// EntryType names the user action that produced an entry.
type EntryType string

const (
	TypeMove         EntryType = "move"
	TypeSwap         EntryType = "swap"
	TypeUnschedule   EntryType = "unschedule"
	TypeForceReplace EntryType = "force-replace"
	TypeRevert       EntryType = "revert"
	TypeReset        EntryType = "reset"
	TypeSuggestion   EntryType = "suggestion"
	TypeImport       EntryType = "import"
)

// Change records the log entry of one match before and after an action.
// A nil modification means the match had no entry.
type Change struct {
	MatchID string                 `msgpack:"match_id"`
	Before  *schedule.Modification `msgpack:"before"`
	After   *schedule.Modification `msgpack:"after"`
}

// Entry is one undoable action.
type Entry struct {
	ID          string    `msgpack:"id"`
	Type        EntryType `msgpack:"type"`
	Description string    `msgpack:"description"`
	Data        []Change  `msgpack:"data"`
	Timestamp   time.Time `msgpack:"timestamp"`
}

// Options configures a Manager.
type Options struct {
	MaxEntries int
	Logger     *log.Logger
	Metrics    metrics.Metrics
	Now        func() time.Time
	StorageKey string
}

// Manager owns the undo and redo stacks.
type Manager struct {
	undo []Entry
	redo []Entry
	max  int

	store   storage.Store
	key     string
	logger  *log.Logger
	metrics metrics.Metrics
	now     func() time.Time
}

type stacks struct {
	Undo []Entry `msgpack:"undo"`
	Redo []Entry `msgpack:"redo"`
}

// New creates a Manager and loads the persisted stacks.
func New(ctx context.Context, store storage.Store, opts Options) (*Manager, error) {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Noop{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.StorageKey == "" {
		opts.StorageKey = storage.KeyHistory
	}

	h := &Manager{
		max:     opts.MaxEntries,
		store:   store,
		key:     opts.StorageKey,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		now:     opts.Now,
	}

	data, ok, err := store.Get(ctx, h.key)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	if ok && len(data) > 0 {
		var s stacks
		if err := msgpack.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("decoding history: %w", err)
		}
		h.undo = bound(s.Undo, h.max)
		h.redo = bound(s.Redo, h.max)
	}
	return h, nil
}

// PushAction records a new action and clears the redo stack. A missing id or
// timestamp is filled in. The stored entry is returned.
func (h *Manager) PushAction(ctx context.Context, e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = h.now()
	}
	e = e.clone()

	h.undo = bound(append(h.undo, e), h.max)
	h.redo = nil
	h.logger.Debug("history push", "id", e.ID, "type", e.Type, "undo", len(h.undo))

	return e.clone(), h.persist(ctx)
}

// Undo moves the newest entry to the redo stack and returns it for the
// caller to reverse. It returns false when there is nothing to undo.
func (h *Manager) Undo(ctx context.Context) (Entry, bool, error) {
	if len(h.undo) == 0 {
		return Entry{}, false, nil
	}
	e := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = bound(append(h.redo, e), h.max)
	h.metrics.IncHistoryUndo()

	return e.clone(), true, h.persist(ctx)
}

// Redo moves the newest undone entry back to the undo stack and returns it
// for the caller to reapply. It returns false when there is nothing to redo.
func (h *Manager) Redo(ctx context.Context) (Entry, bool, error) {
	if len(h.redo) == 0 {
		return Entry{}, false, nil
	}
	e := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	h.undo = bound(append(h.undo, e), h.max)
	h.metrics.IncHistoryRedo()

	return e.clone(), true, h.persist(ctx)
}

// RevertToAction undoes entries until id is on top of the undo stack, handing
// each one to reverse. It stops at the first reverse error, leaving that
// entry on the undo stack. The number of reverted entries is returned.
func (h *Manager) RevertToAction(ctx context.Context, id string, reverse func(Entry) error) (int, error) {
	pos := -1
	for i := range h.undo {
		if h.undo[i].ID == id {
			pos = i
		}
	}
	if pos < 0 {
		return 0, fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}

	n := 0
	for len(h.undo)-1 > pos {
		top := h.undo[len(h.undo)-1]
		if err := reverse(top.clone()); err != nil {
			return n, errors.Join(err, h.persist(ctx))
		}
		h.undo = h.undo[:len(h.undo)-1]
		h.redo = bound(append(h.redo, top), h.max)
		h.metrics.IncHistoryUndo()
		n++
	}
	return n, h.persist(ctx)
}

// Clear empties both stacks.
func (h *Manager) Clear(ctx context.Context) error {
	h.undo, h.redo = nil, nil
	return h.persist(ctx)
}

// UndoEntries returns the undo stack, newest first.
func (h *Manager) UndoEntries() []Entry {
	return newestFirst(h.undo)
}

// RedoEntries returns the redo stack, newest first.
func (h *Manager) RedoEntries() []Entry {
	return newestFirst(h.redo)
}

// CanUndo returns true if the undo stack is not empty.
func (h *Manager) CanUndo() bool { return len(h.undo) > 0 }

// CanRedo returns true if the redo stack is not empty.
func (h *Manager) CanRedo() bool { return len(h.redo) > 0 }

func (h *Manager) persist(ctx context.Context) error {
	data, err := msgpack.Marshal(stacks{Undo: h.undo, Redo: h.redo})
	if err == nil {
		err = h.store.Set(ctx, h.key, data)
	}
	if err != nil {
		h.metrics.IncPersistenceFailures()
		h.logger.Warn("history not persisted", "error", err)
		return fmt.Errorf("%w: history: %w", state.ErrPersistence, err)
	}
	return nil
}

// bound drops the oldest entries beyond max.
func bound(entries []Entry, limit int) []Entry {
	if len(entries) <= limit {
		return entries
	}
	return append([]Entry(nil), entries[len(entries)-limit:]...)
}

func newestFirst(entries []Entry) []Entry {
	out := make([]Entry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		out = append(out, entries[i].clone())
	}
	return out
}

func (e Entry) clone() Entry {
	c := e
	if e.Data == nil {
		return c
	}
	c.Data = make([]Change, len(e.Data))
	for i, ch := range e.Data {
		c.Data[i] = Change{MatchID: ch.MatchID, Before: cloneMod(ch.Before), After: cloneMod(ch.After)}
	}
	return c
}

func cloneMod(m *schedule.Modification) *schedule.Modification {
	if m == nil {
		return nil
	}
	c := m.Clone()
	return &c
}
