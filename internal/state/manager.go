// Package state owns the authoritative schedule: the frozen original solution,
// the modification log and the current match set derived from both.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/log"

	"github.com/javiermolinar/matchplan/internal/events"
	"github.com/javiermolinar/matchplan/internal/metrics"
	"github.com/javiermolinar/matchplan/internal/schedule"
	"github.com/javiermolinar/matchplan/internal/storage"
)

// ErrPersistence wraps store failures. When returned alongside an accepted
// write, the in-memory state and notifications have already been applied.
var ErrPersistence = errors.New("persisting modification log")

// ImportMode selects how imported modifications combine with the log.
type ImportMode int

const (
	// ImportReplace discards the existing log first.
	ImportReplace ImportMode = iota
	// ImportMerge overlays imported entries on the existing log.
	ImportMerge
)

// Options configures a Manager.
type Options struct {
	Logger     *log.Logger
	Metrics    metrics.Metrics
	Now        func() time.Time
	StorageKey string
}

// Manager is the single source of truth for the current schedule.
type Manager struct {
	originals   []schedule.Match
	originalIdx map[string]int
	slots       []schedule.SlotKey

	entries map[string]schedule.Modification
	current []schedule.Match

	store   storage.Store
	key     string
	bus     *events.Bus[Event]
	logger  *log.Logger
	metrics metrics.Metrics
	now     func() time.Time
}

var _ Publisher = (*Manager)(nil)

// New freezes originals and slots, then loads the persisted modification log.
func New(ctx context.Context, originals []schedule.Match, slots []schedule.SlotKey, store storage.Store, opts Options) (*Manager, error) {
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
		opts.StorageKey = storage.KeyModifications
	}

	m := &Manager{
		originals:   schedule.CloneAll(originals),
		originalIdx: make(map[string]int, len(originals)),
		slots:       append([]schedule.SlotKey(nil), slots...),
		entries:     make(map[string]schedule.Modification),
		store:       store,
		key:         opts.StorageKey,
		bus:         events.NewBus[Event](opts.Logger),
		logger:      opts.Logger,
		metrics:     opts.Metrics,
		now:         opts.Now,
	}

	for i := range m.originals {
		if err := m.originals[i].Validate(); err != nil {
			return nil, err
		}
		id := m.originals[i].ID
		if _, dup := m.originalIdx[id]; dup {
			return nil, fmt.Errorf("%w: %s", schedule.ErrDuplicateMatchID, id)
		}
		m.originalIdx[id] = i
	}

	if err := m.load(ctx); err != nil {
		return nil, err
	}
	m.recompute()

	return m, nil
}

// Subscribe registers a listener for state events.
func (m *Manager) Subscribe(fn func(Event)) (unsubscribe func()) {
	return m.bus.Subscribe(fn)
}

// CurrentMatches returns a deep copy of the derived schedule.
func (m *Manager) CurrentMatches() []schedule.Match {
	return schedule.CloneAll(m.current)
}

// OriginalMatches returns a deep copy of the frozen solution.
func (m *Manager) OriginalMatches() []schedule.Match {
	return schedule.CloneAll(m.originals)
}

// OriginalSlots returns the slots supplied with the solution, as passed to New.
func (m *Manager) OriginalSlots() []schedule.SlotKey {
	return append([]schedule.SlotKey(nil), m.slots...)
}

// Match returns the current state of a match.
func (m *Manager) Match(id string) (schedule.Match, bool) {
	i, ok := m.originalIdx[id]
	if !ok {
		return schedule.Match{}, false
	}
	return m.current[i].Clone(), true
}

// OriginalMatch returns the frozen original of a match.
func (m *Manager) OriginalMatch(id string) (schedule.Match, bool) {
	i, ok := m.originalIdx[id]
	if !ok {
		return schedule.Match{}, false
	}
	return m.originals[i].Clone(), true
}

// Modification returns the log entry for a match.
func (m *Manager) Modification(id string) (schedule.Modification, bool) {
	mod, ok := m.entries[id]
	if !ok {
		return schedule.Modification{}, false
	}
	return mod.Clone(), true
}

// Modifications returns the log sorted by match id.
func (m *Manager) Modifications() []schedule.Modification {
	out := make([]schedule.Modification, 0, len(m.entries))
	for _, id := range m.sortedIDs() {
		out = append(out, m.entries[id].Clone())
	}
	return out
}

// Len returns the number of log entries.
func (m *Manager) Len() int {
	return len(m.entries)
}

// SaveModification writes mod to the log, keyed by match id.
// It returns false without side effects for no-ops, unknown matches and
// repeats of the current entry. A non-nil error wrapping ErrPersistence means
// the write was applied in memory but could not be stored.
func (m *Manager) SaveModification(ctx context.Context, mod schedule.Modification) (bool, error) {
	if mod.Original != nil && mod.IsNoop() {
		return false, nil
	}
	if !mod.Action.Valid() {
		return false, fmt.Errorf("%w: %q", schedule.ErrInvalidAction, mod.Action)
	}
	idx, ok := m.originalIdx[mod.MatchID]
	if !ok {
		m.logger.Warn("ignoring modification for unknown match", "match_id", mod.MatchID)
		return false, nil
	}
	if mod.New != nil {
		if err := mod.New.Validate(); err != nil {
			return false, fmt.Errorf("match %s: %w", mod.MatchID, err)
		}
	}

	entry := mod.Clone()
	entry.Original = schedule.CopySlot(m.originals[idx].Slot)
	if entry.Timestamp.IsZero() {
		entry.Timestamp = m.now()
	}

	existing, had := m.entries[entry.MatchID]
	switch {
	case had && schedule.SameSlot(existing.New, entry.New) && existing.Action == entry.Action:
		return false, nil
	case !had && schedule.SameSlot(m.current[idx].Slot, entry.New):
		return false, nil
	case had && schedule.SameSlot(entry.Original, entry.New):
		// Moving back onto the original assignment drops the entry.
		return true, m.remove(ctx, existing)
	}

	m.entries[entry.MatchID] = entry
	perr := m.persist(ctx)
	m.recompute()
	m.metrics.IncModificationsSaved()
	m.logger.Debug("modification saved", "match_id", entry.MatchID, "action", entry.Action, "new", slotString(entry.New))

	published := entry.Clone()
	m.bus.Publish(Event{Type: EventModificationSaved, MatchID: entry.MatchID, Modification: &published})
	return true, perr
}

// UndoModification deletes the log entry for id. It returns false if there
// is none.
func (m *Manager) UndoModification(ctx context.Context, id string) (bool, error) {
	existing, ok := m.entries[id]
	if !ok {
		m.logger.Debug("no modification to undo", "match_id", id)
		return false, nil
	}
	return true, m.remove(ctx, existing)
}

// ResetAllModifications clears the log and returns the number of entries removed.
func (m *Manager) ResetAllModifications(ctx context.Context) (int, error) {
	count := len(m.entries)
	m.entries = make(map[string]schedule.Modification)

	var perr error
	if err := m.store.Remove(ctx, m.key); err != nil {
		perr = m.persistFailed(err)
	}
	m.recompute()
	m.metrics.IncResets()
	m.logger.Info("all modifications reset", "count", count)

	m.bus.Publish(Event{Type: EventAllModificationsReset, Count: count})
	return count, perr
}

// ImportModifications loads mods into the log with the given mode and returns
// the number of entries applied. Unknown matches and no-ops are skipped.
func (m *Manager) ImportModifications(ctx context.Context, mods []schedule.Modification, mode ImportMode) (int, error) {
	next := make(map[string]schedule.Modification, len(mods))
	if mode == ImportMerge {
		for id, e := range m.entries {
			next[id] = e
		}
	}

	applied := 0
	for _, mod := range mods {
		idx, ok := m.originalIdx[mod.MatchID]
		if !ok {
			m.logger.Warn("skipping imported modification for unknown match", "match_id", mod.MatchID)
			continue
		}
		if !mod.Action.Valid() {
			m.logger.Warn("skipping imported modification with invalid action", "match_id", mod.MatchID, "action", mod.Action)
			continue
		}
		entry := mod.Clone()
		entry.Original = schedule.CopySlot(m.originals[idx].Slot)
		if entry.IsNoop() {
			delete(next, entry.MatchID)
			continue
		}
		if entry.Timestamp.IsZero() {
			entry.Timestamp = m.now()
		}
		next[entry.MatchID] = entry
		applied++
	}

	m.entries = next
	perr := m.persist(ctx)
	m.recompute()
	m.metrics.IncImports()
	m.logger.Info("modifications imported", "applied", applied, "total", len(m.entries))

	m.bus.Publish(Event{Type: EventModificationsImported, Count: applied})
	return applied, perr
}

func (m *Manager) remove(ctx context.Context, existing schedule.Modification) error {
	delete(m.entries, existing.MatchID)
	perr := m.persist(ctx)
	m.recompute()
	m.metrics.IncModificationsUndone()
	m.logger.Debug("modification undone", "match_id", existing.MatchID)

	removed := existing.Clone()
	m.bus.Publish(Event{Type: EventModificationUndone, MatchID: existing.MatchID, Modification: &removed})
	return perr
}

// recompute rebuilds the current matches from the originals and the log.
// Entries are applied in match id order so insertion order never matters.
func (m *Manager) recompute() {
	current := schedule.CloneAll(m.originals)
	for _, id := range m.sortedIDs() {
		idx, ok := m.originalIdx[id]
		if !ok {
			m.logger.Warn("modification references missing match, skipping", "match_id", id)
			continue
		}
		current[idx].Slot = schedule.CopySlot(m.entries[id].New)
	}
	m.current = current
}

func (m *Manager) sortedIDs() []string {
	ids := make([]string, 0, len(m.entries))
	for id := range m.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// logEntry is the persisted shape of a modification, keyed by match id.
type logEntry struct {
	Original  *schedule.SlotKey `json:"original"`
	New       *schedule.SlotKey `json:"new"`
	Timestamp time.Time         `json:"timestamp"`
	Action    schedule.Action   `json:"action"`
}

func (m *Manager) load(ctx context.Context) error {
	data, ok, err := m.store.Get(ctx, m.key)
	if err != nil {
		return fmt.Errorf("loading modification log: %w", err)
	}
	if !ok || len(data) == 0 {
		return nil
	}

	var stored map[string]logEntry
	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("decoding modification log: %w", err)
	}

	for id, e := range stored {
		mod := schedule.Modification{
			MatchID:   id,
			Original:  e.Original,
			New:       e.New,
			Timestamp: e.Timestamp,
			Action:    e.Action,
		}
		// The solution may have been regenerated since the log was written.
		if idx, known := m.originalIdx[id]; known {
			mod.Original = schedule.CopySlot(m.originals[idx].Slot)
			if schedule.SameSlot(mod.Original, mod.New) {
				m.logger.Warn("dropping stored modification that matches the original assignment", "match_id", id)
				continue
			}
		}
		m.entries[id] = mod
	}
	m.logger.Debug("modification log loaded", "entries", len(m.entries))
	return nil
}

func (m *Manager) persist(ctx context.Context) error {
	stored := make(map[string]logEntry, len(m.entries))
	for id, e := range m.entries {
		stored[id] = logEntry{Original: e.Original, New: e.New, Timestamp: e.Timestamp, Action: e.Action}
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return m.persistFailed(err)
	}
	if err := m.store.Set(ctx, m.key, data); err != nil {
		return m.persistFailed(err)
	}
	return nil
}

func (m *Manager) persistFailed(err error) error {
	m.metrics.IncPersistenceFailures()
	m.logger.Warn("modification log not persisted, export your edits before closing", "error", err)
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}

func slotString(k *schedule.SlotKey) string {
	if k == nil {
		return "unscheduled"
	}
	return k.String()
}
