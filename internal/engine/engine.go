// Package engine composes the schedule managers and gates every write
// through validation, the modification log and the history stacks.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/log"

	"github.com/javiermolinar/matchplan/internal/conflict"
	"github.com/javiermolinar/matchplan/internal/exchange"
	"github.com/javiermolinar/matchplan/internal/history"
	"github.com/javiermolinar/matchplan/internal/metrics"
	"github.com/javiermolinar/matchplan/internal/resolver"
	"github.com/javiermolinar/matchplan/internal/schedule"
	"github.com/javiermolinar/matchplan/internal/slots"
	"github.com/javiermolinar/matchplan/internal/state"
)

// Status is the result kind of a write.
type Status string

const (
	StatusCommitted         Status = "committed"
	StatusRejected          Status = "rejected"
	StatusNeedsConfirmation Status = "needs_confirmation"
	StatusUnchanged         Status = "unchanged"
)

// Outcome describes what a write did. PersistWarning is set when the write
// was applied but could not be stored.
type Outcome struct {
	Status         Status
	Reason         string
	Warnings       []schedule.Conflict
	PersistWarning error
	Entry          *history.Entry
}

// Committed returns true if the write was applied.
func (o Outcome) Committed() bool {
	return o.Status == StatusCommitted
}

func rejected(reason string) Outcome {
	return Outcome{Status: StatusRejected, Reason: reason}
}

// Deps are the collaborators of an Engine.
type Deps struct {
	State    *state.Manager
	Slots    *slots.Index
	History  *history.Manager
	Detector conflict.Detector
	Resolver resolver.Resolver
	Penalty  exchange.PenaltyFunc
	Logger   *log.Logger
	Metrics  metrics.Metrics
}

// Engine is the command surface used by the presentation layer.
type Engine struct {
	state     *state.Manager
	slots     *slots.Index
	history   *history.Manager
	detector  conflict.Detector
	resolver  resolver.Resolver
	validator Validator
	penalty   exchange.PenaltyFunc
	logger    *log.Logger
	metrics   metrics.Metrics
	detach    func()
}

// New wires the collaborators together and attaches the slot index to the
// state events. A detector without a grid check uses the slot index.
func New(d Deps) *Engine {
	if d.Logger == nil {
		d.Logger = log.Default()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.Noop{}
	}
	if d.Detector.InGrid == nil && d.Slots != nil {
		d.Detector.InGrid = d.Slots.Has
	}

	e := &Engine{
		state:     d.State,
		slots:     d.Slots,
		history:   d.History,
		detector:  d.Detector,
		resolver:  d.Resolver,
		validator: Validator{Detector: d.Detector},
		penalty:   d.Penalty,
		logger:    d.Logger,
		metrics:   d.Metrics,
	}
	e.detach = d.Slots.Attach(d.State, d.State)
	return e
}

// Close detaches the slot index from the state events.
func (e *Engine) Close() {
	if e.detach != nil {
		e.detach()
		e.detach = nil
	}
}

// Validator returns the write gate used by the engine.
func (e *Engine) Validator() Validator {
	return e.validator
}

// CurrentMatches returns the derived schedule.
func (e *Engine) CurrentMatches() []schedule.Match {
	return e.state.CurrentMatches()
}

// Match returns the current state of a match.
func (e *Engine) Match(id string) (schedule.Match, bool) {
	return e.state.Match(id)
}

// OriginalMatch returns the frozen original of a match.
func (e *Engine) OriginalMatch(id string) (schedule.Match, bool) {
	return e.state.OriginalMatch(id)
}

// Modifications returns the log sorted by match id.
func (e *Engine) Modifications() []schedule.Modification {
	return e.state.Modifications()
}

// OriginalSlots returns the slots supplied with the solution: assignments
// and free slots.
func (e *Engine) OriginalSlots() []schedule.SlotKey {
	return e.state.OriginalSlots()
}

// Slots returns the occupancy of every grid slot.
func (e *Engine) Slots() []slots.Slot {
	return e.slots.Slots()
}

// FreeSlots returns the slots with spare capacity.
func (e *Engine) FreeSlots() []schedule.SlotKey {
	return e.slots.FreeSlots()
}

// History returns the undo and redo stacks, newest first.
func (e *Engine) History() (undo, redo []history.Entry) {
	return e.history.UndoEntries(), e.history.RedoEntries()
}

// Conflicts runs detection over the current schedule.
func (e *Engine) Conflicts() conflict.Map {
	start := time.Now()
	m := e.detector.DetectAll(e.state.CurrentMatches())
	e.metrics.ObserveDetectionDuration(time.Since(start).Seconds())

	s := m.Summary()
	e.metrics.SetConflicts(s.Critical, s.Warning)
	return m
}

// Suggestions proposes fixes for the current conflicts.
func (e *Engine) Suggestions() []schedule.Suggestion {
	return e.resolver.GenerateSuggestions(e.state.CurrentMatches(), e.Conflicts(), e.slots.FreeSlots())
}

// Move places matchID at target. Occupied slots are rejected unless
// opts.Swap or opts.Force selects an override path. Warnings require
// opts.Confirmed.
func (e *Engine) Move(ctx context.Context, matchID string, target schedule.SlotKey, opts MoveOptions) Outcome {
	current := e.state.CurrentMatches()
	m := schedule.Find(current, matchID)
	if m == nil {
		e.logger.Warn("move of unknown match", "match_id", matchID)
		return rejected(ReasonMatchNotFound)
	}
	if m.Slot != nil && *m.Slot == target {
		return Outcome{Status: StatusUnchanged, Reason: "already at " + target.String()}
	}
	if opts.Force {
		return e.ForceReplace(ctx, matchID, target, opts.Confirmed)
	}

	check := e.validator.ValidateMove(current, matchID, target, opts)
	if !check.CanMove {
		return rejected(check.Reason)
	}
	if opts.Swap && len(check.Occupants) > 0 && len(check.Occupants) >= e.detector.Capacities.For(target.Venue) {
		return e.Swap(ctx, matchID, check.Occupants[0], opts.Confirmed)
	}
	if check.RequiresConfirmation && !opts.Confirmed {
		return Outcome{Status: StatusNeedsConfirmation, Warnings: check.Warnings}
	}

	slot := target
	out := e.commit(ctx, history.TypeMove, fmt.Sprintf("Move %s to %s", matchID, target), []op{
		{matchID: matchID, mod: &schedule.Modification{MatchID: matchID, New: &slot, Action: schedule.ActionMove}},
	})
	out.Warnings = check.Warnings
	return out
}

// Swap exchanges the slots of two scheduled matches.
func (e *Engine) Swap(ctx context.Context, a, b string, confirmed bool) Outcome {
	current := e.state.CurrentMatches()
	check := e.validator.ValidateSwap(current, a, b)
	if !check.CanSwap {
		return rejected(check.Reason)
	}
	if check.RequiresConfirmation && !confirmed {
		return Outcome{Status: StatusNeedsConfirmation, Warnings: check.Warnings}
	}

	ma, mb := schedule.Find(current, a), schedule.Find(current, b)
	out := e.commit(ctx, history.TypeSwap, fmt.Sprintf("Swap %s and %s", a, b), []op{
		{matchID: a, mod: &schedule.Modification{MatchID: a, New: schedule.CopySlot(mb.Slot), Action: schedule.ActionSwap}},
		{matchID: b, mod: &schedule.Modification{MatchID: b, New: schedule.CopySlot(ma.Slot), Action: schedule.ActionSwap}},
	})
	out.Warnings = check.Warnings
	return out
}

// ForceReplace unschedules every other match in target, then places matchID
// there. The displaced matches are not re-validated.
func (e *Engine) ForceReplace(ctx context.Context, matchID string, target schedule.SlotKey, confirmed bool) Outcome {
	current := e.state.CurrentMatches()
	check := e.validator.ValidateMove(current, matchID, target, MoveOptions{Force: true})
	if !check.CanMove {
		return rejected(check.Reason)
	}
	if check.RequiresConfirmation && !confirmed {
		return Outcome{Status: StatusNeedsConfirmation, Warnings: check.Warnings}
	}

	ops := make([]op, 0, len(check.Occupants)+1)
	for _, id := range check.Occupants {
		ops = append(ops, op{matchID: id, mod: &schedule.Modification{MatchID: id, Action: schedule.ActionForceReplace}})
	}
	slot := target
	ops = append(ops, op{matchID: matchID, mod: &schedule.Modification{MatchID: matchID, New: &slot, Action: schedule.ActionMove}})

	out := e.commit(ctx, history.TypeForceReplace, fmt.Sprintf("Force %s into %s", matchID, target), ops)
	out.Warnings = check.Warnings
	return out
}

// Unschedule clears the assignment of matchID.
func (e *Engine) Unschedule(ctx context.Context, matchID string) Outcome {
	if _, ok := e.state.Match(matchID); !ok {
		e.logger.Warn("unschedule of unknown match", "match_id", matchID)
		return rejected(ReasonMatchNotFound)
	}
	return e.commit(ctx, history.TypeUnschedule, "Unschedule "+matchID, []op{
		{matchID: matchID, mod: &schedule.Modification{MatchID: matchID, Action: schedule.ActionUnschedule}},
	})
}

// Revert drops the log entry of matchID, restoring its original assignment.
func (e *Engine) Revert(ctx context.Context, matchID string) Outcome {
	if _, ok := e.state.Modification(matchID); !ok {
		return Outcome{Status: StatusUnchanged, Reason: "no modification for " + matchID}
	}
	return e.commit(ctx, history.TypeRevert, "Revert "+matchID, []op{{matchID: matchID}})
}

// Reset clears the whole log as one undoable action.
func (e *Engine) Reset(ctx context.Context) (int, Outcome) {
	before := e.state.Modifications()
	if len(before) == 0 {
		return 0, Outcome{Status: StatusUnchanged, Reason: "no modifications"}
	}

	count, err := e.state.ResetAllModifications(ctx)
	changes := make([]history.Change, 0, len(before))
	for i := range before {
		changes = append(changes, history.Change{MatchID: before[i].MatchID, Before: &before[i]})
	}

	out := Outcome{Status: StatusCommitted, PersistWarning: err}
	e.record(ctx, &out, history.Entry{Type: history.TypeReset, Description: fmt.Sprintf("Reset %d modifications", count), Data: changes})
	e.Conflicts()
	return count, out
}

// ApplySuggestion validates and commits a suggestion. Warnings do not block
// an accepted suggestion.
func (e *Engine) ApplySuggestion(ctx context.Context, s schedule.Suggestion) Outcome {
	current := e.state.CurrentMatches()
	var warnings []schedule.Conflict
	switch s.Action.Type {
	case schedule.SuggestionMove:
		check := e.validator.ValidateMove(current, s.Action.MatchID, s.Action.Target, MoveOptions{})
		if !check.CanMove {
			return rejected(check.Reason)
		}
		warnings = check.Warnings
	case schedule.SuggestionSwap:
		check := e.validator.ValidateSwap(current, s.Action.MatchID, s.Action.OtherID)
		if !check.CanSwap {
			return rejected(check.Reason)
		}
		warnings = check.Warnings
	}

	mods, err := resolver.ApplySuggestion(s, current)
	if err != nil {
		return rejected(err.Error())
	}
	ops := make([]op, 0, len(mods))
	for i := range mods {
		ops = append(ops, op{matchID: mods[i].MatchID, mod: &mods[i]})
	}

	out := e.commit(ctx, history.TypeSuggestion, s.Description, ops)
	out.Warnings = warnings
	if out.Committed() {
		e.metrics.IncSuggestionsApplied()
	}
	return out
}

// Undo reverses the newest history entry.
func (e *Engine) Undo(ctx context.Context) Outcome {
	entry, ok, err := e.history.Undo(ctx)
	if !ok {
		return Outcome{Status: StatusUnchanged, Reason: "nothing to undo"}
	}
	out := Outcome{Status: StatusCommitted, Entry: &entry}
	out.PersistWarning = joinPersist(err, e.reverse(ctx, entry))
	return out
}

// Redo reapplies the newest undone entry.
func (e *Engine) Redo(ctx context.Context) Outcome {
	entry, ok, err := e.history.Redo(ctx)
	if !ok {
		return Outcome{Status: StatusUnchanged, Reason: "nothing to redo"}
	}
	out := Outcome{Status: StatusCommitted, Entry: &entry, PersistWarning: joinPersist(nil, err)}
	for _, ch := range entry.Data {
		out.PersistWarning = joinPersist(out.PersistWarning, e.restore(ctx, ch.MatchID, ch.After))
	}
	return out
}

// RevertTo undoes every action recorded after id.
func (e *Engine) RevertTo(ctx context.Context, id string) (int, error) {
	var perr error
	n, err := e.history.RevertToAction(ctx, id, func(entry history.Entry) error {
		if rerr := e.reverse(ctx, entry); rerr != nil {
			if !errors.Is(rerr, state.ErrPersistence) {
				return rerr
			}
			perr = joinPersist(perr, rerr)
		}
		return nil
	})
	if err != nil {
		return n, err
	}
	return n, perr
}

// Export builds the exchange document of the current log.
func (e *Engine) Export(opts exchange.Options) exchange.Document {
	mods := e.state.Modifications()
	stats := exchange.ComputeStatistics(mods, e.state.OriginalMatches(), e.state.CurrentMatches(), e.detector, e.penalty)
	return exchange.Build(mods, stats, opts)
}

// Import loads a document into the log as one undoable action and returns
// the number of entries applied.
func (e *Engine) Import(ctx context.Context, doc exchange.Document, mode state.ImportMode) (int, Outcome) {
	before := indexMods(e.state.Modifications())

	n, err := e.state.ImportModifications(ctx, doc.ToModifications(), mode)
	after := indexMods(e.state.Modifications())

	var changes []history.Change
	for _, id := range unionIDs(before, after) {
		b, a := before[id], after[id]
		if b != nil && a != nil && b.SameEffect(*a) {
			continue
		}
		changes = append(changes, history.Change{MatchID: id, Before: b, After: a})
	}

	out := Outcome{Status: StatusCommitted, PersistWarning: joinPersist(nil, err)}
	if len(changes) == 0 {
		out.Status = StatusUnchanged
		return n, out
	}
	e.record(ctx, &out, history.Entry{Type: history.TypeImport, Description: fmt.Sprintf("Import %d modifications", n), Data: changes})
	return n, out
}

// op sets the log entry of one match. A nil mod drops the entry.
type op struct {
	matchID string
	mod     *schedule.Modification
}

// commit applies ops and records them as one history entry.
func (e *Engine) commit(ctx context.Context, typ history.EntryType, desc string, ops []op) Outcome {
	var out Outcome
	changes := make([]history.Change, 0, len(ops))

	for _, o := range ops {
		before := e.modification(o.matchID)
		if err := e.restore(ctx, o.matchID, o.mod); err != nil {
			if !errors.Is(err, state.ErrPersistence) {
				return rejected(err.Error())
			}
			out.PersistWarning = joinPersist(out.PersistWarning, err)
		}
		after := e.modification(o.matchID)
		if schedule.SameSlot(slotOf(before), slotOf(after)) && (before == nil) == (after == nil) {
			continue
		}
		changes = append(changes, history.Change{MatchID: o.matchID, Before: before, After: after})
	}

	if len(changes) == 0 {
		out.Status = StatusUnchanged
		return out
	}
	out.Status = StatusCommitted
	e.record(ctx, &out, history.Entry{Type: typ, Description: desc, Data: changes})
	e.Conflicts()
	return out
}

func (e *Engine) record(ctx context.Context, out *Outcome, entry history.Entry) {
	stored, err := e.history.PushAction(ctx, entry)
	out.PersistWarning = joinPersist(out.PersistWarning, err)
	out.Entry = &stored
	e.logger.Info("action committed", "type", entry.Type, "description", entry.Description, "changes", len(entry.Data))
}

// reverse restores the before state of every change, newest change first.
func (e *Engine) reverse(ctx context.Context, entry history.Entry) error {
	var perr error
	for i := len(entry.Data) - 1; i >= 0; i-- {
		ch := entry.Data[i]
		if err := e.restore(ctx, ch.MatchID, ch.Before); err != nil {
			if !errors.Is(err, state.ErrPersistence) {
				return err
			}
			perr = joinPersist(perr, err)
		}
	}
	return perr
}

// restore makes the log entry of matchID equal to mod.
func (e *Engine) restore(ctx context.Context, matchID string, mod *schedule.Modification) error {
	if mod == nil {
		_, err := e.state.UndoModification(ctx, matchID)
		return err
	}
	_, err := e.state.SaveModification(ctx, mod.Clone())
	return err
}

func (e *Engine) modification(id string) *schedule.Modification {
	m, ok := e.state.Modification(id)
	if !ok {
		return nil
	}
	return &m
}

func slotOf(m *schedule.Modification) *schedule.SlotKey {
	if m == nil {
		return nil
	}
	return m.New
}

func joinPersist(a, b error) error {
	if b == nil {
		return a
	}
	if a == nil {
		return b
	}
	return errors.Join(a, b)
}

func indexMods(mods []schedule.Modification) map[string]*schedule.Modification {
	out := make(map[string]*schedule.Modification, len(mods))
	for i := range mods {
		out[mods[i].MatchID] = &mods[i]
	}
	return out
}

func unionIDs(a, b map[string]*schedule.Modification) []string {
	ids := make([]string, 0, len(a)+len(b))
	for id := range a {
		ids = append(ids, id)
	}
	for id := range b {
		if _, ok := a[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
