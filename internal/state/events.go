package state

import "github.com/javiermolinar/matchplan/internal/schedule"

// EventType identifies what changed in the modification log.
type EventType string

const (
	EventModificationSaved     EventType = "MODIFICATION_SAVED"
	EventModificationUndone    EventType = "MODIFICATION_UNDONE"
	EventAllModificationsReset EventType = "ALL_MODIFICATIONS_RESET"
	EventModificationsImported EventType = "MODIFICATIONS_IMPORTED"
)

// Event is published after the current state has been recomputed.
type Event struct {
	Type         EventType
	MatchID      string                 // saved, undone
	Modification *schedule.Modification // saved: the new entry; undone: the removed entry
	Count        int                    // reset, imported
}

// Publisher is implemented by anything that emits state events.
type Publisher interface {
	Subscribe(fn func(Event)) (unsubscribe func())
}
