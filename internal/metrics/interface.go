package metrics

// Metrics defines the interface for collecting engine metrics.
type Metrics interface {
	IncModificationsSaved()
	IncModificationsUndone()
	IncResets()
	IncImports()
	IncHistoryUndo()
	IncHistoryRedo()
	IncSuggestionsApplied()
	IncPersistenceFailures()
	SetConflicts(critical, warning int)
	ObserveDetectionDuration(seconds float64)
}

// Noop discards every observation.
type Noop struct{}

var _ Metrics = Noop{}

func (Noop) IncModificationsSaved() {}
func (Noop) IncModificationsUndone() {}
func (Noop) IncResets() {}
func (Noop) IncImports() {}
func (Noop) IncHistoryUndo() {}
func (Noop) IncHistoryRedo() {}
func (Noop) IncSuggestionsApplied() {}
func (Noop) IncPersistenceFailures() {}
func (Noop) SetConflicts(int, int) {}
func (Noop) ObserveDetectionDuration(float64) {}
