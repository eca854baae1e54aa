package metrics

import "sync"

var _ Metrics = (*Mock)(nil)

// Mock is a mock implementation of the Metrics interface for testing.
// It is safe for concurrent use.
type Mock struct {
	mu                  sync.Mutex
	saved               int
	undone              int
	resets              int
	imports             int
	historyUndo         int
	historyRedo         int
	suggestionsApplied  int
	persistenceFailures int
	critical            int
	warning             int
	detections          []float64
}

// NewMock creates a new mock instance.
func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) IncModificationsSaved() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved++
}

func (m *Mock) IncModificationsUndone() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.undone++
}

func (m *Mock) IncResets() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets++
}

func (m *Mock) IncImports() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.imports++
}

func (m *Mock) IncHistoryUndo() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.historyUndo++
}

func (m *Mock) IncHistoryRedo() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.historyRedo++
}

func (m *Mock) IncSuggestionsApplied() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.suggestionsApplied++
}

func (m *Mock) IncPersistenceFailures() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.persistenceFailures++
}

func (m *Mock) SetConflicts(critical, warning int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.critical = critical
	m.warning = warning
}

func (m *Mock) ObserveDetectionDuration(seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detections = append(m.detections, seconds)
}

// Saved returns the number of times IncModificationsSaved was called.
func (m *Mock) Saved() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saved
}

// Undone returns the number of times IncModificationsUndone was called.
func (m *Mock) Undone() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.undone
}

// Resets returns the number of times IncResets was called.
func (m *Mock) Resets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resets
}

// Imports returns the number of times IncImports was called.
func (m *Mock) Imports() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.imports
}

// HistoryUndo returns the number of times IncHistoryUndo was called.
func (m *Mock) HistoryUndo() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.historyUndo
}

// HistoryRedo returns the number of times IncHistoryRedo was called.
func (m *Mock) HistoryRedo() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.historyRedo
}

// SuggestionsApplied returns the number of times IncSuggestionsApplied was called.
func (m *Mock) SuggestionsApplied() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.suggestionsApplied
}

// PersistenceFailures returns the number of times IncPersistenceFailures was called.
func (m *Mock) PersistenceFailures() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.persistenceFailures
}

// Conflicts returns the last values passed to SetConflicts.
func (m *Mock) Conflicts() (critical, warning int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.critical, m.warning
}

// Detections returns the number of observed detection runs.
func (m *Mock) Detections() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.detections)
}
