// Package metrics exposes engine counters through Prometheus.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

var _ Metrics = (*Service)(nil)

// Service holds the Prometheus collectors.
type Service struct {
	ModificationsSaved  prometheus.Counter
	ModificationsUndone prometheus.Counter
	Resets              prometheus.Counter
	Imports             prometheus.Counter
	HistoryUndo         prometheus.Counter
	HistoryRedo         prometheus.Counter
	SuggestionsApplied  prometheus.Counter
	PersistenceFailures prometheus.Counter
	Conflicts           *prometheus.GaugeVec
	DetectionDuration   prometheus.Histogram
}

// NewService creates and registers the Prometheus metrics.
// If no registerer is provided, it uses the default Prometheus registerer.
func NewService(registerer ...prometheus.Registerer) *Service {
	reg := prometheus.DefaultRegisterer
	if len(registerer) > 0 {
		reg = registerer[0]
	}

	s := &Service{
		ModificationsSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "matchplan_modifications_saved_total",
			Help: "The total number of modifications written to the log.",
		}),
		ModificationsUndone: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "matchplan_modifications_undone_total",
			Help: "The total number of modifications removed from the log.",
		}),
		Resets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "matchplan_resets_total",
			Help: "The total number of full modification log resets.",
		}),
		Imports: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "matchplan_imports_total",
			Help: "The total number of modification imports.",
		}),
		HistoryUndo: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "matchplan_history_undo_total",
			Help: "The total number of history undo operations.",
		}),
		HistoryRedo: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "matchplan_history_redo_total",
			Help: "The total number of history redo operations.",
		}),
		SuggestionsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "matchplan_suggestions_applied_total",
			Help: "The total number of suggestions applied.",
		}),
		PersistenceFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "matchplan_persistence_failures_total",
			Help: "The total number of failed writes to the store.",
		}),
		Conflicts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "matchplan_conflicts",
			Help: "The number of conflicts found by the last detection run.",
		}, []string{"severity"}),
		DetectionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "matchplan_conflict_detection_duration_seconds",
			Help:    "The duration of a full conflict detection run.",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}

	reg.MustRegister(
		s.ModificationsSaved,
		s.ModificationsUndone,
		s.Resets,
		s.Imports,
		s.HistoryUndo,
		s.HistoryRedo,
		s.SuggestionsApplied,
		s.PersistenceFailures,
		s.Conflicts,
		s.DetectionDuration,
	)

	return s
}

// WriteTextfile gathers g and writes it to path in the textfile collector format.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}

func (s *Service) IncModificationsSaved() {
	s.ModificationsSaved.Inc()
}

func (s *Service) IncModificationsUndone() {
	s.ModificationsUndone.Inc()
}

func (s *Service) IncResets() {
	s.Resets.Inc()
}

func (s *Service) IncImports() {
	s.Imports.Inc()
}

func (s *Service) IncHistoryUndo() {
	s.HistoryUndo.Inc()
}

func (s *Service) IncHistoryRedo() {
	s.HistoryRedo.Inc()
}

func (s *Service) IncSuggestionsApplied() {
	s.SuggestionsApplied.Inc()
}

func (s *Service) IncPersistenceFailures() {
	s.PersistenceFailures.Inc()
}

func (s *Service) SetConflicts(critical, warning int) {
	s.Conflicts.WithLabelValues("critical").Set(float64(critical))
	s.Conflicts.WithLabelValues("warning").Set(float64(warning))
}

func (s *Service) ObserveDetectionDuration(seconds float64) {
	s.DetectionDuration.Observe(seconds)
}
