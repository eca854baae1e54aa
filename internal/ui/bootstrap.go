package ui

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/javiermolinar/matchplan/internal/conflict"
	"github.com/javiermolinar/matchplan/internal/engine"
	"github.com/javiermolinar/matchplan/internal/history"
	"github.com/javiermolinar/matchplan/internal/metrics"
	"github.com/javiermolinar/matchplan/internal/resolver"
	"github.com/javiermolinar/matchplan/internal/slots"
	"github.com/javiermolinar/matchplan/internal/solution"
	"github.com/javiermolinar/matchplan/internal/state"
	"github.com/javiermolinar/matchplan/internal/storage"
)

// ensureEngine loads the solution and opens the store on first use.
func (a *App) ensureEngine(ctx context.Context) error {
	if a.engine != nil {
		return nil
	}

	path := a.solutionPath
	if path == "" {
		path = a.config.Solution.Path
	}
	sol, err := solution.Load(path)
	if err != nil {
		return fmt.Errorf("loading solution: %w", err)
	}

	store, err := storage.NewSQLite(a.config.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}

	e, err := a.buildEngine(ctx, sol, store)
	if err != nil {
		_ = store.Close()
		return err
	}

	a.solution = sol
	a.store = store
	a.engine = e
	return nil
}

// buildEngine is the composition root. Logs are namespaced per solution so
// the same database can hold edits for several solver runs.
func (a *App) buildEngine(ctx context.Context, sol *solution.Solution, store storage.Store) (*engine.Engine, error) {
	a.registry = prometheus.NewRegistry()
	m := metrics.NewService(a.registry)

	grid := sol.Grid(a.config.Grid())
	caps := sol.MergeCapacities(a.config.Venues.Capacities)
	namespace := "." + sol.Name

	mgr, err := state.New(ctx, sol.Matches, sol.Slots(), store, state.Options{
		Logger:     a.logger.WithPrefix("state"),
		Metrics:    m,
		StorageKey: storage.KeyModifications + namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("loading modifications: %w", err)
	}

	hist, err := history.New(ctx, store, history.Options{
		MaxEntries: a.config.History.MaxEntries,
		Logger:     a.logger.WithPrefix("history"),
		Metrics:    m,
		StorageKey: storage.KeyHistory + namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}

	a.logger.Debug("engine ready",
		"solution", sol.Name,
		"matches", len(sol.Matches),
		"slots", len(grid.Keys()),
		"modifications", mgr.Len())

	return engine.New(engine.Deps{
		State:   mgr,
		Slots:   slots.New(grid, caps, a.logger.WithPrefix("slots")),
		History: hist,
		Detector: conflict.Detector{
			Capacities: caps,
			MinRest:    a.config.MinRest(),
		},
		Resolver: resolver.Resolver{MinRest: a.config.MinRest()},
		Logger:   a.logger,
		Metrics:  m,
	}), nil
}

// baseName is the solution name recorded in exports.
func (a *App) baseName() string {
	if a.config.Solution.BaseName != "" {
		return a.config.Solution.BaseName
	}
	if a.solution != nil {
		return a.solution.Name
	}
	return ""
}
