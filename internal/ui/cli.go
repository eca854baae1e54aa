package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/javiermolinar/matchplan/internal/config"
	"github.com/javiermolinar/matchplan/internal/engine"
	"github.com/javiermolinar/matchplan/internal/metrics"
	"github.com/javiermolinar/matchplan/internal/solution"
	"github.com/javiermolinar/matchplan/internal/storage"
)

var (
	// Version is set at build time
	Version = "dev"
	// Commit is set at build time
	Commit = "none"
)

// App holds the CLI application state.
type App struct {
	config *config.Config
	root   *cobra.Command
	logger *log.Logger

	// interactive reports whether prompts can be answered
	interactive func() bool

	// global flags
	debug        bool
	noColor      bool
	solutionPath string
	metricsFile  string

	// opened lazily by ensureEngine
	engine   *engine.Engine
	solution *solution.Solution
	store    storage.Store
	registry *prometheus.Registry
}

// NewApp creates a new CLI application with the given config.
func NewApp(cfg *config.Config) *App {
	a := &App{
		config:      cfg,
		interactive: isInteractive,
		logger: log.NewWithOptions(os.Stderr, log.Options{Prefix: "matchplan", Level: cfg.LogLevel()}),
	}

	a.root = &cobra.Command{
		Use:   "matchplan",
		Short: "Review and hand-edit a solved sports schedule",
		Long: `matchplan loads the solution produced by the league solver and lets you
move, swap and unschedule matches by hand.

Every edit is validated against the scheduling rules (double bookings,
team overlaps, rest time, time preferences and venue availability) and
recorded in an undoable history. Edits are kept as a modification log on
top of the frozen solution and can be exported for the solver.`,
		SilenceUsage: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if a.debug {
				a.logger.SetLevel(log.DebugLevel)
			}
			if a.noColor {
				DisableColor()
			}
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runShow(cmd.OutOrStdout(), showOptions{})
		},
	}

	// Add global flags
	flags := a.root.PersistentFlags()
	flags.StringVar(&a.solutionPath, "solution", "", "Solver output to load (defaults to the configured path)")
	flags.BoolVar(&a.debug, "debug", false, "Enable debug logging")
	flags.StringVar(&a.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file on exit")
	flags.BoolVar(&a.noColor, "no-color", false, "Disable color output")

	a.root.AddCommand(a.versionCmd())
	a.root.AddCommand(a.configCmd())
	a.root.AddCommand(a.showCmd())
	a.root.AddCommand(a.conflictsCmd())
	a.root.AddCommand(a.suggestCmd())
	a.root.AddCommand(a.moveCmd())
	a.root.AddCommand(a.swapCmd())
	a.root.AddCommand(a.unscheduleCmd())
	a.root.AddCommand(a.revertCmd())
	a.root.AddCommand(a.resetCmd())
	a.root.AddCommand(a.undoCmd())
	a.root.AddCommand(a.redoCmd())
	a.root.AddCommand(a.historyCmd())
	a.root.AddCommand(a.exportCmd())
	a.root.AddCommand(a.importCmd())
	a.root.AddCommand(a.findCmd())

	return a
}

func (a *App) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "matchplan %s (commit: %s)\n", Version, Commit)
		},
	}
}

// SetOutput redirects command output and errors.
func (a *App) SetOutput(out, errOut io.Writer) {
	a.root.SetOut(out)
	a.root.SetErr(errOut)
}

// SetArgs overrides the command line arguments.
func (a *App) SetArgs(args []string) {
	a.root.SetArgs(args)
}

// Execute runs the CLI application.
func (a *App) Execute() error {
	return a.root.Execute()
}

// Close releases the engine and the store, then writes the metrics file if
// one was requested.
func (a *App) Close() error {
	if a.engine != nil {
		a.engine.Close()
	}
	var err error
	if a.store != nil {
		err = a.store.Close()
	}
	if a.metricsFile != "" && a.registry != nil {
		if werr := metrics.WriteTextfile(a.metricsFile, a.registry); werr != nil && err == nil {
			err = werr
		}
	}
	return err
}
