package ui

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/javiermolinar/matchplan/internal/config"
	"github.com/javiermolinar/matchplan/internal/schedule"
)

const testSolution = `{
  "name": "league_v1",
  "matches": [
    {"match_id": "M1", "home": {"name": "LYON (1)", "gender": "F"}, "away": {"name": "PARIS", "gender": "F"},
     "pool": "P1", "semaine": 3, "horaire": "18:00", "gymnase": "GYM A"},
    {"match_id": "M2", "home": {"name": "NANTES", "gender": "M"}, "away": {"name": "LILLE", "gender": "M"},
     "pool": "P2", "semaine": 3, "horaire": "20:00", "gymnase": "GYM A"},
    {"match_id": "M3", "home": {"name": "LYON (1)", "gender": "F"}, "away": {"name": "METZ", "gender": "F"},
     "pool": "P1", "semaine": 4, "horaire": "20:00", "gymnase": "GYM A"}
  ],
  "unscheduled": [
    {"match_id": "M4", "home": {"name": "NICE", "gender": "M"}, "away": {"name": "BREST", "gender": "M"}, "pool": "P2"}
  ],
  "free_slots": [
    {"semaine": 3, "horaire": "19:00", "gymnase": "GYM A"},
    {"semaine": 4, "horaire": "18:00", "gymnase": "GYM A"},
    {"semaine": 4, "horaire": "19:00", "gymnase": "GYM A"}
  ]
}`

// doubleBooked adds M5 on top of M1.
const doubleBooked = `{
  "name": "league_v2",
  "matches": [
    {"match_id": "M1", "home": {"name": "LYON (1)", "gender": "F"}, "away": {"name": "PARIS", "gender": "F"},
     "pool": "P1", "semaine": 3, "horaire": "18:00", "gymnase": "GYM A"},
    {"match_id": "M2", "home": {"name": "NANTES", "gender": "M"}, "away": {"name": "LILLE", "gender": "M"},
     "pool": "P2", "semaine": 3, "horaire": "20:00", "gymnase": "GYM A"},
    {"match_id": "M5", "home": {"name": "NICE", "gender": "M"}, "away": {"name": "BREST", "gender": "M"},
     "pool": "P2", "semaine": 3, "horaire": "18:00", "gymnase": "GYM A"}
  ],
  "free_slots": [
    {"semaine": 3, "horaire": "19:00", "gymnase": "GYM A"},
    {"semaine": 4, "horaire": "18:00", "gymnase": "GYM A"}
  ]
}`

type testEnv struct {
	t   *testing.T
	dir string
	cfg *config.Config
}

func newTestEnv(t *testing.T, solutionJSON string) *testEnv {
	t.Helper()
	DisableColor()

	dir := t.TempDir()
	solutionPath := filepath.Join(dir, "solution.json")
	if err := os.WriteFile(solutionPath, []byte(solutionJSON), 0o644); err != nil {
		t.Fatalf("writing solution: %v", err)
	}

	cfg := config.Default()
	cfg.Solution.Path = solutionPath
	cfg.Storage.DBPath = filepath.Join(dir, "matchplan.db")
	cfg.Export.Author = "tester"
	cfg.Log.Level = "error"

	return &testEnv{t: t, dir: dir, cfg: cfg}
}

// run executes one command line on a fresh App, like a separate process.
func (e *testEnv) run(args ...string) (string, error) {
	e.t.Helper()

	var out, errOut bytes.Buffer
	app := NewApp(e.cfg)
	app.interactive = func() bool { return false }
	app.SetOutput(&out, &errOut)
	app.root.SetIn(strings.NewReader(""))
	app.SetArgs(args)

	err := app.Execute()
	if cerr := app.Close(); cerr != nil {
		e.t.Fatalf("closing app: %v", cerr)
	}
	return out.String(), err
}

func (e *testEnv) mustRun(args ...string) string {
	e.t.Helper()
	out, err := e.run(args...)
	if err != nil {
		e.t.Fatalf("%v: unexpected error: %v\noutput:\n%s", args, err, out)
	}
	return out
}

func assertContains(t *testing.T, out string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(out, w) {
			t.Errorf("output missing %q:\n%s", w, out)
		}
	}
}

func TestVersion(t *testing.T) {
	env := newTestEnv(t, testSolution)

	out := env.mustRun("version")

	assertContains(t, out, "matchplan dev")
}

func TestShow(t *testing.T) {
	env := newTestEnv(t, testSolution)

	out := env.mustRun("show", "--free")

	assertContains(t, out,
		"Solution: league_v1",
		"Week 3", "Week 4", "Unscheduled",
		"LYON (1) vs PARIS [F]",
		"W3 19:00 GYM A",
		"4 matches", "0 modified", "0 critical")
}

func TestShow_UnknownSolution(t *testing.T) {
	env := newTestEnv(t, testSolution)
	env.cfg.Solution.Path = filepath.Join(env.dir, "missing.json")

	if _, err := env.run("show"); err == nil {
		t.Error("expected error for a missing solution file")
	}
}

func TestMove_CommitPersistsAndUndo(t *testing.T) {
	env := newTestEnv(t, testSolution)

	out := env.mustRun("move", "M1", "3", "19:00", "GYM A")
	assertContains(t, out, "Moved M1 to W3 19:00 GYM A")

	// A new process sees the stored modification
	out = env.mustRun("show", "--modified")
	assertContains(t, out, "M1*", "1 modified")
	if strings.Contains(out, "M2") {
		t.Errorf("--modified should hide untouched matches:\n%s", out)
	}

	out = env.mustRun("history")
	assertContains(t, out, "Move M1 to W3 19:00 GYM A")

	out = env.mustRun("undo")
	assertContains(t, out, "Undone: Move M1 to W3 19:00 GYM A")

	out = env.mustRun("show")
	assertContains(t, out, "0 modified")

	out = env.mustRun("redo")
	assertContains(t, out, "Redone: Move M1 to W3 19:00 GYM A")
}

func TestMove_OccupiedIsRejected(t *testing.T) {
	env := newTestEnv(t, testSolution)

	out, err := env.run("move", "M1", "3", "20:00", "GYM A")

	if err == nil {
		t.Fatal("expected an error for an occupied slot")
	}
	assertContains(t, out, "Rejected:", "slot occupied")
}

func TestMove_WarningsNeedConfirmation(t *testing.T) {
	env := newTestEnv(t, testSolution)

	// 60 minutes before M3, same team and week
	out, err := env.run("move", "M1", "W4", "19:00", "GYM A")
	if err == nil {
		t.Fatal("expected an error without --yes")
	}
	assertContains(t, out, "rest_time")

	out = env.mustRun("show", "--modified")
	assertContains(t, out, "0 modified")

	out = env.mustRun("move", "M1", "W4", "19:00", "GYM A", "--yes")
	assertContains(t, out, "Moved M1", "rest_time")
}

func TestMove_SwapWith(t *testing.T) {
	env := newTestEnv(t, testSolution)

	out := env.mustRun("move", "M1", "3", "20:00", "GYM A", "--swap-with", "M2")
	assertContains(t, out, "Moved M1 to W3 20:00 GYM A")

	out = env.mustRun("history")
	assertContains(t, out, "Swap M1 and M2")

	if _, err := env.run("move", "M1", "4", "20:00", "GYM A", "--swap-with", "M2"); err == nil {
		t.Error("expected error when the swap partner is not in the target")
	}
}

func TestMove_Force(t *testing.T) {
	env := newTestEnv(t, testSolution)

	env.mustRun("move", "M1", "3", "20:00", "GYM A", "--force")

	out := env.mustRun("conflicts")
	assertContains(t, out, "No conflicts.")

	out = env.mustRun("show")
	assertContains(t, out, "2 modified")
}

func TestSwapUnscheduleRevert(t *testing.T) {
	env := newTestEnv(t, testSolution)

	out := env.mustRun("swap", "M1", "M2")
	assertContains(t, out, "Swapped M1 and M2")

	out = env.mustRun("unschedule", "M2")
	assertContains(t, out, "Unscheduled M2")

	out = env.mustRun("revert", "M2")
	assertContains(t, out, "Reverted M2 to W3 20:00 GYM A")

	out = env.mustRun("revert", "M4")
	assertContains(t, out, "Nothing to do")
}

func TestReset(t *testing.T) {
	env := newTestEnv(t, testSolution)
	env.mustRun("move", "M1", "3", "19:00", "GYM A")
	env.mustRun("unschedule", "M2")

	// Non-interactive without --yes does nothing
	out := env.mustRun("reset")
	assertContains(t, out, "Reset cancelled.")

	out = env.mustRun("reset", "--yes")
	assertContains(t, out, "Discarded 2 modifications")

	out = env.mustRun("undo")
	assertContains(t, out, "Undone: Reset 2 modifications")
	out = env.mustRun("show")
	assertContains(t, out, "2 modified")
}

func TestUndoTo(t *testing.T) {
	env := newTestEnv(t, testSolution)
	env.mustRun("move", "M1", "3", "19:00", "GYM A")
	env.mustRun("unschedule", "M2")
	env.mustRun("unschedule", "M3")

	app := NewApp(env.cfg)
	if err := app.ensureEngine(t.Context()); err != nil {
		t.Fatal(err)
	}
	undo, _ := app.engine.History()
	first := undo[len(undo)-1].ID
	if err := app.Close(); err != nil {
		t.Fatal(err)
	}

	out := env.mustRun("undo", "--to", first[:8])
	assertContains(t, out, "Undid 2 actions")

	out = env.mustRun("show")
	assertContains(t, out, "1 modified")

	if _, err := env.run("undo", "--to", "zzzzzzzz"); err == nil {
		t.Error("expected error for an unknown history id")
	}
}

func TestConflictsAndSuggest(t *testing.T) {
	env := newTestEnv(t, doubleBooked)

	out := env.mustRun("conflicts")
	assertContains(t, out, "double_booking", "M1", "M5", "2 critical")

	out = env.mustRun("conflicts", "M2")
	assertContains(t, out, "No conflicts.")

	out = env.mustRun("suggest")
	assertContains(t, out, "1.", "--apply N")

	if _, err := env.run("suggest", "--apply", "99"); err == nil {
		t.Error("expected error for an out of range suggestion")
	}

	out = env.mustRun("suggest", "--apply", "1")
	assertContains(t, out, "Applied:")

	out = env.mustRun("conflicts")
	if strings.Contains(out, "double_booking") {
		t.Errorf("double booking should be resolved:\n%s", out)
	}

}

func TestExportImport(t *testing.T) {
	env := newTestEnv(t, testSolution)
	env.mustRun("move", "M1", "3", "19:00", "GYM A")

	exportPath := filepath.Join(env.dir, "edits.json")
	out := env.mustRun("export", "-o", exportPath)
	assertContains(t, out, "Exported 1 modifications")

	data, err := os.ReadFile(exportPath)
	if err != nil {
		t.Fatal(err)
	}
	assertContains(t, string(data),
		`"export_version": "1.0"`,
		`"base_solution": "league_v1"`,
		`"match_id": "M1"`,
		`"author": "tester"`)

	env.mustRun("reset", "--yes")

	out = env.mustRun("import", exportPath)
	assertContains(t, out, "Imported 1 modifications from edits.json")

	out = env.mustRun("show", "--modified")
	assertContains(t, out, "M1*")

	out = env.mustRun("export")
	assertContains(t, out, `"total_modifications": 1`)
}

func TestImport_Merge(t *testing.T) {
	env := newTestEnv(t, testSolution)
	env.mustRun("move", "M1", "3", "19:00", "GYM A")
	exportPath := filepath.Join(env.dir, "edits.json")
	env.mustRun("export", "-o", exportPath)

	env.mustRun("undo")
	env.mustRun("unschedule", "M2")

	env.mustRun("import", exportPath, "--merge")

	out := env.mustRun("show")
	assertContains(t, out, "2 modified")
}

func TestImport_Malformed(t *testing.T) {
	env := newTestEnv(t, testSolution)
	path := filepath.Join(env.dir, "bad.json")
	if err := os.WriteFile(path, []byte(`{"export_version":"9.9"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := env.run("import", path); err == nil {
		t.Error("expected error for an unsupported version")
	}
}

func TestFind(t *testing.T) {
	env := newTestEnv(t, testSolution)

	out := env.mustRun("find", "lyon")
	assertContains(t, out, "LYON (1)", "2 matches", "M1", "M3")

	out = env.mustRun("find", "xyz")
	assertContains(t, out, "No team matches")
}

func TestFindTeams(t *testing.T) {
	env := newTestEnv(t, testSolution)
	app := NewApp(env.cfg)
	if err := app.ensureEngine(t.Context()); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = app.Close() }()

	tests := []struct {
		query string
		want  string
	}{
		{"nantes", "NANTES"},
		{"NICE", "NICE"},
		{"lyn", "LYON (1)"},
	}

	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			got := findTeams(app.engine.CurrentMatches(), tc.query, 1)
			if len(got) != 1 || got[0] != tc.want {
				t.Errorf("findTeams(%q) = %v, want [%s]", tc.query, got, tc.want)
			}
		})
	}
}

func TestMetricsFile(t *testing.T) {
	env := newTestEnv(t, testSolution)
	metricsPath := filepath.Join(env.dir, "matchplan.prom")

	env.mustRun("move", "M1", "3", "19:00", "GYM A", "--metrics-file", metricsPath)

	data, err := os.ReadFile(metricsPath)
	if err != nil {
		t.Fatalf("reading metrics file: %v", err)
	}
	assertContains(t, string(data), "matchplan_modifications_saved_total 1")
}

func TestEnsureEngine_OriginalSlotsComeFromSolution(t *testing.T) {
	env := newTestEnv(t, testSolution)
	env.cfg.Schedule.Venues = []string{"GYM B"}
	app := NewApp(env.cfg)
	t.Cleanup(func() { _ = app.Close() })

	if err := app.ensureEngine(context.Background()); err != nil {
		t.Fatalf("ensureEngine() error = %v", err)
	}

	got := app.engine.OriginalSlots()
	if len(got) != 6 {
		t.Fatalf("expected the 6 slots of the solution file, got %d: %v", len(got), got)
	}
	for _, k := range got {
		if k.Venue != "GYM A" {
			t.Errorf("slot %s is not in the solution file", k)
		}
	}
	if got[0] != (schedule.SlotKey{Week: 3, Time: "18:00", Venue: "GYM A"}) {
		t.Errorf("first slot = %s, want W3 18:00 GYM A", got[0])
	}
	if len(app.engine.Slots()) <= len(got) {
		t.Errorf("the slot grid should still include the configured venues")
	}
}

func TestParseSlot(t *testing.T) {
	tests := []struct {
		week, time, venue string
		wantErr           bool
	}{
		{"3", "18:00", "GYM A", false},
		{"w3", "18:00", "GYM A", false},
		{"W12", "08:30", "B", false},
		{"three", "18:00", "GYM A", true},
		{"0", "18:00", "GYM A", true},
		{"3", "6pm", "GYM A", true},
		{"3", "18:00", "", true},
	}

	for _, tc := range tests {
		t.Run(tc.week+" "+tc.time+" "+tc.venue, func(t *testing.T) {
			_, err := parseSlot(tc.week, tc.time, tc.venue)
			if (err != nil) != tc.wantErr {
				t.Errorf("parseSlot() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestRunConfig(t *testing.T) {
	env := newTestEnv(t, testSolution)
	app := NewApp(env.cfg)
	configPath := filepath.Join(env.dir, "config", "config.toml")

	var out bytes.Buffer
	if err := app.runConfig(strings.NewReader(""), &out, configPath, false); err != nil {
		t.Fatalf("runConfig() error = %v", err)
	}
	assertContains(t, out.String(), "Created "+configPath, "[schedule]", "min_rest_minutes = 90")

	input := strings.Join([]string{
		"",      // solution path
		"v2",    // base name
		"",      // times
		"",      // venues
		"120",   // min rest
		"",      // history size
		"",      // author
		"",      // db path
		"debug", // log level
	}, "\n") + "\n"

	out.Reset()
	if err := app.runConfig(strings.NewReader(input), &out, configPath, true); err != nil {
		t.Fatalf("runConfig(edit) error = %v", err)
	}
	assertContains(t, out.String(), "Configuration saved!")

	loaded, err := config.LoadFrom(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Schedule.MinRestMinutes != 120 || loaded.Solution.BaseName != "v2" || loaded.Log.Level != "debug" {
		t.Errorf("saved config = %+v", loaded)
	}
}
