package ui

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/javiermolinar/matchplan/internal/schedule"
)

type showOptions struct {
	Week     int
	Modified bool
	Free     bool
	Verbose  bool
}

func (a *App) showCmd() *cobra.Command {
	var opts showOptions

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the current schedule",
		Long: `Display the current schedule grouped by week.

Modified matches are marked with *, matches involved in a conflict with
! (warning) or ✗ (critical).

Example:
  matchplan show --week 3
  matchplan show --modified`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runShow(cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Week, "week", "w", 0, "Only show this week")
	cmd.Flags().BoolVarP(&opts.Modified, "modified", "m", false, "Only show modified matches")
	cmd.Flags().BoolVar(&opts.Free, "free", false, "List free slots")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Show full team labels")
	return cmd
}

func (a *App) runShow(w io.Writer, opts showOptions) error {
	if err := a.ensureEngine(context.Background()); err != nil {
		return err
	}

	current := a.engine.CurrentMatches()
	conflicts := a.engine.Conflicts()
	modified := make(map[string]bool)
	for _, m := range a.engine.Modifications() {
		modified[m.MatchID] = true
	}

	byWeek := make(map[int][]*schedule.Match)
	var unscheduled []*schedule.Match
	for i := range current {
		m := &current[i]
		if opts.Modified && !modified[m.ID] {
			continue
		}
		if m.Slot == nil {
			if opts.Week == 0 {
				unscheduled = append(unscheduled, m)
			}
			continue
		}
		if opts.Week != 0 && m.Slot.Week != opts.Week {
			continue
		}
		byWeek[m.Slot.Week] = append(byWeek[m.Slot.Week], m)
	}

	weeks := make([]int, 0, len(byWeek))
	for wk := range byWeek {
		weeks = append(weeks, wk)
	}
	sort.Ints(weeks)

	width := labelWidth(opts.Verbose)
	fmt.Fprintf(w, "%s\n", formatHeader("Solution: "+a.solution.Name))
	for _, wk := range weeks {
		matches := byWeek[wk]
		sort.Slice(matches, func(i, j int) bool { return matches[i].Slot.Less(*matches[j].Slot) })

		fmt.Fprintf(w, "\n=== %s ===\n", formatHeader(fmt.Sprintf("Week %d", wk)))
		for _, m := range matches {
			printMatchRow(w, m, modified[m.ID], conflicts[m.ID], width)
		}
	}

	if len(unscheduled) > 0 {
		fmt.Fprintf(w, "\n=== %s ===\n", formatHeader("Unscheduled"))
		for _, m := range unscheduled {
			printMatchRow(w, m, modified[m.ID], conflicts[m.ID], width)
		}
	}

	if opts.Free {
		a.printFreeSlots(w, opts.Week)
	}

	s := conflicts.Summary()
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%d matches | %s | %s | %s\n",
		len(current),
		formatModified(fmt.Sprintf("%d modified", len(modified))),
		formatCritical(fmt.Sprintf("%d critical", s.Critical)),
		formatWarning(fmt.Sprintf("%d warnings", s.Warning)))
	return nil
}

func (a *App) printFreeSlots(w io.Writer, week int) {
	fmt.Fprintf(w, "\n=== %s ===\n", formatHeader("Free slots"))
	n := 0
	for _, k := range a.engine.FreeSlots() {
		if week != 0 && k.Week != week {
			continue
		}
		fmt.Fprintf(w, "  %s\n", k)
		n++
	}
	if n == 0 {
		fmt.Fprintln(w, formatMuted("  none"))
	}
}
