package ui

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/javiermolinar/matchplan/internal/conflict"
	"github.com/javiermolinar/matchplan/internal/schedule"
)

func (a *App) conflictsCmd() *cobra.Command {
	var criticalOnly bool

	cmd := &cobra.Command{
		Use:   "conflicts [match-id]",
		Short: "List scheduling conflicts",
		Long: `List the conflicts of the current schedule, or of a single match.

Critical conflicts (double bookings, team overlaps, unavailable slots)
block an edit. Warnings (rest time, time preferences) need confirmation.

Example:
  matchplan conflicts
  matchplan conflicts M12 --critical`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.ensureEngine(context.Background()); err != nil {
				return err
			}
			w := cmd.OutOrStdout()

			all := a.engine.Conflicts()
			ids := all.MatchIDs()
			if len(args) == 1 {
				if _, ok := a.engine.Match(args[0]); !ok {
					return fmt.Errorf("unknown match %q", args[0])
				}
				ids = []string{args[0]}
			}

			shown := 0
			for _, id := range ids {
				cs := all[id]
				if criticalOnly {
					cs = critical(cs)
				}
				if len(cs) == 0 {
					continue
				}
				m, _ := a.engine.Match(id)
				fmt.Fprintf(w, "%s  %s  %s\n", formatHeader(id), m.Label(), formatMuted(slotString(m.Slot)))
				for _, c := range cs {
					printConflict(w, c)
				}
				shown++
			}

			if shown == 0 {
				fmt.Fprintln(w, formatSuccess("No conflicts."))
				return nil
			}
			s := all.Summary()
			fmt.Fprintf(w, "\n%s, %s across %d matches\n",
				formatCritical(fmt.Sprintf("%d critical", s.Critical)),
				formatWarning(fmt.Sprintf("%d warnings", s.Warning)),
				s.Matches)
			return nil
		},
	}

	cmd.Flags().BoolVar(&criticalOnly, "critical", false, "Only show critical conflicts")
	return cmd
}

func critical(cs []schedule.Conflict) []schedule.Conflict {
	var out []schedule.Conflict
	for _, c := range cs {
		if c.IsCritical() {
			out = append(out, c)
		}
	}
	return out
}

func (a *App) suggestCmd() *cobra.Command {
	var apply int

	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Propose fixes for the current conflicts",
		Long: `Generate ranked moves and swaps that resolve the current conflicts.
Critical conflicts are handled first, then rest-time warnings. Fixed
matches are never moved.

Apply a suggestion by its number:
  matchplan suggest
  matchplan suggest --apply 2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := context.Background()
			if err := a.ensureEngine(ctx); err != nil {
				return err
			}
			w := cmd.OutOrStdout()

			suggestions := a.engine.Suggestions()
			if len(suggestions) == 0 {
				if conflict.Count(a.engine.Conflicts()) == 0 {
					fmt.Fprintln(w, formatSuccess("No conflicts to resolve."))
				} else {
					fmt.Fprintln(w, "No suggestion found for the current conflicts.")
				}
				return nil
			}

			if apply > 0 {
				if apply > len(suggestions) {
					return fmt.Errorf("no suggestion #%d (have %d)", apply, len(suggestions))
				}
				s := suggestions[apply-1]
				out := a.engine.ApplySuggestion(ctx, s)
				printOutcome(w, out, "Applied: "+s.Description)
				return outcomeErr(out)
			}

			for i, s := range suggestions {
				fmt.Fprintf(w, "%3s  %-4s  %s  %s\n",
					strconv.Itoa(i+1)+".",
					s.Type,
					formatMuted(fmt.Sprintf("[%3d]", s.Priority)),
					s.Description)
				if len(s.Impact.Resolves) > 0 {
					fmt.Fprintf(w, "      %s\n", formatMuted(fmt.Sprintf("resolves %v", s.Impact.Resolves)))
				}
			}
			fmt.Fprintf(w, "\nApply one with: matchplan suggest --apply N\n")
			return nil
		},
	}

	cmd.Flags().IntVar(&apply, "apply", 0, "Apply the suggestion with this number")
	return cmd
}
