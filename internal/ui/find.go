package ui

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/spf13/cobra"

	"github.com/javiermolinar/matchplan/internal/schedule"
)

func (a *App) findCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "find [query]",
		Short: "Find the matches of a team",
		Long: `Fuzzy search team names and list their matches.

Example:
  matchplan find lyon
  matchplan find "st etienne"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.ensureEngine(context.Background()); err != nil {
				return err
			}
			w := cmd.OutOrStdout()

			current := a.engine.CurrentMatches()
			teams := findTeams(current, strings.Join(args, " "), limit)
			if len(teams) == 0 {
				fmt.Fprintf(w, "No team matches %q.\n", strings.Join(args, " "))
				return nil
			}

			conflicts := a.engine.Conflicts()
			modified := make(map[string]bool)
			for _, m := range a.engine.Modifications() {
				modified[m.MatchID] = true
			}
			for _, team := range teams {
				printTeamMatches(w, current, team, modified, conflicts)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "Maximum number of teams")
	return cmd
}

// findTeams ranks team names against query, closest first. An exact
// case-insensitive name wins outright.
func findTeams(matches []schedule.Match, query string, limit int) []string {
	seen := make(map[string]bool)
	var names []string
	for i := range matches {
		for _, t := range matches[i].Teams {
			if t.Name != "" && !seen[t.Name] {
				seen[t.Name] = true
				names = append(names, t.Name)
			}
		}
	}
	sort.Strings(names)

	for _, n := range names {
		if strings.EqualFold(n, query) {
			return []string{n}
		}
	}

	ranks := fuzzy.RankFindFold(query, names)
	sort.Sort(ranks)

	out := make([]string, 0, len(ranks))
	for _, r := range ranks {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, r.Target)
	}
	return out
}

func printTeamMatches(w io.Writer, matches []schedule.Match, team string, modified map[string]bool, conflicts map[string][]schedule.Conflict) {
	var own []*schedule.Match
	for i := range matches {
		m := &matches[i]
		if m.Teams[0].Name == team || m.Teams[1].Name == team {
			own = append(own, m)
		}
	}
	sort.Slice(own, func(i, j int) bool {
		a, b := own[i].Slot, own[j].Slot
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Less(*b)
		}
	})

	fmt.Fprintf(w, "%s  %s\n", formatHeader(team), formatMuted(fmt.Sprintf("%d matches", len(own))))
	width := labelWidth(false)
	for _, m := range own {
		week := "  "
		if m.Slot != nil {
			week = fmt.Sprintf("W%d", m.Slot.Week)
		}
		fmt.Fprintf(w, "  %-3s", week)
		printMatchRow(w, m, modified[m.ID], conflicts[m.ID], width)
	}
	fmt.Fprintln(w)
}
