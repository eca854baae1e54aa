package ui

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/javiermolinar/matchplan/internal/history"
)

func (a *App) undoCmd() *cobra.Command {
	var to string

	cmd := &cobra.Command{
		Use:   "undo",
		Short: "Undo the last action",
		Long: `Undo the last recorded action, or every action recorded after the
entry given with --to (see 'matchplan history' for ids).

Example:
  matchplan undo
  matchplan undo --to 5f0c2d1e`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := context.Background()
			if err := a.ensureEngine(ctx); err != nil {
				return err
			}
			w := cmd.OutOrStdout()

			if to != "" {
				id, err := a.resolveEntryID(to)
				if err != nil {
					return err
				}
				n, err := a.engine.RevertTo(ctx, id)
				if err != nil && !isPersistence(err) {
					return fmt.Errorf("reverting history: %w", err)
				}
				fmt.Fprintln(w, formatSuccess(fmt.Sprintf("Undid %d actions", n)))
				if err != nil {
					fmt.Fprintf(w, "%s %v\n", formatWarning("Not saved:"), err)
				}
				return nil
			}

			out := a.engine.Undo(ctx)
			done := "Undone"
			if out.Entry != nil {
				done = "Undone: " + out.Entry.Description
			}
			printOutcome(w, out, done)
			return nil
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "Undo every action after this history entry")
	return cmd
}

func (a *App) redoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "redo",
		Short: "Redo the last undone action",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := context.Background()
			if err := a.ensureEngine(ctx); err != nil {
				return err
			}

			out := a.engine.Redo(ctx)
			done := "Redone"
			if out.Entry != nil {
				done = "Redone: " + out.Entry.Description
			}
			printOutcome(cmd.OutOrStdout(), out, done)
			return nil
		},
	}
}

func (a *App) historyCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded actions",
		Long: `List the undo stack (newest first) and the redo stack.

Example:
  matchplan history -n 10`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.ensureEngine(context.Background()); err != nil {
				return err
			}
			w := cmd.OutOrStdout()

			undo, redo := a.engine.History()
			if len(undo) == 0 && len(redo) == 0 {
				fmt.Fprintln(w, "No history.")
				return nil
			}

			fmt.Fprintln(w, formatHeader("Undo"))
			printEntries(w, undo, limit)
			if len(redo) > 0 {
				fmt.Fprintln(w)
				fmt.Fprintln(w, formatHeader("Redo"))
				printEntries(w, redo, limit)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum entries per stack")
	return cmd
}

func printEntries(w io.Writer, entries []history.Entry, limit int) {
	if len(entries) == 0 {
		fmt.Fprintln(w, formatMuted("  empty"))
		return
	}
	for i, e := range entries {
		if limit > 0 && i >= limit {
			fmt.Fprintln(w, formatMuted(fmt.Sprintf("  ... %d more", len(entries)-limit)))
			return
		}
		fmt.Fprintf(w, "  %s  %s  %-13s  %s\n",
			formatMuted(shortID(e.ID)),
			e.Timestamp.Local().Format("Jan 02 15:04"),
			e.Type,
			e.Description)
	}
}

// shortID returns the first eight characters of a history entry id.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// resolveEntryID expands a unique prefix to a full undo-stack entry id.
func (a *App) resolveEntryID(prefix string) (string, error) {
	undo, _ := a.engine.History()
	var found string
	for _, e := range undo {
		if len(e.ID) < len(prefix) || e.ID[:len(prefix)] != prefix {
			continue
		}
		if found != "" {
			return "", fmt.Errorf("history id %q is ambiguous", prefix)
		}
		found = e.ID
	}
	if found == "" {
		return "", fmt.Errorf("%w: %s", history.ErrEntryNotFound, prefix)
	}
	return found, nil
}
