package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/javiermolinar/matchplan/internal/engine"
)

// confirmed resolves a needs_confirmation outcome: with --yes or an
// interactive yes the edit is retried as confirmed.
func (a *App) confirmed(cmd *cobra.Command, out engine.Outcome, yes bool, retry func() engine.Outcome) engine.Outcome {
	if out.Status != engine.StatusNeedsConfirmation {
		return out
	}
	if yes {
		return retry()
	}
	if !a.interactive() {
		return out
	}
	w := cmd.OutOrStdout()
	printOutcome(w, out, "")
	if !promptYesNo(cmd.InOrStdin(), w, "Apply anyway?") {
		return engine.Outcome{Status: engine.StatusUnchanged, Reason: "cancelled"}
	}
	return retry()
}

func promptYesNo(in io.Reader, w io.Writer, question string) bool {
	reader := bufio.NewReader(in)
	fmt.Fprintf(w, "%s [y/N]: ", question)
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(strings.ToLower(input))
	return input == "y" || input == "yes"
}

func (a *App) moveCmd() *cobra.Command {
	var yes, force bool
	var swapWith string

	cmd := &cobra.Command{
		Use:   "move [match-id] [week] [time] [venue]",
		Short: "Move a match to another slot",
		Long: `Move a match to the given week, time and venue.

A full slot is rejected unless an override is chosen:
  --swap-with   exchange slots with the match in the target
  --force       unschedule whatever occupies the target

Warnings (rest time, time preference) must be confirmed, either
interactively or with --yes.

Example:
  matchplan move M12 4 20:00 "GYM A"
  matchplan move M12 W4 20:00 "GYM A" --force --yes`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			if err := a.ensureEngine(ctx); err != nil {
				return err
			}

			target, err := parseSlot(args[1], args[2], args[3])
			if err != nil {
				return err
			}
			if force && swapWith != "" {
				return fmt.Errorf("--force and --swap-with are mutually exclusive")
			}

			var out engine.Outcome
			if swapWith != "" {
				other, ok := a.engine.Match(swapWith)
				if !ok {
					return fmt.Errorf("unknown match %q", swapWith)
				}
				if other.Slot == nil || *other.Slot != target {
					return fmt.Errorf("%s is not in %s", swapWith, target)
				}
				out = a.engine.Swap(ctx, args[0], swapWith, yes)
				out = a.confirmed(cmd, out, yes, func() engine.Outcome {
					return a.engine.Swap(ctx, args[0], swapWith, true)
				})
			} else {
				opts := engine.MoveOptions{Force: force, Confirmed: yes}
				out = a.engine.Move(ctx, args[0], target, opts)
				out = a.confirmed(cmd, out, yes, func() engine.Outcome {
					opts.Confirmed = true
					return a.engine.Move(ctx, args[0], target, opts)
				})
			}

			printOutcome(cmd.OutOrStdout(), out, fmt.Sprintf("Moved %s to %s", args[0], target))
			return outcomeErr(out)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Accept warnings without asking")
	cmd.Flags().BoolVar(&force, "force", false, "Unschedule the matches occupying the target")
	cmd.Flags().StringVar(&swapWith, "swap-with", "", "Swap with this match, which must occupy the target")
	return cmd
}

func (a *App) swapCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "swap [match-id] [match-id]",
		Short: "Exchange the slots of two matches",
		Long: `Exchange the slots of two scheduled matches.

Example:
  matchplan swap M12 M31`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			if err := a.ensureEngine(ctx); err != nil {
				return err
			}

			out := a.engine.Swap(ctx, args[0], args[1], yes)
			out = a.confirmed(cmd, out, yes, func() engine.Outcome {
				return a.engine.Swap(ctx, args[0], args[1], true)
			})

			printOutcome(cmd.OutOrStdout(), out, fmt.Sprintf("Swapped %s and %s", args[0], args[1]))
			return outcomeErr(out)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Accept warnings without asking")
	return cmd
}

func (a *App) unscheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unschedule [match-id]",
		Short: "Remove a match from the schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			if err := a.ensureEngine(ctx); err != nil {
				return err
			}

			out := a.engine.Unschedule(ctx, args[0])
			printOutcome(cmd.OutOrStdout(), out, "Unscheduled "+args[0])
			return outcomeErr(out)
		},
	}
}

func (a *App) revertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revert [match-id]",
		Short: "Restore the solver assignment of a match",
		Long: `Drop the modification of a match so it returns to the slot the solver
gave it. The revert itself can be undone.

Example:
  matchplan revert M12`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			if err := a.ensureEngine(ctx); err != nil {
				return err
			}

			out := a.engine.Revert(ctx, args[0])
			orig, _ := a.engine.OriginalMatch(args[0])
			printOutcome(cmd.OutOrStdout(), out, fmt.Sprintf("Reverted %s to %s", args[0], slotString(orig.Slot)))
			return outcomeErr(out)
		},
	}
}

func (a *App) resetCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Discard every modification",
		Long: `Discard every modification and return to the solver output.
The reset is recorded as a single history entry and can be undone.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := context.Background()
			if err := a.ensureEngine(ctx); err != nil {
				return err
			}
			w := cmd.OutOrStdout()

			n := len(a.engine.Modifications())
			if n > 0 && !yes {
				if !a.interactive() || !promptYesNo(cmd.InOrStdin(), w, fmt.Sprintf("Discard %d modifications?", n)) {
					fmt.Fprintln(w, "Reset cancelled.")
					return nil
				}
			}

			count, out := a.engine.Reset(ctx)
			printOutcome(w, out, fmt.Sprintf("Discarded %d modifications", count))
			return outcomeErr(out)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}
