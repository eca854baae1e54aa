package ui

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/javiermolinar/matchplan/internal/conflict"
	"github.com/javiermolinar/matchplan/internal/engine"
	"github.com/javiermolinar/matchplan/internal/schedule"
	"github.com/javiermolinar/matchplan/internal/state"
)

// parseSlot builds a slot key from the week, time and venue arguments.
func parseSlot(week, hhmm, venue string) (schedule.SlotKey, error) {
	w, err := strconv.Atoi(strings.TrimPrefix(strings.ToUpper(week), "W"))
	if err != nil {
		return schedule.SlotKey{}, fmt.Errorf("invalid week %q: %w", week, err)
	}
	k := schedule.SlotKey{Week: w, Time: hhmm, Venue: venue}
	if err := k.Validate(); err != nil {
		return schedule.SlotKey{}, fmt.Errorf("invalid slot %s: %w", k, err)
	}
	return k, nil
}

// slotString formats an optional slot.
func slotString(k *schedule.SlotKey) string {
	if k == nil {
		return "unscheduled"
	}
	return k.String()
}

// truncate shortens s to width, marking the cut with an ellipsis.
func truncate(s string, width int) string {
	if width <= 3 || len(s) <= width {
		return s
	}
	return s[:width-3] + "..."
}

// labelWidth sizes the team column to the terminal.
func labelWidth(verbose bool) int {
	const defaultWidth = 36
	if !verbose {
		return defaultWidth
	}
	// "  HH:MM  VENUE(12)  ID(8)  " + marker
	available := termWidth() - 40
	if available > defaultWidth {
		return available
	}
	return defaultWidth
}

// severitySymbol returns the indicator for the worst severity in cs.
func severitySymbol(cs []schedule.Conflict) string {
	switch {
	case len(cs) == 0:
		return " "
	case conflict.HasCritical(cs):
		return formatCritical("✗")
	default:
		return formatWarning("!")
	}
}

// printMatchRow prints one match line of the schedule view.
func printMatchRow(w io.Writer, m *schedule.Match, modified bool, conflicts []schedule.Conflict, width int) {
	hhmm, venue := "--:--", "-"
	if m.Slot != nil {
		hhmm, venue = m.Slot.Time, m.Slot.Venue
	}

	label := truncate(fmt.Sprintf("%s [%s]", m.Label(), m.Teams[0].Gender), width)
	id := m.ID
	if modified {
		id = formatModified(id + "*")
	}

	var flags []string
	if m.Fixed {
		flags = append(flags, "fixed")
	}
	if m.Entente {
		flags = append(flags, "entente")
	}
	suffix := ""
	if len(flags) > 0 {
		suffix = "  " + formatMuted("("+strings.Join(flags, ", ")+")")
	}

	fmt.Fprintf(w, "  %s %s  %-12s  %-8s  %s%s\n",
		severitySymbol(conflicts), hhmm, truncate(venue, 12), id, label, suffix)
}

// printConflict prints one conflict with its severity.
func printConflict(w io.Writer, c schedule.Conflict) {
	sev := formatWarning("warning ")
	if c.IsCritical() {
		sev = formatCritical("critical")
	}
	fmt.Fprintf(w, "  %s  %-16s  %s\n", sev, c.Type, c.Message)
}

// printOutcome reports the result of a write.
func printOutcome(w io.Writer, out engine.Outcome, done string) {
	switch out.Status {
	case engine.StatusCommitted:
		fmt.Fprintln(w, formatSuccess(done))
		for _, c := range out.Warnings {
			printConflict(w, c)
		}
	case engine.StatusUnchanged:
		fmt.Fprintf(w, "Nothing to do: %s\n", out.Reason)
	case engine.StatusRejected:
		fmt.Fprintf(w, "%s %s\n", formatCritical("Rejected:"), out.Reason)
	case engine.StatusNeedsConfirmation:
		fmt.Fprintln(w, formatWarning("This edit introduces warnings:"))
		for _, c := range out.Warnings {
			printConflict(w, c)
		}
	}
	if out.PersistWarning != nil {
		fmt.Fprintf(w, "%s %v\n", formatWarning("Not saved:"), out.PersistWarning)
	}
}

// outcomeErr turns a rejected outcome into a command error so the exit code
// reflects it. Persistence failures are reported but not fatal.
func outcomeErr(out engine.Outcome) error {
	if out.Status == engine.StatusRejected {
		return fmt.Errorf("edit rejected: %s", out.Reason)
	}
	if out.Status == engine.StatusNeedsConfirmation {
		return errors.New("edit not applied: confirm the warnings with --yes")
	}
	return nil
}

// isPersistence reports whether err only failed to store an applied change.
func isPersistence(err error) bool {
	return errors.Is(err, state.ErrPersistence)
}
