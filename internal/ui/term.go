package ui

import (
	"os"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// Color definitions for consistent styling across the UI.
var (
	// Critical conflicts: bold red
	colorCritical = color.New(color.FgRed, color.Bold)

	// Warnings: yellow to make them pop
	colorWarning = color.New(color.FgYellow)

	// Modified matches: cyan
	colorModified = color.New(color.FgCyan)

	// Headers: bold
	colorHeader = color.New(color.Bold)

	// Success messages: green
	colorSuccess = color.New(color.FgGreen)

	// Muted: for secondary information
	colorMuted = color.New(color.FgWhite, color.Faint)
)

// termWidth returns the terminal width, or a default if detection fails.
func termWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 80 // sensible default
	}
	return width
}

// isInteractive returns true when stdin is a terminal.
func isInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// DisableColor disables all color output.
func DisableColor() {
	color.NoColor = true
}

// EnableColor enables color output (if terminal supports it).
func EnableColor() {
	color.NoColor = false
}

func formatCritical(s string) string {
	return colorCritical.Sprint(s)
}

func formatWarning(s string) string {
	return colorWarning.Sprint(s)
}

func formatModified(s string) string {
	return colorModified.Sprint(s)
}

// formatHeader formats text as a header.
func formatHeader(s string) string {
	return colorHeader.Sprint(s)
}

func formatSuccess(s string) string {
	return colorSuccess.Sprint(s)
}

// formatMuted formats text as secondary/muted.
func formatMuted(s string) string {
	return colorMuted.Sprint(s)
}
