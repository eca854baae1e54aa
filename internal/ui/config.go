package ui

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/javiermolinar/matchplan/internal/config"
)

func (a *App) configCmd() *cobra.Command {
	var edit bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "View or edit configuration",
		Long: `Show the configuration in effect.

If no config file exists, creates one with default values. With --edit,
prompts for each value and saves the result.

Example:
  matchplan config --edit`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runConfig(cmd.InOrStdin(), cmd.OutOrStdout(), config.DefaultConfigPath(), edit)
		},
	}

	cmd.Flags().BoolVarP(&edit, "edit", "e", false, "Edit the configuration interactively")
	return cmd
}

func (a *App) runConfig(in io.Reader, w io.Writer, configPath string, edit bool) error {
	fmt.Fprintf(w, "Config file: %s\n\n", configPath)

	// Check if file exists
	_, fileErr := os.Stat(configPath)
	if os.IsNotExist(fileErr) {
		fmt.Fprintln(w, "No config file found. Creating with default values...")
		if err := a.config.SaveTo(configPath); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}
		fmt.Fprintf(w, "Created %s\n\n", configPath)
	}

	printConfig(w, a.config)
	if !edit {
		return nil
	}

	cfg := *a.config
	reader := bufio.NewReader(in)
	fmt.Fprintln(w)

	cfg.Solution.Path = promptValue(reader, w, "Solution path", cfg.Solution.Path)
	cfg.Solution.BaseName = promptValue(reader, w, "Base solution name (empty for file name)", cfg.Solution.BaseName)
	cfg.Schedule.Times = promptSlice(reader, w, "Extra times (comma-separated)", cfg.Schedule.Times)
	cfg.Schedule.Venues = promptSlice(reader, w, "Extra venues (comma-separated)", cfg.Schedule.Venues)
	cfg.Schedule.MinRestMinutes = promptInt(reader, w, "Minimum rest (minutes)", cfg.Schedule.MinRestMinutes)
	cfg.History.MaxEntries = promptInt(reader, w, "History size", cfg.History.MaxEntries)
	cfg.Export.Author = promptValue(reader, w, "Export author", cfg.Export.Author)
	cfg.Storage.DBPath = promptValue(reader, w, "Database path", cfg.Storage.DBPath)
	cfg.Log.Level = promptValue(reader, w, "Log level", cfg.Log.Level)

	// Validate before saving
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.SaveTo(configPath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	*a.config = cfg

	fmt.Fprintln(w, "\nConfiguration saved!")
	return nil
}

func printConfig(w io.Writer, cfg *config.Config) {
	fmt.Fprintln(w, "Current configuration:")
	fmt.Fprintln(w, "──────────────────────")
	fmt.Fprintln(w, "[schedule]")
	fmt.Fprintf(w, "  weeks            = %s\n", joinInts(cfg.Schedule.Weeks))
	fmt.Fprintf(w, "  times            = %s\n", strings.Join(cfg.Schedule.Times, ", "))
	fmt.Fprintf(w, "  venues           = %s\n", strings.Join(cfg.Schedule.Venues, ", "))
	fmt.Fprintf(w, "  min_rest_minutes = %d\n", cfg.Schedule.MinRestMinutes)
	if len(cfg.Venues.Capacities) > 0 {
		fmt.Fprintln(w, "\n[venues.capacities]")
		venues := make([]string, 0, len(cfg.Venues.Capacities))
		for v := range cfg.Venues.Capacities {
			venues = append(venues, v)
		}
		sort.Strings(venues)
		for _, v := range venues {
			fmt.Fprintf(w, "  %-16q = %d\n", v, cfg.Venues.Capacities[v])
		}
	}
	fmt.Fprintln(w, "\n[solution]")
	fmt.Fprintf(w, "  path             = %s\n", cfg.Solution.Path)
	fmt.Fprintf(w, "  base_name        = %s\n", cfg.Solution.BaseName)
	fmt.Fprintln(w, "\n[storage]")
	fmt.Fprintf(w, "  db_path          = %s\n", cfg.Storage.DBPath)
	fmt.Fprintln(w, "\n[history]")
	fmt.Fprintf(w, "  max_entries      = %d\n", cfg.History.MaxEntries)
	fmt.Fprintln(w, "\n[export]")
	fmt.Fprintf(w, "  author           = %s\n", cfg.Export.Author)
	fmt.Fprintln(w, "\n[log]")
	fmt.Fprintf(w, "  level            = %s\n", cfg.Log.Level)
}

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ", ")
}

func promptValue(reader *bufio.Reader, w io.Writer, label, current string) string {
	if current == "" {
		fmt.Fprintf(w, "  %s: ", label)
	} else {
		fmt.Fprintf(w, "  %s [%s]: ", label, current)
	}
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		return current
	}
	return input
}

func promptSlice(reader *bufio.Reader, w io.Writer, label string, current []string) []string {
	currentStr := strings.Join(current, ", ")
	fmt.Fprintf(w, "  %s [%s]: ", label, currentStr)
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		return current
	}
	parts := strings.Split(input, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

func promptInt(reader *bufio.Reader, w io.Writer, label string, current int) int {
	for {
		value := promptValue(reader, w, label, strconv.Itoa(current))
		n, err := strconv.Atoi(value)
		if err == nil {
			return n
		}
		fmt.Fprintf(w, "  Invalid number %q\n", value)
		if _, perr := reader.Peek(1); perr != nil {
			return current
		}
	}
}
