package ui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/javiermolinar/matchplan/internal/exchange"
	"github.com/javiermolinar/matchplan/internal/state"
)

func (a *App) exportCmd() *cobra.Command {
	var output string
	var toClipboard bool

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the modification log",
		Long: `Write the modification log as a JSON document the solver can consume.
Without -o or --clipboard the document goes to stdout.

Example:
  matchplan export -o edits.json
  matchplan export --clipboard`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.ensureEngine(context.Background()); err != nil {
				return err
			}
			w := cmd.OutOrStdout()

			doc := a.engine.Export(exchange.Options{
				BaseSolution: a.baseName(),
				Author:       a.config.Export.Author,
			})
			data, err := doc.Marshal()
			if err != nil {
				return fmt.Errorf("encoding export: %w", err)
			}

			switch {
			case output != "":
				path, err := resolvePath(output)
				if err != nil {
					return err
				}
				if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
					return fmt.Errorf("writing export: %w", err)
				}
				fmt.Fprintf(w, "Exported %d modifications to %s\n", len(doc.Modifications), path)
			case toClipboard:
				if err := clipboard.WriteAll(string(data)); err != nil {
					return fmt.Errorf("copying to clipboard: %w", err)
				}
				fmt.Fprintf(w, "Copied %d modifications to the clipboard\n", len(doc.Modifications))
			default:
				fmt.Fprintln(w, string(data))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the document to this file")
	cmd.Flags().BoolVar(&toClipboard, "clipboard", false, "Copy the document to the clipboard")
	return cmd
}

func (a *App) importCmd() *cobra.Command {
	var merge bool

	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import a modification log",
		Long: `Load an exported document. By default it replaces the current log;
with --merge its entries are laid over the existing ones. The import is
a single history entry and can be undone.

Example:
  matchplan import edits.json --merge`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			if err := a.ensureEngine(ctx); err != nil {
				return err
			}
			w := cmd.OutOrStdout()

			path, err := resolvePath(args[0])
			if err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading import: %w", err)
			}
			doc, err := exchange.Parse(data)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			if base := a.baseName(); doc.BaseSolution != "" && base != "" && doc.BaseSolution != base {
				a.logger.Warn("import was exported from another solution", "document", doc.BaseSolution, "loaded", base)
			}

			mode := state.ImportReplace
			if merge {
				mode = state.ImportMerge
			}
			n, out := a.engine.Import(ctx, doc, mode)
			printOutcome(w, out, fmt.Sprintf("Imported %d modifications from %s", n, filepath.Base(path)))
			return outcomeErr(out)
		},
	}

	cmd.Flags().BoolVar(&merge, "merge", false, "Merge with the current log instead of replacing it")
	return cmd
}

func resolvePath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", fmt.Errorf("empty path")
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	return absPath, nil
}
