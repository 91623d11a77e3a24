package cmd

import (
	"fmt"
	"io"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/conneroisu/stt/internal/registry"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [token...]",
	Short: "Map provenance tokens back to template paths",
	Long: `Templates loaded from non-local paths are compiled under a token in
place of their path. Diagnostics from the toolchain or a debugger then name
the token; resolve prints the template path it stands for.

Tokens are kept in the registry snapshot between runs.

Examples:
  stt resolve 9f1c2ab4e0d34b7f8c16a2d0b5e4f312
  stt resolve --list
  stt resolve --path //server/share/report.tt`,
	RunE: runResolve,
}

var (
	resolveList  bool
	resolvePaths []string
	resolveFlags *OutputFlags
)

func init() {
	rootCmd.AddCommand(resolveCmd)

	resolveCmd.Flags().BoolVar(&resolveList, "list", false, "list every registered token")
	resolveCmd.Flags().StringArrayVar(&resolvePaths, "path", nil, "print the token registered for a path (repeatable)")
	resolveFlags = addOutputFlags(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	if err := resolveFlags.Validate(); err != nil {
		return err
	}
	if len(args) == 0 && len(resolvePaths) == 0 && !resolveList {
		return fmt.Errorf("give a token, --path or --list")
	}

	a, err := loadApp(cmd)
	if err != nil {
		return err
	}

	entries, missing := lookupEntries(a.registry, args, resolvePaths, resolveList)
	if err := writeEntries(cmd.OutOrStdout(), entries, resolveFlags.Format); err != nil {
		return err
	}
	for _, m := range missing {
		errorColor.Fprint(cmd.ErrOrStderr(), "not registered: ")
		fmt.Fprintln(cmd.ErrOrStderr(), m)
	}
	if len(missing) > 0 {
		return errReported
	}
	return nil
}

// lookupEntries collects the entries asked for and the tokens or paths that
// are not registered.
func lookupEntries(reg *registry.Registry, tokens, paths []string, all bool) ([]registry.Entry, []string) {
	var entries []registry.Entry
	var missing []string

	if all {
		entries = reg.Entries()
		sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	}
	for _, s := range tokens {
		tok, ok := registry.ParseToken(s)
		if !ok {
			missing = append(missing, s)
			continue
		}
		path, ok := reg.Resolve(tok)
		if !ok {
			missing = append(missing, s)
			continue
		}
		entries = append(entries, registry.Entry{Token: tok, Path: path})
	}
	for _, p := range paths {
		tok, ok := reg.Lookup(p)
		if !ok {
			missing = append(missing, p)
			continue
		}
		entries = append(entries, registry.Entry{Token: tok, Path: p})
	}
	return entries, missing
}

type entryView struct {
	Token string `json:"token" yaml:"token"`
	Path  string `json:"path" yaml:"path"`
}

func writeEntries(w io.Writer, entries []registry.Entry, format string) error {
	views := make([]entryView, len(entries))
	for i, e := range entries {
		views[i] = entryView{Token: e.Token.String(), Path: e.Path}
	}

	switch format {
	case "json", "yaml":
		return encodeStructured(w, views, format)
	default:
		table := tablewriter.NewWriter(w)
		table.SetHeader([]string{"Token", "Path"})
		table.SetBorder(false)
		table.SetAutoWrapText(false)
		for _, v := range views {
			table.Append([]string{v.Token, v.Path})
		}
		table.Render()
		return nil
	}
}
