package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/mattn/go-runewidth"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/stt/internal/types"
)

var fragmentsCmd = &cobra.Command{
	Use:   "fragments <template>",
	Short: "List the fragments a template is cut into",
	Long: `Scan a template, expand its includes and list every fragment with its
kind and the line it starts on.

Examples:
  stt fragments page.tt
  stt fragments page.tt --format yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runFragments,
}

var fragmentsFlags *OutputFlags

func init() {
	rootCmd.AddCommand(fragmentsCmd)

	fragmentsFlags = addOutputFlags(fragmentsCmd)
}

func runFragments(cmd *cobra.Command, args []string) error {
	if err := fragmentsFlags.Validate(); err != nil {
		return err
	}
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	tr, err := a.transformer()
	if err != nil {
		return err
	}

	fragments, err := tr.FragmentsFile(args[0])
	if err != nil {
		printFailure(cmd.ErrOrStderr(), err)
		return errReported
	}
	return writeFragments(cmd.OutOrStdout(), fragments, fragmentsFlags.Format)
}

func writeFragments(w io.Writer, fragments []types.Fragment, format string) error {
	if format == "json" || format == "yaml" {
		return encodeStructured(w, fragments, format)
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "Kind", "Line", "Offset", "Source", "Text"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	for i, f := range fragments {
		table.Append([]string{
			strconv.Itoa(i + 1),
			f.Kind.String(),
			strconv.Itoa(f.StartLine),
			strconv.Itoa(f.Offset),
			f.SourcePath,
			preview(f.Text, 40),
		})
	}
	table.SetFooter([]string{"", "", "", "", "Total", fmt.Sprintf("%d", len(fragments))})
	table.Render()
	return nil
}

// encodeStructured writes v as indented JSON or as YAML.
func encodeStructured(w io.Writer, v any, format string) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// preview quotes text cut to at most n display columns.
func preview(text string, n int) string {
	if runewidth.StringWidth(text) > n {
		return strconv.Quote(runewidth.Truncate(text, n, "")) + "..."
	}
	return strconv.Quote(text)
}
