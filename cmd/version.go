package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/conneroisu/stt/internal/version"
)

var (
	versionFormat   string
	versionShort    bool
	versionDetailed bool
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Display the stt version, git commit, build time, Go version and
platform.

Examples:
  stt version               # one line
  stt version --detailed    # every build fact
  stt version --format json`,
	Args: cobra.NoArgs,
	RunE: runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().StringVarP(&versionFormat, "format", "f", "text", "output format (text, json, yaml)")
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "show the version number only")
	versionCmd.Flags().BoolVar(&versionDetailed, "detailed", false, "show detailed version information")
}

func runVersion(cmd *cobra.Command, _ []string) error {
	return writeVersion(cmd.OutOrStdout(), versionFormat, versionShort, versionDetailed)
}

func writeVersion(w io.Writer, format string, short, detailed bool) error {
	switch format {
	case "json", "yaml":
		return encodeStructured(w, version.GetBuildInfo(), format)
	case "text":
		switch {
		case short:
			fmt.Fprintln(w, version.GetShortVersion())
		case detailed:
			fmt.Fprintln(w, version.GetDetailedVersion())
		default:
			info := version.GetBuildInfo()
			fmt.Fprintf(w, "stt %s", info.Version)
			if len(info.GitCommit) >= 7 && info.GitCommit != "unknown" {
				fmt.Fprintf(w, " (%s)", info.GitCommit[:7])
			}
			if info.Modified {
				fmt.Fprint(w, " (dirty)")
			}
			fmt.Fprintf(w, "\nGo: %s\nPlatform: %s\n", info.GoVersion, info.Platform)
		}
		return nil
	default:
		return fmt.Errorf("unsupported format: %s (supported: text, json, yaml)", format)
	}
}
