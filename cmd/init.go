package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/conneroisu/stt/internal/services"
)

var initCmd = &cobra.Command{
	Use:     "init [dir]",
	Aliases: []string{"i"},
	Short:   "Initialize a new stt project",
	Long: `Create a .stt.yml configuration, a templates directory and the .stt
working directory. Unless --minimal is given, a few example templates are
added as well; existing files are never overwritten.

Examples:
  stt init              # initialize the current directory
  stt init reports      # initialize a new directory
  stt init --minimal    # configuration only`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

var (
	initMinimal bool
	initForce   bool
)

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().BoolVar(&initMinimal, "minimal", false, "minimal setup without example templates")
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing .stt.yml")
}

func runInit(cmd *cobra.Command, args []string) error {
	projectDir := "."
	if len(args) == 1 {
		projectDir = args[0]
		if err := os.MkdirAll(projectDir, 0o755); err != nil {
			return fmt.Errorf("failed to create project directory: %w", err)
		}
	}

	service := services.NewInitService()
	err := service.InitProject(services.InitOptions{
		ProjectDir: projectDir,
		Minimal:    initMinimal,
		Force:      initForce,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	successColor.Fprint(out, "Initialized ")
	fmt.Fprintf(out, "stt project in %s\n", projectDir)
	fmt.Fprintf(out, "  config:    %s\n", filepath.Join(projectDir, services.ConfigFileName))
	fmt.Fprintf(out, "  templates: %s\n", filepath.Join(projectDir, "templates"))
	if !initMinimal {
		fmt.Fprintln(out, "\nTry: stt transform templates/hello.txt.tt Ada 3")
	}
	return nil
}
