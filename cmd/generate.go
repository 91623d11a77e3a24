package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/conneroisu/stt/internal/build"
)

var generateCmd = &cobra.Command{
	Use:   "generate <template>",
	Short: "Print the Go program composed for a template",
	Long: `Compose the Go program for a template without compiling it.

With --module the full module (program, runtime support files and go.mod)
is written to a directory, ready for go build.

Examples:
  stt generate hello.txt.tt
  stt generate hello.txt.tt -o hello.go
  stt generate hello.txt.tt --module ./hello-module`,
	Aliases: []string{"g"},
	Args:    cobra.ExactArgs(1),
	RunE:    runGenerate,
}

var (
	generateOutput  string
	generateModule  string
	generateModules []string
)

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringVarP(&generateOutput, "output", "o", "", "write the program to a file instead of stdout")
	generateCmd.Flags().StringVar(&generateModule, "module", "", "write the whole generated module to this directory")
	generateCmd.Flags().StringSliceVar(&generateModules, "require", nil, `extra requirement for the module, "path version"`)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.saveRegistry(cmd)

	tr, err := a.transformer()
	if err != nil {
		return err
	}
	unit, err := tr.GenerateFile(args[0])
	if err != nil {
		printFailure(cmd.ErrOrStderr(), err)
		return errReported
	}

	if generateModule != "" {
		modules := append(append([]string(nil), a.config.Backend.Modules...), generateModules...)
		files, err := a.backend.ModuleFiles(build.CompileRequest{Unit: unit, Modules: modules})
		if err != nil {
			return err
		}
		if err := writeFiles(generateModule, files); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d files to %s\n", len(files), generateModule)
		return nil
	}

	if generateOutput == "" {
		_, err = fmt.Fprint(cmd.OutOrStdout(), unit.Source)
		return err
	}
	return os.WriteFile(generateOutput, []byte(unit.Source), 0o644)
}

func writeFiles(dir string, files map[string][]byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), files[name], 0o644); err != nil {
			return err
		}
	}
	return nil
}
