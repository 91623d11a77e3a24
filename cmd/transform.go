package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/conneroisu/stt/internal/transformer"
)

var transformCmd = &cobra.Command{
	Use:   "transform <template> [values...]",
	Short: "Transform one template",
	Long: `Compile and run one template and print its output.

Positional values bind to the template's <#@ property #> directives in
declaration order. Each value is read as YAML, so 3 is a number, true is a
boolean and '"3"' is a string.

Examples:
  stt transform hello.txt.tt Ada 3
  stt transform report.md.tt --context '{title: Q3}' -o report.md
  stt transform page.tt --set env=prod --values-file values.yml`,
	Aliases: []string{"t"},
	Args:    cobra.MinimumNArgs(1),
	RunE:    runTransform,
}

var (
	transformFlags  *TemplateFlags
	transformOutput string
)

func init() {
	rootCmd.AddCommand(transformCmd)

	transformFlags = addTemplateFlags(transformCmd)
	transformCmd.Flags().StringVarP(&transformOutput, "output", "o", "", "write the output to a file instead of stdout")
}

func runTransform(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.saveRegistry(cmd)

	values, err := transformFlags.ParseValues(args[1:])
	if err != nil {
		return err
	}
	opts, err := templateOptions(transformFlags)
	if err != nil {
		return err
	}
	tr, err := a.transformer(opts...)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdContext(cmd), a.config.Backend.Timeout)
	defer cancel()

	output, err := tr.TransformFile(ctx, args[0], values...)
	printWarnings(cmd.ErrOrStderr(), tr.Warnings())
	if err != nil {
		printFailure(cmd.ErrOrStderr(), err)
		return errReported
	}

	if transformOutput == "" {
		_, err = fmt.Fprint(cmd.OutOrStdout(), output)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(transformOutput), 0o755); err != nil {
		return err
	}
	return os.WriteFile(transformOutput, []byte(output), 0o644)
}

// templateOptions maps the shared template flags onto transformer options.
// Flags only override the configuration when given.
func templateOptions(flags *TemplateFlags) ([]transformer.Option, error) {
	value, err := flags.ParseContext()
	if err != nil {
		return nil, err
	}

	var opts []transformer.Option
	if value != nil {
		opts = append(opts, transformer.WithContext(value))
	}
	if flags.Trim {
		opts = append(opts, transformer.WithTrim(true))
	}
	if len(flags.Modules) > 0 {
		opts = append(opts, transformer.WithModules(flags.Modules...))
	}
	return opts, nil
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
