package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/conneroisu/stt/internal/services"
)

var renderCmd = &cobra.Command{
	Use:   "render [paths...]",
	Short: "Transform many templates in parallel",
	Long: `Transform every template found under the given files and directories,
or under base_dir when none are given. Templates run in parallel; one
failing template does not stop the others.

Each output is written under --output with the template extension removed,
so templates/site/index.html.tt becomes <output>/site/index.html.

Examples:
  stt render -o out
  stt render templates/reports -o out -j 8 --set quarter=Q3`,
	Aliases: []string{"r"},
	RunE:    runRender,
}

var (
	renderFlags  *TemplateFlags
	renderOutput string
	renderJobs   int
)

func init() {
	rootCmd.AddCommand(renderCmd)

	renderFlags = addTemplateFlags(renderCmd)
	renderCmd.Flags().StringVarP(&renderOutput, "output", "o", "", "directory outputs are written to (required)")
	renderCmd.Flags().IntVarP(&renderJobs, "jobs", "j", 0, "templates transformed at once (default backend.jobs)")
	renderCmd.MarkFlagRequired("output")
}

func runRender(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.saveRegistry(cmd)

	opts, err := renderOptions(renderFlags, args)
	if err != nil {
		return err
	}
	opts.OutputDir = renderOutput
	opts.Jobs = renderJobs

	service := services.NewRenderService(a.config, a.backend, a.registry, a.logger)
	result, err := service.Render(cmdContext(cmd), opts)
	if err != nil {
		return err
	}

	reportRender(cmd.OutOrStdout(), cmd.ErrOrStderr(), result)
	if result.Failed > 0 {
		return errReported
	}
	return nil
}

func renderOptions(flags *TemplateFlags, paths []string) (services.RenderOptions, error) {
	value, err := flags.ParseContext()
	if err != nil {
		return services.RenderOptions{}, err
	}
	values, err := flags.ParseValues(nil)
	if err != nil {
		return services.RenderOptions{}, err
	}
	return services.RenderOptions{Paths: paths, Context: value, Values: values}, nil
}

func reportRender(out, errOut io.Writer, result *services.RenderResult) {
	for _, r := range result.Templates {
		printWarnings(errOut, r.Warnings)
		if r.Err != nil {
			printFailure(errOut, r.Err)
			continue
		}
		successColor.Fprint(out, "ok   ")
		fmt.Fprintf(out, "%s -> %s (%s)\n", r.Path, r.OutputPath, r.Duration.Round(1e6))
	}
	fmt.Fprintf(out, "%d templates, %d failed in %s\n", len(result.Templates), result.Failed, result.Duration.Round(1e6))
}
