package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conneroisu/stt/internal/services"
	"github.com/conneroisu/stt/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch [paths...]",
	Short: "Re-render templates when they change",
	Long: `Render every template once, then watch the configured paths and
render again whenever a template file changes. A change to a file that is
only included by others re-renders everything.

Examples:
  stt watch -o out
  stt watch -o out --verbose`,
	Aliases: []string{"w"},
	RunE:    runWatch,
}

var (
	watchFlags   *TemplateFlags
	watchOutput  string
	watchVerbose bool
)

func init() {
	rootCmd.AddCommand(watchCmd)

	watchFlags = addTemplateFlags(watchCmd)
	watchCmd.Flags().StringVarP(&watchOutput, "output", "o", "", "directory outputs are written to (required)")
	watchCmd.Flags().BoolVarP(&watchVerbose, "verbose", "v", false, "list every changed file")
	watchCmd.MarkFlagRequired("output")
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.saveRegistry(cmd)

	opts, err := renderOptions(watchFlags, args)
	if err != nil {
		return err
	}
	opts.OutputDir = watchOutput
	service := services.NewRenderService(a.config, a.backend, a.registry, a.logger)

	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
	render := func(ctx context.Context, renderOpts services.RenderOptions) {
		result, err := service.Render(ctx, renderOpts)
		if err != nil {
			printFailure(errOut, err)
			return
		}
		reportRender(out, errOut, result)
		a.saveRegistry(cmd)
	}

	fileWatcher, err := watcher.NewFileWatcher(a.config.Watch.Debounce, a.logger, a.config.Watch.Ignore...)
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fileWatcher.Stop()

	fileWatcher.AddFilter(watcher.ExtensionFilter(a.config.Templates.Extensions...))
	fileWatcher.AddFilter(watcher.NoHiddenFilter)
	fileWatcher.AddFilter(watcher.NoGitFilter)

	roots, err := service.Discover(args)
	if err != nil {
		return err
	}
	isRoot := make(map[string]bool, len(roots))
	for _, r := range roots {
		isRoot[r] = true
	}

	fileWatcher.AddHandler(func(ctx context.Context, events []watcher.ChangeEvent) error {
		if watchVerbose {
			for _, event := range events {
				fmt.Fprintf(out, "%s: %s\n", event.Type, event.Path)
			}
		} else {
			fmt.Fprintf(out, "%d file(s) changed\n", len(events))
		}

		changed := services.RenderOptions{Context: opts.Context, Values: opts.Values, OutputDir: opts.OutputDir}
		for _, event := range events {
			if event.Type == watcher.EventTypeDeleted || event.Type == watcher.EventTypeRenamed {
				continue
			}
			if !isRoot[event.Path] {
				// An include changed; everything may depend on it.
				changed.Paths = args
				break
			}
			changed.Paths = append(changed.Paths, event.Path)
		}
		if changed.Paths == nil && len(args) > 0 {
			return nil
		}
		render(ctx, changed)
		return nil
	})

	for _, path := range a.config.Watch.Paths {
		if err := fileWatcher.AddRecursive(path); err != nil {
			fmt.Fprintf(errOut, "Warning: failed to watch path %s: %v\n", path, err)
		} else if watchVerbose {
			fmt.Fprintf(out, "Watching %s\n", path)
		}
	}

	render(cmdContext(cmd), opts)

	ctx, stop := signal.NotifyContext(cmdContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := fileWatcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}
	fmt.Fprintln(out, "Watching for changes... (Press Ctrl+C to stop)")

	<-ctx.Done()
	fmt.Fprintln(out, "Stopping file watcher...")
	return nil
}
