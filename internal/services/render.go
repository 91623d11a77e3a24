package services

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/conneroisu/stt/internal/build"
	"github.com/conneroisu/stt/internal/config"
	"github.com/conneroisu/stt/internal/errors"
	"github.com/conneroisu/stt/internal/logging"
	"github.com/conneroisu/stt/internal/registry"
	"github.com/conneroisu/stt/internal/transformer"
	"github.com/conneroisu/stt/internal/types"
)

// RenderService transforms many templates at once. Each template gets its
// own Transformer; the backend and the registry are shared.
type RenderService struct {
	config   *config.Config
	backend  build.Backend
	registry *registry.Registry
	logger   logging.Logger
}

// NewRenderService creates a render service.
func NewRenderService(cfg *config.Config, backend build.Backend, reg *registry.Registry, logger logging.Logger) *RenderService {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if reg == nil {
		reg = registry.Default()
	}
	return &RenderService{
		config:   cfg,
		backend:  backend,
		registry: reg,
		logger:   logger.WithComponent("render"),
	}
}

// RenderOptions contains options for a render run
type RenderOptions struct {
	// Paths are template files or directories to search. The base
	// directory is used when empty.
	Paths []string
	// OutputDir receives one output file per template; nothing is written
	// when it is empty.
	OutputDir string
	Context   any
	Values    []any
	Jobs      int
}

// RenderedTemplate is the outcome of one template.
type RenderedTemplate struct {
	Path       string
	OutputPath string
	Output     string
	Warnings   []types.Diagnostic
	Duration   time.Duration
	Err        error
}

// RenderResult contains the result of a render run, in input order.
type RenderResult struct {
	Duration  time.Duration
	Templates []RenderedTemplate
	Failed    int
}

// Render transforms every discovered template. A failing template is
// recorded in its result and does not stop the others; the returned error
// is reserved for discovery failures and cancellation.
func (s *RenderService) Render(ctx context.Context, opts RenderOptions) (*RenderResult, error) {
	start := time.Now()

	paths, err := s.Discover(opts.Paths)
	if err != nil {
		return nil, err
	}

	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = s.config.Backend.Jobs
	}
	if jobs <= 0 {
		jobs = 1
	}

	results := make([]RenderedTemplate, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, min(jobs, len(paths))))

	for i, path := range paths {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			results[i] = s.renderOne(gctx, path, opts)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &RenderResult{Templates: results, Duration: time.Since(start)}
	for _, r := range results {
		if r.Err != nil {
			result.Failed++
		}
	}

	s.logger.Info(ctx, "Render finished",
		"templates", len(results),
		"failed", result.Failed,
		"duration_ms", result.Duration.Milliseconds())

	return result, nil
}

func (s *RenderService) renderOne(ctx context.Context, path string, opts RenderOptions) RenderedTemplate {
	perf := logging.StartOperation(s.logger.With("template", path), "render_template")
	rendered := RenderedTemplate{Path: path}

	fail := func(err error) RenderedTemplate {
		rendered.Err = err
		rendered.Duration = perf.EndWithError(ctx, err)
		return rendered
	}

	var extra []transformer.Option
	if opts.Context != nil {
		extra = append(extra, transformer.WithContext(opts.Context))
	}
	tr, err := transformer.New(TransformerOptions(s.config, s.backend, s.registry, s.logger, extra...)...)
	if err != nil {
		return fail(err)
	}

	if s.config.Backend.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Backend.Timeout)
		defer cancel()
	}

	output, err := tr.TransformFile(ctx, path, opts.Values...)
	rendered.Warnings = tr.Warnings()
	if err != nil {
		return fail(err)
	}
	rendered.Output = output

	if opts.OutputDir != "" {
		rendered.OutputPath = s.OutputPath(path, opts.OutputDir)
		if err := os.MkdirAll(filepath.Dir(rendered.OutputPath), 0o755); err != nil {
			return fail(errors.NewIOError("", "creating output directory", err))
		}
		if err := os.WriteFile(rendered.OutputPath, []byte(output), 0o644); err != nil {
			return fail(errors.NewIOError("", "writing output", err).WithContext("path", rendered.OutputPath))
		}
	}

	rendered.Duration = perf.End(ctx, "bytes", len(output))
	return rendered
}

// OutputPath maps a template to its output file: the path relative to the
// base directory, under outputDir, without the template extension.
func (s *RenderService) OutputPath(templatePath, outputDir string) string {
	rel := filepath.Base(templatePath)
	base, err := filepath.Abs(s.config.Templates.BaseDir)
	if err != nil {
		base = s.config.Templates.BaseDir
	}
	if abs, err := filepath.Abs(templatePath); err == nil {
		templatePath = abs
	}
	if r, err := filepath.Rel(base, templatePath); err == nil && !strings.HasPrefix(r, "..") {
		rel = r
	}
	if s.config.IsTemplate(rel) {
		rel = strings.TrimSuffix(rel, filepath.Ext(rel))
	}
	return filepath.Join(outputDir, rel)
}

// Discover expands directories into the templates they contain. Files named
// explicitly are kept whatever their extension. The result is sorted and
// free of duplicates.
func (s *RenderService) Discover(paths []string) ([]string, error) {
	if len(paths) == 0 {
		paths = []string{s.config.Templates.BaseDir}
	}

	seen := make(map[string]bool)
	var found []string
	add := func(path string) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		if !seen[path] {
			seen[path] = true
			found = append(found, path)
		}
	}

	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, errors.NewIOError("", "reading template path", err).WithContext("path", root)
		}
		if !info.IsDir() {
			add(root)
			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != root && s.ignored(d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}
			if s.config.IsTemplate(path) {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, errors.NewIOError("", fmt.Sprintf("searching %s", root), err)
		}
	}

	sort.Strings(found)
	return found, nil
}

func (s *RenderService) ignored(name string) bool {
	for _, pattern := range s.config.Watch.Ignore {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}
