package build

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/conneroisu/stt/internal/emitter"
	"github.com/conneroisu/stt/internal/errors"
	"github.com/conneroisu/stt/internal/logging"
	"github.com/conneroisu/stt/internal/sink"
	"github.com/conneroisu/stt/internal/types"
	"github.com/conneroisu/stt/internal/validation"
)

// DefaultGoVersion is written to the generated go.mod when neither the
// template nor the configuration names one.
const DefaultGoVersion = "1.21"

// GeneratedModulePath is the module path of every generated program.
const GeneratedModulePath = "stt/generated"

const binaryName = "template.bin"

// GoBackend compiles units with the go tool.
type GoBackend struct {
	goBinary  string
	goVersion string
	vet       bool
	workDir   string
	cache     *ArtifactCache
	logger    logging.Logger
}

// GoOption configures a GoBackend.
type GoOption func(*GoBackend)

// WithGoBinary sets the go executable, "go" by default.
func WithGoBinary(path string) GoOption {
	return func(b *GoBackend) { b.goBinary = path }
}

// WithGoVersion sets the go directive used when the unit has no version.
func WithGoVersion(version string) GoOption {
	return func(b *GoBackend) { b.goVersion = version }
}

// WithVet runs go vet after a successful build; findings become warnings.
func WithVet(enabled bool) GoOption {
	return func(b *GoBackend) { b.vet = enabled }
}

// WithWorkDir sets the parent directory for temporary modules.
func WithWorkDir(dir string) GoOption {
	return func(b *GoBackend) { b.workDir = dir }
}

// WithCache reuses binaries across identical compiles.
func WithCache(cache *ArtifactCache) GoOption {
	return func(b *GoBackend) { b.cache = cache }
}

// WithBackendLogger sets the logger.
func WithBackendLogger(logger logging.Logger) GoOption {
	return func(b *GoBackend) { b.logger = logger }
}

// NewGoBackend creates a backend that shells out to the go tool.
func NewGoBackend(opts ...GoOption) *GoBackend {
	b := &GoBackend{
		goBinary: "go",
		logger:   logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.WithComponent("go_backend")
	return b
}

// ModuleFiles returns every file of the module a unit is built in.
func (b *GoBackend) ModuleFiles(req CompileRequest) (map[string][]byte, error) {
	if req.Unit == nil {
		return nil, fmt.Errorf("compile request has no unit")
	}
	if req.Unit.Language.Language != types.LanguageGo {
		return nil, errors.NewConfigurationError(
			errors.CodeLanguageNotSupported,
			fmt.Sprintf("go backend cannot compile %s", req.Unit.Language),
		)
	}

	for _, m := range req.Modules {
		if err := validation.ValidateRequirement(m); err != nil {
			return nil, errors.NewConfigurationError(errors.CodeInvalidModule, err.Error())
		}
	}

	files, err := sink.SupportFiles()
	if err != nil {
		return nil, err
	}
	files[emitter.UnitFileName] = []byte(req.Unit.Source)
	files["go.mod"] = []byte(b.goMod(req))
	return files, nil
}

func (b *GoBackend) goMod(req CompileRequest) string {
	version := req.Unit.Language.Version
	if version == "" {
		version = b.goVersion
	}
	if version == "" {
		version = DefaultGoVersion
	}

	var mod strings.Builder
	fmt.Fprintf(&mod, "module %s\n\ngo %s\n", GeneratedModulePath, version)
	if len(req.Modules) > 0 {
		mod.WriteString("\nrequire (\n")
		for _, m := range req.Modules {
			fmt.Fprintf(&mod, "\t%s\n", strings.TrimSpace(m))
		}
		mod.WriteString(")\n")
	}
	return mod.String()
}

// Compile builds the unit. Compiler errors are returned as diagnostics, not
// as an error; the error result is reserved for failures to run the tool.
func (b *GoBackend) Compile(ctx context.Context, req CompileRequest) (*Compilation, error) {
	perf := logging.StartOperation(b.logger, "go_compile")

	files, err := b.ModuleFiles(req)
	if err != nil {
		perf.EndWithError(ctx, err)
		return nil, err
	}

	key := Key(files)
	if b.cache != nil {
		if path, diags, ok := b.cache.Get(key); ok {
			d := perf.End(ctx, "cached", true, "key", key[:12])
			return &Compilation{
				Artifact:    &binaryArtifact{path: path},
				Diagnostics: diags,
				Cached:      true,
				Duration:    d,
			}, nil
		}
	}

	dir, err := os.MkdirTemp(b.workDir, "stt-build-")
	if err != nil {
		perf.EndWithError(ctx, err)
		return nil, errors.NewIOError("", "creating build directory", err)
	}
	keepDir := false
	defer func() {
		if !keepDir {
			os.RemoveAll(dir)
		}
	}()

	for name, data := range files {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			perf.EndWithError(ctx, err)
			return nil, errors.NewIOError("", "writing "+name, err)
		}
	}

	parser := errors.NewDiagnosticParser(dir)

	out, err := b.goCommand(ctx, dir, "build", "-mod=mod", "-o", binaryName, ".")
	if err != nil {
		if ctx.Err() != nil {
			perf.EndWithError(ctx, ctx.Err())
			return nil, fmt.Errorf("go build: %w", ctx.Err())
		}
		if _, ok := err.(*exec.ExitError); !ok {
			perf.EndWithError(ctx, err)
			return nil, fmt.Errorf("running %s: %w", b.goBinary, err)
		}

		diags := parser.Parse(out, true)
		if !errors.HasErrors(diags) {
			diags = append(diags, Diagnostic{
				IsError:  true,
				Filename: filepath.Join(dir, emitter.UnitFileName),
				Code:     "build",
				Message:  strings.TrimSpace(out),
			})
		}
		d := perf.End(ctx, "errors", len(diags))
		return &Compilation{Diagnostics: diags, Duration: d}, nil
	}

	var warnings []Diagnostic
	if b.vet {
		warnings = b.runVet(ctx, dir, parser)
	}

	binPath := filepath.Join(dir, binaryName)
	compilation := &Compilation{Diagnostics: warnings}

	if b.cache != nil {
		cached, err := b.cache.Put(key, binPath, warnings)
		if err == nil {
			compilation.Artifact = &binaryArtifact{path: cached}
			compilation.Duration = perf.End(ctx, "warnings", len(warnings), "cached", false)
			return compilation, nil
		}
		b.logger.Warn(ctx, err, "Failed to cache template binary")
	}

	keepDir = true
	compilation.Artifact = &binaryArtifact{path: binPath, cleanup: dir}
	compilation.Duration = perf.End(ctx, "warnings", len(warnings))
	return compilation, nil
}

func (b *GoBackend) runVet(ctx context.Context, dir string, parser *errors.DiagnosticParser) []Diagnostic {
	out, err := b.goCommand(ctx, dir, "vet", ".")
	if err == nil && strings.TrimSpace(out) == "" {
		return nil
	}

	diags := parser.Parse(out, false)
	for i := range diags {
		diags[i].IsError = false
		diags[i].Code = "vet"
	}
	if err != nil && len(diags) == 0 {
		b.logger.Warn(ctx, err, "go vet failed", "output", out)
	}
	return diags
}

func (b *GoBackend) goCommand(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, b.goBinary, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GOWORK=off",
		"CGO_ENABLED=0",
		"GOFLAGS=",
		"GOTOOLCHAIN=local",
	)

	b.logger.Debug(ctx, "Running go tool", "args", strings.Join(args, " "), "dir", dir)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// binaryArtifact runs a compiled template program.
type binaryArtifact struct {
	path    string
	cleanup string
}

// Run starts the program, sends one request and reads one response.
func (a *binaryArtifact) Run(ctx context.Context, inv Invocation) (*Execution, error) {
	request, err := json.Marshal(sink.Request{
		Context:    inv.Context,
		Properties: inv.Properties,
		SourcePath: inv.SourcePath,
		Trim:       inv.Trim,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, a.path)
	cmd.Stdin = bytes.NewReader(request)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	if runErr != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("template program: %w", ctx.Err())
		}
		if failure := parseCrash(stderr.String()); failure != nil {
			return &Execution{Failure: failure, Stderr: stderr.String(), Duration: elapsed}, nil
		}
		return nil, fmt.Errorf("template program failed: %w\n%s", runErr, strings.TrimSpace(stderr.String()))
	}

	var resp sink.Response
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("decoding template response: %w", err)
	}

	return &Execution{
		Output:   resp.Output,
		Failure:  resp.Failure,
		Stderr:   stderr.String(),
		Duration: elapsed,
	}, nil
}

// Close removes the build directory of an uncached artifact.
func (a *binaryArtifact) Close() error {
	if a.cleanup == "" {
		return nil
	}
	dir := a.cleanup
	a.cleanup = ""
	return os.RemoveAll(dir)
}

var traceLocation = regexp.MustCompile(`^\s+(.+):(\d+)(?: \+0x[0-9a-f]+)?$`)

// parseCrash extracts the message and first non-runtime frame of an
// unrecovered panic, which happens when a template panics on a goroutine
// of its own.
func parseCrash(stderr string) *Failure {
	idx := strings.Index(stderr, "panic: ")
	if idx < 0 {
		return nil
	}

	scanner := bufio.NewScanner(strings.NewReader(stderr[idx:]))
	scanner.Scan()
	failure := &Failure{Message: strings.TrimPrefix(scanner.Text(), "panic: "), Panic: true}

	var function string
	for scanner.Scan() {
		line := scanner.Text()
		if m := traceLocation.FindStringSubmatch(line); m != nil {
			if function != "" && !strings.HasPrefix(function, "runtime.") && !strings.HasPrefix(function, "panic(") {
				failure.File = m[1]
				failure.Line, _ = strconv.Atoi(m[2])
				break
			}
			continue
		}
		function = strings.TrimSpace(line)
	}
	return failure
}
