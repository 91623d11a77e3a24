// Package transformer turns template text into output.
//
// A transform call parses the template (following includes), routes its
// fragments to a code emitter, composes a compilation unit, compiles it
// through a Backend, and runs the result once with the caller's property
// values. Compiler diagnostics and runtime panics are reported at the
// template line they came from.
package transformer

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/conneroisu/stt/internal/build"
	"github.com/conneroisu/stt/internal/directive"
	"github.com/conneroisu/stt/internal/emitter"
	"github.com/conneroisu/stt/internal/errors"
	"github.com/conneroisu/stt/internal/logging"
	"github.com/conneroisu/stt/internal/registry"
	"github.com/conneroisu/stt/internal/types"
)

// MaxIncludeDepth bounds nested include directives.
const MaxIncludeDepth = 32

// Transformer runs templates. Calls may be made one after another; each
// call owns its own parse and emit state.
type Transformer struct {
	context     any
	contextSet  bool
	contextJSON json.RawMessage
	baseDir     string
	baseDirSet  bool
	backend     build.Backend
	registry    *registry.Registry
	logger      logging.Logger
	provenance  bool
	trim        bool
	stagingDir  string
	reader      directive.FileReader
	resolver    *directive.Resolver
	modules     []string

	mutex      sync.Mutex
	lastSource string
	warnings   []types.Diagnostic
}

// New creates a Transformer. It fails on a blank base directory or a
// context value that cannot be handed to a template.
func New(opts ...Option) (*Transformer, error) {
	t := &Transformer{
		provenance: true,
	}
	for _, opt := range opts {
		opt(t)
	}

	if t.baseDirSet {
		if strings.TrimSpace(t.baseDir) == "" {
			return nil, errors.NewConfigurationError(errors.CodeInvalidBaseDir, "base directory must not be empty")
		}
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, errors.NewIOError(errors.CodeInvalidBaseDir, "determining working directory", err)
		}
		t.baseDir = wd
	}
	if abs, err := filepath.Abs(t.baseDir); err == nil {
		t.baseDir = abs
	}

	if t.contextSet {
		data, err := encodeContext(t.context)
		if err != nil {
			return nil, err
		}
		t.contextJSON = data
	}

	if t.logger == nil {
		t.logger = logging.NewNopLogger()
	}
	t.logger = t.logger.WithComponent("transformer")
	if t.registry == nil {
		t.registry = registry.Default()
	}
	if t.stagingDir == "" {
		t.stagingDir = os.TempDir()
	}
	if t.reader == nil {
		t.reader = directive.OSFileReader{}
	}
	if t.backend == nil {
		t.backend = build.NewGoBackend(build.WithBackendLogger(t.logger))
	}
	t.resolver = directive.NewResolver(t.reader)

	return t, nil
}

// BaseDir returns the absolute base directory.
func (t *Transformer) BaseDir() string {
	return t.baseDir
}

// Registry returns the registry tokens are minted in.
func (t *Transformer) Registry() *registry.Registry {
	return t.registry
}

// TransformFile reads and transforms the template at path. Relative paths
// resolve against the base directory. A missing file is reported with the
// error from the file reader.
func (t *Transformer) TransformFile(ctx context.Context, path string, values ...any) (string, error) {
	path = t.resolvePath(path)
	data, err := t.reader.ReadFile(path)
	if err != nil {
		return "", err
	}
	return t.TransformText(ctx, string(data), path, values...)
}

// TransformText transforms template text. sourcePath names the template in
// diagnostics and resolves its includes; it may be empty or non-local.
func (t *Transformer) TransformText(ctx context.Context, text, sourcePath string, values ...any) (string, error) {
	t.remember(sourcePath)

	r := t.newRun(sourcePath)
	output, err := r.transform(ctx, text, values)

	t.mutex.Lock()
	t.warnings = r.warnings
	t.mutex.Unlock()

	return output, err
}

// TransformRelativeFile transforms a template next to the last transformed
// one, or under the base directory when there was none.
func (t *Transformer) TransformRelativeFile(ctx context.Context, rel string, values ...any) (string, error) {
	t.mutex.Lock()
	last := t.lastSource
	t.mutex.Unlock()

	dir := t.baseDir
	if last != "" && emitter.IsLocalPath(last) {
		dir = filepath.Dir(last)
	}

	path := rel
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, rel)
	}
	return t.TransformFile(ctx, path, values...)
}

// Generate parses text and returns the composed unit without compiling it.
func (t *Transformer) Generate(text, sourcePath string) (*types.GeneratedUnit, error) {
	r := t.newRun(sourcePath)
	if err := r.parse(context.Background(), text); err != nil {
		return nil, err
	}
	return r.unit, nil
}

// GenerateFile reads the template at path and composes its unit.
func (t *Transformer) GenerateFile(path string) (*types.GeneratedUnit, error) {
	path = t.resolvePath(path)
	data, err := t.reader.ReadFile(path)
	if err != nil {
		return nil, err
	}
	t.remember(path)
	return t.Generate(string(data), path)
}

// FragmentsFile reads the template at path and returns its fragments.
func (t *Transformer) FragmentsFile(path string) ([]types.Fragment, error) {
	path = t.resolvePath(path)
	data, err := t.reader.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return t.Fragments(string(data), path)
}

// Fragments returns the classified fragments of text with includes
// expanded in place.
func (t *Transformer) Fragments(text, sourcePath string) ([]types.Fragment, error) {
	r := t.newRun(sourcePath)
	return r.collect(text)
}

// Warnings returns the backend warnings of the last transform call.
func (t *Transformer) Warnings() []types.Diagnostic {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return append([]types.Diagnostic(nil), t.warnings...)
}

func (t *Transformer) remember(sourcePath string) {
	if sourcePath == "" {
		return
	}
	t.mutex.Lock()
	t.lastSource = sourcePath
	t.mutex.Unlock()
}

func (t *Transformer) resolvePath(path string) string {
	if !emitter.IsLocalPath(path) || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(t.baseDir, path)
}

// dirOf is the directory includes of sourcePath resolve against.
func (t *Transformer) dirOf(sourcePath string) string {
	if !emitter.IsLocalPath(sourcePath) {
		return t.baseDir
	}
	return filepath.Dir(t.resolvePath(sourcePath))
}
