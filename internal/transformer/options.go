package transformer

import (
	"github.com/conneroisu/stt/internal/build"
	"github.com/conneroisu/stt/internal/directive"
	"github.com/conneroisu/stt/internal/logging"
	"github.com/conneroisu/stt/internal/registry"
)

// Option configures a Transformer.
type Option func(*Transformer)

// WithContext sets the value templates see as Context. It must be
// JSON-encodable; functions, channels and unsafe pointers are rejected.
func WithContext(value any) Option {
	return func(t *Transformer) {
		t.context = value
		t.contextSet = true
	}
}

// WithBaseDir sets the directory relative template paths resolve against.
// It defaults to the working directory and must not be blank.
func WithBaseDir(dir string) Option {
	return func(t *Transformer) {
		t.baseDir = dir
		t.baseDirSet = true
	}
}

// WithBackend sets the compiler backend.
func WithBackend(backend build.Backend) Option {
	return func(t *Transformer) { t.backend = backend }
}

// WithRegistry sets the source registry; registry.Default() otherwise.
func WithRegistry(reg *registry.Registry) Option {
	return func(t *Transformer) { t.registry = reg }
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(t *Transformer) { t.logger = logger }
}

// WithProvenance turns line markers in generated code on or off.
func WithProvenance(enabled bool) Option {
	return func(t *Transformer) { t.provenance = enabled }
}

// WithTrim trims whitespace around the captured output.
func WithTrim(enabled bool) Option {
	return func(t *Transformer) { t.trim = enabled }
}

// WithStagingDir sets where copies of non-local sources are written.
func WithStagingDir(dir string) Option {
	return func(t *Transformer) { t.stagingDir = dir }
}

// WithFileReader sets how templates and includes are read.
func WithFileReader(reader directive.FileReader) Option {
	return func(t *Transformer) { t.reader = reader }
}

// WithModules adds "path version" requirements to every generated module.
func WithModules(modules ...string) Option {
	return func(t *Transformer) { t.modules = append(t.modules, modules...) }
}
