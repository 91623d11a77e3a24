package emitter

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/conneroisu/stt/internal/errors"
	"github.com/conneroisu/stt/internal/registry"
)

// AnonymousSourceName is the line marker name of a template transformed
// without a source path.
const AnonymousSourceName = "<template>"

var schemePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.-]*://`)

// IsLocalPath reports whether path can be written into a line marker as-is.
// URLs, UNC shares and paths containing line breaks cannot.
func IsLocalPath(path string) bool {
	switch {
	case path == "":
		return false
	case schemePattern.MatchString(path):
		return false
	case strings.HasPrefix(path, `\\`), strings.HasPrefix(path, "//"):
		return false
	case strings.ContainsAny(path, "\r\n"):
		return false
	}
	return true
}

// Provenance decides what a line marker names for each template source.
type Provenance struct {
	registry   *registry.Registry
	stagingDir string

	mutex  sync.Mutex
	staged map[string]bool
}

// NewProvenance creates a provenance table. A nil registry means the
// process-wide default; an empty staging directory means os.TempDir().
func NewProvenance(reg *registry.Registry, stagingDir string) *Provenance {
	if reg == nil {
		reg = registry.Default()
	}
	if stagingDir == "" {
		stagingDir = os.TempDir()
	}
	return &Provenance{
		registry:   reg,
		stagingDir: stagingDir,
		staged:     make(map[string]bool),
	}
}

// Registry returns the registry tokens are minted in.
func (p *Provenance) Registry() *registry.Registry {
	return p.registry
}

// AddSource announces a template source before any of its lines are
// emitted. Non-local sources get a token and a readable copy of their text
// at <staging dir>/<token>; the copy is written once per token.
func (p *Provenance) AddSource(path, text string) error {
	if IsLocalPath(path) || path == "" {
		return nil
	}

	tok, err := p.registry.Register(path)
	if err != nil {
		return errors.NewIOError("", fmt.Sprintf("registering %q", path), err)
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()

	name := tok.String()
	if p.staged[name] {
		return nil
	}

	staged := filepath.Join(p.stagingDir, name)
	if _, err := os.Stat(staged); err != nil {
		if err := os.MkdirAll(p.stagingDir, 0o755); err != nil {
			return errors.NewIOError("", "creating staging directory", err)
		}
		if err := os.WriteFile(staged, []byte(text), 0o644); err != nil {
			return errors.NewIOError("", fmt.Sprintf("staging %q", path), err)
		}
	}
	p.staged[name] = true
	return nil
}

// StagedPath returns where the copy of a non-local source lives.
func (p *Provenance) StagedPath(path string) (string, bool) {
	tok, ok := p.registry.Lookup(path)
	if !ok {
		return "", false
	}
	return filepath.Join(p.stagingDir, tok.String()), true
}

// MarkerPath returns the name a line marker uses for path: the absolute
// path for local files, AnonymousSourceName for an empty path, the registry
// token otherwise.
func (p *Provenance) MarkerPath(path string) string {
	if path == "" {
		return AnonymousSourceName
	}
	if IsLocalPath(path) {
		if abs, err := filepath.Abs(path); err == nil {
			return abs
		}
		return path
	}

	tok, err := p.registry.Register(path)
	if err != nil {
		return AnonymousSourceName
	}
	return tok.String()
}
