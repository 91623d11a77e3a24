package transformer

import (
	"os"
	"sort"
	"strings"

	"github.com/conneroisu/stt/internal/build"
	"github.com/conneroisu/stt/internal/emitter"
	"github.com/conneroisu/stt/internal/errors"
	"github.com/conneroisu/stt/internal/types"
)

// translate orders diagnostics by line and maps token filenames back to
// template paths. The first error becomes a template failure; every warning
// is returned.
func (t *Transformer) translate(diagnostics []types.Diagnostic) ([]types.Diagnostic, error) {
	sorted := append([]types.Diagnostic(nil), diagnostics...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Line < sorted[j].Line
	})

	var warnings []types.Diagnostic
	var failure error
	for _, d := range sorted {
		d.Filename = t.resolveFilename(d.Filename)
		if !d.IsError {
			warnings = append(warnings, d)
			continue
		}
		if failure == nil {
			failure = errors.NewTemplateFailure(d.Message, types.SourceReference{Path: d.Filename, Line: d.Line}).
				WithContext("code", d.Code)
		}
	}
	return warnings, failure
}

// translateFailure turns a runtime failure into a located error.
func (t *Transformer) translateFailure(f *build.Failure) error {
	ref := types.EmptySourceReference
	if f.File != "" {
		ref = types.SourceReference{Path: t.resolveFilename(f.File), Line: f.Line}
	}
	err := errors.NewRuntimeFailure(f.Message, ref)
	if f.Panic {
		err = err.WithContext("panic", true)
	}
	return err
}

// resolveFilename returns name unchanged when it exists; otherwise its last
// path segment is looked up as a registry token. The anonymous marker name
// maps back to the empty path.
func (t *Transformer) resolveFilename(name string) string {
	if name == "" {
		return name
	}
	if _, err := os.Stat(name); err == nil {
		return name
	}

	segment := name
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		segment = name[i+1:]
	}
	if segment == emitter.AnonymousSourceName {
		return ""
	}
	if path, ok := t.registry.ResolveString(segment); ok {
		return path
	}
	return name
}
