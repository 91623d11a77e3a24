// Package emitter assembles template fragments into a compilation unit.
//
// An Emitter owns the scaffold of the unit (imports, the Template type,
// property binding, class-body members) and hands out a Statements emitter
// for the body of TransformText. Dialects register a constructor per
// language; only Go is registered.
package emitter

import (
	"fmt"

	"github.com/conneroisu/stt/internal/errors"
	"github.com/conneroisu/stt/internal/types"
)

// UnitFileName is the file name the composed unit is written to.
const UnitFileName = "main.go"

// Statements emits the body of the template's main method.
type Statements interface {
	EmitLiteralWrite(text string, line int, path string)
	EmitNewLine(terminator string, line int, path string)
	EmitExpressionWrite(expr string, line int, path string)
	EmitRawFragment(text string, line int, path string)
	Len() int
}

// Emitter builds a whole compilation unit.
type Emitter interface {
	Statements() Statements
	AddNamespace(ns types.NamespaceReference)
	SetProperties(props []types.PropertyDeclaration) error
	EmitClassMember(text string, line int, path string)
	Compose() string
}

// Options configures a new Emitter.
type Options struct {
	// Provenance enables line markers when non-nil.
	Provenance *Provenance
	// SourcePath names the root template in the generated header.
	SourcePath string
}

type constructor func(spec types.LanguageSpec, opts Options) Emitter

var dialects = map[types.Language]constructor{
	types.LanguageGo: newGoEmitter,
}

// New selects the emitter for a language.
func New(spec types.LanguageSpec, opts Options) (Emitter, error) {
	build, ok := dialects[spec.Language]
	if !ok {
		return nil, errors.NewConfigurationError(
			errors.CodeLanguageNotSupported,
			fmt.Sprintf("no code emitter is registered for language %s", spec.Language),
		).WithContext("language", spec.String())
	}
	return build(spec, opts), nil
}

// Supported reports whether New accepts the language.
func Supported(lang types.Language) bool {
	_, ok := dialects[lang]
	return ok
}
