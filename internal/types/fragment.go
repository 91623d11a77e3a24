// Package types provides common type definitions used throughout stt.
// This package contains shared types to avoid circular dependencies between packages.
package types

import (
	"fmt"
	"strconv"
)

// FragmentKind classifies a contiguous span of template text.
type FragmentKind int

const (
	FragmentMarkup FragmentKind = iota
	FragmentScript
	FragmentAutoWrite
	FragmentClassBody
	FragmentTemplateDirective
	FragmentIncludeDirective
	FragmentImportDirective
	FragmentPropertyDirective
)

var fragmentKindNames = map[FragmentKind]string{
	FragmentMarkup:            "markup",
	FragmentScript:            "script",
	FragmentAutoWrite:         "auto-write",
	FragmentClassBody:         "class-body",
	FragmentTemplateDirective: "template",
	FragmentIncludeDirective:  "include",
	FragmentImportDirective:   "import",
	FragmentPropertyDirective: "property",
}

// String returns the string representation of the FragmentKind
func (k FragmentKind) String() string {
	if name, ok := fragmentKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// MarshalText renders the kind by name for yaml and json output.
func (k FragmentKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// IsDirective reports whether fragments of this kind configure the
// transform instead of producing output.
func (k FragmentKind) IsDirective() bool {
	switch k {
	case FragmentTemplateDirective, FragmentIncludeDirective,
		FragmentImportDirective, FragmentPropertyDirective:
		return true
	default:
		return false
	}
}

// Fragment is a classified span of template text. Markup text is kept
// byte-exact; every other kind has its markers stripped and is trimmed.
type Fragment struct {
	Kind FragmentKind `json:"kind" yaml:"kind"`
	Text string       `json:"text" yaml:"text"`
	// StartLine is the 1-based line of the first character of Text.
	StartLine int `json:"start_line" yaml:"start_line"`
	// Offset is the absolute byte offset of Text in the scanned buffer.
	Offset     int    `json:"offset" yaml:"offset"`
	SourcePath string `json:"source_path" yaml:"source_path"`
}

// Source returns the location the fragment starts at.
func (f Fragment) Source() SourceReference {
	return SourceReference{Path: f.SourcePath, Line: f.StartLine}
}

// CharacterRange is a half-open byte span into a text buffer.
type CharacterRange struct {
	Offset int
	Length int
}

// End returns the first offset past the range.
func (r CharacterRange) End() int {
	return r.Offset + r.Length
}

// Contains reports whether offset falls inside the range.
func (r CharacterRange) Contains(offset int) bool {
	return offset >= r.Offset && offset < r.End()
}

// SourceReference points at a line of an original template file.
type SourceReference struct {
	Path string `json:"path" yaml:"path"`
	Line int    `json:"line" yaml:"line"`
}

// EmptySourceReference is used when no template line is known.
var EmptySourceReference = SourceReference{}

// IsEmpty reports whether the reference carries no location.
func (r SourceReference) IsEmpty() bool {
	return r.Path == "" && r.Line == 0
}

func (r SourceReference) String() string {
	if r.IsEmpty() {
		return ""
	}
	if r.Line <= 0 {
		return r.Path
	}
	return r.Path + ":" + strconv.Itoa(r.Line)
}

// NamespaceReference is a package imported by the generated program.
// Namespace may carry an alias prefix ("str strings").
type NamespaceReference struct {
	Namespace string          `json:"namespace" yaml:"namespace"`
	Source    SourceReference `json:"source" yaml:"source"`
}

// PropertyDeclaration is a positional template parameter.
type PropertyDeclaration struct {
	Name     string          `json:"name" yaml:"name"`
	TypeName string          `json:"type" yaml:"type"`
	Source   SourceReference `json:"source" yaml:"source"`
}

func (p PropertyDeclaration) String() string {
	return fmt.Sprintf("%s %s", p.Name, p.TypeName)
}
