package types

import "strings"

// Language identifies a host language a template can be generated for.
type Language string

const (
	LanguageGo          Language = "Go"
	LanguageCSharp      Language = "C#"
	LanguageVisualBasic Language = "VB"
)

// KnownLanguages lists every recognized identifier, longest first so that
// prefix matching is unambiguous.
var KnownLanguages = []Language{LanguageCSharp, LanguageVisualBasic, LanguageGo}

// LanguageSpec is a language plus an optional explicit backend version.
type LanguageSpec struct {
	Language Language `json:"language" yaml:"language"`
	Version  string   `json:"version,omitempty" yaml:"version,omitempty"`
}

// DefaultLanguage is used when a template carries no template directive.
var DefaultLanguage = LanguageSpec{Language: LanguageGo}

func (l LanguageSpec) String() string {
	if l.Version == "" {
		return string(l.Language)
	}
	return string(l.Language) + l.Version
}

// EqualFold compares language identifiers case-insensitively.
func (l Language) EqualFold(s string) bool {
	return strings.EqualFold(string(l), s)
}

// GeneratedUnit is a composed compilation unit and everything a backend
// needs to build it.
type GeneratedUnit struct {
	Language   LanguageSpec          `json:"language" yaml:"language"`
	Source     string                `json:"source" yaml:"source"`
	SourcePath string                `json:"source_path" yaml:"source_path"`
	Namespaces []NamespaceReference  `json:"namespaces" yaml:"namespaces"`
	Properties []PropertyDeclaration `json:"properties" yaml:"properties"`
}

// Diagnostic is a single finding reported by a backend, in generated-source
// coordinates until translated.
type Diagnostic struct {
	IsError  bool   `json:"is_error" yaml:"is_error"`
	Filename string `json:"filename" yaml:"filename"`
	Line     int    `json:"line" yaml:"line"`
	Column   int    `json:"column,omitempty" yaml:"column,omitempty"`
	Code     string `json:"code,omitempty" yaml:"code,omitempty"`
	Message  string `json:"message" yaml:"message"`
}

// Severity returns "error" or "warning".
func (d Diagnostic) Severity() string {
	if d.IsError {
		return "error"
	}
	return "warning"
}
