package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/conneroisu/stt/internal/types"
)

// ErrorKind represents different categories of errors.
type ErrorKind string

const (
	KindConfiguration ErrorKind = "configuration"
	KindParse         ErrorKind = "parse"
	KindGeneration    ErrorKind = "generation"
	KindCaptureState  ErrorKind = "capture_state"
	KindIO            ErrorKind = "io"
	KindRuntime       ErrorKind = "runtime"
)

// Error codes shared by the sentinels below.
const (
	CodeMissingAttribute       = "missing_attribute"
	CodeUnrecognizedLanguage   = "unrecognized_language"
	CodeInvalidLanguageVersion = "invalid_language_version"
	CodeLanguageNotSupported   = "language_not_supported"
	CodeIncludeCycle           = "include_cycle"
	CodeIncludeDepth           = "include_depth"
	CodePropertyCount          = "property_count"
	CodeInvalidBaseDir         = "invalid_base_dir"
	CodeInvalidContext         = "invalid_context"
	CodeInvalidValue           = "invalid_value"
	CodeInvalidDirective       = "invalid_directive"
	CodeInvalidModule          = "invalid_module"
	CodeTemplateFailure        = "template_failure"
	CodeRuntimeFailure         = "runtime_failure"
	CodeNotCapturing           = "not_capturing"
)

// TemplateError is a structured error type with an optional template location.
type TemplateError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Cause   error
	Source  types.SourceReference
	Column  int
	Context map[string]interface{}
}

// Sentinels for errors.Is. A sentinel without a code matches every error of
// its kind.
var (
	ErrConfiguration        = &TemplateError{Kind: KindConfiguration}
	ErrMissingAttribute     = &TemplateError{Kind: KindParse, Code: CodeMissingAttribute}
	ErrUnrecognizedLanguage = &TemplateError{Kind: KindConfiguration, Code: CodeUnrecognizedLanguage}
	ErrLanguageNotSupported = &TemplateError{Kind: KindConfiguration, Code: CodeLanguageNotSupported}
	ErrIncludeCycle         = &TemplateError{Kind: KindConfiguration, Code: CodeIncludeCycle}
	ErrPropertyCount        = &TemplateError{Kind: KindConfiguration, Code: CodePropertyCount}
	ErrTemplateFailure      = &TemplateError{Kind: KindGeneration}
	ErrCaptureState         = &TemplateError{Kind: KindCaptureState}
	ErrRuntimeFailure       = &TemplateError{Kind: KindRuntime}
)

// Error implements the error interface.
func (e *TemplateError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if !e.Source.IsEmpty() {
		location := e.Source.String()
		if e.Source.Line > 0 && e.Column > 0 {
			location += fmt.Sprintf(":%d", e.Column)
		}
		parts = append(parts, location)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *TemplateError) Unwrap() error {
	return e.Cause
}

// Is matches on kind and, when the target carries one, on code. Parse
// errors also match configuration targets.
func (e *TemplateError) Is(target error) bool {
	var t *TemplateError
	if !errors.As(target, &t) {
		return false
	}

	kindMatches := e.Kind == t.Kind ||
		(t.Kind == KindConfiguration && e.Kind == KindParse)
	if !kindMatches {
		return false
	}

	return t.Code == "" || e.Code == t.Code
}

// WithContext adds context information to the error.
func (e *TemplateError) WithContext(key string, value interface{}) *TemplateError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithSource attaches a template location.
func (e *TemplateError) WithSource(ref types.SourceReference) *TemplateError {
	e.Source = ref

	return e
}

// WithCause wraps an underlying error.
func (e *TemplateError) WithCause(cause error) *TemplateError {
	e.Cause = cause

	return e
}

// NewConfigurationError creates a configuration error.
func NewConfigurationError(code, message string) *TemplateError {
	return &TemplateError{
		Kind:    KindConfiguration,
		Code:    code,
		Message: message,
	}
}

// NewParseError creates an error for a malformed directive.
func NewParseError(code, message string, source types.SourceReference) *TemplateError {
	return &TemplateError{
		Kind:    KindParse,
		Code:    code,
		Message: message,
		Source:  source,
	}
}

// NewTemplateFailure creates the error raised for a fatal backend diagnostic.
func NewTemplateFailure(message string, source types.SourceReference) *TemplateError {
	return &TemplateError{
		Kind:    KindGeneration,
		Code:    CodeTemplateFailure,
		Message: message,
		Source:  source,
	}
}

// NewRuntimeFailure creates the error raised when the generated program
// fails while producing output.
func NewRuntimeFailure(message string, source types.SourceReference) *TemplateError {
	return &TemplateError{
		Kind:    KindRuntime,
		Code:    CodeRuntimeFailure,
		Message: message,
		Source:  source,
	}
}

// NewCaptureStateError creates a capture state error.
func NewCaptureStateError(message string) *TemplateError {
	return &TemplateError{
		Kind:    KindCaptureState,
		Code:    CodeNotCapturing,
		Message: message,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *TemplateError {
	return &TemplateError{
		Kind:    KindIO,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// SourceOf returns the template location carried by err, if any.
func SourceOf(err error) types.SourceReference {
	var te *TemplateError
	if errors.As(err, &te) {
		return te.Source
	}

	return types.EmptySourceReference
}

// IsTemplateFailure checks if an error is a translated backend failure.
func IsTemplateFailure(err error) bool {
	var te *TemplateError
	if errors.As(err, &te) {
		return te.Kind == KindGeneration || te.Kind == KindRuntime
	}

	return false
}
