// Package errors provides the structured error taxonomy of stt and the parser
// that turns Go toolchain output into backend diagnostics.
//
// Compiler and vet output is parsed line by line into types.Diagnostic values
// carrying the file, line, column and message the toolchain reported. Those
// positions are in generated-source coordinates; the transformer maps them
// back to template files through the source registry.
package errors

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/conneroisu/stt/internal/types"
)

// DiagnosticParser parses go build and go vet output into diagnostics.
type DiagnosticParser struct {
	patterns []diagnosticPattern
	// dir makes relative filenames absolute; go prints them relative to the
	// build directory.
	dir string
}

type diagnosticPattern struct {
	regex       *regexp.Regexp
	code        string
	parseFields func(matches []string) (file string, line int, column int, message string)
}

var (
	packageHeader = regexp.MustCompile(`^# (.+)$`)
	continuation  = regexp.MustCompile(`^\s+(\S.*)$`)
)

// NewDiagnosticParser creates a parser that resolves relative filenames
// against dir. An empty dir leaves filenames untouched.
func NewDiagnosticParser(dir string) *DiagnosticParser {
	return &DiagnosticParser{
		patterns: buildGoPatterns(),
		dir:      dir,
	}
}

// Parse parses toolchain output. Every diagnostic is flagged with isError.
func (dp *DiagnosticParser) Parse(output string, isError bool) []types.Diagnostic {
	var diagnostics []types.Diagnostic

	for _, raw := range strings.Split(output, "\n") {
		raw = strings.TrimRight(raw, "\r")
		if strings.TrimSpace(raw) == "" || packageHeader.MatchString(raw) {
			continue
		}

		// Indented lines continue the previous message.
		if m := continuation.FindStringSubmatch(raw); m != nil && len(diagnostics) > 0 {
			last := &diagnostics[len(diagnostics)-1]
			last.Message += "\n" + m[1]
			continue
		}

		line := strings.TrimSpace(raw)
		if d, ok := dp.tryParse(line); ok {
			d.IsError = isError
			diagnostics = append(diagnostics, d)
			continue
		}

		// If no pattern matches, keep anything that looks like a failure
		lower := strings.ToLower(line)
		if strings.Contains(lower, "error") || strings.Contains(lower, "failed") {
			diagnostics = append(diagnostics, types.Diagnostic{
				IsError: isError,
				Message: line,
			})
		}
	}

	return diagnostics
}

// HasErrors reports whether any diagnostic is fatal.
func HasErrors(diagnostics []types.Diagnostic) bool {
	for _, d := range diagnostics {
		if d.IsError {
			return true
		}
	}
	return false
}

func (dp *DiagnosticParser) tryParse(line string) (types.Diagnostic, bool) {
	for _, pattern := range dp.patterns {
		matches := pattern.regex.FindStringSubmatch(line)
		if matches == nil {
			continue
		}

		file, lineNum, column, message := pattern.parseFields(matches)
		return types.Diagnostic{
			Filename: dp.resolve(file),
			Line:     lineNum,
			Column:   column,
			Code:     pattern.code,
			Message:  message,
		}, true
	}
	return types.Diagnostic{}, false
}

func (dp *DiagnosticParser) resolve(file string) string {
	if file == "" || dp.dir == "" || filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(dp.dir, file)
}

func buildGoPatterns() []diagnosticPattern {
	return []diagnosticPattern{
		{
			regex: regexp.MustCompile(`^vet: (.+?):(\d+):(\d+): (.+)$`),
			code:  "vet",
			parseFields: func(matches []string) (string, int, int, string) {
				line, _ := strconv.Atoi(matches[2])
				column, _ := strconv.Atoi(matches[3])
				return matches[1], line, column, matches[4]
			},
		},
		{
			regex: regexp.MustCompile(`^(.+?):(\d+):(\d+): (.+)$`),
			code:  "compile",
			parseFields: func(matches []string) (string, int, int, string) {
				line, _ := strconv.Atoi(matches[2])
				column, _ := strconv.Atoi(matches[3])
				return matches[1], line, column, matches[4]
			},
		},
		{
			regex: regexp.MustCompile(`^(.+?):(\d+): (.+)$`),
			code:  "compile",
			parseFields: func(matches []string) (string, int, int, string) {
				line, _ := strconv.Atoi(matches[2])
				return matches[1], line, 0, matches[3]
			},
		},
		{
			regex: regexp.MustCompile(`^go: (.+)$`),
			code:  "go",
			parseFields: func(matches []string) (string, int, int, string) {
				return "", 0, 0, matches[1]
			},
		},
		{
			regex: regexp.MustCompile(`^(package .+ is not in (?:GOROOT|std).*)$`),
			code:  "module",
			parseFields: func(matches []string) (string, int, int, string) {
				return "", 0, 0, matches[1]
			},
		},
	}
}
