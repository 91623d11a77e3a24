// Package directive resolves <#@ ... #> directives.
//
// Attributes are read with a case-insensitive name = "value" pattern. Quotes
// are required and the first closing quote ends the value. Template, import
// and property directives update a State; include directives are resolved to
// the included file and its text.
package directive

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/conneroisu/stt/internal/errors"
	"github.com/conneroisu/stt/internal/types"
)

var attributePatterns sync.Map

func attributePattern(name string) *regexp.Regexp {
	if re, ok := attributePatterns.Load(name); ok {
		return re.(*regexp.Regexp)
	}
	re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(name) + `\s*=\s*"([^"]*)"`)
	actual, _ := attributePatterns.LoadOrStore(name, re)
	return actual.(*regexp.Regexp)
}

// Attribute extracts the value of the named attribute from directive text.
func Attribute(text, name string) (string, bool) {
	m := attributePattern(name).FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Require extracts every named attribute of a directive fragment, in order.
// A missing attribute is a parse error located at the fragment.
func Require(frag types.Fragment, names ...string) ([]string, error) {
	values := make([]string, len(names))
	for i, name := range names {
		v, ok := Attribute(frag.Text, name)
		if !ok {
			return nil, errors.NewParseError(
				errors.CodeMissingAttribute,
				fmt.Sprintf("%s directive requires a %s attribute", frag.Kind, name),
				frag.Source(),
			)
		}
		values[i] = v
	}
	return values, nil
}

var versionPattern = regexp.MustCompile(`^\d+\.\d+(\.\d+)?$`)

// ParseLanguage parses a language attribute such as "Go1.22", "C#v3.5" or
// "VB". The version suffix is optional and may carry a leading "v".
func ParseLanguage(value string) (types.LanguageSpec, error) {
	value = strings.TrimSpace(value)
	for _, lang := range types.KnownLanguages {
		id := string(lang)
		if len(value) < len(id) || !lang.EqualFold(value[:len(id)]) {
			continue
		}

		version := strings.TrimPrefix(strings.TrimPrefix(value[len(id):], "v"), "V")
		if version != "" && (version[0] < '0' || version[0] > '9') {
			// "Gopher" is not Go with a version.
			continue
		}
		if version != "" && !versionPattern.MatchString(version) {
			return types.LanguageSpec{}, errors.NewConfigurationError(
				errors.CodeInvalidLanguageVersion,
				fmt.Sprintf("invalid language version %q", value[len(id):]),
			)
		}
		return types.LanguageSpec{Language: lang, Version: version}, nil
	}

	return types.LanguageSpec{}, errors.NewConfigurationError(
		errors.CodeUnrecognizedLanguage,
		"unrecognized language identifier",
	).WithContext("language", value)
}
