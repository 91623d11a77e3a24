package directive

import (
	"testing"

	"github.com/conneroisu/stt/internal/errors"
	"github.com/conneroisu/stt/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttribute(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		attribute string
		expected  string
		found     bool
	}{
		{"simple", `file="B.tt"`, "file", "B.tt", true},
		{"case insensitive name", `FILE="B.tt"`, "file", "B.tt", true},
		{"spaces around equals", `name  =  "Count" type="int"`, "name", "Count", true},
		{"empty value", `namespace=""`, "namespace", "", true},
		{"first closing quote wins", `file="a"b"`, "file", "a", true},
		{"quotes required", `file=B.tt`, "file", "", false},
		{"missing", `type="int"`, "name", "", false},
		{"word boundary", `typename="x" name="y"`, "name", "y", true},
		{"second attribute", `name="Count" type="map[string]int"`, "type", "map[string]int", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, ok := Attribute(tt.text, tt.attribute)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.expected, value)
		})
	}
}

func TestRequire(t *testing.T) {
	frag := types.Fragment{
		Kind:       types.FragmentPropertyDirective,
		Text:       `name="Count"`,
		StartLine:  7,
		SourcePath: "/t/a.stt",
	}

	_, err := Require(frag, "name", "type")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrMissingAttribute)
	assert.ErrorIs(t, err, errors.ErrConfiguration)
	assert.Equal(t, types.SourceReference{Path: "/t/a.stt", Line: 7}, errors.SourceOf(err))
	assert.Contains(t, err.Error(), "property directive requires a type attribute")

	frag.Text = `name="Count" type="int"`
	values, err := Require(frag, "name", "type")
	require.NoError(t, err)
	assert.Equal(t, []string{"Count", "int"}, values)
}

func TestParseLanguage(t *testing.T) {
	tests := []struct {
		input    string
		expected types.LanguageSpec
		code     string
	}{
		{"Go", types.LanguageSpec{Language: types.LanguageGo}, ""},
		{"go1.22", types.LanguageSpec{Language: types.LanguageGo, Version: "1.22"}, ""},
		{"Gov1.21.3", types.LanguageSpec{Language: types.LanguageGo, Version: "1.21.3"}, ""},
		{"C#", types.LanguageSpec{Language: types.LanguageCSharp}, ""},
		{"C#v3.5", types.LanguageSpec{Language: types.LanguageCSharp, Version: "3.5"}, ""},
		{"VBv4.0", types.LanguageSpec{Language: types.LanguageVisualBasic, Version: "4.0"}, ""},
		{"Go1", types.LanguageSpec{}, errors.CodeInvalidLanguageVersion},
		{"Gopher", types.LanguageSpec{}, errors.CodeUnrecognizedLanguage},
		{"Python3.11", types.LanguageSpec{}, errors.CodeUnrecognizedLanguage},
		{"", types.LanguageSpec{}, errors.CodeUnrecognizedLanguage},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			spec, err := ParseLanguage(tt.input)
			if tt.code != "" {
				require.Error(t, err)
				assert.ErrorIs(t, err, errors.ErrConfiguration)
				var te *errors.TemplateError
				require.ErrorAs(t, err, &te)
				assert.Equal(t, tt.code, te.Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, spec)
		})
	}

	_, err := ParseLanguage("Cobol")
	assert.ErrorIs(t, err, errors.ErrUnrecognizedLanguage)
	assert.Contains(t, err.Error(), "unrecognized language identifier")
}
