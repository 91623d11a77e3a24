//go:build property
// +build property

package transformer

import (
	"strconv"
	"strings"
	"testing"

	"github.com/conneroisu/stt/internal/registry"
	"github.com/conneroisu/stt/internal/testutils"
	"github.com/conneroisu/stt/internal/types"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// replayBody rebuilds the text written by the literal and newline writes of
// a composed unit.
func replayBody(source string) (string, bool) {
	start := strings.Index(source, "\t_, _, _ = Output, Context, Host\n")
	if start < 0 {
		return "", false
	}
	var b strings.Builder
	for _, line := range strings.Split(source[start:], "\n")[1:] {
		switch {
		case line == "}":
			return b.String(), true
		case line == "Output.WriteLine()":
			b.WriteString("\n")
		case strings.HasPrefix(line, "Output.WriteLine(") || strings.HasPrefix(line, "Output.Write("):
			open := strings.Index(line, "(")
			text, err := strconv.Unquote(line[open+1 : len(line)-1])
			if err != nil {
				return "", false
			}
			if strings.HasPrefix(line, "Output.WriteLine(") {
				text += "\n"
			}
			b.WriteString(text)
		default:
			return "", false
		}
	}
	return "", false
}

// TestTransformerProperties tests invariants of parsing and emission
func TestTransformerProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	tr, err := New(
		WithBaseDir(t.TempDir()),
		WithBackend(&testutils.FakeBackend{}),
		WithRegistry(registry.NewRegistry()),
		WithProvenance(false),
	)
	if err != nil {
		t.Fatal(err)
	}

	noScript := gen.AnyString().SuchThat(func(s string) bool {
		return !strings.Contains(s, "<#")
	})

	properties.Property("text without script markers is one markup fragment", prop.ForAll(
		func(text string) bool {
			fragments, err := tr.Fragments(text, "")
			if err != nil {
				return false
			}
			if text == "" {
				return len(fragments) == 0
			}
			return len(fragments) == 1 &&
				fragments[0].Kind == types.FragmentMarkup &&
				fragments[0].Text == text
		},
		noScript,
	))

	properties.Property("markup is written back byte for byte", prop.ForAll(
		func(text string) bool {
			unit, err := tr.Generate(text, "")
			if err != nil {
				return false
			}
			replayed, ok := replayBody(unit.Source)
			return ok && replayed == text
		},
		noScript,
	))

	properties.Property("blank lines become one write each", prop.ForAll(
		func(n int, tail string) bool {
			text := strings.Repeat("\n", n) + tail
			unit, err := tr.Generate(text, "")
			if err != nil {
				return false
			}
			return strings.Count(unit.Source, "Output.WriteLine()\n") == n
		},
		gen.IntRange(0, 20),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
