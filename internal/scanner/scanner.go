// Package scanner splits template text into classified fragments.
//
// Scanning runs in three steps over one buffer: remarks are blanked without
// moving any byte, a line index is built over the result, and the buffer is
// cut at every <# ... #> pair. Script spans are classified by an ordered rule
// table and every fragment records the offset and line its text starts at.
package scanner

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/conneroisu/stt/internal/types"
)

// Markers that follow ScriptStart.
const (
	AutoWriteMarker = "="
	ClassBodyMarker = "+"
	DirectiveMarker = "@"
)

var scriptPattern = regexp.MustCompile(`(?s)` + regexp.QuoteMeta(ScriptStart) + `.*?` + regexp.QuoteMeta(ScriptEnd))

// rule classifies a script span. Rules are tried top to bottom; the order
// matters because the markers overlap with plain script.
type rule struct {
	kind    types.FragmentKind
	marker  string
	keyword string
}

var rules = []rule{
	{kind: types.FragmentAutoWrite, marker: AutoWriteMarker},
	{kind: types.FragmentClassBody, marker: ClassBodyMarker},
	{kind: types.FragmentIncludeDirective, marker: DirectiveMarker, keyword: "include"},
	{kind: types.FragmentTemplateDirective, marker: DirectiveMarker, keyword: "template"},
	{kind: types.FragmentImportDirective, marker: DirectiveMarker, keyword: "import"},
	{kind: types.FragmentPropertyDirective, marker: DirectiveMarker, keyword: "property"},
}

// match returns where the fragment content starts inside the span body.
func (r rule) match(body string) (int, bool) {
	if r.keyword == "" {
		if strings.HasPrefix(body, r.marker) {
			return len(r.marker), true
		}
		return 0, false
	}

	// Directives may be written "<#@ name" or "<# @ name".
	pos := len(body) - len(strings.TrimLeft(body, " \t"))
	if !strings.HasPrefix(body[pos:], r.marker) {
		return 0, false
	}
	pos += len(r.marker)
	pos += len(body[pos:]) - len(strings.TrimLeft(body[pos:], " \t"))
	if !strings.HasPrefix(body[pos:], r.keyword) {
		return 0, false
	}
	pos += len(r.keyword)
	if pos < len(body) && !unicode.IsSpace(rune(body[pos])) {
		return 0, false
	}
	return pos, true
}

func classify(body string) (types.FragmentKind, int) {
	for _, r := range rules {
		if start, ok := r.match(body); ok {
			return r.kind, start
		}
	}
	return types.FragmentScript, 0
}

// Parse suppresses remarks in text, indexes it and scans it.
func Parse(text, sourcePath string) ([]types.Fragment, *LineIndex) {
	suppressed := SuppressRemarks(text)
	index := NewLineIndex(suppressed)
	return Scan(suppressed, index, sourcePath), index
}

// Scan cuts suppressed text into fragments. Markup is kept byte-exact and
// empty markup is dropped. Script fragments are trimmed; those left empty
// are dropped unless they are directives, which must still be validated. A
// <# without a closing #> becomes a plain script fragment running to the end
// of the buffer.
func Scan(suppressed string, index *LineIndex, sourcePath string) []types.Fragment {
	var fragments []types.Fragment

	appendMarkup := func(start, end int) {
		if end <= start {
			return
		}
		fragments = append(fragments, types.Fragment{
			Kind:       types.FragmentMarkup,
			Text:       suppressed[start:end],
			StartLine:  index.LineOf(start),
			Offset:     start,
			SourcePath: sourcePath,
		})
	}

	appendScript := func(kind types.FragmentKind, contentStart int, content string) {
		trimmed := strings.TrimLeftFunc(content, unicode.IsSpace)
		offset := contentStart + len(content) - len(trimmed)
		text := strings.TrimRightFunc(trimmed, unicode.IsSpace)
		if text == "" && !kind.IsDirective() {
			return
		}
		fragments = append(fragments, types.Fragment{
			Kind:       kind,
			Text:       text,
			StartLine:  index.LineOf(offset),
			Offset:     offset,
			SourcePath: sourcePath,
		})
	}

	last := 0
	for _, m := range scriptPattern.FindAllStringIndex(suppressed, -1) {
		appendMarkup(last, m[0])

		bodyStart := m[0] + len(ScriptStart)
		body := suppressed[bodyStart : m[1]-len(ScriptEnd)]
		kind, start := classify(body)
		appendScript(kind, bodyStart+start, body[start:])

		last = m[1]
	}

	if open := strings.Index(suppressed[last:], ScriptStart); open >= 0 {
		open += last
		appendMarkup(last, open)
		bodyStart := open + len(ScriptStart)
		appendScript(types.FragmentScript, bodyStart, suppressed[bodyStart:])
		return fragments
	}

	appendMarkup(last, len(suppressed))
	return fragments
}
