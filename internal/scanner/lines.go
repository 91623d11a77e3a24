package scanner

import (
	"sort"
	"strings"

	"github.com/conneroisu/stt/internal/types"
)

// LineIndex maps byte offsets to 1-based line numbers. Lines are split on
// '\n' only; a '\r' before it stays part of the line.
type LineIndex struct {
	ranges []types.CharacterRange
	length int
}

// NewLineIndex indexes text. Each range includes its '\n' terminator; the
// final line has none and may be empty.
func NewLineIndex(text string) *LineIndex {
	ranges := make([]types.CharacterRange, 0, strings.Count(text, "\n")+1)

	start := 0
	for {
		i := strings.IndexByte(text[start:], '\n')
		if i < 0 {
			ranges = append(ranges, types.CharacterRange{Offset: start, Length: len(text) - start})
			break
		}
		ranges = append(ranges, types.CharacterRange{Offset: start, Length: i + 1})
		start += i + 1
	}

	return &LineIndex{ranges: ranges, length: len(text)}
}

// Count returns the number of lines.
func (li *LineIndex) Count() int {
	return len(li.ranges)
}

// Line returns the range of line n.
func (li *LineIndex) Line(n int) (types.CharacterRange, bool) {
	if n < 1 || n > len(li.ranges) {
		return types.CharacterRange{}, false
	}
	return li.ranges[n-1], true
}

// Ranges returns a copy of every line range in order.
func (li *LineIndex) Ranges() []types.CharacterRange {
	out := make([]types.CharacterRange, len(li.ranges))
	copy(out, li.ranges)
	return out
}

// LineOf returns the line containing offset. Offsets at or past the end of
// the text belong to the last line, negative ones to the first.
func (li *LineIndex) LineOf(offset int) int {
	if offset <= 0 {
		return 1
	}
	if offset >= li.length {
		return len(li.ranges)
	}
	return sort.Search(len(li.ranges), func(i int) bool {
		return li.ranges[i].Offset > offset
	})
}
