package scanner

import (
	"testing"

	"github.com/conneroisu/stt/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLineIndex(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected []types.CharacterRange
	}{
		{
			name:     "empty",
			text:     "",
			expected: []types.CharacterRange{{Offset: 0, Length: 0}},
		},
		{
			name:     "single line",
			text:     "abc",
			expected: []types.CharacterRange{{Offset: 0, Length: 3}},
		},
		{
			name:     "trailing newline",
			text:     "a\n",
			expected: []types.CharacterRange{{Offset: 0, Length: 2}, {Offset: 2, Length: 0}},
		},
		{
			name: "carriage returns stay in the line",
			text: "ab\r\ncd\r\n",
			expected: []types.CharacterRange{
				{Offset: 0, Length: 4},
				{Offset: 4, Length: 4},
				{Offset: 8, Length: 0},
			},
		},
		{
			name: "blank lines",
			text: "\n\nx",
			expected: []types.CharacterRange{
				{Offset: 0, Length: 1},
				{Offset: 1, Length: 1},
				{Offset: 2, Length: 1},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			index := NewLineIndex(tt.text)
			assert.Equal(t, tt.expected, index.Ranges())
			assert.Equal(t, len(tt.expected), index.Count())
		})
	}
}

func TestLineIndex_CoversBuffer(t *testing.T) {
	text := "first\nsecond line\n\nfourth"
	index := NewLineIndex(text)

	next := 0
	for _, r := range index.Ranges() {
		assert.Equal(t, next, r.Offset, "ranges are contiguous")
		next = r.End()
	}
	assert.Equal(t, len(text), next)

	for offset := 0; offset < len(text); offset++ {
		line := index.LineOf(offset)
		r, ok := index.Line(line)
		require.True(t, ok)
		assert.True(t, r.Contains(offset), "offset %d in line %d", offset, line)
	}
}

func TestLineIndex_LineOf(t *testing.T) {
	index := NewLineIndex("ab\ncd\nef")

	assert.Equal(t, 1, index.LineOf(-5))
	assert.Equal(t, 1, index.LineOf(0))
	assert.Equal(t, 1, index.LineOf(2))
	assert.Equal(t, 2, index.LineOf(3))
	assert.Equal(t, 3, index.LineOf(7))
	assert.Equal(t, 3, index.LineOf(8), "end of text is the last line")
	assert.Equal(t, 3, index.LineOf(100))

	_, ok := index.Line(0)
	assert.False(t, ok)
	_, ok = index.Line(4)
	assert.False(t, ok)
}
