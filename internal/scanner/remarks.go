package scanner

import "regexp"

// Template delimiters.
const (
	ScriptStart = "<#"
	ScriptEnd   = "#>"
	// RemarkMarker follows ScriptStart to open a remark and precedes
	// ScriptEnd to close it.
	RemarkMarker = "--"
)

// RemarkPlaceholder replaces every visible byte of a remark.
const RemarkPlaceholder = ' '

var remarkPattern = regexp.MustCompile(`(?s)` + regexp.QuoteMeta(ScriptStart+RemarkMarker) + `.*?` + regexp.QuoteMeta(RemarkMarker+ScriptEnd))

// SuppressRemarks blanks the body of every <#-- ... --#> span. Everything
// between the <# and #> delimiters, the remark markers included, becomes
// RemarkPlaceholder except control characters, so byte offsets and line
// breaks are unchanged. An unterminated remark is left alone.
func SuppressRemarks(text string) string {
	matches := remarkPattern.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return text
	}

	buf := []byte(text)
	for _, m := range matches {
		for i := m[0] + len(ScriptStart); i < m[1]-len(ScriptEnd); i++ {
			if !isControl(buf[i]) {
				buf[i] = RemarkPlaceholder
			}
		}
	}
	return string(buf)
}

// isControl reports ASCII control bytes. Bytes of multi-byte runes are all
// >= 0x80 and get blanked one by one, which keeps the length intact.
func isControl(b byte) bool {
	return b < 0x20 || b == 0x7f
}
