package sink

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNotCapturing is returned by EndCapture without a matching StartCapture.
var ErrNotCapturing = errors.New("end capture called while not capturing")

// OutputWriter collects the text a template writes.
type OutputWriter struct {
	buf          strings.Builder
	capturing    bool
	captureStart int
	// Trim strips leading and trailing whitespace from captured text.
	Trim bool
}

// NewOutputWriter returns an empty writer.
func NewOutputWriter() *OutputWriter {
	return &OutputWriter{}
}

// Write appends the text form of v.
func (w *OutputWriter) Write(v any) {
	w.buf.WriteString(toText(v))
}

// Writef appends formatted text.
func (w *OutputWriter) Writef(format string, args ...any) {
	fmt.Fprintf(&w.buf, format, args...)
}

// WriteLine appends the text form of its arguments followed by a newline.
func (w *OutputWriter) WriteLine(values ...any) {
	for _, v := range values {
		w.buf.WriteString(toText(v))
	}
	w.buf.WriteByte('\n')
}

// Writer exposes the output as an io.Writer for fmt.Fprintf and friends.
func (w *OutputWriter) Writer() io.Writer {
	return &w.buf
}

// StartCapture marks the current end of the buffer. Text written before it
// is excluded from EndCapture.
func (w *OutputWriter) StartCapture() {
	w.capturing = true
	w.captureStart = w.buf.Len()
}

// EndCapture returns everything written since StartCapture.
func (w *OutputWriter) EndCapture() (string, error) {
	if !w.capturing {
		return "", ErrNotCapturing
	}
	w.capturing = false

	text := w.buf.String()[w.captureStart:]
	if w.Trim {
		text = strings.TrimSpace(text)
	}
	return text, nil
}

// Capturing reports whether a capture is open.
func (w *OutputWriter) Capturing() bool {
	return w.capturing
}

// String returns everything written so far.
func (w *OutputWriter) String() string {
	return w.buf.String()
}

// Len returns the number of bytes written so far.
func (w *OutputWriter) Len() int {
	return w.buf.Len()
}

func toText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case error:
		return x.Error()
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
