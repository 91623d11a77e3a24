package sink

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"strings"
)

// Request is read from stdin by a generated program.
type Request struct {
	Context    json.RawMessage   `json:"context,omitempty"`
	Properties []json.RawMessage `json:"properties"`
	SourcePath string            `json:"source_path"`
	Trim       bool              `json:"trim"`
}

// Response is written to stdout by a generated program.
type Response struct {
	Output  string   `json:"output"`
	Failure *Failure `json:"failure,omitempty"`
}

// Failure describes why a template produced no output. File and Line are
// set when the failure is a panic; they follow //line directives.
type Failure struct {
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Panic   bool   `json:"panic,omitempty"`
}

// entrypoint is implemented by the composed Template type.
type entrypoint interface {
	Initialize(output *OutputWriter, context any, host *Host)
	bindPropertyValues(values propertyValues) error
	propertyCount() int
	TransformText()
}

// newTemplate is assigned by the composed unit's init function.
var newTemplate func() entrypoint

type propertyValues []json.RawMessage

// decode unmarshals the i-th positional value into dst.
func (v propertyValues) decode(i int, dst any) error {
	if i >= len(v) {
		return fmt.Errorf("missing value for property %d", i)
	}
	if err := json.Unmarshal(v[i], dst); err != nil {
		return fmt.Errorf("property %d: %w", i, err)
	}
	return nil
}

// serveTemplate runs one request and returns the process exit code.
func serveTemplate(in io.Reader, out, errOut io.Writer, factory func() entrypoint) int {
	var req Request
	if err := json.NewDecoder(in).Decode(&req); err != nil {
		fmt.Fprintf(errOut, "stt: decoding request: %v\n", err)
		return 2
	}

	resp := runTemplate(req, factory)
	if err := json.NewEncoder(out).Encode(resp); err != nil {
		fmt.Fprintf(errOut, "stt: encoding response: %v\n", err)
		return 2
	}
	return 0
}

// runTemplate binds, initializes and runs a template inside a capture.
func runTemplate(req Request, factory func() entrypoint) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			resp = Response{Failure: panicFailure(r)}
		}
	}()

	if factory == nil {
		return Response{Failure: &Failure{Message: "no template registered"}}
	}
	tmpl := factory()

	if got, want := len(req.Properties), tmpl.propertyCount(); got != want {
		return Response{Failure: &Failure{
			Message: fmt.Sprintf("template declares %d properties but %d values were supplied", want, got),
		}}
	}
	if err := tmpl.bindPropertyValues(propertyValues(req.Properties)); err != nil {
		return Response{Failure: &Failure{Message: err.Error()}}
	}

	var context any
	if len(req.Context) > 0 {
		if err := json.Unmarshal(req.Context, &context); err != nil {
			return Response{Failure: &Failure{Message: fmt.Sprintf("context: %v", err)}}
		}
	}

	output := NewOutputWriter()
	output.Trim = req.Trim
	tmpl.Initialize(output, context, NewHost(req.SourcePath, len(req.Properties)))

	output.StartCapture()
	tmpl.TransformText()
	text, err := output.EndCapture()
	if err != nil {
		return Response{Failure: &Failure{Message: err.Error()}}
	}
	return Response{Output: text}
}

// panicFailure reports the first non-runtime frame below the panic.
func panicFailure(r any) *Failure {
	f := &Failure{Message: fmt.Sprint(r), Panic: true}
	if err, ok := r.(error); ok {
		f.Message = err.Error()
	}

	pcs := make([]uintptr, 64)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	panicking := false
	for {
		frame, more := frames.Next()
		if panicking && !strings.HasPrefix(frame.Function, "runtime.") {
			f.File, f.Line = frame.File, frame.Line
			break
		}
		if frame.Function == "runtime.gopanic" {
			panicking = true
		}
		if !more {
			break
		}
	}
	return f
}
