// Package build compiles composed template units and runs the result.
//
// A Backend turns a GeneratedUnit into an Artifact plus the diagnostics the
// compiler reported. The Go backend builds a throwaway module with the go
// tool and runs the binary once per invocation, talking JSON over stdin and
// stdout.
package build

import (
	"context"
	"encoding/json"
	"time"

	"github.com/conneroisu/stt/internal/sink"
	"github.com/conneroisu/stt/internal/types"
)

// Diagnostic is a compiler finding in generated-source coordinates.
type Diagnostic = types.Diagnostic

// Failure is a runtime failure reported by a template program.
type Failure = sink.Failure

// Backend compiles generated units.
type Backend interface {
	Compile(ctx context.Context, req CompileRequest) (*Compilation, error)
}

// CompileRequest is one unit to compile.
type CompileRequest struct {
	Unit *types.GeneratedUnit
	// Modules are extra requirements, "path version" each.
	Modules []string
}

// Compilation is the outcome of a compile. Artifact is nil when any
// diagnostic is an error.
type Compilation struct {
	Artifact    Artifact
	Diagnostics []Diagnostic
	Cached      bool
	Duration    time.Duration
}

// Artifact is a compiled template that can be run.
type Artifact interface {
	// Run binds the property values, initializes the template, captures
	// its output and invokes its main method.
	Run(ctx context.Context, inv Invocation) (*Execution, error)
	Close() error
}

// Invocation carries everything a run needs, already JSON-encoded.
type Invocation struct {
	Context    json.RawMessage
	Properties []json.RawMessage
	SourcePath string
	Trim       bool
}

// Execution is the result of a run. Failure is set when the template
// panicked or could not bind its properties; Output is then empty.
type Execution struct {
	Output   string
	Failure  *Failure
	Stderr   string
	Duration time.Duration
}
